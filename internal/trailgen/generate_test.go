package trailgen

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/parsers"
)

func workload() GenConfig {
	return GenConfig{
		Seed:      7,
		AccountID: "123456789012",
		Regions:   []string{"us-east-1", "eu-west-1"},
		Start:     "2024-03-01T09:00:00Z",
		Profiles: []Profile{
			{Scenario: "normal", Principals: 3, Events: 10},
			{Scenario: "off_hours_admin", Principals: 1, Events: 8},
			{Scenario: "brute_force", Principals: 1, Events: 7},
			{Scenario: "region_hopper", Principals: 1, Events: 6},
		},
	}
}

func TestGenerateRecordCount(t *testing.T) {
	records, err := Generate(workload())
	require.NoError(t, err)
	assert.Len(t, records, 3*10+8+7+6)
}

func TestGenerateUnknownScenario(t *testing.T) {
	cfg := workload()
	cfg.Profiles = []Profile{{Scenario: "martian", Principals: 1, Events: 1}}
	_, err := Generate(cfg)
	assert.Error(t, err)
}

func TestGenerateBadStart(t *testing.T) {
	cfg := workload()
	cfg.Start = "yesterday"
	_, err := Generate(cfg)
	assert.Error(t, err)
}

func TestGeneratedRecordsParse(t *testing.T) {
	records, err := Generate(workload())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteRecords(&buf, records))

	res, err := parsers.NewParser(nil).Parse(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, len(records), res.Parsed)
	assert.Zero(t, res.Dropped)

	// six generated principals; allow for the odd faker username collision
	principals := make(map[string]struct{})
	for _, evt := range res.Events {
		principals[evt.Principal] = struct{}{}
	}
	assert.GreaterOrEqual(t, len(principals), 5)
	assert.LessOrEqual(t, len(principals), 6)
}

func TestBruteForceShape(t *testing.T) {
	g := &generator{account: "1", regions: []string{"us-east-1"}}
	recs := g.bruteForce("arn:aws:iam::1:user/x", 6)
	require.Len(t, recs, 6)
	for i := 0; i < 5; i++ {
		assert.Equal(t, "AccessDenied", recs[i]["errorCode"])
	}
	_, last := recs[5]["errorCode"]
	assert.False(t, last, "final attempt succeeds")
}

func TestReadConfigDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workload.yaml")
	content := "seed: 1\nprofiles:\n  - scenario: normal\n    principals: 1\n    events: 2\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := ReadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "123456789012", cfg.AccountID)
	assert.NotEmpty(t, cfg.Regions)
	assert.NotEmpty(t, cfg.Start)
	require.Len(t, cfg.Profiles, 1)
}

func TestReadConfigErrors(t *testing.T) {
	t.Run("missing_file", func(t *testing.T) {
		_, err := ReadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("bad_yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("{{{"), 0o644))
		_, err := ReadConfig(path)
		assert.Error(t, err)
	})
}
