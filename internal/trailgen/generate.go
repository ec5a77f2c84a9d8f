// Package trailgen produces synthetic CloudTrail logs for demos and load
// testing the detection pipeline. Output is deterministic for a fixed seed.
package trailgen

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Profile sizes one behavioral cohort in the generated account.
type Profile struct {
	// Scenario: normal | off_hours_admin | brute_force | region_hopper
	Scenario   string `yaml:"scenario"`
	Principals int    `yaml:"principals"`
	// Events generated per principal.
	Events int `yaml:"events"`
}

// GenConfig is the YAML workload configuration.
type GenConfig struct {
	Seed      int64     `yaml:"seed"`
	AccountID string    `yaml:"account_id"`
	Regions   []string  `yaml:"regions"`
	Start     string    `yaml:"start"` // RFC3339; base timestamp of the session
	Profiles  []Profile `yaml:"profiles"`
}

// ReadConfig parses the YAML workload config and fills defaults.
func ReadConfig(path string) (GenConfig, error) {
	var cfg GenConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse workload config: %w", err)
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *GenConfig) {
	if cfg.AccountID == "" {
		cfg.AccountID = "123456789012"
	}
	if len(cfg.Regions) == 0 {
		cfg.Regions = []string{"us-east-1", "eu-west-1", "ap-northeast-2"}
	}
	if cfg.Start == "" {
		cfg.Start = "2024-03-01T09:00:00Z"
	}
}

type generator struct {
	account string
	regions []string
	base    time.Time
}

// Generate builds the raw record set described by cfg.
func Generate(cfg GenConfig) ([]map[string]interface{}, error) {
	applyDefaults(&cfg)
	base, err := time.Parse(time.RFC3339, cfg.Start)
	if err != nil {
		return nil, fmt.Errorf("parse start %q: %w", cfg.Start, err)
	}
	gofakeit.Seed(cfg.Seed)

	g := &generator{
		account: cfg.AccountID,
		regions: cfg.Regions,
		base:    base.UTC(),
	}

	var records []map[string]interface{}
	for _, profile := range cfg.Profiles {
		for i := 0; i < profile.Principals; i++ {
			arn := g.userARN()
			var recs []map[string]interface{}
			switch profile.Scenario {
			case "normal", "":
				recs = g.normal(arn, profile.Events)
			case "off_hours_admin":
				recs = g.offHoursAdmin(arn, profile.Events)
			case "brute_force":
				recs = g.bruteForce(arn, profile.Events)
			case "region_hopper":
				recs = g.regionHopper(arn, profile.Events)
			default:
				return nil, fmt.Errorf("unknown scenario %q", profile.Scenario)
			}
			records = append(records, recs...)
		}
	}
	return records, nil
}

// WriteRecords emits the standard {"Records":[...]} envelope.
func WriteRecords(w io.Writer, records []map[string]interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]interface{}{"Records": records})
}

func (g *generator) userARN() string {
	return fmt.Sprintf("arn:aws:iam::%s:user/%s", g.account, gofakeit.Username())
}

func (g *generator) record(ts time.Time, arn, action, ip, region, errCode string, mfa bool) map[string]interface{} {
	rec := map[string]interface{}{
		"eventID":         uuid.NewString(),
		"eventTime":       ts.UTC().Format(time.RFC3339),
		"eventName":       action,
		"eventSource":     "iam.amazonaws.com",
		"awsRegion":       region,
		"sourceIPAddress": ip,
		"userAgent":       "aws-cli/2.15.0",
		"userIdentity": map[string]interface{}{
			"type":      "IAMUser",
			"arn":       arn,
			"accountId": g.account,
		},
		"additionalEventData": map[string]interface{}{
			"MFAUsed": mfaString(mfa),
		},
	}
	if errCode != "" {
		rec["errorCode"] = errCode
	}
	return rec
}

func mfaString(mfa bool) string {
	if mfa {
		return "Yes"
	}
	return "No"
}
