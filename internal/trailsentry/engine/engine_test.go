package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/classify"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/parsers"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/risk"
)

func evt(principal, action string, hour int, opts ...func(*parsers.Event)) parsers.Event {
	e := parsers.Event{
		Timestamp: time.Date(2024, 3, 1, hour, 0, 0, 0, time.UTC),
		Principal: principal,
		Action:    action,
		SourceIP:  "203.0.113.1",
		Region:    "us-east-1",
		MFAUsed:   true,
		Tier:      classify.NewTable().Lookup(action),
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

func withIP(ip string) func(*parsers.Event) {
	return func(e *parsers.Event) { e.SourceIP = ip }
}

func withFailure() func(*parsers.Event) {
	return func(e *parsers.Event) {
		code := "AccessDenied"
		e.ErrorCode = &code
	}
}

func withoutMFA() func(*parsers.Event) {
	return func(e *parsers.Event) { e.MFAUsed = false }
}

// sessionEvents builds a three-principal session: alice is clean, bob does
// off-hours admin work without MFA from several IPs, charlie brute-forces.
func sessionEvents() []parsers.Event {
	var events []parsers.Event

	for i := 0; i < 10; i++ {
		events = append(events, evt("alice", "ListUsers", 10))
	}

	for i := 0; i < 6; i++ {
		ip := fmt.Sprintf("198.51.100.%d", i+1)
		events = append(events, evt("bob", "AttachUserPolicy", 23, withIP(ip), withoutMFA()))
	}

	for i := 0; i < 6; i++ {
		events = append(events, evt("charlie", "AssumeRole", 9, withFailure(), withoutMFA()))
	}
	events = append(events, evt("charlie", "AssumeRole", 9, withoutMFA()))

	return events
}

func ruleOnlyOptions() Options {
	opts := DefaultOptions()
	opts.MLEnabled = false
	return opts
}

func verdictFor(t *testing.T, report *Report, principal string) risk.Verdict {
	t.Helper()
	for _, v := range report.Verdicts {
		if v.Principal == principal {
			return v
		}
	}
	t.Fatalf("no verdict for %s", principal)
	return risk.Verdict{}
}

func TestDetectEmptySession(t *testing.T) {
	report, err := Detect(context.Background(), nil, DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, report.Verdicts)
	assert.Zero(t, report.Principals)
	assert.Zero(t, report.Anomalous)
	// level counts are materialized even when empty
	assert.Contains(t, report.LevelCounts, risk.LevelLow)
}

func TestDetectScenario(t *testing.T) {
	report, err := Detect(context.Background(), sessionEvents(), ruleOnlyOptions())
	require.NoError(t, err)
	assert.Equal(t, 3, report.Principals)
	require.Len(t, report.Verdicts, 3)

	alice := verdictFor(t, report, "alice")
	assert.Zero(t, alice.Score)
	assert.Equal(t, risk.MethodNone, alice.Method)
	assert.Equal(t, risk.LevelLow, alice.Level)

	// bob: off-hours ratio 1.0 (R01=10), high-risk ratio 1.0 (R02=15),
	// no-MFA admin (R03=20), 6 IPs (R04=10), 6 admin actions (R07=18)
	bob := verdictFor(t, report, "bob")
	assert.Equal(t, 73.0, bob.RuleScore)
	assert.Equal(t, risk.LevelHigh, bob.Level)
	assert.Equal(t, risk.MethodRule, bob.Method)
	assert.Len(t, bob.Findings, 5)

	// charlie: 6/7 failures (R05=15), 6 consecutive (R06=20), all AssumeRole
	// without MFA (R02=15, R03=20), 7 admin actions (R07=18)
	charlie := verdictFor(t, report, "charlie")
	assert.Equal(t, 88.0, charlie.RuleScore)
	assert.Equal(t, risk.LevelCritical, charlie.Level)

	// presentation order: score descending
	assert.Equal(t, "charlie", report.Verdicts[0].Principal)
	assert.Equal(t, "bob", report.Verdicts[1].Principal)
	assert.Equal(t, "alice", report.Verdicts[2].Principal)

	assert.Equal(t, 2, report.Anomalous)
	assert.Equal(t, 1, report.LevelCounts[risk.LevelCritical])
	assert.Equal(t, 1, report.LevelCounts[risk.LevelHigh])
	assert.Equal(t, 1, report.LevelCounts[risk.LevelLow])
}

func TestDetectDeterministic(t *testing.T) {
	events := sessionEvents()
	opts := DefaultOptions()

	first, err := Detect(context.Background(), events, opts)
	require.NoError(t, err)
	second, err := Detect(context.Background(), events, opts)
	require.NoError(t, err)

	require.Equal(t, len(first.Verdicts), len(second.Verdicts))
	for i := range first.Verdicts {
		assert.Equal(t, first.Verdicts[i].Principal, second.Verdicts[i].Principal)
		assert.Equal(t, first.Verdicts[i].Score, second.Verdicts[i].Score)
		assert.Equal(t, first.Verdicts[i].MLRaw, second.Verdicts[i].MLRaw)
	}
}

func TestDetectSmallPopulationMLNeverElevates(t *testing.T) {
	// 3 principals is far below the default ML minimum of 20: ML raw scores
	// exist but must not contribute
	report, err := Detect(context.Background(), sessionEvents(), DefaultOptions())
	require.NoError(t, err)

	alice := verdictFor(t, report, "alice")
	assert.Zero(t, alice.MLScore)
	assert.False(t, alice.MLReliable)
	assert.Zero(t, alice.Score)
	assert.Equal(t, risk.MethodNone, alice.Method)
}

func TestDetectSortsArrivalOrder(t *testing.T) {
	// five chronologically consecutive failures, then a success
	chronological := []parsers.Event{
		evt("dave", "AssumeRole", 1, withFailure()),
		evt("dave", "AssumeRole", 2, withFailure()),
		evt("dave", "AssumeRole", 3, withFailure()),
		evt("dave", "AssumeRole", 4, withFailure()),
		evt("dave", "AssumeRole", 5, withFailure()),
		evt("dave", "AssumeRole", 6),
	}
	// streaming arrival order splits the failure run
	arrival := []parsers.Event{
		chronological[0], chronological[1], chronological[5],
		chronological[2], chronological[3], chronological[4],
	}

	expected, err := Detect(context.Background(), chronological, ruleOnlyOptions())
	require.NoError(t, err)
	got, err := Detect(context.Background(), arrival, ruleOnlyOptions())
	require.NoError(t, err)

	want := verdictFor(t, expected, "dave")
	have := verdictFor(t, got, "dave")
	assert.Equal(t, want.Score, have.Score)
	assert.Equal(t, want.Findings, have.Findings)

	ids := make([]string, 0, len(have.Findings))
	for _, f := range have.Findings {
		ids = append(ids, f.RuleID)
	}
	assert.Contains(t, ids, "R06_CONSECUTIVE_FAILURES")
}

func TestDetectCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Detect(ctx, sessionEvents(), DefaultOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunParsesAndScores(t *testing.T) {
	doc := []byte(`{"Records":[
		{"eventID":"1","eventTime":"2024-03-01T10:00:00Z","eventName":"ListUsers",
		 "awsRegion":"us-east-1","sourceIPAddress":"1.1.1.1",
		 "userIdentity":{"arn":"arn:aws:iam::1:user/alice"}},
		{"eventName":"MissingEverything"}
	]}`)

	report, err := Run(context.Background(), parsers.NewParser(nil), doc, ruleOnlyOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, report.ParsedRecords)
	assert.Equal(t, 1, report.DroppedRecords)
	assert.Equal(t, 1, report.Principals)
}

func TestRunBadDocument(t *testing.T) {
	_, err := Run(context.Background(), parsers.NewParser(nil), []byte(`{"nope":1}`), DefaultOptions())
	assert.Error(t, err)
}
