package features

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/classify"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/parsers"
)

func at(hour int) time.Time {
	return time.Date(2024, 3, 1, hour, 0, 0, 0, time.UTC)
}

func failed() *string {
	s := "AccessDenied"
	return &s
}

func TestWindowContains(t *testing.T) {
	tests := []struct {
		name     string
		window   Window
		hour     int
		expected bool
	}{
		{"wrap_late_night", Window{22, 6}, 23, true},
		{"wrap_early_morning", Window{22, 6}, 2, true},
		{"wrap_start_inclusive", Window{22, 6}, 22, true},
		{"wrap_end_exclusive", Window{22, 6}, 6, false},
		{"wrap_business_hours", Window{22, 6}, 12, false},
		{"plain_inside", Window{9, 17}, 10, true},
		{"plain_start_inclusive", Window{9, 17}, 9, true},
		{"plain_end_exclusive", Window{9, 17}, 17, false},
		{"plain_outside", Window{9, 17}, 20, false},
		{"degenerate_empty_window", Window{5, 5}, 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.window.Contains(at(tt.hour)))
		})
	}
}

func TestGroupByPrincipal(t *testing.T) {
	events := []parsers.Event{
		{Principal: "alice", Action: "A"},
		{Principal: "bob", Action: "B"},
		{Principal: "alice", Action: "C"},
	}
	grouped := GroupByPrincipal(events)
	require.Len(t, grouped, 2)
	assert.Len(t, grouped["alice"], 2)
	assert.Len(t, grouped["bob"], 1)
	// input order preserved within a principal
	assert.Equal(t, "A", grouped["alice"][0].Action)
	assert.Equal(t, "C", grouped["alice"][1].Action)
}

func TestExtractCounts(t *testing.T) {
	events := []parsers.Event{
		{Timestamp: at(10), Action: "ListUsers", SourceIP: "1.1.1.1", Region: "us-east-1", MFAUsed: true},
		{Timestamp: at(23), Action: "AttachUserPolicy", SourceIP: "1.1.1.1", Region: "us-east-1", Tier: classify.TierAdministrative},
		{Timestamp: at(2), Action: "DeleteUser", SourceIP: "2.2.2.2", Region: "eu-west-1", Tier: classify.TierHighRisk, MFAUsed: true},
		{Timestamp: at(11), Action: "ListUsers", SourceIP: "1.1.1.1", Region: "us-east-1", ErrorCode: failed()},
	}

	v := Extract("alice", events, DefaultWindow)

	assert.Equal(t, "alice", v.Principal)
	assert.Equal(t, 4, v.TotalEvents)
	assert.Equal(t, 3, v.UniqueActions)
	assert.Equal(t, 2, v.UniqueIPs)
	assert.Equal(t, 2, v.UniqueRegions)
	assert.Equal(t, 2, v.HighRiskEvents) // admin counts as high-risk
	assert.Equal(t, 1, v.HighRiskNoMFA)  // the admin event had no MFA
	assert.Equal(t, 1, v.AdminEvents)
	assert.Equal(t, 1, v.FailedEvents)
	assert.Equal(t, 2, v.OffHoursEvents) // 23:00 and 02:00
	assert.InDelta(t, 0.5, v.HighRiskRatio, 1e-9)
	assert.InDelta(t, 0.25, v.FailureRatio, 1e-9)
	assert.InDelta(t, 0.5, v.OffHoursRatio, 1e-9)
}

func TestExtractAfterJSONRoundTrip(t *testing.T) {
	// the redis session backend stores events as JSON; the tier-derived
	// counts must survive the round trip
	events := make([]parsers.Event, 5)
	for i := range events {
		events[i] = parsers.Event{
			Timestamp: at(10),
			Principal: "bob",
			Action:    "AttachUserPolicy",
			Tier:      classify.TierAdministrative,
		}
	}

	data, err := json.Marshal(events)
	require.NoError(t, err)
	var restored []parsers.Event
	require.NoError(t, json.Unmarshal(data, &restored))

	v := Extract("bob", restored, DefaultWindow)
	assert.Equal(t, 5, v.AdminEvents)
	assert.Equal(t, 5, v.HighRiskEvents)
	assert.Equal(t, 5, v.HighRiskNoMFA)
}

func TestExtractConsecutiveFailures(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []bool // true = failed
		expected int
	}{
		{"no_failures", []bool{false, false, false}, 0},
		{"single_run", []bool{true, true, true}, 3},
		{"run_broken_by_success", []bool{true, true, false, true}, 2},
		{"longest_run_last", []bool{true, false, true, true, true}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := make([]parsers.Event, len(tt.outcomes))
			for i, fail := range tt.outcomes {
				events[i] = parsers.Event{Timestamp: at(10), Action: "X"}
				if fail {
					events[i].ErrorCode = failed()
				}
			}
			v := Extract("p", events, DefaultWindow)
			assert.Equal(t, tt.expected, v.MaxConsecutiveFailures)
		})
	}
}

func TestExtractEntropy(t *testing.T) {
	t.Run("single_action_is_zero", func(t *testing.T) {
		events := []parsers.Event{
			{Timestamp: at(10), Action: "A"},
			{Timestamp: at(10), Action: "A"},
		}
		v := Extract("p", events, DefaultWindow)
		assert.Zero(t, v.ActionEntropy)
	})

	t.Run("uniform_two_actions_is_one_bit", func(t *testing.T) {
		events := []parsers.Event{
			{Timestamp: at(10), Action: "A"},
			{Timestamp: at(10), Action: "B"},
		}
		v := Extract("p", events, DefaultWindow)
		assert.InDelta(t, 1.0, v.ActionEntropy, 1e-9)
	})

	t.Run("uniform_four_actions_is_two_bits", func(t *testing.T) {
		events := []parsers.Event{
			{Timestamp: at(10), Action: "A"},
			{Timestamp: at(10), Action: "B"},
			{Timestamp: at(10), Action: "C"},
			{Timestamp: at(10), Action: "D"},
		}
		v := Extract("p", events, DefaultWindow)
		assert.InDelta(t, 2.0, v.ActionEntropy, 1e-9)
	})
}

func TestExtractEmpty(t *testing.T) {
	v := Extract("p", nil, DefaultWindow)
	assert.Zero(t, v.TotalEvents)
	assert.Zero(t, v.HighRiskRatio)
	assert.Zero(t, v.FailureRatio)
	assert.Zero(t, v.OffHoursRatio)
	assert.Zero(t, v.ActionEntropy)
}

func TestValuesOrderAndLength(t *testing.T) {
	v := Vector{
		TotalEvents:            1,
		UniqueActions:          2,
		UniqueIPs:              3,
		HighRiskEvents:         4,
		FailedEvents:           5,
		OffHoursEvents:         6,
		MaxConsecutiveFailures: 7,
		HighRiskNoMFA:          8,
		AdminEvents:            9,
		UniqueRegions:          10,
		ActionEntropy:          1.5,
		HighRiskRatio:          0.25,
		FailureRatio:           0.5,
		OffHoursRatio:          0.75,
	}
	values := v.Values()
	require.Len(t, values, Dim)
	expected := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 1.5, 0.25, 0.5, 0.75}
	for i := range expected {
		assert.True(t, math.Abs(values[i]-expected[i]) < 1e-12, "index %d", i)
	}
}
