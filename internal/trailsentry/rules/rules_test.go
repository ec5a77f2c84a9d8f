package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/features"
)

func ruleIDs(findings []Finding) []string {
	var ids []string
	for _, f := range findings {
		ids = append(ids, f.RuleID)
	}
	return ids
}

func TestEvaluateSingleRules(t *testing.T) {
	tests := []struct {
		name     string
		vector   features.Vector
		expected []string
	}{
		{
			name:     "clean_vector_triggers_nothing",
			vector:   features.Vector{TotalEvents: 10, UniqueIPs: 1, UniqueRegions: 1},
			expected: nil,
		},
		{
			name:     "off_hours_above_threshold",
			vector:   features.Vector{TotalEvents: 10, OffHoursRatio: 0.31},
			expected: []string{"R01_OFF_HOURS_ACCESS"},
		},
		{
			name:     "off_hours_at_threshold_does_not_fire",
			vector:   features.Vector{TotalEvents: 10, OffHoursRatio: 0.30},
			expected: nil,
		},
		{
			name:     "high_risk_ratio",
			vector:   features.Vector{TotalEvents: 10, HighRiskRatio: 0.25},
			expected: []string{"R02_HIGH_RISK_RATIO"},
		},
		{
			name:     "high_risk_without_mfa",
			vector:   features.Vector{TotalEvents: 10, HighRiskNoMFA: 1},
			expected: []string{"R03_HIGH_RISK_NO_MFA"},
		},
		{
			name:     "three_source_ips",
			vector:   features.Vector{TotalEvents: 10, UniqueIPs: 3},
			expected: []string{"R04_MULTIPLE_SOURCE_IPS"},
		},
		{
			name:     "two_source_ips_do_not_fire",
			vector:   features.Vector{TotalEvents: 10, UniqueIPs: 2},
			expected: nil,
		},
		{
			name:     "failure_ratio",
			vector:   features.Vector{TotalEvents: 10, FailureRatio: 0.41},
			expected: []string{"R05_HIGH_FAILURE_RATE"},
		},
		{
			name:     "consecutive_failures",
			vector:   features.Vector{TotalEvents: 10, MaxConsecutiveFailures: 5},
			expected: []string{"R06_CONSECUTIVE_FAILURES"},
		},
		{
			name:     "admin_actions",
			vector:   features.Vector{TotalEvents: 10, AdminEvents: 5},
			expected: []string{"R07_EXCESSIVE_ADMIN_ACTIONS"},
		},
		{
			name:     "multi_region",
			vector:   features.Vector{TotalEvents: 10, UniqueRegions: 2},
			expected: []string{"R08_MULTI_REGION_ACTIVITY"},
		},
		{
			name:     "event_burst",
			vector:   features.Vector{TotalEvents: 101},
			expected: []string{"R09_EVENT_BURST"},
		},
		{
			name:     "event_burst_at_threshold_does_not_fire",
			vector:   features.Vector{TotalEvents: 100},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := Evaluate(&tt.vector)
			assert.Equal(t, tt.expected, ruleIDs(findings))
		})
	}
}

func TestEvaluateFindingsOrderedByRuleID(t *testing.T) {
	// fires R09, R01, R04; returned order must still be ascending
	v := features.Vector{
		TotalEvents:   150,
		OffHoursRatio: 0.5,
		UniqueIPs:     4,
	}
	findings := Evaluate(&v)
	assert.Equal(t,
		[]string{"R01_OFF_HOURS_ACCESS", "R04_MULTIPLE_SOURCE_IPS", "R09_EVENT_BURST"},
		ruleIDs(findings))
}

func TestScoreContributions(t *testing.T) {
	tests := []struct {
		name     string
		vector   features.Vector
		expected float64
	}{
		{
			// 20 events, 8 off-hours (40%), 5 high-risk without MFA from 4 IPs
			name: "off_hours_admin_scenario",
			vector: features.Vector{
				TotalEvents:   20,
				OffHoursRatio: 0.40,
				HighRiskNoMFA: 5,
				UniqueIPs:     4,
			},
			expected: 40, // R01(10) + R03(20) + R04(10)
		},
		{
			// 10 events, 6 failed and consecutive
			name: "brute_force_scenario",
			vector: features.Vector{
				TotalEvents:            10,
				FailedEvents:           6,
				FailureRatio:           0.60,
				MaxConsecutiveFailures: 6,
			},
			expected: 35, // R05(15) + R06(20)
		},
		{
			name:     "nothing_triggered",
			vector:   features.Vector{TotalEvents: 5},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Score(Evaluate(&tt.vector)))
		})
	}
}

func TestScoreCappedAtMax(t *testing.T) {
	// every rule fires: raw sum is 126, capped at 100
	v := features.Vector{
		TotalEvents:            150,
		OffHoursRatio:          0.9,
		HighRiskRatio:          0.9,
		HighRiskNoMFA:          10,
		UniqueIPs:              8,
		FailureRatio:           0.9,
		MaxConsecutiveFailures: 12,
		AdminEvents:            20,
		UniqueRegions:          4,
	}
	findings := Evaluate(&v)
	require.Len(t, findings, 9)

	var raw float64
	for _, f := range findings {
		raw += f.Contribution
	}
	assert.Greater(t, raw, MaxScore)
	assert.Equal(t, MaxScore, Score(findings))
}
