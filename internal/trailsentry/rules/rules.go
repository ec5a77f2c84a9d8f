// Package rules holds the deterministic detection layer: independent,
// side-effect-free threshold predicates over a principal's feature vector.
// The layer needs no training population and is meaningful even for a
// single principal.
package rules

import (
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/features"
)

// MaxScore caps the summed rule contributions.
const MaxScore = 100.0

// Finding records one triggered rule for one principal.
type Finding struct {
	RuleID       string  `json:"rule_id"`
	Description  string  `json:"description"`
	Contribution float64 `json:"contribution"`
}

type rule struct {
	id           string
	description  string
	contribution float64
	match        func(v *features.Vector) bool
}

// Thresholds are fixed constants, not learned. Order is rule-id ascending,
// which fixes the order of findings.
var table = []rule{
	{
		id:           "R01_OFF_HOURS_ACCESS",
		description:  "off-hours access ratio above 30%",
		contribution: 10,
		match:        func(v *features.Vector) bool { return v.OffHoursRatio > 0.30 },
	},
	{
		id:           "R02_HIGH_RISK_RATIO",
		description:  "high-risk event ratio above 20%",
		contribution: 15,
		match:        func(v *features.Vector) bool { return v.HighRiskRatio > 0.20 },
	},
	{
		id:           "R03_HIGH_RISK_NO_MFA",
		description:  "high-risk action performed without MFA",
		contribution: 20,
		match:        func(v *features.Vector) bool { return v.HighRiskNoMFA > 0 },
	},
	{
		id:           "R04_MULTIPLE_SOURCE_IPS",
		description:  "activity from 3 or more distinct source IPs",
		contribution: 10,
		match:        func(v *features.Vector) bool { return v.UniqueIPs >= 3 },
	},
	{
		id:           "R05_HIGH_FAILURE_RATE",
		description:  "failure ratio above 40%",
		contribution: 15,
		match:        func(v *features.Vector) bool { return v.FailureRatio > 0.40 },
	},
	{
		id:           "R06_CONSECUTIVE_FAILURES",
		description:  "5 or more consecutive failed calls",
		contribution: 20,
		match:        func(v *features.Vector) bool { return v.MaxConsecutiveFailures >= 5 },
	},
	{
		id:           "R07_EXCESSIVE_ADMIN_ACTIONS",
		description:  "5 or more administrative actions",
		contribution: 18,
		match:        func(v *features.Vector) bool { return v.AdminEvents >= 5 },
	},
	{
		id:           "R08_MULTI_REGION_ACTIVITY",
		description:  "activity across 2 or more regions",
		contribution: 8,
		match:        func(v *features.Vector) bool { return v.UniqueRegions >= 2 },
	},
	{
		id:           "R09_EVENT_BURST",
		description:  "more than 100 events in one session",
		contribution: 10,
		match:        func(v *features.Vector) bool { return v.TotalEvents > 100 },
	},
}

// Evaluate runs every rule against the vector and returns the triggered
// findings in rule-id ascending order. Rules are independent; any number
// may fire.
func Evaluate(v *features.Vector) []Finding {
	var findings []Finding
	for _, r := range table {
		if r.match(v) {
			findings = append(findings, Finding{
				RuleID:       r.id,
				Description:  r.description,
				Contribution: r.contribution,
			})
		}
	}
	return findings
}

// Score sums the contributions of the triggered findings, capped at MaxScore.
func Score(findings []Finding) float64 {
	var total float64
	for _, f := range findings {
		total += f.Contribution
	}
	if total > MaxScore {
		return MaxScore
	}
	return total
}
