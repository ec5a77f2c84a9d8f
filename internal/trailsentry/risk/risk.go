// Package risk merges the rule and ML layers into one verdict per principal.
// Each layer's output is a plain data value; Aggregate is a pure function
// over both.
package risk

import (
	"sort"

	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/anomaly"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/features"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/rules"
)

// Level classifies a final score.
type Level string

const (
	LevelLow      Level = "LOW"
	LevelMedium   Level = "MEDIUM"
	LevelHigh     Level = "HIGH"
	LevelCritical Level = "CRITICAL"
)

// Method labels which layer produced the verdict.
type Method string

const (
	MethodRule Method = "rule"
	MethodML   Method = "ml"
	MethodNone Method = "none"
)

// Verdict is the final, immutable per-principal output of a detection run.
type Verdict struct {
	Principal  string          `json:"principal"`
	Score      float64         `json:"score"`
	Level      Level           `json:"level"`
	Method     Method          `json:"method"`
	Findings   []rules.Finding `json:"findings"`
	RuleScore  float64         `json:"rule_score"`
	MLScore    float64         `json:"ml_score"`
	MLRaw      float64         `json:"ml_raw"`
	MLReliable bool            `json:"ml_reliable"`
	EventCount int             `json:"event_count"`
}

// LevelFor maps a 0–100 score onto its level (inclusive lower bounds).
func LevelFor(score float64) Level {
	switch {
	case score >= 80:
		return LevelCritical
	case score >= 60:
		return LevelHigh
	case score >= 40:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Aggregate combines both layers for one principal.
//
// Rules dominate when they fire: they carry interpretable findings, so the
// final score is max(ruleScore, mlScore) and the method is "rule" whenever
// any rule triggered. The ML contribution only counts when the layer is
// enabled and the signal reliable; an unreliable signal from a small
// population must never elevate the score. signal may be nil (ML layer off).
func Aggregate(v *features.Vector, findings []rules.Finding, signal *anomaly.Signal, mlEnabled bool) Verdict {
	ruleScore := rules.Score(findings)

	var mlScore, mlRaw float64
	var mlReliable bool
	if signal != nil {
		mlRaw = signal.Raw
		mlReliable = signal.Reliable
		if mlEnabled && signal.Reliable {
			mlScore = signal.Contribution
		}
	}

	score := ruleScore
	if mlScore > score {
		score = mlScore
	}

	method := MethodNone
	switch {
	case ruleScore > 0:
		method = MethodRule
	case mlScore > 0:
		method = MethodML
	}

	// findings travel with the verdict only when the rule layer fired
	if ruleScore == 0 {
		findings = nil
	}

	return Verdict{
		Principal:  v.Principal,
		Score:      score,
		Level:      LevelFor(score),
		Method:     method,
		Findings:   findings,
		RuleScore:  ruleScore,
		MLScore:    mlScore,
		MLRaw:      mlRaw,
		MLReliable: mlReliable,
		EventCount: v.TotalEvents,
	}
}

// Sort orders verdicts by score descending, ties broken by principal
// ascending. This is the presentation order for top-N summaries.
func Sort(verdicts []Verdict) {
	sort.Slice(verdicts, func(i, j int) bool {
		if verdicts[i].Score != verdicts[j].Score {
			return verdicts[i].Score > verdicts[j].Score
		}
		return verdicts[i].Principal < verdicts[j].Principal
	})
}
