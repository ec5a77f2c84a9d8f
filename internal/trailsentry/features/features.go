// Package features aggregates a principal's events into the fixed-dimension
// behavioral vector consumed by the rule and anomaly layers.
package features

import (
	"math"
	"time"

	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/parsers"
)

// Dim is the fixed length of the numeric feature vector.
const Dim = 14

// Window is the off-hours window in whole hours (UTC). It wraps midnight
// when Start > End, e.g. 22→6 covers 22:00–06:00.
type Window struct {
	Start int
	End   int
}

// DefaultWindow is the 22:00–06:00 UTC off-hours window.
var DefaultWindow = Window{Start: 22, End: 6}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	h := t.UTC().Hour()
	if w.Start == w.End {
		return false
	}
	if w.Start < w.End {
		return h >= w.Start && h < w.End
	}
	return h >= w.Start || h < w.End
}

// Vector summarizes one principal's behavior within a session. It is a pure
// function of that principal's events; there is no cross-session state.
type Vector struct {
	Principal string `json:"principal"`

	TotalEvents            int     `json:"total_events"`
	UniqueActions          int     `json:"unique_actions"`
	UniqueIPs              int     `json:"unique_ips"`
	HighRiskEvents         int     `json:"high_risk_events"`
	FailedEvents           int     `json:"failed_events"`
	OffHoursEvents         int     `json:"off_hours_events"`
	MaxConsecutiveFailures int     `json:"max_consecutive_failures"`
	HighRiskNoMFA          int     `json:"high_risk_no_mfa"`
	AdminEvents            int     `json:"admin_events"`
	UniqueRegions          int     `json:"unique_regions"`
	ActionEntropy          float64 `json:"action_entropy"`
	HighRiskRatio          float64 `json:"high_risk_ratio"`
	FailureRatio           float64 `json:"failure_ratio"`
	OffHoursRatio          float64 `json:"off_hours_ratio"`
}

// Values returns the vector in its fixed model order.
func (v *Vector) Values() []float64 {
	return []float64{
		float64(v.TotalEvents),
		float64(v.UniqueActions),
		float64(v.UniqueIPs),
		float64(v.HighRiskEvents),
		float64(v.FailedEvents),
		float64(v.OffHoursEvents),
		float64(v.MaxConsecutiveFailures),
		float64(v.HighRiskNoMFA),
		float64(v.AdminEvents),
		float64(v.UniqueRegions),
		v.ActionEntropy,
		v.HighRiskRatio,
		v.FailureRatio,
		v.OffHoursRatio,
	}
}

// GroupByPrincipal buckets events per principal, preserving input order.
// Principals with no events are never materialized.
func GroupByPrincipal(events []parsers.Event) map[string][]parsers.Event {
	out := make(map[string][]parsers.Event)
	for _, evt := range events {
		out[evt.Principal] = append(out[evt.Principal], evt)
	}
	return out
}

// Extract computes the feature vector for one principal. Events must be in
// chronological order (the consecutive-failure run depends on it).
func Extract(principal string, events []parsers.Event, window Window) Vector {
	v := Vector{Principal: principal, TotalEvents: len(events)}

	actionCounts := make(map[string]int)
	ips := make(map[string]struct{})
	regions := make(map[string]struct{})

	run := 0
	for _, evt := range events {
		actionCounts[evt.Action]++
		if evt.SourceIP != "" {
			ips[evt.SourceIP] = struct{}{}
		}
		if evt.Region != "" {
			regions[evt.Region] = struct{}{}
		}
		if evt.Tier.HighRisk() {
			v.HighRiskEvents++
			if !evt.MFAUsed {
				v.HighRiskNoMFA++
			}
		}
		if evt.Tier.Administrative() {
			v.AdminEvents++
		}
		if evt.Failed() {
			v.FailedEvents++
			run++
			if run > v.MaxConsecutiveFailures {
				v.MaxConsecutiveFailures = run
			}
		} else {
			run = 0
		}
		if window.Contains(evt.Timestamp) {
			v.OffHoursEvents++
		}
	}

	v.UniqueActions = len(actionCounts)
	v.UniqueIPs = len(ips)
	v.UniqueRegions = len(regions)
	v.ActionEntropy = entropy(actionCounts, v.TotalEvents)

	if v.TotalEvents > 0 {
		total := float64(v.TotalEvents)
		v.HighRiskRatio = float64(v.HighRiskEvents) / total
		v.FailureRatio = float64(v.FailedEvents) / total
		v.OffHoursRatio = float64(v.OffHoursEvents) / total
	}
	return v
}

// entropy is the base-2 Shannon entropy of the action-name distribution.
// A single-action principal has entropy 0.
func entropy(counts map[string]int, total int) float64 {
	if total == 0 {
		return 0
	}
	var h float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(total)
		h -= p * math.Log2(p)
	}
	return h
}
