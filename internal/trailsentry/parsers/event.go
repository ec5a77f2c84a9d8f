package parsers

import (
	"time"

	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/classify"
)

// Event is the canonical audit event produced by normalization.
// It is created once per raw record and never mutated afterwards.
type Event struct {
	EventID   string        `json:"event_id"`
	Timestamp time.Time     `json:"timestamp"` // UTC
	Principal string        `json:"principal"`
	Action    string        `json:"action"`
	SourceIP  string        `json:"source_ip,omitempty"`
	Region    string        `json:"region,omitempty"`
	ErrorCode *string       `json:"error_code,omitempty"` // present = failed call
	MFAUsed   bool          `json:"mfa_used"`
	Tier      classify.Tier `json:"tier"`
}

// Failed reports whether the call carried an error code.
func (e *Event) Failed() bool {
	return e.ErrorCode != nil && *e.ErrorCode != ""
}
