// Package classify maps CloudTrail action names to risk tiers.
//
// Classification is static: a built-in table derived from IAM
// privilege-escalation and credential-handling actions, optionally
// extended from a validated YAML file. Nothing here is learned.
package classify

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/config"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/logger"
)

// Tier orders action risk. Administrative implies high-risk.
type Tier int

const (
	TierOrdinary Tier = iota
	TierHighRisk
	TierAdministrative
)

func (t Tier) String() string {
	switch t {
	case TierHighRisk:
		return "high_risk"
	case TierAdministrative:
		return "administrative"
	default:
		return "ordinary"
	}
}

// HighRisk reports whether the tier carries elevated privilege-escalation
// or data-exposure potential. Administrative actions count as high-risk.
func (t Tier) HighRisk() bool { return t >= TierHighRisk }

// Administrative reports whether the action grants or assumes privilege.
func (t Tier) Administrative() bool { return t == TierAdministrative }

// TierFromName maps a tier name back to its value. Unknown names are ordinary.
func TierFromName(name string) Tier {
	switch name {
	case "high_risk":
		return TierHighRisk
	case "administrative":
		return TierAdministrative
	default:
		return TierOrdinary
	}
}

// MarshalJSON encodes the tier as its name. Events round-trip through JSON
// in the Redis session backend, so the tier must survive serialization.
func (t Tier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Tier) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	*t = TierFromName(name)
	return nil
}

// Administrative-tier actions: privilege attachment and identity creation.
var defaultAdministrative = []string{
	"AttachUserPolicy", "AttachRolePolicy", "AttachGroupPolicy",
	"PutUserPolicy", "PutRolePolicy", "PutGroupPolicy",
	"CreateRole", "CreateUser", "CreateAccessKey",
	"AssumeRole", "GetSessionToken",
}

// High-risk actions: destructive or credential-bearing IAM and network ops.
var defaultHighRisk = []string{
	"DeleteUser", "DeleteRole",
	"DetachUserPolicy", "DeleteUserPolicy",
	"DetachRolePolicy", "DeleteRolePolicy",
	"DeleteAccessKey", "UpdateAccessKey",
	"CreateLoginProfile", "UpdateLoginProfile", "DeleteLoginProfile",
	"AssumeRoleWithSAML", "AssumeRoleWithWebIdentity",
	"ConsoleLogin", "PasswordData",
	"AuthorizeSecurityGroupIngress", "AuthorizeSecurityGroupEgress",
	"CreateVpc", "ModifyInstanceAttribute",
}

// Table resolves action names to tiers. Unknown actions are ordinary.
type Table struct {
	tiers map[string]Tier
}

// NewTable returns the built-in classification table.
func NewTable() *Table {
	t := &Table{tiers: make(map[string]Tier, len(defaultHighRisk)+len(defaultAdministrative))}
	for _, name := range defaultHighRisk {
		t.tiers[name] = TierHighRisk
	}
	for _, name := range defaultAdministrative {
		t.tiers[name] = TierAdministrative
	}
	return t
}

// LoadTable builds the classification table, merging an override file over
// the built-in defaults when path is non-empty. Override entries win.
func LoadTable(path string) (*Table, error) {
	t := NewTable()
	if path == "" {
		return t, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open actions file %s: %w", path, err)
	}
	defer f.Close()

	tiers, err := config.ValidateActions(f)
	if err != nil {
		return nil, fmt.Errorf("validate actions file %s: %w", path, err)
	}
	for _, name := range tiers.HighRisk {
		t.tiers[name] = TierHighRisk
	}
	for _, name := range tiers.Administrative {
		t.tiers[name] = TierAdministrative
	}

	logger.L().Debugw("loaded action classification overrides",
		"path", path,
		"high_risk", len(tiers.HighRisk),
		"administrative", len(tiers.Administrative))
	return t, nil
}

// Lookup returns the tier for an action name; unknown actions are ordinary.
func (t *Table) Lookup(action string) Tier {
	if tier, ok := t.tiers[action]; ok {
		return tier
	}
	return TierOrdinary
}

// Size returns the number of classified (non-ordinary) actions.
func (t *Table) Size() int { return len(t.tiers) }

// Entries returns a copy of the action→tier map, for display.
func (t *Table) Entries() map[string]Tier {
	out := make(map[string]Tier, len(t.tiers))
	for k, v := range t.tiers {
		out[k] = v
	}
	return out
}
