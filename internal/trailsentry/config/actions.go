package config

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// ActionTiers is the parsed action classification override file.
// Actions not listed in any tier are treated as ordinary.
type ActionTiers struct {
	HighRisk       []string
	Administrative []string
}

type actionsFile struct {
	Tiers map[string][]string `yaml:"tiers"`
}

var allowedTiers = map[string]struct{}{
	"high_risk": {}, "administrative": {},
}

// ValidateActions parses and validates an action classification YAML file.
//
// Rules:
// - only the tiers high_risk and administrative may appear
// - a listed tier must not be empty
// - an action name may appear in at most one tier
func ValidateActions(r io.Reader) (*ActionTiers, error) {
	var raw actionsFile
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode actions YAML: %w", err)
	}
	if len(raw.Tiers) == 0 {
		return nil, fmt.Errorf("actions file must define at least one tier")
	}

	out := &ActionTiers{}
	seen := map[string]string{}

	for tier, actions := range raw.Tiers {
		if _, ok := allowedTiers[tier]; !ok {
			return nil, fmt.Errorf("unknown tier %q (allowed: high_risk, administrative)", tier)
		}
		if len(actions) == 0 {
			return nil, fmt.Errorf("tier %q must not be empty", tier)
		}
		for i, action := range actions {
			name := strings.TrimSpace(action)
			if name == "" {
				return nil, fmt.Errorf("tier %q entry %d is empty", tier, i)
			}
			if prev, dup := seen[name]; dup {
				return nil, fmt.Errorf("action %q listed in both %q and %q", name, prev, tier)
			}
			seen[name] = tier
			switch tier {
			case "high_risk":
				out.HighRisk = append(out.HighRisk, name)
			case "administrative":
				out.Administrative = append(out.Administrative, name)
			}
		}
	}

	return out, nil
}
