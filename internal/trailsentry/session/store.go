// Package session caches a session's uploaded events and its latest
// detection verdicts between API calls. The engine itself never touches
// this store; it is handed an immutable snapshot per run.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/config"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/parsers"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/risk"
)

// ErrNotFound marks a missing session or a session with no stored value.
var ErrNotFound = errors.New("session not found")

type Store interface {
	PutEvents(ctx context.Context, id string, events []parsers.Event) error
	GetEvents(ctx context.Context, id string) ([]parsers.Event, error)
	AppendEvents(ctx context.Context, id string, events []parsers.Event) error
	PutVerdicts(ctx context.Context, id string, verdicts []risk.Verdict) error
	GetVerdicts(ctx context.Context, id string) ([]risk.Verdict, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// NewStore builds the configured session backend.
func NewStore(cfg config.SessionCfg) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemory(), nil
	case "redis":
		var ttl time.Duration
		if cfg.TTL != "" {
			d, err := time.ParseDuration(cfg.TTL)
			if err != nil {
				return nil, fmt.Errorf("parse session ttl %q: %w", cfg.TTL, err)
			}
			ttl = d
		}
		return NewRedis(cfg.RedisAddr, cfg.RedisDB, ttl), nil
	default:
		return nil, fmt.Errorf("unsupported session backend %q", cfg.Backend)
	}
}
