// Package storage persists analysis sessions and detection records.
// The engine holds no durable state between runs; this is a write-through
// collaborator keyed by (session id, principal).
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/config"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/risk"
)

// SessionRecord is the session-level row stored on upload.
type SessionRecord struct {
	ID               string
	CreatedAt        time.Time
	TotalEvents      int
	UniquePrincipals int
	DroppedRecords   int
	Status           string // pending | completed
}

type Store interface {
	Init(ctx context.Context) error
	Close() error
	SaveSession(ctx context.Context, rec SessionRecord) error
	MarkCompleted(ctx context.Context, sessionID string) error
	SaveVerdicts(ctx context.Context, sessionID string, verdicts []risk.Verdict) error
	ListVerdicts(ctx context.Context, sessionID string) ([]risk.Verdict, error)
}

// NewStore builds the configured driver, or nil when storage is disabled.
func NewStore(cfg config.StorageCfg) (Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	case "mysql":
		return NewMySQL(cfg.DSN)
	default:
		return nil, errors.New("unsupported storage driver")
	}
}

type baseStore struct {
	db *sql.DB
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func encodeJSON(value any) string {
	data, _ := json.Marshal(value)
	return string(data)
}

// scanVerdicts maps detection_records rows back onto risk.Verdict values.
func scanVerdicts(rows *sql.Rows) ([]risk.Verdict, error) {
	var out []risk.Verdict
	for rows.Next() {
		var v risk.Verdict
		var level, method, findingsJSON string
		if err := rows.Scan(&v.Principal, &v.Score, &level, &method,
			&findingsJSON, &v.RuleScore, &v.MLScore, &v.MLRaw, &v.MLReliable, &v.EventCount); err != nil {
			return nil, err
		}
		v.Level = risk.Level(level)
		v.Method = risk.Method(method)
		if findingsJSON != "" {
			if err := json.Unmarshal([]byte(findingsJSON), &v.Findings); err != nil {
				return nil, err
			}
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
