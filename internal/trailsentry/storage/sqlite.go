package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/risk"
)

type sqliteStore struct {
	baseStore
}

// NewSQLite opens the default zero-config store.
func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:trailsentry.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analysis_sessions (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			total_events INTEGER NOT NULL,
			unique_principals INTEGER NOT NULL,
			dropped_records INTEGER NOT NULL,
			status TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS detection_records (
			session_id TEXT NOT NULL,
			principal TEXT NOT NULL,
			score REAL NOT NULL,
			level TEXT NOT NULL,
			method TEXT NOT NULL,
			findings_json TEXT NOT NULL,
			rule_score REAL NOT NULL,
			ml_score REAL NOT NULL,
			ml_raw REAL NOT NULL,
			ml_reliable INTEGER NOT NULL,
			event_count INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (session_id, principal)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_session_score
			ON detection_records(session_id, score DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteStore) SaveSession(ctx context.Context, rec SessionRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO analysis_sessions
			(id, created_at, total_events, unique_principals, dropped_records, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		rec.TotalEvents, rec.UniquePrincipals, rec.DroppedRecords, rec.Status)
	return err
}

func (s *sqliteStore) MarkCompleted(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE analysis_sessions SET status = 'completed' WHERE id = ?`, sessionID)
	return err
}

func (s *sqliteStore) SaveVerdicts(ctx context.Context, sessionID string, verdicts []risk.Verdict) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, v := range verdicts {
		_, err := s.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO detection_records
				(session_id, principal, score, level, method, findings_json,
				 rule_score, ml_score, ml_raw, ml_reliable, event_count, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sessionID, v.Principal, v.Score, string(v.Level), string(v.Method),
			encodeJSON(v.Findings), v.RuleScore, v.MLScore, v.MLRaw, v.MLReliable, v.EventCount, now)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteStore) ListVerdicts(ctx context.Context, sessionID string) ([]risk.Verdict, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT principal, score, level, method, findings_json,
			rule_score, ml_score, ml_raw, ml_reliable, event_count
		FROM detection_records
		WHERE session_id = ?
		ORDER BY score DESC, principal ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanVerdicts(rows)
}
