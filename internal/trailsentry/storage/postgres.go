package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/risk"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres storage requires a dsn")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db}}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analysis_sessions (
			id TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			total_events INTEGER NOT NULL,
			unique_principals INTEGER NOT NULL,
			dropped_records INTEGER NOT NULL,
			status TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS detection_records (
			session_id TEXT NOT NULL,
			principal TEXT NOT NULL,
			score DOUBLE PRECISION NOT NULL,
			level TEXT NOT NULL,
			method TEXT NOT NULL,
			findings_json TEXT NOT NULL,
			rule_score DOUBLE PRECISION NOT NULL,
			ml_score DOUBLE PRECISION NOT NULL,
			ml_raw DOUBLE PRECISION NOT NULL,
			ml_reliable BOOLEAN NOT NULL,
			event_count INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
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

func (s *postgresStore) SaveSession(ctx context.Context, rec SessionRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analysis_sessions
			(id, created_at, total_events, unique_principals, dropped_records, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			total_events = EXCLUDED.total_events,
			unique_principals = EXCLUDED.unique_principals,
			dropped_records = EXCLUDED.dropped_records,
			status = EXCLUDED.status`,
		rec.ID, rec.CreatedAt.UTC(),
		rec.TotalEvents, rec.UniquePrincipals, rec.DroppedRecords, rec.Status)
	return err
}

func (s *postgresStore) MarkCompleted(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE analysis_sessions SET status = 'completed' WHERE id = $1`, sessionID)
	return err
}

func (s *postgresStore) SaveVerdicts(ctx context.Context, sessionID string, verdicts []risk.Verdict) error {
	now := time.Now().UTC()
	for _, v := range verdicts {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO detection_records
				(session_id, principal, score, level, method, findings_json,
				 rule_score, ml_score, ml_raw, ml_reliable, event_count, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (session_id, principal) DO UPDATE SET
				score = EXCLUDED.score,
				level = EXCLUDED.level,
				method = EXCLUDED.method,
				findings_json = EXCLUDED.findings_json,
				rule_score = EXCLUDED.rule_score,
				ml_score = EXCLUDED.ml_score,
				ml_raw = EXCLUDED.ml_raw,
				ml_reliable = EXCLUDED.ml_reliable,
				event_count = EXCLUDED.event_count,
				created_at = EXCLUDED.created_at`,
			sessionID, v.Principal, v.Score, string(v.Level), string(v.Method),
			encodeJSON(v.Findings), v.RuleScore, v.MLScore, v.MLRaw, v.MLReliable, v.EventCount, now)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *postgresStore) ListVerdicts(ctx context.Context, sessionID string) ([]risk.Verdict, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT principal, score, level, method, findings_json,
			rule_score, ml_score, ml_raw, ml_reliable, event_count
		FROM detection_records
		WHERE session_id = $1
		ORDER BY score DESC, principal ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanVerdicts(rows)
}
