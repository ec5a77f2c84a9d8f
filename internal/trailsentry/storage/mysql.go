package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/risk"
)

type mysqlStore struct {
	baseStore
}

func NewMySQL(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("mysql storage requires a dsn")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	return &mysqlStore{baseStore{db: db}}, nil
}

func (s *mysqlStore) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analysis_sessions (
			id VARCHAR(64) PRIMARY KEY,
			created_at DATETIME NOT NULL,
			total_events INT NOT NULL,
			unique_principals INT NOT NULL,
			dropped_records INT NOT NULL,
			status VARCHAR(16) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS detection_records (
			session_id VARCHAR(64) NOT NULL,
			principal VARCHAR(512) NOT NULL,
			score DOUBLE NOT NULL,
			level VARCHAR(16) NOT NULL,
			method VARCHAR(8) NOT NULL,
			findings_json TEXT NOT NULL,
			rule_score DOUBLE NOT NULL,
			ml_score DOUBLE NOT NULL,
			ml_raw DOUBLE NOT NULL,
			ml_reliable BOOLEAN NOT NULL,
			event_count INT NOT NULL,
			created_at DATETIME NOT NULL,
			PRIMARY KEY (session_id, principal(191))
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *mysqlStore) SaveSession(ctx context.Context, rec SessionRecord) error {
	_, err := s.db.ExecContext(ctx,
		`REPLACE INTO analysis_sessions
			(id, created_at, total_events, unique_principals, dropped_records, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		rec.TotalEvents, rec.UniquePrincipals, rec.DroppedRecords, rec.Status)
	return err
}

func (s *mysqlStore) MarkCompleted(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE analysis_sessions SET status = 'completed' WHERE id = ?`, sessionID)
	return err
}

func (s *mysqlStore) SaveVerdicts(ctx context.Context, sessionID string, verdicts []risk.Verdict) error {
	now := time.Now().UTC().Format("2006-01-02 15:04:05")
	for _, v := range verdicts {
		_, err := s.db.ExecContext(ctx,
			`REPLACE INTO detection_records
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

func (s *mysqlStore) ListVerdicts(ctx context.Context, sessionID string) ([]risk.Verdict, error) {
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
