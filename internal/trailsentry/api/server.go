// Package api is the thin HTTP surface over the detection engine:
// upload a CloudTrail document, run detection on the session, read the
// top-N risk summary. All detection semantics live in the engine.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/config"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/engine"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/logger"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/parsers"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/risk"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/rules"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/session"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/storage"
)

type Server struct {
	cfg      *config.Config
	parser   *parsers.Parser
	sessions session.Store
	store    storage.Store // nil when persistence is disabled
	version  string
}

func NewServer(cfg *config.Config, parser *parsers.Parser, sessions session.Store, store storage.Store, version string) *Server {
	return &Server{cfg: cfg, parser: parser, sessions: sessions, store: store, version: version}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/upload-log", s.handleUpload)
	mux.HandleFunc("/detect", s.handleDetect)
	mux.HandleFunc("/risk-summary", s.handleSummary)
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func Start(ctx context.Context, s *Server) *http.Server {
	httpServer := &http.Server{Addr: s.cfg.Server.Addr, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		logger.L().Infow("api listening", "addr", s.cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.L().Errorw("api server error", "err", err.Error())
		}
	}()
	return httpServer
}

type uploadResponse struct {
	SessionID        string `json:"session_id"`
	TotalEvents      int    `json:"total_events"`
	UniquePrincipals int    `json:"unique_principals"`
	DroppedRecords   int    `json:"dropped_records"`
	Message          string `json:"message"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	body, err := readUploadBody(r, s.cfg.Server.MaxUploadBytes)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httpError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		httpError(w, http.StatusBadRequest, "read upload: "+err.Error())
		return
	}

	parsed, err := s.parser.Parse(body)
	if err != nil {
		httpError(w, http.StatusUnprocessableEntity, "parse log: "+err.Error())
		return
	}
	if parsed.Parsed == 0 {
		httpError(w, http.StatusBadRequest, "no parseable events in upload")
		return
	}

	principals := make(map[string]struct{})
	for _, evt := range parsed.Events {
		principals[evt.Principal] = struct{}{}
	}

	sessionID := uuid.NewString()
	if err := s.sessions.PutEvents(r.Context(), sessionID, parsed.Events); err != nil {
		httpError(w, http.StatusInternalServerError, "store session: "+err.Error())
		return
	}
	if s.store != nil {
		rec := storage.SessionRecord{
			ID:               sessionID,
			CreatedAt:        time.Now().UTC(),
			TotalEvents:      parsed.Parsed,
			UniquePrincipals: len(principals),
			DroppedRecords:   parsed.Dropped,
			Status:           "pending",
		}
		if err := s.store.SaveSession(r.Context(), rec); err != nil {
			logger.L().Warnw("persist session failed", "session_id", sessionID, "err", err.Error())
		}
	}

	logger.L().Infow("session uploaded",
		"session_id", sessionID,
		"events", parsed.Parsed,
		"dropped", parsed.Dropped,
		"principals", len(principals))
	writeJSON(w, http.StatusOK, uploadResponse{
		SessionID:        sessionID,
		TotalEvents:      parsed.Parsed,
		UniquePrincipals: len(principals),
		DroppedRecords:   parsed.Dropped,
		Message:          "upload complete; run /detect with this session_id",
	})
}

// readUploadBody accepts either a multipart "file" field or a raw JSON body.
func readUploadBody(r *http.Request, limit int64) ([]byte, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, limit)
	if mt := r.Header.Get("Content-Type"); len(mt) >= 19 && mt[:19] == "multipart/form-data" {
		if err := r.ParseMultipartForm(limit); err != nil {
			return nil, err
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return io.ReadAll(file)
	}
	return io.ReadAll(r.Body)
}

type detectRequest struct {
	SessionID string `json:"session_id"`
	MLEnabled *bool  `json:"ml_enabled,omitempty"`
}

type detectResponse struct {
	SessionID   string             `json:"session_id"`
	Principals  int                `json:"principals"`
	Anomalous   int                `json:"anomalous"`
	LevelCounts map[risk.Level]int `json:"level_counts"`
	Results     []risk.Verdict     `json:"results"`
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	var req detectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "decode request: "+err.Error())
		return
	}
	if req.SessionID == "" {
		httpError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	events, err := s.sessions.GetEvents(r.Context(), req.SessionID)
	if errors.Is(err, session.ErrNotFound) {
		httpError(w, http.StatusNotFound, "unknown session_id; call /upload-log first")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "load session: "+err.Error())
		return
	}

	opts := engine.OptionsFromConfig(s.cfg)
	if req.MLEnabled != nil {
		opts.MLEnabled = *req.MLEnabled
	}
	report, err := engine.Detect(r.Context(), events, opts)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "detect: "+err.Error())
		return
	}

	if err := s.sessions.PutVerdicts(r.Context(), req.SessionID, report.Verdicts); err != nil {
		httpError(w, http.StatusInternalServerError, "store verdicts: "+err.Error())
		return
	}
	if s.store != nil {
		if err := s.store.SaveVerdicts(r.Context(), req.SessionID, report.Verdicts); err != nil {
			logger.L().Warnw("persist verdicts failed", "session_id", req.SessionID, "err", err.Error())
		}
		if err := s.store.MarkCompleted(r.Context(), req.SessionID); err != nil {
			logger.L().Warnw("mark session completed failed", "session_id", req.SessionID, "err", err.Error())
		}
	}

	logger.L().Infow("detection run",
		"session_id", req.SessionID,
		"principals", report.Principals,
		"anomalous", report.Anomalous,
		"ml_enabled", opts.MLEnabled)
	writeJSON(w, http.StatusOK, detectResponse{
		SessionID:   req.SessionID,
		Principals:  report.Principals,
		Anomalous:   report.Anomalous,
		LevelCounts: report.LevelCounts,
		Results:     report.Verdicts,
	})
}

type summaryItem struct {
	Rank      int      `json:"rank"`
	Principal string   `json:"principal"`
	Score     float64  `json:"score"`
	Level     string   `json:"level"`
	Method    string   `json:"method"`
	TopRules  []string `json:"top_rules"`
}

type summaryResponse struct {
	SessionID     string        `json:"session_id"`
	TopN          int           `json:"top_n"`
	Summary       []summaryItem `json:"summary"`
	CriticalCount int           `json:"critical_count"`
	HighCount     int           `json:"high_count"`
	MediumCount   int           `json:"medium_count"`
	LowCount      int           `json:"low_count"`
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		httpError(w, http.StatusBadRequest, "session_id is required")
		return
	}
	topN := 10
	if raw := r.URL.Query().Get("top_n"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httpError(w, http.StatusBadRequest, "top_n must be a positive integer")
			return
		}
		topN = n
	}
	if limit := s.cfg.Server.TopNLimit; limit > 0 && topN > limit {
		topN = limit
	}

	verdicts, err := s.sessions.GetVerdicts(r.Context(), sessionID)
	if errors.Is(err, session.ErrNotFound) {
		httpError(w, http.StatusNotFound, "no detection results for session; call /detect first")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "load verdicts: "+err.Error())
		return
	}

	resp := summaryResponse{SessionID: sessionID}
	for _, v := range verdicts {
		switch v.Level {
		case risk.LevelCritical:
			resp.CriticalCount++
		case risk.LevelHigh:
			resp.HighCount++
		case risk.LevelMedium:
			resp.MediumCount++
		default:
			resp.LowCount++
		}
	}
	// verdicts are stored in presentation order already
	for i, v := range verdicts {
		if i >= topN {
			break
		}
		resp.Summary = append(resp.Summary, summaryItem{
			Rank:      i + 1,
			Principal: v.Principal,
			Score:     v.Score,
			Level:     string(v.Level),
			Method:    string(v.Method),
			TopRules:  topRuleIDs(v.Findings, 3),
		})
	}
	resp.TopN = len(resp.Summary)
	writeJSON(w, http.StatusOK, resp)
}

func topRuleIDs(findings []rules.Finding, n int) []string {
	ids := make([]string, 0, n)
	for _, f := range findings {
		if len(ids) == n {
			break
		}
		ids = append(ids, f.RuleID)
	}
	return ids
}

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Version: s.version,
		Time:    time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func httpError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
