// Package ingest feeds raw audit records from external transports into
// session stores. Detection still runs on a closed batch: ingest only
// accumulates events; /detect snapshots whatever has arrived.
package ingest

import (
	"context"

	"github.com/segmentio/kafka-go"

	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/config"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/logger"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/parsers"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/session"
)

// StartKafka consumes one CloudTrail record per message and appends it to
// a session. The target session comes from the message's session_id header,
// falling back to the configured default. Malformed records are dropped.
func StartKafka(ctx context.Context, cfg *config.Config, parser *parsers.Parser, sessions session.Store) {
	kcfg := cfg.Ingest.Kafka
	if !kcfg.Enabled {
		logger.L().Debugw("kafka ingest disabled")
		return
	}
	logger.L().Infow("kafka ingest enabled",
		"brokers", kcfg.Brokers,
		"topic", kcfg.Topic,
		"group_id", kcfg.GroupID)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  kcfg.Brokers,
		Topic:    kcfg.Topic,
		GroupID:  kcfg.GroupID,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	go func() {
		defer reader.Close()
		for {
			m, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.L().Warnw("kafka read error", "err", err.Error())
				continue
			}
			evt, err := parser.ParseRecord(m.Value)
			if err != nil {
				logger.L().Debugw("kafka record dropped", "err", err.Error())
				continue
			}
			sessionID := sessionFor(m, kcfg.DefaultSession)
			if sessionID == "" {
				logger.L().Debugw("kafka record without session, dropped")
				continue
			}
			if err := sessions.AppendEvents(ctx, sessionID, []parsers.Event{*evt}); err != nil {
				logger.L().Warnw("kafka append failed", "session_id", sessionID, "err", err.Error())
			}
		}
	}()
}

func sessionFor(m kafka.Message, fallback string) string {
	for _, h := range m.Headers {
		if h.Key == "session_id" && len(h.Value) > 0 {
			return string(h.Value)
		}
	}
	return fallback
}
