package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/api"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/config"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/ingest"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/logger"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/parsers"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/session"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (and Kafka ingest when enabled)",
	RunE:  runServe,
}

var flagAddr string

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	if flagAddr != "" {
		cfg.Server.Addr = flagAddr
	}

	table, err := loadClassification(cfg)
	if err != nil {
		return err
	}
	parser := parsers.NewParser(table)

	sessions, err := session.NewStore(cfg.Session)
	if err != nil {
		return fmt.Errorf("init session store: %w", err)
	}
	defer sessions.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store storage.Store
	if cfg.Storage.Enabled {
		store, err = storage.NewStore(cfg.Storage)
		if err != nil {
			return fmt.Errorf("init storage: %w", err)
		}
		if store != nil {
			if err := store.Init(ctx); err != nil {
				return fmt.Errorf("init storage schema: %w", err)
			}
			defer store.Close()
		}
	}

	ingest.StartKafka(ctx, cfg, parser, sessions)

	server := api.NewServer(cfg, parser, sessions, store, Version)
	httpServer := api.Start(ctx, server)

	<-ctx.Done()
	logger.L().Infow("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	return nil
}
