package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/classify"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/config"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/engine"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/logger"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/parsers"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/risk"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Score a CloudTrail log file → NDJSON verdicts",
	RunE:  runDetect,
}

var (
	flagInput  string
	flagOutput string
	flagRunLog string
	flagML     bool
	flagTop    int
)

func init() {
	detectCmd.Flags().StringVar(&flagInput, "input", "", "input CloudTrail JSON file (default stdin)")
	detectCmd.Flags().StringVar(&flagOutput, "output", "", "output file (default stdout)")
	detectCmd.Flags().StringVar(&flagRunLog, "runlog", "", "file to append a one-line run summary to")
	detectCmd.Flags().BoolVar(&flagML, "ml", true, "enable the unsupervised outlier layer")
	detectCmd.Flags().IntVar(&flagTop, "top", 0, "emit only the N highest-risk principals (0 = all)")
}

type runSummary struct {
	Timestamp      string `json:"timestamp"`
	Input          string `json:"input"`
	Output         string `json:"output"`
	ParsedRecords  int    `json:"parsed_records"`
	DroppedRecords int    `json:"dropped_records"`
	Principals     int    `json:"principals"`
	Anomalous      int    `json:"anomalous"`
	CriticalCount  int    `json:"critical_count"`
	HighCount      int    `json:"high_count"`
	MediumCount    int    `json:"medium_count"`
	LowCount       int    `json:"low_count"`
}

func appendRunLog(path string, summary runSummary) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	return enc.Encode(summary)
}

func runDetect(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	// Input reader
	var in io.Reader
	if flagInput == "" {
		in = os.Stdin
	} else {
		f, err := os.Open(flagInput)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	// Output writer
	var out io.Writer
	if flagOutput == "" {
		out = os.Stdout
	} else {
		f, err := os.Create(flagOutput)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	table, err := loadClassification(cfg)
	if err != nil {
		return err
	}
	parser := parsers.NewParser(table)

	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	opts := engine.OptionsFromConfig(cfg)
	if cmd.Flags().Changed("ml") {
		opts.MLEnabled = flagML
	}

	report, err := engine.Run(context.Background(), parser, data, opts)
	if err != nil {
		return err
	}

	verdicts := report.Verdicts
	if flagTop > 0 && flagTop < len(verdicts) {
		verdicts = verdicts[:flagTop]
	}
	enc := json.NewEncoder(out)
	for i := range verdicts {
		if err := enc.Encode(&verdicts[i]); err != nil {
			return fmt.Errorf("write verdict: %w", err)
		}
	}

	if flagRunLog != "" {
		summary := runSummary{
			Timestamp:      time.Now().UTC().Format(time.RFC3339Nano),
			Input:          flagInput,
			Output:         flagOutput,
			ParsedRecords:  report.ParsedRecords,
			DroppedRecords: report.DroppedRecords,
			Principals:     report.Principals,
			Anomalous:      report.Anomalous,
			CriticalCount:  report.LevelCounts[risk.LevelCritical],
			HighCount:      report.LevelCounts[risk.LevelHigh],
			MediumCount:    report.LevelCounts[risk.LevelMedium],
			LowCount:       report.LevelCounts[risk.LevelLow],
		}
		if err := appendRunLog(flagRunLog, summary); err != nil {
			logger.L().Errorw("failed to write run log",
				"path", flagRunLog,
				"err", err.Error())
		}
	}

	logger.L().Infow("detection complete",
		"parsed_records", report.ParsedRecords,
		"dropped_records", report.DroppedRecords,
		"principals", report.Principals,
		"anomalous", report.Anomalous,
		"critical", report.LevelCounts[risk.LevelCritical],
		"high", report.LevelCounts[risk.LevelHigh],
		"medium", report.LevelCounts[risk.LevelMedium],
		"low", report.LevelCounts[risk.LevelLow],
		"ml_enabled", opts.MLEnabled)
	return nil
}

// loadClassification builds the action tier table, applying the configured
// override file when one is set.
func loadClassification(cfg *config.Config) (*classify.Table, error) {
	if cfg.Classification.ActionsFile == "" {
		return classify.NewTable(), nil
	}
	table, err := classify.LoadTable(cfg.Classification.ActionsFile)
	if err != nil {
		return nil, fmt.Errorf("load actions file: %w", err)
	}
	return table, nil
}
