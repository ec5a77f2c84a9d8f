// Package engine runs the detection pipeline over one session's closed
// event set: group by principal, extract features and evaluate rules in
// parallel, fit the anomaly model over the full population, then aggregate
// into per-principal verdicts. Each run owns an immutable snapshot of its
// inputs and holds no state between runs.
package engine

import (
	"context"
	"sort"
	"sync"

	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/anomaly"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/config"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/features"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/logger"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/parsers"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/risk"
	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/rules"
)

// Options configures one detection run.
type Options struct {
	MLEnabled bool
	Window    features.Window
	Anomaly   anomaly.Options
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		MLEnabled: true,
		Window:    features.DefaultWindow,
		Anomaly:   anomaly.DefaultOptions(),
	}
}

// OptionsFromConfig maps the detection config section onto engine options.
func OptionsFromConfig(cfg *config.Config) Options {
	ml := cfg.Detection.ML
	return Options{
		MLEnabled: ml.Enabled,
		Window:    features.Window{Start: cfg.Detection.OffHoursStart, End: cfg.Detection.OffHoursEnd},
		Anomaly: anomaly.Options{
			Trees:         ml.Trees,
			SampleSize:    ml.SampleSize,
			Seed:          ml.Seed,
			ScoreOffset:   ml.ScoreOffset,
			MinPopulation: ml.MinPopulation,
		},
	}
}

// Report is the session-level output of one detection run. Verdicts are
// ordered by score descending, ties broken by principal ascending.
type Report struct {
	Verdicts       []risk.Verdict      `json:"verdicts"`
	Principals     int                 `json:"principals"`
	Anomalous      int                 `json:"anomalous"`
	ParsedRecords  int                 `json:"parsed_records"`
	DroppedRecords int                 `json:"dropped_records"`
	LevelCounts    map[risk.Level]int  `json:"level_counts"`
	Vectors        []features.Vector   `json:"-"`
}

// Detect scores every principal with a non-empty event history. An empty
// event set completes with an empty report, not an error. Events may arrive
// in any order; Detect sorts them chronologically, which the
// consecutive-failure feature depends on.
func Detect(ctx context.Context, events []parsers.Event, opts Options) (*Report, error) {
	report := &Report{LevelCounts: levelCounts()}

	// streaming ingest appends events in arrival order, so the parser's
	// chronological sort cannot be assumed here
	ordered := append([]parsers.Event(nil), events...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	grouped := features.GroupByPrincipal(ordered)
	if len(grouped) == 0 {
		return report, nil
	}

	// fixed principal order keeps the population matrix, and therefore the
	// fitted model, deterministic for a given event set and seed
	principals := make([]string, 0, len(grouped))
	for p := range grouped {
		principals = append(principals, p)
	}
	sort.Strings(principals)

	// feature extraction and rule evaluation are independent per principal:
	// read-only event data, one writer per index
	vectors := make([]features.Vector, len(principals))
	findings := make([][]rules.Finding, len(principals))
	var wg sync.WaitGroup
	for i, principal := range principals {
		wg.Add(1)
		go func(i int, principal string) {
			defer wg.Done()
			vectors[i] = features.Extract(principal, grouped[principal], opts.Window)
			findings[i] = rules.Evaluate(&vectors[i])
		}(i, principal)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// the fit is a single blocking step over the full population; no signal
	// exists until every vector does
	var signals []anomaly.Signal
	if opts.MLEnabled {
		signals = anomaly.Score(vectors, opts.Anomaly)
		if len(vectors) < opts.Anomaly.MinPopulation {
			logger.L().Debugw("population below ML minimum, signals flagged unreliable",
				"population", len(vectors),
				"min_population", opts.Anomaly.MinPopulation)
		}
	}

	report.Principals = len(principals)
	report.Vectors = vectors
	report.Verdicts = make([]risk.Verdict, 0, len(principals))
	for i := range principals {
		var signal *anomaly.Signal
		if signals != nil {
			signal = &signals[i]
		}
		verdict := risk.Aggregate(&vectors[i], findings[i], signal, opts.MLEnabled)
		if verdict.Method != risk.MethodNone {
			report.Anomalous++
		}
		report.LevelCounts[verdict.Level]++
		report.Verdicts = append(report.Verdicts, verdict)
	}
	risk.Sort(report.Verdicts)
	return report, nil
}

// Run parses a raw CloudTrail document and scores it in one step.
func Run(ctx context.Context, parser *parsers.Parser, data []byte, opts Options) (*Report, error) {
	parsed, err := parser.Parse(data)
	if err != nil {
		return nil, err
	}
	report, err := Detect(ctx, parsed.Events, opts)
	if err != nil {
		return nil, err
	}
	report.ParsedRecords = parsed.Parsed
	report.DroppedRecords = parsed.Dropped
	return report, nil
}

func levelCounts() map[risk.Level]int {
	return map[risk.Level]int{
		risk.LevelCritical: 0,
		risk.LevelHigh:     0,
		risk.LevelMedium:   0,
		risk.LevelLow:      0,
	}
}
