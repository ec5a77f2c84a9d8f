// Package anomaly is the unsupervised detection layer: a seeded isolation
// forest fitted per run over the session's full population of feature
// vectors. It is retrained on every run; nothing is reused across sessions.
package anomaly

import (
	"math/rand"

	"github.com/vaibhaw-/TrailSentry/internal/trailsentry/features"
)

// Options configures one fit+score pass.
type Options struct {
	Trees      int
	SampleSize int
	Seed       int64
	// ScoreOffset is the raw-score boundary below which the contribution
	// is zero; 0.5 is the classic in-distribution region of an isolation
	// forest.
	ScoreOffset float64
	// MinPopulation is the smallest population for which signals are
	// statistically trustworthy. Below it the scorer still runs, but every
	// signal is flagged unreliable and the aggregator must not honor it.
	MinPopulation int
}

// DefaultOptions mirror the production defaults.
func DefaultOptions() Options {
	return Options{
		Trees:         100,
		SampleSize:    256,
		Seed:          42,
		ScoreOffset:   0.5,
		MinPopulation: 20,
	}
}

// Signal is one principal's ML verdict.
type Signal struct {
	Principal string `json:"principal"`
	// Raw is the isolation-forest anomaly score in (0,1), higher = more
	// anomalous.
	Raw float64 `json:"raw"`
	// Contribution is the monotone 0–100 mapping of Raw.
	Contribution float64 `json:"contribution"`
	// Reliable marks whether the population was large enough for the
	// score to be trusted.
	Reliable bool `json:"reliable"`
}

// Score fits one model over all vectors and scores each of them. The input
// order defines the matrix order, so callers wanting deterministic output
// must pass vectors in a deterministic order. A population below two cannot
// be fitted at all and yields zero, unreliable signals.
func Score(vectors []features.Vector, opts Options) []Signal {
	n := len(vectors)
	if n == 0 {
		return nil
	}

	signals := make([]Signal, n)
	reliable := n >= opts.MinPopulation

	if n < 2 {
		for i, v := range vectors {
			signals[i] = Signal{Principal: v.Principal, Reliable: false}
		}
		return signals
	}

	X := make([][]float64, n)
	for i := range vectors {
		X[i] = vectors[i].Values()
	}
	X = standardize(X)

	rng := rand.New(rand.NewSource(opts.Seed))
	model := fitForest(X, opts.Trees, opts.SampleSize, rng)

	for i := range vectors {
		raw := model.score(X[i])
		signals[i] = Signal{
			Principal:    vectors[i].Principal,
			Raw:          raw,
			Contribution: contribution(raw, opts.ScoreOffset),
			Reliable:     reliable,
		}
	}
	return signals
}

// contribution maps the raw score monotonically onto [0,100]: zero at or
// below the offset, 100 at a raw score of 1.
func contribution(raw, offset float64) float64 {
	if raw <= offset {
		return 0
	}
	c := (raw - offset) / (1 - offset) * 100
	if c > 100 {
		return 100
	}
	return c
}
