// Package classify implements the deep classification tier: semantic
// similarity against per-family exemplars over an embedded vector store, with
// a rule-based fallback when no embedding source is reachable.
package classify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/luminasec/sentinel/pkg/families"
	"github.com/luminasec/sentinel/pkg/feature"
	"github.com/luminasec/sentinel/pkg/telemetry"
)

// Result is the deep tier's judgment for one input.
type Result struct {
	Family     families.Family
	Confidence float64
	Matched    string
	PerFamily  map[families.Family]float64
	LatencyMs  float64
}

// Classifier is the deep-tier contract. candidates lists the families the
// fast tier forwarded; priority breaks ties when scores are close.
type Classifier interface {
	Classify(ctx context.Context, text string, candidates, priority []families.Family) (Result, error)
}

// Config tunes the deep tier.
type Config struct {
	// Threshold is the similarity floor below which the deep tier reports no
	// confident classification.
	Threshold float64 `koanf:"threshold"`
	// TieMargin is how close two family scores must be before the priority
	// list decides between them.
	TieMargin float64 `koanf:"tie_margin"`
	// Timeout bounds one classification call.
	Timeout time.Duration `koanf:"timeout"`
	// EmbedderURL is the base URL of the embedding service.
	EmbedderURL string `koanf:"embedder_url"`
	// EmbedderModel is the embedding model name.
	EmbedderModel string `koanf:"embedder_model"`
}

// DefaultConfig returns the stock deep-tier settings.
func DefaultConfig() Config {
	return Config{
		Threshold:     0.60,
		TieMargin:     0.05,
		Timeout:       2 * time.Second,
		EmbedderURL:   "http://localhost:11434",
		EmbedderModel: "embeddinggemma",
	}
}

// pickBest selects the winning family from per-family scores. When the top
// two scores are within margin, the family appearing earlier in priority
// wins, so profile-critical families dominate ambiguous inputs.
func pickBest(scores map[families.Family]float64, priority []families.Family, margin float64) (families.Family, float64) {
	var best families.Family
	var bestScore float64
	rank := make(map[families.Family]int, len(priority))
	for i, f := range priority {
		rank[f] = i
	}
	// Missing from priority sorts last.
	rankOf := func(f families.Family) int {
		if r, ok := rank[f]; ok {
			return r
		}
		return len(priority)
	}

	for _, f := range families.All() {
		score, ok := scores[f]
		if !ok {
			continue
		}
		switch {
		case best == "":
			best, bestScore = f, score
		case score > bestScore+margin:
			best, bestScore = f, score
		case score >= bestScore-margin && rankOf(f) < rankOf(best):
			best = f
			if score > bestScore {
				bestScore = score
			}
		}
	}
	if best == "" {
		return "", 0
	}
	// Report the winner's own score, not the comparison high-water mark.
	return best, scores[best]
}

// Classify runs the primary classifier and falls back to rules when the
// primary is unavailable. A fallback result carries ErrDegraded so the
// aggregator can apply the degraded-confidence penalty.
type Tiered struct {
	primary  Classifier
	fallback Classifier
}

// ErrDegraded marks a result produced by the fallback path. The result is
// still usable; callers apply the degraded penalty and flag the verdict.
var ErrDegraded = errors.New("deep tier degraded to rule fallback")

// NewTiered wires a primary classifier with a rule fallback. primary may be
// nil when no embedding source exists at startup.
func NewTiered(primary Classifier, fallback Classifier) *Tiered {
	return &Tiered{primary: primary, fallback: fallback}
}

// Classify tries the primary classifier and degrades to the fallback on any
// failure. Only a fallback failure surfaces as a hard error.
func (t *Tiered) Classify(ctx context.Context, text string, candidates, priority []families.Family) (Result, error) {
	if t.primary != nil {
		res, err := t.primary.Classify(ctx, text, candidates, priority)
		if err == nil {
			telemetry.ObserveDeepClassification("ok")
			return res, nil
		}
		if !errors.Is(err, context.Canceled) {
			telemetry.ObserveDeepClassification("degraded")
		}
	}

	res, err := t.fallback.Classify(ctx, text, candidates, priority)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", feature.ErrTierUnavailable, err)
	}
	return res, ErrDegraded
}
