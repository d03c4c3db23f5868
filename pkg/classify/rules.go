package classify

import (
	"context"
	"time"

	"github.com/luminasec/sentinel/pkg/families"
	"github.com/luminasec/sentinel/pkg/screen"
)

// RuleClassifier is the embedding-free fallback: it rescores candidates with
// the full pattern registry, counting every match instead of the fast tier's
// saturating sum. Always available, never errors.
type RuleClassifier struct {
	cfg      Config
	registry *families.Registry
}

// NewRuleClassifier creates the fallback over the given registry.
func NewRuleClassifier(cfg Config, registry *families.Registry) *RuleClassifier {
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultConfig().Threshold
	}
	if cfg.TieMargin == 0 {
		cfg.TieMargin = DefaultConfig().TieMargin
	}
	if registry == nil {
		registry = families.Get()
	}
	return &RuleClassifier{cfg: cfg, registry: registry}
}

// Classify scores each candidate family by its strongest pattern match plus a
// small bonus per corroborating match.
func (c *RuleClassifier) Classify(ctx context.Context, text string, candidates, priority []families.Family) (Result, error) {
	start := time.Now()
	normalized := screen.Normalize(text)

	res := Result{PerFamily: make(map[families.Family]float64, len(candidates))}
	matchedBy := make(map[families.Family]string, len(candidates))
	for _, fam := range candidates {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}

		var top float64
		var topName string
		var extras int
		for _, p := range c.registry.MatchAll(normalized, fam) {
			if p.Weight > top {
				top = p.Weight
				topName = p.Name
			}
			extras++
		}
		if top == 0 {
			continue
		}
		score := top + 0.03*float64(extras-1)
		if score > 0.99 {
			score = 0.99
		}
		res.PerFamily[fam] = score
		matchedBy[fam] = topName
	}

	best, score := pickBest(res.PerFamily, priority, c.cfg.TieMargin)
	if best != "" && score >= c.cfg.Threshold {
		res.Family = best
		res.Confidence = score
		res.Matched = matchedBy[best]
	}
	res.LatencyMs = float64(time.Since(start).Microseconds()) / 1000
	return res, nil
}
