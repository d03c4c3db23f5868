// Package screen implements the fast screening tier: cheap lexical and
// structural scoring of every input against the pattern registry, fanned out
// per family. It decides which families are worth the deep tier's time.
package screen

import (
	"context"
	"math"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/luminasec/sentinel/pkg/families"
	"github.com/luminasec/sentinel/pkg/feature"
	"github.com/luminasec/sentinel/pkg/policy"
	"github.com/luminasec/sentinel/pkg/telemetry"
)

// Result is the fast-tier score for one family.
type Result struct {
	Family     families.Family
	Score      float64
	Matched    []string
	Forwarded  bool
	Confidence float64
}

// Config tunes the screening tier.
type Config struct {
	// Budget is the soft latency budget for one screening pass.
	Budget time.Duration `koanf:"budget"`
	// MaxParallel caps the per-family scoring goroutines.
	MaxParallel int `koanf:"max_parallel"`
}

// DefaultConfig returns the stock screening settings.
func DefaultConfig() Config {
	return Config{
		Budget:      50 * time.Millisecond,
		MaxParallel: len(families.All()),
	}
}

// Screener scores inputs against the registry. Stateless aside from the
// registry reference; safe for concurrent use.
type Screener struct {
	cfg      Config
	registry *families.Registry
}

// New creates a screener over the given registry.
func New(cfg Config, registry *families.Registry) *Screener {
	if cfg.Budget <= 0 {
		cfg.Budget = DefaultConfig().Budget
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = DefaultConfig().MaxParallel
	}
	if registry == nil {
		registry = families.Get()
	}
	return &Screener{cfg: cfg, registry: registry}
}

// Screen scores the input against every family in parallel and marks the
// families whose score crossed the screening threshold. Results come back in
// canonical family order regardless of goroutine completion order.
func (s *Screener) Screen(ctx context.Context, in feature.FeatureInput, th policy.Thresholds) ([]Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Budget)
	defer cancel()

	text := Normalize(in.Text)
	if raw := strings.Join(strings.Fields(strings.ToLower(in.Text)), " "); raw != text {
		// Digit-substitution lookalikes like paypa1 exist only before the
		// fold, so patterns see both forms.
		text = text + " " + raw
	}
	if len(in.URLs) > 0 {
		// URL-shape patterns match against the URL list too, not just text.
		text = text + " " + strings.ToLower(strings.Join(in.URLs, " "))
	}
	all := families.All()
	results := make([]Result, len(all))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxParallel)
	for i, fam := range all {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			results[i] = s.scoreFamily(fam, text, in, th)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// A blown budget is not a failure; whatever finished still counts.
		if ctx.Err() == nil {
			return nil, err
		}
	}

	for i := range results {
		if results[i].Family == "" {
			results[i] = Result{Family: all[i]}
		}
		if results[i].Forwarded {
			telemetry.ObserveScreeningHit(string(results[i].Family))
		}
	}
	return results, nil
}

// scoreFamily computes one family's screening score from pattern matches plus
// family-specific structural signals.
func (s *Screener) scoreFamily(fam families.Family, text string, in feature.FeatureInput, th policy.Thresholds) Result {
	res := Result{Family: fam}

	matched := s.registry.MatchAll(text, fam)
	var sum float64
	for _, p := range matched {
		res.Matched = append(res.Matched, p.Name)
		sum += p.Weight
	}

	sum += s.structural(fam, text, in)

	// Squash accumulated weight into (0, 1). One strong pattern lands around
	// its own weight; stacked matches saturate instead of exceeding 1.
	res.Score = squash(sum)
	res.Confidence = res.Score
	res.Forwarded = res.Score >= th.Screening
	return res
}

// structural adds non-regex signals: URL shape for phishing, amount outliers
// for transactions, obfuscation pressure for grooming and social engineering.
func (s *Screener) structural(fam families.Family, text string, in feature.FeatureInput) float64 {
	switch fam {
	case families.PhishingURL:
		var v float64
		for _, raw := range in.URLs {
			v += scoreURL(raw)
		}
		return v
	case families.TransactionAnomaly:
		if in.Amount != nil && *in.Amount >= 1000 {
			return 0.25
		}
		return 0
	case families.Grooming, families.SocialEngineering:
		// Inspect the raw text; normalization already folded the digits away.
		if obfuscationPressure(in.Text) {
			return 0.15
		}
		return 0
	default:
		return 0
	}
}

// scoreURL flags structural phishing tells in one URL.
func scoreURL(raw string) float64 {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return 0
	}
	host := strings.ToLower(u.Hostname())

	var v float64
	if isIPHost(host) {
		v += 0.35
	}
	if strings.Count(host, ".") >= 4 {
		v += 0.20
	}
	if strings.ContainsAny(host, "0123456789") && strings.Contains(host, "-") {
		v += 0.10
	}
	if hostEntropy(host) > 3.5 {
		v += 0.20
	}
	for _, brand := range []string{"paypal", "amazon", "apple", "bank", "login", "secure", "verify"} {
		if strings.Contains(host, brand) && !strings.HasSuffix(host, brand+".com") {
			v += 0.25
			break
		}
	}
	return v
}

func isIPHost(host string) bool {
	if host == "" {
		return false
	}
	for _, r := range host {
		if (r < '0' || r > '9') && r != '.' {
			return false
		}
	}
	return strings.Count(host, ".") == 3
}

// hostEntropy is the Shannon entropy of the hostname in bits per character.
// Random-looking generated domains sit well above natural-language hosts.
func hostEntropy(host string) float64 {
	if host == "" {
		return 0
	}
	freq := make(map[rune]float64)
	var n float64
	for _, r := range host {
		freq[r]++
		n++
	}
	var h float64
	for _, c := range freq {
		p := c / n
		h -= p * math.Log2(p)
	}
	return h
}

// obfuscationPressure detects leetspeak and spacing tricks used to dodge
// keyword filters. The normalized text has already folded the common
// substitutions, so here we compare against the raw shape.
func obfuscationPressure(text string) bool {
	digits := 0
	letters := 0
	for _, r := range text {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			letters++
		}
	}
	if letters == 0 {
		return false
	}
	return float64(digits)/float64(letters) > 0.3
}

// leetFold maps the common character substitutions back to letters.
var leetFold = strings.NewReplacer(
	"0", "o",
	"1", "i",
	"3", "e",
	"4", "a",
	"5", "s",
	"7", "t",
	"@", "a",
	"$", "s",
)

// Normalize lowercases, folds leetspeak, and collapses whitespace so patterns
// match obfuscated text. Exported because the deep tier and the pattern store
// signature both need the identical canonical form.
func Normalize(text string) string {
	text = strings.ToLower(text)
	text = leetFold.Replace(text)
	return strings.Join(strings.Fields(text), " ")
}

// squash maps an unbounded positive weight sum into (0, 1).
func squash(sum float64) float64 {
	if sum <= 0 {
		return 0
	}
	return 1 - math.Exp(-1.6*sum)
}
