package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminasec/sentinel/pkg/families"
	"github.com/luminasec/sentinel/pkg/feature"
)

func TestPickBestHigherScoreWins(t *testing.T) {
	scores := map[families.Family]float64{
		families.PhishingURL: 0.60,
		families.Grooming:    0.80,
	}
	best, score := pickBest(scores, families.All(), 0.05)
	assert.Equal(t, families.Grooming, best)
	assert.InDelta(t, 0.80, score, 1e-9)
}

func TestPickBestPriorityBreaksTies(t *testing.T) {
	scores := map[families.Family]float64{
		families.PhishingURL: 0.70,
		families.Grooming:    0.68,
	}
	priority := []families.Family{families.Grooming, families.PhishingURL}

	best, _ := pickBest(scores, priority, 0.05)
	assert.Equal(t, families.Grooming, best,
		"within the tie margin the profile's priority family must win")

	best, _ = pickBest(scores, priority, 0.01)
	assert.Equal(t, families.PhishingURL, best,
		"outside the margin the raw score decides")
}

func TestRuleClassifierScoresCandidates(t *testing.T) {
	c := NewRuleClassifier(Config{Threshold: 0.60}, families.NewRegistry())

	res, err := c.Classify(context.Background(),
		"don't tell your parents, this is our little secret",
		[]families.Family{families.Grooming, families.PhishingURL},
		families.All())
	require.NoError(t, err)

	assert.Equal(t, families.Grooming, res.Family)
	assert.GreaterOrEqual(t, res.Confidence, 0.90)
	assert.NotEmpty(t, res.Matched)
	assert.Zero(t, res.PerFamily[families.PhishingURL])
}

func TestRuleClassifierIgnoresNonCandidates(t *testing.T) {
	c := NewRuleClassifier(Config{}, families.NewRegistry())

	res, err := c.Classify(context.Background(),
		"don't tell your parents, this is our little secret",
		[]families.Family{families.PhishingURL},
		families.All())
	require.NoError(t, err)
	assert.Empty(t, res.Family, "grooming was not forwarded, so it must not classify")
}

func TestRuleClassifierBelowThreshold(t *testing.T) {
	c := NewRuleClassifier(Config{Threshold: 0.95}, families.NewRegistry())

	res, err := c.Classify(context.Background(),
		"click here immediately",
		[]families.Family{families.PhishingURL},
		families.All())
	require.NoError(t, err)
	assert.Empty(t, res.Family)
	assert.NotEmpty(t, res.PerFamily, "scores still reported below the threshold")
}

type failingClassifier struct{ err error }

func (f failingClassifier) Classify(context.Context, string, []families.Family, []families.Family) (Result, error) {
	return Result{}, f.err
}

type stubClassifier struct{ res Result }

func (s stubClassifier) Classify(context.Context, string, []families.Family, []families.Family) (Result, error) {
	return s.res, nil
}

func TestTieredUsesPrimaryWhenHealthy(t *testing.T) {
	want := Result{Family: families.Grooming, Confidence: 0.9}
	tc := NewTiered(stubClassifier{res: want}, failingClassifier{err: errors.New("must not be called")})

	res, err := tc.Classify(context.Background(), "x", families.All(), families.All())
	require.NoError(t, err)
	assert.Equal(t, want.Family, res.Family)
}

func TestTieredDegradesToFallback(t *testing.T) {
	fallbackRes := Result{Family: families.PhishingURL, Confidence: 0.7}
	tc := NewTiered(failingClassifier{err: errors.New("embedder down")}, stubClassifier{res: fallbackRes})

	res, err := tc.Classify(context.Background(), "x", families.All(), families.All())
	assert.True(t, errors.Is(err, ErrDegraded), "fallback results must be marked degraded")
	assert.Equal(t, families.PhishingURL, res.Family)
}

func TestTieredNilPrimaryGoesStraightToFallback(t *testing.T) {
	tc := NewTiered(nil, stubClassifier{res: Result{Family: families.CrisisSignal, Confidence: 0.9}})

	res, err := tc.Classify(context.Background(), "x", families.All(), families.All())
	assert.True(t, errors.Is(err, ErrDegraded))
	assert.Equal(t, families.CrisisSignal, res.Family)
}

func TestTieredBothFailing(t *testing.T) {
	tc := NewTiered(failingClassifier{err: errors.New("down")}, failingClassifier{err: errors.New("also down")})

	_, err := tc.Classify(context.Background(), "x", families.All(), families.All())
	assert.True(t, errors.Is(err, feature.ErrTierUnavailable))
}
