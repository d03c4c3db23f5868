package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminasec/sentinel/pkg/classify"
	"github.com/luminasec/sentinel/pkg/decision"
	"github.com/luminasec/sentinel/pkg/families"
	"github.com/luminasec/sentinel/pkg/feature"
	"github.com/luminasec/sentinel/pkg/monitor"
	"github.com/luminasec/sentinel/pkg/policy"
	"github.com/luminasec/sentinel/pkg/screen"
	"github.com/luminasec/sentinel/pkg/store"
)

type stubTier struct {
	tier     monitor.OperatingTier
	degraded bool
}

func (s stubTier) Tier() monitor.OperatingTier { return s.tier }
func (s stubTier) Degraded() bool              { return s.degraded }

func newTestEngine(t *testing.T, tier TierSource, classifier classify.Classifier) *Engine {
	t.Helper()
	registry := families.NewRegistry()
	if classifier == nil {
		classifier = classify.NewRuleClassifier(classify.Config{}, registry)
	}
	eng, err := New(Options{
		Policy:     policy.New(policy.Config{}),
		Screener:   screen.New(screen.Config{}, registry),
		Classifier: classifier,
		Monitor:    tier,
		Store:      store.New(store.Config{}),
		Ladder:     decision.DefaultLadder(),
	})
	require.NoError(t, err)
	return eng
}

func input(text string, tag feature.ContextTag) feature.FeatureInput {
	return feature.FeatureInput{Text: text, Timestamp: time.Now(), Context: tag}
}

func TestGroomingAttemptAgainstChild(t *testing.T) {
	eng := newTestEngine(t, stubTier{tier: monitor.TierFull}, nil)

	v, err := eng.Detect(context.Background(),
		input("You're so mature for your age. Let's chat privately, just the two of us.", feature.ContextConversation),
		feature.UserProfile{Age: 11})
	require.NoError(t, err)

	assert.True(t, v.ThreatDetected)
	assert.Equal(t, families.Grooming, v.PrimaryCategory)
	assert.GreaterOrEqual(t, v.Severity, feature.SeverityHigh)
	assert.Equal(t, feature.ActionBlock, v.RecommendedAction.Kind)
	assert.True(t, v.RecommendedAction.NotifyGuardian)
	assert.NotEmpty(t, v.Signature)
	assert.False(t, v.Degraded)
}

func TestPaymentScamAgainstSenior(t *testing.T) {
	eng := newTestEngine(t, stubTier{tier: monitor.TierFull}, nil)

	v, err := eng.Detect(context.Background(),
		input("This is the IRS final notice. Pay immediately or you will be arrested.", feature.ContextTransaction),
		feature.UserProfile{Age: 72})
	require.NoError(t, err)

	assert.True(t, v.ThreatDetected)
	assert.Equal(t, families.TransactionAnomaly, v.PrimaryCategory)
	assert.GreaterOrEqual(t, v.Severity, feature.SeverityHigh)
}

func TestBenignMessagePasses(t *testing.T) {
	eng := newTestEngine(t, stubTier{tier: monitor.TierFull}, nil)

	v, err := eng.Detect(context.Background(),
		input("Lunch at noon tomorrow? The forecast says sun.", feature.ContextConversation),
		feature.UserProfile{Age: 30})
	require.NoError(t, err)

	assert.False(t, v.ThreatDetected)
	assert.Equal(t, feature.SeveritySafe, v.Severity)
	assert.Equal(t, feature.ActionAllow, v.RecommendedAction.Kind)
	assert.Empty(t, v.Signature)
}

func TestCrisisEscalatesEvenDegradedAndConserving(t *testing.T) {
	registry := families.NewRegistry()
	// Nil primary forces the rule fallback, which marks results degraded.
	classifier := classify.NewTiered(nil, classify.NewRuleClassifier(classify.Config{}, registry))
	eng := newTestEngine(t, stubTier{tier: monitor.TierConserving, degraded: true}, classifier)

	v, err := eng.Detect(context.Background(),
		input("I don't want to be here anymore. This is goodbye.", feature.ContextConversation),
		feature.UserProfile{Age: 15})
	require.NoError(t, err)

	assert.True(t, v.ThreatDetected)
	assert.Equal(t, feature.SeverityEmergency, v.Severity)
	assert.Equal(t, families.CrisisSignal, v.PrimaryCategory)
	assert.Equal(t, feature.ActionEscalate, v.RecommendedAction.Kind)
	assert.True(t, v.RecommendedAction.NotifyGuardian)
	assert.True(t, v.Degraded)
	assert.GreaterOrEqual(t, v.Confidence, decision.EmergencyFloor,
		"the emergency path must not apply the degraded penalty")
}

func TestFalsePositiveFeedbackSoftensRepeat(t *testing.T) {
	eng := newTestEngine(t, stubTier{tier: monitor.TierFull}, nil)
	in := input("Please verify your account immediately.", feature.ContextConversation)
	profile := feature.UserProfile{Age: 40}

	first, err := eng.Detect(context.Background(), in, profile)
	require.NoError(t, err)
	require.True(t, first.ThreatDetected)

	require.NoError(t, eng.ProvideFeedback(context.Background(), first.ID, false))

	second, err := eng.Detect(context.Background(), in, profile)
	require.NoError(t, err)

	assert.Less(t, second.Confidence, first.Confidence,
		"contested feedback must lower confidence for the identical input")
	assert.LessOrEqual(t, int(second.Severity), int(first.Severity))
}

func TestConfirmedFeedbackReinforces(t *testing.T) {
	eng := newTestEngine(t, stubTier{tier: monitor.TierFull}, nil)
	in := input("Don't tell your parents, it's our little secret.", feature.ContextConversation)
	profile := feature.UserProfile{Age: 11}

	first, err := eng.Detect(context.Background(), in, profile)
	require.NoError(t, err)
	require.True(t, first.ThreatDetected)

	require.NoError(t, eng.ProvideFeedback(context.Background(), first.ID, true))

	second, err := eng.Detect(context.Background(), in, profile)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, second.Confidence, first.Confidence)
}

func TestFeedbackUnknownVerdict(t *testing.T) {
	eng := newTestEngine(t, stubTier{tier: monitor.TierFull}, nil)

	err := eng.ProvideFeedback(context.Background(), "no-such-id", true)
	assert.True(t, errors.Is(err, feature.ErrUnknownVerdict))
}

func TestInvalidInputRejected(t *testing.T) {
	eng := newTestEngine(t, stubTier{tier: monitor.TierFull}, nil)

	_, err := eng.Detect(context.Background(),
		feature.FeatureInput{Timestamp: time.Now(), Context: feature.ContextConversation},
		feature.UserProfile{Age: 30})
	assert.True(t, errors.Is(err, feature.ErrInputInvalid))

	_, err = eng.Detect(context.Background(),
		feature.FeatureInput{Text: "hello", Timestamp: time.Now(), Context: "unknown"},
		feature.UserProfile{Age: 30})
	assert.True(t, errors.Is(err, feature.ErrInputInvalid))
}

type recordingClassifier struct {
	candidates []families.Family
}

func (r *recordingClassifier) Classify(_ context.Context, _ string, candidates, _ []families.Family) (classify.Result, error) {
	r.candidates = candidates
	return classify.Result{PerFamily: map[families.Family]float64{}}, nil
}

func TestConservingTierFiltersDeepCandidates(t *testing.T) {
	rec := &recordingClassifier{}
	eng := newTestEngine(t, stubTier{tier: monitor.TierConserving}, rec)

	// Phishing forwards for an adult but sits outside the senior-free adult
	// priority head only if weights push it down; crisis always passes.
	_, err := eng.Detect(context.Background(),
		input("I don't want to be here anymore. Also verify your account now.", feature.ContextConversation),
		feature.UserProfile{Age: 11})
	require.NoError(t, err)

	for _, fam := range rec.candidates {
		priorityHead := map[families.Family]bool{
			families.Grooming:          true,
			families.CrisisSignal:      true,
			families.ViolenceIndicator: true,
		}
		assert.True(t, priorityHead[fam] || families.IsEmergencyReserved(fam),
			"conserving tier forwarded %s past the priority head", fam)
	}
}

func TestConservingSkipLowersConfidence(t *testing.T) {
	// Phishing forwards for a child but sits outside the child priority head,
	// so the conserving tier withholds its deep pass and penalizes the fast
	// score. The classifier stub returns no per-family scores in either run.
	in := input("Please verify your account immediately.", feature.ContextConversation)
	profile := feature.UserProfile{Age: 11}

	full, err := newTestEngine(t, stubTier{tier: monitor.TierFull}, &recordingClassifier{}).
		Detect(context.Background(), in, profile)
	require.NoError(t, err)

	conserving, err := newTestEngine(t, stubTier{tier: monitor.TierConserving}, &recordingClassifier{}).
		Detect(context.Background(), in, profile)
	require.NoError(t, err)

	assert.Less(t, conserving.Confidence, full.Confidence,
		"a skipped family must not keep its full fast score")
	assert.InDelta(t, full.Confidence*decision.ConservingPenalty, conserving.Confidence, 1e-9)
	assert.False(t, conserving.Degraded)
}

func TestFastOnlySkipsDeepTier(t *testing.T) {
	rec := &recordingClassifier{}
	eng := newTestEngine(t, stubTier{tier: monitor.TierFull}, rec)

	_, err := eng.DetectWithOptions(context.Background(),
		input("Don't tell your parents, our little secret.", feature.ContextConversation),
		feature.UserProfile{Age: 11},
		DetectOptions{FastOnly: true})
	require.NoError(t, err)
	assert.Empty(t, rec.candidates, "fast-only mode must never reach the deep tier")
}

func TestMetricsSnapshot(t *testing.T) {
	eng := newTestEngine(t, stubTier{tier: monitor.TierBalanced}, nil)

	_, err := eng.Detect(context.Background(),
		input("Don't tell your parents, our little secret.", feature.ContextConversation),
		feature.UserProfile{Age: 11})
	require.NoError(t, err)

	m := eng.Metrics(context.Background())
	assert.Equal(t, int64(1), m.TotalDetections)
	assert.Equal(t, 1, m.PatternStoreSize)
	assert.Equal(t, "balanced", m.CurrentTier)
	assert.InDelta(t, 1.0, m.AccuracyEstimate, 1e-9, "no feedback yet, estimate starts at 1")
	assert.Greater(t, m.AverageLatencyMs, 0.0)
}

func TestVerdictCacheEvictsOldest(t *testing.T) {
	c := newVerdictCache(2)
	c.put(cachedVerdict{verdict: feature.Verdict{ID: "a"}})
	c.put(cachedVerdict{verdict: feature.Verdict{ID: "b"}})
	c.put(cachedVerdict{verdict: feature.Verdict{ID: "c"}})

	_, ok := c.get("a")
	assert.False(t, ok)
	_, ok = c.get("b")
	assert.True(t, ok)
	_, ok = c.get("c")
	assert.True(t, ok)
}
