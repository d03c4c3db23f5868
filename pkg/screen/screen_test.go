package screen

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminasec/sentinel/pkg/families"
	"github.com/luminasec/sentinel/pkg/feature"
	"github.com/luminasec/sentinel/pkg/policy"
)

func thresholdsFor(t *testing.T, age int, tag feature.ContextTag) policy.Thresholds {
	t.Helper()
	return policy.New(policy.Config{}).Resolve(feature.UserProfile{Age: age}, tag)
}

func resultFor(t *testing.T, results []Result, fam families.Family) Result {
	t.Helper()
	for _, r := range results {
		if r.Family == fam {
			return r
		}
	}
	t.Fatalf("no result for family %s", fam)
	return Result{}
}

func TestScreenForwardsGroomingForChild(t *testing.T) {
	s := New(Config{}, families.NewRegistry())
	th := thresholdsFor(t, 11, feature.ContextConversation)

	in := feature.FeatureInput{
		Text:      "You're so mature for your age. Let's chat privately, just us.",
		Timestamp: time.Now(),
		Context:   feature.ContextConversation,
	}
	results, err := s.Screen(context.Background(), in, th)
	require.NoError(t, err)
	require.Len(t, results, len(families.All()))

	grooming := resultFor(t, results, families.Grooming)
	assert.True(t, grooming.Forwarded)
	assert.Greater(t, grooming.Score, 0.8)
	assert.Contains(t, grooming.Matched, "mature_for_age")
	assert.Contains(t, grooming.Matched, "chat_privately")
}

func TestScreenIgnoresBenignText(t *testing.T) {
	s := New(Config{}, families.NewRegistry())
	th := thresholdsFor(t, 30, feature.ContextConversation)

	in := feature.FeatureInput{
		Text:      "Want to grab lunch tomorrow? The new place on Fifth looks good.",
		Timestamp: time.Now(),
		Context:   feature.ContextConversation,
	}
	results, err := s.Screen(context.Background(), in, th)
	require.NoError(t, err)
	for _, r := range results {
		assert.False(t, r.Forwarded, "family %s should not forward on benign text", r.Family)
	}
}

func TestScreenCatchesLeetspeakObfuscation(t *testing.T) {
	s := New(Config{}, families.NewRegistry())
	th := thresholdsFor(t, 11, feature.ContextConversation)

	in := feature.FeatureInput{
		Text:      "you are so m4ture for your 4ge",
		Timestamp: time.Now(),
		Context:   feature.ContextConversation,
	}
	results, err := s.Screen(context.Background(), in, th)
	require.NoError(t, err)

	grooming := resultFor(t, results, families.Grooming)
	assert.True(t, grooming.Forwarded, "leet substitutions must not dodge the screen")
}

func TestScreenCatchesBrandLookalike(t *testing.T) {
	s := New(Config{}, families.NewRegistry())
	th := thresholdsFor(t, 30, feature.ContextConversation)

	// The digit substitution only exists in the raw text; folding turns
	// paypa1 into paypai, so the pattern must see the pre-fold form.
	in := feature.FeatureInput{
		Text:      "urgent: sign in to paypa1 to keep your account active",
		Timestamp: time.Now(),
		Context:   feature.ContextConversation,
	}
	results, err := s.Screen(context.Background(), in, th)
	require.NoError(t, err)

	phishing := resultFor(t, results, families.PhishingURL)
	assert.Contains(t, phishing.Matched, "brand_lookalike")
	assert.True(t, phishing.Forwarded)
}

func TestScreenScoresSuspiciousURLs(t *testing.T) {
	s := New(Config{}, families.NewRegistry())
	th := thresholdsFor(t, 30, feature.ContextBrowsing)

	in := feature.FeatureInput{
		Text:      "check this out",
		URLs:      []string{"http://192.168.12.9/login/verify"},
		Timestamp: time.Now(),
		Context:   feature.ContextBrowsing,
	}
	results, err := s.Screen(context.Background(), in, th)
	require.NoError(t, err)

	phishing := resultFor(t, results, families.PhishingURL)
	assert.True(t, phishing.Forwarded)
}

func TestScreenTransactionAmountSignal(t *testing.T) {
	s := New(Config{}, families.NewRegistry())
	th := thresholdsFor(t, 70, feature.ContextTransaction)
	amount := 5000.0

	in := feature.FeatureInput{
		Text:      "final notice: your payment is overdue, you owe the balance",
		Amount:    &amount,
		Timestamp: time.Now(),
		Context:   feature.ContextTransaction,
	}
	results, err := s.Screen(context.Background(), in, th)
	require.NoError(t, err)

	txn := resultFor(t, results, families.TransactionAnomaly)
	assert.True(t, txn.Forwarded)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "mature for your age", Normalize("  M4TURE   f0r your 4ge "))
	assert.Equal(t, "send me a pic", Normalize("SEND me\ta  pic"))
}

func TestHostEntropy(t *testing.T) {
	assert.Greater(t, hostEntropy("xk9f2qw7zjp4.example.com"), hostEntropy("mail.example.com"))
}

func TestSquashBounds(t *testing.T) {
	assert.Zero(t, squash(0))
	assert.Greater(t, squash(0.9), 0.7)
	assert.Less(t, squash(10), 1.0)
	assert.Greater(t, squash(2.0), squash(1.0), "more evidence, higher score")
}
