package families

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryFamilyHasPatterns(t *testing.T) {
	r := NewRegistry()
	for _, f := range All() {
		assert.Greater(t, r.FamilyCount(f), 0, "family %s has no built-in patterns", f)
	}
	assert.Equal(t, len(All()), 7)
}

func TestGetReturnsSingleton(t *testing.T) {
	assert.Same(t, Get(), Get())
}

func TestMatchAllScopesByFamily(t *testing.T) {
	r := NewRegistry()

	matches := r.MatchAll("don't tell your parents about this", Grooming)
	require.NotEmpty(t, matches)
	for _, m := range matches {
		assert.Equal(t, Grooming, m.Family)
	}

	assert.Empty(t, r.MatchAll("don't tell your parents about this", PhishingURL))
}

func TestMatchAnyEarlyExit(t *testing.T) {
	r := NewRegistry()

	m := r.MatchAny("pay immediately or you will be arrested", TransactionAnomaly)
	require.NotNil(t, m)
	assert.Equal(t, TransactionAnomaly, m.Family)

	assert.Nil(t, r.MatchAny("completely ordinary sentence", TransactionAnomaly))
}

func TestEmergencyReservation(t *testing.T) {
	assert.True(t, IsEmergencyReserved(CrisisSignal))
	assert.True(t, IsEmergencyReserved(ViolenceIndicator))
	for _, f := range []Family{PhishingURL, TransactionAnomaly, SocialEngineering, InvestmentScam, Grooming} {
		assert.False(t, IsEmergencyReserved(f), "family %s must not escalate to emergency", f)
	}
}

func TestSeedExemplarsCoverEveryFamily(t *testing.T) {
	seeds := SeedExemplars()
	for _, f := range All() {
		assert.NotEmpty(t, seeds[f], "family %s has no deep-tier exemplars", f)
	}
}

func TestLoadPackAndMerge(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pack.yaml")
	pack := `
version: "1"
patterns:
  - name: custom_lure
    family: phishing_url
    regex: '(?i)claim\s+your\s+prize'
    weight: 0.7
    description: prize-claim lure
seeds:
  - family: investment_scam
    text: join my trading group, members make thousands weekly
`
	require.NoError(t, os.WriteFile(path, []byte(pack), 0o600))

	p, err := LoadPack(path)
	require.NoError(t, err)
	assert.Len(t, p.Patterns, 1)
	assert.Len(t, p.Seeds, 1)

	r := NewRegistry()
	before := r.FamilyCount(PhishingURL)
	require.NoError(t, r.Merge(p))
	assert.Equal(t, before+1, r.FamilyCount(PhishingURL))
	assert.NotEmpty(t, r.MatchAll("claim your prize today", PhishingURL))
}

func TestLoadPackRejectsUnknownFamily(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	pack := `
patterns:
  - name: x
    family: not_a_family
    regex: 'abc'
    weight: 0.5
`
	require.NoError(t, os.WriteFile(path, []byte(pack), 0o600))

	_, err := LoadPack(path)
	assert.Error(t, err)
}

func TestMergeRejectsBadRegexAtomically(t *testing.T) {
	r := NewRegistry()
	before := r.TotalPatterns()

	err := r.Merge(&Pack{Patterns: []PackPattern{
		{Name: "good", Family: string(PhishingURL), Regex: `ok`, Weight: 0.5},
		{Name: "bad", Family: string(PhishingURL), Regex: `([`, Weight: 0.5},
	}})
	assert.Error(t, err)
	assert.Equal(t, before, r.TotalPatterns(), "a failed merge must not partially apply")
}
