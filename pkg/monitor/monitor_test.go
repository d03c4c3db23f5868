package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func cfg() Config {
	c := DefaultConfig()
	c.UpgradeStreak = 2
	return c
}

func calm() ResourceSnapshot    { return ResourceSnapshot{CPUFraction: 0.20, MemoryFraction: 0.30} }
func midload() ResourceSnapshot { return ResourceSnapshot{CPUFraction: 0.60, MemoryFraction: 0.55} }
func pressed() ResourceSnapshot { return ResourceSnapshot{CPUFraction: 0.90, MemoryFraction: 0.70} }

func TestStartsFull(t *testing.T) {
	m := New(cfg(), nil)
	assert.Equal(t, TierFull, m.Tier())
}

func TestDowngradeIsImmediate(t *testing.T) {
	m := New(cfg(), nil)

	assert.Equal(t, TierConserving, m.Observe(pressed()),
		"a single adverse sample must downgrade at once")
}

func TestUpgradeNeedsConsecutiveFavorableSamples(t *testing.T) {
	m := New(cfg(), nil)
	m.Observe(pressed())

	assert.Equal(t, TierConserving, m.Observe(calm()), "one favorable sample is not enough")
	assert.Equal(t, TierBalanced, m.Observe(calm()), "second favorable sample steps up one tier")
	assert.Equal(t, TierBalanced, m.Observe(calm()), "upgrade is one step at a time")
	assert.Equal(t, TierFull, m.Observe(calm()))
}

func TestAdverseSampleResetsStreak(t *testing.T) {
	m := New(cfg(), nil)
	m.Observe(pressed())

	m.Observe(calm())
	m.Observe(pressed()) // streak broken
	assert.Equal(t, TierConserving, m.Observe(calm()), "the streak must restart after an adverse sample")
	assert.Equal(t, TierBalanced, m.Observe(calm()))
}

func TestMidloadHoldsBalanced(t *testing.T) {
	m := New(cfg(), nil)

	assert.Equal(t, TierBalanced, m.Observe(midload()))
	assert.Equal(t, TierBalanced, m.Observe(midload()))
	assert.Equal(t, TierBalanced, m.Observe(midload()), "hovering between watermarks must not flap")
}

func TestBatteryCriticalForcesConserving(t *testing.T) {
	m := New(cfg(), nil)

	snap := calm()
	snap.OnBattery = true
	snap.BatteryPercent = 10
	assert.Equal(t, TierConserving, m.Observe(snap))
}

func TestThermalPressureForcesConserving(t *testing.T) {
	m := New(cfg(), nil)

	snap := calm()
	snap.ThermalHigh = true
	assert.Equal(t, TierConserving, m.Observe(snap))
}

func TestSamplingFailureDegrades(t *testing.T) {
	m := New(cfg(), nil)

	m.observeFailure(assert.AnError)
	assert.Equal(t, TierBalanced, m.Tier(), "unknown resource state must not stay in full")
	assert.True(t, m.Degraded())

	m.Observe(calm())
	assert.False(t, m.Degraded(), "a good sample clears the degraded flag")
}

func TestSamplingFailureHoldsConserving(t *testing.T) {
	m := New(cfg(), nil)

	snap := calm()
	snap.ThermalHigh = true
	m.Observe(snap)
	assert.Equal(t, TierConserving, m.Tier())

	m.observeFailure(assert.AnError)
	assert.Equal(t, TierConserving, m.Tier(),
		"a failed sample is no evidence the pressure cleared")
	assert.True(t, m.Degraded())
}

func TestMoreConstrainedThan(t *testing.T) {
	assert.True(t, TierConserving.MoreConstrainedThan(TierBalanced))
	assert.True(t, TierBalanced.MoreConstrainedThan(TierFull))
	assert.False(t, TierFull.MoreConstrainedThan(TierConserving))
}
