// Package monitor samples host resource state and derives the pipeline's
// operating tier. Detection paths read the tier from an atomic snapshot and
// never block on sampling.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/sensors"

	"github.com/luminasec/sentinel/pkg/logging"
	"github.com/luminasec/sentinel/pkg/telemetry"
)

// OperatingTier is the pipeline's current capability level.
type OperatingTier string

const (
	// TierFull runs both detection tiers with no restrictions.
	TierFull OperatingTier = "full"
	// TierBalanced runs both tiers with reduced deep-tier concurrency.
	TierBalanced OperatingTier = "balanced"
	// TierConserving disables the deep tier except for priority families.
	TierConserving OperatingTier = "conserving"
)

// rank orders tiers from least to most constrained.
func (t OperatingTier) rank() int {
	switch t {
	case TierFull:
		return 0
	case TierBalanced:
		return 1
	default:
		return 2
	}
}

// MoreConstrainedThan reports whether t is a lower capability level than o.
func (t OperatingTier) MoreConstrainedThan(o OperatingTier) bool {
	return t.rank() > o.rank()
}

// ResourceSnapshot is one sampling of host state. Fractions are in [0, 1].
type ResourceSnapshot struct {
	CPUFraction    float64   `json:"cpu_fraction"`
	MemoryFraction float64   `json:"memory_fraction"`
	BatteryPercent float64   `json:"battery_percent"`
	OnBattery      bool      `json:"on_battery"`
	ThermalHigh    bool      `json:"thermal_high"`
	SampledAt      time.Time `json:"sampled_at"`
}

// Sampler produces resource snapshots. Implementations must be safe for
// repeated calls; errors are expected under load and must not panic.
type Sampler interface {
	Sample(ctx context.Context) (ResourceSnapshot, error)
}

// Config tunes the monitor's watermarks and cadence.
type Config struct {
	// Interval between samples.
	Interval time.Duration `koanf:"interval"`
	// HighWatermark is the fraction above which the tier downgrades.
	HighWatermark float64 `koanf:"high_watermark"`
	// LowWatermark is the fraction below which the tier may upgrade.
	LowWatermark float64 `koanf:"low_watermark"`
	// UpgradeStreak is how many consecutive favorable samples an upgrade needs.
	UpgradeStreak int `koanf:"upgrade_streak"`
	// BatteryCriticalPercent forces conserving when on battery below this level.
	BatteryCriticalPercent float64 `koanf:"battery_critical_percent"`
	// ThermalHighCelsius marks a core temperature as thermal pressure.
	ThermalHighCelsius float64 `koanf:"thermal_high_celsius"`
}

// DefaultConfig returns the stock watermarks: downgrade fast, upgrade slow.
func DefaultConfig() Config {
	return Config{
		Interval:               5 * time.Second,
		HighWatermark:          0.80,
		LowWatermark:           0.50,
		UpgradeStreak:          2,
		BatteryCriticalPercent: 15,
		ThermalHighCelsius:     85,
	}
}

// Monitor owns the operating tier. Downgrades apply on the first adverse
// sample; upgrades require UpgradeStreak consecutive favorable samples, so the
// tier cannot flap when load hovers around a watermark.
type Monitor struct {
	cfg     Config
	sampler Sampler

	mu              sync.RWMutex
	tier            OperatingTier
	last            ResourceSnapshot
	degraded        bool
	favorableStreak int
}

// New creates a monitor starting in the full tier.
func New(cfg Config, sampler Sampler) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.HighWatermark == 0 {
		cfg.HighWatermark = DefaultConfig().HighWatermark
	}
	if cfg.LowWatermark == 0 {
		cfg.LowWatermark = DefaultConfig().LowWatermark
	}
	if cfg.UpgradeStreak == 0 {
		cfg.UpgradeStreak = DefaultConfig().UpgradeStreak
	}
	if cfg.BatteryCriticalPercent == 0 {
		cfg.BatteryCriticalPercent = DefaultConfig().BatteryCriticalPercent
	}
	if cfg.ThermalHighCelsius == 0 {
		cfg.ThermalHighCelsius = DefaultConfig().ThermalHighCelsius
	}
	return &Monitor{
		cfg:     cfg,
		sampler: sampler,
		tier:    TierFull,
	}
}

// Tier returns the current operating tier. Lock-free hot path aside from the
// read lock; callers take one tier snapshot per detection and stick with it.
func (m *Monitor) Tier() OperatingTier {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tier
}

// Degraded reports whether the last sampling attempt failed.
func (m *Monitor) Degraded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.degraded
}

// LastSnapshot returns the most recent resource snapshot.
func (m *Monitor) LastSnapshot() ResourceSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// desired maps one snapshot to the tier it calls for, ignoring hysteresis.
func (m *Monitor) desired(snap ResourceSnapshot) OperatingTier {
	if snap.OnBattery && snap.BatteryPercent > 0 && snap.BatteryPercent <= m.cfg.BatteryCriticalPercent {
		return TierConserving
	}
	if snap.ThermalHigh {
		return TierConserving
	}
	if snap.CPUFraction >= m.cfg.HighWatermark || snap.MemoryFraction >= m.cfg.HighWatermark {
		return TierConserving
	}
	if snap.CPUFraction < m.cfg.LowWatermark && snap.MemoryFraction < m.cfg.LowWatermark {
		return TierFull
	}
	return TierBalanced
}

// Observe folds one snapshot into the tier state machine and returns the new
// tier. Exported so tests can drive the state machine with scripted samples.
func (m *Monitor) Observe(snap ResourceSnapshot) OperatingTier {
	want := m.desired(snap)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.last = snap
	m.degraded = false

	switch {
	case want.MoreConstrainedThan(m.tier):
		// Downgrades are immediate.
		m.tier = want
		m.favorableStreak = 0
	case want == m.tier:
		m.favorableStreak = 0
	default:
		// Upgrade only after enough consecutive favorable samples, and only
		// one step at a time.
		m.favorableStreak++
		if m.favorableStreak >= m.cfg.UpgradeStreak {
			if m.tier == TierConserving {
				m.tier = TierBalanced
			} else {
				m.tier = TierFull
			}
			m.favorableStreak = 0
		}
	}

	telemetry.SetOperatingTier(string(m.tier))
	return m.tier
}

// observeFailure handles a failed sample: mark the state degraded and cap the
// tier at balanced capability. A conserving tier holds where it is, since a
// failed sample carries no evidence the pressure cleared; upgrading out of it
// still takes observed favorable samples.
func (m *Monitor) observeFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.degraded = true
	m.favorableStreak = 0
	if m.tier == TierFull {
		m.tier = TierBalanced
	}
	telemetry.SetOperatingTier(string(m.tier))
	logging.Warn().Err(err).Str("tier", string(m.tier)).Msg("resource sampling failed, holding constrained tier")
}

// Serve runs the sampling loop until ctx is cancelled. Implements
// suture.Service.
func (m *Monitor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	logging.Info().
		Dur("interval", m.cfg.Interval).
		Float64("high_watermark", m.cfg.HighWatermark).
		Float64("low_watermark", m.cfg.LowWatermark).
		Msg("resource monitor started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			snap, err := m.sampler.Sample(ctx)
			if err != nil {
				m.observeFailure(err)
				continue
			}
			prev := m.Tier()
			next := m.Observe(snap)
			if next != prev {
				logging.Info().
					Str("from", string(prev)).
					Str("to", string(next)).
					Float64("cpu", snap.CPUFraction).
					Float64("memory", snap.MemoryFraction).
					Msg("operating tier changed")
			}
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (m *Monitor) String() string { return "resource-monitor" }

// SystemSampler reads live host state via gopsutil.
type SystemSampler struct {
	thermalHighCelsius float64
}

// NewSystemSampler creates a sampler with the given thermal cutoff.
func NewSystemSampler(thermalHighCelsius float64) *SystemSampler {
	if thermalHighCelsius <= 0 {
		thermalHighCelsius = DefaultConfig().ThermalHighCelsius
	}
	return &SystemSampler{thermalHighCelsius: thermalHighCelsius}
}

// Sample reads CPU, memory, and sensor state. Sensor failures are tolerated;
// CPU or memory failures fail the whole sample.
func (s *SystemSampler) Sample(ctx context.Context) (ResourceSnapshot, error) {
	snap := ResourceSnapshot{SampledAt: time.Now()}

	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return snap, fmt.Errorf("cpu sample: %w", err)
	}
	if len(percents) > 0 {
		snap.CPUFraction = percents[0] / 100
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return snap, fmt.Errorf("memory sample: %w", err)
	}
	snap.MemoryFraction = vm.UsedPercent / 100

	// Thermal data is best effort; many hosts expose no sensors.
	if temps, err := sensors.TemperaturesWithContext(ctx); err == nil {
		for _, t := range temps {
			if t.Temperature >= s.thermalHighCelsius {
				snap.ThermalHigh = true
				break
			}
		}
	}

	telemetry.SetResourceSample(snap.CPUFraction, snap.MemoryFraction)
	return snap, nil
}
