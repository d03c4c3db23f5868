package store

import (
	"math"
	"sync"
	"time"

	"github.com/luminasec/sentinel/pkg/telemetry"
)

// Config tunes the learning loop.
type Config struct {
	// StartConfidence is the confidence of a first-seen signature.
	StartConfidence float64 `koanf:"start_confidence"`
	// ReinforceStep is added per repeat detection, up to Cap.
	ReinforceStep float64 `koanf:"reinforce_step"`
	// FeedbackStep is added or removed per explicit feedback event.
	FeedbackStep float64 `koanf:"feedback_step"`
	// Cap is the confidence ceiling. Below 1.0 so no signature becomes
	// unfalsifiable.
	Cap float64 `koanf:"cap"`
	// Floor is the confidence below which an entry becomes eligible for
	// eviction.
	Floor float64 `koanf:"floor"`
	// Retention is how long after the last hit an entry holds full confidence.
	Retention time.Duration `koanf:"retention"`
	// Grace is the minimum age past LastSeen before a below-floor entry is
	// evicted. Eviction needs both: confidence under the floor and age past
	// grace, so a heavily-reinforced signature outlives a one-off.
	Grace time.Duration `koanf:"grace"`
	// HalfLife controls the exponential confidence decay past retention.
	HalfLife time.Duration `koanf:"half_life"`
	// MaxEntries bounds the store; the stalest entries are shed first.
	MaxEntries int `koanf:"max_entries"`
}

// DefaultConfig returns the stock learning-loop settings.
func DefaultConfig() Config {
	return Config{
		StartConfidence: 0.50,
		ReinforceStep:   0.10,
		FeedbackStep:    0.25,
		Cap:             0.99,
		Floor:           0.05,
		Retention:       7 * 24 * time.Hour,
		Grace:           14 * 24 * time.Hour,
		HalfLife:        72 * time.Hour,
		MaxEntries:      10000,
	}
}

const shardCount = 16

type shard struct {
	mu      sync.Mutex
	entries map[string]*PatternEntry
}

// Store holds learned signatures. Per-signature operations contend only on
// their shard; DecayPass takes the global write lock and sees a quiesced
// store.
type Store struct {
	cfg Config

	// global is held shared by per-key mutators and exclusively by DecayPass
	// and Snapshot, so sweeps never interleave with reinforcement.
	global sync.RWMutex
	shards [shardCount]shard

	size int64 // updated under global; read via Size
	mu   sync.Mutex
}

// New creates an empty store. Zero-value config fields fall back to defaults.
func New(cfg Config) *Store {
	def := DefaultConfig()
	if cfg.StartConfidence == 0 {
		cfg.StartConfidence = def.StartConfidence
	}
	if cfg.ReinforceStep == 0 {
		cfg.ReinforceStep = def.ReinforceStep
	}
	if cfg.FeedbackStep == 0 {
		cfg.FeedbackStep = def.FeedbackStep
	}
	if cfg.Cap == 0 {
		cfg.Cap = def.Cap
	}
	if cfg.Floor == 0 {
		cfg.Floor = def.Floor
	}
	if cfg.Retention == 0 {
		cfg.Retention = def.Retention
	}
	if cfg.Grace == 0 {
		cfg.Grace = def.Grace
	}
	if cfg.HalfLife == 0 {
		cfg.HalfLife = def.HalfLife
	}
	if cfg.MaxEntries == 0 {
		cfg.MaxEntries = def.MaxEntries
	}

	s := &Store{cfg: cfg}
	for i := range s.shards {
		s.shards[i].entries = make(map[string]*PatternEntry)
	}
	return s
}

func (s *Store) shardFor(sig string) *shard {
	// Signatures are hex SHA-256; the first byte is already uniform.
	if sig == "" {
		return &s.shards[0]
	}
	return &s.shards[sig[0]%shardCount]
}

// RecordDetection reinforces the signature for a detected threat, creating
// the entry on first sight. Returns the entry's confidence after the update.
func (s *Store) RecordDetection(family, text string, now time.Time) float64 {
	sig := Signature(family, text)

	s.global.RLock()
	defer s.global.RUnlock()

	sh := s.shardFor(sig)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.entries[sig]
	if !ok {
		e = &PatternEntry{
			Signature:  sig,
			Family:     family,
			State:      StateNew,
			Confidence: s.cfg.StartConfidence,
			Peak:       s.cfg.StartConfidence,
			HitCount:   1,
			FirstSeen:  now,
			LastSeen:   now,
		}
		sh.entries[sig] = e
		s.addSize(1)
		return e.Confidence
	}

	e.Confidence = math.Min(s.cfg.Cap, e.Confidence+s.cfg.ReinforceStep)
	e.Peak = e.Confidence
	e.State = StateActive
	e.HitCount++
	e.LastSeen = now
	return e.Confidence
}

// ApplyFeedback moves a signature's confidence in response to explicit user
// feedback. confirmed reinforces; contested cuts. Returns false if the
// signature is unknown.
func (s *Store) ApplyFeedback(family, text string, confirmed bool, now time.Time) bool {
	sig := Signature(family, text)

	s.global.RLock()
	defer s.global.RUnlock()

	sh := s.shardFor(sig)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.entries[sig]
	if !ok {
		return false
	}

	if confirmed {
		e.Confidence = math.Min(s.cfg.Cap, e.Confidence+s.cfg.FeedbackStep)
	} else {
		e.Confidence = math.Max(s.cfg.Floor, e.Confidence-s.cfg.FeedbackStep)
	}
	e.Peak = e.Confidence
	e.LastSeen = now
	return true
}

// Modifier returns the decision-aggregation multiplier for a signature:
// 1.0 for unknown signatures, above 1.0 for trusted repeat offenders, below
// for contested ones. Clamped to [0.85, 1.15] so learned history can tilt a
// verdict but never flip it outright.
func (s *Store) Modifier(family, text string) float64 {
	sig := Signature(family, text)

	s.global.RLock()
	defer s.global.RUnlock()

	sh := s.shardFor(sig)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.entries[sig]
	if !ok {
		return 1.0
	}

	m := 1 + 0.3*(e.Confidence-0.5)
	if m > 1.15 {
		m = 1.15
	}
	if m < 0.85 {
		m = 0.85
	}
	return m
}

// decayedConfidence computes an entry's confidence at instant now as a pure
// function of its peak and last-seen time. Calling it twice with the same
// now yields the same value, which is what makes DecayPass idempotent.
func (s *Store) decayedConfidence(e *PatternEntry, now time.Time) float64 {
	elapsed := now.Sub(e.LastSeen)
	if elapsed <= s.cfg.Retention {
		return e.Peak
	}
	over := elapsed - s.cfg.Retention
	factor := math.Exp2(-float64(over) / float64(s.cfg.HalfLife))
	return e.Peak * factor
}

// DecayPass recomputes every entry's confidence for instant now and evicts
// entries that are both below the floor and past the grace window. Holding
// the global write lock means no reinforcement interleaves with the sweep.
func (s *Store) DecayPass(now time.Time) (evicted int) {
	s.global.Lock()
	defer s.global.Unlock()

	for i := range s.shards {
		sh := &s.shards[i]
		for sig, e := range sh.entries {
			c := s.decayedConfidence(e, now)
			age := now.Sub(e.LastSeen)

			if c < s.cfg.Floor && age > s.cfg.Grace {
				delete(sh.entries, sig)
				evicted++
				telemetry.ObservePatternEviction()
				continue
			}

			e.Confidence = c
			if age > s.cfg.Retention {
				e.State = StateDecaying
			} else if e.HitCount > 1 {
				e.State = StateActive
			}
		}
	}

	s.addSize(-evicted)
	if over := int(s.sizeLocked()) - s.cfg.MaxEntries; over > 0 {
		evicted += s.shedStalest(over)
	}
	return evicted
}

// shedStalest removes the n entries with the oldest LastSeen. Called with the
// global write lock held.
func (s *Store) shedStalest(n int) int {
	type candidate struct {
		shard *shard
		sig   string
		seen  time.Time
	}
	var all []candidate
	for i := range s.shards {
		sh := &s.shards[i]
		for sig, e := range sh.entries {
			all = append(all, candidate{sh, sig, e.LastSeen})
		}
	}
	// Partial selection would do, but the sweep is already O(n) and rare.
	for removed := 0; removed < n; removed++ {
		oldest := -1
		for j, c := range all {
			if c.shard == nil {
				continue
			}
			if oldest == -1 || c.seen.Before(all[oldest].seen) {
				oldest = j
			}
		}
		if oldest == -1 {
			return removed
		}
		delete(all[oldest].shard.entries, all[oldest].sig)
		all[oldest].shard = nil
		s.addSize(-1)
		telemetry.ObservePatternEviction()
	}
	return n
}

// Snapshot returns a copy of every live entry, for persistence and metrics.
func (s *Store) Snapshot() []PatternEntry {
	s.global.Lock()
	defer s.global.Unlock()

	out := make([]PatternEntry, 0, s.sizeLocked())
	for i := range s.shards {
		for _, e := range s.shards[i].entries {
			out = append(out, *e)
		}
	}
	return out
}

// Restore loads persisted entries, replacing current contents.
func (s *Store) Restore(entries []PatternEntry) {
	s.global.Lock()
	defer s.global.Unlock()

	for i := range s.shards {
		s.shards[i].entries = make(map[string]*PatternEntry)
	}
	for _, e := range entries {
		entry := e
		sh := s.shardFor(entry.Signature)
		sh.entries[entry.Signature] = &entry
	}
	s.setSize(len(entries))
}

// Size returns the live entry count.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.size)
}

func (s *Store) addSize(delta int) {
	s.mu.Lock()
	s.size += int64(delta)
	telemetry.SetPatternStoreSize(int(s.size))
	s.mu.Unlock()
}

func (s *Store) setSize(n int) {
	s.mu.Lock()
	s.size = int64(n)
	telemetry.SetPatternStoreSize(n)
	s.mu.Unlock()
}

func (s *Store) sizeLocked() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}
