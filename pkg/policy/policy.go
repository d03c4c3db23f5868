// Package policy maps a user profile and event context to detection
// thresholds, pattern-family priority, and family weights, and owns the
// deterministic severity→action table.
//
// Resolution is a pure function of profile + context over static tables, with
// one bounded mutable overlay: feedback-driven sensitivity nudges (§ApplyNudge)
// that expire after a cooldown window.
package policy

import (
	"sort"
	"sync"
	"time"

	"github.com/luminasec/sentinel/pkg/families"
	"github.com/luminasec/sentinel/pkg/feature"
)

// Thresholds is the resolved policy for one (profile, context) pair.
type Thresholds struct {
	// Screening is the fast-tier score above which a family is forwarded to
	// the deep tier. Lower than Action by design.
	Screening float64

	// Action is the weighted-confidence floor for flagging a threat.
	Action float64

	// Priority lists the families most critical for this profile, most
	// important first. Used for deep-tier tie-breaking and for deciding what
	// stays enabled in the conserving tier.
	Priority []families.Family

	// Weights multiply a family's confidence before aggregation.
	Weights map[families.Family]float64
}

// Config holds the tunable policy defaults. Every number here is a default,
// not a load-bearing constant; deployments override via the config file.
type Config struct {
	// Base action thresholds per age group.
	ActionThresholds map[feature.AgeGroup]float64
	// Base screening thresholds per age group.
	ScreeningThresholds map[feature.AgeGroup]float64
	// NudgeStep is the sensitivity change applied per feedback event.
	NudgeStep float64
	// NudgeCap bounds the cumulative nudge for one (group, family) pair.
	NudgeCap float64
	// NudgeCooldown is how long a nudge stays active.
	NudgeCooldown time.Duration
}

// DefaultConfig returns the documented defaults: child and senior profiles are
// more sensitive (lower thresholds) than adult profiles.
func DefaultConfig() Config {
	return Config{
		ActionThresholds: map[feature.AgeGroup]float64{
			feature.GroupChild:       0.45,
			feature.GroupTeen:        0.50,
			feature.GroupYoungAdult:  0.60,
			feature.GroupAdult:       0.60,
			feature.GroupSenior:      0.45,
			feature.GroupUnspecified: 0.55,
		},
		ScreeningThresholds: map[feature.AgeGroup]float64{
			feature.GroupChild:       0.30,
			feature.GroupTeen:        0.35,
			feature.GroupYoungAdult:  0.40,
			feature.GroupAdult:       0.40,
			feature.GroupSenior:      0.30,
			feature.GroupUnspecified: 0.35,
		},
		NudgeStep:     0.05,
		NudgeCap:      0.15,
		NudgeCooldown: 30 * time.Minute,
	}
}

// baseWeights are the per-group family weight tables. A weight above 1.0
// makes a family dominate aggregation for that group.
var baseWeights = map[feature.AgeGroup]map[families.Family]float64{
	feature.GroupChild: {
		families.Grooming:           1.50,
		families.CrisisSignal:       1.30,
		families.ViolenceIndicator:  1.20,
		families.SocialEngineering:  1.00,
		families.PhishingURL:        0.90,
		families.InvestmentScam:     0.70,
		families.TransactionAnomaly: 0.70,
	},
	feature.GroupTeen: {
		families.Grooming:           1.35,
		families.CrisisSignal:       1.30,
		families.ViolenceIndicator:  1.15,
		families.SocialEngineering:  1.00,
		families.PhishingURL:        0.95,
		families.InvestmentScam:     0.95,
		families.TransactionAnomaly: 0.85,
	},
	feature.GroupYoungAdult: {
		families.InvestmentScam:     1.15,
		families.PhishingURL:        1.05,
		families.SocialEngineering:  1.00,
		families.CrisisSignal:       1.00,
		families.ViolenceIndicator:  1.00,
		families.TransactionAnomaly: 0.95,
		families.Grooming:           0.80,
	},
	feature.GroupAdult: {
		families.PhishingURL:        1.05,
		families.SocialEngineering:  1.05,
		families.TransactionAnomaly: 1.00,
		families.InvestmentScam:     1.00,
		families.CrisisSignal:       1.00,
		families.ViolenceIndicator:  1.00,
		families.Grooming:           0.80,
	},
	feature.GroupSenior: {
		families.InvestmentScam:     1.40,
		families.TransactionAnomaly: 1.35,
		families.SocialEngineering:  1.25,
		families.PhishingURL:        1.15,
		families.CrisisSignal:       1.10,
		families.ViolenceIndicator:  1.00,
		families.Grooming:           0.70,
	},
	feature.GroupUnspecified: {
		families.PhishingURL:        1.00,
		families.SocialEngineering:  1.00,
		families.TransactionAnomaly: 1.00,
		families.InvestmentScam:     1.00,
		families.Grooming:           1.00,
		families.CrisisSignal:       1.00,
		families.ViolenceIndicator:  1.00,
	},
}

// contextBoosts nudge family weights when the event context corroborates the
// family (a payment demand inside a transaction is worse than in idle chat).
var contextBoosts = map[feature.ContextTag]map[families.Family]float64{
	feature.ContextTransaction: {
		families.TransactionAnomaly: 1.15,
		families.InvestmentScam:     1.10,
		families.PhishingURL:        1.05,
	},
	feature.ContextBrowsing: {
		families.PhishingURL: 1.15,
	},
	feature.ContextConversation: {
		families.Grooming:          1.10,
		families.SocialEngineering: 1.05,
		families.CrisisSignal:      1.10,
	},
	feature.ContextSocialMedia: {
		families.Grooming:          1.10,
		families.InvestmentScam:    1.10,
		families.ViolenceIndicator: 1.05,
	},
	feature.ContextNetwork: {
		families.PhishingURL: 1.10,
	},
}

type nudgeKey struct {
	group  feature.AgeGroup
	family families.Family
}

type nudge struct {
	delta     float64
	expiresAt time.Time
}

// Engine resolves thresholds and holds the bounded nudge overlay.
// Safe for concurrent use.
type Engine struct {
	cfg Config

	mu     sync.RWMutex
	nudges map[nudgeKey]nudge
	now    func() time.Time
}

// New creates a policy engine. Zero-value fields in cfg fall back to defaults.
func New(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.ActionThresholds == nil {
		cfg.ActionThresholds = def.ActionThresholds
	}
	if cfg.ScreeningThresholds == nil {
		cfg.ScreeningThresholds = def.ScreeningThresholds
	}
	if cfg.NudgeStep == 0 {
		cfg.NudgeStep = def.NudgeStep
	}
	if cfg.NudgeCap == 0 {
		cfg.NudgeCap = def.NudgeCap
	}
	if cfg.NudgeCooldown == 0 {
		cfg.NudgeCooldown = def.NudgeCooldown
	}
	return &Engine{
		cfg:    cfg,
		nudges: make(map[nudgeKey]nudge),
		now:    time.Now,
	}
}

// Resolve returns the thresholds, priority list, and family weights for a
// profile in a context. Aside from active nudges this is a pure table lookup.
func (e *Engine) Resolve(profile feature.UserProfile, ctx feature.ContextTag) Thresholds {
	group := profile.Group()

	weights := make(map[families.Family]float64, len(families.All()))
	base := baseWeights[group]
	boosts := contextBoosts[ctx]
	for _, f := range families.All() {
		w := base[f]
		if w == 0 {
			w = 1.0
		}
		if boost, ok := boosts[f]; ok {
			w *= boost
		}
		weights[f] = w
	}

	e.mu.RLock()
	now := e.now()
	for _, f := range families.All() {
		if n, ok := e.nudges[nudgeKey{group, f}]; ok && now.Before(n.expiresAt) {
			weights[f] *= 1 + n.delta
		}
	}
	e.mu.RUnlock()

	return Thresholds{
		Screening: e.cfg.ScreeningThresholds[group],
		Action:    e.cfg.ActionThresholds[group],
		Priority:  priorityFor(group, weights),
		Weights:   weights,
	}
}

// priorityFor orders families by effective weight, descending; ties broken by
// canonical family order so the result is deterministic.
func priorityFor(group feature.AgeGroup, weights map[families.Family]float64) []families.Family {
	ordered := families.All()
	sort.SliceStable(ordered, func(i, j int) bool {
		return weights[ordered[i]] > weights[ordered[j]]
	})
	return ordered
}

// ApplyNudge adjusts sensitivity for a (group, family) pair in response to
// feedback. direction +1 raises sensitivity (false negative reported),
// -1 lowers it (false positive reported). The cumulative delta is clamped to
// ±NudgeCap and expires after the cooldown window, so repeated feedback can
// never push sensitivity outside the documented safe bounds.
func (e *Engine) ApplyNudge(group feature.AgeGroup, f families.Family, direction int) {
	if direction == 0 {
		return
	}
	step := e.cfg.NudgeStep
	if direction < 0 {
		step = -step
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	key := nudgeKey{group, f}
	now := e.now()
	current := 0.0
	if n, ok := e.nudges[key]; ok && now.Before(n.expiresAt) {
		current = n.delta
	}

	delta := current + step
	if delta > e.cfg.NudgeCap {
		delta = e.cfg.NudgeCap
	}
	if delta < -e.cfg.NudgeCap {
		delta = -e.cfg.NudgeCap
	}

	e.nudges[key] = nudge{delta: delta, expiresAt: now.Add(e.cfg.NudgeCooldown)}
}

// ActiveNudge returns the current nudge delta for a (group, family) pair,
// or 0 if none is active. Exposed for metrics and tests.
func (e *Engine) ActiveNudge(group feature.AgeGroup, f families.Family) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if n, ok := e.nudges[nudgeKey{group, f}]; ok && e.now().Before(n.expiresAt) {
		return n.delta
	}
	return 0
}
