// Package decision aggregates tier results into the final verdict: it applies
// policy weights and learned-pattern modifiers, maps weighted confidence onto
// the severity ladder, and enforces the emergency reservation.
package decision

import (
	"time"

	"github.com/google/uuid"

	"github.com/luminasec/sentinel/pkg/classify"
	"github.com/luminasec/sentinel/pkg/families"
	"github.com/luminasec/sentinel/pkg/feature"
	"github.com/luminasec/sentinel/pkg/policy"
	"github.com/luminasec/sentinel/pkg/screen"
)

// DegradedPenalty scales confidence when the deep tier ran in fallback mode.
// The emergency path is exempt; a crisis signal must fire regardless.
const DegradedPenalty = 0.85

// ConservingPenalty scales a family's fast-tier confidence when the
// conserving operating tier withheld its deep classification, so an
// unconfirmed lexical score carries less weight than a confirmed one.
const ConservingPenalty = 0.85

// EmergencyFloor is the raw confidence an emergency-reserved family needs to
// escalate straight to emergency severity.
const EmergencyFloor = 0.70

// Ladder holds the weighted-confidence cutoffs for each severity step.
// Monotone by construction: a higher confidence can never map lower.
type Ladder struct {
	Low      float64 `koanf:"low"`
	Medium   float64 `koanf:"medium"`
	High     float64 `koanf:"high"`
	Critical float64 `koanf:"critical"`
}

// DefaultLadder returns the stock cutoffs.
func DefaultLadder() Ladder {
	return Ladder{Low: 0.35, Medium: 0.50, High: 0.65, Critical: 0.80}
}

// severityFor maps weighted confidence onto the ladder.
func (l Ladder) severityFor(confidence float64) feature.Severity {
	switch {
	case confidence >= l.Critical:
		return feature.SeverityCritical
	case confidence >= l.High:
		return feature.SeverityHigh
	case confidence >= l.Medium:
		return feature.SeverityMedium
	case confidence >= l.Low:
		return feature.SeverityLow
	default:
		return feature.SeveritySafe
	}
}

// Modifiers resolves the learned-pattern multiplier for a family and text.
// Implemented by the pattern store; the identity function when learning is
// disabled.
type Modifiers interface {
	Modifier(family, text string) float64
}

// Input carries everything the aggregator needs for one verdict.
type Input struct {
	Text       string
	Profile    feature.UserProfile
	Thresholds policy.Thresholds
	Screening  []screen.Result
	Deep       *classify.Result
	// Skipped marks families whose deep classification the conserving tier
	// withheld; their fast scores enter aggregation at ConservingPenalty.
	Skipped  map[families.Family]bool
	Degraded bool
}

// Aggregator builds verdicts. Stateless aside from its collaborators.
type Aggregator struct {
	ladder Ladder
	mods   Modifiers
}

// New creates an aggregator. mods may be nil.
func New(ladder Ladder, mods Modifiers) *Aggregator {
	if ladder == (Ladder{}) {
		ladder = DefaultLadder()
	}
	return &Aggregator{ladder: ladder, mods: mods}
}

// Decide produces the verdict for one input.
//
// Per-family confidence comes from the deep tier when it ran, otherwise from
// the fast tier alone. Each is multiplied by the policy weight and the
// learned-pattern modifier; families whose deep pass the conserving tier
// withheld take ConservingPenalty on top. The best family's adjusted
// confidence drives the ladder. The emergency reservation runs on RAW confidence before weighting
// or penalties, so resource pressure and degraded classification can delay
// but never suppress a crisis escalation.
func (a *Aggregator) Decide(in Input, now time.Time) feature.Verdict {
	verdict := feature.Verdict{
		ID:        uuid.NewString(),
		Timestamp: now,
		Degraded:  in.Degraded,
	}

	raw := make(map[families.Family]float64, len(in.Screening))
	var contributing []feature.TierResult

	for _, r := range in.Screening {
		if r.Score <= 0 {
			continue
		}
		raw[r.Family] = r.Confidence
		contributing = append(contributing, feature.TierResult{
			Tier:       feature.TierFast,
			Family:     r.Family,
			Score:      r.Score,
			Confidence: r.Confidence,
			Penalized:  in.Skipped[r.Family],
		})
	}
	if in.Deep != nil {
		for fam, conf := range in.Deep.PerFamily {
			// Deep-tier similarity supersedes the lexical estimate.
			if conf > 0 {
				raw[fam] = conf
			}
		}
		if in.Deep.Family != "" {
			contributing = append(contributing, feature.TierResult{
				Tier:       feature.TierDeep,
				Family:     in.Deep.Family,
				Score:      in.Deep.Confidence,
				Confidence: in.Deep.Confidence,
				Penalized:  in.Degraded,
				LatencyMs:  in.Deep.LatencyMs,
			})
		}
	}

	var best families.Family
	var bestAdjusted float64
	for fam, conf := range raw {
		adjusted := conf * in.Thresholds.Weights[fam]
		if a.mods != nil {
			adjusted *= a.mods.Modifier(string(fam), in.Text)
		}
		if in.Skipped[fam] {
			adjusted *= ConservingPenalty
		}
		if in.Degraded {
			adjusted *= DegradedPenalty
		}
		if adjusted > bestAdjusted {
			best, bestAdjusted = fam, adjusted
		}
	}
	if bestAdjusted > 1 {
		bestAdjusted = 1
	}

	// Emergency reservation: raw confidence, emergency families only.
	var emergency families.Family
	var emergencyConf float64
	for fam, conf := range raw {
		if families.IsEmergencyReserved(fam) && conf >= EmergencyFloor && conf > emergencyConf {
			emergency, emergencyConf = fam, conf
		}
	}
	if emergency != "" {
		verdict.ThreatDetected = true
		verdict.Severity = feature.SeverityEmergency
		verdict.PrimaryCategory = emergency
		verdict.Confidence = emergencyConf
		verdict.Contributing = contributing
		verdict.RecommendedAction = policy.ActionFor(feature.SeverityEmergency, in.Profile.Group())
		return verdict
	}

	verdict.Confidence = bestAdjusted
	verdict.Contributing = contributing

	if best == "" || bestAdjusted < in.Thresholds.Action {
		verdict.Severity = a.ladder.severityFor(bestAdjusted)
		if verdict.Severity > feature.SeverityLow {
			// Below the action threshold nothing is flagged; the ladder is
			// capped so callers never see a high severity without a flag.
			verdict.Severity = feature.SeverityLow
		}
		verdict.RecommendedAction = policy.ActionFor(verdict.Severity, in.Profile.Group())
		return verdict
	}

	verdict.ThreatDetected = true
	verdict.PrimaryCategory = best
	verdict.Severity = a.ladder.severityFor(bestAdjusted)
	verdict.RecommendedAction = policy.ActionFor(verdict.Severity, in.Profile.Group())
	return verdict
}
