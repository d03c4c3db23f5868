// Package engine is the façade over the detection pipeline: one entry point
// for detection, feedback, and metrics, hiding tier routing, policy
// resolution, and the learning loop from callers.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/luminasec/sentinel/pkg/classify"
	"github.com/luminasec/sentinel/pkg/decision"
	"github.com/luminasec/sentinel/pkg/families"
	"github.com/luminasec/sentinel/pkg/feature"
	"github.com/luminasec/sentinel/pkg/logging"
	"github.com/luminasec/sentinel/pkg/monitor"
	"github.com/luminasec/sentinel/pkg/policy"
	"github.com/luminasec/sentinel/pkg/screen"
	"github.com/luminasec/sentinel/pkg/store"
	"github.com/luminasec/sentinel/pkg/telemetry"
)

// Archiver receives verdicts and feedback for offline history. Optional.
type Archiver interface {
	WriteVerdict(v feature.Verdict, group feature.AgeGroup, tag feature.ContextTag)
	WriteFeedback(rec feature.FeedbackRecord)
	AccuracyEstimate(ctx context.Context, window time.Duration) (float64, error)
}

// TierSource exposes the current operating tier. Implemented by the resource
// monitor; fixed in tests.
type TierSource interface {
	Tier() monitor.OperatingTier
	Degraded() bool
}

// Options wires the engine's collaborators.
type Options struct {
	Policy     *policy.Engine
	Screener   *screen.Screener
	Classifier classify.Classifier
	Monitor    TierSource
	Store      *store.Store
	Ladder     decision.Ladder
	Archive    Archiver
	// CacheSize bounds the recent-verdict cache addressable by feedback.
	CacheSize int
	// ConservingFamilies is how many priority families keep deep
	// classification in the conserving tier.
	ConservingFamilies int
}

// DetectOptions tunes one detection call.
type DetectOptions struct {
	// FastOnly skips the deep tier regardless of operating tier. Used by
	// callers that need the strict latency bound.
	FastOnly bool
}

// Engine is the pipeline façade. Safe for concurrent use.
type Engine struct {
	policy     *policy.Engine
	screener   *screen.Screener
	classifier classify.Classifier
	monitor    TierSource
	store      *store.Store
	aggregator *decision.Aggregator
	archive    Archiver

	conservingFamilies int

	cache *verdictCache

	detections   atomic.Int64
	latencyTotal atomic.Int64 // microseconds
	agreed       atomic.Int64
	contested    atomic.Int64
}

// New creates the engine. Policy, Screener, Classifier, Monitor, and Store
// are required.
func New(opts Options) (*Engine, error) {
	if opts.Policy == nil || opts.Screener == nil || opts.Classifier == nil || opts.Monitor == nil || opts.Store == nil {
		return nil, fmt.Errorf("engine: missing required collaborator")
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 4096
	}
	if opts.ConservingFamilies <= 0 {
		opts.ConservingFamilies = 3
	}
	return &Engine{
		policy:             opts.Policy,
		screener:           opts.Screener,
		classifier:         opts.Classifier,
		monitor:            opts.Monitor,
		store:              opts.Store,
		aggregator:         decision.New(opts.Ladder, opts.Store),
		archive:            opts.Archive,
		conservingFamilies: opts.ConservingFamilies,
		cache:              newVerdictCache(opts.CacheSize),
	}, nil
}

// Detect evaluates one input with default options.
func (e *Engine) Detect(ctx context.Context, in feature.FeatureInput, profile feature.UserProfile) (feature.Verdict, error) {
	return e.DetectWithOptions(ctx, in, profile, DetectOptions{})
}

// DetectWithOptions evaluates one input.
//
// The operating tier is read once at the start and holds for the whole call;
// a mid-flight tier change affects only subsequent detections. Input text is
// processed in memory and discarded; only the sanitized signature survives
// the call.
func (e *Engine) DetectWithOptions(ctx context.Context, in feature.FeatureInput, profile feature.UserProfile, opts DetectOptions) (feature.Verdict, error) {
	start := time.Now()

	if err := feature.ValidateInput(in); err != nil {
		return feature.Verdict{}, err
	}
	if err := feature.ValidateProfile(profile); err != nil {
		return feature.Verdict{}, err
	}

	tier := e.monitor.Tier()
	degraded := e.monitor.Degraded()
	th := e.policy.Resolve(profile, in.Context)

	screening, err := e.screener.Screen(ctx, in, th)
	if err != nil {
		return feature.Verdict{}, fmt.Errorf("screening: %w", err)
	}

	candidates, skipped := e.deepCandidates(screening, th, tier, opts)

	var deep *classify.Result
	if len(candidates) > 0 {
		res, cerr := e.classifier.Classify(ctx, in.Text, candidates, th.Priority)
		switch {
		case cerr == nil:
			deep = &res
		case errors.Is(cerr, classify.ErrDegraded):
			deep = &res
			degraded = true
		case errors.Is(cerr, feature.ErrTierUnavailable):
			// Fast-tier evidence still decides, at reduced confidence.
			degraded = true
		case errors.Is(cerr, context.Canceled) || errors.Is(cerr, context.DeadlineExceeded):
			return feature.Verdict{}, cerr
		default:
			degraded = true
			logging.Warn().Err(cerr).Msg("deep classification failed")
		}
	}

	now := time.Now()
	verdict := e.aggregator.Decide(decision.Input{
		Text:       in.Text,
		Profile:    profile,
		Thresholds: th,
		Screening:  screening,
		Deep:       deep,
		Skipped:    skipped,
		Degraded:   degraded,
	}, now)

	if verdict.ThreatDetected {
		e.store.RecordDetection(string(verdict.PrimaryCategory), in.Text, now)
		verdict.Signature = store.Signature(string(verdict.PrimaryCategory), in.Text)
	}

	e.cache.put(cachedVerdict{
		verdict: verdict,
		text:    in.Text,
		group:   profile.Group(),
		context: in.Context,
	})

	elapsed := time.Since(start)
	e.detections.Add(1)
	e.latencyTotal.Add(elapsed.Microseconds())
	telemetry.ObserveDetection(verdict.Severity.String(), string(tier), elapsed.Seconds())

	if e.archive != nil {
		e.archive.WriteVerdict(verdict, profile.Group(), in.Context)
	}

	logging.Debug().
		Str("verdict_id", verdict.ID).
		Str("severity", verdict.Severity.String()).
		Str("category", string(verdict.PrimaryCategory)).
		Float64("confidence", verdict.Confidence).
		Bool("degraded", verdict.Degraded).
		Str("tier", string(tier)).
		Msg("detection complete")

	return verdict, nil
}

// deepCandidates narrows the forwarded families according to the operating
// tier. Emergency-reserved families always pass; the conserving tier keeps
// only the profile's top priority families besides them. Skipped families
// fall back to their fast scores, which the aggregator penalizes.
func (e *Engine) deepCandidates(screening []screen.Result, th policy.Thresholds, tier monitor.OperatingTier, opts DetectOptions) ([]families.Family, map[families.Family]bool) {
	if opts.FastOnly {
		return nil, nil
	}

	var forwarded []families.Family
	for _, r := range screening {
		if r.Forwarded {
			forwarded = append(forwarded, r.Family)
		}
	}
	if tier != monitor.TierConserving {
		return forwarded, nil
	}

	allowed := make(map[families.Family]bool, e.conservingFamilies)
	for i, f := range th.Priority {
		if i >= e.conservingFamilies {
			break
		}
		allowed[f] = true
	}

	var kept []families.Family
	skipped := make(map[families.Family]bool)
	for _, f := range forwarded {
		if allowed[f] || families.IsEmergencyReserved(f) {
			kept = append(kept, f)
		} else {
			skipped[f] = true
		}
	}
	return kept, skipped
}

// ProvideFeedback records a user's assertion about a prior verdict, feeding
// both the pattern store and the policy sensitivity nudges.
func (e *Engine) ProvideFeedback(ctx context.Context, verdictID string, assertedThreat bool) error {
	cached, ok := e.cache.get(verdictID)
	if !ok {
		return fmt.Errorf("%w: %s", feature.ErrUnknownVerdict, verdictID)
	}

	now := time.Now()
	rec := feature.FeedbackRecord{
		VerdictID:      verdictID,
		AssertedThreat: assertedThreat,
		Timestamp:      now,
	}

	agreement := assertedThreat == cached.verdict.ThreatDetected
	if agreement {
		e.agreed.Add(1)
		telemetry.ObserveFeedback("confirmed")
	} else {
		e.contested.Add(1)
		telemetry.ObserveFeedback("contested")
	}

	switch {
	case cached.verdict.ThreatDetected && assertedThreat:
		e.store.ApplyFeedback(string(cached.verdict.PrimaryCategory), cached.text, true, now)
	case cached.verdict.ThreatDetected && !assertedThreat:
		// False positive: cut the signature's confidence and ease policy
		// sensitivity for this family and group.
		e.store.ApplyFeedback(string(cached.verdict.PrimaryCategory), cached.text, false, now)
		e.policy.ApplyNudge(cached.group, cached.verdict.PrimaryCategory, -1)
	case !cached.verdict.ThreatDetected && assertedThreat:
		// False negative: learn the signature under the strongest screening
		// family and raise sensitivity.
		fam := e.missedFamily(cached)
		if fam != "" {
			e.store.RecordDetection(string(fam), cached.text, now)
			e.policy.ApplyNudge(cached.group, fam, +1)
		}
	}

	if e.archive != nil {
		e.archive.WriteFeedback(rec)
	}

	logging.Info().
		Str("verdict_id", verdictID).
		Bool("asserted_threat", assertedThreat).
		Bool("agreement", agreement).
		Msg("feedback recorded")
	return nil
}

// missedFamily picks the family to learn from a contested clean verdict: the
// strongest fast-tier contributor, falling back to the top priority family.
func (e *Engine) missedFamily(cached cachedVerdict) families.Family {
	var best families.Family
	var bestScore float64
	for _, c := range cached.verdict.Contributing {
		if c.Tier == feature.TierFast && c.Score > bestScore {
			best, bestScore = c.Family, c.Score
		}
	}
	if best != "" {
		return best
	}
	th := e.policy.Resolve(feature.UserProfile{Category: cached.group}, cached.context)
	if len(th.Priority) > 0 {
		return th.Priority[0]
	}
	return ""
}

// Metrics returns the engine's operational snapshot.
func (e *Engine) Metrics(ctx context.Context) feature.EngineMetrics {
	total := e.detections.Load()
	m := feature.EngineMetrics{
		TotalDetections:  total,
		PatternStoreSize: e.store.Size(),
		CurrentTier:      string(e.monitor.Tier()),
	}
	if total > 0 {
		m.AverageLatencyMs = float64(e.latencyTotal.Load()) / float64(total) / 1000
	}

	m.AccuracyEstimate = e.localAccuracy()
	if e.archive != nil {
		if acc, err := e.archive.AccuracyEstimate(ctx, 7*24*time.Hour); err == nil {
			m.AccuracyEstimate = acc
		}
	}
	return m
}

// localAccuracy estimates accuracy from in-process feedback counters. 1.0
// when no feedback has arrived.
func (e *Engine) localAccuracy() float64 {
	agreed, contested := e.agreed.Load(), e.contested.Load()
	if agreed+contested == 0 {
		return 1.0
	}
	return float64(agreed) / float64(agreed+contested)
}

type cachedVerdict struct {
	verdict feature.Verdict
	text    string
	group   feature.AgeGroup
	context feature.ContextTag
}

// verdictCache is a bounded FIFO of recent verdicts so feedback can reference
// them. Raw text is held only here, in memory, and leaves with eviction.
type verdictCache struct {
	mu    sync.Mutex
	byID  map[string]cachedVerdict
	order []string
	cap   int
}

func newVerdictCache(capacity int) *verdictCache {
	return &verdictCache{
		byID: make(map[string]cachedVerdict, capacity),
		cap:  capacity,
	}
}

func (c *verdictCache) put(v cachedVerdict) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.order) >= c.cap {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.byID, oldest)
	}
	c.byID[v.verdict.ID] = v
	c.order = append(c.order, v.verdict.ID)
}

func (c *verdictCache) get(id string) (cachedVerdict, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.byID[id]
	return v, ok
}
