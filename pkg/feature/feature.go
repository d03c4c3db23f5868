// Package feature defines the data model shared by every detection component:
// the FeatureInput consumed by the tiers, the UserProfile that drives policy,
// and the Verdict produced per input.
package feature

import (
	"time"

	"github.com/luminasec/sentinel/pkg/families"
)

// ContextTag identifies the domain an event was captured in.
type ContextTag string

const (
	ContextConversation ContextTag = "conversation"
	ContextTransaction  ContextTag = "transaction"
	ContextBrowsing     ContextTag = "browsing"
	ContextSocialMedia  ContextTag = "social_media"
	ContextNetwork      ContextTag = "network"
)

// ValidContext reports whether tag is a known context.
func ValidContext(tag ContextTag) bool {
	switch tag {
	case ContextConversation, ContextTransaction, ContextBrowsing, ContextSocialMedia, ContextNetwork:
		return true
	default:
		return false
	}
}

// FeatureInput is the normalized, structured description of one event to be
// evaluated. Immutable once created; owned solely by the call that produced it.
type FeatureInput struct {
	Text      string     `json:"text" validate:"required"`
	URLs      []string   `json:"urls,omitempty" validate:"dive,url"`
	Amount    *float64   `json:"amount,omitempty" validate:"omitempty,gte=0"`
	Sender    string     `json:"sender,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	Context   ContextTag `json:"context" validate:"required"`
}

// AgeGroup is the derived or declared user category.
type AgeGroup string

const (
	GroupChild       AgeGroup = "child"
	GroupTeen        AgeGroup = "teen"
	GroupYoungAdult  AgeGroup = "young_adult"
	GroupAdult       AgeGroup = "adult"
	GroupSenior      AgeGroup = "senior"
	GroupUnspecified AgeGroup = "unspecified"
)

// UserProfile carries the age and/or category of the active user.
// Replaced wholesale when the active user changes, never mutated field by field.
type UserProfile struct {
	Age      int      `json:"age" validate:"gte=0"`
	Category AgeGroup `json:"category,omitempty"`
}

// Group resolves the effective age group. An explicit category overrides the
// age-derived group; with neither, the profile is unspecified.
func (p UserProfile) Group() AgeGroup {
	if p.Category != "" && p.Category != GroupUnspecified {
		return p.Category
	}
	switch {
	case p.Age <= 0:
		return GroupUnspecified
	case p.Age < 13:
		return GroupChild
	case p.Age < 18:
		return GroupTeen
	case p.Age < 26:
		return GroupYoungAdult
	case p.Age < 65:
		return GroupAdult
	default:
		return GroupSenior
	}
}

// Severity is the ordered outcome ladder. Ordering is load-bearing: severity
// comparisons use the integer values directly.
type Severity int

const (
	SeveritySafe Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
	SeverityEmergency
)

// String implements fmt.Stringer.
func (s Severity) String() string {
	switch s {
	case SeveritySafe:
		return "safe"
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	case SeverityEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// MarshalText lets Severity serialize as its name in JSON.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ActionKind is the base recommended action.
type ActionKind string

const (
	ActionAllow    ActionKind = "allow"
	ActionWarn     ActionKind = "warn"
	ActionBlock    ActionKind = "block"
	ActionEscalate ActionKind = "escalate"
)

// Action is the full recommended response to a verdict.
type Action struct {
	Kind           ActionKind `json:"kind"`
	NotifyGuardian bool       `json:"notify_guardian,omitempty"`
}

// TierName identifies which detection stage produced a TierResult.
type TierName string

const (
	TierFast TierName = "fast"
	TierDeep TierName = "deep"
)

// TierResult records one tier's contribution to a verdict.
type TierResult struct {
	Tier       TierName        `json:"tier"`
	Family     families.Family `json:"family"`
	Score      float64         `json:"score"`
	Confidence float64         `json:"confidence"`
	Penalized  bool            `json:"penalized,omitempty"`
	LatencyMs  float64         `json:"latency_ms"`
}

// Verdict is the final decision object produced per input. Immutable;
// consumed by the caller and optionally archived into learning history.
type Verdict struct {
	ID                string          `json:"id"`
	ThreatDetected    bool            `json:"threat_detected"`
	Severity          Severity        `json:"severity"`
	PrimaryCategory   families.Family `json:"primary_category,omitempty"`
	Confidence        float64         `json:"confidence"`
	Contributing      []TierResult    `json:"contributing,omitempty"`
	RecommendedAction Action          `json:"recommended_action"`
	Degraded          bool            `json:"degraded,omitempty"`
	Signature         string          `json:"signature,omitempty"`
	Timestamp         time.Time       `json:"timestamp"`
}

// FeedbackRecord captures explicit user feedback about a prior verdict.
// Created only when feedback arrives; never required for normal operation.
type FeedbackRecord struct {
	VerdictID      string    `json:"verdict_id"`
	AssertedThreat bool      `json:"asserted_threat"`
	Timestamp      time.Time `json:"timestamp"`
}

// EngineMetrics is the read-only snapshot returned by the engine façade.
type EngineMetrics struct {
	TotalDetections  int64   `json:"total_detections"`
	AccuracyEstimate float64 `json:"accuracy_estimate"`
	AverageLatencyMs float64 `json:"average_latency_ms"`
	PatternStoreSize int     `json:"pattern_store_size"`
	CurrentTier      string  `json:"current_tier"`
}
