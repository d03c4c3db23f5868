// Package store implements the adaptive pattern store: the learning loop that
// reinforces recurring threat signatures, decays stale ones, and feeds a
// confidence modifier back into decision aggregation.
package store

import "time"

// EntryState is the lifecycle stage of a stored signature.
type EntryState string

const (
	// StateNew marks a signature seen exactly once.
	StateNew EntryState = "new"
	// StateActive marks a reinforced signature within its retention window.
	StateActive EntryState = "active"
	// StateDecaying marks a signature past retention, losing confidence.
	StateDecaying EntryState = "decaying"
)

// PatternEntry is one learned signature. Confidence is always derivable from
// Peak, LastSeen, and the clock, so repeated decay passes at the same instant
// are no-ops.
type PatternEntry struct {
	Signature  string     `json:"signature"`
	Family     string     `json:"family"`
	State      EntryState `json:"state"`
	Confidence float64    `json:"confidence"`
	// Peak is the confidence at the moment of the last reinforcement or
	// feedback. Decay recomputes Confidence from Peak, never from the
	// already-decayed value.
	Peak      float64   `json:"peak"`
	HitCount  int64     `json:"hit_count"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}
