package feature

import "errors"

// Predictable failure modes are typed so callers can branch on them; none of
// these should ever surface as a panic from the detect boundary.
var (
	// ErrInputInvalid marks a malformed FeatureInput. The caller must treat
	// the event as "unknown, not cleared" - no Verdict is produced.
	ErrInputInvalid = errors.New("feature input invalid")

	// ErrTierUnavailable marks a deep-tier dependency failure. The engine
	// converts it into a degraded verdict rather than returning it.
	ErrTierUnavailable = errors.New("deep classification tier unavailable")

	// ErrUnknownVerdict marks feedback that references a verdict the engine
	// no longer remembers.
	ErrUnknownVerdict = errors.New("unknown verdict id")
)
