// Package families provides the centralized, high-performance pattern registry
// for threat detection. All regex patterns are compiled once at package init
// and shared across the fast and deep tiers.
//
// Design principles:
// - COMPILE ONCE: All patterns compiled at init, not per-request
// - CATEGORIZED: Patterns organized by pattern family for targeted scans
// - EXTENSIBLE: Extra patterns can be merged from YAML packs without code changes
package families

// Family identifies a named category of threat heuristic.
type Family string

const (
	PhishingURL        Family = "phishing_url"
	TransactionAnomaly Family = "transaction_anomaly"
	SocialEngineering  Family = "social_engineering"
	InvestmentScam     Family = "investment_scam"
	Grooming           Family = "grooming"
	CrisisSignal       Family = "crisis_signal"
	ViolenceIndicator  Family = "violence_indicator"
)

// All returns every known family in canonical order.
func All() []Family {
	return []Family{
		PhishingURL,
		TransactionAnomaly,
		SocialEngineering,
		InvestmentScam,
		Grooming,
		CrisisSignal,
		ViolenceIndicator,
	}
}

// emergencyReserved is the small family subset allowed to produce emergency
// severity. Membership here is a safety property, not a tuning knob.
var emergencyReserved = map[Family]bool{
	CrisisSignal:      true,
	ViolenceIndicator: true,
}

// IsEmergencyReserved reports whether f may escalate to emergency severity.
func IsEmergencyReserved(f Family) bool {
	return emergencyReserved[f]
}

// Valid reports whether f is a known family.
func Valid(f Family) bool {
	for _, known := range All() {
		if known == f {
			return true
		}
	}
	return false
}
