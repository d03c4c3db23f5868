package families

import (
	"regexp"
	"sync"
)

// Pattern holds a compiled regex with metadata.
type Pattern struct {
	Name        string         // Human-readable name for logging
	Regex       *regexp.Regexp // Compiled regex (never nil after init)
	Family      Family         // Pattern family
	Weight      float64        // Score contribution in [0,1]
	Description string         // What this pattern detects
}

// Registry holds all compiled patterns, organized by family.
type Registry struct {
	mu       sync.RWMutex
	byFamily map[Family][]*Pattern
	all      []*Pattern
}

// global singleton - initialized once at package load
var (
	globalRegistry *Registry
	initOnce       sync.Once
)

// Get returns the global pattern registry (singleton).
// Thread-safe and guaranteed to be initialized.
func Get() *Registry {
	initOnce.Do(func() {
		globalRegistry = newRegistry()
	})
	return globalRegistry
}

// NewRegistry builds a fresh registry populated with the built-in patterns.
// Use this instead of Get when a test needs an isolated instance.
func NewRegistry() *Registry {
	return newRegistry()
}

func newRegistry() *Registry {
	r := &Registry{
		byFamily: make(map[Family][]*Pattern),
		all:      make([]*Pattern, 0, 128),
	}

	r.registerPhishingURLPatterns()
	r.registerTransactionAnomalyPatterns()
	r.registerSocialEngineeringPatterns()
	r.registerInvestmentScamPatterns()
	r.registerGroomingPatterns()
	r.registerCrisisSignalPatterns()
	r.registerViolenceIndicatorPatterns()

	return r
}

// register adds a pattern to the registry (internal use only).
func (r *Registry) register(name, pattern string, family Family, weight float64, description string) {
	compiled := regexp.MustCompile(pattern)
	p := &Pattern{
		Name:        name,
		Regex:       compiled,
		Family:      family,
		Weight:      weight,
		Description: description,
	}

	r.byFamily[family] = append(r.byFamily[family], p)
	r.all = append(r.all, p)
}

// ByFamily returns all patterns for a family.
// Returns an empty slice if the family has none (never nil).
func (r *Registry) ByFamily(f Family) []*Pattern {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if patterns, ok := r.byFamily[f]; ok {
		return patterns
	}
	return []*Pattern{}
}

// MatchAll returns every pattern in the given families that matches text.
// Use when all matches are needed for comprehensive scoring.
func (r *Registry) MatchAll(text string, fams ...Family) []*Pattern {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []*Pattern
	for _, f := range fams {
		for _, p := range r.byFamily[f] {
			if p.Regex.MatchString(text) {
				matches = append(matches, p)
			}
		}
	}
	return matches
}

// MatchAny returns the first pattern in the given families that matches text,
// or nil. Optimized for early exit.
func (r *Registry) MatchAny(text string, fams ...Family) *Pattern {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, f := range fams {
		for _, p := range r.byFamily[f] {
			if p.Regex.MatchString(text) {
				return p
			}
		}
	}
	return nil
}

// TotalPatterns returns the total count of registered patterns.
func (r *Registry) TotalPatterns() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.all)
}

// FamilyCount returns the number of patterns in a family.
func (r *Registry) FamilyCount(f Family) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byFamily[f])
}
