package families

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

func compilePattern(expr string) (*regexp.Regexp, error) {
	compiled, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile regex: %w", err)
	}
	return compiled, nil
}

// PackPattern is a single pattern entry in a YAML pattern pack.
type PackPattern struct {
	Name        string  `yaml:"name"`
	Family      string  `yaml:"family"`
	Regex       string  `yaml:"regex"`
	Weight      float64 `yaml:"weight"`
	Description string  `yaml:"description"`
}

// PackSeed is an extra deep-tier exemplar in a YAML pattern pack.
type PackSeed struct {
	Family string `yaml:"family"`
	Text   string `yaml:"text"`
}

// Pack is a YAML-defined set of extra patterns and exemplars, letting
// deployments ship signature updates without a rebuild.
type Pack struct {
	Version  string        `yaml:"version"`
	Patterns []PackPattern `yaml:"patterns"`
	Seeds    []PackSeed    `yaml:"seeds"`
}

// LoadPack parses a pattern pack from a YAML file.
func LoadPack(path string) (*Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pattern pack: %w", err)
	}

	var pack Pack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("parse pattern pack: %w", err)
	}

	for i, p := range pack.Patterns {
		if !Valid(Family(p.Family)) {
			return nil, fmt.Errorf("pattern %q (index %d): unknown family %q", p.Name, i, p.Family)
		}
		if p.Weight <= 0 || p.Weight > 1 {
			return nil, fmt.Errorf("pattern %q: weight %.2f outside (0,1]", p.Name, p.Weight)
		}
	}
	for i, s := range pack.Seeds {
		if !Valid(Family(s.Family)) {
			return nil, fmt.Errorf("seed index %d: unknown family %q", i, s.Family)
		}
	}

	return &pack, nil
}

// Merge compiles and registers the pack's patterns into the registry.
// Invalid regexes fail the whole merge; nothing is partially applied.
func (r *Registry) Merge(pack *Pack) error {
	if pack == nil {
		return nil
	}

	// Validate all regexes before mutating the registry.
	for _, p := range pack.Patterns {
		if _, err := compilePattern(p.Regex); err != nil {
			return fmt.Errorf("pattern %q: %w", p.Name, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range pack.Patterns {
		compiled, _ := compilePattern(p.Regex)
		entry := &Pattern{
			Name:        p.Name,
			Regex:       compiled,
			Family:      Family(p.Family),
			Weight:      p.Weight,
			Description: p.Description,
		}
		r.byFamily[entry.Family] = append(r.byFamily[entry.Family], entry)
		r.all = append(r.all, entry)
	}
	return nil
}
