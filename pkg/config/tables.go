package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/emailscope/pkg/utils"
)

//go:embed tables.yaml
var defaultTablesYAML []byte

// Industry maps domain-name keywords to role local parts for one category
type Industry struct {
	Name       string   `yaml:"name"`
	Keywords   []string `yaml:"keywords"`
	LocalParts []string `yaml:"local_parts"`
}

// Tables holds the tunable denylists and keyword sets used by the
// link filter, extractor, scorer and verifier.
type Tables struct {
	SkipPathSegments   []string   `yaml:"skip_path_segments"`
	SkipPathPatterns   []string   `yaml:"skip_path_patterns"` // Regex, matched against the URL path
	SkipExtensions     []string   `yaml:"skip_extensions"`
	PriorityKeywords   []string   `yaml:"priority_keywords"`
	HomePaths          []string   `yaml:"home_paths"`
	ContextKeywords    []string   `yaml:"context_keywords"`
	GenericLocalParts  []string   `yaml:"generic_local_parts"`
	ScoreKeywords      []string   `yaml:"score_keywords"`
	Industries         []Industry `yaml:"industries"` // Checked in order; first match wins
	DisposableDomains  []string   `yaml:"disposable_domains"`
	DisposablePatterns []string   `yaml:"disposable_patterns"`
	ReputableDomains   []string   `yaml:"reputable_domains"`
	SuspiciousPatterns []string   `yaml:"suspicious_patterns"`
	UserAgents         []string   `yaml:"user_agents"`
}

// DefaultTables returns the embedded tables.
// Panics only if the embedded file is malformed, which the package tests guard.
func DefaultTables() *Tables {
	t := &Tables{}
	if err := yaml.Unmarshal(defaultTablesYAML, t); err != nil {
		panic(fmt.Sprintf("embedded tables.yaml is invalid: %v", err))
	}
	return t
}

// LoadTables returns the embedded defaults, overlaid with the keys present in path (if non-empty).
func LoadTables(path string) (*Tables, error) {
	t := DefaultTables()
	if path == "" {
		return t, t.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading tables file '%s': %w", utils.ErrFilesystem, path, err)
	}
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("%w: YAML in tables file '%s': %w", utils.ErrParsing, path, err)
	}
	t.normalize()
	return t, t.Validate()
}

// normalize lower-cases entries that are matched case-insensitively
func (t *Tables) normalize() {
	for _, list := range [][]string{
		t.SkipPathSegments, t.SkipExtensions, t.PriorityKeywords, t.HomePaths,
		t.ContextKeywords, t.GenericLocalParts, t.ScoreKeywords,
		t.DisposableDomains, t.ReputableDomains,
	} {
		for i := range list {
			list[i] = strings.ToLower(strings.TrimSpace(list[i]))
		}
	}
	for i := range t.Industries {
		for j := range t.Industries[i].Keywords {
			t.Industries[i].Keywords[j] = strings.ToLower(t.Industries[i].Keywords[j])
		}
	}
}

// Validate checks that the regex tables compile and that rotation has at least one user agent.
func (t *Tables) Validate() error {
	if len(t.UserAgents) == 0 {
		return fmt.Errorf("%w: tables need at least one user_agents entry", utils.ErrConfigValidation)
	}
	for _, set := range [][]string{t.SkipPathPatterns, t.DisposablePatterns, t.SuspiciousPatterns} {
		if _, err := utils.CompileRegexPatterns(set); err != nil {
			return err
		}
	}
	for i, ind := range t.Industries {
		if ind.Name == "" {
			return fmt.Errorf("%w: industries entry #%d has no name", utils.ErrConfigValidation, i+1)
		}
	}
	return nil
}
