// Package anonymizer redacts sensitive substrings from telemetry strings
// and attribute maps before anything leaves the process toward the LLM
// advisory service.
package anonymizer

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Pattern is one redaction rule: a regex and the literal it is replaced
// with. Order matters — the UUID rule must run before the long-token rule
// or UUIDs get swallowed by the alphanumeric-run match.
type Pattern struct {
	Name        string `yaml:"name"`
	Regex       string `yaml:"regex"`
	Replacement string `yaml:"replacement"`
	Description string `yaml:"description,omitempty"`
}

// compiled is a Pattern with its regex compiled once.
type compiled struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Anonymizer is a pure, stateless-after-construction redactor.
type Anonymizer struct {
	patterns []compiled
}

// defaultPatterns is the fixed, ordered built-in redaction table.
func defaultPatterns() []Pattern {
	return []Pattern{
		{Name: "email", Regex: `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`, Replacement: "user@example.com"},
		{Name: "ssn", Regex: `\b\d{3}-\d{2}-\d{4}\b`, Replacement: "XXX-XX-XXXX"},
		{Name: "card", Regex: `\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`, Replacement: "XXXX-XXXX-XXXX-XXXX"},
		{Name: "ipv4", Regex: `\b(?:\d{1,3}\.){3}\d{1,3}\b`, Replacement: "XXX.XXX.XXX.XXX"},
		{Name: "user_id", Regex: `\buser-\d+\b`, Replacement: "user-XXXXX"},
		{Name: "uuid", Regex: `\b[a-fA-F0-9]{8}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{12}\b`, Replacement: "xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx"},
		{Name: "token", Regex: `\b[A-Za-z0-9]{20,}\b`, Replacement: "REDACTED_TOKEN"},
	}
}

// New compiles the fixed built-in pattern table. It never fails: the
// built-in regexes are all valid by construction.
func New() *Anonymizer {
	a, err := build(defaultPatterns())
	if err != nil {
		// The built-in table is a compile-time constant; a failure here
		// means the binary itself is broken, not a runtime condition.
		panic(fmt.Sprintf("anonymizer: built-in pattern table failed to compile: %v", err))
	}
	return a
}

// NewWithOverlay compiles the built-in table followed by additional
// patterns loaded from a YAML file (a top-level `patterns:` sequence of
// {name, regex, replacement, description}). The built-ins always run
// first and are never skipped, regardless of overlay contents.
func NewWithOverlay(path string) (*Anonymizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading anonymizer overlay: %w", err)
	}

	var doc struct {
		Patterns []Pattern `yaml:"patterns"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing anonymizer overlay: %w", err)
	}

	return build(append(defaultPatterns(), doc.Patterns...))
}

func build(patterns []Pattern) (*Anonymizer, error) {
	compiledPatterns := make([]compiled, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			return nil, fmt.Errorf("compiling pattern %q: %w", p.Name, err)
		}
		compiledPatterns = append(compiledPatterns, compiled{
			name:        p.Name,
			regex:       re,
			replacement: p.Replacement,
		})
	}
	return &Anonymizer{patterns: compiledPatterns}, nil
}

// String applies every redaction pattern, in order, to s.
func (a *Anonymizer) String(s string) string {
	for _, p := range a.patterns {
		s = p.regex.ReplaceAllString(s, p.replacement)
	}
	return s
}

// Map applies String to every value of m, leaving keys untouched. A new
// map is always returned; the input is never mutated.
func (a *Anonymizer) Map(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = a.String(v)
	}
	return out
}
