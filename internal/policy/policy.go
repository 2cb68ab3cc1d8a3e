// Package policy loads label-enforcement policy documents from YAML and
// keeps them fresh via periodic mtime polling.
package policy

import (
	"fmt"
	"os"
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Enforcement is the action a LabelPolicy names for telemetry that
// violates it. The value is rendered into the LLM prompt by String; the
// filter and processor packages do not branch on it, and every installed
// filter rule drops what it matches regardless of enforcement.
type Enforcement string

const (
	// EnforcementDrop names dropping of violating telemetry.
	EnforcementDrop Enforcement = "drop"
	// EnforcementWarn names letting violating telemetry through with a
	// warning; no local warning is emitted for it.
	EnforcementWarn Enforcement = "warn"
	// EnforcementFix is reserved for attribute rewriting; the current
	// release records the intent but does not rewrite attributes inline.
	EnforcementFix Enforcement = "fix"
)

// LabelPolicy describes the labels required, forbidden, or
// pattern-constrained on telemetry, and how a violation is handled.
type LabelPolicy struct {
	Name            string      `yaml:"name"`
	RequiredLabels  []string    `yaml:"required_labels,omitempty"`
	ForbiddenLabels []string    `yaml:"forbidden_labels,omitempty"`
	LabelPatterns   []string    `yaml:"label_patterns,omitempty"`
	Enforcement     Enforcement `yaml:"enforcement"`
}

// String renders the policy as a single descriptive sentence, for
// inclusion in the LLM prompt.
func (p LabelPolicy) String() string {
	s := fmt.Sprintf("Policy '%s': ", p.Name)
	if len(p.RequiredLabels) > 0 {
		s += fmt.Sprintf("Required labels: %v. ", p.RequiredLabels)
	}
	if len(p.ForbiddenLabels) > 0 {
		s += fmt.Sprintf("Forbidden labels: %v. ", p.ForbiddenLabels)
	}
	if len(p.LabelPatterns) > 0 {
		s += fmt.Sprintf("Label patterns: %v. ", p.LabelPatterns)
	}
	s += fmt.Sprintf("Enforcement: %s", p.Enforcement)
	return s
}

// Validate checks that a LabelPolicy is well formed: a non-empty name,
// an enforcement in the recognized set, and regex-valid label patterns.
func (p LabelPolicy) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("policy: name must not be empty")
	}
	switch p.Enforcement {
	case EnforcementDrop, EnforcementWarn, EnforcementFix:
	default:
		return fmt.Errorf("policy %q: enforcement must be one of drop, warn, fix, got %q", p.Name, p.Enforcement)
	}
	for _, pat := range p.LabelPatterns {
		if _, err := regexp.Compile(pat); err != nil {
			return fmt.Errorf("policy %q: invalid label pattern %q: %w", p.Name, pat, err)
		}
	}
	return nil
}

type document struct {
	Policies []LabelPolicy `yaml:"policies"`
}

// Load reads and validates a policy document from a YAML file.
func Load(path string) ([]LabelPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing policy YAML: %w", err)
	}

	for _, p := range doc.Policies {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	return doc.Policies, nil
}

// Clock returns the current time; tests inject a fixed clock.
type Clock func() time.Time

// Manager holds the active policy set and refreshes it from disk on a
// poll interval, comparing the file's mtime rather than watching for
// filesystem events.
type Manager struct {
	path     string
	interval time.Duration
	now      Clock
	logger   *zap.SugaredLogger

	mu       sync.RWMutex
	policies []LabelPolicy
	modTime  time.Time

	stop chan struct{}
	wg   sync.WaitGroup
}

// Option configures a Manager at construction.
type Option func(*Manager)

// WithClock overrides the wall-clock source.
func WithClock(clock Clock) Option {
	return func(m *Manager) { m.now = clock }
}

// WithLogger attaches a logger so failed hot-reloads are observable
// instead of silently keeping the stale policy set. Nil-safe when
// omitted.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(m *Manager) { m.logger = logger }
}

// New creates a Manager for the policy file at path, polling for changes
// every interval. If path is empty, the Manager starts and stays empty.
func New(path string, interval time.Duration, opts ...Option) *Manager {
	m := &Manager{
		path:     path,
		interval: interval,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LoadInitial performs a synchronous first load. Callers should call
// this before Start so the first recommendation cycle has policies
// available.
func (m *Manager) LoadInitial() error {
	if m.path == "" {
		return nil
	}
	policies, modTime, err := m.readFile()
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.policies = policies
	m.modTime = modTime
	m.mu.Unlock()
	return nil
}

// Start begins polling the policy file for changes in the background.
// No-op if no path was configured.
func (m *Manager) Start() {
	if m.path == "" {
		return
	}
	m.wg.Add(1)
	go m.pollLoop()
}

// Stop halts the background poll loop and waits for it to exit.
func (m *Manager) Stop() {
	if m.path == "" {
		return
	}
	close(m.stop)
	m.wg.Wait()
}

func (m *Manager) pollLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.reloadIfChanged()
		case <-m.stop:
			return
		}
	}
}

func (m *Manager) reloadIfChanged() {
	info, err := os.Stat(m.path)
	if err != nil {
		return
	}

	m.mu.RLock()
	unchanged := !info.ModTime().After(m.modTime)
	m.mu.RUnlock()
	if unchanged {
		return
	}

	policies, modTime, err := m.readFile()
	if err != nil {
		if m.logger != nil {
			m.logger.Warnf("policy file %s changed but failed to reload, keeping previous policies: %v", m.path, err)
		}
		return
	}
	m.mu.Lock()
	m.policies = policies
	m.modTime = modTime
	m.mu.Unlock()
}

func (m *Manager) readFile() ([]LabelPolicy, time.Time, error) {
	info, err := os.Stat(m.path)
	if err != nil {
		return nil, time.Time{}, err
	}
	policies, err := Load(m.path)
	if err != nil {
		return nil, time.Time{}, err
	}
	return policies, info.ModTime(), nil
}

// Current returns a deep copy of the active policy set: callers may
// freely mutate the returned slice and its label slices without
// affecting the Manager's internal state or racing a concurrent reload.
func (m *Manager) Current() []LabelPolicy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]LabelPolicy, len(m.policies))
	for i, p := range m.policies {
		out[i] = p
		out[i].RequiredLabels = append([]string(nil), p.RequiredLabels...)
		out[i].ForbiddenLabels = append([]string(nil), p.ForbiddenLabels...)
		out[i].LabelPatterns = append([]string(nil), p.LabelPatterns...)
	}
	return out
}

// Strings renders the active policies as prompt-ready sentences.
func (m *Manager) Strings() []string {
	policies := m.Current()
	out := make([]string, len(policies))
	for i, p := range policies {
		out[i] = p.String()
	}
	return out
}
