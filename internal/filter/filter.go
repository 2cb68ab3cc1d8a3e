// Package filter compiles parser.FilterRule conditions into evaluators
// and applies the currently installed set of rules to flowing telemetry.
package filter

import (
	"regexp"
	"sync"
	"time"

	"github.com/telemetryadvisor/advisor/internal/parser"
	"github.com/telemetryadvisor/advisor/internal/signal"
)

// Clock returns the current time; tests inject a fixed clock.
type Clock func() time.Time

// shapeKind discriminates the small set of condition shapes the compiler
// understands. Anything else compiles to unsupported, which never
// matches (fail closed: an unrecognized rule never drops data).
type shapeKind int

const (
	shapeUnsupported shapeKind = iota
	shapeAttrEquals
	shapeResourceEquals
	shapeAttrAbsent
	shapeResourceAbsent
)

var (
	attrEqualsPattern     = regexp.MustCompile(`^attributes\["([^"]+)"\]\s*==\s*"([^"]*)"$`)
	resourceEqualsPattern = regexp.MustCompile(`^resource\.attributes\["([^"]+)"\]\s*==\s*"([^"]*)"$`)
	attrAbsentPattern     = regexp.MustCompile(`^attributes\["([^"]+)"\]\s*==\s*nil$`)
	resourceAbsentPattern = regexp.MustCompile(`^resource\.attributes\["([^"]+)"\]\s*==\s*nil$`)
)

// compiledCondition is the evaluator produced from a rule's condition
// string at install time.
type compiledCondition struct {
	kind  shapeKind
	key   string
	value string
}

func compile(condition string) compiledCondition {
	if m := attrEqualsPattern.FindStringSubmatch(condition); m != nil {
		return compiledCondition{kind: shapeAttrEquals, key: m[1], value: m[2]}
	}
	if m := resourceEqualsPattern.FindStringSubmatch(condition); m != nil {
		return compiledCondition{kind: shapeResourceEquals, key: m[1], value: m[2]}
	}
	if m := attrAbsentPattern.FindStringSubmatch(condition); m != nil {
		return compiledCondition{kind: shapeAttrAbsent, key: m[1]}
	}
	if m := resourceAbsentPattern.FindStringSubmatch(condition); m != nil {
		return compiledCondition{kind: shapeResourceAbsent, key: m[1]}
	}
	return compiledCondition{kind: shapeUnsupported}
}

func (c compiledCondition) matchesAttrs(attrs map[string]string) bool {
	switch c.kind {
	case shapeAttrEquals:
		return attrs[c.key] == c.value
	case shapeAttrAbsent:
		_, ok := attrs[c.key]
		return !ok
	default:
		return false
	}
}

func (c compiledCondition) matchesResource(tags map[string]string) bool {
	switch c.kind {
	case shapeResourceEquals:
		return tags[c.key] == c.value
	case shapeResourceAbsent:
		_, ok := tags[c.key]
		return !ok
	default:
		return false
	}
}

// installedRule pairs a parser.FilterRule with its compiled evaluator.
type installedRule struct {
	rule      parser.FilterRule
	condition compiledCondition
}

// Manager holds the currently installed drop rules and evaluates
// telemetry against them. All methods are safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	rules    []installedRule
	byName   map[string]bool
	maxRules int
	ttl      time.Duration
	now      Clock
}

// Option configures a Manager at construction.
type Option func(*Manager)

// WithClock overrides the wall-clock source.
func WithClock(clock Clock) Option {
	return func(m *Manager) { m.now = clock }
}

// New creates a Manager that accepts at most maxRules simultaneously
// installed rules. ttl is an optional per-rule expiry; zero disables
// expiry entirely.
func New(maxRules int, ttl time.Duration, opts ...Option) *Manager {
	m := &Manager{
		byName:   make(map[string]bool),
		maxRules: maxRules,
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Install adds rules that are not already installed (by Name) and for
// which there is still room under maxRules. Rules with an unsupported
// condition shape are still installed — they simply never match — so
// that operators can see them via Active() and diagnose the gap; their
// count is returned separately so callers can feed an operator-visible
// metric. Install reports the names of rules it skipped for being
// duplicates or over capacity. Expired rules are swept before new ones
// are admitted, so a full set can make room for itself over time.
func (m *Manager) Install(rules []parser.FilterRule) (installed int, skipped []string, unsupported int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.expireLocked()

	for _, rule := range rules {
		if m.byName[rule.Name] {
			skipped = append(skipped, rule.Name)
			continue
		}
		if len(m.rules) >= m.maxRules {
			skipped = append(skipped, rule.Name)
			continue
		}
		condition := compile(rule.Condition)
		if condition.kind == shapeUnsupported {
			unsupported++
		}
		rule.InstalledAt = m.now()
		m.rules = append(m.rules, installedRule{rule: rule, condition: condition})
		m.byName[rule.Name] = true
		installed++
	}
	return installed, skipped, unsupported
}

// Sweep removes any rule whose TTL has elapsed. It is a no-op when no
// ttl is configured. Callers invoke it periodically (e.g. from the
// processor's recommendation tick) since expiry is not checked on
// every Apply call.
func (m *Manager) Sweep() (removed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	before := len(m.rules)
	m.expireLocked()
	return before - len(m.rules)
}

func (m *Manager) expireLocked() {
	if m.ttl <= 0 || len(m.rules) == 0 {
		return
	}
	now := m.now()
	kept := m.rules[:0]
	for _, r := range m.rules {
		if now.Sub(r.rule.InstalledAt) < m.ttl {
			kept = append(kept, r)
		} else {
			delete(m.byName, r.rule.Name)
		}
	}
	m.rules = kept
}

// Clear removes every installed rule.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = nil
	m.byName = make(map[string]bool)
}

// Active returns a snapshot of the currently installed rules.
func (m *Manager) Active() []parser.FilterRule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]parser.FilterRule, len(m.rules))
	for i, r := range m.rules {
		out[i] = r.rule
	}
	return out
}

// Count returns the number of currently installed rules.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rules)
}

// ApplyTraces drops any trace span matched by an installed trace rule.
func (m *Manager) ApplyTraces(traces []signal.TraceSpan) []signal.TraceSpan {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]signal.TraceSpan, 0, len(traces))
	for _, t := range traces {
		if !m.matchesAny(signal.KindTrace, t.Attributes, t.ResourceTags) {
			out = append(out, t)
		}
	}
	return out
}

// ApplyMetrics drops any metric matched by an installed metric rule.
func (m *Manager) ApplyMetrics(metrics []signal.MetricDataPoint) []signal.MetricDataPoint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]signal.MetricDataPoint, 0, len(metrics))
	for _, mp := range metrics {
		if !m.matchesAny(signal.KindMetric, mp.Labels, mp.ResourceTags) {
			out = append(out, mp)
		}
	}
	return out
}

// ApplyLogs drops any log entry matched by an installed log rule.
func (m *Manager) ApplyLogs(logs []signal.LogEntry) []signal.LogEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]signal.LogEntry, 0, len(logs))
	for _, l := range logs {
		if !m.matchesAny(signal.KindLog, l.Attributes, l.ResourceTags) {
			out = append(out, l)
		}
	}
	return out
}

func (m *Manager) matchesAny(kind signal.Kind, attrs, resourceTags map[string]string) bool {
	for _, r := range m.rules {
		if r.rule.Type != kind {
			continue
		}
		if r.condition.matchesAttrs(attrs) || r.condition.matchesResource(resourceTags) {
			return true
		}
	}
	return false
}
