// Package parser turns an LLM's free-text advisory reply into structured
// Recommendations and FilterRules the rest of the pipeline can act on.
package parser

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/telemetryadvisor/advisor/internal/signal"
)

// RecommendationType classifies why a Recommendation was raised.
type RecommendationType string

const (
	RecommendationTypeDropSignal  RecommendationType = "drop_signal"
	RecommendationTypeLabelPolicy RecommendationType = "label_policy"
)

// Priority is the urgency the parser assigns to a Recommendation based
// on keyword scanning of its description.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// FilterRule is a single drop condition extracted from an OTEL FILTER
// RULES block, ready to be installed into the filter package.
type FilterRule struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Type        signal.Kind `json:"type"`
	Condition   string      `json:"condition"`
	Action      string      `json:"action"`
	Description string      `json:"description"`
	// InstalledAt is stamped by the filter Manager when the rule is
	// admitted into the active set; used for TTL-based expiry if
	// filter_timeout is configured. Zero until installed.
	InstalledAt time.Time `json:"installed_at,omitempty"`
}

// Recommendation is one actionable item parsed from an LLM reply.
type Recommendation struct {
	ID               string              `json:"id"`
	Type             RecommendationType  `json:"type"`
	Priority         Priority            `json:"priority"`
	Description      string              `json:"description"`
	Rationale        string              `json:"rationale"`
	FilterRules      []FilterRule        `json:"filter_rules"`
	EstimatedSavings string              `json:"estimated_savings"`
	CreatedAt        time.Time           `json:"created_at"`
}

// Summary tallies a ParsedRecommendations set by type and priority.
type Summary struct {
	TotalRecommendations int                         `json:"total_recommendations"`
	ByType               map[RecommendationType]int  `json:"by_type"`
	ByPriority           map[Priority]int             `json:"by_priority"`
	EstimatedSavings     string                      `json:"estimated_savings"`
}

// ParsedRecommendations is the parser's full output for a single LLM
// reply.
type ParsedRecommendations struct {
	Recommendations []Recommendation `json:"recommendations"`
	Summary         Summary          `json:"summary"`
	GeneratedAt     time.Time        `json:"generated_at"`
}

var (
	signalsToDropPattern  = regexp.MustCompile(`(?is)SIGNALS TO DROP:?\s*\n(.*?)(?:\n\d+\.|$)`)
	labelPolicyPattern    = regexp.MustCompile(`(?is)LABEL POLICY VIOLATIONS:?\s*\n(.*?)(?:\n\d+\.|$)`)
	otelRulesBlockPattern = regexp.MustCompile(`(?i)(?:filter|traces|metrics|logs):\s*\n((?:[ \t]*-[ \t]*.*\n?)+)`)
	rationalePattern      = regexp.MustCompile(`(?is)RATIONALE:?\s*\n(.*?)$`)

	highPriorityKeywords   = []string{"critical", "urgent", "high volume", "expensive", "security", "compliance"}
	mediumPriorityKeywords = []string{"optimize", "improve", "reduce", "performance"}
)

// Clock returns the current time; tests inject a fixed clock.
type Clock func() time.Time

// Parser extracts structured Recommendations from an LLM reply body.
type Parser struct {
	now Clock
}

// Option configures a Parser at construction.
type Option func(*Parser)

// WithClock overrides the wall-clock source.
func WithClock(clock Clock) Option {
	return func(p *Parser) { p.now = clock }
}

// New creates a Parser.
func New(opts ...Option) *Parser {
	p := &Parser{now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse extracts Recommendations from the raw assistant reply text.
func (p *Parser) Parse(content string) *ParsedRecommendations {
	recs := p.extractRecommendations(content)
	return &ParsedRecommendations{
		Recommendations: recs,
		Summary:         summarize(recs),
		GeneratedAt:     p.now(),
	}
}

func (p *Parser) extractRecommendations(content string) []Recommendation {
	var recs []Recommendation
	recs = append(recs, p.extractSection(content, signalsToDropPattern, RecommendationTypeDropSignal)...)
	recs = append(recs, p.extractSection(content, labelPolicyPattern, RecommendationTypeLabelPolicy)...)

	rationale := extractRationale(content)
	for i := range recs {
		if i < len(rationale) {
			recs[i].Rationale = rationale[i]
		}
	}

	rules := extractOtelRules(content)
	attachRules(recs, rules)

	return recs
}

func (p *Parser) extractSection(content string, pattern *regexp.Regexp, kind RecommendationType) []Recommendation {
	var recs []Recommendation
	matches := pattern.FindStringSubmatch(content)
	if len(matches) <= 1 {
		return recs
	}

	for _, line := range strings.Split(matches[1], "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "-") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "-"))
		if line == "" {
			continue
		}

		recs = append(recs, Recommendation{
			ID:          uuid.NewString(),
			Type:        kind,
			Priority:    determinePriority(line),
			Description: line,
			CreatedAt:   p.now(),
		})
	}
	return recs
}

func extractOtelRules(content string) []FilterRule {
	var rules []FilterRule
	matches := otelRulesBlockPattern.FindAllStringSubmatch(content, -1)

	for _, match := range matches {
		if len(match) <= 1 {
			continue
		}
		for _, line := range strings.Split(match[1], "\n") {
			line = strings.TrimSpace(line)
			if !strings.HasPrefix(line, "- ") {
				continue
			}
			condition := strings.Trim(strings.TrimPrefix(line, "- "), `'"`)
			id := uuid.NewString()

			rules = append(rules, FilterRule{
				ID:          id,
				Name:        "rule-" + id[:8],
				Condition:   condition,
				Action:      "drop",
				Description: fmt.Sprintf("Drop condition: %s", condition),
				Type:        classifySignal(condition),
			})
		}
	}
	return rules
}

func classifySignal(condition string) signal.Kind {
	switch {
	case strings.Contains(condition, "span.") || strings.Contains(condition, "trace."):
		return signal.KindTrace
	case strings.Contains(condition, "metric."):
		return signal.KindMetric
	case strings.Contains(condition, "log."):
		return signal.KindLog
	default:
		return signal.KindTrace
	}
}

func extractRationale(content string) []string {
	var rationale []string
	matches := rationalePattern.FindStringSubmatch(content)
	if len(matches) <= 1 {
		return rationale
	}
	for _, line := range strings.Split(matches[1], "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "-") {
			continue
		}
		rationale = append(rationale, strings.TrimSpace(strings.TrimPrefix(line, "-")))
	}
	return rationale
}

func determinePriority(content string) Priority {
	content = strings.ToLower(content)
	for _, kw := range highPriorityKeywords {
		if strings.Contains(content, kw) {
			return PriorityHigh
		}
	}
	for _, kw := range mediumPriorityKeywords {
		if strings.Contains(content, kw) {
			return PriorityMedium
		}
	}
	return PriorityLow
}

// attachRules attaches each extracted FilterRule to every recommendation
// whose description shares at least one word with the rule's condition.
func attachRules(recs []Recommendation, rules []FilterRule) {
	for i := range recs {
		for _, rule := range rules {
			if isRuleRelated(recs[i].Description, rule.Condition) {
				recs[i].FilterRules = append(recs[i].FilterRules, rule)
			}
		}
	}
}

func isRuleRelated(description, condition string) bool {
	descWords := strings.Fields(strings.ToLower(description))
	condWords := strings.Fields(strings.ToLower(condition))

	for _, d := range descWords {
		for _, c := range condWords {
			if d == c {
				return true
			}
		}
	}
	return false
}

func summarize(recs []Recommendation) Summary {
	s := Summary{
		TotalRecommendations: len(recs),
		ByType:               make(map[RecommendationType]int),
		ByPriority:           make(map[Priority]int),
		EstimatedSavings:     "Unknown",
	}
	for _, r := range recs {
		s.ByType[r.Type]++
		s.ByPriority[r.Priority]++
	}
	return s
}

const yamlTemplate = `
# Generated OTel Filter Rules
# Generated at: %s

processors:
  filter:
    error_mode: ignore
    traces:
      span:
%s
    metrics:
      metric:
%s
    logs:
      log_record:
%s
`

// GenerateYAMLConfig renders the filter rules attached to recommendations
// as an OpenTelemetry Collector filter-processor config snippet, for the
// dry-run CLI.
func GenerateYAMLConfig(recs []Recommendation, now time.Time) string {
	var traceLines, metricLines, logLines []string

	for _, rec := range recs {
		for _, rule := range rec.FilterRules {
			line := fmt.Sprintf("        - '%s'  # %s", rule.Condition, rule.Description)
			switch rule.Type {
			case signal.KindTrace:
				traceLines = append(traceLines, line)
			case signal.KindMetric:
				metricLines = append(metricLines, line)
			case signal.KindLog:
				logLines = append(logLines, line)
			}
		}
	}

	return fmt.Sprintf(yamlTemplate,
		now.Format(time.RFC3339),
		strings.Join(traceLines, "\n"),
		strings.Join(metricLines, "\n"),
		strings.Join(logLines, "\n"),
	)
}
