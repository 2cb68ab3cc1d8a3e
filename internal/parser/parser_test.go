package parser

import (
	"strings"
	"testing"
	"time"

	"github.com/telemetryadvisor/advisor/internal/signal"
)

const sampleGrokReply = `
1. SIGNALS TO DROP:
   - drop health check spans - high volume and low value
   - drop debug level logs to reduce noise

2. LABEL POLICY VIOLATIONS:
   - missing environment label on critical security events

3. OTEL FILTER RULES:
traces:
   - 'span.name == "GET /healthz"'
   - 'attributes["level"] == "DEBUG"'
metrics:
   - 'metric.name == "system.debug.counter"'

4. RATIONALE:
   - Health check spans add volume without diagnostic value
   - Debug logs are rarely needed in production and compliance requires environment tagging
`

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func TestParseExtractsDropAndPolicyRecommendations(t *testing.T) {
	p := New(WithClock(fixedClock(time.Unix(0, 0))))
	result := p.Parse(sampleGrokReply)

	if len(result.Recommendations) != 3 {
		t.Fatalf("expected 3 recommendations (2 drop + 1 policy), got %d", len(result.Recommendations))
	}

	var dropCount, policyCount int
	for _, r := range result.Recommendations {
		switch r.Type {
		case RecommendationTypeDropSignal:
			dropCount++
		case RecommendationTypeLabelPolicy:
			policyCount++
		}
		if r.ID == "" {
			t.Error("expected every recommendation to have a non-empty ID")
		}
	}
	if dropCount != 2 {
		t.Errorf("expected 2 drop-signal recommendations, got %d", dropCount)
	}
	if policyCount != 1 {
		t.Errorf("expected 1 label-policy recommendation, got %d", policyCount)
	}
}

func TestParseAssignsHighPriorityForSecurityKeyword(t *testing.T) {
	p := New(WithClock(fixedClock(time.Unix(0, 0))))
	result := p.Parse(sampleGrokReply)

	var found bool
	for _, r := range result.Recommendations {
		if strings.Contains(r.Description, "security") {
			found = true
			if r.Priority != PriorityHigh {
				t.Errorf("expected security-related recommendation to be high priority, got %s", r.Priority)
			}
		}
	}
	if !found {
		t.Fatal("expected a security-related recommendation in the sample reply")
	}
}

func TestExtractOtelRulesClassifiesSignalType(t *testing.T) {
	rules := extractOtelRules(sampleGrokReply)
	if len(rules) == 0 {
		t.Fatal("expected at least one filter rule extracted from the OTEL FILTER RULES section")
	}
	var sawTrace, sawMetric bool
	for _, rule := range rules {
		switch rule.Type {
		case signal.KindTrace:
			sawTrace = true
		case signal.KindMetric:
			sawMetric = true
		}
		if rule.ID == "" {
			t.Error("expected every extracted rule to have a non-empty ID")
		}
	}
	if !sawTrace {
		t.Error("expected a trace-classified rule from a span.name condition")
	}
	if !sawMetric {
		t.Error("expected a metric-classified rule from a metric.name condition")
	}
}

func TestParseAttachesRationaleInOrder(t *testing.T) {
	p := New(WithClock(fixedClock(time.Unix(0, 0))))
	result := p.Parse(sampleGrokReply)

	if result.Recommendations[0].Rationale == "" {
		t.Error("expected first recommendation to receive a rationale line")
	}
}

func TestParseEmptyContentYieldsNoRecommendations(t *testing.T) {
	p := New(WithClock(fixedClock(time.Unix(0, 0))))
	result := p.Parse("no structured content here")
	if len(result.Recommendations) != 0 {
		t.Errorf("expected zero recommendations for unstructured content, got %d", len(result.Recommendations))
	}
	if result.Summary.TotalRecommendations != 0 {
		t.Errorf("expected summary total 0, got %d", result.Summary.TotalRecommendations)
	}
}

func TestSummaryTalliesByTypeAndPriority(t *testing.T) {
	p := New(WithClock(fixedClock(time.Unix(0, 0))))
	result := p.Parse(sampleGrokReply)

	if result.Summary.TotalRecommendations != len(result.Recommendations) {
		t.Errorf("summary total mismatch: %d vs %d", result.Summary.TotalRecommendations, len(result.Recommendations))
	}
	total := 0
	for _, n := range result.Summary.ByPriority {
		total += n
	}
	if total != len(result.Recommendations) {
		t.Errorf("expected priority tally to sum to recommendation count, got %d", total)
	}
}

func TestGenerateYAMLConfigGroupsBySignalType(t *testing.T) {
	p := New(WithClock(fixedClock(time.Unix(0, 0))))
	result := p.Parse(sampleGrokReply)

	yamlOut := GenerateYAMLConfig(result.Recommendations, time.Unix(0, 0))
	if !strings.Contains(yamlOut, "processors:") {
		t.Error("expected rendered config to contain a processors block")
	}
}
