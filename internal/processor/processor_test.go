package processor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/telemetryadvisor/advisor/internal/obsmetrics"
	"github.com/telemetryadvisor/advisor/internal/parser"
	"github.com/telemetryadvisor/advisor/internal/signal"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("writing metric: %v", err)
	}
	return m.Counter.GetValue()
}

func dropLogRule(name, condition string) []parser.FilterRule {
	return []parser.FilterRule{{Name: name, Type: signal.KindLog, Condition: condition, Action: "drop"}}
}

func newTestProcessor(t *testing.T, server *httptest.Server) *Processor {
	t.Helper()
	m := obsmetrics.New(prometheus.NewRegistry())
	cfg := Config{
		APIKey:           "test-key",
		BaseURL:          server.URL,
		MaxSampleSize:    10,
		SamplingInterval: 20 * time.Millisecond,
		EnableCache:      true,
		CacheExpiration:  time.Hour,
		MaxFilterRules:   10,
		AutoApplyFilters: true,
		FallbackToStatic: true,
	}
	p, err := New(cfg, m, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func llmServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"1","choices":[{"index":0,"message":{"role":"assistant","content":"` + content + `"},"finish_reason":"stop"}]}`))
	}))
}

func TestProcessTracesBuffersAndAppliesFilters(t *testing.T) {
	server := llmServer(t, "no structured content")
	defer server.Close()

	p := newTestProcessor(t, server)
	p.filters.Install(dropLogRule("drop-debug", `attributes["level"] == "DEBUG"`))

	logs := []signal.LogEntry{
		{Message: "a", Attributes: map[string]string{"level": "DEBUG"}},
		{Message: "b", Attributes: map[string]string{"level": "INFO"}},
	}
	got := p.ProcessLogs(logs)
	if len(got) != 1 || got[0].Message != "b" {
		t.Fatalf("expected filter to drop the DEBUG log, got %+v", got)
	}
}

func TestTickGeneratesAndStoresRecommendations(t *testing.T) {
	server := llmServer(t, "1. SIGNALS TO DROP:\\n   - drop noisy spans\\n")
	defer server.Close()

	p := newTestProcessor(t, server)
	p.ProcessTraces([]signal.TraceSpan{{Name: "op", Service: "svc"}})

	if err := p.tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(p.ActiveRecommendations()) == 0 {
		t.Fatal("expected at least one active recommendation after a successful tick")
	}
}

func TestTickSkipsEmptySample(t *testing.T) {
	server := llmServer(t, "irrelevant")
	defer server.Close()

	p := newTestProcessor(t, server)
	if err := p.tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(p.ActiveRecommendations()) != 0 {
		t.Fatal("expected no active recommendations when the buffer is empty")
	}
}

func TestClearFiltersEmptiesActiveSet(t *testing.T) {
	server := llmServer(t, "irrelevant")
	defer server.Close()

	p := newTestProcessor(t, server)
	p.filters.Install(dropLogRule("r1", `attributes["level"] == "DEBUG"`))
	if len(p.ActiveFilters()) != 1 {
		t.Fatalf("expected 1 active filter before clear, got %d", len(p.ActiveFilters()))
	}

	p.ClearFilters()
	if len(p.ActiveFilters()) != 0 {
		t.Fatalf("expected 0 active filters after clear, got %d", len(p.ActiveFilters()))
	}
}

func TestInstallRecommendedFiltersCountsUnsupportedShape(t *testing.T) {
	server := llmServer(t, "irrelevant")
	defer server.Close()

	p := newTestProcessor(t, server)
	p.installRecommendedFilters(&parser.ParsedRecommendations{
		Recommendations: []parser.Recommendation{{
			FilterRules: []parser.FilterRule{
				{Name: "weird", Type: signal.KindLog, Condition: `labels["cardinality"] > 1000`},
			},
		}},
	})

	if got := counterValue(t, p.metrics.RulesUnsupportedShape); got != 1 {
		t.Errorf("expected RulesUnsupportedShape == 1, got %v", got)
	}
}

func TestTickSweepsExpiredFilterRules(t *testing.T) {
	server := llmServer(t, "irrelevant")
	defer server.Close()

	m := obsmetrics.New(prometheus.NewRegistry())
	cfg := Config{
		APIKey:           "test-key",
		BaseURL:          server.URL,
		MaxSampleSize:    10,
		SamplingInterval: 20 * time.Millisecond,
		MaxFilterRules:   10,
		FilterTimeout:    time.Millisecond,
		FallbackToStatic: true,
	}
	p, err := New(cfg, m, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.filters.Install(dropLogRule("r1", `attributes["level"] == "DEBUG"`))

	time.Sleep(5 * time.Millisecond)
	if err := p.tick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if len(p.ActiveFilters()) != 0 {
		t.Fatalf("expected the expired rule to be swept during tick, got %d", len(p.ActiveFilters()))
	}
}

func TestRecordTickDurationCountsOverrun(t *testing.T) {
	server := llmServer(t, "irrelevant")
	defer server.Close()

	p := newTestProcessor(t, server)

	p.recordTickDuration(5 * time.Millisecond)
	if got := counterValue(t, p.metrics.TicksSkippedOverrun); got != 0 {
		t.Fatalf("expected no overrun recorded for a tick shorter than the interval, got %v", got)
	}

	p.recordTickDuration(p.cfg.SamplingInterval + 30*time.Millisecond)
	if got := counterValue(t, p.metrics.TicksSkippedOverrun); got != 1 {
		t.Fatalf("expected one overrun recorded, got %v", got)
	}
}

func TestStartAndStopLifecycle(t *testing.T) {
	server := llmServer(t, "1. SIGNALS TO DROP:\\n   - drop noisy spans\\n")
	defer server.Close()

	p := newTestProcessor(t, server)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	p.ProcessTraces([]signal.TraceSpan{{Name: "op", Service: "svc"}})

	time.Sleep(80 * time.Millisecond)
	p.Stop()

	if len(p.ActiveRecommendations()) == 0 {
		t.Error("expected the background loop to have produced at least one recommendation")
	}
}
