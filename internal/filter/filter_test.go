package filter

import (
	"testing"
	"time"

	"github.com/telemetryadvisor/advisor/internal/parser"
	"github.com/telemetryadvisor/advisor/internal/signal"
)

func TestInstallDropsDuplicateRuleNames(t *testing.T) {
	m := New(10, 0)
	rule := parser.FilterRule{Name: "drop-debug", Type: signal.KindLog, Condition: `attributes["level"] == "DEBUG"`}

	installed, skipped, _ := m.Install([]parser.FilterRule{rule})
	if installed != 1 || len(skipped) != 0 {
		t.Fatalf("expected first install to succeed, got installed=%d skipped=%v", installed, skipped)
	}

	installed, skipped, _ = m.Install([]parser.FilterRule{rule})
	if installed != 0 || len(skipped) != 1 {
		t.Fatalf("expected duplicate install to be skipped, got installed=%d skipped=%v", installed, skipped)
	}
}

func TestInstallEnforcesMaxRulesCap(t *testing.T) {
	m := New(1, 0)
	r1 := parser.FilterRule{Name: "r1", Type: signal.KindLog, Condition: `attributes["level"] == "DEBUG"`}
	r2 := parser.FilterRule{Name: "r2", Type: signal.KindLog, Condition: `attributes["level"] == "INFO"`}

	installed, _, _ := m.Install([]parser.FilterRule{r1, r2})
	if installed != 1 {
		t.Fatalf("expected exactly 1 rule installed under cap of 1, got %d", installed)
	}
	if m.Count() != 1 {
		t.Errorf("expected Count() == 1, got %d", m.Count())
	}
}

func TestInstallCountsUnsupportedShapeSeparately(t *testing.T) {
	m := New(10, 0)
	installed, skipped, unsupported := m.Install([]parser.FilterRule{
		{Name: "weird", Type: signal.KindLog, Condition: `labels["cardinality"] > 1000`},
		{Name: "fine", Type: signal.KindLog, Condition: `attributes["level"] == "DEBUG"`},
	})
	if installed != 2 || len(skipped) != 0 {
		t.Fatalf("expected both rules to install despite one being unsupported, got installed=%d skipped=%v", installed, skipped)
	}
	if unsupported != 1 {
		t.Fatalf("expected exactly 1 unsupported-shape rule counted, got %d", unsupported)
	}
}

func TestApplyLogsDropsMatchingAttrEquals(t *testing.T) {
	m := New(10, 0)
	m.Install([]parser.FilterRule{{Name: "drop-debug", Type: signal.KindLog, Condition: `attributes["level"] == "DEBUG"`}})

	logs := []signal.LogEntry{
		{Message: "a", Attributes: map[string]string{"level": "DEBUG"}},
		{Message: "b", Attributes: map[string]string{"level": "INFO"}},
	}

	got := m.ApplyLogs(logs)
	if len(got) != 1 || got[0].Message != "b" {
		t.Fatalf("expected only the INFO log to survive, got %+v", got)
	}
}

func TestApplyTracesDropsMatchingResourceAbsent(t *testing.T) {
	m := New(10, 0)
	m.Install([]parser.FilterRule{{Name: "require-env", Type: signal.KindTrace, Condition: `resource.attributes["environment"] == nil`}})

	traces := []signal.TraceSpan{
		{Name: "a", ResourceTags: map[string]string{}},
		{Name: "b", ResourceTags: map[string]string{"environment": "prod"}},
	}

	got := m.ApplyTraces(traces)
	if len(got) != 1 || got[0].Name != "b" {
		t.Fatalf("expected only the tagged trace to survive, got %+v", got)
	}
}

func TestApplyMetricsDropsMatchingResourceEquals(t *testing.T) {
	m := New(10, 0)
	m.Install([]parser.FilterRule{{Name: "drop-staging", Type: signal.KindMetric, Condition: `resource.attributes["environment"] == "staging"`}})

	metrics := []signal.MetricDataPoint{
		{Name: "m1", ResourceTags: map[string]string{"environment": "staging"}},
		{Name: "m2", ResourceTags: map[string]string{"environment": "prod"}},
	}

	got := m.ApplyMetrics(metrics)
	if len(got) != 1 || got[0].Name != "m2" {
		t.Fatalf("expected only the prod metric to survive, got %+v", got)
	}
}

func TestUnsupportedConditionNeverMatchesFailClosed(t *testing.T) {
	m := New(10, 0)
	m.Install([]parser.FilterRule{{Name: "weird", Type: signal.KindLog, Condition: `labels["cardinality"] > 1000`}})

	logs := []signal.LogEntry{{Message: "keep-me"}}
	got := m.ApplyLogs(logs)
	if len(got) != 1 {
		t.Fatalf("expected unsupported condition to never drop data, got %+v", got)
	}
}

func TestRuleOnlyAppliesToItsOwnSignalKind(t *testing.T) {
	m := New(10, 0)
	m.Install([]parser.FilterRule{{Name: "drop-debug-logs", Type: signal.KindLog, Condition: `attributes["level"] == "DEBUG"`}})

	traces := []signal.TraceSpan{{Name: "a", Attributes: map[string]string{"level": "DEBUG"}}}
	got := m.ApplyTraces(traces)
	if len(got) != 1 {
		t.Fatalf("expected log-only rule to leave traces untouched, got %+v", got)
	}
}

func TestClearRemovesAllRules(t *testing.T) {
	m := New(10, 0)
	m.Install([]parser.FilterRule{{Name: "r1", Type: signal.KindLog, Condition: `attributes["level"] == "DEBUG"`}})
	m.Clear()
	if m.Count() != 0 {
		t.Errorf("expected Count() == 0 after Clear, got %d", m.Count())
	}
	got := m.ApplyLogs([]signal.LogEntry{{Attributes: map[string]string{"level": "DEBUG"}}})
	if len(got) != 1 {
		t.Error("expected cleared manager to pass all data through")
	}
}

func TestActiveReturnsSnapshotNotLiveSlice(t *testing.T) {
	m := New(10, 0)
	m.Install([]parser.FilterRule{{Name: "r1", Type: signal.KindLog, Condition: `attributes["level"] == "DEBUG"`}})

	snapshot := m.Active()
	m.Install([]parser.FilterRule{{Name: "r2", Type: signal.KindLog, Condition: `attributes["level"] == "INFO"`}})

	if len(snapshot) != 1 {
		t.Errorf("expected snapshot to retain 1 rule despite later install, got %d", len(snapshot))
	}
}

func TestZeroTTLNeverExpiresRules(t *testing.T) {
	now := time.Unix(1000, 0)
	m := New(10, 0, WithClock(func() time.Time { return now }))
	m.Install([]parser.FilterRule{{Name: "r1", Type: signal.KindLog, Condition: `attributes["level"] == "DEBUG"`}})

	now = now.Add(24 * time.Hour)
	if removed := m.Sweep(); removed != 0 {
		t.Fatalf("expected no rules to expire with ttl disabled, removed %d", removed)
	}
	if m.Count() != 1 {
		t.Fatalf("expected rule to remain installed, count=%d", m.Count())
	}
}

func TestSweepRemovesExpiredRules(t *testing.T) {
	now := time.Unix(1000, 0)
	m := New(10, time.Minute, WithClock(func() time.Time { return now }))
	m.Install([]parser.FilterRule{{Name: "r1", Type: signal.KindLog, Condition: `attributes["level"] == "DEBUG"`}})

	now = now.Add(2 * time.Minute)
	if removed := m.Sweep(); removed != 1 {
		t.Fatalf("expected 1 expired rule to be swept, got %d", removed)
	}
	if m.Count() != 0 {
		t.Fatalf("expected no rules to remain, count=%d", m.Count())
	}
}

func TestInstallSweepsExpiredRulesToMakeRoom(t *testing.T) {
	now := time.Unix(1000, 0)
	m := New(1, time.Minute, WithClock(func() time.Time { return now }))
	m.Install([]parser.FilterRule{{Name: "r1", Type: signal.KindLog, Condition: `attributes["level"] == "DEBUG"`}})

	now = now.Add(2 * time.Minute)
	installed, skipped, _ := m.Install([]parser.FilterRule{{Name: "r2", Type: signal.KindLog, Condition: `attributes["level"] == "INFO"`}})
	if installed != 1 || len(skipped) != 0 {
		t.Fatalf("expected the expired rule to be swept and r2 admitted, got installed=%d skipped=%v", installed, skipped)
	}
}
