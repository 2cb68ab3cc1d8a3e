// Package sampler holds a bounded in-memory buffer of recently seen
// telemetry and, on demand, draws an anonymized, uniformly-random
// sub-sample of it.
package sampler

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/telemetryadvisor/advisor/internal/anonymizer"
	"github.com/telemetryadvisor/advisor/internal/signal"
)

// Clock returns the current time. Tests inject a fixed clock; production
// uses time.Now.
type Clock func() time.Time

// Sampler maintains three bounded FIFO buffers (one per signal kind) and
// draws anonymized sub-samples from them.
type Sampler struct {
	maxSampleSize int
	bufferMax     int
	anon          *anonymizer.Anonymizer
	now           Clock

	tracesMu  sync.Mutex
	traces    []signal.TraceSpan
	metricsMu sync.Mutex
	metrics   []signal.MetricDataPoint
	logsMu    sync.Mutex
	logs      []signal.LogEntry
}

// Option configures a Sampler at construction.
type Option func(*Sampler)

// WithClock overrides the wall-clock source, for deterministic tests.
func WithClock(clock Clock) Option {
	return func(s *Sampler) { s.now = clock }
}

// WithAnonymizer overrides the default anonymizer, e.g. with one built
// by anonymizer.NewWithOverlay.
func WithAnonymizer(a *anonymizer.Anonymizer) Option {
	return func(s *Sampler) { s.anon = a }
}

// New creates a Sampler whose per-kind buffers hold up to
// maxSampleSize*10 entries.
func New(maxSampleSize int, opts ...Option) *Sampler {
	s := &Sampler{
		maxSampleSize: maxSampleSize,
		bufferMax:     maxSampleSize * 10,
		anon:          anonymizer.New(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BufferTraces appends traces to the trace buffer, evicting the oldest
// entries FIFO once the buffer exceeds its cap.
func (s *Sampler) BufferTraces(traces []signal.TraceSpan) {
	s.tracesMu.Lock()
	defer s.tracesMu.Unlock()
	s.traces = appendBounded(s.traces, traces, s.bufferMax)
}

// BufferMetrics appends metrics to the metric buffer with the same
// FIFO-eviction discipline as BufferTraces.
func (s *Sampler) BufferMetrics(metrics []signal.MetricDataPoint) {
	s.metricsMu.Lock()
	defer s.metricsMu.Unlock()
	s.metrics = appendBounded(s.metrics, metrics, s.bufferMax)
}

// BufferLogs appends logs to the log buffer with the same FIFO-eviction
// discipline as BufferTraces.
func (s *Sampler) BufferLogs(logs []signal.LogEntry) {
	s.logsMu.Lock()
	defer s.logsMu.Unlock()
	s.logs = appendBounded(s.logs, logs, s.bufferMax)
}

func appendBounded[T any](buf, items []T, max int) []T {
	buf = append(buf, items...)
	if len(buf) > max {
		buf = buf[len(buf)-max:]
	}
	return buf
}

// Draw builds a Sample from the current buffer contents: up to
// maxSampleSize entries per kind, chosen uniformly at random without
// replacement, then anonymized. Draw never fails; an empty Sample is
// returned when every buffer is empty.
func (s *Sampler) Draw() *signal.Sample {
	s.tracesMu.Lock()
	traceSnapshot := append([]signal.TraceSpan(nil), s.traces...)
	totalTraces := len(s.traces)
	s.tracesMu.Unlock()

	s.metricsMu.Lock()
	metricSnapshot := append([]signal.MetricDataPoint(nil), s.metrics...)
	totalMetrics := len(s.metrics)
	s.metricsMu.Unlock()

	s.logsMu.Lock()
	logSnapshot := append([]signal.LogEntry(nil), s.logs...)
	totalLogs := len(s.logs)
	s.logsMu.Unlock()

	sampledTraces := selectAndAnonymizeTraces(traceSnapshot, s.maxSampleSize, s.anon)
	sampledMetrics := selectAndAnonymizeMetrics(metricSnapshot, s.maxSampleSize, s.anon)
	sampledLogs := selectAndAnonymizeLogs(logSnapshot, s.maxSampleSize, s.anon)

	return s.assemble(sampledTraces, sampledMetrics, sampledLogs, totalTraces, totalMetrics, totalLogs)
}

// CreateSample is the one-shot convenience path: sample each of the given
// slices independently (ignoring the internal buffers entirely) and
// assemble a Sample. Used by advisorctl's recommend command to bound a
// sample loaded from disk; the Processor's periodic tick uses Draw.
func (s *Sampler) CreateSample(traces []signal.TraceSpan, metrics []signal.MetricDataPoint, logs []signal.LogEntry) *signal.Sample {
	sampledTraces := selectAndAnonymizeTraces(traces, s.maxSampleSize, s.anon)
	sampledMetrics := selectAndAnonymizeMetrics(metrics, s.maxSampleSize, s.anon)
	sampledLogs := selectAndAnonymizeLogs(logs, s.maxSampleSize, s.anon)

	return s.assemble(sampledTraces, sampledMetrics, sampledLogs, len(traces), len(metrics), len(logs))
}

func (s *Sampler) assemble(traces []signal.TraceSpan, metrics []signal.MetricDataPoint, logs []signal.LogEntry, totalTraces, totalMetrics, totalLogs int) *signal.Sample {
	services := make(map[string]struct{})
	for _, t := range traces {
		if t.Service != "" {
			services[t.Service] = struct{}{}
		}
	}
	for _, l := range logs {
		if l.Service != "" {
			services[l.Service] = struct{}{}
		}
	}
	serviceList := make([]string, 0, len(services))
	for svc := range services {
		serviceList = append(serviceList, svc)
	}

	return &signal.Sample{
		Traces:  traces,
		Metrics: metrics,
		Logs:    logs,
		Meta: signal.Metadata{
			SampleSize:   len(traces) + len(metrics) + len(logs),
			TimeRange:    "last-5m",
			Services:     serviceList,
			SampledAt:    s.now(),
			TotalSpans:   totalTraces,
			TotalMetrics: totalMetrics,
			TotalLogs:    totalLogs,
		},
	}
}

// IsEmpty reports whether a Sample carries no signals at all; callers
// skip the recommendation tick in that case.
func IsEmpty(s *signal.Sample) bool {
	return s == nil || (len(s.Traces) == 0 && len(s.Metrics) == 0 && len(s.Logs) == 0)
}

// sampleIndices picks k distinct indices in [0, n) uniformly at random
// without replacement, via a partial Fisher-Yates shuffle.
func sampleIndices(n, k int) []int {
	if k >= n {
		k = n
	}
	pool := make([]int, n)
	for i := range pool {
		pool[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + rand.IntN(n-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k]
}

func selectAndAnonymizeTraces(traces []signal.TraceSpan, max int, a *anonymizer.Anonymizer) []signal.TraceSpan {
	if len(traces) == 0 {
		return nil
	}
	idx := sampleIndices(len(traces), max)
	out := make([]signal.TraceSpan, len(idx))
	for i, j := range idx {
		t := traces[j]
		out[i] = signal.TraceSpan{
			Name:         a.String(t.Name),
			Service:      a.String(t.Service),
			Duration:     t.Duration,
			Status:       t.Status,
			Attributes:   a.Map(t.Attributes),
			ResourceTags: a.Map(t.ResourceTags),
		}
	}
	return out
}

func selectAndAnonymizeMetrics(metrics []signal.MetricDataPoint, max int, a *anonymizer.Anonymizer) []signal.MetricDataPoint {
	if len(metrics) == 0 {
		return nil
	}
	idx := sampleIndices(len(metrics), max)
	out := make([]signal.MetricDataPoint, len(idx))
	for i, j := range idx {
		m := metrics[j]
		out[i] = signal.MetricDataPoint{
			Name:         a.String(m.Name),
			Value:        m.Value,
			Kind:         m.Kind,
			Labels:       a.Map(m.Labels),
			Timestamp:    m.Timestamp,
			ResourceTags: a.Map(m.ResourceTags),
		}
	}
	return out
}

func selectAndAnonymizeLogs(logs []signal.LogEntry, max int, a *anonymizer.Anonymizer) []signal.LogEntry {
	if len(logs) == 0 {
		return nil
	}
	idx := sampleIndices(len(logs), max)
	out := make([]signal.LogEntry, len(idx))
	for i, j := range idx {
		l := logs[j]
		out[i] = signal.LogEntry{
			Level:        l.Level,
			Message:      a.String(l.Message),
			Service:      a.String(l.Service),
			Timestamp:    l.Timestamp,
			Attributes:   a.Map(l.Attributes),
			ResourceTags: a.Map(l.ResourceTags),
		}
	}
	return out
}
