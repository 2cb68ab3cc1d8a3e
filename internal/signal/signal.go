// Package signal defines the telemetry shapes the advisor pipeline
// operates on: trace spans, metric data points, log entries, and the
// anonymized multi-signal Sample drawn from them.
package signal

import (
	"encoding/json"
	"fmt"
	"time"
)

// TraceSpan is a simplified trace span.
type TraceSpan struct {
	Name         string            `json:"name"`
	Service      string            `json:"service"`
	Duration     time.Duration     `json:"duration"`
	Status       string            `json:"status"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	ResourceTags map[string]string `json:"resource_tags,omitempty"`
}

// MetricDataPoint is a simplified metric sample.
type MetricDataPoint struct {
	Name         string            `json:"name"`
	Value        float64           `json:"value"`
	Kind         string            `json:"kind"`
	Labels       map[string]string `json:"labels,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
	ResourceTags map[string]string `json:"resource_tags,omitempty"`
}

// LogEntry is a simplified log record.
type LogEntry struct {
	Level        string            `json:"level"`
	Message      string            `json:"message"`
	Service      string            `json:"service"`
	Timestamp    time.Time         `json:"timestamp"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	ResourceTags map[string]string `json:"resource_tags,omitempty"`
}

// Metadata describes a Sample: source totals, the services observed, and
// when/over-what-range the sample was drawn.
type Metadata struct {
	SampleSize   int       `json:"sample_size"`
	TimeRange    string    `json:"time_range"`
	Services     []string  `json:"services"`
	SampledAt    time.Time `json:"sampled_at"`
	TotalSpans   int       `json:"total_spans"`
	TotalMetrics int       `json:"total_metrics"`
	TotalLogs    int       `json:"total_logs"`
}

// Sample is an immutable, anonymized multi-signal snapshot produced by the
// sampler. Callers must treat the slices as read-only; Sampler.Draw never
// hands back buffer-backed storage.
type Sample struct {
	Traces  []TraceSpan       `json:"traces,omitempty"`
	Metrics []MetricDataPoint `json:"metrics,omitempty"`
	Logs    []LogEntry        `json:"logs,omitempty"`
	Meta    Metadata          `json:"metadata"`
}

// Fingerprint is the cache key for a Sample: a deliberately lossy function
// of the three source totals only, so the cache never retains
// payload-derived material.
func (s *Sample) Fingerprint() string {
	return fmt.Sprintf("sample-%d-%d-%d", s.Meta.TotalSpans, s.Meta.TotalMetrics, s.Meta.TotalLogs)
}

// ToJSON renders the Sample as indented JSON, the form sent to the LLM
// and written to dry-run fixture files.
func (s *Sample) ToJSON() (string, error) {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling sample: %w", err)
	}
	return string(b), nil
}

// Kind identifies which of the three signal types a FilterRule applies to.
type Kind string

const (
	KindTrace  Kind = "trace"
	KindMetric Kind = "metric"
	KindLog    Kind = "log"
)
