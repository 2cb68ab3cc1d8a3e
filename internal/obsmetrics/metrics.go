// Package obsmetrics exposes the advisor's own Prometheus metrics: tick
// outcomes, cache performance, rate-limit waits, and transport failures.
package obsmetrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every counter and gauge the processor and its
// sub-components increment during normal operation.
type Metrics struct {
	TicksTotal             prometheus.Counter
	TicksSkippedEmpty      prometheus.Counter
	TicksSkippedOverrun    prometheus.Counter
	TickOverrunSeconds     prometheus.Gauge
	RulesInstalledTotal    prometheus.Counter
	RulesInstallSkipped    prometheus.Counter
	RulesUnsupportedShape  prometheus.Counter
	CacheHitsTotal         prometheus.Counter
	CacheMissesTotal       prometheus.Counter
	RateLimitWaitsTotal    prometheus.Counter
	TransportFailuresTotal prometheus.Counter
	FallbackInvokedTotal   prometheus.Counter
	ActiveFilterRules      prometheus.Gauge
	ActiveRecommendations  prometheus.Gauge
}

// New registers and returns the full metric set against reg. Passing a
// dedicated *prometheus.Registry (rather than the global default)
// keeps repeated construction in tests collision-free.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "advisor_recommendation_ticks_total",
			Help: "Total number of recommendation-loop ticks executed.",
		}),
		TicksSkippedEmpty: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "advisor_recommendation_ticks_skipped_empty_total",
			Help: "Recommendation ticks skipped because the sample buffer was empty.",
		}),
		TicksSkippedOverrun: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "advisor_recommendation_ticks_skipped_overrun_total",
			Help: "Recommendation ticks the ticker coalesced because the previous tick outran the sampling interval.",
		}),
		TickOverrunSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "advisor_recommendation_tick_overrun_seconds",
			Help: "How far the most recent tick's duration exceeded the configured sampling interval; zero when on time.",
		}),
		RulesInstalledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "advisor_filter_rules_installed_total",
			Help: "Total filter rules installed across the process lifetime.",
		}),
		RulesInstallSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "advisor_filter_rules_install_skipped_total",
			Help: "Filter rules skipped at install time (duplicate name or over capacity).",
		}),
		RulesUnsupportedShape: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "advisor_filter_rules_unsupported_shape_total",
			Help: "Filter rules installed with a condition shape the evaluator cannot interpret.",
		}),
		CacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "advisor_recommendation_cache_hits_total",
			Help: "Recommendation cache hits.",
		}),
		CacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "advisor_recommendation_cache_misses_total",
			Help: "Recommendation cache misses.",
		}),
		RateLimitWaitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "advisor_rate_limit_waits_total",
			Help: "Number of times the recommender called the rate limiter's Wait, whether or not it blocked.",
		}),
		TransportFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "advisor_llm_transport_failures_total",
			Help: "LLM request failures (non-2xx status or transport error).",
		}),
		FallbackInvokedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "advisor_static_fallback_invoked_total",
			Help: "Times the static fallback recommendation set was returned.",
		}),
		ActiveFilterRules: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "advisor_active_filter_rules",
			Help: "Number of filter rules currently installed.",
		}),
		ActiveRecommendations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "advisor_active_recommendations",
			Help: "Number of recommendations from the most recent generation cycle.",
		}),
	}

	reg.MustRegister(
		m.TicksTotal,
		m.TicksSkippedEmpty,
		m.TicksSkippedOverrun,
		m.TickOverrunSeconds,
		m.RulesInstalledTotal,
		m.RulesInstallSkipped,
		m.RulesUnsupportedShape,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.RateLimitWaitsTotal,
		m.TransportFailuresTotal,
		m.FallbackInvokedTotal,
		m.ActiveFilterRules,
		m.ActiveRecommendations,
	)

	return m
}
