// Package recommender orchestrates cache lookup, rate limiting, the LLM
// round trip, and response parsing into a single GenerateRecommendations
// call, falling back to a static recommendation set when the LLM is
// unreachable.
package recommender

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/telemetryadvisor/advisor/internal/cache"
	"github.com/telemetryadvisor/advisor/internal/llmclient"
	"github.com/telemetryadvisor/advisor/internal/obsmetrics"
	"github.com/telemetryadvisor/advisor/internal/parser"
	"github.com/telemetryadvisor/advisor/internal/signal"
)

// Clock returns the current time; tests inject a fixed clock.
type Clock func() time.Time

// Waiter is the subset of ratelimit.Limiter the Recommender depends on.
type Waiter interface {
	Wait(ctx context.Context) error
}

// Recommender ties together the cache, rate limiter, LLM client, and
// parser into the sampling-to-recommendation pipeline.
type Recommender struct {
	client           *llmclient.Client
	parser           *parser.Parser
	cache            *cache.Cache
	limiter          Waiter
	now              Clock
	metrics          *obsmetrics.Metrics
	enableCache      bool
	enableRateLimit  bool
	fallbackToStatic bool
}

// Config controls which stages of the pipeline are active.
type Config struct {
	EnableCache      bool
	EnableRateLimit  bool
	FallbackToStatic bool
}

// Option configures a Recommender at construction.
type Option func(*Recommender)

// WithClock overrides the wall-clock source.
func WithClock(clock Clock) Option {
	return func(r *Recommender) { r.now = clock }
}

// WithMetrics attaches a metrics handle so cache, rate-limit, transport,
// and fallback events are observable. Nil-safe when omitted.
func WithMetrics(m *obsmetrics.Metrics) Option {
	return func(r *Recommender) { r.metrics = m }
}

// New creates a Recommender. limiter may be nil when EnableRateLimit is
// false.
func New(client *llmclient.Client, p *parser.Parser, c *cache.Cache, limiter Waiter, cfg Config, opts ...Option) *Recommender {
	r := &Recommender{
		client:           client,
		parser:           p,
		cache:            c,
		limiter:          limiter,
		now:              time.Now,
		enableCache:      cfg.EnableCache,
		enableRateLimit:  cfg.EnableRateLimit,
		fallbackToStatic: cfg.FallbackToStatic,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GenerateRecommendations runs the full pipeline for sample: cache check,
// rate-limit wait, LLM call (or static fallback on failure), parse, and
// cache store.
func (r *Recommender) GenerateRecommendations(ctx context.Context, sample *signal.Sample, policyStrings []string) (*parser.ParsedRecommendations, error) {
	fingerprint := sample.Fingerprint()

	if r.enableCache {
		if cached, ok := r.cache.Get(fingerprint); ok {
			if r.metrics != nil {
				r.metrics.CacheHitsTotal.Inc()
			}
			return cached, nil
		}
		if r.metrics != nil {
			r.metrics.CacheMissesTotal.Inc()
		}
	}

	if r.enableRateLimit && r.limiter != nil {
		if r.metrics != nil {
			r.metrics.RateLimitWaitsTotal.Inc()
		}
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	sampleJSON, err := sample.ToJSON()
	if err != nil {
		return nil, fmt.Errorf("encoding sample: %w", err)
	}

	content, err := r.client.Recommend(ctx, sampleJSON, policyStrings)
	if err != nil {
		var reqErr *llmclient.RequestError
		if errors.As(err, &reqErr) {
			if r.metrics != nil {
				r.metrics.TransportFailuresTotal.Inc()
			}
			if r.fallbackToStatic {
				if r.metrics != nil {
					r.metrics.FallbackInvokedTotal.Inc()
				}
				return staticRecommendations(r.now()), nil
			}
		}
		return nil, fmt.Errorf("generating recommendations: %w", err)
	}

	recs := r.parser.Parse(content)

	if r.enableCache {
		r.cache.Put(fingerprint, recs)
	}

	return recs, nil
}

// ValidateConnection confirms the configured LLM endpoint is reachable
// and the API key is accepted.
func (r *Recommender) ValidateConnection(ctx context.Context) error {
	return r.client.ValidateConnection(ctx)
}
