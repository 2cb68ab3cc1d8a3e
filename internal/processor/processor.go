// Package processor is the pipeline façade: it owns every sub-component
// (sampler, filter manager, policy manager, recommender, cache, rate
// limiter) and wires the periodic recommendation loop to the inline
// Process{Traces,Metrics,Logs} calls the host application makes on
// every batch of telemetry.
package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/telemetryadvisor/advisor/internal/anonymizer"
	"github.com/telemetryadvisor/advisor/internal/cache"
	"github.com/telemetryadvisor/advisor/internal/filter"
	"github.com/telemetryadvisor/advisor/internal/llmclient"
	"github.com/telemetryadvisor/advisor/internal/obsmetrics"
	"github.com/telemetryadvisor/advisor/internal/parser"
	"github.com/telemetryadvisor/advisor/internal/policy"
	"github.com/telemetryadvisor/advisor/internal/ratelimit"
	"github.com/telemetryadvisor/advisor/internal/recommender"
	"github.com/telemetryadvisor/advisor/internal/sampler"
	"github.com/telemetryadvisor/advisor/internal/signal"
)

// Config controls how the processor is wired. New replaces non-positive
// values of MaxSampleSize (100), SamplingInterval (5m), CacheExpiration
// (1h), RateLimitRPM (60), MaxFilterRules (100) and PolicyReloadInterval
// (5m) with those defaults.
type Config struct {
	APIKey           string
	BaseURL          string
	Model            string
	MaxSampleSize    int
	SamplingInterval time.Duration

	EnableCache     bool
	CacheExpiration time.Duration

	EnableRateLimit bool
	RateLimitRPM    int

	AutoApplyFilters bool
	MaxFilterRules   int
	FilterTimeout    time.Duration

	FallbackToStatic bool

	PolicyFile           string
	PolicyReloadInterval time.Duration

	AnonymizerOverlayFile string
}

// Processor is the pipeline façade described in the package doc.
type Processor struct {
	cfg Config

	sampler     *sampler.Sampler
	filters     *filter.Manager
	policies    *policy.Manager
	recommender *recommender.Recommender
	metrics     *obsmetrics.Metrics
	logger      *zap.SugaredLogger

	mu        sync.RWMutex
	activeRec *parser.ParsedRecommendations

	stop chan struct{}
	wg   sync.WaitGroup
}

// New assembles a Processor from its configuration and the shared
// logger/metrics registry. Construction never contacts the network;
// Start performs the first connectivity check.
func New(cfg Config, m *obsmetrics.Metrics, logger *zap.SugaredLogger) (*Processor, error) {
	if cfg.MaxSampleSize <= 0 {
		cfg.MaxSampleSize = 100
	}
	if cfg.SamplingInterval <= 0 {
		cfg.SamplingInterval = 5 * time.Minute
	}
	if cfg.CacheExpiration <= 0 {
		cfg.CacheExpiration = time.Hour
	}
	if cfg.RateLimitRPM <= 0 {
		cfg.RateLimitRPM = 60
	}
	if cfg.MaxFilterRules <= 0 {
		cfg.MaxFilterRules = 100
	}
	if cfg.PolicyReloadInterval <= 0 {
		cfg.PolicyReloadInterval = 5 * time.Minute
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("processor: api key must be set")
	}

	var clientOpts []llmclient.Option
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, llmclient.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Model != "" {
		clientOpts = append(clientOpts, llmclient.WithModel(cfg.Model))
	}
	client := llmclient.New(cfg.APIKey, clientOpts...)

	s := sampler.New(cfg.MaxSampleSize)
	if cfg.AnonymizerOverlayFile != "" {
		anon, err := anonymizer.NewWithOverlay(cfg.AnonymizerOverlayFile)
		if err != nil {
			return nil, fmt.Errorf("processor: loading anonymizer overlay: %w", err)
		}
		s = sampler.New(cfg.MaxSampleSize, sampler.WithAnonymizer(anon))
	}

	rec := recommender.New(
		client,
		parser.New(),
		cache.New(cfg.CacheExpiration),
		ratelimit.New(cfg.RateLimitRPM),
		recommender.Config{
			EnableCache:      cfg.EnableCache,
			EnableRateLimit:  cfg.EnableRateLimit,
			FallbackToStatic: cfg.FallbackToStatic,
		},
		recommender.WithMetrics(m),
	)

	p := &Processor{
		cfg:         cfg,
		sampler:     s,
		filters:     filter.New(cfg.MaxFilterRules, cfg.FilterTimeout),
		policies:    policy.New(cfg.PolicyFile, cfg.PolicyReloadInterval, policy.WithLogger(logger)),
		recommender: rec,
		metrics:     m,
		logger:      logger,
		stop:        make(chan struct{}),
	}

	if err := p.policies.LoadInitial(); err != nil {
		p.logf("warn", "failed to load initial policies: %v", err)
	}

	return p, nil
}

func (p *Processor) logf(level, format string, args ...any) {
	if p.logger == nil {
		return
	}
	switch level {
	case "warn":
		p.logger.Warnf(format, args...)
	case "error":
		p.logger.Errorf(format, args...)
	case "debug":
		p.logger.Debugf(format, args...)
	default:
		p.logger.Infof(format, args...)
	}
}

// Start validates connectivity (logging a warning instead of failing if
// fallback is enabled), then launches the recommendation loop and policy watcher as
// background goroutines.
func (p *Processor) Start(ctx context.Context) error {
	if err := p.recommender.ValidateConnection(ctx); err != nil {
		if !p.cfg.FallbackToStatic {
			return fmt.Errorf("validating llm connection: %w", err)
		}
		p.logf("warn", "llm connection validation failed, static fallback is enabled: %v", err)
	}

	p.policies.Start()

	p.wg.Add(1)
	go p.runRecommendationLoop(ctx)

	return nil
}

// Stop halts the recommendation loop and the policy watcher.
func (p *Processor) Stop() {
	close(p.stop)
	p.wg.Wait()
	p.policies.Stop()
}

func (p *Processor) runRecommendationLoop(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.cfg.SamplingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			if err := p.tick(ctx); err != nil {
				p.logf("error", "recommendation tick failed: %v", err)
			}
			p.recordTickDuration(time.Since(start))
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// recordTickDuration reports how far a tick's execution overran the
// configured sampling interval. The ticker's channel buffers only one
// pending firing, so a tick that runs longer than the interval causes
// the next firing to be silently coalesced; this surfaces that as a
// metric instead of leaving it invisible.
func (p *Processor) recordTickDuration(d time.Duration) {
	if p.metrics == nil {
		return
	}
	overrun := d - p.cfg.SamplingInterval
	if overrun <= 0 {
		p.metrics.TickOverrunSeconds.Set(0)
		return
	}
	p.metrics.TicksSkippedOverrun.Inc()
	p.metrics.TickOverrunSeconds.Set(overrun.Seconds())
}

func (p *Processor) tick(ctx context.Context) error {
	if p.metrics != nil {
		p.metrics.TicksTotal.Inc()
	}

	if removed := p.filters.Sweep(); removed > 0 {
		p.logf("debug", "swept %d expired filter rules", removed)
		if p.metrics != nil {
			p.metrics.ActiveFilterRules.Set(float64(p.filters.Count()))
		}
	}

	sample := p.sampler.Draw()
	if sampler.IsEmpty(sample) {
		if p.metrics != nil {
			p.metrics.TicksSkippedEmpty.Inc()
		}
		return nil
	}

	recs, err := p.recommender.GenerateRecommendations(ctx, sample, p.policies.Strings())
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.activeRec = recs
	p.mu.Unlock()

	if p.metrics != nil {
		p.metrics.ActiveRecommendations.Set(float64(len(recs.Recommendations)))
	}

	if p.cfg.AutoApplyFilters {
		p.installRecommendedFilters(recs)
	}

	return nil
}

func (p *Processor) installRecommendedFilters(recs *parser.ParsedRecommendations) {
	var rules []parser.FilterRule
	for _, rec := range recs.Recommendations {
		rules = append(rules, rec.FilterRules...)
	}
	if len(rules) == 0 {
		return
	}

	installed, skipped, unsupported := p.filters.Install(rules)
	if p.metrics != nil {
		p.metrics.RulesInstalledTotal.Add(float64(installed))
		p.metrics.RulesInstallSkipped.Add(float64(len(skipped)))
		p.metrics.RulesUnsupportedShape.Add(float64(unsupported))
		p.metrics.ActiveFilterRules.Set(float64(p.filters.Count()))
	}
	if unsupported > 0 {
		p.logf("warn", "%d installed filter rules have an unsupported condition shape and will never match", unsupported)
	}
	if len(skipped) > 0 {
		p.logf("warn", "skipped %d filter rules (duplicate or over capacity): %v", len(skipped), skipped)
	}
}

// ProcessTraces buffers traces for future sampling and applies the
// currently installed trace filters inline.
func (p *Processor) ProcessTraces(traces []signal.TraceSpan) []signal.TraceSpan {
	p.sampler.BufferTraces(traces)
	return p.filters.ApplyTraces(traces)
}

// ProcessMetrics buffers metrics for future sampling and applies the
// currently installed metric filters inline.
func (p *Processor) ProcessMetrics(metrics []signal.MetricDataPoint) []signal.MetricDataPoint {
	p.sampler.BufferMetrics(metrics)
	return p.filters.ApplyMetrics(metrics)
}

// ProcessLogs buffers logs for future sampling and applies the
// currently installed log filters inline.
func (p *Processor) ProcessLogs(logs []signal.LogEntry) []signal.LogEntry {
	p.sampler.BufferLogs(logs)
	return p.filters.ApplyLogs(logs)
}

// ActiveRecommendations returns the recommendations produced by the most
// recent successful tick, or nil if none has completed yet.
func (p *Processor) ActiveRecommendations() []parser.Recommendation {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.activeRec == nil {
		return nil
	}
	return p.activeRec.Recommendations
}

// ActiveFilters returns the currently installed filter rules.
func (p *Processor) ActiveFilters() []parser.FilterRule {
	return p.filters.Active()
}

// ClearFilters removes every installed filter rule.
func (p *Processor) ClearFilters() {
	p.filters.Clear()
	if p.metrics != nil {
		p.metrics.ActiveFilterRules.Set(0)
	}
}
