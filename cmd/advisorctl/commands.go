package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/telemetryadvisor/advisor/internal/anonymizer"
	"github.com/telemetryadvisor/advisor/internal/cache"
	"github.com/telemetryadvisor/advisor/internal/llmclient"
	"github.com/telemetryadvisor/advisor/internal/parser"
	"github.com/telemetryadvisor/advisor/internal/policy"
	"github.com/telemetryadvisor/advisor/internal/ratelimit"
	"github.com/telemetryadvisor/advisor/internal/recommender"
	"github.com/telemetryadvisor/advisor/internal/sampler"
	"github.com/telemetryadvisor/advisor/internal/signal"
)

func loadSample(path string) (*signal.Sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sample file: %w", err)
	}
	var s signal.Sample
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing sample file: %w", err)
	}
	return &s, nil
}

func loadPolicies(path string) ([]policy.LabelPolicy, error) {
	policies, err := policy.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading policies: %w", err)
	}
	return policies, nil
}

func loadPolicyStrings(path string) ([]string, error) {
	policies, err := loadPolicies(path)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(policies))
	for _, p := range policies {
		out = append(out, p.String())
	}
	return out, nil
}

func buildClient(key string) *llmclient.Client {
	var opts []llmclient.Option
	if baseURL != "" {
		opts = append(opts, llmclient.WithBaseURL(baseURL))
	}
	if model != "" {
		opts = append(opts, llmclient.WithModel(model))
	}
	return llmclient.New(key, opts...)
}

// buildRecommender assembles a Recommender for CLI use. The cache is
// disabled by default since a single CLI invocation never benefits from
// it; the rate limiter always runs to protect the shared LLM endpoint.
func buildRecommender(key string, enableCache bool) *recommender.Recommender {
	client := buildClient(key)
	return recommender.New(
		client,
		parser.New(),
		cache.New(time.Hour),
		ratelimit.New(60),
		recommender.Config{
			EnableCache:      enableCache,
			EnableRateLimit:  true,
			FallbackToStatic: true,
		},
	)
}

func writeRecommendations(recs *parser.ParsedRecommendations, outPath string, verbose bool) error {
	b, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding recommendations: %w", err)
	}

	if outPath == "" {
		fmt.Println(string(b))
	} else {
		if err := os.WriteFile(outPath, b, 0o644); err != nil {
			return fmt.Errorf("writing output file: %w", err)
		}
		fmt.Printf("Wrote recommendations to %s\n", outPath)
	}

	if verbose {
		fmt.Printf("\n%d recommendation(s): %d drop, %d label-policy (high=%d medium=%d low=%d)\n",
			recs.Summary.TotalRecommendations,
			recs.Summary.ByType[parser.RecommendationTypeDropSignal],
			recs.Summary.ByType[parser.RecommendationTypeLabelPolicy],
			recs.Summary.ByPriority[parser.PriorityHigh],
			recs.Summary.ByPriority[parser.PriorityMedium],
			recs.Summary.ByPriority[parser.PriorityLow],
		)
	}
	return nil
}

func writeYAMLConfig(recs *parser.ParsedRecommendations, path string) error {
	yamlOut := parser.GenerateYAMLConfig(recs.Recommendations, time.Now())
	if err := os.WriteFile(path, []byte(yamlOut), 0o644); err != nil {
		return fmt.Errorf("writing yaml output file: %w", err)
	}
	fmt.Printf("Wrote OTel filter processor YAML to %s\n", path)
	return nil
}

// syntheticSample builds a small, deterministic sample for the test and
// policy-test subcommands, analogous to a fixture that exercises every
// signal kind without reading any file from disk.
func syntheticSample() *signal.Sample {
	now := time.Now()
	return &signal.Sample{
		Traces: []signal.TraceSpan{
			{
				Name:         "GET /healthz",
				Service:      "api-gateway",
				Duration:     2 * time.Millisecond,
				Status:       "ok",
				Attributes:   map[string]string{"http.method": "GET"},
				ResourceTags: map[string]string{},
			},
			{
				Name:         "checkout",
				Service:      "payments",
				Duration:     150 * time.Millisecond,
				Status:       "ok",
				Attributes:   map[string]string{"user.id": "user-4821"},
				ResourceTags: map[string]string{"environment": "production"},
			},
		},
		Metrics: []signal.MetricDataPoint{
			{Name: "http.requests", Value: 1, Kind: "counter", Labels: map[string]string{"route": "/healthz"}, Timestamp: now},
		},
		Logs: []signal.LogEntry{
			{Level: "DEBUG", Message: "cache miss for key abc123", Service: "api-gateway", Timestamp: now, Attributes: map[string]string{"level": "DEBUG"}},
			{Level: "ERROR", Message: "payment declined", Service: "payments", Timestamp: now, Attributes: map[string]string{"level": "ERROR"}},
		},
		Meta: signal.Metadata{
			SampleSize:   5,
			TimeRange:    "last-5m",
			Services:     []string{"api-gateway", "payments"},
			SampledAt:    now,
			TotalSpans:   2,
			TotalMetrics: 1,
			TotalLogs:    2,
		},
	}
}

func runTestCommand(cmd *cobra.Command, args []string) error {
	var sample *signal.Sample
	if sampleFile != "" {
		s, err := loadSample(sampleFile)
		if err != nil {
			return err
		}
		sample = s
	} else {
		sample = syntheticSample()
	}

	fmt.Println("Running advisor smoke checks")

	anon := anonymizer.New()
	redacted := anon.String("contact user-4821 at jane@example.com from 10.0.0.5")
	if redacted == "contact user-4821 at jane@example.com from 10.0.0.5" {
		fmt.Println("[FAIL] anonymizer: no patterns matched a string that should have been redacted")
	} else {
		fmt.Println("[PASS] anonymizer: sensitive substrings redacted")
	}

	smp := sampler.New(10)
	smp.BufferTraces(sample.Traces)
	smp.BufferMetrics(sample.Metrics)
	smp.BufferLogs(sample.Logs)
	drawn := smp.Draw()
	if sampler.IsEmpty(drawn) {
		fmt.Println("[FAIL] sampler: draw returned an empty sample from a non-empty buffer")
	} else {
		fmt.Printf("[PASS] sampler: drew %d traces, %d metrics, %d logs\n", len(drawn.Traces), len(drawn.Metrics), len(drawn.Logs))
	}

	fp1 := sample.Fingerprint()
	fp2 := sample.Fingerprint()
	if fp1 != fp2 {
		fmt.Println("[FAIL] sample fingerprint: not stable across calls")
	} else {
		fmt.Printf("[PASS] sample fingerprint: %s\n", fp1)
	}

	if _, err := sample.ToJSON(); err != nil {
		fmt.Printf("[FAIL] sample JSON encoding: %v\n", err)
	} else {
		fmt.Println("[PASS] sample JSON encoding")
	}

	fmt.Println("Smoke checks complete")
	return nil
}

func checkPolicyCompliance(policies []policy.LabelPolicy, sample *signal.Sample) {
	for _, p := range policies {
		fmt.Printf("Policy %q (%s):\n", p.Name, p.Enforcement)
		violations := 0
		for _, span := range sample.Traces {
			for _, required := range p.RequiredLabels {
				if _, ok := span.ResourceTags[required]; !ok {
					fmt.Printf("  trace %q is missing required label %q\n", span.Name, required)
					violations++
				}
			}
			for _, forbidden := range p.ForbiddenLabels {
				if _, ok := span.ResourceTags[forbidden]; ok {
					fmt.Printf("  trace %q carries forbidden label %q\n", span.Name, forbidden)
					violations++
				}
			}
		}
		if violations == 0 {
			fmt.Println("  no violations found in the synthetic sample")
		}
	}
}
