// Command advisorctl is the dry-run companion to the advisor process: it
// reads a telemetry sample and an optional policy file from disk,
// generates recommendations without wiring a live pipeline, and prints
// the result for an operator to inspect before turning on
// auto_apply_filters.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/telemetryadvisor/advisor/internal/sampler"
)

var (
	apiKey         string
	baseURL        string
	model          string
	sampleFile     string
	policiesFile   string
	outputFile     string
	yamlOutputFile string
	verbose        bool
	maxSamples     int
	timeout        time.Duration
)

func main() {
	root := &cobra.Command{
		Use:   "advisorctl",
		Short: "Telemetry advisor dry-run CLI",
		Long:  "A CLI for testing and exercising the telemetry advisor's sampling, anonymization, and recommendation pipeline without running the live processor",
	}

	root.AddCommand(
		newRecommendCommand(),
		newValidateCommand(),
		newTestCommand(),
		newPolicyCommand(),
		newVersionCommand(),
	)

	root.PersistentFlags().StringVar(&apiKey, "api-key", "", "LLM API key (or set GROK_API_KEY / ADVISOR_API_KEY)")
	root.PersistentFlags().StringVar(&baseURL, "base-url", "", "Override the LLM endpoint base URL")
	root.PersistentFlags().StringVar(&model, "model", "", "Override the LLM model identifier")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose output")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")

	if err := root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func newRecommendCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Generate recommendations for a telemetry sample file",
		RunE:  runRecommendCommand,
	}
	cmd.Flags().StringVar(&sampleFile, "sample", "", "Path to a telemetry sample JSON file (required)")
	cmd.Flags().StringVar(&policiesFile, "policies", "", "Path to a label policies YAML file")
	cmd.Flags().StringVar(&outputFile, "output", "", "Write recommendations here instead of stdout")
	cmd.Flags().IntVar(&maxSamples, "max-samples", 100, "Maximum entries to sample per signal kind")
	cmd.Flags().StringVar(&yamlOutputFile, "yaml-output", "", "Also render the recommended filter rules as OTel-processor YAML to this file")
	cmd.MarkFlagRequired("sample")
	return cmd
}

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the LLM endpoint connection and API key",
		RunE:  runValidateCommand,
	}
}

func newTestCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run built-in smoke scenarios against the sampling and anonymization pipeline",
		RunE:  runTestCommand,
	}
	cmd.Flags().StringVar(&sampleFile, "sample", "", "Optional test sample file; a synthetic sample is used if omitted")
	return cmd
}

func newPolicyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Validate and test label policy documents",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "validate",
			Short: "Validate a policy YAML file",
			RunE:  runPolicyValidateCommand,
		},
		&cobra.Command{
			Use:   "test",
			Short: "Check a synthetic sample against a policy file",
			RunE:  runPolicyTestCommand,
		},
	)
	cmd.PersistentFlags().StringVar(&policiesFile, "policies", "", "Path to the policies YAML file (required)")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("advisorctl dry-run CLI")
		},
	}
}

func resolveAPIKey() (string, error) {
	if apiKey != "" {
		return apiKey, nil
	}
	if env := os.Getenv("GROK_API_KEY"); env != "" {
		return env, nil
	}
	if env := os.Getenv("ADVISOR_API_KEY"); env != "" {
		return env, nil
	}
	return "", fmt.Errorf("an api key is required: set --api-key, GROK_API_KEY, or ADVISOR_API_KEY")
}

func runRecommendCommand(cmd *cobra.Command, args []string) error {
	key, err := resolveAPIKey()
	if err != nil {
		return err
	}

	if verbose {
		fmt.Printf("Reading sample file: %s\n", sampleFile)
	}
	sample, err := loadSample(sampleFile)
	if err != nil {
		return err
	}
	sample = sampler.New(maxSamples).CreateSample(sample.Traces, sample.Metrics, sample.Logs)

	var policyStrings []string
	if policiesFile != "" {
		if verbose {
			fmt.Printf("Loading policies from: %s\n", policiesFile)
		}
		policyStrings, err = loadPolicyStrings(policiesFile)
		if err != nil {
			return err
		}
	}

	rec := buildRecommender(key, false)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if verbose {
		fmt.Println("Generating recommendations...")
	}
	recs, err := rec.GenerateRecommendations(ctx, sample, policyStrings)
	if err != nil {
		return fmt.Errorf("generating recommendations: %w", err)
	}

	if yamlOutputFile != "" {
		if err := writeYAMLConfig(recs, yamlOutputFile); err != nil {
			return err
		}
	}

	return writeRecommendations(recs, outputFile, verbose)
}

func runValidateCommand(cmd *cobra.Command, args []string) error {
	key, err := resolveAPIKey()
	if err != nil {
		return err
	}

	client := buildClient(key)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if verbose {
		fmt.Println("Validating LLM connection...")
	}
	if err := client.ValidateConnection(ctx); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	fmt.Println("LLM connection validated successfully")
	return nil
}

func runPolicyValidateCommand(cmd *cobra.Command, args []string) error {
	if policiesFile == "" {
		return fmt.Errorf("--policies is required")
	}
	if _, err := loadPolicies(policiesFile); err != nil {
		return err
	}
	fmt.Println("Policies file is valid")
	return nil
}

func runPolicyTestCommand(cmd *cobra.Command, args []string) error {
	if policiesFile == "" {
		return fmt.Errorf("--policies is required")
	}
	policies, err := loadPolicies(policiesFile)
	if err != nil {
		return err
	}

	sample := syntheticSample()
	checkPolicyCompliance(policies, sample)
	return nil
}
