// Package config loads advisor process configuration from defaults, a
// file, and environment variables, in that order of increasing
// precedence, via viper.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config is the full set of options the advisor process recognizes.
type Config struct {
	APIKey           string        `mapstructure:"api_key"`
	BaseURL          string        `mapstructure:"base_url"`
	Model            string        `mapstructure:"model"`
	MaxSampleSize    int           `mapstructure:"max_sample_size"`
	SamplingInterval time.Duration `mapstructure:"sampling_interval"`

	EnableCache     bool          `mapstructure:"enable_cache"`
	CacheExpiration time.Duration `mapstructure:"cache_expiration"`

	EnableRateLimit bool `mapstructure:"enable_rate_limit"`
	RateLimitRPM    int  `mapstructure:"rate_limit_rpm"`

	AutoApplyFilters bool `mapstructure:"auto_apply_filters"`
	MaxFilterRules   int  `mapstructure:"max_filter_rules"`
	// FilterTimeout is an optional per-rule TTL; zero disables expiry.
	FilterTimeout time.Duration `mapstructure:"filter_timeout"`

	FallbackToStatic bool `mapstructure:"fallback_to_static"`

	PolicyFile          string        `mapstructure:"policy_file"`
	PolicyReloadInterval time.Duration `mapstructure:"policy_reload_interval"`

	AnonymizerOverlayFile string `mapstructure:"anonymizer_overlay_file"`

	LogLevel string `mapstructure:"log_level"`

	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	MetricsAddr    string `mapstructure:"metrics_addr"`

	StatusAddr string `mapstructure:"status_addr"`
}

const envPrefix = "ADVISOR"

// apiKeyEnvFallback is consulted when api_key is unset anywhere else.
const apiKeyEnvFallback = "GROK_API_KEY"

func setDefaults(v *viper.Viper) {
	// Zero-valued defaults register these keys with viper, so their
	// ADVISOR_-prefixed environment variables are seen by Unmarshal.
	v.SetDefault("api_key", "")
	v.SetDefault("filter_timeout", time.Duration(0))
	v.SetDefault("policy_file", "")
	v.SetDefault("anonymizer_overlay_file", "")
	v.SetDefault("base_url", "https://api.x.ai/v1")
	v.SetDefault("model", "grok-beta")
	v.SetDefault("max_sample_size", 100)
	v.SetDefault("sampling_interval", 5*time.Minute)
	v.SetDefault("enable_cache", true)
	v.SetDefault("cache_expiration", time.Hour)
	v.SetDefault("enable_rate_limit", true)
	v.SetDefault("rate_limit_rpm", 60)
	v.SetDefault("auto_apply_filters", false)
	v.SetDefault("max_filter_rules", 100)
	v.SetDefault("fallback_to_static", true)
	v.SetDefault("policy_reload_interval", 5*time.Minute)
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_enabled", false)
	v.SetDefault("metrics_addr", ":9090")
	v.SetDefault("status_addr", ":8080")
}

// Load reads configuration from the given file path (may be empty, in
// which case only defaults and environment variables apply). Every
// field is overridable via an ADVISOR_-prefixed environment variable,
// e.g. ADVISOR_MAX_SAMPLE_SIZE.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv(apiKeyEnvFallback)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required fields are set and numeric fields are
// sane.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("config: api_key is required (set api_key or %s)", apiKeyEnvFallback)
	}
	if c.MaxSampleSize <= 0 {
		return fmt.Errorf("config: max_sample_size must be positive, got %d", c.MaxSampleSize)
	}
	if c.MaxFilterRules <= 0 {
		return fmt.Errorf("config: max_filter_rules must be positive, got %d", c.MaxFilterRules)
	}
	if c.EnableRateLimit && c.RateLimitRPM <= 0 {
		return fmt.Errorf("config: rate_limit_rpm must be positive when enable_rate_limit is true, got %d", c.RateLimitRPM)
	}
	return nil
}
