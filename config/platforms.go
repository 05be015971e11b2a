package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Platforms-config validation errors.
var (
	ErrNoPlatforms              = errors.New("at least one platform is required")
	ErrPlatformMissingName      = errors.New("platform name is required")
	ErrPlatformMissingBaseURL   = errors.New("platform base_url is required")
	ErrNoEnabledPlatforms       = errors.New("at least one platform must be enabled")
	ErrInvalidMatchRadius       = errors.New("reconciler.match_radius_m must be positive")
	ErrInvalidNameSimilarity    = errors.New("reconciler.name_similarity must be in (0, 1]")
	ErrInvalidAdapterTimeout    = errors.New("adapter.timeout_sec must be at least 1")
	ErrInvalidMaxAttempts       = errors.New("adapter.max_attempts must be at least 1")
	ErrInvalidBackoffMultiplier = errors.New("adapter.backoff_multiplier must be >= 1.0")
)

// PlatformsConfig describes the platform adapters and the reconciler
// thresholds. The thresholds are deliberately configuration, not
// constants baked into the merge code.
type PlatformsConfig struct {
	Platforms  []PlatformConfig `yaml:"platforms"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Adapter    AdapterConfig    `yaml:"adapter"`
}

// PlatformConfig describes one delivery platform to scrape.
type PlatformConfig struct {
	Name    string `yaml:"name"`
	BaseURL string `yaml:"base_url"`
	Enabled bool   `yaml:"enabled"`
}

// ReconcilerConfig holds the same-kitchen decision thresholds.
type ReconcilerConfig struct {
	MatchRadiusM   float64 `yaml:"match_radius_m"`
	NameSimilarity float64 `yaml:"name_similarity"`
}

// AdapterConfig bounds every platform fetch.
type AdapterConfig struct {
	TimeoutSec        int     `yaml:"timeout_sec"`
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialDelayMs    int     `yaml:"initial_delay_ms"`
	MaxDelayMs        int     `yaml:"max_delay_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
}

// DefaultPlatformsConfig returns the thresholds used when a field is left
// unset in the YAML file.
func DefaultPlatformsConfig() PlatformsConfig {
	return PlatformsConfig{
		Reconciler: ReconcilerConfig{
			MatchRadiusM:   50,
			NameSimilarity: 0.6,
		},
		Adapter: AdapterConfig{
			TimeoutSec:        15,
			MaxAttempts:       3,
			InitialDelayMs:    500,
			MaxDelayMs:        10000,
			BackoffMultiplier: 2.0,
		},
	}
}

// LoadPlatforms loads and validates the platforms YAML file.
func LoadPlatforms(path string) (*PlatformsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read platforms config: %w", err)
	}

	cfg := DefaultPlatformsConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse platforms config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("platforms config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks the config for internal consistency.
func (c *PlatformsConfig) Validate() error {
	if len(c.Platforms) == 0 {
		return ErrNoPlatforms
	}

	enabled := 0
	for i, p := range c.Platforms {
		if p.Name == "" {
			return fmt.Errorf("%w: platform[%d]", ErrPlatformMissingName, i)
		}
		if p.BaseURL == "" {
			return fmt.Errorf("%w: platform[%d]", ErrPlatformMissingBaseURL, i)
		}
		if p.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return ErrNoEnabledPlatforms
	}

	if c.Reconciler.MatchRadiusM <= 0 {
		return ErrInvalidMatchRadius
	}
	if c.Reconciler.NameSimilarity <= 0 || c.Reconciler.NameSimilarity > 1 {
		return ErrInvalidNameSimilarity
	}
	if c.Adapter.TimeoutSec < 1 {
		return ErrInvalidAdapterTimeout
	}
	if c.Adapter.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}
	if c.Adapter.BackoffMultiplier < 1.0 {
		return ErrInvalidBackoffMultiplier
	}
	return nil
}

// Enabled returns only the enabled platforms.
func (c *PlatformsConfig) Enabled() []PlatformConfig {
	var out []PlatformConfig
	for _, p := range c.Platforms {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// Timeout returns the per-fetch timeout as a duration.
func (a AdapterConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSec) * time.Second
}

// RetryDelay computes the exponential backoff before the given attempt,
// capped at MaxDelayMs. Attempt numbering starts at 1; the first attempt
// has no delay.
func (a AdapterConfig) RetryDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	delay := float64(a.InitialDelayMs)
	for i := 2; i < attempt; i++ {
		delay *= a.BackoffMultiplier
	}
	if a.MaxDelayMs > 0 && int(delay) > a.MaxDelayMs {
		delay = float64(a.MaxDelayMs)
	}
	return time.Duration(int(delay)) * time.Millisecond
}
