package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zen-systems/promptforge/pkg/agent"
	"github.com/zen-systems/promptforge/pkg/llm"
	"github.com/zen-systems/promptforge/pkg/models"
	"github.com/zen-systems/promptforge/pkg/tokens"
)

// DefaultTimeoutSeconds bounds a coordination round.
const DefaultTimeoutSeconds = 120

// Settings holds the behaviour configuration read from settings.yaml.
type Settings struct {
	Agents              []string                      `yaml:"agents,omitempty"`
	Weights             map[string]float64            `yaml:"weights,omitempty"`
	TimeoutSeconds      *int                          `yaml:"timeout_seconds,omitempty"`
	Retry               RetryConfig                   `yaml:"retry,omitempty"`
	Pricing             tokens.PricingTable           `yaml:"pricing,omitempty"`
	DefaultPricingModel string                        `yaml:"default_pricing_model,omitempty"`
	Models              map[string]models.ModelConfig `yaml:"models,omitempty"`
	AgentModels         map[string]string             `yaml:"agent_models,omitempty"`
	Cache               CacheConfig                   `yaml:"cache,omitempty"`
	UsageDB             string                        `yaml:"usage_db,omitempty"`
	EvidenceDir         string                        `yaml:"evidence_dir,omitempty"`
	Log                 LogConfig                     `yaml:"log,omitempty"`
}

// RetryConfig defines retry and backoff behavior for model calls.
type RetryConfig struct {
	MaxAttempts   int `yaml:"max_attempts,omitempty"`
	BaseBackoffMs int `yaml:"base_backoff_ms,omitempty"`
	MaxBackoffMs  int `yaml:"max_backoff_ms,omitempty"`
}

// CacheConfig enables the in-process completion cache.
type CacheConfig struct {
	Enabled    bool  `yaml:"enabled,omitempty"`
	MaxBytes   int64 `yaml:"max_bytes,omitempty"`
	TTLSeconds int   `yaml:"ttl_seconds,omitempty"`
}

// LogConfig selects the log level and handler format.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// LoadSettings reads settings from a YAML file.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}

	applyDefaults(&s)
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// DefaultSettings returns the settings used when no file is present.
func DefaultSettings() *Settings {
	s := &Settings{}
	applyDefaults(s)
	return s
}

func applyDefaults(s *Settings) {
	if s == nil {
		return
	}
	if len(s.Agents) == 0 {
		s.Agents = append([]string(nil), agent.DefaultAgents...)
	}
	if s.TimeoutSeconds == nil {
		timeout := DefaultTimeoutSeconds
		s.TimeoutSeconds = &timeout
	}
	if s.Retry.MaxAttempts == 0 {
		s.Retry.MaxAttempts = 3
	}
	if s.Retry.BaseBackoffMs == 0 {
		s.Retry.BaseBackoffMs = 1000
	}
	if s.Retry.MaxBackoffMs == 0 {
		s.Retry.MaxBackoffMs = 8000
	}
	if s.Retry.MaxBackoffMs < s.Retry.BaseBackoffMs {
		s.Retry.MaxBackoffMs = s.Retry.BaseBackoffMs
	}
	if s.DefaultPricingModel == "" {
		s.DefaultPricingModel = tokens.DefaultPricingModel
	}
	if s.Cache.MaxBytes == 0 {
		s.Cache.MaxBytes = 64 << 20
	}
	if s.Cache.TTLSeconds == 0 {
		s.Cache.TTLSeconds = 3600
	}
	if s.Log.Level == "" {
		s.Log.Level = "info"
	}
	if s.Log.Format == "" {
		s.Log.Format = "text"
	}
}

// Validate reports settings that cannot be used.
func (s *Settings) Validate() error {
	for name, w := range s.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return fmt.Errorf("weights.%s: must be a non-negative number", name)
		}
	}
	if s.TimeoutSeconds != nil && *s.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds: must not be negative")
	}
	if s.Retry.MaxAttempts < 0 || s.Retry.BaseBackoffMs < 0 {
		return fmt.Errorf("retry: values must not be negative")
	}
	for model, p := range s.Pricing {
		if p.InputPerMillion < 0 || p.OutputPerMillion < 0 {
			return fmt.Errorf("pricing.%s: prices must not be negative", model)
		}
	}
	if _, err := s.ModelRegistry(); err != nil {
		return err
	}
	return nil
}

// Timeout returns the coordination deadline; zero means none.
func (s *Settings) Timeout() time.Duration {
	if s.TimeoutSeconds == nil {
		return DefaultTimeoutSeconds * time.Second
	}
	return time.Duration(*s.TimeoutSeconds) * time.Second
}

// RetryPolicy converts the retry settings for the model caller.
func (s *Settings) RetryPolicy() llm.RetryPolicy {
	return llm.RetryPolicy{
		MaxAttempts: s.Retry.MaxAttempts,
		BaseBackoff: time.Duration(s.Retry.BaseBackoffMs) * time.Millisecond,
		MaxBackoff:  time.Duration(s.Retry.MaxBackoffMs) * time.Millisecond,
	}
}

// CacheTTL returns the completion cache entry lifetime.
func (s *Settings) CacheTTL() time.Duration {
	return time.Duration(s.Cache.TTLSeconds) * time.Second
}

// ModelRegistry returns the built-in catalogue with the configured overrides.
func (s *Settings) ModelRegistry() (*models.Registry, error) {
	reg := models.DefaultRegistry()
	if len(s.Models) == 0 && len(s.AgentModels) == 0 {
		return reg, nil
	}
	reg, err := reg.WithOverrides(s.Models, s.AgentModels)
	if err != nil {
		return nil, fmt.Errorf("models: %w", err)
	}
	return reg, nil
}

// Tracker returns a token tracker using the configured pricing.
func (s *Settings) Tracker() *tokens.Tracker {
	return tokens.NewTracker(
		tokens.WithPricing(s.Pricing),
		tokens.WithDefaultModel(s.DefaultPricingModel),
	)
}

// resolvePaths makes relative storage paths relative to the config directory.
func (s *Settings) resolvePaths(configDir string) {
	if s.UsageDB == "" {
		s.UsageDB = filepath.Join(configDir, "usage.db")
	} else if !filepath.IsAbs(s.UsageDB) {
		s.UsageDB = filepath.Join(configDir, s.UsageDB)
	}
	if s.EvidenceDir != "" && !filepath.IsAbs(s.EvidenceDir) {
		s.EvidenceDir = filepath.Join(configDir, s.EvidenceDir)
	}
}
