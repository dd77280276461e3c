package models

import (
	"fmt"
	"sort"
)

// Speed classifies how quickly a model answers.
type Speed string

const (
	SpeedFastest  Speed = "fastest"
	SpeedFast     Speed = "fast"
	SpeedModerate Speed = "moderate"
	SpeedSlow     Speed = "slow"
)

// CostClass classifies how expensive a model is relative to the others.
type CostClass string

const (
	CostLowest   CostClass = "lowest"
	CostLow      CostClass = "low"
	CostModerate CostClass = "moderate"
	CostHigh     CostClass = "high"
)

// DefaultKey is the registry entry used for agents without an explicit mapping.
const DefaultKey = "balanced"

// DefaultProvider is the adapter that serves the built-in catalogue.
const DefaultProvider = "groq"

// ModelConfig identifies one language-model backend and its sampling defaults.
type ModelConfig struct {
	Key         string    `json:"key" yaml:"key"`
	ModelID     string    `json:"model_id" yaml:"model_id"`
	DisplayName string    `json:"display_name" yaml:"display_name"`
	Provider    string    `json:"provider" yaml:"provider"`
	Speed       Speed     `json:"speed" yaml:"speed"`
	Cost        CostClass `json:"cost" yaml:"cost"`
	UseCase     string    `json:"use_case,omitempty" yaml:"use_case,omitempty"`
	MaxTokens   int       `json:"max_tokens" yaml:"max_tokens"`
	Temperature float64   `json:"temperature" yaml:"temperature"`
}

// Registry is the read-only catalogue of models plus the agent -> model key mapping.
type Registry struct {
	models      map[string]ModelConfig
	agentModels map[string]string
}

// NewRegistry builds a registry. The catalogue must contain DefaultKey and every
// agent mapping must point at a known key.
func NewRegistry(entries map[string]ModelConfig, agentModels map[string]string) (*Registry, error) {
	if _, ok := entries[DefaultKey]; !ok {
		return nil, fmt.Errorf("model registry requires a %q entry", DefaultKey)
	}

	r := &Registry{
		models:      make(map[string]ModelConfig, len(entries)),
		agentModels: make(map[string]string, len(agentModels)),
	}
	for key, cfg := range entries {
		if cfg.ModelID == "" {
			return nil, fmt.Errorf("model %q: model_id is required", key)
		}
		cfg.Key = key
		if cfg.Provider == "" {
			cfg.Provider = DefaultProvider
		}
		if cfg.DisplayName == "" {
			cfg.DisplayName = cfg.ModelID
		}
		r.models[key] = cfg
	}
	for agentName, key := range agentModels {
		if _, ok := r.models[key]; !ok {
			return nil, fmt.Errorf("agent %q mapped to unknown model %q", agentName, key)
		}
		r.agentModels[agentName] = key
	}
	return r, nil
}

// DefaultRegistry returns the built-in catalogue.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(defaultModels(), defaultAgentModels())
	if err != nil {
		panic(err)
	}
	return r
}

// WithOverrides returns a new registry with entries and mappings replaced by
// the given overrides. Override entries are merged field by field: zero
// values keep the existing setting.
func (r *Registry) WithOverrides(entries map[string]ModelConfig, agentModels map[string]string) (*Registry, error) {
	merged := make(map[string]ModelConfig, len(r.models)+len(entries))
	for k, v := range r.models {
		merged[k] = v
	}
	for k, v := range entries {
		merged[k] = mergeModel(merged[k], v)
	}

	mapping := r.AgentMapping()
	for k, v := range agentModels {
		mapping[k] = v
	}
	return NewRegistry(merged, mapping)
}

func mergeModel(base, override ModelConfig) ModelConfig {
	if override.ModelID != "" {
		base.ModelID = override.ModelID
	}
	if override.DisplayName != "" {
		base.DisplayName = override.DisplayName
	}
	if override.Provider != "" {
		base.Provider = override.Provider
	}
	if override.Speed != "" {
		base.Speed = override.Speed
	}
	if override.Cost != "" {
		base.Cost = override.Cost
	}
	if override.UseCase != "" {
		base.UseCase = override.UseCase
	}
	if override.MaxTokens > 0 {
		base.MaxTokens = override.MaxTokens
	}
	if override.Temperature > 0 {
		base.Temperature = override.Temperature
	}
	return base
}

// Get returns the model registered under key.
func (r *Registry) Get(key string) (ModelConfig, bool) {
	cfg, ok := r.models[key]
	return cfg, ok
}

// All returns every model sorted by key.
func (r *Registry) All() []ModelConfig {
	keys := make([]string, 0, len(r.models))
	for k := range r.models {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]ModelConfig, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.models[k])
	}
	return out
}

// AgentMapping returns a copy of the agent -> model key mapping.
func (r *Registry) AgentMapping() map[string]string {
	out := make(map[string]string, len(r.agentModels))
	for k, v := range r.agentModels {
		out[k] = v
	}
	return out
}
