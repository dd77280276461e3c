package models

// ForAgent returns the model an agent should use. Agents without a mapping
// get the DefaultKey entry, so the lookup never fails.
func (r *Registry) ForAgent(agentName string) ModelConfig {
	if key, ok := r.agentModels[agentName]; ok {
		if cfg, ok := r.models[key]; ok {
			return cfg
		}
	}
	return r.models[DefaultKey]
}

// KeyForAgent returns the registry key ForAgent resolves to.
func (r *Registry) KeyForAgent(agentName string) string {
	if key, ok := r.agentModels[agentName]; ok {
		if _, ok := r.models[key]; ok {
			return key
		}
	}
	return DefaultKey
}

// Lightweight analysis (syntax, structure) runs on the cheap model; domain
// reasoning gets the stronger one.
func defaultAgentModels() map[string]string {
	return map[string]string{
		"syntax":    "fast",
		"structure": "fast",
		"domain":    "powerful",
	}
}

func defaultModels() map[string]ModelConfig {
	return map[string]ModelConfig{
		"fast": {
			ModelID:     "llama-3.1-8b-instant",
			DisplayName: "Llama 3.1 8B (Fast)",
			Provider:    DefaultProvider,
			Speed:       SpeedFastest,
			Cost:        CostLowest,
			UseCase:     "Quick syntax and structure analysis",
			MaxTokens:   1024,
			Temperature: 0.5,
		},
		"balanced": {
			ModelID:     "llama-3.3-70b-versatile",
			DisplayName: "Llama 3.3 70B (Balanced)",
			Provider:    DefaultProvider,
			Speed:       SpeedModerate,
			Cost:        CostModerate,
			UseCase:     "General purpose default",
			MaxTokens:   2048,
			Temperature: 0.7,
		},
		"powerful": {
			ModelID:     "llama-3.3-70b-versatile",
			DisplayName: "Llama 3.3 70B (Powerful)",
			Provider:    DefaultProvider,
			Speed:       SpeedModerate,
			Cost:        CostModerate,
			UseCase:     "Deep domain analysis and reasoning",
			MaxTokens:   2048,
			Temperature: 0.8,
		},
		"alternative": {
			ModelID:     "gemma2-9b-it",
			DisplayName: "Gemma 2 9B",
			Provider:    DefaultProvider,
			Speed:       SpeedFast,
			Cost:        CostLow,
			UseCase:     "Alternative perspective for diversity",
			MaxTokens:   1024,
			Temperature: 0.7,
		},
		"expert": {
			ModelID:     "mixtral-8x7b-32768",
			DisplayName: "Mixtral 8x7B",
			Provider:    DefaultProvider,
			Speed:       SpeedModerate,
			Cost:        CostModerate,
			UseCase:     "Complex multi-faceted analysis",
			MaxTokens:   2048,
			Temperature: 0.7,
		},
	}
}
