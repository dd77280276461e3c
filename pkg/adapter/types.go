package adapter

// Request is one completion call.
type Request struct {
	Model       string  `json:"model"`
	System      string  `json:"system,omitempty"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// Usage captures provider-reported token usage.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the text produced by a completion call.
type Response struct {
	Content string `json:"content"`
	Adapter string `json:"adapter"`
	Model   string `json:"model"`
	// Usage is nil when the provider did not report token counts.
	Usage *Usage `json:"usage,omitempty"`
	// Cached is set when the response was served without calling the provider.
	Cached bool `json:"cached,omitempty"`
}

// NormalizeUsage fills TotalTokens when the provider left it empty.
func NormalizeUsage(u *Usage) *Usage {
	if u == nil {
		return nil
	}
	out := *u
	if out.TotalTokens == 0 && (out.PromptTokens > 0 || out.CompletionTokens > 0) {
		out.TotalTokens = out.PromptTokens + out.CompletionTokens
	}
	if out.TotalTokens == 0 {
		return nil
	}
	return &out
}
