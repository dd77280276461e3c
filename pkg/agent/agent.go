// Package agent implements the specialised prompt-improvement agents and the
// registry that instantiates them by name.
package agent

import (
	"context"

	"github.com/zen-systems/promptforge/pkg/models"
	"github.com/zen-systems/promptforge/pkg/tokens"
)

// Completer performs one language-model completion. Failures are reported
// in-band as error-tagged text with nil usage.
type Completer interface {
	Complete(ctx context.Context, model models.ModelConfig, system, user string) (string, *tokens.Usage)
}

// Agent analyses a prompt from one perspective and proposes an improved version.
type Agent interface {
	Name() string
	Model() models.ModelConfig
	Analyze(ctx context.Context, prompt string) Analysis
	ProposeImprovements(ctx context.Context, prompt string, analysis Analysis) Suggestions
	Run(ctx context.Context, prompt string) Result
}

// Analysis is an agent's assessment of a prompt.
type Analysis struct {
	Score      float64  `json:"score" jsonschema:"minimum=0,maximum=10,description=Quality score on a 0-10 scale"`
	Strengths  []string `json:"strengths" jsonschema:"description=What the prompt already does well"`
	Weaknesses []string `json:"weaknesses" jsonschema:"description=What the prompt is missing or gets wrong"`

	// Fallback is set when the model reply could not be parsed.
	Fallback bool          `json:"-"`
	Usage    *tokens.Usage `json:"-"`
}

// Suggestions is an agent's proposed rewrite of a prompt.
type Suggestions struct {
	Suggestions    []string `json:"suggestions" jsonschema:"description=Concrete changes applied to the prompt"`
	ImprovedPrompt string   `json:"improved_prompt" jsonschema:"description=The full rewritten prompt"`
	Confidence     float64  `json:"confidence" jsonschema:"minimum=0,maximum=1,description=Confidence in the rewrite"`

	Fallback bool          `json:"-"`
	Usage    *tokens.Usage `json:"-"`
}

// Result is the outcome of one agent run.
type Result struct {
	AgentName   string         `json:"agent_name"`
	Analysis    Analysis       `json:"analysis"`
	Suggestions Suggestions    `json:"suggestions"`
	Metadata    map[string]any `json:"metadata"`
	TokenUsage  *tokens.Usage  `json:"token_usage,omitempty"`
}

// Failed reports whether neither call produced a usable reply.
func (r Result) Failed() bool {
	return r.Analysis.Fallback && r.Suggestions.Fallback
}
