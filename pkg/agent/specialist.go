package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zen-systems/promptforge/pkg/models"
	"github.com/zen-systems/promptforge/pkg/tokens"
)

// Specialist is an Agent driven by a Specialty. Every built-in agent is a
// Specialist; they differ only in instructions and focus.
type Specialist struct {
	specialty Specialty
	model     models.ModelConfig
	caller    Completer
	logger    *slog.Logger

	analysisSystem    string
	improvementSystem string
}

// SpecialistOption configures a Specialist.
type SpecialistOption func(*Specialist)

// WithAgentLogger sets the logger used for parse failures.
func WithAgentLogger(l *slog.Logger) SpecialistOption {
	return func(s *Specialist) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSpecialist creates an agent for specialty backed by model.
func NewSpecialist(specialty Specialty, model models.ModelConfig, caller Completer, opts ...SpecialistOption) *Specialist {
	analysisSchema, suggestionsSchema := replySchemas()
	s := &Specialist{
		specialty:         specialty,
		model:             model,
		caller:            caller,
		logger:            slog.Default(),
		analysisSystem:    systemMessage(specialty.AnalysisInstruction, analysisSchema),
		improvementSystem: systemMessage(specialty.ImprovementInstruction, suggestionsSchema),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("agent", specialty.Name)
	return s
}

func systemMessage(instruction, schema string) string {
	return instruction + "\n\nReturn ONLY a JSON object matching this schema:\n" + schema
}

// Name returns the registry name of the agent.
func (s *Specialist) Name() string { return s.specialty.Name }

// Model returns the model the agent calls.
func (s *Specialist) Model() models.ModelConfig { return s.model }

// Specialty returns the agent's focus description.
func (s *Specialist) Specialty() Specialty { return s.specialty }

// Analyze scores prompt. A reply that cannot be parsed yields the fallback
// analysis; usage is attached either way.
func (s *Specialist) Analyze(ctx context.Context, prompt string) Analysis {
	reply, usage := s.caller.Complete(ctx, s.model, s.analysisSystem, "Analyze this prompt:\n\n"+prompt)

	analysis, err := parseAnalysis(reply)
	if err != nil {
		s.logger.Warn("analysis reply not parsed", "error", err)
		analysis = fallbackAnalysis()
	}
	analysis.Usage = usage
	return analysis
}

// ProposeImprovements rewrites prompt, addressing the weaknesses found by analysis.
func (s *Specialist) ProposeImprovements(ctx context.Context, prompt string, analysis Analysis) Suggestions {
	user := fmt.Sprintf("Improve this prompt:\n\n%s\n\nWeaknesses found: %s",
		prompt, strings.Join(analysis.Weaknesses, ", "))
	reply, usage := s.caller.Complete(ctx, s.model, s.improvementSystem, user)

	suggestions, err := parseSuggestions(reply, prompt)
	if err != nil {
		s.logger.Warn("improvement reply not parsed", "error", err)
		suggestions = fallbackSuggestions(prompt)
	}
	suggestions.Usage = usage
	return suggestions
}

// Run analyses then improves prompt and merges the usage of both calls.
func (s *Specialist) Run(ctx context.Context, prompt string) Result {
	analysis := s.Analyze(ctx, prompt)
	suggestions := s.ProposeImprovements(ctx, prompt, analysis)

	return Result{
		AgentName:   s.specialty.Name,
		Analysis:    analysis,
		Suggestions: suggestions,
		Metadata:    s.metadata(),
		TokenUsage:  tokens.Sum(analysis.Usage, suggestions.Usage),
	}
}

func (s *Specialist) metadata() map[string]any {
	return map[string]any{
		"focus":      s.specialty.Name,
		"model_id":   s.model.ModelID,
		"model_name": s.model.DisplayName,
		"provider":   s.model.Provider,
	}
}

// FallbackResult is the result reported for an agent that produced nothing,
// e.g. one that panicked or missed the coordination deadline.
func FallbackResult(a Agent, prompt string, reason string) Result {
	model := a.Model()
	return Result{
		AgentName:   a.Name(),
		Analysis:    fallbackAnalysis(),
		Suggestions: fallbackSuggestions(prompt),
		Metadata: map[string]any{
			"focus":      a.Name(),
			"model_id":   model.ModelID,
			"model_name": model.DisplayName,
			"provider":   model.Provider,
			reason:       true,
		},
	}
}
