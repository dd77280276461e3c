package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/zen-systems/promptforge/pkg/models"
	"github.com/zen-systems/promptforge/pkg/tokens"
)

// Overhead is what was spent producing an improved prompt.
type Overhead struct {
	Tokens  int
	CostUSD float64
}

// CompareExecutions runs original and improved as plain prompts against
// model and reports the token and cost trade-off of the improvement.
func (c *Caller) CompareExecutions(ctx context.Context, model models.ModelConfig, original, improved string, overhead Overhead) (tokens.ComparisonMetrics, error) {
	originalOut, err := c.execute(ctx, model, original)
	if err != nil {
		return tokens.ComparisonMetrics{}, fmt.Errorf("execute original prompt: %w", err)
	}
	improvedOut, err := c.execute(ctx, model, improved)
	if err != nil {
		return tokens.ComparisonMetrics{}, fmt.Errorf("execute improved prompt: %w", err)
	}

	return c.tracker.Compare(tokens.ExecutionPair{
		OriginalPrompt:     original,
		OriginalOutput:     originalOut,
		ImprovedPrompt:     improved,
		ImprovedOutput:     improvedOut,
		ImprovementTokens:  overhead.Tokens,
		ImprovementCostUSD: overhead.CostUSD,
		Model:              model.ModelID,
	}), nil
}

func (c *Caller) execute(ctx context.Context, model models.ModelConfig, prompt string) (string, error) {
	text, _ := c.Complete(ctx, model, "", prompt)
	if IsErrorText(text) {
		return "", errors.New(text)
	}
	return text, nil
}
