package tokens

// ExecutionPair describes running an original prompt and its improved version
// against the same model, plus the overhead spent producing and judging the
// improvement.
type ExecutionPair struct {
	OriginalPrompt     string
	OriginalOutput     string
	ImprovedPrompt     string
	ImprovedOutput     string
	ImprovementTokens  int
	ImprovementCostUSD float64
	JudgingTokens      int
	JudgingCostUSD     float64
	QualityImprovement float64
	Model              string
}

// ComparisonMetrics summarises whether an improved prompt was worth its cost.
type ComparisonMetrics struct {
	OriginalPromptTokens int     `json:"original_prompt_tokens"`
	OriginalOutputTokens int     `json:"original_output_tokens"`
	OriginalTotalTokens  int     `json:"original_total_tokens"`
	OriginalCostUSD      float64 `json:"original_cost_usd"`

	ImprovedPromptTokens int     `json:"improved_prompt_tokens"`
	ImprovedOutputTokens int     `json:"improved_output_tokens"`
	ImprovedTotalTokens  int     `json:"improved_total_tokens"`
	ImprovedCostUSD      float64 `json:"improved_cost_usd"`

	ImprovementProcessTokens  int     `json:"improvement_process_tokens"`
	ImprovementProcessCostUSD float64 `json:"improvement_process_cost_usd"`
	JudgingTokens             int     `json:"judging_tokens"`
	JudgingCostUSD            float64 `json:"judging_cost_usd"`

	TotalTokensUsed int     `json:"total_tokens_used"`
	TotalCostUSD    float64 `json:"total_cost_usd"`

	TokenDifference        int     `json:"token_difference"`
	TokenEfficiencyPercent float64 `json:"token_efficiency_percent"`
	QualityImprovement     float64 `json:"output_quality_improvement"`
	// CostPerQualityPoint is nil when quality did not improve.
	CostPerQualityPoint *float64 `json:"cost_per_quality_point,omitempty"`
	IsWorthIt           bool     `json:"is_worth_it"`
	// ROIScore is nil when the improved execution was not more expensive.
	ROIScore *float64 `json:"roi_score,omitempty"`
}

// worthItQuality and worthItCostIncrease bound the is-worth-it verdict: the
// quality gain must exceed 5 points while the cost less than doubles.
const (
	worthItQuality      = 5.0
	worthItCostIncrease = 100.0
)

// Compare computes the token and cost trade-off of an improved prompt.
func (t *Tracker) Compare(p ExecutionPair) ComparisonMetrics {
	model := p.Model
	if model == "" {
		model = t.defaultModel
	}

	origIn := t.CountTokens(p.OriginalPrompt)
	origOut := t.CountTokens(p.OriginalOutput)
	origCost := t.CalculateCost(origIn, origOut, model)

	impIn := t.CountTokens(p.ImprovedPrompt)
	impOut := t.CountTokens(p.ImprovedOutput)
	impCost := t.CalculateCost(impIn, impOut, model)

	m := ComparisonMetrics{
		OriginalPromptTokens:      origIn,
		OriginalOutputTokens:      origOut,
		OriginalTotalTokens:       origIn + origOut,
		OriginalCostUSD:           origCost,
		ImprovedPromptTokens:      impIn,
		ImprovedOutputTokens:      impOut,
		ImprovedTotalTokens:       impIn + impOut,
		ImprovedCostUSD:           impCost,
		ImprovementProcessTokens:  p.ImprovementTokens,
		ImprovementProcessCostUSD: p.ImprovementCostUSD,
		JudgingTokens:             p.JudgingTokens,
		JudgingCostUSD:            p.JudgingCostUSD,
		TotalTokensUsed:           origIn + origOut + impIn + impOut + p.ImprovementTokens + p.JudgingTokens,
		TotalCostUSD:              origCost + impCost + p.ImprovementCostUSD + p.JudgingCostUSD,
		TokenDifference:           impOut - origOut,
		QualityImprovement:        p.QualityImprovement,
	}

	if origOut > 0 {
		m.TokenEfficiencyPercent = (float64(impOut)/float64(origOut) - 1) * 100
	}
	if p.QualityImprovement > 0 {
		v := (impCost - origCost) / p.QualityImprovement
		m.CostPerQualityPoint = &v
	}

	var costIncrease float64
	if origCost > 0 {
		costIncrease = (impCost - origCost) / origCost * 100
	}
	m.IsWorthIt = p.QualityImprovement > worthItQuality && costIncrease < worthItCostIncrease

	if impCost > origCost {
		v := p.QualityImprovement / ((impCost - origCost) * 1_000_000)
		m.ROIScore = &v
	}
	return m
}
