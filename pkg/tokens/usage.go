package tokens

import "time"

// Usage is the accounting record of one completion call, or the sum of
// several calls that belong to one logical operation.
type Usage struct {
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	Model            string    `json:"model"`
	Timestamp        time.Time `json:"timestamp"`
	CostUSD          float64   `json:"cost_usd"`
}

// Add returns the field-by-field sum of u and other. The model is kept when
// both sides agree; otherwise the first non-empty one wins. The timestamp is
// the later of the two.
func (u Usage) Add(other Usage) Usage {
	out := Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
		Model:            u.Model,
		Timestamp:        u.Timestamp,
		CostUSD:          u.CostUSD + other.CostUSD,
	}
	if out.Model == "" {
		out.Model = other.Model
	}
	if other.Timestamp.After(out.Timestamp) {
		out.Timestamp = other.Timestamp
	}
	return out
}

// Sum aggregates the non-nil usages. It returns nil when there is nothing to sum.
func Sum(usages ...*Usage) *Usage {
	var total *Usage
	for _, u := range usages {
		if u == nil {
			continue
		}
		if total == nil {
			cp := *u
			total = &cp
			continue
		}
		sum := total.Add(*u)
		total = &sum
	}
	return total
}
