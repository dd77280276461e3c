package coordinator

import (
	"time"

	"github.com/zen-systems/promptforge/pkg/agent"
	"github.com/zen-systems/promptforge/pkg/tokens"
)

// Decision is the merged outcome of one coordination round.
type Decision struct {
	ID            string                  `json:"id"`
	CreatedAt     time.Time               `json:"created_at"`
	FinalPrompt   string                  `json:"final_prompt"`
	SelectedAgent string                  `json:"selected_agent"`
	Rationale     string                  `json:"decision_rationale"`
	AgentResults  []agent.Result          `json:"agent_results"`
	VoteBreakdown map[string]float64      `json:"vote_breakdown"`
	TokenUsage    map[string]tokens.Usage `json:"token_usage"`
	TotalTokens   int                     `json:"total_tokens"`
	TotalCostUSD  float64                 `json:"total_cost_usd"`
}

// Degraded reports whether no agent produced a usable reply.
func (d *Decision) Degraded() bool {
	for _, r := range d.AgentResults {
		if !r.Failed() && r.TokenUsage != nil {
			return false
		}
	}
	return true
}

// Result returns the result reported by the named agent.
func (d *Decision) Result(name string) (agent.Result, bool) {
	for _, r := range d.AgentResults {
		if r.AgentName == name {
			return r, true
		}
	}
	return agent.Result{}, false
}
