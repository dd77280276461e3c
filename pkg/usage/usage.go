// Package usage persists per-agent token usage so spend can be reported
// across coordination rounds.
package usage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zen-systems/promptforge/pkg/coordinator"
)

// OperationCoordinate labels usage recorded for a coordination round.
const OperationCoordinate = "coordinate"

// Record is one agent's token usage within one decision.
type Record struct {
	ID               string    `json:"id"`
	DecisionID       string    `json:"decision_id"`
	AgentName        string    `json:"agent_name"`
	Operation        string    `json:"operation"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	CostUSD          float64   `json:"cost_usd"`
	CreatedAt        time.Time `json:"created_at"`
}

// ModelSummary aggregates the records of one model.
type ModelSummary struct {
	Model            string  `json:"model"`
	Runs             int     `json:"runs"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	CostUSD          float64 `json:"cost_usd"`
}

// Sink receives usage records.
type Sink interface {
	Record(ctx context.Context, rec Record) error
}

// RecordDecision writes one record per agent that reported usage.
func RecordDecision(ctx context.Context, sink Sink, d *coordinator.Decision) (int, error) {
	written := 0
	for _, r := range d.AgentResults {
		if r.TokenUsage == nil {
			continue
		}
		u := r.TokenUsage
		rec := Record{
			ID:               uuid.NewString(),
			DecisionID:       d.ID,
			AgentName:        r.AgentName,
			Operation:        OperationCoordinate,
			Model:            u.Model,
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
			CostUSD:          u.CostUSD,
			CreatedAt:        d.CreatedAt,
		}
		if err := sink.Record(ctx, rec); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// MemorySink keeps records in memory.
type MemorySink struct {
	mu      sync.Mutex
	records []Record
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Record stores rec.
func (m *MemorySink) Record(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

// Records returns a copy of the stored records.
func (m *MemorySink) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.records...)
}

// Summary aggregates the stored records per model, sorted by model.
func (m *MemorySink) Summary(_ context.Context) ([]ModelSummary, error) {
	byModel := map[string]*ModelSummary{}
	for _, rec := range m.Records() {
		s, ok := byModel[rec.Model]
		if !ok {
			s = &ModelSummary{Model: rec.Model}
			byModel[rec.Model] = s
		}
		s.Runs++
		s.PromptTokens += rec.PromptTokens
		s.CompletionTokens += rec.CompletionTokens
		s.TotalTokens += rec.TotalTokens
		s.CostUSD += rec.CostUSD
	}

	out := make([]ModelSummary, 0, len(byModel))
	for _, s := range byModel {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out, nil
}
