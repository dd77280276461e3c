package tokens

import "time"

// DefaultPricingModel is the pricing entry used for models missing from the table.
const DefaultPricingModel = "llama-3.3-70b-versatile"

// Pricing holds USD prices per million tokens.
type Pricing struct {
	InputPerMillion  float64 `json:"input_per_million" yaml:"input_per_million"`
	OutputPerMillion float64 `json:"output_per_million" yaml:"output_per_million"`
}

// PricingTable maps a model identifier to its pricing.
type PricingTable map[string]Pricing

// DefaultPricing returns published Groq on-demand prices.
func DefaultPricing() PricingTable {
	return PricingTable{
		"llama-3.3-70b-versatile": {InputPerMillion: 0.59, OutputPerMillion: 0.79},
		"llama-3.1-8b-instant":    {InputPerMillion: 0.05, OutputPerMillion: 0.08},
		"gemma2-9b-it":            {InputPerMillion: 0.20, OutputPerMillion: 0.20},
		"mixtral-8x7b-32768":      {InputPerMillion: 0.24, OutputPerMillion: 0.24},
	}
}

// Tracker turns completion calls into Usage records. It holds no state
// besides its counter, pricing and clock, so it is safe for concurrent use.
type Tracker struct {
	counter      Counter
	pricing      PricingTable
	defaultModel string
	now          func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithCounter replaces the token counter.
func WithCounter(c Counter) Option {
	return func(t *Tracker) {
		if c != nil {
			t.counter = c
		}
	}
}

// WithPricing merges entries into the pricing table.
func WithPricing(p PricingTable) Option {
	return func(t *Tracker) {
		for model, price := range p {
			t.pricing[model] = price
		}
	}
}

// WithDefaultModel sets the model whose pricing applies to unknown models.
func WithDefaultModel(model string) Option {
	return func(t *Tracker) {
		if model != "" {
			t.defaultModel = model
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTracker creates a tracker with the default counter and pricing. The
// default counter is cl100k_base, or the character estimate when that
// encoding is unavailable.
func NewTracker(opts ...Option) *Tracker {
	counter, _ := DefaultCounter()
	t := &Tracker{
		counter:      counter,
		pricing:      DefaultPricing(),
		defaultModel: DefaultPricingModel,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// CountTokens returns the token count of text.
func (t *Tracker) CountTokens(text string) int {
	return t.counter.Count(text)
}

// PricingFor returns the pricing for model, falling back to the default model.
func (t *Tracker) PricingFor(model string) Pricing {
	if p, ok := t.pricing[model]; ok {
		return p
	}
	return t.pricing[t.defaultModel]
}

// CalculateCost returns the USD cost of a call.
func (t *Tracker) CalculateCost(promptTokens, completionTokens int, model string) float64 {
	p := t.PricingFor(model)
	return float64(promptTokens)*p.InputPerMillion/1_000_000 +
		float64(completionTokens)*p.OutputPerMillion/1_000_000
}

// TrackLLMCall tokenizes the prompt and completion and prices the call.
func (t *Tracker) TrackLLMCall(prompt, completion, model string) Usage {
	return t.TrackCounts(t.CountTokens(prompt), t.CountTokens(completion), model)
}

// TrackCounts prices a call whose token counts are already known, e.g.
// because the provider reported them.
func (t *Tracker) TrackCounts(promptTokens, completionTokens int, model string) Usage {
	return Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		Model:            model,
		Timestamp:        t.now(),
		CostUSD:          t.CalculateCost(promptTokens, completionTokens, model),
	}
}
