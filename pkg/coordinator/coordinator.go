// Package coordinator runs a set of agents concurrently on one prompt and
// merges their proposals by weighted vote.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/zen-systems/promptforge/pkg/agent"
	"github.com/zen-systems/promptforge/pkg/tokens"
)

// DefaultTimeout bounds a coordination round when no timeout is configured.
const DefaultTimeout = 120 * time.Second

// Metadata keys set on fallback results.
const (
	MetaTimedOut  = "timed_out"
	MetaCancelled = "cancelled"
	MetaPanicked  = "panicked"
)

var (
	// ErrNoAgents is returned when a coordinator has nothing to run.
	ErrNoAgents = errors.New("coordinator has no agents")
	// ErrEmptyPrompt is returned for blank prompts.
	ErrEmptyPrompt = errors.New("prompt is empty")
)

// Coordinator fans a prompt out to its agents and picks a winner.
// Weights may be updated while Coordinate runs; each round reads one snapshot.
type Coordinator struct {
	agents  []agent.Agent
	weights atomic.Pointer[map[string]float64]
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithWeights sets the initial agent weights. Agents without a weight count 1.0.
func WithWeights(w map[string]float64) Option {
	return func(c *Coordinator) {
		snapshot := make(map[string]float64, len(w))
		for name, v := range w {
			snapshot[name] = v
		}
		c.weights.Store(&snapshot)
	}
}

// WithTimeout bounds each coordination round. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides the decision timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a coordinator over agents. Weights passed with WithWeights are
// validated like UpdateWeights.
func New(agents []agent.Agent, opts ...Option) (*Coordinator, error) {
	if len(agents) == 0 {
		return nil, ErrNoAgents
	}
	c := &Coordinator{
		agents:  append([]agent.Agent(nil), agents...),
		timeout: DefaultTimeout,
		logger:  slog.Default(),
		now:     time.Now,
	}
	empty := map[string]float64{}
	c.weights.Store(&empty)
	for _, opt := range opts {
		opt(c)
	}
	if err := validateWeights(*c.weights.Load()); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(c.agents))
	for _, a := range c.agents {
		if seen[a.Name()] {
			return nil, fmt.Errorf("duplicate agent %q", a.Name())
		}
		seen[a.Name()] = true
	}
	return c, nil
}

// NewFromRegistry creates the named agents, or the registry defaults when
// names is empty.
func NewFromRegistry(reg *agent.Registry, names []string, opts ...Option) (*Coordinator, error) {
	var agents []agent.Agent
	if len(names) == 0 {
		agents = reg.CreateDefault()
	} else {
		for _, name := range names {
			a, err := reg.Create(name)
			if err != nil {
				return nil, err
			}
			agents = append(agents, a)
		}
	}
	return New(agents, opts...)
}

// AgentNames returns the names of the coordinated agents in configured order.
func (c *Coordinator) AgentNames() []string {
	names := make([]string, len(c.agents))
	for i, a := range c.agents {
		names[i] = a.Name()
	}
	return names
}

// Weights returns a copy of the current weights.
func (c *Coordinator) Weights() map[string]float64 {
	current := *c.weights.Load()
	out := make(map[string]float64, len(current))
	for name, v := range current {
		out[name] = v
	}
	return out
}

// UpdateWeights merges w into the current weights. Rounds already running
// keep the weights they started with.
func (c *Coordinator) UpdateWeights(w map[string]float64) error {
	if err := validateWeights(w); err != nil {
		return err
	}
	for {
		old := c.weights.Load()
		next := make(map[string]float64, len(*old)+len(w))
		for name, v := range *old {
			next[name] = v
		}
		for name, v := range w {
			next[name] = v
		}
		if c.weights.CompareAndSwap(old, &next) {
			c.logger.Info("agent weights updated", "weights", next)
			return nil
		}
	}
}

func validateWeights(w map[string]float64) error {
	for name, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("invalid weight for agent %s: %v", name, v)
		}
	}
	return nil
}

// Coordinate runs every agent on prompt and returns the merged decision.
// Agent failures never fail the round: a failed, panicking or late agent
// contributes a fallback result.
func (c *Coordinator) Coordinate(ctx context.Context, prompt string) (*Decision, error) {
	if len(c.agents) == 0 {
		return nil, ErrNoAgents
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	weights := *c.weights.Load()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	results := make([]agent.Result, len(c.agents))
	// Agents share ctx but not a group context: a failed agent settles
	// into a fallback result and never cancels its siblings, so the
	// closures always return nil.
	var g errgroup.Group
	for i, a := range c.agents {
		g.Go(func() error {
			results[i] = c.runAgent(ctx, a, prompt)
			return nil
		})
	}
	_ = g.Wait()

	d := c.decide(prompt, results, weights)
	c.logger.Info("coordination completed",
		"decision_id", d.ID,
		"selected_agent", d.SelectedAgent,
		"agents", len(results),
		"total_tokens", d.TotalTokens,
		"total_cost_usd", d.TotalCostUSD,
		"degraded", d.Degraded(),
		"duration", time.Since(start),
	)
	return d, nil
}

// runAgent runs a with panic recovery, giving up when ctx ends.
func (c *Coordinator) runAgent(ctx context.Context, a agent.Agent, prompt string) agent.Result {
	done := make(chan agent.Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("agent panicked", "agent", a.Name(), "panic", r)
				done <- agent.FallbackResult(a, prompt, MetaPanicked)
			}
		}()
		done <- a.Run(ctx, prompt)
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
	}

	select {
	case res := <-done:
		return res
	default:
	}
	reason := MetaCancelled
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		reason = MetaTimedOut
	}
	c.logger.Warn("agent did not finish", "agent", a.Name(), "reason", reason)
	return agent.FallbackResult(a, prompt, reason)
}

func (c *Coordinator) decide(prompt string, results []agent.Result, weights map[string]float64) *Decision {
	votes := make(map[string]float64, len(results))
	usage := make(map[string]tokens.Usage, len(results))
	var totalTokens int
	var totalCost float64

	winner := -1
	for i, r := range results {
		w, ok := weights[r.AgentName]
		if !ok {
			w = 1.0
		}
		score := r.Analysis.Score * r.Suggestions.Confidence * w
		votes[r.AgentName] = score

		if winner < 0 || score > votes[results[winner].AgentName] ||
			(score == votes[results[winner].AgentName] && r.AgentName < results[winner].AgentName) {
			winner = i
		}

		if r.TokenUsage != nil {
			usage[r.AgentName] = *r.TokenUsage
			totalTokens += r.TokenUsage.TotalTokens
			totalCost += r.TokenUsage.CostUSD
		}
	}

	best := results[winner]
	rationale := fmt.Sprintf("Selected %s (weighted score: %.2f). Analysis score: %.1f/10, Confidence: %.0f%%",
		best.AgentName, votes[best.AgentName], best.Analysis.Score, best.Suggestions.Confidence*100)

	return &Decision{
		ID:            uuid.NewString(),
		CreatedAt:     c.now(),
		FinalPrompt:   best.Suggestions.ImprovedPrompt,
		SelectedAgent: best.AgentName,
		Rationale:     rationale,
		AgentResults:  results,
		VoteBreakdown: votes,
		TokenUsage:    usage,
		TotalTokens:   totalTokens,
		TotalCostUSD:  totalCost,
	}
}
