// Package llm is the shared completion helper every agent goes through: it
// routes a request to the adapter serving the model, retries with
// exponential backoff, and records token usage for successful calls.
//
// Complete never returns an error. When every attempt fails it returns an
// error-tagged placeholder text (see ErrorText) so callers can still build a
// degraded result instead of aborting.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zen-systems/promptforge/pkg/adapter"
	"github.com/zen-systems/promptforge/pkg/models"
	"github.com/zen-systems/promptforge/pkg/tokens"
)

const errorPrefix = "[Error: "

// RetryPolicy bounds the attempts made for a single completion.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryPolicy waits 1s then 2s between three attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseBackoff: time.Second, MaxBackoff: 8 * time.Second}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.MaxBackoff < p.BaseBackoff {
		p.MaxBackoff = p.BaseBackoff
	}
	return p
}

// Caller performs completions against a set of adapters keyed by provider name.
type Caller struct {
	adapters map[string]adapter.Adapter
	tracker  *tokens.Tracker
	retry    RetryPolicy
	logger   *slog.Logger
}

// Option configures a Caller.
type Option func(*Caller)

// WithRetry sets the retry policy.
func WithRetry(p RetryPolicy) Option {
	return func(c *Caller) { c.retry = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Caller) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCaller creates a Caller. A nil tracker gets a default one.
func NewCaller(adapters map[string]adapter.Adapter, tracker *tokens.Tracker, opts ...Option) *Caller {
	if tracker == nil {
		tracker = tokens.NewTracker()
	}
	c := &Caller{
		adapters: adapters,
		tracker:  tracker,
		retry:    DefaultRetryPolicy(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.retry = c.retry.normalized()
	return c
}

// Tracker returns the tracker used to price calls.
func (c *Caller) Tracker() *tokens.Tracker {
	return c.tracker
}

// Complete sends system and user to the model's provider. It returns the
// trimmed completion and its usage, or ErrorText and nil usage when every
// attempt failed.
func (c *Caller) Complete(ctx context.Context, model models.ModelConfig, system, user string) (string, *tokens.Usage) {
	a, ok := c.adapters[model.Provider]
	if !ok {
		err := fmt.Errorf("adapter %q not configured for model %s", model.Provider, model.ModelID)
		c.logger.Error("llm call failed", "model", model.ModelID, "provider", model.Provider, "error", err)
		return ErrorText(err), nil
	}

	req := adapter.Request{
		Model:       model.ModelID,
		System:      system,
		Prompt:      user,
		Temperature: model.Temperature,
		MaxTokens:   model.MaxTokens,
	}

	var lastErr error
	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		start := time.Now()
		resp, err := a.Complete(ctx, req)
		duration := time.Since(start)

		if err == nil {
			text := strings.TrimSpace(resp.Content)
			usage := c.track(resp, system+"\n\n"+user, text, model.ModelID)
			c.logger.Info("llm call completed",
				"provider", a.Name(),
				"model", model.ModelID,
				"attempt", attempt+1,
				"tokens", usage.TotalTokens,
				"cost_usd", usage.CostUSD,
				"cached", resp.Cached,
				"duration", duration,
			)
			return text, &usage
		}

		lastErr = err
		last := attempt == c.retry.MaxAttempts-1
		if last || adapter.IsPermanent(err) || ctx.Err() != nil {
			break
		}

		backoff := computeBackoff(c.retry.BaseBackoff, c.retry.MaxBackoff, attempt)
		c.logger.Warn("llm call failed, retrying",
			"provider", a.Name(),
			"model", model.ModelID,
			"attempt", attempt+1,
			"backoff", backoff,
			"error", err,
		)
		if err := sleepWithContext(ctx, backoff); err != nil {
			lastErr = err
			break
		}
	}

	c.logger.Error("llm call failed",
		"provider", a.Name(),
		"model", model.ModelID,
		"max_attempts", c.retry.MaxAttempts,
		"error", lastErr,
	)
	return ErrorText(lastErr), nil
}

func (c *Caller) track(resp *adapter.Response, prompt, completion, modelID string) tokens.Usage {
	var usage tokens.Usage
	if reported := adapter.NormalizeUsage(resp.Usage); reported != nil {
		usage = c.tracker.TrackCounts(reported.PromptTokens, reported.CompletionTokens, modelID)
	} else {
		usage = c.tracker.TrackLLMCall(prompt, completion, modelID)
	}
	if resp.Cached {
		usage.CostUSD = 0
	}
	return usage
}

// ErrorText renders err as the placeholder returned by a failed completion.
func ErrorText(err error) string {
	if err == nil {
		return errorPrefix + "Unable to generate response]"
	}
	return errorPrefix + err.Error() + "]"
}

// IsErrorText reports whether text is a failed-completion placeholder.
func IsErrorText(text string) bool {
	return strings.HasPrefix(text, errorPrefix)
}

func computeBackoff(base, maxBackoff time.Duration, attempt int) time.Duration {
	backoff := base
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if backoff >= maxBackoff {
			return maxBackoff
		}
	}
	if backoff > maxBackoff {
		return maxBackoff
	}
	return backoff
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
