package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/promptforge/pkg/adapter"
	"github.com/zen-systems/promptforge/pkg/models"
	"github.com/zen-systems/promptforge/pkg/tokens"
)

var testModel = models.ModelConfig{
	Key:         "fast",
	ModelID:     "llama-3.1-8b-instant",
	Provider:    "mock",
	MaxTokens:   256,
	Temperature: 0.5,
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastRetry(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, BaseBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond}
}

type fixedCounter map[string]int

func (c fixedCounter) Count(text string) int { return c[text] }

func TestCompleteSuccessTracksUsage(t *testing.T) {
	mock := adapter.NewMockAdapter(adapter.WithResponder(func(req adapter.Request) (string, error) {
		return "  answer \n", nil
	}))
	tracker := tokens.NewTracker(tokens.WithCounter(fixedCounter{
		"sys\n\nuser": 100,
		"answer":      50,
	}))
	c := NewCaller(map[string]adapter.Adapter{"mock": mock}, tracker, WithLogger(quietLogger()))

	text, usage := c.Complete(context.Background(), testModel, "sys", "user")
	assert.Equal(t, "answer", text)
	require.NotNil(t, usage)
	assert.Equal(t, 100, usage.PromptTokens)
	assert.Equal(t, 50, usage.CompletionTokens)
	assert.Equal(t, 150, usage.TotalTokens)
	assert.Equal(t, "llama-3.1-8b-instant", usage.Model)
	assert.InDelta(t, 100*0.05/1e6+50*0.08/1e6, usage.CostUSD, 1e-15)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "llama-3.1-8b-instant", calls[0].Model)
	assert.Equal(t, "sys", calls[0].System)
	assert.Equal(t, "user", calls[0].Prompt)
	assert.Equal(t, 256, calls[0].MaxTokens)
	assert.InDelta(t, 0.5, calls[0].Temperature, 1e-9)
}

func TestCompletePrefersReportedUsage(t *testing.T) {
	mock := adapter.NewMockAdapter()
	mock.Usage = &adapter.Usage{PromptTokens: 7, CompletionTokens: 3}
	c := NewCaller(map[string]adapter.Adapter{"mock": mock}, nil, WithLogger(quietLogger()))

	_, usage := c.Complete(context.Background(), testModel, "sys", "user")
	require.NotNil(t, usage)
	assert.Equal(t, 7, usage.PromptTokens)
	assert.Equal(t, 3, usage.CompletionTokens)
	assert.Equal(t, 10, usage.TotalTokens)
}

func TestCompleteRetriesTransientFailures(t *testing.T) {
	var attempts atomic.Int32
	mock := adapter.NewMockAdapter(adapter.WithResponder(func(req adapter.Request) (string, error) {
		if attempts.Add(1) < 3 {
			return "", &adapter.AdapterError{Adapter: "mock", Status: 503}
		}
		return "ok", nil
	}))
	c := NewCaller(map[string]adapter.Adapter{"mock": mock}, nil, WithRetry(fastRetry(3)), WithLogger(quietLogger()))

	text, usage := c.Complete(context.Background(), testModel, "s", "u")
	assert.Equal(t, "ok", text)
	assert.NotNil(t, usage)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestCompleteExhaustedReturnsErrorText(t *testing.T) {
	mock := adapter.NewMockAdapter(adapter.WithResponder(func(req adapter.Request) (string, error) {
		return "", errors.New("connection reset")
	}))
	c := NewCaller(map[string]adapter.Adapter{"mock": mock}, nil, WithRetry(fastRetry(3)), WithLogger(quietLogger()))

	text, usage := c.Complete(context.Background(), testModel, "s", "u")
	assert.Equal(t, "[Error: connection reset]", text)
	assert.True(t, IsErrorText(text))
	assert.Nil(t, usage)
	assert.Len(t, mock.Calls(), 3)
}

func TestCompletePermanentErrorStopsEarly(t *testing.T) {
	mock := adapter.NewMockAdapter(adapter.WithResponder(func(req adapter.Request) (string, error) {
		return "", &adapter.AdapterError{Adapter: "mock", Status: 401, Err: errors.New("bad key")}
	}))
	c := NewCaller(map[string]adapter.Adapter{"mock": mock}, nil, WithRetry(fastRetry(3)), WithLogger(quietLogger()))

	text, usage := c.Complete(context.Background(), testModel, "s", "u")
	assert.True(t, IsErrorText(text))
	assert.Contains(t, text, "bad key")
	assert.Nil(t, usage)
	assert.Len(t, mock.Calls(), 1)
}

func TestCompleteUnknownProvider(t *testing.T) {
	c := NewCaller(map[string]adapter.Adapter{}, nil, WithLogger(quietLogger()))

	text, usage := c.Complete(context.Background(), testModel, "s", "u")
	assert.True(t, IsErrorText(text))
	assert.Contains(t, text, `"mock"`)
	assert.Nil(t, usage)
}

func TestCompleteCancelledDuringBackoff(t *testing.T) {
	mock := adapter.NewMockAdapter(adapter.WithResponder(func(req adapter.Request) (string, error) {
		return "", &adapter.AdapterError{Status: 500}
	}))
	c := NewCaller(map[string]adapter.Adapter{"mock": mock}, nil,
		WithRetry(RetryPolicy{MaxAttempts: 5, BaseBackoff: time.Hour, MaxBackoff: time.Hour}),
		WithLogger(quietLogger()),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	text, usage := c.Complete(ctx, testModel, "s", "u")
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, IsErrorText(text))
	assert.Contains(t, text, context.DeadlineExceeded.Error())
	assert.Nil(t, usage)
	assert.Len(t, mock.Calls(), 1)
}

func TestCompleteCachedResponseIsFree(t *testing.T) {
	mock := adapter.NewMockAdapter()
	cache, err := adapter.NewCachingAdapter(mock, 1<<20, time.Minute)
	require.NoError(t, err)
	defer cache.Close()

	c := NewCaller(map[string]adapter.Adapter{"mock": cache}, nil, WithLogger(quietLogger()))

	_, first := c.Complete(context.Background(), testModel, "s", "u")
	require.NotNil(t, first)
	assert.Greater(t, first.CostUSD, 0.0)

	_, second := c.Complete(context.Background(), testModel, "s", "u")
	require.NotNil(t, second)
	assert.Zero(t, second.CostUSD)
	assert.Equal(t, first.TotalTokens, second.TotalTokens)
	assert.Len(t, mock.Calls(), 1)
}

func TestComputeBackoff(t *testing.T) {
	base, maxBackoff := time.Second, 8*time.Second
	assert.Equal(t, time.Second, computeBackoff(base, maxBackoff, 0))
	assert.Equal(t, 2*time.Second, computeBackoff(base, maxBackoff, 1))
	assert.Equal(t, 4*time.Second, computeBackoff(base, maxBackoff, 2))
	assert.Equal(t, 8*time.Second, computeBackoff(base, maxBackoff, 3))
	assert.Equal(t, 8*time.Second, computeBackoff(base, maxBackoff, 10))
}

func TestErrorText(t *testing.T) {
	assert.Equal(t, "[Error: boom]", ErrorText(errors.New("boom")))
	assert.True(t, IsErrorText(ErrorText(nil)))
	assert.False(t, IsErrorText(`{"score": 7}`))
}

func TestCompareExecutions(t *testing.T) {
	mock := adapter.NewMockAdapter(adapter.WithResponder(func(req adapter.Request) (string, error) {
		if req.Prompt == "improved" {
			return "long structured answer", nil
		}
		return "short", nil
	}))
	tracker := tokens.NewTracker(
		tokens.WithCounter(fixedCounter{
			"original":               10,
			"short":                  20,
			"improved":               30,
			"long structured answer": 40,
		}),
		tokens.WithPricing(tokens.PricingTable{testModel.ModelID: {InputPerMillion: 1, OutputPerMillion: 1}}),
	)
	c := NewCaller(map[string]adapter.Adapter{"mock": mock}, tracker, WithLogger(quietLogger()))

	m, err := c.CompareExecutions(context.Background(), testModel, "original", "improved", Overhead{Tokens: 500, CostUSD: 0.001})
	require.NoError(t, err)
	assert.Equal(t, 30, m.OriginalTotalTokens)
	assert.Equal(t, 70, m.ImprovedTotalTokens)
	assert.Equal(t, 500, m.ImprovementProcessTokens)
	assert.Equal(t, 30+70+500, m.TotalTokensUsed)
	assert.Equal(t, 20, m.TokenDifference)
	assert.InDelta(t, 100.0, m.TokenEfficiencyPercent, 1e-9)
	assert.InDelta(t, 0.001+100/1e6, m.TotalCostUSD, 1e-12)

	calls := mock.Calls()
	require.Len(t, calls, 2)
	assert.Empty(t, calls[0].System)
	assert.Equal(t, "original", calls[0].Prompt)
	assert.Equal(t, "improved", calls[1].Prompt)
}

func TestCompareExecutionsFailsOnErrorText(t *testing.T) {
	mock := adapter.NewMockAdapter(adapter.WithResponder(func(req adapter.Request) (string, error) {
		return "", &adapter.AdapterError{Status: 401, Err: errors.New("bad key")}
	}))
	c := NewCaller(map[string]adapter.Adapter{"mock": mock}, nil, WithLogger(quietLogger()))

	_, err := c.CompareExecutions(context.Background(), testModel, "original", "improved", Overhead{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execute original prompt")
	assert.Contains(t, err.Error(), "bad key")
}
