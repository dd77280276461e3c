package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTransientAndPermanent(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
		permanent bool
	}{
		{name: "nil", err: nil},
		{name: "plain", err: errors.New("boom")},
		{name: "deadline", err: context.DeadlineExceeded, transient: true},
		{name: "canceled", err: context.Canceled, permanent: true},
		{name: "rate limit", err: &AdapterError{Status: 429}, transient: true},
		{name: "server", err: &AdapterError{Status: 503}, transient: true},
		{name: "bad request", err: &AdapterError{Status: 400}, permanent: true},
		{name: "unauthorized wrapped", err: fmt.Errorf("call: %w", &AdapterError{Status: 401}), permanent: true},
		{name: "temporary flag", err: &AdapterError{Status: 400, Temporary: true}, transient: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.transient, IsTransient(tt.err))
			assert.Equal(t, tt.permanent, IsPermanent(tt.err))
		})
	}
}

func TestNormalizeUsage(t *testing.T) {
	assert.Nil(t, NormalizeUsage(nil))
	assert.Nil(t, NormalizeUsage(&Usage{}))

	u := NormalizeUsage(&Usage{PromptTokens: 3, CompletionTokens: 4})
	require.NotNil(t, u)
	assert.Equal(t, 7, u.TotalTokens)
}

func TestMockAdapter(t *testing.T) {
	m := NewMockAdapter(WithResponder(func(req Request) (string, error) {
		if req.Prompt == "fail" {
			return "", errors.New("scripted failure")
		}
		return "echo:" + req.Prompt, nil
	}))
	m.Usage = &Usage{PromptTokens: 2, CompletionTokens: 1}

	resp, err := m.Complete(context.Background(), Request{Model: "mock-1", Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "echo:hi", resp.Content)
	assert.Equal(t, "mock", resp.Adapter)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 3, resp.Usage.TotalTokens)

	_, err = m.Complete(context.Background(), Request{Prompt: "fail"})
	require.Error(t, err)
	assert.Len(t, m.Calls(), 2)
}

func TestMockAdapterLatencyHonoursContext(t *testing.T) {
	m := NewMockAdapter(WithLatency(time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := m.Complete(ctx, Request{Prompt: "slow"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCachingAdapter(t *testing.T) {
	m := NewMockAdapter()
	c, err := NewCachingAdapter(m, 1<<20, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	req := Request{Model: "mock-1", System: "sys", Prompt: "hello", Temperature: 0.5, MaxTokens: 10}

	first, err := c.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := c.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Content, second.Content)
	assert.Len(t, m.Calls(), 1)

	req.Temperature = 0.9
	_, err = c.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, m.Calls(), 2, "different sampling parameters miss the cache")

	assert.Equal(t, "mock", c.Name())
}

func TestOpenAIAdapterComplete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "llama-3.1-8b-instant",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"score\": 7}"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15}
		}`))
	}))
	defer srv.Close()

	a, err := NewGroqAdapter("test-key", WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)
	assert.Equal(t, "groq", a.Name())

	resp, err := a.Complete(context.Background(), Request{
		Model:       "llama-3.1-8b-instant",
		System:      "be terse",
		Prompt:      "score this",
		Temperature: 0.5,
		MaxTokens:   128,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"score": 7}`, resp.Content)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 12, resp.Usage.PromptTokens)
	assert.Equal(t, 15, resp.Usage.TotalTokens)

	messages, ok := got["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])
	assert.InDelta(t, 0.5, got["temperature"], 1e-9)
}

func TestOpenAIAdapterStatusErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": {"message": "overloaded", "type": "server_error"}}`))
	}))
	defer srv.Close()

	a, err := NewOpenAIAdapter("test-key", WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)

	_, err = a.Complete(context.Background(), Request{Model: "gpt-4o-mini", Prompt: "hi"})
	require.Error(t, err)

	var adapterErr *AdapterError
	require.ErrorAs(t, err, &adapterErr)
	assert.Equal(t, http.StatusServiceUnavailable, adapterErr.Status)
	assert.True(t, IsTransient(err))
	assert.Equal(t, int32(1), hits.Load(), "SDK retries are disabled")
}

func TestConstructorsRequireKeys(t *testing.T) {
	_, err := NewOpenAIAdapter("")
	assert.Error(t, err)
	_, err = NewGroqAdapter("")
	assert.Error(t, err)
	_, err = NewAnthropicAdapter("")
	assert.Error(t, err)
	_, err = NewGoogleAdapter(context.Background(), "")
	assert.Error(t, err)
}
