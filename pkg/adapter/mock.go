package adapter

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Responder produces the content of a mock completion.
type Responder func(req Request) (string, error)

// MockAdapter returns deterministic responses for local runs and tests.
type MockAdapter struct {
	name      string
	responder Responder
	latency   time.Duration
	Usage     *Usage

	mu    sync.Mutex
	calls []Request
}

// MockOption configures a MockAdapter.
type MockOption func(*MockAdapter)

// WithResponder sets the function that produces completions.
func WithResponder(fn Responder) MockOption {
	return func(a *MockAdapter) { a.responder = fn }
}

// WithLatency delays every completion, honouring context cancellation.
func WithLatency(d time.Duration) MockOption {
	return func(a *MockAdapter) { a.latency = d }
}

// WithMockName overrides the adapter identifier.
func WithMockName(name string) MockOption {
	return func(a *MockAdapter) { a.name = name }
}

// NewMockAdapter creates a mock adapter that echoes the prompt by default.
func NewMockAdapter(opts ...MockOption) *MockAdapter {
	a := &MockAdapter{
		name: "mock",
		responder: func(req Request) (string, error) {
			return fmt.Sprintf("mock response:\n%s", req.Prompt), nil
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the adapter identifier.
func (a *MockAdapter) Name() string {
	return a.name
}

// Complete records the request and returns the responder's output.
func (a *MockAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	a.mu.Lock()
	a.calls = append(a.calls, req)
	a.mu.Unlock()

	if a.latency > 0 {
		timer := time.NewTimer(a.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	content, err := a.responder(req)
	if err != nil {
		return nil, err
	}
	return &Response{Content: content, Adapter: a.name, Model: req.Model, Usage: NormalizeUsage(a.Usage)}, nil
}

// Calls returns a copy of the requests received so far.
func (a *MockAdapter) Calls() []Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Request, len(a.calls))
	copy(out, a.calls)
	return out
}
