package adapter

import "context"

// Adapter is the language-model completion capability. Implementations must
// be safe to call again after a failure: callers retry.
type Adapter interface {
	// Complete sends a system instruction and a user message to the model.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Name returns the adapter's identifier.
	Name() string
}
