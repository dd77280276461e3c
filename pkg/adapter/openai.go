package adapter

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// GroqBaseURL is Groq's OpenAI-compatible endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// OpenAIAdapter implements Adapter for OpenAI and any OpenAI-compatible API.
type OpenAIAdapter struct {
	name   string
	client openai.Client
}

// OpenAIOption configures an OpenAIAdapter.
type OpenAIOption func(*openAISettings)

type openAISettings struct {
	name    string
	baseURL string
	extra   []option.RequestOption
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) OpenAIOption {
	return func(s *openAISettings) { s.baseURL = url }
}

// WithName overrides the adapter identifier.
func WithName(name string) OpenAIOption {
	return func(s *openAISettings) { s.name = name }
}

// WithRequestOptions passes extra options to the SDK client.
func WithRequestOptions(opts ...option.RequestOption) OpenAIOption {
	return func(s *openAISettings) { s.extra = append(s.extra, opts...) }
}

// NewOpenAIAdapter creates a new OpenAI adapter.
func NewOpenAIAdapter(apiKey string, opts ...OpenAIOption) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	s := openAISettings{name: "openai"}
	for _, opt := range opts {
		opt(&s)
	}

	// Retries are owned by the caller.
	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if s.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(s.baseURL))
	}
	clientOpts = append(clientOpts, s.extra...)

	return &OpenAIAdapter{name: s.name, client: openai.NewClient(clientOpts...)}, nil
}

// NewGroqAdapter creates an adapter for Groq's OpenAI-compatible API.
func NewGroqAdapter(apiKey string, opts ...OpenAIOption) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("groq API key is required")
	}
	opts = append([]OpenAIOption{WithName("groq"), WithBaseURL(GroqBaseURL)}, opts...)
	return NewOpenAIAdapter(apiKey, opts...)
}

// Name returns the adapter identifier.
func (a *OpenAIAdapter) Name() string {
	return a.name
}

// Complete sends the request as a chat completion.
func (a *OpenAIAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, wrapStatus(a.name, apiErr.StatusCode, err)
		}
		return nil, fmt.Errorf("%s API error: %w", a.name, err)
	}

	if len(resp.Choices) == 0 {
		return nil, &AdapterError{Adapter: a.name, Temporary: true, Err: fmt.Errorf("no choices returned")}
	}

	return &Response{
		Content: resp.Choices[0].Message.Content,
		Adapter: a.name,
		Model:   req.Model,
		Usage: NormalizeUsage(&Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		}),
	}, nil
}
