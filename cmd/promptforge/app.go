package main

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/zen-systems/promptforge/pkg/adapter"
	"github.com/zen-systems/promptforge/pkg/agent"
	"github.com/zen-systems/promptforge/pkg/config"
	"github.com/zen-systems/promptforge/pkg/llm"
	"github.com/zen-systems/promptforge/pkg/models"
	"github.com/zen-systems/promptforge/pkg/tokens"
)

// app is the composition root shared by the commands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	models  *models.Registry
	caller  *llm.Caller
	agents  *agent.Registry
	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, mock bool) (*app, error) {
	reg, err := cfg.Settings.ModelRegistry()
	if err != nil {
		return nil, err
	}

	rt := &app{cfg: cfg, logger: logger, models: reg}

	if _, err := tokens.DefaultCounter(); err != nil {
		logger.Warn("tokenizer unavailable, estimating token counts", "error", err)
	}

	adapters, err := rt.createAdapters(ctx, mock)
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.caller = llm.NewCaller(adapters, cfg.Settings.Tracker(),
		llm.WithRetry(cfg.Settings.RetryPolicy()),
		llm.WithLogger(logger),
	)
	rt.agents = agent.NewDefaultRegistry(reg, rt.caller, logger)
	return rt, nil
}

// createAdapters builds one adapter per provider that has a key. With mock
// set, every provider used by the model catalogue is served offline; the
// offline adapter is never registered otherwise.
func (rt *app) createAdapters(ctx context.Context, mock bool) (map[string]adapter.Adapter, error) {
	adapters := make(map[string]adapter.Adapter)

	if mock {
		offline := adapter.NewMockAdapter(adapter.WithResponder(offlineResponder))
		for _, p := range rt.providers() {
			adapters[p] = offline
		}
		adapters["mock"] = offline
		return rt.wrapCache(adapters)
	}

	if key := rt.cfg.GroqAPIKey; key != "" {
		a, err := adapter.NewGroqAdapter(key)
		if err != nil {
			return nil, fmt.Errorf("failed to create groq adapter: %w", err)
		}
		adapters["groq"] = a
	}

	if key := rt.cfg.OpenAIAPIKey; key != "" {
		a, err := adapter.NewOpenAIAdapter(key)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai adapter: %w", err)
		}
		adapters["openai"] = a
	}

	if key := rt.cfg.AnthropicAPIKey; key != "" {
		a, err := adapter.NewAnthropicAdapter(key)
		if err != nil {
			return nil, fmt.Errorf("failed to create anthropic adapter: %w", err)
		}
		adapters["anthropic"] = a
	}

	if key := rt.cfg.GoogleAPIKey; key != "" {
		a, err := adapter.NewGoogleAdapter(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to create google adapter: %w", err)
		}
		adapters["google"] = a
	}

	for _, p := range rt.providers() {
		if _, ok := adapters[p]; !ok {
			rt.logger.Warn("no API key for provider; its agents will fall back", "provider", p)
		}
	}
	return rt.wrapCache(adapters)
}

func (rt *app) wrapCache(adapters map[string]adapter.Adapter) (map[string]adapter.Adapter, error) {
	cache := rt.cfg.Settings.Cache
	if !cache.Enabled {
		return adapters, nil
	}

	// Providers sharing one adapter share one cache.
	wrapped := make(map[adapter.Adapter]adapter.Adapter)
	out := make(map[string]adapter.Adapter, len(adapters))
	for name, a := range adapters {
		if c, ok := wrapped[a]; ok {
			out[name] = c
			continue
		}
		c, err := adapter.NewCachingAdapter(a, cache.MaxBytes, rt.cfg.Settings.CacheTTL())
		if err != nil {
			return nil, fmt.Errorf("failed to create completion cache: %w", err)
		}
		rt.closers = append(rt.closers, c.Close)
		wrapped[a] = c
		out[name] = c
	}
	return out, nil
}

// providers returns the providers referenced by the model catalogue.
func (rt *app) providers() []string {
	seen := map[string]bool{}
	for _, m := range rt.models.All() {
		seen[m.Provider] = true
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (rt *app) Close() {
	for _, c := range rt.closers {
		c()
	}
}
