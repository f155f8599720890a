package agent

import (
	"context"
	"time"
)

// CachedProvider wraps a Provider and serves one-shot Chat responses from a
// Cache when an identical request was answered within the TTL. ChatLoop is
// never cached: tool-calling loops are side-effecting by nature.
type CachedProvider struct {
	Provider
	cache Cache
	ttl   time.Duration
}

// WithCache wraps provider so Chat consults cache first. ttl <= 0 uses the
// cache's own default.
func WithCache(provider Provider, cache Cache, ttl time.Duration) *CachedProvider {
	return &CachedProvider{Provider: provider, cache: cache, ttl: ttl}
}

// Chat returns the cached response as a single Content chunk plus Done when
// the key hits; otherwise it streams from the wrapped provider and stores
// the final content on Done.
func (c *CachedProvider) Chat(ctx context.Context, prompt string) (<-chan LoopStep, error) {
	cfg := c.Provider.Config()
	key := GenerateCacheKey(c.Provider.Model(), prompt, cfg.Temperature, cfg.SystemPrompt)

	if value, found, err := c.cache.Get(ctx, key); err == nil && found {
		out := make(chan LoopStep, 2)
		out <- ContentStep(value)
		out <- DoneStep(value, FinishReason{Kind: FinishStop}, TokenUsage{}, nil)
		close(out)
		return out, nil
	}

	inner, err := c.Provider.Chat(ctx, prompt)
	if err != nil {
		return nil, err
	}

	out := make(chan LoopStep, 8)
	go func() {
		defer close(out)
		for step := range inner {
			if step.Kind == StepDone && step.Content != "" {
				_ = c.cache.Set(ctx, key, step.Content, c.ttl)
			}
			out <- step
		}
	}()
	return out, nil
}
