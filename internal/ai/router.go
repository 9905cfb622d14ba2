package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Router tries registered providers in order until one succeeds.
// Completion providers and embedders are tracked separately because not
// every provider exposes an embeddings endpoint.
type Router struct {
	providers map[string]Provider
	fallback  []string // ordered fallback chain
	embedders []namedEmbedder
	mu        sync.RWMutex
}

type namedEmbedder struct {
	name     string
	embedder Embedder
}

// NewRouter creates a new AI router.
func NewRouter() *Router {
	return &Router{
		providers: make(map[string]Provider),
	}
}

// Register adds a completion provider to the router.
func (r *Router) Register(name string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = provider
	r.fallback = append(r.fallback, name)
}

// RegisterEmbedder adds an embedding backend to the router.
func (r *Router) RegisterEmbedder(name string, embedder Embedder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embedders = append(r.embedders, namedEmbedder{name: name, embedder: embedder})
}

// Complete routes a request to the first provider that answers.
func (r *Router) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.fallback {
		provider := r.providers[name]

		resp, err := provider.Complete(ctx, req)
		if err != nil {
			slog.Warn("AI provider failed, trying next",
				"provider", name,
				"task", req.Task.String(),
				"error", err,
			)
			if ctx.Err() != nil {
				return CompletionResponse{}, ctx.Err()
			}
			continue
		}

		slog.Debug("AI request completed",
			"provider", name,
			"task", req.Task.String(),
			"model", resp.Model,
			"input_tokens", resp.InputTokens,
			"output_tokens", resp.OutputTokens,
		)
		return resp, nil
	}

	return CompletionResponse{}, fmt.Errorf("all AI providers failed")
}

// Embed returns the first successful embedding across registered embedders.
func (r *Router) Embed(ctx context.Context, text string) ([]float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.embedders) == 0 {
		return nil, errors.New("no embedding provider registered")
	}

	var errs []error
	for _, e := range r.embedders {
		vec, err := e.embedder.Embed(ctx, text)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.name, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		return vec, nil
	}
	return nil, fmt.Errorf("all embedding providers failed: %w", errors.Join(errs...))
}

// HasProvider returns true if at least one completion provider is registered.
func (r *Router) HasProvider() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers) > 0
}

// HasEmbedder returns true if at least one embedder is registered.
func (r *Router) HasEmbedder() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.embedders) > 0
}

// HealthCheck succeeds when any registered provider is reachable.
func (r *Router) HealthCheck(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.fallback) == 0 {
		return errors.New("no AI provider registered")
	}
	var errs []error
	for _, name := range r.fallback {
		if err := r.providers[name].HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		return nil
	}
	return errors.Join(errs...)
}
