package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"modelrelay/internal/core"
	"modelrelay/internal/metrics"
)

// DefaultProvider is the process-wide fallback when neither the request nor
// the configuration names a provider.
const DefaultProvider = "gemini"

// Router picks exactly one adapter per request and forwards the call,
// returning the adapter's result unchanged. No fan-out, no merging.
type Router struct {
	registry        *Registry
	defaultProvider string
}

// NewRouter creates a router over the given registry. defaultProvider may be
// empty, in which case DefaultProvider applies.
func NewRouter(registry *Registry, defaultProvider string) (*Router, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	return &Router{
		registry:        registry,
		defaultProvider: strings.ToLower(strings.TrimSpace(defaultProvider)),
	}, nil
}

// Resolve maps an optional provider selector to an adapter. An empty
// selector falls back to the configured default, then to DefaultProvider.
// An unrecognized non-empty selector is a validation error.
func (r *Router) Resolve(selector string) (core.Adapter, error) {
	name := strings.ToLower(strings.TrimSpace(selector))
	if name == "" {
		name = r.defaultProvider
	}
	if name == "" {
		name = DefaultProvider
	}
	adapter := r.registry.Get(name)
	if adapter == nil {
		return nil, core.NewValidationError("unsupported provider: "+name, nil)
	}
	return adapter, nil
}

// Chat forwards a conversational turn to the selected adapter.
func (r *Router) Chat(ctx context.Context, selector string, req *core.ConversationRequest) (*core.ProviderResult, error) {
	adapter, err := r.Resolve(selector)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	result, err := adapter.Chat(ctx, req)
	metrics.ObserveRequest(adapter.Name(), "chat", start, err)
	return result, err
}

// Generate forwards a single-shot generation call to the selected adapter.
func (r *Router) Generate(ctx context.Context, selector, prompt string, opts core.GenerateOptions) (*core.ProviderResult, error) {
	adapter, err := r.Resolve(selector)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	result, err := adapter.Generate(ctx, prompt, opts)
	metrics.ObserveRequest(adapter.Name(), "generate", start, err)
	return result, err
}

// GenerateMultimodal forwards a mixed-content generation call to the
// selected adapter.
func (r *Router) GenerateMultimodal(ctx context.Context, selector string, parts []core.ContentPart, opts core.GenerateOptions) (*core.ProviderResult, error) {
	adapter, err := r.Resolve(selector)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	result, err := adapter.GenerateMultimodal(ctx, parts, opts)
	metrics.ObserveRequest(adapter.Name(), "generate_multimodal", start, err)
	return result, err
}

// Models aggregates model listings across all registered adapters. A
// provider that fails to list is skipped rather than failing the whole
// response; a gateway with one reachable backend should still report it.
func (r *Router) Models(ctx context.Context) (*core.ModelsResponse, error) {
	var models []core.Model
	for _, adapter := range r.registry.Adapters() {
		list, err := adapter.Models(ctx)
		if err != nil {
			continue
		}
		models = append(models, list...)
	}
	return &core.ModelsResponse{
		Object: "list",
		Data:   models,
	}, nil
}
