package core

import "context"

// Adapter is the uniform operation set every backend provider exposes.
// Implementations own a lazily-initialized client handle, constructed once
// per process and never per-request.
type Adapter interface {
	// Name returns the provider identifier used for routing.
	Name() string

	// Generate performs single-shot generation from a plain text prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (*ProviderResult, error)

	// GenerateMultimodal performs generation seeded by mixed content parts.
	GenerateMultimodal(ctx context.Context, parts []ContentPart, opts GenerateOptions) (*ProviderResult, error)

	// Chat performs a full conversational turn, reconciling prompt, history
	// and system instructions internally.
	Chat(ctx context.Context, req *ConversationRequest) (*ProviderResult, error)

	// Models returns the models this provider currently serves.
	Models(ctx context.Context) ([]Model, error)
}

// AvailabilityChecker is an optional interface for adapters that can verify
// their backend is reachable.
type AvailabilityChecker interface {
	CheckAvailability(ctx context.Context) error
}

// Gateway is the routing surface consumed by the HTTP boundary: every
// operation takes an optional provider selector and is forwarded to exactly
// one adapter.
type Gateway interface {
	Chat(ctx context.Context, selector string, req *ConversationRequest) (*ProviderResult, error)
	Generate(ctx context.Context, selector, prompt string, opts GenerateOptions) (*ProviderResult, error)
	GenerateMultimodal(ctx context.Context, selector string, parts []ContentPart, opts GenerateOptions) (*ProviderResult, error)
	Models(ctx context.Context) (*ModelsResponse, error)
}
