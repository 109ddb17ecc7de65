package core

// Message roles accepted on the wire.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatMessage represents a single message in an inbound conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ConversationRequest is the unified chat request accepted by the gateway.
// At least one of Prompt or a non-blank user message must be present; this
// is enforced during reconciliation, before any adapter is called.
type ConversationRequest struct {
	Prompt            string        `json:"prompt,omitempty"`
	Messages          []ChatMessage `json:"messages,omitempty"`
	Model             string        `json:"model,omitempty"`
	SystemInstruction string        `json:"system_instruction,omitempty"`
	Provider          string        `json:"provider,omitempty"`
}

// TurnRole tags a reconciled conversation turn.
type TurnRole string

const (
	TurnUser  TurnRole = "user"
	TurnModel TurnRole = "model"
)

// Turn is one prior exchange in a reconciled conversation.
type Turn struct {
	Role    TurnRole
	Content string
}

// ReconciledConversation is the adapter-facing view of a chat request:
// system instructions folded into one string, prior turns in order, and the
// resolved next-turn prompt (always non-empty when reconciliation succeeds).
type ReconciledConversation struct {
	SystemInstruction string
	History           []Turn
	NextPrompt        string
}

// PartKind discriminates ContentPart variants.
type PartKind int

const (
	PartText PartKind = iota
	PartBinary
)

// ContentPart is a tagged union: either a text fragment or a binary
// attachment with a MIME type. Binary parts carry no implicit text meaning.
type ContentPart struct {
	Kind     PartKind
	Text     string
	MIMEType string
	Data     []byte
}

// TextPart builds a text ContentPart.
func TextPart(text string) ContentPart {
	return ContentPart{Kind: PartText, Text: text}
}

// BinaryPart builds a binary ContentPart.
func BinaryPart(mimeType string, data []byte) ContentPart {
	return ContentPart{Kind: PartBinary, MIMEType: mimeType, Data: data}
}

// GenerateOptions carries per-call overrides for single-shot generation.
type GenerateOptions struct {
	Model             string
	SystemInstruction string
}

// ProviderResult is the normalized outcome of a provider call. Text is nil
// when the provider responded successfully but no known extraction shape
// matched the response; that is not an error. Raw retains the provider
// response for diagnostics only and is never serialized to clients.
type ProviderResult struct {
	Model string  `json:"model"`
	Text  *string `json:"text,omitempty"`
	Raw   any     `json:"-"`
}

// Model represents one entry in a models listing.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
	Created int64  `json:"created"`
}

// ModelsResponse is the aggregated response from GET /v1/models.
type ModelsResponse struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}
