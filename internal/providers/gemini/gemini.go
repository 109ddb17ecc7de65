// Package gemini provides the Google Gemini adapter for the generation
// gateway. The Gemini client ecosystem is not strictly versioned across
// install states, so client acquisition probes an ordered list of surfaces:
// the google.golang.org/genai SDK first, then a raw REST generateContent
// client. The surface that succeeds is recorded as the adapter's mode for
// the remainder of the process lifetime.
package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
	"google.golang.org/genai"

	"modelrelay/internal/content"
	"modelrelay/internal/conversation"
	"modelrelay/internal/core"
	"modelrelay/internal/pkg/llmclient"
)

const (
	providerName       = "gemini"
	defaultRESTBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel       = "gemini-2.0-flash"
)

// clientMode is the SDK surface the adapter committed to after probing.
type clientMode int

const (
	modeUnresolved clientMode = iota
	modeSDK
	modeREST
)

func (m clientMode) String() string {
	switch m {
	case modeSDK:
		return "sdk"
	case modeREST:
		return "rest"
	default:
		return "unresolved"
	}
}

// Config holds the Gemini adapter configuration.
type Config struct {
	APIKey  string
	BaseURL string // REST surface base URL; defaults to the public endpoint
	Model   string // default model when the request names none
}

// Provider implements core.Adapter for Google Gemini.
type Provider struct {
	cfg        Config
	httpClient *http.Client

	// Client lifecycle: Uninitialized -> Ready(mode, handle) or
	// Uninitialized -> Failed(initErr), transitioned exactly once.
	once    sync.Once
	mode    clientMode
	sdk     *genai.Client
	rest    *llmclient.Client
	initErr error

	skipSDK bool
}

// New creates a Gemini adapter. The client handle is constructed lazily on
// first use, not here.
func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultRESTBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	return &Provider{cfg: cfg}
}

// NewWithHTTPClient creates an adapter pinned to the REST surface with a
// custom HTTP client. Used by tests and deployments that must route through
// a custom transport.
func NewWithHTTPClient(cfg Config, httpClient *http.Client) *Provider {
	p := New(cfg)
	p.httpClient = httpClient
	p.skipSDK = true
	return p
}

// Name returns the provider identifier used for routing.
func (p *Provider) Name() string {
	return providerName
}

// Mode reports the surface the adapter committed to, for logging and tests.
func (p *Provider) Mode() string {
	return p.mode.String()
}

// ensureClient runs the client probe sequence exactly once. Concurrent first
// use is safe: sync.Once guarantees a single transition, so mode can never
// disagree with the retained handle.
func (p *Provider) ensureClient(ctx context.Context) error {
	p.once.Do(func() {
		if strings.TrimSpace(p.cfg.APIKey) == "" {
			p.initErr = core.NewConfigurationError(providerName, "GEMINI_API_KEY is not set", nil)
			return
		}

		sdkErr := p.trySDK(ctx)

		// The REST client backs the models listing in both modes, and is the
		// generation surface when the SDK probe fails.
		rest, restErr := p.tryREST()
		p.rest = rest

		if p.mode == modeSDK {
			return
		}
		if restErr == nil {
			p.mode = modeREST
			return
		}
		p.initErr = core.NewConfigurationError(providerName,
			fmt.Sprintf("no usable Gemini client: sdk: %v; rest: %v", sdkErr, restErr), restErr)
	})
	return p.initErr
}

// trySDK probes the genai SDK surface. On success it commits modeSDK.
func (p *Provider) trySDK(ctx context.Context) error {
	if p.skipSDK {
		return fmt.Errorf("sdk surface disabled")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return err
	}
	if client == nil || client.Models == nil || client.Chats == nil {
		return fmt.Errorf("client constructed without the expected call surface")
	}
	p.sdk = client
	p.mode = modeSDK
	return nil
}

// tryREST probes the raw REST surface.
func (p *Provider) tryREST() (*llmclient.Client, error) {
	u, err := url.Parse(p.cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", p.cfg.BaseURL)
	}
	cfg := llmclient.Config{
		ProviderName: providerName,
		BaseURL:      strings.TrimRight(p.cfg.BaseURL, "/"),
	}
	if p.httpClient == nil {
		return llmclient.New(cfg, p.setHeaders), nil
	}
	return llmclient.NewWithHTTPClient(p.httpClient, cfg, p.setHeaders), nil
}

// setHeaders sets the Gemini REST authentication header.
func (p *Provider) setHeaders(req *http.Request) {
	req.Header.Set("x-goog-api-key", p.cfg.APIKey)
}

func (p *Provider) resolveModel(requested string) string {
	if m := strings.TrimSpace(requested); m != "" {
		return m
	}
	return p.cfg.Model
}

// Generate performs single-shot generation from a plain text prompt.
func (p *Provider) Generate(ctx context.Context, prompt string, opts core.GenerateOptions) (*core.ProviderResult, error) {
	if err := p.ensureClient(ctx); err != nil {
		return nil, err
	}
	model := p.resolveModel(opts.Model)
	if p.mode == modeSDK {
		contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
		return p.generateSDK(ctx, model, contents, opts.SystemInstruction)
	}
	return p.generateREST(ctx, model, []restPart{{Text: prompt}}, opts.SystemInstruction)
}

// GenerateMultimodal performs generation seeded by mixed content parts.
// Binary parts are passed natively as inline data; the Gemini backend is
// multimodal, so no placeholder coercion happens here.
func (p *Provider) GenerateMultimodal(ctx context.Context, parts []core.ContentPart, opts core.GenerateOptions) (*core.ProviderResult, error) {
	if err := p.ensureClient(ctx); err != nil {
		return nil, err
	}
	model := p.resolveModel(opts.Model)

	if p.mode == modeSDK {
		genParts := make([]*genai.Part, 0, len(parts))
		for _, part := range parts {
			switch part.Kind {
			case core.PartBinary:
				genParts = append(genParts, genai.NewPartFromBytes(part.Data, part.MIMEType))
			default:
				if text := strings.TrimSpace(part.Text); text != "" {
					genParts = append(genParts, genai.NewPartFromText(text))
				}
			}
		}
		if len(genParts) == 0 {
			genParts = append(genParts, genai.NewPartFromText(content.NoContent))
		}
		contents := []*genai.Content{genai.NewContentFromParts(genParts, genai.RoleUser)}
		return p.generateSDK(ctx, model, contents, opts.SystemInstruction)
	}

	restParts := make([]restPart, 0, len(parts))
	for _, part := range parts {
		switch part.Kind {
		case core.PartBinary:
			restParts = append(restParts, restPart{InlineData: &restBlob{
				MIMEType: part.MIMEType,
				Data:     base64.StdEncoding.EncodeToString(part.Data),
			}})
		default:
			if text := strings.TrimSpace(part.Text); text != "" {
				restParts = append(restParts, restPart{Text: text})
			}
		}
	}
	if len(restParts) == 0 {
		restParts = append(restParts, restPart{Text: content.NoContent})
	}
	return p.generateREST(ctx, model, restParts, opts.SystemInstruction)
}

// Chat performs a full conversational turn. In SDK mode the reconciled
// history rides a native session and only the resolved next prompt is sent;
// in REST mode the conversation is flattened to a transcript and sent as a
// single-shot generation.
func (p *Provider) Chat(ctx context.Context, req *core.ConversationRequest) (*core.ProviderResult, error) {
	rc, err := conversation.Reconcile(req.Prompt, req.Messages, req.SystemInstruction)
	if err != nil {
		return nil, err
	}
	if err := p.ensureClient(ctx); err != nil {
		return nil, err
	}
	model := p.resolveModel(req.Model)

	if p.mode == modeSDK {
		return p.chatSDK(ctx, model, rc)
	}
	return p.generateREST(ctx, model, []restPart{{Text: conversation.Transcript(rc)}}, "")
}

func (p *Provider) chatSDK(ctx context.Context, model string, rc *core.ReconciledConversation) (*core.ProviderResult, error) {
	history := make([]*genai.Content, 0, len(rc.History))
	for _, turn := range rc.History {
		var role genai.Role = genai.RoleUser
		if turn.Role == core.TurnModel {
			role = genai.RoleModel
		}
		history = append(history, genai.NewContentFromText(turn.Content, role))
	}

	cfg := &genai.GenerateContentConfig{}
	if rc.SystemInstruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(rc.SystemInstruction, genai.RoleUser)
	}

	chat, err := p.sdk.Chats.Create(ctx, model, cfg, history)
	if err != nil {
		return nil, core.NewProviderError(providerName, 0, err.Error(), err)
	}
	resp, err := chat.SendMessage(ctx, genai.Part{Text: rc.NextPrompt})
	if err != nil {
		return nil, core.NewProviderError(providerName, 0, err.Error(), err)
	}
	return &core.ProviderResult{Model: model, Text: extractSDKText(resp), Raw: resp}, nil
}

func (p *Provider) generateSDK(ctx context.Context, model string, contents []*genai.Content, system string) (*core.ProviderResult, error) {
	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	resp, err := p.sdk.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, core.NewProviderError(providerName, 0, err.Error(), err)
	}
	return &core.ProviderResult{Model: model, Text: extractSDKText(resp), Raw: resp}, nil
}

// --- REST surface ---

type restBlob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type restPart struct {
	Text       string    `json:"text,omitempty"`
	InlineData *restBlob `json:"inlineData,omitempty"`
}

type restContent struct {
	Role  string     `json:"role"`
	Parts []restPart `json:"parts"`
}

type restRequest struct {
	Contents          []restContent `json:"contents"`
	SystemInstruction *restContent  `json:"systemInstruction,omitempty"`
}

func (p *Provider) generateREST(ctx context.Context, model string, parts []restPart, system string) (*core.ProviderResult, error) {
	body := restRequest{
		Contents: []restContent{{Role: "user", Parts: parts}},
	}
	if system != "" {
		body.SystemInstruction = &restContent{Role: "user", Parts: []restPart{{Text: system}}}
	}

	resp, err := p.rest.DoRaw(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: fmt.Sprintf("/v1beta/models/%s:generateContent", model),
		Body:     body,
	})
	if err != nil {
		return nil, err
	}
	return &core.ProviderResult{
		Model: model,
		Text:  extractRESTText(resp.Body),
		Raw:   json.RawMessage(resp.Body),
	}, nil
}

// restTextPaths are the candidate locations probed, in priority order, when
// extracting the output text from a raw generateContent response.
var restTextPaths = []string{
	"candidates.0.content.parts.0.text",
	"text",
	"output",
}

// extractRESTText probes known response shapes for output text. Every probe
// is total: a shape mismatch degrades to "no match", and no match at all
// yields nil, which callers report as a successful call without text.
func extractRESTText(body []byte) *string {
	if !gjson.ValidBytes(body) {
		return nil
	}
	for _, path := range restTextPaths {
		v := gjson.GetBytes(body, path)
		if v.Type != gjson.String {
			continue
		}
		if text := strings.TrimSpace(v.String()); text != "" {
			return &text
		}
	}
	return nil
}

// extractSDKText probes an SDK response for output text: the aggregate
// Text() accessor first, then the first non-empty text part of any
// candidate. Returns nil when no shape matches.
func extractSDKText(resp *genai.GenerateContentResponse) *string {
	if resp == nil {
		return nil
	}
	if text := strings.TrimSpace(resp.Text()); text != "" {
		return &text
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil {
				continue
			}
			if text := strings.TrimSpace(part.Text); text != "" {
				return &text
			}
		}
	}
	return nil
}

// --- models listing ---

// geminiModel represents a model in Gemini's native API response.
type geminiModel struct {
	Name             string   `json:"name"`
	SupportedMethods []string `json:"supportedGenerationMethods"`
}

// geminiModelsResponse represents the native Gemini models list response.
type geminiModelsResponse struct {
	Models []geminiModel `json:"models"`
}

// Models retrieves the generateContent-capable models from the native API.
// The listing always rides the REST client regardless of mode.
func (p *Provider) Models(ctx context.Context) ([]core.Model, error) {
	if err := p.ensureClient(ctx); err != nil {
		return nil, err
	}
	if p.rest == nil {
		return nil, core.NewConfigurationError(providerName, "models listing unavailable: no REST client", nil)
	}

	var resp geminiModelsResponse
	if err := p.rest.Do(ctx, llmclient.Request{
		Method:   http.MethodGet,
		Endpoint: "/v1beta/models",
	}, &resp); err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	models := make([]core.Model, 0, len(resp.Models))
	for _, gm := range resp.Models {
		modelID := strings.TrimPrefix(gm.Name, "models/")

		supportsGenerate := false
		for _, method := range gm.SupportedMethods {
			if method == "generateContent" || method == "streamGenerateContent" {
				supportsGenerate = true
				break
			}
		}
		if supportsGenerate && strings.HasPrefix(modelID, "gemini-") {
			models = append(models, core.Model{
				ID:      modelID,
				Object:  "model",
				OwnedBy: "google",
				Created: now,
			})
		}
	}
	return models, nil
}

// CheckAvailability verifies the backend is reachable via a lightweight
// models request.
func (p *Provider) CheckAvailability(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := p.Models(ctx)
	return err
}
