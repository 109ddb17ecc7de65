// Package lmstudio provides the adapter for a locally hosted
// OpenAI-compatible server (LM Studio). The backend is text-only: binary
// content is coerced to placeholder text, and conversations are flattened
// to a transcript because the chat endpoint is the only generation surface
// the adapter relies on.
package lmstudio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"modelrelay/internal/content"
	"modelrelay/internal/conversation"
	"modelrelay/internal/core"
	"modelrelay/internal/pkg/llmclient"
)

const (
	providerName   = "lmstudio"
	defaultBaseURL = "http://localhost:1234"
)

// Config holds the LM Studio adapter configuration.
type Config struct {
	BaseURL string
	APIKey  string // optional; sent as a bearer credential when set
	Model   string // default model when the request names none
}

// Provider implements core.Adapter for LM Studio.
type Provider struct {
	cfg        Config
	httpClient *http.Client

	// Lazily constructed on first use, memoized for the process lifetime.
	once    sync.Once
	client  *llmclient.Client
	initErr error
}

// New creates an LM Studio adapter. The client handle is constructed lazily
// on first use.
func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Provider{cfg: cfg}
}

// NewWithHTTPClient creates an adapter with a custom HTTP client.
func NewWithHTTPClient(cfg Config, httpClient *http.Client) *Provider {
	p := New(cfg)
	p.httpClient = httpClient
	return p
}

// Name returns the provider identifier used for routing.
func (p *Provider) Name() string {
	return providerName
}

// ensureClient constructs the client exactly once. Base URL resolution
// probes two shapes: a fully qualified URL first, then a bare host:port that
// older configurations carry without a scheme. Both failing is a permanent
// configuration failure for this process.
func (p *Provider) ensureClient() error {
	p.once.Do(func() {
		base, strictErr := normalizeBaseURL(p.cfg.BaseURL)
		if strictErr != nil {
			var legacyErr error
			base, legacyErr = normalizeBaseURL("http://" + p.cfg.BaseURL)
			if legacyErr != nil {
				p.initErr = core.NewConfigurationError(providerName,
					fmt.Sprintf("unusable base URL %q: %v; %v", p.cfg.BaseURL, strictErr, legacyErr), strictErr)
				return
			}
		}

		cfg := llmclient.Config{
			ProviderName: providerName,
			BaseURL:      base,
		}
		if p.httpClient == nil {
			p.client = llmclient.New(cfg, p.setHeaders)
		} else {
			p.client = llmclient.NewWithHTTPClient(p.httpClient, cfg, p.setHeaders)
		}
	})
	return p.initErr
}

func normalizeBaseURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("not an absolute http(s) URL")
	}
	return strings.TrimRight(u.String(), "/"), nil
}

// setHeaders sets the optional bearer credential.
func (p *Provider) setHeaders(req *http.Request) {
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}
}

// resolveModel picks the request model or the configured default. LM Studio
// loads models explicitly, so there is no server-side fallback to lean on.
func (p *Provider) resolveModel(requested string) (string, error) {
	if m := strings.TrimSpace(requested); m != "" {
		return m, nil
	}
	if p.cfg.Model != "" {
		return p.cfg.Model, nil
	}
	return "", core.NewConfigurationError(providerName, "no model configured", nil)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

// Generate performs single-shot generation by issuing a chat-completions
// call with the prompt as the sole user message.
func (p *Provider) Generate(ctx context.Context, prompt string, opts core.GenerateOptions) (*core.ProviderResult, error) {
	if err := p.ensureClient(); err != nil {
		return nil, err
	}
	model, err := p.resolveModel(opts.Model)
	if err != nil {
		return nil, err
	}

	messages := make([]chatMessage, 0, 2)
	if opts.SystemInstruction != "" {
		messages = append(messages, chatMessage{Role: core.RoleSystem, Content: opts.SystemInstruction})
	}
	messages = append(messages, chatMessage{Role: core.RoleUser, Content: prompt})

	resp, err := p.client.DoRaw(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/v1/chat/completions",
		Body:     chatRequest{Model: model, Messages: messages},
	})
	if err != nil {
		return nil, err
	}
	return resultFromBody(model, resp.Body), nil
}

// GenerateMultimodal coerces mixed content to plain text and generates over
// it; the local backend cannot consume binary content natively.
func (p *Provider) GenerateMultimodal(ctx context.Context, parts []core.ContentPart, opts core.GenerateOptions) (*core.ProviderResult, error) {
	return p.Generate(ctx, content.RenderPartsAsText(parts), opts)
}

// Chat reconciles the conversation and generates over the synthesized
// transcript; there is no native multi-turn session to hold.
func (p *Provider) Chat(ctx context.Context, req *core.ConversationRequest) (*core.ProviderResult, error) {
	rc, err := conversation.Reconcile(req.Prompt, req.Messages, req.SystemInstruction)
	if err != nil {
		return nil, err
	}
	return p.Generate(ctx, conversation.Transcript(rc), core.GenerateOptions{Model: req.Model})
}

// textPaths are the candidate locations probed, in priority order, when
// extracting output text from a chat-completions style response.
var textPaths = []string{
	"choices.0.message.content",
	"choices.0.text",
	"message.content",
	"content",
	"response",
}

// resultFromBody normalizes a successful response body. A non-JSON body is
// replaced by a diagnostic payload rather than surfacing a parse failure; a
// JSON body matching no known shape yields a result without text. Neither
// case is an error.
func resultFromBody(model string, body []byte) *core.ProviderResult {
	if !gjson.ValidBytes(body) {
		return &core.ProviderResult{
			Model: model,
			Raw: map[string]any{
				"note": "provider returned a non-JSON response",
				"body": truncate(string(body), 2048),
			},
		}
	}

	result := &core.ProviderResult{
		Model: model,
		Raw:   json.RawMessage(body),
	}
	if served := gjson.GetBytes(body, "model"); served.Type == gjson.String && served.String() != "" {
		result.Model = served.String()
	}
	for _, path := range textPaths {
		v := gjson.GetBytes(body, path)
		if v.Type != gjson.String {
			continue
		}
		if text := strings.TrimSpace(v.String()); text != "" {
			result.Text = &text
			break
		}
	}
	return result
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

type modelsResponse struct {
	Data []core.Model `json:"data"`
}

// Models retrieves the loaded models from the local server.
func (p *Provider) Models(ctx context.Context) ([]core.Model, error) {
	if err := p.ensureClient(); err != nil {
		return nil, err
	}
	var resp modelsResponse
	if err := p.client.Do(ctx, llmclient.Request{
		Method:   http.MethodGet,
		Endpoint: "/v1/models",
	}, &resp); err != nil {
		return nil, err
	}
	for i := range resp.Data {
		if resp.Data[i].OwnedBy == "" {
			resp.Data[i].OwnedBy = providerName
		}
	}
	return resp.Data, nil
}

// CheckAvailability verifies the local server is reachable.
// Makes a lightweight request to the models endpoint.
func (p *Provider) CheckAvailability(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := p.Models(ctx)
	return err
}
