package lmstudio

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"modelrelay/internal/core"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc, cfg Config) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	if cfg.BaseURL == "" {
		cfg.BaseURL = server.URL
	}
	return NewWithHTTPClient(cfg, server.Client())
}

func TestGenerate(t *testing.T) {
	tests := []struct {
		name         string
		statusCode   int
		responseBody string
		wantText     string
		wantNoText   bool
		wantErr      string
	}{
		{
			name:       "successful request",
			statusCode: http.StatusOK,
			responseBody: `{
				"id": "chatcmpl-123",
				"model": "qwen2.5-7b",
				"choices": [{
					"index": 0,
					"message": {"role": "assistant", "content": "Hello there"},
					"finish_reason": "stop"
				}]
			}`,
			wantText: "Hello there",
		},
		{
			name:         "legacy completions shape",
			statusCode:   http.StatusOK,
			responseBody: `{"choices": [{"text": "plain completion"}]}`,
			wantText:     "plain completion",
		},
		{
			name:         "unrecognized shape is not an error",
			statusCode:   http.StatusOK,
			responseBody: `{"surprise": {"nested": "value"}}`,
			wantNoText:   true,
		},
		{
			name:         "non-JSON body is tolerated",
			statusCode:   http.StatusOK,
			responseBody: "<html>totally not json</html>",
			wantNoText:   true,
		},
		{
			name:         "error message from nested field",
			statusCode:   http.StatusInternalServerError,
			responseBody: `{"error": {"message": "model crashed"}}`,
			wantErr:      "model crashed",
		},
		{
			name:         "error without message falls back to status",
			statusCode:   http.StatusServiceUnavailable,
			responseBody: `weird body`,
			wantErr:      "HTTP 503",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/chat/completions" {
					t.Errorf("path = %q, want /v1/chat/completions", r.URL.Path)
				}
				if got := r.Header.Get("Content-Type"); got != "application/json" {
					t.Errorf("Content-Type = %q, want application/json", got)
				}
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.responseBody)) //nolint:errcheck
			}, Config{Model: "qwen2.5-7b"})

			result, err := provider.Generate(context.Background(), "hi", core.GenerateOptions{})
			if tt.wantErr != "" {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				var gatewayErr *core.GatewayError
				if !errors.As(err, &gatewayErr) {
					t.Fatalf("error type = %T, want *core.GatewayError", err)
				}
				if gatewayErr.Type != core.ErrorTypeProvider {
					t.Errorf("error type = %q, want %q", gatewayErr.Type, core.ErrorTypeProvider)
				}
				if !strings.Contains(gatewayErr.Message, tt.wantErr) {
					t.Errorf("message = %q, want substring %q", gatewayErr.Message, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if tt.wantNoText {
				if result.Text != nil {
					t.Errorf("Text = %q, want nil", *result.Text)
				}
				return
			}
			if result.Text == nil || *result.Text != tt.wantText {
				t.Errorf("Text = %v, want %q", result.Text, tt.wantText)
			}
		})
	}
}

func TestGenerate_RequestBody(t *testing.T) {
	var captured chatRequest
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body) //nolint:errcheck
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Fatalf("unmarshal request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`)) //nolint:errcheck
	}, Config{Model: "default-model"})

	_, err := provider.Generate(context.Background(), "the prompt", core.GenerateOptions{
		SystemInstruction: "be terse",
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if captured.Model != "default-model" {
		t.Errorf("Model = %q, want %q", captured.Model, "default-model")
	}
	if len(captured.Messages) != 2 {
		t.Fatalf("len(Messages) = %d, want 2", len(captured.Messages))
	}
	if captured.Messages[0].Role != "system" || captured.Messages[0].Content != "be terse" {
		t.Errorf("Messages[0] = %+v, want system instruction", captured.Messages[0])
	}
	if captured.Messages[1].Role != "user" || captured.Messages[1].Content != "the prompt" {
		t.Errorf("Messages[1] = %+v, want user prompt", captured.Messages[1])
	}
}

func TestGenerate_NoModelConfigured(t *testing.T) {
	provider := New(Config{BaseURL: "http://localhost:9999"})
	_, err := provider.Generate(context.Background(), "hi", core.GenerateOptions{})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var gatewayErr *core.GatewayError
	if !errors.As(err, &gatewayErr) {
		t.Fatalf("error type = %T, want *core.GatewayError", err)
	}
	if gatewayErr.Type != core.ErrorTypeConfiguration {
		t.Errorf("error type = %q, want %q", gatewayErr.Type, core.ErrorTypeConfiguration)
	}
	if gatewayErr.Message != "no model configured" {
		t.Errorf("message = %q, want %q", gatewayErr.Message, "no model configured")
	}
}

func TestGenerate_RequestModelOverridesDefault(t *testing.T) {
	var captured chatRequest
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)          //nolint:errcheck
		_ = json.Unmarshal(body, &captured)    //nolint:errcheck
		_, _ = w.Write([]byte(`{"choices":[]}`)) //nolint:errcheck
	}, Config{Model: "default-model"})

	_, err := provider.Generate(context.Background(), "hi", core.GenerateOptions{Model: "override"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if captured.Model != "override" {
		t.Errorf("Model = %q, want %q", captured.Model, "override")
	}
}

func TestGenerate_UnreachableEndpointNamesURL(t *testing.T) {
	// Closed port: the connection is refused immediately.
	provider := New(Config{BaseURL: "http://127.0.0.1:1", Model: "m"})
	_, err := provider.Generate(context.Background(), "hi", core.GenerateOptions{})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var gatewayErr *core.GatewayError
	if !errors.As(err, &gatewayErr) {
		t.Fatalf("error type = %T, want *core.GatewayError", err)
	}
	if gatewayErr.Type != core.ErrorTypeProvider {
		t.Errorf("error type = %q, want %q", gatewayErr.Type, core.ErrorTypeProvider)
	}
	if !strings.Contains(gatewayErr.Message, "http://127.0.0.1:1/v1/chat/completions") {
		t.Errorf("message %q does not name the endpoint", gatewayErr.Message)
	}
}

func TestGenerate_BearerCredential(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-local" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer sk-local")
		}
		_, _ = w.Write([]byte(`{"choices":[]}`)) //nolint:errcheck
	}, Config{Model: "m", APIKey: "sk-local"})

	if _, err := provider.Generate(context.Background(), "hi", core.GenerateOptions{}); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
}

func TestChat_TranscriptFallback(t *testing.T) {
	var captured chatRequest
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)                                                  //nolint:errcheck
		_ = json.Unmarshal(body, &captured)                                            //nolint:errcheck
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"fine, thanks"}}]}`)) //nolint:errcheck
	}, Config{Model: "m"})

	result, err := provider.Chat(context.Background(), &core.ConversationRequest{
		Messages: []core.ChatMessage{
			{Role: "system", Content: "be honest"},
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
			{Role: "user", Content: "how are you"},
		},
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if result.Text == nil || *result.Text != "fine, thanks" {
		t.Errorf("Text = %v, want %q", result.Text, "fine, thanks")
	}

	want := "System: be honest\nUser: hi\nAssistant: hello\nUser: how are you"
	if len(captured.Messages) != 1 || captured.Messages[0].Content != want {
		t.Errorf("transcript = %+v, want single user message %q", captured.Messages, want)
	}
}

func TestChat_NoPrompt(t *testing.T) {
	provider := New(Config{Model: "m"})
	_, err := provider.Chat(context.Background(), &core.ConversationRequest{})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var gatewayErr *core.GatewayError
	if !errors.As(err, &gatewayErr) || gatewayErr.Type != core.ErrorTypeValidation {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestGenerateMultimodal_PlaceholderCoercion(t *testing.T) {
	var captured chatRequest
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)            //nolint:errcheck
		_ = json.Unmarshal(body, &captured)      //nolint:errcheck
		_, _ = w.Write([]byte(`{"choices":[]}`)) //nolint:errcheck
	}, Config{Model: "m"})

	_, err := provider.GenerateMultimodal(context.Background(), []core.ContentPart{
		core.TextPart("describe this"),
		core.BinaryPart("image/png", make([]byte, 42)),
	}, core.GenerateOptions{})
	if err != nil {
		t.Fatalf("GenerateMultimodal() error = %v", err)
	}

	want := "describe this\n\n[Attachment: image/png, 42 bytes; content omitted in local text-only mode]"
	if len(captured.Messages) != 1 || captured.Messages[0].Content != want {
		t.Errorf("coerced prompt = %+v, want %q", captured.Messages, want)
	}
}

func TestModels(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("path = %q, want /v1/models", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"qwen2.5-7b","object":"model"}]}`)) //nolint:errcheck
	}, Config{})

	models, err := provider.Models(context.Background())
	if err != nil {
		t.Fatalf("Models() error = %v", err)
	}
	if len(models) != 1 || models[0].ID != "qwen2.5-7b" {
		t.Fatalf("models = %+v, want one qwen2.5-7b entry", models)
	}
	if models[0].OwnedBy != "lmstudio" {
		t.Errorf("OwnedBy = %q, want %q", models[0].OwnedBy, "lmstudio")
	}
}

func TestEnsureClient_LegacyBaseURL(t *testing.T) {
	provider := New(Config{BaseURL: "localhost:1234", Model: "m"})
	if err := provider.ensureClient(); err != nil {
		t.Fatalf("ensureClient() error = %v", err)
	}
	if got := provider.client.BaseURL(); got != "http://localhost:1234" {
		t.Errorf("BaseURL = %q, want %q", got, "http://localhost:1234")
	}
}

func TestEnsureClient_UnusableBaseURL(t *testing.T) {
	provider := New(Config{BaseURL: "http://bad\x00url", Model: "m"})
	err := provider.ensureClient()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var gatewayErr *core.GatewayError
	if !errors.As(err, &gatewayErr) || gatewayErr.Type != core.ErrorTypeConfiguration {
		t.Fatalf("err = %v, want configuration error", err)
	}

	// The failure is sticky for the process lifetime.
	if second := provider.ensureClient(); second != err {
		t.Errorf("second ensureClient() = %v, want memoized %v", second, err)
	}
}
