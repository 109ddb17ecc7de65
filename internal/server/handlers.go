// Package server provides HTTP handlers and server setup for the gateway.
package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"modelrelay/internal/core"
)

// Handler holds the HTTP handlers.
type Handler struct {
	gateway core.Gateway
}

// NewHandler creates a new handler with the given gateway.
func NewHandler(gateway core.Gateway) *Handler {
	return &Handler{gateway: gateway}
}

// Health handles GET /health.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// ListModels handles GET /v1/models.
func (h *Handler) ListModels(c echo.Context) error {
	resp, err := h.gateway.Models(c.Request().Context())
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Chat handles POST /v1/chat. Prompt/history resolution happens inside the
// adapter's reconciliation, so the handler only forwards.
func (h *Handler) Chat(c echo.Context) error {
	var req core.ConversationRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewValidationError("invalid request body: "+err.Error(), err))
	}

	result, err := h.gateway.Chat(c.Request().Context(), req.Provider, &req)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// generateRequest is the body of POST /v1/generate.
type generateRequest struct {
	Prompt            string `json:"prompt"`
	Model             string `json:"model,omitempty"`
	SystemInstruction string `json:"system_instruction,omitempty"`
	Provider          string `json:"provider,omitempty"`
}

// Generate handles POST /v1/generate.
func (h *Handler) Generate(c echo.Context) error {
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewValidationError("invalid request body: "+err.Error(), err))
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return handleError(c, core.NewValidationError("prompt is required", nil))
	}

	result, err := h.gateway.Generate(c.Request().Context(), req.Provider, req.Prompt, core.GenerateOptions{
		Model:             req.Model,
		SystemInstruction: req.SystemInstruction,
	})
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// GenerateFromUpload handles the multimodal routes
// (POST /v1/generate/{image,document,audio}): a required "file" multipart
// field plus optional prompt, model, system_instruction and provider form
// fields. The route suffix is advisory; the MIME type rides with the file.
func (h *Handler) GenerateFromUpload(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return handleError(c, core.NewValidationError("file is required", err))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return handleError(c, core.NewValidationError("failed to open upload: "+err.Error(), err))
	}
	defer func() {
		_ = file.Close() //nolint:errcheck
	}()

	data, err := io.ReadAll(file)
	if err != nil {
		return handleError(c, core.NewValidationError("failed to read upload: "+err.Error(), err))
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}

	parts := []core.ContentPart{core.BinaryPart(mimeType, data)}
	if prompt := strings.TrimSpace(c.FormValue("prompt")); prompt != "" {
		parts = append([]core.ContentPart{core.TextPart(prompt)}, parts...)
	}

	result, err := h.gateway.GenerateMultimodal(c.Request().Context(), c.FormValue("provider"), parts, core.GenerateOptions{
		Model:             c.FormValue("model"),
		SystemInstruction: c.FormValue("system_instruction"),
	})
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// handleError normalizes any failure to the uniform error envelope.
func handleError(c echo.Context, err error) error {
	var gatewayErr *core.GatewayError
	if errors.As(err, &gatewayErr) {
		return c.JSON(gatewayErr.HTTPStatusCode(), gatewayErr.ToJSON())
	}

	normalized := core.Normalize(err)
	return c.JSON(http.StatusInternalServerError, normalized.ToJSON())
}
