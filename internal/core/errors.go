// Package core provides the shared types, interfaces and error taxonomy for
// the generation gateway.
package core

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrorType represents the class of a gateway error.
type ErrorType string

const (
	// ErrorTypeValidation indicates malformed or insufficient input (400).
	ErrorTypeValidation ErrorType = "validation_error"
	// ErrorTypeConfiguration indicates deployment misconfiguration such as a
	// missing credential or unconstructable client (500).
	ErrorTypeConfiguration ErrorType = "configuration_error"
	// ErrorTypeProvider indicates the backend rejected the call or was
	// unreachable (502 unless the provider supplied a status).
	ErrorTypeProvider ErrorType = "provider_error"
)

// GatewayError is the single error shape crossing the core/boundary edge.
type GatewayError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code"`
	Provider   string    `json:"provider,omitempty"`
	// Original error for debugging (not exposed to clients)
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Provider, e.Type, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the error unwrapping interface.
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the HTTP status a handler should respond with.
func (e *GatewayError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	switch e.Type {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeConfiguration:
		return http.StatusInternalServerError
	case ErrorTypeProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ToJSON converts the error to the client-facing envelope.
func (e *GatewayError) ToJSON() map[string]interface{} {
	return map[string]interface{}{
		"error": map[string]interface{}{
			"type":    e.Type,
			"message": e.Message,
		},
	}
}

// NewValidationError creates a validation error (400).
func NewValidationError(message string, err error) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        err,
	}
}

// NewConfigurationError creates a configuration error (500). Configuration
// failures indicate deployment problems, not bad input, and are never retried.
func NewConfigurationError(provider string, message string, err error) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeConfiguration,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Provider:   provider,
		Err:        err,
	}
}

// NewProviderError creates a provider error. statusCode may be zero, in which
// case HTTPStatusCode falls back to 502.
func NewProviderError(provider string, statusCode int, message string, err error) *GatewayError {
	return &GatewayError{
		Type:       ErrorTypeProvider,
		Message:    message,
		StatusCode: statusCode,
		Provider:   provider,
		Err:        err,
	}
}

// errorMessagePaths are the response fields checked, in priority order, when
// extracting a human-readable message from a provider error body. Local
// OpenAI-compatible servers are inconsistent about where they put it.
var errorMessagePaths = []string{"error.message", "error", "message", "detail"}

// ParseProviderError builds a GatewayError from a non-success provider
// response, preserving the provider-supplied message when one can be found.
func ParseProviderError(provider string, statusCode int, body []byte) *GatewayError {
	message := ""
	if gjson.ValidBytes(body) {
		for _, path := range errorMessagePaths {
			v := gjson.GetBytes(body, path)
			if v.Type == gjson.String && strings.TrimSpace(v.String()) != "" {
				message = strings.TrimSpace(v.String())
				break
			}
		}
	}
	if message == "" {
		message = fmt.Sprintf("HTTP %d", statusCode)
	}

	// Provider-reported client errors keep their status; everything else is a
	// bad-gateway from the caller's perspective.
	status := http.StatusBadGateway
	if statusCode >= 400 && statusCode < 500 {
		status = statusCode
	}
	return NewProviderError(provider, status, message, nil)
}

// Normalize coerces any error into a GatewayError so the boundary layer deals
// with one uniform shape regardless of originating cause.
func Normalize(err error) *GatewayError {
	if err == nil {
		return nil
	}
	if ge, ok := err.(*GatewayError); ok {
		return ge
	}
	return &GatewayError{
		Type:       ErrorTypeProvider,
		Message:    err.Error(),
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}
