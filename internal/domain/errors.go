package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidRequest marks a request missing required fields.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrEmptyOutput is reported when a backend returns no text.
	ErrEmptyOutput = errors.New("backend returned empty output")

	// ErrMissingAPIKey is returned by backends that need a credential and have none.
	ErrMissingAPIKey = errors.New("missing API key")
)

// UnsupportedProviderError is returned when no factory is registered for a kind.
type UnsupportedProviderError struct {
	Kind       ProviderKind
	Registered []ProviderKind
}

func (e *UnsupportedProviderError) Error() string {
	if len(e.Registered) == 0 {
		return fmt.Sprintf("unsupported provider %q", string(e.Kind))
	}
	return fmt.Sprintf("unsupported provider %q (registered: %v)", string(e.Kind), e.Registered)
}

// BackendConstructionError is returned when a registered factory fails,
// typically because a credential is missing.
type BackendConstructionError struct {
	Kind ProviderKind
	Err  error
}

func (e *BackendConstructionError) Error() string {
	return fmt.Sprintf("construct %s backend: %v", e.Kind, e.Err)
}

func (e *BackendConstructionError) Unwrap() error { return e.Err }

// GenerationFailedError is returned by a backend whose generate call failed
// (transport, auth, rate limit, malformed or empty response).
type GenerationFailedError struct {
	Kind ProviderKind
	// StatusCode is the upstream HTTP status when one was received.
	StatusCode int
	Err        error
}

func (e *GenerationFailedError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s generation failed (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s generation failed: %v", e.Kind, e.Err)
}

func (e *GenerationFailedError) Unwrap() error { return e.Err }

// TransformFailedError wraps the primary failure once no usable fallback
// remains. FallbackErr is set when a fallback was attempted and also failed.
type TransformFailedError struct {
	Provider    ProviderKind
	Cause       error
	Fallback    ProviderKind
	FallbackErr error
}

func (e *TransformFailedError) Error() string {
	if e.FallbackErr != nil {
		return fmt.Sprintf("transform failed: %v (fallback %s: %v)", e.Cause, e.Fallback, e.FallbackErr)
	}
	return fmt.Sprintf("transform failed: %v", e.Cause)
}

func (e *TransformFailedError) Unwrap() error { return e.Cause }

// ErrorType is the category reported to HTTP clients.
type ErrorType string

const (
	ErrorTypeInvalidRequest      ErrorType = "invalid_request"
	ErrorTypeUnsupportedProvider ErrorType = "unsupported_provider"
	ErrorTypeBackendUnavailable  ErrorType = "backend_unavailable"
	ErrorTypeTransformFailed     ErrorType = "transform_failed"
	ErrorTypeAuthentication      ErrorType = "authentication"
	ErrorTypeNotFound            ErrorType = "not_found"
	ErrorTypeServer              ErrorType = "server"
)

// APIError is the client-facing form of an error.
type APIError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`

	// StatusCode overrides the status derived from Type.
	StatusCode int `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// HTTPStatusCode returns the status code for this error.
func (e *APIError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}

	switch e.Type {
	case ErrorTypeInvalidRequest, ErrorTypeUnsupportedProvider:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeBackendUnavailable:
		return http.StatusServiceUnavailable
	case ErrorTypeTransformFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewAPIError creates a new API error.
func NewAPIError(errType ErrorType, message string) *APIError {
	return &APIError{Type: errType, Message: message}
}

// ToAPIError classifies err for a client response.
func ToAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var unsupported *UnsupportedProviderError
	var construction *BackendConstructionError
	var failed *TransformFailedError

	switch {
	case errors.Is(err, ErrInvalidRequest):
		return NewAPIError(ErrorTypeInvalidRequest, err.Error())
	case errors.As(err, &unsupported):
		return NewAPIError(ErrorTypeUnsupportedProvider, err.Error())
	case errors.As(err, &failed):
		return NewAPIError(ErrorTypeTransformFailed, err.Error())
	case errors.As(err, &construction):
		return NewAPIError(ErrorTypeBackendUnavailable, err.Error())
	default:
		return NewAPIError(ErrorTypeServer, err.Error())
	}
}
