// Package domain holds the core types shared by the transform service, the
// provider registry and the backends.
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ProviderKind identifies a text generation backend.
// The set is open: any kind with a registered factory is valid.
type ProviderKind string

const (
	// ProviderTest is the offline, deterministic backend.
	ProviderTest ProviderKind = "test"

	// ProviderOpenAI is the OpenAI chat completion backend.
	ProviderOpenAI ProviderKind = "openai"
)

// DefaultProvider and DefaultFallback apply when a request leaves them unset.
const (
	DefaultProvider = ProviderOpenAI
	DefaultFallback = ProviderTest
)

func (k ProviderKind) String() string {
	return string(k)
}

// TransformRequest asks for a headline rewritten in an author's voice.
// Construct it with NewTransformRequest; it is not modified afterwards.
type TransformRequest struct {
	headline string
	author   string
	body     string
	provider ProviderKind
	fallback *ProviderKind
}

// RequestOption configures a TransformRequest at construction time.
type RequestOption func(*TransformRequest)

// WithProvider selects the primary backend.
func WithProvider(kind ProviderKind) RequestOption {
	return func(r *TransformRequest) {
		if kind != "" {
			r.provider = kind
		}
	}
}

// WithFallback selects the backend tried once if the primary fails.
func WithFallback(kind ProviderKind) RequestOption {
	return func(r *TransformRequest) {
		k := kind
		r.fallback = &k
	}
}

// WithoutFallback disables the fallback attempt.
func WithoutFallback() RequestOption {
	return func(r *TransformRequest) {
		r.fallback = nil
	}
}

// NewTransformRequest builds a request with the default provider (openai)
// and default fallback (test) unless overridden.
func NewTransformRequest(headline, author, body string, opts ...RequestOption) TransformRequest {
	fallback := DefaultFallback
	r := TransformRequest{
		headline: headline,
		author:   author,
		body:     body,
		provider: DefaultProvider,
		fallback: &fallback,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

func (r TransformRequest) Headline() string       { return r.headline }
func (r TransformRequest) Author() string         { return r.author }
func (r TransformRequest) Body() string           { return r.body }
func (r TransformRequest) Provider() ProviderKind { return r.provider }

// Fallback returns the fallback kind and whether one is set.
func (r TransformRequest) Fallback() (ProviderKind, bool) {
	if r.fallback == nil {
		return "", false
	}
	return *r.fallback, true
}

// Validate checks the fields a transform cannot run without.
func (r TransformRequest) Validate() error {
	if strings.TrimSpace(r.headline) == "" {
		return fmt.Errorf("%w: headline is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.author) == "" {
		return fmt.Errorf("%w: author is required", ErrInvalidRequest)
	}
	return nil
}

// TransformRequestPayload is the wire shape accepted by the HTTP handler.
// A missing fallbackProvider means "use the default"; an explicit null or
// empty string disables the fallback.
type TransformRequestPayload struct {
	Headline         string          `json:"headline"`
	Author           string          `json:"author"`
	Body             string          `json:"body"`
	Provider         string          `json:"provider,omitempty"`
	FallbackProvider json.RawMessage `json:"fallbackProvider,omitempty"`
	// FallbackProviderSnake accepts the snake_case spelling used by older clients.
	FallbackProviderSnake json.RawMessage `json:"fallback_provider,omitempty"`
}

// ToRequest converts the payload to an immutable TransformRequest.
// defaults apply before the payload's own provider choices, so a server can
// substitute its configured provider and fallback for the built-in ones.
func (p TransformRequestPayload) ToRequest(defaults ...RequestOption) (TransformRequest, error) {
	opts := append([]RequestOption(nil), defaults...)
	opts = append(opts, WithProvider(ProviderKind(p.Provider)))

	raw := p.FallbackProvider
	if len(raw) == 0 {
		raw = p.FallbackProviderSnake
	}
	if len(raw) > 0 {
		var fb *string
		if err := json.Unmarshal(raw, &fb); err != nil {
			return TransformRequest{}, fmt.Errorf("%w: fallbackProvider must be a string or null", ErrInvalidRequest)
		}
		if fb == nil || *fb == "" {
			opts = append(opts, WithoutFallback())
		} else {
			opts = append(opts, WithFallback(ProviderKind(*fb)))
		}
	}

	req := NewTransformRequest(p.Headline, p.Author, p.Body, opts...)
	if err := req.Validate(); err != nil {
		return TransformRequest{}, err
	}
	return req, nil
}

// TransformResult is the outcome of a successful transform.
// ProviderUsed is the backend that produced the text, which differs from
// the requested provider when the fallback ran.
type TransformResult struct {
	OriginalHeadline    string       `json:"originalHeadline"`
	TransformedHeadline string       `json:"transformedHeadline"`
	ProviderUsed        ProviderKind `json:"providerUsed"`
	FallbackUsed        bool         `json:"fallbackUsed"`
}

// Prompt is what a backend receives for a single generation.
// The raw inputs travel alongside the rendered prompts so that offline
// backends can answer without parsing templates.
type Prompt struct {
	System string
	User   string

	Headline string
	Author   string
	Body     string
}
