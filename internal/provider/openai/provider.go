// Package openai is the live backend: it asks an OpenAI-compatible chat
// completion endpoint to rewrite the headline.
package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openaiapi "github.com/tjfontaine/headline-restyler/internal/api/openai"
	"github.com/tjfontaine/headline-restyler/internal/domain"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// ProviderOption configures the provider.
type ProviderOption func(*Provider)

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(baseURL string) ProviderOption {
	return func(p *Provider) {
		p.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = httpClient
	}
}

// WithModel sets the model name sent upstream.
func WithModel(model string) ProviderOption {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithMaxTokens caps the completion length.
func WithMaxTokens(n int) ProviderOption {
	return func(p *Provider) {
		p.maxTokens = n
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) ProviderOption {
	return func(p *Provider) {
		p.temperature = &t
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) ProviderOption {
	return func(p *Provider) {
		p.userAgent = ua
	}
}

// Provider implements domain.TextGenerator against the chat completions API.
// It holds only an HTTP client and is safe for concurrent use.
type Provider struct {
	client      *openaiapi.Client
	baseURL     string
	httpClient  *http.Client
	userAgent   string
	model       string
	maxTokens   int
	temperature *float32
}

// New creates a new OpenAI provider. It fails with domain.ErrMissingAPIKey
// when apiKey is empty.
func New(apiKey string, opts ...ProviderOption) (*Provider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, domain.ErrMissingAPIKey
	}

	p := &Provider{model: DefaultModel}
	for _, opt := range opts {
		opt(p)
	}

	var clientOpts []openaiapi.ClientOption
	if p.baseURL != "" {
		clientOpts = append(clientOpts, openaiapi.WithBaseURL(p.baseURL))
	}
	if p.httpClient != nil {
		clientOpts = append(clientOpts, openaiapi.WithHTTPClient(p.httpClient))
	}
	if p.userAgent != "" {
		clientOpts = append(clientOpts, openaiapi.WithUserAgent(p.userAgent))
	}

	p.client = openaiapi.NewClient(apiKey, clientOpts...)
	return p, nil
}

func (p *Provider) Kind() domain.ProviderKind {
	return domain.ProviderOpenAI
}

// Model returns the configured model name.
func (p *Provider) Model() string {
	return p.model
}

// Generate sends the system and user prompts and returns the trimmed text of
// the first choice. Every failure is reported as *domain.GenerationFailedError;
// the original headline is never substituted for a failed generation.
func (p *Provider) Generate(ctx context.Context, prompt domain.Prompt) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.toAPIRequest(prompt))
	if err != nil {
		genErr := &domain.GenerationFailedError{Kind: domain.ProviderOpenAI, Err: err}
		var statusErr *openaiapi.StatusError
		if errors.As(err, &statusErr) {
			genErr.StatusCode = statusErr.StatusCode
		}
		return "", genErr
	}

	if len(resp.Choices) == 0 {
		return "", &domain.GenerationFailedError{
			Kind: domain.ProviderOpenAI,
			Err:  errors.New("response contained no choices"),
		}
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", &domain.GenerationFailedError{Kind: domain.ProviderOpenAI, Err: domain.ErrEmptyOutput}
	}
	return text, nil
}

func (p *Provider) toAPIRequest(prompt domain.Prompt) *openaiapi.ChatCompletionRequest {
	req := &openaiapi.ChatCompletionRequest{
		Model: p.model,
		Messages: []openaiapi.ChatCompletionMessage{
			{Role: "system", Content: prompt.System},
			{Role: "user", Content: prompt.User},
		},
		Temperature: p.temperature,
	}
	if p.maxTokens > 0 {
		// Newer models prefer max_completion_tokens
		req.MaxCompletionTokens = p.maxTokens
	}
	return req
}
