// Package echo is the offline backend. It answers every prompt with the
// original headline prefixed by "TEST : ", which lets clients and the
// fallback path be exercised without API costs.
package echo

import (
	"context"

	"github.com/tjfontaine/headline-restyler/internal/domain"
)

// ProviderKind is the kind this backend registers under.
const ProviderKind = domain.ProviderTest

// Prefix is prepended to the headline.
const Prefix = "TEST : "

// Provider is stateless and safe for concurrent use.
type Provider struct{}

// New creates an echo provider.
func New() *Provider {
	return &Provider{}
}

func (p *Provider) Kind() domain.ProviderKind {
	return ProviderKind
}

// Generate never fails.
func (p *Provider) Generate(_ context.Context, prompt domain.Prompt) (string, error) {
	return Prefix + prompt.Headline, nil
}

// CreateFromConfig is the registry factory for this backend.
func CreateFromConfig() (domain.TextGenerator, error) {
	return New(), nil
}
