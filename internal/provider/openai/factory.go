package openai

import (
	"net/http"

	"github.com/tjfontaine/headline-restyler/internal/config"
	"github.com/tjfontaine/headline-restyler/internal/domain"
)

// ProviderKind is the kind this backend registers under.
const ProviderKind = domain.ProviderOpenAI

// CreateFromConfig creates a new OpenAI provider from configuration.
// This function is used by the provider registry factory.
func CreateFromConfig(cfg config.OpenAIConfig) (domain.TextGenerator, error) {
	opts := []ProviderOption{WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	if cfg.MaxTokens > 0 {
		opts = append(opts, WithMaxTokens(cfg.MaxTokens))
	}
	if cfg.Temperature != nil {
		opts = append(opts, WithTemperature(float32(*cfg.Temperature)))
	}

	p, err := New(cfg.APIKey, opts...)
	if err != nil {
		return nil, err
	}
	return p, nil
}
