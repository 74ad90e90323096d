package registration

import (
	"github.com/tjfontaine/headline-restyler/internal/config"
	"github.com/tjfontaine/headline-restyler/internal/domain"
	"github.com/tjfontaine/headline-restyler/internal/provider"
	"github.com/tjfontaine/headline-restyler/internal/provider/echo"
	"github.com/tjfontaine/headline-restyler/internal/provider/openai"
)

// RegisterBuiltins registers the built-in backends on reg explicitly.
// It is called from the binaries and from tests before a service is built.
// Backends are not constructed here, so a missing OpenAI key only surfaces
// when the openai provider is first resolved.
func RegisterBuiltins(reg *provider.Registry, cfg *config.Config) error {
	if err := reg.Register(provider.Factory{
		Kind:        echo.ProviderKind,
		Description: "Offline backend that echoes the headline with a TEST prefix",
		Create:      echo.CreateFromConfig,
	}); err != nil {
		return err
	}

	openaiCfg := cfg.OpenAI
	return reg.Register(provider.Factory{
		Kind:        openai.ProviderKind,
		Description: "OpenAI chat completions",
		Create: func() (domain.TextGenerator, error) {
			return openai.CreateFromConfig(openaiCfg)
		},
	})
}

// NewRegistry returns a registry with the built-ins registered.
func NewRegistry(cfg *config.Config) (*provider.Registry, error) {
	reg := provider.NewRegistry()
	if err := RegisterBuiltins(reg, cfg); err != nil {
		return nil, err
	}
	return reg, nil
}
