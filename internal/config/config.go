// Package config loads service configuration from config.yaml and
// RESTYLE_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tjfontaine/headline-restyler/internal/domain"
)

// DefaultPath is the config file read when none is given.
const DefaultPath = "config.yaml"

// EnvPrefix prefixes environment overrides. Nested keys use a double
// underscore: RESTYLE_OPENAI__API_KEY sets openai.api_key.
const EnvPrefix = "RESTYLE_"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	OpenAI    OpenAIConfig    `koanf:"openai"`
	Transform TransformConfig `koanf:"transform"`
	Cache     CacheConfig     `koanf:"cache"`
	Storage   StorageConfig   `koanf:"storage"`
	Auth      AuthConfig      `koanf:"auth"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	CORSOrigins []string      `koanf:"cors_origins"`
}

type LogConfig struct {
	Level string `koanf:"level"` // debug, info, warn, error
}

type OpenAIConfig struct {
	APIKey      string        `koanf:"api_key"`
	BaseURL     string        `koanf:"base_url"`
	Model       string        `koanf:"model"`
	Timeout     time.Duration `koanf:"timeout"`
	MaxTokens   int           `koanf:"max_tokens"`
	Temperature *float64      `koanf:"temperature"`
}

type TransformConfig struct {
	DefaultProvider string `koanf:"default_provider"`
	// DefaultFallback is used when a request does not name one. Empty disables it.
	DefaultFallback             string `koanf:"default_fallback"`
	FallbackOnConstructionError bool   `koanf:"fallback_on_construction_error"`
	MaxBodyTokens               int    `koanf:"max_body_tokens"`
	// TokenizerModel selects the tiktoken encoding used for body truncation.
	TokenizerModel string `koanf:"tokenizer_model"`
}

// RequestDefaults returns the request options that apply the configured
// provider and fallback. An empty default_fallback disables the fallback.
func (t TransformConfig) RequestDefaults() []domain.RequestOption {
	opts := []domain.RequestOption{domain.WithProvider(domain.ProviderKind(t.DefaultProvider))}
	if t.DefaultFallback == "" {
		opts = append(opts, domain.WithoutFallback())
	} else {
		opts = append(opts, domain.WithFallback(domain.ProviderKind(t.DefaultFallback)))
	}
	return opts
}

type CacheConfig struct {
	Enabled    bool          `koanf:"enabled"`
	TTL        time.Duration `koanf:"ttl"`
	MaxEntries int64         `koanf:"max_entries"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, memory, none
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type AuthConfig struct {
	APIKeys []APIKeyConfig `koanf:"api_keys"`
}

type APIKeyConfig struct {
	KeyHash     string `koanf:"key_hash"`
	Description string `koanf:"description"`
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

var defaults = map[string]any{
	"server.port":                              8080,
	"server.timeout":                           "30s",
	"log.level":                                "info",
	"openai.model":                             "gpt-4o-mini",
	"openai.timeout":                           "60s",
	"transform.default_provider":               "openai",
	"transform.default_fallback":               "test",
	"transform.fallback_on_construction_error": false,
	"transform.max_body_tokens":                1500,
	"transform.tokenizer_model":                "gpt-4o-mini",
	"cache.enabled":                            false,
	"cache.ttl":                                "10m",
	"cache.max_entries":                        10000,
	"storage.type":                             "none",
	"storage.sqlite.path":                      "./data/restyler.db",
	"telemetry.enabled":                        false,
	"telemetry.service_name":                   "headline-restyler",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads DefaultPath (if present) and the environment.
func Load() (*Config, error) {
	return LoadFile(DefaultPath)
}

// LoadFile reads path (missing files are ignored) and then the environment,
// which overrides the file.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// File not found is OK, we'll use env vars
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.OpenAI.APIKey = substituteEnvVars(cfg.OpenAI.APIKey)
	if cfg.OpenAI.APIKey == "" {
		// The conventional variable used by every OpenAI SDK.
		cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	cfg.OpenAI.BaseURL = substituteEnvVars(cfg.OpenAI.BaseURL)
	for i := range cfg.Auth.APIKeys {
		cfg.Auth.APIKeys[i].KeyHash = substituteEnvVars(cfg.Auth.APIKeys[i].KeyHash)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Storage.Type {
	case "", "none", "memory":
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			return errors.New("storage.sqlite.path is required for sqlite storage")
		}
	default:
		return fmt.Errorf("unknown storage.type %q", c.Storage.Type)
	}
	if c.Transform.MaxBodyTokens < 0 {
		return errors.New("transform.max_body_tokens must not be negative")
	}
	return nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
