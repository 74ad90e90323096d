// Package app builds the restyler's components from configuration. Both the
// server and the CLI start from here.
package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tjfontaine/headline-restyler/internal/cache"
	"github.com/tjfontaine/headline-restyler/internal/config"
	"github.com/tjfontaine/headline-restyler/internal/provider"
	"github.com/tjfontaine/headline-restyler/internal/registration"
	"github.com/tjfontaine/headline-restyler/internal/storage"
	"github.com/tjfontaine/headline-restyler/internal/storage/memory"
	"github.com/tjfontaine/headline-restyler/internal/storage/sqlite"
	"github.com/tjfontaine/headline-restyler/internal/tokens"
	"github.com/tjfontaine/headline-restyler/internal/transform"
)

// App holds the wired components. Store and Cache are nil when disabled.
type App struct {
	Config   *config.Config
	Registry *provider.Registry
	Service  *transform.Service
	Store    storage.TransformStore
	Cache    *cache.Cache
}

// New wires the registry, cache, history store and transform service.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	reg, err := registration.NewRegistry(cfg)
	if err != nil {
		return nil, fmt.Errorf("register providers: %w", err)
	}

	a := &App{Config: cfg, Registry: reg}

	if cfg.Cache.Enabled {
		a.Cache, err = cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)
		if err != nil {
			return nil, fmt.Errorf("create cache: %w", err)
		}
	}

	a.Store, err = OpenStore(cfg.Storage)
	if err != nil {
		a.Close()
		return nil, err
	}

	opts := transform.Options{
		FallbackOnConstructionError: cfg.Transform.FallbackOnConstructionError,
		MaxBodyTokens:               cfg.Transform.MaxBodyTokens,
		Counter:                     tokens.NewCounter(cfg.Transform.TokenizerModel),
		Cache:                       a.Cache,
		Recorder:                    a.Store,
		Logger:                      logger,
	}
	a.Service = transform.NewService(reg, opts)

	logger.Info("restyler configured",
		slog.Any("providers", reg.Kinds()),
		slog.String("default_provider", cfg.Transform.DefaultProvider),
		slog.String("default_fallback", cfg.Transform.DefaultFallback),
		slog.String("storage", cfg.Storage.Type),
		slog.Bool("cache", cfg.Cache.Enabled),
	)
	return a, nil
}

// OpenStore opens the configured history store. It returns nil for "none".
func OpenStore(cfg config.StorageConfig) (storage.TransformStore, error) {
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "memory":
		return memory.New(), nil
	case "sqlite":
		if dir := filepath.Dir(cfg.SQLite.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create storage directory: %w", err)
			}
		}
		store, err := sqlite.New(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// Close releases the store and cache.
func (a *App) Close() error {
	var errs []error
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	if a.Cache != nil {
		a.Cache.Close()
	}
	return errors.Join(errs...)
}

// ParseLogLevel maps debug, info, warn and error to a slog level.
// Unknown values yield info.
func ParseLogLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
