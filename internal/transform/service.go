// Package transform restyles headlines through the provider registry,
// trying the primary backend once and a fallback backend at most once.
package transform

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/headline-restyler/internal/cache"
	"github.com/tjfontaine/headline-restyler/internal/domain"
	"github.com/tjfontaine/headline-restyler/internal/provider"
	"github.com/tjfontaine/headline-restyler/internal/storage"
	"github.com/tjfontaine/headline-restyler/internal/tokens"
)

// DefaultMaxBodyTokens bounds the article body sent to a backend.
const DefaultMaxBodyTokens = 1500

const tracerName = "github.com/tjfontaine/headline-restyler/internal/transform"

// Options configures a Service. The zero value is usable.
type Options struct {
	// FallbackOnConstructionError lets a primary backend that fails to
	// construct (for example a missing API key) engage the fallback. When
	// false the construction error is returned as-is.
	FallbackOnConstructionError bool

	// MaxBodyTokens trims the article body. Zero uses DefaultMaxBodyTokens,
	// a negative value disables trimming.
	MaxBodyTokens int

	// Counter counts body tokens. Nil uses the gpt-4o-mini encoding.
	Counter *tokens.Counter

	// Cache, when set, serves repeated requests without calling a backend.
	Cache *cache.Cache

	// Recorder, when set, stores every successful transform.
	Recorder storage.TransformStore

	Logger *slog.Logger
	Tracer trace.Tracer
}

// Service runs headline transforms.
type Service struct {
	registry *provider.Registry
	opts     Options
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewService creates a service resolving backends from registry.
func NewService(registry *provider.Registry, opts Options) *Service {
	if opts.MaxBodyTokens == 0 {
		opts.MaxBodyTokens = DefaultMaxBodyTokens
	}
	if opts.Counter == nil {
		opts.Counter = tokens.NewCounter("gpt-4o-mini")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return &Service{
		registry: registry,
		opts:     opts,
		logger:   logger,
		tracer:   tracer,
	}
}

// Registry returns the registry backends are resolved from.
func (s *Service) Registry() *provider.Registry {
	return s.registry
}

// TransformHeadline restyles req's headline.
//
// The primary backend is tried once. If its generate call fails and the
// request names a fallback, the fallback is tried once. Unknown provider
// kinds are rejected with *domain.UnsupportedProviderError before any backend
// is built. When nothing succeeds the error is a *domain.TransformFailedError
// carrying the primary failure, except for a primary construction failure
// with FallbackOnConstructionError unset, which is returned as the
// *domain.BackendConstructionError itself.
func (s *Service) TransformHeadline(ctx context.Context, req domain.TransformRequest) (*domain.TransformResult, error) {
	ctx, span := s.tracer.Start(ctx, "transform.TransformHeadline",
		trace.WithAttributes(attribute.String("provider.kind", req.Provider().String())))
	defer span.End()

	result, err := s.transform(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.String("provider.used", result.ProviderUsed.String()),
		attribute.Bool("transform.fallback_used", result.FallbackUsed),
	)
	return result, nil
}

func (s *Service) transform(ctx context.Context, req domain.TransformRequest) (*domain.TransformResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	primary := req.Provider()
	fallback, hasFallback := req.Fallback()

	if err := s.registry.Check(primary); err != nil {
		return nil, err
	}
	if hasFallback {
		if err := s.registry.Check(fallback); err != nil {
			return nil, err
		}
	}

	if s.opts.Cache != nil {
		if cached, ok := s.opts.Cache.Get(req); ok {
			s.logger.Debug("transform cache hit", slog.String("provider", cached.ProviderUsed.String()))
			return &cached, nil
		}
	}

	start := time.Now()
	prompt := BuildPrompt(req, s.opts.Counter, s.opts.MaxBodyTokens)

	text, primaryErr := s.generate(ctx, primary, prompt)
	if primaryErr == nil {
		return s.finish(ctx, req, text, primary, false, start), nil
	}

	var construction *domain.BackendConstructionError
	if errors.As(primaryErr, &construction) && !s.opts.FallbackOnConstructionError {
		return nil, primaryErr
	}

	if !hasFallback {
		return nil, &domain.TransformFailedError{Provider: primary, Cause: primaryErr}
	}

	s.logger.Warn("primary provider failed, using fallback",
		slog.String("provider", primary.String()),
		slog.String("fallback", fallback.String()),
		slog.String("error", primaryErr.Error()),
	)

	text, fallbackErr := s.generate(ctx, fallback, prompt)
	if fallbackErr != nil {
		return nil, &domain.TransformFailedError{
			Provider:    primary,
			Cause:       primaryErr,
			Fallback:    fallback,
			FallbackErr: fallbackErr,
		}
	}
	return s.finish(ctx, req, text, fallback, true, start), nil
}

// generate resolves kind with reuse and runs a single generate call.
func (s *Service) generate(ctx context.Context, kind domain.ProviderKind, prompt domain.Prompt) (string, error) {
	ctx, span := s.tracer.Start(ctx, "transform.generate",
		trace.WithAttributes(attribute.String("provider.kind", kind.String())))
	defer span.End()

	gen, err := s.registry.Resolve(kind, true)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	text, err := gen.Generate(ctx, prompt)
	if err == nil && strings.TrimSpace(text) == "" {
		err = &domain.GenerationFailedError{Kind: kind, Err: domain.ErrEmptyOutput}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return text, nil
}

func (s *Service) finish(ctx context.Context, req domain.TransformRequest, text string, used domain.ProviderKind, fallbackUsed bool, start time.Time) *domain.TransformResult {
	result := domain.TransformResult{
		OriginalHeadline:    req.Headline(),
		TransformedHeadline: text,
		ProviderUsed:        used,
		FallbackUsed:        fallbackUsed,
	}

	// Degraded results are not cached so the primary is retried next time.
	if s.opts.Cache != nil && !fallbackUsed {
		s.opts.Cache.Set(req, result)
	}

	if s.opts.Recorder != nil {
		s.record(ctx, req, result, time.Since(start))
	}
	return &result
}

func (s *Service) record(ctx context.Context, req domain.TransformRequest, result domain.TransformResult, elapsed time.Duration) {
	rec := &storage.TransformRecord{
		ID:                  uuid.New().String(),
		Headline:            req.Headline(),
		Author:              req.Author(),
		TransformedHeadline: result.TransformedHeadline,
		ProviderRequested:   req.Provider(),
		ProviderUsed:        result.ProviderUsed,
		FallbackUsed:        result.FallbackUsed,
		Duration:            elapsed,
		CreatedAt:           time.Now(),
	}
	if id, ok := RequestIDFromContext(ctx); ok {
		rec.Metadata = map[string]string{"request_id": id}
	}

	// Use a context that survives the request being cancelled.
	saveCtx := context.WithoutCancel(ctx)
	if err := s.opts.Recorder.SaveTransform(saveCtx, rec); err != nil {
		s.logger.Error("failed to record transform",
			slog.String("id", rec.ID),
			slog.String("error", err.Error()),
		)
	}
}
