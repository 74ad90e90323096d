package transform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tjfontaine/headline-restyler/internal/cache"
	"github.com/tjfontaine/headline-restyler/internal/domain"
	"github.com/tjfontaine/headline-restyler/internal/provider"
	"github.com/tjfontaine/headline-restyler/internal/provider/echo"
	"github.com/tjfontaine/headline-restyler/internal/storage"
	"github.com/tjfontaine/headline-restyler/internal/storage/memory"
)

const (
	scenarioHeadline = "Scientists discover new deep-sea creatures"
	scenarioAuthor   = "Scott Alexander"
	scenarioBody     = "Marine biologists discovered several new species..."
)

// stubGenerator returns a fixed answer and counts calls.
type stubGenerator struct {
	kind  domain.ProviderKind
	text  string
	err   error
	calls atomic.Int64
	last  domain.Prompt
	mu    sync.Mutex
}

func (g *stubGenerator) Kind() domain.ProviderKind { return g.kind }

func (g *stubGenerator) Generate(_ context.Context, p domain.Prompt) (string, error) {
	g.calls.Add(1)
	g.mu.Lock()
	g.last = p
	g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	return g.text, nil
}

func failing(kind domain.ProviderKind) *stubGenerator {
	return &stubGenerator{
		kind: kind,
		err: &domain.GenerationFailedError{
			Kind:       kind,
			StatusCode: 401,
			Err:        errors.New("invalid_api_key"),
		},
	}
}

type testEnv struct {
	registry      *provider.Registry
	constructs    map[domain.ProviderKind]*atomic.Int64
	logs          *bytes.Buffer
	serviceLogger *slog.Logger
}

// newEnv registers the echo backend under "test" and gen under its kind.
// constructErr, when set, makes gen's factory fail instead.
func newEnv(t *testing.T, gen *stubGenerator, constructErr error) *testEnv {
	t.Helper()

	env := &testEnv{
		registry:   provider.NewRegistry(),
		constructs: map[domain.ProviderKind]*atomic.Int64{},
		logs:       &bytes.Buffer{},
	}
	env.serviceLogger = slog.New(slog.NewTextHandler(env.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	testCount := &atomic.Int64{}
	env.constructs[domain.ProviderTest] = testCount
	env.registry.MustRegister(provider.Factory{
		Kind: domain.ProviderTest,
		Create: func() (domain.TextGenerator, error) {
			testCount.Add(1)
			return echo.New(), nil
		},
	})

	if gen != nil {
		count := &atomic.Int64{}
		env.constructs[gen.kind] = count
		env.registry.MustRegister(provider.Factory{
			Kind: gen.kind,
			Create: func() (domain.TextGenerator, error) {
				count.Add(1)
				if constructErr != nil {
					return nil, constructErr
				}
				return gen, nil
			},
		})
	}
	return env
}

func (e *testEnv) service(opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = e.serviceLogger
	}
	return NewService(e.registry, opts)
}

func TestTransformHeadline_ConcreteScenario(t *testing.T) {
	env := newEnv(t, nil, nil)
	svc := env.service(Options{})

	req := domain.NewTransformRequest(scenarioHeadline, scenarioAuthor, scenarioBody,
		domain.WithProvider(domain.ProviderTest))

	got, err := svc.TransformHeadline(context.Background(), req)
	if err != nil {
		t.Fatalf("TransformHeadline() error = %v", err)
	}

	want := domain.TransformResult{
		OriginalHeadline:    scenarioHeadline,
		TransformedHeadline: "TEST : Scientists discover new deep-sea creatures",
		ProviderUsed:        domain.ProviderTest,
	}
	if *got != want {
		t.Errorf("TransformHeadline() = %+v, want %+v", *got, want)
	}
}

func TestTransformHeadline_PrimarySucceeds(t *testing.T) {
	gen := &stubGenerator{kind: domain.ProviderOpenAI, text: "The Abyss Stares Back"}
	env := newEnv(t, gen, nil)
	svc := env.service(Options{})

	req := domain.NewTransformRequest(scenarioHeadline, scenarioAuthor, scenarioBody)
	got, err := svc.TransformHeadline(context.Background(), req)
	if err != nil {
		t.Fatalf("TransformHeadline() error = %v", err)
	}

	if got.ProviderUsed != domain.ProviderOpenAI || got.FallbackUsed {
		t.Errorf("ProviderUsed = %s, FallbackUsed = %v", got.ProviderUsed, got.FallbackUsed)
	}
	if got.TransformedHeadline != "The Abyss Stares Back" {
		t.Errorf("TransformedHeadline = %q", got.TransformedHeadline)
	}
	if n := env.constructs[domain.ProviderTest].Load(); n != 0 {
		t.Errorf("fallback constructed %d times, want 0", n)
	}

	gen.mu.Lock()
	prompt := gen.last
	gen.mu.Unlock()
	if prompt.System != SystemPrompt {
		t.Errorf("system prompt not passed to backend")
	}
	for _, part := range []string{scenarioHeadline, scenarioAuthor, scenarioBody} {
		if !strings.Contains(prompt.User, part) {
			t.Errorf("user prompt %q missing %q", prompt.User, part)
		}
	}
}

func TestTransformHeadline_FallbackEngages(t *testing.T) {
	gen := failing(domain.ProviderOpenAI)
	env := newEnv(t, gen, nil)
	svc := env.service(Options{})

	req := domain.NewTransformRequest(scenarioHeadline, scenarioAuthor, scenarioBody,
		domain.WithProvider(domain.ProviderOpenAI), domain.WithFallback(domain.ProviderTest))

	got, err := svc.TransformHeadline(context.Background(), req)
	if err != nil {
		t.Fatalf("TransformHeadline() error = %v", err)
	}

	if got.ProviderUsed != domain.ProviderTest {
		t.Errorf("ProviderUsed = %s, want test", got.ProviderUsed)
	}
	if !got.FallbackUsed {
		t.Error("FallbackUsed = false, want true")
	}
	if got.TransformedHeadline != "TEST : "+scenarioHeadline {
		t.Errorf("TransformedHeadline = %q", got.TransformedHeadline)
	}
	if n := gen.calls.Load(); n != 1 {
		t.Errorf("primary called %d times, want exactly 1", n)
	}
	if !strings.Contains(env.logs.String(), "primary provider failed, using fallback") {
		t.Errorf("expected a fallback warning, logs:\n%s", env.logs.String())
	}
}

func TestTransformHeadline_NoFallback(t *testing.T) {
	gen := failing(domain.ProviderOpenAI)
	env := newEnv(t, gen, nil)
	svc := env.service(Options{})

	req := domain.NewTransformRequest(scenarioHeadline, scenarioAuthor, scenarioBody,
		domain.WithoutFallback())

	got, err := svc.TransformHeadline(context.Background(), req)
	if got != nil {
		t.Errorf("TransformHeadline() result = %+v, want nil", got)
	}

	var failed *domain.TransformFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("TransformHeadline() error = %v, want TransformFailedError", err)
	}
	if failed.Provider != domain.ProviderOpenAI || failed.FallbackErr != nil {
		t.Errorf("TransformFailedError = %+v", failed)
	}

	var genErr *domain.GenerationFailedError
	if !errors.As(err, &genErr) || genErr.StatusCode != 401 {
		t.Errorf("cause = %v, want the primary GenerationFailedError", err)
	}
	if n := env.constructs[domain.ProviderTest].Load(); n != 0 {
		t.Errorf("test backend constructed %d times, want 0", n)
	}
}

func TestTransformHeadline_FallbackAlsoFails(t *testing.T) {
	primary := failing(domain.ProviderOpenAI)
	env := newEnv(t, primary, nil)

	second := failing("backup")
	env.registry.MustRegister(provider.Factory{
		Kind:   "backup",
		Create: func() (domain.TextGenerator, error) { return second, nil },
	})
	svc := env.service(Options{})

	req := domain.NewTransformRequest(scenarioHeadline, scenarioAuthor, scenarioBody,
		domain.WithFallback("backup"))

	_, err := svc.TransformHeadline(context.Background(), req)

	var failed *domain.TransformFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("TransformHeadline() error = %v, want TransformFailedError", err)
	}
	if failed.Fallback != "backup" || failed.FallbackErr == nil {
		t.Errorf("TransformFailedError = %+v, want fallback error attached", failed)
	}
	if primary.calls.Load() != 1 || second.calls.Load() != 1 {
		t.Errorf("calls primary=%d fallback=%d, want 1 each", primary.calls.Load(), second.calls.Load())
	}
}

func TestTransformHeadline_FallbackSameAsPrimary(t *testing.T) {
	gen := failing(domain.ProviderOpenAI)
	env := newEnv(t, gen, nil)
	svc := env.service(Options{})

	req := domain.NewTransformRequest(scenarioHeadline, scenarioAuthor, scenarioBody,
		domain.WithFallback(domain.ProviderOpenAI))

	_, err := svc.TransformHeadline(context.Background(), req)

	var failed *domain.TransformFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("TransformHeadline() error = %v, want TransformFailedError", err)
	}
	if n := gen.calls.Load(); n != 2 {
		t.Errorf("generate called %d times, want 2 (one primary, one fallback)", n)
	}
}

func TestTransformHeadline_UnsupportedProvider(t *testing.T) {
	tests := []struct {
		name string
		opts []domain.RequestOption
	}{
		{"primary", []domain.RequestOption{domain.WithProvider("claude")}},
		{"fallback", []domain.RequestOption{domain.WithProvider(domain.ProviderOpenAI), domain.WithFallback("claude")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &stubGenerator{kind: domain.ProviderOpenAI, text: "never"}
			env := newEnv(t, gen, nil)
			svc := env.service(Options{})

			req := domain.NewTransformRequest(scenarioHeadline, scenarioAuthor, scenarioBody, tt.opts...)
			_, err := svc.TransformHeadline(context.Background(), req)

			var unsupported *domain.UnsupportedProviderError
			if !errors.As(err, &unsupported) {
				t.Fatalf("TransformHeadline() error = %v, want UnsupportedProviderError", err)
			}
			if unsupported.Kind != "claude" {
				t.Errorf("Kind = %s, want claude", unsupported.Kind)
			}
			var failed *domain.TransformFailedError
			if errors.As(err, &failed) {
				t.Error("unsupported provider must not be wrapped in TransformFailedError")
			}
			if gen.calls.Load() != 0 {
				t.Error("a backend was called for an unsupported provider")
			}
			for kind, n := range env.constructs {
				if n.Load() != 0 {
					t.Errorf("%s constructed %d times, want 0", kind, n.Load())
				}
			}
		})
	}
}

func TestTransformHeadline_ReusesInstances(t *testing.T) {
	env := newEnv(t, nil, nil)
	svc := env.service(Options{})

	req := domain.NewTransformRequest(scenarioHeadline, scenarioAuthor, scenarioBody,
		domain.WithProvider(domain.ProviderTest))

	for i := 0; i < 2; i++ {
		if _, err := svc.TransformHeadline(context.Background(), req); err != nil {
			t.Fatalf("TransformHeadline() call %d error = %v", i, err)
		}
	}

	if n := env.constructs[domain.ProviderTest].Load(); n != 1 {
		t.Errorf("test backend constructed %d times, want 1", n)
	}
}

func TestTransformHeadline_ConstructionError(t *testing.T) {
	tests := []struct {
		name              string
		fallbackOnFailure bool
		wantFallback      bool
	}{
		{"propagates by default", false, false},
		{"engages fallback when enabled", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &stubGenerator{kind: domain.ProviderOpenAI, text: "unused"}
			env := newEnv(t, gen, domain.ErrMissingAPIKey)
			svc := env.service(Options{FallbackOnConstructionError: tt.fallbackOnFailure})

			req := domain.NewTransformRequest(scenarioHeadline, scenarioAuthor, scenarioBody)
			got, err := svc.TransformHeadline(context.Background(), req)

			if tt.wantFallback {
				if err != nil {
					t.Fatalf("TransformHeadline() error = %v", err)
				}
				if got.ProviderUsed != domain.ProviderTest || !got.FallbackUsed {
					t.Errorf("result = %+v, want fallback to test", got)
				}
				return
			}

			var construction *domain.BackendConstructionError
			if !errors.As(err, &construction) {
				t.Fatalf("TransformHeadline() error = %v, want BackendConstructionError", err)
			}
			if !errors.Is(err, domain.ErrMissingAPIKey) {
				t.Errorf("error %v does not wrap ErrMissingAPIKey", err)
			}
			var failed *domain.TransformFailedError
			if errors.As(err, &failed) {
				t.Error("construction error should propagate unwrapped")
			}
			if n := env.constructs[domain.ProviderTest].Load(); n != 0 {
				t.Errorf("fallback constructed %d times, want 0", n)
			}
		})
	}
}

func TestTransformHeadline_EmptyOutputIsFailure(t *testing.T) {
	gen := &stubGenerator{kind: domain.ProviderOpenAI, text: "   "}
	env := newEnv(t, gen, nil)
	svc := env.service(Options{})

	t.Run("fallback engages", func(t *testing.T) {
		req := domain.NewTransformRequest(scenarioHeadline, scenarioAuthor, scenarioBody)
		got, err := svc.TransformHeadline(context.Background(), req)
		if err != nil {
			t.Fatalf("TransformHeadline() error = %v", err)
		}
		if got.ProviderUsed != domain.ProviderTest {
			t.Errorf("ProviderUsed = %s, want test", got.ProviderUsed)
		}
	})

	t.Run("no fallback", func(t *testing.T) {
		req := domain.NewTransformRequest(scenarioHeadline, scenarioAuthor, scenarioBody, domain.WithoutFallback())
		got, err := svc.TransformHeadline(context.Background(), req)
		if got != nil {
			t.Errorf("result = %+v, want nil", got)
		}
		if !errors.Is(err, domain.ErrEmptyOutput) {
			t.Errorf("error = %v, want ErrEmptyOutput", err)
		}
	})
}

func TestTransformHeadline_InvalidRequest(t *testing.T) {
	env := newEnv(t, nil, nil)
	svc := env.service(Options{})

	req := domain.NewTransformRequest("", scenarioAuthor, scenarioBody, domain.WithProvider(domain.ProviderTest))
	_, err := svc.TransformHeadline(context.Background(), req)
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Errorf("error = %v, want ErrInvalidRequest", err)
	}
	if n := env.constructs[domain.ProviderTest].Load(); n != 0 {
		t.Errorf("backend constructed %d times for an invalid request", n)
	}
}

func TestTransformHeadline_Cache(t *testing.T) {
	c, err := cache.New(100, time.Minute)
	if err != nil {
		t.Fatalf("cache.New() error = %v", err)
	}
	defer c.Close()

	gen := &stubGenerator{kind: domain.ProviderOpenAI, text: "The Abyss Stares Back"}
	env := newEnv(t, gen, nil)
	svc := env.service(Options{Cache: c})

	req := domain.NewTransformRequest(scenarioHeadline, scenarioAuthor, scenarioBody)

	first, err := svc.TransformHeadline(context.Background(), req)
	if err != nil {
		t.Fatalf("first TransformHeadline() error = %v", err)
	}
	c.Wait()

	second, err := svc.TransformHeadline(context.Background(), req)
	if err != nil {
		t.Fatalf("second TransformHeadline() error = %v", err)
	}

	if *first != *second {
		t.Errorf("cached result %+v differs from %+v", second, first)
	}
	if n := gen.calls.Load(); n != 1 {
		t.Errorf("generate called %d times, want 1", n)
	}
}

func TestTransformHeadline_FallbackResultNotCached(t *testing.T) {
	c, err := cache.New(100, time.Minute)
	if err != nil {
		t.Fatalf("cache.New() error = %v", err)
	}
	defer c.Close()

	gen := failing(domain.ProviderOpenAI)
	env := newEnv(t, gen, nil)
	svc := env.service(Options{Cache: c})

	req := domain.NewTransformRequest(scenarioHeadline, scenarioAuthor, scenarioBody)
	for i := 0; i < 2; i++ {
		if _, err := svc.TransformHeadline(context.Background(), req); err != nil {
			t.Fatalf("TransformHeadline() error = %v", err)
		}
		c.Wait()
	}

	if n := gen.calls.Load(); n != 2 {
		t.Errorf("primary called %d times, want 2", n)
	}
}

func TestTransformHeadline_Recorder(t *testing.T) {
	store := memory.New()
	gen := failing(domain.ProviderOpenAI)
	env := newEnv(t, gen, nil)
	svc := env.service(Options{Recorder: store})

	ctx := ContextWithRequestID(context.Background(), "req-123")
	req := domain.NewTransformRequest(scenarioHeadline, scenarioAuthor, scenarioBody)
	if _, err := svc.TransformHeadline(ctx, req); err != nil {
		t.Fatalf("TransformHeadline() error = %v", err)
	}

	recs, err := store.ListTransforms(context.Background(), storage.ListOptions{})
	if err != nil {
		t.Fatalf("ListTransforms() error = %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("recorded %d transforms, want 1", len(recs))
	}

	rec := recs[0]
	if rec.ID == "" {
		t.Error("record has no ID")
	}
	if rec.ProviderRequested != domain.ProviderOpenAI || rec.ProviderUsed != domain.ProviderTest || !rec.FallbackUsed {
		t.Errorf("record providers = %s/%s/%v", rec.ProviderRequested, rec.ProviderUsed, rec.FallbackUsed)
	}
	if rec.Metadata["request_id"] != "req-123" {
		t.Errorf("Metadata = %v", rec.Metadata)
	}
}

func TestTransformHeadline_FailuresNotRecorded(t *testing.T) {
	store := memory.New()
	env := newEnv(t, failing(domain.ProviderOpenAI), nil)
	svc := env.service(Options{Recorder: store})

	req := domain.NewTransformRequest(scenarioHeadline, scenarioAuthor, scenarioBody, domain.WithoutFallback())
	if _, err := svc.TransformHeadline(context.Background(), req); err == nil {
		t.Fatal("expected an error")
	}

	recs, _ := store.ListTransforms(context.Background(), storage.ListOptions{})
	if len(recs) != 0 {
		t.Errorf("recorded %d failed transforms", len(recs))
	}
}

type brokenStore struct {
	storage.TransformStore
}

func (brokenStore) SaveTransform(context.Context, *storage.TransformRecord) error {
	return errors.New("disk full")
}

func TestTransformHeadline_RecorderErrorIsLogged(t *testing.T) {
	env := newEnv(t, nil, nil)
	svc := env.service(Options{Recorder: brokenStore{}})

	req := domain.NewTransformRequest(scenarioHeadline, scenarioAuthor, scenarioBody, domain.WithProvider(domain.ProviderTest))
	if _, err := svc.TransformHeadline(context.Background(), req); err != nil {
		t.Fatalf("TransformHeadline() error = %v", err)
	}
	if !strings.Contains(env.logs.String(), "failed to record transform") {
		t.Errorf("expected recorder failure in logs:\n%s", env.logs.String())
	}
}

func TestTransformHeadline_Concurrent(t *testing.T) {
	gen := failing(domain.ProviderOpenAI)
	env := newEnv(t, gen, nil)
	svc := env.service(Options{})

	const workers = 32
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			headline := fmt.Sprintf("headline %d", i)
			req := domain.NewTransformRequest(headline, scenarioAuthor, scenarioBody)
			got, err := svc.TransformHeadline(context.Background(), req)
			if err != nil {
				errs <- err
				return
			}
			if got.TransformedHeadline != "TEST : "+headline {
				errs <- fmt.Errorf("got %q for %q", got.TransformedHeadline, headline)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	if n := gen.calls.Load(); n != workers {
		t.Errorf("primary called %d times, want %d", n, workers)
	}
}
