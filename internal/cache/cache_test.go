package cache

import (
	"testing"
	"time"

	"github.com/tjfontaine/headline-restyler/internal/domain"
)

func TestKey(t *testing.T) {
	base := domain.NewTransformRequest("h", "a", "b", domain.WithProvider(domain.ProviderTest))

	tests := []struct {
		name  string
		other domain.TransformRequest
		same  bool
	}{
		{"identical", domain.NewTransformRequest("h", "a", "b", domain.WithProvider(domain.ProviderTest)), true},
		{"different provider", domain.NewTransformRequest("h", "a", "b", domain.WithProvider(domain.ProviderOpenAI)), false},
		{"different fallback", domain.NewTransformRequest("h", "a", "b", domain.WithProvider(domain.ProviderTest), domain.WithoutFallback()), false},
		{"different author", domain.NewTransformRequest("h", "z", "b", domain.WithProvider(domain.ProviderTest)), false},
		{"field boundary", domain.NewTransformRequest("ha", "", "b", domain.WithProvider(domain.ProviderTest)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Key(base) == Key(tt.other); got != tt.same {
				t.Errorf("Key equality = %v, want %v", got, tt.same)
			}
		})
	}
}

func TestCache_SetGet(t *testing.T) {
	c, err := New(100, time.Minute)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	req := domain.NewTransformRequest("h", "a", "b")
	want := domain.TransformResult{OriginalHeadline: "h", TransformedHeadline: "H!", ProviderUsed: domain.ProviderOpenAI}

	if _, ok := c.Get(req); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Set(req, want)
	c.Wait()

	got, ok := c.Get(req)
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if got != want {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}
}

func TestCache_Expires(t *testing.T) {
	c, err := New(100, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	req := domain.NewTransformRequest("h", "a", "b")
	c.Set(req, domain.TransformResult{TransformedHeadline: "x"})
	c.Wait()

	time.Sleep(50 * time.Millisecond)
	if _, ok := c.Get(req); ok {
		t.Error("expected entry to expire")
	}
}
