package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/tjfontaine/headline-restyler/internal/storage"
	"github.com/tjfontaine/headline-restyler/internal/storage/storagetest"
)

var dbCounter atomic.Int64

func newTestStore(t *testing.T) *Store {
	t.Helper()
	// Use in-memory SQLite with shared cache for testing
	dsn := fmt.Sprintf("file:transforms%d?mode=memory&cache=shared", dbCounter.Add(1))
	store, err := New(dsn)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.TransformStore {
		return newTestStore(t)
	})
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "restyler.db")
	ctx := context.Background()

	store, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := store.SaveTransform(ctx, &storage.TransformRecord{
		ID:                  "persisted",
		Headline:            "h",
		Author:              "a",
		TransformedHeadline: "t",
		ProviderRequested:   "openai",
		ProviderUsed:        "openai",
	}); err != nil {
		t.Fatalf("SaveTransform() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("New() reopen error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetTransform(ctx, "persisted")
	if err != nil {
		t.Fatalf("GetTransform() error = %v", err)
	}
	if got.TransformedHeadline != "t" {
		t.Errorf("TransformedHeadline = %q, want t", got.TransformedHeadline)
	}
	if got.Metadata != nil {
		t.Errorf("Metadata = %v, want nil", got.Metadata)
	}
}
