// Package storagetest runs the same behavioural checks against every
// TransformStore implementation.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tjfontaine/headline-restyler/internal/domain"
	"github.com/tjfontaine/headline-restyler/internal/storage"
)

// Run exercises store. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) storage.TransformStore) {
	t.Run("SaveAndGet", func(t *testing.T) { testSaveAndGet(t, newStore(t)) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("DuplicateID", func(t *testing.T) { testDuplicateID(t, newStore(t)) })
	t.Run("ListNewestFirst", func(t *testing.T) { testListNewestFirst(t, newStore(t)) })
	t.Run("ListFilterAndPage", func(t *testing.T) { testListFilterAndPage(t, newStore(t)) })
}

func record(id, author string, created time.Time) *storage.TransformRecord {
	return &storage.TransformRecord{
		ID:                  id,
		Headline:            "Scientists discover new deep-sea creatures",
		Author:              author,
		TransformedHeadline: "TEST : Scientists discover new deep-sea creatures",
		ProviderRequested:   domain.ProviderOpenAI,
		ProviderUsed:        domain.ProviderTest,
		FallbackUsed:        true,
		Duration:            1500 * time.Millisecond,
		Metadata:            map[string]string{"request_id": "req-" + id},
		CreatedAt:           created,
	}
}

func testSaveAndGet(t *testing.T, s storage.TransformStore) {
	ctx := context.Background()
	want := record("rec-1", "Scott Alexander", time.Now().Add(-time.Minute).Truncate(time.Millisecond))

	if err := s.SaveTransform(ctx, want); err != nil {
		t.Fatalf("SaveTransform() error = %v", err)
	}

	got, err := s.GetTransform(ctx, "rec-1")
	if err != nil {
		t.Fatalf("GetTransform() error = %v", err)
	}

	if got.ID != want.ID || got.Author != want.Author || got.Headline != want.Headline {
		t.Errorf("GetTransform() = %+v, want %+v", got, want)
	}
	if got.TransformedHeadline != want.TransformedHeadline {
		t.Errorf("TransformedHeadline = %q, want %q", got.TransformedHeadline, want.TransformedHeadline)
	}
	if got.ProviderRequested != domain.ProviderOpenAI || got.ProviderUsed != domain.ProviderTest || !got.FallbackUsed {
		t.Errorf("provider fields = %s/%s/%v", got.ProviderRequested, got.ProviderUsed, got.FallbackUsed)
	}
	if got.Duration != want.Duration {
		t.Errorf("Duration = %v, want %v", got.Duration, want.Duration)
	}
	if got.Metadata["request_id"] != "req-rec-1" {
		t.Errorf("Metadata = %v", got.Metadata)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, want.CreatedAt)
	}
}

func testGetMissing(t *testing.T, s storage.TransformStore) {
	_, err := s.GetTransform(context.Background(), "nope")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetTransform() error = %v, want ErrNotFound", err)
	}
}

func testDuplicateID(t *testing.T, s storage.TransformStore) {
	ctx := context.Background()
	if err := s.SaveTransform(ctx, record("dup", "a", time.Now())); err != nil {
		t.Fatalf("SaveTransform() error = %v", err)
	}
	if err := s.SaveTransform(ctx, record("dup", "a", time.Now())); err == nil {
		t.Error("expected error saving a duplicate id")
	}
}

func testListNewestFirst(t *testing.T, s storage.TransformStore) {
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		rec := record(fmt.Sprintf("rec-%d", i), "a", base.Add(time.Duration(i)*time.Minute))
		if err := s.SaveTransform(ctx, rec); err != nil {
			t.Fatalf("SaveTransform() error = %v", err)
		}
	}

	got, err := s.ListTransforms(ctx, storage.ListOptions{})
	if err != nil {
		t.Fatalf("ListTransforms() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ListTransforms() returned %d records, want 3", len(got))
	}
	for i, id := range []string{"rec-2", "rec-1", "rec-0"} {
		if got[i].ID != id {
			t.Errorf("record %d = %s, want %s", i, got[i].ID, id)
		}
	}
}

func testListFilterAndPage(t *testing.T, s storage.TransformStore) {
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	authors := []string{"Scott Alexander", "Hunter S. Thompson", "Scott Alexander", "Scott Alexander"}
	for i, author := range authors {
		rec := record(fmt.Sprintf("rec-%d", i), author, base.Add(time.Duration(i)*time.Minute))
		if err := s.SaveTransform(ctx, rec); err != nil {
			t.Fatalf("SaveTransform() error = %v", err)
		}
	}

	got, err := s.ListTransforms(ctx, storage.ListOptions{Author: "Scott Alexander", Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("ListTransforms() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListTransforms() returned %d records, want 2", len(got))
	}
	if got[0].ID != "rec-2" || got[1].ID != "rec-0" {
		t.Errorf("ListTransforms() ids = %s,%s; want rec-2,rec-0", got[0].ID, got[1].ID)
	}

	got, err = s.ListTransforms(ctx, storage.ListOptions{Author: "Nobody"})
	if err != nil {
		t.Fatalf("ListTransforms() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("ListTransforms(Nobody) returned %d records", len(got))
	}
}
