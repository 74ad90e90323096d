package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tjfontaine/headline-restyler/internal/storage"
)

// Store is an in-memory implementation of TransformStore
type Store struct {
	mu      sync.RWMutex
	records map[string]*storage.TransformRecord
	order   []string
}

var _ storage.TransformStore = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		records: make(map[string]*storage.TransformRecord),
	}
}

func (s *Store) SaveTransform(ctx context.Context, rec *storage.TransformRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; exists {
		return fmt.Errorf("transform %s already exists", rec.ID)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	stored := *rec
	s.records[rec.ID] = &stored
	s.order = append(s.order, rec.ID)
	return nil
}

func (s *Store) GetTransform(ctx context.Context, id string) (*storage.TransformRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.records[id]
	if !exists {
		return nil, fmt.Errorf("transform %s: %w", id, storage.ErrNotFound)
	}
	out := *rec
	return &out, nil
}

func (s *Store) ListTransforms(ctx context.Context, opts storage.ListOptions) ([]*storage.TransformRecord, error) {
	opts = opts.Normalize()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*storage.TransformRecord
	skipped := 0
	for i := len(s.order) - 1; i >= 0 && len(out) < opts.Limit; i-- {
		rec := s.records[s.order[i]]
		if opts.Author != "" && rec.Author != opts.Author {
			continue
		}
		if skipped < opts.Offset {
			skipped++
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) Close() error {
	return nil
}
