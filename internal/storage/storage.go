// Package storage defines the history of completed transforms.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/tjfontaine/headline-restyler/internal/domain"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// TransformRecord is one successful transform.
type TransformRecord struct {
	ID                  string              `json:"id"`
	Headline            string              `json:"headline"`
	Author              string              `json:"author"`
	TransformedHeadline string              `json:"transformedHeadline"`
	ProviderRequested   domain.ProviderKind `json:"providerRequested"`
	ProviderUsed        domain.ProviderKind `json:"providerUsed"`
	FallbackUsed        bool                `json:"fallbackUsed"`
	Duration            time.Duration       `json:"durationNs"`
	Metadata            map[string]string   `json:"metadata,omitempty"`
	CreatedAt           time.Time           `json:"createdAt"`
}

// ListOptions filters and pages ListTransforms.
type ListOptions struct {
	Limit  int
	Offset int
	// Author restricts results to one author when set.
	Author string
}

// Normalize applies the default and maximum limit.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// TransformStore persists transform history. Implementations are safe for
// concurrent use.
type TransformStore interface {
	SaveTransform(ctx context.Context, rec *TransformRecord) error
	GetTransform(ctx context.Context, id string) (*TransformRecord, error)
	// ListTransforms returns records newest first.
	ListTransforms(ctx context.Context, opts ListOptions) ([]*TransformRecord, error)
	Close() error
}
