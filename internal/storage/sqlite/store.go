package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tjfontaine/headline-restyler/internal/domain"
	"github.com/tjfontaine/headline-restyler/internal/storage"
)

// Store is a SQLite implementation of TransformStore
type Store struct {
	db *sql.DB
}

var _ storage.TransformStore = (*Store)(nil)

// New creates a new SQLite store
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS transforms (
			id TEXT PRIMARY KEY,
			headline TEXT NOT NULL,
			author TEXT NOT NULL,
			transformed_headline TEXT NOT NULL,
			provider_requested TEXT NOT NULL,
			provider_used TEXT NOT NULL,
			fallback_used INTEGER NOT NULL DEFAULT 0,
			duration_ns INTEGER NOT NULL DEFAULT 0,
			metadata TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transforms_author ON transforms(author)`,
		`CREATE INDEX IF NOT EXISTS idx_transforms_created ON transforms(created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

func (s *Store) SaveTransform(ctx context.Context, rec *storage.TransformRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `INSERT INTO transforms (id, headline, author, transformed_headline, provider_requested,
	          provider_used, fallback_used, duration_ns, metadata, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.Headline, rec.Author, rec.TransformedHeadline,
		string(rec.ProviderRequested), string(rec.ProviderUsed),
		rec.FallbackUsed, int64(rec.Duration), string(metadata), rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert transform: %w", err)
	}
	return nil
}

func (s *Store) GetTransform(ctx context.Context, id string) (*storage.TransformRecord, error) {
	query := `SELECT id, headline, author, transformed_headline, provider_requested, provider_used,
	          fallback_used, duration_ns, metadata, created_at
	          FROM transforms WHERE id = ?`

	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transform %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transform: %w", err)
	}
	return rec, nil
}

func (s *Store) ListTransforms(ctx context.Context, opts storage.ListOptions) ([]*storage.TransformRecord, error) {
	opts = opts.Normalize()

	query := `SELECT id, headline, author, transformed_headline, provider_requested, provider_used,
	          fallback_used, duration_ns, metadata, created_at
	          FROM transforms`
	var args []any
	if opts.Author != "" {
		query += ` WHERE author = ?`
		args = append(args, opts.Author)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`
	args = append(args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transforms: %w", err)
	}
	defer rows.Close()

	var out []*storage.TransformRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transform: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*storage.TransformRecord, error) {
	var (
		rec               storage.TransformRecord
		providerRequested string
		providerUsed      string
		durationNS        int64
		metadataJSON      sql.NullString
	)

	err := row.Scan(&rec.ID, &rec.Headline, &rec.Author, &rec.TransformedHeadline,
		&providerRequested, &providerUsed, &rec.FallbackUsed, &durationNS, &metadataJSON, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}

	rec.ProviderRequested = domain.ProviderKind(providerRequested)
	rec.ProviderUsed = domain.ProviderKind(providerUsed)
	rec.Duration = time.Duration(durationNS)

	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &rec, nil
}
