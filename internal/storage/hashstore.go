package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_hash_store.go -package=mocks storyrag/internal/storage HashStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when no hash record exists for a path.
var ErrNotFound = errors.New("not found")

// HashStore is the persisted mapping from document path to the content
// hash recorded at its last successful indexing. A document's record is
// only written after its chunks are safely upserted, so a stale record
// triggers a safe re-index rather than a false skip.
type HashStore interface {
	// Get returns the recorded hash for a path. ErrNotFound if absent.
	Get(ctx context.Context, path string) (string, error)
	// Set records the hash for a path, overwriting any previous record.
	Set(ctx context.Context, path, hash string) error
	// Delete removes the record for a path.
	Delete(ctx context.Context, path string) error
	// ListPaths returns all recorded paths in ascending order.
	ListPaths(ctx context.Context) ([]string, error)
}

// HashRepo implements HashStore on the SQLite sidecar.
type HashRepo struct {
	db *sql.DB
}

var _ HashStore = (*HashRepo)(nil)

// NewHashRepo creates a new HashRepo.
func NewHashRepo(db *sql.DB) *HashRepo {
	return &HashRepo{db: db}
}

// Get returns the recorded hash for a path. ErrNotFound if absent.
func (r *HashRepo) Get(ctx context.Context, path string) (string, error) {
	var hash string
	err := r.db.QueryRowContext(ctx,
		"SELECT hash FROM document_hashes WHERE path = ?", path,
	).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query hash record: %w", err)
	}
	return hash, nil
}

// Set records the hash for a path, overwriting any previous record.
func (r *HashRepo) Set(ctx context.Context, path, hash string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO document_hashes (path, hash) VALUES (?, ?)
		 ON CONFLICT(path) DO UPDATE SET hash = excluded.hash, indexed_at = CURRENT_TIMESTAMP`,
		path, hash,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert hash record: %w", err)
	}
	return nil
}

// Delete removes the record for a path.
func (r *HashRepo) Delete(ctx context.Context, path string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM document_hashes WHERE path = ?", path)
	if err != nil {
		return fmt.Errorf("failed to delete hash record: %w", err)
	}
	return nil
}

// ListPaths returns all recorded paths in ascending order.
func (r *HashRepo) ListPaths(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT path FROM document_hashes ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("failed to query hash records: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("failed to scan path: %w", err)
		}
		paths = append(paths, path)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return paths, nil
}
