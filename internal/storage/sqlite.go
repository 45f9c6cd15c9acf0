package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/ragctx/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidItem is returned when an upsert item fails validation
	ErrInvalidItem = errors.New("invalid upsert item")
	// ErrDimensionMismatch is returned when vector sizes differ within a collection
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Ensure SQLiteStorage implements the interface.
var _ Storage = (*SQLiteStorage)(nil)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Single connection: SQLite has one writer, and ":memory:" databases are per-connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Upsert writes all items in one transaction. Each row's text, metadata and
// vector are replaced by a single statement, so readers never observe a chunk
// paired with a stale vector.
func (s *SQLiteStorage) Upsert(ctx context.Context, collection string, items []UpsertItem) error {
	if len(items) == 0 {
		return nil
	}

	dim, err := validateItems(collection, items)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := collectionDimension(ctx, tx, collection)
	if err != nil {
		return err
	}
	if existing != 0 && existing != dim {
		return fmt.Errorf("%w: collection %q has dimension %d, got %d", ErrDimensionMismatch, collection, existing, dim)
	}

	for i := range items {
		if err := upsertChunkWithQuerier(ctx, tx, &items[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// validateItems checks every item and returns the shared vector dimension
func validateItems(collection string, items []UpsertItem) (int, error) {
	if collection == "" {
		return 0, fmt.Errorf("%w: collection is required", ErrInvalidItem)
	}

	dim := len(items[0].Vector)
	for i := range items {
		item := &items[i]
		if err := item.Chunk.Validate(); err != nil {
			return 0, fmt.Errorf("%w: item %d: %v", ErrInvalidItem, i, err)
		}
		if item.Chunk.Metadata.Collection != collection {
			return 0, fmt.Errorf("%w: item %d belongs to collection %q, not %q",
				ErrInvalidItem, i, item.Chunk.Metadata.Collection, collection)
		}
		if len(item.Vector) == 0 {
			return 0, fmt.Errorf("%w: item %d has no vector", ErrInvalidItem, i)
		}
		if len(item.Vector) != dim {
			return 0, fmt.Errorf("%w: item %d has dimension %d, want %d", ErrDimensionMismatch, i, len(item.Vector), dim)
		}
	}
	return dim, nil
}

// collectionDimension returns the stored vector dimension of a collection, or 0 if empty
func collectionDimension(ctx context.Context, q querier, collection string) (int, error) {
	var dim int
	err := q.QueryRowContext(ctx, `SELECT dimension FROM chunks WHERE collection = ? LIMIT 1`, collection).Scan(&dim)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read collection dimension: %w", err)
	}
	return dim, nil
}

// upsertChunkWithQuerier is the internal implementation that uses a querier
func upsertChunkWithQuerier(ctx context.Context, q querier, item *UpsertItem) error {
	// Use atomic INSERT ... ON CONFLICT so the row id, and with it the scan order, is preserved
	query := `
		INSERT INTO chunks (
			chunk_id, collection, source_path, source_type, section_path,
			sequence, content_hash, text, vector, dimension, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id)
		DO UPDATE SET
			collection = excluded.collection,
			source_path = excluded.source_path,
			source_type = excluded.source_type,
			section_path = excluded.section_path,
			sequence = excluded.sequence,
			content_hash = excluded.content_hash,
			text = excluded.text,
			vector = excluded.vector,
			dimension = excluded.dimension,
			updated_at = excluded.updated_at
	`
	m := item.Chunk.Metadata
	now := time.Now().UTC()
	_, err := q.ExecContext(ctx, query,
		item.Chunk.ID, m.Collection, types.NormalizePath(m.SourcePath), string(m.SourceType),
		m.SectionPath, m.Sequence, m.ContentHash, item.Chunk.Text,
		serializeVector(item.Vector), len(item.Vector), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert chunk %s: %w", item.Chunk.ID, err)
	}
	return nil
}

// Search performs vector similarity search across the requested collections
func (s *SQLiteStorage) Search(ctx context.Context, req SearchRequest) ([]types.ScoredItem, error) {
	return searchVector(ctx, s.db, req)
}

// DeleteSource removes chunks of one source that are not listed in keepIDs
func (s *SQLiteStorage) DeleteSource(ctx context.Context, collection, sourcePath string, keepIDs []string) (int, error) {
	query := `DELETE FROM chunks WHERE collection = ? AND source_path = ?`
	args := []interface{}{collection, types.NormalizePath(sourcePath)}
	if len(keepIDs) > 0 {
		query += ` AND chunk_id NOT IN (` + placeholders(len(keepIDs)) + `)`
		for _, id := range keepIDs {
			args = append(args, id)
		}
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete source chunks: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rowsAffected), nil
}

// ListCollections returns all collection names in sorted order
func (s *SQLiteStorage) ListCollections(ctx context.Context) ([]string, error) {
	return s.listStrings(ctx, `SELECT DISTINCT collection FROM chunks ORDER BY collection`)
}

// ListSources returns the distinct source paths stored for a collection
func (s *SQLiteStorage) ListSources(ctx context.Context, collection string) ([]string, error) {
	return s.listStrings(ctx, `SELECT DISTINCT source_path FROM chunks WHERE collection = ? ORDER BY source_path`, collection)
}

func (s *SQLiteStorage) listStrings(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	values := make([]string, 0)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// Status returns statistics for a collection, or ErrNotFound if it holds no chunks
func (s *SQLiteStorage) Status(ctx context.Context, collection string) (*CollectionStatus, error) {
	status := &CollectionStatus{Collection: collection}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT source_path), COALESCE(MAX(dimension), 0)
		FROM chunks
		WHERE collection = ?
	`, collection).Scan(&status.Chunks, &status.Sources, &status.Dimension)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection status: %w", err)
	}
	if status.Chunks == 0 {
		return nil, ErrNotFound
	}
	return status, nil
}
