package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStorage implements ObjectStorage on a single SQLite table.
// It suits deployments that keep many small snapshots and would rather
// manage one file than a directory tree.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage opens (or creates) the blob database at dbPath.
func NewSQLiteStorage(ctx context.Context, dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("storage: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: failed to ping database: %w", err)
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS objects (
			object_path TEXT PRIMARY KEY,
			data        BLOB NOT NULL,
			size_bytes  INTEGER NOT NULL,
			updated_at  INTEGER NOT NULL
		);`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, dbPath: dbPath}, nil
}

// Put upserts an object in one statement.
func (s *SQLiteStorage) Put(ctx context.Context, objectPath string, data []byte) error {
	if err := validateObjectPath(objectPath); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO objects (object_path, data, size_bytes, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(object_path) DO UPDATE SET
			data = excluded.data,
			size_bytes = excluded.size_bytes,
			updated_at = excluded.updated_at`,
		objectPath, data, len(data), time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return nil
}

// Get returns the stored object.
func (s *SQLiteStorage) Get(ctx context.Context, objectPath string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM objects WHERE object_path = ?", objectPath,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	return data, nil
}

// Delete removes an object.
func (s *SQLiteStorage) Delete(ctx context.Context, objectPath string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM objects WHERE object_path = ?", objectPath); err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}

// Exists checks if an object is stored.
func (s *SQLiteStorage) Exists(ctx context.Context, objectPath string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM objects WHERE object_path = ?", objectPath,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("storage: exists %s: %w", objectPath, err)
	}
	return n > 0, nil
}

// ListObjects returns stored paths under prefix in lexical order.
func (s *SQLiteStorage) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT object_path FROM objects WHERE substr(object_path, 1, ?) = ? ORDER BY object_path",
		len(prefix), prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to list objects: %w", err)
	}
	defer rows.Close()

	var objects []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("storage: failed to scan object path: %w", err)
		}
		objects = append(objects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: error iterating objects: %w", err)
	}
	return objects, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
