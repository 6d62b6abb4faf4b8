// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package contentcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SQLite persists extracted content in a single table so separate processes
// share it. It is unbounded.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the cache database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}

	db, err := sql.Open(driverName, path+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

func (s *SQLite) createSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS parsed_content (
		document_id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`)
	return err
}

func (s *SQLite) Get(ctx context.Context, id string) (string, bool, error) {
	var content string
	err := s.db.QueryRowContext(ctx,
		`SELECT content FROM parsed_content WHERE document_id = ?`, id,
	).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading cached content for %s: %w", id, err)
	}
	return content, true, nil
}

func (s *SQLite) Put(ctx context.Context, id, content string) (bool, error) {
	if err := validate(id, content); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO parsed_content (document_id, content, created_at) VALUES (?, ?, ?)`,
		id, content, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, fmt.Errorf("caching content for %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("caching content for %s: %w", id, err)
	}
	return n == 1, nil
}

// Len returns the number of cached documents.
func (s *SQLite) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM parsed_content`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting cached content: %w", err)
	}
	return n, nil
}

// Close releases the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}
