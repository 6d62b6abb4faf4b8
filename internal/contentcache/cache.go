// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package contentcache stores text extracted from documents, keyed by
// document identifier. Entries are write-once: the first Put for an
// identifier wins and later ones are ignored.
package contentcache

import (
	"context"
	"fmt"
	"io"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pdiddy/papermap/pkg/types"
)

const defaultMaxEntries = 1000

// Cache is safe for concurrent use.
type Cache interface {
	// Get returns the content for id and whether it was present.
	Get(ctx context.Context, id string) (string, bool, error)

	// Put stores content for id unless an entry already exists. It reports
	// whether this call stored it.
	Put(ctx context.Context, id, content string) (bool, error)

	io.Closer
}

// New returns a SQLite cache when cfg.Path is set and an in-memory LRU
// otherwise.
func New(cfg types.CacheConfig) (Cache, error) {
	if cfg.Path != "" {
		return OpenSQLite(cfg.Path)
	}
	return NewMemory(cfg.MaxEntries)
}

// Memory is a bounded in-process cache. When full, the least recently read
// document is evicted.
type Memory struct {
	entries *lru.Cache[string, string]
}

// NewMemory returns a Memory holding at most size documents.
func NewMemory(size int) (*Memory, error) {
	if size <= 0 {
		size = defaultMaxEntries
	}
	entries, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("creating content cache: %w", err)
	}
	return &Memory{entries: entries}, nil
}

func (m *Memory) Get(_ context.Context, id string) (string, bool, error) {
	content, ok := m.entries.Get(id)
	return content, ok, nil
}

func (m *Memory) Put(_ context.Context, id, content string) (bool, error) {
	if err := validate(id, content); err != nil {
		return false, err
	}
	present, _ := m.entries.ContainsOrAdd(id, content)
	return !present, nil
}

// Len returns the number of cached documents.
func (m *Memory) Len() int { return m.entries.Len() }

func (m *Memory) Close() error { return nil }

func validate(id, content string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: document id cannot be empty", types.ErrValidation)
	}
	if content == "" {
		return fmt.Errorf("%w: refusing to cache empty content for %s", types.ErrValidation, id)
	}
	return nil
}
