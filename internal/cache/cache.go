package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"timetable-import/internal/schedule"
	"timetable-import/internal/store"
	"timetable-import/internal/textutil"

	"github.com/rs/zerolog/log"
)

// Backend is the persistent side of the cache, normally *store.Store.
type Backend interface {
	FindDocument(ctx context.Context, hash string) (*schedule.Document, error)
	ListDocuments(ctx context.Context) (map[string]*schedule.Document, error)
}

// DocumentCache provides in-memory + PostgreSQL-backed caching of parsed
// documents keyed by the hash of the raw input, so an unchanged export is
// not parsed twice. Cached documents are cloned on the way in and out.
type DocumentCache struct {
	backend Backend
	mu      sync.RWMutex
	memory  map[string]*schedule.Document
}

// NewDocumentCache creates a cache. A nil backend keeps it memory-only.
func NewDocumentCache(backend Backend) *DocumentCache {
	return &DocumentCache{
		backend: backend,
		memory:  make(map[string]*schedule.Document),
	}
}

// Get returns the cached document for raw input, if any.
func (c *DocumentCache) Get(ctx context.Context, raw string) (*schedule.Document, bool) {
	return c.GetHash(ctx, textutil.Hash(raw))
}

// GetHash looks a document up by content hash.
func (c *DocumentCache) GetHash(ctx context.Context, hash string) (*schedule.Document, bool) {
	c.mu.RLock()
	if doc, ok := c.memory[hash]; ok {
		c.mu.RUnlock()
		return doc.Clone(), true
	}
	c.mu.RUnlock()

	if c.backend == nil {
		return nil, false
	}

	doc, err := c.backend.FindDocument(ctx, hash)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warn().Err(err).Str("hash", hash).Msg("Cache backend lookup failed")
		}
		return nil, false
	}

	c.mu.Lock()
	c.memory[hash] = doc.Clone()
	c.mu.Unlock()

	return doc, true
}

// Set stores a document in memory. Persistence happens when the import is
// saved, since the stored import row is what the backend reads.
func (c *DocumentCache) Set(hash string, doc *schedule.Document) {
	c.mu.Lock()
	c.memory[hash] = doc.Clone()
	c.mu.Unlock()
}

// Len returns the number of documents held in memory.
func (c *DocumentCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.memory)
}

// Preload loads every stored document into memory.
func (c *DocumentCache) Preload(ctx context.Context) error {
	if c.backend == nil {
		return nil
	}
	docs, err := c.backend.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("preload cache: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for hash, doc := range docs {
		c.memory[hash] = doc
	}

	log.Info().Int("count", len(docs)).Msg("Preloaded document cache")
	return nil
}
