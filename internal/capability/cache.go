package capability

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"coursecast/internal/database"
)

// Entry is a cached payload with its write time.
type Entry struct {
	Payload  []byte
	CachedAt time.Time
}

// Cache stores capability payloads by key.
type Cache interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry) error
	Invalidate(ctx context.Context, key string) error
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]Entry)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (Entry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return Entry{}, false, nil
	}
	entry.Payload = append([]byte(nil), entry.Payload...)
	return entry, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, entry Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry.Payload = append([]byte(nil), entry.Payload...)
	c.entries[key] = entry
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// StoreCache persists entries in the capability_cache table so every process
// sharing the database sees the same snapshot.
type StoreCache struct {
	db *database.DB
}

// NewStoreCache wraps an open database.
func NewStoreCache(db *database.DB) *StoreCache {
	return &StoreCache{db: db}
}

func (c *StoreCache) Get(ctx context.Context, key string) (Entry, bool, error) {
	var payload, cachedRaw string
	err := c.db.QueryRow(ctx, `SELECT payload, cached_at FROM capability_cache WHERE key = ?`, key).Scan(&payload, &cachedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("read capability cache: %w", err)
	}
	cachedAt, err := database.ParseTime(cachedRaw)
	if err != nil {
		return Entry{}, false, fmt.Errorf("parse capability cache time: %w", err)
	}
	return Entry{Payload: []byte(payload), CachedAt: cachedAt}, true, nil
}

func (c *StoreCache) Set(ctx context.Context, key string, entry Entry) error {
	if _, err := c.db.Exec(ctx,
		`INSERT INTO capability_cache (key, payload, cached_at) VALUES (?, ?, ?)
         ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, cached_at = excluded.cached_at`,
		key, string(entry.Payload), database.FormatTime(entry.CachedAt),
	); err != nil {
		return fmt.Errorf("write capability cache: %w", err)
	}
	return nil
}

func (c *StoreCache) Invalidate(ctx context.Context, key string) error {
	if _, err := c.db.Exec(ctx, `DELETE FROM capability_cache WHERE key = ?`, key); err != nil {
		return fmt.Errorf("invalidate capability cache: %w", err)
	}
	return nil
}
