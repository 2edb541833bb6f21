// Package cache provides a bounded SQLite-backed fallback cache for
// inventory pressure samples, generalized from the teacher's per-VM disk
// usage cache (internal/proxmox/cache.go) to any (node, resource,
// consolidation) RRD fetch. It is consulted only when the live fetch
// itself fails, per SPEC_FULL.md section 12's inventory-response-cache
// supplement.
package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultTTL bounds how long a cached sample set remains eligible as a
// fallback; Open uses it when given a ttl <= 0.
const DefaultTTL = 1 * time.Hour

type Cache struct {
	db  *sql.DB
	mu  sync.Mutex
	ttl time.Duration
}

// Open creates/opens the cache database at path and ensures its schema.
func Open(path string, ttl time.Duration) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{db: db, ttl: ttl}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) initSchema() error {
	_, err := c.db.Exec(`
		CREATE TABLE IF NOT EXISTS pressure_cache (
			node TEXT NOT NULL,
			resource TEXT NOT NULL,
			consolidation TEXT NOT NULL,
			samples TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (node, resource, consolidation)
		)
	`)
	return err
}

// GetPressure returns a cached sample set if present and within TTL.
func (c *Cache) GetPressure(node, resource, consolidation string) ([]float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var raw string
	var updatedAtUnix int64
	err := c.db.QueryRow(`
		SELECT samples, updated_at FROM pressure_cache
		WHERE node = ? AND resource = ? AND consolidation = ?
	`, node, resource, consolidation).Scan(&raw, &updatedAtUnix)
	if err != nil {
		return nil, false
	}
	if time.Since(time.Unix(updatedAtUnix, 0)) > c.ttl {
		return nil, false
	}
	var samples []float64
	if err := json.Unmarshal([]byte(raw), &samples); err != nil {
		return nil, false
	}
	return samples, true
}

// SetPressure stores a freshly fetched sample set, overwriting any prior entry.
func (c *Cache) SetPressure(node, resource, consolidation string, samples []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := json.Marshal(samples)
	if err != nil {
		return
	}
	_, _ = c.db.Exec(`
		INSERT OR REPLACE INTO pressure_cache (node, resource, consolidation, samples, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, node, resource, consolidation, string(raw), time.Now().Unix())
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
