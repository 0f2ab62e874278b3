// Package respcache persists raw, shape-validated API responses on disk with
// a fixed TTL, so repeated synchronization runs within the cache window skip
// the network entirely. One JSON record per key, directory-scoped by entity
// type; records are superseded by atomic rewrite, never updated in place.
package respcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// DefaultTTL is the cache lifetime used when none is configured.
const DefaultTTL = 24 * time.Hour

type record struct {
	CapturedAt time.Time `json:"captured_at"`
	Payload    []byte    `json:"payload"`
}

// Cache is a TTL-scoped response cache rooted at one directory.
type Cache struct {
	dir string
	ttl time.Duration
}

// New returns a cache rooted at dir. ttl <= 0 selects DefaultTTL.
func New(dir string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{dir: dir, ttl: ttl}
}

// TTL returns the configured cache lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Key derives a stable cache key from its parts (server URL, username,
// content type, optional narrower scope). No secrets end up on disk: the key
// is a hash, and the password is never part of it.
func Key(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

func (c *Cache) path(scope, key string) string {
	return filepath.Join(c.dir, scope, key+".json")
}

// Get returns the cached payload for (scope, key), or ok=false when the
// record is absent, unreadable, or older than the TTL.
func (c *Cache) Get(scope, key string) ([]byte, bool) {
	rec, err := c.read(scope, key)
	if err != nil {
		return nil, false
	}
	if time.Since(rec.CapturedAt) > c.ttl {
		return nil, false
	}
	return rec.Payload, true
}

// GetFresherThan returns the cached payload only when it was captured after
// t. Used by series enrichment, where freshness is judged against the row's
// own last-modified marker instead of the fixed TTL.
func (c *Cache) GetFresherThan(scope, key string, t time.Time) ([]byte, bool) {
	rec, err := c.read(scope, key)
	if err != nil {
		return nil, false
	}
	if !rec.CapturedAt.After(t) {
		return nil, false
	}
	return rec.Payload, true
}

// Put writes payload under (scope, key) with the current capture time.
// Callers must shape-validate the payload first; malformed responses are
// never cached, forcing a retry on the next run.
func (c *Cache) Put(scope, key string, payload []byte) error {
	data, err := json.Marshal(record{CapturedAt: time.Now(), Payload: payload})
	if err != nil {
		return err
	}
	dir := filepath.Join(c.dir, scope)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("respcache: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".cache-*.json.tmp")
	if err != nil {
		return fmt.Errorf("respcache: create temp: %w", err)
	}
	name := tmp.Name()
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		os.Remove(name)
		if werr != nil {
			return fmt.Errorf("respcache: write: %w", werr)
		}
		return fmt.Errorf("respcache: close: %w", cerr)
	}
	if err := os.Rename(name, c.path(scope, key)); err != nil {
		os.Remove(name)
		return fmt.Errorf("respcache: rename: %w", err)
	}
	return nil
}

func (c *Cache) read(scope, key string) (record, error) {
	var rec record
	data, err := os.ReadFile(c.path(scope, key))
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, err
	}
	return rec, nil
}

// PurgeExpired removes stale records across all scopes. Best-effort: a record
// that cannot be removed is logged and skipped, never aborting the caller's
// run. Returns the number of records removed.
func (c *Cache) PurgeExpired() int {
	removed := 0
	c.walk(func(path string, rec record, readErr error) {
		if readErr == nil && time.Since(rec.CapturedAt) <= c.ttl {
			return
		}
		if err := os.Remove(path); err != nil {
			log.Printf("respcache: purge %s: %v", filepath.Base(path), err)
			return
		}
		removed++
	})
	return removed
}

// PurgeAll removes every cached record.
func (c *Cache) PurgeAll() error {
	entries, err := os.ReadDir(c.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("respcache: purge all: %w", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(c.dir, e.Name())); err != nil {
			return fmt.Errorf("respcache: purge all: %w", err)
		}
	}
	return nil
}

// Stats summarises the on-disk cache.
type Stats struct {
	TotalRecords   int
	ValidRecords   int
	ExpiredRecords int
	TotalBytes     int64
}

// Stats walks the cache directory and counts records.
func (c *Cache) Stats() Stats {
	var st Stats
	c.walk(func(path string, rec record, readErr error) {
		st.TotalRecords++
		if info, err := os.Stat(path); err == nil {
			st.TotalBytes += info.Size()
		}
		if readErr != nil || time.Since(rec.CapturedAt) > c.ttl {
			st.ExpiredRecords++
			return
		}
		st.ValidRecords++
	})
	return st
}

func (c *Cache) walk(fn func(path string, rec record, readErr error)) {
	scopes, err := os.ReadDir(c.dir)
	if err != nil {
		return
	}
	for _, sc := range scopes {
		if !sc.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(c.dir, sc.Name()))
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() || filepath.Ext(f.Name()) != ".json" {
				continue
			}
			path := filepath.Join(c.dir, sc.Name(), f.Name())
			var rec record
			data, err := os.ReadFile(path)
			if err == nil {
				err = json.Unmarshal(data, &rec)
			}
			fn(path, rec, err)
		}
	}
}
