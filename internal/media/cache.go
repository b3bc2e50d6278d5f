package media

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"photovault/internal/logging"
	"photovault/internal/metrics"
)

// Cache is the on-disk thumbnail cache, keyed by owner-qualified remote
// identity. Entries have no expiry; presence is checked by existence.
// Keys are qualified with the owning user so that a remote identity
// reused across two accounts can never leak one account's thumbnail to
// the other.
type Cache struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewCache creates the cache directory if needed and returns a Cache
// rooted there.
func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create thumbnail cache dir: %w", err)
	}
	return &Cache{
		dir:   dir,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// keyLock returns the mutex for one cache key. Locks are per key so
// derivations for distinct items run in parallel; only duplicate
// requests for the same item wait on each other.
func (c *Cache) keyLock(key string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.locks[key]
	if !ok {
		l = &sync.Mutex{}
		c.locks[key] = l
	}
	return l
}

// Key returns the deterministic cache filename for one remote item.
func (c *Cache) Key(owner int64, remoteID string) string {
	hash := md5.Sum([]byte(fmt.Sprintf("%d/%s", owner, remoteID)))
	return fmt.Sprintf("thumb_%x.jpg", hash)
}

// Path returns the on-disk location for one remote item's thumbnail,
// whether or not it exists yet.
func (c *Cache) Path(owner int64, remoteID string) string {
	return filepath.Join(c.dir, c.Key(owner, remoteID))
}

// GetOrCreate returns the cached thumbnail path for a remote item,
// invoking produce to derive the bytes only when no entry exists.
// Repeated calls for the same identity return the same bytes without
// re-invoking produce; concurrent calls for the same key wait for the
// first producer, while distinct keys derive in parallel.
func (c *Cache) GetOrCreate(owner int64, remoteID string, produce func() ([]byte, error)) (string, error) {
	path := c.Path(owner, remoteID)

	if _, err := os.Stat(path); err == nil {
		metrics.ThumbnailCacheHits.Inc()
		logging.Debug("thumbnail cache hit: %s", remoteID)
		return path, nil
	}

	l := c.keyLock(c.Key(owner, remoteID))
	l.Lock()
	defer l.Unlock()

	// Re-check under the lock: another request may have produced it.
	if _, err := os.Stat(path); err == nil {
		metrics.ThumbnailCacheHits.Inc()
		return path, nil
	}

	metrics.ThumbnailCacheMisses.Inc()

	data, err := produce()
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write thumbnail cache entry: %w", err)
	}

	logging.Debug("thumbnail cached: %s", path)
	return path, nil
}
