package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tongyiyu/weather-cli/internal/models"
)

// Cache stores fetched observations keyed by query key. Get returns the entry
// if present and still inside the freshness window; Set stores or overwrites;
// Clear discards everything.
type Cache interface {
	Get(ctx context.Context, key string) (models.CacheEntry, bool, error)
	Set(ctx context.Context, key string, entry models.CacheEntry, ttl time.Duration) error
	Clear(ctx context.Context) error
}

// FileCache is the default backend: one JSON file per query key under dir.
// Freshness is judged from the entry's FetchedAt field, so copying the cache
// directory around does not extend entry lifetimes. Writes go through a temp
// file and rename; a concurrent invocation never reads a torn entry.
type FileCache struct {
	dir string
}

// NewFileCache creates the cache directory if needed.
func NewFileCache(dir string) (*FileCache, error) {
	if dir == "" {
		return nil, errors.New("cache dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileCache{dir: dir}, nil
}

// Get returns (entry, true, nil) for a fresh entry, (zero, false, nil) on a
// miss. Expired and unreadable files count as misses; corrupt ones are removed
// so the next fetch rewrites them.
func (c *FileCache) Get(ctx context.Context, key string) (models.CacheEntry, bool, error) {
	if ctx.Err() != nil {
		return models.CacheEntry{}, false, ctx.Err()
	}
	path := c.path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.CacheEntry{}, false, nil
		}
		return models.CacheEntry{}, false, fmt.Errorf("read cache entry: %w", err)
	}

	var stored storedEntry
	if err := json.Unmarshal(data, &stored); err != nil {
		_ = os.Remove(path)
		return models.CacheEntry{}, false, nil
	}
	if time.Now().After(stored.ExpiresAt) {
		_ = os.Remove(path)
		return models.CacheEntry{}, false, nil
	}
	return stored.Entry, true, nil
}

// Set stores the entry with its expiry stamped in, overwriting any previous
// entry for the key.
func (c *FileCache) Set(ctx context.Context, key string, entry models.CacheEntry, ttl time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	stored := storedEntry{
		Entry:     entry,
		ExpiresAt: time.Now().Add(ttl),
	}
	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	path := c.path(key)
	tmp, err := os.CreateTemp(c.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store cache entry: %w", err)
	}
	return nil
}

// Clear removes every entry file, leaving the directory in place.
func (c *FileCache) Clear(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("read cache dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil {
			return fmt.Errorf("remove cache entry: %w", err)
		}
	}
	return nil
}

// storedEntry is the on-disk form: the entry plus its expiry.
type storedEntry struct {
	Entry     models.CacheEntry `json:"entry"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// path maps a query key to a filename. Keys can contain characters that are
// awkward in filenames (Chinese city names, '|'), so the name is a readable
// slug plus a short hash to stay collision-free.
func (c *FileCache) path(key string) string {
	h := fnv.New64a()
	h.Write([]byte(key))
	sum := hex.EncodeToString(h.Sum(nil))

	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '_'
		}
	}, strings.ToLower(key))
	if len(slug) > 40 {
		slug = slug[:40]
	}
	return filepath.Join(c.dir, slug+"-"+sum+".json")
}
