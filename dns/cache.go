package dns

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// CacheConfig configures a CachingResolver.
type CacheConfig struct {
	// MaxAge is how long an answer is reused. Default is 24 hours.
	MaxAge time.Duration

	// Path is the file the cache is persisted to by Save and read from by
	// Load. Empty disables persistence.
	Path string

	// Logger receives cache load/save diagnostics. Default is slog.Default().
	Logger *slog.Logger

	// Now returns the current time. Default is time.Now.
	Now func() time.Time
}

// CachingResolver wraps a Resolver and remembers answers per name.
//
// Both positive answers and "no such record" are cached. Transport failures
// are never cached. Expired entries are swept on a miss at most once per
// MaxAge.
type CachingResolver struct {
	next   Resolver
	config CacheConfig

	mu        sync.Mutex
	entries   map[string]cacheEntry
	lastSweep time.Time

	hits   atomic.Uint64
	misses atomic.Uint64
}

var _ Resolver = (*CachingResolver)(nil)

// cacheEntry is one remembered answer.
type cacheEntry struct {
	Records   []string
	NotFound  bool
	Authentic bool
	Fetched   int64 // unix nanoseconds
}

// CacheStats are the counters of a CachingResolver.
type CacheStats struct {
	Hits    uint64
	Misses  uint64
	Entries int
}

// NewCachingResolver returns a CachingResolver in front of next.
func NewCachingResolver(next Resolver, config CacheConfig) *CachingResolver {
	if config.MaxAge == 0 {
		config.MaxAge = 24 * time.Hour
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &CachingResolver{
		next:      next,
		config:    config,
		entries:   make(map[string]cacheEntry),
		lastSweep: config.Now(),
	}
}

func cacheKey(name string) string {
	return ensureFQDN(strings.ToLower(name))
}

func (c *CachingResolver) expired(e cacheEntry, now time.Time) bool {
	return now.Sub(time.Unix(0, e.Fetched)) >= c.config.MaxAge
}

// LookupTXT returns the cached answer for name if it is fresh, and asks the
// wrapped resolver otherwise.
func (c *CachingResolver) LookupTXT(ctx context.Context, name string) (Result[string], error) {
	key := cacheKey(name)
	now := c.config.Now()

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && !c.expired(e, now) {
		c.mu.Unlock()
		c.hits.Add(1)
		if e.NotFound {
			return Result[string]{Authentic: e.Authentic}, ErrDNSNotFound
		}
		return Result[string]{Records: slices.Clone(e.Records), Authentic: e.Authentic}, nil
	}
	if ok {
		delete(c.entries, key)
	}
	if now.Sub(c.lastSweep) >= c.config.MaxAge {
		c.purgeLocked(now)
	}
	c.mu.Unlock()
	c.misses.Add(1)

	result, err := c.next.LookupTXT(ctx, name)
	switch {
	case err == nil:
		e = cacheEntry{Records: slices.Clone(result.Records), Authentic: result.Authentic, Fetched: now.UnixNano()}
	case IsNotFound(err):
		e = cacheEntry{NotFound: true, Authentic: result.Authentic, Fetched: now.UnixNano()}
	default:
		return result, err
	}

	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()

	return result, err
}

// Stats returns hit and miss counters and the current number of entries.
func (c *CachingResolver) Stats() CacheStats {
	c.mu.Lock()
	n := len(c.entries)
	c.mu.Unlock()
	return CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: n,
	}
}

// Purge drops expired entries.
func (c *CachingResolver) Purge() {
	now := c.config.Now()
	c.mu.Lock()
	c.purgeLocked(now)
	c.mu.Unlock()
}

func (c *CachingResolver) purgeLocked(now time.Time) {
	for k, e := range c.entries {
		if c.expired(e, now) {
			delete(c.entries, k)
		}
	}
	c.lastSweep = now
}

// Load reads the persisted cache from the configured path. A missing file is
// not an error.
func (c *CachingResolver) Load() error {
	if c.config.Path == "" {
		return nil
	}

	data, err := os.ReadFile(c.config.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("dns: reading cache: %w", err)
	}

	var f cacheFile
	if _, err := f.UnmarshalMsg(data); err != nil {
		return fmt.Errorf("dns: decoding cache %s: %w", c.config.Path, err)
	}
	if f.Version != cacheFileVersion {
		c.config.Logger.Warn("ignoring dns cache with unknown version",
			slog.String("path", c.config.Path),
			slog.Int("version", f.Version),
		)
		return nil
	}

	c.mu.Lock()
	for k, e := range f.Entries {
		c.entries[k] = e
	}
	c.mu.Unlock()

	c.config.Logger.Debug("dns cache loaded",
		slog.String("path", c.config.Path),
		slog.Int("entries", len(f.Entries)),
	)
	return nil
}

// Save writes the fresh entries to the configured path, replacing the file
// atomically.
func (c *CachingResolver) Save() error {
	if c.config.Path == "" {
		return nil
	}

	c.Purge()

	c.mu.Lock()
	f := cacheFile{Version: cacheFileVersion, Entries: make(map[string]cacheEntry, len(c.entries))}
	for k, e := range c.entries {
		f.Entries[k] = e
	}
	c.mu.Unlock()

	data, err := f.MarshalMsg(nil)
	if err != nil {
		return fmt.Errorf("dns: encoding cache: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.config.Path), 0o755); err != nil {
		return fmt.Errorf("dns: creating cache directory: %w", err)
	}
	tmp := c.config.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("dns: writing cache: %w", err)
	}
	if err := os.Rename(tmp, c.config.Path); err != nil {
		return fmt.Errorf("dns: replacing cache: %w", err)
	}
	return nil
}
