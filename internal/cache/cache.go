// Package cache keeps directory listings in memory so pane redraws do not
// re-stat large directories. Operations invalidate the entries they touched
// through the task framework's hooks.
package cache

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Entry is one cached file row of a directory listing.
type Entry struct {
	Name    string
	Size    int64
	Mode    uint32
	ModTime time.Time
	IsDir   bool
}

// Listing is a cached snapshot of one directory.
type Listing struct {
	Dir     string
	Entries []Entry
	taken   time.Time
}

// Cache stores directory listings keyed by cleaned absolute path.
// Safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	listings map[string]Listing
	ttl      time.Duration
	logger   zerolog.Logger
}

// DefaultTTL bounds how stale a listing may get before a lookup misses even
// without an explicit invalidation, covering changes made outside the app.
const DefaultTTL = 10 * time.Second

func New(logger zerolog.Logger) *Cache {
	return &Cache{
		listings: make(map[string]Listing),
		ttl:      DefaultTTL,
		logger:   logger,
	}
}

// Get returns the cached listing for dir, if present and fresh.
func (c *Cache) Get(dir string) (Listing, bool) {
	dir = filepath.Clean(dir)

	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.listings[dir]
	if !ok {
		return Listing{}, false
	}
	if time.Since(l.taken) > c.ttl {
		delete(c.listings, dir)
		return Listing{}, false
	}
	return l, true
}

// Put stores a listing for dir, replacing any previous snapshot.
func (c *Cache) Put(dir string, entries []Entry) {
	dir = filepath.Clean(dir)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.listings[dir] = Listing{Dir: dir, Entries: entries, taken: time.Now()}
}

// Invalidate drops the listings affected by writes to the given paths: the
// containing directory of each path, the path itself in case it is a
// directory, and every ancestor up to the root so parent listings showing
// sizes or counts get refreshed too.
func (c *Cache) Invalidate(paths []string) {
	if len(paths) == 0 {
		return
	}

	dirs := make(map[string]struct{})
	for _, p := range paths {
		p = filepath.Clean(p)
		dirs[p] = struct{}{}
		for {
			parent := filepath.Dir(p)
			if parent == p {
				break
			}
			dirs[parent] = struct{}{}
			p = parent
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := 0
	for dir := range dirs {
		if _, ok := c.listings[dir]; ok {
			delete(c.listings, dir)
			dropped++
		}
	}
	if dropped > 0 {
		c.logger.Debug().Int("listings", dropped).Int("paths", len(paths)).Msg("cache invalidated")
	}
}

// InvalidateDir drops a single directory's listing and its ancestors.
func (c *Cache) InvalidateDir(dir string) {
	c.Invalidate([]string{dir})
}

// Clear drops every cached listing.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listings = make(map[string]Listing)
}

// Len reports how many listings are currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listings)
}
