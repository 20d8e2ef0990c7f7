// Package cache implements the artifact/metadata cache of spec.md §3-4:
// a content-fingerprint-keyed LRU store with a size ceiling, idle-age
// eviction, and a Bloom-filter negative pre-filter consulted under the index
// lock, ahead of the map lookup.
//
// Grounded on the teacher's pkg/cache/adaptive_cache.go (item bookkeeping,
// stats struct) and pkg/cache/eviction_policies.go (LRU selection), stripped
// of the ML-tiering/peer-exchange machinery that has no home in this spec
// (this cache has one process, no peers to exchange state with).
package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/forgemedia/mediajobs/internal/logging"
)

// Kind distinguishes metadata entries (no params) from processed-artifact
// entries (keyed additionally on a params hash).
type Kind string

const (
	KindMetadata Kind = "metadata"
	KindArtifact Kind = "processed_artifact"
)

// Entry is spec.md §3's CacheEntry.
type Entry struct {
	Fingerprint  string    `json:"fingerprint"`
	Kind         Kind      `json:"kind"`
	Path         string    `json:"path"`
	SizeBytes    int64     `json:"size_bytes"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessAt time.Time `json:"last_access_at"`
	Origin       string    `json:"origin_source"`
	ParamsHash   string    `json:"params_hash,omitempty"`

	// Payload carries small in-memory metadata blobs (e.g. probed
	// duration/resolution) for KindMetadata entries that aren't backed by
	// a file on disk.
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (e *Entry) key() string {
	if e.Kind == KindArtifact {
		return e.Fingerprint + "|" + e.ParamsHash
	}
	return e.Fingerprint
}

// Stats summarizes cache performance for GET /system/performance/cache/stats.
type Stats struct {
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Evictions  int64 `json:"evictions"`
	Insertions int64 `json:"insertions"`
	Entries    int   `json:"entries"`
	TotalBytes int64 `json:"total_bytes"`
}

// Cache is the size- and age-bounded LRU artifact/metadata store.
type Cache struct {
	mu         sync.Mutex
	root       string
	maxBytes   int64
	idleTTL    time.Duration
	entries    map[string]*Entry
	totalBytes int64
	filter     *bloom.BloomFilter
	stats      Stats
	log        *logging.Logger
}

// Directory layout constants (spec.md §6 Scratch/persistent layout).
const (
	subdirMetadata   = "metadata"
	subdirVideos     = "videos"
	subdirThumbnails = "thumbnails"
	indexFile        = "cache_index.json"
)

// Open loads (or initializes) a Cache rooted at root.
func Open(root string, maxBytes int64, idleTTL time.Duration, bloomCapacity uint, log *logging.Logger) (*Cache, error) {
	for _, sub := range []string{subdirMetadata, subdirVideos, subdirThumbnails} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, err
		}
	}
	if bloomCapacity == 0 {
		bloomCapacity = 100000
	}
	c := &Cache{
		root:     root,
		maxBytes: maxBytes,
		idleTTL:  idleTTL,
		entries:  make(map[string]*Entry),
		filter:   bloom.NewWithEstimates(bloomCapacity, 0.01),
		log:      log.WithComponent("cache"),
	}
	if err := c.loadIndex(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cache) indexPath() string { return filepath.Join(c.root, indexFile) }

func (c *Cache) loadIndex() error {
	data, err := os.ReadFile(c.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var list []*Entry
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	var total int64
	for _, e := range list {
		c.entries[e.key()] = e
		c.filter.AddString(e.key())
		total += e.SizeBytes
	}
	c.totalBytes = total
	return nil
}

func (c *Cache) saveIndexLocked() error {
	list := make([]*Entry, 0, len(c.entries))
	for _, e := range c.entries {
		list = append(list, e)
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.indexPath(), data, 0o644)
}

// subdirFor returns the artifact-cache subdirectory a given kind is stored
// under (spec.md §6: "metadata/, videos/, thumbnails/").
func subdirFor(kind Kind, isThumbnail bool) string {
	switch {
	case kind == KindMetadata:
		return subdirMetadata
	case isThumbnail:
		return subdirThumbnails
	default:
		return subdirVideos
	}
}

// PathFor returns the on-disk path a new artifact entry for (fingerprint,
// paramsHash) should be written to before calling Put.
func (c *Cache) PathFor(kind Kind, isThumbnail bool, fingerprint, paramsHash, ext string) string {
	name := fingerprint
	if paramsHash != "" {
		name += "-" + paramsHash
	}
	return filepath.Join(c.root, subdirFor(kind, isThumbnail), name+ext)
}

// GetMetadata looks up a metadata entry by fingerprint (no params).
func (c *Cache) GetMetadata(fingerprint string) (*Entry, bool) {
	return c.get(Entry{Fingerprint: fingerprint, Kind: KindMetadata}.key())
}

// GetArtifact looks up a processed-artifact entry by (fingerprint, paramsHash).
func (c *Cache) GetArtifact(fingerprint, paramsHash string) (*Entry, bool) {
	return c.get(Entry{Fingerprint: fingerprint, Kind: KindArtifact, ParamsHash: paramsHash}.key())
}

func (c *Cache) get(key string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Bloom pre-filter: a negative here is authoritative (no false
	// negatives), letting us skip the map lookup entirely on a cold miss.
	if !c.filter.TestString(key) {
		c.stats.Misses++
		return nil, false
	}

	e, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	e.LastAccessAt = time.Now()
	c.stats.Hits++
	cp := *e
	return &cp, true
}

// Put inserts or replaces a cache entry, then enforces the size ceiling via
// LRU eviction (spec.md §3 invariant 6).
func (c *Cache) Put(e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.LastAccessAt = now

	key := e.key()
	if old, exists := c.entries[key]; exists {
		c.totalBytes -= old.SizeBytes
	}
	c.entries[key] = &e
	c.filter.AddString(key)
	c.totalBytes += e.SizeBytes
	c.stats.Insertions++

	c.evictLocked()
	return c.saveIndexLocked()
}

// evictLocked removes least-recently-used entries until total size is under
// the ceiling (spec.md §3 invariant 6 / §5 "Eviction is LRU by
// last_access_at"). Caller must hold c.mu.
func (c *Cache) evictLocked() {
	if c.totalBytes <= c.maxBytes {
		return
	}
	ordered := make([]*Entry, 0, len(c.entries))
	for _, e := range c.entries {
		ordered = append(ordered, e)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].LastAccessAt.Before(ordered[j].LastAccessAt)
	})
	for _, e := range ordered {
		if c.totalBytes <= c.maxBytes {
			break
		}
		c.removeLocked(e)
	}
}

func (c *Cache) removeLocked(e *Entry) {
	delete(c.entries, e.key())
	c.totalBytes -= e.SizeBytes
	c.stats.Evictions++
	if e.Path != "" {
		_ = os.Remove(e.Path)
	}
	// The Bloom filter cannot un-set a bit; a stale positive just costs an
	// extra map lookup that correctly reports a miss. Rebuilt on restart
	// via loadIndex -> Open since the filter is in-memory only.
}

// SweepExpired removes entries idle longer than idleTTL (spec.md §3
// invariant 6: "expired entries (>7 days idle) are removed on the next
// sweep"), called by the janitor.
func (c *Cache) SweepExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-c.idleTTL)
	removed := 0
	for _, e := range c.entries {
		if e.LastAccessAt.Before(cutoff) {
			c.removeLocked(e)
			removed++
		}
	}
	if removed > 0 {
		_ = c.saveIndexLocked()
	}
	return removed
}

// Clear empties the cache (POST /system/performance/cache/clear).
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.Path != "" {
			_ = os.Remove(e.Path)
		}
	}
	c.entries = make(map[string]*Entry)
	c.totalBytes = 0
	c.filter.ClearAll()
	return c.saveIndexLocked()
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = len(c.entries)
	s.TotalBytes = c.totalBytes
	return s
}
