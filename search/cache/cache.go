// Package cache memoizes search.Result values by a canonical fingerprint
// of the originating search.Query, so identical queries issued across a
// research session (or across sessions, since the cache is shared) don't
// re-hit the provider. No external cache library is wired here: the
// need is a small single-process TTL map with sliding-idle extension,
// genuinely simpler hand-rolled than via a dependency (see DESIGN.md).
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/tangerg/deepresearch/search"
)

const (
	keyPrefix      = "search:"
	keyHexLen      = 16
	DefaultTTL     = time.Hour
	DefaultIdleTTL = 15 * time.Minute
)

type entry struct {
	result     *search.Result
	expiresAt  time.Time
	idleExpiry time.Time
	idleTTL    time.Duration
}

func (e *entry) expired(now time.Time) bool {
	return now.After(e.expiresAt) || now.After(e.idleExpiry)
}

// Cache is a thread-safe, in-process TTL cache keyed by query fingerprint.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{entries: make(map[string]*entry)}
}

// fingerprintFields is the JSON shape hashed to build a cache key. Field
// order here doesn't matter for the hash (it's driven by Go's struct
// field order at encode time, which is fixed), but domain-list order
// within IncludeDomains/ExcludeDomains must not affect the key — they are
// sorted before encoding.
type fingerprintFields struct {
	Text              string   `json:"text"`
	Type              string   `json:"type"`
	Depth             string   `json:"depth"`
	MaxResults        int      `json:"max_results"`
	IncludeRawContent bool     `json:"include_raw_content"`
	IncludeDomains    []string `json:"include_domains"`
	ExcludeDomains    []string `json:"exclude_domains"`
}

// GenerateKey builds the canonical fingerprint for q: SHA-256 over a
// normalized JSON encoding of every fingerprint-contributing field,
// truncated to 16 hex characters and prefixed "search:".
// Equal logical queries always yield equal keys; queries differing in
// any contributing field yield different keys (modulo hash collision).
func GenerateKey(q *search.Query) string {
	fields := fingerprintFields{
		Text:              q.Text,
		Type:              string(q.Type),
		Depth:             string(q.Depth),
		MaxResults:        q.MaxResults,
		IncludeRawContent: q.IncludeRawContent,
		IncludeDomains:    sortedCopy(q.IncludeDomains),
		ExcludeDomains:    sortedCopy(q.ExcludeDomains),
	}
	raw, _ := json.Marshal(fields)
	sum := sha256.Sum256(raw)
	hexSum := hex.EncodeToString(sum[:])
	return keyPrefix + hexSum[:keyHexLen]
}

func sortedCopy(in []string) []string {
	out := slices.Clone(in)
	slices.Sort(out)
	return out
}

// TryGet returns the cached result for key if present and unexpired,
// extending its sliding-idle window on a hit. A miss is never
// distinguishable from "never cached" to the caller — that's the point.
func (c *Cache) TryGet(key string) (*search.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	now := time.Now()
	if e.expired(now) {
		delete(c.entries, key)
		return nil, false
	}
	e.idleExpiry = now.Add(e.idleTTL)
	return e.result, true
}

// Set stores result under key with the given hard TTL and the package
// default sliding-idle extension. Per policy, only results carrying at
// least one source are admitted — a result from a transient provider
// failure (empty sources) is never memoized, so the next attempt for the
// same query gets a fresh try rather than a cached failure.
func (c *Cache) Set(key string, result *search.Result, ttl time.Duration) {
	if !result.HasSources() {
		return
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry{
		result:     result,
		expiresAt:  now.Add(ttl),
		idleExpiry: now.Add(DefaultIdleTTL),
		idleTTL:    DefaultIdleTTL,
	}
}

// Invalidate removes key from the cache, if present.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len reports the number of stored entries, including expired ones that
// no TryGet has evicted yet; used by tests asserting cache-hit behavior.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
