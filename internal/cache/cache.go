// Package cache stores parsed recommendation sets keyed by sample
// fingerprint, so repeated identical-shaped samples skip the LLM round
// trip within a TTL window.
package cache

import (
	"sync"
	"time"

	"github.com/telemetryadvisor/advisor/internal/parser"
)

// Clock returns the current time; tests inject a fixed clock.
type Clock func() time.Time

type entry struct {
	recs      *parser.ParsedRecommendations
	expiresAt time.Time
}

// Cache is a single-lock, TTL-expiring map from sample fingerprint to the
// recommendations last produced for that fingerprint. Entries are
// immutable once stored.
type Cache struct {
	mu  sync.Mutex
	ttl time.Duration
	now Clock

	entries map[string]entry

	hits   int
	misses int
}

// Option configures a Cache at construction.
type Option func(*Cache)

// WithClock overrides the wall-clock source.
func WithClock(clock Clock) Option {
	return func(c *Cache) { c.now = clock }
}

// New creates a Cache whose entries expire ttl after being stored.
func New(ttl time.Duration, opts ...Option) *Cache {
	c := &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached recommendations for fingerprint, if present and
// unexpired.
func (c *Cache) Get(fingerprint string) (*parser.ParsedRecommendations, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[fingerprint]
	if !ok || c.now().After(e.expiresAt) {
		if ok {
			delete(c.entries, fingerprint)
		}
		c.misses++
		return nil, false
	}
	c.hits++
	return e.recs, true
}

// Put stores recs under fingerprint, replacing any existing entry and
// resetting its TTL.
func (c *Cache) Put(fingerprint string, recs *parser.ParsedRecommendations) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fingerprint] = entry{recs: recs, expiresAt: c.now().Add(c.ttl)}
}

// Clear empties the cache without resetting hit/miss counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Stats reports cumulative cache hit/miss counts and the current entry
// count, for the status API and self-observability metrics.
type Stats struct {
	Hits    int `json:"hits"`
	Misses  int `json:"misses"`
	Entries int `json:"entries"`
}

// Stats returns a snapshot of cache usage counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Hits: c.hits, Misses: c.misses, Entries: len(c.entries)}
}
