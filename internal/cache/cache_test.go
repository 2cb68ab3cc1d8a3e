package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telemetryadvisor/advisor/internal/parser"
)

func TestGetMissOnEmptyCache(t *testing.T) {
	c := New(time.Hour)
	_, ok := c.Get("sample-1-2-3")
	assert.False(t, ok, "expected miss on empty cache")
	assert.Equal(t, 1, c.Stats().Misses)
}

func TestPutThenGetHits(t *testing.T) {
	c := New(time.Hour)
	recs := &parser.ParsedRecommendations{}
	c.Put("sample-1-2-3", recs)

	got, ok := c.Get("sample-1-2-3")
	require.True(t, ok, "expected hit after Put")
	assert.Same(t, recs, got, "expected the exact stored pointer to be returned")
	assert.Equal(t, 1, c.Stats().Hits)
}

func TestEntryExpiresAfterTTL(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	c := New(time.Minute, WithClock(clock))

	c.Put("sample-1-2-3", &parser.ParsedRecommendations{})

	now = now.Add(2 * time.Minute)
	_, ok := c.Get("sample-1-2-3")
	assert.False(t, ok, "expected entry to have expired")
}

func TestClearRemovesAllEntriesButKeepsCounters(t *testing.T) {
	c := New(time.Hour)
	c.Put("a", &parser.ParsedRecommendations{})
	c.Put("b", &parser.ParsedRecommendations{})
	c.Get("a")

	c.Clear()

	stats := c.Stats()
	assert.Equal(t, 0, stats.Entries)
	assert.Equal(t, 1, stats.Hits, "hit counter should survive Clear")
}

func TestPutReplacesExistingEntryAndResetsTTL(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }
	c := New(time.Minute, WithClock(clock))

	first := &parser.ParsedRecommendations{Summary: parser.Summary{TotalRecommendations: 1}}
	second := &parser.ParsedRecommendations{Summary: parser.Summary{TotalRecommendations: 2}}

	c.Put("k", first)
	now = now.Add(30 * time.Second)
	c.Put("k", second)
	now = now.Add(45 * time.Second)

	got, ok := c.Get("k")
	require.True(t, ok, "expected entry still valid after replacement extended its TTL")
	assert.Equal(t, 2, got.Summary.TotalRecommendations)
}
