package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/chapterwatch/engine"
)

func TestCache_GetSet(t *testing.T) {
	c := New(10, time.Minute)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	k := Key("https://m440.in/manga/solo")
	_, hit := c.Get(k)
	assert.False(t, hit)

	out := &engine.FetchOutcome{Markup: "<html></html>", Engine: "chromium"}
	c.Set(k, out)
	got, hit := c.Get(k)
	require.True(t, hit)
	assert.Same(t, out, got)

	now = now.Add(2 * time.Minute)
	_, hit = c.Get(k)
	assert.False(t, hit, "entries expire after max age")
}

func TestCache_SkipsFailures(t *testing.T) {
	c := New(10, time.Minute)
	c.Set("k", &engine.FetchOutcome{FailureReason: "chromium/antibot"})
	c.Set("nil", nil)
	assert.Equal(t, 0, c.Len())
}

func TestCache_Disabled(t *testing.T) {
	c := New(10, 0)
	c.Set("k", &engine.FetchOutcome{Markup: "x"})
	_, hit := c.Get("k")
	assert.False(t, hit)

	var nilCache *Cache
	assert.NotPanics(t, func() {
		nilCache.Set("k", &engine.FetchOutcome{})
		_, _ = nilCache.Get("k")
	})
}

func TestCache_EvictsOldest(t *testing.T) {
	c := New(2, time.Hour)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { now = now.Add(time.Second); return now }

	c.Set("a", &engine.FetchOutcome{Markup: "a"})
	c.Set("b", &engine.FetchOutcome{Markup: "b"})
	c.Set("c", &engine.FetchOutcome{Markup: "c"})

	assert.Equal(t, 2, c.Len())
	_, hit := c.Get("a")
	assert.False(t, hit)
	_, hit = c.Get("c")
	assert.True(t, hit)
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key("a"), Key("a"))
	assert.NotEqual(t, Key("a"), Key("b"))
	assert.Len(t, Key("a"), 64)
}
