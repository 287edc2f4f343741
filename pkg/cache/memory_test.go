package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klappy/bible-search-engine/pkg/cache"
)

func TestMemoryCache_PutGet(t *testing.T) {
	c := cache.NewMemory()
	ctx := t.Context()

	_, ok := c.Get(ctx, "k1")
	assert.False(t, ok)

	c.Put(ctx, "k1", []byte("hello"), time.Minute)

	data, ok := c.Get(ctx, "k1")
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), data)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := cache.NewMemory()
	ctx := t.Context()

	c.Put(ctx, "k1", []byte("hello"), time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get(ctx, "k1")
	assert.False(t, ok)
}

func TestMemoryCache_ReturnsDefensiveCopies(t *testing.T) {
	c := cache.NewMemory()
	ctx := t.Context()

	original := []byte("hello")
	c.Put(ctx, "k1", original, time.Minute)
	original[0] = 'X'

	data, ok := c.Get(ctx, "k1")
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), data)

	data[0] = 'Y'

	data2, ok := c.Get(ctx, "k1")
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), data2)
}

func TestNoopCache_AlwaysMisses(t *testing.T) {
	c := cache.NoopCache{}
	ctx := t.Context()

	c.Put(ctx, "k1", []byte("hello"), time.Minute)

	_, ok := c.Get(ctx, "k1")
	assert.False(t, ok)
	assert.NoError(t, c.Close())
}

func TestKeyForURL_Deterministic(t *testing.T) {
	a := cache.KeyForURL("https://example.com/archive.zip")
	b := cache.KeyForURL("https://example.com/archive.zip")
	c := cache.KeyForURL("https://example.com/other.zip")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
}
