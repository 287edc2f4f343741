package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klappy/bible-search-engine/pkg/cache"
)

func TestFSCache_PutGet(t *testing.T) {
	c, err := cache.NewFS(t.TempDir())
	require.NoError(t, err)

	ctx := t.Context()

	_, ok := c.Get(ctx, "0123456789abcdef")
	assert.False(t, ok)

	c.Put(ctx, "0123456789abcdef", []byte("payload"), time.Minute)

	data, ok := c.Get(ctx, "0123456789abcdef")
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), data)
}

func TestFSCache_Expiry(t *testing.T) {
	c, err := cache.NewFS(t.TempDir())
	require.NoError(t, err)

	ctx := t.Context()

	c.Put(ctx, "0123456789abcdef", []byte("payload"), time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get(ctx, "0123456789abcdef")
	assert.False(t, ok)
}

func TestFSCache_RejectsInvalidKey(t *testing.T) {
	c, err := cache.NewFS(t.TempDir())
	require.NoError(t, err)

	ctx := t.Context()

	c.Put(ctx, "../escape", []byte("payload"), time.Minute)

	_, ok := c.Get(ctx, "../escape")
	assert.False(t, ok)

	_, ok = c.Get(ctx, "x")
	assert.False(t, ok)
}

func TestFSCache_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	c1, err := cache.NewFS(dir)
	require.NoError(t, err)

	c1.Put(t.Context(), "0123456789abcdef", []byte("payload"), time.Minute)

	c2, err := cache.NewFS(dir)
	require.NoError(t, err)

	data, ok := c2.Get(t.Context(), "0123456789abcdef")
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), data)
}
