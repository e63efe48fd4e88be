package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	require.NoError(t, c.SetWithTTL(ctx, "k", payload{Name: "pothole", Count: 3}, time.Minute))

	var got payload
	found, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, payload{Name: "pothole", Count: 3}, got)
}

func TestMemoryCacheMiss(t *testing.T) {
	c := NewMemoryCache()

	var got string
	found, err := c.Get(context.Background(), "absent", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.SetWithTTL(ctx, "short", "v", 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	var got string
	found, err := c.Get(ctx, "short", &got)
	require.NoError(t, err)
	assert.False(t, found, "expired entries read as misses")
	assert.Zero(t, c.Len())
}

func TestMemoryCacheDelete(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.SetWithTTL(ctx, "a", 1, time.Minute))
	require.NoError(t, c.SetWithTTL(ctx, "b", 2, time.Minute))

	require.NoError(t, c.Delete(ctx, "a", "missing"))

	var got int
	found, err := c.Get(ctx, "a", &got)
	require.NoError(t, err)
	assert.False(t, found)

	found, err = c.Get(ctx, "b", &got)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestMemoryCacheDeletePattern(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.SetWithTTL(ctx, "cell:open:1:2", []string{"x"}, time.Minute))
	require.NoError(t, c.SetWithTTL(ctx, "cell:all:1:2", []string{"x"}, time.Minute))
	require.NoError(t, c.SetWithTTL(ctx, "issue:x", "summary", time.Minute))

	deleted, err := c.DeletePattern(ctx, "cell:*")
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCacheClose(t *testing.T) {
	c := NewMemoryCache()
	require.NoError(t, c.SetWithTTL(context.Background(), "k", "v", time.Minute))

	require.NoError(t, c.Close())
	assert.Error(t, c.HealthCheck(context.Background()))
	assert.Zero(t, c.Len())
}
