package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCache_SetGet(t *testing.T) {
	c := New[int](50 * time.Millisecond)
	c.Set("a", 42)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestTTLCache_ExpiresAndGetOrStaleDegrades(t *testing.T) {
	c := New[string](10 * time.Millisecond)
	c.Set("sym", "fresh")
	time.Sleep(20 * time.Millisecond)

	_, fresh := c.Get("sym")
	assert.False(t, fresh)

	res, ok := c.GetOrStale("sym")
	require.True(t, ok)
	assert.True(t, res.Degraded)
	assert.Equal(t, "fresh", res.Value)
}

func TestTTLCache_GetOrStale_MissingKey(t *testing.T) {
	c := New[int](time.Second)
	_, ok := c.GetOrStale("nope")
	assert.False(t, ok)
}

func TestTTLCache_Sweep(t *testing.T) {
	c := New[int](5 * time.Millisecond)
	c.Set("a", 1)
	c.Set("b", 2)
	time.Sleep(15 * time.Millisecond)
	removed := c.Sweep()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, c.Len())
}

func TestTTLCache_Delete(t *testing.T) {
	c := New[int](time.Second)
	c.Set("a", 1)
	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
}
