package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/diskidx/internal/resource"
)

func nodeKey(off int64) CacheKey {
	return CacheKey{Kind: CacheKindNode, Path: "t.idx", Offset: off}
}

func TestLRU_EdgeCases(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 100})
	c := NewLRUBlockCache(50, rc)
	k := nodeKey(1)

	// Item larger than capacity
	c.Set(k, make([]byte, 60))
	_, ok := c.Get(k)
	assert.False(t, ok, "item > capacity should not be cached")

	c.Set(k, make([]byte, 10))
	assert.Equal(t, int64(10), c.Size())

	c.Set(k, make([]byte, 20))
	assert.Equal(t, int64(20), c.Size())
	assert.Equal(t, int64(20), rc.MemoryUsage())

	c.Set(k, make([]byte, 5))
	assert.Equal(t, int64(5), c.Size())
	assert.Equal(t, int64(5), rc.MemoryUsage())
}

func TestLRU_GrowRejectedDropsStaleValue(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 10})
	c := NewLRUBlockCache(50, rc)
	k := nodeKey(1)

	c.Set(k, make([]byte, 8))
	c.Set(k, make([]byte, 12))

	_, ok := c.Get(k)
	assert.False(t, ok, "stale block must not survive a rejected update")
	assert.Equal(t, int64(0), rc.MemoryUsage())
}

func TestLRU_Eviction(t *testing.T) {
	c := NewLRUBlockCache(30, nil)

	c.Set(nodeKey(0), []byte("0123456789"))
	c.Set(nodeKey(1), []byte("0123456789"))
	c.Set(nodeKey(2), []byte("0123456789"))

	// Touch 0 so 1 becomes the eviction candidate.
	_, ok := c.Get(nodeKey(0))
	require.True(t, ok)

	c.Set(nodeKey(3), []byte("0123456789"))

	_, ok = c.Get(nodeKey(1))
	assert.False(t, ok)
	for _, off := range []int64{0, 2, 3} {
		_, ok = c.Get(nodeKey(off))
		assert.True(t, ok, "offset %d", off)
	}
	assert.Equal(t, 3, c.Len())
}

func TestLRU_Stats(t *testing.T) {
	c := NewLRUBlockCache(100, nil)
	k := nodeKey(1)

	c.Get(k)
	c.Set(k, []byte("data"))
	c.Get(k)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestLRU_Invalidate(t *testing.T) {
	c := NewLRUBlockCache(100, nil)
	c.Set(CacheKey{Kind: CacheKindNode, Path: "a", Offset: 1}, []byte("a1"))
	c.Set(CacheKey{Kind: CacheKindNode, Path: "b", Offset: 1}, []byte("b1"))
	c.Set(CacheKey{Kind: CacheKindBucket, Path: "a", Offset: 2}, []byte("a2"))

	c.Invalidate(func(k CacheKey) bool { return k.Path == "a" })

	_, ok := c.Get(CacheKey{Kind: CacheKindNode, Path: "a", Offset: 1})
	assert.False(t, ok)
	_, ok = c.Get(CacheKey{Kind: CacheKindBucket, Path: "a", Offset: 2})
	assert.False(t, ok)
	v, ok := c.Get(CacheKey{Kind: CacheKindNode, Path: "b", Offset: 1})
	assert.True(t, ok)
	assert.Equal(t, []byte("b1"), v)
	assert.Equal(t, int64(2), c.Size())
}

func TestLRU_KindsAreDistinct(t *testing.T) {
	c := NewLRUBlockCache(100, nil)
	c.Set(CacheKey{Kind: CacheKindHeader, Path: "a"}, []byte("h"))
	c.Set(CacheKey{Kind: CacheKindNode, Path: "a"}, []byte("n"))

	v, ok := c.Get(CacheKey{Kind: CacheKindHeader, Path: "a"})
	require.True(t, ok)
	assert.Equal(t, []byte("h"), v)
}
