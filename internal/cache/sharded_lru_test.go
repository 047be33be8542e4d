package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/diskidx/internal/resource"
)

func TestShardedLRUBlockCache_Basic(t *testing.T) {
	c := NewShardedLRUBlockCache(64*1024, nil)

	for i := range int64(100) {
		c.Set(nodeKey(i*16), []byte(fmt.Sprintf("block-%d", i)))
	}
	for i := range int64(100) {
		v, ok := c.Get(nodeKey(i * 16))
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("block-%d", i), string(v))
	}

	hits, misses := c.Stats()
	assert.Equal(t, int64(100), hits)
	assert.Equal(t, int64(0), misses)
}

func TestShardedLRUBlockCache_Invalidate(t *testing.T) {
	c := NewShardedLRUBlockCache(64*1024, nil)
	for i := range int64(50) {
		c.Set(CacheKey{Kind: CacheKindBucket, Path: "buckets.dat", Offset: i}, []byte("x"))
		c.Set(CacheKey{Kind: CacheKindNode, Path: "tree.idx", Offset: i}, []byte("y"))
	}

	c.Invalidate(func(k CacheKey) bool { return k.Path == "buckets.dat" })

	assert.Equal(t, int64(50), c.Size())
	_, ok := c.Get(CacheKey{Kind: CacheKindBucket, Path: "buckets.dat", Offset: 3})
	assert.False(t, ok)
	_, ok = c.Get(CacheKey{Kind: CacheKindNode, Path: "tree.idx", Offset: 3})
	assert.True(t, ok)
}

func TestShardedLRUBlockCache_ShardStats(t *testing.T) {
	c := NewShardedLRUBlockCache(64*1024, nil)
	for i := range int64(256) {
		c.Set(nodeKey(i), []byte{1, 2, 3, 4})
	}

	stats := c.ShardStats()
	require.Len(t, stats, numShards)

	var blocks int
	var size int64
	for _, s := range stats {
		blocks += s.Blocks
		size += s.Size
	}
	assert.Equal(t, 256, blocks)
	assert.Equal(t, c.Size(), size)
}

func TestShardedLRUBlockCache_MemoryAccounting(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 1 << 20})
	c := NewShardedLRUBlockCache(64*1024, rc)

	for i := range int64(10) {
		c.Set(nodeKey(i), make([]byte, 100))
	}
	assert.Equal(t, int64(1000), rc.MemoryUsage())

	c.Invalidate(func(CacheKey) bool { return true })
	assert.Equal(t, int64(0), rc.MemoryUsage())
}

func TestShardedLRUBlockCache_Concurrent(t *testing.T) {
	c := NewShardedLRUBlockCache(1<<20, nil)

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := range 200 {
				k := CacheKey{Kind: CacheKindNode, Path: fmt.Sprintf("f%d", g), Offset: int64(i)}
				c.Set(k, []byte{byte(i)})
				v, ok := c.Get(k)
				if assert.True(t, ok) {
					assert.Equal(t, byte(i), v[0])
				}
			}
		}(g)
	}
	wg.Wait()
}
