package diskidx

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/diskidx/keycodec"
)

func openIndex(t *testing.T, kind Kind, keyKind KeyKind, optFns ...Option) *Index {
	t.Helper()
	idx, err := Open(filepath.Join(t.TempDir(), "idx"), kind, keyKind, optFns...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestIndexLifecycle(t *testing.T) {
	ctx := context.Background()
	for _, kind := range []Kind{AVL, BTree, Hash} {
		t.Run(kind.String(), func(t *testing.T) {
			idx := openIndex(t, kind, Int)
			assert.Equal(t, kind, idx.Kind())
			assert.Equal(t, Int, idx.KeyKind())

			for k := range 100 {
				require.NoError(t, idx.Insert(ctx, k, Position(k*10)))
			}
			assert.Equal(t, 100, idx.Len())
			require.NoError(t, idx.Verify())

			pos, err := idx.Search(ctx, 42)
			require.NoError(t, err)
			assert.Equal(t, []Position{420}, pos)

			pos, err = idx.Search(ctx, 1000)
			require.NoError(t, err)
			assert.Empty(t, pos)

			entries, err := idx.RangeSearch(ctx, 10, 12)
			if kind == Hash {
				assert.ErrorIs(t, err, ErrUnsupported)
			} else {
				require.NoError(t, err)
				assert.Equal(t, []Entry{
					{Key: int32(10), Position: 100},
					{Key: int32(11), Position: 110},
					{Key: int32(12), Position: 120},
				}, entries)
			}

			removed, err := idx.Delete(ctx, 42)
			require.NoError(t, err)
			assert.True(t, removed)
			removed, err = idx.Delete(ctx, 42)
			require.NoError(t, err)
			assert.False(t, removed)
			assert.Equal(t, 99, idx.Len())

			var buf bytes.Buffer
			require.NoError(t, idx.Dump(&buf))
			assert.NotEmpty(t, buf.String())

			require.NoError(t, idx.Sync())
			require.NoError(t, idx.Close())
			require.NoError(t, idx.Close())
			_, err = idx.Search(ctx, 1)
			assert.ErrorIs(t, err, ErrClosed)
		})
	}
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "names")

	idx, err := Open(path, BTree, Text, WithTextWidth(8), WithOrder(5))
	require.NoError(t, err)
	for i, name := range []string{"carol", "alice", "bob", "alice"} {
		require.NoError(t, idx.Insert(ctx, name, Position(i)))
	}
	require.NoError(t, idx.Close())

	idx, err = Open(path, BTree, Text, WithTextWidth(8))
	require.NoError(t, err)
	defer idx.Close()

	pos, err := idx.Search(ctx, "alice")
	require.NoError(t, err)
	assert.ElementsMatch(t, []Position{1, 3}, pos)
}

func TestOpenNamed(t *testing.T) {
	dir := t.TempDir()

	idx, err := OpenNamed(filepath.Join(dir, "a"), "btree", "serial")
	require.NoError(t, err)
	assert.Equal(t, BTree, idx.Kind())
	assert.Equal(t, Int, idx.KeyKind())
	require.NoError(t, idx.Close())

	_, err = OpenNamed(filepath.Join(dir, "b"), "trie", "int")
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = OpenNamed(filepath.Join(dir, "c"), "AVL", "blob")
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, keycodec.ErrInvalidKind)
}

func TestInvalidKeys(t *testing.T) {
	ctx := context.Background()
	idx := openIndex(t, AVL, Int)

	err := idx.Insert(ctx, "seven", 1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.ErrorIs(t, err, keycodec.ErrKeyType)

	_, err = idx.Search(ctx, int64(1)<<40)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.ErrorIs(t, err, keycodec.ErrKeyRange)

	text := openIndex(t, Hash, Text, WithTextWidth(4))
	err = text.Insert(ctx, "too long", 1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.ErrorIs(t, err, keycodec.ErrKeyTooLong)
}

func TestDuplicateKey(t *testing.T) {
	ctx := context.Background()
	idx := openIndex(t, AVL, Float)

	require.NoError(t, idx.Insert(ctx, 1.5, 1))
	assert.ErrorIs(t, idx.Insert(ctx, float32(1.5), 2), ErrDuplicateKey)
	assert.Equal(t, 1, idx.Len())
}

func TestDepthLimit(t *testing.T) {
	ctx := context.Background()
	idx := openIndex(t, Hash, Int, WithBlockFactor(1), WithMaxDepth(2), WithOverflowChaining(false))

	var err error
	for k := 0; k < 5 && err == nil; k++ {
		err = idx.Insert(ctx, k, Position(k))
	}
	assert.ErrorIs(t, err, ErrDepthLimit)
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	m := &BasicMetricsCollector{}
	idx := openIndex(t, BTree, Int, WithMetricsCollector(m))

	for k := range 10 {
		require.NoError(t, idx.Insert(ctx, k, Position(k)))
	}
	_, err := idx.Search(ctx, 3)
	require.NoError(t, err)
	_, err = idx.RangeSearch(ctx, 0, 4)
	require.NoError(t, err)
	_, err = idx.Delete(ctx, 99)
	require.NoError(t, err)
	_ = idx.Insert(ctx, "x", 1)

	s := m.GetStats()
	assert.Equal(t, int64(11), s.InsertCount)
	assert.Equal(t, int64(1), s.InsertErrors)
	assert.Equal(t, int64(1), s.SearchCount)
	assert.Equal(t, int64(1), s.SearchResults)
	assert.Equal(t, int64(5), s.RangeResults)
	assert.Equal(t, int64(1), s.DeleteMisses)
}

func TestLogging(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	logger := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	idx := openIndex(t, AVL, Int, WithLogger(logger))

	require.NoError(t, idx.Insert(ctx, 7, 70))
	require.Error(t, idx.Insert(ctx, 7, 71))

	out := buf.String()
	assert.Contains(t, out, `"msg":"insert completed"`)
	assert.Contains(t, out, `"msg":"insert failed"`)
	assert.Contains(t, out, `"kind":"AVL"`)
	assert.Contains(t, out, `"position":71`)
}

func TestSharedCache(t *testing.T) {
	ctx := context.Background()
	rc := NewResourceController(ResourceConfig{MemoryLimitBytes: 1 << 20})
	c := NewBlockCache(1<<20, rc)

	a := openIndex(t, AVL, Int, WithCache(c))
	b := openIndex(t, BTree, Int, WithCache(c))
	for k := range 50 {
		require.NoError(t, a.Insert(ctx, k, Position(k)))
		require.NoError(t, b.Insert(ctx, k, Position(k)))
	}
	for k := range 50 {
		pos, err := a.Search(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, []Position{Position(k)}, pos)
		pos, err = b.Search(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, []Position{Position(k)}, pos)
	}

	hits, _ := c.Stats()
	assert.Positive(t, hits)
	assert.Positive(t, rc.MemoryUsage())
}

func TestReuseSlotsOption(t *testing.T) {
	idx := openIndex(t, AVL, Int, WithReuseSlots(true), WithSync(true))
	assert.Len(t, idx.Files(), 2)
}
