package integration_test

import (
	"context"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/diskidx"
	"github.com/hupe1980/diskidx/testutil"
)

func engineOptions(kind diskidx.Kind) []diskidx.Option {
	switch kind {
	case diskidx.BTree:
		return []diskidx.Option{diskidx.WithOrder(5)}
	case diskidx.Hash:
		return []diskidx.Option{diskidx.WithBlockFactor(3)}
	default:
		return []diskidx.Option{diskidx.WithReuseSlots(true)}
	}
}

// TestModelCheck replays a random insert/delete workload against every
// engine and an in-memory model, reopening the index periodically.
func TestModelCheck(t *testing.T) {
	ctx := context.Background()

	for _, kind := range []diskidx.Kind{diskidx.AVL, diskidx.BTree, diskidx.Hash} {
		t.Run(kind.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "model")
			open := func() *diskidx.Index {
				idx, err := diskidx.Open(path, kind, diskidx.Int, engineOptions(kind)...)
				require.NoError(t, err)
				return idx
			}

			rng := testutil.NewRNG(11)
			keys := rng.UniqueInts(600, 1<<20)
			ops := rng.Ops(keys, 0.3)
			model := make(map[int]diskidx.Position)

			idx := open()
			for i, op := range ops {
				if op.Delete {
					removed, err := idx.Delete(ctx, op.Key)
					require.NoError(t, err)
					assert.True(t, removed, "delete %d", op.Key)
					delete(model, op.Key)
				} else {
					pos := diskidx.Position(i)
					require.NoError(t, idx.Insert(ctx, op.Key, pos))
					model[op.Key] = pos
				}

				if i%200 == 199 {
					require.NoError(t, idx.Verify())
					require.NoError(t, idx.Close())
					idx = open()
				}
			}
			defer idx.Close()

			require.NoError(t, idx.Verify())
			assert.Equal(t, len(model), idx.Len())

			for _, k := range keys {
				pos, err := idx.Search(ctx, k)
				require.NoError(t, err)
				if want, ok := model[k]; ok {
					assert.Equal(t, []diskidx.Position{want}, pos, "key %d", k)
				} else {
					assert.Empty(t, pos, "key %d", k)
				}
			}

			if kind == diskidx.Hash {
				return
			}

			live := make([]int, 0, len(model))
			for k := range model {
				live = append(live, k)
			}
			slices.Sort(live)

			lo, hi := 1<<18, 1<<19
			entries, err := idx.RangeSearch(ctx, lo, hi)
			require.NoError(t, err)

			var want []int32
			for _, k := range live {
				if k >= lo && k <= hi {
					want = append(want, int32(k))
				}
			}
			got := make([]int32, len(entries))
			for i, e := range entries {
				got[i] = e.Key.(int32)
				assert.Equal(t, model[int(got[i])], e.Position)
			}
			assert.Equal(t, want, got)
		})
	}
}

// TestMixedKeyKinds indexes three attributes of the same rows and answers
// a conjunctive query by intersecting positions.
func TestMixedKeyKinds(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	type row struct {
		id     int
		city   string
		rating float64
	}
	rows := []row{
		{1, "paris", 4.5},
		{2, "berlin", 3.0},
		{3, "paris", 2.5},
		{4, "rome", 4.5},
		{5, "paris", 4.0},
	}

	ids, err := diskidx.Open(filepath.Join(dir, "id.avl"), diskidx.AVL, diskidx.Int)
	require.NoError(t, err)
	defer ids.Close()
	cities, err := diskidx.Open(filepath.Join(dir, "city"), diskidx.Hash, diskidx.Text, diskidx.WithTextWidth(10))
	require.NoError(t, err)
	defer cities.Close()
	ratings, err := diskidx.Open(filepath.Join(dir, "rating.bpt"), diskidx.BTree, diskidx.Float)
	require.NoError(t, err)
	defer ratings.Close()

	for i, r := range rows {
		pos := diskidx.Position(i)
		require.NoError(t, ids.Insert(ctx, r.id, pos))
		require.NoError(t, cities.Insert(ctx, r.city, pos))
		require.NoError(t, ratings.Insert(ctx, r.rating, pos))
	}

	inParis, err := cities.Search(ctx, "paris")
	require.NoError(t, err)
	highRated, err := ratings.RangeSearch(ctx, 4.0, 5.0)
	require.NoError(t, err)

	var match []diskidx.Position
	for _, e := range highRated {
		if slices.Contains(inParis, e.Position) {
			match = append(match, e.Position)
		}
	}
	slices.Sort(match)
	assert.Equal(t, []diskidx.Position{0, 4}, match)

	pos, err := ids.Search(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "rome", rows[pos[0]].city)
}
