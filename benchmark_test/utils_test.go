package benchmark_test

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/hupe1980/diskidx"
	"github.com/hupe1980/diskidx/testutil"
)

const (
	sizeSmall  = 1_000
	sizeMedium = 10_000
	sizeLarge  = 50_000
)

var engines = []diskidx.Kind{diskidx.AVL, diskidx.BTree, diskidx.Hash}

// benchOptions returns engine-appropriate defaults for benchmarks.
func benchOptions(kind diskidx.Kind) []diskidx.Option {
	switch kind {
	case diskidx.BTree:
		return []diskidx.Option{diskidx.WithOrder(64)}
	case diskidx.Hash:
		return []diskidx.Option{diskidx.WithBlockFactor(64)}
	default:
		return nil
	}
}

// OpenBenchIndex opens an Int index of the given kind in a fresh directory.
func OpenBenchIndex(b *testing.B, kind diskidx.Kind, opts ...diskidx.Option) *diskidx.Index {
	b.Helper()
	opts = append(benchOptions(kind), opts...)
	idx, err := diskidx.Open(filepath.Join(b.TempDir(), "bench"), kind, diskidx.Int, opts...)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = idx.Close() })
	return idx
}

// LoadKeys inserts a seeded permutation of 0..n-1 and returns it.
func LoadKeys(b *testing.B, idx *diskidx.Index, n int) []int {
	b.Helper()
	keys := testutil.NewRNG(1).Perm(n)
	if _, err := diskidx.Build(context.Background(), idx, diskidx.Records(keys)); err != nil {
		b.Fatal(err)
	}
	return keys
}

func sizeName(n int) string {
	return "n=" + strconv.Itoa(n)
}
