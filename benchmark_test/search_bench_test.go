package benchmark_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/hupe1980/diskidx"
	"github.com/hupe1980/diskidx/testutil"
)

// ============================================================================
// Search Benchmarks
// ============================================================================

// BenchmarkSearch measures point lookup latency per engine and size.
func BenchmarkSearch(b *testing.B) {
	for _, kind := range engines {
		for _, n := range []int{sizeSmall, sizeMedium} {
			b.Run(kind.String()+"/"+sizeName(n), func(b *testing.B) {
				idx := OpenBenchIndex(b, kind)
				keys := LoadKeys(b, idx, n)
				ctx := context.Background()

				b.ReportAllocs()
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					pos, err := idx.Search(ctx, keys[i%n])
					if err != nil {
						b.Fatal(err)
					}
					if len(pos) != 1 {
						b.Fatalf("key %d: %d results", keys[i%n], len(pos))
					}
				}

				b.StopTimer()
				b.ReportMetric(float64(b.N)/b.Elapsed().Seconds(), "qps")
			})
		}
	}
}

// BenchmarkSearchMiss measures lookups of absent keys.
func BenchmarkSearchMiss(b *testing.B) {
	for _, kind := range engines {
		b.Run(kind.String(), func(b *testing.B) {
			idx := OpenBenchIndex(b, kind)
			LoadKeys(b, idx, sizeMedium)
			ctx := context.Background()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := idx.Search(ctx, sizeMedium+i); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkRangeSearch measures range scans of increasing width on the
// ordered engines.
func BenchmarkRangeSearch(b *testing.B) {
	for _, kind := range []diskidx.Kind{diskidx.AVL, diskidx.BTree} {
		for _, width := range []int{10, 100, 1000} {
			b.Run(kind.String()+"/width="+strconv.Itoa(width), func(b *testing.B) {
				idx := OpenBenchIndex(b, kind)
				LoadKeys(b, idx, sizeMedium)
				rng := testutil.NewRNG(2)
				ctx := context.Background()

				b.ReportAllocs()
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					lo := rng.Intn(sizeMedium - width)
					entries, err := idx.RangeSearch(ctx, lo, lo+width-1)
					if err != nil {
						b.Fatal(err)
					}
					if len(entries) != width {
						b.Fatalf("range [%d,%d]: %d entries", lo, lo+width-1, len(entries))
					}
				}
			})
		}
	}
}
