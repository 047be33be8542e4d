// Package diskidx provides disk-resident secondary indexes for Go.
//
// An index maps the value of one attribute (an int32, float32 or fixed-width
// text key) to positions of records in an external heap file. Three engines
// share one contract:
//
//   - AVL: balanced binary search tree in a single slot-arena file
//   - BTREE: B+Tree with linked leaves and duplicate keys
//   - HASH: extendible hashing with a directory file and a bucket file
//
// # Quick Start
//
//	idx, err := diskidx.Open("ages.bpt", diskidx.BTree, diskidx.Int,
//	    diskidx.WithOrder(64),
//	    diskidx.WithLogLevel(slog.LevelInfo),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer idx.Close()
//
//	_ = idx.Insert(ctx, 42, 1001)
//	pos, _ := idx.Search(ctx, 42)
//	entries, _ := idx.RangeSearch(ctx, 18, 65)
//
// # Bulk Loading
//
// Build inserts a record sequence in order; BuildAll builds several indexes
// concurrently, bounded by an optional resource controller:
//
//	stats, err := diskidx.BuildAll(ctx, []diskidx.BuildJob{
//	    {Index: byID, Records: ids},
//	    {Index: byName, Records: names},
//	})
//
// # Snapshots
//
// Index files can be shipped to object storage with the snapshot package and
// any blobstore.BlobStore (local, MinIO, S3):
//
//	_ = idx.Sync()
//	m, err := snapshot.Save(ctx, store, "nightly", idx.Files())
//
// # Concurrency
//
// Every index serializes its operations with one mutex. Distinct indexes are
// independent and may be used from different goroutines.
package diskidx
