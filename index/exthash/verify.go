package exthash

import (
	"fmt"
	"io"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/diskidx/index"
)

// BucketInfo is the decoded content of one bucket.
type BucketInfo struct {
	Offset     int64
	LocalDepth int
	Overflow   int64 // -1 when the bucket has no overflow bucket
	Keys       []any
	Positions  []index.Position
}

// GlobalDepth returns the number of hash bits the directory discriminates on.
func (h *Hash) GlobalDepth() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.globalDepth
}

// Directory returns a copy of the directory: one bucket offset per slot.
func (h *Hash) Directory() []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int64(nil), h.dir...)
}

// Bucket decodes the bucket at off.
func (h *Hash) Bucket(off int64) (BucketInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return BucketInfo{}, index.ErrClosed
	}
	bk, err := h.readBucket(off)
	if err != nil {
		return BucketInfo{}, err
	}
	return h.info(bk), nil
}

func (h *Hash) info(bk *bucket) BucketInfo {
	bi := BucketInfo{
		Offset:     bk.off,
		LocalDepth: bk.depth,
		Overflow:   bk.overflow,
		Keys:       make([]any, len(bk.keys)),
		Positions:  make([]index.Position, len(bk.pos)),
	}
	for i := range bk.keys {
		bi.Keys[i] = h.codec.Decode(bk.keys[i])
		bi.Positions[i] = index.Position(bk.pos[i])
	}
	return bi
}

// Verify checks the directory against the buckets: every slot points to a
// bucket whose local depth is at most the global depth, the slots sharing a
// bucket agree on its low local-depth bits, and every record hashes to the
// slots that reach it.
func (h *Hash) Verify() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return index.ErrClosed
	}
	if len(h.dir) != 1<<h.globalDepth {
		return fmt.Errorf("exthash: directory has %d slots, global depth %d", len(h.dir), h.globalDepth)
	}

	size := int64(h.bucketSize())
	slotsOf := make(map[int64]*roaring.Bitmap)
	for j, off := range h.dir {
		bm, ok := slotsOf[off]
		if !ok {
			bm = roaring.New()
			slotsOf[off] = bm
		}
		bm.Add(uint32(j))
	}

	records := 0
	reached := roaring.New()
	for off, slots := range slotsOf {
		bk, err := h.readBucket(off)
		if err != nil {
			return err
		}
		if bk.depth > h.globalDepth {
			return fmt.Errorf("exthash: bucket %d local depth %d > global depth %d", off, bk.depth, h.globalDepth)
		}
		if want := uint64(1) << (h.globalDepth - bk.depth); slots.GetCardinality() != want {
			return fmt.Errorf("exthash: bucket %d referenced by %d slots, want %d", off, slots.GetCardinality(), want)
		}
		low := lowBits(uint64(slots.Minimum()), bk.depth)
		for it := slots.Iterator(); it.HasNext(); {
			if j := it.Next(); lowBits(uint64(j), bk.depth) != low {
				return fmt.Errorf("exthash: slot %d shares bucket %d but differs in the low %d bits", j, off, bk.depth)
			}
		}

		depth := bk.depth
		for bk != nil {
			if !reached.CheckedAdd(uint32(bk.off / size)) {
				return fmt.Errorf("exthash: bucket %d reachable twice", bk.off)
			}
			if bk.depth != depth {
				return fmt.Errorf("exthash: chained bucket %d depth %d, chain depth %d", bk.off, bk.depth, depth)
			}
			if bk.off != off && depth < h.opts.MaxDepth {
				return fmt.Errorf("exthash: bucket %d chained below max depth", bk.off)
			}
			for _, k := range bk.keys {
				if lowBits(hashKey(k), depth) != low {
					return fmt.Errorf("exthash: key %s in bucket %d does not match its slots", h.codec.Format(k), bk.off)
				}
			}
			records += len(bk.keys)

			if bk.overflow == none {
				break
			}
			if bk, err = h.readBucket(bk.overflow); err != nil {
				return err
			}
		}
	}

	if records != h.count {
		return fmt.Errorf("exthash: %d records, count %d", records, h.count)
	}
	return nil
}

// Dump writes the directory followed by every bucket chain.
func (h *Hash) Dump(w io.Writer) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return index.ErrClosed
	}
	if _, err := fmt.Fprintf(w, "HASH %s global_depth=%d records=%d\n", h.dirPath, h.globalDepth, h.count); err != nil {
		return err
	}
	for j, off := range h.dir {
		if _, err := fmt.Fprintf(w, "  %0*b -> %d\n", max(h.globalDepth, 1), j, off); err != nil {
			return err
		}
	}

	return h.forEachBucket(func(bk *bucket, chained bool) error {
		recs := make([]string, len(bk.keys))
		for i, k := range bk.keys {
			recs[i] = fmt.Sprintf("%s:%d", h.codec.Format(k), bk.pos[i])
		}
		prefix := "bucket"
		if chained {
			prefix = "  overflow"
		}
		_, err := fmt.Fprintf(w, "%s@%d depth=%d next=%d [%s]\n", prefix, bk.off, bk.depth, bk.overflow, strings.Join(recs, " "))
		return err
	})
}
