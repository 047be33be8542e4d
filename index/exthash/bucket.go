package exthash

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/hupe1980/diskidx/index"
)

const (
	none         int64 = -1
	bucketHeader       = 12
)

type bucket struct {
	off      int64
	depth    int
	overflow int64
	keys     [][]byte
	pos      []int32
}

func (h *Hash) bucketSize() int {
	return bucketHeader + h.opts.BlockFactor*(h.codec.Width()+4)
}

// hashKey returns the low 64 bits of the SHA-256 digest of an encoded key.
func hashKey(key []byte) uint64 {
	sum := sha256.Sum256(key)
	return binary.BigEndian.Uint64(sum[len(sum)-8:])
}

func lowBits(v uint64, depth int) uint64 {
	return v & (1<<depth - 1)
}

func (h *Hash) readBucket(off int64) (*bucket, error) {
	size := int64(h.bucketSize())
	if off < 0 || off%size != 0 || off >= h.buckets.Size() {
		return nil, index.Corruptf("%s: invalid bucket offset %d", h.buckets.Path(), off)
	}
	b, err := h.buckets.ReadAt(off, int(size))
	if err != nil {
		return nil, err
	}

	count := int(int32(binary.LittleEndian.Uint32(b[0:])))
	if count < 0 || count > h.opts.BlockFactor {
		return nil, index.Corruptf("%s: bucket %d holds %d records, block factor %d", h.buckets.Path(), off, count, h.opts.BlockFactor)
	}
	bk := &bucket{
		off:      off,
		overflow: int64(int32(binary.LittleEndian.Uint32(b[4:]))),
		depth:    int(int32(binary.LittleEndian.Uint32(b[8:]))),
		keys:     make([][]byte, count),
		pos:      make([]int32, count),
	}

	w := h.codec.Width()
	p := bucketHeader
	for i := range count {
		bk.keys[i] = b[p : p+w : p+w]
		bk.pos[i] = int32(binary.LittleEndian.Uint32(b[p+w:]))
		p += w + 4
	}
	return bk, nil
}

func (h *Hash) encodeBucket(bk *bucket) []byte {
	w := h.codec.Width()
	b := make([]byte, h.bucketSize())
	binary.LittleEndian.PutUint32(b[0:], uint32(int32(len(bk.keys))))
	binary.LittleEndian.PutUint32(b[4:], uint32(int32(bk.overflow)))
	binary.LittleEndian.PutUint32(b[8:], uint32(int32(bk.depth)))

	p := bucketHeader
	for i := range h.opts.BlockFactor {
		pos := int32(-1)
		if i < len(bk.keys) {
			copy(b[p:p+w], bk.keys[i])
			pos = bk.pos[i]
		}
		binary.LittleEndian.PutUint32(b[p+w:], uint32(pos))
		p += w + 4
	}
	return b
}

func (h *Hash) writeBucket(bk *bucket) error {
	return h.buckets.WriteAt(bk.off, h.encodeBucket(bk))
}

// appendBucket stores bk at the end of the bucket file and sets bk.off.
func (h *Hash) appendBucket(bk *bucket) error {
	// overflow links are int32 on disk
	if end := h.buckets.Size() + int64(h.bucketSize()); end > 1<<31-1 {
		return fmt.Errorf("%w: bucket file would exceed int32 offsets", index.ErrDepthLimit)
	}
	off, err := h.buckets.Append(h.encodeBucket(bk))
	if err != nil {
		return err
	}
	bk.off = off
	return nil
}

func (bk *bucket) full(blockFactor int) bool { return len(bk.keys) >= blockFactor }

func (bk *bucket) add(key []byte, pos int32) {
	bk.keys = append(bk.keys, key)
	bk.pos = append(bk.pos, pos)
}

// removeAll drops every record whose key satisfies match, keeping order.
func (bk *bucket) removeAll(match func(k []byte) bool) int {
	n := len(bk.keys)
	keep := 0
	for i := range bk.keys {
		if match(bk.keys[i]) {
			continue
		}
		bk.keys[keep], bk.pos[keep] = bk.keys[i], bk.pos[i]
		keep++
	}
	bk.keys = slices.Clip(bk.keys[:keep])
	bk.pos = slices.Clip(bk.pos[:keep])
	return n - keep
}
