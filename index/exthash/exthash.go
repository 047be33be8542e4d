package exthash

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
	"path/filepath"
	"sync"

	"github.com/hupe1980/diskidx/index"
	"github.com/hupe1980/diskidx/internal/cache"
	"github.com/hupe1980/diskidx/internal/conv"
	"github.com/hupe1980/diskidx/internal/fs"
	"github.com/hupe1980/diskidx/internal/pagefile"
	"github.com/hupe1980/diskidx/keycodec"
)

const (
	// DirectoryFile is the name of the directory file inside the index directory.
	DirectoryFile = "directory.dat"
	// BucketsFile is the name of the bucket file inside the index directory.
	BucketsFile = "buckets.dat"

	// InitialDepth is the global depth of a new index.
	InitialDepth = 2
	// DefaultBlockFactor is the default number of records per bucket.
	DefaultBlockFactor = 4
	// DefaultMaxDepth is the default local depth at which buckets start chaining.
	DefaultMaxDepth = 8
	// MaxMaxDepth bounds MaxDepth so the directory stays addressable.
	MaxMaxDepth = 30
)

func init() {
	index.Register(index.ExtendibleHash, func(cfg index.Config) (index.Index, error) {
		return Open(cfg.Path, cfg.Codec, func(o *Options) {
			o.FS = cfg.FileSystem()
			o.Cache = cfg.Cache
			o.Sync = cfg.Sync
			if cfg.BlockFactor != 0 {
				o.BlockFactor = cfg.BlockFactor
			}
			if cfg.MaxDepth != 0 {
				o.MaxDepth = cfg.MaxDepth
			}
			o.Overflow = !cfg.DisableOverflow
		})
	})
}

// Options configures a Hash.
type Options struct {
	// FS is the file system holding the index directory.
	FS fs.FileSystem
	// Cache is an optional bucket cache shared with other indexes.
	Cache cache.BlockCache
	// Sync fsyncs both files after every mutating call.
	Sync bool
	// BlockFactor is the number of records per bucket. It must not change
	// between runs.
	BlockFactor int
	// MaxDepth is the local depth at which buckets stop splitting.
	MaxDepth int
	// Overflow chains extra buckets behind a full bucket at MaxDepth.
	// When false such an insert fails with index.ErrDepthLimit.
	Overflow bool
}

// DefaultOptions are the options used by Open before option functions run.
var DefaultOptions = Options{
	FS:          fs.Default,
	BlockFactor: DefaultBlockFactor,
	MaxDepth:    DefaultMaxDepth,
	Overflow:    true,
}

// Hash is a disk-resident extendible hash index.
type Hash struct {
	mu          sync.Mutex
	dirPath     string
	codec       *keycodec.Codec
	opts        Options
	directory   *pagefile.File
	buckets     *pagefile.File
	dir         []int64
	globalDepth int
	count       int
	closed      bool
}

var (
	_ index.Index    = (*Hash)(nil)
	_ index.Dumper   = (*Hash)(nil)
	_ index.Verifier = (*Hash)(nil)
)

// Open opens the hash index stored in dir, creating it if needed.
func Open(dir string, codec *keycodec.Codec, optFns ...func(o *Options)) (*Hash, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.FS == nil {
		opts.FS = fs.Default
	}
	if codec == nil {
		return nil, fmt.Errorf("%w: nil codec", index.ErrInvalidConfig)
	}
	if opts.BlockFactor < 1 {
		return nil, fmt.Errorf("%w: block factor %d", index.ErrInvalidConfig, opts.BlockFactor)
	}
	if opts.MaxDepth < InitialDepth || opts.MaxDepth > MaxMaxDepth {
		return nil, fmt.Errorf("%w: max depth %d outside [%d,%d]", index.ErrInvalidConfig, opts.MaxDepth, InitialDepth, MaxMaxDepth)
	}

	if err := opts.FS.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("exthash: create %s: %w", dir, err)
	}

	h := &Hash{dirPath: dir, codec: codec, opts: opts}

	var err error
	h.directory, err = pagefile.Open(opts.FS, filepath.Join(dir, DirectoryFile), pagefile.Options{
		Cache:     opts.Cache,
		CacheKind: cache.CacheKindHeader,
		Sync:      opts.Sync,
	})
	if err != nil {
		return nil, err
	}
	h.buckets, err = pagefile.Open(opts.FS, filepath.Join(dir, BucketsFile), pagefile.Options{
		Cache:     opts.Cache,
		CacheKind: cache.CacheKindBucket,
		Sync:      opts.Sync,
	})
	if err != nil {
		_ = h.directory.Close()
		return nil, err
	}

	if err := h.load(); err != nil {
		_ = h.directory.Close()
		_ = h.buckets.Close()
		return nil, err
	}
	return h, nil
}

func (h *Hash) load() error {
	dirSize, bucketsSize := h.directory.Size(), h.buckets.Size()
	if dirSize == 0 && bucketsSize == 0 {
		return h.create()
	}
	if dirSize == 0 || bucketsSize == 0 {
		return index.Corruptf("%s: one of %s and %s is empty", h.dirPath, DirectoryFile, BucketsFile)
	}

	slots := dirSize / 8
	if dirSize%8 != 0 || bits.OnesCount64(uint64(slots)) != 1 {
		return index.Corruptf("%s: directory size %d is not 8*2^n", h.directory.Path(), dirSize)
	}
	if bucketsSize%int64(h.bucketSize()) != 0 {
		return index.Corruptf("%s: size %d is not a multiple of bucket size %d", h.buckets.Path(), bucketsSize, h.bucketSize())
	}

	b, err := h.directory.ReadAt(0, int(dirSize))
	if err != nil {
		return err
	}
	h.globalDepth = bits.TrailingZeros64(uint64(slots))
	h.dir = make([]int64, slots)
	for i := range h.dir {
		off, err := conv.Uint64ToInt64(binary.LittleEndian.Uint64(b[8*i:]))
		if err != nil {
			return index.Corruptf("%s: slot %d: %v", h.directory.Path(), i, err)
		}
		h.dir[i] = off
	}

	// Neither file stores a record count, so Len is rebuilt from every bucket.
	return h.forEachBucket(func(bk *bucket, _ bool) error {
		if bk.depth < 1 || bk.depth > h.globalDepth {
			return index.Corruptf("%s: bucket %d local depth %d, global depth %d", h.buckets.Path(), bk.off, bk.depth, h.globalDepth)
		}
		h.count += len(bk.keys)
		return nil
	})
}

func (h *Hash) create() error {
	h.globalDepth = InitialDepth
	h.dir = make([]int64, 1<<InitialDepth)
	for i := range h.dir {
		bk := &bucket{depth: InitialDepth, overflow: none}
		if err := h.appendBucket(bk); err != nil {
			return err
		}
		h.dir[i] = bk.off
	}
	if err := writeDirectory(h.directory, h.dir); err != nil {
		return err
	}
	return h.flush()
}

func writeDirectory(f *pagefile.File, dir []int64) error {
	b := make([]byte, 8*len(dir))
	for i, off := range dir {
		binary.LittleEndian.PutUint64(b[8*i:], uint64(off))
	}
	return f.WriteAt(0, b)
}

func (h *Hash) flush() error {
	if err := h.buckets.Flush(); err != nil {
		return err
	}
	return h.directory.Flush()
}

// forEachBucket visits every distinct bucket once, primaries before their
// overflow chains. chained is true for overflow buckets.
func (h *Hash) forEachBucket(fn func(bk *bucket, chained bool) error) error {
	seen := make(map[int64]bool)
	for _, off := range h.dir {
		if seen[off] {
			continue
		}
		chained := false
		for off != none {
			if seen[off] {
				return index.Corruptf("%s: bucket %d reachable twice", h.buckets.Path(), off)
			}
			seen[off] = true
			bk, err := h.readBucket(off)
			if err != nil {
				return err
			}
			if err := fn(bk, chained); err != nil {
				return err
			}
			off, chained = bk.overflow, true
		}
	}
	return nil
}

// Insert adds key -> pos. Duplicate keys are allowed.
func (h *Hash) Insert(key any, pos index.Position) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return index.ErrClosed
	}
	p, err := conv.Int64ToInt32(pos)
	if err != nil {
		return fmt.Errorf("%w: %v", index.ErrPositionRange, err)
	}
	k, err := h.codec.Encode(key)
	if err != nil {
		return err
	}

	if err := h.insert(k, p); err != nil {
		return err
	}
	h.count++
	return h.flush()
}

func (h *Hash) insert(key []byte, pos int32) error {
	hv := hashKey(key)
	for {
		slot := lowBits(hv, h.globalDepth)
		bk, err := h.readBucket(h.dir[slot])
		if err != nil {
			return err
		}

		if !bk.full(h.opts.BlockFactor) {
			bk.add(key, pos)
			return h.writeBucket(bk)
		}

		if bk.depth >= h.opts.MaxDepth {
			return h.insertOverflow(bk, key, pos)
		}

		if err := h.split(bk); err != nil {
			return err
		}
	}
}

// insertOverflow puts the record in the first chained bucket with space,
// appending a new bucket to the chain when all are full.
func (h *Hash) insertOverflow(bk *bucket, key []byte, pos int32) error {
	if !h.opts.Overflow {
		return fmt.Errorf("%w: bucket %d full at local depth %d", index.ErrDepthLimit, bk.off, bk.depth)
	}

	for bk.overflow != none {
		next, err := h.readBucket(bk.overflow)
		if err != nil {
			return err
		}
		if next.depth != bk.depth {
			return index.Corruptf("%s: overflow bucket %d depth %d, chain depth %d", h.buckets.Path(), next.off, next.depth, bk.depth)
		}
		bk = next
		if !bk.full(h.opts.BlockFactor) {
			bk.add(key, pos)
			return h.writeBucket(bk)
		}
	}

	chained := &bucket{depth: bk.depth, overflow: none}
	chained.add(key, pos)
	if err := h.appendBucket(chained); err != nil {
		return err
	}
	bk.overflow = chained.off
	return h.writeBucket(bk)
}

// split raises the local depth of bk by one and moves the records whose new
// hash bit is set into a new bucket. The directory and global depth change
// only once every write has succeeded.
func (h *Hash) split(bk *bucket) error {
	depth := bk.depth + 1
	globalDepth := h.globalDepth
	dir := append([]int64(nil), h.dir...)
	if depth > globalDepth {
		dir = append(dir, dir...)
		globalDepth++
	}

	bit := uint(depth - 1)
	sibling := &bucket{depth: depth, overflow: none}
	kept := &bucket{off: bk.off, depth: depth, overflow: bk.overflow}
	for i, k := range bk.keys {
		if hashKey(k)>>bit&1 == 1 {
			sibling.add(k, bk.pos[i])
		} else {
			kept.add(k, bk.pos[i])
		}
	}

	if err := h.appendBucket(sibling); err != nil {
		return err
	}
	if err := h.writeBucket(kept); err != nil {
		return errors.Join(err, h.writeBucket(bk))
	}

	for j, off := range dir {
		if off == bk.off && uint64(j)>>bit&1 == 1 {
			dir[j] = sibling.off
		}
	}
	// The sibling stays unreachable when the directory write fails.
	if err := writeDirectory(h.directory, dir); err != nil {
		return errors.Join(err, h.writeBucket(bk))
	}
	h.dir, h.globalDepth = dir, globalDepth
	return nil
}

// Search returns the position of the first record equal to key, or an empty slice.
func (h *Hash) Search(key any) ([]index.Position, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, index.ErrClosed
	}
	k, err := h.codec.Encode(key)
	if err != nil {
		return nil, err
	}

	off := h.dir[lowBits(hashKey(k), h.globalDepth)]
	for off != none {
		bk, err := h.readBucket(off)
		if err != nil {
			return nil, err
		}
		for i, bkKey := range bk.keys {
			if h.codec.CompareEncoded(bkKey, k) == 0 {
				return []index.Position{index.Position(bk.pos[i])}, nil
			}
		}
		off = bk.overflow
	}
	return []index.Position{}, nil
}

// RangeSearch is not supported by hash indexes.
func (h *Hash) RangeSearch(low, high any) ([]index.Entry, error) {
	return nil, fmt.Errorf("%w: range search on a hash index", index.ErrUnsupported)
}

// Delete removes every record equal to key across the bucket chain.
// Buckets that hold no match are not rewritten.
func (h *Hash) Delete(key any) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false, index.ErrClosed
	}
	k, err := h.codec.Encode(key)
	if err != nil {
		return false, err
	}

	removed := 0
	off := h.dir[lowBits(hashKey(k), h.globalDepth)]
	for off != none {
		bk, err := h.readBucket(off)
		if err != nil {
			return false, err
		}
		if n := bk.removeAll(func(b []byte) bool { return h.codec.CompareEncoded(b, k) == 0 }); n > 0 {
			if err := h.writeBucket(bk); err != nil {
				return false, err
			}
			removed += n
		}
		off = bk.overflow
	}
	if removed == 0 {
		return false, nil
	}
	h.count -= removed
	return true, h.flush()
}

// Len returns the number of records.
func (h *Hash) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Kind returns index.ExtendibleHash.
func (h *Hash) Kind() index.Kind { return index.ExtendibleHash }

// Files returns the directory and bucket files.
func (h *Hash) Files() []string {
	return []string{h.directory.Path(), h.buckets.Path()}
}

// Sync fsyncs both files.
func (h *Hash) Sync() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return index.ErrClosed
	}
	if err := h.buckets.Sync(); err != nil {
		return err
	}
	return h.directory.Sync()
}

// Close closes both files.
func (h *Hash) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	return errors.Join(h.buckets.Close(), h.directory.Close())
}
