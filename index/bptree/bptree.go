package bptree

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/hupe1980/diskidx/index"
	"github.com/hupe1980/diskidx/internal/cache"
	"github.com/hupe1980/diskidx/internal/conv"
	"github.com/hupe1980/diskidx/internal/fs"
	"github.com/hupe1980/diskidx/internal/pagefile"
	"github.com/hupe1980/diskidx/keycodec"
)

const (
	// DefaultOrder is the order of new trees when none is configured.
	DefaultOrder = 4
	// MinOrder is the smallest supported order.
	MinOrder = 3
)

func init() {
	index.Register(index.BPlusTree, func(cfg index.Config) (index.Index, error) {
		return Open(cfg.Path, cfg.Codec, func(o *Options) {
			o.FS = cfg.FileSystem()
			o.Cache = cfg.Cache
			o.Sync = cfg.Sync
			o.Order = cfg.Order
		})
	})
}

// Options configures a Tree.
type Options struct {
	// FS is the file system holding the index file.
	FS fs.FileSystem
	// Cache is an optional node cache shared with other indexes.
	Cache cache.BlockCache
	// Sync fsyncs the file after every mutating call.
	Sync bool
	// Order is the maximum number of children of an internal node.
	// Zero selects DefaultOrder for new files and the stored order for
	// existing ones. A non-zero order must match an existing file.
	Order int
}

// DefaultOptions are the options used by Open before option functions run.
var DefaultOptions = Options{
	FS: fs.Default,
}

// Tree is a disk-resident B+Tree.
type Tree struct {
	mu        sync.Mutex
	path      string
	codec     *keycodec.Codec
	opts      Options
	file      *pagefile.File
	order     int
	minKeys   int
	recSize   int
	root      int64
	nodeCount int32
	count     int
	closed    bool
}

var (
	_ index.Index    = (*Tree)(nil)
	_ index.Dumper   = (*Tree)(nil)
	_ index.Verifier = (*Tree)(nil)
)

// Open opens the B+Tree at path, creating an empty one if the file does not exist.
func Open(path string, codec *keycodec.Codec, optFns ...func(o *Options)) (*Tree, error) {
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
	if opts.Order != 0 && opts.Order < MinOrder {
		return nil, fmt.Errorf("%w: order %d < %d", index.ErrInvalidConfig, opts.Order, MinOrder)
	}

	file, err := pagefile.Open(opts.FS, path, pagefile.Options{
		Cache:     opts.Cache,
		CacheKind: cache.CacheKindNode,
		Sync:      opts.Sync,
	})
	if err != nil {
		return nil, err
	}

	t := &Tree{path: path, codec: codec, opts: opts, file: file, root: none}
	if err := t.load(); err != nil {
		_ = file.Close()
		return nil, err
	}
	return t, nil
}

func (t *Tree) setOrder(order int) {
	t.order = order
	t.minKeys = (order - 1) / 2
	t.recSize = recordSize(order, t.codec.Width())
}

func (t *Tree) load() error {
	size := t.file.Size()
	if size == 0 {
		order := t.opts.Order
		if order == 0 {
			order = DefaultOrder
		}
		t.setOrder(order)
		if err := t.writeHeader(); err != nil {
			return err
		}
		return t.file.Flush()
	}

	b, err := t.file.ReadAt(0, headerSize)
	if err != nil {
		return err
	}
	root := int64(binary.LittleEndian.Uint64(b[0:]))
	order := int(int32(binary.LittleEndian.Uint32(b[8:])))
	nodeCount := int32(binary.LittleEndian.Uint32(b[12:]))

	if order < MinOrder {
		return index.Corruptf("%s: stored order %d", t.path, order)
	}
	if t.opts.Order != 0 && t.opts.Order != order {
		return fmt.Errorf("%w: order %d, file %s has order %d", index.ErrInvalidConfig, t.opts.Order, t.path, order)
	}
	t.setOrder(order)

	rs := int64(t.recSize)
	if (size-headerSize)%rs != 0 {
		return index.Corruptf("%s: size %d is not header + n*%d", t.path, size, rs)
	}
	records, err := conv.Int64ToInt32((size - headerSize) / rs)
	if err != nil || records != nodeCount {
		return index.Corruptf("%s: header counts %d nodes, file holds %d", t.path, nodeCount, (size-headerSize)/rs)
	}
	t.nodeCount = nodeCount
	t.root = root

	if root == none {
		return nil
	}
	// The header stores no record count, so Len is rebuilt from the leaf chain.
	leaf, err := t.leftmostLeaf()
	if err != nil {
		return err
	}
	return t.scan(leaf, func(n *node) bool {
		t.count += len(n.keys)
		return true
	})
}

func (t *Tree) writeHeader() error {
	var b [headerSize]byte
	binary.LittleEndian.PutUint64(b[0:], uint64(t.root))
	binary.LittleEndian.PutUint32(b[8:], uint32(int32(t.order)))
	binary.LittleEndian.PutUint32(b[12:], uint32(t.nodeCount))
	return t.file.WriteAt(0, b[:])
}

func (t *Tree) setRoot(root int64) error {
	if root == t.root {
		return nil
	}
	t.root = root
	return t.writeHeader()
}

// Order returns the tree order.
func (t *Tree) Order() int { return t.order }

// Search returns the positions of every entry equal to key, in leaf-chain order.
func (t *Tree) Search(key any) ([]index.Position, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, index.ErrClosed
	}
	k, err := t.codec.Encode(key)
	if err != nil {
		return nil, err
	}

	out := []index.Position{}
	err = t.collect(k, k, func(_ []byte, pos int64) {
		out = append(out, pos)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RangeSearch returns every entry with low <= key <= high in ascending order.
func (t *Tree) RangeSearch(low, high any) ([]index.Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, index.ErrClosed
	}
	lo, err := t.codec.Encode(low)
	if err != nil {
		return nil, err
	}
	hi, err := t.codec.Encode(high)
	if err != nil {
		return nil, err
	}

	out := []index.Entry{}
	err = t.collect(lo, hi, func(key []byte, pos int64) {
		out = append(out, index.Entry{Key: t.codec.Decode(key), Position: pos})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// collect descends to the leftmost leaf that may hold lo and walks the leaf
// chain, calling fn for each entry in [lo, hi].
func (t *Tree) collect(lo, hi []byte, fn func(key []byte, pos int64)) error {
	if t.root == none || t.codec.CompareEncoded(lo, hi) > 0 {
		return nil
	}

	n, err := t.readNode(t.root)
	if err != nil {
		return err
	}
	for !n.leaf {
		if n, err = t.readNode(n.children[t.lowerBound(n.keys, lo)]); err != nil {
			return err
		}
	}

	for {
		for i, k := range n.keys {
			if t.codec.CompareEncoded(k, hi) > 0 {
				return nil
			}
			if t.codec.CompareEncoded(k, lo) >= 0 {
				fn(k, n.pos[i])
			}
		}
		if n.next == none {
			return nil
		}
		if n, err = t.readNode(n.next); err != nil {
			return err
		}
	}
}

func (t *Tree) leftmostLeaf() (*node, error) {
	n, err := t.readNode(t.root)
	if err != nil {
		return nil, err
	}
	for !n.leaf {
		if n, err = t.readNode(n.children[0]); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// scan follows the leaf chain from n until fn returns false.
func (t *Tree) scan(n *node, fn func(n *node) bool) error {
	visited := 0
	for {
		if !fn(n) || n.next == none {
			return nil
		}
		visited++
		if visited > int(t.nodeCount) {
			return index.Corruptf("%s: leaf chain cycle", t.path)
		}
		var err error
		if n, err = t.readNode(n.next); err != nil {
			return err
		}
	}
}

// Len returns the number of entries.
func (t *Tree) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Kind returns index.BPlusTree.
func (t *Tree) Kind() index.Kind { return index.BPlusTree }

// Files returns the index file.
func (t *Tree) Files() []string { return []string{t.path} }

// Sync fsyncs the index file.
func (t *Tree) Sync() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return index.ErrClosed
	}
	return t.file.Sync()
}

// Close closes the index file.
func (t *Tree) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	return t.file.Close()
}
