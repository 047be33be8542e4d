package avl

import (
	"fmt"
	"sync"

	"github.com/hupe1980/diskidx/index"
	"github.com/hupe1980/diskidx/internal/cache"
	"github.com/hupe1980/diskidx/internal/conv"
	"github.com/hupe1980/diskidx/internal/fs"
	"github.com/hupe1980/diskidx/internal/pagefile"
	"github.com/hupe1980/diskidx/keycodec"
)

func init() {
	index.Register(index.AVL, func(cfg index.Config) (index.Index, error) {
		return Open(cfg.Path, cfg.Codec, func(o *Options) {
			o.FS = cfg.FileSystem()
			o.Cache = cfg.Cache
			o.Sync = cfg.Sync
			o.ReuseSlots = cfg.ReuseSlots
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
	// ReuseSlots hands slots of deleted nodes to later inserts.
	// When false the file grows by one record per insert and never shrinks.
	ReuseSlots bool
}

// DefaultOptions are the options used by Open before option functions run.
var DefaultOptions = Options{
	FS: fs.Default,
}

// Tree is a disk-resident AVL tree mapping unique keys to positions.
type Tree struct {
	mu     sync.Mutex
	path   string
	codec  *keycodec.Codec
	opts   Options
	file   *pagefile.File
	free   *freeList
	root   int32
	slots  int32
	count  int
	closed bool
}

var (
	_ index.Index    = (*Tree)(nil)
	_ index.Dumper   = (*Tree)(nil)
	_ index.Verifier = (*Tree)(nil)
)

// Open opens the AVL index at path, creating an empty one if the file does not exist.
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

func (t *Tree) load() error {
	var err error
	t.free, err = loadFreeList(t.opts.FS, t.path, t.opts.ReuseSlots, t.opts.Sync)
	if err != nil {
		return err
	}

	size := t.file.Size()
	if size == 0 {
		if err := t.storeRoot(none); err != nil {
			return err
		}
		return t.file.Flush()
	}

	root, err := t.readRoot()
	if err != nil {
		return err
	}

	rs := int64(t.recordSize())
	if (size-headerSize)%rs != 0 {
		return index.Corruptf("%s: size %d is not header + n*%d", t.path, size, rs)
	}
	slots, err := conv.Int64ToInt32((size - headerSize) / rs)
	if err != nil {
		return index.Corruptf("%s: %v", t.path, err)
	}
	t.slots = slots
	if root != none && (root < 0 || root >= slots) {
		return index.Corruptf("%s: root slot %d outside [0,%d)", t.path, root, slots)
	}
	t.root = root

	// The header stores no record count, so Len is rebuilt by a full walk.
	return t.walk(t.root, func(*node) bool {
		t.count++
		return true
	})
}

// Insert adds key -> pos. It fails with index.ErrDuplicateKey if key exists.
func (t *Tree) Insert(key any, pos index.Position) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return index.ErrClosed
	}
	p, err := conv.Int64ToInt32(pos)
	if err != nil {
		return fmt.Errorf("%w: %v", index.ErrPositionRange, err)
	}
	k, err := t.codec.Encode(key)
	if err != nil {
		return err
	}

	root, err := t.insert(t.root, k, p)
	if err != nil {
		return err
	}
	if err := t.writeRoot(root); err != nil {
		return err
	}
	t.count++
	return t.file.Flush()
}

func (t *Tree) insert(slot int32, key []byte, pos int32) (int32, error) {
	if slot == none {
		return t.allocate(&node{key: key, pos: pos, left: none, right: none, height: 1})
	}

	n, err := t.readNode(slot)
	if err != nil {
		return none, err
	}

	switch c := t.codec.CompareEncoded(key, n.key); {
	case c == 0:
		return none, fmt.Errorf("%w: %s", index.ErrDuplicateKey, t.codec.Format(key))
	case c < 0:
		child, err := t.insert(n.left, key, pos)
		if err != nil {
			return none, err
		}
		n.left = child
	default:
		child, err := t.insert(n.right, key, pos)
		if err != nil {
			return none, err
		}
		n.right = child
	}

	return t.rebalance(slot, n)
}

// Search returns the position stored under key, or an empty slice.
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

	slot := t.root
	for slot != none {
		n, err := t.readNode(slot)
		if err != nil {
			return nil, err
		}
		switch c := t.codec.CompareEncoded(k, n.key); {
		case c == 0:
			return []index.Position{index.Position(n.pos)}, nil
		case c < 0:
			slot = n.left
		default:
			slot = n.right
		}
	}
	return []index.Position{}, nil
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
	if t.codec.CompareEncoded(lo, hi) > 0 {
		return out, nil
	}
	if err := t.rangeSearch(t.root, lo, hi, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *Tree) rangeSearch(slot int32, lo, hi []byte, out *[]index.Entry) error {
	if slot == none {
		return nil
	}
	n, err := t.readNode(slot)
	if err != nil {
		return err
	}

	cl := t.codec.CompareEncoded(lo, n.key)
	ch := t.codec.CompareEncoded(n.key, hi)
	if cl < 0 {
		if err := t.rangeSearch(n.left, lo, hi, out); err != nil {
			return err
		}
	}
	if cl <= 0 && ch <= 0 {
		*out = append(*out, index.Entry{Key: t.codec.Decode(n.key), Position: index.Position(n.pos)})
	}
	if ch < 0 {
		return t.rangeSearch(n.right, lo, hi, out)
	}
	return nil
}

// Delete removes key and reports whether it was present.
// Deleting an absent key writes nothing.
func (t *Tree) Delete(key any) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return false, index.ErrClosed
	}
	k, err := t.codec.Encode(key)
	if err != nil {
		return false, err
	}

	var freed int32 = none
	root, found, err := t.delete(t.root, k, &freed)
	if err != nil || !found {
		return false, err
	}
	if err := t.writeRoot(root); err != nil {
		return false, err
	}
	t.count--

	if freed != none && t.free.enabled {
		t.free.add(freed)
		if err := t.free.persist(); err != nil {
			return true, err
		}
	}
	return true, t.file.Flush()
}

func (t *Tree) delete(slot int32, key []byte, freed *int32) (int32, bool, error) {
	if slot == none {
		return none, false, nil
	}
	n, err := t.readNode(slot)
	if err != nil {
		return none, false, err
	}

	switch c := t.codec.CompareEncoded(key, n.key); {
	case c < 0:
		child, found, err := t.delete(n.left, key, freed)
		if err != nil || !found {
			return slot, found, err
		}
		n.left = child
	case c > 0:
		child, found, err := t.delete(n.right, key, freed)
		if err != nil || !found {
			return slot, found, err
		}
		n.right = child
	default:
		if n.left == none || n.right == none {
			*freed = slot
			if n.left == none {
				return n.right, true, nil
			}
			return n.left, true, nil
		}

		succ, err := t.minNode(n.right)
		if err != nil {
			return none, false, err
		}
		n.key, n.pos = succ.key, succ.pos
		child, _, err := t.delete(n.right, succ.key, freed)
		if err != nil {
			return none, false, err
		}
		n.right = child
	}

	root, err := t.rebalance(slot, n)
	return root, true, err
}

func (t *Tree) minNode(slot int32) (*node, error) {
	for {
		n, err := t.readNode(slot)
		if err != nil {
			return nil, err
		}
		if n.left == none {
			return n, nil
		}
		slot = n.left
	}
}

// Len returns the number of keys.
func (t *Tree) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Kind returns index.AVL.
func (t *Tree) Kind() index.Kind { return index.AVL }

// Files returns the index file and, with slot reuse enabled, its free list.
func (t *Tree) Files() []string {
	if t.opts.ReuseSlots {
		return []string{t.path, freeListPath(t.path)}
	}
	return []string{t.path}
}

// Slots returns the number of node records in the file, including deleted ones.
func (t *Tree) Slots() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return int(t.slots)
}

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
