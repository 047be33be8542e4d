package diskidx

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hupe1980/diskidx/index"
	"github.com/hupe1980/diskidx/internal/cache"
	"github.com/hupe1980/diskidx/internal/fs"
	"github.com/hupe1980/diskidx/internal/resource"
	"github.com/hupe1980/diskidx/keycodec"

	// engines register themselves with the index registry
	_ "github.com/hupe1980/diskidx/index/avl"
	_ "github.com/hupe1980/diskidx/index/bptree"
	_ "github.com/hupe1980/diskidx/index/exthash"
)

type (
	// Kind identifies an index engine.
	Kind = index.Kind
	// KeyKind is the scalar type of the indexed attribute.
	KeyKind = keycodec.Kind
	// Position identifies a record in the external heap file.
	Position = index.Position
	// Entry is one (key, position) pair returned by RangeSearch.
	Entry = index.Entry
	// BlockCache caches index records across indexes.
	BlockCache = cache.BlockCache
	// FileSystem abstracts the file system holding index files.
	FileSystem = fs.FileSystem
	// ResourceController bounds memory, background work and IO.
	ResourceController = resource.Controller
	// ResourceConfig configures a ResourceController.
	ResourceConfig = resource.Config
)

// Engines.
const (
	AVL   = index.AVL
	BTree = index.BPlusTree
	Hash  = index.ExtendibleHash
)

// Key kinds.
const (
	Int   = keycodec.Int
	Float = keycodec.Float
	Text  = keycodec.Text
)

// NewBlockCache returns a sharded LRU cache holding up to capacity bytes.
// rc may be nil.
func NewBlockCache(capacity int64, rc *ResourceController) BlockCache {
	return cache.NewShardedLRUBlockCache(capacity, rc)
}

// NewResourceController creates a resource controller.
func NewResourceController(cfg ResourceConfig) *ResourceController {
	return resource.NewController(cfg)
}

// Index is an open secondary index. It adds logging and metrics to the
// engine and validates keys against the key kind.
type Index struct {
	engine   index.Index
	codec    *keycodec.Codec
	path     string
	logger   *Logger
	metrics  MetricsCollector
	resource *resource.Controller
}

// Open opens or creates the index at path. For Hash, path is a directory.
func Open(path string, kind Kind, keyKind KeyKind, optFns ...Option) (*Index, error) {
	o := applyOptions(optFns)

	codec, err := keycodec.New(keyKind, o.textWidth)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	c := o.cache
	if c == nil && o.cacheSize > 0 {
		c = cache.NewShardedLRUBlockCache(o.cacheSize, o.resource)
	}

	engine, err := index.Open(kind, index.Config{
		Path:            path,
		Codec:           codec,
		FS:              o.fs,
		Cache:           c,
		Sync:            o.sync,
		Order:           o.order,
		BlockFactor:     o.blockFactor,
		MaxDepth:        o.maxDepth,
		DisableOverflow: o.disableOverflow,
		ReuseSlots:      o.reuseSlots,
	})
	if err != nil {
		o.logger.Error("open failed", "kind", kind.String(), "path", path, "error", err)
		return nil, err
	}

	logger := o.logger.WithIndex(kind, path)
	logger.Debug("index opened", "key", codec.String(), "entries", engine.Len())

	return &Index{
		engine:   engine,
		codec:    codec,
		path:     path,
		logger:   logger,
		metrics:  o.metricsCollector,
		resource: o.resource,
	}, nil
}

// OpenNamed is Open with the engine and key kind given by name, for example
// "BTREE" and "int".
func OpenNamed(path, kindName, keyKindName string, optFns ...Option) (*Index, error) {
	kind, err := index.ParseKind(kindName)
	if err != nil {
		return nil, err
	}
	keyKind, err := keycodec.ParseKind(keyKindName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return Open(path, kind, keyKind, optFns...)
}

// Insert adds key -> pos.
func (x *Index) Insert(ctx context.Context, key any, pos Position) error {
	start := time.Now()
	err := translateError(x.engine.Insert(key, pos))
	x.metrics.RecordInsert(time.Since(start), err)
	x.logger.LogInsert(ctx, key, pos, err)
	return err
}

// Search returns the positions stored under key. A miss returns an empty
// slice and a nil error.
func (x *Index) Search(ctx context.Context, key any) ([]Position, error) {
	start := time.Now()
	pos, err := x.engine.Search(key)
	err = translateError(err)
	x.metrics.RecordSearch(len(pos), time.Since(start), err)
	x.logger.LogSearch(ctx, key, len(pos), err)
	return pos, err
}

// RangeSearch returns all entries with low <= key <= high in key order.
// Hash indexes return ErrUnsupported.
func (x *Index) RangeSearch(ctx context.Context, low, high any) ([]Entry, error) {
	start := time.Now()
	entries, err := x.engine.RangeSearch(low, high)
	err = translateError(err)
	x.metrics.RecordRangeSearch(len(entries), time.Since(start), err)
	x.logger.LogRangeSearch(ctx, low, high, len(entries), err)
	return entries, err
}

// Delete removes key and reports whether anything was removed.
func (x *Index) Delete(ctx context.Context, key any) (bool, error) {
	start := time.Now()
	removed, err := x.engine.Delete(key)
	err = translateError(err)
	x.metrics.RecordDelete(removed, time.Since(start), err)
	x.logger.LogDelete(ctx, key, removed, err)
	return removed, err
}

// Len returns the number of stored entries.
func (x *Index) Len() int { return x.engine.Len() }

// Kind returns the engine kind.
func (x *Index) Kind() Kind { return x.engine.Kind() }

// KeyKind returns the key kind.
func (x *Index) KeyKind() KeyKind { return x.codec.Kind() }

// Path returns the path the index was opened with.
func (x *Index) Path() string { return x.path }

// Files returns the files owned by the index, for example to snapshot them.
func (x *Index) Files() []string { return x.engine.Files() }

// Engine returns the underlying engine.
func (x *Index) Engine() index.Index { return x.engine }

// Dump writes a human-readable picture of the on-disk structure to w.
func (x *Index) Dump(w io.Writer) error {
	d, ok := x.engine.(index.Dumper)
	if !ok {
		return fmt.Errorf("%w: dump on %v", ErrUnsupported, x.Kind())
	}
	return d.Dump(w)
}

// Verify checks the structural invariants of the on-disk structure.
func (x *Index) Verify() error {
	v, ok := x.engine.(index.Verifier)
	if !ok {
		return fmt.Errorf("%w: verify on %v", ErrUnsupported, x.Kind())
	}
	return v.Verify()
}

// Sync flushes the index files to stable storage.
func (x *Index) Sync() error { return x.engine.Sync() }

// Close closes the index. Closing twice is a no-op.
func (x *Index) Close() error {
	err := x.engine.Close()
	if err != nil {
		x.logger.Error("close failed", "error", err)
	}
	return err
}
