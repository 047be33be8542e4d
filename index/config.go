package index

import (
	"fmt"

	"github.com/hupe1980/diskidx/internal/cache"
	"github.com/hupe1980/diskidx/internal/fs"
	"github.com/hupe1980/diskidx/keycodec"
)

// Config is the engine-neutral configuration passed to Open.
// Fields an engine does not use are ignored.
type Config struct {
	// Path is the index file (AVL, BTREE) or directory (HASH).
	Path string
	// Codec encodes keys. Required.
	Codec *keycodec.Codec

	// FS is the file system; nil uses the local file system.
	FS fs.FileSystem
	// Cache is an optional write-through record cache.
	Cache cache.BlockCache
	// Sync fsyncs after every mutating call.
	Sync bool

	// Order is the B+Tree order (max children per internal node).
	Order int

	// BlockFactor is the number of records per hash bucket.
	BlockFactor int
	// MaxDepth is the maximum local depth of a hash bucket.
	MaxDepth int
	// DisableOverflow makes a full hash bucket at MaxDepth fail with ErrDepthLimit
	// instead of chaining.
	DisableOverflow bool

	// ReuseSlots lets the AVL engine reuse slots of deleted nodes.
	ReuseSlots bool
}

// Validate checks the fields every engine requires.
func (c Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidConfig)
	}
	if c.Codec == nil {
		return fmt.Errorf("%w: nil codec", ErrInvalidConfig)
	}
	if c.Order < 0 || c.BlockFactor < 0 || c.MaxDepth < 0 {
		return fmt.Errorf("%w: negative size parameter", ErrInvalidConfig)
	}
	return nil
}

// FileSystem returns c.FS or the local file system.
func (c Config) FileSystem() fs.FileSystem {
	if c.FS == nil {
		return fs.Default
	}
	return c.FS
}
