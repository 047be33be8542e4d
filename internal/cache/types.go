package cache

// CacheKind separates key spaces so a whole class of records can be
// invalidated at once.
type CacheKind uint8

const (
	CacheKindUnknown   CacheKind = iota
	CacheKindHeader              // file headers (root pointers, directory)
	CacheKindNode                // AVL and B+Tree node records
	CacheKindBucket              // extendible hash bucket blocks
)

// CacheKey identifies one record of one file.
type CacheKey struct {
	Kind CacheKind
	// Path identifies the owning file.
	Path string
	// Offset is the record's byte offset in the file.
	Offset int64
}

// BlockCache is a byte-oriented cache for index records.
// Returned slices must be treated as read-only.
type BlockCache interface {
	// Get returns a cached block. ok=false if missing.
	Get(key CacheKey) (b []byte, ok bool)
	// Set caches a block. Implementations retain b; callers must not modify it afterwards.
	Set(key CacheKey, b []byte)
	// Invalidate removes entries matching the predicate.
	Invalidate(predicate func(key CacheKey) bool)
	// Stats returns cache statistics.
	Stats() (hits, misses int64)
}
