// Package index defines the contract shared by the disk-backed secondary
// index engines.
//
// An index maps a typed attribute value (encoded by a keycodec.Codec) to the
// Position of a record in an external heap file. Engines live in
// subpackages and register themselves by Kind:
//
//   - index/avl: balanced binary search tree, unique keys
//   - index/bptree: B+Tree with linked leaves, duplicate keys
//   - index/exthash: extendible hash, point lookups only
//
// Importing an engine package for its side effects makes it available to
// [Open]:
//
//	import _ "github.com/hupe1980/diskidx/index/bptree"
//
//	idx, err := index.Open(index.BPlusTree, index.Config{Path: "age.idx", Codec: codec})
//
// Every engine persists its structure directly as fixed-layout records, so an
// index reopened from the same files answers queries without a rebuild.
package index
