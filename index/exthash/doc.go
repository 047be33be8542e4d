// Package exthash implements a disk-resident extendible hash index.
//
// An index lives in a directory with two files:
//
//	directory.dat  2^global_depth x uint64 bucket offsets
//	buckets.dat    fixed-size bucket blocks
//
// Every bucket block is
//
//	int32 count | int32 overflow | int32 local_depth | BlockFactor x (key, int32 pos)
//
// with empty slots holding a zero key and position -1. All integers are
// little-endian.
//
// Keys are hashed with SHA-256 over their encoded form and the directory is
// indexed by the low global_depth bits of the digest. A new index starts at
// global depth 2 with four buckets. A full bucket splits on the next hash
// bit, doubling the directory when its local depth passes the global depth.
// Once a bucket reaches MaxDepth it no longer splits and further records go
// to a chain of overflow buckets of the same depth.
//
// Duplicate keys are allowed; Search returns the first match and Delete
// removes all of them. Buckets never merge and the directory never shrinks.
// Hashing destroys key order, so RangeSearch fails with index.ErrUnsupported.
package exthash
