// Package bptree implements a disk-resident B+Tree index with linked leaves.
//
// # File layout
//
// The file starts with a 16-byte header:
//
//	int64 root | int32 order | int32 node_count
//
// followed by node records, each addressed by its byte offset. Leaf and
// internal records have the same size so either kind fits any slot:
//
//	leaf:     u8 1 | int64 parent | int32 n | int64 next | (order-1) x (key, int64 pos)
//	internal: u8 0 | int64 parent | int32 n | order x int64 child | (order-1) x key
//
// Unused slots hold a zero key and a -1 pointer. All integers are
// little-endian and -1 marks an absent node.
//
// # Semantics
//
// Leaves hold up to order-1 entries sorted by (key, position) and are chained
// in ascending key order. Duplicate keys are allowed. For every internal node,
// the keys below children[i] lie in [keys[i-1], keys[i]]; insertion routes a
// key to the first separator strictly greater than it, while lookups start at
// the first separator not less than the key and follow the leaf chain, so
// duplicates spread over several leaves are all found.
//
// After every call, each node except the root holds at least (order-1)/2
// keys. Deletion restores this by borrowing from the right sibling, then the
// left, and merges otherwise. An internal root left with a single child is
// replaced by that child. Merged nodes stay in the file as dead records.
package bptree
