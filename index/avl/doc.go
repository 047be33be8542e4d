// Package avl implements a disk-resident AVL tree index.
//
// The file starts with a 4-byte root slot followed by an array of fixed-size
// node records:
//
//	key (codec width) | int32 position | int32 left | int32 right | int32 height
//
// All integers are little-endian and -1 marks an absent child or an empty
// tree. Slot i lives at byte offset 4 + i*(width+16).
//
// Keys are unique: inserting an existing key fails with index.ErrDuplicateKey
// and leaves the file untouched. Every successful insert appends one node
// record. Deleted slots are not reclaimed unless Options.ReuseSlots is set,
// in which case they are tracked in a roaring bitmap stored next to the index
// file (<path>.free) and handed out lowest first.
package avl
