// Package conv provides checked integer conversions.
//
// On-disk index records use fixed-width fields (int32 slot indexes and
// positions in the AVL and hash files, int64 in the B+Tree file). Values
// crossing that boundary go through these helpers so an out-of-range
// position is reported instead of silently truncated.
package conv
