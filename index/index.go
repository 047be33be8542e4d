package index

import (
	"fmt"
	"io"
	"strings"
)

// Position identifies a record in the external heap file.
type Position = int64

// Entry is one (key, position) pair returned by range queries.
// Key holds the decoded key value (int32, float32 or string).
type Entry struct {
	Key      any
	Position Position
}

// Index is a disk-backed secondary index.
//
// Implementations serialize all calls with one mutex per instance. A search
// that finds nothing returns an empty slice and a nil error; deleting an
// absent key returns false and a nil error.
type Index interface {
	// Insert adds key -> pos.
	Insert(key any, pos Position) error
	// Search returns the positions stored under key.
	Search(key any) ([]Position, error)
	// RangeSearch returns all entries with low <= key <= high in ascending key order.
	RangeSearch(low, high any) ([]Entry, error)
	// Delete removes key and reports whether anything was removed.
	Delete(key any) (bool, error)
	// Len returns the number of stored entries.
	Len() int
	// Kind returns the engine kind.
	Kind() Kind
	// Files returns the paths of the files owned by the index.
	Files() []string
	// Sync flushes file contents to stable storage.
	Sync() error
	// Close releases the underlying files. Further calls return ErrClosed.
	Close() error
}

// Dumper is implemented by engines that can print their on-disk structure.
type Dumper interface {
	Dump(w io.Writer) error
}

// Verifier is implemented by engines that can check their structural invariants.
type Verifier interface {
	Verify() error
}

// Kind identifies an index engine.
type Kind uint8

const (
	// AVL is the balanced binary search tree engine.
	AVL Kind = iota + 1
	// BPlusTree is the B+Tree engine.
	BPlusTree
	// ExtendibleHash is the extendible hashing engine.
	ExtendibleHash
)

// String returns the registry name of the kind.
func (k Kind) String() string {
	switch k {
	case AVL:
		return "AVL"
	case BPlusTree:
		return "BTREE"
	case ExtendibleHash:
		return "HASH"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// ParseKind maps a registry name (AVL, BTREE, HASH; case-insensitive) to a Kind.
func ParseKind(name string) (Kind, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "AVL":
		return AVL, nil
	case "BTREE", "BPLUSTREE", "B+TREE":
		return BPlusTree, nil
	case "HASH", "EXTENDIBLEHASH":
		return ExtendibleHash, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
}

// SupportsRange reports whether the engine answers RangeSearch.
func (k Kind) SupportsRange() bool {
	return k == AVL || k == BPlusTree
}
