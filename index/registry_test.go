package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/diskidx/internal/fs"
	"github.com/hupe1980/diskidx/keycodec"
)

// mockIndex implements Index.
type mockIndex struct {
	cfg  Config
	kind Kind
}

func (m *mockIndex) Insert(key any, pos Position) error         { return nil }
func (m *mockIndex) Search(key any) ([]Position, error)         { return nil, nil }
func (m *mockIndex) RangeSearch(low, high any) ([]Entry, error) { return nil, ErrUnsupported }
func (m *mockIndex) Delete(key any) (bool, error)               { return false, nil }
func (m *mockIndex) Len() int                                   { return 0 }
func (m *mockIndex) Kind() Kind                                 { return m.kind }
func (m *mockIndex) Files() []string                            { return []string{m.cfg.Path} }
func (m *mockIndex) Sync() error                                { return nil }
func (m *mockIndex) Close() error                               { return nil }

func TestRegistry(t *testing.T) {
	const mockKind = Kind(200)
	called := false
	Register(mockKind, func(cfg Config) (Index, error) {
		called = true
		return &mockIndex{cfg: cfg, kind: mockKind}, nil
	})

	idx, err := Open(mockKind, Config{Path: "x.idx", Codec: keycodec.MustNew(keycodec.Int, 0)})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, mockKind, idx.Kind())
	assert.Equal(t, []string{"x.idx"}, idx.Files())
	assert.Contains(t, Registered(), mockKind)
}

func TestOpen_Errors(t *testing.T) {
	codec := keycodec.MustNew(keycodec.Int, 0)

	t.Run("unknown kind", func(t *testing.T) {
		_, err := Open(Kind(201), Config{Path: "x", Codec: codec})
		assert.ErrorIs(t, err, ErrUnknownKind)
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := Open(AVL, Config{Codec: codec})
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("nil codec", func(t *testing.T) {
		_, err := Open(AVL, Config{Path: "x"})
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("negative order", func(t *testing.T) {
		_, err := Open(BPlusTree, Config{Path: "x", Codec: codec, Order: -1})
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		kind Kind
	}{
		{"AVL", AVL},
		{"btree", BPlusTree},
		{"B+Tree", BPlusTree},
		{"hash", ExtendibleHash},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := ParseKind(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, k)
		})
	}

	_, err := ParseKind("rtree")
	assert.ErrorIs(t, err, ErrUnknownKind)

	assert.Equal(t, "BTREE", BPlusTree.String())
	assert.Equal(t, "HASH", ExtendibleHash.String())
	assert.True(t, AVL.SupportsRange())
	assert.False(t, ExtendibleHash.SupportsRange())
}

func TestConfig_FileSystem(t *testing.T) {
	assert.Equal(t, fs.Default, Config{}.FileSystem())

	faulty := fs.NewFaultyFS(nil)
	assert.Equal(t, fs.FileSystem(faulty), Config{FS: faulty}.FileSystem())
}
