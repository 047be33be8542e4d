package avl

import (
	"encoding/binary"

	"github.com/hupe1980/diskidx/index"
)

const (
	none       int32 = -1
	headerSize       = 4
	nodeFields       = 16
)

type node struct {
	key    []byte
	pos    int32
	left   int32
	right  int32
	height int32
}

func (t *Tree) recordSize() int { return t.codec.Width() + nodeFields }

func (t *Tree) offset(slot int32) int64 {
	return headerSize + int64(slot)*int64(t.recordSize())
}

func (t *Tree) readNode(slot int32) (*node, error) {
	if slot < 0 || slot >= t.slots {
		return nil, index.Corruptf("%s: slot %d outside [0,%d)", t.path, slot, t.slots)
	}
	b, err := t.file.ReadAt(t.offset(slot), t.recordSize())
	if err != nil {
		return nil, err
	}

	w := t.codec.Width()
	return &node{
		key:    b[:w:w],
		pos:    int32(binary.LittleEndian.Uint32(b[w:])),
		left:   int32(binary.LittleEndian.Uint32(b[w+4:])),
		right:  int32(binary.LittleEndian.Uint32(b[w+8:])),
		height: int32(binary.LittleEndian.Uint32(b[w+12:])),
	}, nil
}

func (t *Tree) encodeNode(n *node) []byte {
	w := t.codec.Width()
	b := make([]byte, t.recordSize())
	copy(b, n.key)
	binary.LittleEndian.PutUint32(b[w:], uint32(n.pos))
	binary.LittleEndian.PutUint32(b[w+4:], uint32(n.left))
	binary.LittleEndian.PutUint32(b[w+8:], uint32(n.right))
	binary.LittleEndian.PutUint32(b[w+12:], uint32(n.height))
	return b
}

func (t *Tree) writeNode(slot int32, n *node) error {
	return t.file.WriteAt(t.offset(slot), t.encodeNode(n))
}

// allocate stores n in a free slot (when slot reuse is enabled) or a new one.
func (t *Tree) allocate(n *node) (int32, error) {
	if slot, ok := t.free.take(); ok {
		if err := t.writeNode(slot, n); err != nil {
			return none, err
		}
		return slot, t.free.persist()
	}

	if _, err := t.file.Append(t.encodeNode(n)); err != nil {
		return none, err
	}
	slot := t.slots
	t.slots++
	return slot, nil
}

func (t *Tree) readRoot() (int32, error) {
	b, err := t.file.ReadAt(0, headerSize)
	if err != nil {
		return none, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (t *Tree) writeRoot(root int32) error {
	if root == t.root {
		return nil
	}
	return t.storeRoot(root)
}

func (t *Tree) storeRoot(root int32) error {
	var b [headerSize]byte
	binary.LittleEndian.PutUint32(b[:], uint32(root))
	if err := t.file.WriteAt(0, b[:]); err != nil {
		return err
	}
	t.root = root
	return nil
}
