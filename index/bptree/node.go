package bptree

import (
	"encoding/binary"
	"slices"
	"sort"

	"github.com/hupe1980/diskidx/index"
)

const (
	none       int64 = -1
	headerSize       = 16
	nodeHeader       = 1 + 8 + 4
)

// node is the decoded form of one record. While an insert is in flight a
// node may temporarily hold one key more than fits on disk.
type node struct {
	off      int64
	leaf     bool
	parent   int64
	next     int64
	keys     [][]byte
	pos      []int64 // leaf only, parallel to keys
	children []int64 // internal only, len(keys)+1
}

// recordSize is identical for leaves and internal nodes:
// leaf 13 + 8 + (order-1)*(w+8) == internal 13 + 8*order + (order-1)*w.
func recordSize(order, width int) int {
	return nodeHeader + 8*order + (order-1)*width
}

func (t *Tree) readNode(off int64) (*node, error) {
	if off < headerSize || (off-headerSize)%int64(t.recSize) != 0 || off >= t.file.Size() {
		return nil, index.Corruptf("%s: invalid node offset %d", t.path, off)
	}
	b, err := t.file.ReadAt(off, t.recSize)
	if err != nil {
		return nil, err
	}

	w := t.codec.Width()
	n := &node{off: off, next: none}
	switch b[0] {
	case 0:
	case 1:
		n.leaf = true
	default:
		return nil, index.Corruptf("%s: node %d has leaf flag %d", t.path, off, b[0])
	}
	n.parent = int64(binary.LittleEndian.Uint64(b[1:]))
	count := int(int32(binary.LittleEndian.Uint32(b[9:])))
	if count < 0 || count > t.order-1 {
		return nil, index.Corruptf("%s: node %d holds %d keys, order %d", t.path, off, count, t.order)
	}

	p := nodeHeader
	if n.leaf {
		n.next = int64(binary.LittleEndian.Uint64(b[p:]))
		p += 8
		n.keys = make([][]byte, count)
		n.pos = make([]int64, count)
		for i := range count {
			n.keys[i] = b[p : p+w : p+w]
			n.pos[i] = int64(binary.LittleEndian.Uint64(b[p+w:]))
			p += w + 8
		}
		return n, nil
	}

	n.children = make([]int64, count+1)
	for i := range n.children {
		n.children[i] = int64(binary.LittleEndian.Uint64(b[p+8*i:]))
	}
	p += 8 * t.order
	n.keys = make([][]byte, count)
	for i := range count {
		n.keys[i] = b[p : p+w : p+w]
		p += w
	}
	return n, nil
}

func (t *Tree) encodeNode(n *node) []byte {
	w := t.codec.Width()
	b := make([]byte, t.recSize)
	if n.leaf {
		b[0] = 1
	}
	binary.LittleEndian.PutUint64(b[1:], uint64(n.parent))
	binary.LittleEndian.PutUint32(b[9:], uint32(int32(len(n.keys))))

	p := nodeHeader
	if n.leaf {
		binary.LittleEndian.PutUint64(b[p:], uint64(n.next))
		p += 8
		for i := range t.order - 1 {
			pos := none
			if i < len(n.keys) {
				copy(b[p:p+w], n.keys[i])
				pos = n.pos[i]
			}
			binary.LittleEndian.PutUint64(b[p+w:], uint64(pos))
			p += w + 8
		}
		return b
	}

	for i := range t.order {
		child := none
		if i < len(n.children) {
			child = n.children[i]
		}
		binary.LittleEndian.PutUint64(b[p+8*i:], uint64(child))
	}
	p += 8 * t.order
	for i := range len(n.keys) {
		copy(b[p+i*w:], n.keys[i])
	}
	return b
}

func (t *Tree) writeNode(n *node) error {
	return t.file.WriteAt(n.off, t.encodeNode(n))
}

// appendNode stores n in a new record and sets n.off.
func (t *Tree) appendNode(n *node) error {
	off, err := t.file.Append(t.encodeNode(n))
	if err != nil {
		return err
	}
	n.off = off
	t.nodeCount++
	return t.writeHeader()
}

// setParent rewrites the parent pointer of the node at off.
func (t *Tree) setParent(off, parent int64) error {
	n, err := t.readNode(off)
	if err != nil {
		return err
	}
	if n.parent == parent {
		return nil
	}
	n.parent = parent
	return t.writeNode(n)
}

// lowerBound returns the first i with keys[i] >= key.
func (t *Tree) lowerBound(keys [][]byte, key []byte) int {
	return sort.Search(len(keys), func(i int) bool {
		return t.codec.CompareEncoded(keys[i], key) >= 0
	})
}

// upperBound returns the first i with keys[i] > key.
func (t *Tree) upperBound(keys [][]byte, key []byte) int {
	return sort.Search(len(keys), func(i int) bool {
		return t.codec.CompareEncoded(keys[i], key) > 0
	})
}

// entryIndex returns where (key, pos) belongs in a leaf sorted by (key, pos).
func (t *Tree) entryIndex(n *node, key []byte, pos int64) int {
	return sort.Search(len(n.keys), func(i int) bool {
		c := t.codec.CompareEncoded(n.keys[i], key)
		return c > 0 || (c == 0 && n.pos[i] > pos)
	})
}

func (n *node) insertEntry(i int, key []byte, pos int64) {
	n.keys = slices.Insert(n.keys, i, key)
	n.pos = slices.Insert(n.pos, i, pos)
}

func (n *node) removeEntry(i int) {
	n.keys = slices.Delete(n.keys, i, i+1)
	n.pos = slices.Delete(n.pos, i, i+1)
}
