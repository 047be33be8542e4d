package bptree

import (
	"slices"

	"github.com/hupe1980/diskidx/index"
)

// split describes a node that was split: sep is promoted into the parent
// and right is the new right sibling.
type split struct {
	sep   []byte
	right int64
}

// Insert adds key -> pos. Duplicate keys are allowed.
func (t *Tree) Insert(key any, pos index.Position) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return index.ErrClosed
	}
	k, err := t.codec.Encode(key)
	if err != nil {
		return err
	}

	if t.root == none {
		leaf := &node{leaf: true, parent: none, next: none, keys: [][]byte{k}, pos: []int64{pos}}
		if err := t.appendNode(leaf); err != nil {
			return err
		}
		if err := t.setRoot(leaf.off); err != nil {
			return err
		}
		t.count++
		return t.file.Flush()
	}

	s, err := t.insert(t.root, k, pos)
	if err != nil {
		return err
	}
	if s != nil {
		if err := t.growRoot(s); err != nil {
			return err
		}
	}
	t.count++
	return t.file.Flush()
}

func (t *Tree) insert(off int64, key []byte, pos int64) (*split, error) {
	n, err := t.readNode(off)
	if err != nil {
		return nil, err
	}

	if n.leaf {
		n.insertEntry(t.entryIndex(n, key, pos), key, pos)
		if len(n.keys) < t.order {
			return nil, t.writeNode(n)
		}
		return t.splitLeaf(n)
	}

	i := t.upperBound(n.keys, key)
	s, err := t.insert(n.children[i], key, pos)
	if err != nil || s == nil {
		return nil, err
	}

	n.keys = slices.Insert(n.keys, i, s.sep)
	n.children = slices.Insert(n.children, i+1, s.right)
	if len(n.keys) < t.order {
		return nil, t.writeNode(n)
	}
	return t.splitInternal(n)
}

// splitLeaf moves the upper half of an overfull leaf into a new right leaf
// and promotes the right leaf's first key.
func (t *Tree) splitLeaf(n *node) (*split, error) {
	mid := len(n.keys) / 2
	right := &node{
		leaf:   true,
		parent: n.parent,
		next:   n.next,
		keys:   slices.Clone(n.keys[mid:]),
		pos:    slices.Clone(n.pos[mid:]),
	}
	if err := t.appendNode(right); err != nil {
		return nil, err
	}

	n.keys = n.keys[:mid]
	n.pos = n.pos[:mid]
	n.next = right.off
	if err := t.writeNode(n); err != nil {
		return nil, err
	}
	return &split{sep: right.keys[0], right: right.off}, nil
}

// splitInternal promotes the middle key of an overfull internal node and
// moves the keys and children after it into a new right node.
func (t *Tree) splitInternal(n *node) (*split, error) {
	mid := len(n.keys) / 2
	sep := n.keys[mid]
	right := &node{
		parent:   n.parent,
		next:     none,
		keys:     slices.Clone(n.keys[mid+1:]),
		children: slices.Clone(n.children[mid+1:]),
	}
	if err := t.appendNode(right); err != nil {
		return nil, err
	}
	for _, child := range right.children {
		if err := t.setParent(child, right.off); err != nil {
			return nil, err
		}
	}

	n.keys = n.keys[:mid]
	n.children = n.children[:mid+1]
	if err := t.writeNode(n); err != nil {
		return nil, err
	}
	return &split{sep: sep, right: right.off}, nil
}

// growRoot installs a new internal root above a split root.
func (t *Tree) growRoot(s *split) error {
	old := t.root
	root := &node{
		parent:   none,
		next:     none,
		keys:     [][]byte{s.sep},
		children: []int64{old, s.right},
	}
	if err := t.appendNode(root); err != nil {
		return err
	}
	if err := t.setParent(old, root.off); err != nil {
		return err
	}
	if err := t.setParent(s.right, root.off); err != nil {
		return err
	}
	return t.setRoot(root.off)
}
