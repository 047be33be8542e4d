package bptree

import (
	"slices"

	"github.com/hupe1980/diskidx/index"
)

// Delete removes every entry equal to key and reports whether any existed.
// Deleting an absent key writes nothing.
func (t *Tree) Delete(key any) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return false, index.ErrClosed
	}
	k, err := t.codec.Encode(key)
	if err != nil {
		return false, err
	}

	var victims []int64
	if err := t.collect(k, k, func(_ []byte, pos int64) {
		victims = append(victims, pos)
	}); err != nil {
		return false, err
	}
	if len(victims) == 0 {
		return false, nil
	}

	for _, pos := range victims {
		found, err := t.deleteEntry(t.root, k, pos)
		if err != nil {
			return false, err
		}
		if !found {
			return false, index.Corruptf("%s: entry (%s, %d) seen in the leaf chain but not reachable from the root", t.path, t.codec.Format(k), pos)
		}
		t.count--
		if err := t.shrinkRoot(); err != nil {
			return false, err
		}
	}
	return true, t.file.Flush()
}

// DeleteEntry removes a single (key, pos) entry and reports whether it existed.
func (t *Tree) DeleteEntry(key any, pos index.Position) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return false, index.ErrClosed
	}
	k, err := t.codec.Encode(key)
	if err != nil {
		return false, err
	}
	if t.root == none {
		return false, nil
	}

	found, err := t.deleteEntry(t.root, k, pos)
	if err != nil || !found {
		return false, err
	}
	t.count--
	if err := t.shrinkRoot(); err != nil {
		return false, err
	}
	return true, t.file.Flush()
}

// deleteEntry removes (key, pos) from the subtree at off. Only nodes on the
// path to the removed entry are written. The caller repairs underflow of the
// node at off itself.
func (t *Tree) deleteEntry(off int64, key []byte, pos int64) (bool, error) {
	n, err := t.readNode(off)
	if err != nil {
		return false, err
	}

	if n.leaf {
		for i := t.lowerBound(n.keys, key); i < len(n.keys); i++ {
			if t.codec.CompareEncoded(n.keys[i], key) != 0 {
				break
			}
			if n.pos[i] == pos {
				n.removeEntry(i)
				return true, t.writeNode(n)
			}
		}
		return false, nil
	}

	lo, hi := t.lowerBound(n.keys, key), t.upperBound(n.keys, key)
	for i := lo; i <= hi; i++ {
		found, err := t.deleteEntry(n.children[i], key, pos)
		if err != nil {
			return false, err
		}
		if found {
			if err := t.rebalanceChild(n, i); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// rebalanceChild restores the occupancy of parent.children[i] and writes parent.
func (t *Tree) rebalanceChild(parent *node, i int) error {
	child, err := t.readNode(parent.children[i])
	if err != nil {
		return err
	}
	if len(child.keys) >= t.minKeys {
		return t.writeNode(parent)
	}

	var left, right *node
	if i+1 < len(parent.children) {
		if right, err = t.readNode(parent.children[i+1]); err != nil {
			return err
		}
	}
	if i > 0 {
		if left, err = t.readNode(parent.children[i-1]); err != nil {
			return err
		}
	}

	switch {
	case right != nil && len(right.keys) > t.minKeys:
		err = t.borrowRight(parent, i, child, right)
	case left != nil && len(left.keys) > t.minKeys:
		err = t.borrowLeft(parent, i, child, left)
	case right != nil:
		err = t.merge(parent, i, child, right)
	case left != nil:
		err = t.merge(parent, i-1, left, child)
	default:
		return index.Corruptf("%s: node %d has a single child", t.path, parent.off)
	}
	if err != nil {
		return err
	}
	return t.writeNode(parent)
}

// borrowRight moves the first key of right into child.
func (t *Tree) borrowRight(parent *node, i int, child, right *node) error {
	if child.leaf {
		t.placeEntry(child, right.keys[0], right.pos[0])
		right.removeEntry(0)
		parent.keys[i] = right.keys[0]
	} else {
		moved := right.children[0]
		child.keys = append(child.keys, parent.keys[i])
		child.children = append(child.children, moved)
		parent.keys[i] = right.keys[0]
		right.keys = slices.Delete(right.keys, 0, 1)
		right.children = slices.Delete(right.children, 0, 1)
		if err := t.setParent(moved, child.off); err != nil {
			return err
		}
	}
	if err := t.writeNode(child); err != nil {
		return err
	}
	return t.writeNode(right)
}

// borrowLeft moves the last key of left into child.
func (t *Tree) borrowLeft(parent *node, i int, child, left *node) error {
	last := len(left.keys) - 1
	if child.leaf {
		t.placeEntry(child, left.keys[last], left.pos[last])
		left.removeEntry(last)
		parent.keys[i-1] = child.keys[0]
	} else {
		moved := left.children[last+1]
		child.keys = slices.Insert(child.keys, 0, parent.keys[i-1])
		child.children = slices.Insert(child.children, 0, moved)
		parent.keys[i-1] = left.keys[last]
		left.keys = left.keys[:last]
		left.children = left.children[:last+1]
		if err := t.setParent(moved, child.off); err != nil {
			return err
		}
	}
	if err := t.writeNode(child); err != nil {
		return err
	}
	return t.writeNode(left)
}

// merge folds right (parent.children[i+1]) into left (parent.children[i])
// and drops separator i from parent. right becomes a dead record.
func (t *Tree) merge(parent *node, i int, left, right *node) error {
	if left.leaf {
		for j := range right.keys {
			t.placeEntry(left, right.keys[j], right.pos[j])
		}
		left.next = right.next
	} else {
		left.keys = append(left.keys, parent.keys[i])
		left.keys = append(left.keys, right.keys...)
		left.children = append(left.children, right.children...)
		for _, c := range right.children {
			if err := t.setParent(c, left.off); err != nil {
				return err
			}
		}
	}
	parent.keys = slices.Delete(parent.keys, i, i+1)
	parent.children = slices.Delete(parent.children, i+1, i+2)
	return t.writeNode(left)
}

// shrinkRoot replaces an internal root without keys by its only child.
// An empty leaf root stays in place.
func (t *Tree) shrinkRoot() error {
	root, err := t.readNode(t.root)
	if err != nil {
		return err
	}
	if root.leaf || len(root.keys) > 0 {
		return nil
	}
	child := root.children[0]
	if err := t.setParent(child, none); err != nil {
		return err
	}
	return t.setRoot(child)
}

// placeEntry inserts an entry moved from a sibling at its (key, pos) rank.
// Equal keys on different leaves are not ordered by position.
func (t *Tree) placeEntry(n *node, key []byte, pos int64) {
	n.insertEntry(t.entryIndex(n, key, pos), key, pos)
}
