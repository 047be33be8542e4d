package avl

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/diskidx/index"
)

var errStop = errors.New("stop")

// walk visits the subtree at slot in order. It fails on cycles.
func (t *Tree) walk(slot int32, fn func(n *node) bool) error {
	seen := roaring.New()
	var visit func(slot int32) error
	visit = func(slot int32) error {
		if slot == none {
			return nil
		}
		if !seen.CheckedAdd(uint32(slot)) {
			return index.Corruptf("%s: slot %d reachable twice", t.path, slot)
		}
		n, err := t.readNode(slot)
		if err != nil {
			return err
		}
		if err := visit(n.left); err != nil {
			return err
		}
		if !fn(n) {
			return errStop
		}
		return visit(n.right)
	}

	if err := visit(slot); err != nil && !errors.Is(err, errStop) {
		return err
	}
	return nil
}

// Walk calls fn for every entry in ascending key order until fn returns false.
func (t *Tree) Walk(fn func(key any, pos index.Position) bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return index.ErrClosed
	}
	return t.walk(t.root, func(n *node) bool {
		return fn(t.codec.Decode(n.key), index.Position(n.pos))
	})
}

// Height returns the height of the tree (0 when empty).
func (t *Tree) Height() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0, index.ErrClosed
	}
	h, err := t.heightOf(t.root)
	return int(h), err
}

// Verify checks stored heights, balance factors, key order and slot
// accounting against the on-disk tree.
func (t *Tree) Verify() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return index.ErrClosed
	}

	seen := roaring.New()
	var prev []byte
	var check func(slot int32) (int32, error)
	check = func(slot int32) (int32, error) {
		if slot == none {
			return 0, nil
		}
		if !seen.CheckedAdd(uint32(slot)) {
			return 0, fmt.Errorf("avl: slot %d reachable twice", slot)
		}
		if t.free.contains(slot) {
			return 0, fmt.Errorf("avl: slot %d is both live and free", slot)
		}
		n, err := t.readNode(slot)
		if err != nil {
			return 0, err
		}

		hl, err := check(n.left)
		if err != nil {
			return 0, err
		}
		if prev != nil && t.codec.CompareEncoded(prev, n.key) >= 0 {
			return 0, fmt.Errorf("avl: keys out of order at slot %d: %s after %s", slot, t.codec.Format(n.key), t.codec.Format(prev))
		}
		prev = n.key
		hr, err := check(n.right)
		if err != nil {
			return 0, err
		}

		if want := 1 + max(hl, hr); n.height != want {
			return 0, fmt.Errorf("avl: slot %d height %d, want %d", slot, n.height, want)
		}
		if bf := hl - hr; bf < -1 || bf > 1 {
			return 0, fmt.Errorf("avl: slot %d balance factor %d", slot, bf)
		}
		return n.height, nil
	}

	if _, err := check(t.root); err != nil {
		return err
	}
	if got := int(seen.GetCardinality()); got != t.count {
		return fmt.Errorf("avl: %d reachable nodes, count %d", got, t.count)
	}
	if live, free := int(seen.GetCardinality()), t.free.len(); live+free > int(t.slots) {
		return fmt.Errorf("avl: %d live + %d free slots exceed %d records", live, free, t.slots)
	}
	return nil
}

// Dump writes the tree sideways (right subtree on top), one node per line.
func (t *Tree) Dump(w io.Writer) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return index.ErrClosed
	}

	if _, err := fmt.Fprintf(w, "AVL %s root=%d nodes=%d slots=%d\n", t.path, t.root, t.count, t.slots); err != nil {
		return err
	}

	var dump func(slot int32, depth int) error
	dump = func(slot int32, depth int) error {
		if slot == none {
			return nil
		}
		n, err := t.readNode(slot)
		if err != nil {
			return err
		}
		if err := dump(n.right, depth+1); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s%s (pos=%d h=%d slot=%d)\n", strings.Repeat("    ", depth), t.codec.Format(n.key), n.pos, n.height, slot); err != nil {
			return err
		}
		return dump(n.left, depth+1)
	}
	return dump(t.root, 0)
}
