package bptree

import (
	"fmt"
	"io"
	"strings"

	"github.com/hupe1980/diskidx/index"
)

// Stats describes the shape of a tree.
type Stats struct {
	Order     int
	Height    int
	Entries   int
	Leaves    int
	Internal  int
	NodeCount int // records in the file, including dead ones
	FileSize  int64
}

// Stats walks the tree and returns its shape.
func (t *Tree) Stats() (Stats, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return Stats{}, index.ErrClosed
	}

	s := Stats{Order: t.order, Entries: t.count, NodeCount: int(t.nodeCount), FileSize: t.file.Size()}
	if t.root == none {
		return s, nil
	}

	var visit func(off int64, depth int) error
	visit = func(off int64, depth int) error {
		n, err := t.readNode(off)
		if err != nil {
			return err
		}
		s.Height = max(s.Height, depth)
		if n.leaf {
			s.Leaves++
			return nil
		}
		s.Internal++
		for _, c := range n.children {
			if err := visit(c, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := visit(t.root, 1); err != nil {
		return Stats{}, err
	}
	return s, nil
}

// Walk calls fn for every entry in leaf-chain order until fn returns false.
func (t *Tree) Walk(fn func(key any, pos index.Position) bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return index.ErrClosed
	}
	if t.root == none {
		return nil
	}
	leaf, err := t.leftmostLeaf()
	if err != nil {
		return err
	}

	return t.scan(leaf, func(n *node) bool {
		for i, k := range n.keys {
			if !fn(t.codec.Decode(k), n.pos[i]) {
				return false
			}
		}
		return true
	})
}

// Verify checks occupancy, key order and bounds, parent pointers, uniform
// leaf depth and that the leaf chain visits every leaf in order.
func (t *Tree) Verify() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return index.ErrClosed
	}
	if t.root == none {
		if t.count != 0 {
			return fmt.Errorf("bptree: empty tree with count %d", t.count)
		}
		return nil
	}

	var (
		leaves    []int64
		leafDepth = -1
		entries   int
	)

	var check func(off, parent int64, lo, hi []byte, depth int) error
	check = func(off, parent int64, lo, hi []byte, depth int) error {
		n, err := t.readNode(off)
		if err != nil {
			return err
		}
		if n.parent != parent {
			return fmt.Errorf("bptree: node %d parent %d, want %d", off, n.parent, parent)
		}
		if off != t.root && len(n.keys) < t.minKeys {
			return fmt.Errorf("bptree: node %d holds %d keys, minimum %d", off, len(n.keys), t.minKeys)
		}
		for i, k := range n.keys {
			if lo != nil && t.codec.CompareEncoded(k, lo) < 0 {
				return fmt.Errorf("bptree: node %d key %s below bound %s", off, t.codec.Format(k), t.codec.Format(lo))
			}
			if hi != nil && t.codec.CompareEncoded(k, hi) > 0 {
				return fmt.Errorf("bptree: node %d key %s above bound %s", off, t.codec.Format(k), t.codec.Format(hi))
			}
			if i == 0 {
				continue
			}
			c := t.codec.CompareEncoded(n.keys[i-1], k)
			if c > 0 || (n.leaf && c == 0 && n.pos[i-1] > n.pos[i]) {
				return fmt.Errorf("bptree: node %d keys out of order at %d", off, i)
			}
		}

		if n.leaf {
			if leafDepth == -1 {
				leafDepth = depth
			} else if depth != leafDepth {
				return fmt.Errorf("bptree: leaf %d at depth %d, others at %d", off, depth, leafDepth)
			}
			leaves = append(leaves, off)
			entries += len(n.keys)
			return nil
		}

		if len(n.keys) == 0 {
			return fmt.Errorf("bptree: internal node %d without keys", off)
		}
		for i, c := range n.children {
			clo, chi := lo, hi
			if i > 0 {
				clo = n.keys[i-1]
			}
			if i < len(n.keys) {
				chi = n.keys[i]
			}
			if err := check(c, off, clo, chi, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	if err := check(t.root, none, nil, nil, 1); err != nil {
		return err
	}
	if entries != t.count {
		return fmt.Errorf("bptree: %d entries, count %d", entries, t.count)
	}

	leaf, err := t.leftmostLeaf()
	if err != nil {
		return err
	}
	var chain []int64
	var prev []byte
	var orderErr error
	if err := t.scan(leaf, func(n *node) bool {
		chain = append(chain, n.off)
		for _, k := range n.keys {
			if prev != nil && t.codec.CompareEncoded(prev, k) > 0 {
				orderErr = fmt.Errorf("bptree: leaf chain out of order at node %d", n.off)
				return false
			}
			prev = k
		}
		return true
	}); err != nil {
		return err
	}
	if orderErr != nil {
		return orderErr
	}
	if len(chain) != len(leaves) {
		return fmt.Errorf("bptree: leaf chain has %d leaves, tree has %d", len(chain), len(leaves))
	}
	for i := range chain {
		if chain[i] != leaves[i] {
			return fmt.Errorf("bptree: leaf chain position %d is node %d, want %d", i, chain[i], leaves[i])
		}
	}
	return nil
}

// Dump writes every node level by level followed by the leaf chain.
func (t *Tree) Dump(w io.Writer) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return index.ErrClosed
	}
	if _, err := fmt.Fprintf(w, "BTREE %s order=%d root=%d nodes=%d entries=%d\n", t.path, t.order, t.root, t.nodeCount, t.count); err != nil {
		return err
	}
	if t.root == none {
		return nil
	}

	var dump func(off int64, depth int) error
	dump = func(off int64, depth int) error {
		n, err := t.readNode(off)
		if err != nil {
			return err
		}
		keys := make([]string, len(n.keys))
		for i, k := range n.keys {
			keys[i] = t.codec.Format(k)
			if n.leaf {
				keys[i] += fmt.Sprintf(":%d", n.pos[i])
			}
		}
		kind := "internal"
		if n.leaf {
			kind = "leaf"
		}
		if _, err := fmt.Fprintf(w, "%s%s@%d [%s]\n", strings.Repeat("  ", depth), kind, off, strings.Join(keys, " ")); err != nil {
			return err
		}
		for _, c := range n.children {
			if err := dump(c, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := dump(t.root, 0); err != nil {
		return err
	}

	leaf, err := t.leftmostLeaf()
	if err != nil {
		return err
	}
	var chain []string
	if err := t.scan(leaf, func(n *node) bool {
		chain = append(chain, fmt.Sprint(n.off))
		return true
	}); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "leaves: %s\n", strings.Join(chain, " -> "))
	return err
}
