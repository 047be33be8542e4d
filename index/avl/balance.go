package avl

func (t *Tree) heightOf(slot int32) (int32, error) {
	if slot == none {
		return 0, nil
	}
	n, err := t.readNode(slot)
	if err != nil {
		return 0, err
	}
	return n.height, nil
}

// fixHeight recomputes n.height from its children and returns the balance factor.
func (t *Tree) fixHeight(n *node) (int32, error) {
	hl, err := t.heightOf(n.left)
	if err != nil {
		return 0, err
	}
	hr, err := t.heightOf(n.right)
	if err != nil {
		return 0, err
	}
	n.height = 1 + max(hl, hr)
	return hl - hr, nil
}

func (t *Tree) balanceOf(slot int32) (int32, error) {
	n, err := t.readNode(slot)
	if err != nil {
		return 0, err
	}
	hl, err := t.heightOf(n.left)
	if err != nil {
		return 0, err
	}
	hr, err := t.heightOf(n.right)
	if err != nil {
		return 0, err
	}
	return hl - hr, nil
}

// rebalance writes n back to slot, rotating when its balance factor left
// [-1, 1]. It returns the slot now at the top of this subtree.
func (t *Tree) rebalance(slot int32, n *node) (int32, error) {
	bf, err := t.fixHeight(n)
	if err != nil {
		return none, err
	}

	switch {
	case bf > 1:
		lbf, err := t.balanceOf(n.left)
		if err != nil {
			return none, err
		}
		if lbf < 0 { // LR
			left, err := t.readNode(n.left)
			if err != nil {
				return none, err
			}
			if n.left, err = t.rotateLeft(n.left, left); err != nil {
				return none, err
			}
		}
		return t.rotateRight(slot, n) // LL
	case bf < -1:
		rbf, err := t.balanceOf(n.right)
		if err != nil {
			return none, err
		}
		if rbf > 0 { // RL
			right, err := t.readNode(n.right)
			if err != nil {
				return none, err
			}
			if n.right, err = t.rotateRight(n.right, right); err != nil {
				return none, err
			}
		}
		return t.rotateLeft(slot, n) // RR
	}

	return slot, t.writeNode(slot, n)
}

//	    n            l
//	   / \          / \
//	  l   c   ->   a   n
//	 / \              / \
//	a   b            b   c
func (t *Tree) rotateRight(slot int32, n *node) (int32, error) {
	ls := n.left
	l, err := t.readNode(ls)
	if err != nil {
		return none, err
	}

	n.left = l.right
	if _, err := t.fixHeight(n); err != nil {
		return none, err
	}
	if err := t.writeNode(slot, n); err != nil {
		return none, err
	}

	l.right = slot
	if _, err := t.fixHeight(l); err != nil {
		return none, err
	}
	return ls, t.writeNode(ls, l)
}

//	  n                r
//	 / \              / \
//	a   r     ->     n   c
//	   / \          / \
//	  b   c        a   b
func (t *Tree) rotateLeft(slot int32, n *node) (int32, error) {
	rs := n.right
	r, err := t.readNode(rs)
	if err != nil {
		return none, err
	}

	n.right = r.left
	if _, err := t.fixHeight(n); err != nil {
		return none, err
	}
	if err := t.writeNode(slot, n); err != nil {
		return none, err
	}

	r.left = slot
	if _, err := t.fixHeight(r); err != nil {
		return none, err
	}
	return rs, t.writeNode(rs, r)
}
