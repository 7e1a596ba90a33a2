// SPDX-License-Identifier: Apache-2.0

package small

// addrTree is a minimal red-black tree keyed by a *mslab's address,
// standing in for the macro-generated rb.h template the original mempool.c
// uses. It supports the three operations Mempool actually needs: Insert,
// Remove, and Min — with Min answerable in O(1) via a cached pointer, since
// per spec.md §4.4 that leftmost node is read on every Mempool.Alloc.
//
// Any balanced-tree or skiplist with O(log n) min-lookup satisfies the
// contract (spec.md §9 "Design Notes"); a red-black tree is used here
// because it is what the original keys its hot-slab set with.
type addrTree struct {
	root *mslab
	min  *mslab
}

const (
	red   = false
	black = true
)

func (t *addrTree) Min() *mslab { return t.min }

func (t *addrTree) Insert(n *mslab) {
	n.left, n.right, n.parent = nil, nil, nil
	n.color = red

	if t.root == nil {
		t.root = n
		n.color = black
		t.min = n
		return
	}

	cur := t.root
	for {
		if n.addr < cur.addr {
			if cur.left == nil {
				cur.left = n
				n.parent = cur
				break
			}
			cur = cur.left
		} else {
			if cur.right == nil {
				cur.right = n
				n.parent = cur
				break
			}
			cur = cur.right
		}
	}
	if t.min == nil || n.addr < t.min.addr {
		t.min = n
	}
	t.insertFixup(n)
}

func (t *addrTree) Remove(n *mslab) {
	if t.min == n {
		t.min = t.successor(n)
	}
	t.remove(n)
	n.left, n.right, n.parent = nil, nil, nil
}

// Next returns the in-order successor of n, matching mslab_tree_next's use
// in the original to re-seat first_hot_slab when it is removed.
func (t *addrTree) Next(n *mslab) *mslab {
	return t.successor(n)
}

func (t *addrTree) successor(n *mslab) *mslab {
	if n.right != nil {
		m := n.right
		for m.left != nil {
			m = m.left
		}
		return m
	}
	p := n.parent
	for p != nil && n == p.right {
		n = p
		p = p.parent
	}
	return p
}

func (t *addrTree) rotateLeft(x *mslab) {
	y := x.right
	x.right = y.left
	if y.left != nil {
		y.left.parent = x
	}
	y.parent = x.parent
	if x.parent == nil {
		t.root = y
	} else if x == x.parent.left {
		x.parent.left = y
	} else {
		x.parent.right = y
	}
	y.left = x
	x.parent = y
}

func (t *addrTree) rotateRight(x *mslab) {
	y := x.left
	x.left = y.right
	if y.right != nil {
		y.right.parent = x
	}
	y.parent = x.parent
	if x.parent == nil {
		t.root = y
	} else if x == x.parent.right {
		x.parent.right = y
	} else {
		x.parent.left = y
	}
	y.right = x
	x.parent = y
}

func (t *addrTree) insertFixup(z *mslab) {
	for z.parent != nil && z.parent.color == red {
		gp := z.parent.parent
		if gp == nil {
			break
		}
		if z.parent == gp.left {
			y := gp.right
			if y != nil && y.color == red {
				z.parent.color = black
				y.color = black
				gp.color = red
				z = gp
				continue
			}
			if z == z.parent.right {
				z = z.parent
				t.rotateLeft(z)
			}
			z.parent.color = black
			gp.color = red
			t.rotateRight(gp)
			continue
		}
		y := gp.left
		if y != nil && y.color == red {
			z.parent.color = black
			y.color = black
			gp.color = red
			z = gp
			continue
		}
		if z == z.parent.left {
			z = z.parent
			t.rotateRight(z)
		}
		z.parent.color = black
		gp.color = red
		t.rotateLeft(gp)
	}
	t.root.color = black
}

func (t *addrTree) transplant(u, v *mslab) {
	switch {
	case u.parent == nil:
		t.root = v
	case u == u.parent.left:
		u.parent.left = v
	default:
		u.parent.right = v
	}
	if v != nil {
		v.parent = u.parent
	}
}

func (t *addrTree) remove(z *mslab) {
	y := z
	yOrigColor := y.color
	var x, xParent *mslab

	switch {
	case z.left == nil:
		x = z.right
		xParent = z.parent
		t.transplant(z, z.right)
	case z.right == nil:
		x = z.left
		xParent = z.parent
		t.transplant(z, z.left)
	default:
		y = z.right
		for y.left != nil {
			y = y.left
		}
		yOrigColor = y.color
		x = y.right
		if y.parent == z {
			xParent = y
		} else {
			xParent = y.parent
			t.transplant(y, y.right)
			y.right = z.right
			y.right.parent = y
		}
		t.transplant(z, y)
		y.left = z.left
		y.left.parent = y
		y.color = z.color
	}
	if yOrigColor == black {
		t.removeFixup(x, xParent)
	}
}

func (t *addrTree) removeFixup(x, parent *mslab) {
	for x != t.root && isBlack(x) {
		if parent == nil {
			break
		}
		if x == parent.left {
			w := parent.right
			if w != nil && w.color == red {
				w.color = black
				parent.color = red
				t.rotateLeft(parent)
				w = parent.right
			}
			if w == nil {
				x = parent
				parent = x.parent
				continue
			}
			if isBlack(w.left) && isBlack(w.right) {
				w.color = red
				x = parent
				parent = x.parent
				continue
			}
			if isBlack(w.right) {
				if w.left != nil {
					w.left.color = black
				}
				w.color = red
				t.rotateRight(w)
				w = parent.right
			}
			w.color = parent.color
			parent.color = black
			if w.right != nil {
				w.right.color = black
			}
			t.rotateLeft(parent)
			x = t.root
			parent = nil
		} else {
			w := parent.left
			if w != nil && w.color == red {
				w.color = black
				parent.color = red
				t.rotateRight(parent)
				w = parent.left
			}
			if w == nil {
				x = parent
				parent = x.parent
				continue
			}
			if isBlack(w.right) && isBlack(w.left) {
				w.color = red
				x = parent
				parent = x.parent
				continue
			}
			if isBlack(w.left) {
				if w.right != nil {
					w.right.color = black
				}
				w.color = red
				t.rotateLeft(w)
				w = parent.left
			}
			w.color = parent.color
			parent.color = black
			if w.left != nil {
				w.left.color = black
			}
			t.rotateRight(parent)
			x = t.root
			parent = nil
		}
	}
	if x != nil {
		x.color = black
	}
}

func isBlack(n *mslab) bool {
	return n == nil || n.color == black
}
