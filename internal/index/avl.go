package index

// node is an AVL tree node. Each node exclusively owns its subtrees.
type node struct {
	rec    Record
	left   *node
	right  *node
	height int
}

func height(n *node) int {
	if n == nil {
		return 0
	}
	return n.height
}

func (n *node) fix() {
	n.height = 1 + max(height(n.left), height(n.right))
}

func balanceFactor(n *node) int {
	if n == nil {
		return 0
	}
	return height(n.left) - height(n.right)
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	y.fix()
	x.fix()
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	x.fix()
	y.fix()
	return y
}

// rebalance restores the AVL invariant at n after one of its subtrees
// changed height by at most one, and returns the new subtree root.
func rebalance(n *node) *node {
	n.fix()
	switch bf := balanceFactor(n); {
	case bf > 1:
		if balanceFactor(n.left) < 0 {
			n.left = rotateLeft(n.left) // LR
		}
		return rotateRight(n) // LL
	case bf < -1:
		if balanceFactor(n.right) > 0 {
			n.right = rotateRight(n.right) // RL
		}
		return rotateLeft(n) // RR
	default:
		return n
	}
}

// insert adds rec below n. It reports false without modifying the tree
// when the key already exists.
func insert(n *node, rec Record) (*node, bool) {
	if n == nil {
		return &node{rec: rec, height: 1}, true
	}
	var ok bool
	switch {
	case rec.PackageID < n.rec.PackageID:
		n.left, ok = insert(n.left, rec)
	case rec.PackageID > n.rec.PackageID:
		n.right, ok = insert(n.right, rec)
	default:
		return n, false
	}
	if !ok {
		return n, false
	}
	return rebalance(n), true
}

func find(n *node, id string) *node {
	for n != nil {
		switch {
		case id < n.rec.PackageID:
			n = n.left
		case id > n.rec.PackageID:
			n = n.right
		default:
			return n
		}
	}
	return nil
}

func walk(n *node, fn func(*node) bool) bool {
	if n == nil {
		return true
	}
	return walk(n.left, fn) && fn(n) && walk(n.right, fn)
}

// verify checks ordering, cached heights, and balance for the subtree,
// returning its true height or -1 on violation.
func verify(n *node, lo, hi *string) int {
	if n == nil {
		return 0
	}
	id := n.rec.PackageID
	if (lo != nil && id <= *lo) || (hi != nil && id >= *hi) {
		return -1
	}
	lh := verify(n.left, lo, &id)
	rh := verify(n.right, &id, hi)
	if lh < 0 || rh < 0 || lh-rh > 1 || rh-lh > 1 {
		return -1
	}
	h := 1 + max(lh, rh)
	if h != n.height {
		return -1
	}
	return h
}
