package nn

import (
	"slices"
)

// leafSize is the largest node scanned linearly.
const leafSize = 8

type kdNode struct {
	axis        int
	split       float32
	left, right int32 // child node indices, -1 for none
	lo, hi      int32 // range into KDTree.order for leaves
}

// KDTree is a static k-d tree over a flat entries array.
//
// The tree is built once and is safe for concurrent queries.
type KDTree struct {
	dim     int
	entries []float32
	order   []int32
	nodes   []kdNode
}

// NewKDTree builds a tree over entries with the given dimension.
func NewKDTree(dim int, entries []float32) *KDTree {
	n := len(entries) / dim
	t := &KDTree{
		dim:     dim,
		entries: entries,
		order:   make([]int32, n),
		nodes:   make([]kdNode, 0, 2*n/leafSize+1),
	}
	for i := range t.order {
		t.order[i] = int32(i)
	}

	if n > 0 {
		t.build(0, n)
	}

	return t
}

func (t *KDTree) coord(idx int32, axis int) float32 {
	return t.entries[int(idx)*t.dim+axis]
}

func (t *KDTree) build(lo, hi int) int32 {
	id := int32(len(t.nodes))
	t.nodes = append(t.nodes, kdNode{left: -1, right: -1, lo: int32(lo), hi: int32(hi)})

	if hi-lo <= leafSize {
		return id
	}

	// split on the axis with the widest extent
	axis, widest := 0, float32(-1)
	for a := range t.dim {
		mn, mx := t.coord(t.order[lo], a), t.coord(t.order[lo], a)
		for _, idx := range t.order[lo+1 : hi] {
			v := t.coord(idx, a)
			mn = min(mn, v)
			mx = max(mx, v)
		}
		if mx-mn > widest {
			axis, widest = a, mx-mn
		}
	}
	if widest <= 0 {
		return id
	}

	part := t.order[lo:hi]
	slices.SortFunc(part, func(a, b int32) int {
		va, vb := t.coord(a, axis), t.coord(b, axis)
		switch {
		case va < vb:
			return -1
		case va > vb:
			return 1
		default:
			return int(a - b)
		}
	})

	mid := lo + (hi-lo)/2
	split := t.coord(t.order[mid], axis)

	left := t.build(lo, mid)
	right := t.build(mid, hi)

	t.nodes[id].axis = axis
	t.nodes[id].split = split
	t.nodes[id].left = left
	t.nodes[id].right = right

	return id
}

// Nearest returns the index of the entry closest to q.
func (t *KDTree) Nearest(q []float32) int {
	if len(t.nodes) == 0 {
		return 0
	}

	best, bestDist := int32(-1), float32(0)
	t.search(0, q, &best, &bestDist)

	return int(best)
}

func (t *KDTree) search(id int32, q []float32, best *int32, bestDist *float32) {
	node := &t.nodes[id]

	if node.left < 0 {
		for _, idx := range t.order[node.lo:node.hi] {
			off := int(idx) * t.dim
			d := SquaredDistance(q, t.entries[off:off+t.dim])
			if *best < 0 || d < *bestDist || (d == *bestDist && idx < *best) {
				*best, *bestDist = idx, d
			}
		}

		return
	}

	diff := q[node.axis] - node.split
	near, far := node.left, node.right
	if diff >= 0 {
		near, far = node.right, node.left
	}

	t.search(near, q, best, bestDist)

	// equal distances must still be visited so the lower index can win
	if diff*diff <= *bestDist {
		t.search(far, q, best, bestDist)
	}
}
