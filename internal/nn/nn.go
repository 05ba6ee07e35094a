// Package nn provides exact nearest-neighbor search over small codebooks.
//
// All searches use squared Euclidean distance and break ties toward the
// lower entry index, so results never depend on goroutine scheduling or tree
// shape.
package nn

import (
	"sort"
)

// Scalar searches a 1-D codebook sorted ascending.
type Scalar struct {
	values []float32
}

// NewScalar wraps sorted. The slice must be sorted ascending and non-empty.
func NewScalar(sorted []float32) *Scalar {
	return &Scalar{values: sorted}
}

// Nearest returns the index of the entry closest to v.
//
// The insertion point is found by binary search; the left neighbor is
// compared before the right one and wins ties. Among duplicate entries the
// first one is returned.
func (s *Scalar) Nearest(v float32) int {
	n := len(s.values)
	i := sort.Search(n, func(k int) bool { return s.values[k] >= v })

	switch {
	case i == 0:
		return 0
	case i == n:
		i = n - 1
	case v-s.values[i-1] <= s.values[i]-v:
		i--
	}

	for i > 0 && s.values[i-1] == s.values[i] {
		i--
	}

	return i
}

// SquaredDistance returns the squared Euclidean distance between a and b.
func SquaredDistance(a, b []float32) float32 {
	var d float32
	for i := range a {
		x := a[i] - b[i]
		d += x * x
	}

	return d
}

// SquaredDistance64 is SquaredDistance accumulated in float64. Distinct
// finite vectors always have a positive result.
func SquaredDistance64(a, b []float32) float64 {
	var d float64
	for i := range a {
		x := float64(a[i]) - float64(b[i])
		d += x * x
	}

	return d
}

// Brute scans every entry. It works for any dimension.
type Brute struct {
	dim     int
	entries []float32
}

// NewBrute wraps a flat entries array of the given dimension.
func NewBrute(dim int, entries []float32) *Brute {
	return &Brute{dim: dim, entries: entries}
}

// Nearest returns the index of the entry closest to q.
func (b *Brute) Nearest(q []float32) int {
	best, bestDist := 0, float32(0)
	n := len(b.entries) / b.dim

	for i := range n {
		if i == 0 {
			bestDist = SquaredDistance(q, b.entries[:b.dim])
			continue
		}

		// partial sums only grow, so stop once this entry cannot win
		e := b.entries[i*b.dim : (i+1)*b.dim]
		var d float32
		for c := range e {
			x := q[c] - e[c]
			d += x * x
			if d >= bestDist {
				break
			}
		}
		if d < bestDist {
			best, bestDist = i, d
		}
	}

	return best
}
