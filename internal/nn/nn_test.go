package nn

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScalar_Nearest(t *testing.T) {
	s := NewScalar([]float32{-1, 0, 2, 2, 5})

	tests := []struct {
		in   float32
		want int
	}{
		{-10, 0},
		{-1, 0},
		{-0.6, 0},
		{-0.4, 1},
		{-0.5, 0}, // tie goes left
		{1, 1},    // tie between 0 and 2 goes left
		{1.5, 2},
		{2, 2},
		{3.5, 2}, // duplicates resolve to the first of them
		{4, 4},
		{100, 4},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, s.Nearest(tt.in), "in=%v", tt.in)
	}

	// a codebook padded with copies of its last entry
	padded := NewScalar([]float32{0, 1, 1, 1})
	require.Equal(t, 1, padded.Nearest(5))
	require.Equal(t, 1, padded.Nearest(1))
	require.Equal(t, 1, padded.Nearest(0.75))

	same := NewScalar([]float32{3, 3, 3})
	for _, v := range []float32{-1, 3, 7} {
		require.Equal(t, 0, same.Nearest(v), "in=%v", v)
	}
}

func TestBrute_Nearest(t *testing.T) {
	entries := []float32{
		0, 0,
		1, 1,
		1, 1,
		4, 0,
	}
	b := NewBrute(2, entries)

	require.Equal(t, 0, b.Nearest([]float32{0.1, 0}))
	require.Equal(t, 1, b.Nearest([]float32{1.1, 1.1})) // duplicate entries, lower index
	require.Equal(t, 3, b.Nearest([]float32{10, 0}))
	require.Equal(t, 1, b.Nearest([]float32{2, 0.5}))
	require.Equal(t, 0, b.Nearest([]float32{2, -10})) // tie between 0 and 3
}

func TestKDTree_MatchesBrute(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	for _, n := range []int{1, 5, 9, 64, 500} {
		entries := make([]float32, n*3)
		for i := range entries {
			// coarse grid values create many exact ties
			entries[i] = float32(rng.IntN(6))
		}

		tree := NewKDTree(3, entries)
		brute := NewBrute(3, entries)

		for range 300 {
			q := []float32{
				float32(rng.Float64()*7 - 0.5),
				float32(rng.IntN(6)),
				float32(rng.Float64()*7 - 0.5),
			}
			require.Equal(t, brute.Nearest(q), tree.Nearest(q), "n=%d q=%v", n, q)
		}
	}
}

func TestKDTree_AllIdentical(t *testing.T) {
	entries := make([]float32, 3*40)
	tree := NewKDTree(3, entries)
	require.Equal(t, 0, tree.Nearest([]float32{1, 2, 3}))
}

func TestSquaredDistance64(t *testing.T) {
	require.InDelta(t, 25.0, SquaredDistance64([]float32{0, 0, 0}, []float32{3, 4, 0}), 1e-12)

	// underflows float32 but not float64
	a, b := []float32{1e-30}, []float32{2e-30}
	require.Zero(t, SquaredDistance(a, b))
	require.Positive(t, SquaredDistance64(a, b))
}

func TestSquaredDistance(t *testing.T) {
	require.InDelta(t, 25.0, SquaredDistance([]float32{0, 0, 0}, []float32{3, 4, 0}), 1e-6)
}
