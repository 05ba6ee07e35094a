package codebook

import (
	"math"
	"math/rand/v2"
	"slices"

	"github.com/arloliu/sog4d/internal/hash"
)

// NewRand returns the deterministic generator used for a named fit.
//
// Each codebook draws from its own stream so fits can run concurrently and
// still produce the same result for a seed.
func NewRand(seed uint64, name string) *rand.Rand {
	return rand.New(rand.NewPCG(seed, hash.Checksum([]byte(name))))
}

// Importance returns opacity * scale.x * scale.y * scale.z per point.
//
// The volume term underflows float32 for small splats, which would starve the
// weighted sampler, so the product is computed in float64. Negative and NaN
// products become 0.
func Importance(opacity, scaleLinear []float32) []float64 {
	out := make([]float64, len(opacity))
	for i, o := range opacity {
		s := scaleLinear[i*3 : i*3+3]
		w := float64(o) * float64(s[0]) * float64(s[1]) * float64(s[2])
		if !(w > 0) {
			w = 0
		}
		out[i] = w
	}

	return out
}

// Budget returns the per-frame sample count max(1, target/(frames*perPoint)).
func Budget(target, frames, perPoint int) int {
	if frames <= 0 || perPoint <= 0 {
		return 1
	}

	return max(1, target/(frames*perPoint))
}

// WeightedChoice draws up to size distinct indices from [0, n) with
// probability proportional to weights, returned in ascending order.
//
// It degrades instead of failing: when the weights do not sum to a positive
// finite value the draw is uniform, and when fewer than size indices have a
// positive weight the result is clamped to those indices.
//
// The weighted draw uses the Efraimidis-Spirakis key log(u)/w and keeps the
// size largest keys.
func WeightedChoice(rng *rand.Rand, n, size int, weights []float64) []int {
	size = min(size, n)
	if size <= 0 {
		return []int{}
	}

	var sum float64
	positive := 0
	for _, w := range weights[:n] {
		if w > 0 {
			sum += w
			positive++
		} else if w != 0 && !(w < 0) {
			sum = math.NaN()
		}
	}

	if math.IsNaN(sum) || math.IsInf(sum, 0) || !(sum > 0) {
		return uniformChoice(rng, n, size)
	}

	size = min(size, positive)

	type keyed struct {
		key float64
		idx int
	}
	keys := make([]keyed, 0, positive)
	for i, w := range weights[:n] {
		if !(w > 0) {
			continue
		}
		u := rng.Float64()
		for u == 0 {
			u = rng.Float64()
		}
		keys = append(keys, keyed{key: math.Log(u) / w, idx: i})
	}

	slices.SortFunc(keys, func(a, b keyed) int {
		switch {
		case a.key > b.key:
			return -1
		case a.key < b.key:
			return 1
		default:
			return a.idx - b.idx
		}
	})

	out := make([]int, size)
	for i := range out {
		out[i] = keys[i].idx
	}
	slices.Sort(out)

	return out
}

func uniformChoice(rng *rand.Rand, n, size int) []int {
	perm := rng.Perm(n)[:size]
	slices.Sort(perm)

	return perm
}

// resample draws m sample indices for a k-means fit: with replacement in
// proportion to weight, or uniformly without replacement when the weights are
// degenerate.
func resample(rng *rand.Rand, weights []float64, m int) []int {
	n := len(weights)
	m = min(m, n)

	cdf := make([]float64, n)
	var total float64
	for i, w := range weights {
		if w > 0 {
			total += w
		}
		cdf[i] = total
	}

	if math.IsNaN(total) || math.IsInf(total, 0) || !(total > 0) {
		return uniformChoice(rng, n, m)
	}

	out := make([]int, m)
	for i := range out {
		r := rng.Float64() * total
		j, _ := slices.BinarySearchFunc(cdf, r, func(c, target float64) int {
			if c <= target {
				return -1
			}

			return 1
		})
		out[i] = min(j, n-1)
	}

	return out
}
