package codebook

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/arloliu/sog4d/errs"
	"github.com/arloliu/sog4d/format"
)

// scalarKMeansSamples caps the resampled set for the scalar k-means path.
const scalarKMeansSamples = 500_000

// WeightedQuantile returns the weighted quantiles qs (each in [0,1]) of values.
//
// Values are sorted, their weights accumulated and normalized to end at 1,
// and each quantile is linearly interpolated on that curve. Quantiles below
// the first cumulative weight return the smallest value. Negative weights
// count as zero; when the weights sum to zero or a non-finite value the
// plain quantile of values is returned instead.
func WeightedQuantile(values []float32, weights []float64, qs []float64) []float32 {
	n := len(values)
	out := make([]float32, len(qs))
	if n == 0 {
		return out
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case values[a] < values[b]:
			return -1
		case values[a] > values[b]:
			return 1
		default:
			return 0
		}
	})

	v := make([]float64, n)
	cw := make([]float64, n)
	var total float64
	for i, idx := range order {
		v[i] = float64(values[idx])
		if w := weights[idx]; w > 0 {
			total += w
		}
		cw[i] = total
	}

	if math.IsNaN(total) || math.IsInf(total, 0) || !(total > 0) {
		for i, q := range qs {
			out[i] = float32(plainQuantile(v, q))
		}

		return out
	}

	for i := range cw {
		cw[i] /= total
	}

	for i, q := range qs {
		out[i] = float32(interp(q, cw, v))
	}

	return out
}

// interp evaluates the piecewise-linear function through (xp[i], fp[i]) at x.
// xp must be non-decreasing.
func interp(x float64, xp, fp []float64) float64 {
	n := len(xp)
	// j is the last index with xp[j] <= x
	j := sort.Search(n, func(i int) bool { return xp[i] > x }) - 1

	switch {
	case j < 0:
		return fp[0]
	case j >= n-1:
		return fp[n-1]
	case xp[j] == x:
		return fp[j]
	}

	slope := (fp[j+1] - fp[j]) / (xp[j+1] - xp[j])

	return fp[j] + slope*(x-xp[j])
}

// plainQuantile is the linear-interpolation quantile of sorted values.
func plainQuantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	if lo < 0 {
		return sorted[0]
	}
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)

	return sorted[lo] + (sorted[lo+1]-sorted[lo])*frac
}

// BuildScalar builds the 256-entry base color codebook from 1-D samples.
//
// MethodQuantile takes the weighted quantiles at (i+0.5)/256. MethodKMeans
// resamples up to 500 000 values in proportion to weight and runs a 256
// cluster k-means; when fewer than 256 distinct centers exist the tail is
// padded with the largest center. Entries are sorted ascending in both cases
// so palette assignment can binary search them.
func BuildScalar(ctx context.Context, pool *SamplePool, method format.CodebookMethod, opts ...KMeansOption) (*Codebook, error) {
	if pool.Dim != 1 {
		return nil, fmt.Errorf("%w: scalar codebook needs 1-D samples, got %d", errs.ErrInvalidInput, pool.Dim)
	}
	if pool.Len() == 0 {
		return nil, fmt.Errorf("%w: base color codebook", errs.ErrEmptySamples)
	}

	switch method {
	case format.MethodQuantile:
		qs := make([]float64, format.ScalarCodebookSize)
		for i := range qs {
			qs[i] = (float64(i) + 0.5) / format.ScalarCodebookSize
		}
		cb := &Codebook{Dim: 1, Entries: WeightedQuantile(pool.Values, pool.Weights, qs)}
		cb.sortScalar()

		return cb, nil

	case format.MethodKMeans:
		opts = append([]KMeansOption{WithMaxSamples(scalarKMeansSamples)}, opts...)
		cb, err := FitKMeans(ctx, "sh0Codebook", pool, format.ScalarCodebookSize, opts...)
		if err != nil {
			return nil, err
		}
		cb.sortScalar()

		if pad := format.ScalarCodebookSize - cb.Len(); pad > 0 {
			last := cb.Entries[len(cb.Entries)-1]
			for range pad {
				cb.Entries = append(cb.Entries, last)
			}
		}

		return cb, nil

	default:
		return nil, fmt.Errorf("%w: codebook method %s", errs.ErrInvalidMode, method)
	}
}
