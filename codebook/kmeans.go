package codebook

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/arloliu/sog4d/errs"
	"github.com/arloliu/sog4d/internal/hash"
	"github.com/arloliu/sog4d/internal/nn"
	"github.com/arloliu/sog4d/internal/options"
)

const (
	// DefaultKMeansSamples caps the resampled set of a vector fit.
	DefaultKMeansSamples = 200_000
	// DefaultKMeansIterations is the default number of Lloyd iterations.
	DefaultKMeansIterations = 16

	// seedingBudget bounds points*k for k-means++ seeding; larger fits start
	// from random distinct points.
	seedingBudget = 1 << 26

	// assignChunk is the number of points assigned per goroutine. It is fixed
	// so partial sums are merged in the same order on every machine.
	assignChunk = 4096
)

type kmeansConfig struct {
	seed       uint64
	maxSamples int
	iterations int
	workers    int
	logger     *slog.Logger
}

// KMeansOption configures FitKMeans and the k-means path of BuildScalar.
type KMeansOption = options.Option[*kmeansConfig]

// WithSeed sets the seed of the fit's random stream.
func WithSeed(seed uint64) KMeansOption {
	return options.NoError(func(c *kmeansConfig) {
		c.seed = seed
	})
}

// WithMaxSamples caps the number of resampled points used by the fit.
func WithMaxSamples(n int) KMeansOption {
	return options.New(func(c *kmeansConfig) error {
		if n <= 0 {
			return fmt.Errorf("%w: max samples must be positive, got %d", errs.ErrInvalidInput, n)
		}
		c.maxSamples = n

		return nil
	})
}

// WithIterations sets the maximum number of Lloyd iterations.
func WithIterations(n int) KMeansOption {
	return options.New(func(c *kmeansConfig) error {
		if n <= 0 {
			return fmt.Errorf("%w: iterations must be positive, got %d", errs.ErrInvalidInput, n)
		}
		c.iterations = n

		return nil
	})
}

// WithWorkers limits the number of goroutines used for assignment.
func WithWorkers(n int) KMeansOption {
	return options.NoError(func(c *kmeansConfig) {
		c.workers = n
	})
}

// WithLogger sets the logger for progress and degeneracy warnings.
func WithLogger(logger *slog.Logger) KMeansOption {
	return options.NoError(func(c *kmeansConfig) {
		if logger != nil {
			c.logger = logger
		}
	})
}

// FitKMeans fits a k-entry codebook to the pooled samples.
//
// The fit approximates sample weighting by resampling: up to maxSamples
// points are drawn with replacement in proportion to weight, or uniformly
// without replacement when the weights are degenerate. k is reduced to the
// number of distinct resampled vectors with a warning. Centers are seeded
// with k-means++ (random distinct points for very large fits) and refined
// with Lloyd iterations
// using exact nearest-center assignment; a center that loses all its points
// keeps its previous position. The result is deterministic for a seed and
// name.
func FitKMeans(ctx context.Context, name string, pool *SamplePool, k int, opts ...KMeansOption) (*Codebook, error) {
	cfg := &kmeansConfig{
		maxSamples: DefaultKMeansSamples,
		iterations: DefaultKMeansIterations,
		logger:     slog.Default(),
	}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	if pool.Len() == 0 {
		return nil, fmt.Errorf("%w: %s", errs.ErrEmptySamples, name)
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: %s cluster count must be positive, got %d", errs.ErrInvalidInput, name, k)
	}

	dim := pool.Dim
	rng := NewRand(cfg.seed, name)

	idx := resample(rng, pool.Weights, cfg.maxSamples)
	points := make([]float32, 0, len(idx)*dim)
	for _, i := range idx {
		points = append(points, pool.At(i)...)
	}
	n := len(idx)

	distinct := distinctRows(points, dim)
	effK := min(k, len(distinct))
	if effK < k {
		cfg.logger.Warn("reducing cluster count to distinct sample count",
			"codebook", name, "requested", k, "effective", effK, "samples", n)
	}

	var centers []float32
	if n*effK <= seedingBudget {
		centers = seedPlusPlus(rng, points, dim, effK)
		if seeded := len(centers) / dim; seeded < effK {
			cfg.logger.Warn("reducing cluster count to seeded center count",
				"codebook", name, "requested", k, "effective", seeded, "samples", n)
			effK = seeded
		}
	} else {
		rng.Shuffle(len(distinct), func(i, j int) { distinct[i], distinct[j] = distinct[j], distinct[i] })
		centers = make([]float32, 0, effK*dim)
		for _, row := range distinct[:effK] {
			centers = append(centers, points[row*dim:(row+1)*dim]...)
		}
	}

	cfg.logger.Info("fitting k-means", "codebook", name, "k", effK, "samples", n, "dim", dim)

	labels := make([]int32, n)
	for i := range labels {
		labels[i] = -1
	}

	for iter := range cfg.iterations {
		changed, sums, counts, err := lloydStep(ctx, points, dim, centers, effK, labels, cfg.workers)
		if err != nil {
			return nil, err
		}

		for c := range effK {
			if counts[c] == 0 {
				continue
			}
			for d := range dim {
				centers[c*dim+d] = float32(sums[c*dim+d] / float64(counts[c]))
			}
		}

		cfg.logger.Debug("k-means iteration", "codebook", name, "iteration", iter+1, "changed", changed)
		if changed == 0 {
			break
		}
	}

	return &Codebook{Dim: dim, Entries: centers}, nil
}

// seedPlusPlus picks up to k initial centers with k-means++ seeding. Every
// pick has a positive distance to the chosen centers, so the centers are
// distinct; seeding stops early once no point is left at a positive distance.
func seedPlusPlus(rng *rand.Rand, points []float32, dim, k int) []float32 {
	n := len(points) / dim
	centers := make([]float32, 0, k*dim)

	first := rng.IntN(n)
	centers = append(centers, points[first*dim:(first+1)*dim]...)

	dist := make([]float64, n)
	for i := range n {
		dist[i] = nn.SquaredDistance64(points[i*dim:(i+1)*dim], centers)
	}

	for len(centers) < k*dim {
		var total float64
		for _, d := range dist {
			total += d
		}
		if !(total > 0) {
			break
		}

		r := rng.Float64() * total
		pick := -1
		for i, d := range dist {
			if d <= 0 {
				continue
			}
			pick = i
			r -= d
			if r < 0 {
				break
			}
		}

		c := points[pick*dim : (pick+1)*dim]
		centers = append(centers, c...)
		for i := range n {
			if d := nn.SquaredDistance64(points[i*dim:(i+1)*dim], c); d < dist[i] {
				dist[i] = d
			}
		}
	}

	return centers
}

// lloydStep assigns every point to its nearest center and returns the number
// of changed labels plus per-center coordinate sums and counts.
func lloydStep(ctx context.Context, points []float32, dim int, centers []float32, k int, labels []int32, workers int) (int, []float64, []int, error) {
	n := len(labels)
	finder := newFinder(dim, centers)

	chunks := (n + assignChunk - 1) / assignChunk
	partSums := make([][]float64, chunks)
	partCounts := make([][]int, chunks)
	partChanged := make([]int, chunks)

	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}

	for ci := range chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			lo := ci * assignChunk
			hi := min(lo+assignChunk, n)
			sums := make([]float64, k*dim)
			counts := make([]int, k)

			for i := lo; i < hi; i++ {
				p := points[i*dim : (i+1)*dim]
				c := finder(p)
				if labels[i] != int32(c) {
					labels[i] = int32(c)
					partChanged[ci]++
				}
				counts[c]++
				for d, v := range p {
					sums[c*dim+d] += float64(v)
				}
			}

			partSums[ci] = sums
			partCounts[ci] = counts

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, nil, nil, err
	}

	sums := make([]float64, k*dim)
	counts := make([]int, k)
	changed := 0
	for ci := range chunks {
		changed += partChanged[ci]
		for j, v := range partSums[ci] {
			sums[j] += v
		}
		for j, v := range partCounts[ci] {
			counts[j] += v
		}
	}

	return changed, sums, counts, nil
}

// newFinder returns the exact nearest-center search for the dimension.
func newFinder(dim int, centers []float32) func([]float32) int {
	if dim == 1 {
		// centers are not sorted during the fit, so a scan is used instead of nn.Scalar
		return nn.NewBrute(1, centers).Nearest
	}
	if dim <= 3 {
		return nn.NewKDTree(dim, centers).Nearest
	}

	return nn.NewBrute(dim, centers).Nearest
}

// distinctRows returns the index of the first occurrence of every distinct
// row, in order of appearance.
func distinctRows(points []float32, dim int) []int {
	n := len(points) / dim
	buckets := make(map[uint64][]int, n)
	out := make([]int, 0, n)

	for i := range n {
		row := points[i*dim : (i+1)*dim]
		h := hash.Vector(row)

		dup := false
		for _, j := range buckets[h] {
			if slices.Equal(row, points[j*dim:(j+1)*dim]) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}

		buckets[h] = append(buckets[h], i)
		out = append(out, i)
	}

	return out
}
