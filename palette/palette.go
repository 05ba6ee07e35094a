// Package palette maps per-point attribute vectors to their nearest codebook
// entry.
//
// Search is always exact under squared Euclidean distance. Ties resolve
// toward the lower entry index, except on the sorted scalar codebook where
// the left neighbor of the insertion point is compared first and wins ties.
package palette

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/arloliu/sog4d/codebook"
	"github.com/arloliu/sog4d/errs"
	"github.com/arloliu/sog4d/internal/nn"
)

// chunkSize is the number of points assigned per goroutine.
const chunkSize = 8192

// Assigner assigns feature vectors to codebook indices.
type Assigner interface {
	// Assign returns one index per Dim()-sized feature vector in features.
	// Every index is strictly less than Len().
	Assign(ctx context.Context, features []float32) ([]uint16, error)
	// Len returns the codebook entry count.
	Len() int
	// Dim returns the feature dimension.
	Dim() int
}

// NewAssigner picks the search strategy for cb: binary search for 1-D
// codebooks, a k-d tree up to three dimensions and a brute-force scan above.
//
// 1-D codebooks must be sorted ascending.
func NewAssigner(cb *codebook.Codebook) (Assigner, error) {
	if err := check(cb); err != nil {
		return nil, err
	}

	switch {
	case cb.Dim == 1:
		return NewScalarAssigner(cb)
	case cb.Dim <= 3:
		return NewKDAssigner(cb)
	default:
		return NewBruteAssigner(cb)
	}
}

func check(cb *codebook.Codebook) error {
	if cb == nil || cb.Len() == 0 {
		return fmt.Errorf("%w: empty codebook", errs.ErrInvalidInput)
	}
	if !cb.Addressable() {
		return fmt.Errorf("%w: %d entries", errs.ErrCodebookTooLarge, cb.Len())
	}

	return nil
}

type searcher struct {
	dim  int
	n    int
	find func([]float32) int
}

func (s *searcher) Len() int { return s.n }
func (s *searcher) Dim() int { return s.dim }

func (s *searcher) Assign(ctx context.Context, features []float32) ([]uint16, error) {
	if len(features)%s.dim != 0 {
		return nil, fmt.Errorf("%w: %d features is not a multiple of dimension %d",
			errs.ErrInvalidInput, len(features), s.dim)
	}

	count := len(features) / s.dim
	out := make([]uint16, count)

	g, gctx := errgroup.WithContext(ctx)
	for lo := 0; lo < count; lo += chunkSize {
		hi := min(lo+chunkSize, count)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			scratch := make([]float32, s.dim)
			for i := lo; i < hi; i++ {
				out[i] = uint16(s.find(sanitize(scratch, features[i*s.dim:(i+1)*s.dim])))
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

// sanitize copies v into dst with non-finite components replaced by 0.
func sanitize(dst, v []float32) []float32 {
	for i, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			x = 0
		}
		dst[i] = x
	}

	return dst
}

// ScalarAssigner assigns scalars to a sorted 1-D codebook by binary search.
type ScalarAssigner struct {
	searcher
}

var _ Assigner = (*ScalarAssigner)(nil)

// NewScalarAssigner creates an assigner over the sorted 1-D codebook cb.
func NewScalarAssigner(cb *codebook.Codebook) (*ScalarAssigner, error) {
	if err := check(cb); err != nil {
		return nil, err
	}
	if cb.Dim != 1 {
		return nil, fmt.Errorf("%w: scalar assigner needs a 1-D codebook, got %d", errs.ErrInvalidInput, cb.Dim)
	}
	for i := 1; i < len(cb.Entries); i++ {
		if cb.Entries[i] < cb.Entries[i-1] {
			return nil, fmt.Errorf("%w: scalar codebook is not sorted at entry %d", errs.ErrInvalidInput, i)
		}
	}

	s := nn.NewScalar(cb.Entries)

	return &ScalarAssigner{searcher{
		dim:  1,
		n:    cb.Len(),
		find: func(v []float32) int { return s.Nearest(v[0]) },
	}}, nil
}

// KDAssigner assigns low-dimensional vectors using a k-d tree.
type KDAssigner struct {
	searcher
}

var _ Assigner = (*KDAssigner)(nil)

// NewKDAssigner creates an assigner over cb using a k-d tree.
func NewKDAssigner(cb *codebook.Codebook) (*KDAssigner, error) {
	if err := check(cb); err != nil {
		return nil, err
	}

	return &KDAssigner{searcher{
		dim:  cb.Dim,
		n:    cb.Len(),
		find: nn.NewKDTree(cb.Dim, cb.Entries).Nearest,
	}}, nil
}

// BruteAssigner assigns vectors of any dimension with an exhaustive scan.
type BruteAssigner struct {
	searcher
}

var _ Assigner = (*BruteAssigner)(nil)

// NewBruteAssigner creates an exhaustive assigner over cb.
func NewBruteAssigner(cb *codebook.Codebook) (*BruteAssigner, error) {
	if err := check(cb); err != nil {
		return nil, err
	}

	return &BruteAssigner{searcher{
		dim:  cb.Dim,
		n:    cb.Len(),
		find: nn.NewBrute(cb.Dim, cb.Entries).Nearest,
	}}, nil
}

// Bytes narrows indices of a codebook with at most 256 entries to bytes.
func Bytes(indices []uint16) ([]uint8, error) {
	out := make([]uint8, len(indices))
	for i, v := range indices {
		if v > 0xFF {
			return nil, fmt.Errorf("%w: index %d at point %d does not fit a byte", errs.ErrIndexOutOfRange, v, i)
		}
		out[i] = uint8(v)
	}

	return out, nil
}
