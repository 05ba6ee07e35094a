package splat

import (
	"fmt"

	"github.com/arloliu/sog4d/errs"
	"github.com/arloliu/sog4d/format"
)

// Frame is one snapshot of every point's attributes.
//
// All slices are point-major. Rest holds RestCoeffs RGB triplets per point,
// laid out [point][coeff][rgb].
type Frame struct {
	Count      int
	Positions  []float32 // x,y,z
	DC         []float32 // f_dc_0..2
	Opacity    []float32 // raw opacity
	Scale      []float32 // raw scale_0..2
	Rotation   []float32 // w,x,y,z, not normalized
	Rest       []float32
	RestCoeffs int
}

// NewFrame allocates a zeroed frame of count points with restCoeffs rest
// coefficients per point.
func NewFrame(count, restCoeffs int) *Frame {
	return &Frame{
		Count:      count,
		Positions:  make([]float32, count*3),
		DC:         make([]float32, count*3),
		Opacity:    make([]float32, count),
		Scale:      make([]float32, count*3),
		Rotation:   make([]float32, count*4),
		Rest:       make([]float32, count*restCoeffs*3),
		RestCoeffs: restCoeffs,
	}
}

// Validate checks that every attribute slice matches Count.
func (f *Frame) Validate() error {
	if f.Count < 0 || f.RestCoeffs < 0 {
		return fmt.Errorf("%w: frame has %d points and %d rest coefficients", errs.ErrInvalidInput, f.Count, f.RestCoeffs)
	}

	check := func(name string, got, per int) error {
		if got != f.Count*per {
			return fmt.Errorf("%w: %s has %d values, expected %d", errs.ErrInvalidInput, name, got, f.Count*per)
		}

		return nil
	}
	if err := check("positions", len(f.Positions), 3); err != nil {
		return err
	}
	if err := check("f_dc", len(f.DC), 3); err != nil {
		return err
	}
	if err := check("opacity", len(f.Opacity), 1); err != nil {
		return err
	}
	if err := check("scale", len(f.Scale), 3); err != nil {
		return err
	}
	if err := check("rotation", len(f.Rotation), 4); err != nil {
		return err
	}

	return check("f_rest", len(f.Rest), f.RestCoeffs*3)
}

// Bands returns the directional color band count implied by RestCoeffs.
func (f *Frame) Bands() (int, error) {
	return BandsForRestCoeffs(f.RestCoeffs)
}

// RestAt returns the rest coefficients of point i. The slice aliases the frame.
func (f *Frame) RestAt(i int) []float32 {
	n := f.RestCoeffs * 3
	return f.Rest[i*n : (i+1)*n]
}

// RestSlice copies coefficients [from, to) of every point into a new
// point-major array of (to-from)*3 values per point.
func (f *Frame) RestSlice(from, to int) []float32 {
	width := (to - from) * 3
	out := make([]float32, 0, f.Count*width)
	for i := range f.Count {
		row := f.RestAt(i)
		out = append(out, row[from*3:to*3]...)
	}

	return out
}

// DropRest discards the rest coefficients.
func (f *Frame) DropRest() {
	f.Rest = f.Rest[:0]
	f.RestCoeffs = 0
}

// BandsForRestCoeffs maps a rest coefficient count (0, 3, 8 or 15) to its
// band count.
func BandsForRestCoeffs(coeffs int) (int, error) {
	for b := 0; b <= format.MaxBands; b++ {
		if (b+1)*(b+1)-1 == coeffs {
			return b, nil
		}
	}

	return 0, fmt.Errorf("%w: %d rest coefficients per point is not (bands+1)^2-1 for bands 0..%d",
		errs.ErrInvalidBands, coeffs, format.MaxBands)
}
