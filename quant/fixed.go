package quant

import (
	"math"
)

// zeroSpan is the largest axis span treated as degenerate.
const zeroSpan = 1e-20

// QuantizeQuat maps a normalized quaternion component in [-1,1] to a byte
// via round(v*128+128). NaN maps to 0.
func QuantizeQuat(v float32) uint8 {
	if v != v {
		return 0
	}
	if v < -1 {
		v = -1
	} else if v > 1 {
		v = 1
	}

	return clampByte(math.RoundToEven(float64(v*128 + 128)))
}

// QuantizeQuats quantizes a flat normalized quaternion array component by component.
func QuantizeQuats(q []float32) []uint8 {
	out := make([]uint8, len(q))
	for i, v := range q {
		out[i] = QuantizeQuat(v)
	}

	return out
}

// QuantizeUnit maps a scalar in [0,1] to a byte via round(v*255). NaN maps to 0.
func QuantizeUnit(v float32) uint8 {
	if v != v {
		return 0
	}

	return clampByte(math.RoundToEven(float64(clamp01(v) * 255)))
}

// Range is a per-axis position bound for one frame.
type Range struct {
	Min [3]float32
	Max [3]float32
}

// Span returns Max-Min for axis.
func (r Range) Span(axis int) float32 {
	return r.Max[axis] - r.Min[axis]
}

// PositionRange returns the per-axis bounds of a flat x,y,z position array,
// ignoring non-finite values. An axis without finite values gets 0/0.
func PositionRange(pos []float32) Range {
	var r Range
	var seen [3]bool

	for i, v := range pos {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			continue
		}

		axis := i % 3
		if !seen[axis] {
			r.Min[axis], r.Max[axis] = v, v
			seen[axis] = true
			continue
		}
		r.Min[axis] = min(r.Min[axis], v)
		r.Max[axis] = max(r.Max[axis], v)
	}

	return r
}

// QuantizePositions maps each component of a flat x,y,z array to a 16-bit
// code using round((v-min)/(max-min)*65535) against r.
//
// Values outside the range are clamped. Axes with a span of at most 1e-20
// are written as 0, as are NaN components.
func QuantizePositions(pos []float32, r Range) []uint16 {
	out := make([]uint16, len(pos))

	var span [3]float32
	var degenerate [3]bool
	for axis := range 3 {
		span[axis] = r.Span(axis)
		degenerate[axis] = !(span[axis] > zeroSpan)
	}

	for i, v := range pos {
		axis := i % 3
		if degenerate[axis] || v != v {
			continue
		}

		t := clamp01((v - r.Min[axis]) / span[axis])
		q := math.RoundToEven(float64(t * 65535))
		if q > 65535 {
			q = 65535
		}
		out[i] = uint16(q)
	}

	return out
}

// DequantizePosition maps a 16-bit code back into [lo, hi].
func DequantizePosition(code uint16, lo, hi float32) float32 {
	span := hi - lo
	if !(span > zeroSpan) {
		return lo
	}

	return lo + float32(code)/65535*span
}

// SplitU16 splits 16-bit codes into their high and low bytes.
func SplitU16(codes []uint16) (hi, lo []uint8) {
	hi = make([]uint8, len(codes))
	lo = make([]uint8, len(codes))
	for i, c := range codes {
		hi[i] = uint8(c >> 8)
		lo[i] = uint8(c)
	}

	return hi, lo
}

// JoinU16 is the inverse of SplitU16.
func JoinU16(hi, lo []uint8) []uint16 {
	out := make([]uint16, min(len(hi), len(lo)))
	for i := range out {
		out[i] = uint16(hi[i])<<8 | uint16(lo[i])
	}

	return out
}

func clampByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}

	return uint8(v)
}
