package quant

import (
	"math"

	"github.com/arloliu/sog4d/format"
)

// Sigmoid returns the logistic function of x, branching on the sign of x so
// neither exp call can overflow.
func Sigmoid(x float32) float32 {
	if x >= 0 {
		return float32(1.0 / (1.0 + math.Exp(-float64(x))))
	}

	e := math.Exp(float64(x))

	return float32(e / (1.0 + e))
}

// DecodeOpacity converts raw opacity values to linear opacity in [0,1].
//
// OpacityLinear clips the raw values, OpacitySigmoid applies Sigmoid and
// OpacityAuto picks linear when every non-NaN raw value already lies in
// [0,1], sigmoid otherwise. NaN results are replaced with 0.
func DecodeOpacity(raw []float32, mode format.OpacityMode) []float32 {
	if mode == format.OpacityAuto {
		mode = detectOpacityMode(raw)
	}

	out := make([]float32, len(raw))
	for i, v := range raw {
		var d float32
		if mode == format.OpacityLinear {
			d = clamp01(v)
		} else {
			d = Sigmoid(v)
		}

		if d != d {
			d = 0
		}
		out[i] = d
	}

	return out
}

func detectOpacityMode(raw []float32) format.OpacityMode {
	seen := false
	lo, hi := float32(math.Inf(1)), float32(math.Inf(-1))
	for _, v := range raw {
		if v != v {
			continue
		}
		seen = true
		lo = min(lo, v)
		hi = max(hi, v)
	}

	if seen && lo >= 0 && hi <= 1 {
		return format.OpacityLinear
	}

	return format.OpacitySigmoid
}

// DecodeScale converts raw scale values to linear scale.
//
// ScaleLinear passes values through; ScaleExp and ScaleAuto exponentiate.
// Auto never infers linear input: exponentiating linear data produces
// magnitudes that are obviously wrong, while the opposite mistake silently
// shrinks every splat. NaN becomes 0 and overflow saturates at
// math.MaxFloat32.
func DecodeScale(raw []float32, mode format.ScaleMode) []float32 {
	out := make([]float32, len(raw))
	for i, v := range raw {
		d := v
		if mode != format.ScaleLinear {
			d = float32(math.Exp(float64(v)))
		}

		switch {
		case d != d:
			d = 0
		case math.IsInf(float64(d), 1):
			d = math.MaxFloat32
		case math.IsInf(float64(d), -1):
			d = -math.MaxFloat32
		}
		out[i] = d
	}

	return out
}

// LogScale returns ln(max(s, 1e-8)) for every linear scale component.
func LogScale(scale []float32) []float32 {
	out := make([]float32, len(scale))
	for i, s := range scale {
		if !(s >= 1e-8) {
			s = 1e-8
		}
		out[i] = float32(math.Log(float64(s)))
	}

	return out
}

// NormalizeQuats normalizes a flat w,x,y,z quaternion array.
//
// Quaternions whose norm is non-finite or below 1e-8 are replaced with the
// identity (1,0,0,0). The result is flipped into the w >= 0 hemisphere.
func NormalizeQuats(q []float32) []float32 {
	n := len(q) / 4
	out := make([]float32, n*4)

	for i := range n {
		src := q[i*4 : i*4+4]
		dst := out[i*4 : i*4+4]

		var sum float32
		for _, c := range src {
			sum += c * c
		}
		norm := float32(math.Sqrt(float64(sum)))

		if math.IsNaN(float64(norm)) || math.IsInf(float64(norm), 0) || norm < 1e-8 {
			dst[0], dst[1], dst[2], dst[3] = 1, 0, 0, 0
			continue
		}

		for c := range 4 {
			dst[c] = src[c] / norm
		}
		if dst[0] < 0 {
			for c := range 4 {
				dst[c] = -dst[c]
			}
		}
	}

	return out
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}

	return v
}
