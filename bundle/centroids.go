package bundle

import (
	"fmt"
	"math"

	"github.com/x448/float16"

	"github.com/arloliu/sog4d/codebook"
	"github.com/arloliu/sog4d/endian"
	"github.com/arloliu/sog4d/errs"
	"github.com/arloliu/sog4d/format"
)

// engine is the byte order of centroid blobs.
var engine = endian.GetLittleEndianEngine()

// CentroidsSize returns the byte size of a centroid blob holding count
// entries of coeffs RGB triplets.
func CentroidsSize(count, coeffs int, typ format.CentroidsType) int {
	return count * coeffs * 3 * typ.ScalarBytes()
}

// EncodeCentroids serializes a rest codebook as little-endian f16 or f32
// components, entry-major: count x coeffs x 3.
//
// f16 conversion rounds to nearest even; values beyond the half range
// become ±Inf.
func EncodeCentroids(cb *codebook.Codebook, typ format.CentroidsType) ([]byte, error) {
	switch typ {
	case format.CentroidsF16:
		out := make([]byte, 0, len(cb.Entries)*2)
		for _, v := range cb.Entries {
			out = engine.AppendUint16(out, float16.Fromfloat32(v).Bits())
		}

		return out, nil
	case format.CentroidsF32:
		out := make([]byte, 0, len(cb.Entries)*4)
		for _, v := range cb.Entries {
			out = engine.AppendUint32(out, math.Float32bits(v))
		}

		return out, nil
	default:
		return nil, fmt.Errorf("%w: centroids type %v", errs.ErrInvalidMode, typ)
	}
}

// DecodeCentroids parses a centroid blob back into a codebook of dim
// components per entry.
func DecodeCentroids(data []byte, typ format.CentroidsType, dim int) (*codebook.Codebook, error) {
	width := typ.ScalarBytes()
	if dim <= 0 || len(data)%(dim*width) != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %d components of %d bytes",
			errs.ErrCentroidsSize, len(data), dim, width)
	}

	entries := make([]float32, len(data)/width)
	for i := range entries {
		if width == 2 {
			entries[i] = float16.Frombits(engine.Uint16(data[i*2:])).Float32()
		} else {
			entries[i] = math.Float32frombits(engine.Uint32(data[i*4:]))
		}
	}

	return &codebook.Codebook{Dim: dim, Entries: entries}, nil
}
