package encoder

import (
	"math"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/arloliu/sog4d/format"
	"github.com/arloliu/sog4d/splat"
)

const (
	testSplats = 64
	testFrames = 5
)

// makeFrames builds a drifting synthetic sequence. Raw opacity is stored as
// logits and raw scale as logs, the usual layout of trained splat files.
// Rest coefficients change for a few points per frame so delta streams carry
// updates.
func makeFrames(frames, count, restCoeffs int) []*splat.Frame {
	rng := rand.New(rand.NewPCG(42, 7))

	base := splat.NewFrame(count, restCoeffs)
	for i := range count {
		for c := range 3 {
			base.Positions[i*3+c] = rng.Float32()*10 - 5
			base.DC[i*3+c] = rng.Float32()*2 - 1
			base.Scale[i*3+c] = -4 + rng.Float32()*3
		}
		base.Opacity[i] = rng.Float32()*8 - 4
		for c := range 4 {
			base.Rotation[i*4+c] = rng.Float32()*2 - 1
		}
	}
	for i := range base.Rest {
		base.Rest[i] = rng.Float32() - 0.5
	}

	out := make([]*splat.Frame, frames)
	for f := range frames {
		fr := splat.NewFrame(count, restCoeffs)
		copy(fr.DC, base.DC)
		copy(fr.Scale, base.Scale)
		copy(fr.Opacity, base.Opacity)
		copy(fr.Rotation, base.Rotation)
		copy(fr.Rest, base.Rest)
		for i, p := range base.Positions {
			fr.Positions[i] = p + float32(f)*0.25*float32(math.Sin(float64(i)))
		}
		if restCoeffs > 0 {
			for k := range 4 {
				i := (f*5 + k*11) % count
				row := fr.RestAt(i)
				for j := range row {
					row[j] = -row[j]
				}
			}
		}
		out[f] = fr
	}

	return out
}

// testOptions keeps codebooks and sample budgets small.
func testOptions(extra ...Option) []Option {
	opts := []Option{
		WithSeed(1),
		WithScaleCodebook(16, 2000),
		WithSH0Codebook(format.MethodQuantile, 4000),
		WithShNCount(8),
		WithShNSampleCount(2000),
		WithDeltaSegmentLength(2),
		WithKMeansIterations(4),
	}

	return append(opts, extra...)
}

func outputPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "out", "seq.sog4d")
}
