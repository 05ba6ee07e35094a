package encoder

import (
	"context"
	"log/slog"

	"github.com/arloliu/sog4d/codebook"
	"github.com/arloliu/sog4d/quant"
)

// pass1 records every frame's position range and draws the fitting samples.
//
// Each frame contributes a fixed budget of samples per codebook so a long
// sequence does not let any single frame dominate. Base color and rest
// samples are drawn by importance (opacity times volume); scale samples are
// drawn by opacity and pooled in log space.
func (s *Session) pass1(ctx context.Context) error {
	seed := s.cfg.Seed
	sh0Rng := codebook.NewRand(seed, "sh0Samples")
	scaleRng := codebook.NewRand(seed, "scaleSamples")
	restRng := codebook.NewRand(seed, "restSamples")

	sh0Budget := codebook.Budget(s.cfg.SH0SampleCount, s.frameCount, 3)
	scaleBudget := codebook.Budget(s.cfg.ScaleSampleCount, s.frameCount, 1)
	restBudget := codebook.Budget(s.cfg.ShNSampleCount, s.frameCount, 1)

	opacityWeights := make([]float64, s.splatCount)

	for fi := range s.frameCount {
		if err := ctx.Err(); err != nil {
			return err
		}

		f, err := s.frame(fi)
		if err != nil {
			return err
		}

		s.ranges[fi] = quant.PositionRange(f.Positions)

		opacity := quant.DecodeOpacity(f.Opacity, s.cfg.OpacityMode)
		scale := quant.DecodeScale(f.Scale, s.cfg.ScaleMode)
		importance := codebook.Importance(opacity, scale)

		for _, i := range codebook.WeightedChoice(sh0Rng, f.Count, sh0Budget, importance) {
			for c := range 3 {
				s.sh0Pool.Add(f.DC[i*3+c:i*3+c+1], importance[i])
			}
		}

		for i, o := range opacity {
			opacityWeights[i] = float64(o)
		}
		for _, i := range codebook.WeightedChoice(scaleRng, f.Count, scaleBudget, opacityWeights) {
			s.scalePool.Add(quant.LogScale(scale[i*3:i*3+3]), opacityWeights[i])
		}

		if len(s.channels) > 0 {
			picked := codebook.WeightedChoice(restRng, f.Count, restBudget, importance)
			for _, ch := range s.channels {
				from, to := ch.spec.from*3, ch.spec.to*3
				for _, i := range picked {
					ch.pool.Add(f.RestAt(i)[from:to], importance[i])
				}
			}
		}

		s.progress("pass1", fi)
	}

	s.warnNonFinite("sh0Codebook", s.sh0Pool)
	s.warnNonFinite("scaleCodebook", s.scalePool)
	for _, ch := range s.channels {
		s.warnNonFinite(ch.spec.tag+"_centroids", ch.pool)
	}

	return nil
}

func (s *Session) warnNonFinite(name string, pool *codebook.SamplePool) {
	if pool.NonFinite == 0 {
		return
	}
	s.logger.Warn("non-finite sample components replaced with 0",
		slog.String("codebook", name),
		slog.Int("samples", pool.NonFinite),
		slog.Int("pooled", pool.Len()))
}
