package encoder

import (
	"context"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arloliu/sog4d/bundle"
	"github.com/arloliu/sog4d/codebook"
	"github.com/arloliu/sog4d/palette"
)

// fit builds every codebook from the pass 1 samples. The fits are
// independent and run concurrently; each draws from its own named random
// stream, so the result does not depend on scheduling.
func (s *Session) fit(ctx context.Context) error {
	common := []codebook.KMeansOption{
		codebook.WithSeed(s.cfg.Seed),
		codebook.WithIterations(s.cfg.KMeansIterations),
		codebook.WithWorkers(s.cfg.Workers),
		codebook.WithLogger(s.logger),
	}
	vector := append(slices.Clip(common), codebook.WithMaxSamples(vectorFitSamples))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		start := time.Now()
		cb, err := codebook.BuildScalar(gctx, s.sh0Pool, s.cfg.SH0Method, common...)
		if err != nil {
			return fmt.Errorf("sh0 codebook: %w", err)
		}
		s.rec.ObserveFit("sh0", cb.Len(), time.Since(start))
		s.sh0 = cb

		return nil
	})

	g.Go(func() error {
		start := time.Now()
		cb, err := codebook.FitKMeans(gctx, "scaleCodebook(log)", s.scalePool, s.cfg.ScaleCodebookSize, vector...)
		if err != nil {
			return fmt.Errorf("scale codebook: %w", err)
		}
		s.rec.ObserveFit("scale", cb.Len(), time.Since(start))
		s.scaleLog = cb

		return nil
	})

	for _, ch := range s.channels {
		g.Go(func() error {
			start := time.Now()
			cb, err := codebook.FitKMeans(gctx, ch.spec.tag+"_centroids", ch.pool, ch.spec.count, vector...)
			if err != nil {
				return fmt.Errorf("%s codebook: %w", ch.spec.tag, err)
			}
			s.rec.ObserveFit(ch.spec.tag, cb.Len(), time.Since(start))
			ch.cb = cb

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	return s.prepareAssigners()
}

func (s *Session) prepareAssigners() error {
	var err error
	if s.sh0Assign, err = palette.NewAssigner(s.sh0); err != nil {
		return fmt.Errorf("sh0 codebook: %w", err)
	}
	if s.scaleAssign, err = palette.NewAssigner(s.scaleLog); err != nil {
		return fmt.Errorf("scale codebook: %w", err)
	}

	for _, ch := range s.channels {
		if ch.assigner, err = palette.NewAssigner(ch.cb); err != nil {
			return fmt.Errorf("%s codebook: %w", ch.spec.tag, err)
		}
		if ch.blob, err = bundle.EncodeCentroids(ch.cb, s.cfg.CentroidsType); err != nil {
			return fmt.Errorf("%s centroids: %w", ch.spec.tag, err)
		}
	}

	return nil
}
