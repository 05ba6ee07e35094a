package encoder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/arloliu/sog4d/bundle"
	"github.com/arloliu/sog4d/codebook"
	"github.com/arloliu/sog4d/delta"
	"github.com/arloliu/sog4d/errs"
	"github.com/arloliu/sog4d/format"
	"github.com/arloliu/sog4d/internal/metrics"
	"github.com/arloliu/sog4d/internal/options"
	"github.com/arloliu/sog4d/palette"
	"github.com/arloliu/sog4d/quant"
	"github.com/arloliu/sog4d/splat"
)

// progressMask logs progress every 8 frames.
const progressMask = 7

// Session is one encode run from a frame source to a bundle file.
//
// It owns every piece of state that lives for the run: the shape derived
// from the first frame, the per-frame position ranges and fitting samples of
// pass 1, the fitted codebooks and the per-channel delta writers of pass 2.
// A Session is not safe for concurrent use.
type Session struct {
	cfg    *Config
	src    splat.Source
	output string
	logger *slog.Logger
	rec    *metrics.Recorder

	splatCount int
	frameCount int
	restCoeffs int
	bands      int
	width      int
	height     int
	strategy   restStrategy

	ranges    []quant.Range
	sh0Pool   *codebook.SamplePool
	scalePool *codebook.SamplePool
	channels  []*channel

	sh0         *codebook.Codebook
	scaleLog    *codebook.Codebook
	sh0Assign   palette.Assigner
	scaleAssign palette.Assigner
}

// channel is the run state of one rest coefficient codebook.
type channel struct {
	spec     channelSpec
	pool     *codebook.SamplePool
	cb       *codebook.Codebook
	assigner palette.Assigner
	blob     []byte
	segs     []delta.Segment
	writer   *delta.Writer
	updates  int
}

// Result summarizes a finished run.
type Result struct {
	// Path is the written bundle.
	Path string
	// Manifest is the manifest stored in the bundle.
	Manifest *bundle.Manifest
	// Updates holds the number of delta update records per rest channel tag.
	Updates map[string]int
	// Entries and RawBytes count the archive entries and their uncompressed size.
	Entries  int
	RawBytes int64
	// Report is set when the self-check ran.
	Report *bundle.Report
}

// NewSession prepares an encode run of src into the bundle at output.
//
// Parameters:
//   - src: Frame source, at least one frame
//   - output: Bundle path, overwritten if it exists
//   - opts: Encode options
//
// Returns:
//   - *Session: A session ready to Run
//   - error: ErrInvalidInput, ErrInvalidBands or ErrInvalidMode for bad options
func NewSession(src splat.Source, output string, opts ...Option) (*Session, error) {
	cfg := DefaultConfig()
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if src == nil || src.Len() == 0 {
		return nil, fmt.Errorf("%w: no input frames", errs.ErrInvalidInput)
	}
	if output == "" {
		return nil, fmt.Errorf("%w: output path is empty", errs.ErrInvalidInput)
	}

	return &Session{
		cfg:    cfg,
		src:    src,
		output: output,
		logger: cfg.logger,
		rec:    cfg.metrics,
	}, nil
}

// Config returns the effective configuration of the session.
func (s *Session) Config() Config {
	return *s.cfg
}

// Run encodes every frame and writes the bundle.
//
// Frames are read twice: pass 1 collects position ranges and fitting
// samples, the codebooks are fitted concurrently, and pass 2 assigns every
// point, writes the planes and the delta streams. The bundle file is removed
// when the run fails after creating it.
//
// Returns:
//   - *Result: The written bundle and its statistics
//   - error: Input, fitting, I/O or self-check failure
func (s *Session) Run(ctx context.Context) (*Result, error) {
	if err := s.inspect(); err != nil {
		return nil, err
	}

	start := time.Now()
	if err := s.pass1(ctx); err != nil {
		return nil, err
	}
	s.rec.ObservePass("pass1", time.Since(start))

	start = time.Now()
	if err := s.fit(ctx); err != nil {
		return nil, err
	}
	s.rec.ObservePass("fit", time.Since(start))

	m, err := s.manifest()
	if err != nil {
		return nil, err
	}

	start = time.Now()
	res, err := s.pass2(ctx, m)
	if err != nil {
		return nil, err
	}
	s.rec.ObservePass("pack", time.Since(start))
	s.rec.SetBundle(res.Entries, res.RawBytes)

	if cs, ok := s.src.(interface {
		CacheStats() (int, int64, int64)
		LogCacheStats()
	}); ok {
		if frames, raw, compressed := cs.CacheStats(); frames > 0 {
			s.rec.SetFrameCache(raw, compressed)
			cs.LogCacheStats()
		}
	}

	s.logger.Info("pack ok",
		slog.String("bundle", res.Path),
		slog.Int("version", m.Version),
		slog.Int("frames", m.FrameCount),
		slog.Int("splats", m.SplatCount),
		slog.Int("entries", res.Entries),
		slog.Int64("rawBytes", res.RawBytes),
	)

	if s.cfg.SelfCheck {
		report, err := bundle.Validate(res.Path, bundle.WithLogger(s.logger))
		if err != nil {
			return nil, fmt.Errorf("self-check: %w", err)
		}
		res.Report = report
	}

	return res, nil
}

// inspect derives the run shape from the first frame.
func (s *Session) inspect() error {
	first, err := s.src.Frame(0)
	if err != nil {
		return fmt.Errorf("read %s: %w", s.src.Name(0), err)
	}
	if err := first.Validate(); err != nil {
		return fmt.Errorf("%s: %w", s.src.Name(0), err)
	}
	if first.Count == 0 {
		return fmt.Errorf("%w: %s has no points", errs.ErrInvalidInput, s.src.Name(0))
	}

	bands, err := first.Bands()
	if err != nil {
		return fmt.Errorf("%s: %w", s.src.Name(0), err)
	}

	switch forced := s.cfg.SHBands; {
	case forced == AutoBands:
	case forced == 0:
		if bands > 0 {
			s.logger.Warn("sh bands forced to 0, dropping rest coefficients",
				slog.Int("inputBands", bands),
				slog.Int("restCoeffs", first.RestCoeffs))
		}
		bands = 0
	case first.RestCoeffs == 0:
		return fmt.Errorf("%w: %d sh bands requested but the input has no f_rest_* fields", errs.ErrInvalidBands, forced)
	case forced != bands:
		return fmt.Errorf("%w: %d sh bands requested but the input has %d (%d rest coefficients)",
			errs.ErrInvalidBands, forced, bands, first.RestCoeffs)
	}

	s.splatCount = first.Count
	s.frameCount = s.src.Len()
	s.restCoeffs = first.RestCoeffs
	s.bands = bands
	s.strategy = newStrategy(s.cfg.SplitByBand, bands)

	s.width, s.height, err = bundle.AutoLayout(s.splatCount, s.cfg.LayoutWidth, s.cfg.LayoutHeight)
	if err != nil {
		return err
	}
	if s.cfg.FrameTimes != nil {
		if err := bundle.CheckFrameTimes(s.cfg.FrameTimes, s.frameCount); err != nil {
			return err
		}
	}

	s.ranges = make([]quant.Range, s.frameCount)
	s.sh0Pool = codebook.NewSamplePool(1)
	s.scalePool = codebook.NewSamplePool(3)
	s.channels = s.channels[:0]
	if bands > 0 {
		for _, spec := range s.strategy.channels(bands, s.cfg) {
			ch := &channel{spec: spec, pool: codebook.NewSamplePool(spec.dim())}
			if s.cfg.LabelsEncoding == format.LabelsDeltaV1 {
				ch.segs, err = delta.BuildSegments(s.frameCount, s.cfg.DeltaSegmentLength, spec.baseName, spec.deltaPrefix)
				if err != nil {
					return err
				}
			}
			s.channels = append(s.channels, ch)
		}
	}

	s.rec.SetSplats(s.splatCount)
	s.logger.Info("input",
		slog.Int("frames", s.frameCount),
		slog.Int("splats", s.splatCount),
		slog.Int("bands", s.bands),
		slog.Int("version", s.strategy.version()),
		slog.Int("width", s.width),
		slog.Int("height", s.height),
	)

	return nil
}

// frame reads frame i and checks it against the run shape.
func (s *Session) frame(i int) (*splat.Frame, error) {
	name := s.src.Name(i)
	f, err := s.src.Frame(i)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if f.Count != s.splatCount {
		return nil, fmt.Errorf("%w: frame %d (%s) has %d splats, expected %d",
			errs.ErrFrameMismatch, i, name, f.Count, s.splatCount)
	}
	if f.RestCoeffs != s.restCoeffs {
		return nil, fmt.Errorf("%w: frame %d (%s) has %d rest coefficients, expected %d",
			errs.ErrFrameMismatch, i, name, f.RestCoeffs, s.restCoeffs)
	}

	return f, nil
}

func (s *Session) progress(pass string, i int) {
	s.rec.FrameDone(pass)
	if i&progressMask == 0 || i == s.frameCount-1 {
		s.logger.Info(pass, slog.String("progress", fmt.Sprintf("%d/%d frames", i+1, s.frameCount)))
	}
}

// removeOutput deletes a partially written bundle.
func (s *Session) removeOutput() {
	if err := os.Remove(s.output); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("remove partial bundle", slog.String("bundle", s.output), slog.Any("error", err))
	}
}
