package bundle

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/arloliu/sog4d/delta"
	"github.com/arloliu/sog4d/errs"
	"github.com/arloliu/sog4d/format"
	"github.com/arloliu/sog4d/internal/hash"
	"github.com/arloliu/sog4d/internal/options"
	"github.com/arloliu/sog4d/section"
)

type validateConfig struct {
	logger *slog.Logger
}

// ValidateOption configures Validate.
type ValidateOption = options.Option[*validateConfig]

// WithLogger sets the logger Validate reports success on.
func WithLogger(logger *slog.Logger) ValidateOption {
	return options.NoError(func(c *validateConfig) {
		if logger != nil {
			c.logger = logger
		}
	})
}

// Report summarizes a bundle that passed validation.
type Report struct {
	Version    int
	SplatCount int
	FrameCount int
	Bands      int
	// Channels lists the rest channels with their labels encoding, e.g. "shN:delta-v1".
	Channels []string
	// Updates is the total number of delta update records replayed.
	Updates int
}

// Validate re-opens the bundle at path and checks every structural
// invariant a consumer relies on, without decoding attribute values.
//
// Checks, in order: manifest fields and enums, layout capacity, time
// mapping, every per-frame plane's presence and shape, every stored index
// against its codebook size, centroid blob sizes and checksums, delta
// segment coverage, delta header fields against their descriptors, and a
// full replay of every update block from its base snapshot.
//
// Parameters:
//   - path: Bundle archive path
//   - opts: Optional settings (WithLogger)
//
// Returns:
//   - *Report: Summary of the validated bundle
//   - error: The first failure, wrapping an errs sentinel
func Validate(path string, opts ...ValidateOption) (*Report, error) {
	cfg := &validateConfig{logger: slog.Default()}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	r, err := OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	v := &validator{r: r}
	report, err := v.run()
	if err != nil {
		return nil, err
	}

	cfg.logger.Info("validate ok",
		slog.String("bundle", path),
		slog.Int("version", report.Version),
		slog.Int("frames", report.FrameCount),
		slog.Int("splats", report.SplatCount),
		slog.Int("bands", report.Bands),
		slog.Any("channels", report.Channels),
	)

	return report, nil
}

type validator struct {
	r      *Reader
	m      *Manifest
	report Report
}

func invalid(msg string, args ...any) error {
	return fmt.Errorf("%w: "+msg, append([]any{errs.ErrInvalidManifest}, args...)...)
}

func (v *validator) run() (*Report, error) {
	m, err := v.r.ReadManifest()
	if err != nil {
		return nil, err
	}
	v.m = m

	steps := []func() error{
		v.checkHeader,
		v.checkTimeMapping,
		v.checkPosition,
		v.checkScale,
		v.checkRotation,
		v.checkSH0,
		v.checkRest,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}

	v.report.Version = m.Version
	v.report.SplatCount = m.SplatCount
	v.report.FrameCount = m.FrameCount
	v.report.Bands = m.Streams.SH.Bands

	return &v.report, nil
}

func (v *validator) checkHeader() error {
	m := v.m
	if m.Format != format.FormatTag {
		return invalid("format is %q, expected %q", m.Format, format.FormatTag)
	}
	if m.Version != format.VersionCombined && m.Version != format.VersionSplit {
		return invalid("version %d, expected 1 or 2", m.Version)
	}
	if m.SplatCount <= 0 || m.FrameCount <= 0 {
		return invalid("splatCount=%d frameCount=%d", m.SplatCount, m.FrameCount)
	}

	l := m.Layout
	if l.Type != format.LayoutRowMajor {
		return invalid("layout.type is %q, expected %q", l.Type, format.LayoutRowMajor)
	}
	if l.Width <= 0 || l.Height <= 0 {
		return invalid("layout size %dx%d", l.Width, l.Height)
	}
	if l.Width*l.Height < m.SplatCount {
		return invalid("layout %dx%d holds fewer than splatCount=%d texels", l.Width, l.Height, m.SplatCount)
	}

	return nil
}

func (v *validator) checkTimeMapping() error {
	tm := v.m.TimeMapping
	switch tm.Type {
	case "", format.TimeUniform:
		return nil
	case format.TimeExplicit:
		if err := CheckFrameTimes(tm.FrameTimesNormalized, v.m.FrameCount); err != nil {
			return invalid("timeMapping: %v", err)
		}

		return nil
	default:
		return invalid("timeMapping.type %q", tm.Type)
	}
}

// framePlanes reads the plane of every frame for template and checks its shape.
func (v *validator) framePlanes(field, template string, check func(frame int, p *Plane) error) error {
	for f := range v.m.FrameCount {
		name, err := ResolveFrame(template, f)
		if err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}

		p, err := v.r.ReadPlane(name)
		if err != nil {
			return fmt.Errorf("%s frame=%d: %w", field, f, err)
		}
		if err := p.CheckShape(v.m.Layout.Width, v.m.Layout.Height); err != nil {
			return fmt.Errorf("%s frame=%d %s: %w", field, f, name, err)
		}
		if check != nil {
			if err := check(f, p); err != nil {
				return err
			}
		}
	}

	return nil
}

// checkIndices verifies the first splatCount 16-bit values of p are below count.
func (v *validator) checkIndices(p *Plane, count int, field string) ([]uint16, error) {
	values, err := UnpackU16(p, v.m.SplatCount)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	for i, val := range values {
		if int(val) >= count {
			return nil, fmt.Errorf("%w: %s: splatId=%d value=%d maxExclusive=%d",
				errs.ErrIndexOutOfRange, field, i, val, count)
		}
	}

	return values, nil
}

func (v *validator) checkPosition() error {
	pos := v.m.Streams.Position
	if len(pos.RangeMin) != v.m.FrameCount || len(pos.RangeMax) != v.m.FrameCount {
		return invalid("streams.position ranges have %d/%d entries, expected %d",
			len(pos.RangeMin), len(pos.RangeMax), v.m.FrameCount)
	}
	if err := v.framePlanes("position_hi", pos.HiPath, nil); err != nil {
		return err
	}

	return v.framePlanes("position_lo", pos.LoPath, nil)
}

func (v *validator) checkScale() error {
	scale := v.m.Streams.Scale
	n := len(scale.Codebook)
	if n == 0 || n > format.MaxCodebookEntries {
		return invalid("streams.scale.codebook has %d entries, expected 1..%d", n, format.MaxCodebookEntries)
	}

	return v.framePlanes("scale_indices", scale.IndicesPath, func(f int, p *Plane) error {
		_, err := v.checkIndices(p, n, fmt.Sprintf("scale_indices frame=%d", f))
		return err
	})
}

func (v *validator) checkRotation() error {
	return v.framePlanes("rotation", v.m.Streams.Rotation.Path, nil)
}

func (v *validator) checkSH0() error {
	sh := v.m.Streams.SH
	if len(sh.SH0Codebook) != format.ScalarCodebookSize {
		return invalid("streams.sh.sh0Codebook has %d entries, expected %d",
			len(sh.SH0Codebook), format.ScalarCodebookSize)
	}
	if sh.Bands < 0 || sh.Bands > format.MaxBands {
		return invalid("streams.sh.bands %d, expected 0..%d", sh.Bands, format.MaxBands)
	}

	return v.framePlanes("sh0", sh.SH0Path, nil)
}

func (v *validator) checkRest() error {
	channels, err := v.m.RestChannels()
	if err != nil {
		return err
	}

	for _, c := range channels {
		if err := v.checkChannel(c); err != nil {
			return err
		}
	}

	return nil
}

func (v *validator) checkChannel(c RestChannel) error {
	if c.Count < 1 || c.Count > format.MaxCodebookEntries {
		return invalid("%s count %d, expected 1..%d", c.Tag, c.Count, format.MaxCodebookEntries)
	}

	typ, err := format.ParseCentroidsType(c.CentroidsType)
	if err != nil {
		return invalid("%s: %v", c.Tag, err)
	}

	blob, err := v.r.ReadFile(c.CentroidsPath)
	if err != nil {
		return fmt.Errorf("%s centroids: %w", c.Tag, err)
	}
	if want := CentroidsSize(c.Count, c.CoeffCount, typ); len(blob) != want {
		return fmt.Errorf("%w: %s: expected %d bytes, got %d", errs.ErrCentroidsSize, c.CentroidsPath, want, len(blob))
	}
	if c.CentroidsChecksum != "" {
		if got := hash.ChecksumHex(blob); got != c.CentroidsChecksum {
			return fmt.Errorf("%w: %s: manifest %s, computed %s",
				errs.ErrChecksumMismatch, c.CentroidsPath, c.CentroidsChecksum, got)
		}
	}

	enc, err := format.ParseLabelsEncoding(c.LabelsEncoding)
	if err != nil {
		return invalid("%s: %v", c.Tag, err)
	}
	v.report.Channels = append(v.report.Channels, c.Tag+":"+enc.String())

	if enc == format.LabelsFull {
		return v.framePlanes(c.Tag+"_labels", c.LabelsPath, func(f int, p *Plane) error {
			_, err := v.checkIndices(p, c.Count, fmt.Sprintf("%s_labels frame=%d", c.Tag, f))
			return err
		})
	}

	return v.checkDelta(c)
}

func (v *validator) checkDelta(c RestChannel) error {
	if len(c.DeltaSegments) == 0 {
		return invalid("%s has no delta segments", c.Tag)
	}
	if err := delta.CheckPartition(c.DeltaSegments, v.m.FrameCount); err != nil {
		return fmt.Errorf("delta-v1 %s: %w", c.Tag, err)
	}

	for i, seg := range c.DeltaSegments {
		if err := v.checkSegment(c, i, seg); err != nil {
			return fmt.Errorf("delta-v1 %s seg=%d: %w", c.Tag, i, err)
		}
	}

	return nil
}

func (v *validator) checkSegment(c RestChannel, i int, seg delta.Segment) error {
	p, err := v.r.ReadPlane(seg.BaseLabelsPath)
	if err != nil {
		return err
	}
	if err := p.CheckShape(v.m.Layout.Width, v.m.Layout.Height); err != nil {
		return fmt.Errorf("%s: %w", seg.BaseLabelsPath, err)
	}
	base, err := v.checkIndices(p, c.Count, fmt.Sprintf("baseLabels seg=%d", i))
	if err != nil {
		return err
	}

	stream, err := v.r.ReadFile(seg.DeltaPath)
	if err != nil {
		return err
	}

	dr, err := delta.NewReader(stream, base)
	if err != nil {
		return err
	}
	want := section.NewDeltaHeader(seg.StartFrame, seg.FrameCount, v.m.SplatCount, c.Count)
	if err := dr.Header().Match(want); err != nil {
		return err
	}

	for {
		_, err := dr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
	}
	v.report.Updates += dr.Updates()

	return nil
}
