package encoder

import (
	"fmt"
	"log/slog"

	"github.com/arloliu/sog4d/errs"
	"github.com/arloliu/sog4d/format"
	"github.com/arloliu/sog4d/internal/metrics"
	"github.com/arloliu/sog4d/internal/options"
)

// Default encode parameters.
const (
	DefaultScaleCodebookSize  = 4096
	DefaultScaleSampleCount   = 200_000
	DefaultSH0SampleCount     = 1_000_000
	DefaultShNCount           = 8192
	DefaultShNSampleCount     = 200_000
	DefaultDeltaSegmentLength = 50

	// AutoBands derives the band count from the rest coefficients of the first frame.
	AutoBands = -1

	// vectorFitSamples caps the resampled set of the scale and rest fits.
	vectorFitSamples = 200_000
)

// Config holds the parameters of one encode run.
//
// The zero value is not usable; start from DefaultConfig and apply options.
type Config struct {
	Seed uint64

	OpacityMode format.OpacityMode
	ScaleMode   format.ScaleMode

	ScaleCodebookSize int
	ScaleSampleCount  int

	SH0Method      format.CodebookMethod
	SH0SampleCount int

	// SHBands forces the band count; AutoBands derives it from the input.
	SHBands     int
	SplitByBand bool
	ShNCount    int
	// BandCounts overrides the entry count of sh1..sh3 in split mode; 0 inherits ShNCount.
	BandCounts     [format.MaxBands]int
	CentroidsType  format.CentroidsType
	ShNSampleCount int
	LabelsEncoding format.LabelsEncoding

	DeltaSegmentLength int

	// LayoutWidth and LayoutHeight of 0 are derived from the point count.
	LayoutWidth  int
	LayoutHeight int

	// FrameTimes switches the time mapping to explicit when non-nil.
	FrameTimes []float64

	ZipCompression format.ZipCompression

	KMeansIterations int
	Workers          int

	// SelfCheck validates the bundle after writing it.
	SelfCheck bool

	logger  *slog.Logger
	metrics *metrics.Recorder
}

// DefaultConfig returns the default encode parameters.
func DefaultConfig() *Config {
	return &Config{
		OpacityMode:        format.OpacityAuto,
		ScaleMode:          format.ScaleExp,
		ScaleCodebookSize:  DefaultScaleCodebookSize,
		ScaleSampleCount:   DefaultScaleSampleCount,
		SH0Method:          format.MethodQuantile,
		SH0SampleCount:     DefaultSH0SampleCount,
		SHBands:            AutoBands,
		ShNCount:           DefaultShNCount,
		CentroidsType:      format.CentroidsF16,
		ShNSampleCount:     DefaultShNSampleCount,
		LabelsEncoding:     format.LabelsDeltaV1,
		DeltaSegmentLength: DefaultDeltaSegmentLength,
		ZipCompression:     format.ZipStored,
		KMeansIterations:   16,
		logger:             slog.Default(),
	}
}

// Logger returns the configured logger.
func (c *Config) Logger() *slog.Logger {
	return c.logger
}

// BandCount returns the requested entry count of band b (1-based) in split mode.
func (c *Config) BandCount(b int) int {
	if n := c.BandCounts[b-1]; n > 0 {
		return n
	}

	return c.ShNCount
}

// Validate checks every parameter range.
func (c *Config) Validate() error {
	entries := func(name string, n int) error {
		if n < 1 || n > format.MaxCodebookEntries {
			return fmt.Errorf("%w: %s must be in 1..%d, got %d", errs.ErrInvalidInput, name, format.MaxCodebookEntries, n)
		}

		return nil
	}
	positive := func(name string, n int) error {
		if n <= 0 {
			return fmt.Errorf("%w: %s must be > 0, got %d", errs.ErrInvalidInput, name, n)
		}

		return nil
	}

	checks := []error{
		entries("scale codebook size", c.ScaleCodebookSize),
		entries("shN count", c.ShNCount),
		positive("scale sample count", c.ScaleSampleCount),
		positive("sh0 sample count", c.SH0SampleCount),
		positive("shN sample count", c.ShNSampleCount),
		positive("delta segment length", c.DeltaSegmentLength),
		positive("k-means iterations", c.KMeansIterations),
	}
	for b := 1; b <= format.MaxBands; b++ {
		if c.BandCounts[b-1] != 0 {
			checks = append(checks, entries(fmt.Sprintf("sh%d count", b), c.BandCounts[b-1]))
		}
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}

	if c.SHBands < AutoBands || c.SHBands > format.MaxBands {
		return fmt.Errorf("%w: sh bands must be 0..%d, got %d", errs.ErrInvalidBands, format.MaxBands, c.SHBands)
	}
	if c.LayoutWidth < 0 || c.LayoutHeight < 0 {
		return fmt.Errorf("%w: layout %dx%d", errs.ErrInvalidInput, c.LayoutWidth, c.LayoutHeight)
	}

	switch {
	case c.OpacityMode.String() == "unknown":
		return fmt.Errorf("%w: opacity mode %d", errs.ErrInvalidMode, c.OpacityMode)
	case c.ScaleMode.String() == "unknown":
		return fmt.Errorf("%w: scale mode %d", errs.ErrInvalidMode, c.ScaleMode)
	case c.SH0Method.String() == "unknown":
		return fmt.Errorf("%w: sh0 codebook method %d", errs.ErrInvalidMode, c.SH0Method)
	case c.CentroidsType.String() == "unknown":
		return fmt.Errorf("%w: centroids type %d", errs.ErrInvalidMode, c.CentroidsType)
	case c.LabelsEncoding.String() == "unknown":
		return fmt.Errorf("%w: labels encoding %d", errs.ErrInvalidMode, c.LabelsEncoding)
	case c.ZipCompression.String() == "unknown":
		return fmt.Errorf("%w: zip compression %d", errs.ErrInvalidMode, c.ZipCompression)
	}

	return nil
}

// Option configures an encode run.
type Option = options.Option[*Config]

// WithSeed sets the seed of every sampler and k-means fit.
func WithSeed(seed uint64) Option {
	return options.NoError(func(c *Config) {
		c.Seed = seed
	})
}

// WithOpacityMode sets how raw opacity values are decoded.
func WithOpacityMode(mode format.OpacityMode) Option {
	return options.NoError(func(c *Config) {
		c.OpacityMode = mode
	})
}

// WithScaleMode sets how raw scale values are decoded.
func WithScaleMode(mode format.ScaleMode) Option {
	return options.NoError(func(c *Config) {
		c.ScaleMode = mode
	})
}

// WithScaleCodebook sets the scale codebook size and its total sample budget.
func WithScaleCodebook(size, samples int) Option {
	return options.NoError(func(c *Config) {
		c.ScaleCodebookSize = size
		c.ScaleSampleCount = samples
	})
}

// WithSH0Codebook sets the base color codebook method and its total scalar sample budget.
func WithSH0Codebook(method format.CodebookMethod, samples int) Option {
	return options.NoError(func(c *Config) {
		c.SH0Method = method
		c.SH0SampleCount = samples
	})
}

// WithSHBands forces the directional color band count (0..3).
//
// Forcing 0 on input with rest coefficients drops them; forcing a positive
// count that disagrees with the input fails the run.
func WithSHBands(bands int) Option {
	return options.New(func(c *Config) error {
		if bands < 0 || bands > format.MaxBands {
			return fmt.Errorf("%w: sh bands must be 0..%d, got %d", errs.ErrInvalidBands, format.MaxBands, bands)
		}
		c.SHBands = bands

		return nil
	})
}

// WithSplitByBand writes one rest codebook per band (manifest version 2).
func WithSplitByBand(enabled bool) Option {
	return options.NoError(func(c *Config) {
		c.SplitByBand = enabled
	})
}

// WithShNCount sets the rest codebook size, and the default size of every band in split mode.
func WithShNCount(n int) Option {
	return options.NoError(func(c *Config) {
		c.ShNCount = n
	})
}

// WithBandCount sets the codebook size of band b (1..3) in split mode.
func WithBandCount(b, n int) Option {
	return options.New(func(c *Config) error {
		if b < 1 || b > format.MaxBands {
			return fmt.Errorf("%w: band %d", errs.ErrInvalidBands, b)
		}
		c.BandCounts[b-1] = n

		return nil
	})
}

// WithCentroidsType sets the scalar type of the rest codebook blobs.
func WithCentroidsType(typ format.CentroidsType) Option {
	return options.NoError(func(c *Config) {
		c.CentroidsType = typ
	})
}

// WithShNSampleCount sets the total sample budget of the rest codebook fits.
func WithShNSampleCount(n int) Option {
	return options.NoError(func(c *Config) {
		c.ShNSampleCount = n
	})
}

// WithLabelsEncoding selects full label planes or delta-v1 streams.
func WithLabelsEncoding(enc format.LabelsEncoding) Option {
	return options.NoError(func(c *Config) {
		c.LabelsEncoding = enc
	})
}

// WithDeltaSegmentLength sets the number of frames per delta segment.
func WithDeltaSegmentLength(n int) Option {
	return options.NoError(func(c *Config) {
		c.DeltaSegmentLength = n
	})
}

// WithLayout sets the plane size; 0 derives a side from the point count.
func WithLayout(width, height int) Option {
	return options.NoError(func(c *Config) {
		c.LayoutWidth = width
		c.LayoutHeight = height
	})
}

// WithExplicitTimes records a normalized time per frame in the manifest.
// The count is checked against the frame count when the run starts.
func WithExplicitTimes(times []float64) Option {
	return options.New(func(c *Config) error {
		if times == nil {
			return fmt.Errorf("%w: explicit time mapping needs frame times", errs.ErrInvalidInput)
		}
		c.FrameTimes = append([]float64{}, times...)

		return nil
	})
}

// WithZipCompression sets the archive entry compression.
func WithZipCompression(z format.ZipCompression) Option {
	return options.NoError(func(c *Config) {
		c.ZipCompression = z
	})
}

// WithKMeansIterations sets the Lloyd iteration cap of every k-means fit.
func WithKMeansIterations(n int) Option {
	return options.NoError(func(c *Config) {
		c.KMeansIterations = n
	})
}

// WithWorkers limits the goroutines of each k-means assignment step; 0 means GOMAXPROCS.
func WithWorkers(n int) Option {
	return options.NoError(func(c *Config) {
		c.Workers = n
	})
}

// WithSelfCheck validates the bundle after it is written.
func WithSelfCheck(enabled bool) Option {
	return options.NoError(func(c *Config) {
		c.SelfCheck = enabled
	})
}

// WithLogger sets the logger for progress and warnings.
func WithLogger(logger *slog.Logger) Option {
	return options.NoError(func(c *Config) {
		if logger != nil {
			c.logger = logger
		}
	})
}

// WithMetrics records run statistics in rec.
func WithMetrics(rec *metrics.Recorder) Option {
	return options.NoError(func(c *Config) {
		c.metrics = rec
	})
}
