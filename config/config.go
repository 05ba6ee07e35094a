// Package config loads pack settings from YAML files.
//
// A file only needs the keys it changes; everything else keeps the value of
// DefaultConfig. The CLI applies explicitly set flags on top of the file.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/arloliu/sog4d/bundle"
	"github.com/arloliu/sog4d/encoder"
	"github.com/arloliu/sog4d/errs"
	"github.com/arloliu/sog4d/format"
	"github.com/arloliu/sog4d/internal/options"
	"github.com/arloliu/sog4d/splat"
)

// Config is the complete pack configuration.
type Config struct {
	Input  InputConfig  `yaml:"input"`
	Encode EncodeConfig `yaml:"encode"`
	Scale  ScaleConfig  `yaml:"scale"`
	SH0    SH0Config    `yaml:"sh0"`
	SH     SHConfig     `yaml:"sh"`
	Layout LayoutConfig `yaml:"layout"`
	Time   TimeConfig   `yaml:"timeMapping"`
	Output OutputConfig `yaml:"output"`
}

// InputConfig selects and caches the frame files.
type InputConfig struct {
	// Pattern is a doublestar glob relative to the input directory.
	Pattern string `yaml:"pattern"`
	// FrameCache is none, zstd, s2 or lz4.
	FrameCache string `yaml:"frameCache"`
}

// EncodeConfig holds run-wide parameters.
type EncodeConfig struct {
	Seed             uint64 `yaml:"seed"`
	OpacityMode      string `yaml:"opacityMode"`
	ScaleMode        string `yaml:"scaleMode"`
	KMeansIterations int    `yaml:"kmeansIterations"`
	// Workers limits k-means goroutines, 0 uses every CPU.
	Workers int `yaml:"workers"`
}

// ScaleConfig configures the scale codebook.
type ScaleConfig struct {
	CodebookSize int `yaml:"codebookSize"`
	SampleCount  int `yaml:"sampleCount"`
}

// SH0Config configures the base color codebook.
type SH0Config struct {
	// Method is quantile or kmeans.
	Method      string `yaml:"method"`
	SampleCount int    `yaml:"sampleCount"`
}

// SHConfig configures the rest coefficient codebooks and their labels.
type SHConfig struct {
	// Bands is auto or 0..3.
	Bands       string `yaml:"bands"`
	SplitByBand bool   `yaml:"splitByBand"`
	Count       int    `yaml:"count"`
	// Sh1Count..Sh3Count override Count per band in split mode; 0 inherits it.
	Sh1Count           int    `yaml:"sh1Count"`
	Sh2Count           int    `yaml:"sh2Count"`
	Sh3Count           int    `yaml:"sh3Count"`
	CentroidsType      string `yaml:"centroidsType"`
	SampleCount        int    `yaml:"sampleCount"`
	LabelsEncoding     string `yaml:"labelsEncoding"`
	DeltaSegmentLength int    `yaml:"deltaSegmentLength"`
}

// LayoutConfig sets the plane size; zero values are derived from the point count.
type LayoutConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// TimeConfig configures the time mapping.
type TimeConfig struct {
	// Type is uniform or explicit.
	Type string `yaml:"type"`
	// FrameTimes is a comma separated list or a file with one time per line.
	FrameTimes string `yaml:"frameTimes"`
}

// OutputConfig configures the bundle file and run reporting.
type OutputConfig struct {
	// ZipCompression is stored, deflated or zstd.
	ZipCompression string `yaml:"zipCompression"`
	SelfCheck      bool   `yaml:"selfCheck"`
	// MetricsFile receives encode statistics in the Prometheus text format.
	MetricsFile string `yaml:"metricsFile"`
}

// DefaultConfig returns a Config with the default pack parameters.
func DefaultConfig() *Config {
	return &Config{
		Input: InputConfig{
			Pattern:    splat.DefaultPattern,
			FrameCache: "none",
		},
		Encode: EncodeConfig{
			OpacityMode:      "auto",
			ScaleMode:        "exp",
			KMeansIterations: 16,
		},
		Scale: ScaleConfig{
			CodebookSize: encoder.DefaultScaleCodebookSize,
			SampleCount:  encoder.DefaultScaleSampleCount,
		},
		SH0: SH0Config{
			Method:      "quantile",
			SampleCount: encoder.DefaultSH0SampleCount,
		},
		SH: SHConfig{
			Bands:              "auto",
			Count:              encoder.DefaultShNCount,
			CentroidsType:      "f16",
			SampleCount:        encoder.DefaultShNSampleCount,
			LabelsEncoding:     "delta-v1",
			DeltaSegmentLength: encoder.DefaultDeltaSegmentLength,
		},
		Time: TimeConfig{
			Type: format.TimeUniform,
		},
		Output: OutputConfig{
			ZipCompression: "stored",
		},
	}
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
// Unknown keys are rejected.
func LoadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	defer f.Close()

	cfg := DefaultConfig()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: failed to parse config file %s: %v", errs.ErrInvalidInput, path, err)
	}

	return cfg, nil
}

// Validate checks every enum spelling and numeric range.
func (c *Config) Validate() error {
	if _, err := c.SourceOptions(); err != nil {
		return err
	}

	opts, err := c.EncoderOptions(-1)
	if err != nil {
		return err
	}
	enc := encoder.DefaultConfig()
	if err := options.Apply(enc, opts...); err != nil {
		return err
	}

	return enc.Validate()
}

// SHBands parses the bands setting; encoder.AutoBands means auto.
func (c *Config) SHBands() (int, error) {
	s := strings.ToLower(strings.TrimSpace(c.SH.Bands))
	if s == "" || s == "auto" {
		return encoder.AutoBands, nil
	}

	b, err := strconv.Atoi(s)
	if err != nil || b < 0 || b > format.MaxBands {
		return 0, fmt.Errorf("%w: sh bands must be auto or 0..%d, got %q", errs.ErrInvalidBands, format.MaxBands, c.SH.Bands)
	}

	return b, nil
}

// EncoderOptions converts the configuration to encoder options.
//
// frameCount is needed to check explicit frame times; a negative count
// skips loading them, which is how Validate checks a file before the input
// is listed.
func (c *Config) EncoderOptions(frameCount int) ([]encoder.Option, error) {
	opts := c.encodeOptions()

	parsed := []struct {
		field string
		parse func() (encoder.Option, error)
	}{
		{"encode.opacityMode", func() (encoder.Option, error) {
			m, err := format.ParseOpacityMode(c.Encode.OpacityMode)
			return encoder.WithOpacityMode(m), err
		}},
		{"encode.scaleMode", func() (encoder.Option, error) {
			m, err := format.ParseScaleMode(c.Encode.ScaleMode)
			return encoder.WithScaleMode(m), err
		}},
		{"sh0.method", func() (encoder.Option, error) {
			m, err := format.ParseCodebookMethod(c.SH0.Method)
			return encoder.WithSH0Codebook(m, c.SH0.SampleCount), err
		}},
		{"sh.centroidsType", func() (encoder.Option, error) {
			t, err := format.ParseCentroidsType(c.SH.CentroidsType)
			return encoder.WithCentroidsType(t), err
		}},
		{"sh.labelsEncoding", func() (encoder.Option, error) {
			if strings.TrimSpace(c.SH.LabelsEncoding) == "" {
				return nil, errors.New("labels encoding is empty")
			}
			e, err := format.ParseLabelsEncoding(c.SH.LabelsEncoding)
			return encoder.WithLabelsEncoding(e), err
		}},
		{"output.zipCompression", func() (encoder.Option, error) {
			z, err := format.ParseZipCompression(c.Output.ZipCompression)
			return encoder.WithZipCompression(z), err
		}},
	}
	for _, p := range parsed {
		opt, err := p.parse()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", errs.ErrInvalidMode, p.field, err)
		}
		opts = append(opts, opt)
	}

	bands, err := c.SHBands()
	if err != nil {
		return nil, err
	}
	if bands != encoder.AutoBands {
		opts = append(opts, encoder.WithSHBands(bands))
	}

	switch strings.ToLower(strings.TrimSpace(c.Time.Type)) {
	case "", format.TimeUniform:
	case format.TimeExplicit:
		if strings.TrimSpace(c.Time.FrameTimes) == "" {
			return nil, fmt.Errorf("%w: explicit time mapping needs frameTimes", errs.ErrInvalidInput)
		}
		if frameCount >= 0 {
			times, err := bundle.ParseExplicitTimes(c.Time.FrameTimes, frameCount)
			if err != nil {
				return nil, err
			}
			opts = append(opts, encoder.WithExplicitTimes(times))
		}
	default:
		return nil, fmt.Errorf("%w: timeMapping.type %q", errs.ErrInvalidMode, c.Time.Type)
	}

	return opts, nil
}

// encodeOptions returns the options that need no parsing.
func (c *Config) encodeOptions() []encoder.Option {
	opts := []encoder.Option{
		encoder.WithSeed(c.Encode.Seed),
		encoder.WithKMeansIterations(c.Encode.KMeansIterations),
		encoder.WithWorkers(c.Encode.Workers),
		encoder.WithScaleCodebook(c.Scale.CodebookSize, c.Scale.SampleCount),
		encoder.WithSplitByBand(c.SH.SplitByBand),
		encoder.WithShNCount(c.SH.Count),
		encoder.WithShNSampleCount(c.SH.SampleCount),
		encoder.WithDeltaSegmentLength(c.SH.DeltaSegmentLength),
		encoder.WithLayout(c.Layout.Width, c.Layout.Height),
		encoder.WithSelfCheck(c.Output.SelfCheck),
	}
	for b, n := range []int{c.SH.Sh1Count, c.SH.Sh2Count, c.SH.Sh3Count} {
		opts = append(opts, encoder.WithBandCount(b+1, n))
	}

	return opts
}

// SourceOptions converts the input settings to frame source options.
func (c *Config) SourceOptions() ([]splat.DirOption, error) {
	if !doublestar.ValidatePattern(c.Input.Pattern) {
		return nil, fmt.Errorf("%w: input.pattern %q", errs.ErrInvalidInput, c.Input.Pattern)
	}
	cache, err := format.ParseCompressionType(c.Input.FrameCache)
	if err != nil {
		return nil, fmt.Errorf("%w: input.frameCache: %v", errs.ErrInvalidMode, err)
	}

	return []splat.DirOption{
		splat.WithPattern(c.Input.Pattern),
		splat.WithFrameCache(cache),
	}, nil
}
