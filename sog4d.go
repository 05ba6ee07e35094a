// Package sog4d packs sequences of Gaussian splat frames into compact,
// self-describing bundles and validates them.
//
// A bundle replaces per-frame float attributes with small codebooks plus
// per-frame index planes. Rest coefficient labels, which change little from
// frame to frame, are stored as one base snapshot per segment followed by
// sparse update streams.
//
// # Core Features
//
//   - Two-pass encoding: position ranges and weighted samples first, then per-point assignment
//   - Codebooks fitted once per sequence: base color (256 scalars), scale and rest coefficients
//   - Combined (version 1) or per-band (version 2) rest coefficient codebooks
//   - Full label planes or delta-v1 update streams
//   - Zip container with stored, deflate or zstd entries and a JSON manifest
//   - A validator that checks every structural invariant, including delta replay
//   - Optional compressed frame cache (zstd, S2, LZ4) to skip the second PLY parse
//
// # Basic Usage
//
// Packing a directory of PLY frames:
//
//	cfg := config.DefaultConfig()
//	cfg.SH.SplitByBand = true
//	res, err := sog4d.Pack(ctx, "frames/", "seq.sog4d", cfg)
//
// Validating and repairing bundles:
//
//	report, err := sog4d.Validate("seq.sog4d")
//	result, err := sog4d.NormalizeMeta("legacy.sog4d", bundle.WithValidation(true))
//
// # Package Structure
//
// This package provides convenient top-level wrappers. For fine-grained
// control use the encoder package with any splat.Source, and the bundle
// package to read or write archives directly.
package sog4d

import (
	"context"
	"log/slog"

	"github.com/arloliu/sog4d/bundle"
	"github.com/arloliu/sog4d/config"
	"github.com/arloliu/sog4d/encoder"
	"github.com/arloliu/sog4d/internal/metrics"
	"github.com/arloliu/sog4d/splat"
)

// Pack encodes the PLY frames of inputDir into the bundle at output.
//
// Frames are selected with cfg.Input.Pattern and ordered by their numeric
// suffix. When cfg.Output.MetricsFile is set, run statistics are written
// there in the Prometheus text format after a successful run.
//
// Parameters:
//   - ctx: Cancels the run between frames and inside codebook fits
//   - inputDir: Directory holding the frames
//   - output: Bundle path
//   - cfg: Pack configuration, nil for config.DefaultConfig()
//   - opts: Extra encoder options, applied after cfg (e.g. encoder.WithLogger)
//
// Returns:
//   - *encoder.Result: The written bundle and its statistics
//   - error: Configuration, input, encoding or I/O failure
func Pack(ctx context.Context, inputDir, output string, cfg *config.Config, opts ...encoder.Option) (*encoder.Result, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	srcOpts, err := cfg.SourceOptions()
	if err != nil {
		return nil, err
	}
	src, err := splat.NewDirSource(inputDir, append(srcOpts, splat.WithSourceLogger(slog.Default()))...)
	if err != nil {
		return nil, err
	}

	encOpts, err := cfg.EncoderOptions(src.Len())
	if err != nil {
		return nil, err
	}

	var rec *metrics.Recorder
	if cfg.Output.MetricsFile != "" {
		rec = metrics.NewRecorder()
		encOpts = append(encOpts, encoder.WithMetrics(rec))
	}
	encOpts = append(encOpts, opts...)

	sess, err := encoder.NewSession(src, output, encOpts...)
	if err != nil {
		return nil, err
	}
	res, err := sess.Run(ctx)
	if err != nil {
		return nil, err
	}

	if rec != nil {
		if err := rec.WriteTextfile(cfg.Output.MetricsFile); err != nil {
			return nil, err
		}
	}

	return res, nil
}

// Validate checks the bundle at path. See bundle.Validate.
func Validate(path string, opts ...bundle.ValidateOption) (*bundle.Report, error) {
	return bundle.Validate(path, opts...)
}

// NormalizeMeta repairs the manifest of the bundle at path. See bundle.NormalizeMeta.
func NormalizeMeta(path string, opts ...bundle.NormalizeOption) (*bundle.NormalizeResult, error) {
	return bundle.NormalizeMeta(path, opts...)
}
