package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/arloliu/sog4d"
	"github.com/arloliu/sog4d/config"
)

func packCmd() *cobra.Command {
	var (
		inputDir   string
		output     string
		configPath string
	)
	cfg := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Pack a directory of PLY frames into a bundle",
		Long: `Pack reads every frame twice: once to fit the codebooks and once to
write the per-frame planes. Frames are ordered by the number in their file
name (time_00001.ply, frame-2.ply), falling back to lexical order.

With --config, settings are read from a YAML file first; flags given on the
command line override the file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				if err := mergeConfigFile(cmd.Flags(), cfg, configPath); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res, err := sog4d.Pack(ctx, inputDir, output, cfg)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "[%s] wrote %s (version %d, %d frames, %d splats)\n",
				appName, res.Path, res.Manifest.Version, res.Manifest.FrameCount, res.Manifest.SplatCount)

			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&inputDir, "input-dir", "", "Directory holding the PLY frames")
	f.StringVar(&output, "output", "", "Bundle file to write")
	f.StringVar(&configPath, "config", "", "YAML config file")

	f.StringVar(&cfg.Input.Pattern, "pattern", cfg.Input.Pattern, "Glob selecting frame files, relative to --input-dir (** descends)")
	f.StringVar(&cfg.Input.FrameCache, "frame-cache", cfg.Input.FrameCache, "Keep decoded frames in memory between passes: none, zstd, s2, lz4")

	f.Uint64Var(&cfg.Encode.Seed, "seed", cfg.Encode.Seed, "Seed of every sampler and k-means fit")
	f.StringVar(&cfg.Encode.OpacityMode, "opacity-mode", cfg.Encode.OpacityMode, "Opacity decoding: auto, linear, sigmoid")
	f.StringVar(&cfg.Encode.ScaleMode, "scale-mode", cfg.Encode.ScaleMode, "Scale decoding: auto, linear, exp")
	f.IntVar(&cfg.Encode.KMeansIterations, "kmeans-iterations", cfg.Encode.KMeansIterations, "Lloyd iterations per k-means fit")
	f.IntVar(&cfg.Encode.Workers, "workers", cfg.Encode.Workers, "Goroutines per k-means fit, 0 for all CPUs")

	f.IntVar(&cfg.Scale.CodebookSize, "scale-codebook-size", cfg.Scale.CodebookSize, "Scale codebook entries (1..65535)")
	f.IntVar(&cfg.Scale.SampleCount, "scale-sample-count", cfg.Scale.SampleCount, "Scale samples drawn across all frames")

	f.StringVar(&cfg.SH0.Method, "sh0-codebook-method", cfg.SH0.Method, "Base color codebook method: quantile, kmeans")
	f.IntVar(&cfg.SH0.SampleCount, "sh0-sample-count", cfg.SH0.SampleCount, "Base color scalars drawn across all frames")

	f.StringVar(&cfg.SH.Bands, "sh-bands", cfg.SH.Bands, "Directional color bands: auto or 0..3 (0 drops rest coefficients)")
	f.BoolVar(&cfg.SH.SplitByBand, "sh-split-by-band", cfg.SH.SplitByBand, "One rest codebook per band (manifest version 2)")
	f.IntVar(&cfg.SH.Count, "shN-count", cfg.SH.Count, "Rest codebook entries (1..65535)")
	f.IntVar(&cfg.SH.Sh1Count, "sh1-count", cfg.SH.Sh1Count, "Band 1 codebook entries with --sh-split-by-band, 0 inherits --shN-count")
	f.IntVar(&cfg.SH.Sh2Count, "sh2-count", cfg.SH.Sh2Count, "Band 2 codebook entries with --sh-split-by-band, 0 inherits --shN-count")
	f.IntVar(&cfg.SH.Sh3Count, "sh3-count", cfg.SH.Sh3Count, "Band 3 codebook entries with --sh-split-by-band, 0 inherits --shN-count")
	f.StringVar(&cfg.SH.CentroidsType, "shN-centroids-type", cfg.SH.CentroidsType, "Rest centroid scalar type: f16, f32")
	f.IntVar(&cfg.SH.SampleCount, "shN-sample-count", cfg.SH.SampleCount, "Rest samples drawn across all frames")
	f.StringVar(&cfg.SH.LabelsEncoding, "shN-labels-encoding", cfg.SH.LabelsEncoding, "Rest labels: full, delta-v1")
	f.IntVar(&cfg.SH.DeltaSegmentLength, "delta-segment-length", cfg.SH.DeltaSegmentLength, "Frames per delta-v1 segment")

	f.IntVar(&cfg.Layout.Width, "layout-width", cfg.Layout.Width, "Plane width, 0 for auto")
	f.IntVar(&cfg.Layout.Height, "layout-height", cfg.Layout.Height, "Plane height, 0 for auto")

	f.StringVar(&cfg.Time.Type, "time-mapping", cfg.Time.Type, "Time mapping: uniform, explicit")
	f.StringVar(&cfg.Time.FrameTimes, "frame-times", cfg.Time.FrameTimes, "Explicit normalized times: comma list or file")

	f.StringVar(&cfg.Output.ZipCompression, "zip-compression", cfg.Output.ZipCompression, "Archive entries: stored, deflated, zstd")
	f.BoolVar(&cfg.Output.SelfCheck, "self-check", cfg.Output.SelfCheck, "Validate the bundle after writing it")
	f.StringVar(&cfg.Output.MetricsFile, "metrics-file", cfg.Output.MetricsFile, "Write run statistics in the Prometheus text format")

	_ = cmd.MarkFlagRequired("input-dir")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

// mergeConfigFile replaces the flag-bound cfg with the file at path and
// then re-applies every flag set on the command line.
func mergeConfigFile(flags *pflag.FlagSet, cfg *config.Config, path string) error {
	fileCfg, err := config.LoadFromFile(path)
	if err != nil {
		return err
	}

	explicit := map[string]string{}
	flags.Visit(func(f *pflag.Flag) {
		explicit[f.Name] = f.Value.String()
	})

	*cfg = *fileCfg

	for name, value := range explicit {
		if err := flags.Set(name, value); err != nil {
			return fmt.Errorf("re-apply --%s: %w", name, err)
		}
	}

	return nil
}
