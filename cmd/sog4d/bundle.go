package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/arloliu/sog4d"
	"github.com/arloliu/sog4d/bundle"
)

func validateCmd() *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a bundle against every structural invariant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := sog4d.Validate(input, bundle.WithLogger(slog.Default()))
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "[%s] validate ok: version %d, %d frames, %d splats, bands %d, channels %v\n",
				appName, report.Version, report.FrameCount, report.SplatCount, report.Bands, report.Channels)

			return nil
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "Bundle to validate")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func normalizeMetaCmd() *cobra.Command {
	var (
		input    string
		output   string
		validate bool
	)

	cmd := &cobra.Command{
		Use:   "normalize-meta",
		Short: "Repair the manifest of a bundle written by an older tool",
		Long: `normalize-meta fixes a missing or mis-cased format tag and converts
position ranges and scale codebooks stored as [[x,y,z], ...] arrays to
{x,y,z} objects. The corrected meta.json is appended to the archive; other
entries are copied as they are.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []bundle.NormalizeOption{
				bundle.WithValidation(validate),
				bundle.WithNormalizeLogger(slog.Default()),
			}
			if output != "" {
				opts = append(opts, bundle.WithOutput(output))
			}

			res, err := sog4d.NormalizeMeta(input, opts...)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "[%s] normalize-meta ok: %s (%d changes)\n", appName, res.Path, len(res.Changes))

			return nil
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "Bundle to repair")
	cmd.Flags().StringVar(&output, "output", "", "Write the repaired bundle here instead of in place")
	cmd.Flags().BoolVar(&validate, "validate", false, "Validate the result")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}
