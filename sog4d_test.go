package sog4d

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/sog4d/bundle"
	"github.com/arloliu/sog4d/config"
	"github.com/arloliu/sog4d/delta"
	"github.com/arloliu/sog4d/errs"
	"github.com/arloliu/sog4d/format"
	"github.com/arloliu/sog4d/splat"
)

// writeSequence writes frames time_00000.ply .. into a new directory, in
// reverse so listing order differs from frame order.
func writeSequence(t *testing.T, frames, count, restCoeffs int) string {
	t.Helper()

	dir := t.TempDir()
	rng := rand.New(rand.NewPCG(3, 9))
	f := splat.NewFrame(count, restCoeffs)
	for i := range count {
		for c := range 3 {
			f.DC[i*3+c] = rng.Float32() - 0.5
			f.Scale[i*3+c] = -3 + rng.Float32()
		}
		f.Opacity[i] = rng.Float32()*6 - 3
		f.Rotation[i*4] = 1
	}
	for i := range f.Rest {
		f.Rest[i] = rng.Float32() - 0.5
	}

	for fi := frames - 1; fi >= 0; fi-- {
		for i := range count {
			f.Positions[i*3] = float32(i) + float32(fi)*0.1
			f.Positions[i*3+1] = float32(fi)
			f.Positions[i*3+2] = -float32(i)
		}
		if restCoeffs > 0 {
			row := f.RestAt(fi % count)
			row[0] += 1
		}
		require.NoError(t, splat.WritePLYFile(filepath.Join(dir, fmt.Sprintf("time_%05d.ply", fi)), f))
	}

	return dir
}

func smallConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Encode.Seed = 5
	cfg.Encode.KMeansIterations = 4
	cfg.Scale.CodebookSize = 8
	cfg.Scale.SampleCount = 500
	cfg.SH0.SampleCount = 1000
	cfg.SH.Count = 6
	cfg.SH.SampleCount = 500
	cfg.SH.DeltaSegmentLength = 3

	return cfg
}

func TestPack_EndToEnd(t *testing.T) {
	const frames, splats = 7, 40

	dir := writeSequence(t, frames, splats, 8)
	out := filepath.Join(t.TempDir(), "seq.sog4d")

	cfg := smallConfig()
	cfg.Input.FrameCache = "lz4"
	cfg.Output.ZipCompression = "zstd"
	cfg.Output.MetricsFile = filepath.Join(t.TempDir(), "sog4d.prom")

	res, err := Pack(context.Background(), dir, out, cfg)
	require.NoError(t, err)
	require.Equal(t, 2, res.Manifest.Streams.SH.Bands)
	require.Len(t, res.Manifest.Streams.SH.ShNDeltaSegments, 3)

	// Frame order follows the numeric suffix: frame 3 sits at y = 3.
	require.Equal(t, float32(3), res.Manifest.Streams.Position.RangeMin[3].Y)

	report, err := Validate(out)
	require.NoError(t, err)
	require.Equal(t, frames, report.FrameCount)
	require.Equal(t, splats, report.SplatCount)
	require.Equal(t, []string{"shN:delta-v1"}, report.Channels)

	r, err := bundle.OpenReader(out)
	require.NoError(t, err)
	defer r.Close()

	var replayed int
	for _, seg := range res.Manifest.Streams.SH.ShNDeltaSegments {
		p, err := r.ReadPlane(seg.BaseLabelsPath)
		require.NoError(t, err)
		base, err := bundle.UnpackU16(p, splats)
		require.NoError(t, err)
		stream, err := r.ReadFile(seg.DeltaPath)
		require.NoError(t, err)
		labels, err := delta.Replay(stream, base)
		require.NoError(t, err)
		replayed += len(labels)
	}
	require.Equal(t, frames, replayed)

	prom, err := os.ReadFile(cfg.Output.MetricsFile)
	require.NoError(t, err)
	require.Contains(t, string(prom), `sog4d_frames_processed_total{pass="pack"} 7`)
	require.Contains(t, string(prom), `sog4d_frame_cache_bytes{kind="raw"}`)

	norm, err := NormalizeMeta(out, bundle.WithValidation(true))
	require.NoError(t, err)
	require.Empty(t, norm.Changes)
	require.Equal(t, report, norm.Report)
}

func TestPack_SplitFullLabels(t *testing.T) {
	dir := writeSequence(t, 4, 30, 15)
	out := filepath.Join(t.TempDir(), "split.sog4d")

	cfg := smallConfig()
	cfg.SH.SplitByBand = true
	cfg.SH.LabelsEncoding = "full"
	cfg.SH.CentroidsType = "f32"
	cfg.Output.SelfCheck = true

	res, err := Pack(context.Background(), dir, out, cfg)
	require.NoError(t, err)
	require.Equal(t, format.VersionSplit, res.Report.Version)
	require.Equal(t, []string{"sh1:full", "sh2:full", "sh3:full"}, res.Report.Channels)
	require.Equal(t, "frames/{frame}/sh3_labels.png", res.Manifest.Streams.SH.SH3.LabelsPath)
}

func TestPack_Errors(t *testing.T) {
	t.Run("missing input directory", func(t *testing.T) {
		_, err := Pack(context.Background(), filepath.Join(t.TempDir(), "absent"), "x.sog4d", nil)
		require.ErrorIs(t, err, errs.ErrInvalidInput)
	})

	t.Run("no frames", func(t *testing.T) {
		_, err := Pack(context.Background(), t.TempDir(), "x.sog4d", nil)
		require.ErrorIs(t, err, errs.ErrInvalidInput)
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := smallConfig()
		cfg.Encode.OpacityMode = "cubic"
		_, err := Pack(context.Background(), t.TempDir(), "x.sog4d", cfg)
		require.ErrorIs(t, err, errs.ErrInvalidMode)
	})

	t.Run("explicit times for the wrong frame count", func(t *testing.T) {
		dir := writeSequence(t, 3, 10, 0)
		cfg := smallConfig()
		cfg.Time.Type = format.TimeExplicit
		cfg.Time.FrameTimes = "0,1"
		_, err := Pack(context.Background(), dir, filepath.Join(t.TempDir(), "x.sog4d"), cfg)
		require.ErrorIs(t, err, errs.ErrInvalidInput)
	})

	t.Run("frame mismatch", func(t *testing.T) {
		dir := writeSequence(t, 3, 10, 0)
		require.NoError(t, splat.WritePLYFile(filepath.Join(dir, "time_00003.ply"), splat.NewFrame(9, 0)))
		out := filepath.Join(t.TempDir(), "x.sog4d")

		_, err := Pack(context.Background(), dir, out, smallConfig())
		require.ErrorIs(t, err, errs.ErrFrameMismatch)
		require.ErrorContains(t, err, "time_00003.ply")
		require.NoFileExists(t, out)
	})
}
