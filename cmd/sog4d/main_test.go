package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/sog4d/bundle"
	"github.com/arloliu/sog4d/splat"
)

func writeFrames(t *testing.T, frames, count, restCoeffs int) string {
	t.Helper()

	dir := t.TempDir()
	for fi := range frames {
		f := splat.NewFrame(count, restCoeffs)
		for i := range count {
			v := float32((i*7+fi)%13) / 13
			for c := range 3 {
				f.Positions[i*3+c] = v*float32(c+1) + float32(fi)
				f.DC[i*3+c] = v - 0.5
				f.Scale[i*3+c] = -2 - v
			}
			f.Opacity[i] = v*4 - 2
			f.Rotation[i*4] = 1
			f.Rotation[i*4+1] = v
		}
		for i := range f.Rest {
			f.Rest[i] = float32((i+fi)%5) / 10
		}
		require.NoError(t, splat.WritePLYFile(filepath.Join(dir, fmt.Sprintf("frame_%d.ply", fi)), f))
	}

	return dir
}

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := execute(args, &stdout, &stderr)

	return code, stdout.String(), stderr.String()
}

var smallFlags = []string{
	"--scale-codebook-size", "8",
	"--scale-sample-count", "500",
	"--sh0-sample-count", "1000",
	"--shN-count", "6",
	"--shN-sample-count", "500",
	"--kmeans-iterations", "3",
	"--delta-segment-length", "2",
}

func TestVersion(t *testing.T) {
	code, stdout, _ := runCLI("version")
	require.Equal(t, 0, code)
	require.Contains(t, stdout, "sog4d version "+Version)
}

func TestPackValidateNormalize(t *testing.T) {
	dir := writeFrames(t, 4, 20, 3)
	out := filepath.Join(t.TempDir(), "seq.sog4d")
	prom := filepath.Join(t.TempDir(), "run.prom")

	args := append([]string{"pack", "--input-dir", dir, "--output", out, "--self-check", "--metrics-file", prom}, smallFlags...)
	code, stdout, stderr := runCLI(args...)
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, "[sog4d] wrote "+out)
	require.Contains(t, stderr, "validate ok")
	require.FileExists(t, prom)

	code, stdout, stderr = runCLI("validate", "--input", out)
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, "validate ok: version 1, 4 frames, 20 splats, bands 1")

	fixed := filepath.Join(t.TempDir(), "fixed.sog4d")
	code, stdout, stderr = runCLI("normalize-meta", "--input", out, "--output", fixed, "--validate")
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, "(0 changes)")
	require.FileExists(t, fixed)
}

func TestPack_ConfigFile(t *testing.T) {
	dir := writeFrames(t, 3, 16, 3)
	out := filepath.Join(t.TempDir(), "seq.sog4d")

	cfgPath := filepath.Join(t.TempDir(), "sog4d.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
sh:
  count: 4
  labelsEncoding: full
scale:
  codebookSize: 5
  sampleCount: 300
`), 0o644))

	args := append([]string{"pack", "--input-dir", dir, "--output", out, "--config", cfgPath}, smallFlags...)
	args = append(args, "--shN-labels-encoding", "delta-v1", "--log-level", "warn")
	code, _, stderr := runCLI(args...)
	require.Equal(t, 0, code, stderr)
	require.NotContains(t, stderr, "level=INFO")

	r, err := bundle.OpenReader(out)
	require.NoError(t, err)
	defer r.Close()
	m, err := r.ReadManifest()
	require.NoError(t, err)

	// The flag wins over the file.
	require.Equal(t, "delta-v1", m.Streams.SH.ShNLabelsEncoding)
	require.LessOrEqual(t, m.Streams.SH.ShNCount, 6)
	require.LessOrEqual(t, len(m.Streams.Scale.Codebook), 8)
}

func TestPack_ConfigFileOnly(t *testing.T) {
	dir := writeFrames(t, 3, 16, 3)
	out := filepath.Join(t.TempDir(), "seq.sog4d")

	cfgPath := filepath.Join(t.TempDir(), "sog4d.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
encode:
  kmeansIterations: 3
scale:
  codebookSize: 5
  sampleCount: 300
sh0:
  sampleCount: 500
sh:
  count: 4
  sampleCount: 300
  labelsEncoding: full
`), 0o644))

	code, _, stderr := runCLI("pack", "--input-dir", dir, "--output", out, "--config", cfgPath)
	require.Equal(t, 0, code, stderr)

	r, err := bundle.OpenReader(out)
	require.NoError(t, err)
	defer r.Close()
	m, err := r.ReadManifest()
	require.NoError(t, err)
	require.Equal(t, "full", m.Streams.SH.ShNLabelsEncoding)
	require.LessOrEqual(t, m.Streams.SH.ShNCount, 4)
	require.LessOrEqual(t, len(m.Streams.Scale.Codebook), 5)
}

func TestFatalErrors(t *testing.T) {
	dir := writeFrames(t, 2, 8, 3)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "missing required flag", args: []string{"pack", "--input-dir", dir}, want: "output"},
		{name: "bands mismatch", args: append([]string{"pack", "--input-dir", dir, "--output", filepath.Join(t.TempDir(), "x.sog4d"), "--sh-bands", "2"}, smallFlags...), want: "invalid sh bands"},
		{name: "bad enum", args: []string{"pack", "--input-dir", dir, "--output", "x.sog4d", "--zip-compression", "rar"}, want: "invalid mode"},
		{name: "bad log level", args: []string{"validate", "--input", "x.sog4d", "--log-level", "loud"}, want: "unknown log level"},
		{name: "missing bundle", args: []string{"validate", "--input", filepath.Join(t.TempDir(), "absent.sog4d")}, want: "invalid input"},
		{name: "missing config file", args: []string{"pack", "--input-dir", dir, "--output", "x.sog4d", "--config", filepath.Join(t.TempDir(), "absent.yaml")}, want: "config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCLI(tt.args...)
			require.Equal(t, exitFatal, code)
			require.True(t, strings.HasPrefix(stderr, "[sog4d][error] ") || strings.Contains(stderr, "\n[sog4d][error] "), stderr)
			require.Contains(t, stderr, tt.want)
		})
	}
}
