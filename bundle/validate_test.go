package bundle

import (
	"bytes"
	"encoding/binary"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/sog4d/errs"
	"github.com/arloliu/sog4d/format"
	"github.com/arloliu/sog4d/section"
)

func (fx *fixture) remove(name string) {
	delete(fx.entries, name)
	fx.order = slices.DeleteFunc(fx.order, func(s string) bool { return s == name })
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestValidate_ValidBundle(t *testing.T) {
	fx := newFixture(t)
	path := fx.write(t)

	report, err := Validate(path, WithLogger(quietLogger()))
	require.NoError(t, err)
	require.Equal(t, format.VersionCombined, report.Version)
	require.Equal(t, fixSplats, report.SplatCount)
	require.Equal(t, fixFrames, report.FrameCount)
	require.Equal(t, 1, report.Bands)
	require.Equal(t, []string{"shN:delta-v1"}, report.Channels)
	// frame 0 -> 1 changes points 2 and 4
	require.Equal(t, 2, report.Updates)
}

func TestValidate_SplitBundle(t *testing.T) {
	fx := newFixture(t)
	channels, err := fx.m.RestChannels()
	require.NoError(t, err)

	fx.m.Version = format.VersionSplit
	fx.m.Streams.SH.ShNCount = 0
	fx.m.Streams.SH.ShNCentroidsType = ""
	fx.m.Streams.SH.ShNCentroidsPath = ""
	fx.m.Streams.SH.ShNCentroidsChecksum = ""
	fx.m.Streams.SH.ShNLabelsEncoding = ""
	fx.m.Streams.SH.ShNDeltaSegments = nil

	channels[0].Tag = "sh1"
	fx.m.SetRestChannels(channels)

	report, err := Validate(fx.write(t), WithLogger(quietLogger()))
	require.NoError(t, err)
	require.Equal(t, []string{"sh1:delta-v1"}, report.Channels)

	t.Run("missing band object", func(t *testing.T) {
		fx.m.Streams.SH.SH1 = nil
		_, err := Validate(fx.write(t), WithLogger(quietLogger()))
		require.ErrorIs(t, err, errs.ErrMissingField)
	})
}

func TestValidate_FullLabels(t *testing.T) {
	fx := newFixture(t)
	sh := &fx.m.Streams.SH
	for _, seg := range sh.ShNDeltaSegments {
		fx.remove(seg.DeltaPath)
		fx.remove(seg.BaseLabelsPath)
	}
	sh.ShNDeltaSegments = nil
	sh.ShNLabelsEncoding = format.LabelsFull.String()
	sh.ShNLabelsPath = "frames/{frame}/shN_labels.png"

	for f, labels := range fixFrameLabels {
		p, err := PackU16(labels, fixWidth, fixHeight)
		require.NoError(t, err)
		fx.putPlane(t, FramePath(sh.ShNLabelsPath, f), p)
	}

	report, err := Validate(fx.write(t), WithLogger(quietLogger()))
	require.NoError(t, err)
	require.Equal(t, []string{"shN:full"}, report.Channels)

	t.Run("label out of range", func(t *testing.T) {
		p, err := PackU16([]uint16{0, 0, 0, 0, fixLabels}, fixWidth, fixHeight)
		require.NoError(t, err)
		fx.putPlane(t, FramePath(sh.ShNLabelsPath, 1), p)

		_, err = Validate(fx.write(t), WithLogger(quietLogger()))
		require.ErrorIs(t, err, errs.ErrIndexOutOfRange)
		require.Contains(t, err.Error(), "shN_labels frame=1")
		require.Contains(t, err.Error(), "splatId=4 value=4 maxExclusive=4")
	})
}

func TestValidate_BandsZero(t *testing.T) {
	fx := newFixture(t)
	fx.m.Streams.SH = SHStream{Bands: 0, SH0Path: SH0Template, SH0Codebook: fx.m.Streams.SH.SH0Codebook}

	report, err := Validate(fx.write(t), WithLogger(quietLogger()))
	require.NoError(t, err)
	require.Empty(t, report.Channels)
}

// corruptStream edits the update records of the first segment's first block.
func corruptStream(t *testing.T, fx *fixture, edit func(recs []byte)) {
	t.Helper()
	seg := fx.m.Streams.SH.ShNDeltaSegments[0]
	stream := bytes.Clone(fx.entries[seg.DeltaPath])
	edit(stream[section.DeltaHeaderSize+section.UpdateCountSize:])
	fx.put(t, seg.DeltaPath, stream)
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(t *testing.T, fx *fixture)
		wantErr error
		wantMsg string
	}{
		{
			name:    "wrong format",
			corrupt: func(t *testing.T, fx *fixture) { fx.m.Format = "SOG4D" },
			wantErr: errs.ErrInvalidManifest,
		},
		{
			name:    "unknown version",
			corrupt: func(t *testing.T, fx *fixture) { fx.m.Version = 3 },
			wantErr: errs.ErrInvalidManifest,
		},
		{
			name:    "layout too small",
			corrupt: func(t *testing.T, fx *fixture) { fx.m.Layout.Height = 1 },
			wantErr: errs.ErrInvalidManifest,
		},
		{
			name:    "layout type",
			corrupt: func(t *testing.T, fx *fixture) { fx.m.Layout.Type = "column-major" },
			wantErr: errs.ErrInvalidManifest,
		},
		{
			name: "explicit times decreasing",
			corrupt: func(t *testing.T, fx *fixture) {
				fx.m.TimeMapping = TimeMapping{Type: format.TimeExplicit, FrameTimesNormalized: []float64{0, 0.6, 0.5}}
			},
			wantErr: errs.ErrInvalidManifest,
		},
		{
			name: "range count",
			corrupt: func(t *testing.T, fx *fixture) {
				fx.m.Streams.Position.RangeMax = fx.m.Streams.Position.RangeMax[:2]
			},
			wantErr: errs.ErrInvalidManifest,
		},
		{
			name:    "template without placeholder",
			corrupt: func(t *testing.T, fx *fixture) { fx.m.Streams.Rotation.Path = "rotation.png" },
			wantErr: errs.ErrInvalidManifest,
		},
		{
			name:    "missing plane",
			corrupt: func(t *testing.T, fx *fixture) { fx.remove(FramePath(RotationTemplate, 2)) },
			wantErr: errs.ErrMissingEntry,
			wantMsg: "frames/00002/rotation.png",
		},
		{
			name: "plane shape",
			corrupt: func(t *testing.T, fx *fixture) {
				fx.putPlane(t, FramePath(SH0Template, 1), NewPlane(fixWidth+1, fixHeight))
			},
			wantErr: errs.ErrPlaneShape,
			wantMsg: "sh0 frame=1",
		},
		{
			name: "undecodable plane",
			corrupt: func(t *testing.T, fx *fixture) {
				fx.put(t, FramePath(PositionLoTemplate, 0), []byte("not a png"))
			},
			wantErr: errs.ErrPlaneDecode,
		},
		{
			name: "scale index out of range",
			corrupt: func(t *testing.T, fx *fixture) {
				p, err := PackU16([]uint16{0, 0, 2, 0, 0}, fixWidth, fixHeight)
				require.NoError(t, err)
				fx.putPlane(t, FramePath(ScaleIndicesTemplate, 0), p)
			},
			wantErr: errs.ErrIndexOutOfRange,
			wantMsg: "scale_indices frame=0: splatId=2 value=2 maxExclusive=2",
		},
		{
			name:    "empty scale codebook",
			corrupt: func(t *testing.T, fx *fixture) { fx.m.Streams.Scale.Codebook = nil },
			wantErr: errs.ErrInvalidManifest,
		},
		{
			name: "short sh0 codebook",
			corrupt: func(t *testing.T, fx *fixture) {
				fx.m.Streams.SH.SH0Codebook = fx.m.Streams.SH.SH0Codebook[:255]
			},
			wantErr: errs.ErrInvalidManifest,
		},
		{
			name:    "rest count zero",
			corrupt: func(t *testing.T, fx *fixture) { fx.m.Streams.SH.ShNCount = 0 },
			wantErr: errs.ErrInvalidManifest,
		},
		{
			name:    "unknown centroids type",
			corrupt: func(t *testing.T, fx *fixture) { fx.m.Streams.SH.ShNCentroidsType = "f64" },
			wantErr: errs.ErrInvalidManifest,
		},
		{
			name: "centroids size",
			corrupt: func(t *testing.T, fx *fixture) {
				fx.put(t, "shN_centroids.bin", fx.entries["shN_centroids.bin"][:70])
			},
			wantErr: errs.ErrCentroidsSize,
			wantMsg: "expected 72 bytes, got 70",
		},
		{
			name: "centroids checksum",
			corrupt: func(t *testing.T, fx *fixture) {
				blob := bytes.Clone(fx.entries["shN_centroids.bin"])
				blob[0] ^= 0xFF
				fx.put(t, "shN_centroids.bin", blob)
			},
			wantErr: errs.ErrChecksumMismatch,
		},
		{
			name: "unknown labels encoding",
			corrupt: func(t *testing.T, fx *fixture) {
				fx.m.Streams.SH.ShNLabelsEncoding = "delta-v2"
			},
			wantErr: errs.ErrInvalidManifest,
		},
		{
			name: "segment gap",
			corrupt: func(t *testing.T, fx *fixture) {
				fx.m.Streams.SH.ShNDeltaSegments[1].StartFrame = 3
			},
			wantErr: errs.ErrSegmentGap,
		},
		{
			name: "segments short of frame count",
			corrupt: func(t *testing.T, fx *fixture) {
				fx.m.Streams.SH.ShNDeltaSegments = fx.m.Streams.SH.ShNDeltaSegments[:1]
			},
			wantErr: errs.ErrSegmentGap,
		},
		{
			name: "header count mismatch",
			corrupt: func(t *testing.T, fx *fixture) {
				seg := fx.m.Streams.SH.ShNDeltaSegments[0]
				stream := bytes.Clone(fx.entries[seg.DeltaPath])
				binary.LittleEndian.PutUint32(stream[24:28], fixLabels+1)
				fx.put(t, seg.DeltaPath, stream)
			},
			wantErr: errs.ErrHeaderMismatch,
			wantMsg: "delta-v1 shN seg=0",
		},
		{
			name: "header start mismatch",
			corrupt: func(t *testing.T, fx *fixture) {
				seg := fx.m.Streams.SH.ShNDeltaSegments[1]
				stream := bytes.Clone(fx.entries[seg.DeltaPath])
				binary.LittleEndian.PutUint32(stream[12:16], 0)
				fx.put(t, seg.DeltaPath, stream)
			},
			wantErr: errs.ErrHeaderMismatch,
			wantMsg: "startFrame is 0, expected 2",
		},
		{
			name: "bad magic",
			corrupt: func(t *testing.T, fx *fixture) {
				seg := fx.m.Streams.SH.ShNDeltaSegments[0]
				stream := bytes.Clone(fx.entries[seg.DeltaPath])
				stream[0] = 'X'
				fx.put(t, seg.DeltaPath, stream)
			},
			wantErr: errs.ErrInvalidMagic,
		},
		{
			name: "duplicate point id",
			corrupt: func(t *testing.T, fx *fixture) {
				// frame 1 updates points 2 and 4
				corruptStream(t, fx, func(recs []byte) {
					copy(recs[8:12], recs[0:4])
				})
			},
			wantErr: errs.ErrNonMonotonicID,
			wantMsg: "local frame 1 update 1 point id 2 after 2",
		},
		{
			name: "reserved non-zero",
			corrupt: func(t *testing.T, fx *fixture) {
				corruptStream(t, fx, func(recs []byte) {
					recs[7] = 1
				})
			},
			wantErr: errs.ErrReservedNonZero,
		},
		{
			name: "trailing bytes",
			corrupt: func(t *testing.T, fx *fixture) {
				seg := fx.m.Streams.SH.ShNDeltaSegments[1]
				fx.put(t, seg.DeltaPath, append(bytes.Clone(fx.entries[seg.DeltaPath]), 0, 0, 0, 0))
			},
			wantErr: errs.ErrTrailingBytes,
			wantMsg: "delta-v1 shN seg=1",
		},
		{
			name: "base label out of range",
			corrupt: func(t *testing.T, fx *fixture) {
				seg := fx.m.Streams.SH.ShNDeltaSegments[1]
				p, err := PackU16([]uint16{0, 0, 9, 0, 0}, fixWidth, fixHeight)
				require.NoError(t, err)
				fx.putPlane(t, seg.BaseLabelsPath, p)
			},
			wantErr: errs.ErrIndexOutOfRange,
			wantMsg: "baseLabels seg=1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			tt.corrupt(t, fx)

			_, err := Validate(fx.write(t), WithLogger(quietLogger()))
			require.Error(t, err)
			require.ErrorIs(t, err, tt.wantErr)
			if tt.wantMsg != "" {
				require.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestValidate_LastManifestWins(t *testing.T) {
	t.Run("broken manifest superseded", func(t *testing.T) {
		fx := newFixture(t)
		good, err := fx.m.Marshal()
		require.NoError(t, err)

		fx.m.Format = ""
		fx.put(t, ManifestName, good)

		_, err = Validate(fx.write(t), WithLogger(quietLogger()))
		require.NoError(t, err)
	})

	t.Run("good manifest superseded", func(t *testing.T) {
		fx := newFixture(t)
		fx.put(t, ManifestName, []byte(`{"format":"sog4d","version":1}`))

		_, err := Validate(fx.write(t), WithLogger(quietLogger()))
		require.ErrorIs(t, err, errs.ErrInvalidManifest)
	})
}

func TestValidate_MissingInputs(t *testing.T) {
	_, err := Validate(filepath.Join(t.TempDir(), "missing.sog4d"), WithLogger(quietLogger()))
	require.ErrorIs(t, err, errs.ErrInvalidInput)

	fx := newFixture(t)
	path := filepath.Join(t.TempDir(), "no-meta.sog4d")
	w, err := CreateWriter(path, format.ZipStored)
	require.NoError(t, err)
	for _, name := range fx.order {
		require.NoError(t, w.WriteFile(name, fx.entries[name]))
	}
	require.NoError(t, w.Close())

	_, err = Validate(path, WithLogger(quietLogger()))
	require.ErrorIs(t, err, errs.ErrMissingEntry)
}
