package bundle

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/sog4d/codebook"
	"github.com/arloliu/sog4d/delta"
	"github.com/arloliu/sog4d/format"
	"github.com/arloliu/sog4d/internal/hash"
)

const (
	fixSplats  = 5
	fixFrames  = 3
	fixWidth   = 3
	fixHeight  = 2
	fixLabels  = 4
	fixScaleCB = 2
)

// fixture is a small valid version 1 bundle with delta-v1 labels, held in
// memory so tests can corrupt it before writing.
type fixture struct {
	m       *Manifest
	entries map[string][]byte
	order   []string
}

func (fx *fixture) put(t *testing.T, name string, data []byte) {
	t.Helper()
	if _, ok := fx.entries[name]; !ok {
		fx.order = append(fx.order, name)
	}
	fx.entries[name] = data
}

func (fx *fixture) putPlane(t *testing.T, name string, p *Plane) {
	t.Helper()
	data, err := EncodePNG(p)
	require.NoError(t, err)
	fx.put(t, name, data)
}

var fixFrameLabels = [][]uint16{
	{0, 1, 2, 3, 0},
	{0, 1, 3, 3, 1},
	{2, 2, 2, 2, 2},
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	fx := &fixture{entries: make(map[string][]byte)}

	sh0 := make([]float32, format.ScalarCodebookSize)
	for i := range sh0 {
		sh0[i] = float32(i)/128 - 1
	}

	m := &Manifest{
		Format:      format.FormatTag,
		Version:     format.VersionCombined,
		SplatCount:  fixSplats,
		FrameCount:  fixFrames,
		TimeMapping: TimeMapping{Type: format.TimeUniform},
		Layout:      Layout{Type: format.LayoutRowMajor, Width: fixWidth, Height: fixHeight},
		Streams: Streams{
			Position: PositionStream{HiPath: PositionHiTemplate, LoPath: PositionLoTemplate},
			Scale: ScaleStream{
				Codebook:    []Vec3{{X: 1, Y: 1, Z: 1}, {X: 4, Y: 4, Z: 4}},
				IndicesPath: ScaleIndicesTemplate,
			},
			Rotation: RotationStream{Path: RotationTemplate},
			SH:       SHStream{Bands: 1, SH0Path: SH0Template, SH0Codebook: sh0},
		},
	}

	for f := range fixFrames {
		m.Streams.Position.RangeMin = append(m.Streams.Position.RangeMin, Vec3{})
		m.Streams.Position.RangeMax = append(m.Streams.Position.RangeMax, Vec3{X: 1, Y: 1, Z: 1})

		rgb := make([]uint8, fixSplats*3)
		for i := range rgb {
			rgb[i] = uint8(i * 7)
		}
		hi, err := PackTriples(rgb, nil, fixWidth, fixHeight)
		require.NoError(t, err)
		fx.putPlane(t, FramePath(PositionHiTemplate, f), hi)
		fx.putPlane(t, FramePath(PositionLoTemplate, f), hi)

		scale, err := PackU16([]uint16{0, 1, 1, 0, uint16(f % fixScaleCB)}, fixWidth, fixHeight)
		require.NoError(t, err)
		fx.putPlane(t, FramePath(ScaleIndicesTemplate, f), scale)

		quat := make([]uint8, fixSplats*4)
		for i := range fixSplats {
			quat[i*4] = 255
			quat[i*4+1], quat[i*4+2], quat[i*4+3] = 128, 128, 128
		}
		rot, err := PackQuads(quat, fixWidth, fixHeight)
		require.NoError(t, err)
		fx.putPlane(t, FramePath(RotationTemplate, f), rot)

		alpha := []uint8{255, 128, 64, 0, 10}
		sh0Plane, err := PackTriples(rgb, alpha, fixWidth, fixHeight)
		require.NoError(t, err)
		fx.putPlane(t, FramePath(SH0Template, f), sh0Plane)
	}

	cb := &codebook.Codebook{Dim: 9, Entries: make([]float32, fixLabels*9)}
	for i := range cb.Entries {
		cb.Entries[i] = float32(i) / 64
	}
	blob, err := EncodeCentroids(cb, format.CentroidsF16)
	require.NoError(t, err)
	fx.put(t, "shN_centroids.bin", blob)

	segs, err := delta.BuildSegments(fixFrames, 2, "shN_labels.png", "sh/delta_")
	require.NoError(t, err)

	w, err := delta.NewWriter(fixSplats, fixLabels)
	require.NoError(t, err)
	defer w.Close()
	for _, seg := range segs {
		require.NoError(t, w.Start(seg))
		for f := seg.StartFrame; f < seg.EndFrame(); f++ {
			base, err := w.Append(fixFrameLabels[f])
			require.NoError(t, err)
			if base {
				p, err := PackU16(fixFrameLabels[f], fixWidth, fixHeight)
				require.NoError(t, err)
				fx.putPlane(t, seg.BaseLabelsPath, p)
			}
		}
		stream, err := w.Flush()
		require.NoError(t, err)
		fx.put(t, seg.DeltaPath, stream)
	}

	m.SetRestChannels([]RestChannel{{
		Tag:               "shN",
		CoeffCount:        3,
		Count:             fixLabels,
		CentroidsType:     format.CentroidsF16.String(),
		CentroidsPath:     "shN_centroids.bin",
		CentroidsChecksum: hash.ChecksumHex(blob),
		LabelsEncoding:    format.LabelsDeltaV1.String(),
		DeltaSegments:     segs,
	}})
	fx.m = m

	return fx
}

// write stores the fixture as a bundle under t.TempDir and returns its path.
func (fx *fixture) write(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.sog4d")
	w, err := CreateWriter(path, format.ZipStored)
	require.NoError(t, err)

	require.NoError(t, w.WriteManifest(fx.m))
	for _, name := range fx.order {
		require.NoError(t, w.WriteFile(name, fx.entries[name]))
	}
	require.NoError(t, w.Close())

	return path
}
