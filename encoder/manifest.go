package encoder

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/arloliu/sog4d/bundle"
	"github.com/arloliu/sog4d/format"
	"github.com/arloliu/sog4d/internal/hash"
)

// bundleNamespace scopes the name-based bundle IDs.
var bundleNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/arloliu/sog4d/bundle"))

// manifest describes the bundle pass 2 is about to write. Every field is
// known once the codebooks are fitted, so the manifest is written first.
func (s *Session) manifest() (*bundle.Manifest, error) {
	m := &bundle.Manifest{
		Format:     format.FormatTag,
		Version:    s.strategy.version(),
		SplatCount: s.splatCount,
		FrameCount: s.frameCount,
		Layout: bundle.Layout{
			Type:   format.LayoutRowMajor,
			Width:  s.width,
			Height: s.height,
		},
		TimeMapping: bundle.TimeMapping{Type: format.TimeUniform},
		Streams: bundle.Streams{
			Position: bundle.PositionStream{
				RangeMin: make([]bundle.Vec3, 0, s.frameCount),
				RangeMax: make([]bundle.Vec3, 0, s.frameCount),
				HiPath:   bundle.PositionHiTemplate,
				LoPath:   bundle.PositionLoTemplate,
			},
			Scale:    bundle.ScaleStream{IndicesPath: bundle.ScaleIndicesTemplate},
			Rotation: bundle.RotationStream{Path: bundle.RotationTemplate},
			SH: bundle.SHStream{
				Bands:       s.bands,
				SH0Path:     bundle.SH0Template,
				SH0Codebook: append([]float32(nil), s.sh0.Entries...),
			},
		},
	}

	if s.cfg.FrameTimes != nil {
		m.TimeMapping = bundle.TimeMapping{
			Type:                 format.TimeExplicit,
			FrameTimesNormalized: append([]float64(nil), s.cfg.FrameTimes...),
		}
	}

	for _, r := range s.ranges {
		m.Streams.Position.RangeMin = append(m.Streams.Position.RangeMin, vec3(r.Min))
		m.Streams.Position.RangeMax = append(m.Streams.Position.RangeMax, vec3(r.Max))
	}

	linear := s.scaleLog.Exp()
	m.Streams.Scale.Codebook = make([]bundle.Vec3, linear.Len())
	for i := range linear.Len() {
		e := linear.At(i)
		m.Streams.Scale.Codebook[i] = bundle.Vec3{X: e[0], Y: e[1], Z: e[2]}
	}

	rest := make([]bundle.RestChannel, 0, len(s.channels))
	for _, ch := range s.channels {
		rc := bundle.RestChannel{
			Tag:               ch.spec.tag,
			CoeffCount:        ch.spec.coeffs(),
			Count:             ch.cb.Len(),
			CentroidsType:     s.cfg.CentroidsType.String(),
			CentroidsPath:     ch.spec.centroidsPath,
			CentroidsChecksum: hash.ChecksumHex(ch.blob),
			LabelsEncoding:    s.cfg.LabelsEncoding.String(),
		}
		if s.cfg.LabelsEncoding == format.LabelsFull {
			rc.LabelsPath = ch.spec.labelsTemplate
		} else {
			rc.DeltaSegments = ch.segs
		}
		rest = append(rest, rc)
	}
	m.SetRestChannels(rest)

	id, err := bundleID(m)
	if err != nil {
		return nil, err
	}
	m.BundleID = id

	return m, nil
}

// bundleID derives a UUIDv5 from the manifest content, which carries every
// codebook and the checksum of every centroid blob. Identical inputs and
// parameters yield the same ID.
func bundleID(m *bundle.Manifest) (string, error) {
	data, err := m.Marshal()
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}

	return uuid.NewSHA1(bundleNamespace, data).String(), nil
}

func vec3(v [3]float32) bundle.Vec3 {
	return bundle.Vec3{X: v[0], Y: v[1], Z: v[2]}
}
