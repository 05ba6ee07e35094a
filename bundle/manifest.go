package bundle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/arloliu/sog4d/delta"
	"github.com/arloliu/sog4d/errs"
	"github.com/arloliu/sog4d/format"
)

// ManifestName is the archive entry holding the manifest.
const ManifestName = "meta.json"

// FramePlaceholder is substituted with the zero-padded frame index in path templates.
const FramePlaceholder = "{frame}"

// Per-frame path templates and fixed entry names written by the encoder.
const (
	PositionHiTemplate   = "frames/{frame}/position_hi.png"
	PositionLoTemplate   = "frames/{frame}/position_lo.png"
	ScaleIndicesTemplate = "frames/{frame}/scale_indices.png"
	RotationTemplate     = "frames/{frame}/rotation.png"
	SH0Template          = "frames/{frame}/sh0.png"
)

// Vec3 is a JSON {x,y,z} vector.
type Vec3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// TimeMapping maps frame indices to normalized playback time.
type TimeMapping struct {
	// Type is "uniform" or "explicit".
	Type string `json:"type"`
	// FrameTimesNormalized holds one time in [0,1] per frame for explicit mappings.
	FrameTimesNormalized []float64 `json:"frameTimesNormalized,omitempty"`
}

// Layout describes how per-point values are laid out in a plane.
type Layout struct {
	Type   string `json:"type"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// PositionStream describes the per-frame position planes.
type PositionStream struct {
	RangeMin []Vec3 `json:"rangeMin"`
	RangeMax []Vec3 `json:"rangeMax"`
	HiPath   string `json:"hiPath"`
	LoPath   string `json:"loPath"`
}

// ScaleStream describes the scale codebook and its per-frame index planes.
type ScaleStream struct {
	// Codebook holds the linear scale centers.
	Codebook    []Vec3 `json:"codebook"`
	IndicesPath string `json:"indicesPath"`
}

// RotationStream describes the per-frame quaternion planes.
type RotationStream struct {
	Path string `json:"path"`
}

// BandStream describes one rest coefficient codebook of a version 2 bundle.
type BandStream struct {
	Count             int             `json:"count"`
	CentroidsType     string          `json:"centroidsType"`
	CentroidsPath     string          `json:"centroidsPath"`
	CentroidsChecksum string          `json:"centroidsChecksum,omitempty"`
	LabelsEncoding    string          `json:"labelsEncoding"`
	LabelsPath        string          `json:"labelsPath,omitempty"`
	DeltaSegments     []delta.Segment `json:"deltaSegments,omitempty"`
}

// SHStream describes the color streams.
//
// Version 1 bundles carry the ShN* fields, version 2 bundles carry SH1..SH3.
type SHStream struct {
	Bands       int       `json:"bands"`
	SH0Path     string    `json:"sh0Path"`
	SH0Codebook []float32 `json:"sh0Codebook"`

	ShNCount             int             `json:"shNCount,omitempty"`
	ShNCentroidsType     string          `json:"shNCentroidsType,omitempty"`
	ShNCentroidsPath     string          `json:"shNCentroidsPath,omitempty"`
	ShNCentroidsChecksum string          `json:"shNCentroidsChecksum,omitempty"`
	ShNLabelsEncoding    string          `json:"shNLabelsEncoding,omitempty"`
	ShNLabelsPath        string          `json:"shNLabelsPath,omitempty"`
	ShNDeltaSegments     []delta.Segment `json:"shNDeltaSegments,omitempty"`

	SH1 *BandStream `json:"sh1,omitempty"`
	SH2 *BandStream `json:"sh2,omitempty"`
	SH3 *BandStream `json:"sh3,omitempty"`
}

// Streams groups the per-attribute stream descriptions.
type Streams struct {
	Position PositionStream `json:"position"`
	Scale    ScaleStream    `json:"scale"`
	Rotation RotationStream `json:"rotation"`
	SH       SHStream       `json:"sh"`
}

// Manifest is the meta.json document, the single description of a bundle.
type Manifest struct {
	Format      string      `json:"format"`
	Version     int         `json:"version"`
	BundleID    string      `json:"bundleId,omitempty"`
	SplatCount  int         `json:"splatCount"`
	FrameCount  int         `json:"frameCount"`
	TimeMapping TimeMapping `json:"timeMapping"`
	Layout      Layout      `json:"layout"`
	Streams     Streams     `json:"streams"`
}

// Marshal encodes the manifest as indented JSON.
func (m *Manifest) Marshal() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// ParseManifest decodes a meta.json document.
//
// Only JSON syntax and field types are checked here; Validate checks the
// content.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errs.ErrInvalidManifest, ManifestName, err)
	}

	return &m, nil
}

// ResolveFrame substitutes frame, zero-padded to five digits, for the
// {frame} placeholder of template.
func ResolveFrame(template string, frame int) (string, error) {
	if !strings.Contains(template, FramePlaceholder) {
		return "", fmt.Errorf("%w: path template %q has no %s placeholder",
			errs.ErrInvalidManifest, template, FramePlaceholder)
	}

	return strings.ReplaceAll(template, FramePlaceholder, fmt.Sprintf("%05d", frame)), nil
}

// FramePath resolves one of the encoder's own templates. The templates are
// constants, so it cannot fail.
func FramePath(template string, frame int) string {
	return strings.ReplaceAll(template, FramePlaceholder, fmt.Sprintf("%05d", frame))
}

// RestChannel is a version-independent view of one rest coefficient
// codebook and its labels.
type RestChannel struct {
	// Tag names the channel in diagnostics: shN, sh1, sh2 or sh3.
	Tag string
	// CoeffCount is the number of coefficients per entry, each an RGB triplet.
	CoeffCount        int
	Count             int
	CentroidsType     string
	CentroidsPath     string
	CentroidsChecksum string
	LabelsEncoding    string
	LabelsPath        string
	DeltaSegments     []delta.Segment
}

// Dim returns the number of float components per codebook entry.
func (c RestChannel) Dim() int {
	return c.CoeffCount * 3
}

// BandCoeffCount returns the coefficient count of a single band, 2b+1.
func BandCoeffCount(band int) int {
	return 2*band + 1
}

// RestCoeffCount returns the total coefficient count of bands 1..bands, (bands+1)²-1.
func RestCoeffCount(bands int) int {
	return (bands+1)*(bands+1) - 1
}

// RestChannels returns the rest channels the manifest declares, in band order.
//
// A version 1 manifest yields one shN channel spanning every band. A version
// 2 manifest yields sh1..sh<bands>; a missing band object is an error.
func (m *Manifest) RestChannels() ([]RestChannel, error) {
	sh := m.Streams.SH
	if sh.Bands <= 0 {
		return nil, nil
	}
	if sh.Bands > format.MaxBands {
		return nil, fmt.Errorf("%w: streams.sh.bands %d exceeds %d", errs.ErrInvalidManifest, sh.Bands, format.MaxBands)
	}

	switch m.Version {
	case format.VersionCombined:
		return []RestChannel{{
			Tag:               "shN",
			CoeffCount:        RestCoeffCount(sh.Bands),
			Count:             sh.ShNCount,
			CentroidsType:     sh.ShNCentroidsType,
			CentroidsPath:     sh.ShNCentroidsPath,
			CentroidsChecksum: sh.ShNCentroidsChecksum,
			LabelsEncoding:    sh.ShNLabelsEncoding,
			LabelsPath:        sh.ShNLabelsPath,
			DeltaSegments:     sh.ShNDeltaSegments,
		}}, nil
	case format.VersionSplit:
		bands := []*BandStream{sh.SH1, sh.SH2, sh.SH3}
		channels := make([]RestChannel, 0, sh.Bands)
		for b := 1; b <= sh.Bands; b++ {
			band := bands[b-1]
			tag := fmt.Sprintf("sh%d", b)
			if band == nil {
				return nil, fmt.Errorf("%w: streams.sh.%s is missing", errs.ErrMissingField, tag)
			}
			channels = append(channels, RestChannel{
				Tag:               tag,
				CoeffCount:        BandCoeffCount(b),
				Count:             band.Count,
				CentroidsType:     band.CentroidsType,
				CentroidsPath:     band.CentroidsPath,
				CentroidsChecksum: band.CentroidsChecksum,
				LabelsEncoding:    band.LabelsEncoding,
				LabelsPath:        band.LabelsPath,
				DeltaSegments:     band.DeltaSegments,
			})
		}

		return channels, nil
	default:
		return nil, fmt.Errorf("%w: version %d", errs.ErrInvalidManifest, m.Version)
	}
}

// SetRestChannels stores channels into the version-specific manifest fields.
func (m *Manifest) SetRestChannels(channels []RestChannel) {
	sh := &m.Streams.SH
	if m.Version == format.VersionCombined {
		if len(channels) == 0 {
			return
		}
		c := channels[0]
		sh.ShNCount = c.Count
		sh.ShNCentroidsType = c.CentroidsType
		sh.ShNCentroidsPath = c.CentroidsPath
		sh.ShNCentroidsChecksum = c.CentroidsChecksum
		sh.ShNLabelsEncoding = c.LabelsEncoding
		sh.ShNLabelsPath = c.LabelsPath
		sh.ShNDeltaSegments = c.DeltaSegments

		return
	}

	slots := []**BandStream{&sh.SH1, &sh.SH2, &sh.SH3}
	for i, c := range channels {
		if i >= len(slots) {
			break
		}
		*slots[i] = &BandStream{
			Count:             c.Count,
			CentroidsType:     c.CentroidsType,
			CentroidsPath:     c.CentroidsPath,
			CentroidsChecksum: c.CentroidsChecksum,
			LabelsEncoding:    c.LabelsEncoding,
			LabelsPath:        c.LabelsPath,
			DeltaSegments:     c.DeltaSegments,
		}
	}
}
