package format

import (
	"fmt"
	"strings"
)

type (
	OpacityMode     uint8
	ScaleMode       uint8
	CodebookMethod  uint8
	LabelsEncoding  uint8
	CentroidsType   uint8
	ZipCompression  uint8
	CompressionType uint8
)

const (
	OpacityAuto    OpacityMode = 0x1 // OpacityAuto picks linear or sigmoid from the raw value range.
	OpacityLinear  OpacityMode = 0x2 // OpacityLinear clips raw values to [0,1].
	OpacitySigmoid OpacityMode = 0x3 // OpacitySigmoid applies the logistic function.

	ScaleAuto   ScaleMode = 0x1 // ScaleAuto always exponentiates, same as ScaleExp.
	ScaleLinear ScaleMode = 0x2 // ScaleLinear passes raw values through.
	ScaleExp    ScaleMode = 0x3 // ScaleExp exponentiates log-encoded values.

	MethodQuantile CodebookMethod = 0x1 // MethodQuantile builds the base color codebook from weighted quantiles.
	MethodKMeans   CodebookMethod = 0x2 // MethodKMeans builds the base color codebook with weighted k-means.

	LabelsFull    LabelsEncoding = 0x1 // LabelsFull writes one label plane per frame.
	LabelsDeltaV1 LabelsEncoding = 0x2 // LabelsDeltaV1 writes base snapshots plus sparse update streams.

	CentroidsF16 CentroidsType = 0x1 // CentroidsF16 stores codebook components as IEEE half floats.
	CentroidsF32 CentroidsType = 0x2 // CentroidsF32 stores codebook components as IEEE single floats.

	ZipStored   ZipCompression = 0x1 // ZipStored writes archive entries without compression.
	ZipDeflated ZipCompression = 0x2 // ZipDeflated writes archive entries with deflate.
	ZipZstd     ZipCompression = 0x3 // ZipZstd writes archive entries with zstd (method 93).

	CompressionNone CompressionType = 0x1 // CompressionNone represents no compression.
	CompressionZstd CompressionType = 0x2 // CompressionZstd represents Zstandard compression.
	CompressionS2   CompressionType = 0x3 // CompressionS2 represents S2 compression.
	CompressionLZ4  CompressionType = 0x4 // CompressionLZ4 represents LZ4 compression.
)

// Manifest level constants.
const (
	FormatTag      = "sog4d"
	LayoutRowMajor = "row-major"
	TimeUniform    = "uniform"
	TimeExplicit   = "explicit"

	// VersionCombined is the manifest version with one rest palette (shN).
	VersionCombined = 1
	// VersionSplit is the manifest version with one rest palette per band (sh1..sh3).
	VersionSplit = 2

	// MaxBands is the highest supported directional color band.
	MaxBands = 3
	// ScalarCodebookSize is the fixed entry count of the base color codebook.
	ScalarCodebookSize = 256
	// MaxCodebookEntries is the largest entry count addressable by a 16-bit index.
	MaxCodebookEntries = 65535
)

func (m OpacityMode) String() string {
	switch m {
	case OpacityAuto:
		return "auto"
	case OpacityLinear:
		return "linear"
	case OpacitySigmoid:
		return "sigmoid"
	default:
		return "unknown"
	}
}

func (m ScaleMode) String() string {
	switch m {
	case ScaleAuto:
		return "auto"
	case ScaleLinear:
		return "linear"
	case ScaleExp:
		return "exp"
	default:
		return "unknown"
	}
}

func (m CodebookMethod) String() string {
	switch m {
	case MethodQuantile:
		return "quantile"
	case MethodKMeans:
		return "kmeans"
	default:
		return "unknown"
	}
}

func (e LabelsEncoding) String() string {
	switch e {
	case LabelsFull:
		return "full"
	case LabelsDeltaV1:
		return "delta-v1"
	default:
		return "unknown"
	}
}

func (c CentroidsType) String() string {
	switch c {
	case CentroidsF16:
		return "f16"
	case CentroidsF32:
		return "f32"
	default:
		return "unknown"
	}
}

// ScalarBytes returns the byte width of one stored component.
func (c CentroidsType) ScalarBytes() int {
	if c == CentroidsF16 {
		return 2
	}

	return 4
}

func (z ZipCompression) String() string {
	switch z {
	case ZipStored:
		return "stored"
	case ZipDeflated:
		return "deflated"
	case ZipZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionZstd:
		return "Zstd"
	case CompressionS2:
		return "S2"
	case CompressionLZ4:
		return "LZ4"
	default:
		return "Unknown"
	}
}

// ParseOpacityMode parses the CLI/manifest spelling of an opacity mode.
func ParseOpacityMode(s string) (OpacityMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto":
		return OpacityAuto, nil
	case "linear":
		return OpacityLinear, nil
	case "sigmoid":
		return OpacitySigmoid, nil
	default:
		return 0, fmt.Errorf("unknown opacity mode %q", s)
	}
}

// ParseScaleMode parses the CLI spelling of a scale mode.
func ParseScaleMode(s string) (ScaleMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "auto":
		return ScaleAuto, nil
	case "linear":
		return ScaleLinear, nil
	case "exp":
		return ScaleExp, nil
	default:
		return 0, fmt.Errorf("unknown scale mode %q", s)
	}
}

// ParseCodebookMethod parses the CLI spelling of a base color codebook method.
func ParseCodebookMethod(s string) (CodebookMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "quantile":
		return MethodQuantile, nil
	case "kmeans":
		return MethodKMeans, nil
	default:
		return 0, fmt.Errorf("unknown codebook method %q", s)
	}
}

// ParseLabelsEncoding parses the manifest spelling of a labels encoding.
// An empty string means full, which is what older manifests imply.
func ParseLabelsEncoding(s string) (LabelsEncoding, error) {
	switch strings.TrimSpace(s) {
	case "", "full":
		return LabelsFull, nil
	case "delta-v1":
		return LabelsDeltaV1, nil
	default:
		return 0, fmt.Errorf("unknown labels encoding %q", s)
	}
}

// ParseCentroidsType parses the manifest spelling of a centroid scalar type.
func ParseCentroidsType(s string) (CentroidsType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "f16":
		return CentroidsF16, nil
	case "f32":
		return CentroidsF32, nil
	default:
		return 0, fmt.Errorf("unknown centroids type %q", s)
	}
}

// ParseZipCompression parses the CLI spelling of an archive compression.
func ParseZipCompression(s string) (ZipCompression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stored":
		return ZipStored, nil
	case "deflated":
		return ZipDeflated, nil
	case "zstd":
		return ZipZstd, nil
	default:
		return 0, fmt.Errorf("unknown zip compression %q", s)
	}
}

// ParseCompressionType parses the CLI spelling of a frame cache codec.
func ParseCompressionType(s string) (CompressionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	case "s2":
		return CompressionS2, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", s)
	}
}
