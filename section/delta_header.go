package section

import (
	"fmt"

	"github.com/arloliu/sog4d/endian"
	"github.com/arloliu/sog4d/errs"
)

// engine is the byte order of every header field.
var engine = endian.GetLittleEndianEngine()

const (
	// DeltaMagic identifies a label delta stream.
	DeltaMagic = "SOG4DLB1"
	// DeltaVersion is the only delta stream version written and accepted.
	DeltaVersion uint32 = 1
	// DeltaHeaderSize is the fixed size of DeltaHeader on the wire.
	DeltaHeaderSize = 28

	// UpdateRecordSize is the size of one (id, label, reserved) record.
	UpdateRecordSize = 8
	// UpdateCountSize is the size of the count that opens every update block.
	UpdateCountSize = 4
)

// DeltaHeader is the fixed header at the start of a label delta stream.
//
// Layout, all fields little-endian:
//
//	offset  size  field
//	0       8     magic "SOG4DLB1"
//	8       4     version
//	12      4     segment start frame
//	16      4     segment frame count
//	20      4     point count
//	24      4     codebook entry count
type DeltaHeader struct {
	// Version is the delta stream format version, always DeltaVersion.
	Version uint32
	// StartFrame is the first frame of the segment.
	StartFrame uint32
	// FrameCount is the number of frames in the segment, base frame included.
	FrameCount uint32
	// PointCount is the number of labels per frame.
	PointCount uint32
	// EntryCount is the size of the codebook the labels index into.
	EntryCount uint32
}

// NewDeltaHeader creates a header for a segment.
func NewDeltaHeader(startFrame, frameCount, pointCount, entryCount int) DeltaHeader {
	return DeltaHeader{
		Version:    DeltaVersion,
		StartFrame: uint32(startFrame),
		FrameCount: uint32(frameCount),
		PointCount: uint32(pointCount),
		EntryCount: uint32(entryCount),
	}
}

// Bytes serializes the header into a new DeltaHeaderSize byte slice.
func (h DeltaHeader) Bytes() []byte {
	return h.AppendTo(make([]byte, 0, DeltaHeaderSize))
}

// AppendTo appends the serialized header to dst.
func (h DeltaHeader) AppendTo(dst []byte) []byte {
	dst = append(dst, DeltaMagic...)
	dst = engine.AppendUint32(dst, h.Version)
	dst = engine.AppendUint32(dst, h.StartFrame)
	dst = engine.AppendUint32(dst, h.FrameCount)
	dst = engine.AppendUint32(dst, h.PointCount)
	dst = engine.AppendUint32(dst, h.EntryCount)

	return dst
}

// Parse parses the header from exactly DeltaHeaderSize bytes and validates
// its magic and version.
func (h *DeltaHeader) Parse(data []byte) error {
	if len(data) != DeltaHeaderSize {
		return fmt.Errorf("%w: delta header is %d bytes, expected %d",
			errs.ErrInvalidHeaderSize, len(data), DeltaHeaderSize)
	}

	if string(data[:8]) != DeltaMagic {
		return fmt.Errorf("%w: %q", errs.ErrInvalidMagic, data[:8])
	}

	h.Version = engine.Uint32(data[8:12])
	h.StartFrame = engine.Uint32(data[12:16])
	h.FrameCount = engine.Uint32(data[16:20])
	h.PointCount = engine.Uint32(data[20:24])
	h.EntryCount = engine.Uint32(data[24:28])

	return h.Validate()
}

// Validate checks the version and that the counts describe a usable stream.
func (h DeltaHeader) Validate() error {
	if h.Version != DeltaVersion {
		return fmt.Errorf("%w: delta stream version %d", errs.ErrInvalidVersion, h.Version)
	}
	if h.FrameCount == 0 {
		return fmt.Errorf("%w: delta segment has no frames", errs.ErrHeaderMismatch)
	}
	if h.EntryCount == 0 || h.EntryCount > 65535 {
		return fmt.Errorf("%w: codebook entry count %d", errs.ErrHeaderMismatch, h.EntryCount)
	}

	return nil
}

// Match reports the first field that differs from want.
func (h DeltaHeader) Match(want DeltaHeader) error {
	fields := []struct {
		name      string
		got, want uint32
	}{
		{"startFrame", h.StartFrame, want.StartFrame},
		{"frameCount", h.FrameCount, want.FrameCount},
		{"splatCount", h.PointCount, want.PointCount},
		{"labelCount", h.EntryCount, want.EntryCount},
	}

	for _, f := range fields {
		if f.got != f.want {
			return fmt.Errorf("%w: %s is %d, expected %d", errs.ErrHeaderMismatch, f.name, f.got, f.want)
		}
	}

	return nil
}

// ParseDeltaHeader parses the header at the start of data. Extra bytes are ignored.
func ParseDeltaHeader(data []byte) (DeltaHeader, error) {
	if len(data) < DeltaHeaderSize {
		return DeltaHeader{}, fmt.Errorf("%w: delta stream is %d bytes, header needs %d",
			errs.ErrInvalidHeaderSize, len(data), DeltaHeaderSize)
	}

	var h DeltaHeader
	if err := h.Parse(data[:DeltaHeaderSize]); err != nil {
		return DeltaHeader{}, err
	}

	return h, nil
}

// IsDeltaStream reports whether data starts with the delta stream magic.
func IsDeltaStream(data []byte) bool {
	return len(data) >= len(DeltaMagic) && string(data[:len(DeltaMagic)]) == DeltaMagic
}
