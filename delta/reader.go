package delta

import (
	"errors"
	"fmt"
	"io"

	"github.com/arloliu/sog4d/endian"
	"github.com/arloliu/sog4d/errs"
	"github.com/arloliu/sog4d/section"
)

// engine decodes update blocks.
var engine = endian.GetLittleEndianEngine()

// Reader replays a delta stream on top of its base snapshot.
//
// It shares no state with Writer: every structural rule is re-checked while
// decoding, and errors name the segment-local frame, the update and the
// offending value.
type Reader struct {
	hdr    section.DeltaHeader
	data   []byte
	off    int
	local  int
	labels []uint16

	updates int
}

// NewReader parses the stream header and prepares to replay from base.
//
// Parameters:
//   - stream: The complete delta stream
//   - base: The decoded base snapshot, one label per point
//
// Returns:
//   - *Reader: A reader positioned after the base frame
//   - error: header errors, ErrLabelWidth if base does not match the point
//     count, or ErrIndexOutOfRange for a base label outside the codebook
func NewReader(stream []byte, base []uint16) (*Reader, error) {
	hdr, err := section.ParseDeltaHeader(stream)
	if err != nil {
		return nil, err
	}

	if len(base) != int(hdr.PointCount) {
		return nil, fmt.Errorf("%w: base snapshot has %d labels, header says %d points",
			errs.ErrLabelWidth, len(base), hdr.PointCount)
	}
	for i, l := range base {
		if uint32(l) >= hdr.EntryCount {
			return nil, fmt.Errorf("%w: base snapshot point %d label %d >= %d",
				errs.ErrIndexOutOfRange, i, l, hdr.EntryCount)
		}
	}

	labels := make([]uint16, len(base))
	copy(labels, base)

	return &Reader{
		hdr:    hdr,
		data:   stream,
		off:    section.DeltaHeaderSize,
		labels: labels,
	}, nil
}

// Header returns the parsed stream header.
func (r *Reader) Header() section.DeltaHeader {
	return r.hdr
}

// LocalFrame returns the segment-local index of the frame last returned by
// Next, 0 for the base frame.
func (r *Reader) LocalFrame() int {
	return r.local
}

// Updates returns the number of update records applied so far.
func (r *Reader) Updates() int {
	return r.updates
}

// Next applies the next update block and returns the label map of the
// following frame.
//
// The returned slice is reused by the next call. After the last frame of the
// segment Next returns io.EOF, or ErrTrailingBytes if the stream continues.
func (r *Reader) Next() ([]uint16, error) {
	if r.local+1 >= int(r.hdr.FrameCount) {
		if r.off != len(r.data) {
			return nil, fmt.Errorf("%w: %d bytes after local frame %d",
				errs.ErrTrailingBytes, len(r.data)-r.off, r.local)
		}

		return nil, io.EOF
	}

	local := r.local + 1
	if len(r.data)-r.off < section.UpdateCountSize {
		return nil, fmt.Errorf("%w: local frame %d missing update count", errs.ErrTruncated, local)
	}

	count := engine.Uint32(r.data[r.off:])
	r.off += section.UpdateCountSize
	if count > r.hdr.PointCount {
		return nil, fmt.Errorf("%w: local frame %d update count %d > point count %d",
			errs.ErrInvalidCount, local, count, r.hdr.PointCount)
	}

	prevID := int64(-1)
	for u := range int(count) {
		if len(r.data)-r.off < section.UpdateRecordSize {
			return nil, fmt.Errorf("%w: local frame %d update %d", errs.ErrTruncated, local, u)
		}

		rec := r.data[r.off : r.off+section.UpdateRecordSize]
		id := engine.Uint32(rec[0:4])
		label := engine.Uint16(rec[4:6])
		reserved := engine.Uint16(rec[6:8])
		r.off += section.UpdateRecordSize

		if reserved != 0 {
			return nil, fmt.Errorf("%w: local frame %d update %d reserved %d",
				errs.ErrReservedNonZero, local, u, reserved)
		}
		if id >= r.hdr.PointCount {
			return nil, fmt.Errorf("%w: local frame %d update %d point id %d >= %d",
				errs.ErrIndexOutOfRange, local, u, id, r.hdr.PointCount)
		}
		if uint32(label) >= r.hdr.EntryCount {
			return nil, fmt.Errorf("%w: local frame %d update %d label %d >= %d",
				errs.ErrIndexOutOfRange, local, u, label, r.hdr.EntryCount)
		}
		if int64(id) <= prevID {
			return nil, fmt.Errorf("%w: local frame %d update %d point id %d after %d",
				errs.ErrNonMonotonicID, local, u, id, prevID)
		}

		prevID = int64(id)
		r.labels[id] = label
	}
	r.updates += int(count)

	r.local = local

	return r.labels, nil
}

// Replay decodes a whole segment and returns the label map of every frame,
// base frame first.
func Replay(stream []byte, base []uint16) ([][]uint16, error) {
	r, err := NewReader(stream, base)
	if err != nil {
		return nil, err
	}

	frames := make([][]uint16, 0, r.hdr.FrameCount)
	frames = append(frames, append([]uint16(nil), r.labels...))

	for {
		labels, err := r.Next()
		if errors.Is(err, io.EOF) {
			return frames, nil
		}
		if err != nil {
			return nil, err
		}
		frames = append(frames, append([]uint16(nil), labels...))
	}
}
