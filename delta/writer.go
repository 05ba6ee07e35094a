package delta

import (
	"fmt"

	"github.com/arloliu/sog4d/errs"
	"github.com/arloliu/sog4d/internal/pool"
	"github.com/arloliu/sog4d/section"
)

// State is the state of a Writer.
type State uint8

const (
	// StateNoSegment means no segment is open; only Start is allowed.
	StateNoSegment State = iota
	// StateSegmentOpen means a segment is accumulating frames.
	StateSegmentOpen
)

func (s State) String() string {
	if s == StateSegmentOpen {
		return "segment-open"
	}

	return "no-segment"
}

// Writer builds the delta stream of one label channel, one segment at a time.
//
// A Writer is a two-state machine: Start opens a segment, Append consumes its
// frames in order and Flush closes it and returns the finished stream. Any
// call out of order fails with ErrSegmentState, and Flush fails with
// ErrSegmentIncomplete unless exactly FrameCount frames were appended.
//
// A Writer is not safe for concurrent use; each label channel owns one.
type Writer struct {
	pointCount int
	entryCount int

	state  State
	seg    Segment
	frames int
	prev   []uint16
	buf    *pool.ByteBuffer

	updates int
}

// NewWriter creates a Writer for label maps of pointCount labels, each
// strictly less than entryCount.
//
// Returns:
//   - *Writer: A writer in StateNoSegment
//   - error: ErrInvalidInput for a non-positive point count or an entry count outside [1, 65535]
func NewWriter(pointCount, entryCount int) (*Writer, error) {
	if pointCount <= 0 {
		return nil, fmt.Errorf("%w: point count must be > 0, got %d", errs.ErrInvalidInput, pointCount)
	}
	if entryCount <= 0 || entryCount > 65535 {
		return nil, fmt.Errorf("%w: entry count must be in [1, 65535], got %d", errs.ErrInvalidInput, entryCount)
	}

	return &Writer{
		pointCount: pointCount,
		entryCount: entryCount,
		prev:       make([]uint16, pointCount),
	}, nil
}

// State returns the current state.
func (w *Writer) State() State {
	return w.state
}

// Segment returns the open segment. It is only meaningful in StateSegmentOpen.
func (w *Writer) Segment() Segment {
	return w.seg
}

// Updates returns the total number of update records written since the
// Writer was created.
func (w *Writer) Updates() int {
	return w.updates
}

// Start opens seg and writes its stream header.
func (w *Writer) Start(seg Segment) error {
	if w.state != StateNoSegment {
		return fmt.Errorf("%w: start segment at frame %d while segment at frame %d is open",
			errs.ErrSegmentState, seg.StartFrame, w.seg.StartFrame)
	}
	if seg.FrameCount <= 0 || seg.StartFrame < 0 {
		return fmt.Errorf("%w: segment start %d frame count %d", errs.ErrInvalidInput, seg.StartFrame, seg.FrameCount)
	}

	if w.buf == nil {
		w.buf = pool.GetDeltaBuffer()
	}
	w.buf.Reset()

	hdr := section.NewDeltaHeader(seg.StartFrame, seg.FrameCount, w.pointCount, w.entryCount)
	w.buf.B = hdr.AppendTo(w.buf.B)

	w.seg = seg
	w.frames = 0
	w.state = StateSegmentOpen

	return nil
}

// Append consumes the label map of the next frame of the open segment.
//
// The first frame of a segment becomes the base snapshot and Append reports
// base == true; the caller must store labels as the segment's base plane.
// Every later frame appends one update block listing the points whose label
// differs from the previous frame, in ascending point order.
//
// Parameters:
//   - labels: One label per point, each strictly less than the entry count
//
// Returns:
//   - bool: Whether labels is the segment's base snapshot
//   - error: ErrSegmentState, ErrSegmentIncomplete, ErrLabelWidth or ErrIndexOutOfRange
func (w *Writer) Append(labels []uint16) (bool, error) {
	if w.state != StateSegmentOpen {
		return false, fmt.Errorf("%w: append without an open segment", errs.ErrSegmentState)
	}
	if w.frames >= w.seg.FrameCount {
		return false, fmt.Errorf("%w: segment at frame %d already has %d frames",
			errs.ErrSegmentIncomplete, w.seg.StartFrame, w.seg.FrameCount)
	}
	if len(labels) != w.pointCount {
		return false, fmt.Errorf("%w: frame %d has %d labels, expected %d",
			errs.ErrLabelWidth, w.seg.StartFrame+w.frames, len(labels), w.pointCount)
	}
	for i, l := range labels {
		if int(l) >= w.entryCount {
			return false, fmt.Errorf("%w: frame %d point %d label %d >= %d",
				errs.ErrIndexOutOfRange, w.seg.StartFrame+w.frames, i, l, w.entryCount)
		}
	}

	base := w.frames == 0
	if !base {
		countAt := w.buf.Len()
		w.buf.AppendUint32(0)

		changed := 0
		for i, l := range labels {
			if l == w.prev[i] {
				continue
			}
			w.buf.AppendUint32(uint32(i))
			w.buf.AppendUint16(l)
			w.buf.AppendUint16(0)
			changed++
		}

		w.buf.PutUint32At(countAt, uint32(changed))
		w.updates += changed
	}

	copy(w.prev, labels)
	w.frames++

	return base, nil
}

// Flush closes the open segment and returns its complete stream.
//
// The returned slice is owned by the caller.
func (w *Writer) Flush() ([]byte, error) {
	if w.state != StateSegmentOpen {
		return nil, fmt.Errorf("%w: flush without an open segment", errs.ErrSegmentState)
	}
	if w.frames != w.seg.FrameCount {
		return nil, fmt.Errorf("%w: segment at frame %d has %d of %d frames",
			errs.ErrSegmentIncomplete, w.seg.StartFrame, w.frames, w.seg.FrameCount)
	}

	out := w.buf.Clone()
	w.buf.Reset()
	w.state = StateNoSegment

	return out, nil
}

// Close releases the internal buffer. The Writer must not be used afterwards.
func (w *Writer) Close() {
	if w.buf != nil {
		pool.PutDeltaBuffer(w.buf)
		w.buf = nil
	}
	w.state = StateNoSegment
}
