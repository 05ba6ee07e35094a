package delta

import (
	"fmt"

	"github.com/arloliu/sog4d/errs"
)

// Segment is a contiguous run of frames sharing one base snapshot and one
// delta stream.
type Segment struct {
	// StartFrame is the first frame of the segment.
	StartFrame int `json:"startFrame"`
	// FrameCount is the number of frames, base frame included.
	FrameCount int `json:"frameCount"`
	// BaseLabelsPath is the archive path of the base snapshot plane.
	BaseLabelsPath string `json:"baseLabelsPath"`
	// DeltaPath is the archive path of the delta stream.
	DeltaPath string `json:"deltaPath"`
}

// EndFrame returns the first frame after the segment.
func (s Segment) EndFrame() int {
	return s.StartFrame + s.FrameCount
}

// Contains reports whether frame belongs to the segment.
func (s Segment) Contains(frame int) bool {
	return frame >= s.StartFrame && frame < s.EndFrame()
}

// BuildSegments splits [0, frameCount) into segments of segLen frames; the
// last segment holds the remainder.
//
// Paths are derived from the segment start frame:
//
//	baseLabelsPath = frames/<start %05d>/<baseName>
//	deltaPath      = <deltaPrefix><start %05d>.bin
//
// Parameters:
//   - frameCount: Number of frames in the sequence
//   - segLen: Maximum number of frames per segment, must be positive
//   - baseName: File name of the base snapshot plane
//   - deltaPrefix: Path prefix of the delta streams
//
// Returns:
//   - []Segment: Segments in frame order
//   - error: ErrInvalidInput for a non-positive segLen or negative frameCount
func BuildSegments(frameCount, segLen int, baseName, deltaPrefix string) ([]Segment, error) {
	if segLen <= 0 {
		return nil, fmt.Errorf("%w: delta segment length must be > 0, got %d", errs.ErrInvalidInput, segLen)
	}
	if frameCount < 0 {
		return nil, fmt.Errorf("%w: negative frame count %d", errs.ErrInvalidInput, frameCount)
	}

	segs := make([]Segment, 0, (frameCount+segLen-1)/segLen)
	for start := 0; start < frameCount; start += segLen {
		segs = append(segs, Segment{
			StartFrame:     start,
			FrameCount:     min(segLen, frameCount-start),
			BaseLabelsPath: fmt.Sprintf("frames/%05d/%s", start, baseName),
			DeltaPath:      fmt.Sprintf("%s%05d.bin", deltaPrefix, start),
		})
	}

	return segs, nil
}

// CheckPartition verifies that segs cover [0, frameCount) in order with no
// gap and no overlap.
func CheckPartition(segs []Segment, frameCount int) error {
	if len(segs) == 0 {
		return fmt.Errorf("%w: no delta segments", errs.ErrSegmentGap)
	}

	next := 0
	for i, seg := range segs {
		if seg.StartFrame != next {
			return fmt.Errorf("%w: segment %d starts at frame %d, expected %d",
				errs.ErrSegmentGap, i, seg.StartFrame, next)
		}
		if seg.FrameCount <= 0 {
			return fmt.Errorf("%w: segment %d has frame count %d", errs.ErrSegmentGap, i, seg.FrameCount)
		}
		next = seg.EndFrame()
	}

	if next != frameCount {
		return fmt.Errorf("%w: segments cover %d frames, expected %d", errs.ErrSegmentGap, next, frameCount)
	}

	return nil
}
