package delta

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/sog4d/errs"
)

func TestBuildSegments(t *testing.T) {
	t.Run("remainder segment", func(t *testing.T) {
		segs, err := BuildSegments(5, 2, "shN_labels.png", "sh/delta_")
		require.NoError(t, err)
		require.Equal(t, []Segment{
			{StartFrame: 0, FrameCount: 2, BaseLabelsPath: "frames/00000/shN_labels.png", DeltaPath: "sh/delta_00000.bin"},
			{StartFrame: 2, FrameCount: 2, BaseLabelsPath: "frames/00002/shN_labels.png", DeltaPath: "sh/delta_00002.bin"},
			{StartFrame: 4, FrameCount: 1, BaseLabelsPath: "frames/00004/shN_labels.png", DeltaPath: "sh/delta_00004.bin"},
		}, segs)
		require.NoError(t, CheckPartition(segs, 5))
	})

	t.Run("partition property", func(t *testing.T) {
		for frames := 1; frames <= 40; frames++ {
			for segLen := 1; segLen <= 12; segLen++ {
				segs, err := BuildSegments(frames, segLen, "b.png", "d_")
				require.NoError(t, err)
				require.Equal(t, 0, segs[0].StartFrame)
				for i := 1; i < len(segs); i++ {
					require.Equal(t, segs[i-1].EndFrame(), segs[i].StartFrame)
				}
				require.Equal(t, frames, segs[len(segs)-1].EndFrame())
				require.NoError(t, CheckPartition(segs, frames))
			}
		}
	})

	t.Run("invalid length", func(t *testing.T) {
		_, err := BuildSegments(5, 0, "b", "d")
		require.ErrorIs(t, err, errs.ErrInvalidInput)
	})

	t.Run("no frames", func(t *testing.T) {
		segs, err := BuildSegments(0, 4, "b", "d")
		require.NoError(t, err)
		require.Empty(t, segs)
	})
}

func TestSegment_Contains(t *testing.T) {
	seg := Segment{StartFrame: 4, FrameCount: 3}
	require.False(t, seg.Contains(3))
	require.True(t, seg.Contains(4))
	require.True(t, seg.Contains(6))
	require.False(t, seg.Contains(7))
}

func TestCheckPartition(t *testing.T) {
	tests := []struct {
		name   string
		segs   []Segment
		frames int
	}{
		{"empty", nil, 3},
		{"not starting at zero", []Segment{{StartFrame: 1, FrameCount: 2}}, 3},
		{"gap", []Segment{{StartFrame: 0, FrameCount: 1}, {StartFrame: 2, FrameCount: 1}}, 3},
		{"overlap", []Segment{{StartFrame: 0, FrameCount: 2}, {StartFrame: 1, FrameCount: 2}}, 3},
		{"zero length", []Segment{{StartFrame: 0, FrameCount: 0}, {StartFrame: 0, FrameCount: 3}}, 3},
		{"short", []Segment{{StartFrame: 0, FrameCount: 2}}, 3},
		{"long", []Segment{{StartFrame: 0, FrameCount: 4}}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, CheckPartition(tt.segs, tt.frames), errs.ErrSegmentGap)
		})
	}
}
