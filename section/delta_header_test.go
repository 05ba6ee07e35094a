package section

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/sog4d/errs"
)

func TestDeltaHeader_Bytes(t *testing.T) {
	h := NewDeltaHeader(50, 25, 1000, 8192)
	data := h.Bytes()

	require.Len(t, data, DeltaHeaderSize)
	require.Equal(t, []byte("SOG4DLB1"), data[:8])
	require.Equal(t, uint32(1), binary.LittleEndian.Uint32(data[8:12]))
	require.Equal(t, uint32(50), binary.LittleEndian.Uint32(data[12:16]))
	require.Equal(t, uint32(25), binary.LittleEndian.Uint32(data[16:20]))
	require.Equal(t, uint32(1000), binary.LittleEndian.Uint32(data[20:24]))
	require.Equal(t, uint32(8192), binary.LittleEndian.Uint32(data[24:28]))
}

func TestDeltaHeader_Parse(t *testing.T) {
	t.Run("valid header", func(t *testing.T) {
		original := NewDeltaHeader(0, 2, 4, 2)

		var parsed DeltaHeader
		require.NoError(t, parsed.Parse(original.Bytes()))
		require.Equal(t, original, parsed)
	})

	t.Run("invalid size", func(t *testing.T) {
		var h DeltaHeader
		require.ErrorIs(t, h.Parse([]byte{1, 2, 3}), errs.ErrInvalidHeaderSize)
	})

	t.Run("invalid magic", func(t *testing.T) {
		data := NewDeltaHeader(0, 2, 4, 2).Bytes()
		data[0] = 'X'

		var h DeltaHeader
		require.ErrorIs(t, h.Parse(data), errs.ErrInvalidMagic)
	})

	t.Run("invalid version", func(t *testing.T) {
		data := NewDeltaHeader(0, 2, 4, 2).Bytes()
		binary.LittleEndian.PutUint32(data[8:12], 2)

		var h DeltaHeader
		require.ErrorIs(t, h.Parse(data), errs.ErrInvalidVersion)
	})

	t.Run("zero frame count", func(t *testing.T) {
		var h DeltaHeader
		require.ErrorIs(t, h.Parse(NewDeltaHeader(0, 0, 4, 2).Bytes()), errs.ErrHeaderMismatch)
	})

	t.Run("entry count out of range", func(t *testing.T) {
		var h DeltaHeader
		require.ErrorIs(t, h.Parse(NewDeltaHeader(0, 1, 4, 0).Bytes()), errs.ErrHeaderMismatch)
		require.ErrorIs(t, h.Parse(NewDeltaHeader(0, 1, 4, 65536).Bytes()), errs.ErrHeaderMismatch)
	})
}

func TestDeltaHeader_Match(t *testing.T) {
	want := NewDeltaHeader(2, 1, 4, 2)

	require.NoError(t, want.Match(want))

	err := NewDeltaHeader(3, 1, 4, 2).Match(want)
	require.ErrorIs(t, err, errs.ErrHeaderMismatch)
	require.Contains(t, err.Error(), "startFrame is 3, expected 2")

	err = NewDeltaHeader(2, 1, 5, 2).Match(want)
	require.Contains(t, err.Error(), "splatCount")
}

func TestParseDeltaHeader(t *testing.T) {
	data := append(NewDeltaHeader(0, 3, 10, 16).Bytes(), 0, 0, 0, 0)

	h, err := ParseDeltaHeader(data)
	require.NoError(t, err)
	require.Equal(t, uint32(3), h.FrameCount)

	_, err = ParseDeltaHeader(data[:DeltaHeaderSize-1])
	require.ErrorIs(t, err, errs.ErrInvalidHeaderSize)
}

func TestIsDeltaStream(t *testing.T) {
	require.True(t, IsDeltaStream(NewDeltaHeader(0, 1, 1, 1).Bytes()))
	require.False(t, IsDeltaStream([]byte("SOG4D")))
	require.False(t, IsDeltaStream(nil))
}
