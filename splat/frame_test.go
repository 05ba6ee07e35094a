package splat

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/sog4d/errs"
)

func TestBandsForRestCoeffs(t *testing.T) {
	for coeffs, bands := range map[int]int{0: 0, 3: 1, 8: 2, 15: 3} {
		got, err := BandsForRestCoeffs(coeffs)
		require.NoError(t, err)
		require.Equal(t, bands, got)
	}

	for _, coeffs := range []int{1, 5, 9, 24} {
		_, err := BandsForRestCoeffs(coeffs)
		require.ErrorIs(t, err, errs.ErrInvalidBands)
	}
}

func TestFrame_Rest(t *testing.T) {
	f := NewFrame(2, 8)
	for i := range f.Rest {
		f.Rest[i] = float32(i)
	}
	require.NoError(t, f.Validate())

	bands, err := f.Bands()
	require.NoError(t, err)
	require.Equal(t, 2, bands)

	require.Equal(t, float32(24), f.RestAt(1)[0])

	band2 := f.RestSlice(3, 8)
	require.Len(t, band2, 2*5*3)
	require.Equal(t, float32(9), band2[0])
	require.Equal(t, float32(24+9), band2[15])

	f.DropRest()
	require.Equal(t, 0, f.RestCoeffs)
	require.NoError(t, f.Validate())
}

func TestFrame_Validate(t *testing.T) {
	f := NewFrame(3, 0)
	f.Rotation = f.Rotation[:8]
	require.ErrorIs(t, f.Validate(), errs.ErrInvalidInput)

	f = NewFrame(3, 3)
	f.Rest = append(f.Rest, 1)
	require.ErrorIs(t, f.Validate(), errs.ErrInvalidInput)
}

func TestMarshalFrame(t *testing.T) {
	f := NewFrame(3, 3)
	for i := range f.Positions {
		f.Positions[i] = float32(i) - 1.5
	}
	for i := range f.Rest {
		f.Rest[i] = float32(i) * 0.01
	}
	f.Opacity[2] = -4

	got, err := UnmarshalFrame(MarshalFrame(f))
	require.NoError(t, err)
	require.Equal(t, f, got)

	data := MarshalFrame(f)
	_, err = UnmarshalFrame(data[:len(data)-1])
	require.ErrorIs(t, err, errs.ErrTruncated)
	_, err = UnmarshalFrame(data[:4])
	require.ErrorIs(t, err, errs.ErrTruncated)

	data[4] = 5
	_, err = UnmarshalFrame(data)
	require.ErrorIs(t, err, errs.ErrInvalidBands)
}
