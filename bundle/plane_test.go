package bundle

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/sog4d/errs"
)

func TestPackU16(t *testing.T) {
	values := []uint16{0, 1, 0x1234, 0xFFFF, 300}
	p, err := PackU16(values, 3, 2)
	require.NoError(t, err)

	require.Equal(t, []byte{0x34, 0x12, 0, 255}, p.Texel(2))
	require.Equal(t, []byte{0, 0, 0, 0}, p.Texel(5), "padding texel stays zero")

	got, err := UnpackU16(p, len(values))
	require.NoError(t, err)
	require.Equal(t, values, got)

	_, err = PackU16(make([]uint16, 7), 3, 2)
	require.ErrorIs(t, err, errs.ErrPlaneShape)
	_, err = UnpackU16(p, 7)
	require.ErrorIs(t, err, errs.ErrPlaneShape)
}

func TestPackTriplesAndQuads(t *testing.T) {
	p, err := PackTriples([]uint8{1, 2, 3, 4, 5, 6}, []uint8{7, 8}, 2, 2)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 7, 4, 5, 6, 8, 0, 0, 0, 0, 0, 0, 0, 0}, p.Pix)

	p, err = PackTriples([]uint8{1, 2, 3}, nil, 1, 1)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 255}, p.Pix)

	_, err = PackTriples([]uint8{1, 2, 3}, []uint8{1, 2}, 2, 2)
	require.ErrorIs(t, err, errs.ErrInvalidInput)

	q, err := PackQuads([]uint8{9, 8, 7, 6}, 2, 1)
	require.NoError(t, err)
	require.Equal(t, []byte{9, 8, 7, 6, 0, 0, 0, 0}, q.Pix)

	_, err = PackQuads([]uint8{1, 2, 3}, 2, 1)
	require.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestPNGRoundTrip(t *testing.T) {
	t.Run("with transparent texels", func(t *testing.T) {
		p := NewPlane(5, 3)
		for i := range p.Pix {
			p.Pix[i] = uint8(i * 37)
		}
		// colors under zero alpha must survive
		copy(p.Texel(4), []byte{200, 100, 50, 0})

		data, err := EncodePNG(p)
		require.NoError(t, err)
		got, err := DecodePNG(data)
		require.NoError(t, err)
		require.Equal(t, p, got)
	})

	t.Run("opaque", func(t *testing.T) {
		p, err := PackTriples([]uint8{1, 2, 3, 250, 251, 252}, nil, 2, 1)
		require.NoError(t, err)

		data, err := EncodePNG(p)
		require.NoError(t, err)
		got, err := DecodePNG(data)
		require.NoError(t, err)
		require.Equal(t, p, got)
	})

	t.Run("foreign color model", func(t *testing.T) {
		img := image.NewGray(image.Rect(0, 0, 2, 1))
		img.SetGray(0, 0, color.Gray{Y: 9})
		img.SetGray(1, 0, color.Gray{Y: 200})
		var buf bytes.Buffer
		require.NoError(t, png.Encode(&buf, img))

		got, err := DecodePNG(buf.Bytes())
		require.NoError(t, err)
		require.Equal(t, []byte{9, 9, 9, 255, 200, 200, 200, 255}, got.Pix)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := DecodePNG([]byte("nope"))
		require.ErrorIs(t, err, errs.ErrPlaneDecode)
	})
}

func TestPlane_CheckShape(t *testing.T) {
	p := NewPlane(4, 2)
	require.Equal(t, 8, p.Texels())
	require.NoError(t, p.CheckShape(4, 2))
	require.ErrorIs(t, p.CheckShape(2, 4), errs.ErrPlaneShape)
}
