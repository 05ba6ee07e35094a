package bundle

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"

	"github.com/arloliu/sog4d/errs"
	"github.com/arloliu/sog4d/internal/pool"
)

// Plane is a row-major RGBA8 byte plane. Texel i holds point i; texels past
// the point count are all zero.
type Plane struct {
	Width  int
	Height int
	// Pix holds Width*Height*4 bytes, RGBA per texel.
	Pix []byte
}

// NewPlane allocates a zeroed plane.
func NewPlane(width, height int) *Plane {
	return &Plane{Width: width, Height: height, Pix: make([]byte, width*height*4)}
}

// Texels returns the texel count.
func (p *Plane) Texels() int {
	return p.Width * p.Height
}

// Texel returns the 4 bytes of texel i. The slice aliases the plane.
func (p *Plane) Texel(i int) []byte {
	return p.Pix[i*4 : i*4+4]
}

// CheckShape verifies the plane is width x height.
func (p *Plane) CheckShape(width, height int) error {
	if p.Width != width || p.Height != height || len(p.Pix) != width*height*4 {
		return fmt.Errorf("%w: got %dx%d, expected %dx%d", errs.ErrPlaneShape, p.Width, p.Height, width, height)
	}

	return nil
}

func checkCapacity(n, width, height int) error {
	if n > width*height {
		return fmt.Errorf("%w: %d points do not fit a %dx%d plane", errs.ErrPlaneShape, n, width, height)
	}

	return nil
}

// PackU16 stores one 16-bit value per texel: R = low byte, G = high byte,
// B = 0, A = 255.
func PackU16(values []uint16, width, height int) (*Plane, error) {
	if err := checkCapacity(len(values), width, height); err != nil {
		return nil, err
	}

	p := NewPlane(width, height)
	for i, v := range values {
		px := p.Texel(i)
		px[0] = uint8(v)
		px[1] = uint8(v >> 8)
		px[3] = 255
	}

	return p, nil
}

// UnpackU16 reads n 16-bit values stored by PackU16.
func UnpackU16(p *Plane, n int) ([]uint16, error) {
	if err := checkCapacity(n, p.Width, p.Height); err != nil {
		return nil, err
	}

	out := make([]uint16, n)
	for i := range out {
		px := p.Texel(i)
		out[i] = uint16(px[0]) | uint16(px[1])<<8
	}

	return out, nil
}

// PackTriples stores 3 bytes per point in RGB. alpha supplies A per point;
// nil means 255.
func PackTriples(rgb []uint8, alpha []uint8, width, height int) (*Plane, error) {
	n := len(rgb) / 3
	if len(rgb)%3 != 0 || (alpha != nil && len(alpha) != n) {
		return nil, fmt.Errorf("%w: %d RGB bytes with %d alpha bytes", errs.ErrInvalidInput, len(rgb), len(alpha))
	}
	if err := checkCapacity(n, width, height); err != nil {
		return nil, err
	}

	p := NewPlane(width, height)
	for i := range n {
		px := p.Texel(i)
		copy(px[:3], rgb[i*3:i*3+3])
		if alpha != nil {
			px[3] = alpha[i]
		} else {
			px[3] = 255
		}
	}

	return p, nil
}

// PackQuads stores 4 bytes per point in RGBA.
func PackQuads(rgba []uint8, width, height int) (*Plane, error) {
	n := len(rgba) / 4
	if len(rgba)%4 != 0 {
		return nil, fmt.Errorf("%w: %d RGBA bytes", errs.ErrInvalidInput, len(rgba))
	}
	if err := checkCapacity(n, width, height); err != nil {
		return nil, err
	}

	p := NewPlane(width, height)
	copy(p.Pix, rgba)

	return p, nil
}

// pngBufferPool lets concurrent encoders share zlib state.
type pngBufferPool struct {
	p sync.Pool
}

func (bp *pngBufferPool) Get() *png.EncoderBuffer {
	b, _ := bp.p.Get().(*png.EncoderBuffer)
	return b
}

func (bp *pngBufferPool) Put(b *png.EncoderBuffer) {
	bp.p.Put(b)
}

var planeEncoder = &png.Encoder{BufferPool: &pngBufferPool{}}

// EncodePNG encodes the plane losslessly.
//
// The plane is written as non-premultiplied RGBA so every byte, including
// those of transparent texels, survives DecodePNG unchanged.
func EncodePNG(p *Plane) ([]byte, error) {
	img := &image.NRGBA{
		Pix:    p.Pix,
		Stride: p.Width * 4,
		Rect:   image.Rect(0, 0, p.Width, p.Height),
	}

	buf := pool.GetPlaneBuffer()
	defer pool.PutPlaneBuffer(buf)

	if err := planeEncoder.Encode(buf, img); err != nil {
		return nil, fmt.Errorf("encode plane: %w", err)
	}

	return buf.Clone(), nil
}

// DecodePNG decodes a plane written by EncodePNG.
func DecodePNG(data []byte) (*Plane, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrPlaneDecode, err)
	}

	b := img.Bounds()
	p := NewPlane(b.Dx(), b.Dy())

	if nrgba, ok := img.(*image.NRGBA); ok {
		for y := range p.Height {
			src := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+p.Width*4]
			copy(p.Pix[y*p.Width*4:], src)
		}

		return p, nil
	}

	// Opaque planes come back as RGB; any other color model is converted.
	for y := range p.Height {
		for x := range p.Width {
			c, _ := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			px := p.Texel(y*p.Width + x)
			px[0], px[1], px[2], px[3] = c.R, c.G, c.B, c.A
		}
	}

	return p, nil
}
