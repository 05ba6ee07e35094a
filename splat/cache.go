package splat

import (
	"fmt"
	"math"
	"sync"

	"github.com/arloliu/sog4d/compress"
	"github.com/arloliu/sog4d/endian"
	"github.com/arloliu/sog4d/errs"
	"github.com/arloliu/sog4d/format"
)

// engine is the byte order of cache records and exported PLY files.
var engine = endian.GetLittleEndianEngine()

// frameRecordHeader is count and rest coefficient count, two u32.
const frameRecordHeader = 8

type cachedFrame struct {
	data    []byte
	rawSize int
}

// frameCache holds compressed frame records keyed by frame index.
type frameCache struct {
	mu         sync.Mutex
	codec      compress.Codec
	frames     map[int]cachedFrame
	raw        int64
	compressed int64
}

func newFrameCache(typ format.CompressionType) (*frameCache, error) {
	codec, err := compress.CreateCodec(typ, "frame cache")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidMode, err)
	}

	return &frameCache{codec: codec, frames: make(map[int]cachedFrame)}, nil
}

func (c *frameCache) put(i int, f *Frame) error {
	raw := MarshalFrame(f)
	data, err := c.codec.Compress(raw)
	if err != nil {
		return fmt.Errorf("cache frame %d: %w", i, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.frames[i]; ok {
		c.raw -= int64(old.rawSize)
		c.compressed -= int64(len(old.data))
	}
	c.frames[i] = cachedFrame{data: data, rawSize: len(raw)}
	c.raw += int64(len(raw))
	c.compressed += int64(len(data))

	return nil
}

func (c *frameCache) get(i int) (*Frame, bool, error) {
	c.mu.Lock()
	entry, ok := c.frames[i]
	c.mu.Unlock()
	if !ok {
		return nil, false, nil
	}

	raw, err := c.codec.Decompress(entry.data, entry.rawSize)
	if err != nil {
		return nil, false, fmt.Errorf("cached frame %d: %w", i, err)
	}
	f, err := UnmarshalFrame(raw)
	if err != nil {
		return nil, false, fmt.Errorf("cached frame %d: %w", i, err)
	}

	return f, true, nil
}

func (c *frameCache) stats() (int, int64, int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.frames), c.raw, c.compressed
}

// MarshalFrame serializes f as a flat little-endian record: point count and
// rest coefficient count as u32, then every attribute slice as f32 in
// Frame field order.
func MarshalFrame(f *Frame) []byte {
	n := len(f.Positions) + len(f.DC) + len(f.Opacity) + len(f.Scale) + len(f.Rotation) + len(f.Rest)
	out := make([]byte, 0, frameRecordHeader+n*4)
	out = engine.AppendUint32(out, uint32(f.Count))
	out = engine.AppendUint32(out, uint32(f.RestCoeffs))

	for _, s := range [][]float32{f.Positions, f.DC, f.Opacity, f.Scale, f.Rotation, f.Rest} {
		for _, v := range s {
			out = engine.AppendUint32(out, math.Float32bits(v))
		}
	}

	return out
}

// UnmarshalFrame parses a record written by MarshalFrame.
func UnmarshalFrame(data []byte) (*Frame, error) {
	if len(data) < frameRecordHeader {
		return nil, fmt.Errorf("%w: frame record of %d bytes", errs.ErrTruncated, len(data))
	}

	count := int(engine.Uint32(data))
	coeffs := int(engine.Uint32(data[4:]))
	if _, err := BandsForRestCoeffs(coeffs); err != nil {
		return nil, err
	}

	want := frameRecordHeader + 4*count*(3+3+1+3+4+coeffs*3)
	if len(data) != want {
		return nil, fmt.Errorf("%w: frame record is %d bytes, expected %d", errs.ErrTruncated, len(data), want)
	}
	f := NewFrame(count, coeffs)

	off := frameRecordHeader
	for _, s := range [][]float32{f.Positions, f.DC, f.Opacity, f.Scale, f.Rotation, f.Rest} {
		for j := range s {
			s[j] = math.Float32frombits(engine.Uint32(data[off:]))
			off += 4
		}
	}

	return f, nil
}
