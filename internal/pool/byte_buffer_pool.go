package pool

import (
	"io"
	"sync"

	"github.com/arloliu/sog4d/endian"
)

var engine = endian.GetLittleEndianEngine()

const (
	// DeltaBufferDefaultSize is the initial capacity of a delta stream buffer.
	DeltaBufferDefaultSize = 1024 * 64 // 64KiB
	// DeltaBufferMaxThreshold is the largest buffer returned to the pool.
	DeltaBufferMaxThreshold = 1024 * 1024 * 16 // 16MiB
	// PlaneBufferDefaultSize is the initial capacity of an RGBA plane buffer.
	PlaneBufferDefaultSize = 1024 * 256 // 256KiB
	// PlaneBufferMaxThreshold is the largest plane buffer returned to the pool.
	PlaneBufferMaxThreshold = 1024 * 1024 * 64 // 64MiB
)

// ByteBuffer is an append-only byte slice wrapper with little-endian helpers.
type ByteBuffer struct {
	// B is the underlying byte slice.
	B []byte
}

// NewByteBuffer creates a new ByteBuffer with the specified capacity.
func NewByteBuffer(defaultSize int) *ByteBuffer {
	return &ByteBuffer{
		B: make([]byte, 0, defaultSize),
	}
}

// Bytes returns the underlying byte slice.
func (bb *ByteBuffer) Bytes() []byte {
	return bb.B
}

// Reset empties the buffer but keeps its capacity.
func (bb *ByteBuffer) Reset() {
	bb.B = bb.B[:0]
}

// Len returns the length of the buffer.
func (bb *ByteBuffer) Len() int {
	return len(bb.B)
}

// Cap returns the capacity of the buffer.
func (bb *ByteBuffer) Cap() int {
	return cap(bb.B)
}

// Grow ensures room for n more bytes.
//
// Small buffers grow by DeltaBufferDefaultSize, larger ones by 25% of their
// capacity, and never by less than n.
func (bb *ByteBuffer) Grow(n int) {
	if cap(bb.B)-len(bb.B) >= n {
		return
	}

	growBy := DeltaBufferDefaultSize
	if cap(bb.B) > 4*DeltaBufferDefaultSize {
		growBy = cap(bb.B) / 4
	}
	if growBy < n {
		growBy = n
	}

	newBuf := make([]byte, len(bb.B), len(bb.B)+growBy)
	copy(newBuf, bb.B)
	bb.B = newBuf
}

// Write appends data to the buffer. It never fails.
func (bb *ByteBuffer) Write(data []byte) (int, error) {
	bb.B = append(bb.B, data...)
	return len(data), nil
}

// AppendUint32 appends v in little-endian order.
func (bb *ByteBuffer) AppendUint32(v uint32) {
	bb.B = engine.AppendUint32(bb.B, v)
}

// AppendUint16 appends v in little-endian order.
func (bb *ByteBuffer) AppendUint16(v uint16) {
	bb.B = engine.AppendUint16(bb.B, v)
}

// PutUint32At overwrites four bytes at offset with v in little-endian order.
// Panics if the range is outside the buffer length.
func (bb *ByteBuffer) PutUint32At(offset int, v uint32) {
	engine.PutUint32(bb.B[offset:offset+4], v)
}

// WriteTo writes the contents of the buffer to w.
func (bb *ByteBuffer) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(bb.B)
	return int64(n), err
}

// Clone returns a copy of the buffered bytes that outlives the buffer.
func (bb *ByteBuffer) Clone() []byte {
	out := make([]byte, len(bb.B))
	copy(out, bb.B)

	return out
}

// ByteBufferPool is a sync.Pool of ByteBuffers that drops oversized buffers
// instead of retaining them.
type ByteBufferPool struct {
	pool         sync.Pool
	maxThreshold int
}

// NewByteBufferPool creates a pool of buffers with the given initial capacity.
// Buffers larger than maxThreshold are discarded on Put; zero disables the limit.
func NewByteBufferPool(defaultSize int, maxThreshold int) *ByteBufferPool {
	return &ByteBufferPool{
		pool: sync.Pool{
			New: func() any {
				return NewByteBuffer(defaultSize)
			},
		},
		maxThreshold: maxThreshold,
	}
}

// Get retrieves a ByteBuffer from the pool.
func (bbp *ByteBufferPool) Get() *ByteBuffer {
	bb, _ := bbp.pool.Get().(*ByteBuffer)
	return bb
}

// Put returns a ByteBuffer to the pool.
func (bbp *ByteBufferPool) Put(bb *ByteBuffer) {
	if bb == nil {
		return
	}

	if bbp.maxThreshold > 0 && cap(bb.B) > bbp.maxThreshold {
		return
	}

	bb.Reset()
	bbp.pool.Put(bb)
}

var (
	deltaPool = NewByteBufferPool(DeltaBufferDefaultSize, DeltaBufferMaxThreshold)
	planePool = NewByteBufferPool(PlaneBufferDefaultSize, PlaneBufferMaxThreshold)
)

// GetDeltaBuffer retrieves a buffer for one delta stream.
func GetDeltaBuffer() *ByteBuffer {
	return deltaPool.Get()
}

// PutDeltaBuffer returns a delta stream buffer to the pool.
func PutDeltaBuffer(bb *ByteBuffer) {
	deltaPool.Put(bb)
}

// GetPlaneBuffer retrieves a zero-length buffer for RGBA plane pixels.
func GetPlaneBuffer() *ByteBuffer {
	return planePool.Get()
}

// PutPlaneBuffer returns a plane buffer to the pool.
func PutPlaneBuffer(bb *ByteBuffer) {
	planePool.Put(bb)
}
