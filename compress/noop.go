package compress

import "github.com/arloliu/sog4d/format"

// NoOpCompressor keeps frame records uncompressed.
//
// It is the default frame cache codec: records are returned as-is, without
// copying, so callers must not mutate the input after compressing it.
type NoOpCompressor struct{}

var _ Codec = (*NoOpCompressor)(nil)

// NewNoOpCompressor creates a new no-operation codec.
func NewNoOpCompressor() NoOpCompressor {
	return NoOpCompressor{}
}

// Type returns format.CompressionNone.
func (c NoOpCompressor) Type() format.CompressionType {
	return format.CompressionNone
}

// Compress returns data unchanged.
func (c NoOpCompressor) Compress(data []byte) ([]byte, error) {
	return data, nil
}

// Decompress returns data unchanged after checking its length.
func (c NoOpCompressor) Decompress(data []byte, rawSize int) ([]byte, error) {
	if err := checkSize("noop", len(data), rawSize); err != nil {
		return nil, err
	}

	return data, nil
}
