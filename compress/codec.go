package compress

import (
	"fmt"

	"github.com/arloliu/sog4d/format"
)

// Compressor compresses one serialized frame record.
type Compressor interface {
	// Compress returns the compressed form of data.
	//
	// The returned slice is owned by the caller. The input slice is not modified,
	// but the no-op codec returns it unchanged.
	Compress(data []byte) ([]byte, error)
}

// Decompressor restores a record produced by the matching Compressor.
type Decompressor interface {
	// Decompress restores data whose uncompressed length is rawSize.
	//
	// The frame cache always knows the raw record length, so implementations
	// allocate the output once and report a size mismatch as an error rather
	// than guessing a buffer size.
	Decompress(data []byte, rawSize int) ([]byte, error)
}

// Codec combines compression and decompression for one algorithm.
//
// Implementations are safe for concurrent use.
type Codec interface {
	Compressor
	Decompressor

	// Type returns the algorithm identifier of the codec.
	Type() format.CompressionType
}

// CreateCodec returns the Codec for compressionType.
//
// Parameters:
//   - compressionType: Type of compression (None, Zstd, S2, or LZ4)
//   - target: Description of target usage (for error messages)
//
// Returns:
//   - Codec: Codec instance for the specified type
//   - error: Invalid compression type error
func CreateCodec(compressionType format.CompressionType, target string) (Codec, error) {
	switch compressionType {
	case format.CompressionNone:
		return NewNoOpCompressor(), nil
	case format.CompressionZstd:
		return NewZstdCompressor(), nil
	case format.CompressionS2:
		return NewS2Compressor(), nil
	case format.CompressionLZ4:
		return NewLZ4Compressor(), nil
	default:
		return nil, fmt.Errorf("invalid %s compression: %s", target, compressionType)
	}
}

// Ratio returns compressed / raw, or 0 when raw is zero.
func Ratio(raw, compressed int) float64 {
	if raw == 0 {
		return 0
	}

	return float64(compressed) / float64(raw)
}

func checkSize(name string, got, want int) error {
	if got != want {
		return fmt.Errorf("%s decompression produced %d bytes, expected %d", name, got, want)
	}

	return nil
}
