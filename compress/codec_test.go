package compress

import (
	"bytes"
	"encoding/binary"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/sog4d/format"
)

func getAllCodecs() map[string]Codec {
	return map[string]Codec{
		"NoOp": NewNoOpCompressor(),
		"LZ4":  NewLZ4Compressor(),
		"S2":   NewS2Compressor(),
		"Zstd": NewZstdCompressor(),
	}
}

// frameRecord mimics a serialized frame: slowly drifting float32 positions.
func frameRecord(points int) []byte {
	buf := make([]byte, 0, points*12)
	for i := range points {
		for axis := range 3 {
			v := float32(math.Sin(float64(i)*0.01+float64(axis))) * 2.5
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
		}
	}

	return buf
}

func TestCreateCodec(t *testing.T) {
	for _, ct := range []format.CompressionType{
		format.CompressionNone, format.CompressionZstd, format.CompressionS2, format.CompressionLZ4,
	} {
		t.Run(ct.String(), func(t *testing.T) {
			codec, err := CreateCodec(ct, "frame cache")
			require.NoError(t, err)
			require.Equal(t, ct, codec.Type())
		})
	}

	t.Run("invalid", func(t *testing.T) {
		_, err := CreateCodec(format.CompressionType(0xFF), "frame cache")
		require.Error(t, err)
		require.Contains(t, err.Error(), "frame cache")
	})
}

func TestAllCodecs_EmptyData(t *testing.T) {
	for name, codec := range getAllCodecs() {
		t.Run(name, func(t *testing.T) {
			compressed, err := codec.Compress(nil)
			require.NoError(t, err)
			require.Empty(t, compressed)

			decompressed, err := codec.Decompress(compressed, 0)
			require.NoError(t, err)
			require.Empty(t, decompressed)
		})
	}
}

func TestAllCodecs_RoundTrip(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{name: "single_byte", data: []byte{0x42}},
		{name: "short_incompressible", data: []byte{0x00, 0x9F, 0x13, 0xFE, 0x71, 0x02, 0xC4}},
		{name: "repeated_pattern", data: bytes.Repeat([]byte("ABCD"), 100)},
		{name: "frame_record", data: frameRecord(4096)},
		{name: "zeros", data: make([]byte, 1024*1024)},
	}

	for codecName, codec := range getAllCodecs() {
		t.Run(codecName, func(t *testing.T) {
			for _, tc := range testCases {
				t.Run(tc.name, func(t *testing.T) {
					compressed, err := codec.Compress(tc.data)
					require.NoError(t, err)
					require.NotEmpty(t, compressed)

					t.Logf("raw %d bytes, compressed %d bytes, ratio %.3f",
						len(tc.data), len(compressed), Ratio(len(tc.data), len(compressed)))

					decompressed, err := codec.Decompress(compressed, len(tc.data))
					require.NoError(t, err)
					require.Equal(t, tc.data, decompressed)
				})
			}
		})
	}
}

func TestAllCodecs_SizeMismatch(t *testing.T) {
	data := frameRecord(64)

	for name, codec := range getAllCodecs() {
		t.Run(name, func(t *testing.T) {
			compressed, err := codec.Compress(data)
			require.NoError(t, err)

			_, err = codec.Decompress(compressed, len(data)+1)
			require.Error(t, err)
		})
	}
}

func TestAllCodecs_InvalidData(t *testing.T) {
	invalid := []byte("this is not compressed data")

	for name, codec := range getAllCodecs() {
		if name == "NoOp" {
			continue
		}
		t.Run(name, func(t *testing.T) {
			_, err := codec.Decompress(invalid, 4096)
			require.Error(t, err)
		})
	}
}

func TestAllCodecs_ConcurrentUsage(t *testing.T) {
	const numGoroutines = 16
	data := frameRecord(512)

	for name, codec := range getAllCodecs() {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			errCh := make(chan error, numGoroutines)

			for range numGoroutines {
				wg.Add(1)
				go func() {
					defer wg.Done()
					compressed, err := codec.Compress(data)
					if err != nil {
						errCh <- err
						return
					}
					out, err := codec.Decompress(compressed, len(data))
					if err != nil {
						errCh <- err
						return
					}
					if !bytes.Equal(out, data) {
						errCh <- bytes.ErrTooLarge
					}
				}()
			}
			wg.Wait()
			close(errCh)

			for err := range errCh {
				require.NoError(t, err)
			}
		})
	}
}

func TestLiteralBlock(t *testing.T) {
	for _, n := range []int{1, 14, 15, 16, 269, 270, 600} {
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(i*131 + 7)
		}

		out, err := NewLZ4Compressor().Decompress(literalBlock(data), n)
		require.NoError(t, err, "n=%d", n)
		require.Equal(t, data, out, "n=%d", n)
	}
}

func TestRatio(t *testing.T) {
	require.InDelta(t, 0.0, Ratio(0, 10), 1e-12)
	require.InDelta(t, 0.25, Ratio(100, 25), 1e-12)
}
