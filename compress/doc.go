// Package compress provides the codecs used by the in-memory frame cache.
//
// Packing reads every frame twice: once to gather value ranges and codebook
// samples, and once to assign palette indices. Re-parsing point-cloud files
// on the second pass is the slowest part of a run on large sequences, so
// splat.DirSource can keep each decoded frame as a serialized record
// compressed with one of these codecs:
//
//   - None: records are held as-is (fastest, largest)
//   - Zstd: best ratio, slowest; useful for long sequences that would not fit in memory otherwise
//   - S2: balanced speed and ratio
//   - LZ4: fastest decompression
//
// Every codec implements Codec:
//
//	codec, err := compress.CreateCodec(format.CompressionS2, "frame cache")
//	if err != nil {
//	    return err
//	}
//	packed, err := codec.Compress(record)
//	restored, err := codec.Decompress(packed, len(record))
//
// The raw record length is passed to Decompress because the cache always
// knows it; a mismatch is reported as an error instead of silently returning
// a short record.
//
// All codecs are stateless values that are safe for concurrent use. The zstd
// and lz4 codecs pool their internal encoders.
package compress
