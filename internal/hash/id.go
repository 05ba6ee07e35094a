package hash

import (
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/arloliu/sog4d/endian"
)

// Checksum computes the xxHash64 of data.
func Checksum(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// ChecksumHex returns Checksum formatted as 16 lowercase hex digits, the
// form stored in the manifest.
func ChecksumHex(data []byte) string {
	return fmt.Sprintf("%016x", Checksum(data))
}

// Vector hashes the little-endian bit patterns of a float32 vector.
// Vectors that compare equal hash equally; -0 is hashed as +0.
func Vector(v []float32) uint64 {
	engine := endian.GetLittleEndianEngine()
	d := xxhash.New()
	var b [4]byte
	for _, f := range v {
		if f == 0 {
			f = 0
		}
		engine.PutUint32(b[:], math.Float32bits(f))
		_, _ = d.Write(b[:])
	}

	return d.Sum64()
}
