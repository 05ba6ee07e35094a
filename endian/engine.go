// Package endian provides the byte orders used by sog4d's binary readers
// and writers.
//
// EndianEngine combines binary.ByteOrder and binary.AppendByteOrder so a
// single value can both decode fixed-width fields and append them to a
// buffer:
//
//	engine := endian.GetLittleEndianEngine()
//	buf = engine.AppendUint32(buf, math.Float32bits(v))
//
// Every sog4d container (delta streams, centroid blobs, frame cache
// entries) is little-endian. Big-endian appears only in PLY input files
// whose header declares binary_big_endian; ForPLYFormat maps the header
// token to the matching engine.
//
// All engines are immutable and safe for concurrent use.
package endian

import "encoding/binary"

// EndianEngine combines ByteOrder and AppendByteOrder from encoding/binary.
//
// binary.LittleEndian and binary.BigEndian both satisfy it.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// PLY header format tokens for binary payloads.
const (
	PLYBinaryLittleEndian = "binary_little_endian"
	PLYBinaryBigEndian    = "binary_big_endian"
)

// GetLittleEndianEngine returns the little-endian engine.
func GetLittleEndianEngine() EndianEngine {
	return binary.LittleEndian
}

// GetBigEndianEngine returns the big-endian engine.
func GetBigEndianEngine() EndianEngine {
	return binary.BigEndian
}

// ForPLYFormat returns the engine for a PLY "format" token. It reports
// false for ascii and unknown tokens.
func ForPLYFormat(token string) (EndianEngine, bool) {
	switch token {
	case PLYBinaryLittleEndian:
		return binary.LittleEndian, true
	case PLYBinaryBigEndian:
		return binary.BigEndian, true
	default:
		return nil, false
	}
}

// IsLittleEndian reports whether engine encodes little-endian.
func IsLittleEndian(engine EndianEngine) bool {
	return engine.String() == binary.LittleEndian.String()
}
