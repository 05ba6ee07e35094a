// Package errs defines the sentinel errors shared by every sog4d package.
//
// Errors are returned wrapped with context, e.g.
//
//	fmt.Errorf("%w: frame %d has %d points, expected %d", errs.ErrFrameMismatch, fi, n, want)
//
// so callers should match them with errors.Is rather than comparing values.
package errs

import "errors"

// Input errors. These abort an encode run immediately.
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrInvalidPly    = errors.New("invalid ply file")
	ErrMissingField  = errors.New("missing required field")
	ErrFrameMismatch = errors.New("frame point count mismatch")
	ErrInvalidBands  = errors.New("invalid sh bands")
	ErrInvalidMode   = errors.New("invalid mode")
	ErrEmptySamples  = errors.New("no samples collected")
)

// Encoder state errors.
var (
	ErrSegmentState      = errors.New("invalid delta segment state")
	ErrSegmentIncomplete = errors.New("delta segment frame count mismatch")
	ErrCodebookTooLarge  = errors.New("codebook exceeds 65535 entries")
	ErrLabelWidth        = errors.New("label map length mismatch")
)

// Structural and format errors. The validator reports these as fatal.
var (
	ErrInvalidManifest   = errors.New("invalid manifest")
	ErrMissingEntry      = errors.New("missing bundle entry")
	ErrPlaneShape        = errors.New("plane shape mismatch")
	ErrPlaneDecode       = errors.New("plane decode failed")
	ErrIndexOutOfRange   = errors.New("index out of range")
	ErrSegmentGap        = errors.New("delta segments do not partition frames")
	ErrHeaderMismatch    = errors.New("delta header mismatch")
	ErrInvalidMagic      = errors.New("invalid magic")
	ErrInvalidHeaderSize = errors.New("invalid header size")
	ErrInvalidVersion    = errors.New("invalid version")
	ErrTruncated         = errors.New("truncated data")
	ErrTrailingBytes     = errors.New("unexpected trailing bytes")
	ErrReservedNonZero   = errors.New("reserved field is not zero")
	ErrNonMonotonicID    = errors.New("point ids not strictly increasing")
	ErrInvalidCount      = errors.New("invalid update count")
	ErrChecksumMismatch  = errors.New("checksum mismatch")
	ErrCentroidsSize     = errors.New("centroids blob size mismatch")
)
