package bundle

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/arloliu/sog4d/errs"
)

// AutoLayout returns the plane size for splatCount points.
//
// A zero width or height means "derive it". With both derived the plane is
// as square as possible: width = ceil(sqrt(n)), height = ceil(n/width). With
// one side given the other is ceil(n/side). Explicit sizes must hold every
// point.
//
// Parameters:
//   - splatCount: Number of points per frame
//   - width: Requested width, 0 for auto
//   - height: Requested height, 0 for auto
//
// Returns:
//   - int, int: The plane width and height
//   - error: ErrInvalidInput for negative sizes or a plane smaller than splatCount
func AutoLayout(splatCount, width, height int) (int, int, error) {
	if splatCount <= 0 {
		return 0, 0, fmt.Errorf("%w: splat count must be > 0, got %d", errs.ErrInvalidInput, splatCount)
	}
	if width < 0 {
		return 0, 0, fmt.Errorf("%w: layout width must be > 0, got %d", errs.ErrInvalidInput, width)
	}
	if height < 0 {
		return 0, 0, fmt.Errorf("%w: layout height must be > 0, got %d", errs.ErrInvalidInput, height)
	}

	switch {
	case width == 0 && height == 0:
		w := int(math.Ceil(math.Sqrt(float64(splatCount))))
		return w, ceilDiv(splatCount, w), nil
	case height == 0:
		return width, ceilDiv(splatCount, width), nil
	case width == 0:
		return ceilDiv(splatCount, height), height, nil
	}

	if width*height < splatCount {
		return 0, 0, fmt.Errorf("%w: layout %dx%d holds %d texels, need %d",
			errs.ErrInvalidInput, width, height, width*height, splatCount)
	}

	return width, height, nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// ParseExplicitTimes parses normalized frame times.
//
// arg is either the path of a file holding one time per line or a comma
// separated list. Blank entries are skipped.
func ParseExplicitTimes(arg string, frameCount int) ([]float64, error) {
	var tokens []string
	if st, err := os.Stat(arg); err == nil && !st.IsDir() {
		data, err := os.ReadFile(arg)
		if err != nil {
			return nil, fmt.Errorf("read frame times: %w", err)
		}
		tokens = strings.Split(string(data), "\n")
	} else {
		tokens = strings.Split(arg, ",")
	}

	times := make([]float64, 0, frameCount)
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		t, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: frame time %q", errs.ErrInvalidInput, tok)
		}
		times = append(times, t)
	}

	if err := CheckFrameTimes(times, frameCount); err != nil {
		return nil, err
	}

	return times, nil
}

// CheckFrameTimes verifies an explicit time mapping: one finite time in
// [0,1] per frame, non-decreasing.
func CheckFrameTimes(times []float64, frameCount int) error {
	if len(times) != frameCount {
		return fmt.Errorf("%w: explicit time mapping needs %d frame times, got %d",
			errs.ErrInvalidInput, frameCount, len(times))
	}

	prev := math.Inf(-1)
	for i, t := range times {
		if math.IsNaN(t) || math.IsInf(t, 0) || t < 0 || t > 1 {
			return fmt.Errorf("%w: frameTimesNormalized[%d] = %v, must be in [0,1]", errs.ErrInvalidInput, i, t)
		}
		if t < prev {
			return fmt.Errorf("%w: frameTimesNormalized must be non-decreasing: frame %d = %v > frame %d = %v",
				errs.ErrInvalidInput, i-1, prev, i, t)
		}
		prev = t
	}

	return nil
}
