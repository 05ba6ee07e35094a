package splat

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/arloliu/sog4d/compress"
	"github.com/arloliu/sog4d/errs"
	"github.com/arloliu/sog4d/format"
	"github.com/arloliu/sog4d/internal/options"
)

// DefaultPattern matches PLY files directly inside the input directory,
// regardless of extension case.
const DefaultPattern = "*.[pP][lL][yY]"

// Source provides the frames of a sequence by index.
type Source interface {
	// Len returns the number of frames.
	Len() int
	// Name identifies frame i in diagnostics, typically its file path.
	Name(i int) string
	// Frame returns frame i. Callers must not modify the returned frame.
	Frame(i int) (*Frame, error)
}

var (
	_ Source = (*DirSource)(nil)
	_ Source = (*MemorySource)(nil)
)

// MemorySource serves frames held in memory.
type MemorySource struct {
	frames []*Frame
}

// NewMemorySource wraps frames in a Source.
func NewMemorySource(frames ...*Frame) *MemorySource {
	return &MemorySource{frames: frames}
}

func (s *MemorySource) Len() int { return len(s.frames) }

func (s *MemorySource) Name(i int) string { return fmt.Sprintf("frame %d", i) }

func (s *MemorySource) Frame(i int) (*Frame, error) {
	if i < 0 || i >= len(s.frames) {
		return nil, fmt.Errorf("%w: frame %d of %d", errs.ErrInvalidInput, i, len(s.frames))
	}

	return s.frames[i], nil
}

type dirConfig struct {
	pattern string
	cache   format.CompressionType
	logger  *slog.Logger
}

// DirOption configures NewDirSource.
type DirOption = options.Option[*dirConfig]

// WithPattern sets the doublestar glob, relative to the directory, that
// selects frame files. "**/*.ply" descends into subdirectories.
func WithPattern(pattern string) DirOption {
	return options.New(func(c *dirConfig) error {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("%w: bad frame pattern %q", errs.ErrInvalidInput, pattern)
		}
		c.pattern = pattern

		return nil
	})
}

// WithFrameCache keeps every decoded frame in memory, compressed with the
// given codec, so the second read of a frame skips PLY parsing.
// CompressionNone disables the cache.
func WithFrameCache(compression format.CompressionType) DirOption {
	return options.NoError(func(c *dirConfig) {
		c.cache = compression
	})
}

// WithSourceLogger sets the logger used for cache statistics.
func WithSourceLogger(logger *slog.Logger) DirOption {
	return options.NoError(func(c *dirConfig) {
		if logger != nil {
			c.logger = logger
		}
	})
}

// DirSource reads the PLY frames of a directory.
type DirSource struct {
	dir    string
	files  []string
	cache  *frameCache
	logger *slog.Logger
}

// NewDirSource lists the frame files of dir.
//
// Files are ordered with SortFrameFiles. An empty match is an error.
//
// Parameters:
//   - dir: Input directory
//   - opts: WithPattern, WithFrameCache, WithSourceLogger
//
// Returns:
//   - *DirSource: The ordered frame source
//   - error: ErrInvalidInput when dir is not a directory or holds no frames
func NewDirSource(dir string, opts ...DirOption) (*DirSource, error) {
	cfg := &dirConfig{pattern: DefaultPattern, cache: format.CompressionNone, logger: slog.Default()}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		return nil, fmt.Errorf("%w: input directory %s does not exist", errs.ErrInvalidInput, dir)
	}

	fsys := os.DirFS(dir)
	matches, err := doublestar.Glob(fsys, cfg.pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("%w: list frames: %v", errs.ErrInvalidInput, err)
	}

	files := matches[:0]
	for _, m := range matches {
		if info, err := fs.Stat(fsys, m); err == nil && info.Mode().IsRegular() {
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no frame files matching %q in %s", errs.ErrInvalidInput, cfg.pattern, dir)
	}
	SortFrameFiles(files)

	s := &DirSource{dir: dir, files: files, logger: cfg.logger}
	if cfg.cache != format.CompressionNone {
		s.cache, err = newFrameCache(cfg.cache)
		if err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *DirSource) Len() int { return len(s.files) }

// Name returns the path of frame i.
func (s *DirSource) Name(i int) string {
	return filepath.Join(s.dir, filepath.FromSlash(s.files[i]))
}

// Files returns the ordered frame paths relative to the directory.
func (s *DirSource) Files() []string {
	return slices.Clone(s.files)
}

// Frame reads frame i, from the cache when it holds the frame.
func (s *DirSource) Frame(i int) (*Frame, error) {
	if i < 0 || i >= len(s.files) {
		return nil, fmt.Errorf("%w: frame %d of %d", errs.ErrInvalidInput, i, len(s.files))
	}

	if s.cache != nil {
		if f, ok, err := s.cache.get(i); err != nil || ok {
			return f, err
		}
	}

	f, err := ReadPLYFile(s.Name(i))
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.put(i, f); err != nil {
			return nil, err
		}
	}

	return f, nil
}

// CacheStats reports the frame cache footprint: cached frames, raw bytes and
// compressed bytes. All zero when the cache is disabled.
func (s *DirSource) CacheStats() (frames int, raw, compressed int64) {
	if s.cache == nil {
		return 0, 0, 0
	}

	return s.cache.stats()
}

// LogCacheStats writes the cache footprint to the source logger.
func (s *DirSource) LogCacheStats() {
	if s.cache == nil {
		return
	}
	frames, raw, compressed := s.cache.stats()
	s.logger.Info("frame cache",
		slog.String("codec", s.cache.codec.Type().String()),
		slog.Int("frames", frames),
		slog.Int64("rawBytes", raw),
		slog.Int64("compressedBytes", compressed),
		slog.Float64("ratio", compress.Ratio(int(raw), int(compressed))),
	)
}

var frameNumber = regexp.MustCompile(`(?:^|/|\\)(?:time_)?(\d+)(?:\D|$)`)

// SortFrameFiles orders frame paths in place. Paths whose file name starts
// with a number, optionally after "time_", come first in numeric order; the
// rest follow in lexical order.
func SortFrameFiles(paths []string) {
	type key struct {
		numbered bool
		digits   string
	}
	keyOf := func(p string) key {
		m := frameNumber.FindStringSubmatch(p)
		if m == nil {
			return key{}
		}
		digits := strings.TrimLeft(m[1], "0")

		return key{numbered: true, digits: digits}
	}

	slices.SortStableFunc(paths, func(a, b string) int {
		ka, kb := keyOf(a), keyOf(b)
		switch {
		case ka.numbered && !kb.numbered:
			return -1
		case !ka.numbered && kb.numbered:
			return 1
		case ka.numbered:
			if c := len(ka.digits) - len(kb.digits); c != 0 {
				return c
			}
			if c := strings.Compare(ka.digits, kb.digits); c != 0 {
				return c
			}
		}

		return strings.Compare(a, b)
	})
}
