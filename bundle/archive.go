package bundle

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"sync"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"

	"github.com/arloliu/sog4d/errs"
	"github.com/arloliu/sog4d/format"
)

// ZipMethodZstd is the archive method id of zstd entries.
const ZipMethodZstd = zstd.ZipMethodWinZip

// Writer writes bundle entries into a zip archive.
//
// Writes are serialized, so concurrent producers may share one Writer.
// Entries keep the order in which they were written; writing a name twice
// stores both entries and readers resolve the name to the last one.
type Writer struct {
	mu     sync.Mutex
	f      *os.File
	zw     *zip.Writer
	method uint16
	count  int
	bytes  int64
	closed bool
}

// CreateWriter creates the archive at path, truncating any existing file.
//
// Parameters:
//   - path: Output file path
//   - compression: Entry compression: stored, deflated or zstd
//
// Returns:
//   - *Writer: An open writer, which must be closed to produce a valid archive
//   - error: Any error creating the file
func CreateWriter(path string, compression format.ZipCompression) (*Writer, error) {
	method, err := zipMethod(compression)
	if err != nil {
		return nil, err
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create bundle: %w", err)
	}

	return newWriter(f, method), nil
}

func newWriter(f *os.File, method uint16) *Writer {
	zw := zip.NewWriter(f)
	zw.RegisterCompressor(ZipMethodZstd, zstd.ZipCompressor(zstd.WithEncoderLevel(zstd.SpeedDefault)))

	return &Writer{f: f, zw: zw, method: method}
}

func zipMethod(c format.ZipCompression) (uint16, error) {
	switch c {
	case format.ZipStored:
		return zip.Store, nil
	case format.ZipDeflated:
		return zip.Deflate, nil
	case format.ZipZstd:
		return ZipMethodZstd, nil
	default:
		return 0, fmt.Errorf("%w: zip compression %v", errs.ErrInvalidMode, c)
	}
}

// WriteFile stores data as entry name.
func (w *Writer) WriteFile(name string, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("write %s: archive is closed", name)
	}

	fw, err := w.zw.CreateHeader(&zip.FileHeader{Name: name, Method: w.method})
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}

	w.count++
	w.bytes += int64(len(data))

	return nil
}

// WritePlane PNG-encodes p and stores it as entry name.
func (w *Writer) WritePlane(name string, p *Plane) error {
	data, err := EncodePNG(p)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	return w.WriteFile(name, data)
}

// WriteManifest stores m as meta.json.
func (w *Writer) WriteManifest(m *Manifest) error {
	data, err := m.Marshal()
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	return w.WriteFile(ManifestName, data)
}

// copyRaw copies an entry from another archive without recompressing it.
func (w *Writer) copyRaw(f *zip.File) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.zw.Copy(f); err != nil {
		return fmt.Errorf("copy %s: %w", f.Name, err)
	}
	w.count++
	w.bytes += int64(f.UncompressedSize64)

	return nil
}

// Stats returns the number of entries written and their uncompressed size.
func (w *Writer) Stats() (entries int, rawBytes int64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.count, w.bytes
}

// Close writes the central directory and closes the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	zerr := w.zw.Close()
	ferr := w.f.Close()

	return errors.Join(zerr, ferr)
}

// Reader reads entries from a bundle archive.
type Reader struct {
	zr      *zip.ReadCloser
	entries map[string]*zip.File
}

// OpenReader opens the archive at path. Duplicate names resolve to the last
// entry in the central directory.
func OpenReader(path string) (*Reader, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", errs.ErrInvalidInput, err)
		}

		return nil, fmt.Errorf("%w: open bundle: %v", errs.ErrInvalidManifest, err)
	}
	zr.RegisterDecompressor(ZipMethodZstd, zstd.ZipDecompressor())

	entries := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		entries[f.Name] = f
	}

	return &Reader{zr: zr, entries: entries}, nil
}

// Has reports whether the archive holds an entry named name.
func (r *Reader) Has(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// Names returns the distinct entry names, sorted.
func (r *Reader) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// ReadFile returns the content of entry name.
func (r *Reader) ReadFile(name string) ([]byte, error) {
	f, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errs.ErrMissingEntry, name)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	return data, nil
}

// ReadPlane reads and decodes the PNG plane stored as name.
func (r *Reader) ReadPlane(name string) (*Plane, error) {
	data, err := r.ReadFile(name)
	if err != nil {
		return nil, err
	}

	p, err := DecodePNG(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	return p, nil
}

// ReadManifest reads and parses meta.json.
func (r *Reader) ReadManifest() (*Manifest, error) {
	data, err := r.ReadFile(ManifestName)
	if err != nil {
		return nil, err
	}

	return ParseManifest(data)
}

// files returns every entry in archive order, duplicates included.
func (r *Reader) files() []*zip.File {
	return r.zr.File
}

// Close closes the archive.
func (r *Reader) Close() error {
	return r.zr.Close()
}
