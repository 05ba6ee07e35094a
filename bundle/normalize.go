package bundle

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/zip"

	"github.com/arloliu/sog4d/errs"
	"github.com/arloliu/sog4d/format"
	"github.com/arloliu/sog4d/internal/options"
)

type normalizeConfig struct {
	output   string
	validate bool
	logger   *slog.Logger
}

// NormalizeOption configures NormalizeMeta.
type NormalizeOption = options.Option[*normalizeConfig]

// WithOutput writes the repaired bundle to path instead of updating the
// input in place. path must not exist.
func WithOutput(path string) NormalizeOption {
	return options.NoError(func(c *normalizeConfig) {
		c.output = path
	})
}

// WithValidation runs Validate on the result.
func WithValidation(enabled bool) NormalizeOption {
	return options.NoError(func(c *normalizeConfig) {
		c.validate = enabled
	})
}

// WithNormalizeLogger sets the logger NormalizeMeta reports changes on.
func WithNormalizeLogger(logger *slog.Logger) NormalizeOption {
	return options.NoError(func(c *normalizeConfig) {
		if logger != nil {
			c.logger = logger
		}
	})
}

// NormalizeResult describes what NormalizeMeta did.
type NormalizeResult struct {
	// Path is the bundle that holds the result.
	Path string
	// Changes lists the repairs applied; empty when the manifest was already canonical.
	Changes []string
	// Report is set when validation was requested.
	Report *Report
}

// NormalizeMeta repairs the manifest of an existing bundle.
//
// Repairs: a missing or mis-cased format tag becomes "sog4d", and position
// ranges and the scale codebook written as [[x,y,z], ...] become
// [{"x":..,"y":..,"z":..}, ...]. Nothing else in the manifest is touched.
//
// The corrected manifest is appended as a second meta.json entry; every
// existing entry is copied without recompression. Readers resolve the name
// to the last entry. When nothing needs repair the bundle is left as is.
//
// Parameters:
//   - in: Bundle to repair
//   - opts: WithOutput, WithValidation, WithNormalizeLogger
//
// Returns:
//   - *NormalizeResult: The target path and the applied changes
//   - error: ErrInvalidInput, ErrMissingEntry, ErrInvalidManifest or I/O errors
func NormalizeMeta(in string, opts ...NormalizeOption) (*NormalizeResult, error) {
	cfg := &normalizeConfig{logger: slog.Default()}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	st, err := os.Stat(in)
	if err != nil || !st.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: input bundle %s does not exist", errs.ErrInvalidInput, in)
	}
	if cfg.output != "" {
		if _, err := os.Stat(cfg.output); err == nil {
			return nil, fmt.Errorf("%w: output %s already exists", errs.ErrInvalidInput, cfg.output)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("stat output: %w", err)
		}
	}

	r, err := OpenReader(in)
	if err != nil {
		return nil, err
	}

	doc, err := readManifestDocument(r)
	if err != nil {
		r.Close()
		return nil, err
	}

	changes := NormalizeDocument(doc)
	res := &NormalizeResult{Path: in, Changes: changes}

	var written string
	switch {
	case len(changes) > 0:
		written, err = rewrite(r, in, cfg.output, doc)
	case cfg.output != "":
		err = copyFile(in, cfg.output)
	}
	r.Close()
	if err != nil {
		return nil, err
	}

	if written != "" && cfg.output == "" {
		if err := os.Rename(written, in); err != nil {
			_ = os.Remove(written)
			return nil, fmt.Errorf("replace bundle: %w", err)
		}
	}

	if cfg.output != "" {
		res.Path = cfg.output
	}

	if len(changes) == 0 {
		cfg.logger.Info("meta.json is already canonical", slog.String("bundle", res.Path))
	} else {
		for _, c := range changes {
			cfg.logger.Info("normalize-meta", slog.String("change", c))
		}
		cfg.logger.Info("normalize-meta ok", slog.String("bundle", res.Path))
	}

	if cfg.validate {
		report, err := Validate(res.Path, WithLogger(cfg.logger))
		if err != nil {
			return nil, err
		}
		res.Report = report
	}

	return res, nil
}

func readManifestDocument(r *Reader) (map[string]any, error) {
	raw, err := r.ReadFile(ManifestName)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("%w: %s is not valid UTF-8", errs.ErrInvalidManifest, ManifestName)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errs.ErrInvalidManifest, ManifestName, err)
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a JSON object", errs.ErrInvalidManifest, ManifestName)
	}

	return obj, nil
}

// NormalizeDocument applies the manifest repairs to a decoded meta.json
// object in place and returns a description of each change.
func NormalizeDocument(doc map[string]any) []string {
	var changes []string

	switch tag, _ := doc["format"].(string); {
	case strings.TrimSpace(tag) == "":
		doc["format"] = format.FormatTag
		changes = append(changes, "set format to "+format.FormatTag)
	case tag != format.FormatTag && strings.EqualFold(tag, format.FormatTag):
		doc["format"] = format.FormatTag
		changes = append(changes, fmt.Sprintf("normalized format %q to %s", tag, format.FormatTag))
	}

	streams, _ := doc["streams"].(map[string]any)
	if streams == nil {
		return changes
	}

	fix := func(obj map[string]any, path, key string) {
		if obj == nil {
			return
		}
		if out, ok := vec3Objects(obj[key]); ok {
			obj[key] = out
			changes = append(changes, fmt.Sprintf("converted %s.%s to {x,y,z} objects", path, key))
		}
	}

	position, _ := streams["position"].(map[string]any)
	fix(position, "streams.position", "rangeMin")
	fix(position, "streams.position", "rangeMax")

	scale, _ := streams["scale"].(map[string]any)
	fix(scale, "streams.scale", "codebook")

	return changes
}

// vec3Objects converts a non-empty [[x,y,z], ...] array. It reports false
// when v has any other shape.
func vec3Objects(v any) ([]any, bool) {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return nil, false
	}

	out := make([]any, len(list))
	for i, item := range list {
		triple, ok := item.([]any)
		if !ok || len(triple) != 3 {
			return nil, false
		}
		for _, c := range triple {
			if _, ok := c.(json.Number); !ok {
				return nil, false
			}
		}
		out[i] = map[string]any{"x": triple[0], "y": triple[1], "z": triple[2]}
	}

	return out, true
}

// rewrite copies every entry of r and appends the repaired manifest. It
// writes to output, or to a temporary file next to in when output is empty,
// and returns the path written.
func rewrite(r *Reader, in, output string, doc map[string]any) (string, error) {
	meta, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}

	var f *os.File
	if output != "" {
		f, err = os.Create(output)
	} else {
		f, err = os.CreateTemp(filepath.Dir(in), ".normalize-*.sog4d")
	}
	if err != nil {
		return "", fmt.Errorf("create bundle: %w", err)
	}
	path := f.Name()

	w := newWriter(f, zip.Store)
	for _, zf := range r.files() {
		if err = w.copyRaw(zf); err != nil {
			break
		}
	}
	if err == nil {
		err = w.WriteFile(ManifestName, meta)
	}
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", err
	}

	return path, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy bundle: %w", err)
	}

	return out.Close()
}
