package encoder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/arloliu/sog4d/bundle"
	"github.com/arloliu/sog4d/delta"
	"github.com/arloliu/sog4d/format"
	"github.com/arloliu/sog4d/palette"
	"github.com/arloliu/sog4d/quant"
	"github.com/arloliu/sog4d/splat"
)

// entry is one encoded archive entry.
type entry struct {
	name string
	data []byte
}

// pass2 writes the manifest, the centroid blobs and every frame's planes.
func (s *Session) pass2(ctx context.Context, m *bundle.Manifest) (res *Result, err error) {
	if dir := filepath.Dir(s.output); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}

	w, err := bundle.CreateWriter(s.output, s.cfg.ZipCompression)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = w.Close()
			s.removeOutput()
		}
	}()

	for _, ch := range s.channels {
		if s.cfg.LabelsEncoding != format.LabelsDeltaV1 {
			continue
		}
		ch.writer, err = delta.NewWriter(s.splatCount, ch.cb.Len())
		if err != nil {
			return nil, err
		}
		ch.updates = 0
		defer ch.writer.Close()
	}

	if err = w.WriteManifest(m); err != nil {
		return nil, err
	}
	for _, ch := range s.channels {
		if err = w.WriteFile(ch.spec.centroidsPath, ch.blob); err != nil {
			return nil, err
		}
	}

	for fi := range s.frameCount {
		if err = ctx.Err(); err != nil {
			return nil, err
		}

		var f *splat.Frame
		if f, err = s.frame(fi); err != nil {
			return nil, err
		}

		var entries []entry
		if entries, err = s.encodeFrame(ctx, fi, f); err != nil {
			return nil, fmt.Errorf("frame %d (%s): %w", fi, s.src.Name(fi), err)
		}
		for _, e := range entries {
			if err = w.WriteFile(e.name, e.data); err != nil {
				return nil, err
			}
		}

		s.progress("pack", fi)
	}

	if err = w.Close(); err != nil {
		return nil, err
	}

	res = &Result{Path: s.output, Manifest: m, Updates: make(map[string]int, len(s.channels))}
	res.Entries, res.RawBytes = w.Stats()
	for _, ch := range s.channels {
		if ch.writer != nil {
			res.Updates[ch.spec.tag] = ch.updates
		}
	}

	return res, nil
}

// encodeFrame encodes every plane of frame fi concurrently and returns the
// entries in a fixed order, so the archive layout does not depend on
// scheduling.
func (s *Session) encodeFrame(ctx context.Context, fi int, f *splat.Frame) ([]entry, error) {
	const fixed = 4
	slots := make([][]entry, fixed+len(s.channels))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		codes := quant.QuantizePositions(f.Positions, s.ranges[fi])
		hi, lo := quant.SplitU16(codes)

		hiEntry, err := s.triples(bundle.FramePath(bundle.PositionHiTemplate, fi), hi, nil)
		if err != nil {
			return err
		}
		loEntry, err := s.triples(bundle.FramePath(bundle.PositionLoTemplate, fi), lo, nil)
		if err != nil {
			return err
		}
		slots[0] = []entry{hiEntry, loEntry}

		return nil
	})

	g.Go(func() error {
		logScale := quant.LogScale(quant.DecodeScale(f.Scale, s.cfg.ScaleMode))
		indices, err := s.scaleAssign.Assign(gctx, logScale)
		if err != nil {
			return fmt.Errorf("scale: %w", err)
		}
		e, err := s.labels(bundle.FramePath(bundle.ScaleIndicesTemplate, fi), indices)
		if err != nil {
			return err
		}
		slots[1] = []entry{e}

		return nil
	})

	g.Go(func() error {
		quats := quant.QuantizeQuats(quant.NormalizeQuats(f.Rotation))
		p, err := bundle.PackQuads(quats, s.width, s.height)
		if err != nil {
			return fmt.Errorf("rotation: %w", err)
		}
		e, err := s.encodePlane(bundle.FramePath(bundle.RotationTemplate, fi), p)
		if err != nil {
			return err
		}
		slots[2] = []entry{e}

		return nil
	})

	g.Go(func() error {
		indices, err := s.sh0Assign.Assign(gctx, f.DC)
		if err != nil {
			return fmt.Errorf("sh0: %w", err)
		}
		rgb, err := palette.Bytes(indices)
		if err != nil {
			return fmt.Errorf("sh0: %w", err)
		}

		opacity := quant.DecodeOpacity(f.Opacity, s.cfg.OpacityMode)
		alpha := make([]uint8, len(opacity))
		for i, o := range opacity {
			alpha[i] = quant.QuantizeUnit(o)
		}

		e, err := s.triples(bundle.FramePath(bundle.SH0Template, fi), rgb, alpha)
		if err != nil {
			return err
		}
		slots[3] = []entry{e}

		return nil
	})

	for ci, ch := range s.channels {
		g.Go(func() error {
			entries, err := s.encodeRest(gctx, ch, fi, f)
			if err != nil {
				return fmt.Errorf("%s: %w", ch.spec.tag, err)
			}
			slots[fixed+ci] = entries

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []entry
	for _, slot := range slots {
		out = append(out, slot...)
	}

	return out, nil
}

// encodeRest assigns the rest coefficients of one channel and emits either
// a full label plane or the channel's delta artifacts for frame fi.
func (s *Session) encodeRest(ctx context.Context, ch *channel, fi int, f *splat.Frame) ([]entry, error) {
	labels, err := ch.assigner.Assign(ctx, f.RestSlice(ch.spec.from, ch.spec.to))
	if err != nil {
		return nil, err
	}

	if ch.writer == nil {
		e, err := s.labels(bundle.FramePath(ch.spec.labelsTemplate, fi), labels)
		if err != nil {
			return nil, err
		}

		return []entry{e}, nil
	}

	seg := ch.segs[fi/s.cfg.DeltaSegmentLength]
	if fi == seg.StartFrame {
		if err := ch.writer.Start(seg); err != nil {
			return nil, err
		}
	}

	var out []entry

	before := ch.writer.Updates()
	base, err := ch.writer.Append(labels)
	if err != nil {
		return nil, err
	}
	if base {
		e, err := s.labels(seg.BaseLabelsPath, labels)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	n := ch.writer.Updates() - before
	ch.updates += n
	s.rec.AddDeltaUpdates(ch.spec.tag, n)

	if fi == seg.EndFrame()-1 {
		stream, err := ch.writer.Flush()
		if err != nil {
			return nil, err
		}
		out = append(out, entry{name: seg.DeltaPath, data: stream})
	}

	return out, nil
}

func (s *Session) labels(name string, values []uint16) (entry, error) {
	p, err := bundle.PackU16(values, s.width, s.height)
	if err != nil {
		return entry{}, fmt.Errorf("%s: %w", name, err)
	}

	return s.encodePlane(name, p)
}

func (s *Session) triples(name string, rgb, alpha []uint8) (entry, error) {
	p, err := bundle.PackTriples(rgb, alpha, s.width, s.height)
	if err != nil {
		return entry{}, fmt.Errorf("%s: %w", name, err)
	}

	return s.encodePlane(name, p)
}

func (s *Session) encodePlane(name string, p *bundle.Plane) (entry, error) {
	data, err := bundle.EncodePNG(p)
	if err != nil {
		return entry{}, fmt.Errorf("%s: %w", name, err)
	}

	return entry{name: name, data: data}, nil
}
