// Package delta encodes per-frame palette labels as segment base snapshots
// plus sparse update streams.
//
// Adjacent frames of a splat sequence keep most of their codebook
// assignments, so storing a full label map per frame wastes space on labels
// that did not change. The frame range is split into fixed-length segments;
// each segment stores the full label map of its first frame (the base
// snapshot, written by the caller as an image plane) and one delta stream
// holding, for every later frame, only the points whose label changed:
//
//	segments, _ := delta.BuildSegments(frameCount, 50, "shN_labels.png", "sh/delta_")
//	w, _ := delta.NewWriter(pointCount, codebookLen)
//	for _, seg := range segments {
//	    w.Start(seg)
//	    for f := seg.StartFrame; f < seg.EndFrame(); f++ {
//	        base, _ := w.Append(labels[f])
//	        if base {
//	            // write labels[f] to seg.BaseLabelsPath
//	        }
//	    }
//	    stream, _ := w.Flush()
//	    // write stream to seg.DeltaPath
//	}
//
// Reader is the independent decode path: it replays a stream on top of its
// base snapshot and rejects any structural corruption with the segment-local
// frame, update and value that caused it. See package section for the byte
// layout.
package delta
