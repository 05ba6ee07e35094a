// Package encoder packs a sequence of splat frames into a sog4d bundle.
//
// An encode run is a Session: it reads every frame twice through a
// splat.Source. Pass 1 records per-frame position ranges and draws weighted
// fitting samples; the base color, scale and rest coefficient codebooks are
// then fitted concurrently; pass 2 assigns every point to its codebook
// entries and writes the per-frame planes, the centroid blobs and, for
// delta-v1 labels, one base snapshot plus one update stream per segment.
//
// Rest coefficients are either packed into one combined codebook (manifest
// version 1) or into one codebook per band (version 2, see WithSplitByBand).
//
//	sess, err := encoder.NewSession(src, "out.sog4d",
//		encoder.WithSeed(7),
//		encoder.WithLabelsEncoding(format.LabelsDeltaV1),
//	)
//	if err != nil {
//		return err
//	}
//	res, err := sess.Run(ctx)
//
// A run is deterministic for a seed: the same frames and options produce a
// byte-identical bundle.
package encoder
