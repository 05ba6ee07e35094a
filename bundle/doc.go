// Package bundle reads, writes and validates sog4d bundles.
//
// A bundle is a zip archive whose meta.json manifest describes every other
// entry. Per-frame data lives in RGBA8 PNG planes laid out row-major, one
// texel per point, and rest coefficient codebooks live in raw f16/f32 blobs:
//
//	meta.json
//	shN_centroids.bin                      (version 1)
//	sh1_centroids.bin .. sh3_centroids.bin (version 2)
//	frames/00000/position_hi.png           RGB = high byte of x,y,z codes
//	frames/00000/position_lo.png           RGB = low byte of x,y,z codes
//	frames/00000/scale_indices.png         RG = 16-bit scale codebook index
//	frames/00000/rotation.png              RGBA = quantized w,x,y,z
//	frames/00000/sh0.png                   RGB = base color index, A = opacity
//	frames/00000/shN_labels.png            RG = 16-bit rest label (full or base snapshot)
//	sh/delta_00000.bin                     label delta stream (delta-v1)
//
// Texels past the point count are zero. The archive may hold several
// entries with the same name; the last one wins, which is how NormalizeMeta
// supersedes a manifest without rewriting the payload.
//
// Validate checks a bundle end to end without the encoder: manifest fields,
// plane shapes, index bounds, centroid blobs and a full replay of every delta
// stream.
package bundle
