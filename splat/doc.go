// Package splat holds the per-frame point attribute model and the readers
// that produce it.
//
// A Frame stores raw attribute values exactly as they appear in the source
// file: opacity before its activation, scale possibly log-encoded and
// rotations unnormalized. Decoding is left to the encoder so the decode
// modes stay a run-level decision.
//
// Frames come from a Source. DirSource lists PLY files in a directory,
// orders them by their numeric frame suffix and can keep decoded frames in a
// compressed in-memory cache, since an encode run reads every frame twice.
// MemorySource serves frames that are already in memory.
package splat
