// Package section defines the fixed binary structures of a sog4d bundle.
//
// The only binary framing in a bundle that is not an image plane or a raw
// float array is the label delta stream. Each stream covers one segment of
// frames and is laid out as:
//
//	┌──────────────────────────────────────────────────────┐
//	│ DeltaHeader (28 bytes, fixed)                        │
//	│  - magic "SOG4DLB1" (8 bytes)                        │
//	│  - version, startFrame, frameCount,                  │
//	│    pointCount, entryCount (5 × uint32)               │
//	├──────────────────────────────────────────────────────┤
//	│ Update block, one per non-base frame                 │
//	│  - updateCount (uint32)                              │
//	│  - updateCount × record (8 bytes):                   │
//	│      point id (uint32), label (uint16), reserved (0) │
//	└──────────────────────────────────────────────────────┘
//
// All integers are little-endian. The base frame of the segment is not part
// of the stream; it is stored as a full label plane next to it.
package section
