// Package quant implements the fixed-point transforms between decoded splat
// attributes and the integer codes stored in a bundle.
//
// Every function is pure and operates point by point on flat float32
// slices, so identical inputs always produce bit-identical codes regardless of
// how a frame is split across goroutines. Degenerate input never panics:
//
//   - NaN opacity and scale decode to 0
//   - infinite scale saturates at math.MaxFloat32
//   - quaternions with a non-finite or tiny norm become the identity rotation
//   - non-finite positions are clamped into the frame range (NaN maps to code 0)
//   - axes whose span is zero are written as code 0
//
// Rounding follows round-half-to-even so codes match the reference packer
// byte for byte.
package quant
