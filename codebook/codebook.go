// Package codebook builds the shared dictionaries a bundle references by index.
//
// A run fits three kinds of codebook from samples pooled across every frame:
//
//   - the 256-entry scalar codebook for base color coefficients (BuildScalar)
//   - the scale codebook, a 3-D k-means fit in log space (FitKMeans)
//   - one or more rest coefficient codebooks, k-means fits over 9..45 dimensions
//
// Samples are drawn per frame with WeightedChoice so a single frame can never
// dominate a fit, and every fit is deterministic for a given seed.
package codebook

import (
	"math"
	"slices"

	"github.com/arloliu/sog4d/format"
)

// Codebook is an immutable ordered set of Dim-dimensional entries.
type Codebook struct {
	// Dim is the number of components per entry.
	Dim int
	// Entries holds Len()*Dim components, entry-major.
	Entries []float32
}

// Len returns the number of entries.
func (c *Codebook) Len() int {
	if c == nil || c.Dim == 0 {
		return 0
	}

	return len(c.Entries) / c.Dim
}

// At returns entry i. The returned slice aliases the codebook and must not be modified.
func (c *Codebook) At(i int) []float32 {
	return c.Entries[i*c.Dim : (i+1)*c.Dim]
}

// Exp returns a copy of the codebook with every component exponentiated.
// It maps log-space scale centers back to linear scale.
func (c *Codebook) Exp() *Codebook {
	out := &Codebook{Dim: c.Dim, Entries: make([]float32, len(c.Entries))}
	for i, v := range c.Entries {
		out.Entries[i] = float32(math.Exp(float64(v)))
	}

	return out
}

// Log returns a copy of the codebook with every component replaced by ln(max(v, 1e-8)).
func (c *Codebook) Log() *Codebook {
	out := &Codebook{Dim: c.Dim, Entries: make([]float32, len(c.Entries))}
	for i, v := range c.Entries {
		if !(v >= 1e-8) {
			v = 1e-8
		}
		out.Entries[i] = float32(math.Log(float64(v)))
	}

	return out
}

// Addressable reports whether every entry fits a 16-bit index.
func (c *Codebook) Addressable() bool {
	return c.Len() <= format.MaxCodebookEntries
}

// sortScalar sorts a 1-D codebook ascending in place.
func (c *Codebook) sortScalar() {
	slices.Sort(c.Entries)
}

// SamplePool accumulates weighted fitting samples across frames.
type SamplePool struct {
	// Dim is the number of components per sample.
	Dim int
	// Values holds Len()*Dim components, sample-major.
	Values []float32
	// Weights holds one non-negative weight per sample.
	Weights []float64
	// NonFinite counts the samples that had NaN or Inf components replaced.
	NonFinite int
}

// NewSamplePool creates an empty pool of dim-dimensional samples.
func NewSamplePool(dim int) *SamplePool {
	return &SamplePool{Dim: dim}
}

// Add appends one sample. vec must have exactly Dim components.
//
// NaN and Inf components are stored as 0, the value they are assigned to
// when encoding, and a weight that is not a positive finite number is
// stored as 0.
func (p *SamplePool) Add(vec []float32, weight float64) {
	replaced := false
	for _, v := range vec {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			v = 0
			replaced = true
		}
		p.Values = append(p.Values, v)
	}
	if replaced {
		p.NonFinite++
	}

	if !(weight > 0) || math.IsInf(weight, 0) {
		weight = 0
	}
	p.Weights = append(p.Weights, weight)
}

// Len returns the number of samples.
func (p *SamplePool) Len() int {
	return len(p.Weights)
}

// At returns sample i.
func (p *SamplePool) At(i int) []float32 {
	return p.Values[i*p.Dim : (i+1)*p.Dim]
}
