package encoder

import (
	"fmt"

	"github.com/arloliu/sog4d/bundle"
	"github.com/arloliu/sog4d/format"
)

// channelSpec describes one rest coefficient codebook: which coefficients
// of each point it covers and where its artifacts live in the bundle.
type channelSpec struct {
	tag string
	// from and to select the coefficient range [from, to) of every point.
	from, to int
	// count is the requested codebook size.
	count int

	centroidsPath  string
	labelsTemplate string
	baseName       string
	deltaPrefix    string
}

func (c channelSpec) coeffs() int { return c.to - c.from }

func (c channelSpec) dim() int { return c.coeffs() * 3 }

// restStrategy decides how rest coefficients are grouped into codebooks.
// A session picks one strategy before pass 1 and keeps it for the run.
type restStrategy interface {
	// version returns the manifest version the strategy writes.
	version() int
	// channels returns the codebooks needed for bands > 0.
	channels(bands int, cfg *Config) []channelSpec
}

var (
	_ restStrategy = combinedStrategy{}
	_ restStrategy = splitStrategy{}
)

// combinedStrategy fits one codebook over the coefficients of every band.
type combinedStrategy struct{}

func (combinedStrategy) version() int { return format.VersionCombined }

func (combinedStrategy) channels(bands int, cfg *Config) []channelSpec {
	return []channelSpec{{
		tag:            "shN",
		from:           0,
		to:             bundle.RestCoeffCount(bands),
		count:          cfg.ShNCount,
		centroidsPath:  "shN_centroids.bin",
		labelsTemplate: "frames/{frame}/shN_labels.png",
		baseName:       "shN_labels.png",
		deltaPrefix:    "sh/delta_",
	}}
}

// splitStrategy fits one codebook per band: 3, 5 and 7 coefficients.
type splitStrategy struct{}

func (splitStrategy) version() int { return format.VersionSplit }

func (splitStrategy) channels(bands int, cfg *Config) []channelSpec {
	specs := make([]channelSpec, 0, bands)
	for b := 1; b <= bands; b++ {
		tag := fmt.Sprintf("sh%d", b)
		specs = append(specs, channelSpec{
			tag:            tag,
			from:           bundle.RestCoeffCount(b - 1),
			to:             bundle.RestCoeffCount(b),
			count:          cfg.BandCount(b),
			centroidsPath:  tag + "_centroids.bin",
			labelsTemplate: "frames/{frame}/" + tag + "_labels.png",
			baseName:       tag + "_labels.png",
			deltaPrefix:    "sh/" + tag + "_delta_",
		})
	}

	return specs
}

// newStrategy picks the grouping for a run. Splitting only applies when
// there is at least one band to split.
func newStrategy(split bool, bands int) restStrategy {
	if split && bands > 0 {
		return splitStrategy{}
	}

	return combinedStrategy{}
}
