package encoder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/sog4d/format"
)

func TestStrategy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ShNCount = 64
	cfg.BandCounts = [3]int{0, 32, 0}

	t.Run("combined", func(t *testing.T) {
		s := newStrategy(false, 3)
		require.Equal(t, format.VersionCombined, s.version())

		specs := s.channels(3, cfg)
		require.Len(t, specs, 1)
		require.Equal(t, "shN", specs[0].tag)
		require.Equal(t, 15, specs[0].coeffs())
		require.Equal(t, 45, specs[0].dim())
		require.Equal(t, 64, specs[0].count)
	})

	t.Run("split", func(t *testing.T) {
		s := newStrategy(true, 3)
		require.Equal(t, format.VersionSplit, s.version())

		specs := s.channels(3, cfg)
		require.Len(t, specs, 3)

		want := []struct {
			tag      string
			from, to int
			count    int
		}{
			{"sh1", 0, 3, 64},
			{"sh2", 3, 8, 32},
			{"sh3", 8, 15, 64},
		}
		for i, w := range want {
			require.Equal(t, w.tag, specs[i].tag)
			require.Equal(t, w.from, specs[i].from)
			require.Equal(t, w.to, specs[i].to)
			require.Equal(t, w.count, specs[i].count)
		}
		require.Equal(t, "sh2_centroids.bin", specs[1].centroidsPath)
		require.Equal(t, "sh/sh2_delta_", specs[1].deltaPrefix)
	})

	t.Run("split without bands", func(t *testing.T) {
		require.Equal(t, format.VersionCombined, newStrategy(true, 0).version())
	})

	t.Run("split with fewer bands", func(t *testing.T) {
		specs := newStrategy(true, 2).channels(2, cfg)
		require.Len(t, specs, 2)
		require.Equal(t, 8, specs[1].to)
	})
}
