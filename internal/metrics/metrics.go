// Package metrics records encode statistics in a Prometheus registry.
//
// Every Recorder owns its registry, so concurrent runs and tests never share
// collectors. A nil *Recorder is valid and records nothing.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "sog4d"

// Recorder collects the statistics of one encode run.
type Recorder struct {
	reg *prometheus.Registry

	framesTotal     *prometheus.CounterVec
	passDuration    *prometheus.GaugeVec
	codebookEntries *prometheus.GaugeVec
	fitDuration     *prometheus.HistogramVec
	deltaUpdates    *prometheus.CounterVec
	bundleEntries   prometheus.Gauge
	bundleBytes     prometheus.Gauge
	cacheBytes      *prometheus.GaugeVec
	splats          prometheus.Gauge
}

// NewRecorder creates a Recorder backed by a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		reg: reg,
		framesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_processed_total",
			Help:      "Frames processed, by encoder pass.",
		}, []string{"pass"}),
		passDuration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Wall time of each encoder stage.",
		}, []string{"pass"}),
		codebookEntries: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "codebook_entries",
			Help:      "Entry count of each fitted codebook.",
		}, []string{"codebook"}),
		fitDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "codebook_fit_duration_seconds",
			Help:      "Duration of codebook fits.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"codebook"}),
		deltaUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delta_updates_total",
			Help:      "Label update records written, by rest channel.",
		}, []string{"channel"}),
		bundleEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bundle_entries",
			Help:      "Entries written to the bundle archive.",
		}),
		bundleBytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bundle_raw_bytes",
			Help:      "Uncompressed size of all bundle entries.",
		}),
		cacheBytes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "frame_cache_bytes",
			Help:      "Frame cache footprint, raw and compressed.",
		}, []string{"kind"}),
		splats: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "splats",
			Help:      "Points per frame.",
		}),
	}
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}

	return r.reg
}

// FrameDone counts one frame finished in pass.
func (r *Recorder) FrameDone(pass string) {
	if r == nil {
		return
	}
	r.framesTotal.WithLabelValues(pass).Inc()
}

// ObservePass records the wall time of an encoder stage.
func (r *Recorder) ObservePass(pass string, d time.Duration) {
	if r == nil {
		return
	}
	r.passDuration.WithLabelValues(pass).Set(d.Seconds())
}

// ObserveFit records a finished codebook fit.
func (r *Recorder) ObserveFit(codebook string, entries int, d time.Duration) {
	if r == nil {
		return
	}
	r.codebookEntries.WithLabelValues(codebook).Set(float64(entries))
	r.fitDuration.WithLabelValues(codebook).Observe(d.Seconds())
}

// AddDeltaUpdates counts update records written for channel.
func (r *Recorder) AddDeltaUpdates(channel string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.deltaUpdates.WithLabelValues(channel).Add(float64(n))
}

// SetBundle records the final archive statistics.
func (r *Recorder) SetBundle(entries int, rawBytes int64) {
	if r == nil {
		return
	}
	r.bundleEntries.Set(float64(entries))
	r.bundleBytes.Set(float64(rawBytes))
}

// SetFrameCache records the frame cache footprint.
func (r *Recorder) SetFrameCache(raw, compressed int64) {
	if r == nil {
		return
	}
	r.cacheBytes.WithLabelValues("raw").Set(float64(raw))
	r.cacheBytes.WithLabelValues("compressed").Set(float64(compressed))
}

// SetSplats records the point count.
func (r *Recorder) SetSplats(n int) {
	if r == nil {
		return
	}
	r.splats.Set(float64(n))
}

// Gather returns the current metric families.
func (r *Recorder) Gather() ([]*dto.MetricFamily, error) {
	if r == nil {
		return nil, nil
	}

	return r.reg.Gather()
}

// WriteTextfile writes every metric to path in the Prometheus text format,
// suitable for the node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}

	return nil
}
