package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/CLEOsat-group/satellite-tracking/model"
)

// ScanCollector bundles Prometheus metrics for visibility scans. It
// satisfies core.ScanMetricsRecorder.
type ScanCollector struct {
	gatherer prometheus.Gatherer

	SatellitesScanned *prometheus.CounterVec
	ScanDurations     *prometheus.HistogramVec
	VisibleSamples    prometheus.Counter
	DispatchWorkers   prometheus.Gauge
}

// NewScanCollector registers scan metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewScanCollector(reg prometheus.Registerer) (*ScanCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	scanned := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "track_satellites_scanned_total",
		Help: "Satellites scanned, labeled by outcome (visible, not_visible, propagation_failed).",
	}, []string{"outcome"})
	scanned, err := registerCounterVec(reg, scanned, "track_satellites_scanned_total")
	if err != nil {
		return nil, err
	}

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "track_scan_duration_seconds",
		Help:    "Wall time of one satellite scan in seconds.",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"outcome"})
	durations, err = registerHistogramVec(reg, durations, "track_scan_duration_seconds")
	if err != nil {
		return nil, err
	}

	samples, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "track_visible_samples_total",
		Help: "Visible samples recorded across all scans.",
	}), "track_visible_samples_total")
	if err != nil {
		return nil, err
	}

	workers, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "track_dispatch_workers",
		Help: "Worker goroutines used by the most recent dispatch.",
	}), "track_dispatch_workers")
	if err != nil {
		return nil, err
	}

	return &ScanCollector{
		gatherer:          gatherer,
		SatellitesScanned: scanned,
		ScanDurations:     durations,
		VisibleSamples:    samples,
		DispatchWorkers:   workers,
	}, nil
}

// ObserveScan records the result of one satellite scan.
func (c *ScanCollector) ObserveScan(outcome model.Outcome, samples int, elapsed time.Duration) {
	if c == nil {
		return
	}
	label := outcome.String()
	if c.SatellitesScanned != nil {
		c.SatellitesScanned.WithLabelValues(label).Inc()
	}
	if c.ScanDurations != nil {
		c.ScanDurations.WithLabelValues(label).Observe(elapsed.Seconds())
	}
	if c.VisibleSamples != nil && samples > 0 {
		c.VisibleSamples.Add(float64(samples))
	}
}

// SetWorkers updates the dispatch pool gauge.
func (c *ScanCollector) SetWorkers(n int) {
	if c == nil || c.DispatchWorkers == nil {
		return
	}
	c.DispatchWorkers.Set(float64(n))
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *ScanCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *ScanCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// WriteTextfile writes every metric known to g to path in the text
// exposition format, for the node exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
