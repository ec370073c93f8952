package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CatalogueCollector exposes metrics about TLE acquisition and the loaded
// catalogue.
type CatalogueCollector struct {
	gatherer prometheus.Gatherer

	TLERecords    prometheus.Gauge
	FetchDuration prometheus.Histogram
	Downloads     prometheus.Counter
	CacheLookups  *prometheus.CounterVec
}

// NewCatalogueCollector registers catalogue metrics against the provided registerer.
func NewCatalogueCollector(reg prometheus.Registerer) (*CatalogueCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	records := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "track_tle_records",
		Help: "TLE records loaded into the catalogue.",
	})
	records, err := registerGauge(reg, records, "track_tle_records")
	if err != nil {
		return nil, err
	}

	fetch := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "track_tle_fetch_duration_seconds",
		Help:    "Duration of TLE file downloads.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})
	fetch, err = registerHistogram(reg, fetch, "track_tle_fetch_duration_seconds")
	if err != nil {
		return nil, err
	}

	downloads := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "track_tle_downloads_total",
		Help: "Completed TLE file downloads.",
	})
	downloads, err = registerCounter(reg, downloads, "track_tle_downloads_total")
	if err != nil {
		return nil, err
	}

	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "track_tle_cache_lookups_total",
		Help: "TLE cache lookups, labeled by result (hit, miss).",
	}, []string{"result"})
	lookups, err = registerCounterVec(reg, lookups, "track_tle_cache_lookups_total")
	if err != nil {
		return nil, err
	}

	return &CatalogueCollector{
		gatherer:      gatherer,
		TLERecords:    records,
		FetchDuration: fetch,
		Downloads:     downloads,
		CacheLookups:  lookups,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *CatalogueCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// SetRecords updates the catalogue size gauge.
func (c *CatalogueCollector) SetRecords(count int) {
	if c == nil || c.TLERecords == nil {
		return
	}
	c.TLERecords.Set(float64(count))
}

// ObserveDownload records one completed download.
func (c *CatalogueCollector) ObserveDownload(d time.Duration) {
	if c == nil {
		return
	}
	if c.FetchDuration != nil {
		c.FetchDuration.Observe(d.Seconds())
	}
	if c.Downloads != nil {
		c.Downloads.Inc()
	}
}

// ObserveCacheLookup records a cache hit or miss.
func (c *CatalogueCollector) ObserveCacheLookup(hit bool) {
	if c == nil || c.CacheLookups == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.CacheLookups.WithLabelValues(result).Inc()
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
