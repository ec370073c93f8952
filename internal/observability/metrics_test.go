package observability

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/CLEOsat-group/satellite-tracking/model"
)

func TestScanCollectorRecordsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewScanCollector(reg)
	if err != nil {
		t.Fatalf("NewScanCollector: %v", err)
	}

	collector.ObserveScan(model.OutcomeVisible, 12, 40*time.Millisecond)
	collector.ObserveScan(model.OutcomeVisible, 3, 20*time.Millisecond)
	collector.ObserveScan(model.OutcomeNotVisible, 0, 10*time.Millisecond)
	collector.ObserveScan(model.OutcomePropagationFailed, 0, time.Millisecond)
	collector.SetWorkers(8)

	if got := testutil.ToFloat64(collector.SatellitesScanned.WithLabelValues("visible")); got != 2 {
		t.Fatalf("track_satellites_scanned_total{visible} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.SatellitesScanned.WithLabelValues("propagation_failed")); got != 1 {
		t.Fatalf("track_satellites_scanned_total{propagation_failed} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.VisibleSamples); got != 15 {
		t.Fatalf("track_visible_samples_total = %v, want 15", got)
	}
	if got := testutil.ToFloat64(collector.DispatchWorkers); got != 8 {
		t.Fatalf("track_dispatch_workers = %v, want 8", got)
	}
	if count := histogramSampleCount(t, reg, "track_scan_duration_seconds", map[string]string{
		"outcome": "visible",
	}); count != 2 {
		t.Fatalf("track_scan_duration_seconds{visible} sample_count = %d, want 2", count)
	}
}

func TestScanCollectorReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewScanCollector(reg)
	if err != nil {
		t.Fatalf("NewScanCollector: %v", err)
	}
	second, err := NewScanCollector(reg)
	if err != nil {
		t.Fatalf("second NewScanCollector: %v", err)
	}

	first.ObserveScan(model.OutcomeVisible, 1, time.Millisecond)
	if got := testutil.ToFloat64(second.SatellitesScanned.WithLabelValues("visible")); got != 1 {
		t.Fatalf("second collector does not share series: %v", got)
	}
}

func TestNilScanCollectorIsSafe(t *testing.T) {
	var c *ScanCollector
	c.ObserveScan(model.OutcomeVisible, 1, time.Second)
	c.SetWorkers(3)
	if c.Gatherer() != nil {
		t.Fatalf("nil collector returned a gatherer")
	}
}

func TestMetricsHandlerAndTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	scans, err := NewScanCollector(reg)
	if err != nil {
		t.Fatalf("NewScanCollector: %v", err)
	}
	catalogue, err := NewCatalogueCollector(reg)
	if err != nil {
		t.Fatalf("NewCatalogueCollector: %v", err)
	}
	scans.ObserveScan(model.OutcomeVisible, 4, time.Millisecond)
	catalogue.SetRecords(5)
	catalogue.ObserveDownload(200 * time.Millisecond)
	catalogue.ObserveCacheLookup(true)
	catalogue.ObserveCacheLookup(false)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	scans.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}

	path := filepath.Join(t.TempDir(), "track.prom")
	if err := WriteTextfile(path, catalogue.Gatherer()); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}

	for _, body := range []string{rr.Body.String(), string(data)} {
		for _, metric := range []string{
			"track_satellites_scanned_total",
			"track_visible_samples_total",
			"track_tle_records 5",
			"track_tle_downloads_total 1",
			`track_tle_cache_lookups_total{result="hit"} 1`,
			"track_tle_fetch_duration_seconds",
		} {
			if !strings.Contains(body, metric) {
				t.Fatalf("expected %q in exposition:\n%s", metric, body)
			}
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
