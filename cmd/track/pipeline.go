package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/CLEOsat-group/satellite-tracking/core"
	"github.com/CLEOsat-group/satellite-tracking/internal/config"
	"github.com/CLEOsat-group/satellite-tracking/internal/ephem"
	"github.com/CLEOsat-group/satellite-tracking/internal/logging"
	"github.com/CLEOsat-group/satellite-tracking/internal/observability"
	"github.com/CLEOsat-group/satellite-tracking/internal/report"
	"github.com/CLEOsat-group/satellite-tracking/internal/tle"
	"github.com/CLEOsat-group/satellite-tracking/kb"
	"github.com/CLEOsat-group/satellite-tracking/model"
)

const (
	timeLayout     = "2006-01-02 15:04:05 MST"
	configCopyName = "track.yaml"
	tracerName     = "github.com/CLEOsat-group/satellite-tracking/cmd/track"
)

// pipeline holds everything resolved from the configuration before any
// network or disk work happens.
type pipeline struct {
	cfg         *config.Config
	log         logging.Logger
	observatory model.Observatory
	spec        model.TimeWindowSpec
	window      model.ResolvedWindow
	metricsAddr string

	registry *prometheus.Registry
	scans    *observability.ScanCollector
	tles     *observability.CatalogueCollector
}

func newPipeline(opts *options, log logging.Logger) (*pipeline, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if opts.workers > 0 {
		cfg.Run.Workers = opts.workers
	}
	if opts.date != "" {
		if err := cfg.SetDate(opts.date); err != nil {
			return nil, err
		}
	}
	if opts.window != "" {
		if err := cfg.SetWindow(opts.window); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	in, err := cfg.ObservatoryInput()
	if err != nil {
		return nil, err
	}
	obs, err := core.ResolveObservatory(in)
	if err != nil {
		return nil, err
	}
	spec, err := cfg.WindowSpec()
	if err != nil {
		return nil, err
	}
	window, err := core.ResolveWindow(spec, obs.UTCOffset)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	scans, err := observability.NewScanCollector(registry)
	if err != nil {
		return nil, fmt.Errorf("register scan metrics: %w", err)
	}
	tles, err := observability.NewCatalogueCollector(registry)
	if err != nil {
		return nil, fmt.Errorf("register catalogue metrics: %w", err)
	}

	return &pipeline{
		cfg:         cfg,
		log:         log,
		observatory: obs,
		spec:        spec,
		window:      window,
		metricsAddr: opts.metricsAddr,
		registry:    registry,
		scans:       scans,
		tles:        tles,
	}, nil
}

// tleFile is a TLE file and the name it is saved under next to the reports.
type tleFile struct {
	name string
	data []byte
}

// obtainTLE downloads the brand's TLE file through the cache, or reads the
// configured file when downloads are off.
func (p *pipeline) obtainTLE(ctx context.Context) (tleFile, error) {
	cat := p.cfg.Catalogue
	if !cat.Download {
		data, err := os.ReadFile(cat.File)
		if err != nil {
			return tleFile{}, fmt.Errorf("read TLE file: %w", err)
		}
		p.log.Info(ctx, "using configured TLE file", logging.String("path", cat.File))
		return tleFile{name: filepath.Base(cat.File), data: data}, nil
	}

	src := &tle.Source{
		Fetcher: tle.NewFetcher(cat.BaseURL, p.log),
		Cache:   p.cache(),
		MaxAge:  cat.Cache.MaxAge,
		Metrics: p.tles,
		Log:     p.log,
	}
	data, fetchedAt, err := src.Load(ctx, cat.Brand)
	if err != nil {
		return tleFile{}, err
	}
	name := fmt.Sprintf("tle_%s_%s.txt", strings.ToLower(cat.Brand), fetchedAt.UTC().Format("2006_01_02_15_04_05"))
	return tleFile{name: name, data: data}, nil
}

func (p *pipeline) cache() tle.Cache {
	c := p.cfg.Catalogue.Cache
	if c.RedisAddr != "" {
		return tle.NewRedisCache(tle.NewRedisClient(c.RedisAddr, c.RedisPassword, c.RedisDB), "", c.MaxAge)
	}
	return tle.NewFileCache(c.Directory, c.MaxFiles)
}

// loadCatalogue parses data into a fresh catalogue. Duplicate names keep
// their first record.
func (p *pipeline) loadCatalogue(ctx context.Context, data []byte) (*kb.Catalogue, error) {
	recs, err := tle.Parse(ctx, bytes.NewReader(data), p.log)
	if err != nil {
		return nil, err
	}
	cat := kb.NewCatalogue()
	unsubscribe := cat.Subscribe(func(ev kb.Event) {
		p.tles.SetRecords(ev.Size)
	})
	defer unsubscribe()

	skipped, err := cat.Load(recs)
	if err != nil {
		return nil, err
	}
	if len(skipped) > 0 {
		p.log.Warn(ctx, "skipped duplicate TLE records",
			logging.Int("count", len(skipped)),
			logging.String("first", skipped[0]),
		)
	}
	p.log.Info(ctx, "loaded TLE catalogue", logging.Int("records", cat.Len()))
	return cat, nil
}

func (p *pipeline) outputWriter() (*report.Writer, error) {
	dir := report.Directory(p.cfg.Output.Directory, p.cfg.Catalogue.Brand, p.spec)
	return report.NewWriter(dir, p.log)
}

// run is the full batch: TLE file, catalogue, dispatch, reports.
func (p *pipeline) run(ctx context.Context, stdout io.Writer) error {
	shutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(observability.RunAttributes{
		RunID:       logging.RunIDFromContext(ctx),
		Brand:       p.cfg.Catalogue.Brand,
		Observatory: p.observatory.Name,
		Window:      p.spec.Label(),
	}), p.log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.WithoutCancel(ctx), shutdown, p.log)

	ctx, span := otel.Tracer(tracerName).Start(ctx, "track.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("brand", p.cfg.Catalogue.Brand),
		attribute.String("observatory", p.observatory.Name),
		attribute.String("window", p.spec.Label()),
	)

	if p.metricsAddr != "" {
		srv := serveMetrics(p.metricsAddr, p.scans, p.log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	src, err := p.obtainTLE(ctx)
	if err != nil {
		return err
	}
	cat, err := p.loadCatalogue(ctx, src.data)
	if err != nil {
		return err
	}
	satellites := cat.Match(tle.BrandPattern(p.cfg.Catalogue.Brand))
	if len(satellites) == 0 {
		p.log.Warn(ctx, "no satellite matches the brand", logging.String("brand", p.cfg.Catalogue.Brand))
	}

	rc := core.RunContext{
		Observatory: p.observatory,
		Constraints: p.cfg.ObservationConstraints(),
		Window:      p.window,
		Orbits:      ephem.NewOrbitSource(cat),
		Sky:         ephem.Sky{},
	}
	if err := rc.Validate(); err != nil {
		return err
	}
	p.log.Info(ctx, "scanning satellites",
		logging.Int("satellites", len(satellites)),
		logging.String("start", p.window.Start.Format(time.RFC3339)),
		logging.String("end", p.window.End.Format(time.RFC3339)),
		logging.Duration("cadence", p.window.Cadence),
		logging.Int("steps", p.window.Steps()),
	)
	dispatcher := core.NewDispatcher(p.cfg.Run.Workers,
		core.WithLogger(p.log),
		core.WithMetricsRecorder(p.scans),
	)
	records := dispatcher.Run(ctx, rc, satellites)

	w, err := p.outputWriter()
	if err != nil {
		return err
	}
	header := report.Header{
		Brand:       p.cfg.Catalogue.Brand,
		Observatory: p.observatory,
		Spec:        p.spec,
		Window:      p.window,
		Constraints: rc.Constraints,
	}
	files := report.Files{Complete: p.cfg.Output.Complete, Simple: p.cfg.Output.Simple}
	if err := w.WriteReports(ctx, files, header, records); err != nil {
		return err
	}
	if err := w.WriteBytes(ctx, src.name, src.data); err != nil {
		return err
	}
	if err := w.WriteFile(ctx, configCopyName, p.cfg.Encode); err != nil {
		return err
	}
	if path := p.cfg.Run.MetricsFile; path != "" {
		if err := observability.WriteTextfile(path, p.registry); err != nil {
			p.log.Warn(ctx, "writing metrics textfile failed", logging.String("path", path), logging.Err(err))
		}
	}

	counts := report.Count(records)
	span.SetAttributes(
		attribute.Int("satellites", len(records)),
		attribute.Int("visible", counts.Visible),
		attribute.Int("failed", counts.Failed),
	)
	fmt.Fprintf(stdout, "%s: %d visible, %d not visible, %d failed of %d satellites\n",
		w.Dir(), counts.Visible, counts.NotVisible, counts.Failed, len(records))
	return ctx.Err()
}

func serveMetrics(addr string, collector *observability.ScanCollector, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
