package core

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/CLEOsat-group/satellite-tracking/internal/logging"
	"github.com/CLEOsat-group/satellite-tracking/model"
)

const tracerName = "github.com/CLEOsat-group/satellite-tracking/core"

// ScanMetricsRecorder receives per-satellite scan results and pool sizing.
type ScanMetricsRecorder interface {
	ObserveScan(outcome model.Outcome, samples int, elapsed time.Duration)
	SetWorkers(n int)
}

// Dispatcher fans a catalogue out over a fixed pool of workers.
type Dispatcher struct {
	workers int
	scan    ScanFunc
	log     logging.Logger
	metrics ScanMetricsRecorder
}

// DispatcherOption configures optional collaborators on a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithScanFunc replaces the per-satellite task, Scan by default.
func WithScanFunc(fn ScanFunc) DispatcherOption {
	return func(d *Dispatcher) {
		if fn != nil {
			d.scan = fn
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m ScanMetricsRecorder) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// NewDispatcher constructs a dispatcher with the given pool size. A
// non-positive size uses one worker per CPU.
func NewDispatcher(workers int, opts ...DispatcherOption) *Dispatcher {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	d := &Dispatcher{
		workers: workers,
		scan:    Scan,
		log:     logging.Noop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Workers returns the configured pool size.
func (d *Dispatcher) Workers() int {
	return d.workers
}

// Run scans every satellite and returns the records in input order. Once
// ctx is done no further scans start; the remaining satellites get a
// failed record carrying the context error. Scans already running finish.
func (d *Dispatcher) Run(ctx context.Context, rc RunContext, satellites []string) []model.VisibilityRecord {
	results := make([]model.VisibilityRecord, len(satellites))
	if len(satellites) == 0 {
		return results
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "dispatch", trace.WithAttributes(
		attribute.Int("satellites", len(satellites)),
		attribute.Int("workers", d.workers),
	))
	defer span.End()
	if logging.LoggerFromContext(ctx) == nil {
		ctx = logging.ContextWithLogger(ctx, d.log)
	}

	workers := d.workers
	if workers > len(satellites) {
		workers = len(satellites)
	}
	if d.metrics != nil {
		d.metrics.SetWorkers(workers)
	}

	// Scans run on a context that is never cancelled so a started scan
	// always completes.
	scanCtx := context.WithoutCancel(ctx)

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = d.scanOne(scanCtx, rc, satellites[i])
			}
		}()
	}

	started := 0
feed:
	for i := range satellites {
		if ctx.Err() != nil {
			break
		}
		select {
		case jobs <- i:
			started++
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	for i := started; i < len(satellites); i++ {
		results[i] = model.VisibilityRecord{
			Satellite: satellites[i],
			Outcome:   model.OutcomePropagationFailed,
			Err:       fmt.Errorf("scan of %s not started: %w", satellites[i], ctx.Err()),
		}
	}

	var visible, failed int
	for _, r := range results {
		switch r.Outcome {
		case model.OutcomeVisible:
			visible++
		case model.OutcomePropagationFailed:
			failed++
		}
	}
	span.SetAttributes(attribute.Int("visible", visible), attribute.Int("failed", failed))
	d.log.Info(ctx, "dispatch complete",
		logging.Int("satellites", len(satellites)),
		logging.Int("workers", workers),
		logging.Int("visible", visible),
		logging.Int("failed", failed),
		logging.Int("not_started", len(satellites)-started),
	)
	return results
}

func (d *Dispatcher) scanOne(ctx context.Context, rc RunContext, satellite string) (record model.VisibilityRecord) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "scan", trace.WithAttributes(
		attribute.String("satellite", satellite),
	))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			record = model.VisibilityRecord{
				Satellite: satellite,
				Outcome:   model.OutcomePropagationFailed,
				Err:       fmt.Errorf("%w: %s: panic: %v", ErrPropagation, satellite, r),
			}
		}

		elapsed := time.Since(start)
		span.SetAttributes(
			attribute.String("outcome", record.Outcome.String()),
			attribute.Int("samples", len(record.Samples)),
		)
		if record.Err != nil {
			span.RecordError(record.Err)
			span.SetStatus(codes.Error, record.Err.Error())
			d.log.Warn(ctx, "satellite propagation failed",
				logging.String("satellite", satellite),
				logging.Err(record.Err),
			)
		}
		span.End()

		if d.metrics != nil {
			d.metrics.ObserveScan(record.Outcome, len(record.Samples), elapsed)
		}
		d.log.Debug(ctx, "satellite scanned",
			logging.String("satellite", satellite),
			logging.String("outcome", record.Outcome.String()),
			logging.Int("samples", len(record.Samples)),
			logging.Duration("elapsed", elapsed),
		)
	}()

	return d.scan(ctx, rc, satellite)
}
