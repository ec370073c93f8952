package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/CLEOsat-group/satellite-tracking/internal/logging"
)

const serviceName = "satellite-track"

// Exporters accepted in TRACK_TRACE.
const (
	ExporterNone   = ""
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// RunAttributes identify one batch run on every exported span.
type RunAttributes struct {
	RunID       string
	Brand       string
	Observatory string
	Window      string
}

func (r RunAttributes) keyValues() []attribute.KeyValue {
	kv := []attribute.KeyValue{attribute.String("service.name", serviceName)}
	for _, a := range []struct{ key, value string }{
		{"track.run_id", r.RunID},
		{"track.brand", r.Brand},
		{"track.observatory", r.Observatory},
		{"track.window", r.Window},
	} {
		if a.value != "" {
			kv = append(kv, attribute.String(a.key, a.value))
		}
	}
	return kv
}

// TracingConfig selects where the spans of a run go. An empty Exporter
// turns tracing off.
type TracingConfig struct {
	Exporter    string
	Endpoint    string    // otlp collector, host:port
	SampleRatio float64   // fraction of runs traced
	Output      io.Writer // stdout exporter destination, os.Stderr when nil
	Run         RunAttributes
}

// TracingConfigFromEnv reads TRACK_TRACE (stdout|otlp), TRACK_OTLP_ENDPOINT
// and TRACK_TRACE_SAMPLE_RATIO. Unknown exporters are kept so InitTracing
// can reject them.
func TracingConfigFromEnv(run RunAttributes) TracingConfig {
	ratio := 1.0
	if raw := os.Getenv("TRACK_TRACE_SAMPLE_RATIO"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil && parsed >= 0 && parsed <= 1 {
			ratio = parsed
		}
	}
	return TracingConfig{
		Exporter:    strings.ToLower(strings.TrimSpace(os.Getenv("TRACK_TRACE"))),
		Endpoint:    os.Getenv("TRACK_OTLP_ENDPOINT"),
		SampleRatio: ratio,
		Run:         run,
	}
}

// InitTracing installs the global tracer provider for one run and returns
// the function that flushes it.
func InitTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (func(context.Context) error, error) {
	if log == nil {
		log = logging.Noop()
	}
	otel.SetTextMapPropagator(propagation.TraceContext{})

	var exp sdktrace.SpanExporter
	var err error
	switch cfg.Exporter {
	case ExporterNone:
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	case ExporterStdout:
		out := cfg.Output
		if out == nil {
			out = os.Stderr
		}
		exp, err = stdouttrace.New(stdouttrace.WithWriter(out), stdouttrace.WithoutTimestamps())
	case ExporterOTLP:
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = "localhost:4317"
		}
		exp, err = otlptrace.New(ctx, otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		))
	default:
		return nil, fmt.Errorf("unsupported tracing exporter %q", cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s exporter: %w", cfg.Exporter, err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewSchemaless(cfg.Run.keyValues()...)),
	)
	otel.SetTracerProvider(tp)

	log.Info(ctx, "tracing enabled",
		logging.String("exporter", cfg.Exporter),
		logging.Float("sample_ratio", cfg.SampleRatio),
	)
	return tp.Shutdown, nil
}

// ShutdownWithTimeout flushes spans for at most five seconds. Failures are
// logged, never returned.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error, log logging.Logger) {
	if shutdown == nil {
		return
	}
	if log == nil {
		log = logging.Noop()
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Warn(ctx, "tracing shutdown failed", logging.Err(err))
	}
}
