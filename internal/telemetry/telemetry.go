// Package telemetry wires tracing, metrics and structured logging.
package telemetry

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/straja-ai/fakescan"

// Config controls telemetry setup.
type Config struct {
	Enabled  bool
	Endpoint string
	Protocol string // grpc | http
	Service  string
	Version  string
	// MetricsEnabled exposes a Prometheus scrape handler independent of OTLP.
	MetricsEnabled bool
}

// Provider wires tracer/meter providers and exposes helpers.
type Provider struct {
	Enabled bool
	tracer  trace.Tracer
	meter   metric.Meter
	metrics http.Handler

	analysesCounter       metric.Int64Counter
	analysisDuration      metric.Float64Histogram
	classifierDuration    metric.Float64Histogram
	framesCounter         metric.Int64Counter
	modelLoadsCounter     metric.Int64Counter
	modelLoadDuration     metric.Float64Histogram
	eventDeliveries       metric.Int64Counter
	shutdownTraceProvider func(context.Context) error
	shutdownMeterProvider func(context.Context) error
}

// NewProvider configures exporters and providers. With everything disabled
// it returns no-op providers.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Service == "" {
		cfg.Service = "fakescan"
	}
	p := &Provider{
		Enabled: cfg.Enabled,
		tracer:  trace.NewNoopTracerProvider().Tracer(""),
		meter:   noop.NewMeterProvider().Meter(""),
	}
	if !cfg.Enabled && !cfg.MetricsEnabled {
		p.initInstruments()
		return p, nil
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			attribute.String("service.name", cfg.Service),
			attribute.String("service.version", cfg.Version),
		),
	)
	if err != nil {
		return nil, err
	}

	var readers []sdkmetric.Option
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		exp, err := promexporter.New(promexporter.WithRegisterer(reg))
		if err != nil {
			return nil, err
		}
		readers = append(readers, sdkmetric.WithReader(exp))
		p.metrics = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	if cfg.Enabled {
		slog.Info("telemetry enabled", "protocol", strings.ToLower(cfg.Protocol), "endpoint", cfg.Endpoint,
			"note", "periodic 'failed to upload metrics' warnings are expected without a collector")

		var tp *sdktrace.TracerProvider
		var metricReader sdkmetric.Reader
		switch strings.ToLower(cfg.Protocol) {
		case "", "grpc":
			texp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(cfg.Endpoint), otlptracegrpc.WithInsecure())
			if err != nil {
				return nil, err
			}
			tp = sdktrace.NewTracerProvider(
				sdktrace.WithSampler(sdktrace.AlwaysSample()),
				sdktrace.WithBatcher(texp),
				sdktrace.WithResource(res),
			)
			mexp, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithEndpoint(cfg.Endpoint), otlpmetricgrpc.WithInsecure())
			if err != nil {
				return nil, err
			}
			metricReader = sdkmetric.NewPeriodicReader(mexp)
		case "http":
			texp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(cfg.Endpoint), otlptracehttp.WithInsecure())
			if err != nil {
				return nil, err
			}
			tp = sdktrace.NewTracerProvider(
				sdktrace.WithSampler(sdktrace.AlwaysSample()),
				sdktrace.WithBatcher(texp),
				sdktrace.WithResource(res),
			)
			mexp, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(cfg.Endpoint), otlpmetrichttp.WithInsecure())
			if err != nil {
				return nil, err
			}
			metricReader = sdkmetric.NewPeriodicReader(mexp)
		default:
			return nil, errUnknownProtocol(cfg.Protocol)
		}
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
		p.tracer = tp.Tracer(instrumentationName)
		p.shutdownTraceProvider = tp.Shutdown
		readers = append(readers, sdkmetric.WithReader(metricReader))
	}

	mp := sdkmetric.NewMeterProvider(append(readers, sdkmetric.WithResource(res))...)
	if cfg.Enabled {
		otel.SetMeterProvider(mp)
	}
	p.meter = mp.Meter(instrumentationName)
	p.shutdownMeterProvider = mp.Shutdown
	p.initInstruments()
	return p, nil
}

func (p *Provider) initInstruments() {
	if p == nil {
		return
	}
	// Instruments are best-effort; a failed registration leaves a no-op.
	p.analysesCounter, _ = p.meter.Int64Counter("fakescan_analyses_total",
		metric.WithDescription("Completed analyses by file type, label and outcome."))
	p.analysisDuration, _ = p.meter.Float64Histogram("fakescan_analysis_duration_ms",
		metric.WithDescription("End-to-end analysis latency in milliseconds."))
	p.classifierDuration, _ = p.meter.Float64Histogram("fakescan_classifier_inference_duration_ms",
		metric.WithDescription("Classifier inference latency in milliseconds."))
	p.framesCounter, _ = p.meter.Int64Counter("fakescan_frames_analyzed_total",
		metric.WithDescription("Video frames scored."))
	p.modelLoadsCounter, _ = p.meter.Int64Counter("fakescan_model_loads_total",
		metric.WithDescription("Model load attempts by model and outcome."))
	p.modelLoadDuration, _ = p.meter.Float64Histogram("fakescan_model_load_duration_ms",
		metric.WithDescription("Model load latency in milliseconds."))
	p.eventDeliveries, _ = p.meter.Int64Counter("fakescan_event_deliveries_total",
		metric.WithDescription("Analysis event deliveries by sink and outcome."))
}

// Tracer returns the tracer.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil {
		return trace.NewNoopTracerProvider().Tracer("")
	}
	return p.tracer
}

// Meter returns the meter.
func (p *Provider) Meter() metric.Meter {
	if p == nil {
		return noop.NewMeterProvider().Meter("")
	}
	return p.meter
}

// MetricsHandler serves the Prometheus exposition, or nil when metrics are off.
func (p *Provider) MetricsHandler() http.Handler {
	if p == nil {
		return nil
	}
	return p.metrics
}

// StartSpan starts a span carrying only attributes that pass SafeAttributes.
func (p *Provider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return p.Tracer().Start(ctx, name, trace.WithAttributes(SafeAttributes(attrs...)...))
}

// Shutdown flushes providers.
func (p *Provider) Shutdown(ctx context.Context) {
	if p == nil {
		return
	}
	if p.shutdownTraceProvider != nil {
		_ = p.shutdownTraceProvider(ctx)
	}
	if p.shutdownMeterProvider != nil {
		_ = p.shutdownMeterProvider(ctx)
	}
}

// RecordAnalysis counts one finished analysis.
func (p *Provider) RecordAnalysis(ctx context.Context, fileType, label, outcome string, dur time.Duration) {
	if p == nil || p.analysesCounter == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("file_type", fileType),
		attribute.String("label", label),
		attribute.String("outcome", outcome),
	)
	p.analysesCounter.Add(ctx, 1, attrs)
	p.analysisDuration.Record(ctx, ms(dur), attrs)
}

// RecordClassifierInference records one model call.
func (p *Provider) RecordClassifierInference(ctx context.Context, model string, dur time.Duration) {
	if p == nil || p.classifierDuration == nil {
		return
	}
	p.classifierDuration.Record(ctx, ms(dur), metric.WithAttributes(attribute.String("model", model)))
}

// RecordFrames counts scored video frames.
func (p *Provider) RecordFrames(ctx context.Context, n int) {
	if p == nil || p.framesCounter == nil || n <= 0 {
		return
	}
	p.framesCounter.Add(ctx, int64(n))
}

// RecordModelLoad counts a load attempt. Its signature matches
// classifier.LoadObserver.
func (p *Provider) RecordModelLoad(model string, err error, dur time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "error"
		slog.Warn("model load failed", "model", model, "error", err, "duration_ms", ms(dur))
	} else {
		slog.Info("model loaded", "model", model, "duration_ms", ms(dur))
	}
	if p == nil || p.modelLoadsCounter == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("model", model), attribute.String("outcome", outcome))
	p.modelLoadsCounter.Add(context.Background(), 1, attrs)
	p.modelLoadDuration.Record(context.Background(), ms(dur), attrs)
}

// RecordEventDelivery counts one sink delivery. Its signature matches
// events.DeliveryObserver.
func (p *Provider) RecordEventDelivery(sink string, err error) {
	if p == nil || p.eventDeliveries == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	p.eventDeliveries.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("sink", sink),
		attribute.String("outcome", outcome),
	))
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

type errUnknownProtocol string

func (e errUnknownProtocol) Error() string {
	return "unknown telemetry protocol " + string(e) + " (want grpc or http)"
}
