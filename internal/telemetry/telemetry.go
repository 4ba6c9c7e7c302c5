package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Options describes the process exporting telemetry.
type Options struct {
	ServiceName string
	Version     string
	// Database is the dashboard database name, attached to every span and
	// metric when set.
	Database string
	// MetricInterval overrides the SDK's 60s export period when positive.
	// Pool gauges are sampled once per period.
	MetricInterval time.Duration
}

// Provider owns the trace and metric pipelines of one obddash process.
type Provider struct {
	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

// Init starts OTLP gRPC exporters and registers the providers globally.
// The endpoint comes from OTEL_EXPORTER_OTLP_ENDPOINT.
func Init(ctx context.Context, opts Options) (*Provider, error) {
	res, err := resource.New(ctx, resource.WithAttributes(resourceAttributes(opts)...))
	if err != nil {
		return nil, fmt.Errorf("creating otel resource: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	metricExporter, err := otlpmetricgrpc.New(ctx)
	if err != nil {
		_ = traceExporter.Shutdown(ctx)
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if opts.MetricInterval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(opts.MetricInterval))
	}

	p := &Provider{
		tp: sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(traceExporter),
			sdktrace.WithResource(res),
		),
		mp: sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, readerOpts...)),
			sdkmetric.WithResource(res),
		),
	}

	otel.SetTracerProvider(p.tp)
	otel.SetMeterProvider(p.mp)
	// W3C trace context from incoming dashboard requests; stdio carries no headers.
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return p, nil
}

func resourceAttributes(opts Options) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(opts.ServiceName),
		semconv.ServiceVersion(opts.Version),
		semconv.DBSystemPostgreSQL,
	}
	if opts.Database != "" {
		attrs = append(attrs, semconv.DBNamespace(opts.Database))
	}
	return attrs
}

// Instruments builds the query, cache and pool instruments on this
// provider's meter. A nil Provider yields noop instruments.
func (p *Provider) Instruments() *Instruments {
	if p == nil || p.mp == nil {
		return NoopInstruments()
	}
	return newInstrumentsFromMeter(p.mp.Meter(meterName))
}

// Tracer returns the named tracer, or a noop tracer when p is nil.
func (p *Provider) Tracer(name string) trace.Tracer {
	if p == nil || p.tp == nil {
		return NoopTracer()
	}
	return p.tp.Tracer(name)
}

// Shutdown flushes pending spans and a final metric collection. Metrics go
// first so the last pool gauge sample is exported before traces close.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.mp != nil {
		if err := p.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutting down meter: %w", err))
		}
	}
	if p.tp != nil {
		if err := p.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutting down tracer: %w", err))
		}
	}
	return errors.Join(errs...)
}

// NoopTracer returns a tracer that records nothing, used when OTel is off.
func NoopTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer("noop")
}
