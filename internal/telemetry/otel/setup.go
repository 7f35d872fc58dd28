// Package otel ships the server's spans, registration counters and account event
// records to one OTLP/gRPC collector. otelhttp and the account services pick up the
// global tracer and meter; events go through the LoggerProvider via NewEventEmitter.
package otel

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

// counterExportInterval is how often registration and verification counters are pushed.
const counterExportInterval = 10 * time.Second

// Providers are the SDK providers the server runs with. Shutdown flushes and stops all of them.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *metric.MeterProvider
	LoggerProvider *sdklog.LoggerProvider
	Shutdown       func(context.Context) error
}

// NewProviders connects the server to the collector at endpoint (OTEL_EXPORTER_OTLP_ENDPOINT).
// With no endpoint, spans, counters and events are recorded in-process and dropped.
func NewProviders(ctx context.Context, endpoint, serviceName string, insecureOverride bool) (*Providers, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return &Providers{
			TracerProvider: sdktrace.NewTracerProvider(),
			MeterProvider:  metric.NewMeterProvider(),
			LoggerProvider: sdklog.NewLoggerProvider(),
			Shutdown:       func(context.Context) error { return nil },
		}, nil
	}

	c, err := newCollector(endpoint, serviceName, insecureOverride)
	if err != nil {
		return nil, err
	}

	var stack shutdownStack
	fail := func(err error) (*Providers, error) {
		return nil, errors.Join(err, stack.shutdown(ctx))
	}

	tp, err := c.tracerProvider(ctx)
	if err != nil {
		return fail(err)
	}
	stack = append(stack, tp.Shutdown)

	mp, err := c.meterProvider(ctx)
	if err != nil {
		return fail(err)
	}
	stack = append(stack, mp.Shutdown)

	lp, err := c.loggerProvider(ctx)
	if err != nil {
		return fail(err)
	}
	stack = append(stack, lp.Shutdown)

	return &Providers{
		TracerProvider: tp,
		MeterProvider:  mp,
		LoggerProvider: lp,
		Shutdown:       stack.shutdown,
	}, nil
}

// collector is where every signal is exported, tagged with this service's resource.
type collector struct {
	target   string
	insecure bool
	res      *resource.Resource
}

func newCollector(endpoint, serviceName string, insecureOverride bool) (*collector, error) {
	target, secure, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}
	return &collector{target: target, insecure: insecureOverride || !secure, res: res}, nil
}

// tracerProvider batches request and service spans.
func (c *collector) tracerProvider(ctx context.Context) (*sdktrace.TracerProvider, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(c.target)}
	if c.insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp), sdktrace.WithResource(c.res)), nil
}

// meterProvider pushes the registration and verification counters periodically.
func (c *collector) meterProvider(ctx context.Context) (*metric.MeterProvider, error) {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(c.target)}
	if c.insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("metric exporter: %w", err)
	}
	reader := metric.NewPeriodicReader(exp, metric.WithInterval(counterExportInterval))
	return metric.NewMeterProvider(metric.WithReader(reader), metric.WithResource(c.res)), nil
}

// loggerProvider carries account events written by EventEmitter.
func (c *collector) loggerProvider(ctx context.Context) (*sdklog.LoggerProvider, error) {
	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(c.target)}
	if c.insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exp, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("log exporter: %w", err)
	}
	return sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exp)),
		sdklog.WithResource(c.res),
	), nil
}

// shutdownStack stops providers newest first and reports every failure.
type shutdownStack []func(context.Context) error

func (s shutdownStack) shutdown(ctx context.Context) error {
	var errs []error
	for i := len(s) - 1; i >= 0; i-- {
		if err := s[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// parseEndpoint turns OTEL_EXPORTER_OTLP_ENDPOINT into a gRPC dial target.
// Any path is dropped. A bare host:port counts as plaintext; only https is secure.
func parseEndpoint(endpoint string) (target string, secure bool, err error) {
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("invalid OTLP endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("invalid OTLP endpoint %q: missing host", endpoint)
	}
	return u.Host, u.Scheme == "https", nil
}

// SetGlobal installs the tracer and meter used by otelhttp and the account services,
// and propagates W3C trace context and baggage on incoming requests.
func (p *Providers) SetGlobal() {
	if p.TracerProvider != nil {
		otel.SetTracerProvider(p.TracerProvider)
	}
	if p.MeterProvider != nil {
		otel.SetMeterProvider(p.MeterProvider)
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
}
