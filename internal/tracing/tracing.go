// Package tracing sets up the OpenTelemetry tracer used around interaction handling.
//
// Tracing is optional. Without a Honeycomb API key (and without the stdout
// exporter selected) a noop tracer is handed out and nothing is exported.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc/credentials"

	"renamebot/internal/config"
)

const tracerName = "renamebot"

// ErrUnknownExporter is returned when trace_exporter names an exporter we don't ship.
var ErrUnknownExporter = errors.New("unknown trace exporter")

// Provider owns the tracer provider for the lifetime of the process
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// Init builds the tracer provider described by cfg.
// The returned Provider is always usable; Enabled reports whether spans leave the process.
func Init(ctx context.Context, cfg *config.Config) (*Provider, error) {
	return initWithWriter(ctx, cfg, os.Stdout)
}

func initWithWriter(ctx context.Context, cfg *config.Config, stdout io.Writer) (*Provider, error) {
	exporterName := cfg.GetTraceExporter()
	if exporterName != "stdout" && cfg.GetHoneycombAPIKey() == "" {
		cfg.Logger.Warn("No Honeycomb API key attached, tracing disabled")
		return Disabled(), nil
	}

	cfg.Logger.Info("starting trace initialization", "exporter", exporterName)

	var exporter sdktrace.SpanExporter
	var err error

	switch exporterName {
	case "otlp", "":
		exporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.GetOTLPEndpoint()),
			otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")),
			otlptracegrpc.WithHeaders(map[string]string{
				"x-honeycomb-team":    cfg.GetHoneycombAPIKey(),
				"x-honeycomb-dataset": cfg.GetHoneycombDataset(),
			}),
		)
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(stdout), stdouttrace.WithPrettyPrint())
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, exporterName)
	}
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(cfg.GetServiceName())))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	cfg.Logger.Info("Tracing initialized")
	return &Provider{tp: tp, tracer: tp.Tracer(tracerName)}, nil
}

// Disabled returns a Provider whose tracer records nothing
func Disabled() *Provider {
	return &Provider{tracer: noop.NewTracerProvider().Tracer(tracerName)}
}

// NewProvider wraps an existing SDK tracer provider, mostly for tests with span recorders
func NewProvider(tp *sdktrace.TracerProvider) *Provider {
	return &Provider{tp: tp, tracer: tp.Tracer(tracerName)}
}

func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

func (p *Provider) Enabled() bool {
	return p.tp != nil
}

// Shutdown flushes pending spans and stops the exporter
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	if err := p.tp.ForceFlush(ctx); err != nil {
		return fmt.Errorf("flush spans: %w", err)
	}
	return p.tp.Shutdown(ctx)
}

// InstrumentClient makes every request sent through c emit a client span.
// Nothing changes while tracing is disabled.
func (p *Provider) InstrumentClient(c *http.Client) {
	if c == nil || p.tp == nil {
		return
	}
	c.Transport = otelhttp.NewTransport(c.Transport,
		otelhttp.WithTracerProvider(p.tp),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "discordAPI " + r.Method
		}),
	)
}

// StartSpan starts a child span of whatever span ctx carries.
// A nil tracer yields a non-recording span that is safe to End, so callers never need to nil-check.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(context.Background())
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordError records err on span and marks the span as failed
func RecordError(span trace.Span, err error) {
	if err == nil || span == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
