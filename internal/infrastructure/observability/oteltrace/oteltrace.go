package oteltrace

import (
	"context"

	"github.com/Zhima-Mochi/marketplace-saga/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultName = "marketplace"

type tracer struct {
	provider trace.TracerProvider
	name     string
	version  string
	fixed    []attribute.KeyValue
}

type Option func(*tracer)

// WithProvider pins a provider instead of the global one. Tests use it with an in-memory exporter.
func WithProvider(tp trace.TracerProvider) Option { return func(t *tracer) { t.provider = tp } }

func WithVersion(v string) Option { return func(t *tracer) { t.version = v } }

// WithAttributes stamps attrs on every span started through the tracer.
func WithAttributes(attrs ...attribute.KeyValue) Option {
	return func(t *tracer) { t.fixed = append(t.fixed, attrs...) }
}

// New returns a tracer for use case spans. Without WithProvider the global provider is looked up
// on every Start, so spans follow whatever telemetry.Init installed.
func New(name string, opts ...Option) observability.Tracer {
	if name == "" {
		name = defaultName
	}
	t := &tracer{name: name}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tp := t.provider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if len(t.fixed) > 0 {
		attrs = append(append([]attribute.KeyValue(nil), t.fixed...), attrs...)
	}
	return tp.Tracer(t.name, trace.WithInstrumentationVersion(t.version)).
		Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal), trace.WithAttributes(attrs...))
}
