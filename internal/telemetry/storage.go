package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/moai-adk/orchestrator/internal/storage"
	"github.com/moai-adk/orchestrator/internal/types"
)

const storageScopeName = "github.com/moai-adk/orchestrator/storage"

// InstrumentedBackend wraps storage.Backend with OTel tracing and metrics.
// Every call gets a span and is counted in orch.storage.* metrics.
type InstrumentedBackend struct {
	inner     storage.Backend
	tracer    trace.Tracer
	ops       metric.Int64Counter
	dur       metric.Float64Histogram
	errs      metric.Int64Counter
	specGauge metric.Int64Gauge
}

// WrapBackend returns b decorated with OTel instrumentation.
// When telemetry is disabled, b is returned as-is.
func WrapBackend(b storage.Backend) storage.Backend {
	if !Enabled() {
		return b
	}
	m := Meter(storageScopeName)
	ops, _ := m.Int64Counter("orch.storage.operations",
		metric.WithDescription("Total storage operations executed"),
	)
	dur, _ := m.Float64Histogram("orch.storage.operation.duration",
		metric.WithDescription("Storage operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("orch.storage.errors",
		metric.WithDescription("Total storage operation errors"),
	)
	specGauge, _ := m.Int64Gauge("orch.spec.count",
		metric.WithDescription("Specs by status in the last loaded or saved snapshot"),
	)
	return &InstrumentedBackend{
		inner:     b,
		tracer:    Tracer(storageScopeName),
		ops:       ops,
		dur:       dur,
		errs:      errs,
		specGauge: specGauge,
	}
}

func (b *InstrumentedBackend) op(ctx context.Context, name string) (context.Context, trace.Span, time.Time, []attribute.KeyValue) {
	attrs := []attribute.KeyValue{
		attribute.String("db.operation", name),
		attribute.String("orch.backend", b.inner.Name()),
	}
	ctx, span := b.tracer.Start(ctx, "storage."+name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	b.ops.Add(ctx, 1, metric.WithAttributes(attrs...))
	return ctx, span, time.Now(), attrs
}

func (b *InstrumentedBackend) done(ctx context.Context, span trace.Span, start time.Time, err error, attrs []attribute.KeyValue) {
	ms := float64(time.Since(start).Milliseconds())
	b.dur.Record(ctx, ms, metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		b.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.End()
}

func (b *InstrumentedBackend) recordCounts(ctx context.Context, doc *types.Roadmap) {
	for status, n := range doc.CountByStatus() {
		b.specGauge.Record(ctx, int64(n), metric.WithAttributes(attribute.String("orch.status", string(status))))
	}
}

func (b *InstrumentedBackend) Name() string { return b.inner.Name() }

// Path forwards to the wrapped backend when it is file based.
func (b *InstrumentedBackend) Path() string {
	if loc, ok := b.inner.(storage.Locator); ok {
		return loc.Path()
	}
	return ""
}

func (b *InstrumentedBackend) Load(ctx context.Context) (*types.Roadmap, error) {
	ctx, span, t, attrs := b.op(ctx, "Load")
	doc, err := b.inner.Load(ctx)
	if err == nil {
		span.SetAttributes(attribute.Int("orch.spec.total", len(doc.Specs)))
		b.recordCounts(ctx, doc)
	}
	b.done(ctx, span, t, err, attrs)
	return doc, err
}

func (b *InstrumentedBackend) Save(ctx context.Context, doc *types.Roadmap) error {
	ctx, span, t, attrs := b.op(ctx, "Save")
	span.SetAttributes(attribute.Int("orch.spec.total", len(doc.Specs)))
	err := b.inner.Save(ctx, doc)
	if err == nil {
		b.recordCounts(ctx, doc)
	}
	b.done(ctx, span, t, err, attrs)
	return err
}

func (b *InstrumentedBackend) Close() error { return b.inner.Close() }
