package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span names.
const (
	SpanCacheFetch = "apicache.fetch"
	SpanOrigin     = "apicache.origin"
	SpanStoreOp    = "docstore."
)

// Attribute keys.
const (
	AttrCacheID   = "cache.id"
	AttrPolicy    = "cache.policy"
	AttrHit       = "cache.hit"
	AttrContainer = "docstore.container"
	AttrRecordID  = "docstore.id"
	AttrStatus    = "docstore.status"
)

// Tracer returns the module's tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// StartSpan starts a span with the module's tracer.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err, if any, and ends span.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
