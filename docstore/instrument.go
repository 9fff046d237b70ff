package docstore

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/scalestore/observability"
)

// Instrument wraps backend so every container operation is traced and
// recorded on m. A nil m still traces.
func Instrument(backend Backend, m *observability.Metrics) Backend {
	return &instrumentedBackend{backend: backend, metrics: m}
}

type instrumentedBackend struct {
	backend Backend
	metrics *observability.Metrics
}

func (b *instrumentedBackend) Container(name string) (Container, error) {
	c, err := b.backend.Container(name)
	if err != nil {
		return nil, err
	}
	return &instrumentedContainer{name: name, inner: c, metrics: b.metrics}, nil
}

type instrumentedContainer struct {
	name    string
	inner   Container
	metrics *observability.Metrics
}

func (c *instrumentedContainer) observe(ctx context.Context, op, id string, fn func(context.Context) (*Response, error)) (*Response, error) {
	attrs := []attribute.KeyValue{attribute.String(observability.AttrContainer, c.name)}
	if id != "" {
		attrs = append(attrs, attribute.String(observability.AttrRecordID, id))
	}
	ctx, span := observability.StartSpan(ctx, observability.SpanStoreOp+op, attrs...)
	start := time.Now()
	resp, err := fn(ctx)

	status := "error"
	if err == nil && resp != nil {
		status = strconv.Itoa(int(resp.Status))
		span.SetAttributes(attribute.Int(observability.AttrStatus, int(resp.Status)))
	}
	c.metrics.RecordStoreOp(ctx, c.name, op, status, time.Since(start))
	observability.EndSpan(span, err)
	return resp, err
}

func (c *instrumentedContainer) Read(ctx context.Context, id string) (*Response, error) {
	return c.observe(ctx, "read", id, func(ctx context.Context) (*Response, error) {
		return c.inner.Read(ctx, id)
	})
}

func (c *instrumentedContainer) Query(ctx context.Context, q Query) ([]Record, error) {
	var out []Record
	_, err := c.observe(ctx, "query", "", func(ctx context.Context) (*Response, error) {
		var err error
		out, err = c.inner.Query(ctx, q)
		if err != nil {
			return nil, err
		}
		return &Response{Status: StatusOK}, nil
	})
	return out, err
}

func (c *instrumentedContainer) Upsert(ctx context.Context, rec Record, opts UpsertOptions) (*Response, error) {
	return c.observe(ctx, "upsert", idOf(rec), func(ctx context.Context) (*Response, error) {
		return c.inner.Upsert(ctx, rec, opts)
	})
}

func (c *instrumentedContainer) Delete(ctx context.Context, id string) (*Response, error) {
	return c.observe(ctx, "delete", id, func(ctx context.Context) (*Response, error) {
		return c.inner.Delete(ctx, id)
	})
}

func idOf(rec Record) string {
	if s, ok := rec[FieldID].(string); ok {
		return s
	}
	return ""
}
