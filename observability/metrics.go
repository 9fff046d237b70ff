package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentationName names the meter and tracer used by this module.
const InstrumentationName = "github.com/kbukum/scalestore"

// Cache lookup outcomes.
const (
	OutcomeHit      = "hit"
	OutcomeMiss     = "miss"
	OutcomeBypass   = "bypass"
	OutcomeConsumed = "consumed"
)

// Meter returns the module's meter from the global provider.
func Meter() metric.Meter {
	return otel.Meter(InstrumentationName)
}

// Metrics holds the instruments recorded by the store and cache layers.
type Metrics struct {
	cacheLookups   metric.Int64Counter
	originCalls    metric.Int64Counter
	originDuration metric.Float64Histogram
	storeOps       metric.Int64Counter
	storeDuration  metric.Float64Histogram
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	cacheLookups, err := meter.Int64Counter("scalestore.cache.lookups",
		metric.WithDescription("Cache policy decisions by API and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating scalestore.cache.lookups counter: %w", err)
	}

	originCalls, err := meter.Int64Counter("scalestore.origin.calls",
		metric.WithDescription("Calls made to the origin API"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating scalestore.origin.calls counter: %w", err)
	}

	originDuration, err := meter.Float64Histogram("scalestore.origin.duration",
		metric.WithDescription("Duration of origin API calls in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating scalestore.origin.duration histogram: %w", err)
	}

	storeOps, err := meter.Int64Counter("scalestore.store.operations",
		metric.WithDescription("Document store operations by container, operation and status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating scalestore.store.operations counter: %w", err)
	}

	storeDuration, err := meter.Float64Histogram("scalestore.store.duration",
		metric.WithDescription("Duration of document store operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating scalestore.store.duration histogram: %w", err)
	}

	return &Metrics{
		cacheLookups:   cacheLookups,
		originCalls:    originCalls,
		originDuration: originDuration,
		storeOps:       storeOps,
		storeDuration:  storeDuration,
	}, nil
}

// RecordLookup records one cache policy decision.
func (m *Metrics) RecordLookup(ctx context.Context, api, policy, outcome string) {
	if m == nil {
		return
	}
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("api", api),
		attribute.String("policy", policy),
		attribute.String("outcome", outcome),
	))
}

// RecordOrigin records one origin call.
func (m *Metrics) RecordOrigin(ctx context.Context, api string, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.originCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("api", api),
		attribute.String("status", status),
	))
	m.originDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("api", api)))
}

// RecordStoreOp records one container operation. status is the container
// status code, or "error" for transport failures.
func (m *Metrics) RecordStoreOp(ctx context.Context, container, op, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.storeOps.Add(ctx, 1, metric.WithAttributes(
		attribute.String("container", container),
		attribute.String("operation", op),
		attribute.String("status", status),
	))
	m.storeDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("container", container),
		attribute.String("operation", op),
	))
}
