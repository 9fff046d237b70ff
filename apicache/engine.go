package apicache

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/scalestore/errors"
	"github.com/kbukum/scalestore/logger"
	"github.com/kbukum/scalestore/observability"
)

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineTTL sets the envelope TTL reported when a request carries none.
func WithEngineTTL(seconds int64) EngineOption {
	return func(e *Engine) {
		if seconds > 0 {
			e.defaultTTL = seconds
		}
	}
}

// WithMetrics records cache decisions and origin calls on m.
func WithMetrics(m *observability.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// Engine applies cache policies on top of a Store.
type Engine struct {
	store      *Store
	log        *logger.Logger
	metrics    *observability.Metrics
	defaultTTL int64
}

// NewEngine creates a policy engine over store.
func NewEngine(store *Store, log *logger.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		store:      store,
		log:        logger.OrDefault(log, "apicache"),
		defaultTTL: DefaultTTL,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the underlying cache store.
func (e *Engine) Store() *Store { return e.store }

// Result is what every Fetch returns, whichever path was taken.
type Result[T any] struct {
	// Result is the payload, or nil when neither cache nor origin had one.
	Result *T `json:"result"`
	// HitCache is true when Result came from the cache.
	HitCache bool `json:"hitCache"`
	// CacheTime is the Unix millisecond write time of the cached payload,
	// or 0 when nothing was cached or the entry was consumed.
	CacheTime int64 `json:"cacheTime"`
	// TTL is the request TTL, or the engine default, in seconds.
	TTL int64 `json:"ttl"`
}

// Origin produces a fresh payload, or nil when the origin has none.
type Origin[T any] func(ctx context.Context) (*T, error)

// Fetch resolves req under policy. Origin errors are returned unchanged;
// cache store errors are returned as store errors.
func Fetch[T any](ctx context.Context, e *Engine, req Request, policy Policy, origin Origin[T]) (_ *Result[T], err error) {
	ttl := req.TTL
	if ttl <= 0 {
		ttl = e.defaultTTL
	}
	id := req.CacheID()
	fields := map[string]interface{}{logger.FieldCacheID: id, logger.FieldPolicy: policy.String()}

	ctx, span := observability.StartSpan(ctx, observability.SpanCacheFetch,
		attribute.String(observability.AttrCacheID, id),
		attribute.String(observability.AttrPolicy, policy.String()),
	)
	defer func() { observability.EndSpan(span, err) }()

	if !policy.readsCache() {
		e.log.Debug("Calling origin without cache", fields)
		e.metrics.RecordLookup(ctx, req.API, policy.String(), observability.OutcomeBypass)
		v, err := callOrigin(ctx, e, req.API, origin)
		if err != nil {
			return nil, err
		}
		return &Result[T]{Result: v, TTL: ttl}, nil
	}

	entry, err := e.store.ReadCache(ctx, req)
	if err != nil {
		return nil, err
	}

	if entry != nil {
		span.SetAttributes(attribute.Bool(observability.AttrHit, true))
		v, err := decodePayload[T](entry)
		if err != nil {
			return nil, err
		}
		if policy == ReadCacheAndDelete {
			if err := e.store.DeleteID(ctx, id); err != nil {
				return nil, err
			}
			e.log.Debug("Cache hit, entry consumed", fields)
			e.metrics.RecordLookup(ctx, req.API, policy.String(), observability.OutcomeConsumed)
			return &Result[T]{Result: v, HitCache: true, TTL: ttl}, nil
		}
		e.log.Debug("Cache hit", fields)
		e.metrics.RecordLookup(ctx, req.API, policy.String(), observability.OutcomeHit)
		return &Result[T]{Result: v, HitCache: true, CacheTime: entry.CacheTime, TTL: ttl}, nil
	}

	span.SetAttributes(attribute.Bool(observability.AttrHit, false))
	e.metrics.RecordLookup(ctx, req.API, policy.String(), observability.OutcomeMiss)
	if policy != ReadCacheFirst {
		e.log.Debug("Cache miss, origin not consulted", fields)
		return &Result[T]{TTL: ttl}, nil
	}

	e.log.Debug("Cache miss, calling origin", fields)
	v, err := callOrigin(ctx, e, req.API, origin)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return &Result[T]{TTL: ttl}, nil
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Internal(err).WithDetail(logger.FieldCacheID, id)
	}
	saved, err := e.store.WriteCache(ctx, WriteRequest{ID: id, Result: string(payload), TTL: req.TTL})
	if err != nil {
		return nil, err
	}
	return &Result[T]{Result: v, CacheTime: saved.CacheTime, TTL: ttl}, nil
}

func callOrigin[T any](ctx context.Context, e *Engine, api string, origin Origin[T]) (_ *T, err error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanOrigin, attribute.String("api", api))
	start := time.Now()
	defer func() {
		e.metrics.RecordOrigin(ctx, api, err, time.Since(start))
		observability.EndSpan(span, err)
	}()
	return origin(ctx)
}

func decodePayload[T any](entry *Entry) (*T, error) {
	v := new(T)
	if err := json.Unmarshal([]byte(entry.Result), v); err != nil {
		return nil, errors.New(errors.ErrCodeUnexpectedResponse, "cached payload is not valid JSON", http.StatusBadGateway).
			WithCause(err).
			WithDetails(map[string]any{"table": TableName, "id": entry.ID})
	}
	return v, nil
}
