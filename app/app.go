package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kbukum/scalestore/apicache"
	"github.com/kbukum/scalestore/blob"
	"github.com/kbukum/scalestore/component"
	"github.com/kbukum/scalestore/compute"
	"github.com/kbukum/scalestore/docstore"
	"github.com/kbukum/scalestore/docstore/memstore"
	"github.com/kbukum/scalestore/docstore/redisstore"
	"github.com/kbukum/scalestore/docstore/sqlstore"
	"github.com/kbukum/scalestore/logger"
	"github.com/kbukum/scalestore/observability"
	"github.com/kbukum/scalestore/resilience"
	"github.com/kbukum/scalestore/settings"

	// Blob providers register themselves with blob.New.
	_ "github.com/kbukum/scalestore/blob/local"
	_ "github.com/kbukum/scalestore/blob/s3"
)

// Option customizes New.
type Option func(*options)

type options struct {
	origin compute.Origin
	now    func() time.Time
}

// WithOrigin sets the management API used by the compute service. Without
// it Context.Compute is nil.
func WithOrigin(origin compute.Origin) Option {
	return func(o *options) { o.origin = origin }
}

// WithClock sets the clock used for store timestamps and cache expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Context holds the constructed clients.
type Context struct {
	Config     *Config
	Log        *logger.Logger
	Components *component.Registry
	Telemetry  *observability.Telemetry
	Metrics    *observability.Metrics

	// Backend is the instrumented document store every client writes through.
	Backend  docstore.Backend
	Cache    *apicache.Store
	Engine   *apicache.Engine
	Settings *settings.Store
	// Compute is nil unless an origin was supplied.
	Compute *compute.Service
	// Blob is nil when blob storage is disabled.
	Blob blob.Storage
}

type backendComponent interface {
	docstore.Backend
	component.Component
}

func newBackend(cfg StoreConfig, log *logger.Logger, now func() time.Time) (backendComponent, error) {
	switch cfg.Backend {
	case BackendMemory:
		return memstore.New(memstore.WithClock(now)), nil
	case BackendSQLite:
		return sqlstore.New(cfg.SQLite, log, sqlstore.WithClock(now)), nil
	case BackendRedis:
		return redisstore.New(cfg.Redis, log, redisstore.WithClock(now)), nil
	}
	return nil, fmt.Errorf("unsupported store backend %q", cfg.Backend)
}

// New builds and starts every client described by cfg. On failure the
// components already started are stopped again.
func New(ctx context.Context, cfg *Config, log *logger.Logger, opts ...Option) (*Context, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	if log == nil {
		log = logger.New(&cfg.Logging, cfg.Name)
	}

	telemetry, err := observability.Setup(ctx, cfg.Observability, cfg.Name, cfg.Environment, log)
	if err != nil {
		return nil, err
	}
	metrics, err := observability.NewMetrics(observability.Meter())
	if err != nil {
		_ = telemetry.Shutdown(ctx)
		return nil, err
	}

	a := &Context{
		Config:     cfg,
		Log:        log,
		Components: component.NewRegistry(log),
		Telemetry:  telemetry,
		Metrics:    metrics,
	}

	backend, err := newBackend(cfg.Store, log, o.now)
	if err != nil {
		_ = telemetry.Shutdown(ctx)
		return nil, err
	}
	blobComponent := blob.NewComponent(cfg.Blob, log)
	for _, c := range []component.Component{backend, blobComponent} {
		if err := a.Components.Register(c); err != nil {
			_ = telemetry.Shutdown(ctx)
			return nil, err
		}
	}
	if err := a.Components.StartAll(ctx); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.Backend = docstore.Instrument(backend, metrics)
	a.Blob = blobComponent.Storage()

	defaults, err := a.settingsDefaults(ctx)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	a.Settings = settings.NewStore(a.Backend, defaults, log)

	a.Cache = apicache.NewStore(a.Backend, log,
		apicache.WithClock(o.now),
		apicache.WithDefaultTTL(cfg.Cache.DefaultTTL))
	a.Engine = apicache.NewEngine(a.Cache, log,
		apicache.WithEngineTTL(cfg.Cache.DefaultTTL),
		apicache.WithMetrics(metrics))

	if o.origin != nil {
		limiter := resilience.NewRateLimiter(cfg.Compute.RateLimit)
		a.Compute = compute.NewService(a.Engine, o.origin, log,
			compute.WithRateLimiter(limiter),
			compute.WithTTL(cfg.Compute.TTL))
	}

	log.Info("scalestore initialized", map[string]interface{}{
		"backend": cfg.Store.Backend, "blob": cfg.Blob.Enabled, "compute": a.Compute != nil,
		"telemetry": telemetry.Enabled(),
	})
	return a, nil
}

func (a *Context) settingsDefaults(ctx context.Context) ([]settings.Setting, error) {
	byName := make(map[string]settings.Setting, len(a.Config.Settings.Defaults))
	for name, value := range a.Config.Settings.Defaults {
		byName[name] = settings.Setting{Name: name, Value: value}
	}
	if a.Blob != nil && a.Config.Settings.DefaultsPath != "" {
		fromBlob, err := settings.LoadDefaults(ctx, a.Blob, a.Config.Settings.DefaultsPath)
		if err != nil {
			return nil, fmt.Errorf("load settings defaults: %w", err)
		}
		for _, s := range fromBlob {
			byName[s.Name] = s
		}
	}
	out := make([]settings.Setting, 0, len(byName))
	for _, s := range byName {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DefaultPolicy returns the configured cache policy.
func (a *Context) DefaultPolicy() apicache.Policy {
	return a.Config.DefaultPolicy()
}

// Health reports the health of every component.
func (a *Context) Health(ctx context.Context) []component.Health {
	return a.Components.HealthAll(ctx)
}

// Close stops every component in reverse start order, then flushes
// telemetry.
func (a *Context) Close(ctx context.Context) error {
	return errors.Join(
		a.Components.StopAll(ctx),
		a.Telemetry.Shutdown(ctx),
	)
}
