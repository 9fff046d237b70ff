package app_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/kbukum/scalestore/apicache"
	"github.com/kbukum/scalestore/app"
	"github.com/kbukum/scalestore/blob"
	"github.com/kbukum/scalestore/component"
	"github.com/kbukum/scalestore/compute"
	"github.com/kbukum/scalestore/config"
	"github.com/kbukum/scalestore/docstore/redisstore"
	"github.com/kbukum/scalestore/docstore/sqlstore"
	"github.com/kbukum/scalestore/logger"
	"github.com/kbukum/scalestore/settings"
)

type staticOrigin struct {
	calls int
}

func (o *staticOrigin) ListInstances(context.Context, string) ([]compute.Instance, error) {
	o.calls++
	return []compute.Instance{{InstanceID: "0", VMID: "vm-a", Name: "vmss-A_0"}}, nil
}

func (o *staticOrigin) GetInstance(context.Context, string, string) (*compute.Instance, error) {
	o.calls++
	return &compute.Instance{InstanceID: "0", VMID: "vm-a"}, nil
}

func (o *staticOrigin) ListNetworkInterfaces(context.Context, string) ([]compute.NetworkInterface, error) {
	o.calls++
	return nil, nil
}

func TestConfigDefaultsAndValidation(t *testing.T) {
	cfg := &app.Config{}
	cfg.ApplyDefaults()
	if cfg.Store.Backend != app.BackendSQLite || cfg.Cache.DefaultTTL != apicache.DefaultTTL || cfg.Compute.RateLimit.Name != "compute" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*app.Config)
		wantErr string
	}{
		{"backend", func(c *app.Config) { c.Store.Backend = "cosmos" }, "store.backend: must be one of: memory, sqlite, redis"},
		{"empty backend", func(c *app.Config) { c.Store.Backend = "" }, "store.backend: is required"},
		{"default ttl", func(c *app.Config) { c.Cache.DefaultTTL = 0 }, "cache.default_ttl: must be at least 1"},
		{"policy", func(c *app.Config) { c.Cache.Policy = "sometimes" }, "cache.policy"},
		{"compute ttl", func(c *app.Config) { c.Compute.TTL = -1 }, "compute.ttl: must be at least 0"},
		{"burst", func(c *app.Config) { c.Compute.RateLimit.Burst = 0 }, "compute.rate_limit.burst: must be at least 1"},
		{"redis", func(c *app.Config) { c.Store.Backend = app.BackendRedis; c.Store.Redis.ReadTimeout = "x" }, "store.redis"},
		{"telemetry", func(c *app.Config) { c.Observability.Enabled = true; c.Observability.SampleRate = 2 }, "observability.sample_rate"},
		{"blob", func(c *app.Config) { c.Blob = blob.Config{Enabled: true, Provider: "ftp"} }, "blob.provider: must be one of: local, s3"},
		{"blob settings", func(c *app.Config) { c.Blob = blob.Config{Enabled: true, Provider: blob.ProviderS3} }, "bucket is required"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := &app.Config{}
			c.ApplyDefaults()
			tc.mutate(c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	yaml := `
name: scalestore
environment: staging
store:
  backend: redis
  redis:
    addr: cache.internal:6380
    key_prefix: autoscaler
cache:
  default_ttl: 120
  policy: read-cache-only
compute:
  rate_limit:
    rate: 2
settings:
  defaults:
    cooldown: "300"
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := app.LoadConfig(config.WithConfigFile(path), config.WithEnvFile(filepath.Join(dir, ".env")))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Store.Backend != app.BackendRedis || cfg.Store.Redis.Addr != "cache.internal:6380" || cfg.Store.Redis.KeyPrefix != "autoscaler" {
		t.Errorf("unexpected store config %+v", cfg.Store)
	}
	if cfg.Cache.DefaultTTL != 120 || cfg.DefaultPolicy() != apicache.ReadCacheOnly {
		t.Errorf("unexpected cache config %+v", cfg.Cache)
	}
	if cfg.Compute.RateLimit.Rate != 2 || cfg.Compute.RateLimit.Burst != 2 {
		t.Errorf("unexpected rate limit %+v", cfg.Compute.RateLimit)
	}
	if cfg.Settings.Defaults["cooldown"] != "300" {
		t.Errorf("unexpected settings defaults %+v", cfg.Settings.Defaults)
	}
}

func TestNewWithMemoryBackend(t *testing.T) {
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000)
	origin := &staticOrigin{}
	cfg := &app.Config{
		Store:    app.StoreConfig{Backend: app.BackendMemory},
		Settings: app.SettingsConfig{Defaults: map[string]string{"cooldown": "300"}},
	}

	a, err := app.New(ctx, cfg, logger.NewNop(), app.WithOrigin(origin), app.WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer a.Close(ctx)

	if a.Blob != nil {
		t.Error("expected blob storage disabled by default")
	}
	if a.Telemetry.Enabled() || a.Metrics == nil {
		t.Error("expected telemetry export disabled with metrics still available")
	}
	for _, h := range a.Health(ctx) {
		if h.Status != component.StatusHealthy {
			t.Errorf("component %s unhealthy: %s", h.Name, h.Message)
		}
	}

	first, err := a.Compute.ListInstances(ctx, "vmss-A", a.DefaultPolicy())
	if err != nil || first.HitCache || first.CacheTime != now.UnixMilli() {
		t.Fatalf("unexpected first result %+v err=%v", first, err)
	}
	second, _ := a.Compute.ListInstances(ctx, "vmss-A", a.DefaultPolicy())
	if !second.HitCache || origin.calls != 1 {
		t.Errorf("expected cached second call, got %+v calls=%d", second, origin.calls)
	}

	if v, err := a.Settings.Get(ctx, "cooldown"); err != nil || v.Value != "300" {
		t.Errorf("unexpected setting %+v err=%v", v, err)
	}
}

func TestNewWithSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	cfg := &app.Config{Store: app.StoreConfig{
		Backend: app.BackendSQLite,
		SQLite:  sqlstore.Config{DSN: ":memory:", LogLevel: "silent"},
	}}
	a, err := app.New(ctx, cfg, logger.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer a.Close(ctx)

	if a.Compute != nil {
		t.Error("expected no compute service without an origin")
	}
	if _, err := a.Cache.WriteCache(ctx, apicache.WriteRequest{API: "listInstances", Parameters: []string{"vmss-A"}, Result: "[]"}); err != nil {
		t.Fatalf("WriteCache failed: %v", err)
	}
	entries, err := a.Cache.Entries(ctx, 0)
	if err != nil || len(entries) != 1 || entries[0].ID != "listInstances-vmss-A" {
		t.Errorf("unexpected entries %+v err=%v", entries, err)
	}
}

func TestNewWithRedisBackend(t *testing.T) {
	mini := miniredis.RunT(t)
	ctx := context.Background()
	cfg := &app.Config{Store: app.StoreConfig{
		Backend: app.BackendRedis,
		Redis:   redisstore.Config{Addr: mini.Addr()},
	}}
	a, err := app.New(ctx, cfg, logger.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer a.Close(ctx)

	if _, err := a.Settings.Set(ctx, settingOf("cooldown", "120")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if !mini.Exists("scalestore:settings:cooldown") {
		t.Error("expected the setting stored in redis")
	}
}

func TestNewFailsWhenBackendUnavailable(t *testing.T) {
	cfg := &app.Config{Store: app.StoreConfig{
		Backend: app.BackendRedis,
		Redis:   redisstore.Config{Addr: "127.0.0.1:1", DialTimeout: "100ms", MaxRetries: 1},
	}}
	if _, err := app.New(context.Background(), cfg, logger.NewNop()); err == nil {
		t.Fatal("expected New to fail without a redis server")
	}
}

func TestSettingsDefaultsFromBlob(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "defaults.json"), []byte(`{"cooldown":"450","maxInstances":"8"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	cfg := &app.Config{
		Store: app.StoreConfig{Backend: app.BackendMemory},
		Blob:  blob.Config{Enabled: true, Provider: blob.ProviderLocal, BasePath: dir},
		Settings: app.SettingsConfig{
			Defaults:     map[string]string{"cooldown": "300", "region": "westeurope"},
			DefaultsPath: "defaults.json",
		},
	}
	a, err := app.New(ctx, cfg, logger.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer a.Close(ctx)

	all, err := a.Settings.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := map[string]string{"cooldown": "450", "maxInstances": "8", "region": "westeurope"}
	for name, value := range want {
		if all[name].Value != value {
			t.Errorf("%s: expected %q, got %q", name, value, all[name].Value)
		}
	}
}

func settingOf(name, value string) settings.Setting {
	return settings.Setting{Name: name, Value: value}
}
