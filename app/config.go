package app

import (
	"fmt"

	"github.com/kbukum/scalestore/apicache"
	"github.com/kbukum/scalestore/blob"
	"github.com/kbukum/scalestore/config"
	"github.com/kbukum/scalestore/docstore/redisstore"
	"github.com/kbukum/scalestore/docstore/sqlstore"
	"github.com/kbukum/scalestore/observability"
	"github.com/kbukum/scalestore/resilience"
	"github.com/kbukum/scalestore/validation"
)

// Document store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config is the complete scalestore configuration.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Compute  ComputeConfig  `yaml:"compute" mapstructure:"compute"`
	Settings SettingsConfig `yaml:"settings" mapstructure:"settings"`
	Blob     blob.Config    `yaml:"blob" mapstructure:"blob"`

	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// StoreConfig selects and configures the document store.
type StoreConfig struct {
	// Backend is one of memory, sqlite or redis.
	Backend string            `yaml:"backend" mapstructure:"backend"`
	SQLite  sqlstore.Config   `yaml:"sqlite" mapstructure:"sqlite"`
	Redis   redisstore.Config `yaml:"redis" mapstructure:"redis"`
}

// CacheConfig configures the API cache.
type CacheConfig struct {
	// DefaultTTL is the entry lifetime in seconds.
	DefaultTTL int64 `yaml:"default_ttl" mapstructure:"default_ttl"`
	// Policy is the policy compute queries use unless told otherwise.
	Policy string `yaml:"policy" mapstructure:"policy"`
}

// ComputeConfig configures the compute query service.
type ComputeConfig struct {
	// TTL is the cache lifetime in seconds for compute queries; 0 uses
	// the cache default.
	TTL       int64                        `yaml:"ttl" mapstructure:"ttl"`
	RateLimit resilience.RateLimiterConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// SettingsConfig configures the settings store.
type SettingsConfig struct {
	// Defaults maps setting names to their built-in values.
	Defaults map[string]string `yaml:"defaults" mapstructure:"defaults"`
	// DefaultsPath is a JSON defaults file in blob storage, merged over
	// Defaults when blob storage is enabled.
	DefaultsPath string `yaml:"defaults_path" mapstructure:"defaults_path"`
}

// ApplyDefaults fills zero values in every section.
func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	if c.Store.Backend == "" {
		c.Store.Backend = BackendSQLite
	}
	c.Store.SQLite.ApplyDefaults()
	c.Store.Redis.ApplyDefaults()
	if c.Cache.DefaultTTL <= 0 {
		c.Cache.DefaultTTL = apicache.DefaultTTL
	}
	if c.Compute.RateLimit.Name == "" {
		c.Compute.RateLimit.Name = "compute"
	}
	c.Compute.RateLimit.ApplyDefaults()
	c.Blob.ApplyDefaults()
	c.Observability.ApplyDefaults()
}

// Validate checks every section. Backend sections are only validated when
// selected.
func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}

	v := validation.New().
		Required("store.backend", c.Store.Backend).
		OneOf("store.backend", c.Store.Backend, []string{BackendMemory, BackendSQLite, BackendRedis}).
		Min("cache.default_ttl", c.Cache.DefaultTTL, 1).
		Min("compute.ttl", c.Compute.TTL, 0).
		Min("compute.rate_limit.burst", int64(c.Compute.RateLimit.Burst), 1)
	if c.Blob.Enabled {
		v.OneOf("blob.provider", c.Blob.Provider, blob.Providers())
	}
	if err := v.Err(); err != nil {
		return err
	}

	switch c.Store.Backend {
	case BackendSQLite:
		if err := c.Store.SQLite.Validate(); err != nil {
			return fmt.Errorf("store.sqlite: %w", err)
		}
	case BackendRedis:
		if err := c.Store.Redis.Validate(); err != nil {
			return fmt.Errorf("store.redis: %w", err)
		}
	}
	if _, err := apicache.ParsePolicy(c.Cache.Policy); err != nil {
		return fmt.Errorf("cache.policy: %w", err)
	}
	if err := c.Compute.RateLimit.Validate(); err != nil {
		return fmt.Errorf("compute.rate_limit: %w", err)
	}
	if c.Blob.Enabled {
		if err := c.Blob.Validate(); err != nil {
			return err
		}
	}
	return c.Observability.Validate()
}

// DefaultPolicy returns the parsed cache policy.
func (c *Config) DefaultPolicy() apicache.Policy {
	p, _ := apicache.ParsePolicy(c.Cache.Policy)
	return p
}

// LoadConfig reads configuration with config.LoadConfig, then applies
// defaults and validates.
func LoadConfig(opts ...config.LoaderOption) (*Config, error) {
	cfg := &Config{}
	if err := config.LoadConfig("scalestore", cfg, opts...); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}
