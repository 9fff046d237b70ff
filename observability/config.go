package observability

import (
	"fmt"
	"time"

	"github.com/kbukum/scalestore/version"
)

// Config controls telemetry export.
type Config struct {
	// Enabled turns on OTLP export. When false the no-op providers are used.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Endpoint is the OTLP HTTP collector host:port, e.g. "localhost:4318".
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	// Insecure disables TLS towards the collector.
	Insecure bool `yaml:"insecure" mapstructure:"insecure"`
	// Interval is the metric export interval ("15s").
	Interval string `yaml:"interval" mapstructure:"interval"`
	// SampleRate is the trace sampling ratio in [0, 1].
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
	// ServiceVersion is reported as a resource attribute.
	ServiceVersion string `yaml:"service_version" mapstructure:"service_version"`
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.Interval == "" {
		c.Interval = "15s"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1.0
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = version.Get().Version
	}
}

// Validate checks the configuration. Only an enabled config is checked.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return fmt.Errorf("observability.endpoint is required when enabled")
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("observability.sample_rate must be within [0, 1] (got: %v)", c.SampleRate)
	}
	if _, err := time.ParseDuration(c.Interval); err != nil {
		return fmt.Errorf("observability.interval: %w", err)
	}
	return nil
}

// IntervalDuration returns the parsed export interval, 15s if unparsable.
func (c *Config) IntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.Interval)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}
