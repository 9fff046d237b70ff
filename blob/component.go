package blob

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/kbukum/scalestore/component"
	"github.com/kbukum/scalestore/errors"
	"github.com/kbukum/scalestore/logger"
)

// Component manages a Storage's lifecycle in the component registry. The
// provider is opened on first use, so a slow or unreachable bucket does not
// hold up startup. Component is itself a Storage.
type Component struct {
	cfg  Config
	log  *logger.Logger
	lazy *component.Lazy

	mu      sync.RWMutex
	storage Storage
}

// NewComponent creates a blob component.
func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	c := &Component{cfg: cfg, log: logger.OrDefault(log, "blob")}
	c.lazy = component.NewLazy("blob", c.open).WithCloser(c.release)
	return c
}

var (
	_ Storage               = (*Component)(nil)
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// Storage returns the component as a Storage, or nil if blob storage is
// disabled.
func (c *Component) Storage() Storage {
	if !c.cfg.Enabled {
		return nil
	}
	return c
}

// Initialized reports whether the provider has been opened.
func (c *Component) Initialized() bool { return c.lazy.IsInitialized() }

// Name returns the component name.
func (c *Component) Name() string { return "blob" }

// Start implements component.Component. The provider opens on first use.
func (c *Component) Start(ctx context.Context) error {
	if !c.cfg.Enabled {
		c.log.Info("Blob storage is disabled")
		return nil
	}
	return c.lazy.Start(ctx)
}

// Stop releases the provider. The next use opens it again.
func (c *Component) Stop(ctx context.Context) error {
	return c.lazy.Stop(ctx)
}

// Health checks the store with an existence lookup, opening it if needed.
func (c *Component) Health(ctx context.Context) component.Health {
	if !c.cfg.Enabled {
		return component.Health{Name: c.Name(), Status: component.StatusHealthy, Message: "disabled"}
	}
	if _, err := c.Exists(ctx, ".health"); err != nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: fmt.Sprintf("health check failed: %v", err)}
	}
	return c.lazy.Health(ctx)
}

// Describe implements component.Describable.
func (c *Component) Describe() component.Description {
	details := fmt.Sprintf("provider=%s", c.cfg.Provider)
	switch c.cfg.Provider {
	case ProviderLocal:
		details += " path=" + c.cfg.BasePath
	case ProviderS3:
		details += " bucket=" + c.cfg.Bucket
	}
	return component.Description{Name: "Blob storage", Type: "blob", Details: details}
}

// Exists implements Storage.
func (c *Component) Exists(ctx context.Context, path string) (bool, error) {
	s, err := c.get(ctx)
	if err != nil {
		return false, err
	}
	return s.Exists(ctx, path)
}

// Download implements Storage.
func (c *Component) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	s, err := c.get(ctx)
	if err != nil {
		return nil, err
	}
	return s.Download(ctx, path)
}

// List implements Storage.
func (c *Component) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	s, err := c.get(ctx)
	if err != nil {
		return nil, err
	}
	return s.List(ctx, prefix)
}

func (c *Component) get(ctx context.Context) (Storage, error) {
	if !c.cfg.Enabled {
		return nil, errors.ServiceUnavailable("blob")
	}
	if err := c.lazy.Initialize(ctx); err != nil {
		return nil, errors.ExternalServiceError("blob", err)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.storage == nil {
		return nil, errors.ServiceUnavailable("blob")
	}
	return c.storage, nil
}

func (c *Component) open(ctx context.Context) error {
	s, err := New(ctx, c.cfg, c.log)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.storage = s
	c.mu.Unlock()
	return nil
}

func (c *Component) release() error {
	c.mu.Lock()
	c.storage = nil
	c.mu.Unlock()
	return nil
}
