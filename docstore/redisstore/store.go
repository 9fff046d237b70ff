package redisstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/scalestore/component"
	"github.com/kbukum/scalestore/docstore"
	"github.com/kbukum/scalestore/errors"
	"github.com/kbukum/scalestore/logger"
)

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for the _ts metadata field.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is a docstore.Backend backed by Redis and managed as a component.
type Store struct {
	cfg Config
	log *logger.Logger
	now func() time.Time

	mu         sync.RWMutex
	client     *Client
	containers map[string]*Container
}

// New creates a store. No connection is made until Start.
func New(cfg Config, log *logger.Logger, opts ...Option) *Store {
	cfg.ApplyDefaults()
	s := &Store{
		cfg:        cfg,
		log:        logger.OrDefault(log, "redisstore"),
		now:        time.Now,
		containers: make(map[string]*Container),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	_ component.Component   = (*Store)(nil)
	_ component.Describable = (*Store)(nil)
	_ docstore.Backend      = (*Store)(nil)
)

// Name returns the component name.
func (s *Store) Name() string { return "docstore" }

// Start creates the client and verifies connectivity.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return nil
	}

	client, err := NewClient(s.cfg, s.log)
	if err != nil {
		return fmt.Errorf("redisstore start: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return fmt.Errorf("redisstore start: %w", err)
	}
	s.client = client
	s.log.Info("Redis document store connected", map[string]interface{}{
		"addr": s.cfg.Addr, "db": s.cfg.DB, "prefix": s.cfg.KeyPrefix,
	})
	return nil
}

// Stop closes the client.
func (s *Store) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	s.containers = make(map[string]*Container)
	return err
}

// Health pings Redis.
func (s *Store) Health(ctx context.Context) component.Health {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()

	if client == nil {
		return component.Health{Name: s.Name(), Status: component.StatusUnhealthy, Message: "client not started"}
	}
	if err := client.Ping(ctx); err != nil {
		return component.Health{Name: s.Name(), Status: component.StatusUnhealthy, Message: err.Error()}
	}
	return component.Health{Name: s.Name(), Status: component.StatusHealthy}
}

// Describe implements component.Describable.
func (s *Store) Describe() component.Description {
	return component.Description{
		Name:    "Document store",
		Type:    "docstore",
		Details: fmt.Sprintf("redis %s db=%d prefix=%s pool=%d", s.cfg.Addr, s.cfg.DB, s.cfg.KeyPrefix, s.cfg.PoolSize),
	}
}

// Container returns the container for a table. The store must be started.
// Names may not contain ':', which separates key segments.
func (s *Store) Container(name string) (docstore.Container, error) {
	if name == "" || strings.Contains(name, ":") {
		return nil, errors.InvalidInput("container", fmt.Sprintf("container name %q must be non-empty and must not contain ':'", name))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil, errors.ServiceUnavailable("redis document store")
	}
	c, ok := s.containers[name]
	if !ok {
		c = &Container{
			name:      name,
			prefix:    s.cfg.KeyPrefix,
			rdb:       s.client.Unwrap(),
			scanCount: s.cfg.ScanCount,
			now:       s.now,
		}
		s.containers[name] = c
	}
	return c, nil
}
