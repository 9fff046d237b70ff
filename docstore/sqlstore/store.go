package sqlstore

import (
	"context"
	"fmt"
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

// Store is a docstore.Backend backed by SQLite. It is a component: Start
// opens the pool and applies migrations, Stop closes the pool.
type Store struct {
	cfg Config
	log *logger.Logger
	now func() time.Time

	mu         sync.RWMutex
	db         *DB
	containers map[string]*Container
}

// New creates a store. Nothing is opened until Start.
func New(cfg Config, log *logger.Logger, opts ...Option) *Store {
	cfg.ApplyDefaults()
	s := &Store{
		cfg:        cfg,
		log:        logger.OrDefault(log, "sqlstore"),
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

// Start connects to the database and applies schema migrations.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return nil
	}

	db, err := Open(ctx, s.cfg, s.log)
	if err != nil {
		return fmt.Errorf("sqlstore start: %w", err)
	}
	if err := MigrateUp(db.GormDB); err != nil {
		_ = db.Close()
		return fmt.Errorf("sqlstore migrate: %w", err)
	}
	s.db = db
	return nil
}

// Stop closes the connection pool.
func (s *Store) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.containers = make(map[string]*Container)
	return err
}

// Health pings the database.
func (s *Store) Health(ctx context.Context) component.Health {
	s.mu.RLock()
	db := s.db
	s.mu.RUnlock()

	if db == nil {
		return component.Health{Name: s.Name(), Status: component.StatusUnhealthy, Message: "database not started"}
	}
	if err := db.PingContext(ctx); err != nil {
		return component.Health{Name: s.Name(), Status: component.StatusUnhealthy, Message: fmt.Sprintf("ping failed: %v", err)}
	}
	return component.Health{Name: s.Name(), Status: component.StatusHealthy}
}

// Describe implements component.Describable.
func (s *Store) Describe() component.Description {
	return component.Description{
		Name:    "Document store",
		Type:    "docstore",
		Details: fmt.Sprintf("sqlite %s pool=%d/%d", s.cfg.DSN, s.cfg.MaxOpenConns, s.cfg.MaxIdleConns),
	}
}

// DB returns the connection pool, or nil before Start.
func (s *Store) DB() *DB {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db
}

// Container returns the container for a table. The store must be started.
func (s *Store) Container(name string) (docstore.Container, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, errors.ServiceUnavailable("sql document store")
	}
	c, ok := s.containers[name]
	if !ok {
		c = &Container{name: name, db: s.db, now: s.now}
		s.containers[name] = c
	}
	return c, nil
}
