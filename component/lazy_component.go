package component

import (
	"context"
	"fmt"
	"sync"
)

// Lazy defers an expensive initializer until first use. It is itself a
// Component: Start is a no-op, Stop runs the closer, and Health reports
// whether initialization has succeeded.
type Lazy struct {
	name        string
	mu          sync.Mutex
	initialized bool
	lastError   error
	initializer func(ctx context.Context) error
	closer      func() error
}

// NewLazy creates a lazy component with the given initializer.
func NewLazy(name string, initializer func(context.Context) error) *Lazy {
	return &Lazy{name: name, initializer: initializer}
}

// WithCloser sets the function Stop runs once initialized.
func (l *Lazy) WithCloser(fn func() error) *Lazy {
	l.closer = fn
	return l
}

// Name returns the component name.
func (l *Lazy) Name() string { return l.name }

// Initialize runs the initializer once. A failed attempt is retried on the
// next call.
func (l *Lazy) Initialize(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.initialized {
		return nil
	}
	if l.initializer == nil {
		return fmt.Errorf("no initializer for component: %s", l.name)
	}
	if err := l.initializer(ctx); err != nil {
		l.lastError = err
		return fmt.Errorf("failed to initialize %s: %w", l.name, err)
	}
	l.initialized = true
	l.lastError = nil
	return nil
}

// IsInitialized reports whether the initializer has succeeded.
func (l *Lazy) IsInitialized() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.initialized
}

// Start implements Component. Initialization happens on first use.
func (l *Lazy) Start(context.Context) error { return nil }

// Stop runs the closer if the component was initialized.
func (l *Lazy) Stop(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.initialized {
		return nil
	}
	l.initialized = false
	if l.closer != nil {
		return l.closer()
	}
	return nil
}

// Health implements Component.
func (l *Lazy) Health(context.Context) Health {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case l.initialized:
		return Health{Name: l.name, Status: StatusHealthy}
	case l.lastError != nil:
		return Health{Name: l.name, Status: StatusUnhealthy, Message: l.lastError.Error()}
	default:
		return Health{Name: l.name, Status: StatusDegraded, Message: "not initialized"}
	}
}
