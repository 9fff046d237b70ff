// Package memstore is an in-process docstore backend. It honours the same
// revision-tag preconditions as the durable backends and is used by tests
// and the "memory" backend setting.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/kbukum/scalestore/component"
	"github.com/kbukum/scalestore/docstore"
)

// Option configures a Backend.
type Option func(*Backend)

// WithClock sets the clock used for the _ts metadata field.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

// Backend holds one Container per table name.
type Backend struct {
	mu         sync.Mutex
	containers map[string]*Container
	now        func() time.Time
}

// New creates an empty in-memory backend.
func New(opts ...Option) *Backend {
	b := &Backend{containers: make(map[string]*Container), now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Container returns the container for name, creating it on first use.
func (b *Backend) Container(name string) (docstore.Container, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.containers[name]
	if !ok {
		c = &Container{name: name, docs: make(map[string]docstore.Record), now: b.now}
		b.containers[name] = c
	}
	return c, nil
}

// Name implements component.Component.
func (b *Backend) Name() string { return "docstore" }

// Start implements component.Component.
func (b *Backend) Start(context.Context) error { return nil }

// Stop implements component.Component.
func (b *Backend) Stop(context.Context) error { return nil }

// Health implements component.Component.
func (b *Backend) Health(context.Context) component.Health {
	return component.Health{Name: b.Name(), Status: component.StatusHealthy}
}

// Describe implements component.Describable.
func (b *Backend) Describe() component.Description {
	return component.Description{Name: "Document store", Type: "docstore", Details: "memory"}
}

// Container is a mutex-guarded map of documents. Stored documents and
// returned copies are JSON-normalized so callers never share maps with it.
type Container struct {
	name string
	mu   sync.RWMutex
	docs map[string]docstore.Record
	now  func() time.Time
}

// Len returns the number of stored documents.
func (c *Container) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}

func (c *Container) Read(_ context.Context, id string) (*docstore.Response, error) {
	c.mu.RLock()
	doc, ok := c.docs[id]
	c.mu.RUnlock()
	if !ok {
		return &docstore.Response{Status: docstore.StatusNotFound}, nil
	}
	out, err := docstore.Normalize(doc)
	if err != nil {
		return nil, err
	}
	return &docstore.Response{Status: docstore.StatusOK, Resource: out}, nil
}

func (c *Container) Query(_ context.Context, q docstore.Query) ([]docstore.Record, error) {
	c.mu.RLock()
	all := make([]docstore.Record, 0, len(c.docs))
	for _, doc := range c.docs {
		all = append(all, doc)
	}
	c.mu.RUnlock()

	matched := q.Apply(all)
	out := make([]docstore.Record, 0, len(matched))
	for _, doc := range matched {
		cp, err := docstore.Normalize(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

func (c *Container) Upsert(_ context.Context, rec docstore.Record, opts docstore.UpsertOptions) (*docstore.Response, error) {
	body, err := docstore.Normalize(docstore.StripMetadata(rec))
	if err != nil {
		return nil, err
	}
	id := docstore.KeyString(body[docstore.FieldID])

	c.mu.Lock()
	defer c.mu.Unlock()

	prev, exists := c.docs[id]
	if opts.IfNoneMatch && exists {
		return &docstore.Response{Status: docstore.StatusConflict}, nil
	}
	if opts.IfMatch != "" && (!exists || prev.ETag() != opts.IfMatch) {
		return &docstore.Response{Status: docstore.StatusPreconditionFailed}, nil
	}

	doc := docstore.NewRevision(body, c.name, prev, c.now())
	c.docs[id] = doc

	out, err := docstore.Normalize(doc)
	if err != nil {
		return nil, err
	}
	status := docstore.StatusCreated
	if exists {
		status = docstore.StatusOK
	}
	return &docstore.Response{Status: status, Resource: out}, nil
}

func (c *Container) Delete(_ context.Context, id string) (*docstore.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.docs[id]; !ok {
		return &docstore.Response{Status: docstore.StatusNotFound}, nil
	}
	delete(c.docs, id)
	return &docstore.Response{Status: docstore.StatusNoContent}, nil
}

var (
	_ docstore.Backend    = (*Backend)(nil)
	_ docstore.Container  = (*Container)(nil)
	_ component.Component = (*Backend)(nil)
)
