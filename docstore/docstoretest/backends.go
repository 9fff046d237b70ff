package docstoretest

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/kbukum/scalestore/component"
	"github.com/kbukum/scalestore/docstore"
	"github.com/kbukum/scalestore/docstore/memstore"
	"github.com/kbukum/scalestore/docstore/redisstore"
	"github.com/kbukum/scalestore/docstore/sqlstore"
	"github.com/kbukum/scalestore/logger"
)

// Backend is a document store with a lifecycle.
type Backend interface {
	docstore.Backend
	component.Component
}

// Start starts b and stops it when the test ends.
func Start[B Backend](t testing.TB, b B) B {
	t.Helper()
	ctx := context.Background()
	if err := b.Start(ctx); err != nil {
		t.Fatalf("failed to start %s: %v", b.Name(), err)
	}
	t.Cleanup(func() {
		if err := b.Stop(ctx); err != nil {
			t.Errorf("failed to stop %s: %v", b.Name(), err)
		}
	})
	return b
}

// Clock is a settable test clock.
type Clock struct{ now time.Time }

// NewClock returns a clock fixed at a deterministic instant.
func NewClock() *Clock { return &Clock{now: time.UnixMilli(1_700_000_000_000)} }

// Now returns the current clock time.
func (c *Clock) Now() time.Time { return c.now }

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func clockOrNow(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}

// Memory returns an in-process backend.
func Memory(t testing.TB, now func() time.Time) *memstore.Backend {
	t.Helper()
	return Start(t, memstore.New(memstore.WithClock(clockOrNow(now))))
}

// SQLite returns a started backend on a private in-memory database.
func SQLite(t testing.TB, now func() time.Time) *sqlstore.Store {
	t.Helper()
	cfg := sqlstore.Config{DSN: ":memory:", LogLevel: "silent"}
	return Start(t, sqlstore.New(cfg, logger.NewNop(), sqlstore.WithClock(clockOrNow(now))))
}

// Redis returns a started backend on a fresh miniredis server, and the
// server so tests can inspect keys or fast-forward time.
func Redis(t testing.TB, now func() time.Time) (*redisstore.Store, *miniredis.Miniredis) {
	t.Helper()
	mini := miniredis.RunT(t)
	cfg := redisstore.Config{Addr: mini.Addr(), KeyPrefix: "test"}
	return Start(t, redisstore.New(cfg, logger.NewNop(), redisstore.WithClock(clockOrNow(now)))), mini
}
