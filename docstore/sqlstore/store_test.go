package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/kbukum/scalestore/component"
	"github.com/kbukum/scalestore/docstore"
	"github.com/kbukum/scalestore/logger"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s := New(Config{DSN: ":memory:", LogLevel: "silent"}, logger.NewNop(), opts...)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	return s
}

func TestConfigDefaults(t *testing.T) {
	t.Run("memory pins one connection", func(t *testing.T) {
		cfg := Config{DSN: ":memory:", MaxOpenConns: 10}
		cfg.ApplyDefaults()
		if cfg.MaxOpenConns != 1 || cfg.MaxIdleConns != 1 || cfg.ConnMaxLifetime != "0s" {
			t.Errorf("unexpected memory pool settings %+v", cfg)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("unexpected validation error: %v", err)
		}
	})

	t.Run("file defaults", func(t *testing.T) {
		cfg := Config{}
		cfg.ApplyDefaults()
		if cfg.DSN == "" || cfg.MaxOpenConns != 4 || cfg.LogLevel != "warn" {
			t.Errorf("unexpected defaults %+v", cfg)
		}
	})

	t.Run("invalid values", func(t *testing.T) {
		tests := []Config{
			{DSN: "x.db", MaxOpenConns: 1, MaxIdleConns: 2, ConnMaxLifetime: "1h", ConnMaxIdleTime: "1m", SlowQueryThreshold: "1s", LogLevel: "warn"},
			{DSN: "x.db", MaxOpenConns: 1, MaxIdleConns: 1, ConnMaxLifetime: "forever", ConnMaxIdleTime: "1m", SlowQueryThreshold: "1s", LogLevel: "warn"},
			{DSN: "x.db", MaxOpenConns: 1, MaxIdleConns: 1, ConnMaxLifetime: "1h", ConnMaxIdleTime: "1m", SlowQueryThreshold: "1s", LogLevel: "verbose"},
		}
		for i, cfg := range tests {
			if err := cfg.Validate(); err == nil {
				t.Errorf("case %d: expected validation error", i)
			}
		}
	})
}

func TestStoreLifecycle(t *testing.T) {
	s := New(Config{DSN: ":memory:", LogLevel: "silent"}, logger.NewNop())
	ctx := context.Background()

	if _, err := s.Container("apicache"); err == nil {
		t.Fatal("expected error before Start")
	}
	if h := s.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Errorf("expected unhealthy before Start, got %s", h.Status)
	}
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if h := s.Health(ctx); h.Status != component.StatusHealthy {
		t.Errorf("expected healthy, got %s (%s)", h.Status, h.Message)
	}
	version, dirty, err := MigrateVersion(s.DB().GormDB)
	if err != nil || version != 1 || dirty {
		t.Errorf("expected schema version 1, got %d dirty=%v err=%v", version, dirty, err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
}

func TestContainerUpsertAndRead(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_500)
	s := newTestStore(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()
	ct, _ := s.Container("apicache")

	resp, err := ct.Upsert(ctx, docstore.Record{"id": "listInstances-vmss-A", "result": "[]", "ttl": 600}, docstore.UpsertOptions{})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if resp.Status != docstore.StatusCreated || resp.Resource.Timestamp() != now.UnixMilli() {
		t.Fatalf("unexpected response %+v", resp)
	}
	tag := resp.Resource.ETag()

	read, err := ct.Read(ctx, "listInstances-vmss-A")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if read.Status != docstore.StatusOK || read.Resource.ETag() != tag || read.Resource["ttl"] != float64(600) {
		t.Errorf("unexpected read %+v", read.Resource)
	}

	missing, _ := ct.Read(ctx, "nope")
	if missing.Status != docstore.StatusNotFound {
		t.Errorf("expected NotFound, got %v", missing.Status)
	}

	// Containers are isolated from each other.
	other, _ := s.Container("settings")
	if r, _ := other.Read(ctx, "listInstances-vmss-A"); r.Status != docstore.StatusNotFound {
		t.Error("expected record invisible in another container")
	}
}

func TestContainerPreconditions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ct, _ := s.Container("settings")

	first, _ := ct.Upsert(ctx, docstore.Record{"id": "cooldown", "value": "300"}, docstore.UpsertOptions{})
	second, err := ct.Upsert(ctx, docstore.Record{"id": "cooldown", "value": "600"}, docstore.UpsertOptions{IfMatch: first.Resource.ETag()})
	if err != nil || second.Status != docstore.StatusOK {
		t.Fatalf("expected conditional update to succeed, got %+v err=%v", second, err)
	}
	if second.Resource[docstore.FieldRID] != first.Resource[docstore.FieldRID] {
		t.Error("expected internal id kept across updates")
	}

	tests := []struct {
		name string
		id   string
		opts docstore.UpsertOptions
		want docstore.Status
	}{
		{"stale etag", "cooldown", docstore.UpsertOptions{IfMatch: first.Resource.ETag()}, docstore.StatusPreconditionFailed},
		{"etag on missing row", "missing", docstore.UpsertOptions{IfMatch: "x"}, docstore.StatusPreconditionFailed},
		{"create only on existing", "cooldown", docstore.UpsertOptions{IfNoneMatch: true}, docstore.StatusConflict},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := ct.Upsert(ctx, docstore.Record{"id": tc.id, "value": "x"}, tc.opts)
			if err != nil {
				t.Fatalf("Upsert failed: %v", err)
			}
			if resp.Status != tc.want {
				t.Errorf("expected %v, got %v", tc.want, resp.Status)
			}
		})
	}

	read, _ := ct.Read(ctx, "cooldown")
	if read.Resource["value"] != "600" {
		t.Errorf("expected failed writes to leave value 600, got %v", read.Resource["value"])
	}
}

func TestContainerQuery(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ct, _ := s.Container("instances")
	for _, rec := range []docstore.Record{
		{"id": "1", "group": "vmss-A", "capacity": 2, "spot": true},
		{"id": "2", "group": "vmss-B", "capacity": 2, "spot": false},
		{"id": "3", "group": "vmss-A", "capacity": 5},
	} {
		if _, err := ct.Upsert(ctx, rec, docstore.UpsertOptions{}); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	tests := []struct {
		name    string
		where   []docstore.Where
		limit   int
		wantIDs []string
	}{
		{"all", nil, 0, []string{"1", "2", "3"}},
		{"string", []docstore.Where{{Field: "group", Value: "vmss-A"}}, 0, []string{"1", "3"}},
		{"number", []docstore.Where{{Field: "capacity", Value: 2}}, 0, []string{"1", "2"}},
		{"bool", []docstore.Where{{Field: "spot", Value: true}}, 0, []string{"1"}},
		{"null matches missing", []docstore.Where{{Field: "spot", Value: nil}}, 0, []string{"3"}},
		{"anded", []docstore.Where{{Field: "group", Value: "vmss-A"}, {Field: "capacity", Value: 5}}, 0, []string{"3"}},
		{"limit", nil, 2, []string{"1", "2"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q, err := docstore.BuildQuery(tc.where, tc.limit)
			if err != nil {
				t.Fatalf("BuildQuery failed: %v", err)
			}
			got, err := ct.Query(ctx, q)
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(got) != len(tc.wantIDs) {
				t.Fatalf("got %d records, want %d", len(got), len(tc.wantIDs))
			}
			for i, id := range tc.wantIDs {
				if got[i]["id"] != id {
					t.Errorf("record %d id = %v, want %s", i, got[i]["id"], id)
				}
			}
		})
	}

	if _, err := ct.Query(ctx, docstore.Query{Where: []docstore.Where{{Field: "x') OR 1=1 --", Value: 1}}}); err == nil {
		t.Error("expected invalid field name to be rejected")
	}
}

func TestContainerDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ct, _ := s.Container("settings")
	ct.Upsert(ctx, docstore.Record{"id": "cooldown"}, docstore.UpsertOptions{})

	resp, err := ct.Delete(ctx, "cooldown")
	if err != nil || resp.Status != docstore.StatusNoContent {
		t.Fatalf("expected NoContent, got %+v err=%v", resp, err)
	}
	resp, _ = ct.Delete(ctx, "cooldown")
	if resp.Status != docstore.StatusNotFound {
		t.Errorf("expected NotFound, got %v", resp.Status)
	}
}

type setting struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name" validate:"required"`
	Value string `json:"value"`
}

func TestCollectionOverSQLite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	coll := docstore.NewCollection(s, docstore.NewTable[setting]("settings", "name"), logger.NewNop())

	if _, err := coll.Save(ctx, docstore.Record{"name": "cooldown", "value": "300"}, docstore.InsertOnly); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if _, err := coll.Save(ctx, docstore.Record{"name": "cooldown", "value": "300"}, docstore.InsertOnly); !docstore.IsKeyConflict(err) {
		t.Fatalf("expected KEY_CONFLICT, got %v", err)
	}
	snapshot, _ := coll.GetRecord(ctx, "cooldown")

	if _, err := coll.Save(ctx, docstore.Record{"name": "cooldown", "value": "600"}, docstore.UpdateOnly); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if err := coll.Delete(ctx, snapshot); !docstore.IsInconsistentData(err) {
		t.Fatalf("expected stale delete to fail INCONSISTENT_DATA, got %v", err)
	}

	current, _ := coll.GetRecord(ctx, "cooldown")
	if err := coll.Delete(ctx, current); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := coll.Get(ctx, "cooldown"); !docstore.IsNotFound(err) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}
