package docstoretest

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/kbukum/scalestore/docstore"
)

// Factory returns a started, empty backend whose containers stamp writes
// with now.
type Factory func(t *testing.T, now func() time.Time) docstore.Backend

// RunContainerTests checks the container contract every backend must honor.
func RunContainerTests(t *testing.T, newBackend Factory) {
	t.Run("read missing", func(t *testing.T) {
		c := container(t, newBackend(t, nil), "contract")
		resp, err := c.Read(context.Background(), "missing")
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if resp.Status != docstore.StatusNotFound {
			t.Errorf("expected 404, got %v", resp.Status)
		}
	})

	t.Run("upsert stamps metadata", func(t *testing.T) {
		clock := NewClock()
		c := container(t, newBackend(t, clock.Now), "contract")
		ctx := context.Background()

		created := upsert(t, c, docstore.Record{"id": "a", "name": "a", "value": "1"}, docstore.UpsertOptions{})
		if created.Status != docstore.StatusCreated {
			t.Errorf("expected 201, got %v", created.Status)
		}
		first := created.Resource
		if first.ETag() == "" || first[docstore.FieldRID] == nil {
			t.Errorf("expected revision metadata, got %v", first)
		}
		if first.Timestamp() != clock.Now().UnixMilli() {
			t.Errorf("expected _ts %d, got %d", clock.Now().UnixMilli(), first.Timestamp())
		}

		clock.Advance(time.Second)
		updated := upsert(t, c, docstore.Record{"id": "a", "name": "a", "value": "2"}, docstore.UpsertOptions{})
		if updated.Status != docstore.StatusOK {
			t.Errorf("expected 200, got %v", updated.Status)
		}
		if updated.Resource.ETag() == first.ETag() {
			t.Error("expected a new revision tag")
		}
		if updated.Resource[docstore.FieldRID] != first[docstore.FieldRID] {
			t.Errorf("expected stable _rid, got %v then %v", first[docstore.FieldRID], updated.Resource[docstore.FieldRID])
		}

		read, err := c.Read(ctx, "a")
		if err != nil || read.Status != docstore.StatusOK {
			t.Fatalf("Read: %v %v", read, err)
		}
		if read.Resource["value"] != "2" || read.Resource.Timestamp() != clock.Now().UnixMilli() {
			t.Errorf("unexpected stored record %v", read.Resource)
		}
	})

	t.Run("preconditions", func(t *testing.T) {
		c := container(t, newBackend(t, nil), "contract")
		etag := upsert(t, c, docstore.Record{"id": "a", "value": "1"}, docstore.UpsertOptions{}).Resource.ETag()

		tests := []struct {
			name string
			id   string
			opts docstore.UpsertOptions
			want docstore.Status
		}{
			{"if-match stale", "a", docstore.UpsertOptions{IfMatch: "stale"}, docstore.StatusPreconditionFailed},
			{"if-match missing row", "b", docstore.UpsertOptions{IfMatch: etag}, docstore.StatusPreconditionFailed},
			{"if-none-match existing", "a", docstore.UpsertOptions{IfNoneMatch: true}, docstore.StatusConflict},
			{"if-match current", "a", docstore.UpsertOptions{IfMatch: etag}, docstore.StatusOK},
			{"if-none-match new", "c", docstore.UpsertOptions{IfNoneMatch: true}, docstore.StatusCreated},
		}
		for _, tc := range tests {
			resp := upsert(t, c, docstore.Record{"id": tc.id, "value": "x"}, tc.opts)
			if resp.Status != tc.want {
				t.Errorf("%s: expected %v, got %v", tc.name, tc.want, resp.Status)
			}
		}
	})

	t.Run("query", func(t *testing.T) {
		c := container(t, newBackend(t, nil), "contract")
		for _, rec := range []docstore.Record{
			{"id": "c", "group": "vmss-A", "state": "running"},
			{"id": "a", "group": "vmss-A", "state": "stopped"},
			{"id": "b", "group": "vmss-A", "state": "running"},
			{"id": "d", "group": "vmss-B", "state": "running"},
		} {
			upsert(t, c, rec, docstore.UpsertOptions{})
		}

		tests := []struct {
			name  string
			where []docstore.Where
			limit int
			want  []string
		}{
			{"all ordered by id", nil, 0, []string{"a", "b", "c", "d"}},
			{"limit", nil, 2, []string{"a", "b"}},
			{"one clause", []docstore.Where{{Field: "group", Value: "vmss-A"}}, 0, []string{"a", "b", "c"}},
			{"clauses are ANDed", []docstore.Where{{Field: "group", Value: "vmss-A"}, {Field: "state", Value: "running"}}, 0, []string{"b", "c"}},
			{"no match", []docstore.Where{{Field: "group", Value: "vmss-Z"}}, 0, nil},
		}
		for _, tc := range tests {
			q, err := docstore.BuildQuery(tc.where, tc.limit)
			if err != nil {
				t.Fatalf("%s: BuildQuery: %v", tc.name, err)
			}
			got, err := c.Query(context.Background(), q)
			if err != nil {
				t.Fatalf("%s: Query: %v", tc.name, err)
			}
			if ids := idsOf(got); !slices.Equal(ids, tc.want) {
				t.Errorf("%s: expected %v, got %v", tc.name, tc.want, ids)
			}
		}
	})

	t.Run("delete", func(t *testing.T) {
		c := container(t, newBackend(t, nil), "contract")
		upsert(t, c, docstore.Record{"id": "a"}, docstore.UpsertOptions{})
		ctx := context.Background()

		resp, err := c.Delete(ctx, "a")
		if err != nil || resp.Status != docstore.StatusNoContent {
			t.Fatalf("expected 204, got %v err=%v", resp, err)
		}
		resp, err = c.Delete(ctx, "a")
		if err != nil || resp.Status != docstore.StatusNotFound {
			t.Errorf("expected 404 on second delete, got %v err=%v", resp, err)
		}
	})

	t.Run("containers are isolated", func(t *testing.T) {
		backend := newBackend(t, nil)
		settings := container(t, backend, "settings")
		cache := container(t, backend, "apicache")
		upsert(t, settings, docstore.Record{"id": "shared"}, docstore.UpsertOptions{})

		resp, err := cache.Read(context.Background(), "shared")
		if err != nil || resp.Status != docstore.StatusNotFound {
			t.Errorf("expected 404 across containers, got %v err=%v", resp, err)
		}
	})
}

func container(t *testing.T, b docstore.Backend, name string) docstore.Container {
	t.Helper()
	c, err := b.Container(name)
	if err != nil {
		t.Fatalf("Container(%s): %v", name, err)
	}
	return c
}

func upsert(t *testing.T, c docstore.Container, rec docstore.Record, opts docstore.UpsertOptions) *docstore.Response {
	t.Helper()
	resp, err := c.Upsert(context.Background(), rec, opts)
	if err != nil {
		t.Fatalf("Upsert(%v): %v", rec[docstore.FieldID], err)
	}
	return resp
}

func idsOf(records []docstore.Record) []string {
	var ids []string
	for _, r := range records {
		ids = append(ids, docstore.KeyString(r[docstore.FieldID]))
	}
	return ids
}
