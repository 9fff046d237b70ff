package compute_test

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/scalestore/apicache"
	"github.com/kbukum/scalestore/compute"
	"github.com/kbukum/scalestore/docstore/memstore"
	"github.com/kbukum/scalestore/logger"
	"github.com/kbukum/scalestore/resilience"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

// fakeOrigin serves a fixed scale set and records every call.
type fakeOrigin struct {
	mu        sync.Mutex
	instances []compute.Instance
	nics      []compute.NetworkInterface
	calls     []string
	err       error
}

func (o *fakeOrigin) record(call string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, call)
}

func (o *fakeOrigin) Calls() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.calls...)
}

func (o *fakeOrigin) ListInstances(_ context.Context, group string) ([]compute.Instance, error) {
	o.record("list:" + group)
	return o.instances, o.err
}

func (o *fakeOrigin) GetInstance(_ context.Context, group, id string) (*compute.Instance, error) {
	o.record("get:" + group + ":" + id)
	if o.err != nil {
		return nil, o.err
	}
	for i := range o.instances {
		if o.instances[i].InstanceID == id {
			return &o.instances[i], nil
		}
	}
	return nil, nil
}

func (o *fakeOrigin) ListNetworkInterfaces(_ context.Context, group string) ([]compute.NetworkInterface, error) {
	o.record("nics:" + group)
	return o.nics, o.err
}

func newFixture(t *testing.T, opts ...compute.Option) (*compute.Service, *fakeOrigin, *fakeClock, *apicache.Store) {
	t.Helper()
	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	backend := memstore.New(memstore.WithClock(clock.Now))
	store := apicache.NewStore(backend, logger.NewNop(), apicache.WithClock(clock.Now))
	engine := apicache.NewEngine(store, logger.NewNop())
	origin := &fakeOrigin{
		instances: []compute.Instance{
			{InstanceID: "0", VMID: "vm-guid-aaa", Name: "vmss-A_0"},
			{InstanceID: "3", VMID: "vm-guid-xyz", Name: "vmss-A_3"},
		},
		nics: []compute.NetworkInterface{{ID: "nic-0", Name: "nic0", InstanceID: "0", PrivateIP: "10.0.0.4", Primary: true}},
	}
	return compute.NewService(engine, origin, logger.NewNop(), opts...), origin, clock, store
}

func TestListInstancesCacheLifecycle(t *testing.T) {
	svc, origin, clock, _ := newFixture(t)
	ctx := context.Background()

	first, err := svc.ListInstances(ctx, "vmss-A", apicache.ReadCacheFirst)
	if err != nil {
		t.Fatalf("ListInstances failed: %v", err)
	}
	cacheTime := clock.now.UnixMilli()
	if first.HitCache || first.CacheTime != cacheTime || len(*first.Result) != 2 {
		t.Fatalf("unexpected first result %+v", first)
	}

	second, _ := svc.ListInstances(ctx, "vmss-A", apicache.ReadCacheFirst)
	if !second.HitCache || second.CacheTime != cacheTime || (*second.Result)[1].VMID != "vm-guid-xyz" {
		t.Errorf("expected cache hit with cacheTime %d, got %+v", cacheTime, second)
	}
	if n := len(origin.Calls()); n != 1 {
		t.Errorf("expected a single origin call, got %d", n)
	}

	clock.now = clock.now.Add(time.Duration(apicache.DefaultTTL) * time.Second)
	third, _ := svc.ListInstances(ctx, "vmss-A", apicache.ReadCacheFirst)
	if third.HitCache || len(origin.Calls()) != 2 {
		t.Errorf("expected fresh origin call after ttl, got %+v calls=%v", third, origin.Calls())
	}
}

func TestDescribeInstance(t *testing.T) {
	ctx := context.Background()

	t.Run("numeric key calls origin directly", func(t *testing.T) {
		svc, origin, _, store := newFixture(t)
		res, err := svc.DescribeInstance(ctx, "vmss-A", "3", apicache.ReadCacheFirst)
		if err != nil {
			t.Fatalf("DescribeInstance failed: %v", err)
		}
		if res.Result == nil || res.Result.VMID != "vm-guid-xyz" {
			t.Fatalf("unexpected result %+v", res)
		}
		if calls := origin.Calls(); len(calls) != 1 || calls[0] != "get:vmss-A:3" {
			t.Errorf("unexpected origin calls %v", calls)
		}
		if e, _ := store.Lookup(ctx, "describeInstance-vmss-A-3"); e == nil {
			t.Error("expected describeInstance-vmss-A-3 cached")
		}
	})

	t.Run("stable id filters the cached list", func(t *testing.T) {
		svc, origin, _, _ := newFixture(t)
		list, _ := svc.ListInstances(ctx, "vmss-A", apicache.ReadCacheFirst)

		res, err := svc.DescribeInstance(ctx, "vmss-A", "vm-guid-xyz", apicache.ReadCacheFirst)
		if err != nil {
			t.Fatalf("DescribeInstance failed: %v", err)
		}
		if res.Result == nil || res.Result.InstanceID != "3" {
			t.Fatalf("unexpected result %+v", res)
		}
		if !res.HitCache || res.CacheTime != list.CacheTime {
			t.Errorf("expected the list's provenance, got %+v", res)
		}
		if calls := origin.Calls(); len(calls) != 1 || calls[0] != "list:vmss-A" {
			t.Errorf("expected only the list call, got %v", calls)
		}
	})

	t.Run("name matches too", func(t *testing.T) {
		svc, _, _, _ := newFixture(t)
		res, _ := svc.DescribeInstance(ctx, "vmss-A", "vmss-A_0", apicache.ReadCacheFirst)
		if res.Result == nil || res.Result.VMID != "vm-guid-aaa" || res.HitCache {
			t.Errorf("unexpected result %+v", res)
		}
	})

	t.Run("unknown id yields nil", func(t *testing.T) {
		svc, _, _, _ := newFixture(t)
		res, err := svc.DescribeInstance(ctx, "vmss-A", "vm-missing", apicache.ReadCacheFirst)
		if err != nil || res.Result != nil {
			t.Errorf("expected nil result, got %+v err=%v", res, err)
		}
	})

	t.Run("cache only never calls origin", func(t *testing.T) {
		svc, origin, _, _ := newFixture(t)
		res, _ := svc.DescribeInstance(ctx, "vmss-A", "vm-guid-xyz", apicache.ReadCacheOnly)
		if res.Result != nil || len(origin.Calls()) != 0 {
			t.Errorf("expected miss without origin calls, got %+v calls=%v", res, origin.Calls())
		}
	})
}

func TestListNetworkInterfaces(t *testing.T) {
	svc, origin, _, _ := newFixture(t)
	ctx := context.Background()

	res, err := svc.ListNetworkInterfaces(ctx, "vmss-A", apicache.ReadAPIOnly)
	if err != nil || len(*res.Result) != 1 || res.HitCache {
		t.Fatalf("unexpected result %+v err=%v", res, err)
	}
	res, _ = svc.ListNetworkInterfaces(ctx, "vmss-A", apicache.ReadCacheOnly)
	if res.Result != nil {
		t.Error("expected ReadAPIOnly not to populate the cache")
	}
	if n := len(origin.Calls()); n != 1 {
		t.Errorf("expected 1 origin call, got %d", n)
	}
}

func TestEmptyOriginIsNotCached(t *testing.T) {
	svc, origin, _, store := newFixture(t)
	origin.nics = nil
	ctx := context.Background()

	res, err := svc.ListNetworkInterfaces(ctx, "vmss-B", apicache.ReadCacheFirst)
	if err != nil || res.Result != nil {
		t.Fatalf("expected nil result, got %+v err=%v", res, err)
	}
	if e, _ := store.Lookup(ctx, "listNetworkInterfaces-vmss-B"); e != nil {
		t.Error("expected nothing cached for a nil payload")
	}
}

func TestOriginErrorPropagates(t *testing.T) {
	svc, origin, _, _ := newFixture(t)
	origin.err = stderrors.New("429 too many requests")
	_, err := svc.ListInstances(context.Background(), "vmss-A", apicache.ReadCacheFirst)
	if err != origin.err {
		t.Errorf("expected origin error unchanged, got %v", err)
	}
}

func TestTTLOption(t *testing.T) {
	svc, _, _, store := newFixture(t, compute.WithTTL(30))
	ctx := context.Background()
	res, _ := svc.ListInstances(ctx, "vmss-A", apicache.ReadCacheFirst)
	if res.TTL != 30 {
		t.Errorf("expected envelope ttl 30, got %d", res.TTL)
	}
	if e, _ := store.Lookup(ctx, "listInstances-vmss-A"); e == nil || e.TTL != 30 {
		t.Errorf("expected stored ttl 30, got %+v", e)
	}
}

func TestRateLimitedOriginHonoursCancellation(t *testing.T) {
	limiter := resilience.NewRateLimiter(resilience.RateLimiterConfig{Name: "compute", Rate: 0.001, Burst: 1})
	svc, origin, _, _ := newFixture(t, compute.WithRateLimiter(limiter))

	if _, err := svc.ListInstances(context.Background(), "vmss-A", apicache.ReadAPIOnly); err != nil {
		t.Fatalf("first call should use the burst token: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := svc.ListInstances(ctx, "vmss-A", apicache.ReadAPIOnly)
	if !stderrors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded while waiting for a token, got %v", err)
	}
	if n := len(origin.Calls()); n != 1 {
		t.Errorf("expected the throttled call not to reach the origin, got %d calls", n)
	}
}
