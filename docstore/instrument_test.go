package docstore_test

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/scalestore/docstore"
	"github.com/kbukum/scalestore/docstore/memstore"
	"github.com/kbukum/scalestore/logger"
	"github.com/kbukum/scalestore/observability"
)

func storeOpCounts(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	counts := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "scalestore.store.operations" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("unexpected data type %T", m.Data)
			}
			for _, dp := range sum.DataPoints {
				op, _ := dp.Attributes.Value(attribute.Key("operation"))
				status, _ := dp.Attributes.Value(attribute.Key("status"))
				counts[op.AsString()+"/"+status.AsString()] += dp.Value
			}
		}
	}
	return counts
}

func TestInstrumentRecordsOperations(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := observability.NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	coll := docstore.NewCollection(docstore.Instrument(memstore.New(), metrics), settingsTable, logger.NewNop())
	ctx := context.Background()

	if _, err := coll.Save(ctx, docstore.Record{"name": "cooldown", "value": "300"}, docstore.Upsert); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := coll.Get(ctx, "missing"); err == nil {
		t.Fatal("expected NOT_FOUND")
	}
	if _, err := coll.List(ctx, nil, 0); err != nil {
		t.Fatalf("List: %v", err)
	}

	counts := storeOpCounts(t, reader)
	want := map[string]int64{
		"read/404":   2, // the consistency read before the save, then Get
		"upsert/201": 1,
		"query/200":  1,
	}
	for key, n := range want {
		if counts[key] != n {
			t.Errorf("%s: expected %d, got %d (all: %v)", key, n, counts[key], counts)
		}
	}

	spans := recorder.Ended()
	if len(spans) != 4 {
		t.Fatalf("expected 4 spans, got %d", len(spans))
	}
	if spans[1].Name() != "docstore.upsert" {
		t.Errorf("unexpected span name %q", spans[1].Name())
	}
}

func TestInstrumentNilMetrics(t *testing.T) {
	coll := docstore.NewCollection(docstore.Instrument(memstore.New(), nil), settingsTable, logger.NewNop())
	if _, err := coll.Save(context.Background(), docstore.Record{"name": "a", "value": "1"}, docstore.Upsert); err != nil {
		t.Fatalf("Save: %v", err)
	}
}
