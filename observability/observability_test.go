package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/scalestore/logger"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.Endpoint != "localhost:4318" || cfg.SampleRate != 1.0 || cfg.IntervalDuration() != 15*time.Second {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"disabled skips checks", Config{SampleRate: 7}, false},
		{"valid", Config{Enabled: true, Endpoint: "otel:4318", Interval: "5s", SampleRate: 0.5}, false},
		{"missing endpoint", Config{Enabled: true, Interval: "5s", SampleRate: 1}, true},
		{"bad rate", Config{Enabled: true, Endpoint: "otel:4318", Interval: "5s", SampleRate: 1.5}, true},
		{"bad interval", Config{Enabled: true, Endpoint: "otel:4318", Interval: "soon", SampleRate: 1}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.Validate(); (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestSetupDisabled(t *testing.T) {
	tel, err := Setup(context.Background(), Config{}, "scalestore", "test", logger.NewNop())
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if tel.Enabled() {
		t.Error("expected disabled telemetry")
	}
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestSetupExportsToCollector(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	prevTP, prevMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	defer func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
	}()

	cfg := Config{Enabled: true, Endpoint: strings.TrimPrefix(srv.URL, "http://"), Insecure: true}
	cfg.ApplyDefaults()
	ctx := context.Background()
	tel, err := Setup(ctx, cfg, "scalestore", "test", logger.NewNop())
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if !tel.Enabled() {
		t.Fatal("expected enabled telemetry")
	}

	metrics, err := NewMetrics(Meter())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	_, span := StartSpan(ctx, SpanCacheFetch)
	metrics.RecordLookup(ctx, "listInstances", "ReadCacheFirst", OutcomeHit)
	EndSpan(span, nil)

	if err := tel.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if posts.Load() == 0 {
		t.Error("expected telemetry to reach the collector")
	}
}

func TestEndSpanRecordsError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	defer otel.SetTracerProvider(prev)

	_, span := StartSpan(context.Background(), SpanOrigin)
	EndSpan(span, errors.New("throttled"))

	ended := recorder.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected 1 span, got %d", len(ended))
	}
	if len(ended[0].Events()) != 1 || ended[0].Status().Description != "throttled" {
		t.Errorf("expected recorded error, got %+v", ended[0].Status())
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordLookup(ctx, "a", "b", OutcomeMiss)
	m.RecordOrigin(ctx, "a", nil, time.Millisecond)
	m.RecordStoreOp(ctx, "apicache", "read", "200", time.Millisecond)

	m, err := NewMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.RecordOrigin(ctx, "a", errors.New("boom"), time.Millisecond)
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{0.25, "ParentBased"},
	}
	for _, tc := range tests {
		if got := sampler(tc.rate).Description(); !strings.HasPrefix(got, tc.want) {
			t.Errorf("sampler(%v) = %q, want prefix %q", tc.rate, got, tc.want)
		}
	}
}
