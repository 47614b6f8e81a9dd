package observe

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func findMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) *metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func counterTotal(t *testing.T, m *metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: unexpected data type %T", m.Name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestRecordProviderCall(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordProviderCall(ctx, KindChat, time.Now(), nil)
	m.RecordProviderCall(ctx, KindChat, time.Now(), errors.New("boom"))

	requests := findMetric(t, reader, "hablaya.provider.requests")
	if requests == nil {
		t.Fatal("provider requests metric not found")
	}
	if got := counterTotal(t, requests); got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}

	errs := findMetric(t, reader, "hablaya.provider.errors")
	if errs == nil {
		t.Fatal("provider errors metric not found")
	}
	if got := counterTotal(t, errs); got != 1 {
		t.Errorf("errors = %d, want 1", got)
	}
}

func TestMiddleware_RecordsRoute(t *testing.T) {
	m, reader := newTestMetrics(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := chi.NewRouter()
	r.Use(Middleware(m, logger))
	r.Get("/api/test", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/test", nil))
	if rr.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rr.Code)
	}

	hist := findMetric(t, reader, "hablaya.http.request.duration")
	if hist == nil {
		t.Fatal("http duration metric not found")
	}
	data, ok := hist.Data.(metricdata.Histogram[float64])
	if !ok || len(data.DataPoints) != 1 {
		t.Fatalf("unexpected histogram data: %#v", hist.Data)
	}
	route, _ := data.DataPoints[0].Attributes.Value("route")
	if route.AsString() != "/api/test" {
		t.Errorf("route = %q", route.AsString())
	}
}

func TestNopMetrics(t *testing.T) {
	m := NopMetrics()
	m.RecordProviderCall(context.Background(), KindSpeech, time.Now(), nil)
	m.RecordTokens(context.Background(), 10, 5)
}
