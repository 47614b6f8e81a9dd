package observe

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitProvider installs a global meter provider backed by the Prometheus
// exporter and returns metrics bound to it, the /metrics handler and a
// shutdown function for main to defer.
func InitProvider() (*Metrics, http.Handler, func(context.Context) error, error) {
	exporter, err := promexporter.New()
	if err != nil {
		return nil, nil, nil, err
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(mp)

	m, err := NewMetrics(mp)
	if err != nil {
		_ = mp.Shutdown(context.Background())
		return nil, nil, nil, err
	}
	return m, promhttp.Handler(), mp.Shutdown, nil
}
