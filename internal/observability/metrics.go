// Package observability wires the OpenTelemetry providers used across
// jobtrack: Prometheus-exported metrics (transition counters, the pending
// notification gauge) and OTLP traces.
package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
)

// InitMetrics registers the global meter provider backed by a Prometheus
// exporter. The returned handler serves the scrape endpoint; the shutdown
// func flushes the provider and belongs in the process teardown path.
func InitMetrics() (http.Handler, func(context.Context) error, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, fmt.Errorf("prometheus exporter: %w", err)
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	return promhttp.Handler(), provider.Shutdown, nil
}
