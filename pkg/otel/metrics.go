package otel

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

const (
	instrumentationName = "github.com/erain9/bookd/pkg/otel"
)

var (
	httpMetrics     *HTTPServerMetrics
	httpMetricsOnce sync.Once
)

// HTTPServerMetrics holds the metrics instruments for HTTP server monitoring
type HTTPServerMetrics struct {
	// Latency metrics
	serverLatency metric.Float64Histogram

	// Traffic metrics
	requestsTotal    metric.Int64Counter
	requestsInFlight metric.Int64UpDownCounter

	// Error metrics
	errorTotal metric.Int64Counter
}

// NewHTTPServerMetrics creates a new HTTPServerMetrics instance
func NewHTTPServerMetrics(meter metric.Meter) (*HTTPServerMetrics, error) {
	serverLatency, err := meter.Float64Histogram(
		"http.server.duration",
		metric.WithDescription("Response latency (seconds) of HTTP server"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestsTotal, err := meter.Int64Counter(
		"http.server.requests.total",
		metric.WithDescription("Total number of HTTP requests started"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	requestsInFlight, err := meter.Int64UpDownCounter(
		"http.server.requests.in_flight",
		metric.WithDescription("Number of HTTP requests currently in flight"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	errorTotal, err := meter.Int64Counter(
		"http.server.errors.total",
		metric.WithDescription("Total number of HTTP responses with status >= 400"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &HTTPServerMetrics{
		serverLatency:    serverLatency,
		requestsTotal:    requestsTotal,
		requestsInFlight: requestsInFlight,
		errorTotal:       errorTotal,
	}, nil
}

// GetHTTPServerMetrics returns a singleton instance of HTTPServerMetrics
func GetHTTPServerMetrics(meter metric.Meter) (*HTTPServerMetrics, error) {
	var err error
	httpMetricsOnce.Do(func() {
		httpMetrics, err = NewHTTPServerMetrics(meter)
	})
	if err != nil {
		return nil, err
	}
	return httpMetrics, nil
}

// StartRequest marks a request in flight. The returned function finishes it
// once the route and response status are known.
func (m *HTTPServerMetrics) StartRequest(ctx context.Context, method string) func(route string, status int) {
	start := time.Now()
	m.requestsInFlight.Add(ctx, 1)

	return func(route string, status int) {
		m.requestsInFlight.Add(ctx, -1)
		attrs := []attribute.KeyValue{
			semconv.HTTPMethodKey.String(method),
			semconv.HTTPRouteKey.String(route),
		}
		m.requestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
		attrs = append(attrs, semconv.HTTPStatusCodeKey.Int(status))
		m.serverLatency.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attrs...))
		if status >= 400 {
			m.errorTotal.Add(ctx, 1, metric.WithAttributes(
				semconv.HTTPRouteKey.String(route),
				attribute.String("http.status_class", StatusClass(status)),
			))
		}
	}
}

// StatusClass buckets a status code, e.g. 404 -> "4xx"
func StatusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}
