package otel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	bookMetrics     *BookMetrics
	bookMetricsOnce sync.Once
)

// BookMetrics holds metrics for matching cycles
type BookMetrics struct {
	fillsTotal     metric.Int64Counter
	filledQuantity metric.Int64Counter
	cycleDuration  metric.Float64Histogram
	restingOrders  metric.Int64Gauge
	cycleErrors    metric.Int64Counter
}

// NewBookMetrics creates the instruments on meter
func NewBookMetrics(meter metric.Meter) (*BookMetrics, error) {
	fillsTotal, err := meter.Int64Counter(
		"orderbook.fills.total",
		metric.WithDescription("Total number of fills produced by matching"),
		metric.WithUnit("{fill}"),
	)
	if err != nil {
		return nil, err
	}

	filledQuantity, err := meter.Int64Counter(
		"orderbook.filled_quantity.total",
		metric.WithDescription("Total quantity traded"),
		metric.WithUnit("{unit}"),
	)
	if err != nil {
		return nil, err
	}

	cycleDuration, err := meter.Float64Histogram(
		"orderbook.cycle.duration",
		metric.WithDescription("Duration (seconds) of a load, match and persist cycle"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	restingOrders, err := meter.Int64Gauge(
		"orderbook.resting_orders",
		metric.WithDescription("Number of orders resting after the last cycle"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, err
	}

	cycleErrors, err := meter.Int64Counter(
		"orderbook.cycle.errors.total",
		metric.WithDescription("Total number of failed cycles by error kind"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &BookMetrics{
		fillsTotal:     fillsTotal,
		filledQuantity: filledQuantity,
		cycleDuration:  cycleDuration,
		restingOrders:  restingOrders,
		cycleErrors:    cycleErrors,
	}, nil
}

// GetBookMetrics returns the BookMetrics singleton bound to the global meter
// provider. Instruments created before Init delegate once a provider is set.
func GetBookMetrics() *BookMetrics {
	bookMetricsOnce.Do(func() {
		m, err := NewBookMetrics(otel.GetMeterProvider().Meter(instrumentationName))
		if err != nil {
			bookMetrics = &BookMetrics{}
			return
		}
		bookMetrics = m
	})
	return bookMetrics
}

// RecordFill counts one fill
func (m *BookMetrics) RecordFill(ctx context.Context, symbol, strategy string, qty uint64) {
	if m == nil || m.fillsTotal == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("symbol", symbol),
		attribute.String("strategy", strategy),
	)
	m.fillsTotal.Add(ctx, 1, attrs)
	m.filledQuantity.Add(ctx, int64(qty), attrs)
}

// RecordCycle records the duration and outcome of a cycle
func (m *BookMetrics) RecordCycle(ctx context.Context, d time.Duration, outcome string) {
	if m == nil || m.cycleDuration == nil {
		return
	}
	m.cycleDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordRestingOrders records the book depth after a cycle
func (m *BookMetrics) RecordRestingOrders(ctx context.Context, n int) {
	if m == nil || m.restingOrders == nil {
		return
	}
	m.restingOrders.Record(ctx, int64(n))
}

// RecordCycleError counts a failed cycle
func (m *BookMetrics) RecordCycleError(ctx context.Context, kind string) {
	if m == nil || m.cycleErrors == nil {
		return
	}
	m.cycleErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("error.kind", kind)))
}
