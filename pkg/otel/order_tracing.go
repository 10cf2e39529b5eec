package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Span names
	SpanOrderEntry   = "order_entry"
	SpanInspectBook  = "inspect_book"
	SpanMatchCycle   = "match_cycle"
	SpanLoadBook     = "load_book"
	SpanMatch        = "match"
	SpanPersistBook  = "persist_book"
	SpanPublishFills = "publish_fills"
	SpanResetBook    = "reset_book"

	// Attribute keys
	AttributeOrderID       = "order.cl_ord_id"
	AttributeOrderSymbol   = "order.symbol"
	AttributeOrderSide     = "order.side"
	AttributeOrderType     = "order.type"
	AttributeOrderQuantity = "order.quantity"
	AttributeOrderPrice    = "order.price"
	AttributeStrategy      = "matching.strategy"
	AttributeStore         = "store.name"
	AttributeFillCount     = "fill.count"
	AttributeRestingOrders = "book.resting_orders"
)

// StartOrderSpan starts a new span. Entry spans use the order entry tracer,
// everything else belongs to the matching engine.
func StartOrderSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	var tracer trace.Tracer
	switch name {
	case SpanOrderEntry, SpanInspectBook:
		tracer = GetOrderEntryTracer()
	default:
		tracer = GetMatchingEngineTracer()
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// AddAttributes adds attributes to a span
func AddAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	span.SetAttributes(attrs...)
}

// RecordError marks the span failed with err
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
