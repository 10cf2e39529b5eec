package otel

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc/stats"
)

// NewGRPCStatsHandler creates a stats handler for the admin gRPC server
// bound to the matching engine providers.
func NewGRPCStatsHandler() stats.Handler {
	return otelgrpc.NewServerHandler(
		otelgrpc.WithMeterProvider(GetMeterProvider()),
		otelgrpc.WithTracerProvider(GetTracerProvider(ServiceMatchingEngine)),
	)
}
