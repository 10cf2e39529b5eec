package otel

import (
	"time"

	hostmetrics "go.opentelemetry.io/contrib/instrumentation/host"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
)

// StartRuntimeMetrics starts Go runtime (memory, GC) and host (CPU, network)
// metrics collection on the global meter provider. Call it after Init.
func StartRuntimeMetrics(memStatsInterval time.Duration) error {
	if memStatsInterval <= 0 {
		memStatsInterval = 30 * time.Second
	}
	if err := runtime.Start(
		runtime.WithMeterProvider(GetMeterProvider()),
		runtime.WithMinimumReadMemStatsInterval(memStatsInterval),
	); err != nil {
		return err
	}
	return hostmetrics.Start(hostmetrics.WithMeterProvider(GetMeterProvider()))
}
