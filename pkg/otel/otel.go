package otel

import (
	"context"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	ServiceOrderEntry     = "order-entry"
	ServiceMatchingEngine = "matching-engine"
)

var (
	mu                     sync.RWMutex
	orderEntryTracer       trace.Tracer
	matchingEngineTracer   trace.Tracer
	orderEntryProvider     *sdktrace.TracerProvider
	matchingEngineProvider *sdktrace.TracerProvider
	meterProvider          *sdkmetric.MeterProvider
)

// Config holds the OpenTelemetry configuration
type Config struct {
	ServiceVersion   string
	Endpoint         string
	ConnectTimeout   time.Duration
	MetricInterval   time.Duration
	CollectorEnabled bool
}

// Init initializes OpenTelemetry with the given configuration. With the
// collector disabled nothing is exported and the global no-op providers stay
// in place, so spans and instruments are always safe to use.
func Init(cfg Config) (func(), error) {
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = "0.1.0"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.MetricInterval == 0 {
		cfg.MetricInterval = 5 * time.Second
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	if !cfg.CollectorEnabled {
		return func() {}, nil
	}

	var cleanup []func()
	shutdown := func(name string, fn func(context.Context) error) func() {
		return func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
			defer cancel()
			if err := fn(ctx); err != nil {
				log.Printf("Error shutting down %s: %v", name, err)
			}
		}
	}

	mu.Lock()
	defer mu.Unlock()

	entryTP, err := initTracerProvider(cfg, initResource(ServiceOrderEntry, cfg.ServiceVersion))
	if err != nil {
		log.Printf("Warning: Failed to initialize order entry tracer provider: %v", err)
	} else {
		orderEntryProvider = entryTP
		orderEntryTracer = entryTP.Tracer(ServiceOrderEntry)
		cleanup = append(cleanup, shutdown("order entry tracer provider", entryTP.Shutdown))
	}

	engineResource := initResource(ServiceMatchingEngine, cfg.ServiceVersion)
	engineTP, err := initTracerProvider(cfg, engineResource)
	if err != nil {
		log.Printf("Warning: Failed to initialize matching engine tracer provider: %v", err)
	} else {
		matchingEngineProvider = engineTP
		matchingEngineTracer = engineTP.Tracer(ServiceMatchingEngine)
		otel.SetTracerProvider(engineTP)
		cleanup = append(cleanup, shutdown("matching engine tracer provider", engineTP.Shutdown))
	}

	mp, err := initMeterProvider(cfg, engineResource)
	if err != nil {
		log.Printf("Warning: Failed to initialize meter provider: %v. Continuing without metrics.", err)
	} else {
		meterProvider = mp
		otel.SetMeterProvider(mp)
		cleanup = append(cleanup, shutdown("meter provider", mp.Shutdown))
	}

	return func() {
		for _, fn := range cleanup {
			fn()
		}
	}, nil
}

func initResource(serviceName, serviceVersion string) *sdkresource.Resource {
	extraResources, err := sdkresource.New(
		context.Background(),
		sdkresource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
		sdkresource.WithOS(),
		sdkresource.WithProcess(),
		sdkresource.WithHost(),
	)
	if err != nil {
		log.Printf("Failed to create resource: %v", err)
		return sdkresource.Default()
	}

	resource, err := sdkresource.Merge(sdkresource.Default(), extraResources)
	if err != nil {
		log.Printf("Failed to merge resources: %v", err)
		return sdkresource.Default()
	}
	return resource
}

func initTracerProvider(cfg Config, resource *sdkresource.Resource) (*sdktrace.TracerProvider, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(1))),
	), nil
}

func initMeterProvider(cfg Config, resource *sdkresource.Resource) (*sdkmetric.MeterProvider, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.MetricInterval))),
		sdkmetric.WithResource(resource),
	), nil
}

// GetOrderEntryTracer returns the tracer for the HTTP order entry surface
func GetOrderEntryTracer() trace.Tracer {
	mu.RLock()
	defer mu.RUnlock()
	if orderEntryTracer == nil {
		return otel.GetTracerProvider().Tracer(ServiceOrderEntry)
	}
	return orderEntryTracer
}

// GetMatchingEngineTracer returns the tracer for the matching engine
func GetMatchingEngineTracer() trace.Tracer {
	mu.RLock()
	defer mu.RUnlock()
	if matchingEngineTracer == nil {
		return otel.GetTracerProvider().Tracer(ServiceMatchingEngine)
	}
	return matchingEngineTracer
}

// GetTracerProvider returns the appropriate tracer provider based on the service name
func GetTracerProvider(serviceName string) trace.TracerProvider {
	mu.RLock()
	defer mu.RUnlock()
	switch serviceName {
	case ServiceOrderEntry:
		if orderEntryProvider != nil {
			return orderEntryProvider
		}
	case ServiceMatchingEngine:
		if matchingEngineProvider != nil {
			return matchingEngineProvider
		}
	}
	return otel.GetTracerProvider()
}

// GetMeterProvider returns the configured meter provider, or the global one
func GetMeterProvider() metric.MeterProvider {
	mu.RLock()
	defer mu.RUnlock()
	if meterProvider == nil {
		return otel.GetMeterProvider()
	}
	return meterProvider
}

// InitForTesting installs tracer for both services
func InitForTesting(tracer trace.Tracer) {
	mu.Lock()
	defer mu.Unlock()
	orderEntryTracer = tracer
	matchingEngineTracer = tracer
}

// ResetForTesting resets the global variables for testing
func ResetForTesting() {
	mu.Lock()
	defer mu.Unlock()
	orderEntryTracer = nil
	matchingEngineTracer = nil
	orderEntryProvider = nil
	matchingEngineProvider = nil
	meterProvider = nil
}
