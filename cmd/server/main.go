package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erain9/bookd/config"
	"github.com/erain9/bookd/pkg/backend/file"
	"github.com/erain9/bookd/pkg/backend/memory"
	redisbackend "github.com/erain9/bookd/pkg/backend/redis"
	"github.com/erain9/bookd/pkg/engine"
	"github.com/erain9/bookd/pkg/logging"
	"github.com/erain9/bookd/pkg/messaging"
	"github.com/erain9/bookd/pkg/messaging/kafka"
	"github.com/erain9/bookd/pkg/messaging/queue"
	"github.com/erain9/bookd/pkg/otel"
	"github.com/erain9/bookd/pkg/server"
	"github.com/erain9/bookd/pkg/store"
	"github.com/rs/zerolog"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const serviceName = "bookd"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.Setup(logging.Config{
		Level:   cfg.Server.LogLevel,
		Pretty:  cfg.Server.LogFormat == "pretty",
		Output:  os.Stdout,
		Service: serviceName,
	})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cleanup, err := otel.Init(otel.Config{
		ServiceVersion:   "1.0.0",
		Endpoint:         cfg.Telemetry.Endpoint,
		CollectorEnabled: cfg.Telemetry.Enabled,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize OpenTelemetry")
	}
	defer cleanup()
	if cfg.Telemetry.Enabled && cfg.Telemetry.RuntimeMetrics {
		if err := otel.StartRuntimeMetrics(0); err != nil {
			logger.Warn().Err(err).Msg("Failed to start runtime metrics")
		}
	}

	strategy, err := cfg.Strategy()
	if err != nil {
		logger.Warn().Err(err).Msg("Unrecognized matching strategy")
	}

	st, closeStore, err := newStore(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to set up store")
	}
	defer closeStore()

	opts := []engine.Option{}
	publisher, err := newPublisher(cfg)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to create fills publisher - continuing without Kafka support")
	} else if publisher != nil {
		defer publisher.Close()
		opts = append(opts, engine.WithPublisher(publisher))
	}

	// The consumer is for developer purpose which helps print the fills
	// published to the topic.
	if cfg.Kafka.Enabled && cfg.Kafka.Consume {
		closeConsumer := startConsumer(ctx, cfg, logger)
		defer closeConsumer()
	}

	eng := engine.New(st, strategy, opts...)
	logger.Info().
		Str("store", st.Name()).
		Str("strategy", strategy.String()).
		Bool("publisher", publisher != nil).
		Msg("Engine ready")

	var grpcServer *grpc.Server
	if cfg.Server.GRPCAddr != "" {
		grpcServer, err = setupGRPCServer(logger, cfg.Server.GRPCAddr)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to setup gRPC server")
		}
	}

	httpServer := setupHTTPServer(logger, cfg, eng)

	<-ctx.Done()
	logger.Info().Msg("Received signal, shutting down")

	if grpcServer != nil {
		grpcServer.GracefulStop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	logger.Info().Msg("Servers shutdown complete")
}

// newStore builds the configured backend. The returned function releases
// its resources.
func newStore(cfg *config.Config, logger zerolog.Logger) (store.Store, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendFile:
		return file.NewFileBackend(cfg.Store.Path, file.WithLogger(logger)), func() {}, nil
	case config.BackendMemory:
		return memory.NewMemoryBackend(), func() {}, nil
	case config.BackendRedis:
		zl, err := zap.NewProduction()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create redis logger: %w", err)
		}
		redisbackend.SetDefaultRedisOptions(&redisbackend.RedisOptions{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		client := redisbackend.GetRedisClient()

		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Store.Redis.Addr, err)
		}

		b := redisbackend.NewRedisBackend(client, cfg.Store.Redis.Key, zl)
		return b, func() {
			_ = b.Close()
			_ = zl.Sync()
		}, nil
	}
	return nil, nil, fmt.Errorf("unsupported store backend %q", cfg.Store.Backend)
}

// newPublisher returns nil when Kafka is disabled
func newPublisher(cfg *config.Config) (messaging.MessageSender, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	switch cfg.Kafka.Driver {
	case config.DriverSarama:
		return queue.NewQueueMessageSender([]string{cfg.Kafka.BrokerAddr}, cfg.Kafka.Topic)
	default:
		return kafka.NewKafkaMessageSender(cfg.Kafka.BrokerAddr, cfg.Kafka.Topic)
	}
}

func startConsumer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) func() {
	if cfg.Kafka.Driver == config.DriverSarama {
		consumer, err := queue.NewQueueMessageConsumer([]string{cfg.Kafka.BrokerAddr}, cfg.Kafka.Topic)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to create Kafka consumer - continuing without it")
			return func() {}
		}
		go func() {
			if err := consumer.ConsumeFillsMessages(kafka.LogFills(logger)); err != nil {
				logger.Error().Err(err).Msg("Kafka consumer error")
			}
		}()
		return func() { _ = consumer.Close() }
	}

	consumer, err := kafka.SetupConsumer(ctx, cfg.Kafka.BrokerAddr, cfg.Kafka.Topic, logger)
	if err != nil {
		return func() {}
	}
	return func() { _ = consumer.Close() }
}

// newGRPCServer creates the admin gRPC server with health and reflection
func newGRPCServer() (*grpc.Server, *health.Server) {
	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otel.NewGRPCStatsHandler()),
		grpc.ChainUnaryInterceptor(logging.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(logging.StreamServerInterceptor()),
	)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	// Enable reflection for tools like grpcurl
	reflection.Register(grpcServer)
	return grpcServer, healthServer
}

// setupGRPCServer starts the admin gRPC server
func setupGRPCServer(logger zerolog.Logger, addr string) (*grpc.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}

	grpcServer, _ := newGRPCServer()
	go func() {
		logger.Info().Str("addr", addr).Msg("Starting gRPC server")
		if err := grpcServer.Serve(lis); err != nil {
			logger.Fatal().Err(err).Msg("Failed to serve gRPC")
		}
	}()
	return grpcServer, nil
}

func serverOptions(cfg *config.Config) []server.Option {
	return []server.Option{
		server.WithStaticDir(cfg.Server.StaticDir),
		server.WithMaxUploadBytes(cfg.Server.MaxUploadBytes),
	}
}

func newHTTPHandler(cfg *config.Config, eng *engine.Engine) (http.Handler, error) {
	metrics, err := otel.GetHTTPServerMetrics(otel.GetMeterProvider().Meter(serviceName))
	if err != nil {
		return nil, err
	}
	opts := append(serverOptions(cfg), server.WithMetrics(metrics))
	return server.New(eng, opts...).Handler(), nil
}

// setupHTTPServer starts the HTTP server
func setupHTTPServer(logger zerolog.Logger, cfg *config.Config, eng *engine.Engine) *http.Server {
	handler, err := newHTTPHandler(cfg, eng)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to create HTTP metrics - serving without them")
		handler = server.New(eng, serverOptions(cfg)...).Handler()
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Server.HTTPAddr).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Failed to serve HTTP")
		}
	}()
	return httpServer
}
