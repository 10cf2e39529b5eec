package logging

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UnaryServerInterceptor returns a gRPC interceptor for request logging on
// the admin server.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		logger := log.With().Str("grpc.method", info.FullMethod).Logger()
		ctx, logger = withIncomingRequestID(ctx, logger)

		logger.Debug().Msg("Request received")
		resp, err := handler(ctx, req)
		logCompletion(logger, err, time.Since(start), "Request completed")
		return resp, err
	}
}

// StreamServerInterceptor returns a gRPC interceptor for streaming request
// logging, e.g. health Watch calls.
func StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		stream grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		start := time.Now()
		logger := log.With().
			Str("grpc.method", info.FullMethod).
			Bool("grpc.stream", true).
			Logger()

		ctx, logger := withIncomingRequestID(stream.Context(), logger)
		wrapped := &wrappedServerStream{ServerStream: stream, ctx: ctx}

		logger.Debug().Msg("Stream started")
		err := handler(srv, wrapped)
		logCompletion(logger, err, time.Since(start), "Stream completed")
		return err
	}
}

func withIncomingRequestID(ctx context.Context, logger zerolog.Logger) (context.Context, zerolog.Logger) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx, logger
	}
	if ids := md.Get("x-request-id"); len(ids) > 0 {
		logger = logger.With().Str("request_id", ids[0]).Logger()
		ctx = WithRequestID(ctx, ids[0])
	}
	return ctx, logger
}

func logCompletion(logger zerolog.Logger, err error, d time.Duration, msg string) {
	code := codes.OK
	if err != nil {
		code = codes.Unknown
		if st, ok := status.FromError(err); ok {
			code = st.Code()
		}
	}

	event := logger.Info()
	if code != codes.OK {
		event = logger.Error().Err(err).Str("grpc.code", code.String())
	}
	event.Dur("duration", d).Int("grpc.status", int(code)).Msg(msg)
}

// wrappedServerStream wraps a grpc.ServerStream with a modified context
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the wrapper's modified context
func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
