package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func captureLogs(t *testing.T, level string) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	Setup(Config{Level: level, Output: buf, Service: "bookd-test"})
	t.Cleanup(func() { Setup(Config{Level: "info", Output: &bytes.Buffer{}}) })
	return buf
}

func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &rec))
	return rec
}

func TestSetup(t *testing.T) {
	buf := captureLogs(t, "warn")
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	logger := FromContext(context.Background())
	logger.Info().Msg("dropped")
	assert.Empty(t, buf.String())

	logger.Warn().Msg("kept")
	rec := lastRecord(t, buf)
	assert.Equal(t, "kept", rec["message"])
	assert.Equal(t, "bookd-test", rec["service"])
}

func TestSetup_InvalidLevel(t *testing.T) {
	captureLogs(t, "loud")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestFromContext_RequestID(t *testing.T) {
	buf := captureLogs(t, "info")
	ctx := WithRequestID(context.Background(), "req-1")

	id, ok := RequestID(ctx)
	require.True(t, ok)
	assert.Equal(t, "req-1", id)

	logger := FromContext(ctx)
	logger.Info().Msg("hello")
	assert.Equal(t, "req-1", lastRecord(t, buf)["request_id"])

	_, ok = RequestID(context.Background())
	assert.False(t, ok)
}

func TestMiddleware(t *testing.T) {
	buf := captureLogs(t, "info")

	r := chi.NewRouter()
	r.Use(Middleware)
	var seen string
	r.Get("/order_book/{format}", func(w http.ResponseWriter, r *http.Request) {
		seen, _ = RequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/order_book/json", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	logged := lastRecord(t, buf)
	assert.Equal(t, "/order_book/{format}", logged["http.route"])
	assert.Equal(t, float64(http.StatusTeapot), logged["http.status"])
	assert.Equal(t, "warn", logged["level"])
}

func TestMiddleware_ReusesIncomingID(t *testing.T) {
	captureLogs(t, "info")
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get(RequestIDHeader))
}

func TestUnaryServerInterceptor(t *testing.T) {
	buf := captureLogs(t, "info")
	interceptor := UnaryServerInterceptor()
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-request-id", "grpc-1"))
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	var handlerID string
	_, err := interceptor(ctx, nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		handlerID, _ = RequestID(ctx)
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "grpc-1", handlerID)
	assert.Equal(t, "grpc-1", lastRecord(t, buf)["request_id"])

	_, err = interceptor(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.Unavailable, "down")
	})
	require.Error(t, err)
	rec := lastRecord(t, buf)
	assert.Equal(t, "error", rec["level"])
	assert.Equal(t, "Unavailable", rec["grpc.code"])

	_, err = interceptor(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, errors.New("plain")
	})
	require.Error(t, err)
	assert.Equal(t, "Unknown", lastRecord(t, buf)["grpc.code"])
}
