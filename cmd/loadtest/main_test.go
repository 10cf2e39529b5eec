package main

import (
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erain9/bookd/pkg/backend/memory"
	"github.com/erain9/bookd/pkg/engine"
	"github.com/erain9/bookd/pkg/matching"
	"github.com/erain9/bookd/pkg/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRandomOrder(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	form := generateRandomOrder(r, "X", 7)

	assert.Equal(t, "X", form.Get("symbol"))
	assert.Equal(t, "order-7", form.Get("cl_ord_id"))
	assert.Contains(t, []string{"Buy", "Sell"}, form.Get("side"))
}

func TestRunLoad(t *testing.T) {
	backend := memory.NewMemoryBackend()
	ts := httptest.NewServer(server.New(engine.New(backend, matching.FIFO)).Handler())
	defer ts.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	require.NoError(t, resetBook(context.Background(), client, ts.URL))

	rep := runLoad(context.Background(), client, loadConfig{
		BaseURL:         ts.URL,
		Workers:         4,
		OrdersPerWorker: 5,
		Rate:            1000,
		Symbol:          "X",
	})

	assert.Equal(t, 20, rep.Attempted)
	assert.Empty(t, rep.Errors)
	assert.Equal(t, int64(20), rep.Latency.TotalCount())
	assert.True(t, backend.Exists())
}

func TestRunLoad_Rejections(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	rep := runLoad(context.Background(), ts.Client(), loadConfig{
		BaseURL:         ts.URL,
		Workers:         2,
		OrdersPerWorker: 2,
		Rate:            100,
		Symbol:          "X",
	})
	assert.Len(t, rep.Errors, 4)
	assert.Zero(t, rep.Latency.TotalCount())
	assert.Error(t, resetBook(context.Background(), ts.Client(), ts.URL))
}
