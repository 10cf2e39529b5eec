package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"golang.org/x/time/rate"
)

const (
	defaultWorkers    = 50
	ordersPerWorker   = 100
	maxConcurrentReqs = 100
)

// loadConfig describes one run
type loadConfig struct {
	BaseURL         string
	Workers         int
	OrdersPerWorker int
	Rate            int
	Symbol          string
}

// report summarizes a run. Latencies are in microseconds.
type report struct {
	Attempted int
	Errors    []error
	Duration  time.Duration
	Latency   *hdrhistogram.Histogram
}

func main() {
	addr := flag.String("addr", "http://localhost:8000", "HTTP server base URL")
	workers := flag.Int("workers", defaultWorkers, "Number of concurrent workers")
	orders := flag.Int("orders", ordersPerWorker, "Orders per worker")
	rps := flag.Int("rate", maxConcurrentReqs, "Maximum requests per second")
	symbol := flag.String("symbol", "LOADTEST", "Symbol to trade")
	reset := flag.Bool("reset", true, "Reset the order book before and after the run")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg := loadConfig{
		BaseURL:         strings.TrimRight(*addr, "/"),
		Workers:         *workers,
		OrdersPerWorker: *orders,
		Rate:            *rps,
		Symbol:          *symbol,
	}
	client := &http.Client{Timeout: 10 * time.Second}

	if *reset {
		if err := resetBook(ctx, client, cfg.BaseURL); err != nil {
			log.Fatalf("Failed to reset order book: %v", err)
		}
	}

	log.Printf("Starting %d workers, %d orders per worker...", cfg.Workers, cfg.OrdersPerWorker)
	rep := runLoad(ctx, client, cfg)

	log.Printf("Load test completed in %v", rep.Duration)
	log.Printf("Total orders attempted: %d", rep.Attempted)
	log.Printf("Errors encountered: %d", len(rep.Errors))
	log.Printf("Latency us: p50=%d p90=%d p99=%d max=%d mean=%.1f",
		rep.Latency.ValueAtQuantile(50),
		rep.Latency.ValueAtQuantile(90),
		rep.Latency.ValueAtQuantile(99),
		rep.Latency.Max(),
		rep.Latency.Mean())
	if rep.Duration > 0 {
		log.Printf("Throughput: %.1f orders/s", float64(rep.Latency.TotalCount())/rep.Duration.Seconds())
	}

	if *reset {
		if err := resetBook(context.Background(), client, cfg.BaseURL); err != nil {
			log.Printf("Failed to reset order book: %v", err)
		}
	}

	if len(rep.Errors) > 0 {
		log.Printf("First error: %v", rep.Errors[0])
		os.Exit(1)
	}
}

// runLoad posts orders from cfg.Workers goroutines, sharing one rate limiter
func runLoad(ctx context.Context, client *http.Client, cfg loadConfig) *report {
	limiter := rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Rate)
	hist := hdrhistogram.New(1, int64(time.Minute/time.Microsecond), 3)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	record := func(d time.Duration, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			errs = append(errs, err)
			return
		}
		_ = hist.RecordValue(d.Microseconds())
	}

	start := time.Now()
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
			for j := 0; j < cfg.OrdersPerWorker; j++ {
				if err := limiter.Wait(ctx); err != nil {
					record(0, fmt.Errorf("rate limiter error: %w", err))
					return
				}
				form := generateRandomOrder(r, cfg.Symbol, workerID*cfg.OrdersPerWorker+j)
				began := time.Now()
				err := postOrder(ctx, client, cfg.BaseURL, form)
				record(time.Since(began), err)
			}
		}(i)
	}
	wg.Wait()

	return &report{
		Attempted: cfg.Workers * cfg.OrdersPerWorker,
		Errors:    errs,
		Duration:  time.Since(start),
		Latency:   hist,
	}
}

func postOrder(ctx context.Context, client *http.Client, baseURL string, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/order_entry", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("order %s rejected with %d: %s", form.Get("cl_ord_id"), resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func resetBook(ctx context.Context, client *http.Client, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/reset", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reset returned %d", resp.StatusCode)
	}
	return nil
}

func generateRandomOrder(r *rand.Rand, symbol string, orderNum int) url.Values {
	side := "Buy"
	if r.Float64() < 0.5 {
		side = "Sell"
	}

	// Use fixed price and quantity for higher matching probability
	const (
		fixedPrice    = "100"
		fixedQuantity = "10"
	)

	form := url.Values{}
	form.Set("symbol", symbol)
	form.Set("qty", fixedQuantity)
	form.Set("price", fixedPrice)
	form.Set("side", side)
	form.Set("order_type", "Limit")
	form.Set("cl_ord_id", fmt.Sprintf("order-%d", orderNum))
	return form
}
