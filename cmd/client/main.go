package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/erain9/bookd/pkg/server"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	serverAddr = flag.String("addr", "http://localhost:8000", "The server base URL")
	timeout    = flag.Duration("timeout", 10*time.Second, "Request timeout")
)

// apiClient talks to the order book HTTP API
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string, timeout time.Duration) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// apiError is returned for any non-2xx response
type apiError struct {
	Status int
	Code   string
	Msg    string
}

func (e *apiError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Msg)
	}
	return fmt.Sprintf("server returned %d (%s): %s", e.Status, e.Code, e.Msg)
}

func (c *apiClient) do(req *http.Request) (string, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode/100 != 2 {
		apiErr := &apiError{Status: resp.StatusCode, Msg: strings.TrimSpace(string(body))}
		var er server.ErrorResponse
		if json.Unmarshal(body, &er) == nil && er.Error != "" {
			apiErr.Code = er.Code
			apiErr.Msg = er.Error
		}
		return "", apiErr
	}
	return string(body), nil
}

func (c *apiClient) get(ctx context.Context, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return "", err
	}
	return c.do(req)
}

// orderForm holds the fields of POST /order_entry
type orderForm struct {
	Symbol  string
	Qty     string
	Price   string
	Side    string
	Kind    string
	ClOrdID string
	Pretty  bool
}

func (c *apiClient) placeOrder(ctx context.Context, o orderForm) (string, error) {
	form := url.Values{}
	form.Set("symbol", o.Symbol)
	form.Set("qty", o.Qty)
	form.Set("price", o.Price)
	form.Set("side", o.Side)
	form.Set("order_type", o.Kind)
	if o.ClOrdID != "" {
		form.Set("cl_ord_id", o.ClOrdID)
	}
	if o.Pretty {
		form.Set("format", "pretty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/order_entry", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *apiClient) book(ctx context.Context, format string) (string, error) {
	return c.get(ctx, "/order_book/"+url.PathEscape(format))
}

func (c *apiClient) reset(ctx context.Context) (string, error) {
	return c.get(ctx, "/reset")
}

func (c *apiClient) health(ctx context.Context) (*server.HealthResponse, error) {
	body, err := c.get(ctx, "/healthz")
	if err != nil {
		return nil, err
	}
	var h server.HealthResponse
	if err := json.Unmarshal([]byte(body), &h); err != nil {
		return nil, fmt.Errorf("failed to decode health response: %w", err)
	}
	return &h, nil
}

func (c *apiClient) upload(ctx context.Context, data []byte, format string) (string, error) {
	path := "/upload"
	if format != "" {
		path += "?format=" + url.QueryEscape(format)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "text/plain")
	return c.do(req)
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	flag.Usage = printUsage
	flag.Parse()
	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c := newAPIClient(*serverAddr, *timeout)
	if err := run(ctx, c, os.Stdout, flag.Args()); err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) {
			log.Error().Int("status", apiErr.Status).Str("code", apiErr.Code).Msg(apiErr.Msg)
		} else {
			log.Error().Err(err).Msg("Request failed")
		}
		os.Exit(1)
	}
}

// run executes one subcommand and writes its output to out
func run(ctx context.Context, c *apiClient, out io.Writer, args []string) error {
	command, rest := args[0], args[1:]

	switch command {
	case "order":
		fs := flag.NewFlagSet("order", flag.ContinueOnError)
		pretty := fs.Bool("pretty", false, "Render fills as a table")
		id := fs.String("id", "", "Client order id")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if fs.NArg() != 5 {
			return fmt.Errorf("usage: order [-pretty] [-id=ID] <symbol> <qty> <price> <Buy|Sell> <Limit|Market>")
		}
		a := fs.Args()
		body, err := c.placeOrder(ctx, orderForm{
			Symbol: a[0], Qty: a[1], Price: a[2], Side: a[3], Kind: a[4],
			ClOrdID: *id, Pretty: *pretty,
		})
		if err != nil {
			return err
		}
		fmt.Fprint(out, body)
		return nil

	case "book":
		format := "pretty"
		if len(rest) > 0 {
			format = rest[0]
		}
		body, err := c.book(ctx, format)
		if err != nil {
			return err
		}
		printBook(out, body)
		return nil

	case "reset":
		body, err := c.reset(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, color.YellowString(body))
		return nil

	case "upload":
		fs := flag.NewFlagSet("upload", flag.ContinueOnError)
		format := fs.String("format", "", "Response format: json or pretty")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return fmt.Errorf("usage: upload [-format=json|pretty] <file>")
		}
		data, err := os.ReadFile(fs.Arg(0))
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", fs.Arg(0), err)
		}
		body, err := c.upload(ctx, data, *format)
		if err != nil {
			return err
		}
		printBook(out, body)
		return nil

	case "health":
		h, err := c.health(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s store=%s strategy=%s\n", color.GreenString(h.Status), h.Store, h.Strategy)
		return nil
	}
	return fmt.Errorf("unknown command: %s", command)
}

// printBook colours the ask and bid rows of a pretty ladder
func printBook(out io.Writer, body string) {
	red := color.New(color.FgRed).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	for _, line := range strings.SplitAfter(body, "\n") {
		trimmed := strings.TrimRight(line, "\n")
		side := ""
		if fields := strings.Fields(trimmed); len(fields) == 5 {
			side = fields[1]
		}
		switch {
		case side == "Sell":
			fmt.Fprint(out, red(trimmed), line[len(trimmed):])
		case side == "Buy":
			fmt.Fprint(out, green(trimmed), line[len(trimmed):])
		case strings.HasPrefix(trimmed, "Fills"), strings.HasPrefix(trimmed, "Order book"):
			fmt.Fprint(out, cyan(trimmed), line[len(trimmed):])
		default:
			fmt.Fprint(out, line)
		}
	}
}

func printUsage() {
	fmt.Println("Usage: client [-addr=URL] [-timeout=D] <command> [args]")
	fmt.Println("  order [-pretty] [-id=ID] <symbol> <qty> <price> <Buy|Sell> <Limit|Market>")
	fmt.Println("  book [json|pretty]")
	fmt.Println("  reset")
	fmt.Println("  upload [-format=json|pretty] <file>")
	fmt.Println("  health")
	fmt.Println("\nExamples:")
	fmt.Println("  order X 100 10 Sell Limit")
	fmt.Println("  order -pretty X 50 0 Buy Market")
	fmt.Println("  book json")
	fmt.Println("  upload orders.txt")
}
