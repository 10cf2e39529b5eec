package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/erain9/bookd/pkg/core"
	"github.com/erain9/bookd/pkg/engine"
	"github.com/erain9/bookd/pkg/logging"
	"github.com/erain9/bookd/pkg/otel"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
)

const (
	formatJSON   = "json"
	formatPretty = "pretty"

	contentTypeJSON = "application/json"
	contentTypeText = "text/plain; charset=utf-8"
)

// Banner is the body of GET /
const Banner = "Please fill the form"

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the body of GET /healthz
type HealthResponse struct {
	Status   string `json:"status"`
	Store    string `json:"store"`
	Strategy string `json:"strategy"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, Banner)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Store:    s.engine.StoreName(),
		Strategy: s.engine.Strategy().String(),
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not_found",
		fmt.Errorf("the requested path %s is not available", r.URL.Path))
}

// handleOrderEntry accepts one order as form fields and returns the fills it
// caused.
func (s *Server) handleOrderEntry(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.StartOrderSpan(r.Context(), otel.SpanOrderEntry)
	defer span.End()
	logger := logging.FromContext(ctx)

	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_form", err)
		return
	}

	order, err := core.ParseOrder(
		r.PostForm.Get("symbol"),
		r.PostForm.Get("qty"),
		r.PostForm.Get("price"),
		r.PostForm.Get("side"),
		r.PostForm.Get("order_type"),
		r.PostForm.Get("cl_ord_id"),
	)
	if err != nil {
		otel.RecordError(span, err)
		logger.Warn().Err(err).Msg("Rejected order entry")
		s.fail(w, err)
		return
	}
	otel.AddAttributes(span,
		attribute.String(otel.AttributeOrderID, order.ClOrdID),
		attribute.String(otel.AttributeOrderSymbol, order.Symbol),
	)

	res, err := s.engine.Submit(ctx, order)
	if err != nil {
		otel.RecordError(span, err)
		s.fail(w, err)
		return
	}
	logger.Info().
		Str("cl_ord_id", order.ClOrdID).
		Str("symbol", order.Symbol).
		Int("fills", len(res.Fills)).
		Msg("Order accepted")

	if strings.EqualFold(r.PostForm.Get("format"), formatPretty) {
		writeText(w, http.StatusOK, PrettyFills(res.Fills))
		return
	}
	writeJSON(w, http.StatusOK, res.Fills)
}

// handleOrderBook runs a cycle without a new order and returns any fills
// followed by the book.
func (s *Server) handleOrderBook(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(chi.URLParam(r, "format"))
	ctx, span := otel.StartOrderSpan(r.Context(), otel.SpanInspectBook, attribute.String("format", format))
	defer span.End()

	res, err := s.engine.Inspect(ctx)
	if err != nil {
		otel.RecordError(span, err)
		s.fail(w, err)
		return
	}
	s.writeResult(w, format, res)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	msg, err := s.engine.Reset(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeText(w, http.StatusOK, msg)
}

// handleUpload accepts one order per line, adds them all and matches once.
// Blank lines and lines starting with '#' are ignored.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.StartOrderSpan(r.Context(), otel.SpanOrderEntry, attribute.Bool("upload", true))
	defer span.End()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", err)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_body", err)
		return
	}

	orders, err := parseUpload(body)
	if err != nil {
		otel.RecordError(span, err)
		s.fail(w, err)
		return
	}

	res, err := s.engine.SubmitBatch(ctx, orders)
	if err != nil {
		otel.RecordError(span, err)
		s.fail(w, err)
		return
	}
	logger := logging.FromContext(ctx)
	logger.Info().Int("orders", len(orders)).Int("fills", len(res.Fills)).Msg("Upload processed")

	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = formatPretty
	}
	s.writeResult(w, format, res)
}

func parseUpload(body []byte) ([]*core.Order, error) {
	var orders []*core.Order
	scanner := bufio.NewScanner(bytes.NewReader(body))
	n := 0
	for scanner.Scan() {
		n++
		line := strings.TrimSpace(strings.TrimSuffix(scanner.Text(), "\r"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		o, err := core.ParseOrderLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		orders = append(orders, o)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidLine, err)
	}
	return orders, nil
}

// writeResult renders fills (when there are any) followed by the book
func (s *Server) writeResult(w http.ResponseWriter, format string, res *engine.Result) {
	if format != formatJSON {
		var b strings.Builder
		if len(res.Fills) > 0 {
			b.WriteString(PrettyFills(res.Fills))
		}
		b.WriteString(PrettyBook(res.Book))
		writeText(w, http.StatusOK, b.String())
		return
	}

	book, err := json.Marshal(res.Book)
	if err != nil {
		s.fail(w, err)
		return
	}
	if len(res.Fills) == 0 {
		w.Header().Set("Content-Type", contentTypeJSON)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(book)
		return
	}

	fills, err := json.Marshal(res.Fills)
	if err != nil {
		s.fail(w, err)
		return
	}
	var b bytes.Buffer
	b.WriteString("Fills\n")
	b.Write(fills)
	b.WriteString("\n")
	b.Write(book)
	writeText(w, http.StatusOK, b.String())
}

// statusFor maps an error to its HTTP status and a stable code. Malformed
// and corrupt state are both server faults but stay distinguishable by code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrMalformedKey):
		return http.StatusInternalServerError, "malformed_key"
	case errors.Is(err, core.ErrCorruptState):
		return http.StatusInternalServerError, "corrupt_state"
	case errors.Is(err, core.ErrIO):
		return http.StatusServiceUnavailable, "io_failure"
	case errors.Is(err, core.ErrInvalidQuantity),
		errors.Is(err, core.ErrInvalidPrice),
		errors.Is(err, core.ErrInvalidSymbol),
		errors.Is(err, core.ErrInvalidSide),
		errors.Is(err, core.ErrInvalidKind),
		errors.Is(err, core.ErrInvalidLine),
		errors.Is(err, engine.ErrNilOrder):
		return http.StatusBadRequest, "invalid_order"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	writeError(w, status, code, err)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", contentTypeText)
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
