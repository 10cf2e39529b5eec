package engine

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/erain9/bookd/pkg/core"
	"github.com/erain9/bookd/pkg/logging"
	"github.com/erain9/bookd/pkg/matching"
	"github.com/erain9/bookd/pkg/messaging"
	"github.com/erain9/bookd/pkg/otel"
	"github.com/erain9/bookd/pkg/store"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// orderAttributes describes order on a span. Quantities are full uint64, so
// they are recorded as strings rather than wrapping in an int64.
func orderAttributes(order *core.Order) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(otel.AttributeOrderID, order.ClOrdID),
		attribute.String(otel.AttributeOrderSymbol, order.Symbol),
		attribute.String(otel.AttributeOrderSide, order.Side.String()),
		attribute.String(otel.AttributeOrderType, string(order.Kind)),
		attribute.String(otel.AttributeOrderQuantity, strconv.FormatUint(order.Quantity, 10)),
		attribute.String(otel.AttributeOrderPrice, order.Price.String()),
	}
}

// ErrNilOrder is returned when Submit is called without an order
var ErrNilOrder = errors.New("order is required")

// Result is the outcome of one cycle: the book as persisted and the fills
// that produced it.
type Result struct {
	Book  *core.Snapshot
	Fills []core.Fill
}

// Engine serializes load, match and persist cycles against a single store.
// At most one cycle runs at a time, so concurrent submissions never lose an
// order to a read-modify-write race.
type Engine struct {
	mu        sync.Mutex
	store     store.Store
	strategy  matching.Strategy
	matcher   matching.Matcher
	publisher messaging.MessageSender
	metrics   *otel.BookMetrics
}

// Option configures an Engine
type Option func(*Engine)

// WithPublisher publishes the fills of every committed cycle to sender
func WithPublisher(sender messaging.MessageSender) Option {
	return func(e *Engine) {
		e.publisher = sender
	}
}

// WithMetrics records cycle metrics on m instead of the global instruments
func WithMetrics(m *otel.BookMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New creates an engine over s using strategy for every cycle
func New(s store.Store, strategy matching.Strategy, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		strategy: strategy,
		matcher:  matching.Select(strategy),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = otel.GetBookMetrics()
	}
	return e
}

// Strategy returns the matching strategy in use
func (e *Engine) Strategy() matching.Strategy {
	return e.strategy
}

// StoreName returns the name of the backing store
func (e *Engine) StoreName() string {
	return e.store.Name()
}

// Submit appends order to the tail of its price level, matches and persists
// the result.
func (e *Engine) Submit(ctx context.Context, order *core.Order) (*Result, error) {
	if order == nil {
		return nil, ErrNilOrder
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}

	ctx, span := otel.StartOrderSpan(ctx, otel.SpanMatchCycle, orderAttributes(order)...)
	defer span.End()

	res, err := e.cycle(ctx, func(book *core.LiveBook) {
		book.Add(*order)
	})
	otel.RecordError(span, err)
	return res, err
}

// SubmitBatch appends all orders in sequence and runs a single match
func (e *Engine) SubmitBatch(ctx context.Context, orders []*core.Order) (*Result, error) {
	for _, o := range orders {
		if o == nil {
			return nil, ErrNilOrder
		}
		if err := o.Validate(); err != nil {
			return nil, err
		}
	}

	ctx, span := otel.StartOrderSpan(ctx, otel.SpanMatchCycle, attribute.Int("batch.size", len(orders)))
	defer span.End()

	res, err := e.cycle(ctx, func(book *core.LiveBook) {
		for _, o := range orders {
			book.Add(*o)
		}
	})
	otel.RecordError(span, err)
	return res, err
}

// Inspect runs a cycle without a new order. Any crossing state left in the
// store is matched and the post-match book is persisted.
func (e *Engine) Inspect(ctx context.Context) (*Result, error) {
	ctx, span := otel.StartOrderSpan(ctx, otel.SpanMatchCycle)
	defer span.End()

	res, err := e.cycle(ctx, nil)
	otel.RecordError(span, err)
	return res, err
}

// Reset deletes the stored book
func (e *Engine) Reset(ctx context.Context) (string, error) {
	ctx, span := otel.StartOrderSpan(ctx, otel.SpanResetBook, attribute.String(otel.AttributeStore, e.store.Name()))
	defer span.End()
	logger := logging.FromContext(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()

	msg, err := e.store.Reset(context.WithoutCancel(ctx))
	if err != nil {
		otel.RecordError(span, err)
		logger.Error().Err(err).Str("store", e.store.Name()).Msg("Failed to reset order book")
		return "", err
	}
	logger.Info().Str("store", e.store.Name()).Msg(msg)
	return msg, nil
}

func (e *Engine) cycle(ctx context.Context, mutate func(*core.LiveBook)) (*Result, error) {
	start := time.Now()
	logger := logging.FromContext(ctx).With().
		Str("store", e.store.Name()).
		Str("strategy", e.strategy.String()).
		Logger()

	e.mu.Lock()
	defer e.mu.Unlock()

	// a client going away must not abandon a half-finished cycle
	storeCtx := context.WithoutCancel(ctx)

	book, err := e.load(storeCtx)
	if err != nil {
		e.fail(ctx, start, err)
		logger.Error().Err(err).Msg("Failed to load order book")
		return nil, err
	}

	if mutate != nil {
		mutate(book)
	}

	_, matchSpan := otel.StartOrderSpan(ctx, otel.SpanMatch)
	fills := e.matcher.Match(book)
	otel.AddAttributes(matchSpan, attribute.Int(otel.AttributeFillCount, len(fills)))
	matchSpan.End()

	snap := core.ToSnapshot(book)

	persistCtx, persistSpan := otel.StartOrderSpan(storeCtx, otel.SpanPersistBook, attribute.String(otel.AttributeStore, e.store.Name()))
	err = e.store.Persist(persistCtx, snap)
	otel.RecordError(persistSpan, err)
	persistSpan.End()
	if err != nil {
		e.fail(ctx, start, err)
		logger.Error().Err(err).Int("fills", len(fills)).Msg("Failed to persist order book")
		return nil, err
	}

	resting := book.OrderCount()
	for _, f := range fills {
		e.metrics.RecordFill(ctx, f.Symbol, e.strategy.String(), f.Quantity)
	}
	e.metrics.RecordRestingOrders(ctx, resting)
	e.metrics.RecordCycle(ctx, time.Since(start), "ok")

	if len(fills) > 0 {
		logger.Info().Int("fills", len(fills)).Int("resting_orders", resting).Msg("Order book matched")
		e.publish(storeCtx, fills)
	} else {
		logger.Debug().Int("resting_orders", resting).Msg("Order book unchanged by matching")
	}

	return &Result{Book: snap, Fills: fills}, nil
}

func (e *Engine) load(ctx context.Context) (*core.LiveBook, error) {
	ctx, span := otel.StartOrderSpan(ctx, otel.SpanLoadBook, attribute.String(otel.AttributeStore, e.store.Name()))
	defer span.End()

	snap, err := e.store.LoadOrCreate(ctx)
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}
	book, err := core.FromSnapshot(snap)
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}
	otel.AddAttributes(span, attribute.Int(otel.AttributeRestingOrders, book.OrderCount()))
	return book, nil
}

// publish runs after the book is committed, so a failure is only logged
func (e *Engine) publish(ctx context.Context, fills []core.Fill) {
	if e.publisher == nil {
		return
	}
	ctx, span := otel.StartOrderSpan(ctx, otel.SpanPublishFills, attribute.Int(otel.AttributeFillCount, len(fills)))
	defer span.End()

	msg := messaging.NewFillsMessage(uuid.NewString(), e.strategy.String(), fills)
	if err := e.publisher.SendFillsMessage(ctx, msg); err != nil {
		otel.RecordError(span, err)
		logger := logging.FromContext(ctx)
		logger.Warn().Err(err).Str("cycle_id", msg.CycleID).Msg("Failed to publish fills")
	}
}

func (e *Engine) fail(ctx context.Context, start time.Time, err error) {
	e.metrics.RecordCycleError(ctx, ErrorKind(err))
	e.metrics.RecordCycle(ctx, time.Since(start), "error")
}

// ErrorKind classifies a cycle error for metrics and logs
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, core.ErrMalformedKey):
		return "malformed_key"
	case errors.Is(err, core.ErrCorruptState):
		return "corrupt_state"
	case errors.Is(err, core.ErrIO):
		return "io"
	default:
		return "other"
	}
}
