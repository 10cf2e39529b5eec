package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/nikolaydubina/fpdecimal"
	"github.com/shopspring/decimal"
)

// Side represents buy or sell side of the order
type Side int

// Order sides
const (
	Sell Side = iota
	Buy
)

// String returns side as string
func (s Side) String() string {
	switch s {
	case Buy:
		return "Buy"
	case Sell:
		return "Sell"
	default:
		return "Unknown"
	}
}

// Opposite returns the other side of the book
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// ParseSide accepts "Buy" or "Sell" in any case
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "b":
		return Buy, nil
	case "sell", "s":
		return Sell, nil
	}
	return Sell, fmt.Errorf("%w: %q", ErrInvalidSide, s)
}

// MarshalText implements encoding.TextMarshaler
func (s Side) MarshalText() ([]byte, error) {
	if s != Buy && s != Sell {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSide, int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *Side) UnmarshalText(b []byte) error {
	side, err := ParseSide(string(b))
	if err != nil {
		return err
	}
	*s = side
	return nil
}

// OrderKind represents type of the order
type OrderKind string

// Order kinds
const (
	KindLimit  OrderKind = "Limit"
	KindMarket OrderKind = "Market"
)

// ParseOrderKind accepts "Limit" or "Market" in any case. Empty means Limit.
func ParseOrderKind(s string) (OrderKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "limit", "l":
		return KindLimit, nil
	case "market", "m":
		return KindMarket, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// Order is a resting order. Once enqueued only Quantity changes, and only
// while a matcher owns the book.
type Order struct {
	Quantity uint64
	Symbol   string
	Price    fpdecimal.Decimal
	Side     Side
	Kind     OrderKind
	ClOrdID  string
}

type orderJSON struct {
	Quantity uint64    `json:"qty"`
	Symbol   string    `json:"symbol"`
	Price    string    `json:"price"`
	Side     Side      `json:"side"`
	Kind     OrderKind `json:"order_type"`
	ClOrdID  string    `json:"cl_ord_id"`
}

// MarshalJSON implements custom JSON marshaling for Order
func (o Order) MarshalJSON() ([]byte, error) {
	return json.Marshal(orderJSON{
		Quantity: o.Quantity,
		Symbol:   o.Symbol,
		Price:    o.Price.String(),
		Side:     o.Side,
		Kind:     o.Kind,
		ClOrdID:  o.ClOrdID,
	})
}

// UnmarshalJSON implements custom JSON unmarshaling for Order. Unlike
// marshaling it is strict: a stored order with an unreadable or inexact
// price, or without a side, is an error.
func (o *Order) UnmarshalJSON(data []byte) error {
	var oj struct {
		orderJSON
		Side *Side `json:"side"`
	}
	if err := json.Unmarshal(data, &oj); err != nil {
		return err
	}
	if oj.Side == nil {
		return fmt.Errorf("%w: missing", ErrInvalidSide)
	}

	price, err := ParsePrice(oj.Price)
	if err != nil {
		return err
	}
	kind, err := ParseOrderKind(string(oj.Kind))
	if err != nil {
		return err
	}

	*o = Order{
		Quantity: oj.Quantity,
		Symbol:   oj.Symbol,
		Price:    price,
		Side:     *oj.Side,
		Kind:     kind,
		ClOrdID:  oj.ClOrdID,
	}
	return nil
}

// NewOrder creates a validated Order. Market orders rest at price zero
// whatever price is supplied. An empty clOrdID is replaced by a random one.
func NewOrder(symbol string, quantity uint64, price fpdecimal.Decimal, side Side, kind OrderKind, clOrdID string) (*Order, error) {
	if kind == KindMarket {
		price = fpdecimal.Zero
	}
	if clOrdID == "" {
		clOrdID = uuid.NewString()
	}

	o := &Order{
		Quantity: quantity,
		Symbol:   symbol,
		Price:    price,
		Side:     side,
		Kind:     kind,
		ClOrdID:  clOrdID,
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// ParsePrice parses s as a fixed point price. Input that fpdecimal would
// truncate or overflow is rejected, so the stored price is always exactly
// the one supplied.
func ParsePrice(s string) (fpdecimal.Decimal, error) {
	s = strings.TrimSpace(s)
	p, err := fpdecimal.FromString(s)
	if err != nil {
		return fpdecimal.Zero, fmt.Errorf("%w: %q", ErrInvalidPrice, s)
	}
	exact, err := decimal.NewFromString(s)
	if err != nil {
		return fpdecimal.Zero, fmt.Errorf("%w: %q", ErrInvalidPrice, s)
	}
	parsed, err := decimal.NewFromString(p.String())
	if err != nil || !parsed.Equal(exact) {
		return fpdecimal.Zero, fmt.Errorf("%w: %q is out of range or too precise", ErrInvalidPrice, s)
	}
	return p, nil
}

// ParseOrder builds an Order from the raw text fields of an order entry form.
func ParseOrder(symbol, qty, price, side, kind, clOrdID string) (*Order, error) {
	q, err := strconv.ParseUint(strings.TrimSpace(qty), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidQuantity, qty)
	}
	k, err := ParseOrderKind(kind)
	if err != nil {
		return nil, err
	}
	p := fpdecimal.Zero
	if k == KindLimit || strings.TrimSpace(price) != "" {
		p, err = ParsePrice(price)
		if err != nil {
			return nil, err
		}
	}
	s, err := ParseSide(side)
	if err != nil {
		return nil, err
	}
	return NewOrder(strings.TrimSpace(symbol), q, p, s, k, strings.TrimSpace(clOrdID))
}

// ParseOrderLine parses one upload line of the form
// "<side> <symbol> <qty> <price> [kind] [clOrdID]".
func ParseOrderLine(line string) (*Order, error) {
	fields := strings.Fields(line)
	if len(fields) < 4 || len(fields) > 6 {
		return nil, fmt.Errorf("%w: expected 4 to 6 fields, got %d in %q", ErrInvalidLine, len(fields), line)
	}
	kind, clOrdID := "", ""
	if len(fields) > 4 {
		kind = fields[4]
	}
	if len(fields) > 5 {
		clOrdID = fields[5]
	}
	return ParseOrder(fields[1], fields[2], fields[3], fields[0], kind, clOrdID)
}

// Validate checks the invariants order entry must enforce before an order
// reaches the book.
func (o *Order) Validate() error {
	if err := ValidateSymbol(o.Symbol); err != nil {
		return err
	}
	if o.Quantity == 0 {
		return ErrInvalidQuantity
	}
	if o.Side != Buy && o.Side != Sell {
		return ErrInvalidSide
	}
	switch o.Kind {
	case KindLimit:
		if o.Price.LessThanOrEqual(fpdecimal.Zero) {
			return ErrInvalidPrice
		}
	case KindMarket:
		if !o.Price.Equal(fpdecimal.Zero) {
			return ErrInvalidPrice
		}
	default:
		return ErrInvalidKind
	}
	return nil
}

// Identity returns the price level this order rests on
func (o *Order) Identity() Identity {
	return Identity{Symbol: o.Symbol, Price: o.Price}
}

// IsMarketOrder returns true if Order is Market
func (o *Order) IsMarketOrder() bool {
	return o.Kind == KindMarket
}

// String implements Stringer interface
func (o *Order) String() string {
	j, _ := o.MarshalJSON()
	return string(j)
}
