package core

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/nikolaydubina/fpdecimal"
)

// PriceLevel is the FIFO queue of resting orders sharing one Identity and
// side. Index 0 is the oldest order.
type PriceLevel []Order

// Quantity returns the total resting quantity of the level, saturating at
// math.MaxUint64.
func (l PriceLevel) Quantity() uint64 {
	var total uint64
	for _, o := range l {
		if total > math.MaxUint64-o.Quantity {
			return math.MaxUint64
		}
		total += o.Quantity
	}
	return total
}

// Clone returns a copy that shares no backing array with l
func (l PriceLevel) Clone() PriceLevel {
	c := make(PriceLevel, len(l))
	copy(c, l)
	return c
}

// Compact drops fully filled orders, keeping arrival order
func (l PriceLevel) Compact() PriceLevel {
	out := l[:0]
	for _, o := range l {
		if o.Quantity > 0 {
			out = append(out, o)
		}
	}
	return out
}

// LiveBook is the mutable working representation of the order book used
// during one request.
type LiveBook struct {
	Buy  map[Identity]PriceLevel
	Sell map[Identity]PriceLevel
}

// NewLiveBook creates an empty LiveBook
func NewLiveBook() *LiveBook {
	return &LiveBook{
		Buy:  make(map[Identity]PriceLevel),
		Sell: make(map[Identity]PriceLevel),
	}
}

// Levels returns the level map of one side
func (b *LiveBook) Levels(side Side) map[Identity]PriceLevel {
	if side == Buy {
		return b.Buy
	}
	return b.Sell
}

// Add appends order at the tail of its level. New orders never jump ahead of
// resting orders at the same price.
func (b *LiveBook) Add(order Order) {
	levels := b.Levels(order.Side)
	id := order.Identity()
	levels[id] = append(levels[id], order)
}

// Symbols returns every symbol with resting orders on either side, sorted
func (b *LiveBook) Symbols() []string {
	seen := make(map[string]struct{})
	for id := range b.Buy {
		seen[id.Symbol] = struct{}{}
	}
	for id := range b.Sell {
		seen[id.Symbol] = struct{}{}
	}
	symbols := make([]string, 0, len(seen))
	for s := range seen {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

// OrderCount returns the number of resting orders on both sides
func (b *LiveBook) OrderCount() int {
	n := 0
	for _, l := range b.Buy {
		n += len(l)
	}
	for _, l := range b.Sell {
		n += len(l)
	}
	return n
}

// Snapshot is the serializable, string-keyed form of the order book
type Snapshot struct {
	Buy  map[string]PriceLevel `json:"buy_orders"`
	Sell map[string]PriceLevel `json:"sell_orders"`
}

// NewSnapshot creates an empty Snapshot
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Buy:  make(map[string]PriceLevel),
		Sell: make(map[string]PriceLevel),
	}
}

// IsEmpty reports whether neither side holds a level
func (s *Snapshot) IsEmpty() bool {
	return len(s.Buy) == 0 && len(s.Sell) == 0
}

// Keys returns the keys of one side, sorted
func (s *Snapshot) Keys(side Side) []string {
	levels := s.Sell
	if side == Buy {
		levels = s.Buy
	}
	keys := make([]string, 0, len(levels))
	for k := range levels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Fill records one match between a buy and a sell order
type Fill struct {
	Symbol      string
	Price       fpdecimal.Decimal
	Quantity    uint64
	BuyClOrdID  string
	SellClOrdID string
}

// MarshalJSON implements Marshaler interface
func (f Fill) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Symbol      string `json:"symbol"`
		Price       string `json:"price"`
		Quantity    uint64 `json:"qty"`
		BuyClOrdID  string `json:"buy_cl_ord_id"`
		SellClOrdID string `json:"sell_cl_ord_id"`
	}{
		Symbol:      f.Symbol,
		Price:       f.Price.String(),
		Quantity:    f.Quantity,
		BuyClOrdID:  f.BuyClOrdID,
		SellClOrdID: f.SellClOrdID,
	})
}
