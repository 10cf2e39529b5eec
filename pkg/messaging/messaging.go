package messaging

import (
	"context"
	"time"

	"github.com/erain9/bookd/pkg/core"
)

// MessageSender defines an interface for sending messages
// This helps decouple the engine from specific implementations
// like Kafka in the queue package
type MessageSender interface {
	SendFillsMessage(ctx context.Context, msg *FillsMessage) error
	Close() error
}

// FillsMessage carries every fill produced by one matching cycle
type FillsMessage struct {
	CycleID   string    `json:"cycle_id"`
	Strategy  string    `json:"strategy"`
	Timestamp time.Time `json:"timestamp"`
	Fills     []Fill    `json:"fills"`
}

// Fill represents a single trade execution
type Fill struct {
	Symbol      string `json:"symbol"`
	Price       string `json:"price"`
	Quantity    uint64 `json:"qty"`
	BuyClOrdID  string `json:"buy_cl_ord_id"`
	SellClOrdID string `json:"sell_cl_ord_id"`
}

// NewFillsMessage converts matching fills into their wire form
func NewFillsMessage(cycleID, strategy string, fills []core.Fill) *FillsMessage {
	msg := &FillsMessage{
		CycleID:   cycleID,
		Strategy:  strategy,
		Timestamp: time.Now().UTC(),
		Fills:     make([]Fill, 0, len(fills)),
	}
	for _, f := range fills {
		msg.Fills = append(msg.Fills, Fill{
			Symbol:      f.Symbol,
			Price:       f.Price.String(),
			Quantity:    f.Quantity,
			BuyClOrdID:  f.BuyClOrdID,
			SellClOrdID: f.SellClOrdID,
		})
	}
	return msg
}

// Key is the partitioning key used by the Kafka senders
func (m *FillsMessage) Key() string {
	if len(m.Fills) > 0 {
		return m.Fills[0].Symbol
	}
	return m.CycleID
}

// TotalQuantity sums the quantity of all fills
func (m *FillsMessage) TotalQuantity() uint64 {
	var total uint64
	for _, f := range m.Fills {
		total += f.Quantity
	}
	return total
}
