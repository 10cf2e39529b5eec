package matching

import (
	"github.com/erain9/bookd/pkg/core"
	"github.com/nikolaydubina/fpdecimal"
)

// FIFOMatcher gives strict time priority within a price level: the oldest
// resting order on each side trades first.
type FIFOMatcher struct{}

// Match implements Matcher
func (m *FIFOMatcher) Match(book *core.LiveBook) []core.Fill {
	return uncrossBook(book, m.uncross)
}

func (m *FIFOMatcher) uncross(symbol string, price fpdecimal.Decimal, bids, asks core.PriceLevel) []core.Fill {
	fills := make([]core.Fill, 0)
	i, j := 0, 0
	for i < len(bids) && j < len(asks) {
		qty := min(bids[i].Quantity, asks[j].Quantity)
		fills = append(fills, newFill(symbol, price, qty, &bids[i], &asks[j]))

		bids[i].Quantity -= qty
		asks[j].Quantity -= qty
		if bids[i].Quantity == 0 {
			i++
		}
		if asks[j].Quantity == 0 {
			j++
		}
	}
	return fills
}
