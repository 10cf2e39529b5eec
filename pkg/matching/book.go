package matching

import (
	"github.com/erain9/bookd/pkg/core"
	"github.com/nikolaydubina/fpdecimal"
)

// uncrossFunc trades one crossing pair of levels at price. It must reduce
// the quantity of every order it fills and exhaust at least one level.
type uncrossFunc func(symbol string, price fpdecimal.Decimal, bids, asks core.PriceLevel) []core.Fill

// uncrossBook walks every symbol of the book and trades the best bid against
// the best ask for as long as they cross.
func uncrossBook(book *core.LiveBook, uncross uncrossFunc) []core.Fill {
	fills := make([]core.Fill, 0)

	for _, symbol := range book.Symbols() {
		prune(book.Buy, symbol)
		prune(book.Sell, symbol)

		for {
			bid, ok := bestLevel(book.Buy, symbol, core.Buy)
			if !ok {
				break
			}
			ask, ok := bestLevel(book.Sell, symbol, core.Sell)
			if !ok {
				break
			}
			price, ok := crossPrice(bid, ask)
			if !ok {
				break
			}

			traded := uncross(symbol, price, book.Buy[bid], book.Sell[ask])
			fills = append(fills, traded...)
			settle(book.Buy, bid)
			settle(book.Sell, ask)
			if len(traded) == 0 {
				// nothing moved, another pass would see the same book
				break
			}
		}
	}

	return fills
}

// isMarket reports whether a level holds market orders. Limit orders never
// rest at price zero.
func isMarket(price fpdecimal.Decimal) bool {
	return price.Equal(fpdecimal.Zero)
}

// better returns true if price a has priority over price b on side
func better(side core.Side, a, b fpdecimal.Decimal) bool {
	if isMarket(a) != isMarket(b) {
		return isMarket(a)
	}
	if side == core.Buy {
		return a.GreaterThan(b)
	}
	return a.LessThan(b)
}

func bestLevel(levels map[core.Identity]core.PriceLevel, symbol string, side core.Side) (core.Identity, bool) {
	var best core.Identity
	found := false
	for id := range levels {
		if id.Symbol != symbol {
			continue
		}
		if !found || better(side, id.Price, best.Price) {
			best = id
			found = true
		}
	}
	return best, found
}

// crossPrice returns the execution price when bid and ask cross. Trades
// happen at the ask when it is a limit, otherwise at the bid. Two market
// levels never trade with each other.
func crossPrice(bid, ask core.Identity) (fpdecimal.Decimal, bool) {
	switch {
	case !isMarket(ask.Price) && (isMarket(bid.Price) || !bid.Price.LessThan(ask.Price)):
		return ask.Price, true
	case isMarket(ask.Price) && !isMarket(bid.Price):
		return bid.Price, true
	}
	return fpdecimal.Zero, false
}

func prune(levels map[core.Identity]core.PriceLevel, symbol string) {
	for id := range levels {
		if id.Symbol == symbol {
			settle(levels, id)
		}
	}
}

// settle removes filled orders from a level and drops the level once empty
func settle(levels map[core.Identity]core.PriceLevel, id core.Identity) {
	level := levels[id].Compact()
	if len(level) == 0 {
		delete(levels, id)
		return
	}
	levels[id] = level
}

func newFill(symbol string, price fpdecimal.Decimal, qty uint64, buy, sell *core.Order) core.Fill {
	return core.Fill{
		Symbol:      symbol,
		Price:       price,
		Quantity:    qty,
		BuyClOrdID:  buy.ClOrdID,
		SellClOrdID: sell.ClOrdID,
	}
}
