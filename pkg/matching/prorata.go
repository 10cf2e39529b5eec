package matching

import (
	"math/big"

	"github.com/erain9/bookd/pkg/core"
	"github.com/nikolaydubina/fpdecimal"
	"github.com/shopspring/decimal"
)

// ProRataMatcher shares the volume traded between two crossing levels
// across each level's orders in proportion to their size. Rounding is up,
// and whatever is left is handed out in arrival order.
type ProRataMatcher struct{}

// Match implements Matcher
func (m *ProRataMatcher) Match(book *core.LiveBook) []core.Fill {
	return uncrossBook(book, m.uncross)
}

func (m *ProRataMatcher) uncross(symbol string, price fpdecimal.Decimal, bids, asks core.PriceLevel) []core.Fill {
	volume := decimal.Min(levelQuantity(bids), levelQuantity(asks))
	bidAlloc := allocate(bids, volume)
	askAlloc := allocate(asks, volume)

	fills := make([]core.Fill, 0)
	i, j := 0, 0
	for i < len(bids) && j < len(asks) {
		if bidAlloc[i] == 0 {
			i++
			continue
		}
		if askAlloc[j] == 0 {
			j++
			continue
		}

		qty := min(bidAlloc[i], askAlloc[j])
		fills = append(fills, newFill(symbol, price, qty, &bids[i], &asks[j]))

		bidAlloc[i] -= qty
		askAlloc[j] -= qty
		bids[i].Quantity -= qty
		asks[j].Quantity -= qty
	}
	return fills
}

// allocate splits volume over level. Each order gets ceil(qty*volume/total),
// never more than its own quantity, and the allocations sum to volume. Level
// totals may exceed uint64, so the arithmetic is done in decimal.
func allocate(level core.PriceLevel, volume decimal.Decimal) []uint64 {
	alloc := make([]uint64, len(level))
	total := levelQuantity(level)
	if total.IsZero() || !volume.IsPositive() {
		return alloc
	}
	volume = decimal.Min(volume, total)
	remaining := volume

	for i, o := range level {
		if remaining.IsZero() {
			break
		}
		q := quantity(o.Quantity)
		share, rem := q.Mul(volume).QuoRem(total, 0)
		if rem.Sign() > 0 {
			share = share.Add(decimal.NewFromInt(1))
		}
		share = decimal.Min(share, q, remaining)
		alloc[i] = share.BigInt().Uint64()
		remaining = remaining.Sub(share)
	}

	for i := 0; remaining.IsPositive() && i < len(level); i++ {
		extra := decimal.Min(quantity(level[i].Quantity-alloc[i]), remaining)
		alloc[i] += extra.BigInt().Uint64()
		remaining = remaining.Sub(extra)
	}

	return alloc
}

func levelQuantity(level core.PriceLevel) decimal.Decimal {
	total := decimal.Zero
	for _, o := range level {
		total = total.Add(quantity(o.Quantity))
	}
	return total
}

func quantity(q uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(q), 0)
}
