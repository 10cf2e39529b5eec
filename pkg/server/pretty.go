package server

import (
	"bytes"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/erain9/bookd/pkg/core"
	"github.com/nikolaydubina/fpdecimal"
)

// PrettyFills renders fills as an aligned table
func PrettyFills(fills []core.Fill) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Fills (%d)\n", len(fills))
	if len(fills) == 0 {
		return buf.String()
	}

	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "SYMBOL\tPRICE\tQTY\tBUY\tSELL\t")
	for _, f := range fills {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t\n", f.Symbol, f.Price.String(), f.Quantity, f.BuyClOrdID, f.SellClOrdID)
	}
	_ = tw.Flush()
	return buf.String()
}

type ladderRow struct {
	side  core.Side
	id    core.Identity
	level core.PriceLevel
}

// PrettyBook renders the book per symbol as a price ladder, asks above
// bids, best prices nearest the spread.
func PrettyBook(snap *core.Snapshot) string {
	var buf bytes.Buffer
	book, err := core.FromSnapshot(snap)
	if err != nil {
		fmt.Fprintf(&buf, "Order book unavailable: %v\n", err)
		return buf.String()
	}

	symbols := book.Symbols()
	fmt.Fprintf(&buf, "Order book (%d symbols, %d orders)\n", len(symbols), book.OrderCount())
	if len(symbols) == 0 {
		return buf.String()
	}

	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "SYMBOL\tSIDE\tPRICE\tQTY\tORDERS\t")
	for _, symbol := range symbols {
		// asks: worst first so the best ask sits just above the best bid
		for _, r := range ladder(book, core.Sell, symbol, true) {
			writeRow(tw, r)
		}
		for _, r := range ladder(book, core.Buy, symbol, false) {
			writeRow(tw, r)
		}
	}
	_ = tw.Flush()
	return buf.String()
}

func ladder(book *core.LiveBook, side core.Side, symbol string, reverse bool) []ladderRow {
	var rows []ladderRow
	for id, level := range book.Levels(side) {
		if id.Symbol == symbol && len(level) > 0 {
			rows = append(rows, ladderRow{side: side, id: id, level: level})
		}
	}
	// best first: market, then highest bid / lowest ask
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i].id.Price, rows[j].id.Price
		if a.Equal(b) {
			return false
		}
		if isMarketPrice(rows[i].id) != isMarketPrice(rows[j].id) {
			return isMarketPrice(rows[i].id)
		}
		if side == core.Buy {
			return a.GreaterThan(b)
		}
		return a.LessThan(b)
	})
	if reverse {
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
	}
	return rows
}

func isMarketPrice(id core.Identity) bool {
	return id.Price.Equal(fpdecimal.Zero)
}

func writeRow(tw *tabwriter.Writer, r ladderRow) {
	price := r.id.Price.String()
	if isMarketPrice(r.id) {
		price = "MKT"
	}
	fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t\n", r.id.Symbol, r.side, price, r.level.Quantity(), len(r.level))
}
