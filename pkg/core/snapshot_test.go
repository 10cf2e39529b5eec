package core

import (
	"math"
	"testing"

	"github.com/nikolaydubina/fpdecimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limit(t *testing.T, side Side, symbol string, qty uint64, price float64, id string) Order {
	t.Helper()
	o, err := NewOrder(symbol, qty, fpdecimal.FromFloat(price), side, KindLimit, id)
	require.NoError(t, err)
	return *o
}

func sampleBook(t *testing.T) *LiveBook {
	book := NewLiveBook()
	book.Add(limit(t, Buy, "X", 100, 10, "b1"))
	book.Add(limit(t, Buy, "X", 50, 10, "b2"))
	book.Add(limit(t, Buy, "X", 25, 10, "b3"))
	book.Add(limit(t, Buy, "Y", 10, 5, "b4"))
	book.Add(limit(t, Sell, "X", 70, 11.5, "s1"))
	book.Add(limit(t, Sell, "X", 30, 11.5, "s2"))
	return book
}

func TestLiveBook_AddAppendsAtTail(t *testing.T) {
	book := sampleBook(t)
	id := Identity{Symbol: "X", Price: fpdecimal.FromInt(10)}

	level := book.Buy[id]
	require.Len(t, level, 3)
	assert.Equal(t, "b1", level[0].ClOrdID)
	assert.Equal(t, "b2", level[1].ClOrdID)
	assert.Equal(t, "b3", level[2].ClOrdID)
	assert.Equal(t, uint64(175), level.Quantity())

	assert.Equal(t, []string{"X", "Y"}, book.Symbols())
	assert.Equal(t, 6, book.OrderCount())
}

func TestToSnapshot_FromSnapshot_RoundTrip(t *testing.T) {
	book := sampleBook(t)

	snap := ToSnapshot(book)
	assert.Len(t, snap.Buy, 2)
	assert.Len(t, snap.Sell, 1)

	key := EncodeKey(Identity{Symbol: "X", Price: fpdecimal.FromInt(10)})
	require.Contains(t, snap.Buy, key)
	assert.Equal(t, []string{"b1", "b2", "b3"}, clOrdIDs(snap.Buy[key]))

	restored, err := FromSnapshot(snap)
	require.NoError(t, err)
	assert.Equal(t, book, restored)

	// and back again
	assert.Equal(t, snap, ToSnapshot(restored))
}

func TestToSnapshot_CopiesLevels(t *testing.T) {
	book := sampleBook(t)
	snap := ToSnapshot(book)

	id := Identity{Symbol: "X", Price: fpdecimal.FromInt(10)}
	book.Buy[id][0].Quantity = 1

	assert.Equal(t, uint64(100), snap.Buy[EncodeKey(id)][0].Quantity)
}

func TestFromSnapshot_MalformedKeyAbortsConversion(t *testing.T) {
	snap := ToSnapshot(sampleBook(t))
	snap.Sell["garbage"] = PriceLevel{limit(t, Sell, "Z", 1, 1, "s9")}

	book, err := FromSnapshot(snap)
	assert.Nil(t, book)
	assert.ErrorIs(t, err, ErrMalformedKey)
}

func TestFromSnapshot_Empty(t *testing.T) {
	book, err := FromSnapshot(NewSnapshot())
	require.NoError(t, err)
	assert.Empty(t, book.Buy)
	assert.Empty(t, book.Sell)
	assert.Equal(t, 0, book.OrderCount())
}

func TestPriceLevel_Compact(t *testing.T) {
	level := PriceLevel{
		limit(t, Buy, "X", 1, 1, "a"),
		limit(t, Buy, "X", 2, 1, "b"),
		limit(t, Buy, "X", 3, 1, "c"),
	}
	level[1].Quantity = 0

	level = level.Compact()
	assert.Equal(t, []string{"a", "c"}, clOrdIDs(level))
}

func clOrdIDs(level PriceLevel) []string {
	ids := make([]string, 0, len(level))
	for _, o := range level {
		ids = append(ids, o.ClOrdID)
	}
	return ids
}

func TestFromSnapshot_RejectsOrdersNotMatchingTheirLevel(t *testing.T) {
	tests := []struct {
		name  string
		build func(snap *Snapshot)
	}{
		{"wrong side", func(snap *Snapshot) {
			snap.Buy["X_10"] = PriceLevel{limit(t, Sell, "X", 1, 10, "s1")}
		}},
		{"wrong symbol", func(snap *Snapshot) {
			snap.Buy["X_10"] = PriceLevel{limit(t, Buy, "Y", 1, 10, "b1")}
		}},
		{"wrong price", func(snap *Snapshot) {
			snap.Sell["X_10"] = PriceLevel{limit(t, Sell, "X", 1, 11, "s1")}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := NewSnapshot()
			tt.build(snap)
			book, err := FromSnapshot(snap)
			assert.ErrorIs(t, err, ErrCorruptState)
			assert.Nil(t, book)
		})
	}
}

func TestPriceLevel_QuantitySaturates(t *testing.T) {
	level := PriceLevel{{Quantity: 1 << 63}, {Quantity: 1 << 63}, {Quantity: 5}}
	assert.Equal(t, uint64(math.MaxUint64), level.Quantity())

	level = PriceLevel{{Quantity: 3}, {Quantity: 4}}
	assert.Equal(t, uint64(7), level.Quantity())
}
