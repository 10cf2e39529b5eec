package store

import (
	"testing"

	"github.com/erain9/bookd/pkg/core"
	"github.com/nikolaydubina/fpdecimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshal(t *testing.T) {
	book := core.NewLiveBook()
	o, err := core.NewOrder("X", 100, fpdecimal.FromInt(10), core.Buy, core.KindLimit, "b1")
	require.NoError(t, err)
	book.Add(*o)
	o, err = core.NewOrder("X", 20, fpdecimal.FromInt(10), core.Buy, core.KindLimit, "b2")
	require.NoError(t, err)
	book.Add(*o)
	snap := core.ToSnapshot(book)

	data, err := Marshal(snap)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"buy_orders"`)
	assert.Contains(t, string(data), `"sell_orders":{}`)

	decoded, err := Unmarshal("test", data)
	require.NoError(t, err)
	assert.Equal(t, snap, decoded)
}

func TestMarshal_Nil(t *testing.T) {
	data, err := Marshal(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"buy_orders":{},"sell_orders":{}}`, string(data))

	data, err = Marshal(&core.Snapshot{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"buy_orders":{},"sell_orders":{}}`, string(data))
}

func TestUnmarshal_Empty(t *testing.T) {
	for _, in := range []string{"", "   ", "\n"} {
		snap, err := Unmarshal("test", []byte(in))
		require.NoError(t, err)
		assert.True(t, snap.IsEmpty())
	}
}

func TestUnmarshal_Corrupt(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "not json"},
		{"array", "[1,2,3]"},
		{"missing side", `{"buy_orders":{}}`},
		{"null side", `{"buy_orders":{},"sell_orders":null}`},
		{"unknown field", `{"buy_orders":{},"sell_orders":{},"extra":1}`},
		{"trailing data", `{"buy_orders":{},"sell_orders":{}} {}`},
		{"bad order", `{"buy_orders":{"X_10":[{"qty":1,"symbol":"X","price":"x","side":"Buy","order_type":"Limit"}]},"sell_orders":{}}`},
		{"truncated", `{"buy_orders":{"X_10":[`},
		{"inexact price", `{"buy_orders":{"X_10":[{"qty":1,"symbol":"X","price":"10.0009","side":"Buy","order_type":"Limit"}]},"sell_orders":{}}`},
		{"price out of range", `{"buy_orders":{},"sell_orders":{"X_10":[{"qty":1,"symbol":"X","price":"99999999999999999999","side":"Sell","order_type":"Limit"}]}}`},
		{"order without side", `{"buy_orders":{"X_10":[{"qty":1,"symbol":"X","price":"10","order_type":"Limit"}]},"sell_orders":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := Unmarshal("test", []byte(tt.data))
			assert.Nil(t, snap)
			assert.ErrorIs(t, err, core.ErrCorruptState)
		})
	}
}

func TestUnmarshal_MalformedKeyIsNotCorruption(t *testing.T) {
	// key syntax is checked when the snapshot is hydrated, not here
	snap, err := Unmarshal("test", []byte(`{"buy_orders":{"bad key":[]},"sell_orders":{}}`))
	require.NoError(t, err)

	_, err = core.FromSnapshot(snap)
	assert.ErrorIs(t, err, core.ErrMalformedKey)
}
