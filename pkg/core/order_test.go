package core

import (
	"encoding/json"
	"testing"

	"github.com/nikolaydubina/fpdecimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrder(t *testing.T) {
	o, err := NewOrder("X", 100, fpdecimal.FromInt(10), Buy, KindLimit, "c1")
	require.NoError(t, err)
	assert.Equal(t, "X", o.Symbol)
	assert.Equal(t, uint64(100), o.Quantity)
	assert.Equal(t, Identity{Symbol: "X", Price: fpdecimal.FromInt(10)}, o.Identity())
	assert.False(t, o.IsMarketOrder())

	// generated client order id
	o, err = NewOrder("X", 1, fpdecimal.FromInt(10), Sell, KindLimit, "")
	require.NoError(t, err)
	assert.NotEmpty(t, o.ClOrdID)

	// market orders rest at zero
	o, err = NewOrder("X", 1, fpdecimal.FromInt(10), Sell, KindMarket, "m1")
	require.NoError(t, err)
	assert.True(t, o.Price.Equal(fpdecimal.Zero))
	assert.True(t, o.IsMarketOrder())
}

func TestNewOrder_Invalid(t *testing.T) {
	_, err := NewOrder("X", 0, fpdecimal.FromInt(10), Buy, KindLimit, "c")
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = NewOrder("X", 1, fpdecimal.Zero, Buy, KindLimit, "c")
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = NewOrder("X_Y", 1, fpdecimal.FromInt(1), Buy, KindLimit, "c")
	assert.ErrorIs(t, err, ErrInvalidSymbol)

	_, err = NewOrder("X", 1, fpdecimal.FromInt(1), Buy, OrderKind("Stop"), "c")
	assert.ErrorIs(t, err, ErrInvalidKind)
}

func TestParseOrder(t *testing.T) {
	o, err := ParseOrder("X", "100", "10.00", "Buy", "Limit", "c1")
	require.NoError(t, err)
	assert.Equal(t, Buy, o.Side)
	assert.Equal(t, KindLimit, o.Kind)
	assert.True(t, o.Price.Equal(fpdecimal.FromInt(10)))

	o, err = ParseOrder("X", "5", "", "sell", "market", "")
	require.NoError(t, err)
	assert.Equal(t, Sell, o.Side)
	assert.True(t, o.IsMarketOrder())

	_, err = ParseOrder("X", "-1", "10", "Buy", "Limit", "c")
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = ParseOrder("X", "1", "abc", "Buy", "Limit", "c")
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = ParseOrder("X", "1", "1", "Hold", "Limit", "c")
	assert.ErrorIs(t, err, ErrInvalidSide)
}

func TestParseOrderLine(t *testing.T) {
	o, err := ParseOrderLine("Buy X 100 10.5 Limit ord-1")
	require.NoError(t, err)
	assert.Equal(t, "ord-1", o.ClOrdID)
	assert.Equal(t, uint64(100), o.Quantity)

	o, err = ParseOrderLine("  Sell Y 3 2  ")
	require.NoError(t, err)
	assert.Equal(t, Sell, o.Side)
	assert.Equal(t, KindLimit, o.Kind)

	_, err = ParseOrderLine("Buy X 100")
	assert.ErrorIs(t, err, ErrInvalidLine)
}

func TestOrder_JSON(t *testing.T) {
	o, err := NewOrder("X", 100, fpdecimal.FromFloat(10.5), Buy, KindLimit, "c1")
	require.NoError(t, err)

	data, err := json.Marshal(o)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "X", fields["symbol"])
	assert.Equal(t, "Buy", fields["side"])
	assert.Equal(t, "Limit", fields["order_type"])
	assert.Equal(t, "c1", fields["cl_ord_id"])
	assert.EqualValues(t, 100, fields["qty"])

	var decoded Order
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, *o, decoded)
}

func TestOrder_UnmarshalJSON_Strict(t *testing.T) {
	var o Order
	err := json.Unmarshal([]byte(`{"qty":1,"symbol":"X","price":"abc","side":"Buy","order_type":"Limit"}`), &o)
	assert.ErrorIs(t, err, ErrInvalidPrice)

	err = json.Unmarshal([]byte(`{"qty":1,"symbol":"X","price":"1","side":"Up","order_type":"Limit"}`), &o)
	assert.Error(t, err)
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		valid    bool
	}{
		{"10", "10", true},
		{" 10.5 ", "10.5", true},
		{"0.001", "0.001", true},
		{"10.000", "10", true},
		{"10.0009", "", false},
		{"0.0001", "", false},
		{"99999999999999999999", "", false},
		{"-99999999999999999999", "", false},
		{"abc", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, err := ParsePrice(tt.input)
			if !tt.valid {
				assert.ErrorIs(t, err, ErrInvalidPrice)
				return
			}
			require.NoError(t, err)
			assert.True(t, p.Equal(mustDecimal(t, tt.expected)), "got %s", p)
		})
	}
}

func TestParseOrder_PriceMustBeExact(t *testing.T) {
	_, err := ParseOrder("X", "1", "10.0009", "Buy", "Limit", "c")
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = ParseOrder("X", "1", "99999999999999999999", "Buy", "Limit", "c")
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = ParseOrderLine("Sell X 1 10.0009")
	assert.ErrorIs(t, err, ErrInvalidPrice)

	o, err := ParseOrder("X", "18446744073709551615", "10.125", "Buy", "Limit", "c")
	require.NoError(t, err)
	assert.Equal(t, uint64(18446744073709551615), o.Quantity)
	assert.Equal(t, "X_10.125", EncodeKey(o.Identity()))
}

func TestOrder_UnmarshalJSON_RejectsInexactPriceAndMissingSide(t *testing.T) {
	var o Order
	err := json.Unmarshal([]byte(`{"qty":1,"symbol":"X","price":"10.0009","side":"Buy","order_type":"Limit"}`), &o)
	assert.ErrorIs(t, err, ErrInvalidPrice)

	err = json.Unmarshal([]byte(`{"qty":1,"symbol":"X","price":"99999999999999999999","side":"Buy","order_type":"Limit"}`), &o)
	assert.ErrorIs(t, err, ErrInvalidPrice)

	err = json.Unmarshal([]byte(`{"qty":1,"symbol":"X","price":"10","order_type":"Limit"}`), &o)
	assert.ErrorIs(t, err, ErrInvalidSide)

	require.NoError(t, json.Unmarshal([]byte(`{"qty":1,"symbol":"X","price":"10","side":"Buy","order_type":"Limit"}`), &o))
	assert.Equal(t, Buy, o.Side)
}
