package core

import (
	"fmt"
	"strings"

	"github.com/nikolaydubina/fpdecimal"
)

// Identity is the composite (symbol, price) key of a price level within one
// side of the book.
type Identity struct {
	Symbol string
	Price  fpdecimal.Decimal
}

// String returns the encoded key
func (id Identity) String() string {
	return EncodeKey(id)
}

// ValidateSymbol rejects symbols that could not round-trip through the key
// codec.
func ValidateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSymbol)
	}
	if strings.Contains(symbol, KeySeparator) {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidSymbol, symbol, KeySeparator)
	}
	if strings.ContainsAny(symbol, " \t\r\n") {
		return fmt.Errorf("%w: %q contains whitespace", ErrInvalidSymbol, symbol)
	}
	return nil
}

// EncodeKey renders id as "<symbol>_<price>". Prices are fixed point, so the
// same pair always yields the same string.
func EncodeKey(id Identity) string {
	return id.Symbol + KeySeparator + id.Price.String()
}

// DecodeKey reverses EncodeKey.
func DecodeKey(key string) (Identity, error) {
	parts := strings.Split(key, KeySeparator)
	switch {
	case len(parts) < 2:
		return Identity{}, &MalformedKeyError{Key: key, Reason: "missing separator"}
	case len(parts) > 2:
		return Identity{}, &MalformedKeyError{Key: key, Reason: "too many segments"}
	case parts[0] == "":
		return Identity{}, &MalformedKeyError{Key: key, Reason: "empty symbol"}
	case parts[1] == "":
		return Identity{}, &MalformedKeyError{Key: key, Reason: "empty price"}
	}

	price, err := fpdecimal.FromString(parts[1])
	if err != nil {
		return Identity{}, &MalformedKeyError{Key: key, Reason: "invalid price", Err: err}
	}

	// "X_10.0" and "X_10" would otherwise collapse onto one level.
	id := Identity{Symbol: parts[0], Price: price}
	if EncodeKey(id) != key {
		return Identity{}, &MalformedKeyError{Key: key, Reason: "non-canonical price"}
	}
	return id, nil
}
