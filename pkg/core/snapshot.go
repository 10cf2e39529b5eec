package core

import "fmt"

// ToSnapshot re-keys every level of book by its encoded Identity. Order
// within a level is preserved and levels are copied.
func ToSnapshot(book *LiveBook) *Snapshot {
	snap := &Snapshot{
		Buy:  make(map[string]PriceLevel, len(book.Buy)),
		Sell: make(map[string]PriceLevel, len(book.Sell)),
	}
	for id, level := range book.Buy {
		snap.Buy[EncodeKey(id)] = level.Clone()
	}
	for id, level := range book.Sell {
		snap.Sell[EncodeKey(id)] = level.Clone()
	}
	return snap
}

// FromSnapshot decodes every key of snap. The first malformed key, or an
// order filed under the wrong level, aborts the conversion and no book is
// returned.
func FromSnapshot(snap *Snapshot) (*LiveBook, error) {
	buy, err := decodeSide(snap.Buy, Buy)
	if err != nil {
		return nil, err
	}
	sell, err := decodeSide(snap.Sell, Sell)
	if err != nil {
		return nil, err
	}
	return &LiveBook{Buy: buy, Sell: sell}, nil
}

func decodeSide(levels map[string]PriceLevel, side Side) (map[Identity]PriceLevel, error) {
	out := make(map[Identity]PriceLevel, len(levels))
	for key, level := range levels {
		id, err := DecodeKey(key)
		if err != nil {
			return nil, err
		}
		for i, o := range level {
			if o.Side != side || o.Identity() != id {
				return nil, &CorruptStateError{
					Resource: "snapshot",
					Err:      fmt.Errorf("order %d at %q is a %s %s, not a %s %s", i, key, o.Side, o.Identity(), side, id),
				}
			}
		}
		out[id] = level.Clone()
	}
	return out, nil
}
