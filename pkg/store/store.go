// Package store defines the single-resource snapshot store the engine reads
// and rewrites on every request, and the document format all backends share.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/erain9/bookd/pkg/core"
)

// Reset status messages
const (
	MsgResetDone    = "Order book deleted successfully"
	MsgResetMissing = "Order book already empty, nothing to delete"
)

// Store persists one Snapshot. Implementations are not required to be safe
// for concurrent use; the engine serializes every call.
type Store interface {
	// LoadOrCreate returns the stored snapshot, or an empty one when the
	// resource is absent or empty.
	LoadOrCreate(ctx context.Context) (*core.Snapshot, error)
	// Persist replaces the stored snapshot in full.
	Persist(ctx context.Context, snap *core.Snapshot) error
	// Reset deletes the resource. Deleting an absent resource succeeds.
	Reset(ctx context.Context) (string, error)
	// Name identifies the backend in logs
	Name() string
}

// Marshal encodes snap as the persisted JSON document
func Marshal(snap *core.Snapshot) ([]byte, error) {
	if snap == nil {
		snap = core.NewSnapshot()
	}
	out := *snap
	if out.Buy == nil {
		out.Buy = map[string]core.PriceLevel{}
	}
	if out.Sell == nil {
		out.Sell = map[string]core.PriceLevel{}
	}
	return json.Marshal(&out)
}

// Unmarshal decodes a persisted document. Empty (or whitespace only) input
// is an empty snapshot. Anything that is not exactly one object with the two
// side fields is a *core.CorruptStateError naming resource.
func Unmarshal(resource string, data []byte) (*core.Snapshot, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return core.NewSnapshot(), nil
	}

	var snap core.Snapshot
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&snap); err != nil {
		return nil, &core.CorruptStateError{Resource: resource, Err: err}
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, &core.CorruptStateError{Resource: resource, Err: errors.New("trailing data after snapshot")}
	}
	if snap.Buy == nil || snap.Sell == nil {
		return nil, &core.CorruptStateError{Resource: resource, Err: fmt.Errorf("missing %q or %q", "buy_orders", "sell_orders")}
	}
	return &snap, nil
}
