package core

import (
	"errors"
	"fmt"
)

// KeySeparator joins the symbol and price of an Identity in its encoded form.
// Symbols must never contain it.
const KeySeparator = "_"

// Errors
var (
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrInvalidPrice    = errors.New("invalid price")
	ErrInvalidSymbol   = errors.New("invalid symbol")
	ErrInvalidSide     = errors.New("invalid side")
	ErrInvalidKind     = errors.New("invalid order kind")
	ErrInvalidLine     = errors.New("invalid order line")

	ErrMalformedKey         = errors.New("malformed key")
	ErrCorruptState         = errors.New("corrupt state")
	ErrIO                   = errors.New("io failure")
	ErrUnrecognizedStrategy = errors.New("unrecognized strategy")
)

// MalformedKeyError is returned when an encoded key cannot be decoded back
// into an Identity.
type MalformedKeyError struct {
	Key    string
	Reason string
	Err    error
}

func (e *MalformedKeyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed key %q: %s: %v", e.Key, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed key %q: %s", e.Key, e.Reason)
}

// Is makes errors.Is(err, ErrMalformedKey) hold.
func (e *MalformedKeyError) Is(target error) bool { return target == ErrMalformedKey }

func (e *MalformedKeyError) Unwrap() error { return e.Err }

// CorruptStateError is returned when a persisted resource exists but is not
// a snapshot.
type CorruptStateError struct {
	Resource string
	Err      error
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("corrupt state in %s: %v", e.Resource, e.Err)
}

func (e *CorruptStateError) Is(target error) bool { return target == ErrCorruptState }

func (e *CorruptStateError) Unwrap() error { return e.Err }

// IOError wraps an environmental failure to read, write or delete the
// backing resource.
type IOError struct {
	Op       string
	Resource string
	Err      error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Resource, e.Err)
}

func (e *IOError) Is(target error) bool { return target == ErrIO }

func (e *IOError) Unwrap() error { return e.Err }
