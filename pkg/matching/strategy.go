package matching

import (
	"fmt"
	"strings"

	"github.com/erain9/bookd/pkg/core"
)

// Strategy names a matching algorithm
type Strategy int

// Strategies
const (
	FIFO Strategy = iota
	ProRata
)

// DefaultStrategy is used when no strategy or an unknown one is configured
const DefaultStrategy = FIFO

// String returns the configuration name of the strategy
func (s Strategy) String() string {
	switch s {
	case FIFO:
		return "FIFO"
	case ProRata:
		return "PRORATA"
	default:
		return "UNKNOWN"
	}
}

// ParseStrategy resolves a configured name. Unknown names fall back to
// DefaultStrategy; the returned error wraps core.ErrUnrecognizedStrategy
// and is informational only.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "FIFO":
		return FIFO, nil
	case "PRORATA", "PRO_RATA", "PRO-RATA":
		return ProRata, nil
	case "":
		return DefaultStrategy, nil
	}
	return DefaultStrategy, fmt.Errorf("%w: %q, using %s", core.ErrUnrecognizedStrategy, name, DefaultStrategy)
}

// Matcher crosses the book in place and returns the fills it produced, in
// the order they occurred.
type Matcher interface {
	Match(book *core.LiveBook) []core.Fill
}

// Select returns the matcher implementing s
func Select(s Strategy) Matcher {
	switch s {
	case ProRata:
		return &ProRataMatcher{}
	default:
		return &FIFOMatcher{}
	}
}
