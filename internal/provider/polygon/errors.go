package polygon

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a typed provider failure. Transient errors (rate limits, server
// errors, network faults) are worth retrying next cycle; permanent ones
// (unknown symbol) mean the symbol should be dropped from the universe.
// Call sites must never substitute synthetic data for either kind.
type Error struct {
	Op         string
	Symbol     string
	StatusCode int
	Transient  bool
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("polygon: %s %s: status %d", e.Op, e.Symbol, e.StatusCode)
	}
	return fmt.Sprintf("polygon: %s %s: %v", e.Op, e.Symbol, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsTransient reports whether err is a provider error worth retrying on the
// next scan cycle. Non-provider errors are treated as transient.
func IsTransient(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Transient
	}
	return true
}

// IsPermanent reports whether err marks a symbol as gone (e.g. delisted).
func IsPermanent(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return !pe.Transient
	}
	return false
}

func statusError(op, symbol string, status int) *Error {
	return &Error{
		Op:         op,
		Symbol:     symbol,
		StatusCode: status,
		// 404 means the symbol does not exist at the provider; everything
		// else (429, 5xx) clears up on its own.
		Transient: status != http.StatusNotFound,
	}
}
