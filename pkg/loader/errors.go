package loader

import (
	"errors"
	"fmt"
)

// Common errors returned by the controller.
var (
	// ErrRemoteFetchFailed is returned when the remote source failed and the
	// single fallback attempt was exhausted.
	ErrRemoteFetchFailed = errors.New("remote fetch failed")

	// ErrLoadInFlight is returned when an initial load is requested while
	// another load already owns the session.
	ErrLoadInFlight = errors.New("load already in flight")
)

// LoadError wraps a remote failure with the operation that triggered it.
// Previously loaded items are always preserved alongside it; only the fetch
// attempt itself failed.
type LoadError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("order history %s: %v", e.Op, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// UserMessage returns the stable, user-displayable message for this failure.
func (e *LoadError) UserMessage() string {
	return "Could not load order history. Check your connection and try again."
}

func newLoadError(op string, err error) *LoadError {
	return &LoadError{Op: op, Err: fmt.Errorf("%w: %v", ErrRemoteFetchFailed, err)}
}
