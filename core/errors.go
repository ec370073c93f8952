package core

import "errors"

var (
	// ErrConfiguration indicates a window, cadence or config value that
	// cannot be used. It is fatal before any scan starts.
	ErrConfiguration = errors.New("configuration error")
	// ErrValidation indicates malformed observatory coordinates.
	ErrValidation = errors.New("validation error")
	// ErrPropagation indicates the orbit service could not place a
	// satellite at some instant of the window.
	ErrPropagation = errors.New("propagation error")
)
