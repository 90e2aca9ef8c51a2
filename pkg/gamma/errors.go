package gamma

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParameter matches every *InvalidParameterError
	ErrInvalidParameter = errors.New("invalid gamma parameter")

	// ErrGridMismatch matches every *GridMismatchError
	ErrGridMismatch = errors.New("reference and evaluation grids do not match")
)

// InvalidParameterError reports a gamma parameter outside its domain
type InvalidParameterError struct {
	Name   string
	Value  float64
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid gamma parameter %s=%v: %s", e.Name, e.Value, e.Reason)
}

// Is lets errors.Is match ErrInvalidParameter
func (e *InvalidParameterError) Is(target error) bool { return target == ErrInvalidParameter }

// GridMismatchError reports reference and evaluation grids that cannot be compared
type GridMismatchError struct {
	// Axis is the axis without overlap, or -1 for a dimensionality mismatch
	Axis   int
	Reason string
}

func (e *GridMismatchError) Error() string {
	if e.Axis < 0 {
		return fmt.Sprintf("grid mismatch: %s", e.Reason)
	}
	return fmt.Sprintf("grid mismatch on axis %d: %s", e.Axis, e.Reason)
}

// Is lets errors.Is match ErrGridMismatch
func (e *GridMismatchError) Is(target error) bool { return target == ErrGridMismatch }
