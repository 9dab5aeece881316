// Package parse extracts throughput metrics and correctness signals from the
// captured stdout/stderr of the supported load tools (wrk, wrkr, k6).
//
// Every function in this package is a pure transformation over captured text:
// no I/O, no shared state. All parsers either return a valid value or an
// *Error; they never return a sentinel "invalid" value silently.
package parse

import (
	"fmt"
	"math"
)

// Rps is a single non-negative requests-per-second measurement.
type Rps struct {
	value float64
}

// NewRps constructs an Rps, rejecting negative or NaN values.
func NewRps(v float64) (Rps, error) {
	if math.IsNaN(v) || v < 0 {
		return Rps{}, fmt.Errorf("rps must be non-negative, got %v", v)
	}
	return Rps{value: v}, nil
}

// Value returns the measured requests per second.
func (r Rps) Value() float64 {
	return r.value
}

func (r Rps) String() string {
	return fmt.Sprintf("%.3f", r.value)
}

// Error reports that a tool's output could not be parsed into the expected
// metric. The message may embed Diagnostics tails for debugging.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func errorf(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// rpsOrError converts a raw rate into an Rps, mapping the construction
// invariant violation into a parse error for the given tool dialect.
func rpsOrError(v float64, what string) (Rps, error) {
	rps, err := NewRps(v)
	if err != nil {
		return Rps{}, errorf("%s: %v", what, err)
	}
	return rps, nil
}
