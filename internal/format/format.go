// Package format provides shared formatting utilities for human-readable output.
package format

import (
	"fmt"
	"time"

	"github.com/ethpandaops/perf-compare/internal/parse"
)

// Duration formats a duration for human-readable output.
// Handles microseconds, milliseconds, seconds, and minutes.
func Duration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.0fµs", float64(d.Microseconds()))
	}
	if d < time.Second {
		return fmt.Sprintf("%.0fms", float64(d.Milliseconds()))
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}

	return fmt.Sprintf("%.1fm", d.Minutes())
}

// RPS renders an optional throughput measurement, "-" when unavailable.
func RPS(rps *parse.Rps) string {
	if rps == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f", rps.Value())
}

// MBFromBytes converts a byte count to mebibytes for RSS reporting.
func MBFromBytes(n int64) string {
	return fmt.Sprintf("%.2f", float64(n)/1024.0/1024.0)
}

// OptInt renders an optional integer metric, "-" when absent.
func OptInt(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

// OptMs renders an optional float millisecond metric, "-" when absent.
func OptMs(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f", *v)
}
