// Package gate holds the pass/fail predicates that compare one tool's
// throughput against another's, scaled by a configured ratio.
package gate

import (
	"fmt"
	"math"

	"github.com/ethpandaops/perf-compare/internal/parse"
)

// epsilon absorbs floating-point rounding when an inclusive gate lands on the
// exact boundary.
const epsilon = 1e-15

// TooSlow reports whether candidate is unacceptably slower than baseline.
//
// Inclusive mode is the "must be at least as fast" gate (used against wrk):
// candidate >= baseline*ratio passes, with an epsilon-tolerant boundary.
// Strict mode is the "must be meaningfully faster" gate (used against k6):
// candidate must exceed baseline*ratio; equality fails.
func TooSlow(candidate, baseline parse.Rps, ratio float64, inclusive bool) bool {
	if inclusive {
		return candidate.Value()+epsilon < baseline.Value()*ratio
	}
	return candidate.Value() <= baseline.Value()*ratio
}

// ActualRatio returns candidate/baseline for reporting, or +Inf when the
// baseline is exactly zero.
func ActualRatio(candidate, baseline parse.Rps) float64 {
	if baseline.Value() == 0 {
		return math.Inf(1)
	}
	return candidate.Value() / baseline.Value()
}

// Verdict is the outcome of a skippable gate.
type Verdict struct {
	Skipped    bool
	SkipReason string

	TooSlow     bool
	ActualRatio float64
}

// CrossProtocol applies the inclusive gate across tool and protocol
// boundaries (wrkr gRPC throughput vs wrk plain-HTTP throughput). The gate is
// skipped, not failed, when either measurement is unavailable.
func CrossProtocol(candidate, baseline *parse.Rps, ratio float64) Verdict {
	if baseline == nil {
		return Verdict{Skipped: true, SkipReason: "baseline measurement unavailable"}
	}
	if candidate == nil {
		return Verdict{Skipped: true, SkipReason: "candidate measurement unavailable"}
	}

	return Verdict{
		TooSlow:     TooSlow(*candidate, *baseline, ratio, true),
		ActualRatio: ActualRatio(*candidate, *baseline),
	}
}

// FormatRatio renders an actual ratio for log lines, keeping +Inf readable.
func FormatRatio(r float64) string {
	if math.IsInf(r, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.3f", r)
}
