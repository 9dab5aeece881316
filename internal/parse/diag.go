package parse

import (
	"fmt"
	"strings"
)

const (
	// diagMaxChars bounds each stream tail embedded in an error message.
	diagMaxChars = 4096

	// diagTailLines is how many trailing lines of each stream are kept.
	diagTailLines = 12
)

// Diagnostics bundles error context for a failed parse: which tool, what went
// wrong, and bounded tails of both output streams. It is constructed only on
// parse failure and formatted into the returned error's message.
type Diagnostics struct {
	Tool       string
	Message    string
	StdoutTail string
	StderrTail string
}

func newDiagnostics(tool, message, stdout, stderr string) Diagnostics {
	return Diagnostics{
		Tool:       tool,
		Message:    message,
		StdoutTail: TailLines(stdout, diagTailLines),
		StderrTail: TailLines(stderr, diagTailLines),
	}
}

// Format renders the diagnostics into a single loggable message.
func (d Diagnostics) Format() string {
	out := Truncate(d.StdoutTail, diagMaxChars)
	err := Truncate(d.StderrTail, diagMaxChars)

	return fmt.Sprintf("%s\n--- %s stdout (tail) ---\n%s\n--- %s stderr (tail) ---\n%s",
		d.Message, d.Tool, out, d.Tool, err)
}

// diagError wraps a parse failure message with stream tails.
func diagError(tool string, cause error, stdout, stderr string) *Error {
	return &Error{Message: newDiagnostics(tool, cause.Error(), stdout, stderr).Format()}
}

// TailLines returns the last n lines of text, or all of it when shorter.
func TailLines(text string, n int) string {
	if n <= 0 {
		return ""
	}

	lines := splitLines(text)
	if len(lines) <= n {
		return text
	}

	return strings.Join(lines[len(lines)-n:], "\n")
}

// Truncate caps text at maxChars characters, appending "..." when cut.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 {
		return ""
	}

	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}

	return string(runes[:maxChars]) + "..."
}

// splitLines splits on newlines without producing a trailing empty line for
// text that ends in a newline (matching the behavior the dialect parsers
// were written against).
func splitLines(text string) []string {
	if text == "" {
		return nil
	}

	trimmed := strings.TrimSuffix(text, "\n")
	if trimmed == "" {
		return []string{""}
	}

	return strings.Split(trimmed, "\n")
}
