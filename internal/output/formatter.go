// Package output renders human-friendly run progress and summaries.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Formatter provides clean, human-friendly output for a comparison run
type Formatter interface {
	PrintPhase(phase string)
	PrintCase(title string)
	PrintStep(message string)
	PrintInfo(message string)
	PrintPass(message string)
	PrintFail(message string)
	PrintLine(message string)
	PrintConditions(lines []string)
	PrintWarning(message string)
	PrintSummaryBlocks(blocks [][]string)
	PrintFailedBlock(lines []string)
	PrintOverall(failures int)
	PrintResultsTable(headers []string, rows [][]string)
}

type formatter struct {
	writer   io.Writer
	renderer Renderer

	green  *color.Color
	red    *color.Color
	yellow *color.Color
	blue   *color.Color
	cyan   *color.Color
	gray   *color.Color
	bold   *color.Color
}

// NewFormatter creates a new output formatter
func NewFormatter(writer io.Writer, renderer Renderer) Formatter {
	return &formatter{
		writer:   writer,
		renderer: renderer,
		green:    color.New(color.FgGreen),
		red:      color.New(color.FgRed),
		yellow:   color.New(color.FgYellow),
		blue:     color.New(color.FgBlue),
		cyan:     color.New(color.FgCyan, color.Bold),
		gray:     color.New(color.FgHiBlack),
		bold:     color.New(color.Bold),
	}
}

// PrintPhase prints a phase separator
func (f *formatter) PrintPhase(phase string) {
	f.blue.Fprintf(f.writer, "\n▸ %s\n", phase)
}

// PrintCase prints a case header
func (f *formatter) PrintCase(title string) {
	f.bold.Fprintf(f.writer, "\nCASE: %s\n", title)
}

func (f *formatter) PrintStep(message string) {
	f.gray.Fprintf(f.writer, "  %s\n", message)
}

func (f *formatter) PrintInfo(message string) {
	fmt.Fprintf(f.writer, "%s\n", message)
}

func (f *formatter) PrintPass(message string) {
	f.green.Fprintf(f.writer, "%s\n", message)
}

func (f *formatter) PrintFail(message string) {
	f.red.Fprintf(f.writer, "%s\n", message)
}

func (f *formatter) PrintLine(message string) {
	fmt.Fprintf(f.writer, "%s\n", message)
}

func (f *formatter) PrintWarning(message string) {
	f.yellow.Fprintf(f.writer, "%s\n", message)
}

// PrintConditions prints the run conditions block
func (f *formatter) PrintConditions(lines []string) {
	f.cyan.Fprintln(f.writer, "CONDITIONS:")

	for _, line := range lines {
		fmt.Fprintf(f.writer, "- %s\n", line)
	}
}

// PrintSummaryBlocks prints per-case summary blocks, styled for CI logs
func (f *formatter) PrintSummaryBlocks(blocks [][]string) {
	if len(blocks) == 0 {
		return
	}

	color.New(color.FgGreen, color.Bold).Fprintln(f.writer, "SUMMARY:")

	for _, block := range blocks {
		for _, line := range block {
			f.printSummaryLine(line)
		}

		fmt.Fprintln(f.writer)
	}
}

// PrintFailedBlock prints the collected failure messages
func (f *formatter) PrintFailedBlock(lines []string) {
	if len(lines) == 0 {
		return
	}

	color.New(color.FgRed, color.Bold).Fprintln(f.writer, "FAILED:")

	for _, line := range lines {
		f.red.Fprintf(f.writer, "- %s\n", line)
	}
}

func (f *formatter) PrintOverall(failures int) {
	if failures > 0 {
		f.red.Fprintf(f.writer, "\nOVERALL: FAIL (%d failing case(s))\n", failures)

		return
	}

	f.green.Fprintf(f.writer, "\nOVERALL: PASS\n")
}

func (f *formatter) PrintResultsTable(headers []string, rows [][]string) {
	f.renderer.RenderToWriter(f.writer, headers, rows)
}

func (f *formatter) printSummaryLine(line string) {
	switch {
	case strings.HasPrefix(line, "HTTP ") || strings.HasPrefix(line, "gRPC "):
		f.bold.Fprintf(f.writer, "%s\n", line)
	case strings.Contains(line, " scripts:"):
		f.gray.Fprintf(f.writer, "%s\n", line)
	case strings.Contains(line, " FAIL"):
		f.red.Fprintf(f.writer, "%s\n", line)
	case strings.Contains(line, " SKIP"):
		f.yellow.Fprintf(f.writer, "%s\n", line)
	default:
		fmt.Fprintf(f.writer, "%s\n", line)
	}
}
