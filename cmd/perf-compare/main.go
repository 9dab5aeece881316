// Package main is the entry point for the perf-compare application
package main

import (
	"github.com/ethpandaops/perf-compare/cmd"
)

func main() {
	cmd.Execute()
}
