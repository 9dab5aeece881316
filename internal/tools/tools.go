// Package tools locates the load-tool and test-server binaries.
package tools

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/perf-compare/internal/config"
)

// Paths holds the resolved binary locations. Wrk and K6 are empty when the
// tool is absent and not required; Wrkr and Testserver are always set on a
// successful Detect.
type Paths struct {
	Wrkr       string
	Testserver string
	Wrk        string
	K6         string
}

// DetectionError reports a missing required binary.
type DetectionError struct {
	Tool   string
	Detail string
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Tool, e.Detail)
}

// Detect resolves the wrkr workspace binaries under root/target/release and
// looks up wrk/k6 on PATH. Missing wrk/k6 is an error only when required.
func Detect(log logrus.FieldLogger, root string, req config.Requirements) (*Paths, error) {
	log = log.WithField("component", "tools")

	paths := &Paths{}

	wrkr := filepath.Join(root, "target", "release", "wrkr")
	if !isExecutable(wrkr) {
		return nil, &DetectionError{
			Tool:   "wrkr",
			Detail: fmt.Sprintf("expected binary at %s (build the workspace first or pass --build)", wrkr),
		}
	}

	paths.Wrkr = wrkr

	testserver := filepath.Join(root, "target", "release", "wrkr-testserver")
	if !isExecutable(testserver) {
		return nil, &DetectionError{
			Tool:   "wrkr-testserver",
			Detail: fmt.Sprintf("expected binary at %s (build the workspace first or pass --build)", testserver),
		}
	}

	paths.Testserver = testserver

	if p, err := exec.LookPath("wrk"); err == nil {
		paths.Wrk = p
	} else if req.RequireWrk {
		return nil, &DetectionError{Tool: "wrk", Detail: "not on PATH and --require-wrk is set"}
	} else {
		log.Warn("wrk not found on PATH, skipping wrk baselines")
	}

	if p, err := exec.LookPath("k6"); err == nil {
		paths.K6 = p
	} else if req.RequireK6 {
		return nil, &DetectionError{Tool: "k6", Detail: "not on PATH and --require-k6 is set"}
	} else {
		log.Warn("k6 not found on PATH, skipping k6 baselines")
	}

	log.WithFields(logrus.Fields{
		"wrkr":       paths.Wrkr,
		"testserver": paths.Testserver,
		"wrk":        orAbsent(paths.Wrk),
		"k6":         orAbsent(paths.K6),
	}).Info("Detected tools")

	return paths, nil
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}

	return info.Mode()&0o111 != 0
}

func orAbsent(path string) string {
	if path == "" {
		return "(absent)"
	}

	return path
}
