// Package execx runs external load tools and captures their output.
package execx

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// scanBufSize bounds a single output line; k6 progress lines can get long.
const scanBufSize = 1024 * 1024

// Spec describes one external command invocation.
type Spec struct {
	Argv []string
	Dir  string
	// Env is appended to the current process environment.
	Env []string

	// OnStdoutLine/OnStderrLine are invoked per line as output arrives, in
	// addition to the full capture in Result. Either may be nil.
	OnStdoutLine func(line string)
	OnStderrLine func(line string)
}

// Result is the full capture of a finished command. A nonzero exit code is
// data here, not an error: callers decide what it means for their case.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int

	// PeakRSSBytes is the highest VmHWM observed while the process ran,
	// or 0 where that is unavailable.
	PeakRSSBytes int64

	Duration time.Duration
}

// Runner runs commands. The interface exists so case runners can be tested
// without spawning real load tools.
type Runner interface {
	Run(ctx context.Context, spec Spec) (*Result, error)
}

// New creates a Runner backed by os/exec.
func New(log logrus.FieldLogger) Runner {
	return &runner{
		log: log.WithField("component", "execx"),
	}
}

type runner struct {
	log logrus.FieldLogger
}

func (r *runner) Run(ctx context.Context, spec Spec) (*Result, error) {
	if len(spec.Argv) == 0 {
		return nil, errors.New("empty argv")
	}

	r.log.WithField("argv", strings.Join(spec.Argv, " ")).Debug("Running command")

	cmd := exec.CommandContext(ctx, spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.Dir

	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}

	start := time.Now()

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", spec.Argv[0], err)
	}

	var (
		stdoutBuf strings.Builder
		stderrBuf strings.Builder
	)

	g := &errgroup.Group{}

	g.Go(func() error {
		return pumpLines(stdout, &stdoutBuf, spec.OnStdoutLine)
	})

	g.Go(func() error {
		return pumpLines(stderr, &stderrBuf, spec.OnStderrLine)
	})

	rssDone := make(chan struct{})
	rssResult := make(chan int64, 1)

	go func() {
		rssResult <- samplePeakRSS(cmd.Process.Pid, rssDone)
	}()

	pumpErr := g.Wait()
	waitErr := cmd.Wait()

	close(rssDone)
	peakRSS := <-rssResult

	if pumpErr != nil {
		return nil, fmt.Errorf("reading %s output: %w", spec.Argv[0], pumpErr)
	}

	exitCode := 0

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("waiting for %s: %w", spec.Argv[0], waitErr)
		}
	}

	result := &Result{
		Stdout:       stdoutBuf.String(),
		Stderr:       stderrBuf.String(),
		ExitCode:     exitCode,
		PeakRSSBytes: peakRSS,
		Duration:     time.Since(start),
	}

	r.log.WithFields(logrus.Fields{
		"exit_code": result.ExitCode,
		"duration":  result.Duration,
	}).Debug("Command finished")

	return result, nil
}

// pumpLines streams reader into buf line by line, invoking onLine for each.
// Invalid UTF-8 is replaced rather than dropped, matching a lossy decode.
func pumpLines(reader io.Reader, buf *strings.Builder, onLine func(string)) error {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 64*1024), scanBufSize)

	for scanner.Scan() {
		line := strings.ToValidUTF8(scanner.Text(), "�")

		buf.WriteString(line)
		buf.WriteByte('\n')

		if onLine != nil {
			onLine(line)
		}
	}

	return scanner.Err()
}

// samplePeakRSS polls /proc/<pid>/status for VmHWM until done closes,
// returning the highest value seen in bytes. Returns 0 off Linux or if the
// process exits before the first sample.
func samplePeakRSS(pid int, done <-chan struct{}) int64 {
	var peak int64

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if v := readVmHWM(pid); v > peak {
			peak = v
		}

		select {
		case <-done:
			return peak
		case <-ticker.C:
		}
	}
}

func readVmHWM(pid int) int64 {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/status", pid))
	if err != nil {
		return 0
	}

	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "VmHWM:") {
			continue
		}

		fields := strings.Fields(strings.TrimPrefix(line, "VmHWM:"))
		if len(fields) < 1 {
			return 0
		}

		kb, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return 0
		}

		return kb * 1024
	}

	return 0
}
