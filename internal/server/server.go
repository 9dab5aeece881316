// Package server manages the wrkr-testserver lifecycle.
package server

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const stderrTailMax = 50

// Error reports server start/readiness failures.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Targets are the listen addresses the server prints once ready.
type Targets struct {
	HTTPURL    string
	GRPCTarget string
}

// Server runs a wrkr-testserver process and reports its targets.
type Server interface {
	Start(ctx context.Context) error
	WaitForTargets(ctx context.Context, timeout time.Duration) (*Targets, error)
	Stop()
}

// New creates a Server that will run the binary at path with the repository
// root as its working directory.
func New(log logrus.FieldLogger, binary, root string) Server {
	return &testServer{
		log:    log.WithField("component", "server"),
		binary: binary,
		root:   root,
		ready:  make(chan struct{}),
	}
}

type testServer struct {
	log    logrus.FieldLogger
	binary string
	root   string

	cmd       *exec.Cmd
	startedAt time.Time

	mu         sync.Mutex
	httpURL    string
	grpcTarget string
	stderrTail []string
	exitErr    error

	ready     chan struct{}
	readyOnce sync.Once
}

func (s *testServer) Start(ctx context.Context) error {
	s.log.Info("Starting wrkr-testserver")

	// Port 0 lets the kernel pick free ports; the readiness lines tell us
	// what it chose.
	cmd := exec.CommandContext(ctx, s.binary, "--bind", "127.0.0.1:0")
	cmd.Dir = s.root

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("creating stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return &Error{Message: fmt.Sprintf("starting wrkr-testserver: %v", err)}
	}

	s.cmd = cmd
	s.startedAt = time.Now()

	// Keep draining stdout after readiness: if the server logs under load
	// and nothing reads the pipe, it fills and blocks the server.
	go func() {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			s.consumeStdoutLine(scanner.Text())
		}
	}()

	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			s.appendStderrTail(scanner.Text())
		}
	}()

	go func() {
		err := cmd.Wait()

		s.mu.Lock()
		s.exitErr = err
		s.mu.Unlock()

		s.signalReady()
	}()

	return nil
}

func (s *testServer) WaitForTargets(ctx context.Context, timeout time.Duration) (*Targets, error) {
	if timeout <= 0 {
		return nil, &Error{Message: "timeout must be > 0"}
	}

	select {
	case <-s.ready:
	case <-time.After(timeout):
		return nil, &Error{Message: fmt.Sprintf(
			"timed out waiting for HTTP_URL/GRPC_URL from testserver:\n  elapsed_s: %.3f\n--- stderr (tail) ---\n%s\n",
			time.Since(s.startedAt).Seconds(), s.stderrTailText(),
		)}
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpURL == "" || s.grpcTarget == "" {
		return nil, &Error{Message: fmt.Sprintf(
			"testserver exited early:\n  error: %v\n  elapsed_s: %.3f\n--- stderr (tail) ---\n%s\n",
			s.exitErr, time.Since(s.startedAt).Seconds(), s.stderrTailLocked(),
		)}
	}

	s.log.WithFields(logrus.Fields{
		"http": s.httpURL,
		"grpc": s.grpcTarget,
	}).Info("Testserver ready")

	return &Targets{HTTPURL: s.httpURL, GRPCTarget: s.grpcTarget}, nil
}

func (s *testServer) Stop() {
	if s.cmd == nil || s.cmd.Process == nil {
		return
	}

	s.log.Info("Stopping wrkr-testserver")

	_ = s.cmd.Process.Kill()
}

func (s *testServer) consumeStdoutLine(line string) {
	s.mu.Lock()

	switch {
	case strings.HasPrefix(line, "HTTP_URL="):
		s.httpURL = strings.TrimSpace(strings.TrimPrefix(line, "HTTP_URL="))
	case strings.HasPrefix(line, "GRPC_URL="):
		s.grpcTarget = strings.TrimSpace(strings.TrimPrefix(line, "GRPC_URL="))
	}

	haveBoth := s.httpURL != "" && s.grpcTarget != ""
	s.mu.Unlock()

	if haveBoth {
		s.signalReady()
	}
}

func (s *testServer) signalReady() {
	s.readyOnce.Do(func() {
		close(s.ready)
	})
}

func (s *testServer) appendStderrTail(line string) {
	if line == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stderrTail = append(s.stderrTail, line)
	if len(s.stderrTail) > stderrTailMax {
		s.stderrTail = s.stderrTail[len(s.stderrTail)-stderrTailMax:]
	}
}

func (s *testServer) stderrTailText() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stderrTailLocked()
}

func (s *testServer) stderrTailLocked() string {
	return strings.Join(s.stderrTail, "\n")
}
