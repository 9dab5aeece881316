package execx

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRunner() Runner {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return New(log)
}

func TestRunCapturesOutput(t *testing.T) {
	t.Parallel()

	r := newTestRunner()

	result, err := r.Run(context.Background(), Spec{
		Argv: []string{"sh", "-c", "echo out; echo err >&2"},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "out\n", result.Stdout)
	assert.Equal(t, "err\n", result.Stderr)
	assert.Positive(t, result.Duration)
}

func TestRunNonzeroExitIsData(t *testing.T) {
	t.Parallel()

	r := newTestRunner()

	result, err := r.Run(context.Background(), Spec{
		Argv: []string{"sh", "-c", "echo partial; exit 3"},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.ExitCode)
	assert.Equal(t, "partial\n", result.Stdout)
}

func TestRunLineCallbacks(t *testing.T) {
	t.Parallel()

	r := newTestRunner()

	var stdoutLines, stderrLines []string

	result, err := r.Run(context.Background(), Spec{
		Argv: []string{"sh", "-c", "echo one; echo two; echo three >&2"},
		OnStdoutLine: func(line string) {
			stdoutLines = append(stdoutLines, line)
		},
		OnStderrLine: func(line string) {
			stderrLines = append(stderrLines, line)
		},
	})
	require.NoError(t, err)
	require.Equal(t, 0, result.ExitCode)

	assert.Equal(t, []string{"one", "two"}, stdoutLines)
	assert.Equal(t, []string{"three"}, stderrLines)
}

func TestRunEnvAndDir(t *testing.T) {
	t.Parallel()

	r := newTestRunner()
	dir := t.TempDir()

	result, err := r.Run(context.Background(), Spec{
		Argv: []string{"sh", "-c", "echo \"$PERF_EXECX_TEST\"; pwd"},
		Dir:  dir,
		Env:  []string{"PERF_EXECX_TEST=hello"},
	})
	require.NoError(t, err)

	assert.Contains(t, result.Stdout, "hello\n")
	assert.Contains(t, result.Stdout, dir)
}

func TestRunMissingBinary(t *testing.T) {
	t.Parallel()

	r := newTestRunner()

	_, err := r.Run(context.Background(), Spec{
		Argv: []string{"/nonexistent/definitely-not-a-binary"},
	})
	require.Error(t, err)
}

func TestRunEmptyArgv(t *testing.T) {
	t.Parallel()

	r := newTestRunner()

	_, err := r.Run(context.Background(), Spec{})
	require.Error(t, err)
}
