package server

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

// fakeServer writes a shell script standing in for wrkr-testserver.
func fakeServer(t *testing.T, script string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fake-testserver")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))

	return path
}

func TestWaitForTargets(t *testing.T) {
	t.Parallel()

	bin := fakeServer(t, `
echo "HTTP_URL=http://127.0.0.1:8080"
echo "GRPC_URL=127.0.0.1:50051"
sleep 5
`)

	srv := New(testLogger(), bin, t.TempDir())
	require.NoError(t, srv.Start(context.Background()))

	defer srv.Stop()

	targets, err := srv.WaitForTargets(context.Background(), 5*time.Second)
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:8080", targets.HTTPURL)
	assert.Equal(t, "127.0.0.1:50051", targets.GRPCTarget)
}

func TestWaitForTargetsIgnoresOtherLines(t *testing.T) {
	t.Parallel()

	bin := fakeServer(t, `
echo "starting up"
echo "HTTP_URL= http://127.0.0.1:9090 "
echo "unrelated"
echo "GRPC_URL=127.0.0.1:9091"
sleep 5
`)

	srv := New(testLogger(), bin, t.TempDir())
	require.NoError(t, srv.Start(context.Background()))

	defer srv.Stop()

	targets, err := srv.WaitForTargets(context.Background(), 5*time.Second)
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:9090", targets.HTTPURL)
	assert.Equal(t, "127.0.0.1:9091", targets.GRPCTarget)
}

func TestWaitForTargetsEarlyExit(t *testing.T) {
	t.Parallel()

	bin := fakeServer(t, `
echo "bind failed: address in use" >&2
exit 1
`)

	srv := New(testLogger(), bin, t.TempDir())
	require.NoError(t, srv.Start(context.Background()))

	defer srv.Stop()

	_, err := srv.WaitForTargets(context.Background(), 5*time.Second)
	require.Error(t, err)

	var srvErr *Error
	require.ErrorAs(t, err, &srvErr)
	assert.Contains(t, err.Error(), "exited early")
	assert.Contains(t, err.Error(), "bind failed: address in use")
}

func TestWaitForTargetsTimeout(t *testing.T) {
	t.Parallel()

	bin := fakeServer(t, `
echo "still warming up" >&2
sleep 10
`)

	srv := New(testLogger(), bin, t.TempDir())
	require.NoError(t, srv.Start(context.Background()))

	defer srv.Stop()

	_, err := srv.WaitForTargets(context.Background(), 300*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestWaitForTargetsRejectsZeroTimeout(t *testing.T) {
	t.Parallel()

	srv := New(testLogger(), "/bin/true", t.TempDir())

	_, err := srv.WaitForTargets(context.Background(), 0)
	require.Error(t, err)
}
