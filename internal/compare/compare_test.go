package compare

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/perf-compare/internal/config"
	"github.com/ethpandaops/perf-compare/internal/execx"
	"github.com/ethpandaops/perf-compare/internal/output"
	"github.com/ethpandaops/perf-compare/internal/tools"
)

// fakeRunner returns canned results keyed by the binary name in argv[0].
type fakeRunner struct {
	results map[string]*execx.Result
	calls   []string
}

func (f *fakeRunner) Run(_ context.Context, spec execx.Spec) (*execx.Result, error) {
	name := filepath.Base(spec.Argv[0])
	f.calls = append(f.calls, name)

	if res, ok := f.results[name]; ok {
		return res, nil
	}

	return &execx.Result{}, nil
}

func testService(t *testing.T, cfg *config.Config, runner execx.Runner) *Service {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	var w io.Writer = io.Discard
	if testing.Verbose() {
		w = os.Stdout
	}

	return NewService(log, cfg, runner, output.NewFormatter(w, output.NewRenderer(log)))
}

func caseWorkspace(t *testing.T) *config.Config {
	t.Helper()

	root := t.TempDir()
	perfDir := filepath.Join(root, "tools", "perf")
	require.NoError(t, os.MkdirAll(perfDir, 0o755))

	for _, name := range []string{
		"wrk_hello.lua", "wrkr_hello.lua", "k6_hello.js",
		"wrkr_grpc_plaintext.lua", "k6_grpc_plaintext.js",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(perfDir, name), []byte("-- stub\n"), 0o644))
	}

	return &config.Config{
		Root:   root,
		Tuning: config.DefaultTuning(),
		Ratios: config.DefaultRatios(),
	}
}

func helloCase(cfg *config.Config) HTTPCase {
	return DefaultHTTPCases(cfg)[0]
}

func grpcEchoCase(cfg *config.Config) GRPCCase {
	return DefaultGRPCCases(cfg)[0]
}

const (
	wrkStdout1000 = "Running 5s test @ http://127.0.0.1:8080\nRequests/sec:   1000.00\nTransfer/sec:   1.00MB\n"
	wrkrNDJSON    = `{"kind":"progress","elapsed_secs":5,"total_requests":7000,"req_per_sec_avg":1400.0,"requests_per_sec":1390.0,"latency_p99":4,"latency_mean":2.1,"checks_failed_total":0}` + "\n"
	k6Stdout800   = "  http_reqs......................: 4000    800.0/s\n"
)

func allTools() *tools.Paths {
	return &tools.Paths{
		Wrkr:       "/fake/wrkr",
		Testserver: "/fake/wrkr-testserver",
		Wrk:        "/fake/wrk",
		K6:         "/fake/k6",
	}
}

func TestRunHTTPCaseAllPass(t *testing.T) {
	t.Parallel()

	cfg := caseWorkspace(t)
	runner := &fakeRunner{results: map[string]*execx.Result{
		"wrk":  {Stdout: wrkStdout1000},
		"wrkr": {Stdout: wrkrNDJSON},
		"k6":   {Stdout: k6Stdout800},
	}}

	svc := testService(t, cfg, runner)

	outcome, err := svc.RunHTTPCase(context.Background(), allTools(), "http://127.0.0.1:8080", helloCase(cfg))
	require.NoError(t, err)

	assert.Zero(t, outcome.Failures)
	assert.Empty(t, outcome.FailureMessages)
	require.NotNil(t, outcome.WrkRPS)
	assert.InDelta(t, 1000.0, outcome.WrkRPS.Value(), 1e-9)
	require.NotNil(t, outcome.WrkrRPS)
	assert.InDelta(t, 1400.0, outcome.WrkrRPS.Value(), 1e-9)
	assert.Equal(t, []string{"wrk", "wrkr", "k6"}, runner.calls)
}

func TestRunHTTPCaseWrkGateFails(t *testing.T) {
	t.Parallel()

	cfg := caseWorkspace(t)

	// wrkr at 850 is below wrk*0.90 = 900, so the inclusive gate fails.
	runner := &fakeRunner{results: map[string]*execx.Result{
		"wrk":  {Stdout: wrkStdout1000},
		"wrkr": {Stdout: `{"kind":"progress","elapsed_secs":5,"total_requests":4250,"req_per_sec_avg":850.0,"requests_per_sec":850.0,"latency_p99":4,"latency_mean":2.1,"checks_failed_total":0}` + "\n"},
		"k6":   {Stdout: "  http_reqs......................: 1000    200.0/s\n"},
	}}

	svc := testService(t, cfg, runner)

	outcome, err := svc.RunHTTPCase(context.Background(), allTools(), "http://127.0.0.1:8080", helloCase(cfg))
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.Failures)
	require.Len(t, outcome.FailureMessages, 1)
	assert.Contains(t, outcome.FailureMessages[0], "too slow vs wrk")
	assert.Contains(t, outcome.FailureMessages[0], "ratio_actual=0.850")
}

func TestRunHTTPCaseNonzeroExitSuppressesGate(t *testing.T) {
	t.Parallel()

	cfg := caseWorkspace(t)
	runner := &fakeRunner{results: map[string]*execx.Result{
		"wrk":  {Stdout: wrkStdout1000, ExitCode: 1},
		"wrkr": {Stdout: wrkrNDJSON},
		"k6":   {Stdout: k6Stdout800},
	}}

	svc := testService(t, cfg, runner)

	outcome, err := svc.RunHTTPCase(context.Background(), allTools(), "http://127.0.0.1:8080", helloCase(cfg))
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.Failures)
	assert.Contains(t, outcome.FailureMessages[0], "wrk exited with code 1")

	joined := strings.Join(outcome.SummaryLines, "\n")
	assert.Contains(t, joined, "gate wrkr/wrk: SKIP")
}

func TestRunHTTPCaseSocketErrorsFailCase(t *testing.T) {
	t.Parallel()

	cfg := caseWorkspace(t)
	runner := &fakeRunner{results: map[string]*execx.Result{
		"wrk": {Stdout: wrkStdout1000 + "  Socket errors: connect 0, read 12, write 0, timeout 3\n"},
		"wrkr": {Stdout: wrkrNDJSON},
		"k6":   {Stdout: k6Stdout800},
	}}

	svc := testService(t, cfg, runner)

	outcome, err := svc.RunHTTPCase(context.Background(), allTools(), "http://127.0.0.1:8080", helloCase(cfg))
	require.NoError(t, err)

	assert.Equal(t, 2, outcome.Failures)

	joined := strings.Join(outcome.FailureMessages, "\n")
	assert.Contains(t, joined, "wrk socket read: 12")
	assert.Contains(t, joined, "wrk socket timeout: 3")
}

func TestRunHTTPCaseFailedChecks(t *testing.T) {
	t.Parallel()

	cfg := caseWorkspace(t)
	runner := &fakeRunner{results: map[string]*execx.Result{
		"wrk":  {Stdout: wrkStdout1000},
		"wrkr": {Stdout: `{"kind":"progress","elapsed_secs":5,"total_requests":7000,"req_per_sec_avg":1400.0,"requests_per_sec":1400.0,"latency_p99":4,"latency_mean":2.1,"checks_failed_total":7}` + "\n"},
		"k6":   {Stdout: k6Stdout800},
	}}

	svc := testService(t, cfg, runner)

	outcome, err := svc.RunHTTPCase(context.Background(), allTools(), "http://127.0.0.1:8080", helloCase(cfg))
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.Failures)
	assert.Contains(t, outcome.FailureMessages[0], "failed checks (count=7)")

	// Failed checks suppress both gates.
	joined := strings.Join(outcome.SummaryLines, "\n")
	assert.Contains(t, joined, "gate wrkr/wrk: SKIP")
	assert.Contains(t, joined, "gate wrkr/k6 : SKIP")
}

func TestRunHTTPCaseSkippedTools(t *testing.T) {
	t.Parallel()

	cfg := caseWorkspace(t)
	runner := &fakeRunner{results: map[string]*execx.Result{
		"wrkr": {Stdout: wrkrNDJSON},
	}}

	svc := testService(t, cfg, runner)

	tp := &tools.Paths{Wrkr: "/fake/wrkr", Testserver: "/fake/wrkr-testserver"}

	outcome, err := svc.RunHTTPCase(context.Background(), tp, "http://127.0.0.1:8080", helloCase(cfg))
	require.NoError(t, err)

	// Absent baselines skip gates without failing anything.
	assert.Zero(t, outcome.Failures)
	assert.Nil(t, outcome.WrkRPS)

	joined := strings.Join(outcome.SummaryLines, "\n")
	assert.Contains(t, joined, "wrk : SKIP")
	assert.Contains(t, joined, "k6  : SKIP")
	assert.Equal(t, []string{"wrkr"}, runner.calls)
}

func TestRunHTTPCaseUnparseableWrkr(t *testing.T) {
	t.Parallel()

	cfg := caseWorkspace(t)
	runner := &fakeRunner{results: map[string]*execx.Result{
		"wrk":  {Stdout: wrkStdout1000},
		"wrkr": {Stdout: "no rate here\n"},
		"k6":   {Stdout: k6Stdout800},
	}}

	svc := testService(t, cfg, runner)

	outcome, err := svc.RunHTTPCase(context.Background(), allTools(), "http://127.0.0.1:8080", helloCase(cfg))
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.Failures)
	assert.Contains(t, outcome.FailureMessages[0], "could not parse wrkr RPS")
	assert.Nil(t, outcome.WrkrRPS)
}

func TestRunHTTPCaseMissingScript(t *testing.T) {
	t.Parallel()

	cfg := caseWorkspace(t)
	require.NoError(t, os.Remove(filepath.Join(cfg.Root, "tools", "perf", "wrk_hello.lua")))

	svc := testService(t, cfg, &fakeRunner{})

	_, err := svc.RunHTTPCase(context.Background(), allTools(), "http://127.0.0.1:8080", helloCase(cfg))
	require.Error(t, err)

	var caseErr *CaseError
	require.ErrorAs(t, err, &caseErr)
	assert.Contains(t, caseErr.Message, "wrk_hello.lua")
}

func TestRunGRPCCasePass(t *testing.T) {
	t.Parallel()

	cfg := caseWorkspace(t)

	// Default gRPC gate is 2.00 and strict, so 1400 vs 600 passes.
	runner := &fakeRunner{results: map[string]*execx.Result{
		"wrkr": {Stdout: wrkrNDJSON},
		"k6":   {Stdout: "  grpc_reqs......................: 3000    600.0/s\n"},
	}}

	svc := testService(t, cfg, runner)

	outcome, err := svc.RunGRPCCase(context.Background(), allTools(), "127.0.0.1:50051", grpcEchoCase(cfg))
	require.NoError(t, err)

	assert.Zero(t, outcome.Failures)
	require.NotNil(t, outcome.WrkrRPS)
	assert.InDelta(t, 1400.0, outcome.WrkrRPS.Value(), 1e-9)
	assert.Equal(t, []string{"wrkr", "k6"}, runner.calls)
}

func TestRunGRPCCaseStrictGateEquality(t *testing.T) {
	t.Parallel()

	cfg := caseWorkspace(t)
	cfg.Ratios.GrpcWrkrOverK6 = 2.00

	// wrkr exactly at k6*2.00: strict gate fails on equality.
	runner := &fakeRunner{results: map[string]*execx.Result{
		"wrkr": {Stdout: `{"kind":"progress","elapsed_secs":5,"total_requests":6000,"req_per_sec_avg":1200.0,"requests_per_sec":1200.0,"latency_p99":4,"latency_mean":2.1,"checks_failed_total":0}` + "\n"},
		"k6":   {Stdout: "  grpc_reqs......................: 3000    600.0/s\n"},
	}}

	svc := testService(t, cfg, runner)

	outcome, err := svc.RunGRPCCase(context.Background(), allTools(), "127.0.0.1:50051", grpcEchoCase(cfg))
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.Failures)
	assert.Contains(t, outcome.FailureMessages[0], "too slow vs k6")
}

func TestRunGRPCCaseK6RequestFailures(t *testing.T) {
	t.Parallel()

	cfg := caseWorkspace(t)
	runner := &fakeRunner{results: map[string]*execx.Result{
		"wrkr": {Stdout: wrkrNDJSON},
		"k6": {Stdout: "  grpc_reqs......................: 3000    600.0/s\n" +
			"  grpc_req_failed................: 0.15%   ✓ 4         ✗ 2996\n"},
	}}

	svc := testService(t, cfg, runner)

	outcome, err := svc.RunGRPCCase(context.Background(), allTools(), "127.0.0.1:50051", grpcEchoCase(cfg))
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.Failures)
	assert.Contains(t, outcome.FailureMessages[0], "grpc_req_failed=0.150%")

	joined := strings.Join(outcome.SummaryLines, "\n")
	assert.Contains(t, joined, "gate wrkr/k6 : SKIP")
}

func TestRunGRPCCaseRequestFailedWarnings(t *testing.T) {
	t.Parallel()

	cfg := caseWorkspace(t)
	runner := &fakeRunner{results: map[string]*execx.Result{
		"wrkr": {Stdout: wrkrNDJSON},
		"k6": {
			Stdout: "  grpc_reqs......................: 3000    600.0/s\n",
			Stderr: `time="2026-08-29T00:00:00Z" level=warning msg="Request Failed" error="rpc error"` + "\n",
		},
	}}

	svc := testService(t, cfg, runner)

	outcome, err := svc.RunGRPCCase(context.Background(), allTools(), "127.0.0.1:50051", grpcEchoCase(cfg))
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.Failures)
	assert.Contains(t, outcome.FailureMessages[0], "Request Failed warnings (count=1)")
}
