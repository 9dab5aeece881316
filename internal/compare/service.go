package compare

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/perf-compare/internal/config"
	"github.com/ethpandaops/perf-compare/internal/execx"
	"github.com/ethpandaops/perf-compare/internal/format"
	"github.com/ethpandaops/perf-compare/internal/gate"
	"github.com/ethpandaops/perf-compare/internal/output"
	"github.com/ethpandaops/perf-compare/internal/parse"
	"github.com/ethpandaops/perf-compare/internal/server"
	"github.com/ethpandaops/perf-compare/internal/tools"
)

const serverReadyTimeout = 5 * time.Second

// Mode selects which case groups a run executes. The cross-protocol gate
// needs both groups, so it only applies in ModeAll.
type Mode int

const (
	ModeAll Mode = iota
	ModeHTTPOnly
	ModeGRPCOnly
)

// Overall is the aggregate result of a full comparison run.
type Overall struct {
	Failures int
}

// OK reports whether every case and gate passed.
func (o Overall) OK() bool {
	return o.Failures == 0
}

// Service orchestrates a full comparison run.
type Service struct {
	log    logrus.FieldLogger
	cfg    *config.Config
	runner execx.Runner
	fmtr   output.Formatter

	// newServer is swappable for tests.
	newServer func(log logrus.FieldLogger, binary, root string) server.Server
}

// NewService creates the run orchestrator.
func NewService(log logrus.FieldLogger, cfg *config.Config, runner execx.Runner, fmtr output.Formatter) *Service {
	return &Service{
		log:       log.WithField("component", "compare"),
		cfg:       cfg,
		runner:    runner,
		fmtr:      fmtr,
		newServer: server.New,
	}
}

// Run executes the whole comparison: optional builds, tool detection,
// testserver startup, all HTTP and gRPC cases, and the cross-protocol gate.
// Case and gate failures accumulate into Overall; only failures that prevent
// the run itself return an error.
func (s *Service) Run(ctx context.Context, mode Mode) (*Overall, error) {
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}

	if s.cfg.Tuning.Build {
		if err := BuildBinaries(ctx, s.runner, BuildPlan{
			Root:   s.cfg.Root,
			Native: s.cfg.Tuning.Native,
		}, s.fmtr); err != nil {
			return nil, err
		}
	}

	tp, err := tools.Detect(s.log, s.cfg.Root, s.cfg.Requirements)
	if err != nil {
		return nil, err
	}

	httpCases, grpcCases, err := s.resolveCases()
	if err != nil {
		return nil, err
	}

	switch mode {
	case ModeHTTPOnly:
		grpcCases = nil
	case ModeGRPCOnly:
		httpCases = nil
	case ModeAll:
	}

	srv := s.newServer(s.log, tp.Testserver, s.cfg.Root)
	if err := srv.Start(ctx); err != nil {
		return nil, err
	}

	defer srv.Stop()

	targets, err := srv.WaitForTargets(ctx, serverReadyTimeout)
	if err != nil {
		return nil, err
	}

	overall := &Overall{}

	var (
		failureSummary []string
		caseSummaries  [][]string

		helloWrkRPS      *parse.Rps
		grpcFirstWrkrRPS *parse.Rps
	)

	if len(httpCases) > 0 {
		s.fmtr.PrintPhase("HTTP cases")
	}

	for i, c := range httpCases {
		outcome, err := s.RunHTTPCase(ctx, tp, targets.HTTPURL, c)
		if err != nil {
			return nil, err
		}

		overall.Failures += outcome.Failures

		for _, msg := range outcome.FailureMessages {
			failureSummary = append(failureSummary, fmt.Sprintf("HTTP %s: %s", c.Title, msg))
		}

		caseSummaries = append(caseSummaries, outcome.SummaryLines)

		// Keep wrk RPS for hello to power the cross-protocol gate.
		if i == 0 {
			helloWrkRPS = outcome.WrkRPS
		}
	}

	if len(grpcCases) > 0 {
		s.fmtr.PrintPhase("gRPC cases")
	}

	for i, c := range grpcCases {
		outcome, err := s.RunGRPCCase(ctx, tp, targets.GRPCTarget, c)
		if err != nil {
			return nil, err
		}

		overall.Failures += outcome.Failures

		for _, msg := range outcome.FailureMessages {
			failureSummary = append(failureSummary, fmt.Sprintf("gRPC %s: %s", c.Title, msg))
		}

		caseSummaries = append(caseSummaries, outcome.SummaryLines)

		if i == 0 {
			grpcFirstWrkrRPS = outcome.WrkrRPS
		}
	}

	if msg := s.crossProtocolGate(grpcFirstWrkrRPS, helloWrkRPS); msg != "" {
		overall.Failures++

		failureSummary = append(failureSummary, "cross-protocol: "+msg)
	}

	s.fmtr.PrintOverall(overall.Failures)
	s.printConditions(tp, targets)
	s.fmtr.PrintSummaryBlocks(caseSummaries)
	s.fmtr.PrintFailedBlock(failureSummary)
	s.printResultsTable(httpCases, grpcCases, caseSummaries)

	return overall, nil
}

// crossProtocolGate checks wrkr gRPC throughput against the wrk GET /hello
// baseline. Either rate missing skips the gate; a skip is not a failure.
func (s *Service) crossProtocolGate(grpcWrkrRPS, wrkHelloRPS *parse.Rps) string {
	verdict := gate.CrossProtocol(grpcWrkrRPS, wrkHelloRPS, s.cfg.Ratios.GrpcWrkrOverWrkHello)

	if verdict.Skipped {
		s.fmtr.PrintInfo("INFO: wrkr-grpc/wrk-hello ratio skipped (" + verdict.SkipReason + ")")

		return ""
	}

	ratioStr := gate.FormatRatio(verdict.ActualRatio)

	if verdict.TooSlow {
		msg := fmt.Sprintf(
			"FAIL: wrkr grpc is too slow vs wrk hello (ratio_ok=%v, ratio_actual=%s)",
			s.cfg.Ratios.GrpcWrkrOverWrkHello, ratioStr,
		)
		s.fmtr.PrintFail(msg)

		return msg
	}

	s.fmtr.PrintPass(fmt.Sprintf(
		"PASS: wrkr-grpc/wrk-hello >= %v (ratio_actual=%s)",
		s.cfg.Ratios.GrpcWrkrOverWrkHello, ratioStr,
	))

	return ""
}

func (s *Service) resolveCases() ([]HTTPCase, []GRPCCase, error) {
	if s.cfg.CasesFile == "" {
		return DefaultHTTPCases(s.cfg), DefaultGRPCCases(s.cfg), nil
	}

	cf, err := LoadCaseFile(
		s.cfg.CasesFile,
		s.cfg.Ratios.GetHello,
		s.cfg.Ratios.WrkrOverK6,
		s.cfg.Ratios.GrpcWrkrOverK6,
	)
	if err != nil {
		return nil, nil, err
	}

	return cf.HTTP, cf.GRPC, nil
}

func (s *Service) printConditions(tp *tools.Paths, targets *server.Targets) {
	lines := []string{
		"duration=" + s.cfg.Tuning.Duration,
		fmt.Sprintf("wrkr_vus=%d k6_vus=%d wrk_threads=%d wrk_connections=%d",
			s.cfg.Tuning.WrkrVUs, s.cfg.EffectiveK6VUs(),
			s.cfg.Tuning.WrkThreads, s.cfg.Tuning.WrkConnections),
		fmt.Sprintf("targets: http_url=%s grpc_url=%s", targets.HTTPURL, targets.GRPCTarget),
		"tool[wrkr]=" + tp.Wrkr,
		"tool[wrkr-testserver]=" + tp.Testserver,
		"tool[wrk]=" + orDash(tp.Wrk),
		"tool[k6]=" + orDash(tp.K6),
		"order: HTTP runs wrk -> wrkr -> k6; gRPC runs wrkr -> k6 (single shared testserver)",
	}
	s.fmtr.PrintConditions(lines)

	if s.cfg.Tuning.WrkrVUs != s.cfg.EffectiveK6VUs() {
		s.fmtr.PrintWarning("- WARNING: wrkr_vus != k6_vus; comparisons are not under equal VU counts")
	}

	if s.cfg.Tuning.WrkConnections != s.cfg.Tuning.WrkrVUs {
		s.fmtr.PrintWarning("- WARNING: wrk_connections != wrkr_vus; wrk load intensity differs from wrkr VUs")
	}
}

// printResultsTable condenses the per-case rps values into one table for
// quick scanning in CI logs.
func (s *Service) printResultsTable(httpCases []HTTPCase, grpcCases []GRPCCase, summaries [][]string) {
	rows := make([][]string, 0, len(summaries))

	for i, block := range summaries {
		title := ""

		switch {
		case i < len(httpCases):
			title = "HTTP " + httpCases[i].Title
		case i-len(httpCases) < len(grpcCases):
			title = "gRPC " + grpcCases[i-len(httpCases)].Title
		}

		rows = append(rows, []string{
			title,
			rpsFromSummary(block, "wrk "),
			rpsFromSummary(block, "wrkr"),
			rpsFromSummary(block, "k6  "),
		})
	}

	if len(rows) > 0 {
		s.fmtr.PrintResultsTable([]string{"case", "wrk rps", "wrkr rps", "k6 rps"}, rows)
	}
}

func rpsFromSummary(block []string, tool string) string {
	prefix := "  " + tool + ":"

	for _, line := range block {
		if !strings.HasPrefix(line, prefix) {
			continue
		}

		if _, value, found := strings.Cut(line, "rps="); found {
			return value
		}
	}

	return "-"
}

// runTool executes one load tool, streaming output at debug level.
func (s *Service) runTool(ctx context.Context, label string, spec execx.Spec) (*execx.Result, error) {
	s.fmtr.PrintStep(label)

	log := s.log.WithField("tool", label)

	spec.OnStdoutLine = func(line string) { log.Debug(line) }
	spec.OnStderrLine = func(line string) { log.Debug(line) }

	res, err := s.runner.Run(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("running %s: %w", label, err)
	}

	s.fmtr.PrintStep(fmt.Sprintf("%s done in %s", label, format.Duration(res.Duration)))

	return res, nil
}

func (s *Service) runWrkr(ctx context.Context, tp *tools.Paths, script, targetEnv string, env []string, outcome *CaseOutcome) (*execx.Result, bool, error) {
	res, err := s.runTool(ctx, "wrkr", execx.Spec{
		Argv: []string{
			tp.Wrkr, "run", script,
			"--output", "json",
			"--duration", s.cfg.Tuning.Duration,
			"--vus", strconv.Itoa(s.cfg.Tuning.WrkrVUs),
			"--env", targetEnv,
		},
		Dir: s.cfg.Root,
		Env: env,
	})
	if err != nil {
		return nil, false, err
	}

	ok := true

	if res.ExitCode != 0 {
		ok = false

		s.failCase(outcome, fmt.Sprintf("FAIL: wrkr exited with code %d", res.ExitCode))
	}

	return res, ok, nil
}

func (s *Service) runK6(ctx context.Context, tp *tools.Paths, script string, env []string, outcome *CaseOutcome) (*execx.Result, bool, error) {
	if tp.K6 == "" {
		s.fmtr.PrintStep("k6: skipped (not installed)")

		return nil, false, nil
	}

	res, err := s.runTool(ctx, "k6", execx.Spec{
		Argv: []string{
			tp.K6, "run",
			"--vus", strconv.Itoa(s.cfg.EffectiveK6VUs()),
			"--duration", s.cfg.Tuning.Duration,
			s.scriptPath(script),
		},
		Dir: s.cfg.Root,
		Env: env,
	})
	if err != nil {
		return nil, false, err
	}

	ok := true

	if res.ExitCode != 0 {
		ok = false

		s.failCase(outcome, fmt.Sprintf("FAIL: k6 exited with code %d", res.ExitCode))
	}

	return res, ok, nil
}

// parseWrkrOutputs pulls the NDJSON summary and RPS out of a finished wrkr
// run, tracking parse failures and failed checks as case failures.
func (s *Service) parseWrkrOutputs(res *execx.Result, outcome *CaseOutcome, ok *bool) (*parse.JSONSummary, *parse.Rps) {
	jsonSummary, jerr := parse.TryParseJSONSummary(res.Stdout, res.Stderr)
	if jerr != nil {
		jsonSummary = nil
	}

	var rpsPtr *parse.Rps

	rps, perr := parse.ParseWrkrRPS(res.Stdout, res.Stderr)
	if perr != nil {
		*ok = false

		s.failCase(outcome, fmt.Sprintf("FAIL: could not parse wrkr RPS (%s)", perr))
	} else {
		rpsPtr = &rps
	}

	if jsonSummary != nil && jsonSummary.ChecksFailedTotal > 0 {
		*ok = false

		s.failCase(outcome, fmt.Sprintf("FAIL: wrkr has failed checks (count=%d)", jsonSummary.ChecksFailedTotal))
	}

	return jsonSummary, rpsPtr
}

func (s *Service) failCase(outcome *CaseOutcome, msg string) {
	s.fmtr.PrintFail(msg)
	outcome.fail(msg)
}

func (s *Service) scriptPath(rel string) string {
	return filepath.Join(s.cfg.Root, rel)
}

func baselineName(label string) string {
	if _, after, found := strings.Cut(label, "/"); found {
		return strings.TrimSpace(after)
	}

	return strings.TrimSpace(label)
}

func trimGateLabel(label string) string {
	return strings.TrimSpace(label)
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}

	return v
}
