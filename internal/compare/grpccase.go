package compare

import (
	"context"
	"fmt"

	"github.com/ethpandaops/perf-compare/internal/parse"
	"github.com/ethpandaops/perf-compare/internal/tools"
)

// RunGRPCCase drives one gRPC case: wrkr then k6 against grpcTarget. There is
// no wrk baseline for gRPC; the only gate here is wrkr vs k6 (strict).
func (s *Service) RunGRPCCase(ctx context.Context, tp *tools.Paths, grpcTarget string, c GRPCCase) (*CaseOutcome, error) {
	s.fmtr.PrintCase(c.Title)

	for _, script := range []string{c.Scripts.Wrkr, c.Scripts.K6} {
		if err := ensureScriptExists(s.cfg.Root, script); err != nil {
			return nil, err
		}
	}

	outcome := &CaseOutcome{}

	env := append([]string{"GRPC_TARGET=" + grpcTarget}, noProxyEnvForLocalhost()...)

	wrkrRes, wrkrOK, err := s.runWrkr(ctx, tp, c.Scripts.Wrkr, "GRPC_TARGET="+grpcTarget, env, outcome)
	if err != nil {
		return nil, err
	}

	k6Res, k6OK, err := s.runK6(ctx, tp, c.Scripts.K6, env, outcome)
	if err != nil {
		return nil, err
	}

	wrkrJSON, wrkrRPS := s.parseWrkrOutputs(wrkrRes, outcome, &wrkrOK)
	outcome.JSON = wrkrJSON
	outcome.WrkrRPS = wrkrRPS

	var k6RPS *parse.Rps

	if k6Res != nil {
		rps, perr := parse.ParseK6GRPCRPS(k6Res.Stdout, k6Res.Stderr)
		if perr != nil {
			k6OK = false

			s.failCase(outcome, fmt.Sprintf("FAIL: could not parse k6 RPS (%s)", perr))
		} else {
			k6RPS = &rps
		}

		if rate, found := parse.ParseK6GRPCReqFailedRate(k6Res.Stdout, k6Res.Stderr); found && rate > 0 {
			k6OK = false

			s.failCase(outcome, fmt.Sprintf("FAIL: k6 has request failures (grpc_req_failed=%.3f%%)", rate*100))
		}

		if n := parse.CountK6RequestFailedWarnings(k6Res.Stdout, k6Res.Stderr); n > 0 {
			k6OK = false

			s.failCase(outcome, fmt.Sprintf("FAIL: k6 emitted Request Failed warnings (count=%d)", n))
		}
	}

	s.fmtr.PrintLine(grpcSummaryLine(wrkrRes, k6Res, wrkrRPS, k6RPS))

	outcome.SummaryLines = append(outcome.SummaryLines,
		"gRPC "+c.Title,
		fmt.Sprintf("  scripts: wrkr=%s k6=%s duration=%s",
			c.Scripts.Wrkr, c.Scripts.K6, s.cfg.Tuning.Duration),
		toolStatusLine("wrkr", false, wrkrOK, wrkrRPS),
	)

	if wrkrJSON != nil {
		outcome.SummaryLines = append(outcome.SummaryLines, wrkrJSONSummaryLine(wrkrJSON))
	}

	if tp.K6 == "" {
		outcome.SummaryLines = append(outcome.SummaryLines, "  k6  : SKIP")
	} else {
		outcome.SummaryLines = append(outcome.SummaryLines, toolStatusLine("k6  ", false, k6OK, k6RPS))
	}

	if k6RPS != nil && wrkrRPS != nil && k6OK && wrkrOK {
		s.applyGate(outcome, "wrkr/k6 ", *wrkrRPS, *k6RPS, c.RatioOverK6, false)
	} else {
		outcome.SummaryLines = append(outcome.SummaryLines, "  gate wrkr/k6 : SKIP (correctness failed or missing tool)")
	}

	return outcome, nil
}
