package compare

import (
	"context"
	"fmt"

	"github.com/ethpandaops/perf-compare/internal/execx"
	"github.com/ethpandaops/perf-compare/internal/gate"
	"github.com/ethpandaops/perf-compare/internal/parse"
	"github.com/ethpandaops/perf-compare/internal/tools"
)

// CaseOutcome carries per-case failure accounting plus the parsed rates the
// overall run needs (the cross-protocol gate reads WrkRPS/WrkrRPS).
type CaseOutcome struct {
	Failures        int
	FailureMessages []string
	SummaryLines    []string

	WrkRPS  *parse.Rps
	WrkrRPS *parse.Rps
	JSON    *parse.JSONSummary
}

func (o *CaseOutcome) fail(msg string) {
	o.Failures++
	o.FailureMessages = append(o.FailureMessages, msg)
}

// RunHTTPCase drives one HTTP case: wrk, then wrkr, then k6 against baseURL,
// parses each tool's RPS, applies the correctness checks, and gates wrkr
// against both baselines. Correctness failures suppress the affected gates; a
// skipped gate is not itself a failure.
func (s *Service) RunHTTPCase(ctx context.Context, tp *tools.Paths, baseURL string, c HTTPCase) (*CaseOutcome, error) {
	s.fmtr.PrintCase(c.Title)

	for _, script := range []string{c.Scripts.Wrkr, c.Scripts.Wrk, c.Scripts.K6} {
		if err := ensureScriptExists(s.cfg.Root, script); err != nil {
			return nil, err
		}
	}

	outcome := &CaseOutcome{}

	env := append([]string{"BASE_URL=" + baseURL}, noProxyEnvForLocalhost()...)

	var (
		wrkRes *execx.Result
		wrkOK  bool
	)

	if tp.Wrk != "" {
		wrkOK = true

		res, err := s.runTool(ctx, "wrk", execx.Spec{
			Argv: []string{
				tp.Wrk,
				fmt.Sprintf("-t%d", s.cfg.Tuning.WrkThreads),
				fmt.Sprintf("-c%d", s.cfg.Tuning.WrkConnections),
				fmt.Sprintf("-d%s", s.cfg.Tuning.Duration),
				"-s", s.scriptPath(c.Scripts.Wrk),
				baseURL,
			},
			Dir: s.cfg.Root,
		})
		if err != nil {
			return nil, err
		}

		wrkRes = res

		if res.ExitCode != 0 {
			wrkOK = false

			s.failCase(outcome, fmt.Sprintf("FAIL: wrk exited with code %d", res.ExitCode))
		} else {
			for _, e := range parse.DetectWrkErrors(res.Stdout) {
				wrkOK = false

				s.failCase(outcome, "FAIL: "+e)
			}
		}
	} else {
		s.fmtr.PrintStep("wrk: skipped (not installed)")
	}

	wrkrRes, wrkrOK, err := s.runWrkr(ctx, tp, c.Scripts.Wrkr, "BASE_URL="+baseURL, env, outcome)
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

	var wrkRPS *parse.Rps

	if wrkRes != nil {
		rps, perr := parse.ParseWrkRPS(wrkRes.Stdout)
		if perr != nil {
			wrkOK = false

			s.failCase(outcome, fmt.Sprintf("FAIL: could not parse wrk RPS (%s)", perr))
		} else {
			wrkRPS = &rps
		}
	}

	outcome.WrkRPS = wrkRPS

	var k6RPS *parse.Rps

	if k6Res != nil {
		rps, perr := parse.ParseK6HTTPRPS(k6Res.Stdout, k6Res.Stderr)
		if perr != nil {
			k6OK = false

			s.failCase(outcome, fmt.Sprintf("FAIL: could not parse k6 RPS (%s)", perr))
		} else {
			k6RPS = &rps
		}

		if rate, found := parse.ParseK6HTTPReqFailedRate(k6Res.Stdout, k6Res.Stderr); found && rate > 0 {
			k6OK = false

			s.failCase(outcome, fmt.Sprintf("FAIL: k6 has request failures (http_req_failed=%.3f%%)", rate*100))
		}

		if n := parse.CountK6RequestFailedWarnings(k6Res.Stdout, k6Res.Stderr); n > 0 {
			k6OK = false

			s.failCase(outcome, fmt.Sprintf("FAIL: k6 emitted Request Failed warnings (count=%d)", n))
		}
	}

	s.fmtr.PrintLine(httpSummaryLine(wrkRes, wrkrRes, k6Res, wrkRPS, wrkrRPS, k6RPS))

	outcome.SummaryLines = append(outcome.SummaryLines,
		"HTTP "+c.Title,
		fmt.Sprintf("  scripts: wrk=%s wrkr=%s k6=%s duration=%s",
			c.Scripts.Wrk, c.Scripts.Wrkr, c.Scripts.K6, s.cfg.Tuning.Duration),
		toolStatusLine("wrk ", tp.Wrk == "", wrkOK, wrkRPS),
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

	// Gate: wrkr vs wrk (inclusive).
	if wrkRPS != nil && wrkrRPS != nil && wrkOK && wrkrOK {
		s.applyGate(outcome, "wrkr/wrk", *wrkrRPS, *wrkRPS, c.RatioOverWrk, true)
	} else {
		outcome.SummaryLines = append(outcome.SummaryLines, "  gate wrkr/wrk: SKIP (correctness failed or missing tool)")
	}

	// Gate: wrkr vs k6 (strict).
	if k6RPS != nil && wrkrRPS != nil && k6OK && wrkrOK {
		s.applyGate(outcome, "wrkr/k6 ", *wrkrRPS, *k6RPS, c.RatioOverK6, false)
	} else {
		outcome.SummaryLines = append(outcome.SummaryLines, "  gate wrkr/k6 : SKIP (correctness failed or missing tool)")
	}

	return outcome, nil
}

// applyGate records a PASS/FAIL for one gate. The gate label is padded by the
// caller so summary lines stay aligned.
func (s *Service) applyGate(outcome *CaseOutcome, label string, candidate, baseline parse.Rps, ratio float64, inclusive bool) {
	actual := gate.ActualRatio(candidate, baseline)

	if gate.TooSlow(candidate, baseline, ratio, inclusive) {
		s.failCase(outcome, fmt.Sprintf(
			"FAIL: wrkr is too slow vs %s (ratio_ok=%v, ratio_actual=%s)",
			baselineName(label), ratio, gate.FormatRatio(actual),
		))
	} else {
		cmp := ">"
		if inclusive {
			cmp = ">="
		}

		s.fmtr.PrintPass(fmt.Sprintf(
			"PASS: %s %s %v (ratio_actual=%s)",
			trimGateLabel(label), cmp, ratio, gate.FormatRatio(actual),
		))
	}

	outcome.SummaryLines = append(outcome.SummaryLines, fmt.Sprintf(
		"  gate %s: ratio_ok=%v ratio_actual=%s", label, ratio, gate.FormatRatio(actual),
	))
}
