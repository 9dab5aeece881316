package parse

import (
	"regexp"
	"strconv"
	"strings"
)

const k6RequestFailedMarker = `msg="Request Failed"`

var k6PercentRe = regexp.MustCompile(`[0-9]+(\.[0-9]+)?%`)

// ParseK6HTTPRPS extracts the requests-per-second figure from k6 HTTP output.
//
// Per stream (stdout, then stderr), in preference order:
//
//  1. an http_reqs line carrying a "<number>/s" token
//  2. an iterations line with the same token shape (the perf scripts issue one
//     request per iteration)
//  3. a live-progress line "running (02.0s), ... 155325 complete and 0
//     interrupted iterations", from which RPS is derived as complete/seconds
func ParseK6HTTPRPS(stdout, stderr string) (Rps, error) {
	if rps, err := parseK6HTTPRPSText(stdout); err == nil {
		return rps, nil
	}

	rps, err := parseK6HTTPRPSText(stderr)
	if err != nil {
		return Rps{}, diagError("k6", err, stdout, stderr)
	}

	return rps, nil
}

func parseK6HTTPRPSText(text string) (Rps, error) {
	lines := splitLines(text)

	for _, line := range lines {
		if !strings.Contains(line, "http_reqs") {
			continue
		}
		if rate, ok := parseSlashSToken(line); ok {
			return rpsOrError(rate, "k6")
		}
	}

	for _, line := range lines {
		if !strings.Contains(line, "iterations") {
			continue
		}
		if rate, ok := parseSlashSToken(line); ok {
			return rpsOrError(rate, "k6")
		}
	}

	for _, line := range lines {
		if rate, ok := parseK6ProgressRPS(line); ok {
			return rpsOrError(rate, "k6")
		}
	}

	return Rps{}, errorf("failed to parse k6 http RPS")
}

// ParseK6GRPCRPS extracts the requests-per-second figure from k6 gRPC output.
//
// Accepts grpc_reqs and iterations lines carrying a "<number>/s" token. Some
// k6 builds only print http_reqs, so the HTTP dialect is a full fallback.
func ParseK6GRPCRPS(stdout, stderr string) (Rps, error) {
	if rps, err := parseK6GRPCRPSText(stdout); err == nil {
		return rps, nil
	}

	rps, err := parseK6GRPCRPSText(stderr)
	if err != nil {
		return Rps{}, diagError("k6", err, stdout, stderr)
	}

	return rps, nil
}

func parseK6GRPCRPSText(text string) (Rps, error) {
	for _, line := range splitLines(text) {
		if !strings.Contains(line, "grpc_reqs") && !strings.Contains(line, "iterations") {
			continue
		}
		if rate, ok := parseSlashSToken(line); ok {
			return rpsOrError(rate, "k6")
		}
	}

	return parseK6HTTPRPSText(text)
}

// ParseK6HTTPReqFailedRate returns the http_req_failed percentage as a
// fraction in [0, 1]. The second return is false when the metric line is
// absent; absence is expected and not an error.
func ParseK6HTTPReqFailedRate(stdout, stderr string) (float64, bool) {
	return parseK6ReqFailedRate("http_req_failed", stdout, stderr)
}

// ParseK6GRPCReqFailedRate returns the grpc_req_failed percentage as a
// fraction in [0, 1], falling back to http_req_failed for builds/scripts that
// do not emit the gRPC-named metric.
func ParseK6GRPCReqFailedRate(stdout, stderr string) (float64, bool) {
	if rate, ok := parseK6ReqFailedRate("grpc_req_failed", stdout, stderr); ok {
		return rate, true
	}
	return parseK6ReqFailedRate("http_req_failed", stdout, stderr)
}

func parseK6ReqFailedRate(metric, stdout, stderr string) (float64, bool) {
	if rate, ok := parseK6ReqFailedRateText(metric, stdout); ok {
		return rate, true
	}
	return parseK6ReqFailedRateText(metric, stderr)
}

// parseK6ReqFailedRateText locates the metric line and extracts the first
// percentage token. Typical line:
//
//	http_req_failed..............: 0.15% ✓ 123 ✗ 4
func parseK6ReqFailedRateText(metric, text string) (float64, bool) {
	for _, raw := range splitLines(text) {
		line := strings.TrimSpace(raw)
		if !strings.Contains(line, metric) {
			continue
		}

		m := k6PercentRe.FindString(line)
		if m == "" {
			return 0, false
		}

		pct, err := strconv.ParseFloat(strings.TrimSuffix(m, "%"), 64)
		if err != nil || pct < 0 {
			return 0, false
		}

		return pct / 100.0, true
	}

	return 0, false
}

// CountK6RequestFailedWarnings counts occurrences of k6's
// `msg="Request Failed"` warning across both streams. Any nonzero count is
// treated as a correctness failure by the caller.
func CountK6RequestFailedWarnings(stdout, stderr string) int {
	return strings.Count(stdout, k6RequestFailedMarker) + strings.Count(stderr, k6RequestFailedMarker)
}

// parseSlashSToken finds a whitespace-delimited token matching ".../s" and
// parses the number, accepting SI suffixes. Handles tokens like:
//
//	217130.60/s
//	(217130.60000/s)
//	12.3k/s
func parseSlashSToken(line string) (float64, bool) {
	for _, raw := range strings.Fields(line) {
		token := strings.Trim(raw, "(),")

		number, ok := strings.CutSuffix(token, "/s")
		if !ok {
			continue
		}

		if v, parsed := ParseSIFloat(number); parsed {
			return v, true
		}
	}

	return 0, false
}

// ParseSIFloat parses a float that may carry an SI suffix used by some k6
// builds: k=10^3, m/M=10^6, g/G=10^9 (case-insensitive).
func ParseSIFloat(token string) (float64, bool) {
	t := strings.TrimSpace(token)
	if t == "" {
		return 0, false
	}

	mul := 1.0
	switch t[len(t)-1] {
	case 'k', 'K':
		t, mul = t[:len(t)-1], 1e3
	case 'm', 'M':
		t, mul = t[:len(t)-1], 1e6
	case 'g', 'G':
		t, mul = t[:len(t)-1], 1e9
	}

	v, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, false
	}

	return v * mul, true
}

// parseK6ProgressRPS derives RPS from a k6 live-progress line:
//
//	running (02.0s), 000/256 VUs, 155325 complete and 0 interrupted iterations
func parseK6ProgressRPS(line string) (float64, bool) {
	s := strings.TrimSpace(line)
	if !strings.HasPrefix(s, "running (") {
		return 0, false
	}
	if !strings.Contains(s, " complete") || !strings.Contains(s, "iterations") {
		return 0, false
	}

	seconds, ok := parseK6RunningSeconds(s)
	if !ok || seconds <= 0 {
		return 0, false
	}

	completed, ok := parseK6CompletedIterations(s)
	if !ok {
		return 0, false
	}

	return float64(completed) / seconds, true
}

func parseK6RunningSeconds(line string) (float64, bool) {
	rest := strings.TrimPrefix(line, "running (")

	end := strings.Index(rest, ")")
	if end < 0 {
		return 0, false
	}

	inside := strings.TrimSpace(rest[:end])
	number, ok := strings.CutSuffix(inside, "s")
	if !ok {
		return 0, false
	}

	v, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, false
	}

	return v, true
}

// parseK6CompletedIterations finds the token immediately before the word
// "complete" and parses it as an integer, tolerating comma grouping.
func parseK6CompletedIterations(line string) (uint64, bool) {
	prev := ""
	for _, tok := range strings.Fields(line) {
		if tok == "complete" {
			if prev == "" {
				return 0, false
			}

			n := strings.ReplaceAll(strings.TrimSuffix(prev, ","), ",", "")
			v, err := strconv.ParseUint(n, 10, 64)
			if err != nil {
				return 0, false
			}

			return v, true
		}
		prev = tok
	}

	return 0, false
}
