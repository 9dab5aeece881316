package parse

import (
	"strconv"
	"strings"
)

const wrkrLegacyPrefix = "rps:"

// ParseWrkrRPS extracts the requests-per-second figure from wrkr output.
//
// NDJSON progress output (`wrkr --output json`) takes priority when present.
// Otherwise stdout and then stderr are tried against the text dialects:
//
//  1. legacy "rps: 1234" lines
//  2. k6-style summary lines with a parenthesized rate token, preferring
//     grpc_reqs over http_reqs over iterations (gRPC scripts may also print a
//     zero http_reqs line)
func ParseWrkrRPS(stdout, stderr string) (Rps, error) {
	js, err := TryParseJSONSummary(stdout, stderr)
	if err != nil {
		return Rps{}, err
	}
	if js != nil {
		return rpsOrError(js.RPS, "wrkr")
	}

	if rps, textErr := parseWrkrRPSText(stdout); textErr == nil {
		return rps, nil
	}

	rps, textErr := parseWrkrRPSText(stderr)
	if textErr != nil {
		return Rps{}, diagError("wrkr", textErr, stdout, stderr)
	}

	return rps, nil
}

func parseWrkrRPSText(text string) (Rps, error) {
	for _, raw := range splitLines(text) {
		line := strings.TrimSpace(raw)
		if !strings.HasPrefix(line, wrkrLegacyPrefix) {
			continue
		}

		rest := strings.TrimSpace(strings.TrimPrefix(line, wrkrLegacyPrefix))
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return Rps{}, errorf("failed to parse wrkr RPS (missing token after %q)", wrkrLegacyPrefix)
		}

		v, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return Rps{}, errorf("failed to parse wrkr RPS (invalid float token: %q)", fields[0])
		}

		return rpsOrError(v, "wrkr")
	}

	var grpcRate, httpRate, iterRate *float64

	for _, line := range splitLines(text) {
		switch {
		case strings.Contains(line, "grpc_reqs"):
			if r, ok := parseParenRateToken(line); ok {
				grpcRate = &r
			}
		case strings.Contains(line, "http_reqs"):
			if r, ok := parseParenRateToken(line); ok {
				httpRate = &r
			}
		case strings.Contains(line, "iterations"):
			if r, ok := parseParenRateToken(line); ok {
				iterRate = &r
			}
		}
	}

	for _, rate := range []*float64{grpcRate, httpRate, iterRate} {
		if rate != nil {
			return rpsOrError(*rate, "wrkr")
		}
	}

	return Rps{}, errorf("failed to parse wrkr RPS")
}

// parseParenRateToken extracts the rate from a parenthesized token like:
//
//	http_reqs...................: 1085653 (217130.60000/s)
func parseParenRateToken(line string) (float64, bool) {
	start := strings.Index(line, "(")
	if start < 0 {
		return 0, false
	}

	end := strings.Index(line[start+1:], ")")
	if end < 0 {
		return 0, false
	}

	inside := strings.TrimSpace(line[start+1 : start+1+end])
	number, ok := strings.CutSuffix(inside, "/s")
	if !ok {
		return 0, false
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(number), 64)
	if err != nil {
		return 0, false
	}

	return v, true
}
