package parse

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	wrkRequestsPrefix     = "Requests/sec:"
	wrkNon2xxPrefix       = "Non-2xx or 3xx responses:"
	wrkSocketErrorsPrefix = "Socket errors:"
)

// ParseWrkRPS extracts the requests-per-second figure from wrk stdout.
//
// Expected line format:
//
//	Requests/sec: 12345.67
//
// Only the first matching line is used.
func ParseWrkRPS(stdout string) (Rps, error) {
	for _, raw := range splitLines(stdout) {
		line := strings.TrimSpace(raw)
		if !strings.HasPrefix(line, wrkRequestsPrefix) {
			continue
		}

		rest := strings.TrimSpace(strings.TrimPrefix(line, wrkRequestsPrefix))
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return Rps{}, errorf("failed to parse wrk RPS (missing token after %q)", wrkRequestsPrefix)
		}

		v, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return Rps{}, errorf("failed to parse wrk RPS (invalid float token: %q)", fields[0])
		}

		return rpsOrError(v, "wrk")
	}

	return Rps{}, errorf("failed to parse wrk RPS (no %q line found)", wrkRequestsPrefix)
}

// DetectWrkErrors scans wrk stdout for correctness issues that do not affect
// the process exit code. wrk often exits 0 even when requests failed, so the
// caller must treat any returned finding as a case failure.
//
// Detected signals:
//   - a nonzero "Non-2xx or 3xx responses" count
//   - nonzero counts on the "Socket errors" summary line
//
// An empty slice means no detected issues; this function never fails.
func DetectWrkErrors(stdout string) []string {
	var errs []string

	for _, raw := range splitLines(stdout) {
		line := strings.TrimSpace(raw)

		if strings.HasPrefix(line, wrkNon2xxPrefix) {
			rest := strings.TrimSpace(strings.TrimPrefix(line, wrkNon2xxPrefix))
			fields := strings.Fields(rest)
			if len(fields) == 0 {
				continue
			}

			n, err := strconv.Atoi(fields[0])
			if err != nil {
				continue
			}
			if n > 0 {
				errs = append(errs, fmt.Sprintf("wrk non-2xx/3xx responses: %d", n))
			}
		}

		if strings.HasPrefix(line, wrkSocketErrorsPrefix) {
			errs = append(errs, parseWrkSocketErrorsLine(line)...)
		}
	}

	return errs
}

// parseWrkSocketErrorsLine splits a line like
//
//	Socket errors: connect 0, read 12, write 0, timeout 0
//
// into one finding per nonzero kind.
func parseWrkSocketErrorsLine(line string) []string {
	var out []string

	rest := strings.TrimSpace(strings.TrimPrefix(line, wrkSocketErrorsPrefix))
	for _, part := range strings.Split(rest, ",") {
		toks := strings.Fields(strings.TrimSpace(part))
		if len(toks) != 2 {
			continue
		}

		n, err := strconv.Atoi(toks[1])
		if err != nil {
			continue
		}
		if n > 0 {
			out = append(out, fmt.Sprintf("wrk socket %s: %d", toks[0], n))
		}
	}

	return out
}
