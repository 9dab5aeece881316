package compare

import (
	"fmt"

	"github.com/ethpandaops/perf-compare/internal/execx"
	"github.com/ethpandaops/perf-compare/internal/format"
	"github.com/ethpandaops/perf-compare/internal/parse"
)

func fmtRSSMB(res *execx.Result) string {
	if res == nil {
		return "-"
	}

	return format.MBFromBytes(res.PeakRSSBytes)
}

// httpSummaryLine is the single-line RPS and peak-RSS recap printed after an
// HTTP case finishes.
func httpSummaryLine(wrkRes, wrkrRes, k6Res *execx.Result, wrkRPS, wrkrRPS, k6RPS *parse.Rps) string {
	return fmt.Sprintf(
		"summary: rps wrk=%s wrkr=%s k6=%s | max_rss_mb wrk=%s wrkr=%s k6=%s",
		format.RPS(wrkRPS), format.RPS(wrkrRPS), format.RPS(k6RPS),
		fmtRSSMB(wrkRes), fmtRSSMB(wrkrRes), fmtRSSMB(k6Res),
	)
}

func grpcSummaryLine(wrkrRes, k6Res *execx.Result, wrkrRPS, k6RPS *parse.Rps) string {
	return fmt.Sprintf(
		"summary: rps wrkr=%s k6=%s | max_rss_mb wrkr=%s k6=%s",
		format.RPS(wrkrRPS), format.RPS(k6RPS),
		fmtRSSMB(wrkrRes), fmtRSSMB(k6Res),
	)
}

func toolStatusLine(name string, skipped, ok bool, rps *parse.Rps) string {
	status := "OK"

	switch {
	case skipped:
		status = "SKIP"
	case !ok:
		status = "FAIL"
	}

	return fmt.Sprintf("  %s: %s rps=%s", name, status, format.RPS(rps))
}

func wrkrJSONSummaryLine(j *parse.JSONSummary) string {
	return fmt.Sprintf(
		"  wrkr json: p50=%sms p90=%sms p99=%sms max=%sms mean=%sms failed_checks=%d rx/s=%s tx/s=%s",
		format.OptInt(j.LatencyP50Ms), format.OptInt(j.LatencyP90Ms),
		format.OptInt(j.LatencyP99Ms), format.OptInt(j.LatencyMaxMs),
		format.OptMs(j.LatencyMeanMs), j.ChecksFailedTotal,
		format.OptInt(j.BytesReceivedPerSec), format.OptInt(j.BytesSentPerSec),
	)
}
