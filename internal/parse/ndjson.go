package parse

import (
	"encoding/json"
	"io"
	"math"
	"strings"
)

// JSONSummary is the metric bundle extracted from wrkr NDJSON output.
//
// `wrkr --output json` emits kind="progress" objects during the run and a
// final kind="summary" object at completion. The last progress object (rates)
// is combined with the summary object (final totals and latency percentiles)
// when one exists; with only a progress object, totals and latency fall back
// to the progress object's flat fields.
type JSONSummary struct {
	ElapsedSecs   int
	TotalRequests int
	RPS           float64

	ChecksFailedTotal int

	LatencyMeanMs *float64
	LatencyP50Ms  *int
	LatencyP90Ms  *int
	LatencyP99Ms  *int
	LatencyMaxMs  *int

	BytesReceivedPerSec *int
	BytesSentPerSec     *int
}

// TryParseJSONSummary scans both streams for wrkr NDJSON objects.
//
// Returns (nil, nil) when no JSON object lines are present at all; the
// caller's fallback is plain-text parsing. Returns an error when JSON was
// seen but no progress/summary object matched, or when a matched object
// violates the expected field types.
//
// Within the scan the last matching object of each kind wins: progress and
// summary lines are running tallies and later lines supersede earlier ones.
func TryParseJSONSummary(stdout, stderr string) (*JSONSummary, error) {
	var lastProgress, lastSummary map[string]any
	sawJSON := false

	for _, text := range []string{stdout, stderr} {
		for _, raw := range splitLines(text) {
			obj := tryParseJSONObjectLine(raw)
			if obj == nil {
				continue
			}
			sawJSON = true

			kind, _ := obj["kind"].(string)
			switch {
			case kind == "progress" || (obj["kind"] == nil && hasKey(obj, "elapsed_secs") && hasKey(obj, "total_requests")):
				lastProgress = obj
			case kind == "summary" || (obj["kind"] == nil && hasKey(obj, "totals") && hasKey(obj, "scenarios")):
				lastSummary = obj
			}
		}
	}

	if lastProgress == nil && lastSummary == nil {
		if !sawJSON {
			return nil, nil
		}
		cause := errorf("failed to parse wrkr JSON progress lines (no progress objects found)")
		return nil, diagError("wrkr-json", cause, stdout, stderr)
	}

	return mergeJSONSummary(lastProgress, lastSummary, stdout, stderr)
}

// tryParseJSONObjectLine parses a single NDJSON line into an object. Lines
// that do not start with '{', fail to parse, have trailing content, or decode
// to a non-object value are skipped: non-JSON lines are expected to be
// interleaved with the progress stream.
func tryParseJSONObjectLine(line string) map[string]any {
	s := strings.TrimSpace(line)
	if s == "" || !strings.HasPrefix(s, "{") {
		return nil
	}

	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}

	return obj
}

func hasKey(obj map[string]any, key string) bool {
	_, ok := obj[key]
	return ok
}

// mergeJSONSummary combines the retained progress record (required, supplies
// rates) with an optional summary record (overrides totals and latency).
func mergeJSONSummary(progress, summary map[string]any, stdout, stderr string) (*JSONSummary, error) {
	out, err := mergeJSONSummaryFields(progress, summary)
	if err != nil {
		return nil, diagError("wrkr-json", err, stdout, stderr)
	}

	if out.RPS < 0 {
		return nil, errorf("wrkr json: rps must be non-negative, got %v", out.RPS)
	}

	return out, nil
}

func mergeJSONSummaryFields(progress, summary map[string]any) (*JSONSummary, error) {
	if progress == nil {
		// RPS cannot be computed from the summary object alone (no rates there).
		return nil, errorf("wrkr json: missing progress line (kind=progress)")
	}

	elapsedSecs, err := jsonInt(progress, "elapsed_secs")
	if err != nil {
		return nil, err
	}

	rps, err := progressRPS(progress, elapsedSecs)
	if err != nil {
		return nil, err
	}

	bytesRx, err := jsonOptInt(progress, "bytes_received_per_sec")
	if err != nil {
		return nil, err
	}

	bytesTx, err := jsonOptInt(progress, "bytes_sent_per_sec")
	if err != nil {
		return nil, err
	}

	out := &JSONSummary{
		ElapsedSecs:         elapsedSecs,
		RPS:                 rps,
		BytesReceivedPerSec: bytesRx,
		BytesSentPerSec:     bytesTx,
	}

	if summary != nil {
		if err := fillTotalsFromSummary(out, summary); err != nil {
			return nil, err
		}
		return out, nil
	}

	if err := fillTotalsFromProgress(out, progress); err != nil {
		return nil, err
	}

	return out, nil
}

// progressRPS prefers the explicit average when the progress record carries
// one, then derives total/elapsed, then falls back to the instantaneous rate.
func progressRPS(progress map[string]any, elapsedSecs int) (float64, error) {
	avg, err := jsonOptFloat(progress, "req_per_sec_avg")
	if err != nil {
		return 0, err
	}
	if avg != nil {
		return *avg, nil
	}

	totalRequests, err := jsonInt(progress, "total_requests")
	if err != nil {
		return 0, err
	}

	if elapsedSecs > 0 {
		return float64(totalRequests) / float64(elapsedSecs), nil
	}

	instant, err := jsonOptFloat(progress, "requests_per_sec")
	if err != nil {
		return 0, err
	}
	if instant == nil {
		return 0, nil
	}

	return *instant, nil
}

// fillTotalsFromSummary reads final totals and per-scenario latency from the
// summary record. The summary's shape always takes priority over the progress
// record's flat fields.
func fillTotalsFromSummary(out *JSONSummary, summary map[string]any) error {
	totals, err := jsonObject(summary, "totals")
	if err != nil {
		return err
	}

	if out.TotalRequests, err = jsonInt(totals, "requests_total"); err != nil {
		return err
	}
	if out.ChecksFailedTotal, err = jsonInt(totals, "checks_failed_total"); err != nil {
		return err
	}

	scenarios, err := jsonList(summary, "scenarios")
	if err != nil {
		return err
	}

	// Best effort: latency comes from the first scenario when present.
	var latency map[string]any
	if len(scenarios) > 0 {
		if first, ok := scenarios[0].(map[string]any); ok {
			if lat, ok := first["latency_ms"].(map[string]any); ok {
				latency = lat
			}
		}
	}

	if latency == nil {
		return nil
	}

	if out.LatencyMeanMs, err = jsonOptFloat(latency, "mean"); err != nil {
		return err
	}

	for _, f := range []struct {
		key  string
		dest **int
	}{
		{"p50", &out.LatencyP50Ms},
		{"p90", &out.LatencyP90Ms},
		{"p99", &out.LatencyP99Ms},
		{"max", &out.LatencyMaxMs},
	} {
		v, err := jsonOptFloat(latency, f.key)
		if err != nil {
			return err
		}
		*f.dest = msRoundInt(v)
	}

	return nil
}

// fillTotalsFromProgress is the back-compat fallback for runs that never
// emitted a summary record: totals are required on the progress record,
// latency fields are optional.
func fillTotalsFromProgress(out *JSONSummary, progress map[string]any) error {
	var err error

	if out.TotalRequests, err = jsonInt(progress, "total_requests"); err != nil {
		return err
	}
	if out.ChecksFailedTotal, err = jsonInt(progress, "checks_failed_total"); err != nil {
		return err
	}

	if out.LatencyMeanMs, err = jsonOptFloat(progress, "latency_mean"); err != nil {
		return err
	}

	for _, f := range []struct {
		key  string
		dest **int
	}{
		{"latency_p50", &out.LatencyP50Ms},
		{"latency_p90", &out.LatencyP90Ms},
		{"latency_p99", &out.LatencyP99Ms},
		{"latency_max", &out.LatencyMaxMs},
	} {
		v, err := jsonOptInt(progress, f.key)
		if err != nil {
			return err
		}
		*f.dest = v
	}

	return nil
}

// msRoundInt rounds a millisecond value to the nearest integer; negative
// values are treated as absent.
func msRoundInt(v *float64) *int {
	if v == nil || *v < 0 {
		return nil
	}

	n := int(math.Round(*v))
	return &n
}
