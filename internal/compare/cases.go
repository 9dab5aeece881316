// Package compare orchestrates the benchmark comparison run: it drives the
// load tools against the shared testserver and applies the ratio gates.
package compare

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethpandaops/perf-compare/internal/config"
)

// CaseError reports a case that cannot be executed as designed, such as a
// missing script file.
type CaseError struct {
	Message string
}

func (e *CaseError) Error() string {
	return e.Message
}

// HTTPCaseScripts are the per-tool script paths, relative to the wrkr repo
// root under tools/perf/.
type HTTPCaseScripts struct {
	Wrk  string `yaml:"wrk"`
	Wrkr string `yaml:"wrkr"`
	K6   string `yaml:"k6"`
}

// HTTPCase drives one endpoint with wrk, wrkr and k6 and gates wrkr's RPS
// against both baselines.
type HTTPCase struct {
	Title   string          `yaml:"title"`
	Scripts HTTPCaseScripts `yaml:"scripts"`

	RatioOverWrk float64 `yaml:"ratio_over_wrk"`
	RatioOverK6  float64 `yaml:"ratio_over_k6"`
}

// GRPCCaseScripts are the per-tool script paths for a gRPC case.
type GRPCCaseScripts struct {
	Wrkr string `yaml:"wrkr"`
	K6   string `yaml:"k6"`
}

// GRPCCase drives one gRPC method with wrkr and k6.
type GRPCCase struct {
	Title   string          `yaml:"title"`
	Scripts GRPCCaseScripts `yaml:"scripts"`

	RatioOverK6 float64 `yaml:"ratio_over_k6"`
}

// DefaultHTTPCases returns the built-in HTTP case set.
func DefaultHTTPCases(cfg *config.Config) []HTTPCase {
	return []HTTPCase{
		{
			Title: "GET /hello",
			Scripts: HTTPCaseScripts{
				Wrk:  "tools/perf/wrk_hello.lua",
				Wrkr: "tools/perf/wrkr_hello.lua",
				K6:   "tools/perf/k6_hello.js",
			},
			RatioOverWrk: cfg.Ratios.GetHello,
			RatioOverK6:  cfg.Ratios.WrkrOverK6,
		},
		{
			Title: "POST /echo (json + checks)",
			Scripts: HTTPCaseScripts{
				Wrk:  "tools/perf/wrk_post_json.lua",
				Wrkr: "tools/perf/wrkr_post_json.lua",
				K6:   "tools/perf/k6_post_json.js",
			},
			RatioOverWrk: cfg.Ratios.PostJSON,
			RatioOverK6:  cfg.Ratios.WrkrOverK6,
		},
		{
			Title: "POST /analytics/aggregate (wfb json + checks)",
			Scripts: HTTPCaseScripts{
				Wrk:  "tools/perf/wrk_wfb_json_aggregate.lua",
				Wrkr: "tools/perf/wrkr_wfb_json_aggregate.lua",
				K6:   "tools/perf/k6_wfb_json_aggregate.js",
			},
			RatioOverWrk: cfg.Ratios.WfbJSONAggregate,
			RatioOverK6:  cfg.Ratios.WrkrOverK6,
		},
	}
}

// DefaultGRPCCases returns the built-in gRPC case set. The first case also
// feeds the cross-protocol gate.
func DefaultGRPCCases(cfg *config.Config) []GRPCCase {
	return []GRPCCase{
		{
			Title: "gRPC Echo (plaintext)",
			Scripts: GRPCCaseScripts{
				Wrkr: "tools/perf/wrkr_grpc_plaintext.lua",
				K6:   "tools/perf/k6_grpc_plaintext.js",
			},
			RatioOverK6: cfg.Ratios.GrpcWrkrOverK6,
		},
		{
			Title: "gRPC AggregateOrders (wfb)",
			Scripts: GRPCCaseScripts{
				Wrkr: "tools/perf/wfb_grpc_aggregate.lua",
				K6:   "tools/perf/k6_wfb_grpc_aggregate.js",
			},
			RatioOverK6: cfg.Ratios.WfbGrpcAggregateWrkrOverK6,
		},
	}
}

// ensureScriptExists validates early to avoid confusing tool failures later.
func ensureScriptExists(root, relPath string) error {
	p := filepath.Join(root, relPath)
	if _, err := os.Stat(p); err != nil {
		return &CaseError{Message: fmt.Sprintf("missing script file: %s", p)}
	}

	return nil
}
