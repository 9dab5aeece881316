package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/perf-compare/internal/compare"
	"github.com/ethpandaops/perf-compare/internal/config"
	"github.com/ethpandaops/perf-compare/internal/execx"
	"github.com/ethpandaops/perf-compare/internal/output"
)

var runFlags struct {
	root     string
	duration string
	cases    string

	wrkrVUs        int
	k6VUs          int
	wrkThreads     int
	wrkConnections int

	build      bool
	native     bool
	requireWrk bool
	requireK6  bool

	httpOnly bool
	grpcOnly bool

	ratioGetHello         float64
	ratioPostJSON         float64
	ratioWfbJSONAggregate float64
	ratioWrkrOverK6       float64
	ratioGrpcWrkrOverK6   float64
	ratioWfbGrpcAggregate float64
	ratioGrpcOverWrkHello float64
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full benchmark comparison",
	Long: `Builds the wrkr workspace binaries (unless --build=false), starts
wrkr-testserver, runs every HTTP and gRPC case with each available load tool,
and exits nonzero when any case or ratio gate fails.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := resolveRunConfig(cmd)
		if err != nil {
			return err
		}

		mode := compare.ModeAll

		switch {
		case runFlags.httpOnly && runFlags.grpcOnly:
			return fmt.Errorf("--http-only and --grpc-only are mutually exclusive")
		case runFlags.httpOnly:
			mode = compare.ModeHTTPOnly
		case runFlags.grpcOnly:
			mode = compare.ModeGRPCOnly
		}

		fmtr := output.NewFormatter(os.Stdout, output.NewRenderer(Logger))
		svc := compare.NewService(Logger, cfg, execx.New(Logger), fmtr)

		overall, err := svc.Run(cmd.Context(), mode)
		if err != nil {
			return fmt.Errorf("comparison run failed: %w", err)
		}

		if !overall.OK() {
			os.Exit(1)
		}

		return nil
	},
}

func init() {
	f := runCmd.Flags()

	f.StringVar(&runFlags.root, "root", "", "wrkr repository root (default $WRKR_ROOT or .)")
	f.StringVar(&runFlags.duration, "duration", "", "test duration per tool, e.g. 5s, 200ms, 1m")
	f.StringVar(&runFlags.cases, "cases", "", "YAML case file replacing the built-in case set")

	f.IntVar(&runFlags.wrkrVUs, "wrkr-vus", 0, "wrkr virtual users")
	f.IntVar(&runFlags.k6VUs, "k6-vus", 0, "k6 virtual users (default: same as wrkr)")
	f.IntVar(&runFlags.wrkThreads, "wrk-threads", 0, "wrk thread count")
	f.IntVar(&runFlags.wrkConnections, "wrk-connections", 0, "wrk connection count")

	f.BoolVar(&runFlags.build, "build", true, "cargo build release binaries before running")
	f.BoolVar(&runFlags.native, "native", true, "build with RUSTFLAGS=\"-C target-cpu=native\"")
	f.BoolVar(&runFlags.requireWrk, "require-wrk", false, "fail when wrk is not installed")
	f.BoolVar(&runFlags.requireK6, "require-k6", false, "fail when k6 is not installed")

	f.BoolVar(&runFlags.httpOnly, "http-only", false, "run HTTP cases only")
	f.BoolVar(&runFlags.grpcOnly, "grpc-only", false, "run gRPC cases only")

	f.Float64Var(&runFlags.ratioGetHello, "ratio-get-hello", 0, "wrkr/wrk gate for GET /hello")
	f.Float64Var(&runFlags.ratioPostJSON, "ratio-post-json", 0, "wrkr/wrk gate for POST /echo")
	f.Float64Var(&runFlags.ratioWfbJSONAggregate, "ratio-wfb-json-aggregate", 0, "wrkr/wrk gate for the wfb aggregate case")
	f.Float64Var(&runFlags.ratioWrkrOverK6, "ratio-wrkr-over-k6", 0, "wrkr/k6 gate for HTTP cases")
	f.Float64Var(&runFlags.ratioGrpcWrkrOverK6, "ratio-grpc-wrkr-over-k6", 0, "wrkr/k6 gate for gRPC Echo")
	f.Float64Var(&runFlags.ratioWfbGrpcAggregate, "ratio-wfb-grpc-aggregate-wrkr-over-k6", 0, "wrkr/k6 gate for gRPC AggregateOrders")
	f.Float64Var(&runFlags.ratioGrpcOverWrkHello, "ratio-grpc-wrkr-over-wrk-hello", 0, "cross-protocol gate: wrkr gRPC vs wrk hello")

	rootCmd.AddCommand(runCmd)
}

// resolveRunConfig layers run flags over env/.env configuration. Only flags
// the user actually set override the environment.
func resolveRunConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	flags := cmd.Flags()

	if flags.Changed("root") {
		cfg.Root = runFlags.root
	}

	if flags.Changed("duration") {
		cfg.Tuning.Duration = runFlags.duration
	}

	if flags.Changed("cases") {
		cfg.CasesFile = runFlags.cases
	}

	if flags.Changed("wrkr-vus") {
		cfg.Tuning.WrkrVUs = runFlags.wrkrVUs
	}

	if flags.Changed("k6-vus") {
		cfg.Tuning.K6VUs = runFlags.k6VUs
	}

	if flags.Changed("wrk-threads") {
		cfg.Tuning.WrkThreads = runFlags.wrkThreads
	}

	if flags.Changed("wrk-connections") {
		cfg.Tuning.WrkConnections = runFlags.wrkConnections
	}

	if flags.Changed("build") {
		cfg.Tuning.Build = runFlags.build
	}

	if flags.Changed("native") {
		cfg.Tuning.Native = runFlags.native
	}

	if flags.Changed("require-wrk") {
		cfg.Requirements.RequireWrk = runFlags.requireWrk
	}

	if flags.Changed("require-k6") {
		cfg.Requirements.RequireK6 = runFlags.requireK6
	}

	for _, r := range []struct {
		name string
		dest *float64
		src  float64
	}{
		{"ratio-get-hello", &cfg.Ratios.GetHello, runFlags.ratioGetHello},
		{"ratio-post-json", &cfg.Ratios.PostJSON, runFlags.ratioPostJSON},
		{"ratio-wfb-json-aggregate", &cfg.Ratios.WfbJSONAggregate, runFlags.ratioWfbJSONAggregate},
		{"ratio-wrkr-over-k6", &cfg.Ratios.WrkrOverK6, runFlags.ratioWrkrOverK6},
		{"ratio-grpc-wrkr-over-k6", &cfg.Ratios.GrpcWrkrOverK6, runFlags.ratioGrpcWrkrOverK6},
		{"ratio-wfb-grpc-aggregate-wrkr-over-k6", &cfg.Ratios.WfbGrpcAggregateWrkrOverK6, runFlags.ratioWfbGrpcAggregate},
		{"ratio-grpc-wrkr-over-wrk-hello", &cfg.Ratios.GrpcWrkrOverWrkHello, runFlags.ratioGrpcOverWrkHello},
	} {
		if flags.Changed(r.name) {
			*r.dest = r.src
		}
	}

	return cfg, nil
}
