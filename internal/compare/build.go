package compare

import (
	"context"
	"fmt"
	"os"

	"github.com/ethpandaops/perf-compare/internal/execx"
	"github.com/ethpandaops/perf-compare/internal/output"
)

// BuildError reports a failed cargo build step.
type BuildError struct {
	Message string
}

func (e *BuildError) Error() string {
	return e.Message
}

// BuildPlan describes how to build the wrkr workspace release binaries.
type BuildPlan struct {
	Root   string
	Native bool
}

func (p BuildPlan) rustflags() string {
	if p.Native {
		return "-C target-cpu=native"
	}

	return ""
}

// BuildBinaries builds wrkr-testserver and wrkr with cargo, testserver first
// since the run needs it before any load tool starts.
func BuildBinaries(ctx context.Context, runner execx.Runner, plan BuildPlan, fmtr output.Formatter) error {
	if _, err := os.Stat(plan.Root); err != nil {
		return &BuildError{Message: fmt.Sprintf("wrkr root does not exist: %s", plan.Root)}
	}

	var env []string
	if rf := plan.rustflags(); rf != "" {
		env = []string{"RUSTFLAGS=" + rf}
	}

	fmtr.PrintPhase("Building release binaries")

	builds := [][]string{
		{"cargo", "build", "--release", "-p", "wrkr-testserver", "--bin", "wrkr-testserver"},
		{"cargo", "build", "--release", "--bin", "wrkr"},
	}

	for _, argv := range builds {
		fmtr.PrintStep(fmt.Sprintf("build: %s", argv[len(argv)-1]))

		res, err := runner.Run(ctx, execx.Spec{
			Argv: argv,
			Dir:  plan.Root,
			Env:  env,
		})
		if err != nil {
			return &BuildError{Message: fmt.Sprintf("running cargo: %v", err)}
		}

		if res.ExitCode != 0 {
			return &BuildError{Message: fmt.Sprintf(
				"cargo build failed (exit %d):\n%s", res.ExitCode, res.Stderr,
			)}
		}
	}

	return nil
}
