package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/perf-compare/internal/compare"
	"github.com/ethpandaops/perf-compare/internal/config"
	"github.com/ethpandaops/perf-compare/internal/execx"
	"github.com/ethpandaops/perf-compare/internal/output"
)

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Launch interactive mode",
	Long:  `Launches an interactive menu for running comparisons without memorizing flags.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runInteractive(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
}

func runInteractive(ctx context.Context) error {
	fmt.Println("perf-compare - Interactive Mode")
	fmt.Println("===============================")
	fmt.Println()

	for {
		var choice string

		prompt := &survey.Select{
			Message: "What would you like to do?",
			Options: []string{
				"Run full comparison",
				"Run HTTP cases only",
				"Run gRPC cases only",
				"Show config",
				"Quit",
			},
		}

		if err := survey.AskOne(prompt, &choice); err != nil {
			// Ctrl-C inside the prompt is a normal way to leave.
			return nil
		}

		switch choice {
		case "Run full comparison":
			runComparisonInteractive(ctx, compare.ModeAll)
		case "Run HTTP cases only":
			runComparisonInteractive(ctx, compare.ModeHTTPOnly)
		case "Run gRPC cases only":
			runComparisonInteractive(ctx, compare.ModeGRPCOnly)
		case "Show config":
			cfg, err := config.Load()
			if err != nil {
				fmt.Printf("\nError: %v\n", err)
			} else {
				fmt.Println(cfg.String())
			}
		case "Quit":
			return nil
		}

		fmt.Println()
	}
}

// runComparisonInteractive runs one comparison and reports the outcome
// without exiting the menu loop.
func runComparisonInteractive(ctx context.Context, mode compare.Mode) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("\nError: %v\n", err)

		return
	}

	fmtr := output.NewFormatter(os.Stdout, output.NewRenderer(Logger))
	svc := compare.NewService(Logger, cfg, execx.New(Logger), fmtr)

	overall, err := svc.Run(ctx, mode)
	if err != nil {
		fmt.Printf("\nError: %v\n", err)

		return
	}

	if !overall.OK() {
		fmt.Printf("\n%d case(s) failed\n", overall.Failures)
	}
}
