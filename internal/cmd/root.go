// Package cmd implements the mcbatch command-line interface.
package cmd

import (
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/simkit/mcbatch/internal/config"
	"github.com/simkit/mcbatch/internal/observability"
)

// exitStructuralFailure is the exit code for detected structural
// failures: no matched jobs, empty dag, or a failed output group.
const exitStructuralFailure = 1

var rootCmd = &cobra.Command{
	Use:   "mcbatch",
	Short: "Batch orchestrator for simulation truth/processed merging",
	Long: `mcbatch pairs truth-side and processed-side simulation files by
identifier, submits one merge job per pair to the cluster under an
occupancy ceiling, and validates and combines the job outputs afterward.

Use "mcbatch submit" to correlate inputs and dispatch jobs, and
"mcbatch postprocess" to validate and merge the results.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	rootConfigPath string
	rootLogLevel   string

	// appConfig is loaded in the persistent pre-run and consumed by the
	// subcommands.
	appConfig *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config", "", "Path to operational config file (optional)")
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "", "Log level override (debug|info|warn|error)")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cmd.Context(), rootConfigPath)
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Failed to load configuration", err)
		}
		appConfig = cfg

		level := cfg.Logging.Level
		if rootLogLevel != "" {
			level = rootLogLevel
		}
		if err := observability.Init(level); err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid log level", err)
		}
		return nil
	}
}

// Execute runs the root command and returns the error, if any. The caller
// maps *ExitError to the process exit code.
func Execute() error {
	defer observability.Sync()
	return rootCmd.Execute()
}

// ExitError carries an explicit process exit code alongside the error.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitError creates an error that will cause the CLI to exit with the
// given code.
func exitError(code int, message string, err error) error {
	if err == nil {
		return &ExitError{Code: code, Err: fmt.Errorf("%s", message)}
	}
	return &ExitError{Code: code, Err: fmt.Errorf("%s: %w", message, err)}
}
