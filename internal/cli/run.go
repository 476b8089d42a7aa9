package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/flowtree/internal/flow"
	"github.com/roach88/flowtree/internal/harness"
	"github.com/roach88/flowtree/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	RunID    string

	// RunIDs allows overriding the run id generator used with --db (for
	// testing). If nil, defaults to UUIDv7Generator.
	RunIDs flow.RunIDGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Run one scenario and print its trace",
		Long: `Run one scenario file (YAML or CUE) against its demo flow.

Prints every trace record, the root's output and the assertion results.
With --db the run and its trace are stored in a SQLite database under a
fresh UUIDv7 run id (or --run-id), for later inspection with "trace".

Exit codes:
  0 - Scenario passed
  1 - Scenario failed
  2 - Command error (invalid scenario, database error, etc.)

Examples:
  flowtree run ./scenarios/counter.yaml
  flowtree run ./scenarios/wizard.cue --db ./runs.db
  flowtree run ./scenarios/counter.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database to store the run in")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "run id to store the run under (default: UUIDv7 with --db)")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		_ = formatter.Error(ErrCodeLoad, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	ctx, cancel := signalContext(cmd.Context(), logger)
	defer cancel()

	runOpts := harness.Options{Logger: logger, RunID: opts.RunID}
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		runOpts.Store = st

		if runOpts.RunID == "" {
			gen := opts.RunIDs
			if gen == nil {
				gen = flow.UUIDv7Generator{}
			}
			runOpts.RunID = gen.Generate()
		}
	}

	formatter.VerboseLog("Running scenario %q (flow %s)", scenario.Name, scenario.Flow)
	result, err := harness.RunWith(ctx, scenario, runOpts)
	if err != nil {
		_ = formatter.Error(ErrCodeFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to run scenario", err)
	}

	if opts.Format == "json" {
		response := CLIResponse{Status: "ok", Data: result, RunID: result.RunID}
		if !result.Pass {
			response.Status = "error"
			response.Error = &CLIError{
				Code:    ErrCodeFailed,
				Message: fmt.Sprintf("scenario %q failed", scenario.Name),
				Details: result.Errors,
			}
		}
		if err := formatter.JSON(response); err != nil {
			return err
		}
	} else {
		writeRunText(cmd.OutOrStdout(), result, opts.Database != "")
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %q failed", scenario.Name))
	}
	return nil
}

func writeRunText(w io.Writer, result *harness.Result, stored bool) {
	fmt.Fprintf(w, "Scenario: %s\n", result.Scenario)
	fmt.Fprintf(w, "Run: %s\n", result.RunID)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Trace ===")
	for _, r := range result.Trace {
		fmt.Fprintf(w, "  %s\n", r)
	}
	fmt.Fprintln(w)

	if result.Completed {
		fmt.Fprintf(w, "Output: %s\n", result.Output)
	} else {
		fmt.Fprintln(w, "Output: (none)")
	}
	if stored {
		fmt.Fprintf(w, "Stored as run %s\n", result.RunID)
	}

	if result.Pass {
		fmt.Fprintf(w, "✓ %s\n", result.Scenario)
		return
	}
	fmt.Fprintf(w, "✗ %s\n", result.Scenario)
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}

// signalContext cancels on SIGINT/SIGTERM. Uses the command's context if
// available (for testing).
func signalContext(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan) // Prevent signal handler leak
		cancel()
	}
}
