package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/flowtree/internal/store"
	"github.com/roach88/flowtree/internal/trace"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - lists runs when empty
	Kind     string // optional - filter to one record kind
}

// KindCount is the number of records of one kind.
type KindCount struct {
	Kind  trace.Kind `json:"kind"`
	Count int        `json:"count"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Run      store.Run      `json:"run"`
	Timeline []trace.Record `json:"timeline"`
	Stats    []KindCount    `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show a stored run's trace",
		Long: `Show the trace of a run stored with "run --db".

The output includes:
- Run: flow, scenario, status and output
- Timeline: the trace records in sequence order
- Stats: record counts per kind

Without --run, lists the stored runs.

Examples:
  flowtree trace --db ./runs.db
  flowtree trace --db ./runs.db --run 0192...
  flowtree trace --db ./runs.db --run 0192... --kind effect_start
  flowtree trace --db ./runs.db --run 0192... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to show")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter to one record kind")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	var kind trace.Kind
	if opts.Kind != "" {
		k, err := trace.ParseKind(opts.Kind)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --kind", err)
		}
		kind = k
	}

	if _, err := os.Stat(opts.Database); errors.Is(err, fs.ErrNotExist) {
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", opts.Database))
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.RunID == "" {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		if opts.Format == "json" {
			return formatter.Success(runs)
		}
		writeRunList(cmd.OutOrStdout(), runs)
		return nil
	}

	run, err := st.ReadRun(ctx, opts.RunID)
	if errors.Is(err, sql.ErrNoRows) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("run not found: %s", opts.RunID), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", opts.RunID))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	// Stats always cover the whole run.
	all, err := st.ReadTrace(ctx, opts.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read trace", err)
	}
	timeline := all
	if kind != "" {
		timeline, err = st.ReadTraceKind(ctx, opts.RunID, kind)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read trace", err)
		}
	}

	result := TraceResult{
		Run:      run,
		Timeline: timeline,
		Stats:    countKinds(all),
	}

	if opts.Format == "json" {
		return formatter.JSON(CLIResponse{Status: "ok", Data: result, RunID: run.ID})
	}
	writeTraceText(cmd.OutOrStdout(), result, opts.Verbose)
	return nil
}

// countKinds counts records per kind, in trace.Kinds order, skipping kinds
// that never occur.
func countKinds(records []trace.Record) []KindCount {
	counts := make(map[trace.Kind]int)
	for _, r := range records {
		counts[r.Kind]++
	}
	stats := []KindCount{}
	for _, k := range trace.Kinds {
		if counts[k] > 0 {
			stats = append(stats, KindCount{Kind: k, Count: counts[k]})
		}
	}
	return stats
}

func writeRunList(w io.Writer, runs []store.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs stored.")
		return
	}
	for _, run := range runs {
		fmt.Fprintf(w, "%s  %-10s %-9s %4d records  %s\n",
			run.ID, run.Flow, run.Status, run.Records, run.Scenario)
	}
}

// writeTraceText outputs the trace result as text.
func writeTraceText(w io.Writer, result TraceResult, verbose bool) {
	run := result.Run
	fmt.Fprintf(w, "Trace for Run: %s\n", run.ID)
	fmt.Fprintf(w, "Flow: %s\n", run.Flow)
	if run.Scenario != "" {
		fmt.Fprintf(w, "Scenario: %s\n", run.Scenario)
	}
	fmt.Fprintf(w, "Status: %s\n", run.Status)
	if run.Output != "" {
		fmt.Fprintf(w, "Output: %s\n", run.Output)
	}
	fmt.Fprintln(w)

	// Timeline section
	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no records)")
	}
	for _, r := range result.Timeline {
		fmt.Fprintf(w, "  [%d] %s %s", r.Seq, r.Kind, r.Path)
		if r.Detail != "" {
			fmt.Fprintf(w, " %s", r.Detail)
		}
		fmt.Fprintln(w)
		if verbose && r.Value != nil {
			fmt.Fprintf(w, "       Value: %s\n", r.Value)
		}
	}
	fmt.Fprintln(w)

	// Stats section
	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Records: %d\n", run.Records)
	for _, kc := range result.Stats {
		fmt.Fprintf(w, "  %-14s %d\n", string(kc.Kind)+":", kc.Count)
	}
}
