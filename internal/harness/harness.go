package harness

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/flowtree/internal/demo"
	"github.com/roach88/flowtree/internal/flow"
	"github.com/roach88/flowtree/internal/store"
	"github.com/roach88/flowtree/internal/testutil"
	"github.com/roach88/flowtree/internal/trace"
)

// DefaultRunID is the run id of scenarios that do not set one.
const DefaultRunID = "test-run-default"

// Options configures a scenario run.
type Options struct {
	// Store receives the run and its trace. If nil, a fresh in-memory store
	// is opened and closed around the run.
	Store *store.Store

	// RunID overrides the scenario's run id, e.g. to keep several runs of
	// the same scenario apart in a persistent store.
	RunID string

	// Logger receives engine logs. If nil, logs are discarded.
	Logger *slog.Logger
}

// Run executes a scenario with default options and returns the result.
//
// The returned error reports infrastructure failures (store, unknown flow,
// start failure). Failed steps and assertions are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	return RunWith(context.Background(), scenario, Options{})
}

// RunWith executes a scenario:
//  1. Records the run in the store
//  2. Starts the flow with a deterministic clock and fixed run id
//  3. Executes every step
//  4. Captures the final rendering and output, then disposes the tree
//  5. Reads the trace back from the store
//  6. Evaluates assertions
func RunWith(ctx context.Context, scenario *Scenario, opts Options) (*Result, error) {
	st := opts.Store
	if st == nil {
		mem, err := store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		defer mem.Close()
		st = mem
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	runID := opts.RunID
	if runID == "" {
		runID = scenario.RunID
	}
	if runID == "" {
		runID = DefaultRunID
	}

	if err := st.WriteRun(ctx, store.Run{
		ID:       runID,
		Flow:     scenario.Flow,
		Scenario: scenario.Name,
	}); err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}

	writer := st.Observer(ctx, runID)
	rec := trace.NewRecorder()
	prog, err := demo.Lookup(scenario.Flow,
		flow.WithObserver(trace.Multi(writer, rec)),
		flow.WithClock(testutil.NewDeterministicClock()),
		flow.WithRunIDGenerator(testutil.NewFixedRunIDGenerator(runID)),
		flow.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	defer prog.Dispose()

	if err := prog.Start(ctx, scenario.Input); err != nil {
		if finishErr := st.FinishRun(ctx, runID, store.StatusFailed, ""); finishErr != nil {
			logger.Warn("failed to mark run as failed", "run_id", runID, "error", finishErr)
		}
		return nil, fmt.Errorf("failed to start flow %s: %w", scenario.Flow, err)
	}

	result := NewResult(scenario.Name, runID)
	for i, step := range scenario.Steps {
		err := executeStep(prog, step, result)
		switch {
		case step.ExpectError != "":
			if err == nil {
				result.AddError(fmt.Sprintf("steps[%d]: expected error containing %q, got none", i, step.ExpectError))
			} else if !strings.Contains(err.Error(), step.ExpectError) {
				result.AddError(fmt.Sprintf("steps[%d]: expected error containing %q, got %q", i, step.ExpectError, err.Error()))
			}
		case err != nil:
			result.AddError(fmt.Sprintf("steps[%d]: %v", i, err))
		}
		logger.Debug("step executed", "scenario", scenario.Name, "index", i, "error", err)
	}

	// A completed root cannot render; the last rendering stays.
	if screen, err := prog.Render(); err == nil {
		result.Rendering = screen.String()
	}
	result.Output, result.Completed = prog.Output()
	prog.Dispose()

	status := store.StatusDisposed
	if result.Completed {
		status = store.StatusCompleted
	}
	if err := st.FinishRun(ctx, runID, status, result.Output); err != nil {
		return nil, fmt.Errorf("failed to finish run: %w", err)
	}
	if err := writer.Err(); err != nil {
		return nil, fmt.Errorf("failed to store trace: %w", err)
	}

	records, err := st.ReadTrace(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	result.Trace = records

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	logger.Info("scenario finished",
		"scenario", scenario.Name,
		"run_id", runID,
		"pass", result.Pass,
		"records", len(records),
		"renders", rec.Count(trace.KindRender, ""),
	)
	return result, nil
}

func executeStep(prog demo.Program, step Step, result *Result) error {
	switch {
	case step.Send != "":
		return prog.Send(step.Send)
	case step.Tap != "":
		return prog.Tap(step.Tap, step.Action)
	case step.Render:
		screen, err := prog.Render()
		if err != nil {
			return err
		}
		result.Rendering = screen.String()
		return nil
	}
	return fmt.Errorf("empty step")
}
