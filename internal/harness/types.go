package harness

import "github.com/roach88/flowtree/internal/trace"

// Result contains the outcome of running a scenario.
type Result struct {
	// Pass indicates whether all steps and assertions passed.
	Pass bool `json:"pass"`

	// Scenario is the name of the scenario that ran.
	Scenario string `json:"scenario"`

	// RunID is the run id the trace was recorded under.
	RunID string `json:"run_id"`

	// Trace is the stored trace, ordered by sequence number.
	Trace []trace.Record `json:"trace"`

	// Output is the root's printable output; valid when Completed.
	Output string `json:"output,omitempty"`

	// Completed reports whether the root emitted its output.
	Completed bool `json:"completed"`

	// Rendering is the last successful rendering, as Screen.String prints it.
	Rendering string `json:"rendering,omitempty"`

	// Errors contains step failures and assertion failures.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a Result initialized to passing.
func NewResult(scenario, runID string) *Result {
	return &Result{
		Pass:     true,
		Scenario: scenario,
		RunID:    runID,
		Trace:    []trace.Record{},
		Errors:   []string{},
	}
}

// AddError records a failure and marks the result as failing.
func (r *Result) AddError(msg string) {
	r.Pass = false
	r.Errors = append(r.Errors, msg)
}
