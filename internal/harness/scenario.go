package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/roach88/flowtree/internal/demo"
	"github.com/roach88/flowtree/internal/trace"
)

// Scenario is a scripted run of a demo flow.
type Scenario struct {
	// Name uniquely identifies this scenario; it also names the golden file.
	Name string `yaml:"name" json:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description" json:"description"`

	// Flow is the registered demo flow to run (see demo.Names).
	Flow string `yaml:"flow" json:"flow"`

	// Input is the textual input given to the flow at start.
	Input string `yaml:"input,omitempty" json:"input,omitempty"`

	// RunID is an optional fixed run id.
	// If empty, defaults to "test-run-default" for deterministic golden file
	// comparison.
	RunID string `yaml:"run_id,omitempty" json:"run_id,omitempty"`

	// Steps drive the program, in order.
	Steps []Step `yaml:"steps" json:"steps"`

	// Assertions validate the final trace, rendering and output.
	Assertions []Assertion `yaml:"assertions" json:"assertions"`
}

// Step is one action on the running program. Exactly one of Send, Tap and
// Render is set.
type Step struct {
	// Send is an event of the root flow, in its textual form.
	Send string `yaml:"send,omitempty" json:"send,omitempty"`

	// Tap is the path of a rendered screen whose Action is invoked.
	Tap    string `yaml:"tap,omitempty" json:"tap,omitempty"`
	Action string `yaml:"action,omitempty" json:"action,omitempty"`

	// Render runs a render pass.
	Render bool `yaml:"render,omitempty" json:"render,omitempty"`

	// ExpectError makes the step pass only if it fails with an error
	// containing this text.
	ExpectError string `yaml:"expect_error,omitempty" json:"expect_error,omitempty"`
}

// Assertion validates the outcome of a scenario.
type Assertion struct {
	// Type specifies the assertion type:
	// - "states": Details of the states published at Path, in order
	// - "output": Root output equals Value
	// - "no_output": Root did not complete
	// - "rendering_contains": Final rendering contains Text
	// - "trace_contains": A record of Kind at Path (with Detail) exists
	// - "trace_count": Exactly Count records of Kind at Path exist
	// - "trace_order": Events appear in order
	Type string `yaml:"type" json:"type"`

	// Path is the node path (states, trace_contains, trace_count).
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// Values are the expected state details (states).
	Values []string `yaml:"values,omitempty" json:"values,omitempty"`

	// Value is the expected printable output (output).
	Value string `yaml:"value,omitempty" json:"value,omitempty"`

	// Text is searched in the final rendering (rendering_contains).
	Text string `yaml:"text,omitempty" json:"text,omitempty"`

	// Kind is the record kind (trace_contains, trace_count).
	Kind string `yaml:"kind,omitempty" json:"kind,omitempty"`

	// Detail optionally narrows trace_contains to one record detail.
	Detail string `yaml:"detail,omitempty" json:"detail,omitempty"`

	// Count is the expected number of records (trace_count).
	Count int `yaml:"count,omitempty" json:"count,omitempty"`

	// Events are "kind path [detail]" patterns (trace_order).
	Events []string `yaml:"events,omitempty" json:"events,omitempty"`
}

// Assertion type constants.
const (
	AssertStates            = "states"
	AssertOutput            = "output"
	AssertNoOutput          = "no_output"
	AssertRenderingContains = "rendering_contains"
	AssertTraceContains     = "trace_contains"
	AssertTraceCount        = "trace_count"
	AssertTraceOrder        = "trace_order"
)

// LoadError describes a scenario file that cannot be used.
type LoadError struct {
	File    string
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.File, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// LoadScenario reads and parses a scenario file: CUE for ".cue" files,
// YAML otherwise. Returns an error if the file doesn't exist, is
// malformed, contains unknown fields (typos), or is missing required
// fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario *Scenario
	if filepath.Ext(path) == ".cue" {
		scenario, err = parseCUE(path, data)
	} else {
		scenario, err = parseYAML(path, data)
	}
	if err != nil {
		return nil, err
	}

	if err := validateScenario(scenario); err != nil {
		return nil, &LoadError{File: path, Message: err.Error()}
	}
	return scenario, nil
}

// parseYAML decodes with strict field validation (catches typos like
// "assertion:" vs "assertions:").
func parseYAML(path string, data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, &LoadError{File: path, Field: "yaml", Message: err.Error()}
	}
	return &scenario, nil
}

// parseCUE evaluates the file with the CUE SDK (no CLI subprocess). The
// whole file is the scenario; it must be concrete.
func parseCUE(path string, data []byte) (*Scenario, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(path, err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(path, err)
	}

	var scenario Scenario
	if err := v.Decode(&scenario); err != nil {
		return nil, formatCUEError(path, err)
	}
	return &scenario, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(path string, err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{File: path, Field: "cue", Message: err.Error()}
	}

	// Return first error with position info
	first := errs[0]
	le := &LoadError{File: path, Field: "cue", Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}

// LoadDir loads every scenario file (.yaml, .yml, .cue) in dir, sorted by
// file name. The first invalid file aborts the load.
func LoadDir(dir string) ([]*Scenario, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}

	var (
		scenarios []*Scenario
		files     []string
	)
	for _, e := range entries {
		if e.IsDir() || !IsScenarioFile(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		s, err := LoadScenario(path)
		if err != nil {
			return nil, nil, err
		}
		scenarios = append(scenarios, s)
		files = append(files, path)
	}
	return scenarios, files, nil
}

// IsScenarioFile reports whether name has a scenario file extension.
func IsScenarioFile(name string) bool {
	switch filepath.Ext(name) {
	case ".yaml", ".yml", ".cue":
		return true
	}
	return false
}

// validateScenario checks required fields and normalizes node paths to NFC,
// the form flow.Mount gives ids.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Flow == "" {
		return fmt.Errorf("flow is required")
	}
	if !slices.Contains(demo.Names(), s.Flow) {
		return fmt.Errorf("unknown flow %q (available: %s)", s.Flow, strings.Join(demo.Names(), ", "))
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i := range s.Steps {
		if err := validateStep(i, &s.Steps[i]); err != nil {
			return err
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step *Step) error {
	set := 0
	if step.Send != "" {
		set++
	}
	if step.Tap != "" {
		set++
	}
	if step.Render {
		set++
	}
	if set != 1 {
		return fmt.Errorf("steps[%d]: exactly one of send, tap or render is required", index)
	}
	if step.Tap != "" && step.Action == "" {
		return fmt.Errorf("steps[%d]: action is required for tap", index)
	}
	if step.Tap == "" && step.Action != "" {
		return fmt.Errorf("steps[%d]: action is only valid with tap", index)
	}
	step.Tap = norm.NFC.String(step.Tap)
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	a.Path = norm.NFC.String(a.Path)

	switch a.Type {
	case AssertStates:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for states", index)
		}
	case AssertOutput:
		// An empty value is a valid printable output.
	case AssertNoOutput:
	case AssertRenderingContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for rendering_contains", index)
		}
	case AssertTraceContains, AssertTraceCount:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for %s", index, a.Type)
		}
		if _, err := trace.ParseKind(a.Kind); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if a.Type == AssertTraceCount && a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
		for j, e := range a.Events {
			p, err := parseEventPattern(e)
			if err != nil {
				return fmt.Errorf("assertions[%d].events[%d]: %w", index, j, err)
			}
			a.Events[j] = p.String()
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
