package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/flowtree/internal/trace"
)

// AssertionError provides detailed context when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []trace.Record
}

func (e *AssertionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "assertion %q failed\n", e.Type)
	fmt.Fprintf(&b, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&b, "  Actual:   %s\n", e.Actual)
	if len(e.Trace) > 0 {
		b.WriteString("  Trace:\n")
		for _, r := range e.Trace {
			fmt.Fprintf(&b, "    %s\n", r)
		}
	}
	return b.String()
}

// EvaluateAssertions checks every assertion against the result and returns
// one message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertStates:
		return assertStates(result, a)
	case AssertOutput:
		return assertOutput(result, a)
	case AssertNoOutput:
		return assertNoOutput(result)
	case AssertRenderingContains:
		return assertRenderingContains(result, a)
	case AssertTraceContains:
		return assertTraceContains(result, a)
	case AssertTraceCount:
		return assertTraceCount(result, a)
	case AssertTraceOrder:
		return assertTraceOrder(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertStates(result *Result, a Assertion) error {
	var actual []string
	for _, r := range result.Trace {
		if r.Kind == trace.KindState && r.Path == a.Path {
			actual = append(actual, r.Detail)
		}
	}
	if slices.Equal(actual, a.Values) {
		return nil
	}
	return &AssertionError{
		Type:     AssertStates,
		Expected: fmt.Sprintf("%s states %q", a.Path, a.Values),
		Actual:   fmt.Sprintf("%s states %q", a.Path, actual),
		Trace:    result.Trace,
	}
}

func assertOutput(result *Result, a Assertion) error {
	if !result.Completed {
		return &AssertionError{
			Type:     AssertOutput,
			Expected: fmt.Sprintf("output %q", a.Value),
			Actual:   "root did not complete",
			Trace:    result.Trace,
		}
	}
	if result.Output != a.Value {
		return &AssertionError{
			Type:     AssertOutput,
			Expected: fmt.Sprintf("output %q", a.Value),
			Actual:   fmt.Sprintf("output %q", result.Output),
		}
	}
	return nil
}

func assertNoOutput(result *Result) error {
	if result.Completed {
		return &AssertionError{
			Type:     AssertNoOutput,
			Expected: "root did not complete",
			Actual:   fmt.Sprintf("output %q", result.Output),
		}
	}
	return nil
}

func assertRenderingContains(result *Result, a Assertion) error {
	if strings.Contains(result.Rendering, a.Text) {
		return nil
	}
	return &AssertionError{
		Type:     AssertRenderingContains,
		Expected: fmt.Sprintf("rendering containing %q", a.Text),
		Actual:   fmt.Sprintf("%q", result.Rendering),
	}
}

func assertTraceContains(result *Result, a Assertion) error {
	want := eventPattern{Kind: trace.Kind(a.Kind), Path: a.Path, Detail: a.Detail}
	for _, r := range result.Trace {
		if want.matches(r) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: want.String(),
		Actual:   "no matching record",
		Trace:    result.Trace,
	}
}

func assertTraceCount(result *Result, a Assertion) error {
	want := eventPattern{Kind: trace.Kind(a.Kind), Path: a.Path}
	count := 0
	for _, r := range result.Trace {
		if want.matches(r) {
			count++
		}
	}
	if count == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("%d %s record(s) at %s", a.Count, a.Kind, a.Path),
		Actual:   fmt.Sprintf("%d", count),
		Trace:    result.Trace,
	}
}

// assertTraceOrder matches the events as a subsequence of the trace.
func assertTraceOrder(result *Result, a Assertion) error {
	next := 0
	for _, r := range result.Trace {
		if next == len(a.Events) {
			break
		}
		p, err := parseEventPattern(a.Events[next])
		if err != nil {
			return err
		}
		if p.matches(r) {
			next++
		}
	}
	if next == len(a.Events) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: strings.Join(a.Events, " -> "),
		Actual:   fmt.Sprintf("%q not found after %d matched event(s)", a.Events[next], next),
		Trace:    result.Trace,
	}
}

// eventPattern selects trace records by kind and path, and optionally by
// detail. Its text form is "kind path [detail]".
type eventPattern struct {
	Kind   trace.Kind
	Path   string
	Detail string
}

func parseEventPattern(s string) (eventPattern, error) {
	fields := strings.SplitN(strings.TrimSpace(s), " ", 3)
	if len(fields) < 2 || fields[1] == "" {
		return eventPattern{}, fmt.Errorf("event %q must be \"kind path [detail]\"", s)
	}
	kind, err := trace.ParseKind(fields[0])
	if err != nil {
		return eventPattern{}, err
	}
	p := eventPattern{Kind: kind, Path: fields[1]}
	if len(fields) == 3 {
		p.Detail = fields[2]
	}
	return p, nil
}

func (p eventPattern) matches(r trace.Record) bool {
	if r.Kind != p.Kind || r.Path != p.Path {
		return false
	}
	return p.Detail == "" || r.Detail == p.Detail
}

func (p eventPattern) String() string {
	if p.Detail == "" {
		return fmt.Sprintf("%s %s", p.Kind, p.Path)
	}
	return fmt.Sprintf("%s %s %s", p.Kind, p.Path, p.Detail)
}
