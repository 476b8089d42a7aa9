package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowtree/internal/trace"
)

func sampleResult() *Result {
	r := NewResult("sample", "run")
	r.Trace = []trace.Record{
		{Seq: 1, Path: "wizard", Kind: trace.KindState, Detail: "{true 0 0}"},
		{Seq: 2, Path: "wizard/counter", Kind: trace.KindMount},
		{Seq: 3, Path: "wizard/counter", Kind: trace.KindState, Detail: "0"},
		{Seq: 4, Path: "wizard/counter", Kind: trace.KindRender},
		{Seq: 5, Path: "wizard", Kind: trace.KindRender},
		{Seq: 6, Path: "wizard/counter", Kind: trace.KindState, Detail: "1"},
		{Seq: 7, Path: "wizard/counter", Kind: trace.KindRender},
		{Seq: 8, Path: "wizard", Kind: trace.KindOutput, Detail: "3"},
	}
	r.Output = "3"
	r.Completed = true
	r.Rendering = "[wizard] Wizard: rounds completed: 3 (finish, restart)\n"
	return r
}

func TestEvaluateAssertions(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{"states match", Assertion{Type: AssertStates, Path: "wizard/counter", Values: []string{"0", "1"}}, ""},
		{"states mismatch", Assertion{Type: AssertStates, Path: "wizard/counter", Values: []string{"0"}}, `wizard/counter states ["0" "1"]`},
		{"states of unknown path", Assertion{Type: AssertStates, Path: "nowhere", Values: []string{"0"}}, "nowhere states []"},
		{"output match", Assertion{Type: AssertOutput, Value: "3"}, ""},
		{"output mismatch", Assertion{Type: AssertOutput, Value: "4"}, `output "3"`},
		{"no_output fails", Assertion{Type: AssertNoOutput}, "root did not complete"},
		{"rendering contains", Assertion{Type: AssertRenderingContains, Text: "rounds completed: 3"}, ""},
		{"rendering missing", Assertion{Type: AssertRenderingContains, Text: "round 4"}, `rendering containing "round 4"`},
		{"trace contains", Assertion{Type: AssertTraceContains, Kind: "mount", Path: "wizard/counter"}, ""},
		{"trace contains detail", Assertion{Type: AssertTraceContains, Kind: "state", Path: "wizard/counter", Detail: "1"}, ""},
		{"trace contains wrong detail", Assertion{Type: AssertTraceContains, Kind: "state", Path: "wizard/counter", Detail: "2"}, "no matching record"},
		{"trace count", Assertion{Type: AssertTraceCount, Kind: "render", Path: "wizard/counter", Count: 2}, ""},
		{"trace count zero", Assertion{Type: AssertTraceCount, Kind: "dispose", Path: "wizard", Count: 0}, ""},
		{"trace count mismatch", Assertion{Type: AssertTraceCount, Kind: "render", Path: "wizard", Count: 2}, "Actual:   1"},
		{"trace order", Assertion{Type: AssertTraceOrder, Events: []string{"mount wizard/counter", "state wizard/counter 1", "output wizard 3"}}, ""},
		{"trace order gaps allowed", Assertion{Type: AssertTraceOrder, Events: []string{"state wizard", "output wizard"}}, ""},
		{"trace order repeated", Assertion{Type: AssertTraceOrder, Events: []string{"render wizard/counter", "render wizard/counter"}}, ""},
		{"trace order reversed", Assertion{Type: AssertTraceOrder, Events: []string{"output wizard", "mount wizard/counter"}}, `"mount wizard/counter" not found after 1 matched event(s)`},
		{"unknown type", Assertion{Type: "magic"}, `unknown assertion type "magic"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(sampleResult(), []Assertion{tt.assertion})
			if tt.wantErr == "" {
				assert.Empty(t, errs)
				return
			}
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], "assertions[0]")
			assert.Contains(t, errs[0], tt.wantErr)
		})
	}
}

func TestEvaluateAssertions_OutputNotCompleted(t *testing.T) {
	r := sampleResult()
	r.Completed = false
	r.Output = ""

	errs := EvaluateAssertions(r, []Assertion{{Type: AssertOutput, Value: "3"}, {Type: AssertNoOutput}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "root did not complete")
}

func TestAssertionError_Error(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceCount,
		Expected: "2 render record(s) at wizard",
		Actual:   "1",
		Trace: []trace.Record{
			{Seq: 1, Path: "wizard", Kind: trace.KindRender},
		},
	}

	assert.Equal(t, "assertion \"trace_count\" failed\n"+
		"  Expected: 2 render record(s) at wizard\n"+
		"  Actual:   1\n"+
		"  Trace:\n"+
		"    1 render wizard\n", err.Error())
}

func TestParseEventPattern(t *testing.T) {
	p, err := parseEventPattern("effect_fail downloads fetch(x): not found")
	require.NoError(t, err)
	assert.Equal(t, trace.KindEffectFail, p.Kind)
	assert.Equal(t, "downloads", p.Path)
	assert.Equal(t, "fetch(x): not found", p.Detail)
	assert.Equal(t, "effect_fail downloads fetch(x): not found", p.String())

	p, err = parseEventPattern("dispose wizard/counter")
	require.NoError(t, err)
	assert.Empty(t, p.Detail)
	assert.True(t, p.matches(trace.Record{Kind: trace.KindDispose, Path: "wizard/counter"}))
	assert.False(t, p.matches(trace.Record{Kind: trace.KindDispose, Path: "wizard"}))

	for _, bad := range []string{"", "dispose", "explode wizard"} {
		_, err := parseEventPattern(bad)
		assert.Error(t, err, bad)
	}
}

func TestResult_AddError(t *testing.T) {
	r := NewResult("s", "run")
	assert.True(t, r.Pass)
	assert.NotNil(t, r.Trace)

	r.AddError("first")
	r.AddError("second")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"first", "second"}, r.Errors)
}
