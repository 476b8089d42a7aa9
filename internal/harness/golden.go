package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/flowtree/internal/trace"
)

// RunWithGolden runs a scenario and compares its trace snapshot against
// testdata/golden/<name>.golden.
//
// Usage in tests:
//
//	func TestScenario_CounterBasics(t *testing.T) {
//	    scenario, _ := LoadScenario("testdata/scenarios/counter_basics.yaml")
//	    result, err := RunWithGolden(t, scenario)
//	    require.NoError(t, err)
//	    assert.True(t, result.Pass)
//	}
//
// Update golden files with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, GoldenName(scenario.Name), Snapshot(result))

	return result, nil
}

// GoldenName turns a scenario name into a golden file name.
func GoldenName(scenario string) string {
	return strings.ReplaceAll(strings.TrimSpace(scenario), " ", "_")
}

// Snapshot renders a result as the stable text stored in golden files:
// a header, one trace record per line, and the output.
func Snapshot(result *Result) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# scenario: %s\n", result.Scenario)
	fmt.Fprintf(&b, "# run: %s\n", result.RunID)
	b.WriteString(trace.Format(result.Trace))
	if result.Completed {
		fmt.Fprintf(&b, "# output: %s\n", result.Output)
	} else {
		b.WriteString("# output: none\n")
	}
	return []byte(b.String())
}
