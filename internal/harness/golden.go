package harness

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders the result as deterministic text: for each case and
// backend, the matched ids or error code followed by the compiled
// artifacts.
func (r *Result) Snapshot(scenarioName string) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n", scenarioName)
	for _, c := range r.Cases {
		fmt.Fprintf(&sb, "\n## %s\n", c.Name)
		for _, o := range c.Outcomes {
			switch {
			case o.Code != "" && o.Path != "":
				fmt.Fprintf(&sb, "%s: error %s at %s\n", o.Backend, o.Code, o.Path)
			case o.Code != "":
				fmt.Fprintf(&sb, "%s: error %s\n", o.Backend, o.Code)
			case len(o.IDs) == 0:
				fmt.Fprintf(&sb, "%s: (none)\n", o.Backend)
			default:
				fmt.Fprintf(&sb, "%s: %s\n", o.Backend, strings.Join(o.IDs, ", "))
			}
			for _, a := range o.Artifacts {
				text := a.Text
				if text == "" {
					text = "-"
				}
				fmt.Fprintf(&sb, "  %s: %s\n", a.Name, text)
			}
		}
	}
	return []byte(sb.String())
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file. The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also assert on Pass. Test failure
// (via goldie) occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}

	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result's snapshot against a golden
// file without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, result.Snapshot(scenarioName))
}
