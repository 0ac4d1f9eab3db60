package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Golden files pin the exact artifacts per backend. Regenerate with:
//
//	go test ./internal/harness -run TestRunWithGolden -update
func TestRunWithGolden(t *testing.T) {
	for _, name := range []string{"sorting", "errors"} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "%v", result.Errors)
		})
	}
}

func TestSnapshot_Format(t *testing.T) {
	result := &Result{
		Pass: true,
		Cases: []CaseResult{
			{
				Name: "matches",
				Outcomes: []Outcome{
					{
						Backend:   BackendMemory,
						IDs:       []string{"1", "2"},
						Artifacts: []Artifact{{Name: "order", Text: ""}},
					},
					{
						Backend:   BackendSQLite,
						IDs:       []string{},
						Artifacts: []Artifact{{Name: "where", Text: "1 = 1"}},
					},
				},
			},
			{
				Name: "fails",
				Outcomes: []Outcome{
					{Backend: BackendDocument, Code: "UNKNOWN_FIELD", Path: "foo.nope"},
					{Backend: BackendMemory, Code: "MALFORMED_AST"},
				},
			},
		},
	}

	want := strings.Join([]string{
		"# demo",
		"",
		"## matches",
		"memory: 1, 2",
		"  order: -",
		"sqlite: (none)",
		"  where: 1 = 1",
		"",
		"## fails",
		"document: error UNKNOWN_FIELD at foo.nope",
		"memory: error MALFORMED_AST",
		"",
	}, "\n")
	assert.Equal(t, want, string(result.Snapshot("demo")))
}
