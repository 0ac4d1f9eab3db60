package harness

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const itemSchema = `
schema: Item: {
	name: {kind: "string"}
	rank: {kind: "int", nullable: true}
	tags: {kind: "list", fields: {label: {kind: "string"}}}
}
`

func parse(t *testing.T, content string) *Scenario {
	t.Helper()
	scenario, err := ParseScenario([]byte(content))
	require.NoError(t, err)
	return scenario
}

func itemScenario(cases string) string {
	return `
name: items
description: inline schema
schema_source: |` + indent(itemSchema) + `
table: Item
records:
  - {id: b, name: beta, rank: 2, tags: [{label: red}]}
  - {id: a, name: alpha, rank: null, tags: [{label: blue}, {label: red}]}
  - {id: c, name: gamma, rank: 1, tags: []}
cases:
` + cases
}

func indent(s string) string {
	var buf bytes.Buffer
	for _, line := range bytes.Split([]byte(s), []byte("\n")) {
		buf.WriteString("\n  ")
		buf.Write(line)
	}
	return buf.String()
}

func TestRun_Pass(t *testing.T) {
	scenario := parse(t, itemScenario(`
  - name: red tags
    filter: {tags: {label: red}}
    expect: [a, b]
  - name: rank descending
    order: {rank: DESC}
    expect: [b, c, a]
  - name: nothing
    filter: {name: delta}
    expect: []
`))

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Cases, 3)

	for _, c := range result.Cases {
		require.Len(t, c.Outcomes, len(DefaultBackends))
		for i, o := range c.Outcomes {
			assert.Equal(t, DefaultBackends[i], o.Backend)
			assert.Empty(t, o.Code)
			assert.NotEmpty(t, o.Artifacts)
		}
	}
	assert.Equal(t, []string{"a", "b"}, result.Cases[0].Outcomes[2].IDs)
}

func TestRun_RecordsAreFedInIDOrder(t *testing.T) {
	scenario := parse(t, itemScenario(`
  - name: all
    expect: [a, b, c]
`))

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestRun_Mismatch(t *testing.T) {
	scenario := parse(t, itemScenario(`
  - name: wrong order
    order: {rank: ASC}
    expect: [c, b, a]
`))

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "wrong order [memory]: expected ids [c b a], got [a c b]")
	assert.Contains(t, result.Errors[2], "[sqlite]")
}

func TestRun_ExpectedError(t *testing.T) {
	scenario := parse(t, itemScenario(`
  - name: unknown
    filter: {nope: 1}
    error: UNKNOWN_FIELD
  - name: malformed
    filter: {name: {eq: {x: 1}}}
    error: MALFORMED_AST
`))

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)

	o := result.Cases[0].Outcomes[0]
	assert.Equal(t, "UNKNOWN_FIELD", o.Code)
	assert.Equal(t, "nope", o.Path)
	assert.Nil(t, o.IDs)

	// Decoding fails before any backend is involved.
	for _, o := range result.Cases[1].Outcomes {
		assert.Equal(t, "MALFORMED_AST", o.Code)
		assert.Empty(t, o.Artifacts)
	}
}

func TestRun_WrongErrorCode(t *testing.T) {
	scenario := parse(t, itemScenario(`
  - name: null name
    filter: {name: null}
    error: UNKNOWN_FIELD
    backends: [memory]
  - name: should fail
    filter: {name: alpha}
    error: TYPE_MISMATCH
    backends: [sqlite]
`))

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], `expected error UNKNOWN_FIELD, got TYPE_MISMATCH at "name"`)
	assert.Contains(t, result.Errors[1], "expected error TYPE_MISMATCH, got ids [a]")
}

func TestRun_BackendSelection(t *testing.T) {
	scenario := parse(t, itemScenario(`
  - name: patterns
    filter: {name: {starts_with: al}}
    expect: [a]
    backends: [document, sqlite]
  - name: no patterns
    filter: {name: {starts_with: al}}
    error: UNSUPPORTED_OPERATOR
    backends: [document-nopattern]
`))

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	require.Len(t, result.Cases[0].Outcomes, 2)
	assert.Equal(t, BackendDocument, result.Cases[0].Outcomes[0].Backend)
	require.Len(t, result.Cases[1].Outcomes, 1)
	assert.Equal(t, BackendDocumentNoPattern, result.Cases[1].Outcomes[0].Backend)
}

func TestRun_SchemaErrors(t *testing.T) {
	t.Run("missing table", func(t *testing.T) {
		scenario := parse(t, `
name: x
description: x
schema_source: 'schema: T: { a: {kind: "int"} }'
table: U
cases: [{name: c, expect: []}]
`)
		_, err := Run(context.Background(), scenario)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `schema has no table "U"`)
	})

	t.Run("invalid schema", func(t *testing.T) {
		scenario := parse(t, `
name: x
description: x
schema_source: 'schema: T: { a: {kind: "date"} }'
table: T
cases: [{name: c, expect: []}]
`)
		_, err := Run(context.Background(), scenario)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to compile schema")
	})
}

func TestRun_Logger(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	scenario := parse(t, itemScenario(`
  - name: all
    expect: [a, b, c]
`))
	_, err := Run(context.Background(), scenario, WithLogger(logger))
	require.NoError(t, err)

	assert.Contains(t, logs.String(), "case executed")
	assert.Contains(t, logs.String(), "scenario completed")
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "filtering.yaml"))
	require.NoError(t, err)

	first, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	second, err := Run(context.Background(), scenario)
	require.NoError(t, err)

	assert.Equal(t, string(first.Snapshot(scenario.Name)), string(second.Snapshot(scenario.Name)))
}

// Every scenario under testdata must pass on every backend it names.
func TestRun_Testdata(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(context.Background(), scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "%v", result.Errors)
		})
	}
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)

	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
