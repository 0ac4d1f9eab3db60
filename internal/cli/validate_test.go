package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type validateResponse struct {
	Status string           `json:"status"`
	Data   ValidationResult `json:"data"`
	Error  *CLIError        `json:"error"`
}

func TestValidateSchema(t *testing.T) {
	out, _, err := execute(t, "validate", schemaDir)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Schema valid")
	assert.Contains(t, out, "Bar: 3 field(s)")
	assert.Contains(t, out, "Tag: 2 field(s)")
}

func TestValidateSchemaJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "validate", schemaDir)
	require.NoError(t, err)

	var resp validateResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	require.Len(t, resp.Data.Tables, 2)
	assert.Equal(t, "Bar", resp.Data.Tables[0].Name)
	assert.Equal(t, "Tag", resp.Data.Tables[1].Name)
	assert.NotEqual(t, resp.Data.Tables[0].Version, resp.Data.Tables[1].Version)
}

func TestValidateQuery(t *testing.T) {
	out, _, err := execute(t, "validate", schemaDir,
		"--table", "Bar",
		"--filter", "{foo: {objectArray: {some: {weight: {gt: 1}}}}}",
		"--order", "[{foo: {barEnum: ASC}}, {count: DESC}]",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Schema valid")
}

func TestValidateQueryFailures(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "null on non-nullable",
			args: []string{"--table", "Bar", "--filter", "{bar: null}"},
			want: "E103 at bar",
		},
		{
			name: "unknown enum value",
			args: []string{"--table", "Bar", "--filter", "{foo: {barEnum: NOPE}}"},
			want: "E103 at foo.barEnum",
		},
		{
			name: "sort through a list",
			args: []string{"--table", "Bar", "--order", "{foo: {objectArray: {name: ASC}}}"},
			want: "E102 at foo.objectArray",
		},
		{
			name: "pattern matching disabled",
			args: []string{"--table", "Tag", "--backend", "document-nopattern", "--filter", "{label: {ends_with: x}}"},
			want: "E104 at label",
		},
		{
			name: "malformed",
			args: []string{"--table", "Tag", "--order", "{label: SIDEWAYS}"},
			want: "E105",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"validate", schemaDir}, tt.args...)
			out, _, err := execute(t, args...)
			require.Error(t, err)
			// Validation failures = exit code 1
			assert.Equal(t, ExitFailure, GetExitCode(err))
			assert.Contains(t, out, "✗ Validation failed")
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestValidateQueryFailureJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "validate", schemaDir, "--table", "Bar", "--filter", "{count: {eq: one}}")
	require.Error(t, err)

	var resp validateResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Errors, 1)
	assert.Equal(t, ErrCodeTypeMismatch, resp.Data.Errors[0].Code)
	assert.Equal(t, "count", resp.Data.Errors[0].Path)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTypeMismatch, resp.Error.Code)
}

func TestValidateCommandErrors(t *testing.T) {
	badDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(badDir, "bad.cue"), []byte(`schema: T: { a: {kind: "object"} }`), 0644))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing schema", []string{"/nonexistent/schema"}, "E005"},
		{"invalid schema", []string{badDir}, "object requires fields"},
		{"missing filter file", []string{schemaDir, "--table", "Bar", "--filter-file", "/nonexistent/filter.yaml"}, "file not found"},
		{"table required", []string{schemaDir, "--filter", "{bar: a}"}, "--table is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"validate"}, tt.args...)
			out, _, err := execute(t, args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, tt.want)
		})
	}
}
