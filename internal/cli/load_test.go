package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sieve/internal/store"
)

var barsYAML = filepath.Join("testdata", "records", "bars.yaml")

// loadBars loads the bar fixtures into a fresh database and returns its path.
func loadBars(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "sieve.db")
	_, _, err := execute(t, "load", schemaDir, barsYAML, "--db", db, "--table", "Bar", "--collection", "bars")
	require.NoError(t, err)
	return db
}

func TestLoadYAML(t *testing.T) {
	db := filepath.Join(t.TempDir(), "sieve.db")

	out, _, err := execute(t, "load", schemaDir, barsYAML, "--db", db, "--table", "Bar")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Loaded 5 record(s) into Bar (Bar)")

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	records, err := st.All(context.Background(), "Bar")
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, "1", records[0].ID)

	info, err := st.Collection(context.Background(), "Bar")
	require.NoError(t, err)
	assert.Equal(t, "Bar", info.SchemaName)
}

func TestLoadJSON(t *testing.T) {
	db := filepath.Join(t.TempDir(), "sieve.db")

	out, _, err := execute(t, "--format", "json", "load", schemaDir,
		filepath.Join("testdata", "records", "bars.json"),
		"--db", db, "--table", "Bar", "--collection", "bars")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   LoadResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "bars", resp.Data.Collection)
	assert.Equal(t, "Bar", resp.Data.Table)
	assert.Equal(t, []string{"1", "2"}, resp.Data.IDs)
}

func TestLoadReplacesExistingIDs(t *testing.T) {
	db := loadBars(t)

	_, _, err := execute(t, "load", schemaDir, barsYAML, "--db", db, "--table", "Bar", "--collection", "bars")
	require.NoError(t, err)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	records, err := st.All(context.Background(), "bars")
	require.NoError(t, err)
	assert.Len(t, records, 5)
}

func TestLoadErrors(t *testing.T) {
	db := filepath.Join(t.TempDir(), "sieve.db")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing records", []string{schemaDir, "/nonexistent/records.yaml", "--db", db, "--table", "Bar"}, "records file not found"},
		{"table required", []string{schemaDir, barsYAML, "--db", db}, "--table is required"},
		{"missing schema", []string{"/nonexistent/schema", barsYAML, "--db", db}, "schema directory not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"load"}, tt.args...)
			out, _, err := execute(t, args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestLoadRequiresDB(t *testing.T) {
	_, _, err := execute(t, "load", schemaDir, barsYAML, "--table", "Bar")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "db" not set`)
}
