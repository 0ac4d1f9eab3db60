package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/sieve/internal/store"
)

// LoadOptions holds flags for the load command.
type LoadOptions struct {
	*RootOptions
	Database   string
	Collection string
	Table      string
}

// LoadResult is the load command's payload.
type LoadResult struct {
	Collection    string   `json:"collection"`
	Table         string   `json:"table"`
	SchemaVersion string   `json:"schema_version"`
	IDs           []string `json:"ids"`
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "load <schema-dir> <records-file>",
		Short: "Load records into a SQLite store",
		Long: `Load a JSON or YAML list of records into a collection of a SQLite
store, creating the database if it doesn't exist. The collection is bound
to the table and its schema version; query refuses to run against it once
the schema changes.

A record's string "id" field is its id. Records without one get a
generated UUIDv7. Loading a record with an existing id replaces it.

Example:
  sieve load ./schema bars.yaml --db ./sieve.db --collection bars --table Bar`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVarP(&opts.Collection, "collection", "c", "", "collection name (defaults to the table name)")
	cmd.Flags().StringVarP(&opts.Table, "table", "t", "", "schema table the records follow")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runLoad(opts *LoadOptions, schemaDir, recordsFile string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	schemas, err := LoadSchema(schemaDir)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	table, err := schemas.Table(opts.Table)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}

	records, err := LoadRecords(recordsFile)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	formatter.VerboseLog("Read %d record(s) from %s", len(records), recordsFile)

	collection := opts.Collection
	if collection == "" {
		collection = table.Name()
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, &LoadError{Code: ErrCodeWriteFailed, Message: err.Error(), Err: err})
	}
	defer st.Close()

	if err := st.DefineCollection(ctx, collection, table); err != nil {
		return formatter.Fail(ExitCommandError, &LoadError{Code: ErrCodeWriteFailed, Message: err.Error(), Err: err})
	}
	ids, err := st.InsertMany(ctx, collection, records)
	if err != nil {
		return formatter.Fail(ExitCommandError, &LoadError{Code: ErrCodeWriteFailed, Message: err.Error(), Err: err})
	}

	result := LoadResult{
		Collection:    collection,
		Table:         table.Name(),
		SchemaVersion: table.Version(),
		IDs:           ids,
	}
	if formatter.IsJSON() {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Loaded %d record(s) into %s (%s)\n", len(ids), collection, table.Name())
	for _, id := range ids {
		formatter.VerboseLog("  %s", id)
	}
	return nil
}
