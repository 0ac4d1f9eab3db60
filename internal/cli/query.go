package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sieve/internal/engine"
	"github.com/roach88/sieve/internal/harness"
	"github.com/roach88/sieve/internal/ir"
	"github.com/roach88/sieve/internal/store"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Database   string
	Collection string
	Backend    string
	Limit      int
	Query      QueryInput
}

// QueryRecord is one matched record.
type QueryRecord struct {
	ID   string    `json:"id"`
	Body ir.Object `json:"body"`
}

// QueryResult is the query command's payload.
type QueryResult struct {
	Collection string        `json:"collection"`
	Backend    string        `json:"backend"`
	Count      int           `json:"count"`
	Records    []QueryRecord `json:"records"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <schema-dir>",
		Short: "Run a filter and order against a stored collection",
		Long: `Compile a filter and order against the collection's table and run it.

The sqlite backend runs the compiled SQL in the store. The memory and
document backends read the collection and evaluate their compiled form
in-process, which is useful for checking that all backends agree.

Examples:
  sieve query ./schema --db ./sieve.db --collection bars --filter '{bar_in: [a, b]}'
  sieve query ./schema --db ./sieve.db --collection bars --order '[{n: DESC}]' --backend memory`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVarP(&opts.Collection, "collection", "c", "", "collection name (required)")
	cmd.Flags().StringVarP(&opts.Backend, "backend", "b", harness.BackendSQLite, "backend to evaluate with ("+strings.Join(harness.BackendNames, "|")+")")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "print at most n records (0 prints all)")
	addQueryFlags(cmd, &opts.Query)
	_ = cmd.MarkFlagRequired("db")
	_ = cmd.MarkFlagRequired("collection")

	return cmd
}

func runQuery(opts *QueryOptions, schemaDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := checkBackend(opts.Backend); err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	if _, err := os.Stat(opts.Database); os.IsNotExist(err) {
		return formatter.Fail(ExitCommandError, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("database not found: %s", opts.Database)})
	}

	schemas, err := LoadSchema(schemaDir)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	defer st.Close()

	info, err := st.Collection(ctx, opts.Collection)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("collection not found: %s", opts.Collection), Err: err}
		}
		return formatter.Fail(ExitCommandError, err)
	}
	table, err := schemas.Table(info.SchemaName)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	if table.Version() != info.SchemaVersion {
		return formatter.Fail(ExitCommandError, &LoadError{
			Code: ErrCodeSchemaMismatch,
			Message: fmt.Sprintf("collection %s was loaded with another version of %s; reload it",
				opts.Collection, table.Name()),
		})
	}

	filter, order, err := opts.Query.Decode()
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}

	eng := engine.New(table, engine.WithLogger(opts.logger(formatter.GetErrWriter())))
	q, err := compileQuery(ctx, eng, opts.Backend, filter, order)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	for _, a := range q.artifacts {
		formatter.VerboseLog("%s: %s", a.Name, a.Text)
	}

	records, err := q.run(ctx, st, opts.Collection)
	if err != nil {
		return formatter.Fail(ExitFailure, err)
	}

	result := QueryResult{
		Collection: opts.Collection,
		Backend:    q.backend,
		Count:      len(records),
		Records:    make([]QueryRecord, 0, len(records)),
	}
	for i, rec := range records {
		if opts.Limit > 0 && i >= opts.Limit {
			break
		}
		result.Records = append(result.Records, QueryRecord{ID: rec.ID, Body: rec.Body})
	}

	if formatter.IsJSON() {
		return formatter.Success(result)
	}
	for _, rec := range result.Records {
		body, err := ir.Marshal(rec.Body)
		if err != nil {
			return formatter.Fail(ExitFailure, err)
		}
		fmt.Fprintf(formatter.Writer, "%s\t%s\n", rec.ID, body)
	}
	fmt.Fprintf(formatter.Writer, "(%d record(s))\n", result.Count)
	return nil
}
