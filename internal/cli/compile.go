package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sieve/internal/ast"
	"github.com/roach88/sieve/internal/backend/document"
	"github.com/roach88/sieve/internal/backend/memory"
	"github.com/roach88/sieve/internal/engine"
	"github.com/roach88/sieve/internal/harness"
	"github.com/roach88/sieve/internal/ir"
	"github.com/roach88/sieve/internal/store"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Table   string
	Backend string
	Output  string // output file path
	Query   QueryInput
}

// CompilationResult is the compile command's payload.
type CompilationResult struct {
	Table         string             `json:"table"`
	SchemaVersion string             `json:"schema_version"`
	Backend       string             `json:"backend"`
	Artifacts     []harness.Artifact `json:"artifacts"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <schema-dir>",
		Short: "Compile a filter and order for one backend",
		Long: `Compile a filter and an order against a table of the CUE schema and
print the backend artifacts: the SQL and parameters for sqlite, the query
and sort documents for document, or the sort keys for memory.

Examples:
  sieve compile ./schema --table Bar --filter '{foo: {barShort: {gte: 12}}}'
  sieve compile ./schema --table Bar --backend document --order '{bar: DESC}'
  sieve compile ./schema --filter-file filter.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Table, "table", "t", "", "schema table (optional when the schema declares one)")
	cmd.Flags().StringVarP(&opts.Backend, "backend", "b", harness.BackendSQLite, "target backend ("+strings.Join(harness.BackendNames, "|")+")")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "also write the result as JSON to this file")
	addQueryFlags(cmd, &opts.Query)

	return cmd
}

func runCompile(opts *CompileOptions, schemaDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if err := checkBackend(opts.Backend); err != nil {
		return formatter.Fail(ExitCommandError, err)
	}

	schemas, err := LoadSchema(schemaDir)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", schemas.FileCount, schemaDir)

	table, err := schemas.Table(opts.Table)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}

	filter, order, err := opts.Query.Decode()
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}

	formatter.VerboseLog("Compiling for %s against %s (version %s)", opts.Backend, table.Name(), table.Version())
	eng := engine.New(table, engine.WithLogger(opts.logger(formatter.GetErrWriter())))
	q, err := compileQuery(cmd.Context(), eng, opts.Backend, filter, order)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}

	result := CompilationResult{
		Table:         table.Name(),
		SchemaVersion: table.Version(),
		Backend:       opts.Backend,
		Artifacts:     q.artifacts,
	}

	if opts.Output != "" {
		if err := writeJSONFile(opts.Output, result); err != nil {
			return formatter.Fail(ExitCommandError, &LoadError{Code: ErrCodeWriteFailed, Message: fmt.Sprintf("writing output file: %v", err), Err: err})
		}
	}

	if formatter.IsJSON() {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled %s for %s\n\n", result.Table, result.Backend)
	for _, a := range result.Artifacts {
		text := a.Text
		if text == "" {
			text = "-"
		}
		fmt.Fprintf(formatter.Writer, "%s: %s\n", a.Name, text)
	}
	if opts.Output != "" {
		fmt.Fprintf(formatter.Writer, "\nWrote %s\n", opts.Output)
	}
	return nil
}

func checkBackend(name string) error {
	if slices.Contains(harness.BackendNames, name) {
		return nil
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("unknown backend %q: must be one of %s", name, strings.Join(harness.BackendNames, ", ")),
	}
}

// compiledQuery is a filter and order compiled for one backend, with the
// rendered artifacts and a runner over a stored collection.
type compiledQuery struct {
	backend   string
	artifacts []harness.Artifact
	run       func(ctx context.Context, st *store.Store, collection string) ([]store.Record, error)
}

func compileQuery(ctx context.Context, eng *engine.Engine, backend string, filter, order ast.Node) (*compiledQuery, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	switch backend {
	case harness.BackendMemory:
		return compileMemory(ctx, eng, filter, order)
	case harness.BackendDocument:
		return compileDocument(ctx, eng, engine.Document, filter, order)
	case harness.BackendDocumentNoPattern:
		return compileDocument(ctx, eng, engine.DocumentBackend(false), filter, order)
	case harness.BackendSQLite:
		return compileSQLite(ctx, eng, filter, order)
	default:
		return nil, checkBackend(backend)
	}
}

func compileMemory(ctx context.Context, eng *engine.Engine, filter, order ast.Node) (*compiledQuery, error) {
	pred, err := engine.CompileFilter(ctx, eng, engine.Memory, filter)
	if err != nil {
		return nil, err
	}
	ordering, err := engine.CompileOrder(ctx, eng, engine.Memory, order)
	if err != nil {
		return nil, err
	}

	keys := make([]string, len(ordering.Keys()))
	for i, k := range ordering.Keys() {
		keys[i] = strings.Join(k.Path(), ".") + " " + k.Direction.String()
	}
	return &compiledQuery{
		backend:   harness.BackendMemory,
		artifacts: []harness.Artifact{{Name: "order", Text: strings.Join(keys, ", ")}},
		run: func(ctx context.Context, st *store.Store, collection string) ([]store.Record, error) {
			return inProcess(ctx, st, collection, func(bodies []ir.Object) ([]ir.Object, error) {
				return memory.Apply(bodies, pred, ordering), nil
			})
		},
	}, nil
}

func compileDocument(
	ctx context.Context,
	eng *engine.Engine,
	b engine.Backend[document.Fragment, *document.Filter, document.SortKey, *document.Sort],
	filter, order ast.Node,
) (*compiledQuery, error) {
	f, err := engine.CompileFilter(ctx, eng, b, filter)
	if err != nil {
		return nil, err
	}
	s, err := engine.CompileOrder(ctx, eng, b, order)
	if err != nil {
		return nil, err
	}

	filterJSON, err := f.MarshalExtJSON()
	if err != nil {
		return nil, err
	}
	sortJSON, err := s.MarshalExtJSON()
	if err != nil {
		return nil, err
	}
	return &compiledQuery{
		backend: b.Name,
		artifacts: []harness.Artifact{
			{Name: "filter", Text: string(filterJSON)},
			{Name: "sort", Text: string(sortJSON)},
		},
		run: func(ctx context.Context, st *store.Store, collection string) ([]store.Record, error) {
			return inProcess(ctx, st, collection, func(bodies []ir.Object) ([]ir.Object, error) {
				return document.NewCollection(bodies).Find(f, s)
			})
		},
	}, nil
}

func compileSQLite(ctx context.Context, eng *engine.Engine, filter, order ast.Node) (*compiledQuery, error) {
	where, err := engine.CompileFilter(ctx, eng, engine.SQLite, filter)
	if err != nil {
		return nil, err
	}
	orderBy, err := engine.CompileOrder(ctx, eng, engine.SQLite, order)
	if err != nil {
		return nil, err
	}

	params, err := ir.MarshalCanonical(where.Params)
	if err != nil {
		return nil, err
	}
	artifacts := []harness.Artifact{
		{Name: "where", Text: where.SQL},
		{Name: "params", Text: string(params)},
		{Name: "order", Text: orderBy.SQL()},
	}
	if op := orderBy.Params(); len(op) > 0 {
		text, err := ir.MarshalCanonical(op)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, harness.Artifact{Name: "order_params", Text: string(text)})
	}
	return &compiledQuery{
		backend:   harness.BackendSQLite,
		artifacts: artifacts,
		run: func(ctx context.Context, st *store.Store, collection string) ([]store.Record, error) {
			return st.Find(ctx, collection, where, orderBy)
		},
	}, nil
}

// inProcess reads the whole collection in id order and evaluates it with
// apply. Stored ids are attached to the bodies so results can be mapped
// back to records.
func inProcess(
	ctx context.Context,
	st *store.Store,
	collection string,
	apply func([]ir.Object) ([]ir.Object, error),
) ([]store.Record, error) {
	all, err := st.All(ctx, collection)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]store.Record, len(all))
	bodies := make([]ir.Object, len(all))
	for i, rec := range all {
		body := maps.Clone(rec.Body)
		body["id"] = ir.String(rec.ID)
		bodies[i] = body
		byID[rec.ID] = rec
	}

	found, err := apply(bodies)
	if err != nil {
		return nil, err
	}
	records := make([]store.Record, len(found))
	for i, body := range found {
		id, _ := body.Get("id").(ir.String)
		records[i] = byID[string(id)]
	}
	return records, nil
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
