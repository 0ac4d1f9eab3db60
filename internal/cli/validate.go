package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/sieve/internal/engine"
	"github.com/roach88/sieve/internal/harness"
	"github.com/roach88/sieve/internal/schema"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Table   string
	Backend string
	Query   QueryInput
}

// TableSummary describes one compiled schema table.
type TableSummary struct {
	Name    string `json:"name"`
	Fields  int    `json:"fields"`
	Version string `json:"version"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool           `json:"valid"`
	Tables []TableSummary `json:"tables"`
	Errors []CLIError     `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <schema-dir>",
		Short: "Validate a schema and optionally a filter and order",
		Long: `Validate the CUE schema in a directory. When a filter or order is
given, also check that it compiles against the table for the backend,
without printing artifacts.

Exit codes:
  0 - Schema (and query) valid
  1 - Filter or order does not compile
  2 - Schema missing or invalid`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Table, "table", "t", "", "schema table the filter and order refer to")
	cmd.Flags().StringVarP(&opts.Backend, "backend", "b", harness.BackendMemory, "backend to check operator support for")
	addQueryFlags(cmd, &opts.Query)

	return cmd
}

func runValidate(opts *ValidateOptions, schemaDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if err := checkBackend(opts.Backend); err != nil {
		return formatter.Fail(ExitCommandError, err)
	}

	schemas, err := LoadSchema(schemaDir)
	if err != nil {
		return formatter.Fail(ExitCommandError, err)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", schemas.FileCount, schemaDir)

	result := ValidationResult{Valid: true}
	for _, name := range schemas.Names() {
		result.Tables = append(result.Tables, summarize(schemas.Tables[name]))
	}

	if !opts.Query.Empty() {
		table, err := schemas.Table(opts.Table)
		if err != nil {
			return formatter.Fail(ExitCommandError, err)
		}
		formatter.VerboseLog("Validating query against %s for %s", table.Name(), opts.Backend)

		if err := validateQuery(opts, table, cmd); err != nil {
			var loadErr *LoadError
			if errors.As(err, &loadErr) {
				return formatter.Fail(ExitCommandError, err)
			}
			result.Valid = false
			result.Errors = append(result.Errors, Classify(err))
		}
	}

	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

func validateQuery(opts *ValidateOptions, table *schema.Table, cmd *cobra.Command) error {
	filter, order, err := opts.Query.Decode()
	if err != nil {
		return err
	}
	eng := engine.New(table, engine.WithLogger(opts.logger(cmd.ErrOrStderr())))
	_, err = compileQuery(cmd.Context(), eng, opts.Backend, filter, order)
	return err
}

func summarize(t *schema.Table) TableSummary {
	return TableSummary{Name: t.Name(), Fields: t.Len(), Version: t.Version()}
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.IsJSON() {
		return formatter.Success(result)
	}

	fmt.Fprintln(formatter.Writer, "✓ Schema valid")
	for _, t := range result.Tables {
		fmt.Fprintf(formatter.Writer, "  %s: %d field(s)\n", t.Name, t.Fields)
	}
	return nil
}

// outputValidationErrors outputs failed validation results.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	first := result.Errors[0]
	if formatter.IsJSON() {
		if err := formatter.encode(CLIResponse{Status: "error", Data: result, Error: &first}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, e := range result.Errors {
		if e.Path != "" {
			fmt.Fprintf(formatter.Writer, "  %s at %s: %s\n", e.Code, e.Path, e.Message)
		} else {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n", e.Code, e.Message)
		}
	}
	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
}
