package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"cuelang.org/go/cue/token"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/sieve/internal/ast"
	"github.com/roach88/sieve/internal/compiler"
	"github.com/roach88/sieve/internal/ir"
	"github.com/roach88/sieve/internal/schema"
	"github.com/roach88/sieve/internal/store"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric        = "E001" // Generic/unknown error
	ErrCodeScanError      = "E002" // Directory scan error
	ErrCodeNoFiles        = "E003" // No CUE files found
	ErrCodeLoadFailed     = "E004" // Records or query file unreadable
	ErrCodeNotFound       = "E005" // Path, table, or collection not found
	ErrCodeBuildFailed    = "E006" // CUE schema does not compile
	ErrCodeWriteFailed    = "E007" // Store or file write error
	ErrCodeSchemaMismatch = "E008" // Collection was loaded under another schema version

	// Compile errors
	ErrCodeUnknownField        = "E101"
	ErrCodeNotNavigable        = "E102"
	ErrCodeTypeMismatch        = "E103"
	ErrCodeUnsupportedOperator = "E104"
	ErrCodeMalformedAST        = "E105"
)

// MapCompileCode maps a compiler error code to a CLI error code.
func MapCompileCode(code compiler.Code) string {
	switch code {
	case compiler.CodeUnknownField:
		return ErrCodeUnknownField
	case compiler.CodeNotNavigable:
		return ErrCodeNotNavigable
	case compiler.CodeTypeMismatch:
		return ErrCodeTypeMismatch
	case compiler.CodeUnsupportedOperator:
		return ErrCodeUnsupportedOperator
	case compiler.CodeMalformedAST:
		return ErrCodeMalformedAST
	default:
		return ErrCodeGeneric
	}
}

// LoadError is an input problem with a CLI error code and, for CUE
// errors, a source position.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
	Err     error
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Classify converts any command error into its CLI error form.
func Classify(err error) CLIError {
	var (
		loadErr    *LoadError
		compileErr *compiler.CompileError
		syntaxErr  *ast.SyntaxError
	)
	switch {
	case errors.As(err, &loadErr):
		e := CLIError{Code: loadErr.Code, Message: loadErr.Message}
		if loadErr.Pos.IsValid() {
			e.Details = fmt.Sprintf("%s:%d:%d", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
		}
		return e
	case errors.As(err, &compileErr):
		return CLIError{Code: MapCompileCode(compileErr.Code), Message: compileErr.Message, Path: compileErr.Path}
	case errors.As(err, &syntaxErr):
		e := CLIError{Code: ErrCodeMalformedAST, Message: syntaxErr.Message, Path: syntaxErr.Path}
		if syntaxErr.Line > 0 {
			e.Details = fmt.Sprintf("line %d:%d", syntaxErr.Line, syntaxErr.Column)
		}
		return e
	case errors.Is(err, ast.ErrMalformed):
		return CLIError{Code: ErrCodeMalformedAST, Message: err.Error()}
	case errors.Is(err, store.ErrNotFound):
		return CLIError{Code: ErrCodeNotFound, Message: err.Error()}
	default:
		return CLIError{Code: ErrCodeGeneric, Message: err.Error()}
	}
}

// SchemaSet holds the tables declared in one schema directory.
type SchemaSet struct {
	Dir       string
	Tables    map[string]*schema.Table
	FileCount int
}

// Names returns the declared table names in sorted order.
func (s *SchemaSet) Names() []string {
	names := make([]string, 0, len(s.Tables))
	for name := range s.Tables {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Table returns the named table. An empty name selects the only table
// when the schema declares exactly one.
func (s *SchemaSet) Table(name string) (*schema.Table, error) {
	if name == "" {
		if len(s.Tables) == 1 {
			for _, t := range s.Tables {
				return t, nil
			}
		}
		return nil, &LoadError{
			Code:    ErrCodeNotFound,
			Message: fmt.Sprintf("--table is required: schema declares %s", strings.Join(s.Names(), ", ")),
		}
	}
	t, ok := s.Tables[name]
	if !ok {
		return nil, &LoadError{
			Code:    ErrCodeNotFound,
			Message: fmt.Sprintf("schema has no table %q (declared: %s)", name, strings.Join(s.Names(), ", ")),
		}
	}
	return t, nil
}

// LoadSchema compiles every CUE file in dir.
func LoadSchema(dir string) (*SchemaSet, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema directory not found: %s", dir), Err: err}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing schema directory: %v", err), Err: err}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err), Err: err}
	}
	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	tables, err := schema.LoadDir(dir)
	if err != nil {
		var schemaErr *schema.LoadError
		if errors.As(err, &schemaErr) {
			return nil, &LoadError{Code: ErrCodeBuildFailed, Message: schemaErr.Message, Pos: schemaErr.Pos, Err: err}
		}
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: err.Error(), Err: err}
	}

	return &SchemaSet{Dir: dir, Tables: tables, FileCount: len(files)}, nil
}

// FindCUEFiles returns the .cue files directly inside dir. CUE loads one
// package per directory, so subdirectories are not searched.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	return files, nil
}

// QueryInput holds the filter and order flags shared by compile, validate,
// and query. Each tree comes either inline or from a file.
type QueryInput struct {
	Filter     string
	FilterFile string
	Order      string
	OrderFile  string
}

func addQueryFlags(cmd *cobra.Command, q *QueryInput) {
	cmd.Flags().StringVar(&q.Filter, "filter", "", "filter as inline YAML or JSON")
	cmd.Flags().StringVar(&q.FilterFile, "filter-file", "", "read the filter from a YAML or JSON file")
	cmd.Flags().StringVar(&q.Order, "order", "", "order as inline YAML or JSON")
	cmd.Flags().StringVar(&q.OrderFile, "order-file", "", "read the order from a YAML or JSON file")
	cmd.MarkFlagsMutuallyExclusive("filter", "filter-file")
	cmd.MarkFlagsMutuallyExclusive("order", "order-file")
}

// Empty reports whether neither a filter nor an order was given.
func (q QueryInput) Empty() bool {
	return q.Filter == "" && q.FilterFile == "" && q.Order == "" && q.OrderFile == ""
}

// Decode parses the filter and order. A missing filter matches everything;
// a missing order is nil.
func (q QueryInput) Decode() (filter, order ast.Node, err error) {
	filter = ast.NewObject()

	text, err := inputText(q.Filter, q.FilterFile)
	if err != nil {
		return nil, nil, err
	}
	if text != nil {
		if filter, err = ast.DecodeFilter(text); err != nil {
			return nil, nil, err
		}
	}

	text, err = inputText(q.Order, q.OrderFile)
	if err != nil {
		return nil, nil, err
	}
	if text != nil {
		if order, err = ast.DecodeOrder(text); err != nil {
			return nil, nil, err
		}
	}
	return filter, order, nil
}

func inputText(inline, path string) ([]byte, error) {
	if path == "" {
		if inline == "" {
			return nil, nil
		}
		return []byte(inline), nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("file not found: %s", path), Err: err}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading %s: %v", path, err), Err: err}
	}
	return data, nil
}

// LoadRecords reads a list of record objects from a .json, .yaml, or .yml
// file. JSON numbers keep their precision: integral values become ints and
// others decimals.
func LoadRecords(path string) ([]ir.Object, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("records file not found: %s", path), Err: err}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading %s: %v", path, err), Err: err}
	}

	var value ir.Value
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		value, err = ir.Decode(data)
	case ".yaml", ".yml":
		var raw []any
		if err = yaml.Unmarshal(data, &raw); err == nil {
			value, err = ir.FromAny(raw)
		}
	default:
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("unsupported records format %q: use .json, .yaml, or .yml", ext)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("parsing %s: %v", path, err), Err: err}
	}

	list, ok := value.(ir.List)
	if !ok {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("%s: expected a list of records", path)}
	}
	records := make([]ir.Object, len(list))
	for i, v := range list {
		obj, ok := v.(ir.Object)
		if !ok {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("%s: record %d is not an object", path, i)}
		}
		records[i] = obj
	}
	return records, nil
}
