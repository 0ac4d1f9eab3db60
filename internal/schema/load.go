package schema

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// LoadError is a schema declaration error with its CUE source position.
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadDir loads every .cue file in dir as one CUE instance and compiles
// each entry under the top-level `schema` struct into a Table.
func LoadDir(dir string) (map[string]*Table, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("schema directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}

	value := cuecontext.New().BuildInstance(inst)
	return compileTables(value)
}

// CompileString compiles CUE source text containing a `schema` struct.
// filename is used only for error positions.
func CompileString(filename, src string) (map[string]*Table, error) {
	value := cuecontext.New().CompileString(src, cue.Filename(filename))
	return compileTables(value)
}

func compileTables(value cue.Value) (map[string]*Table, error) {
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	schemaVal := value.LookupPath(cue.ParsePath("schema"))
	if !schemaVal.Exists() {
		return nil, &LoadError{Field: "schema", Message: "schema struct is required", Pos: value.Pos()}
	}

	iter, err := schemaVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	tables := make(map[string]*Table)
	for iter.Next() {
		t, err := CompileTable(iter.Value())
		if err != nil {
			return nil, err
		}
		tables[t.Name()] = t
	}
	if len(tables) == 0 {
		return nil, &LoadError{Field: "schema", Message: "at least one type is required", Pos: schemaVal.Pos()}
	}
	return tables, nil
}

// CompileTable compiles one type declaration into a Table. The table is
// named after the value's last path selector:
//
//	v := ctx.CompileString(`schema: Bar: { bar: {kind: "string"} }`)
//	t, err := CompileTable(v.LookupPath(cue.ParsePath("schema.Bar")))
func CompileTable(v cue.Value) (*Table, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	var name string
	if labels := v.Path().Selectors(); len(labels) > 0 {
		name = labels[len(labels)-1].String()
	}
	return compileFields(name, v)
}

func compileFields(name string, v cue.Value) (*Table, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	b := NewBuilder(name)
	for iter.Next() {
		if err := compileField(b, name, iter.Label(), iter.Value()); err != nil {
			return nil, err
		}
	}
	return b.Build()
}

func compileField(b *Builder, table, name string, v cue.Value) error {
	field := table + "." + name

	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindVal.Exists() {
		return &LoadError{Field: field, Message: "kind is required", Pos: v.Pos()}
	}
	kind, err := kindVal.String()
	if err != nil {
		return formatCUEError(err)
	}

	var opts []FieldOption
	if nv := v.LookupPath(cue.ParsePath("nullable")); nv.Exists() {
		nullable, err := nv.Bool()
		if err != nil {
			return formatCUEError(err)
		}
		if nullable {
			opts = append(opts, Nullable())
		}
	}
	if av := v.LookupPath(cue.ParsePath("accessor")); av.Exists() {
		accessor, err := av.String()
		if err != nil {
			return formatCUEError(err)
		}
		opts = append(opts, Accessor(accessor))
	}

	switch kind {
	case "int":
		b.Scalar(name, ScalarInt, opts...)
	case "float":
		b.Scalar(name, ScalarFloat, opts...)
	case "string":
		b.Scalar(name, ScalarString, opts...)
	case "bool":
		b.Boolean(name, opts...)
	case "enum":
		values, err := enumValues(field, v)
		if err != nil {
			return err
		}
		b.Enum(name, values, opts...)
	case "object", "list":
		fieldsVal := v.LookupPath(cue.ParsePath("fields"))
		if !fieldsVal.Exists() {
			return &LoadError{Field: field, Message: kind + " requires fields", Pos: v.Pos()}
		}
		nested, err := compileFields(field, fieldsVal)
		if err != nil {
			return err
		}
		if kind == "object" {
			b.Object(name, nested, opts...)
		} else {
			b.ObjectList(name, nested, opts...)
		}
	default:
		return &LoadError{
			Field:   field,
			Message: fmt.Sprintf("unsupported kind %q", kind),
			Pos:     kindVal.Pos(),
		}
	}
	return nil
}

func enumValues(field string, v cue.Value) ([]string, error) {
	valuesVal := v.LookupPath(cue.ParsePath("values"))
	if !valuesVal.Exists() {
		return nil, &LoadError{Field: field, Message: "enum requires values", Pos: v.Pos()}
	}
	iter, err := valuesVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var values []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		values = append(values, s)
	}
	if len(values) == 0 {
		return nil, &LoadError{Field: field, Message: "enum requires values", Pos: valuesVal.Pos()}
	}
	return values, nil
}

// formatCUEError keeps the first positioned error from a CUE error list.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &LoadError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
