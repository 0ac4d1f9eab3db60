package schema

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Kind classifies what a field holds.
type Kind int

const (
	KindScalar Kind = iota
	KindEnum
	KindBoolean
	KindObject
	KindObjectList
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindEnum:
		return "enum"
	case KindBoolean:
		return "boolean"
	case KindObject:
		return "object"
	case KindObjectList:
		return "list"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Terminal reports whether a path must end at a field of this kind.
func (k Kind) Terminal() bool {
	return k == KindScalar || k == KindEnum || k == KindBoolean
}

// ScalarType is the value type of a KindScalar field.
type ScalarType int

const (
	ScalarNone ScalarType = iota
	ScalarInt
	ScalarFloat
	ScalarString
)

func (s ScalarType) String() string {
	switch s {
	case ScalarNone:
		return "none"
	case ScalarInt:
		return "int"
	case ScalarFloat:
		return "float"
	case ScalarString:
		return "string"
	default:
		return fmt.Sprintf("ScalarType(%d)", int(s))
	}
}

// Descriptor binds a logical field name to its type, nullability, and the
// key used to reach it on a backend record.
type Descriptor struct {
	Name     string
	Kind     Kind
	Scalar   ScalarType // only for KindScalar
	Nullable bool
	Accessor string   // record key; defaults to Name
	Values   []string // only for KindEnum
	Nested   *Table   // only for KindObject and KindObjectList
}

// TypeName renders the declared type the way schema files spell it.
func (d Descriptor) TypeName() string {
	var name string
	switch d.Kind {
	case KindScalar:
		name = d.Scalar.String()
	case KindEnum:
		name = "enum"
	case KindBoolean:
		name = "bool"
	case KindObject:
		name = "object"
	case KindObjectList:
		name = "list"
	}
	if d.Nullable {
		return name + "?"
	}
	return name + "!"
}

// HasValue reports whether name is a declared enum value.
func (d Descriptor) HasValue(name string) bool {
	return slices.Contains(d.Values, name)
}

// Sentinel errors for path resolution. Test with errors.Is.
var (
	ErrUnknownField = errors.New("unknown field")
	ErrNotNavigable = errors.New("field is not navigable")
)

// ResolveError reports which segment of a path failed to resolve.
type ResolveError struct {
	Path  []string
	Index int // failing segment
	Err   error
}

func (e *ResolveError) Error() string {
	end := min(e.Index+1, len(e.Path))
	return fmt.Sprintf("%s: %v", strings.Join(e.Path[:end], "."), e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// Table is an immutable set of field descriptors. Tables own their nested
// tables and are safe for concurrent reads.
type Table struct {
	name    string
	fields  []Descriptor
	index   map[string]int
	version string
}

// Name returns the type name the table was built for.
func (t *Table) Name() string {
	return t.name
}

// Len returns the number of declared fields.
func (t *Table) Len() int {
	return len(t.fields)
}

// Fields returns the descriptors in declaration order.
func (t *Table) Fields() []Descriptor {
	return slices.Clone(t.fields)
}

// Lookup finds a field by its case-sensitive logical name.
func (t *Table) Lookup(name string) (Descriptor, bool) {
	i, ok := t.index[name]
	if !ok {
		return Descriptor{}, false
	}
	return t.fields[i], true
}

// Resolve walks path left to right, descending into nested tables one
// segment at a time. Descending through a list field resolves against the
// element table.
func (t *Table) Resolve(path []string) (Descriptor, error) {
	if len(path) == 0 {
		return Descriptor{}, &ResolveError{Path: path, Err: fmt.Errorf("%w: empty path", ErrUnknownField)}
	}

	scope := t
	var d Descriptor
	for i, segment := range path {
		if scope == nil {
			return Descriptor{}, &ResolveError{Path: path, Index: i - 1, Err: ErrNotNavigable}
		}
		var ok bool
		d, ok = scope.Lookup(segment)
		if !ok {
			return Descriptor{}, &ResolveError{Path: path, Index: i, Err: ErrUnknownField}
		}
		if i < len(path)-1 && d.Kind.Terminal() {
			return Descriptor{}, &ResolveError{
				Path:  path,
				Index: i,
				Err:   fmt.Errorf("%w: %s is %s", ErrNotNavigable, segment, d.Kind),
			}
		}
		scope = d.Nested
	}
	return d, nil
}

// Version returns a stable content hash of the table. Two tables with the
// same fields, in the same order, have the same version.
func (t *Table) Version() string {
	return t.version
}

// canonical renders the table as plain values for MarshalCanonical.
func (t *Table) canonical() map[string]any {
	fields := make([]any, 0, len(t.fields))
	for _, d := range t.fields {
		entry := map[string]any{
			"name":     d.Name,
			"kind":     d.Kind.String(),
			"scalar":   d.Scalar.String(),
			"nullable": d.Nullable,
			"accessor": d.Accessor,
		}
		if len(d.Values) > 0 {
			values := make([]any, len(d.Values))
			for i, v := range d.Values {
				values[i] = v
			}
			entry["values"] = values
		}
		if d.Nested != nil {
			entry["fields"] = d.Nested.canonical()
		}
		fields = append(fields, entry)
	}
	return map[string]any{"name": t.name, "fields": fields}
}
