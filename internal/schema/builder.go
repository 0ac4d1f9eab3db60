package schema

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/sieve/internal/ir"
)

// FieldOption adjusts a descriptor while it is being declared.
type FieldOption func(*Descriptor)

// Nullable marks the field as accepting null.
func Nullable() FieldOption {
	return func(d *Descriptor) {
		d.Nullable = true
	}
}

// Accessor overrides the record key used to reach the field.
func Accessor(key string) FieldOption {
	return func(d *Descriptor) {
		d.Accessor = key
	}
}

// Builder declares the fields of one table. A Builder may be reused; every
// Build returns an independent immutable Table.
//
//	foo := schema.NewBuilder("Foo").
//		Scalar("barShort", schema.ScalarInt, schema.Nullable()).
//		MustBuild()
//	bar := schema.NewBuilder("Bar").Object("foo", foo, schema.Nullable()).MustBuild()
type Builder struct {
	name   string
	fields []Descriptor
	errs   []error
}

// NewBuilder starts a table for the named type.
func NewBuilder(name string) *Builder {
	return &Builder{name: name}
}

// Scalar declares an int, float, or string field.
func (b *Builder) Scalar(name string, t ScalarType, opts ...FieldOption) *Builder {
	if t == ScalarNone {
		b.errs = append(b.errs, fmt.Errorf("field %s: scalar type is required", name))
	}
	return b.add(Descriptor{Name: name, Kind: KindScalar, Scalar: t}, opts)
}

// Enum declares a field restricted to the given symbolic values.
func (b *Builder) Enum(name string, values []string, opts ...FieldOption) *Builder {
	if len(values) == 0 {
		b.errs = append(b.errs, fmt.Errorf("field %s: enum requires at least one value", name))
	}
	return b.add(Descriptor{Name: name, Kind: KindEnum, Values: slices.Clone(values)}, opts)
}

// Boolean declares a boolean field.
func (b *Builder) Boolean(name string, opts ...FieldOption) *Builder {
	return b.add(Descriptor{Name: name, Kind: KindBoolean}, opts)
}

// Object declares a single nested object.
func (b *Builder) Object(name string, nested *Table, opts ...FieldOption) *Builder {
	if nested == nil {
		b.errs = append(b.errs, fmt.Errorf("field %s: object requires a nested table", name))
	}
	return b.add(Descriptor{Name: name, Kind: KindObject, Nested: nested}, opts)
}

// ObjectList declares a collection of nested objects.
func (b *Builder) ObjectList(name string, nested *Table, opts ...FieldOption) *Builder {
	if nested == nil {
		b.errs = append(b.errs, fmt.Errorf("field %s: list requires a nested table", name))
	}
	return b.add(Descriptor{Name: name, Kind: KindObjectList, Nested: nested}, opts)
}

func (b *Builder) add(d Descriptor, opts []FieldOption) *Builder {
	for _, opt := range opts {
		opt(&d)
	}
	if d.Name == "" {
		b.errs = append(b.errs, errors.New("field name is required"))
	}
	if d.Accessor == "" {
		d.Accessor = d.Name
	}
	b.fields = append(b.fields, d)
	return b
}

// Build validates the declarations and returns the table.
func (b *Builder) Build() (*Table, error) {
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("schema %s: %w", b.name, errors.Join(b.errs...))
	}

	t := &Table{
		name:   b.name,
		fields: make([]Descriptor, len(b.fields)),
		index:  make(map[string]int, len(b.fields)),
	}
	for i, d := range b.fields {
		if _, dup := t.index[d.Name]; dup {
			return nil, fmt.Errorf("schema %s: duplicate field %q", b.name, d.Name)
		}
		d.Values = slices.Clone(d.Values)
		t.fields[i] = d
		t.index[d.Name] = i
	}

	version, err := ir.HashCanonical(ir.DomainSchema, t.canonical())
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", b.name, err)
	}
	t.version = version
	return t, nil
}

// MustBuild is Build for tables declared in code. Panics on error.
func (b *Builder) MustBuild() *Table {
	t, err := b.Build()
	if err != nil {
		panic(err)
	}
	return t
}
