// Package memory compiles filters and orderings into closures over
// in-memory ir.Object record graphs.
//
// A missing key reads as null. Null is the lowest value in every ordering,
// and a descending key is the exact reverse of the ascending one. Negated
// operators are the complement of their positive form, so they match
// null and missing values.
package memory

import (
	"strings"

	"github.com/roach88/sieve/internal/ast"
	"github.com/roach88/sieve/internal/compiler"
	"github.com/roach88/sieve/internal/ir"
	"github.com/roach88/sieve/internal/schema"
)

// Fragment matches one scope value: the root record, a nested object, or a
// list element.
type Fragment func(scope ir.Value) bool

// Predicate is a compiled filter.
type Predicate struct {
	match Fragment
}

// Match reports whether record satisfies the filter.
func (p *Predicate) Match(record ir.Object) bool {
	if p == nil || p.match == nil {
		return true
	}
	return p.match(record)
}

// Adapter lowers filters and orderings for in-memory records. The zero
// value is ready to use and supports every operator.
type Adapter struct{}

var (
	_ compiler.FilterAdapter[Fragment, *Predicate] = Adapter{}
	_ compiler.SortAdapter[Key, *Ordering]         = Adapter{}
)

// Compare implements compiler.FilterAdapter.
func (Adapter) Compare(acc compiler.Accessor, op ast.Op, v ir.Value) (Fragment, error) {
	positive, err := comparison(acc, op.Positive(), v)
	if err != nil {
		return nil, err
	}
	if op.IsNegated() {
		return func(scope ir.Value) bool { return !positive(scope) }, nil
	}
	return positive, nil
}

func comparison(acc compiler.Accessor, op ast.Op, v ir.Value) (Fragment, error) {
	read := func(scope ir.Value) ir.Value {
		return normalize(acc, field(scope, acc.Key))
	}

	if ir.IsNull(v) {
		// eq null; neq null arrives here negated.
		return func(scope ir.Value) bool { return ir.IsNull(read(scope)) }, nil
	}

	switch op {
	case ast.OpEq:
		return func(scope ir.Value) bool { return ir.Equal(read(scope), v) }, nil

	case ast.OpIn:
		set, _ := v.(ir.List)
		return func(scope ir.Value) bool {
			got := read(scope)
			for _, item := range set {
				if ir.Equal(got, item) {
					return true
				}
			}
			return false
		}, nil

	case ast.OpGt, ast.OpGte, ast.OpLt, ast.OpLte:
		return func(scope ir.Value) bool {
			got := read(scope)
			if ir.IsNull(got) {
				return false
			}
			return ordered(op, ir.Compare(got, v))
		}, nil

	case ast.OpContains, ast.OpStartsWith, ast.OpEndsWith:
		needle, _ := v.(ir.String)
		test := substringTest(op)
		return func(scope ir.Value) bool {
			got, ok := read(scope).(ir.String)
			return ok && test(string(got), string(needle))
		}, nil

	default:
		return nil, compiler.Unsupported(op, "")
	}
}

func ordered(op ast.Op, c int) bool {
	switch op {
	case ast.OpGt:
		return c > 0
	case ast.OpGte:
		return c >= 0
	case ast.OpLt:
		return c < 0
	default:
		return c <= 0
	}
}

func substringTest(op ast.Op) func(s, sub string) bool {
	switch op {
	case ast.OpStartsWith:
		return strings.HasPrefix
	case ast.OpEndsWith:
		return strings.HasSuffix
	default:
		return strings.Contains
	}
}

// Combine implements compiler.FilterAdapter.
func (Adapter) Combine(fs []Fragment, c ast.Combinator) Fragment {
	if len(fs) == 1 {
		return fs[0]
	}
	parts := append([]Fragment(nil), fs...)
	if c == ast.Or {
		return func(scope ir.Value) bool {
			for _, f := range parts {
				if f(scope) {
					return true
				}
			}
			return false
		}
	}
	return func(scope ir.Value) bool {
		for _, f := range parts {
			if !f(scope) {
				return false
			}
		}
		return true
	}
}

// Object implements compiler.FilterAdapter. A null or missing parent
// fails the whole fragment.
func (Adapter) Object(acc compiler.Accessor, inner Fragment) Fragment {
	return func(scope ir.Value) bool {
		child, ok := field(scope, acc.Key).(ir.Object)
		return ok && inner(child)
	}
}

// Exists implements compiler.FilterAdapter.
func (Adapter) Exists(acc compiler.Accessor, inner Fragment) Fragment {
	return func(scope ir.Value) bool {
		items, ok := field(scope, acc.Key).(ir.List)
		if !ok {
			return false
		}
		for _, item := range items {
			if inner(item) {
				return true
			}
		}
		return false
	}
}

// Materialize implements compiler.FilterAdapter.
func (Adapter) Materialize(root Fragment) (*Predicate, error) {
	return &Predicate{match: root}, nil
}

func field(scope ir.Value, key string) ir.Value {
	obj, ok := scope.(ir.Object)
	if !ok {
		return ir.Null{}
	}
	return obj.Get(key)
}

// normalize reads stored enum names as enums so they compare equal to
// coerced literals.
func normalize(acc compiler.Accessor, v ir.Value) ir.Value {
	if acc.Kind == schema.KindEnum {
		if s, ok := v.(ir.String); ok {
			return ir.Enum(s)
		}
	}
	return v
}
