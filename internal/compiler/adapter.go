package compiler

import (
	"slices"
	"strings"

	"github.com/roach88/sieve/internal/ast"
	"github.com/roach88/sieve/internal/ir"
	"github.com/roach88/sieve/internal/schema"
)

// Accessor is what an adapter needs to know about one field: how to reach
// it on a record and what it holds.
type Accessor struct {
	Name     string // logical name, for messages
	Key      string // record key
	Kind     schema.Kind
	Scalar   schema.ScalarType
	Nullable bool
	Values   []string // enum values in declaration order
}

func accessorOf(d schema.Descriptor) Accessor {
	return Accessor{
		Name:     d.Name,
		Key:      d.Accessor,
		Kind:     d.Kind,
		Scalar:   d.Scalar,
		Nullable: d.Nullable,
		Values:   d.Values,
	}
}

// Rank returns the declaration index of an enum value. Enums sort by rank,
// not by name.
func (a Accessor) Rank(name string) (int, bool) {
	i := slices.Index(a.Values, name)
	return i, i >= 0
}

// Keys returns the record keys of a path.
func Keys(path []Accessor) []string {
	keys := make([]string, len(path))
	for i, a := range path {
		keys[i] = a.Key
	}
	return keys
}

// FilterAdapter lowers filter operations into one backend's representation.
// F is the backend's fragment type and A its finished artifact.
//
// Fragments are relative to the scope they were built in: a fragment built
// for the fields of a nested object is handed to Object or Exists, which
// re-roots it at the parent. Adapters must hold no per-call state so one
// adapter value can serve concurrent compilations.
type FilterAdapter[F, A any] interface {
	// Compare lowers one comparison. v is already coerced to the field's
	// kind; set operators receive an ir.List. eq and neq may receive
	// ir.Null, which must lower to a null check, including on object and
	// list fields. Return Unsupported for operators the backend cannot
	// express.
	Compare(acc Accessor, op ast.Op, v ir.Value) (F, error)

	// Combine joins fragments. Combine(nil, ast.And) is always true.
	Combine(fs []F, c ast.Combinator) F

	// Object navigates into a nested object. A null or missing parent
	// makes the whole fragment false.
	Object(acc Accessor, inner F) F

	// Exists matches when at least one element of a list satisfies inner.
	Exists(acc Accessor, inner F) F

	// Materialize turns the root fragment into the artifact.
	Materialize(root F) (A, error)
}

// SortAdapter lowers sort keys. K is one key and O the finished ordering.
type SortAdapter[K, O any] interface {
	// Order lowers one key. path runs from the root record to the leaf.
	Order(path []Accessor, dir ast.Direction) (K, error)

	// ComposeOrder joins keys in priority order. No keys means no ordering.
	ComposeOrder(keys []K) (O, error)
}

func joinPath(segments []string) string {
	return strings.Join(segments, ".")
}
