// Package document compiles filters and orderings into document-store
// query documents (bson.D) and evaluates them in-process.
//
// Nested objects use dotted paths. A nullable parent adds {path: {$ne:
// null}} so a null or missing parent fails the whole fragment, matching
// the other backends. Lists use $elemMatch with element-relative paths.
package document

import (
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/roach88/sieve/internal/ast"
	"github.com/roach88/sieve/internal/compiler"
	"github.com/roach88/sieve/internal/ir"
)

// Fragment renders a query document rooted at prefix. prefix is empty or
// ends with a dot.
type Fragment func(prefix string) bson.D

// Filter is a compiled query document.
type Filter struct {
	doc bson.D
}

// Doc returns the query document.
func (f *Filter) Doc() bson.D {
	if f == nil {
		return bson.D{}
	}
	return f.doc
}

// MarshalExtJSON renders the filter as relaxed extended JSON.
func (f *Filter) MarshalExtJSON() ([]byte, error) {
	return bson.MarshalExtJSON(f.Doc(), false, false)
}

func (f *Filter) String() string {
	data, err := f.MarshalExtJSON()
	if err != nil {
		return fmt.Sprintf("<invalid filter: %v>", err)
	}
	return string(data)
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithPatternMatching enables or disables the substring operators. Stores
// that forbid $regex set it to false; the operators then fail to compile.
func WithPatternMatching(enabled bool) Option {
	return func(a *Adapter) {
		a.noPatterns = !enabled
	}
}

// Adapter lowers filters and orderings into bson documents. The zero value
// supports every operator.
type Adapter struct {
	noPatterns bool
}

var (
	_ compiler.FilterAdapter[Fragment, *Filter] = Adapter{}
	_ compiler.SortAdapter[SortKey, *Sort]       = Adapter{}
)

// New creates an adapter.
func New(opts ...Option) Adapter {
	var a Adapter
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

var comparisonOps = map[ast.Op]string{
	ast.OpEq:    "$eq",
	ast.OpNeq:   "$ne",
	ast.OpGt:    "$gt",
	ast.OpGte:   "$gte",
	ast.OpLt:    "$lt",
	ast.OpLte:   "$lte",
	ast.OpIn:    "$in",
	ast.OpNotIn: "$nin",
}

// Compare implements compiler.FilterAdapter.
func (a Adapter) Compare(acc compiler.Accessor, op ast.Op, v ir.Value) (Fragment, error) {
	if op.IsSubstring() {
		return a.pattern(acc, op, v)
	}

	name, ok := comparisonOps[op]
	if !ok {
		return nil, compiler.Unsupported(op, "")
	}
	value, err := toBSON(v)
	if err != nil {
		return nil, err
	}
	return func(prefix string) bson.D {
		return bson.D{{Key: prefix + acc.Key, Value: bson.D{{Key: name, Value: value}}}}
	}, nil
}

func (a Adapter) pattern(acc compiler.Accessor, op ast.Op, v ir.Value) (Fragment, error) {
	if a.noPatterns {
		return nil, compiler.Unsupported(op, "pattern matching is disabled for this store")
	}
	s, ok := v.(ir.String)
	if !ok {
		return nil, fmt.Errorf("%s needs a string, got %s", op, ir.KindOf(v))
	}

	expr := regexp.QuoteMeta(string(s))
	switch op.Positive() {
	case ast.OpStartsWith:
		expr = "^" + expr
	case ast.OpEndsWith:
		expr += "$"
	}
	re := primitive.Regex{Pattern: expr}

	cond := bson.D{{Key: "$regex", Value: re}}
	if op.IsNegated() {
		cond = bson.D{{Key: "$not", Value: re}}
	}
	return func(prefix string) bson.D {
		return bson.D{{Key: prefix + acc.Key, Value: cond}}
	}, nil
}

// Combine implements compiler.FilterAdapter.
func (Adapter) Combine(fs []Fragment, c ast.Combinator) Fragment {
	switch len(fs) {
	case 0:
		if c == ast.Or {
			return func(string) bson.D { return bson.D{{Key: "$or", Value: bson.A{}}} }
		}
		return func(string) bson.D { return bson.D{} }
	case 1:
		return fs[0]
	}

	parts := append([]Fragment(nil), fs...)
	key := "$and"
	if c == ast.Or {
		key = "$or"
	}
	return func(prefix string) bson.D {
		docs := make(bson.A, len(parts))
		for i, f := range parts {
			docs[i] = f(prefix)
		}
		return bson.D{{Key: key, Value: docs}}
	}
}

// Object implements compiler.FilterAdapter.
func (Adapter) Object(acc compiler.Accessor, inner Fragment) Fragment {
	return func(prefix string) bson.D {
		path := prefix + acc.Key
		doc := inner(path + ".")
		if !acc.Nullable {
			return doc
		}
		guard := bson.D{{Key: path, Value: bson.D{{Key: "$ne", Value: nil}}}}
		if len(doc) == 0 {
			return guard
		}
		return bson.D{{Key: "$and", Value: bson.A{guard, doc}}}
	}
}

// Exists implements compiler.FilterAdapter.
func (Adapter) Exists(acc compiler.Accessor, inner Fragment) Fragment {
	return func(prefix string) bson.D {
		return bson.D{{Key: prefix + acc.Key, Value: bson.D{{Key: "$elemMatch", Value: inner("")}}}}
	}
}

// Materialize implements compiler.FilterAdapter.
func (Adapter) Materialize(root Fragment) (*Filter, error) {
	return &Filter{doc: root("")}, nil
}

// toBSON converts a coerced literal. Enums are stored by name and
// decimals as Decimal128.
func toBSON(v ir.Value) (any, error) {
	switch val := v.(type) {
	case nil, ir.Null:
		return nil, nil
	case ir.String:
		return string(val), nil
	case ir.Enum:
		return string(val), nil
	case ir.Int:
		return int64(val), nil
	case ir.Bool:
		return bool(val), nil
	case ir.Decimal:
		d, err := primitive.ParseDecimal128(val.String())
		if err != nil {
			return nil, fmt.Errorf("decimal %s: %w", val.String(), err)
		}
		return d, nil
	case ir.List:
		out := make(bson.A, len(val))
		for i, item := range val {
			b, err := toBSON(item)
			if err != nil {
				return nil, err
			}
			out[i] = b
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cannot encode %s literal", ir.KindOf(v))
	}
}
