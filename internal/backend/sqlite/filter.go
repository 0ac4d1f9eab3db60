// Package sqlite compiles filters and orderings into parameterized SQLite
// SQL over JSON record bodies.
//
// Fields are read with json_extract, so a missing key and a JSON null are
// both SQL NULL. Literal values are always bound as ? parameters and never
// interpolated. NULL sorts lowest ascending and highest descending, which
// is SQLite's native order.
package sqlite

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/sieve/internal/ast"
	"github.com/roach88/sieve/internal/compiler"
	"github.com/roach88/sieve/internal/ir"
)

// BodyColumn is the column holding each record's JSON document.
const BodyColumn = "body"

// alwaysTrue is the predicate for an empty filter.
const alwaysTrue = "1 = 1"

// scope locates the JSON document a fragment reads from.
type scope struct {
	root string // SQL expression yielding JSON text
	path string // JSON path of the current object within root
}

func (s scope) field(key string) string {
	return s.path + "." + pathSegment(key)
}

// renderer collects bound parameters in placeholder order and numbers
// json_each aliases.
type renderer struct {
	params  []any
	aliases int
}

func (r *renderer) bind(v any) string {
	r.params = append(r.params, v)
	return "?"
}

func (r *renderer) alias() string {
	r.aliases++
	return fmt.Sprintf("e%d", r.aliases)
}

// Fragment renders one predicate within a scope.
type Fragment func(r *renderer, s scope) string

// Where is a compiled filter: a boolean SQL expression and its parameters.
type Where struct {
	SQL    string
	Params []any
}

// Adapter lowers filters and orderings into SQLite SQL. The zero value
// supports every operator; substring matching relies on the connection
// having PRAGMA case_sensitive_like enabled.
type Adapter struct{}

var (
	_ compiler.FilterAdapter[Fragment, *Where] = Adapter{}
	_ compiler.SortAdapter[OrderKey, *OrderBy] = Adapter{}
)

// Compare implements compiler.FilterAdapter.
func (Adapter) Compare(acc compiler.Accessor, op ast.Op, v ir.Value) (Fragment, error) {
	if ir.IsNull(v) {
		test := "IS NULL"
		if op == ast.OpNeq {
			test = "IS NOT NULL"
		}
		return func(_ *renderer, s scope) string {
			return fmt.Sprintf("%s %s", extract(s, acc.Key), test)
		}, nil
	}

	switch op {
	case ast.OpEq, ast.OpGt, ast.OpGte, ast.OpLt, ast.OpLte:
		param, err := paramOf(v)
		if err != nil {
			return nil, err
		}
		sqlOp := comparisonOps[op]
		return func(r *renderer, s scope) string {
			return fmt.Sprintf("%s %s %s", extract(s, acc.Key), sqlOp, placeholder(r, v, param))
		}, nil

	case ast.OpNeq:
		// IS NOT keeps rows whose field is NULL.
		param, err := paramOf(v)
		if err != nil {
			return nil, err
		}
		return func(r *renderer, s scope) string {
			return fmt.Sprintf("%s IS NOT %s", extract(s, acc.Key), placeholder(r, v, param))
		}, nil

	case ast.OpIn, ast.OpNotIn:
		return set(acc, op, v)

	case ast.OpContains, ast.OpNotContains, ast.OpStartsWith, ast.OpNotStartsWith, ast.OpEndsWith, ast.OpNotEndsWith:
		return like(acc, op, v)

	default:
		return nil, compiler.Unsupported(op, "")
	}
}

var comparisonOps = map[ast.Op]string{
	ast.OpEq:  "=",
	ast.OpGt:  ">",
	ast.OpGte: ">=",
	ast.OpLt:  "<",
	ast.OpLte: "<=",
}

// set lowers in and not_in. Null items become an IS NULL test, since SQL
// IN never matches NULL.
func set(acc compiler.Accessor, op ast.Op, v ir.Value) (Fragment, error) {
	items, ok := v.(ir.List)
	if !ok {
		return nil, fmt.Errorf("%s needs a list, got %s", op, ir.KindOf(v))
	}
	var (
		values  ir.List
		params  []any
		hasNull bool
	)
	for _, item := range items {
		if ir.IsNull(item) {
			hasNull = true
			continue
		}
		p, err := paramOf(item)
		if err != nil {
			return nil, err
		}
		values = append(values, item)
		params = append(params, p)
	}

	negated := op == ast.OpNotIn
	return func(r *renderer, s scope) string {
		expr := extract(s, acc.Key)
		if len(values) == 0 {
			switch {
			case hasNull && negated:
				return expr + " IS NOT NULL"
			case hasNull:
				return expr + " IS NULL"
			case negated:
				return alwaysTrue
			default:
				return "1 = 0"
			}
		}
		holders := make([]string, len(values))
		for i, item := range values {
			holders[i] = placeholder(r, item, params[i])
		}
		list := strings.Join(holders, ", ")
		switch {
		case negated && hasNull:
			return fmt.Sprintf("(%s IS NOT NULL AND %s NOT IN (%s))", expr, expr, list)
		case negated:
			return fmt.Sprintf("(%s IS NULL OR %s NOT IN (%s))", expr, expr, list)
		case hasNull:
			return fmt.Sprintf("(%s IS NULL OR %s IN (%s))", expr, expr, list)
		default:
			return fmt.Sprintf("%s IN (%s)", expr, list)
		}
	}, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func like(acc compiler.Accessor, op ast.Op, v ir.Value) (Fragment, error) {
	s, ok := v.(ir.String)
	if !ok {
		return nil, fmt.Errorf("%s needs a string, got %s", op, ir.KindOf(v))
	}

	pattern := likeEscaper.Replace(string(s))
	switch op.Positive() {
	case ast.OpContains:
		pattern = "%" + pattern + "%"
	case ast.OpStartsWith:
		pattern += "%"
	case ast.OpEndsWith:
		pattern = "%" + pattern
	}

	negated := op.IsNegated()
	return func(r *renderer, sc scope) string {
		expr := extract(sc, acc.Key)
		holder := r.bind(pattern)
		if negated {
			return fmt.Sprintf(`(%s IS NULL OR %s NOT LIKE %s ESCAPE '\')`, expr, expr, holder)
		}
		return fmt.Sprintf(`%s LIKE %s ESCAPE '\'`, expr, holder)
	}, nil
}

// Combine implements compiler.FilterAdapter.
func (Adapter) Combine(fs []Fragment, c ast.Combinator) Fragment {
	switch len(fs) {
	case 0:
		if c == ast.Or {
			return func(*renderer, scope) string { return "1 = 0" }
		}
		return func(*renderer, scope) string { return alwaysTrue }
	case 1:
		return fs[0]
	}

	parts := append([]Fragment(nil), fs...)
	sep := " AND "
	if c == ast.Or {
		sep = " OR "
	}
	return func(r *renderer, s scope) string {
		sqlParts := make([]string, len(parts))
		for i, f := range parts {
			sqlParts[i] = f(r, s)
		}
		return "(" + strings.Join(sqlParts, sep) + ")"
	}
}

// Object implements compiler.FilterAdapter. The json_type guard fails the
// fragment when the parent is null, missing, or not an object.
func (Adapter) Object(acc compiler.Accessor, inner Fragment) Fragment {
	return func(r *renderer, s scope) string {
		path := s.field(acc.Key)
		guard := fmt.Sprintf("json_type(%s, '%s') = 'object'", s.root, path)
		body := inner(r, scope{root: s.root, path: path})
		if body == alwaysTrue {
			return guard
		}
		return "(" + guard + " AND " + body + ")"
	}
}

// Exists implements compiler.FilterAdapter.
func (Adapter) Exists(acc compiler.Accessor, inner Fragment) Fragment {
	return func(r *renderer, s scope) string {
		path := s.field(acc.Key)
		alias := r.alias()
		body := inner(r, scope{root: alias + ".value", path: "$"})
		return fmt.Sprintf("(json_type(%s, '%s') = 'array' AND EXISTS (SELECT 1 FROM json_each(%s, '%s') AS %s WHERE %s))",
			s.root, path, s.root, path, alias, body)
	}
}

// Materialize implements compiler.FilterAdapter.
func (Adapter) Materialize(root Fragment) (*Where, error) {
	r := &renderer{}
	sql := root(r, scope{root: BodyColumn, path: "$"})
	return &Where{SQL: sql, Params: r.params}, nil
}

func extract(s scope, key string) string {
	return fmt.Sprintf("json_extract(%s, '%s')", s.root, s.field(key))
}

var plainKey = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// pathSegment renders one JSON path key, quoting keys that are not plain
// identifiers.
func pathSegment(key string) string {
	if plainKey.MatchString(key) {
		return key
	}
	quoted := strings.ReplaceAll(key, `"`, `\"`)
	return `"` + strings.ReplaceAll(quoted, "'", "''") + `"`
}

// placeholder binds param. Decimals are cast so they compare numerically
// against JSON numbers.
func placeholder(r *renderer, v ir.Value, param any) string {
	holder := r.bind(param)
	if _, ok := v.(ir.Decimal); ok {
		return "CAST(" + holder + " AS REAL)"
	}
	return holder
}

// paramOf converts a coerced literal to a driver parameter. Booleans bind
// as 0/1, which is how json_extract reports JSON booleans.
func paramOf(v ir.Value) (any, error) {
	switch val := v.(type) {
	case ir.String:
		return string(val), nil
	case ir.Enum:
		return string(val), nil
	case ir.Int:
		return int64(val), nil
	case ir.Decimal:
		return val.String(), nil
	case ir.Bool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	case nil, ir.Null:
		return nil, nil
	default:
		return nil, fmt.Errorf("%s cannot be used as SQL parameter directly", ir.KindOf(v))
	}
}
