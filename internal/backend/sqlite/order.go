package sqlite

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/sieve/internal/ast"
	"github.com/roach88/sieve/internal/compiler"
	"github.com/roach88/sieve/internal/schema"
)

// OrderKey is one compiled sort key.
type OrderKey struct {
	Path      string // JSON path, e.g. $.foo.barShort
	Direction ast.Direction
	Ranks     []string // enum values in declaration order, bound in SQL
}

// SQL renders the key against the body column. An enum key sorts by its
// value's declaration rank; undeclared values rank as NULL.
func (k OrderKey) SQL() string {
	expr := "json_extract(" + BodyColumn + ", '" + k.Path + "')"
	if len(k.Ranks) == 0 {
		return expr + " " + k.Direction.String()
	}
	var b strings.Builder
	b.WriteString("CASE ")
	b.WriteString(expr)
	for i := range k.Ranks {
		fmt.Fprintf(&b, " WHEN ? THEN %d", i)
	}
	b.WriteString(" END ")
	b.WriteString(k.Direction.String())
	return b.String()
}

// OrderBy is a compiled ordering.
type OrderBy struct {
	Keys []OrderKey
}

// Params returns the values bound by SQL, in placeholder order.
func (o *OrderBy) Params() []any {
	if o == nil {
		return nil
	}
	var params []any
	for _, k := range o.Keys {
		for _, v := range k.Ranks {
			params = append(params, v)
		}
	}
	return params
}

// SQL renders the ORDER BY terms without the keyword, or "" when there are
// no keys.
func (o *OrderBy) SQL() string {
	if o == nil {
		return ""
	}
	terms := make([]string, len(o.Keys))
	for i, k := range o.Keys {
		terms[i] = k.SQL()
	}
	return strings.Join(terms, ", ")
}

// Order implements compiler.SortAdapter.
func (Adapter) Order(path []compiler.Accessor, dir ast.Direction) (OrderKey, error) {
	var b strings.Builder
	b.WriteString("$")
	for _, key := range compiler.Keys(path) {
		b.WriteString(".")
		b.WriteString(pathSegment(key))
	}
	key := OrderKey{Path: b.String(), Direction: dir}
	if leaf := path[len(path)-1]; leaf.Kind == schema.KindEnum {
		key.Ranks = slices.Clone(leaf.Values)
	}
	return key, nil
}

// ComposeOrder implements compiler.SortAdapter.
func (Adapter) ComposeOrder(keys []OrderKey) (*OrderBy, error) {
	return &OrderBy{Keys: append([]OrderKey(nil), keys...)}, nil
}
