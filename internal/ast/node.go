package ast

import "github.com/roach88/sieve/internal/ir"

// Node is a filter or sort expression tree node.
//
// This is a sealed interface - only types in this package implement it.
// Compilers walk trees with exhaustive type switches.
//
// Node types:
//   - Object: field bindings (implicit AND for filters, one composite key for sorts)
//   - Field: a named field and the node bound to it
//   - Operator: an operator tag and its operand
//   - Sort: a sort direction, optionally with the full field path
//   - List: sibling nodes sharing a combinator
//   - Literal: a scalar, enum, or null value
type Node interface {
	astNode() // Marker method - seals interface to this package
}

// Object is an ordered set of entries. Entries are *Field or *Operator.
//
// For filters, entries conjoin. For sorts, entries form one composite key
// whose priority follows declaration order.
type Object struct {
	Entries []Node
}

func (*Object) astNode() {}

// Field binds a child node to a field name. The name is the raw key from
// the query, which may carry a legacy operator suffix such as bar_in.
type Field struct {
	Name  string
	Value Node
}

func (*Field) astNode() {}

// Operator applies Op to Operand. Operand is a *Literal, a *List of
// literals (in, not_in), a *List of *Object (and, or), or an *Object
// (some).
type Operator struct {
	Op      Op
	Operand Node
}

func (*Operator) astNode() {}

// Sort is one sort key. Decoded sort trees carry the path in the
// enclosing Field chain and leave Path nil; programmatic trees may set
// Path directly and skip the nesting.
type Sort struct {
	Path      []string
	Direction Direction
}

func (*Sort) astNode() {}

// List is an ordered sequence of siblings sharing a combinator.
type List struct {
	Combinator Combinator
	Items      []Node
}

func (*List) astNode() {}

// Literal wraps a value.
type Literal struct {
	Value ir.Value
}

func (*Literal) astNode() {}

// NewObject builds an Object from entries.
func NewObject(entries ...Node) *Object {
	return &Object{Entries: entries}
}

// NewField binds value to name.
func NewField(name string, value Node) *Field {
	return &Field{Name: name, Value: value}
}

// NewOperator builds an operator node.
func NewOperator(op Op, operand Node) *Operator {
	return &Operator{Op: op, Operand: operand}
}

// NewLiteral wraps v.
func NewLiteral(v ir.Value) *Literal {
	return &Literal{Value: v}
}

// NewValues builds a literal list for in and not_in.
func NewValues(values ...ir.Value) *List {
	items := make([]Node, len(values))
	for i, v := range values {
		items[i] = NewLiteral(v)
	}
	return &List{Combinator: Sequence, Items: items}
}

// SortBy builds a sort key on a dotted field path.
func SortBy(dir Direction, path ...string) *Sort {
	return &Sort{Path: path, Direction: dir}
}
