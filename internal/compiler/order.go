package compiler

import (
	"errors"
	"fmt"

	"github.com/roach88/sieve/internal/ast"
	"github.com/roach88/sieve/internal/ir"
	"github.com/roach88/sieve/internal/schema"
)

// CompileOrder lowers a sort tree against table into adapter's ordering.
//
// Keys keep declaration order as priority: entries of one object in the
// order written, then objects of a list in list order. The first key is
// the primary sort and each later key only breaks ties. A nil tree or an
// empty object yields ComposeOrder(nil).
//
// Sort keys may cross object fields but never list fields, and must end at
// a scalar, enum, or boolean field.
func CompileOrder[K, O any](table *schema.Table, order ast.Node, adapter SortAdapter[K, O]) (O, error) {
	var zero O
	c := &orderContext[K, O]{adapter: adapter}

	if order != nil {
		if err := ast.Validate(order); err != nil {
			return zero, fromSyntax(err)
		}
		if err := c.node(table, nil, order); err != nil {
			return zero, err
		}
	}

	composed, err := adapter.ComposeOrder(c.keys)
	if err != nil {
		return zero, c.adapterError(err)
	}
	return composed, nil
}

// orderContext is owned by one CompileOrder call.
type orderContext[K, O any] struct {
	adapter SortAdapter[K, O]
	keys    []K
}

func (c *orderContext[K, O]) adapterError(err error) *CompileError {
	var ce *CompileError
	if errors.As(err, &ce) {
		copied := *ce
		return &copied
	}
	return &CompileError{Code: CodeUnsupportedOperator, Message: err.Error(), Err: err}
}

// node walks one sort node. prefix holds the accessors from the root to
// scope.
func (c *orderContext[K, O]) node(scope *schema.Table, prefix []Accessor, n ast.Node) error {
	switch node := n.(type) {
	case *ast.List:
		for _, item := range node.Items {
			switch item.(type) {
			case *ast.Object, *ast.Sort:
			default:
				return &CompileError{
					Code:    CodeMalformedAST,
					Path:    pathOf(prefix),
					Message: "sort lists hold objects or sort keys",
				}
			}
			if err := c.node(scope, prefix, item); err != nil {
				return err
			}
		}
		return nil

	case *ast.Object:
		for _, entry := range node.Entries {
			field, ok := entry.(*ast.Field)
			if !ok {
				return &CompileError{
					Code:    CodeMalformedAST,
					Path:    pathOf(prefix),
					Message: "operators are not allowed in sort arguments",
				}
			}
			if err := c.field(scope, prefix, field); err != nil {
				return err
			}
		}
		return nil

	case *ast.Sort:
		if len(node.Path) == 0 {
			return &CompileError{
				Code:    CodeMalformedAST,
				Path:    pathOf(prefix),
				Message: "sort key needs a field",
			}
		}
		return c.path(scope, prefix, node)

	default:
		return &CompileError{
			Code:    CodeMalformedAST,
			Path:    pathOf(prefix),
			Message: "sort argument must be an object or a list of objects",
		}
	}
}

func (c *orderContext[K, O]) field(scope *schema.Table, prefix []Accessor, field *ast.Field) error {
	d, ok := scope.Lookup(field.Name)
	if !ok {
		return &CompileError{
			Code:    CodeUnknownField,
			Path:    joinPath(append(names(prefix), field.Name)),
			Message: fmt.Sprintf("%s has no field %s", scope.Name(), field.Name),
		}
	}
	path := append(cloneAccessors(prefix), accessorOf(d))

	switch v := field.Value.(type) {
	case *ast.Sort:
		if len(v.Path) > 0 {
			// A programmatic key nested under a field continues from it.
			if err := navigable(d, path); err != nil {
				return err
			}
			return c.path(d.Nested, path, v)
		}
		return c.leaf(d, path, v.Direction)

	case *ast.Object:
		if err := navigable(d, path); err != nil {
			return err
		}
		return c.node(d.Nested, path, v)

	case *ast.Literal:
		return &CompileError{
			Code:    CodeMalformedAST,
			Path:    pathOf(path),
			Message: fmt.Sprintf("expected ASC or DESC, got %s", describeLiteral(v)),
		}

	default:
		return &CompileError{
			Code:    CodeMalformedAST,
			Path:    pathOf(path),
			Message: "expected ASC, DESC, or a nested object",
		}
	}
}

// path resolves a programmatic Sort whose Path is relative to scope.
func (c *orderContext[K, O]) path(scope *schema.Table, prefix []Accessor, s *ast.Sort) error {
	if _, err := scope.Resolve(s.Path); err != nil {
		return fromResolve(names(prefix), err)
	}

	full := cloneAccessors(prefix)
	current := scope
	for i, segment := range s.Path {
		d, _ := current.Lookup(segment)
		full = append(full, accessorOf(d))
		if i == len(s.Path)-1 {
			return c.leaf(d, full, s.Direction)
		}
		if err := navigable(d, full); err != nil {
			return err
		}
		current = d.Nested
	}
	return nil
}

func (c *orderContext[K, O]) leaf(d schema.Descriptor, path []Accessor, dir ast.Direction) error {
	if !d.Kind.Terminal() {
		return &CompileError{
			Code:    CodeNotNavigable,
			Path:    pathOf(path),
			Message: fmt.Sprintf("cannot sort by %s field %s; select one of its fields", d.Kind, d.Name),
		}
	}
	for _, a := range path[:len(path)-1] {
		if a.Kind == schema.KindObjectList {
			return &CompileError{
				Code:    CodeNotNavigable,
				Path:    pathOf(path),
				Message: fmt.Sprintf("cannot sort through list field %s", a.Name),
			}
		}
	}

	key, err := c.adapter.Order(path, dir)
	if err != nil {
		ce := c.adapterError(err)
		if ce.Path == "" {
			ce.Path = pathOf(path)
		}
		return ce
	}
	c.keys = append(c.keys, key)
	return nil
}

// navigable checks that a sort may descend into d.
func navigable(d schema.Descriptor, path []Accessor) error {
	switch d.Kind {
	case schema.KindObject:
		return nil
	case schema.KindObjectList:
		return &CompileError{
			Code:    CodeNotNavigable,
			Path:    pathOf(path),
			Message: fmt.Sprintf("cannot sort through list field %s", d.Name),
		}
	default:
		return &CompileError{
			Code:    CodeNotNavigable,
			Path:    pathOf(path),
			Message: fmt.Sprintf("%s field %s has no fields", typeName(d), d.Name),
		}
	}
}

func names(path []Accessor) []string {
	out := make([]string, len(path))
	for i, a := range path {
		out[i] = a.Name
	}
	return out
}

func pathOf(path []Accessor) string {
	return joinPath(names(path))
}

func cloneAccessors(path []Accessor) []Accessor {
	out := make([]Accessor, len(path), len(path)+1)
	copy(out, path)
	return out
}

func describeLiteral(l *ast.Literal) string {
	if ir.IsNull(l.Value) {
		return "null"
	}
	return fmt.Sprint(ir.ToAny(l.Value))
}
