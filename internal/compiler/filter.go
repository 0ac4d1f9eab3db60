package compiler

import (
	"errors"
	"fmt"

	"github.com/roach88/sieve/internal/ast"
	"github.com/roach88/sieve/internal/ir"
	"github.com/roach88/sieve/internal/schema"
)

// CompileFilter lowers a filter tree against table into adapter's artifact
// in one depth-first pass.
//
// Semantics:
//   - Object entries conjoin; an empty object is always true
//   - A literal bound directly to a field means eq
//   - Several operators under one field conjoin
//   - A nested object under a list field matches if any element matches
//   - in and not_in accept a single value as a one-element set
//   - null is only valid against nullable fields, and only with eq or neq
//
// CompileFilter is pure: it never touches a data source, and the same
// tree, table, and adapter always produce the same artifact or error.
func CompileFilter[F, A any](table *schema.Table, filter ast.Node, adapter FilterAdapter[F, A]) (A, error) {
	var zero A
	if err := ast.Validate(filter); err != nil {
		return zero, fromSyntax(err)
	}
	root, ok := filter.(*ast.Object)
	if !ok {
		return zero, &CompileError{Code: CodeMalformedAST, Message: "filter must be an object"}
	}

	c := &filterContext[F, A]{adapter: adapter}
	f, err := c.object(table, root)
	if err != nil {
		return zero, err
	}
	artifact, err := adapter.Materialize(f)
	if err != nil {
		return zero, c.adapterError(err)
	}
	return artifact, nil
}

// filterContext is owned by one CompileFilter call.
type filterContext[F, A any] struct {
	adapter FilterAdapter[F, A]
	path    []string
}

func (c *filterContext[F, A]) push(name string) { c.path = append(c.path, name) }
func (c *filterContext[F, A]) pop()             { c.path = c.path[:len(c.path)-1] }

// fail attaches the current path to err.
func (c *filterContext[F, A]) fail(err *CompileError) error {
	if err.Path == "" {
		err.Path = joinPath(c.path)
	}
	return err
}

func (c *filterContext[F, A]) adapterError(err error) error {
	var ce *CompileError
	if errors.As(err, &ce) {
		copied := *ce
		return c.fail(&copied)
	}
	return c.fail(&CompileError{Code: CodeUnsupportedOperator, Message: err.Error(), Err: err})
}

func (c *filterContext[F, A]) conjoin(frags []F) F {
	if len(frags) == 1 {
		return frags[0]
	}
	return c.adapter.Combine(frags, ast.And)
}

// object compiles the entries of obj as fields of scope.
func (c *filterContext[F, A]) object(scope *schema.Table, obj *ast.Object) (F, error) {
	var zero F
	var frags []F
	for _, entry := range obj.Entries {
		var f F
		var err error
		switch e := entry.(type) {
		case *ast.Field:
			f, err = c.field(scope, e)
		case *ast.Operator:
			if !e.Op.IsCombinator() {
				return zero, c.fail(&CompileError{
					Code:    CodeMalformedAST,
					Message: fmt.Sprintf("operator %s must be bound to a field", e.Op),
				})
			}
			f, err = c.combinator(e, func(item *ast.Object) (F, error) {
				return c.object(scope, item)
			})
		}
		if err != nil {
			return zero, err
		}
		frags = append(frags, f)
	}
	return c.conjoin(frags), nil
}

// combinator compiles each item of an and/or list with compile and joins
// the results.
func (c *filterContext[F, A]) combinator(op *ast.Operator, compile func(*ast.Object) (F, error)) (F, error) {
	var zero F
	list := op.Operand.(*ast.List)
	if len(list.Items) == 0 {
		return zero, c.fail(&CompileError{
			Code:    CodeMalformedAST,
			Message: fmt.Sprintf("%s requires at least one object", op.Op),
		})
	}

	frags := make([]F, 0, len(list.Items))
	for _, item := range list.Items {
		f, err := compile(item.(*ast.Object))
		if err != nil {
			return zero, err
		}
		frags = append(frags, f)
	}
	if len(frags) == 1 {
		return frags[0], nil
	}
	comb := ast.And
	if op.Op == ast.OpOr {
		comb = ast.Or
	}
	return c.adapter.Combine(frags, comb), nil
}

// field resolves a field entry, trying the exact name before each legacy
// operator suffix split.
func (c *filterContext[F, A]) field(scope *schema.Table, field *ast.Field) (F, error) {
	var zero F

	d, ok := scope.Lookup(field.Name)
	suffixOp := ast.OpInvalid
	if !ok {
		for name, op := range ast.Splits(field.Name) {
			if d, ok = scope.Lookup(name); ok {
				suffixOp = op
				break
			}
		}
	}
	if !ok {
		c.push(field.Name)
		defer c.pop()
		return zero, c.fail(&CompileError{
			Code:    CodeUnknownField,
			Message: fmt.Sprintf("%s has no field %s", scope.Name(), field.Name),
		})
	}

	c.push(d.Name)
	defer c.pop()
	acc := accessorOf(d)

	if suffixOp != ast.OpInvalid {
		return c.compare(d, acc, suffixOp, field.Value)
	}

	switch v := field.Value.(type) {
	case *ast.Literal:
		return c.compare(d, acc, ast.OpEq, v)
	case *ast.Object:
		switch d.Kind {
		case schema.KindObject:
			return c.nested(d, acc, v)
		case schema.KindObjectList:
			return c.collection(d, acc, v)
		default:
			return c.operators(d, acc, v)
		}
	case *ast.List:
		return zero, c.fail(&CompileError{
			Code:    CodeMalformedAST,
			Message: "a list of values needs an operator such as in",
		})
	default:
		return zero, c.fail(&CompileError{
			Code:    CodeMalformedAST,
			Message: "field value must be a literal or an object",
		})
	}
}

// operators compiles the operator object of a scalar, enum, or boolean
// field. Nested and/or lists hold further operator objects for the same
// field.
func (c *filterContext[F, A]) operators(d schema.Descriptor, acc Accessor, obj *ast.Object) (F, error) {
	var zero F
	var frags []F
	for _, entry := range obj.Entries {
		var f F
		var err error
		switch e := entry.(type) {
		case *ast.Field:
			c.push(e.Name)
			err = c.fail(&CompileError{
				Code:    CodeNotNavigable,
				Message: fmt.Sprintf("%s field %s has no field %s", typeName(d), d.Name, e.Name),
			})
			c.pop()
		case *ast.Operator:
			switch {
			case e.Op.IsCombinator():
				f, err = c.combinator(e, func(item *ast.Object) (F, error) {
					return c.operators(d, acc, item)
				})
			case e.Op == ast.OpSome:
				err = c.fail(&CompileError{
					Code:    CodeTypeMismatch,
					Message: fmt.Sprintf("some does not apply to %s field %s", typeName(d), d.Name),
				})
			default:
				f, err = c.compare(d, acc, e.Op, e.Operand)
			}
		}
		if err != nil {
			return zero, err
		}
		frags = append(frags, f)
	}
	return c.conjoin(frags), nil
}

// nested compiles the object bound to an object field. Null checks apply
// to the field itself; everything else is a filter on its fields.
func (c *filterContext[F, A]) nested(d schema.Descriptor, acc Accessor, obj *ast.Object) (F, error) {
	return c.scoped(d, acc, obj, c.adapter.Object)
}

// collection compiles the object bound to a list field. Field entries and
// an explicit some both quantify existentially over the elements.
func (c *filterContext[F, A]) collection(d schema.Descriptor, acc Accessor, obj *ast.Object) (F, error) {
	return c.scoped(d, acc, obj, c.adapter.Exists)
}

func (c *filterContext[F, A]) scoped(d schema.Descriptor, acc Accessor, obj *ast.Object, wrap func(Accessor, F) F) (F, error) {
	var zero F
	var frags []F
	var inner []ast.Node

	for _, entry := range obj.Entries {
		op, isOp := entry.(*ast.Operator)
		switch {
		case !isOp, op.Op.IsCombinator():
			inner = append(inner, entry)
		case op.Op == ast.OpSome:
			if d.Kind != schema.KindObjectList {
				return zero, c.fail(&CompileError{
					Code:    CodeTypeMismatch,
					Message: fmt.Sprintf("some does not apply to %s field %s", typeName(d), d.Name),
				})
			}
			f, err := c.object(d.Nested, op.Operand.(*ast.Object))
			if err != nil {
				return zero, err
			}
			frags = append(frags, wrap(acc, f))
		default:
			f, err := c.compare(d, acc, op.Op, op.Operand)
			if err != nil {
				return zero, err
			}
			frags = append(frags, f)
		}
	}

	if len(inner) > 0 {
		f, err := c.object(d.Nested, &ast.Object{Entries: inner})
		if err != nil {
			return zero, err
		}
		frags = append(frags, wrap(acc, f))
	}
	if len(frags) == 0 {
		return c.adapter.Combine(nil, ast.And), nil
	}
	return c.conjoin(frags), nil
}

// compare type-checks one comparison and hands it to the adapter.
func (c *filterContext[F, A]) compare(d schema.Descriptor, acc Accessor, op ast.Op, operand ast.Node) (F, error) {
	var zero F

	var value ir.Value
	switch o := operand.(type) {
	case *ast.Literal:
		value = o.Value
	case *ast.List:
		if !op.IsSet() {
			return zero, c.fail(&CompileError{
				Code:    CodeMalformedAST,
				Message: fmt.Sprintf("operator %s requires a single value", op),
			})
		}
		list := make(ir.List, 0, len(o.Items))
		for _, item := range o.Items {
			lit, ok := item.(*ast.Literal)
			if !ok {
				return zero, c.fail(&CompileError{Code: CodeMalformedAST, Message: "set items must be literals"})
			}
			list = append(list, lit.Value)
		}
		value = list
	default:
		return zero, c.fail(&CompileError{
			Code:    CodeMalformedAST,
			Message: fmt.Sprintf("operator %s requires a value", op),
		})
	}

	if op.IsCombinator() || op == ast.OpSome {
		return zero, c.fail(&CompileError{
			Code:    CodeMalformedAST,
			Message: fmt.Sprintf("%s cannot be used as a field suffix", op),
		})
	}
	if ir.IsNull(value) && !d.Nullable {
		return zero, c.fail(nullMismatch(d))
	}
	if cerr := checkOperator(d, op); cerr != nil {
		return zero, c.fail(cerr)
	}
	v, cerr := coerce(d, op, value)
	if cerr != nil {
		return zero, c.fail(cerr)
	}

	f, err := c.adapter.Compare(acc, op, v)
	if err != nil {
		return zero, c.adapterError(err)
	}
	return f, nil
}
