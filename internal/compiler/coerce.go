package compiler

import (
	"fmt"

	"github.com/roach88/sieve/internal/ast"
	"github.com/roach88/sieve/internal/ir"
	"github.com/roach88/sieve/internal/schema"
)

// checkOperator rejects operators that make no sense for a field kind.
func checkOperator(d schema.Descriptor, op ast.Op) *CompileError {
	switch d.Kind {
	case schema.KindObject, schema.KindObjectList:
		if op == ast.OpEq || op == ast.OpNeq {
			return nil
		}
	case schema.KindBoolean, schema.KindEnum:
		if op == ast.OpEq || op == ast.OpNeq || op.IsSet() {
			return nil
		}
	case schema.KindScalar:
		if !op.IsSubstring() || d.Scalar == schema.ScalarString {
			return nil
		}
	}
	return &CompileError{
		Code:    CodeTypeMismatch,
		Message: fmt.Sprintf("operator %s does not apply to %s field %s", op, typeName(d), d.Name),
	}
}

// coerce types a literal against its field. Set operators always yield an
// ir.List; a single literal becomes a one-element list.
func coerce(d schema.Descriptor, op ast.Op, v ir.Value) (ir.Value, *CompileError) {
	if op.IsSet() {
		items, ok := v.(ir.List)
		if !ok {
			items = ir.List{v}
		}
		out := make(ir.List, len(items))
		for i, item := range items {
			if ir.IsNull(item) {
				if !d.Nullable {
					return nil, nullMismatch(d)
				}
				out[i] = ir.Null{}
				continue
			}
			c, err := coerceValue(d, item)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	}

	if ir.IsNull(v) {
		if !d.Nullable {
			return nil, nullMismatch(d)
		}
		if op != ast.OpEq && op != ast.OpNeq {
			return nil, &CompileError{
				Code:    CodeTypeMismatch,
				Message: fmt.Sprintf("null only compares with eq or neq, not %s", op),
			}
		}
		return ir.Null{}, nil
	}

	if _, isList := v.(ir.List); isList {
		return nil, &CompileError{
			Code:    CodeMalformedAST,
			Message: fmt.Sprintf("operator %s requires a single value", op),
		}
	}
	return coerceValue(d, v)
}

func coerceValue(d schema.Descriptor, v ir.Value) (ir.Value, *CompileError) {
	switch d.Kind {
	case schema.KindScalar:
		switch d.Scalar {
		case schema.ScalarInt:
			switch n := v.(type) {
			case ir.Int:
				return n, nil
			case ir.Decimal:
				if i, ok := n.AsInt(); ok {
					return i, nil
				}
				if n.IsInteger() {
					return nil, &CompileError{
						Code:    CodeTypeMismatch,
						Message: fmt.Sprintf("%s is out of range for int field %s", n, d.Name),
					}
				}
			}
		case schema.ScalarFloat:
			switch v.(type) {
			case ir.Int, ir.Decimal:
				return v, nil
			}
		case schema.ScalarString:
			if s, ok := v.(ir.String); ok {
				return s, nil
			}
		}

	case schema.KindBoolean:
		if b, ok := v.(ir.Bool); ok {
			return b, nil
		}

	case schema.KindEnum:
		var name string
		switch e := v.(type) {
		case ir.Enum:
			name = string(e)
		case ir.String:
			name = string(e)
		default:
			return nil, kindMismatch(d, v)
		}
		if !d.HasValue(name) {
			return nil, &CompileError{
				Code:    CodeTypeMismatch,
				Message: fmt.Sprintf("%s is not a value of enum field %s", name, d.Name),
			}
		}
		return ir.Enum(name), nil

	case schema.KindObject, schema.KindObjectList:
		return nil, &CompileError{
			Code:    CodeTypeMismatch,
			Message: fmt.Sprintf("%s field %s only compares with null", typeName(d), d.Name),
		}
	}
	return nil, kindMismatch(d, v)
}

func nullMismatch(d schema.Descriptor) *CompileError {
	return &CompileError{
		Code:    CodeTypeMismatch,
		Message: fmt.Sprintf("null is not allowed on non-nullable field %s", d.Name),
	}
}

func kindMismatch(d schema.Descriptor, v ir.Value) *CompileError {
	return &CompileError{
		Code:    CodeTypeMismatch,
		Message: fmt.Sprintf("field %s expects %s, got %s", d.Name, typeName(d), ir.KindOf(v)),
	}
}

func typeName(d schema.Descriptor) string {
	if d.Kind == schema.KindScalar {
		return d.Scalar.String()
	}
	return d.Kind.String()
}
