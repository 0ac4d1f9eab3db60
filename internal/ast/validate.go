package ast

import "fmt"

// Validate checks the structural shape of a tree without a schema.
//
// It rejects nil nodes, fields without names or values, operators without
// operands, combinators whose operand is not a list of objects, and set
// operators whose operand is neither a literal nor a list of literals.
// Type checks against field declarations belong to the compiler.
//
// Validate is a pure function; it returns the first problem found.
func Validate(n Node) error {
	return validate(n, "")
}

func validate(n Node, path string) error {
	switch node := n.(type) {
	case nil:
		return &SyntaxError{Path: path, Message: "missing node"}

	case *Object:
		if node == nil {
			return &SyntaxError{Path: path, Message: "missing object"}
		}
		for i, entry := range node.Entries {
			switch e := entry.(type) {
			case *Field, *Operator:
				if err := validate(e, path); err != nil {
					return err
				}
			default:
				return &SyntaxError{
					Path:    path,
					Message: fmt.Sprintf("entry %d must be a field or operator, got %s", i, describe(entry)),
				}
			}
		}
		return nil

	case *Field:
		if node == nil {
			return &SyntaxError{Path: path, Message: "missing field"}
		}
		if node.Name == "" {
			return &SyntaxError{Path: path, Message: "field name is required"}
		}
		fieldPath := joinPath(path, node.Name)
		if node.Value == nil {
			return &SyntaxError{Path: fieldPath, Message: "field has no value"}
		}
		return validate(node.Value, fieldPath)

	case *Operator:
		if node == nil {
			return &SyntaxError{Path: path, Message: "missing operator"}
		}
		opPath := joinPath(path, node.Op.String())
		if _, ok := opNames[node.Op]; !ok {
			return &SyntaxError{Path: path, Message: fmt.Sprintf("unknown operator %s", node.Op)}
		}
		if node.Operand == nil {
			return &SyntaxError{Path: opPath, Message: "operator has no operand"}
		}
		switch {
		case node.Op.IsCombinator():
			list, ok := node.Operand.(*List)
			if !ok || list == nil {
				return &SyntaxError{Path: opPath, Message: "combinator requires a list of objects"}
			}
			for i, item := range list.Items {
				if _, ok := item.(*Object); !ok {
					return &SyntaxError{
						Path:    fmt.Sprintf("%s[%d]", opPath, i),
						Message: "combinator items must be objects",
					}
				}
			}
		case node.Op == OpSome:
			if _, ok := node.Operand.(*Object); !ok {
				return &SyntaxError{Path: opPath, Message: "some requires an object"}
			}
		case node.Op.IsSet():
			if list, ok := node.Operand.(*List); ok && list != nil {
				for i, item := range list.Items {
					if _, ok := item.(*Literal); !ok {
						return &SyntaxError{
							Path:    fmt.Sprintf("%s[%d]", opPath, i),
							Message: "set items must be literals",
						}
					}
				}
			} else if _, ok := node.Operand.(*Literal); !ok {
				return &SyntaxError{Path: opPath, Message: "set operator requires a value or list of values"}
			}
		default:
			if _, ok := node.Operand.(*Literal); !ok {
				return &SyntaxError{Path: opPath, Message: "operator requires a single value"}
			}
		}
		return validate(node.Operand, opPath)

	case *List:
		if node == nil {
			return &SyntaxError{Path: path, Message: "missing list"}
		}
		for i, item := range node.Items {
			if err := validate(item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		return nil

	case *Sort:
		if node == nil {
			return &SyntaxError{Path: path, Message: "missing sort"}
		}
		if node.Direction != Ascending && node.Direction != Descending {
			return &SyntaxError{Path: path, Message: fmt.Sprintf("invalid direction %d", int(node.Direction))}
		}
		return nil

	case *Literal:
		if node == nil {
			return &SyntaxError{Path: path, Message: "missing literal"}
		}
		if node.Value == nil {
			return &SyntaxError{Path: path, Message: "literal has no value"}
		}
		return nil

	default:
		return &SyntaxError{Path: path, Message: fmt.Sprintf("unknown node type %T", n)}
	}
}

func describe(n Node) string {
	switch n.(type) {
	case nil:
		return "nothing"
	case *Object:
		return "object"
	case *Field:
		return "field"
	case *Operator:
		return "operator"
	case *Sort:
		return "sort"
	case *List:
		return "list"
	case *Literal:
		return "literal"
	default:
		return fmt.Sprintf("%T", n)
	}
}
