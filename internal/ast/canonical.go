package ast

import (
	"fmt"

	"github.com/roach88/sieve/internal/ir"
)

// Canonical encodes the shape of a tree deterministically. Equal trees,
// including entry order, encode to equal bytes. Strings are NFC normalized.
//
// Canonical is the AST half of a compiled-artifact cache key; the schema
// version is the other half.
func Canonical(n Node) ([]byte, error) {
	v, err := canonicalValue(n)
	if err != nil {
		return nil, err
	}
	return ir.MarshalCanonical(v)
}

func canonicalValue(n Node) (any, error) {
	switch node := n.(type) {
	case nil:
		return nil, nil
	case *Object:
		entries := make([]any, 0, len(node.Entries))
		for _, e := range node.Entries {
			v, err := canonicalValue(e)
			if err != nil {
				return nil, err
			}
			entries = append(entries, v)
		}
		return map[string]any{"object": entries}, nil
	case *Field:
		v, err := canonicalValue(node.Value)
		if err != nil {
			return nil, err
		}
		return map[string]any{"field": node.Name, "value": v}, nil
	case *Operator:
		v, err := canonicalValue(node.Operand)
		if err != nil {
			return nil, err
		}
		return map[string]any{"op": node.Op.String(), "operand": v}, nil
	case *Sort:
		path := make([]any, len(node.Path))
		for i, p := range node.Path {
			path[i] = p
		}
		return map[string]any{"sort": path, "dir": node.Direction.String()}, nil
	case *List:
		items := make([]any, 0, len(node.Items))
		for _, item := range node.Items {
			v, err := canonicalValue(item)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return map[string]any{"list": node.Combinator.String(), "items": items}, nil
	case *Literal:
		return map[string]any{"literal": node.Value}, nil
	default:
		return nil, fmt.Errorf("canonical: unknown node type %T", n)
	}
}
