package ast

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/sieve/internal/ir"
)

// ErrMalformed is the sentinel wrapped by every structural AST problem.
var ErrMalformed = errors.New("malformed ast")

// SyntaxError reports a structurally invalid filter or sort argument.
// Line and Column are set when the problem came from decoded text.
type SyntaxError struct {
	Path    string
	Message string
	Line    int
	Column  int
}

func (e *SyntaxError) Error() string {
	var sb strings.Builder
	if e.Line > 0 {
		fmt.Fprintf(&sb, "line %d:%d: ", e.Line, e.Column)
	}
	if e.Path != "" {
		sb.WriteString(e.Path)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Message)
	return sb.String()
}

func (e *SyntaxError) Unwrap() error {
	return ErrMalformed
}

// DecodeFilter parses a filter argument written in YAML or JSON.
//
//	{bar: "a"}                           equality shorthand
//	{foo: {barShort: {gte: 12}}}         nested operator form
//	{bar_in: ["a", "b"]}                 legacy suffix form
//	{or: [{bar: "a"}, {bar: "b"}]}       explicit combinators
func DecodeFilter(data []byte) (Node, error) {
	root, err := parseDocument(data)
	if err != nil {
		return nil, err
	}
	return DecodeFilterNode(root)
}

// DecodeFilterNode decodes a filter from an already parsed YAML node, such
// as a field of a scenario file.
func DecodeFilterNode(n *yaml.Node) (Node, error) {
	n = resolveAlias(n)
	if n.Kind != yaml.MappingNode {
		return nil, syntaxErr(n, "", "filter must be an object")
	}
	return decodeFilterObject(n, "")
}

// DecodeOrder parses a sort argument written in YAML or JSON: an object
// such as {foo: {barShort: ASC}} or a list of such objects.
func DecodeOrder(data []byte) (Node, error) {
	root, err := parseDocument(data)
	if err != nil {
		return nil, err
	}
	return DecodeOrderNode(root)
}

// DecodeOrderNode decodes a sort argument from a parsed YAML node.
func DecodeOrderNode(n *yaml.Node) (Node, error) {
	n = resolveAlias(n)
	switch n.Kind {
	case yaml.MappingNode:
		return decodeOrderObject(n, "")
	case yaml.SequenceNode:
		list := &List{Combinator: Sequence}
		for i, item := range n.Content {
			item = resolveAlias(item)
			path := fmt.Sprintf("[%d]", i)
			if item.Kind != yaml.MappingNode {
				return nil, syntaxErr(item, path, "sort entries must be objects")
			}
			obj, err := decodeOrderObject(item, path)
			if err != nil {
				return nil, err
			}
			list.Items = append(list.Items, obj)
		}
		return list, nil
	default:
		return nil, syntaxErr(n, "", "order must be an object or a list of objects")
	}
}

func parseDocument(data []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &SyntaxError{Message: err.Error()}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, &SyntaxError{Message: "empty document"}
	}
	return doc.Content[0], nil
}

func decodeFilterObject(n *yaml.Node, path string) (*Object, error) {
	obj := &Object{}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, value := n.Content[i], resolveAlias(n.Content[i+1])
		if key.Kind != yaml.ScalarNode {
			return nil, syntaxErr(key, path, "keys must be strings")
		}
		childPath := joinPath(path, key.Value)

		if op, ok := ParseOp(key.Value); ok {
			operand, err := decodeOperand(op, value, childPath)
			if err != nil {
				return nil, err
			}
			obj.Entries = append(obj.Entries, &Operator{Op: op, Operand: operand})
			continue
		}

		var child Node
		var err error
		switch value.Kind {
		case yaml.MappingNode:
			child, err = decodeFilterObject(value, childPath)
		case yaml.SequenceNode:
			child, err = decodeLiteralList(value, childPath)
		default:
			child, err = decodeLiteral(value, childPath)
		}
		if err != nil {
			return nil, err
		}
		obj.Entries = append(obj.Entries, &Field{Name: key.Value, Value: child})
	}
	return obj, nil
}

func decodeOperand(op Op, value *yaml.Node, path string) (Node, error) {
	switch {
	case op.IsCombinator():
		list := &List{Combinator: And}
		if op == OpOr {
			list.Combinator = Or
		}
		switch value.Kind {
		case yaml.MappingNode:
			// A single object stands for a one-element list.
			obj, err := decodeFilterObject(value, path)
			if err != nil {
				return nil, err
			}
			list.Items = append(list.Items, obj)
		case yaml.SequenceNode:
			for i, item := range value.Content {
				item = resolveAlias(item)
				itemPath := fmt.Sprintf("%s[%d]", path, i)
				if item.Kind != yaml.MappingNode {
					return nil, syntaxErr(item, itemPath, op.String()+" items must be objects")
				}
				obj, err := decodeFilterObject(item, itemPath)
				if err != nil {
					return nil, err
				}
				list.Items = append(list.Items, obj)
			}
		default:
			return nil, syntaxErr(value, path, op.String()+" requires a list of objects")
		}
		return list, nil

	case op == OpSome:
		if value.Kind != yaml.MappingNode {
			return nil, syntaxErr(value, path, "some requires an object")
		}
		return decodeFilterObject(value, path)

	case value.Kind == yaml.SequenceNode:
		return decodeLiteralList(value, path)

	case value.Kind == yaml.MappingNode:
		return nil, syntaxErr(value, path, op.String()+" requires a value, not an object")

	default:
		return decodeLiteral(value, path)
	}
}

func decodeLiteralList(n *yaml.Node, path string) (*List, error) {
	list := &List{Combinator: Sequence}
	for i, item := range n.Content {
		lit, err := decodeLiteral(resolveAlias(item), fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		list.Items = append(list.Items, lit)
	}
	return list, nil
}

// decodeLiteral maps a YAML scalar onto the IR by its resolved tag.
// Enum literals arrive as strings and are typed later against the schema.
func decodeLiteral(n *yaml.Node, path string) (*Literal, error) {
	if n.Kind != yaml.ScalarNode {
		return nil, syntaxErr(n, path, "expected a scalar value")
	}

	switch n.ShortTag() {
	case "!!null":
		return &Literal{Value: ir.Null{}}, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, syntaxErr(n, path, err.Error())
		}
		return &Literal{Value: ir.Bool(b)}, nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err == nil {
			return &Literal{Value: ir.Int(i)}, nil
		}
		d, err := ir.NewDecimal(n.Value)
		if err != nil {
			return nil, syntaxErr(n, path, err.Error())
		}
		return &Literal{Value: d}, nil
	case "!!float":
		d, err := ir.NewDecimal(n.Value)
		if err != nil {
			return nil, syntaxErr(n, path, err.Error())
		}
		if i, ok := d.AsInt(); ok {
			return &Literal{Value: i}, nil
		}
		return &Literal{Value: d}, nil
	default:
		return &Literal{Value: ir.String(n.Value)}, nil
	}
}

func decodeOrderObject(n *yaml.Node, path string) (*Object, error) {
	obj := &Object{}
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, value := n.Content[i], resolveAlias(n.Content[i+1])
		if key.Kind != yaml.ScalarNode {
			return nil, syntaxErr(key, path, "keys must be strings")
		}
		childPath := joinPath(path, key.Value)

		var child Node
		switch value.Kind {
		case yaml.MappingNode:
			nested, err := decodeOrderObject(value, childPath)
			if err != nil {
				return nil, err
			}
			child = nested
		case yaml.ScalarNode:
			if dir, ok := ParseDirection(value.Value); ok {
				child = &Sort{Direction: dir}
			} else {
				// Left for the compiler to reject with the field path.
				lit, err := decodeLiteral(value, childPath)
				if err != nil {
					return nil, err
				}
				child = lit
			}
		default:
			return nil, syntaxErr(value, childPath, "expected ASC, DESC, or a nested object")
		}
		obj.Entries = append(obj.Entries, &Field{Name: key.Value, Value: child})
	}
	return obj, nil
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func syntaxErr(n *yaml.Node, path, msg string) *SyntaxError {
	return &SyntaxError{Path: path, Message: msg, Line: n.Line, Column: n.Column}
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
