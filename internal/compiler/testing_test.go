package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/sieve/internal/ast"
	"github.com/roach88/sieve/internal/ir"
	"github.com/roach88/sieve/internal/schema"
	"github.com/roach88/sieve/internal/testutil"
)

// exprAdapter renders fragments as readable strings so tests can assert
// on the structure the visitor produced.
type exprAdapter struct {
	noSubstring bool
}

func (a exprAdapter) Compare(acc Accessor, op ast.Op, v ir.Value) (string, error) {
	if a.noSubstring && op.IsSubstring() {
		return "", Unsupported(op, "no pattern matching")
	}
	return fmt.Sprintf("%s %s %s", acc.Key, op, render(v)), nil
}

func (exprAdapter) Combine(fs []string, c ast.Combinator) string {
	if len(fs) == 0 {
		return "true"
	}
	return "(" + strings.Join(fs, " "+strings.ToUpper(c.String())+" ") + ")"
}

func (exprAdapter) Object(acc Accessor, inner string) string {
	return acc.Key + "{" + inner + "}"
}

func (exprAdapter) Exists(acc Accessor, inner string) string {
	return "any " + acc.Key + "{" + inner + "}"
}

func (exprAdapter) Materialize(root string) (string, error) {
	return root, nil
}

func (exprAdapter) Order(path []Accessor, dir ast.Direction) (string, error) {
	return strings.Join(Keys(path), ".") + " " + dir.String(), nil
}

func (exprAdapter) ComposeOrder(keys []string) (string, error) {
	return strings.Join(keys, ", "), nil
}

func render(v ir.Value) string {
	switch val := v.(type) {
	case nil, ir.Null:
		return "null"
	case ir.String:
		return fmt.Sprintf("%q", string(val))
	case ir.Enum:
		return "#" + string(val)
	case ir.List:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = render(item)
		}
		return "[" + strings.Join(parts, ",") + "]"
	default:
		return fmt.Sprint(ir.ToAny(v))
	}
}

func barTable() *schema.Table {
	return testutil.BarTable()
}
