package ast

import (
	"fmt"
	"iter"
	"strings"
)

// Op is an operator tag.
type Op int

const (
	OpInvalid Op = iota
	OpEq
	OpNeq
	OpGt
	OpGte
	OpLt
	OpLte
	OpIn
	OpNotIn
	OpContains
	OpNotContains
	OpStartsWith
	OpNotStartsWith
	OpEndsWith
	OpNotEndsWith
	OpAnd
	OpOr
	OpSome
)

var opNames = map[Op]string{
	OpEq:            "eq",
	OpNeq:           "neq",
	OpGt:            "gt",
	OpGte:           "gte",
	OpLt:            "lt",
	OpLte:           "lte",
	OpIn:            "in",
	OpNotIn:         "not_in",
	OpContains:      "contains",
	OpNotContains:   "not_contains",
	OpStartsWith:    "starts_with",
	OpNotStartsWith: "not_starts_with",
	OpEndsWith:      "ends_with",
	OpNotEndsWith:   "not_ends_with",
	OpAnd:           "and",
	OpOr:            "or",
	OpSome:          "some",
}

var opsByName = func() map[string]Op {
	m := make(map[string]Op, len(opNames))
	for op, name := range opNames {
		m[name] = op
	}
	return m
}()

func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Op(%d)", int(op))
}

// ParseOp looks up an operator by its query name.
func ParseOp(name string) (Op, bool) {
	op, ok := opsByName[name]
	return op, ok
}

// IsCombinator reports whether op combines sub-filters (and, or).
func (op Op) IsCombinator() bool {
	return op == OpAnd || op == OpOr
}

// IsOrdering reports whether op is a range comparison.
func (op Op) IsOrdering() bool {
	return op == OpGt || op == OpGte || op == OpLt || op == OpLte
}

// IsSet reports whether op takes a list of values.
func (op Op) IsSet() bool {
	return op == OpIn || op == OpNotIn
}

// IsSubstring reports whether op needs pattern matching over strings.
func (op Op) IsSubstring() bool {
	switch op {
	case OpContains, OpNotContains, OpStartsWith, OpNotStartsWith, OpEndsWith, OpNotEndsWith:
		return true
	}
	return false
}

// IsNegated reports whether op is the negation of another operator.
func (op Op) IsNegated() bool {
	switch op {
	case OpNeq, OpNotIn, OpNotContains, OpNotStartsWith, OpNotEndsWith:
		return true
	}
	return false
}

// Positive returns the operator op negates, or op itself.
func (op Op) Positive() Op {
	switch op {
	case OpNeq:
		return OpEq
	case OpNotIn:
		return OpIn
	case OpNotContains:
		return OpContains
	case OpNotStartsWith:
		return OpStartsWith
	case OpNotEndsWith:
		return OpEndsWith
	}
	return op
}

// Combinator says how the items of a List relate.
type Combinator int

const (
	And Combinator = iota
	Or
	Sequence
)

func (c Combinator) String() string {
	switch c {
	case And:
		return "and"
	case Or:
		return "or"
	case Sequence:
		return "sequence"
	default:
		return fmt.Sprintf("Combinator(%d)", int(c))
	}
}

// Direction is a sort direction.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "DESC"
	}
	return "ASC"
}

// ParseDirection accepts ASC or DESC in any case.
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToUpper(s) {
	case "ASC":
		return Ascending, true
	case "DESC":
		return Descending, true
	}
	return Ascending, false
}

// suffixes lists legacy field-name operator suffixes, longest first so
// bar_not_in splits as bar + not_in before bar_not + in.
var suffixes = []struct {
	suffix string
	op     Op
}{
	{"_not_starts_with", OpNotStartsWith},
	{"_not_ends_with", OpNotEndsWith},
	{"_not_contains", OpNotContains},
	{"_starts_with", OpStartsWith},
	{"_ends_with", OpEndsWith},
	{"_contains", OpContains},
	{"_not_in", OpNotIn},
	{"_gte", OpGte},
	{"_lte", OpLte},
	{"_not", OpNeq},
	{"_in", OpIn},
	{"_gt", OpGt},
	{"_lt", OpLt},
}

// Splits yields every field/operator split of a legacy name, longest
// suffix first. foo_not_in yields foo + not_in, then foo_not + in.
func Splits(name string) iter.Seq2[string, Op] {
	return func(yield func(string, Op) bool) {
		for _, s := range suffixes {
			field, found := strings.CutSuffix(name, s.suffix)
			if !found || field == "" {
				continue
			}
			if !yield(field, s.op) {
				return
			}
		}
	}
}
