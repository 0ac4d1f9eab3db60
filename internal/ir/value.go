package ir

import (
	"fmt"
	"math"
	"slices"
	"unicode/utf16"

	"github.com/shopspring/decimal"
)

// Value is a sealed interface representing literal and record values.
// Only Null, String, Int, Decimal, Bool, Enum, List, and Object implement it.
// Binary floats never enter the IR; non-integral numbers are Decimal.
type Value interface {
	irValue() // Sealed - only these types implement it
}

// Kind tags a Value for exhaustive dispatch without reflection.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindDecimal
	KindBool
	KindEnum
	KindList
	KindObject
)

var kindNames = [...]string{
	KindNull:    "null",
	KindString:  "string",
	KindInt:     "int",
	KindDecimal: "float",
	KindBool:    "boolean",
	KindEnum:    "enum",
	KindList:    "list",
	KindObject:  "object",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Null represents an explicit null.
// Using an explicit type ensures all Values satisfy the sealed interface.
type Null struct{}

func (Null) irValue() {}

// String represents a string value.
type String string

func (String) irValue() {}

// Int represents an integer value. Always int64.
type Int int64

func (Int) irValue() {}

// Decimal represents a non-integral number with exact decimal semantics.
type Decimal struct {
	decimal.Decimal
}

func (Decimal) irValue() {}

var (
	minInt64 = decimal.NewFromInt(math.MinInt64)
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
)

// AsInt returns d as an Int when it is integral and within int64 range.
func (d Decimal) AsInt() (Int, bool) {
	if !d.IsInteger() || d.LessThan(minInt64) || d.GreaterThan(maxInt64) {
		return 0, false
	}
	return Int(d.IntPart()), true
}

// Bool represents a boolean value.
type Bool bool

func (Bool) irValue() {}

// Enum represents a symbolic enum value such as ASC or BAZ.
type Enum string

func (Enum) irValue() {}

// List represents an ordered list of values.
type List []Value

func (List) irValue() {}

// Object represents a map of string keys to values.
// Use SortedKeys() for deterministic iteration.
type Object map[string]Value

func (Object) irValue() {}

// NewDecimal parses s into a Decimal value.
func NewDecimal(s string) (Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Decimal{}, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return Decimal{d}, nil
}

// MustDecimal is NewDecimal for literals known to be valid. Panics otherwise.
func MustDecimal(s string) Decimal {
	d, err := NewDecimal(s)
	if err != nil {
		panic(err)
	}
	return d
}

// KindOf returns the kind tag of v. A nil Value reports KindNull.
func KindOf(v Value) Kind {
	switch v.(type) {
	case nil, Null:
		return KindNull
	case String:
		return KindString
	case Int:
		return KindInt
	case Decimal:
		return KindDecimal
	case Bool:
		return KindBool
	case Enum:
		return KindEnum
	case List:
		return KindList
	case Object:
		return KindObject
	default:
		panic(fmt.Sprintf("ir: unknown value type %T", v))
	}
}

// IsNull reports whether v is nil or Null.
func IsNull(v Value) bool {
	return KindOf(v) == KindNull
}

// Get returns the value stored under key, treating a missing key as Null.
func (obj Object) Get(key string) Value {
	if v, ok := obj[key]; ok && v != nil {
		return v
	}
	return Null{}
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings uses UTF-8 which produces a different order.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785 (Canonical JSON).
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	default:
		return 0
	}
}

// FromAny converts a decoded Go value (as produced by encoding/json with
// UseNumber, or by yaml.v3) into a Value.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint64:
		if val > 1<<63-1 {
			return nil, fmt.Errorf("integer out of int64 range: %d", val)
		}
		return Int(int64(val)), nil
	case float64:
		return fromFloat(val), nil
	case decimal.Decimal:
		return Decimal{val}, nil
	case interface{ Int64() (int64, error) }:
		// json.Number
		return fromNumberString(fmt.Sprint(val))
	case []any:
		list := make(List, len(val))
		for i, elem := range val {
			item, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			list[i] = item
		}
		return list, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			item, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = item
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// fromFloat keeps integral floats as Int so YAML and JSON sources agree.
func fromFloat(f float64) Value {
	d := decimal.NewFromFloat(f)
	if d.IsInteger() && d.Abs().LessThan(decimal.New(1, 18)) {
		return Int(d.IntPart())
	}
	return Decimal{d}
}

// ToAny converts v into plain Go values for encoders that do not know the IR.
// Decimals become their exact string form only when they cannot be
// represented as an integer.
func ToAny(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Decimal:
		return val.Decimal
	case Bool:
		return bool(val)
	case Enum:
		return string(val)
	case List:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = ToAny(item)
		}
		return out
	case Object:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = ToAny(item)
		}
		return out
	default:
		panic(fmt.Sprintf("ir: unknown value type %T", v))
	}
}
