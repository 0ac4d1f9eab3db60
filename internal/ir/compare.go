package ir

import (
	"cmp"
	"strings"

	"github.com/shopspring/decimal"
)

// Compare imposes a total order over Values.
//
// Null is the lowest value. Int and Decimal compare numerically with each
// other. Strings compare byte-wise, false sorts before true, and enums by
// name. Values of unrelated kinds order by kind tag so the result stays
// total; compilers never produce such comparisons for a well-typed field.
func Compare(a, b Value) int {
	ka, kb := KindOf(a), KindOf(b)
	if ka == KindNull || kb == KindNull {
		switch {
		case ka == kb:
			return 0
		case ka == KindNull:
			return -1
		default:
			return 1
		}
	}

	if isNumeric(ka) && isNumeric(kb) {
		if ka == KindInt && kb == KindInt {
			return cmp.Compare(a.(Int), b.(Int))
		}
		return toDecimal(a).Cmp(toDecimal(b))
	}

	if ka != kb {
		return cmp.Compare(ka, kb)
	}

	switch av := a.(type) {
	case String:
		return strings.Compare(string(av), string(b.(String)))
	case Enum:
		return strings.Compare(string(av), string(b.(Enum)))
	case Bool:
		bv := b.(Bool)
		switch {
		case av == bv:
			return 0
		case !bool(av):
			return -1
		default:
			return 1
		}
	case List:
		bv := b.(List)
		for i := 0; i < min(len(av), len(bv)); i++ {
			if c := Compare(av[i], bv[i]); c != 0 {
				return c
			}
		}
		return cmp.Compare(len(av), len(bv))
	default:
		// Objects have no natural order.
		return 0
	}
}

// Equal reports whether a and b are equal under Compare. Objects are
// compared structurally.
func Equal(a, b Value) bool {
	ao, aok := a.(Object)
	bo, bok := b.(Object)
	if aok || bok {
		if !aok || !bok || len(ao) != len(bo) {
			return false
		}
		for k, av := range ao {
			bv, ok := bo[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	al, alok := a.(List)
	bl, blok := b.(List)
	if alok && blok {
		if len(al) != len(bl) {
			return false
		}
		for i := range al {
			if !Equal(al[i], bl[i]) {
				return false
			}
		}
		return true
	}
	return Compare(a, b) == 0 && (KindOf(a) == KindOf(b) || bothNumeric(a, b))
}

func isNumeric(k Kind) bool {
	return k == KindInt || k == KindDecimal
}

func bothNumeric(a, b Value) bool {
	return isNumeric(KindOf(a)) && isNumeric(KindOf(b))
}

func toDecimal(v Value) decimal.Decimal {
	switch n := v.(type) {
	case Int:
		return decimal.NewFromInt(int64(n))
	case Decimal:
		return n.Decimal
	default:
		return decimal.Zero
	}
}
