package document

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/roach88/sieve/internal/ir"
	"github.com/roach88/sieve/internal/pool"
)

// Collection evaluates query documents against in-memory records, for
// tests and tools that need document-store semantics without a server.
//
// It understands the operators the Adapter emits: $and, $or, $eq, $ne,
// $gt, $gte, $lt, $lte, $in, $nin, $regex, $not, and $elemMatch. Missing
// fields read as null, and null sorts lowest.
type Collection struct {
	records []ir.Object
	buffers *pool.Pool[ir.Object]
}

// NewCollection wraps records. The slice is not copied.
func NewCollection(records []ir.Object) *Collection {
	return &Collection{records: records, buffers: pool.New[ir.Object]()}
}

// Find returns the records matching filter in sort order. Either may be
// nil. Records equal under every sort key keep collection order.
func (c *Collection) Find(filter *Filter, sort *Sort) ([]ir.Object, error) {
	buf := c.buffers.Get()
	defer c.buffers.Put(buf)

	query := filter.Doc()
	m := &matcher{}
	for _, record := range c.records {
		ok, err := m.matchDoc(record, query)
		if err != nil {
			return nil, err
		}
		if ok {
			buf.Append(record)
		}
	}

	out := buf.Copy()
	if len(sort.Doc()) > 0 {
		slices.SortStableFunc(out, func(a, b ir.Object) int {
			return compareBySpec(a, b, sort)
		})
	}
	return out, nil
}

// matcher evaluates one Find call. Patterns compile once per call.
type matcher struct {
	regexps map[string]*regexp.Regexp
}

func (m *matcher) regex(pattern string) (*regexp.Regexp, error) {
	if re, ok := m.regexps[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("regex %q: %w", pattern, err)
	}
	if m.regexps == nil {
		m.regexps = make(map[string]*regexp.Regexp)
	}
	m.regexps[pattern] = re
	return re, nil
}

func (m *matcher) matchDoc(scope ir.Value, query bson.D) (bool, error) {
	for _, e := range query {
		ok, err := m.matchEntry(scope, e)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (m *matcher) matchEntry(scope ir.Value, e bson.E) (bool, error) {
	switch e.Key {
	case "$and", "$or":
		docs, ok := e.Value.(bson.A)
		if !ok {
			return false, fmt.Errorf("%s needs an array, got %T", e.Key, e.Value)
		}
		isOr := e.Key == "$or"
		for _, item := range docs {
			doc, ok := item.(bson.D)
			if !ok {
				return false, fmt.Errorf("%s item must be a document, got %T", e.Key, item)
			}
			matched, err := m.matchDoc(scope, doc)
			if err != nil {
				return false, err
			}
			if matched == isOr {
				return isOr, nil
			}
		}
		return !isOr, nil
	}

	value := lookup(scope, e.Key)
	cond, ok := e.Value.(bson.D)
	if !ok || len(cond) == 0 || !strings.HasPrefix(cond[0].Key, "$") {
		return equal(value, e.Value)
	}
	for _, op := range cond {
		matched, err := m.matchOperator(value, op)
		if err != nil || !matched {
			return false, err
		}
	}
	return true, nil
}

func (m *matcher) matchOperator(value ir.Value, op bson.E) (bool, error) {
	switch op.Key {
	case "$eq":
		return equal(value, op.Value)
	case "$ne":
		eq, err := equal(value, op.Value)
		return !eq, err
	case "$in", "$nin":
		items, ok := op.Value.(bson.A)
		if !ok {
			return false, fmt.Errorf("%s needs an array, got %T", op.Key, op.Value)
		}
		found := false
		for _, item := range items {
			eq, err := equal(value, item)
			if err != nil {
				return false, err
			}
			if eq {
				found = true
				break
			}
		}
		return found == (op.Key == "$in"), nil
	case "$gt", "$gte", "$lt", "$lte":
		want, err := fromBSON(op.Value)
		if err != nil {
			return false, err
		}
		if !sameBracket(value, want) {
			return false, nil
		}
		c := ir.Compare(value, want)
		switch op.Key {
		case "$gt":
			return c > 0, nil
		case "$gte":
			return c >= 0, nil
		case "$lt":
			return c < 0, nil
		default:
			return c <= 0, nil
		}
	case "$regex":
		return m.matchRegex(value, op.Value)
	case "$not":
		matched, err := m.matchRegex(value, op.Value)
		return !matched, err
	case "$elemMatch":
		inner, ok := op.Value.(bson.D)
		if !ok {
			return false, fmt.Errorf("$elemMatch needs a document, got %T", op.Value)
		}
		items, ok := value.(ir.List)
		if !ok {
			return false, nil
		}
		for _, item := range items {
			matched, err := m.matchDoc(item, inner)
			if err != nil {
				return false, err
			}
			if matched {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("unsupported query operator %s", op.Key)
	}
}

func (m *matcher) matchRegex(value ir.Value, pattern any) (bool, error) {
	re, ok := pattern.(primitive.Regex)
	if !ok {
		return false, fmt.Errorf("expected a regular expression, got %T", pattern)
	}
	compiled, err := m.regex(re.Pattern)
	if err != nil {
		return false, err
	}
	s, ok := value.(ir.String)
	return ok && compiled.MatchString(string(s)), nil
}

func equal(value ir.Value, raw any) (bool, error) {
	want, err := fromBSON(raw)
	if err != nil {
		return false, err
	}
	if ir.IsNull(want) {
		return ir.IsNull(value), nil
	}
	return sameBracket(value, want) && ir.Compare(value, want) == 0, nil
}

// sameBracket follows document-store type bracketing: values of different
// types never satisfy a comparison, except numbers with numbers.
func sameBracket(a, b ir.Value) bool {
	ka, kb := ir.KindOf(a), ir.KindOf(b)
	if ka == ir.KindNull || kb == ir.KindNull {
		return false
	}
	numeric := func(k ir.Kind) bool { return k == ir.KindInt || k == ir.KindDecimal }
	textual := func(k ir.Kind) bool { return k == ir.KindString || k == ir.KindEnum }
	switch {
	case numeric(ka) && numeric(kb):
		return true
	case textual(ka) && textual(kb):
		return true
	default:
		return ka == kb
	}
}

// lookup walks a dotted path. Anything but an object on the way reads as
// null.
func lookup(scope ir.Value, path string) ir.Value {
	current := scope
	for segment := range strings.SplitSeq(path, ".") {
		obj, ok := current.(ir.Object)
		if !ok {
			return ir.Null{}
		}
		current = obj.Get(segment)
	}
	return stored(current)
}

// stored reads enums as plain strings, which is how documents hold them.
func stored(v ir.Value) ir.Value {
	if e, ok := v.(ir.Enum); ok {
		return ir.String(e)
	}
	return v
}

func compareBySpec(a, b ir.Object, sort *Sort) int {
	for _, key := range sort.Doc() {
		ranks := sort.Ranks(key.Key)
		c := ir.Compare(sortValue(a, key.Key, ranks), sortValue(b, key.Key, ranks))
		if dir, ok := key.Value.(int); ok && dir < 0 {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

// sortValue reads the value a record sorts by. Enum paths sort by rank;
// values outside the declared set sort as null.
func sortValue(record ir.Object, path string, ranks []string) ir.Value {
	v := lookup(record, path)
	if ranks == nil {
		return v
	}
	if s, ok := v.(ir.String); ok {
		if i := slices.Index(ranks, string(s)); i >= 0 {
			return ir.Int(i)
		}
	}
	return ir.Null{}
}

func fromBSON(v any) (ir.Value, error) {
	switch val := v.(type) {
	case nil:
		return ir.Null{}, nil
	case string:
		return ir.String(val), nil
	case int64:
		return ir.Int(val), nil
	case int32:
		return ir.Int(val), nil
	case int:
		return ir.Int(val), nil
	case bool:
		return ir.Bool(val), nil
	case primitive.Decimal128:
		d, err := ir.NewDecimal(val.String())
		if err != nil {
			return nil, err
		}
		return d, nil
	case float64:
		return ir.FromAny(val)
	default:
		return nil, fmt.Errorf("unsupported query value %T", v)
	}
}
