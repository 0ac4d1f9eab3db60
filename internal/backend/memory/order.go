package memory

import (
	"slices"

	"github.com/roach88/sieve/internal/ast"
	"github.com/roach88/sieve/internal/compiler"
	"github.com/roach88/sieve/internal/ir"
	"github.com/roach88/sieve/internal/schema"
)

// Key is one compiled sort key.
type Key struct {
	path      []compiler.Accessor
	Direction ast.Direction
}

// Path returns the record keys from the root to the sorted field.
func (k Key) Path() []string {
	return compiler.Keys(k.path)
}

// value reads the key's field. Any null or missing object on the way
// yields null. Enums read as their declaration rank, and values outside
// the declared set read as null.
func (k Key) value(record ir.Object) ir.Value {
	var current ir.Value = record
	for _, acc := range k.path {
		current = field(current, acc.Key)
	}
	leaf := k.path[len(k.path)-1]
	if leaf.Kind != schema.KindEnum {
		return current
	}
	e, ok := normalize(leaf, current).(ir.Enum)
	if !ok {
		return ir.Null{}
	}
	if rank, ok := leaf.Rank(string(e)); ok {
		return ir.Int(rank)
	}
	return ir.Null{}
}

// Ordering is a compiled multi-key ordering.
type Ordering struct {
	keys []Key
}

// Keys returns the sort keys in priority order.
func (o *Ordering) Keys() []Key {
	if o == nil {
		return nil
	}
	return slices.Clone(o.keys)
}

// Compare orders two records. Earlier keys take priority and later keys
// only break ties.
func (o *Ordering) Compare(a, b ir.Object) int {
	if o == nil {
		return 0
	}
	for _, k := range o.keys {
		c := ir.Compare(k.value(a), k.value(b))
		if k.Direction == ast.Descending {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

// Sort orders records in place. Records equal under every key keep their
// relative order.
func (o *Ordering) Sort(records []ir.Object) {
	if o == nil || len(o.keys) == 0 {
		return
	}
	slices.SortStableFunc(records, o.Compare)
}

// Order implements compiler.SortAdapter.
func (Adapter) Order(path []compiler.Accessor, dir ast.Direction) (Key, error) {
	return Key{path: slices.Clone(path), Direction: dir}, nil
}

// ComposeOrder implements compiler.SortAdapter.
func (Adapter) ComposeOrder(keys []Key) (*Ordering, error) {
	return &Ordering{keys: slices.Clone(keys)}, nil
}
