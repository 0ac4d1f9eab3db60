package document

import (
	"slices"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/roach88/sieve/internal/ast"
	"github.com/roach88/sieve/internal/compiler"
	"github.com/roach88/sieve/internal/schema"
)

// SortKey is one compiled sort key. Ranks holds an enum field's values in
// declaration order.
type SortKey struct {
	Field bson.E
	Ranks []string
}

// Sort is a compiled sort specification: dotted paths mapped to 1 or -1
// in priority order. Enum paths sort by declaration rank, which the sort
// document alone cannot express, so Collection reads the ranks from Ranks.
type Sort struct {
	doc   bson.D
	ranks map[string][]string
}

// Ranks returns the declared enum values for an enum sort path, or nil.
func (s *Sort) Ranks(path string) []string {
	if s == nil {
		return nil
	}
	return s.ranks[path]
}

// Doc returns the sort specification.
func (s *Sort) Doc() bson.D {
	if s == nil {
		return bson.D{}
	}
	return s.doc
}

// MarshalExtJSON renders the sort as relaxed extended JSON.
func (s *Sort) MarshalExtJSON() ([]byte, error) {
	return bson.MarshalExtJSON(s.Doc(), false, false)
}

// Order implements compiler.SortAdapter.
func (Adapter) Order(path []compiler.Accessor, dir ast.Direction) (SortKey, error) {
	value := 1
	if dir == ast.Descending {
		value = -1
	}
	key := SortKey{Field: bson.E{Key: strings.Join(compiler.Keys(path), "."), Value: value}}
	if leaf := path[len(path)-1]; leaf.Kind == schema.KindEnum {
		key.Ranks = slices.Clone(leaf.Values)
	}
	return key, nil
}

// ComposeOrder implements compiler.SortAdapter.
func (Adapter) ComposeOrder(keys []SortKey) (*Sort, error) {
	s := &Sort{doc: make(bson.D, len(keys))}
	for i, k := range keys {
		s.doc[i] = k.Field
		if k.Ranks != nil {
			if s.ranks == nil {
				s.ranks = make(map[string][]string)
			}
			s.ranks[k.Field.Key] = k.Ranks
		}
	}
	return s, nil
}
