package engine

import (
	"github.com/roach88/sieve/internal/backend/document"
	"github.com/roach88/sieve/internal/backend/memory"
	"github.com/roach88/sieve/internal/backend/sqlite"
	"github.com/roach88/sieve/internal/compiler"
)

// Backend pairs the adapters of one storage target. Name must change
// whenever adapter configuration changes the artifacts, because it is part
// of the cache key.
type Backend[F, A, K, O any] struct {
	Name   string
	Filter compiler.FilterAdapter[F, A]
	Sort   compiler.SortAdapter[K, O]
}

// Memory compiles to closures over ir.Object records.
var Memory = Backend[memory.Fragment, *memory.Predicate, memory.Key, *memory.Ordering]{
	Name:   "memory",
	Filter: memory.Adapter{},
	Sort:   memory.Adapter{},
}

// SQLite compiles to parameterized SQL over JSON bodies.
var SQLite = Backend[sqlite.Fragment, *sqlite.Where, sqlite.OrderKey, *sqlite.OrderBy]{
	Name:   "sqlite",
	Filter: sqlite.Adapter{},
	Sort:   sqlite.Adapter{},
}

// Document compiles to bson query and sort documents.
var Document = DocumentBackend(true)

// DocumentBackend returns a document backend with pattern matching
// enabled or disabled.
func DocumentBackend(patterns bool) Backend[document.Fragment, *document.Filter, document.SortKey, *document.Sort] {
	a := document.New(document.WithPatternMatching(patterns))
	name := "document"
	if !patterns {
		name = "document-nopattern"
	}
	return Backend[document.Fragment, *document.Filter, document.SortKey, *document.Sort]{
		Name:   name,
		Filter: a,
		Sort:   a,
	}
}
