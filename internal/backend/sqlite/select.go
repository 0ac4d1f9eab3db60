package sqlite

import (
	"fmt"
	"strings"
)

// RecordsTable is the table the store keeps records in.
const RecordsTable = "records"

// Query is a complete statement with its parameters.
type Query struct {
	SQL    string
	Params []any
}

// Select assembles the statement reading one collection's records through
// a compiled filter and ordering. Either may be nil.
//
// Every statement ends with the id tie-breaker so rows equal under all
// requested keys still come back in a deterministic order.
func Select(collection string, where *Where, order *OrderBy) Query {
	var b strings.Builder
	params := []any{collection}

	fmt.Fprintf(&b, "SELECT id, %s FROM %s WHERE collection = ?", BodyColumn, RecordsTable)
	if where != nil && where.SQL != alwaysTrue {
		b.WriteString(" AND ")
		b.WriteString(where.SQL)
		params = append(params, where.Params...)
	}

	b.WriteString(" ORDER BY ")
	if terms := order.SQL(); terms != "" {
		b.WriteString(terms)
		b.WriteString(", ")
		params = append(params, order.Params()...)
	}
	b.WriteString(stableOrderKey())

	return Query{SQL: b.String(), Params: params}
}

// stableOrderKey is the final tie-breaker of every statement. COLLATE
// BINARY keeps text ordering identical across SQLite builds.
func stableOrderKey() string {
	return "id ASC COLLATE BINARY"
}
