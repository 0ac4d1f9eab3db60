package memory

import (
	"github.com/roach88/sieve/internal/ir"
	"github.com/roach88/sieve/internal/pool"
)

var results = pool.New[ir.Object]()

// Apply filters records with pred and sorts the survivors with order.
// Either may be nil. The input slice is left untouched.
func Apply(records []ir.Object, pred *Predicate, order *Ordering) []ir.Object {
	buf := results.Get()
	defer results.Put(buf)

	for _, record := range records {
		if pred.Match(record) {
			buf.Append(record)
		}
	}
	out := buf.Copy()
	order.Sort(out)
	return out
}
