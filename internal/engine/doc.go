// Package engine ties a schema table to the compiler with artifact
// caching, tracing, and logging.
//
// A Backend bundles one storage target's filter and sort adapters under a
// name. CompileFilter and CompileOrder look the tree up in the cache,
// compile on a miss, and record a span per call:
//
//	eng := engine.New(table, engine.WithCache(cache.New(0)))
//	where, err := engine.CompileFilter(ctx, eng, engine.SQLite, filter)
//
// The engine holds no per-call state. One Engine may serve any number of
// goroutines.
package engine
