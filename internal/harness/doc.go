// Package harness runs conformance scenarios across every backend.
//
// A scenario is a YAML file naming a CUE schema, a record set, and a list
// of cases. Each case holds a filter and an order in the same syntax the
// CLI accepts, plus either the expected record ids in result order or the
// expected compile error code:
//
//	name: nested_equality
//	description: Equality on a nested nullable field
//	schema: ../schema/bar.cue
//	table: Bar
//	records:
//	  - {id: "1", bar: a, n: 1, foo: {barShort: 12}}
//	cases:
//	  - name: short equals twelve
//	    filter: {foo: {barShort: {eq: 12}}}
//	    expect: ["1"]
//
// Run compiles every case through the engine for the memory, document, and
// sqlite backends, executes the artifacts against the same records, and
// reports any backend whose result differs from the expectation. The
// sqlite backend runs against a fresh in-memory store.
//
// Snapshot renders the compiled artifacts so golden files pin the exact
// SQL, parameters, and query documents each backend produces.
package harness
