// Package store keeps JSON records in SQLite and runs compiled sqlite
// filters and orderings against them.
//
// Records belong to a named collection. Each has a text id, taken from the
// body's "id" field when it is a string and generated as a UUIDv7
// otherwise. Bodies are stored as plain JSON so json_extract sees real
// numbers, booleans, and nulls.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - case_sensitive_like=ON: LIKE patterns from substring operators match case
//
// Every read ends its ORDER BY with id ASC COLLATE BINARY, so results are
// deterministic even when the requested keys tie.
package store
