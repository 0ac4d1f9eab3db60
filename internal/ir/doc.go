// Package ir provides the closed value variant shared by every sieve package.
//
// Values appear in two roles: as literals inside filter and sort ASTs, and
// as the fields of in-memory records that compiled artifacts are applied to.
// The set of kinds is closed (Value is sealed), so compilers and backends
// dispatch exhaustively with type switches instead of reflection.
//
// Key design constraints:
//   - NO binary floats - non-integral numbers are exact Decimals
//   - A missing object key reads as Null (Object.Get)
//   - Compare is a total order with Null lowest
//   - ir imports nothing internal
package ir
