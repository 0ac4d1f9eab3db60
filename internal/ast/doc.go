// Package ast defines the filter and sort expression trees that the
// compiler consumes.
//
// Trees are built in code with the New* helpers or decoded from YAML or
// JSON arguments with DecodeFilter and DecodeOrder. Decoding is
// schema-free: a key is an operator if it names one, otherwise a field.
// Whether a field exists, and whether a literal fits it, is decided when
// the tree is compiled against a schema.Table.
package ast
