// Package schema holds the field descriptor tables that filter and sort
// compilation resolve paths against.
//
// A Table is built once, either in code with a Builder or from CUE files
// with LoadDir, and never mutated afterward, so one Table may be shared by
// any number of concurrent compilations.
package schema
