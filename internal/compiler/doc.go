// Package compiler lowers filter and sort trees into backend artifacts.
//
// The visitor walks an ast tree once, resolving every field against a
// schema.Table, type-checking literals, and calling a backend adapter for
// each comparison, combination, nested-object step, and list
// quantification. Backends implement FilterAdapter and SortAdapter; the
// compiler itself knows nothing about any storage.
//
// Each call builds its own context and discards it on return. Tables and
// adapters are shared read-only, so compilations may run concurrently.
//
// Every failure is a *CompileError carrying one of five codes. Nothing is
// compiled partially.
package compiler
