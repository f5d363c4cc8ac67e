// Package analyzer performs the static analysis of one notebook cell.
//
// A cell is parsed with tree-sitter's JavaScript grammar and classified as
// either a single expression or a program. For both modes the analyzer
// reports the free references of the cell (its inputs) and, for programs,
// the names bound at top level (its outputs). It also detects top-level
// await and imports, and rejects constructs that make no sense inside a
// notebook cell:
//
//   - export statements
//   - assignments to names the cell does not declare
//   - top-level return
//
// Analysis never executes code and is safe to run concurrently.
package analyzer
