// Package interp evaluates the function bodies produced by the synthesizer.
//
// Source is parsed with tree-sitter and compiled into a tree of Go closures.
// The language is the subset of JavaScript notebook cells are written in:
// functions, closures, classes, destructuring, async functions and promises,
// plus the usual built-in objects.
//
// Async functions run as coroutines. Each one owns a goroutine, but control is
// handed over channels so exactly one goroutine executes JavaScript at any
// time. An Interp is not safe for concurrent use; the graph loop serializes
// every entry into it.
package interp
