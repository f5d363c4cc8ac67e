// Package graph implements the reactive variable graph that drives cell
// evaluation.
//
// ARCHITECTURE:
//
// Single-Writer Loop:
// All interpreter work happens on one logical thread. The Loop owns a
// macrotask queue (timers, external submissions) and a microtask queue
// (promise reactions, recompute). Only one task runs at a time; callers
// outside the loop mutate the graph through Loop.Exclusive.
//
// Variables:
// A Variable has an optional name, a list of input names and a
// definition. Inputs resolve by name when the variable is computed:
//  1. a live variable of that name
//  2. a builtin supplied to the Runtime
//  3. otherwise the variable rejects with UNDEFINED_REFERENCE
//
// Recompute Flow:
//  1. Define or Delete marks the variable and every transitive reader dirty
//  2. One recompute microtask is scheduled per batch of changes
//  3. Circular definitions are found (Tarjan) and rejected
//  4. Dirty variables are visited in dependency order (Kahn); each one
//     bumps its version, notifies Pending and chains all(inputs).then(def)
//  5. The outcome notifies Fulfilled or Rejected unless a newer version
//     started or the variable was deleted
//
// Errors propagate: a reader of a rejected variable rejects with the same
// reason.
package graph
