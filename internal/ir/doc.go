// Package ir defines the data model shared by every noticeable package.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. Values produced by cell code are
// carried as `any` so the interpreter stays out of the dependency graph of
// the model.
//
// Key design constraints:
//   - Snapshots are values: a published snapshot is never mutated afterwards
//   - Cell identity is content addressed (see CellID)
//   - All JSON tags use snake_case
package ir
