// Package store is the SQLite journal behind `noticeable watch --db`.
//
// Every SetDocument call appends a revision row (document text, cell ids,
// the add/remove diff). Every published cell state change appends a
// transition row. Settled transitions also carry what the cell displayed
// and the outputs it reported, so history and replay see expression
// results as well as declarations.
//
// Rows are ordered by seq, the notebook's logical clock, and then by
// insertion order. Wall time is never recorded.
//
// Values, displays and outputs are JSON text. Objects keep their key
// order on write and decode into plain Go maps on read.
//
// Connections run in WAL mode with synchronous=NORMAL, a 5s busy timeout
// and foreign keys on. Journals from older versions are upgraded on Open;
// PRAGMA user_version holds the last applied migration.
package store
