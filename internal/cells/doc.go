// Package cells cuts a notebook document into cells and gives each cell a
// stable identity.
//
// Segmentation is indentation sensitive: a blank line closes a cell only
// when the last non-blank line of the cell started at column 0, so braced
// blocks survive internal blank lines. Identities are short content hashes
// (see ir.CellID), which keeps the state of an untouched cell alive across
// edits elsewhere in the document.
//
// All functions here are pure.
package cells
