package cells

import (
	"fmt"

	"github.com/roach88/noticeable/internal/ir"
)

// AssignIDs pairs each fragment with a content-addressed id.
// Within one call ids are unique: a repeated hash gets "-1", "-2", ...
// appended until it no longer collides.
func AssignIDs(frags []ir.Fragment) []ir.Cell {
	used := make(map[string]bool, len(frags))
	out := make([]ir.Cell, 0, len(frags))

	for _, f := range frags {
		base := ir.CellID(f.Code)
		id := base
		for n := 1; used[id]; n++ {
			id = fmt.Sprintf("%s-%d", base, n)
		}
		used[id] = true
		out = append(out, ir.Cell{ID: id, Code: f.Code, FirstLineNum: f.FirstLineNum})
	}
	return out
}

// Diff compares two cell lists by id and code.
//
// An id is removed when it is absent from next or its code changed; it is
// added when it is absent from prev or its code changed. Unchanged ids
// appear in neither list.
func Diff(prev, next []ir.Cell) ir.Delta {
	prevCode := codesByID(prev)
	nextCode := codesByID(next)

	delta := ir.Delta{Removed: []string{}, Added: []string{}}
	for _, c := range prev {
		if code, ok := nextCode[c.ID]; !ok || code != c.Code {
			delta.Removed = append(delta.Removed, c.ID)
		}
	}
	for _, c := range next {
		if code, ok := prevCode[c.ID]; !ok || code != c.Code {
			delta.Added = append(delta.Added, c.ID)
		}
	}
	return delta
}

func codesByID(cells []ir.Cell) map[string]string {
	m := make(map[string]string, len(cells))
	for _, c := range cells {
		m[c.ID] = c.Code
	}
	return m
}
