package cells

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/noticeable/internal/ir"
)

func TestAssignIDs_Stable(t *testing.T) {
	d1 := AssignIDs(Split("a + 10\n\nconst a = 1 + 1"))
	d2 := AssignIDs(Split("const b = 3\n\nconst a = 1 + 1\n\na + 10"))

	require.Len(t, d1, 2)
	require.Len(t, d2, 3)
	assert.Equal(t, d1[0].ID, d2[2].ID, "moved cell keeps its id")
	assert.Equal(t, d1[1].ID, d2[1].ID)
}

func TestAssignIDs_Unique(t *testing.T) {
	got := AssignIDs(Split("1\n\n1\n\n1"))
	require.Len(t, got, 3)

	base := ir.CellID("1")
	assert.Equal(t, base, got[0].ID)
	assert.Equal(t, base+"-1", got[1].ID)
	assert.Equal(t, base+"-2", got[2].ID)
}

func TestAssignIDs_CarriesLineNumbers(t *testing.T) {
	got := AssignIDs([]ir.Fragment{{Code: "x", FirstLineNum: 7}})
	require.Len(t, got, 1)
	assert.Equal(t, 7, got[0].FirstLineNum)
	assert.Equal(t, "x", got[0].Code)
}

func TestDiff(t *testing.T) {
	x := ir.Cell{ID: "X", Code: "1+1"}
	y := ir.Cell{ID: "Y", Code: "2+2"}

	tests := []struct {
		name        string
		prev, next  []ir.Cell
		wantRemoved []string
		wantAdded   []string
	}{
		{"first document", nil, []ir.Cell{x}, []string{}, []string{"X"}},
		{"added cell", []ir.Cell{x}, []ir.Cell{x, y}, []string{}, []string{"Y"}},
		{"removed cell", []ir.Cell{x, y}, []ir.Cell{y}, []string{"X"}, []string{}},
		{"code changed under same id", []ir.Cell{x}, []ir.Cell{{ID: "X", Code: "2+2"}}, []string{"X"}, []string{"X"}},
		{"unchanged", []ir.Cell{x, y}, []ir.Cell{y, x}, []string{}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Diff(tt.prev, tt.next)
			assert.Equal(t, tt.wantRemoved, d.Removed)
			assert.Equal(t, tt.wantAdded, d.Added)
		})
	}
}

func TestDiff_ContentAddressedNeverOverlaps(t *testing.T) {
	prev := AssignIDs(Split("1+1"))
	next := AssignIDs(Split("2+2"))
	d := Diff(prev, next)

	require.Len(t, d.Removed, 1)
	require.Len(t, d.Added, 1)
	assert.NotEqual(t, d.Removed[0], d.Added[0])
}
