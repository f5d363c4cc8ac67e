package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/noticeable/internal/ir"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRevision creates a revision adding every cell in cells.
func createTestRevision(id string, seq int64, cells ...string) ir.Revision {
	return ir.Revision{
		ID:    id,
		Seq:   seq,
		Text:  "text of " + id,
		Cells: cells,
		Added: cells,
	}
}

// createTestTransition creates a code cell transition.
func createTestTransition(revision, cellID string, seq int64, state ir.StateKind) ir.Transition {
	return ir.Transition{
		Revision: revision,
		Seq:      seq,
		CellID:   cellID,
		Kind:     ir.KindCode,
		State:    state,
	}
}
