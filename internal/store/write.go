package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/noticeable/internal/ir"
)

// RecordRevision inserts a revision record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
//
// Implements notebook.Journal.
func (s *Store) RecordRevision(ctx context.Context, rev ir.Revision) error {
	cells, err := marshalIDs(rev.Cells)
	if err != nil {
		return fmt.Errorf("record revision: %w", err)
	}
	added, err := marshalIDs(rev.Added)
	if err != nil {
		return fmt.Errorf("record revision: %w", err)
	}
	removed, err := marshalIDs(rev.Removed)
	if err != nil {
		return fmt.Errorf("record revision: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO revisions (id, seq, text, cells, added, removed)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, rev.ID, rev.Seq, rev.Text, cells, added, removed)
	if err != nil {
		return fmt.Errorf("record revision: %w", err)
	}
	return nil
}

// RecordTransition appends one cell state transition.
//
// Note: The revision referenced by t.Revision must exist (foreign key constraint).
//
// Implements notebook.Journal.
func (s *Store) RecordTransition(ctx context.Context, t ir.Transition) error {
	var value sql.NullString
	if t.State == ir.StateFulfilled {
		text, err := marshalValue(t.Value)
		if err != nil {
			return fmt.Errorf("record transition: %w", err)
		}
		value = sql.NullString{String: text, Valid: true}
	}
	displays, err := marshalList(t.Displays)
	if err != nil {
		return fmt.Errorf("record transition: %w", err)
	}
	outputs, err := marshalList(t.Outputs)
	if err != nil {
		return fmt.Errorf("record transition: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transitions (revision, seq, cell_id, kind, state, value, error, line, displays, outputs)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.Revision, t.Seq, t.CellID, string(t.Kind), string(t.State), value, t.Error, t.Line, displays, outputs)
	if err != nil {
		return fmt.Errorf("record transition: %w", err)
	}
	return nil
}
