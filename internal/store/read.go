package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/noticeable/internal/ir"
)

// Revisions returns every recorded revision, oldest first.
//
// Returns an empty slice (not nil) if nothing was recorded.
func (s *Store) Revisions(ctx context.Context) ([]ir.Revision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, text, cells, added, removed
		FROM revisions
		ORDER BY seq ASC, rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query revisions: %w", err)
	}
	defer rows.Close()

	revisions := []ir.Revision{}
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, err
		}
		revisions = append(revisions, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revisions: %w", err)
	}
	return revisions, nil
}

// Revision returns one revision by id.
// Returns found=false if no revision has that id.
func (s *Store) Revision(ctx context.Context, id string) (rev ir.Revision, found bool, err error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, seq, text, cells, added, removed
		FROM revisions
		WHERE id = ?
	`, id)
	rev, err = scanRevision(row)
	if err == sql.ErrNoRows {
		return ir.Revision{}, false, nil
	}
	if err != nil {
		return ir.Revision{}, false, err
	}
	return rev, true, nil
}

// TransitionFilter narrows Transitions. Empty fields match everything.
type TransitionFilter struct {
	Revision string
	CellID   string
}

// Transitions returns recorded transitions matching f in recording order.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) Transitions(ctx context.Context, f TransitionFilter) ([]ir.Transition, error) {
	var (
		where []string
		args  []any
	)
	if f.Revision != "" {
		where = append(where, "revision = ?")
		args = append(args, f.Revision)
	}
	if f.CellID != "" {
		where = append(where, "cell_id = ?")
		args = append(args, f.CellID)
	}

	query := `SELECT revision, seq, cell_id, kind, state, value, error, line, displays, outputs FROM transitions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	transitions := []ir.Transition{}
	for rows.Next() {
		var (
			t                        ir.Transition
			kind, state              string
			value, displays, outputs sql.NullString
		)
		if err := rows.Scan(&t.Revision, &t.Seq, &t.CellID, &kind, &state, &value, &t.Error, &t.Line, &displays, &outputs); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		t.Kind = ir.CellKind(kind)
		t.State = ir.StateKind(state)
		if value.Valid {
			v, err := unmarshalValue(value.String)
			if err != nil {
				return nil, fmt.Errorf("transition of cell %s: %w", t.CellID, err)
			}
			t.Value = v
		}
		if displays.Valid {
			if err := json.Unmarshal([]byte(displays.String), &t.Displays); err != nil {
				return nil, fmt.Errorf("displays of cell %s: %w", t.CellID, err)
			}
		}
		if outputs.Valid {
			if err := json.Unmarshal([]byte(outputs.String), &t.Outputs); err != nil {
				return nil, fmt.Errorf("outputs of cell %s: %w", t.CellID, err)
			}
		}
		transitions = append(transitions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return transitions, nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRevision(row scanner) (ir.Revision, error) {
	var (
		rev                   ir.Revision
		cells, added, removed string
	)
	if err := row.Scan(&rev.ID, &rev.Seq, &rev.Text, &cells, &added, &removed); err != nil {
		if err == sql.ErrNoRows {
			return ir.Revision{}, err
		}
		return ir.Revision{}, fmt.Errorf("scan revision: %w", err)
	}

	var err error
	if rev.Cells, err = unmarshalIDs(cells); err != nil {
		return ir.Revision{}, fmt.Errorf("revision %s: %w", rev.ID, err)
	}
	if rev.Added, err = unmarshalIDs(added); err != nil {
		return ir.Revision{}, fmt.Errorf("revision %s: %w", rev.ID, err)
	}
	if rev.Removed, err = unmarshalIDs(removed); err != nil {
		return ir.Revision{}, fmt.Errorf("revision %s: %w", rev.ID, err)
	}
	return rev, nil
}
