package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/noticeable/internal/interp"
	"github.com/roach88/noticeable/internal/ir"
	"github.com/roach88/noticeable/internal/notebook"
)

// Store must satisfy the controller's journal.
var _ notebook.Journal = (*Store)(nil)

func TestRecordRevision_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rev := ir.Revision{
		ID:      "rev-2",
		Seq:     7,
		Text:    "const a = 1\n\na + 1",
		Cells:   []string{"c1", "c2"},
		Added:   []string{"c2"},
		Removed: []string{"c0"},
	}
	require.NoError(t, s.RecordRevision(ctx, rev))

	got, found, err := s.Revision(ctx, "rev-2")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, rev, got)
}

func TestRecordRevision_NilListsReadBackEmpty(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordRevision(ctx, ir.Revision{ID: "rev-1", Text: ""}))

	got, found, err := s.Revision(ctx, "rev-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []string{}, got.Cells)
	assert.Equal(t, []string{}, got.Added)
	assert.Equal(t, []string{}, got.Removed)
}

func TestRecordRevision_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rev := createTestRevision("rev-1", 1, "c1")
	require.NoError(t, s.RecordRevision(ctx, rev))
	require.NoError(t, s.RecordRevision(ctx, rev))

	revs, err := s.Revisions(ctx)
	require.NoError(t, err)
	assert.Len(t, revs, 1)
}

func TestRevision_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, found, err := s.Revision(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRevisions_OrderedBySeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordRevision(ctx, createTestRevision("b", 5)))
	require.NoError(t, s.RecordRevision(ctx, createTestRevision("a", 2)))
	require.NoError(t, s.RecordRevision(ctx, createTestRevision("c", 5)))

	revs, err := s.Revisions(ctx)
	require.NoError(t, err)

	var ids []string
	for _, r := range revs {
		ids = append(ids, r.ID)
	}
	// Equal seq keeps insertion order.
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestRevisions_Empty(t *testing.T) {
	s := createTestStore(t)

	revs, err := s.Revisions(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, revs)
	assert.Empty(t, revs)
}

func TestRecordTransition_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.RecordRevision(ctx, createTestRevision("rev-1", 0, "c1", "c2")))

	fulfilled := createTestTransition("rev-1", "c1", 2, ir.StateFulfilled)
	fulfilled.Value = &interp.Record{Keys: []string{"b", "a"}, Values: []any{1.0, "<x>"}}

	rejected := createTestTransition("rev-1", "c2", 3, ir.StateRejected)
	rejected.Error = "x is not defined"
	rejected.Line = 4

	markdown := ir.Transition{Revision: "rev-1", Seq: 3, CellID: "c3", Kind: ir.KindMarkdown}

	for _, tr := range []ir.Transition{
		createTestTransition("rev-1", "c1", 1, ir.StatePending),
		fulfilled,
		rejected,
		markdown,
	} {
		require.NoError(t, s.RecordTransition(ctx, tr))
	}

	got, err := s.Transitions(ctx, TransitionFilter{})
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, ir.StatePending, got[0].State)
	assert.Nil(t, got[0].Value)

	assert.Equal(t, ir.StateFulfilled, got[1].State)
	assert.Equal(t, map[string]any{"a": "<x>", "b": 1.0}, got[1].Value)

	assert.Equal(t, rejected, got[2])

	assert.Equal(t, ir.KindMarkdown, got[3].Kind)
	assert.Empty(t, got[3].State)
}

func TestRecordTransition_RequiresRevision(t *testing.T) {
	s := createTestStore(t)

	err := s.RecordTransition(context.Background(), createTestTransition("missing", "c1", 1, ir.StatePending))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record transition")
}

func TestRecordTransition_StoresRawValueText(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.RecordRevision(ctx, createTestRevision("rev-1", 0, "c1")))

	tr := createTestTransition("rev-1", "c1", 1, ir.StateFulfilled)
	tr.Value = "<b>&</b>"
	require.NoError(t, s.RecordTransition(ctx, tr))

	var text string
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT value FROM transitions").Scan(&text))
	assert.Equal(t, `"<b>&</b>"`, text)
}

func TestRecordTransition_DisplaysAndOutputs(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.RecordRevision(ctx, createTestRevision("rev-1", 0, "c1", "c2")))

	expr := createTestTransition("rev-1", "c1", 1, ir.StateFulfilled)
	expr.Displays = []any{12.0, "<b>x</b>", map[string]any{"k": true}}
	decl := createTestTransition("rev-1", "c2", 2, ir.StateFulfilled)
	decl.Outputs = []ir.NamedValue{{Name: "a", Value: 2.0}, {Name: "b", Value: []any{1.0}}}
	pending := createTestTransition("rev-1", "c1", 3, ir.StatePending)
	for _, tr := range []ir.Transition{expr, decl, pending} {
		require.NoError(t, s.RecordTransition(ctx, tr))
	}

	got, err := s.Transitions(ctx, TransitionFilter{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, expr.Displays, got[0].Displays)
	assert.Nil(t, got[0].Outputs)
	assert.Equal(t, decl.Outputs, got[1].Outputs)
	assert.Nil(t, got[1].Displays)
	assert.Nil(t, got[2].Displays)

	// Empty lists store NULL.
	var displays sql.NullString
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT displays FROM transitions WHERE seq = 2").Scan(&displays))
	assert.False(t, displays.Valid)
}

func TestTransitions_Filter(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.RecordRevision(ctx, createTestRevision("rev-1", 0, "c1", "c2")))
	require.NoError(t, s.RecordRevision(ctx, createTestRevision("rev-2", 4, "c1")))

	records := []ir.Transition{
		createTestTransition("rev-1", "c1", 1, ir.StatePending),
		createTestTransition("rev-1", "c2", 2, ir.StatePending),
		createTestTransition("rev-1", "c1", 3, ir.StateFulfilled),
		createTestTransition("rev-2", "c1", 5, ir.StatePending),
	}
	for _, tr := range records {
		require.NoError(t, s.RecordTransition(ctx, tr))
	}

	tests := []struct {
		name   string
		filter TransitionFilter
		want   []int64
	}{
		{"all", TransitionFilter{}, []int64{1, 2, 3, 5}},
		{"revision", TransitionFilter{Revision: "rev-1"}, []int64{1, 2, 3}},
		{"cell", TransitionFilter{CellID: "c1"}, []int64{1, 3, 5}},
		{"both", TransitionFilter{Revision: "rev-2", CellID: "c1"}, []int64{5}},
		{"none", TransitionFilter{CellID: "c9"}, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Transitions(ctx, tt.filter)
			require.NoError(t, err)
			seqs := []int64{}
			for _, tr := range got {
				seqs = append(seqs, tr.Seq)
			}
			assert.Equal(t, tt.want, seqs)
		})
	}
}

func TestStore_AsNotebookJournal(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	c, err := notebook.New(notebook.DefaultConfig(), notebook.WithJournal(s), notebook.WithVirtualTime())
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.SetDocument(ctx, "const a = 20\n\na + 1"))
	require.NoError(t, c.Settle(ctx))

	revs, err := s.Revisions(ctx)
	require.NoError(t, err)
	require.Len(t, revs, 1)
	assert.Len(t, revs[0].Cells, 2)

	snap := c.Snapshot()
	use := snap.Cells[1].ID
	got, err := s.Transitions(ctx, TransitionFilter{CellID: use})
	require.NoError(t, err)
	require.NotEmpty(t, got)
	last := got[len(got)-1]
	assert.Equal(t, ir.StateFulfilled, last.State)
	assert.Equal(t, revs[0].ID, last.Revision)
}
