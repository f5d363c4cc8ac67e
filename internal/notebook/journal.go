package notebook

import (
	"context"

	"github.com/roach88/noticeable/internal/ir"
)

// Journal receives the history of a notebook. Write failures are logged
// and never stop the notebook.
type Journal interface {
	RecordRevision(ctx context.Context, rev ir.Revision) error
	RecordTransition(ctx context.Context, t ir.Transition) error
}
