package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/noticeable/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDocumentWatcher_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "nb.js", "1")
	writeFile(t, dir, "other.js", "1")

	w, err := newDocumentWatcher(doc, 50*time.Millisecond, discardLogger())
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var reloads atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- w.Watch(ctx, func() { reloads.Add(1) })
	}()

	// Changes to other files in the directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.js"), []byte("2"), 0o644))

	for i := range 5 {
		require.NoError(t, os.WriteFile(doc, []byte{byte('0' + i)}, 0o644))
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return reloads.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), reloads.Load())

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestDocumentWatcher_MissingDirectory(t *testing.T) {
	_, err := newDocumentWatcher(filepath.Join(t.TempDir(), "nope", "nb.js"), 0, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to watch")
}

func TestWatch_ReevaluatesOnChange(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "nb.js", sampleDocument)

	opts := &RootOptions{Format: "text"}
	cmd := NewWatchCommand(opts)
	out, errOut := &syncBuffer{}, &syncBuffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs([]string{doc, "--debounce", "20ms"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cmd.SetContext(ctx)

	done := make(chan error, 1)
	go func() { done <- cmd.Execute() }()

	require.Eventually(t, func() bool {
		return containsAll(out.String(), "display 12")
	}, 5*time.Second, 10*time.Millisecond, out.String())

	require.NoError(t, os.WriteFile(doc, []byte("a + 10\n\nconst a = 5\n"), 0o644))

	require.Eventually(t, func() bool {
		return containsAll(out.String(), "display 15")
	}, 5*time.Second, 10*time.Millisecond, out.String())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestWatch_JSONSnapshots(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "nb.js", "1 + 1\n")

	cmd := NewWatchCommand(&RootOptions{Format: "json"})
	out := &syncBuffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{doc})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cmd.SetContext(ctx)

	done := make(chan error, 1)
	go func() { done <- cmd.Execute() }()

	require.Eventually(t, func() bool {
		return containsAll(out.String(), `"cell_states"`, `"fulfilled"`)
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestWatch_RecordsRevisions(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "nb.js", "1 + 1\n")
	db := filepath.Join(dir, "journal.db")

	opts := &WatchOptions{RootOptions: &RootOptions{Format: "text"}, Database: db, Debounce: 20 * time.Millisecond}
	opts.Revisions = testutil.NewSequenceGenerator("watch")

	out := &syncBuffer{}
	cmd := NewWatchCommand(opts.RootOptions)
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cmd.SetContext(ctx)

	done := make(chan error, 1)
	go func() { done <- watchDocument(opts, doc, cmd) }()

	require.Eventually(t, func() bool {
		return containsAll(out.String(), "revision watch-1", "display 2")
	}, 5*time.Second, 10*time.Millisecond, out.String())

	cancel()
	require.NoError(t, <-done)

	out2, _, err := execute(NewHistoryCommand(&RootOptions{Format: "text"}), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out2, "Revision watch-1")
}

func TestWatch_MissingDocument(t *testing.T) {
	_, _, err := execute(NewWatchCommand(&RootOptions{Format: "text"}), filepath.Join(t.TempDir(), "nope.js"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "document not found")
}
