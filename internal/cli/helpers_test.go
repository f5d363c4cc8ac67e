package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/noticeable/internal/notebook"
	"github.com/roach88/noticeable/internal/store"
	"github.com/roach88/noticeable/internal/testutil"
)

// writeFile writes content to dir/name and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs cmd with args and returns what it wrote.
func execute(cmd *cobra.Command, args ...string) (stdout, stderr string, err error) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	if args == nil {
		args = []string{} // nil makes cobra read os.Args
	}
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

// decodeResponse parses a CLIResponse, keeping Data as raw JSON.
func decodeResponse(t *testing.T, data string, payload any) CLIResponse {
	t.Helper()
	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(data), &raw), data)
	if payload != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, payload))
	}
	return CLIResponse{Status: raw.Status, Error: raw.Error}
}

// syncBuffer is a bytes.Buffer safe for one writer and one reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// containsAll reports whether s contains every part.
func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}

const sampleDocument = `a + 10

const a = 1 + 1
`

// recordSession evaluates docs in order on a notebook journaling to a new
// database at path. Revisions are "rev-1", "rev-2", ...
func recordSession(t *testing.T, path string, docs ...string) {
	t.Helper()
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	nb, err := notebook.New(notebook.DefaultConfig(),
		notebook.WithJournal(st),
		notebook.WithVirtualTime(),
		notebook.WithClock(testutil.NewManualClock(time.Time{}).Now),
		notebook.WithRevisionGenerator(testutil.NewSequenceGenerator("rev")),
	)
	require.NoError(t, err)
	defer nb.Close()

	ctx := context.Background()
	for _, doc := range docs {
		require.NoError(t, nb.SetDocument(ctx, doc))
		require.NoError(t, nb.Settle(ctx))
	}
}
