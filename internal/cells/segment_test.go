package cells

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/noticeable/internal/ir"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want []ir.Fragment
	}{
		{
			name: "empty document",
			doc:  "",
			want: []ir.Fragment{},
		},
		{
			name: "only blank lines",
			doc:  "\n  \n\t\n",
			want: []ir.Fragment{},
		},
		{
			name: "single expression",
			doc:  "1 + 1",
			want: []ir.Fragment{{Code: "1 + 1", FirstLineNum: 0}},
		},
		{
			name: "blank line splits unindented statements",
			doc:  "a + 10\n\nconst a = 1 + 1",
			want: []ir.Fragment{
				{Code: "a + 10", FirstLineNum: 0},
				{Code: "const a = 1 + 1", FirstLineNum: 2},
			},
		},
		{
			name: "blank line inside indented block keeps the cell",
			doc:  "1 {\n  2\n\n  3\n}\n\n4\n5",
			want: []ir.Fragment{
				{Code: "1 {\n  2\n\n  3\n}", FirstLineNum: 0},
				{Code: "4\n5", FirstLineNum: 6},
			},
		},
		{
			name: "leading and trailing blank lines are skipped",
			doc:  "\n\n\nx\n\n\n",
			want: []ir.Fragment{{Code: "x", FirstLineNum: 3}},
		},
		{
			name: "indented first line",
			doc:  "  x\n\ny",
			want: []ir.Fragment{{Code: "  x\n\ny", FirstLineNum: 0}},
		},
		{
			name: "crlf line endings",
			doc:  "a\r\n\r\nb",
			want: []ir.Fragment{
				{Code: "a", FirstLineNum: 0},
				{Code: "b", FirstLineNum: 2},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Split(tt.doc))
		})
	}
}

func TestSplit_IndentationRule(t *testing.T) {
	// A blank line right after an indented line does not close the cell.
	frags := Split("f(\n  1\n\n)")
	require.Len(t, frags, 1)

	// A blank line right after an unindented line does.
	frags = Split("f(\n1\n\n)")
	require.Len(t, frags, 2)
	assert.Equal(t, ")", frags[1].Code)
	assert.Equal(t, 3, frags[1].FirstLineNum)
}

func TestSplit_Idempotent(t *testing.T) {
	doc := "function f() {\n  return 1\n\n}\n\nx = f()\n\n\n// note\n// more\n\ny"
	first := Split(doc)

	// Rebuild the document by placing each fragment at its line number.
	var lines []string
	for _, f := range first {
		for len(lines) < f.FirstLineNum {
			lines = append(lines, "")
		}
		lines = append(lines, strings.Split(f.Code, "\n")...)
	}

	second := Split(strings.Join(lines, "\n"))
	assert.Equal(t, first, second)
}

func TestStripIgnored(t *testing.T) {
	doc := "/// hidden\n1 + 1\n/// also hidden\n\n2"
	got := StripIgnored(doc, "///")

	assert.Equal(t, "\n1 + 1\n\n\n2", got)
	frags := Split(got)
	require.Len(t, frags, 2)
	assert.Equal(t, 1, frags[0].FirstLineNum)
	assert.Equal(t, 4, frags[1].FirstLineNum)
}

func TestStripIgnored_KeepsDoubleSlash(t *testing.T) {
	doc := "// markdown\n/// gone"
	assert.Equal(t, "// markdown\n", StripIgnored(doc, "///"))
}

func TestStripIgnored_EmptyPrefix(t *testing.T) {
	assert.Equal(t, "/// x", StripIgnored("/// x", ""))
}
