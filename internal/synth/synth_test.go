package synth

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/noticeable/internal/analyzer"
)

func synthesize(t *testing.T, code string) *Body {
	t.Helper()
	res, err := analyzer.New().Analyze(context.Background(), code)
	require.NoError(t, err)
	return Synthesize(res)
}

func TestSynthesize_Source(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{
			name: "expression",
			code: "1 + 1",
			want: "async (display) => {\ndisplay(await(\n1 + 1\n))\n}\n",
		},
		{
			name: "declaration",
			code: "const a = 1 + 1",
			want: "(report_outputs) => {\nconst a = 1 + 1\nreport_outputs({a});\nreturn {a};\n}\n",
		},
		{
			name: "expression with input",
			code: "a + 10",
			want: "async (a,display) => {\ndisplay(await(\na + 10\n))\n}\n",
		},
		{
			name: "explicit display is not wrapped",
			code: "display(x)",
			want: "(display,x) => {\ndisplay(x)\n}\n",
		},
		{
			name: "program without outputs",
			code: "for (const v of vs) display(v)",
			want: "(vs,display) => {\nfor (const v of vs) display(v)\n}\n",
		},
		{
			name: "async program",
			code: "const d = await load(url)",
			want: "async (load,url,report_outputs) => {\nconst d = await load(url)\nreport_outputs({d});\nreturn {d};\n}\n",
		},
		{
			name: "trailing semicolon is dropped",
			code: "const a = 1;",
			want: "(report_outputs) => {\nconst a = 1\nreport_outputs({a});\nreturn {a};\n}\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, synthesize(t, tt.code).Source)
		})
	}
}

func TestSynthesize_Params(t *testing.T) {
	body := synthesize(t, "const b = a * 2\nconst c = view(b)")

	assert.Equal(t, []string{"a", "view", "report_outputs"}, body.Params)
	assert.Equal(t, []string{"a"}, body.Inputs)
	assert.Equal(t, []string{"b", "c"}, body.Outputs)
	assert.False(t, body.Display)
	assert.False(t, body.Async)
}

func TestSynthesize_ExpressionIsAsync(t *testing.T) {
	body := synthesize(t, "a + 10")
	assert.True(t, body.Async)
	assert.True(t, body.Display)
	assert.Equal(t, []string{"a"}, body.Inputs)
	assert.Empty(t, body.Outputs)
}

func TestSynthesize_Imports(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{
			name: "named",
			code: `import {mean, sum as s} from "stats"`,
			want: `const {mean, sum: s} = await import("stats");`,
		},
		{
			name: "default",
			code: `import d from "stats"`,
			want: `const {default: d} = await import("stats");`,
		},
		{
			name: "namespace",
			code: `import * as st from "stats"`,
			want: `const st = await import("stats");`,
		},
		{
			name: "side effect",
			code: `import "stats"`,
			want: `await import("stats");`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := synthesize(t, tt.code)
			assert.True(t, body.Async)
			assert.Contains(t, body.Source, tt.want)
			assert.True(t, strings.HasPrefix(body.Source, "async ("))
		})
	}
}

func TestSourcemap_InsertOrder(t *testing.T) {
	sm := NewSourcemap("x")
	sm.InsertLeft(0, "b").InsertLeft(0, "a")
	sm.InsertRight(1, "c").InsertRight(1, "d")
	assert.Equal(t, "abxcd", sm.String())
}

func TestSourcemap_Replace(t *testing.T) {
	sm := NewSourcemap("hello world")
	sm.Replace(0, 5, "goodbye")
	sm.InsertRight(11, "!")
	assert.Equal(t, "goodbye world!", sm.String())
	assert.Equal(t, 6, sm.Original(8))
}

func TestSourcemap_Original(t *testing.T) {
	body := synthesize(t, "1 + 1")
	head := "async (display) => {\n" + "display(await(\n"

	assert.Equal(t, 0, body.Map.Original(0), "inside inserted header")
	assert.Equal(t, 0, body.Map.Original(len(head)))
	assert.Equal(t, 2, body.Map.Original(len(head)+2))
	assert.Equal(t, "1 + 1", body.Map.Input())
}

func TestIsSink(t *testing.T) {
	assert.True(t, IsSink("display"))
	assert.True(t, IsSink("view"))
	assert.True(t, IsSink("report_outputs"))
	assert.False(t, IsSink("a"))
}
