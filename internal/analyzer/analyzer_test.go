package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analyze(t *testing.T, code string) *Result {
	t.Helper()
	res, err := New().Analyze(context.Background(), code)
	require.NoError(t, err, "analyze %q", code)
	return res
}

func TestAnalyze_Modes(t *testing.T) {
	tests := []struct {
		name       string
		code       string
		expression bool
		decls      []string
		refs       []string
	}{
		{"arithmetic expression", "1 + 1", true, nil, []string{}},
		{"free reference", "a + 10", true, nil, []string{"a"}},
		{"const declaration", "const a = 1 + 1", false, []string{"a"}, []string{}},
		{"globals are not inputs", "Math.max(x, 1)", true, nil, []string{"x"}},
		{"member property is not an input", "obj.prop", true, nil, []string{"obj"}},
		{"object shorthand", "({a, b})", true, nil, []string{"a", "b"}},
		{"object literal", "{a: 1, [k]: v}", true, nil, []string{"k", "v"}},
		{"template", "`${a} and ${b}`", true, nil, []string{"a", "b"}},
		{"arrow parameter is local", "x => x * k", true, nil, []string{"k"}},
		{"anonymous function expression", "function (x) { return x }", true, nil, []string{}},
		{"named function is a declaration", "function f(x) { return x + y }", false, []string{"f"}, []string{"y"}},
		{"named class is a declaration", "class A extends B {}", false, []string{"A"}, []string{"B"}},
		{"block statement", "{ let x = 1; x }", false, []string{}, []string{}},
		{"two statements", "const a = b + c\nconst d = a", false, []string{"a", "d"}, []string{"b", "c"}},
		{"first occurrence order", "c + b + c + a", true, nil, []string{"c", "b", "a"}},
		{"undefined is never an input", "x === undefined", true, nil, []string{"x"}},
		{"catch parameter is local", "try { f() } catch (e) { e }", false, []string{}, []string{"f"}},
		{"for-of binding is local", "for (const k of ks) { console.log(k) }", false, []string{}, []string{"ks"}},
		{"var hoists out of blocks", "if (c) { var v = 1 }\nv", false, []string{}, []string{"c"}},
		{"named function expression sees itself", "(function fact(n) { return n ? n * fact(n - 1) : 1 })", true, nil, []string{}},
		{"function declarations hoist", "const r = g()\nfunction g() { return 1 }", false, []string{"r", "g"}, []string{}},
		{"arguments inside function", "function f() { return arguments.length }", false, []string{"f"}, []string{}},
		{"class members", "class P { x = base; m() { return this.x + other } }", false, []string{"P"}, []string{"base", "other"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := analyze(t, tt.code)
			assert.Equal(t, tt.expression, res.Expression, "expression mode")
			assert.Equal(t, tt.decls, res.Declarations, "declarations")
			assert.Equal(t, tt.refs, res.References, "references")
		})
	}
}

func TestAnalyze_Destructuring(t *testing.T) {
	res := analyze(t, "const {a, b: [c, ...d] = e} = obj")
	assert.Equal(t, []string{"a", "c", "d"}, res.Declarations)
	assert.Equal(t, []string{"e", "obj"}, res.References)
}

func TestAnalyze_Async(t *testing.T) {
	tests := []struct {
		name  string
		code  string
		async bool
	}{
		{"plain expression", "1 + 1", false},
		{"top-level await expression", "await load()", true},
		{"top-level await in program", "const v = await p", true},
		{"await inside nested function", "const f = async () => { await g() }", false},
		{"import", `import {mean} from "stats"`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.async, analyze(t, tt.code).Async)
		})
	}
}

func TestAnalyze_Imports(t *testing.T) {
	code := `import d, {mean, sum as s} from "stats"`
	res := analyze(t, code)

	assert.False(t, res.Expression)
	assert.Equal(t, []string{"d", "mean", "s"}, res.Declarations)
	require.Len(t, res.Imports, 1)

	imp := res.Imports[0]
	assert.Equal(t, "stats", imp.Source)
	assert.Equal(t, "d", imp.Default)
	assert.Equal(t, []ImportName{{Imported: "mean", Local: "mean"}, {Imported: "sum", Local: "s"}}, imp.Names)
	assert.Equal(t, 0, imp.Start)
	assert.Equal(t, len(code), imp.End)
}

func TestAnalyze_NamespaceImport(t *testing.T) {
	res := analyze(t, `import * as stats from "stats"`)
	require.Len(t, res.Imports, 1)
	assert.Equal(t, "stats", res.Imports[0].Namespace)
	assert.Equal(t, []string{"stats"}, res.Declarations)
}

func TestAnalyze_Normalize(t *testing.T) {
	res := analyze(t, "  const a = 1;  \n")
	assert.Equal(t, "const a = 1", res.Code)
	assert.Equal(t, []string{"a"}, res.Declarations)
}

func TestAnalyze_Errors(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		message string
	}{
		{"export", "export const a = 1", "Unexpected token 'export'"},
		{"assignment to input", "x = 1", "Assignment to external variable 'x'"},
		{"compound assignment to input", "for (const k in obj) { total += k }", "Assignment to external variable 'total'"},
		{"update of input", "count++", "Assignment to external variable 'count'"},
		{"assignment to global", "Math = 1", "Assignment to global 'Math'"},
		{"top-level return", "return 1", "'return' outside of function"},
		{"duplicate lexical", "let a = 1\nlet a = 2", "Identifier 'a' has already been declared"},
		{"reserved word as binding", "const = 1", "Unexpected token 'const'"},
		{"reserved word as reference", "enum + 1", "Unexpected token 'enum'"},
		{"dangling operator", "1 +", "Unexpected end of input"},
		{"unclosed call", "f(1,\n", "Unexpected end of input"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Analyze(context.Background(), tt.code)
			require.Error(t, err)
			assert.True(t, IsSyntaxError(err))

			var se *SyntaxError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.message, se.Message)
		})
	}
}

func TestAnalyze_LocalAssignmentAllowed(t *testing.T) {
	res := analyze(t, "let x\nx = 1\nx++")
	assert.Equal(t, []string{"x"}, res.Declarations)
	assert.Empty(t, res.References)
}

func TestAnalyze_MalformedCode(t *testing.T) {
	_, err := New().Analyze(context.Background(), "const = 1 +")
	require.Error(t, err)

	var se *SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, se.Line)
	assert.Contains(t, se.Error(), "SyntaxError:")
}

func TestAnalyze_EndOfInputPosition(t *testing.T) {
	_, err := New().Analyze(context.Background(), "a *\n  ")
	var se *SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Unexpected end of input", se.Message)
	assert.Equal(t, 1, se.Line)
	assert.Equal(t, 4, se.Column)
}

func TestAnalyze_ReservedWordsAsProperties(t *testing.T) {
	res := analyze(t, "obj.class + ({default: 1}).default")
	assert.True(t, res.Expression)
	assert.Equal(t, []string{"obj"}, res.References)
}

func TestAnalyze_ErrorPositionInExpressionMode(t *testing.T) {
	_, err := New().Analyze(context.Background(), "1 + (y = 2)")
	var se *SyntaxError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, se.Line)
	assert.Equal(t, 6, se.Column)
}

func TestAnalyze_CustomGlobals(t *testing.T) {
	a := New(WithGlobals([]string{"width"}))
	res, err := a.Analyze(context.Background(), "width + Math.PI")
	require.NoError(t, err)
	assert.Equal(t, []string{"Math"}, res.References)
}

func TestAnalyze_CommentOnly(t *testing.T) {
	res := analyze(t, "// just a note")
	assert.False(t, res.Expression)
	assert.Empty(t, res.Declarations)
	assert.Empty(t, res.References)
}

func TestPosition(t *testing.T) {
	line, col := Position("ab\ncd", 4)
	assert.Equal(t, 2, line)
	assert.Equal(t, 2, col)
}
