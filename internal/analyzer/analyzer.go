package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// exprPrefix and exprSuffix wrap a cell when probing for expression mode.
// The newlines keep a trailing line comment from swallowing the paren.
const (
	exprPrefix = "(\n"
	exprSuffix = "\n)"
)

// Import is one import statement of a program cell.
// Start and End are byte offsets of the whole statement in Result.Code.
type Import struct {
	Start     int
	End       int
	Source    string
	Default   string // local name of the default import
	Namespace string // local name of `* as ns`
	Names     []ImportName
}

// ImportName is one `{imported as local}` specifier.
type ImportName struct {
	Imported string
	Local    string
}

// Result is the outcome of analyzing one cell.
type Result struct {
	// Code is the analyzed text: the cell trimmed, minus one trailing ';'.
	Code string

	// Expression is true when the cell is a single bare expression.
	Expression bool

	// Async is true when the cell awaits at top level or imports.
	Async bool

	// Declarations are the top-level bound names in declaration order.
	// Nil in expression mode.
	Declarations []string

	// References are the free names of the cell in first-occurrence order.
	References []string

	// Imports lists the import statements of a program cell.
	Imports []Import
}

// Analyzer parses and analyzes cells.
type Analyzer struct {
	globals map[string]bool
	logger  *slog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithGlobals replaces the set of names treated as language globals.
func WithGlobals(names []string) Option {
	return func(a *Analyzer) {
		a.globals = globalSet(names)
	}
}

// WithLogger sets the analyzer logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

// New creates an Analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		globals: globalSet(DefaultGlobals),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Normalize trims code and drops one trailing semicolon.
func Normalize(code string) string {
	code = strings.TrimSpace(code)
	if strings.HasSuffix(code, ";") {
		code = strings.TrimSpace(strings.TrimSuffix(code, ";"))
	}
	return code
}

// Analyze parses code and computes its inputs, outputs and mode.
//
// Returns *SyntaxError for malformed or disallowed code. Other errors are
// parser failures (including context cancellation).
func (a *Analyzer) Analyze(ctx context.Context, code string) (*Result, error) {
	code = Normalize(code)

	res := &Result{Code: code}

	expr, exprTree, err := a.parseExpression(ctx, code)
	if err != nil {
		return nil, err
	}
	if expr != nil {
		defer exprTree.Close()
		res.Expression = true

		if err := checkReserved(code, expr, len(exprPrefix)); err != nil {
			return nil, err
		}
		w := newWalker(code, []byte(exprPrefix+code+exprSuffix), len(exprPrefix), a.globals)
		top := newScope(nil, true)
		w.walk(expr, top)
		if w.err != nil {
			return nil, w.err
		}
		res.References = w.refs
		res.Async = w.awaits > 0
		return res, nil
	}

	src := []byte(code)
	tree, err := parse(ctx, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, describeParseError(code, root, 0)
	}

	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child.Type() == nodeExportStatement {
			return nil, syntaxErrorAt(code, int(child.StartByte()), "Unexpected token 'export'")
		}
	}

	if err := checkReserved(code, root, 0); err != nil {
		return nil, err
	}
	w := newWalker(code, src, 0, a.globals)
	top := newScope(nil, true)
	decls, err := w.declarations(root, top)
	if err != nil {
		return nil, err
	}
	w.walkBody(root, top)
	if w.err != nil {
		return nil, w.err
	}

	res.Declarations = decls
	res.References = w.refs
	res.Imports = w.imports
	res.Async = w.awaits > 0 || len(w.imports) > 0

	a.logger.Debug("analyzed cell",
		"expression", res.Expression,
		"inputs", res.References,
		"outputs", res.Declarations,
		"async", res.Async)

	return res, nil
}

// parseExpression returns the single expression node of code, or nil when
// code is not exactly one expression. A named function or class expression
// counts as a declaration and yields nil.
func (a *Analyzer) parseExpression(ctx context.Context, code string) (*sitter.Node, *sitter.Tree, error) {
	if code == "" {
		return nil, nil, nil
	}
	wrapped := []byte(exprPrefix + code + exprSuffix)
	tree, err := parse(ctx, wrapped)
	if err != nil {
		return nil, nil, err
	}

	root := tree.RootNode()
	expr := singleExpression(root, len(wrapped))
	if expr == nil {
		tree.Close()
		return nil, nil, nil
	}

	switch expr.Type() {
	case nodeFunctionExpression, nodeFunction, nodeGeneratorFunction, nodeClass:
		if expr.ChildByFieldName("name") != nil {
			tree.Close()
			return nil, nil, nil
		}
	}
	return expr, tree, nil
}

// singleExpression returns the expression inside the wrapping parens when
// the whole wrapped input is one error-free parenthesized expression.
func singleExpression(root *sitter.Node, size int) *sitter.Node {
	if root == nil || root.HasError() || root.Type() != nodeProgram {
		return nil
	}

	var stmt *sitter.Node
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child.Type() == nodeComment {
			continue
		}
		if stmt != nil {
			return nil
		}
		stmt = child
	}
	if stmt == nil || stmt.Type() != nodeExpressionStatement {
		return nil
	}

	var paren *sitter.Node
	for i := 0; i < int(stmt.NamedChildCount()); i++ {
		child := stmt.NamedChild(i)
		if child.Type() == nodeComment {
			continue
		}
		paren = child
		break
	}
	if paren == nil || paren.Type() != nodeParenthesized {
		return nil
	}
	if paren.StartByte() != 0 || int(paren.EndByte()) != size {
		return nil
	}

	for i := 0; i < int(paren.NamedChildCount()); i++ {
		child := paren.NamedChild(i)
		if child.Type() != nodeComment {
			return child
		}
	}
	return nil
}

func parse(ctx context.Context, src []byte) (*sitter.Tree, error) {
	// New parser per call: parsers are not safe for concurrent use.
	parser := sitter.NewParser()
	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	return tree, nil
}

// describeParseError locates the first error node under root and turns it
// into a SyntaxError. base is subtracted from node offsets.
func describeParseError(code string, root *sitter.Node, base int) *SyntaxError {
	n := firstError(root)
	if n == nil {
		return syntaxErrorAt(code, 0, "Unexpected token")
	}
	off := int(n.StartByte()) - base
	if endsInput(code, n, base) {
		return syntaxErrorAt(code, len(strings.TrimRight(code, " \t\n")), "Unexpected end of input")
	}
	if n.IsMissing() {
		return syntaxErrorAt(code, off, "Expected %q", n.Type())
	}
	text := strings.TrimSpace(safeSlice(code, off, int(n.EndByte())-base))
	if text == "" {
		return syntaxErrorAt(code, off, "Unexpected end of input")
	}
	if i := strings.IndexAny(text, " \n\t"); i > 0 {
		text = text[:i]
	}
	return syntaxErrorAt(code, off, "Unexpected token '%s'", text)
}

// checkReserved rejects reserved words in identifier positions, such as
// the binding of `const = 1`.
func checkReserved(code string, n *sitter.Node, base int) *SyntaxError {
	switch n.Type() {
	case nodeIdentifier, nodeShorthandProperty, nodeShorthandPattern:
		start := int(n.StartByte()) - base
		if word := safeSlice(code, start, int(n.EndByte())-base); reservedWords[word] {
			return syntaxErrorAt(code, start, "Unexpected token '%s'", word)
		}
		return nil
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if err := checkReserved(code, n.NamedChild(i), base); err != nil {
			return err
		}
	}
	return nil
}

// endsInput reports whether the error n is code running out: a missing
// token or a dangling operator at the end of input.
func endsInput(code string, n *sitter.Node, base int) bool {
	if strings.TrimSpace(safeSlice(code, int(n.EndByte())-base, len(code))) != "" {
		return false
	}
	if n.IsMissing() {
		return true
	}
	if !n.IsError() || n.ChildCount() == 0 {
		return false
	}
	last := n.Child(int(n.ChildCount()) - 1)
	if last.IsNamed() {
		return false
	}
	switch last.Type() {
	case ")", "]", "}", ";":
		return false
	}
	return true
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	if !n.HasError() {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if e := firstError(n.Child(i)); e != nil {
			return e
		}
	}
	return n
}

func safeSlice(s string, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(s) {
		end = len(s)
	}
	if start >= end {
		return ""
	}
	return s[start:end]
}
