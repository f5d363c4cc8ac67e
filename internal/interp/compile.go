package interp

import (
	"context"
	"fmt"
	"slices"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

type (
	expr func(sc *scope) Value
	stmt func(sc *scope) completion
)

type completionKind uint8

const (
	completionNormal completionKind = iota
	completionReturn
	completionBreak
	completionContinue
)

type completion struct {
	kind  completionKind
	label string
	value Value
}

// unit is a compiled source.
type unit struct {
	name string
	run  func(sc *scope) Value
}

// compileFailure carries a CompileError out of the recursive compiler.
type compileFailure struct {
	err *CompileError
}

type funcState struct {
	async  bool
	parent *funcState
}

type compiler struct {
	in   *Interp
	unit string
	src  []byte
	fn   *funcState
}

func (in *Interp) compile(ctx context.Context, name, source string, single bool) (u *unit, err error) {
	src := []byte(source)
	parser := sitter.NewParser()
	parser.SetLanguage(javascript.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, parseError(root)
	}

	c := &compiler{in: in, unit: name, src: src, fn: &funcState{}}
	defer func() {
		if r := recover(); r != nil {
			f, ok := r.(compileFailure)
			if !ok {
				panic(r)
			}
			u, err = nil, f.err
		}
	}()

	stmts := namedChildren(root)
	if single {
		if len(stmts) != 1 || stmts[0].Type() != "expression_statement" {
			return nil, &CompileError{Message: "expected a single function expression", Offset: 0}
		}
		fn := firstNamed(stmts[0])
		switch fn.Type() {
		case "arrow_function", "function_expression", "function":
		default:
			return nil, &CompileError{Message: "expected a single function expression", Offset: int(fn.StartByte())}
		}
		e := c.expr(fn)
		return &unit{name: name, run: func(sc *scope) Value { return e(sc) }}, nil
	}
	return c.program(stmts), nil
}

func parseError(root *sitter.Node) *CompileError {
	n := firstError(root)
	if n == nil {
		return &CompileError{Message: "Unexpected token", Offset: 0}
	}
	if n.IsMissing() {
		return &CompileError{Message: fmt.Sprintf("Expected %q", n.Type()), Offset: int(n.StartByte())}
	}
	return &CompileError{Message: "Unexpected token", Offset: int(n.StartByte())}
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

// program compiles a script. Its value is the last expression statement's.
func (c *compiler) program(stmts []*sitter.Node) *unit {
	decls := c.declarations(stmts)
	vars := c.varNames(stmts)
	body := make([]stmt, len(stmts))
	var last Value = Undefined
	for i, s := range stmts {
		if s.Type() == "expression_statement" {
			e := c.expr(firstNamed(s))
			body[i] = c.positioned(s, func(sc *scope) completion {
				last = e(sc)
				return completion{}
			})
			continue
		}
		body[i] = c.stmt(s)
	}
	return &unit{name: c.unit, run: func(global *scope) Value {
		fr := &frame{this: Undefined, hasThis: true}
		sc := newScope(global, fr)
		for _, name := range vars {
			sc.declare(name, Undefined, true)
		}
		decls.instantiate(c.in, sc)
		last = Undefined
		for _, s := range body {
			if r := s(sc); r.kind != completionNormal {
				break
			}
		}
		return last
	}}
}

func (c *compiler) errorf(n *sitter.Node, format string, args ...any) compileFailure {
	return compileFailure{err: &CompileError{Message: fmt.Sprintf(format, args...), Offset: int(n.StartByte())}}
}

func (c *compiler) unsupported(n *sitter.Node, what string) compileFailure {
	return c.errorf(n, "%s are not supported", what)
}

func (c *compiler) text(n *sitter.Node) string {
	return string(c.src[n.StartByte():n.EndByte()])
}

func namedChildren(n *sitter.Node) []*sitter.Node {
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		ch := n.NamedChild(i)
		switch ch.Type() {
		case "comment", "html_comment", "hash_bang_line":
			continue
		}
		out = append(out, ch)
	}
	return out
}

func firstNamed(n *sitter.Node) *sitter.Node {
	if kids := namedChildren(n); len(kids) > 0 {
		return kids[0]
	}
	return nil
}

// hasToken reports whether n has a direct anonymous child tok.
func hasToken(n *sitter.Node, tok string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		ch := n.Child(i)
		if !ch.IsNamed() && ch.Type() == tok {
			return true
		}
	}
	return false
}

func hasChildOfType(n *sitter.Node, typ string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.Child(i).Type() == typ {
			return true
		}
	}
	return false
}

func sameNode(a, b *sitter.Node) bool {
	return a != nil && b != nil && a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

// positioned records the statement's offset before running it, so that
// exceptions raised inside point at it.
func (c *compiler) positioned(n *sitter.Node, s stmt) stmt {
	in, p := c.in, position{unit: c.unit, off: int(n.StartByte())}
	return func(sc *scope) completion {
		in.pos = p
		return s(sc)
	}
}

func (c *compiler) stmt(n *sitter.Node) stmt {
	return c.positioned(n, c.statement(n))
}

func noop(*scope) completion { return completion{} }

func (c *compiler) statement(n *sitter.Node) stmt {
	in := c.in
	switch n.Type() {
	case "expression_statement":
		e := c.expr(firstNamed(n))
		return func(sc *scope) completion {
			e(sc)
			return completion{}
		}
	case "lexical_declaration":
		return c.lexicalDeclaration(n)
	case "variable_declaration":
		return c.varDeclaration(n)
	case "function_declaration", "empty_statement", "debugger_statement":
		return noop
	case "class_declaration":
		name, mk := c.class(n)
		return func(sc *scope) completion {
			sc.initialize(name, mk(sc), true)
			return completion{}
		}
	case "statement_block":
		return c.block(namedChildren(n), true)
	case "if_statement":
		return c.ifStatement(n)
	case "for_statement", "for_in_statement", "while_statement", "do_statement":
		return c.loop(n, nil)
	case "labeled_statement":
		return c.labeled(n, nil)
	case "break_statement", "continue_statement":
		kind := completionBreak
		if n.Type() == "continue_statement" {
			kind = completionContinue
		}
		label := ""
		if l := n.ChildByFieldName("label"); l != nil {
			label = c.text(l)
		} else if l := firstNamed(n); l != nil {
			label = c.text(l)
		}
		return func(*scope) completion { return completion{kind: kind, label: label} }
	case "return_statement":
		if v := firstNamed(n); v != nil {
			e := c.expr(v)
			return func(sc *scope) completion { return completion{kind: completionReturn, value: e(sc)} }
		}
		return func(*scope) completion { return completion{kind: completionReturn, value: Undefined} }
	case "throw_statement":
		e := c.expr(firstNamed(n))
		return func(sc *scope) completion {
			panic(in.exception(e(sc)))
		}
	case "try_statement":
		return c.tryStatement(n)
	case "switch_statement":
		return c.switchStatement(n)
	case "generator_function_declaration":
		panic(c.unsupported(n, "generator functions"))
	case "import_statement":
		panic(c.errorf(n, "import declarations must be at the top level of a cell"))
	case "export_statement":
		panic(c.errorf(n, "export is not supported"))
	case "with_statement":
		panic(c.unsupported(n, "with statements"))
	}
	panic(c.errorf(n, "unsupported statement %s", n.Type()))
}

// blockDecls are the bindings a block creates on entry.
type blockDecls struct {
	lexical []lexicalName
	funcs   []funcDecl
}

type lexicalName struct {
	name    string
	mutable bool
}

type funcDecl struct {
	name string
	tmpl *funcTemplate
}

func (d *blockDecls) empty() bool {
	return len(d.lexical) == 0 && len(d.funcs) == 0
}

func (d *blockDecls) instantiate(in *Interp, sc *scope) {
	for _, l := range d.lexical {
		sc.declareUninitialized(l.name, l.mutable)
	}
	for _, f := range d.funcs {
		sc.declare(f.name, f.tmpl.instantiate(in, sc, nil), true)
	}
}

func (c *compiler) declarations(stmts []*sitter.Node) *blockDecls {
	d := &blockDecls{}
	for _, s := range stmts {
		switch s.Type() {
		case "lexical_declaration":
			mutable := !hasToken(s, "const")
			for _, decl := range namedChildren(s) {
				if decl.Type() != "variable_declarator" {
					continue
				}
				for _, name := range c.patternNames(decl.ChildByFieldName("name")) {
					d.lexical = append(d.lexical, lexicalName{name: name, mutable: mutable})
				}
			}
		case "class_declaration":
			if id := s.ChildByFieldName("name"); id != nil {
				d.lexical = append(d.lexical, lexicalName{name: c.text(id), mutable: true})
			}
		case "function_declaration":
			tmpl := c.function(s, "", false)
			d.funcs = append(d.funcs, funcDecl{name: tmpl.name, tmpl: tmpl})
		case "generator_function_declaration":
			panic(c.unsupported(s, "generator functions"))
		}
	}
	return d
}

// varNames collects the var-declared names of a function body.
func (c *compiler) varNames(stmts []*sitter.Node) []string {
	var names []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "function_declaration", "function_expression", "function", "arrow_function",
			"class_declaration", "class", "method_definition", "generator_function_declaration":
			return
		case "variable_declaration":
			for _, decl := range namedChildren(n) {
				if decl.Type() == "variable_declarator" {
					names = append(names, c.patternNames(decl.ChildByFieldName("name"))...)
				}
			}
			return
		case "for_in_statement":
			if hasToken(n, "var") {
				names = append(names, c.patternNames(n.ChildByFieldName("left"))...)
			}
		}
		for _, ch := range namedChildren(n) {
			walk(ch)
		}
	}
	for _, s := range stmts {
		walk(s)
	}
	slices.Sort(names)
	return slices.Compact(names)
}

func (c *compiler) block(stmts []*sitter.Node, own bool) stmt {
	decls := c.declarations(stmts)
	body := make([]stmt, len(stmts))
	for i, s := range stmts {
		body[i] = c.stmt(s)
	}
	in := c.in
	scoped := own && !decls.empty()
	return func(sc *scope) completion {
		bs := sc
		if scoped {
			bs = newScope(sc, sc.fr)
		}
		decls.instantiate(in, bs)
		for _, s := range body {
			if r := s(bs); r.kind != completionNormal {
				return r
			}
		}
		return completion{}
	}
}

func (c *compiler) lexicalDeclaration(n *sitter.Node) stmt {
	mutable := !hasToken(n, "const")
	var parts []func(sc *scope)
	for _, decl := range namedChildren(n) {
		if decl.Type() != "variable_declarator" {
			continue
		}
		target := decl.ChildByFieldName("name")
		bind := c.pattern(target, bindDeclare, mutable)
		var value expr
		if v := decl.ChildByFieldName("value"); v != nil {
			value = c.namedExpr(v, target)
		} else if !mutable {
			panic(c.errorf(decl, "Missing initializer in const declaration"))
		}
		parts = append(parts, func(sc *scope) {
			v := Undefined
			if value != nil {
				v = value(sc)
			}
			bind(sc, v)
		})
	}
	return func(sc *scope) completion {
		for _, p := range parts {
			p(sc)
		}
		return completion{}
	}
}

func (c *compiler) varDeclaration(n *sitter.Node) stmt {
	var parts []func(sc *scope)
	for _, decl := range namedChildren(n) {
		if decl.Type() != "variable_declarator" {
			continue
		}
		v := decl.ChildByFieldName("value")
		if v == nil {
			continue
		}
		target := decl.ChildByFieldName("name")
		bind := c.pattern(target, bindVar, true)
		value := c.namedExpr(v, target)
		parts = append(parts, func(sc *scope) { bind(sc, value(sc)) })
	}
	return func(sc *scope) completion {
		for _, p := range parts {
			p(sc)
		}
		return completion{}
	}
}

func (c *compiler) ifStatement(n *sitter.Node) stmt {
	cond := c.expr(n.ChildByFieldName("condition"))
	cons := c.stmt(n.ChildByFieldName("consequence"))
	alt := stmt(noop)
	if a := n.ChildByFieldName("alternative"); a != nil {
		if a.Type() == "else_clause" {
			a = firstNamed(a)
		}
		alt = c.stmt(a)
	}
	return func(sc *scope) completion {
		if truthy(cond(sc)) {
			return cons(sc)
		}
		return alt(sc)
	}
}

func (c *compiler) labeled(n *sitter.Node, labels []string) stmt {
	label := c.text(n.ChildByFieldName("label"))
	labels = append(slices.Clip(labels), label)
	body := n.ChildByFieldName("body")
	var s stmt
	switch body.Type() {
	case "for_statement", "for_in_statement", "while_statement", "do_statement":
		s = c.positioned(body, c.loop(body, labels))
	case "labeled_statement":
		s = c.labeled(body, labels)
	default:
		s = c.stmt(body)
	}
	return func(sc *scope) completion {
		r := s(sc)
		if r.kind == completionBreak && r.label == label {
			return completion{}
		}
		return r
	}
}

// afterBody decides how a loop continues after its body completed with r.
func afterBody(r completion, labels []string) (stop bool, out completion) {
	switch r.kind {
	case completionBreak:
		if r.label == "" {
			return true, completion{}
		}
		return true, r
	case completionContinue:
		if r.label == "" || slices.Contains(labels, r.label) {
			return false, completion{}
		}
		return true, r
	case completionReturn:
		return true, r
	}
	return false, completion{}
}

func (c *compiler) loop(n *sitter.Node, labels []string) stmt {
	switch n.Type() {
	case "for_statement":
		return c.forStatement(n, labels)
	case "for_in_statement":
		return c.forInStatement(n, labels)
	case "while_statement":
		return c.whileStatement(n, labels, false)
	}
	return c.whileStatement(n, labels, true)
}

func (c *compiler) whileStatement(n *sitter.Node, labels []string, do bool) stmt {
	in := c.in
	cond := c.expr(n.ChildByFieldName("condition"))
	body := c.stmt(n.ChildByFieldName("body"))
	return func(sc *scope) completion {
		for first := true; ; first = false {
			in.checkInterrupt()
			if !(do && first) && !truthy(cond(sc)) {
				return completion{}
			}
			if stop, out := afterBody(body(sc), labels); stop {
				return out
			}
		}
	}
}

func (c *compiler) forStatement(n *sitter.Node, labels []string) stmt {
	in := c.in
	var init stmt
	perIteration := false
	if i := n.ChildByFieldName("initializer"); i != nil && i.IsNamed() {
		switch i.Type() {
		case "lexical_declaration":
			init = c.lexicalDeclaration(i)
			perIteration = !hasToken(i, "const")
		case "variable_declaration", "expression_statement":
			init = c.stmt(i)
		case "empty_statement":
		default:
			e := c.expr(i)
			init = func(sc *scope) completion {
				e(sc)
				return completion{}
			}
		}
	}
	var cond expr
	if cn := n.ChildByFieldName("condition"); cn != nil && cn.IsNamed() {
		switch cn.Type() {
		case "expression_statement":
			cond = c.expr(firstNamed(cn))
		case "empty_statement":
		default:
			cond = c.expr(cn)
		}
	}
	var incr expr
	if inc := n.ChildByFieldName("increment"); inc != nil && inc.IsNamed() {
		incr = c.expr(inc)
	}
	body := c.stmt(n.ChildByFieldName("body"))
	return func(sc *scope) completion {
		ls := newScope(sc, sc.fr)
		if init != nil {
			init(ls)
		}
		for {
			in.checkInterrupt()
			if cond != nil && !truthy(cond(ls)) {
				return completion{}
			}
			if stop, out := afterBody(body(ls), labels); stop {
				return out
			}
			if perIteration {
				ls = copyScope(ls)
			}
			if incr != nil {
				incr(ls)
			}
		}
	}
}

func (c *compiler) forInStatement(n *sitter.Node, labels []string) stmt {
	if hasToken(n, "await") {
		panic(c.unsupported(n, "for await loops"))
	}
	in := c.in
	of := hasToken(n, "of")
	left := n.ChildByFieldName("left")
	right := c.expr(n.ChildByFieldName("right"))
	body := c.stmt(n.ChildByFieldName("body"))

	var bind binder
	fresh := false
	switch {
	case hasToken(n, "let"):
		bind, fresh = c.pattern(left, bindDeclare, true), true
	case hasToken(n, "const"):
		bind, fresh = c.pattern(left, bindDeclare, false), true
	case hasToken(n, "var"):
		bind = c.pattern(left, bindVar, true)
	default:
		bind = c.pattern(left, bindAssign, true)
	}

	return func(sc *scope) completion {
		subject := right(sc)
		var out completion
		each := func(v Value) bool {
			in.checkInterrupt()
			is := sc
			if fresh {
				is = newScope(sc, sc.fr)
			}
			bind(is, v)
			stop, r := afterBody(body(is), labels)
			out = r
			return !stop
		}
		if of {
			in.iterate(subject, each)
		} else {
			for _, k := range in.enumerableKeys(subject) {
				if !each(k) {
					break
				}
			}
		}
		return out
	}
}

func (c *compiler) tryStatement(n *sitter.Node) stmt {
	in := c.in
	body := c.block(namedChildren(n.ChildByFieldName("body")), true)

	var handler func(sc *scope, v Value) completion
	if h := n.ChildByFieldName("handler"); h != nil {
		cbody := c.block(namedChildren(h.ChildByFieldName("body")), true)
		var bind binder
		if p := h.ChildByFieldName("parameter"); p != nil {
			bind = c.pattern(p, bindDeclare, true)
		}
		handler = func(sc *scope, v Value) completion {
			cs := newScope(sc, sc.fr)
			if bind != nil {
				bind(cs, v)
			}
			return cbody(cs)
		}
	}
	var final stmt
	if f := n.ChildByFieldName("finalizer"); f != nil {
		final = c.block(namedChildren(f.ChildByFieldName("body")), true)
	}

	guarded := body
	if handler != nil {
		guarded = func(sc *scope) completion {
			var thrown *Exception
			r := func() (r completion) {
				depth := in.depth
				defer func() {
					if p := recover(); p != nil {
						rethrowAbort(p)
						in.depth = depth
						thrown = in.recovered(p)
					}
				}()
				return body(sc)
			}()
			if thrown != nil {
				return handler(sc, thrown.Value)
			}
			return r
		}
	}
	if final == nil {
		return guarded
	}
	return func(sc *scope) (out completion) {
		depth := in.depth
		defer func() {
			p := recover()
			if p != nil {
				rethrowAbort(p)
				in.depth = depth
			}
			if fc := final(sc); fc.kind != completionNormal {
				out = fc
				return
			}
			if p != nil {
				panic(p)
			}
		}()
		return guarded(sc)
	}
}

func (c *compiler) switchStatement(n *sitter.Node) stmt {
	type switchCase struct {
		test expr
		body []stmt
	}
	disc := c.expr(n.ChildByFieldName("value"))
	var cases []switchCase
	var all []*sitter.Node
	def := -1
	for _, cn := range namedChildren(n.ChildByFieldName("body")) {
		var sc switchCase
		value := cn.ChildByFieldName("value")
		if cn.Type() == "switch_default" {
			def = len(cases)
		} else {
			sc.test = c.expr(value)
		}
		for _, s := range namedChildren(cn) {
			if sameNode(s, value) {
				continue
			}
			all = append(all, s)
			sc.body = append(sc.body, c.stmt(s))
		}
		cases = append(cases, sc)
	}
	decls := c.declarations(all)
	in := c.in
	return func(sc *scope) completion {
		v := disc(sc)
		ss := newScope(sc, sc.fr)
		decls.instantiate(in, ss)
		start := def
		for i, cs := range cases {
			if cs.test != nil && strictEquals(v, cs.test(ss)) {
				start = i
				break
			}
		}
		if start < 0 {
			return completion{}
		}
		for _, cs := range cases[start:] {
			for _, s := range cs.body {
				r := s(ss)
				if r.kind == completionBreak && r.label == "" {
					return completion{}
				}
				if r.kind != completionNormal {
					return r
				}
			}
		}
		return completion{}
	}
}
