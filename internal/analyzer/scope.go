package analyzer

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// scope is one lexical scope of the cell. Function and program scopes
// receive hoisted var declarations.
type scope struct {
	parent *scope
	names  map[string]bool
	fn     bool
}

func newScope(parent *scope, fn bool) *scope {
	return &scope{parent: parent, names: make(map[string]bool), fn: fn}
}

func (s *scope) declare(name string) {
	s.names[name] = true
}

func (s *scope) has(name string) bool {
	for c := s; c != nil; c = c.parent {
		if c.names[name] {
			return true
		}
	}
	return false
}

// walker collects references, awaits and imports of one parse tree.
// The first error stops the walk.
type walker struct {
	code    string // analyzed code, for error positions
	src     []byte // parsed bytes
	base    int    // offset of code within src
	globals map[string]bool

	refs    []string
	seen    map[string]bool
	imports []Import
	awaits  int
	depth   int // function nesting
	err     error
}

func newWalker(code string, src []byte, base int, globals map[string]bool) *walker {
	return &walker{
		code:    code,
		src:     src,
		base:    base,
		globals: globals,
		refs:    []string{},
		seen:    make(map[string]bool),
	}
}

func (w *walker) text(n *sitter.Node) string {
	return string(w.src[n.StartByte():n.EndByte()])
}

func (w *walker) fail(n *sitter.Node, format string, args ...any) {
	if w.err == nil {
		w.err = syntaxErrorAt(w.code, int(n.StartByte())-w.base, format, args...)
	}
}

func (w *walker) addRef(name string) {
	if !w.seen[name] {
		w.seen[name] = true
		w.refs = append(w.refs, name)
	}
}

// declarations hoists the program's bindings into top and returns the
// top-level declared names in order.
func (w *walker) declarations(root *sitter.Node, top *scope) ([]string, error) {
	const (
		kindVar = iota + 1
		kindLexical
	)
	kinds := make(map[string]int)
	decls := []string{}

	add := func(n *sitter.Node, name string, kind int) {
		prev := kinds[name]
		if prev != 0 && (prev == kindLexical || kind == kindLexical) {
			w.fail(n, "Identifier '%s' has already been declared", name)
			return
		}
		if prev == 0 {
			decls = append(decls, name)
		}
		kinds[name] = kind
		top.declare(name)
	}

	w.hoistVars(root, top)

	for i := 0; i < int(root.NamedChildCount()); i++ {
		c := root.NamedChild(i)
		switch c.Type() {
		case nodeLexicalDeclaration:
			for _, name := range w.declaratorNames(c) {
				add(c, name, kindLexical)
			}
		case nodeVariableDeclaration:
			for _, name := range w.declaratorNames(c) {
				add(c, name, kindVar)
			}
		case nodeFunctionDeclaration, nodeGeneratorDeclaration, nodeClassDeclaration:
			if name := c.ChildByFieldName("name"); name != nil {
				add(c, w.text(name), kindLexical)
			}
		case nodeImportStatement:
			imp, locals := w.parseImport(c)
			w.imports = append(w.imports, imp)
			for _, name := range locals {
				add(c, name, kindLexical)
			}
		}
	}
	return decls, w.err
}

// walkBody walks the statements of a program or block in s.
func (w *walker) walkBody(n *sitter.Node, s *scope) {
	w.walkChildren(n, s)
}

func (w *walker) walkChildren(n *sitter.Node, s *scope) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if w.err != nil {
			return
		}
		w.walk(n.NamedChild(i), s)
	}
}

func (w *walker) walk(n *sitter.Node, s *scope) {
	if n == nil || w.err != nil {
		return
	}

	switch n.Type() {
	case nodeComment, nodeUndefined, nodeMetaProperty, nodeImportStatement:
		return

	case nodeIdentifier, nodeShorthandProperty:
		w.reference(n, s)

	case nodeStatementBlock:
		bs := newScope(s, false)
		w.hoistLexical(n, bs)
		w.walkChildren(n, bs)

	case nodeFunctionDeclaration, nodeGeneratorDeclaration, nodeArrowFunction:
		w.walkFunction(n, s, false)

	case nodeFunctionExpression, nodeFunction, nodeGeneratorFunction:
		w.walkFunction(n, s, true)

	case nodeMethodDefinition:
		w.walkPropertyName(n.ChildByFieldName("name"), s)
		w.walkFunction(n, s, false)

	case nodeClassDeclaration, nodeClass:
		w.walkClass(n, s)

	case nodeVariableDeclarator:
		w.walkPattern(n.ChildByFieldName("name"), s, false)
		w.walk(n.ChildByFieldName("value"), s)

	case nodeAssignmentExpression, nodeAugmentedAssignment:
		w.walkPattern(n.ChildByFieldName("left"), s, true)
		w.walk(n.ChildByFieldName("right"), s)

	case nodeUpdateExpression:
		w.walkPattern(n.ChildByFieldName("argument"), s, true)

	case nodeForStatement:
		fs := newScope(s, false)
		if init := n.ChildByFieldName("initializer"); init != nil && init.Type() == nodeLexicalDeclaration {
			for _, name := range w.declaratorNames(init) {
				fs.declare(name)
			}
		}
		w.walkChildren(n, fs)

	case nodeForInStatement:
		w.walkForIn(n, s)

	case nodeCatchClause:
		cs := newScope(s, false)
		if p := n.ChildByFieldName("parameter"); p != nil {
			for _, name := range w.patternNames(p) {
				cs.declare(name)
			}
			w.walkPattern(p, cs, false)
		}
		w.walk(n.ChildByFieldName("body"), cs)

	case nodePair:
		w.walkPropertyName(n.ChildByFieldName("key"), s)
		w.walk(n.ChildByFieldName("value"), s)

	case nodeMemberExpression:
		// The property is a name, never a reference.
		w.walk(n.ChildByFieldName("object"), s)

	case nodeFieldDefinition:
		w.walkPropertyName(n.ChildByFieldName("property"), s)
		if v := n.ChildByFieldName("value"); v != nil {
			w.depth++
			w.walk(v, s)
			w.depth--
		}

	case nodeAwaitExpression:
		if w.depth == 0 {
			w.awaits++
		}
		w.walkChildren(n, s)

	case nodeReturnStatement:
		if w.depth == 0 {
			w.fail(n, "'return' outside of function")
			return
		}
		w.walkChildren(n, s)

	case nodeExportStatement:
		w.fail(n, "Unexpected token 'export'")

	default:
		w.walkChildren(n, s)
	}
}

func (w *walker) reference(n *sitter.Node, s *scope) {
	name := w.text(n)
	if name == "undefined" || s.has(name) || w.globals[name] {
		return
	}
	w.addRef(name)
}

// assign checks an assignment target identifier.
func (w *walker) assign(n *sitter.Node, s *scope) {
	name := w.text(n)
	if s.has(name) {
		return
	}
	if w.globals[name] {
		w.fail(n, "Assignment to global '%s'", name)
		return
	}
	w.addRef(name)
	w.fail(n, "Assignment to external variable '%s'", name)
}

func (w *walker) walkPropertyName(n *sitter.Node, s *scope) {
	if n != nil && n.Type() == nodeComputedPropertyName {
		w.walkChildren(n, s)
	}
}

// walkPattern walks a binding or assignment pattern. Default values and
// computed keys are ordinary reads; in assign mode the bound identifiers
// are assignment targets.
func (w *walker) walkPattern(n *sitter.Node, s *scope, assign bool) {
	if n == nil || w.err != nil {
		return
	}
	switch n.Type() {
	case nodeIdentifier, nodeShorthandPattern:
		if assign {
			w.assign(n, s)
		}
	case nodeComment:
	case nodeObjectPattern, nodeArrayPattern:
		for i := 0; i < int(n.NamedChildCount()); i++ {
			w.walkPattern(n.NamedChild(i), s, assign)
		}
	case nodePairPattern:
		w.walkPropertyName(n.ChildByFieldName("key"), s)
		w.walkPattern(n.ChildByFieldName("value"), s, assign)
	case nodeAssignmentPattern, nodeObjectAssignPattern:
		w.walkPattern(n.ChildByFieldName("left"), s, assign)
		w.walk(n.ChildByFieldName("right"), s)
	case nodeRestPattern:
		if n.NamedChildCount() > 0 {
			w.walkPattern(n.NamedChild(0), s, assign)
		}
	case nodeParenthesized:
		if assign && n.NamedChildCount() > 0 {
			w.walkPattern(n.NamedChild(0), s, assign)
			return
		}
		w.walk(n, s)
	default:
		w.walk(n, s)
	}
}

func (w *walker) walkForIn(n *sitter.Node, s *scope) {
	fs := newScope(s, false)
	left := n.ChildByFieldName("left")

	for i := 0; i < int(n.ChildCount()); i++ {
		if n.Child(i).Type() == "await" && w.depth == 0 {
			w.awaits++
		}
	}

	if kind := n.ChildByFieldName("kind"); kind != nil {
		if kind.Type() != "var" {
			for _, name := range w.patternNames(left) {
				fs.declare(name)
			}
		}
		w.walkPattern(left, fs, false)
	} else {
		w.walkPattern(left, fs, true)
	}
	w.walk(n.ChildByFieldName("right"), s)
	w.walk(n.ChildByFieldName("body"), fs)
}

func (w *walker) walkFunction(n *sitter.Node, s *scope, named bool) {
	outer := s
	if named {
		if name := n.ChildByFieldName("name"); name != nil {
			outer = newScope(s, false)
			outer.declare(w.text(name))
		}
	}

	fs := newScope(outer, true)
	if n.Type() != nodeArrowFunction {
		fs.declare("arguments")
	}

	params := functionParams(n)
	for _, p := range params {
		for _, name := range w.patternNames(p) {
			fs.declare(name)
		}
	}

	w.depth++
	defer func() { w.depth-- }()

	for _, p := range params {
		w.walkPattern(p, fs, false)
	}

	body := n.ChildByFieldName("body")
	if body == nil {
		return
	}
	if body.Type() == nodeStatementBlock {
		w.hoistVars(body, fs)
		w.hoistLexical(body, fs)
		w.walkChildren(body, fs)
		return
	}
	w.walk(body, fs)
}

func (w *walker) walkClass(n *sitter.Node, s *scope) {
	cs := s
	if name := n.ChildByFieldName("name"); name != nil {
		cs = newScope(s, false)
		cs.declare(w.text(name))
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case nodeClassHeritage:
			w.walkChildren(c, s)
		case "class_body":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				m := c.NamedChild(j)
				switch m.Type() {
				case nodeStaticBlock, "class_static_block":
					w.depth++
					w.walkChildren(m, cs)
					w.depth--
				default:
					w.walk(m, cs)
				}
			}
		}
	}
}

// functionParams returns the parameter patterns of a function-like node.
func functionParams(n *sitter.Node) []*sitter.Node {
	var params []*sitter.Node
	if p := n.ChildByFieldName("parameter"); p != nil {
		params = append(params, p)
	}
	if ps := n.ChildByFieldName("parameters"); ps != nil {
		for i := 0; i < int(ps.NamedChildCount()); i++ {
			if c := ps.NamedChild(i); c.Type() != nodeComment {
				params = append(params, c)
			}
		}
	}
	return params
}

// hoistVars declares every var binding under n into the function scope
// fs, without descending into nested functions or classes.
func (w *walker) hoistVars(n *sitter.Node, fs *scope) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch {
		case c.Type() == nodeVariableDeclaration:
			for _, name := range w.declaratorNames(c) {
				fs.declare(name)
			}
		case c.Type() == nodeForInStatement:
			if kind := c.ChildByFieldName("kind"); kind != nil && kind.Type() == "var" {
				for _, name := range w.patternNames(c.ChildByFieldName("left")) {
					fs.declare(name)
				}
			}
			w.hoistVars(c, fs)
		case isFunctionNode(c.Type()) || isClassNode(c.Type()):
			continue
		default:
			w.hoistVars(c, fs)
		}
	}
}

// hoistLexical declares the block-scoped bindings that are direct children
// of block.
func (w *walker) hoistLexical(block *sitter.Node, bs *scope) {
	for i := 0; i < int(block.NamedChildCount()); i++ {
		c := block.NamedChild(i)
		switch c.Type() {
		case nodeLexicalDeclaration:
			for _, name := range w.declaratorNames(c) {
				bs.declare(name)
			}
		case nodeFunctionDeclaration, nodeGeneratorDeclaration, nodeClassDeclaration:
			if name := c.ChildByFieldName("name"); name != nil {
				bs.declare(w.text(name))
			}
		}
	}
}

func (w *walker) declaratorNames(decl *sitter.Node) []string {
	var names []string
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		c := decl.NamedChild(i)
		if c.Type() == nodeVariableDeclarator {
			names = append(names, w.patternNames(c.ChildByFieldName("name"))...)
		}
	}
	return names
}

// patternNames returns the identifiers bound by a binding pattern.
func (w *walker) patternNames(n *sitter.Node) []string {
	var names []string
	var visit func(*sitter.Node)
	visit = func(n *sitter.Node) {
		if n == nil {
			return
		}
		switch n.Type() {
		case nodeIdentifier, nodeShorthandPattern:
			names = append(names, w.text(n))
		case nodeObjectPattern, nodeArrayPattern:
			for i := 0; i < int(n.NamedChildCount()); i++ {
				visit(n.NamedChild(i))
			}
		case nodePairPattern:
			visit(n.ChildByFieldName("value"))
		case nodeAssignmentPattern, nodeObjectAssignPattern:
			visit(n.ChildByFieldName("left"))
		case nodeRestPattern:
			if n.NamedChildCount() > 0 {
				visit(n.NamedChild(0))
			}
		}
	}
	visit(n)
	return names
}

// parseImport reads an import statement and returns it with its local
// binding names.
func (w *walker) parseImport(n *sitter.Node) (Import, []string) {
	imp := Import{
		Start: int(n.StartByte()) - w.base,
		End:   int(n.EndByte()) - w.base,
	}
	if src := n.ChildByFieldName("source"); src != nil {
		imp.Source = unquote(w.text(src))
	}

	var locals []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		clause := n.NamedChild(i)
		if clause.Type() != nodeImportClause {
			continue
		}
		for j := 0; j < int(clause.NamedChildCount()); j++ {
			c := clause.NamedChild(j)
			switch c.Type() {
			case nodeIdentifier:
				imp.Default = w.text(c)
				locals = append(locals, imp.Default)
			case nodeNamespaceImport:
				for k := 0; k < int(c.NamedChildCount()); k++ {
					if id := c.NamedChild(k); id.Type() == nodeIdentifier {
						imp.Namespace = w.text(id)
						locals = append(locals, imp.Namespace)
					}
				}
			case nodeNamedImports:
				for k := 0; k < int(c.NamedChildCount()); k++ {
					spec := c.NamedChild(k)
					if spec.Type() != nodeImportSpecifier {
						continue
					}
					name := spec.ChildByFieldName("name")
					if name == nil {
						continue
					}
					in := ImportName{Imported: unquote(w.text(name))}
					in.Local = in.Imported
					if alias := spec.ChildByFieldName("alias"); alias != nil {
						in.Local = w.text(alias)
					}
					imp.Names = append(imp.Names, in)
					locals = append(locals, in.Local)
				}
			}
		}
	}
	return imp, locals
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
