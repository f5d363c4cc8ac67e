package interp

import (
	"slices"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

type bindMode uint8

const (
	bindDeclare bindMode = iota // let, const, parameters, catch
	bindVar
	bindAssign
)

type binder func(sc *scope, v Value)

func (c *compiler) pattern(n *sitter.Node, mode bindMode, mutable bool) binder {
	in := c.in
	switch n.Type() {
	case "identifier", "shorthand_property_identifier_pattern", "shorthand_property_identifier", "undefined":
		name := c.text(n)
		switch mode {
		case bindDeclare:
			return func(sc *scope, v Value) { sc.initialize(name, v, mutable) }
		case bindVar:
			return func(sc *scope, v Value) {
				if b := sc.lookup(name); b != nil {
					b.value, b.initialized = v, true
					return
				}
				sc.declare(name, v, true)
			}
		}
		return func(sc *scope, v Value) { in.assignName(sc, name, v) }
	case "assignment_pattern", "object_assignment_pattern":
		left := n.ChildByFieldName("left")
		inner := c.pattern(left, mode, mutable)
		def := c.namedExpr(n.ChildByFieldName("right"), left)
		return func(sc *scope, v Value) {
			if v == Undefined {
				v = def(sc)
			}
			inner(sc, v)
		}
	case "object_pattern":
		return c.objectPattern(n, mode, mutable)
	case "array_pattern":
		return c.arrayPattern(n, mode, mutable)
	case "member_expression", "subscript_expression":
		if mode != bindAssign {
			break
		}
		ref := c.reference(n)
		return func(sc *scope, v Value) { in.store(ref(sc), v) }
	case "parenthesized_expression":
		return c.pattern(firstNamed(n), mode, mutable)
	}
	panic(c.errorf(n, "Invalid destructuring target"))
}

func (c *compiler) objectPattern(n *sitter.Node, mode bindMode, mutable bool) binder {
	type prop struct {
		key  func(sc *scope) string
		bind binder
		rest bool
	}
	var props []prop
	for _, p := range namedChildren(n) {
		switch p.Type() {
		case "shorthand_property_identifier_pattern", "shorthand_property_identifier":
			props = append(props, prop{key: c.propertyKey(p), bind: c.pattern(p, mode, mutable)})
		case "object_assignment_pattern":
			props = append(props, prop{key: c.propertyKey(p.ChildByFieldName("left")), bind: c.pattern(p, mode, mutable)})
		case "pair_pattern":
			props = append(props, prop{key: c.propertyKey(p.ChildByFieldName("key")), bind: c.pattern(p.ChildByFieldName("value"), mode, mutable)})
		case "rest_pattern":
			props = append(props, prop{bind: c.pattern(firstNamed(p), mode, mutable), rest: true})
		default:
			panic(c.errorf(p, "Invalid destructuring target"))
		}
	}
	in := c.in
	return func(sc *scope, v Value) {
		if isNullish(v) {
			panic(in.typeError("Cannot destructure '%s' as it is %s.", in.toString(v), in.toString(v)))
		}
		used := make([]string, 0, len(props))
		for _, p := range props {
			if p.rest {
				rest := in.NewObject()
				for _, k := range in.ownEnumerableKeys(v) {
					if !slices.Contains(used, k) {
						rest.Set(k, in.getMember(v, k))
					}
				}
				p.bind(sc, rest)
				continue
			}
			k := p.key(sc)
			used = append(used, k)
			p.bind(sc, in.getMember(v, k))
		}
	}
}

func (c *compiler) arrayPattern(n *sitter.Node, mode bindMode, mutable bool) binder {
	type elem struct {
		idx  int
		bind binder
		rest bool
	}
	var elems []elem
	idx := 0
	for i := 0; i < int(n.ChildCount()); i++ {
		ch := n.Child(i)
		switch {
		case ch.Type() == ",":
			idx++
		case !ch.IsNamed() || ch.Type() == "comment":
		case ch.Type() == "rest_pattern":
			elems = append(elems, elem{idx: idx, bind: c.pattern(firstNamed(ch), mode, mutable), rest: true})
		default:
			elems = append(elems, elem{idx: idx, bind: c.pattern(ch, mode, mutable)})
		}
	}
	in := c.in
	return func(sc *scope, v Value) {
		var items []Value
		if a, ok := v.(*Array); ok {
			items = a.Elems
		} else {
			items = in.collect(v)
		}
		for _, e := range elems {
			if e.rest {
				var rest []Value
				if e.idx < len(items) {
					rest = slices.Clone(items[e.idx:])
				}
				e.bind(sc, in.newArray(rest))
				continue
			}
			if e.idx < len(items) {
				e.bind(sc, norm(items[e.idx]))
			} else {
				e.bind(sc, Undefined)
			}
		}
	}
}

// patternNames lists the names a binding pattern declares.
func (c *compiler) patternNames(n *sitter.Node) []string {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "identifier", "shorthand_property_identifier_pattern":
		return []string{c.text(n)}
	case "assignment_pattern", "object_assignment_pattern":
		return c.patternNames(n.ChildByFieldName("left"))
	case "pair_pattern":
		return c.patternNames(n.ChildByFieldName("value"))
	case "rest_pattern":
		return c.patternNames(firstNamed(n))
	case "object_pattern", "array_pattern":
		var names []string
		for _, ch := range namedChildren(n) {
			names = append(names, c.patternNames(ch)...)
		}
		return names
	}
	return nil
}

// propertyKey compiles a property name.
func (c *compiler) propertyKey(n *sitter.Node) func(sc *scope) string {
	if k, ok := c.staticKey(n); ok {
		return func(*scope) string { return k }
	}
	if n.Type() == "computed_property_name" {
		e, in := c.expr(firstNamed(n)), c.in
		return func(sc *scope) string { return in.toPropertyKey(e(sc)) }
	}
	panic(c.errorf(n, "unsupported property name %s", n.Type()))
}

func (c *compiler) staticKey(n *sitter.Node) (string, bool) {
	switch n.Type() {
	case "property_identifier", "shorthand_property_identifier", "shorthand_property_identifier_pattern",
		"private_property_identifier", "identifier":
		return c.text(n), true
	case "string":
		return c.stringLiteral(n), true
	case "number":
		return numberToString(c.number(n)), true
	}
	return "", false
}

type funcTemplate struct {
	name     string
	length   int
	params   func(in *Interp, sc *scope, args []Value)
	body     func(sc *scope) Value
	vars     []string
	async    bool
	arrow    bool
	method   bool
	selfName bool // named function expression, bound inside itself
	usesArgs bool
	source   string
}

func (c *compiler) function(n *sitter.Node, name string, method bool) *funcTemplate {
	switch {
	case n.Type() == "generator_function" || n.Type() == "generator_function_declaration" || hasToken(n, "*"):
		panic(c.unsupported(n, "generator functions"))
	case method && (hasToken(n, "get") || hasToken(n, "set")):
		panic(c.unsupported(n, "getters and setters"))
	}
	t := &funcTemplate{
		name:   name,
		async:  hasToken(n, "async"),
		arrow:  n.Type() == "arrow_function",
		method: method,
		source: c.text(n),
	}
	if id := n.ChildByFieldName("name"); id != nil && !method {
		t.name = c.text(id)
		t.selfName = n.Type() != "function_declaration"
	}
	t.usesArgs = !t.arrow && strings.Contains(t.source, "arguments")

	saved := c.fn
	c.fn = &funcState{async: t.async, parent: saved}
	defer func() { c.fn = saved }()

	var params []*sitter.Node
	if p := n.ChildByFieldName("parameters"); p != nil {
		params = namedChildren(p)
	} else if p := n.ChildByFieldName("parameter"); p != nil {
		params = []*sitter.Node{p}
	}
	t.params, t.length = c.parameters(params)

	body := n.ChildByFieldName("body")
	if body.Type() == "statement_block" {
		stmts := namedChildren(body)
		t.vars = c.varNames(stmts)
		blk := c.block(stmts, false)
		t.body = func(sc *scope) Value {
			if r := blk(sc); r.kind == completionReturn {
				return r.value
			}
			return Undefined
		}
	} else {
		t.body = c.expr(body)
	}
	return t
}

func (c *compiler) parameters(nodes []*sitter.Node) (func(in *Interp, sc *scope, args []Value), int) {
	type param struct {
		bind binder
		def  expr
		rest bool
	}
	ps := make([]param, 0, len(nodes))
	length, counting := 0, true
	for _, p := range nodes {
		switch p.Type() {
		case "assignment_pattern":
			left := p.ChildByFieldName("left")
			ps = append(ps, param{bind: c.pattern(left, bindDeclare, true), def: c.namedExpr(p.ChildByFieldName("right"), left)})
			counting = false
		case "rest_pattern":
			ps = append(ps, param{bind: c.pattern(firstNamed(p), bindDeclare, true), rest: true})
			counting = false
		default:
			ps = append(ps, param{bind: c.pattern(p, bindDeclare, true)})
			if counting {
				length++
			}
		}
	}
	return func(in *Interp, sc *scope, args []Value) {
		for i, p := range ps {
			if p.rest {
				var rest []Value
				if i < len(args) {
					rest = slices.Clone(args[i:])
				}
				p.bind(sc, in.newArray(rest))
				continue
			}
			v := arg(args, i)
			if v == Undefined && p.def != nil {
				v = p.def(sc)
			}
			p.bind(sc, v)
		}
	}, length
}

func (t *funcTemplate) instantiate(in *Interp, sc *scope, home *Object) *Function {
	fn := in.newFunctionObject(t.name, t.length)
	fn.async, fn.arrow, fn.home, fn.source = t.async, t.arrow, home, t.source
	if !t.arrow && !t.async && !t.method {
		fn.construct = true
		proto := in.NewObject()
		proto.setHidden("constructor", fn)
		fn.setHidden("prototype", proto)
	}
	if t.selfName {
		sc = newScope(sc, sc.fr)
		sc.declare(t.name, fn, false)
	}
	fn.call = func(this Value, args []Value, newTarget *Function) Value {
		fr := &frame{this: this, hasThis: true, fn: fn, args: args, newTarget: newTarget, home: fn.home}
		if t.arrow {
			fr.parent = sc.fr
		}
		fs := newScope(sc, fr)
		if t.async {
			return in.startAsync(fr, func() Value { return t.run(in, fs, args) })
		}
		in.enter()
		v := t.run(in, fs, args)
		in.depth--
		return v
	}
	return fn
}

func (t *funcTemplate) run(in *Interp, fs *scope, args []Value) Value {
	if t.usesArgs {
		fs.declare("arguments", in.newArray(slices.Clone(args)), true)
	}
	t.params(in, fs, args)
	for _, name := range t.vars {
		if _, ok := fs.vars[name]; !ok {
			fs.declare(name, Undefined, true)
		}
	}
	return t.body(fs)
}

// namedExpr compiles v, naming an anonymous function or class after the
// identifier it is assigned to.
func (c *compiler) namedExpr(v, target *sitter.Node) expr {
	if target != nil && target.Type() == "identifier" {
		return c.exprNamed(v, c.text(target))
	}
	return c.expr(v)
}

func (c *compiler) exprNamed(v *sitter.Node, name string) expr {
	if v.ChildByFieldName("name") == nil {
		switch v.Type() {
		case "arrow_function", "function_expression", "function":
			t, in := c.function(v, name, false), c.in
			return func(sc *scope) Value { return t.instantiate(in, sc, nil) }
		case "class":
			_, mk := c.classNamed(v, name)
			return mk
		}
	}
	return c.expr(v)
}

func (c *compiler) class(n *sitter.Node) (string, expr) {
	return c.classNamed(n, "")
}

type classMember struct {
	static  bool
	private bool
	key     func(sc *scope) string
	method  *funcTemplate
	field   bool
	value   expr
	block   stmt
}

func (c *compiler) classNamed(n *sitter.Node, inferred string) (string, expr) {
	name := inferred
	if id := n.ChildByFieldName("name"); id != nil {
		name = c.text(id)
	}
	var heritage expr
	for _, ch := range namedChildren(n) {
		if ch.Type() == "class_heritage" {
			heritage = c.expr(firstNamed(ch))
		}
	}

	var ctor *funcTemplate
	var members []classMember
	for _, m := range namedChildren(n.ChildByFieldName("body")) {
		static := hasToken(m, "static")
		switch m.Type() {
		case "method_definition":
			keyNode := m.ChildByFieldName("name")
			if !static && keyNode.Type() == "property_identifier" && c.text(keyNode) == "constructor" {
				ctor = c.function(m, name, true)
				continue
			}
			sk, _ := c.staticKey(keyNode)
			members = append(members, classMember{
				static:  static,
				private: keyNode.Type() == "private_property_identifier",
				key:     c.propertyKey(keyNode),
				method:  c.function(m, sk, true),
			})
		case "field_definition":
			keyNode := m.ChildByFieldName("property")
			cm := classMember{
				static:  static,
				private: keyNode.Type() == "private_property_identifier",
				key:     c.propertyKey(keyNode),
				field:   true,
			}
			if v := m.ChildByFieldName("value"); v != nil {
				saved := c.fn
				c.fn = &funcState{parent: saved}
				sk, _ := c.staticKey(keyNode)
				cm.value = c.exprNamed(v, sk)
				c.fn = saved
			}
			members = append(members, cm)
		case "class_static_block", "static_block":
			saved := c.fn
			c.fn = &funcState{parent: saved}
			body := c.block(namedChildren(m.ChildByFieldName("body")), true)
			c.fn = saved
			members = append(members, classMember{static: true, block: body})
		}
	}

	in, source := c.in, c.text(n)
	ctorLength := 0
	if ctor != nil {
		ctorLength = ctor.length
	}
	return name, func(sc *scope) Value {
		var parent *Function
		protoParent, ctorParent := in.objectProto, in.functionProto
		if heritage != nil {
			switch h := heritage(sc).(type) {
			case nullType:
				protoParent = nil
			case *Function:
				if !h.construct {
					panic(in.typeError("Class extends value %s is not a constructor or null", describeShort(h)))
				}
				parent, ctorParent = h, &h.Object
				switch pp := h.Get("prototype").(type) {
				case objectLike:
					protoParent = pp.base()
				case nullType:
					protoParent = nil
				default:
					panic(in.typeError("Class extends value does not have valid prototype property"))
				}
			default:
				panic(in.typeError("Class extends value %s is not a constructor or null", describeShort(h)))
			}
		}

		cs := newScope(sc, sc.fr)
		proto := newObject(protoParent)
		cls := in.newFunctionObject(name, ctorLength)
		cls.proto = ctorParent
		cls.class, cls.construct = true, true
		cls.parent, cls.derived = parent, parent != nil
		cls.home, cls.source = proto, source
		cls.setHidden("prototype", proto)
		proto.setHidden("constructor", cls)
		if name != "" {
			cs.declare(name, cls, false)
		}

		cls.call = func(this Value, args []Value, newTarget *Function) Value {
			fr := &frame{this: this, hasThis: !cls.derived, fn: cls, args: args, newTarget: newTarget, home: proto}
			in.enter()
			if ctor != nil {
				if r := ctor.run(in, newScope(cs, fr), args); isObject(r) {
					in.depth--
					return r
				}
			} else if cls.derived {
				in.superCall(fr, args)
			}
			in.depth--
			if !fr.hasThis {
				panic(in.referenceError("Must call super constructor in derived class before accessing 'this' or returning from derived constructor"))
			}
			return fr.this
		}

		type field struct {
			key     string
			private bool
			value   expr
		}
		var fields []field
		for _, m := range members {
			target := proto
			if m.static {
				target = &cls.Object
			}
			switch {
			case m.method != nil:
				target.setHidden(m.key(cs), m.method.instantiate(in, cs, target))
			case m.field && !m.static:
				fields = append(fields, field{key: m.key(cs), private: m.private, value: m.value})
			}
		}
		if len(fields) > 0 {
			cls.fields = func(obj *Object) {
				fs := newScope(cs, &frame{this: obj.value(), hasThis: true, fn: cls, home: proto})
				for _, f := range fields {
					v := Undefined
					if f.value != nil {
						v = f.value(fs)
					}
					if f.private {
						obj.setHidden(f.key, v)
					} else {
						obj.Set(f.key, v)
					}
				}
			}
		}

		ss := newScope(cs, &frame{this: cls, hasThis: true, fn: cls, home: &cls.Object})
		for _, m := range members {
			switch {
			case !m.static:
			case m.field:
				key, v := m.key(cs), Undefined
				if m.value != nil {
					v = m.value(ss)
				}
				if m.private {
					cls.setHidden(key, v)
				} else {
					cls.Set(key, v)
				}
			case m.block != nil:
				m.block(ss)
			}
		}
		return cls
	}
}

func (in *Interp) superCall(fr *frame, args []Value) Value {
	tf := fr.thisFrame()
	cls := tf.fn
	if cls == nil || cls.parent == nil {
		panic(in.throwError("SyntaxError", "'super' keyword unexpected here"))
	}
	if tf.hasThis {
		panic(in.referenceError("Super constructor may only be called once"))
	}
	r := in.construct(cls.parent, args, tf.newTarget)
	tf.this, tf.hasThis = r, true
	if cls.fields != nil {
		if o, ok := r.(objectLike); ok {
			cls.fields(o.base())
		}
	}
	return Undefined
}
