package interp

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
)

func constant(v Value) expr {
	return func(*scope) Value { return v }
}

// brokenChain is what an optional chain link yields once it short-circuits.
// The root of the chain turns it into undefined.
type brokenChain struct{}

var broken Value = brokenChain{}

func (c *compiler) expr(n *sitter.Node) expr {
	in := c.in
	switch n.Type() {
	case "parenthesized_expression":
		return c.expr(firstNamed(n))
	case "sequence_expression":
		parts := make([]expr, 0, 2)
		for _, ch := range namedChildren(n) {
			parts = append(parts, c.expr(ch))
		}
		return func(sc *scope) Value {
			var v Value = Undefined
			for _, p := range parts {
				v = p(sc)
			}
			return v
		}
	case "identifier":
		return c.identifier(n)
	case "undefined":
		return constant(Undefined)
	case "true":
		return constant(true)
	case "false":
		return constant(false)
	case "null":
		return constant(Null)
	case "number":
		return constant(c.number(n))
	case "string":
		return constant(c.stringLiteral(n))
	case "template_string":
		return c.template(n)
	case "this":
		return func(sc *scope) Value { return in.this(sc) }
	case "array":
		return c.array(n)
	case "object":
		return c.object(n)
	case "function_expression", "function", "arrow_function":
		t := c.function(n, "", false)
		return func(sc *scope) Value { return t.instantiate(in, sc, nil) }
	case "class":
		_, mk := c.class(n)
		return mk
	case "member_expression", "subscript_expression", "call_expression":
		e, optional := c.chain(n)
		if !optional {
			return e
		}
		return func(sc *scope) Value {
			if v := e(sc); v != broken {
				return v
			}
			return Undefined
		}
	case "new_expression":
		return c.newExpr(n)
	case "assignment_expression":
		return c.assignment(n)
	case "augmented_assignment_expression":
		return c.augmented(n)
	case "binary_expression":
		return c.binary(n)
	case "unary_expression":
		return c.unary(n)
	case "update_expression":
		return c.update(n)
	case "ternary_expression":
		cond := c.expr(n.ChildByFieldName("condition"))
		cons := c.expr(n.ChildByFieldName("consequence"))
		alt := c.expr(n.ChildByFieldName("alternative"))
		return func(sc *scope) Value {
			if truthy(cond(sc)) {
				return cons(sc)
			}
			return alt(sc)
		}
	case "await_expression":
		return c.await(n, c.expr(firstNamed(n)))
	case "meta_property":
		if strings.HasPrefix(c.text(n), "new") {
			return func(sc *scope) Value {
				if nt := sc.fr.thisFrame().newTarget; nt != nil {
					return nt
				}
				return Undefined
			}
		}
		panic(c.errorf(n, "import.meta is not supported"))
	case "yield_expression", "generator_function":
		panic(c.unsupported(n, "generator functions"))
	case "regex":
		panic(c.unsupported(n, "regular expression literals"))
	case "super":
		panic(c.errorf(n, "'super' keyword unexpected here"))
	case "spread_element":
		panic(c.errorf(n, "Unexpected spread"))
	}
	panic(c.errorf(n, "unsupported expression %s", n.Type()))
}

func (c *compiler) identifier(n *sitter.Node) expr {
	name, in := c.text(n), c.in
	return func(sc *scope) Value {
		b := sc.lookup(name)
		if b == nil {
			panic(in.referenceError("%s is not defined", name))
		}
		if !b.initialized {
			panic(in.referenceError("Cannot access '%s' before initialization", name))
		}
		return b.value
	}
}

func (in *Interp) this(sc *scope) Value {
	f := sc.fr.thisFrame()
	if !f.hasThis {
		panic(in.referenceError("Must call super constructor in derived class before accessing 'this' or returning from derived constructor"))
	}
	return f.this
}

func (c *compiler) number(n *sitter.Node) float64 {
	f, ok := parseNumberLiteral(c.text(n))
	if !ok {
		panic(c.unsupported(n, "BigInt literals"))
	}
	return f
}

func (c *compiler) stringLiteral(n *sitter.Node) string {
	raw := c.text(n)
	if len(raw) < 2 {
		return ""
	}
	s, ok := cook(raw[1 : len(raw)-1])
	if !ok {
		panic(c.errorf(n, "Invalid escape sequence"))
	}
	return s
}

// cook resolves the escape sequences of a string or template literal.
func cook(s string) (string, bool) {
	if !strings.ContainsRune(s, '\\') {
		return s, true
	}
	var b strings.Builder
	var pending rune = -1 // high surrogate waiting for its pair
	flush := func() {
		if pending >= 0 {
			b.WriteRune(utf8.RuneError)
			pending = -1
		}
	}
	unit := func(u rune) {
		switch {
		case utf16.IsSurrogate(u) && u < 0xdc00:
			flush()
			pending = u
		case utf16.IsSurrogate(u) && pending >= 0:
			b.WriteRune(utf16.DecodeRune(pending, u))
			pending = -1
		default:
			flush()
			b.WriteRune(u)
		}
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch != '\\' {
			flush()
			b.WriteByte(ch)
			continue
		}
		i++
		if i >= len(s) {
			return "", false
		}
		switch e := s[i]; e {
		case 'n':
			unit('\n')
		case 't':
			unit('\t')
		case 'r':
			unit('\r')
		case 'b':
			unit('\b')
		case 'f':
			unit('\f')
		case 'v':
			unit('\v')
		case '0':
			unit(0)
		case 'x':
			if i+3 > len(s) {
				return "", false
			}
			v, err := strconv.ParseUint(s[i+1:i+3], 16, 32)
			if err != nil {
				return "", false
			}
			unit(rune(v))
			i += 2
		case 'u':
			if i+1 < len(s) && s[i+1] == '{' {
				end := strings.IndexByte(s[i:], '}')
				if end < 0 {
					return "", false
				}
				v, err := strconv.ParseUint(s[i+2:i+end], 16, 32)
				if err != nil || v > utf8.MaxRune {
					return "", false
				}
				unit(rune(v))
				i += end
				continue
			}
			if i+5 > len(s) {
				return "", false
			}
			v, err := strconv.ParseUint(s[i+1:i+5], 16, 32)
			if err != nil {
				return "", false
			}
			unit(rune(v))
			i += 4
		case '\r':
			flush()
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
		case '\n':
			flush()
		default:
			flush()
			b.WriteByte(e)
		}
	}
	flush()
	return b.String(), true
}

func (c *compiler) template(n *sitter.Node) expr {
	var quasis []string
	var parts []expr
	pos := n.StartByte() + 1
	for _, ch := range namedChildren(n) {
		if ch.Type() != "template_substitution" {
			continue
		}
		quasis = append(quasis, c.quasi(n, pos, ch.StartByte()))
		parts = append(parts, c.expr(firstNamed(ch)))
		pos = ch.EndByte()
	}
	quasis = append(quasis, c.quasi(n, pos, n.EndByte()-1))
	in := c.in
	return func(sc *scope) Value {
		var b strings.Builder
		b.WriteString(quasis[0])
		for i, p := range parts {
			b.WriteString(in.toString(p(sc)))
			b.WriteString(quasis[i+1])
		}
		return b.String()
	}
}

func (c *compiler) quasi(n *sitter.Node, start, end uint32) string {
	if end < start {
		return ""
	}
	s, ok := cook(string(c.src[start:end]))
	if !ok {
		panic(c.errorf(n, "Invalid escape sequence in template"))
	}
	return s
}

func (c *compiler) array(n *sitter.Node) expr {
	type element struct {
		e      expr
		spread bool
	}
	var elems []element
	expect := true
	for i := 0; i < int(n.ChildCount()); i++ {
		ch := n.Child(i)
		switch {
		case ch.Type() == ",":
			if expect {
				elems = append(elems, element{e: constant(Undefined)})
			}
			expect = true
		case !ch.IsNamed() || ch.Type() == "comment":
		case ch.Type() == "spread_element":
			elems = append(elems, element{e: c.expr(firstNamed(ch)), spread: true})
			expect = false
		default:
			elems = append(elems, element{e: c.expr(ch)})
			expect = false
		}
	}
	in := c.in
	return func(sc *scope) Value {
		out := make([]Value, 0, len(elems))
		for _, el := range elems {
			v := el.e(sc)
			if !el.spread {
				out = append(out, v)
				continue
			}
			in.iterate(v, func(x Value) bool {
				out = append(out, x)
				return true
			})
		}
		return in.newArray(out)
	}
}

func (c *compiler) object(n *sitter.Node) expr {
	type member struct {
		key    func(sc *scope) string
		value  expr
		method *funcTemplate
		spread bool
		proto  bool
	}
	var members []member
	for _, p := range namedChildren(n) {
		switch p.Type() {
		case "pair":
			keyNode, valueNode := p.ChildByFieldName("key"), p.ChildByFieldName("value")
			sk, static := c.staticKey(keyNode)
			m := member{key: c.propertyKey(keyNode), value: c.exprNamed(valueNode, sk)}
			m.proto = static && sk == "__proto__" && keyNode.Type() != "computed_property_name"
			members = append(members, m)
		case "shorthand_property_identifier":
			members = append(members, member{key: c.propertyKey(p), value: c.identifier(p)})
		case "method_definition":
			keyNode := p.ChildByFieldName("name")
			sk, _ := c.staticKey(keyNode)
			members = append(members, member{key: c.propertyKey(keyNode), method: c.function(p, sk, true)})
		case "spread_element":
			members = append(members, member{value: c.expr(firstNamed(p)), spread: true})
		default:
			panic(c.errorf(p, "unsupported object member %s", p.Type()))
		}
	}
	in := c.in
	return func(sc *scope) Value {
		obj := in.NewObject()
		for _, m := range members {
			switch {
			case m.spread:
				src := m.value(sc)
				for _, k := range in.ownEnumerableKeys(src) {
					obj.Set(k, in.getMember(src, k))
				}
			case m.method != nil:
				obj.Set(m.key(sc), m.method.instantiate(in, sc, obj))
			case m.proto:
				switch p := m.value(sc).(type) {
				case objectLike:
					obj.proto = p.base()
				case nullType:
					obj.proto = nil
				}
			default:
				k := m.key(sc)
				obj.Set(k, m.value(sc))
			}
		}
		return obj
	}
}

// chain compiles a member, subscript or call expression. optional reports
// whether the chain contains an optional link.
func (c *compiler) chain(n *sitter.Node) (expr, bool) {
	switch n.Type() {
	case "member_expression", "subscript_expression":
		return c.member(n)
	case "call_expression":
		return c.call(n)
	case "parenthesized_expression":
		return c.expr(n), false
	}
	return c.expr(n), false
}

func (c *compiler) memberKey(n *sitter.Node) expr {
	if n.Type() == "member_expression" {
		return constant(c.text(n.ChildByFieldName("property")))
	}
	return c.expr(n.ChildByFieldName("index"))
}

func (c *compiler) member(n *sitter.Node) (expr, bool) {
	in := c.in
	objNode := n.ChildByFieldName("object")
	key := c.memberKey(n)
	if objNode.Type() == "super" {
		return func(sc *scope) Value {
			return in.getMember(in.superBase(sc), key(sc))
		}, false
	}
	obj, objOpt := c.chain(objNode)
	opt := hasChildOfType(n, "optional_chain")
	return func(sc *scope) Value {
		o := obj(sc)
		if o == broken || (opt && isNullish(o)) {
			return broken
		}
		return in.getMember(o, key(sc))
	}, opt || objOpt
}

// superBase returns the object super property lookups start from.
func (in *Interp) superBase(sc *scope) Value {
	home := sc.fr.thisFrame().home
	if home == nil {
		panic(in.throwError("SyntaxError", "'super' keyword unexpected here"))
	}
	if home.proto == nil {
		return Null
	}
	return home.proto.value()
}

func (c *compiler) arguments(n *sitter.Node) func(sc *scope) []Value {
	if n == nil {
		return func(*scope) []Value { return nil }
	}
	type argument struct {
		e      expr
		spread bool
	}
	var items []argument
	for _, ch := range namedChildren(n) {
		if ch.Type() == "spread_element" {
			items = append(items, argument{e: c.expr(firstNamed(ch)), spread: true})
		} else {
			items = append(items, argument{e: c.expr(ch)})
		}
	}
	in := c.in
	return func(sc *scope) []Value {
		out := make([]Value, 0, len(items))
		for _, a := range items {
			v := a.e(sc)
			if !a.spread {
				out = append(out, v)
				continue
			}
			in.iterate(v, func(x Value) bool {
				out = append(out, x)
				return true
			})
		}
		return out
	}
}

func calleeText(s string) string {
	if len(s) > 40 {
		s = s[:40] + "..."
	}
	return strings.Join(strings.Fields(s), " ")
}

func (c *compiler) call(n *sitter.Node) (expr, bool) {
	in := c.in
	fnNode := n.ChildByFieldName("function")
	argsNode := n.ChildByFieldName("arguments")
	if argsNode != nil && argsNode.Type() == "template_string" {
		panic(c.unsupported(n, "tagged templates"))
	}
	args := c.arguments(argsNode)
	opt := hasChildOfType(n, "optional_chain")
	what := calleeText(c.text(fnNode))

	switch fnNode.Type() {
	case "import":
		return func(sc *scope) Value {
			a := args(sc)
			return in.dynamicImport(in.toString(arg(a, 0)))
		}, false
	case "super":
		return func(sc *scope) Value { return in.superCall(sc.fr, args(sc)) }, false
	case "identifier":
		if c.text(fnNode) == "await" && c.fn.async {
			return c.await(n, func(sc *scope) Value { return arg(args(sc), 0) }), false
		}
	case "member_expression", "subscript_expression":
		objNode := fnNode.ChildByFieldName("object")
		key := c.memberKey(fnNode)
		if objNode.Type() == "super" {
			return func(sc *scope) Value {
				f := in.getMember(in.superBase(sc), key(sc))
				a := args(sc)
				return in.invoke(in.callable(f, what), in.this(sc), a)
			}, false
		}
		obj, objOpt := c.chain(objNode)
		memberOpt := hasChildOfType(fnNode, "optional_chain")
		return func(sc *scope) Value {
			o := obj(sc)
			if o == broken || (memberOpt && isNullish(o)) {
				return broken
			}
			f := in.getMember(o, key(sc))
			if opt && isNullish(f) {
				return broken
			}
			fn := in.callable(f, what)
			return in.invoke(fn, o, args(sc))
		}, objOpt || memberOpt || opt
	}

	callee, calleeOpt := c.chain(fnNode)
	return func(sc *scope) Value {
		f := callee(sc)
		if f == broken || (opt && isNullish(f)) {
			return broken
		}
		fn := in.callable(f, what)
		return in.invoke(fn, Undefined, args(sc))
	}, calleeOpt || opt
}

func (c *compiler) newExpr(n *sitter.Node) expr {
	in := c.in
	ctorNode := n.ChildByFieldName("constructor")
	ctor := c.expr(ctorNode)
	args := c.arguments(n.ChildByFieldName("arguments"))
	what := calleeText(c.text(ctorNode))
	return func(sc *scope) Value {
		f := ctor(sc)
		a := args(sc)
		if fn, ok := f.(*Function); !ok || !fn.construct {
			panic(in.typeError("%s is not a constructor", what))
		}
		return in.construct(f, a, nil)
	}
}

func (c *compiler) await(n *sitter.Node, e expr) expr {
	if c.fn == nil || !c.fn.async {
		panic(c.errorf(n, "await is only valid in async functions"))
	}
	in := c.in
	return func(sc *scope) Value {
		return in.await(sc.fr, e(sc))
	}
}

// reference is an evaluated assignment target.
type reference struct {
	member  bool
	object  Value
	key     Value
	name    string
	binding *binding
}

func (c *compiler) reference(n *sitter.Node) func(sc *scope) reference {
	switch n.Type() {
	case "identifier":
		name := c.text(n)
		return func(sc *scope) reference { return reference{name: name, binding: sc.lookup(name)} }
	case "member_expression", "subscript_expression":
		objNode := n.ChildByFieldName("object")
		if objNode.Type() == "super" || hasChildOfType(n, "optional_chain") {
			break
		}
		obj, key := c.expr(objNode), c.memberKey(n)
		return func(sc *scope) reference {
			o := obj(sc)
			return reference{member: true, object: o, key: key(sc)}
		}
	case "parenthesized_expression":
		return c.reference(firstNamed(n))
	}
	panic(c.errorf(n, "Invalid left-hand side in assignment"))
}

func (in *Interp) load(r reference) Value {
	if r.member {
		return in.getMember(r.object, r.key)
	}
	if r.binding == nil {
		panic(in.referenceError("%s is not defined", r.name))
	}
	if !r.binding.initialized {
		panic(in.referenceError("Cannot access '%s' before initialization", r.name))
	}
	return r.binding.value
}

func (in *Interp) store(r reference, v Value) {
	if r.member {
		in.setMember(r.object, r.key, v)
		return
	}
	in.assignBinding(r.binding, r.name, v)
}

func (in *Interp) assignName(sc *scope, name string, v Value) {
	in.assignBinding(sc.lookup(name), name, v)
}

func (in *Interp) assignBinding(b *binding, name string, v Value) {
	switch {
	case b == nil:
		panic(in.referenceError("%s is not defined", name))
	case !b.initialized:
		panic(in.referenceError("Cannot access '%s' before initialization", name))
	case !b.mutable:
		panic(in.typeError("Assignment to constant variable."))
	}
	b.value = v
}

func (c *compiler) assignment(n *sitter.Node) expr {
	left, right := n.ChildByFieldName("left"), n.ChildByFieldName("right")
	for left.Type() == "parenthesized_expression" {
		left = firstNamed(left)
	}
	in := c.in
	switch left.Type() {
	case "identifier", "undefined":
		name, value := c.text(left), c.namedExpr(right, left)
		return func(sc *scope) Value {
			b := sc.lookup(name)
			v := value(sc)
			in.assignBinding(b, name, v)
			return v
		}
	case "object_pattern", "array_pattern":
		bind, value := c.pattern(left, bindAssign, true), c.expr(right)
		return func(sc *scope) Value {
			v := value(sc)
			bind(sc, v)
			return v
		}
	}
	ref, value := c.reference(left), c.expr(right)
	return func(sc *scope) Value {
		r := ref(sc)
		v := value(sc)
		in.store(r, v)
		return v
	}
}

func (c *compiler) augmented(n *sitter.Node) expr {
	op := strings.TrimSuffix(c.text(n.ChildByFieldName("operator")), "=")
	ref, value := c.reference(n.ChildByFieldName("left")), c.expr(n.ChildByFieldName("right"))
	in := c.in
	switch op {
	case "&&", "||", "??":
		return func(sc *scope) Value {
			r := ref(sc)
			cur := in.load(r)
			if (op == "&&" && !truthy(cur)) || (op == "||" && truthy(cur)) || (op == "??" && !isNullish(cur)) {
				return cur
			}
			v := value(sc)
			in.store(r, v)
			return v
		}
	}
	apply := binaryOperator(op)
	if apply == nil {
		panic(c.errorf(n, "unsupported operator %s=", op))
	}
	return func(sc *scope) Value {
		r := ref(sc)
		v := apply(in, in.load(r), value(sc))
		in.store(r, v)
		return v
	}
}

func (c *compiler) update(n *sitter.Node) expr {
	arg := n.ChildByFieldName("argument")
	ref := c.reference(arg)
	op := c.text(n.ChildByFieldName("operator"))
	prefix := n.Child(0).Type() == op
	delta := 1.0
	if op == "--" {
		delta = -1
	}
	in := c.in
	return func(sc *scope) Value {
		r := ref(sc)
		old := in.toNumber(in.load(r))
		nv := old + delta
		in.store(r, nv)
		if prefix {
			return nv
		}
		return old
	}
}

func (c *compiler) binary(n *sitter.Node) expr {
	op := c.text(n.ChildByFieldName("operator"))
	left, right := c.expr(n.ChildByFieldName("left")), c.expr(n.ChildByFieldName("right"))
	switch op {
	case "&&":
		return func(sc *scope) Value {
			if v := left(sc); !truthy(v) {
				return v
			}
			return right(sc)
		}
	case "||":
		return func(sc *scope) Value {
			if v := left(sc); truthy(v) {
				return v
			}
			return right(sc)
		}
	case "??":
		return func(sc *scope) Value {
			if v := left(sc); !isNullish(v) {
				return v
			}
			return right(sc)
		}
	}
	apply := binaryOperator(op)
	if apply == nil {
		panic(c.errorf(n, "unsupported operator %s", op))
	}
	in := c.in
	return func(sc *scope) Value {
		a := left(sc)
		return apply(in, a, right(sc))
	}
}

func binaryOperator(op string) func(in *Interp, a, b Value) Value {
	switch op {
	case "+":
		return (*Interp).add
	case "-":
		return func(in *Interp, a, b Value) Value { return in.toNumber(a) - in.toNumber(b) }
	case "*":
		return func(in *Interp, a, b Value) Value { return in.toNumber(a) * in.toNumber(b) }
	case "/":
		return func(in *Interp, a, b Value) Value { return in.toNumber(a) / in.toNumber(b) }
	case "%":
		return func(in *Interp, a, b Value) Value { return math.Mod(in.toNumber(a), in.toNumber(b)) }
	case "**":
		return func(in *Interp, a, b Value) Value { return jsPow(in.toNumber(a), in.toNumber(b)) }
	case "==":
		return func(in *Interp, a, b Value) Value { return in.looseEquals(a, b) }
	case "!=":
		return func(in *Interp, a, b Value) Value { return !in.looseEquals(a, b) }
	case "===":
		return func(_ *Interp, a, b Value) Value { return strictEquals(a, b) }
	case "!==":
		return func(_ *Interp, a, b Value) Value { return !strictEquals(a, b) }
	case "<":
		return func(in *Interp, a, b Value) Value { lt, undef := in.less(a, b, true); return !undef && lt }
	case ">":
		return func(in *Interp, a, b Value) Value { lt, undef := in.less(b, a, false); return !undef && lt }
	case "<=":
		return func(in *Interp, a, b Value) Value { lt, undef := in.less(b, a, false); return !undef && !lt }
	case ">=":
		return func(in *Interp, a, b Value) Value { lt, undef := in.less(a, b, true); return !undef && !lt }
	case "&":
		return func(in *Interp, a, b Value) Value { return float64(toInt32(in.toNumber(a)) & toInt32(in.toNumber(b))) }
	case "|":
		return func(in *Interp, a, b Value) Value { return float64(toInt32(in.toNumber(a)) | toInt32(in.toNumber(b))) }
	case "^":
		return func(in *Interp, a, b Value) Value { return float64(toInt32(in.toNumber(a)) ^ toInt32(in.toNumber(b))) }
	case "<<":
		return func(in *Interp, a, b Value) Value {
			return float64(toInt32(in.toNumber(a)) << (toUint32(in.toNumber(b)) & 31))
		}
	case ">>":
		return func(in *Interp, a, b Value) Value {
			return float64(toInt32(in.toNumber(a)) >> (toUint32(in.toNumber(b)) & 31))
		}
	case ">>>":
		return func(in *Interp, a, b Value) Value {
			return float64(toUint32(in.toNumber(a)) >> (toUint32(in.toNumber(b)) & 31))
		}
	case "in":
		return func(in *Interp, a, b Value) Value {
			if !isObject(b) {
				panic(in.typeError("Cannot use 'in' operator to search for '%s' in %s", in.toString(a), describeShort(b)))
			}
			return in.hasProperty(b, in.toPropertyKey(a))
		}
	case "instanceof":
		return (*Interp).instanceOf
	}
	return nil
}

func (c *compiler) unary(n *sitter.Node) expr {
	op := c.text(n.ChildByFieldName("operator"))
	argNode := n.ChildByFieldName("argument")
	in := c.in
	switch op {
	case "typeof":
		if argNode.Type() == "identifier" {
			name := c.text(argNode)
			return func(sc *scope) Value {
				b := sc.lookup(name)
				if b == nil {
					return "undefined"
				}
				if !b.initialized {
					panic(in.referenceError("Cannot access '%s' before initialization", name))
				}
				return typeOf(b.value)
			}
		}
		e := c.expr(argNode)
		return func(sc *scope) Value { return typeOf(e(sc)) }
	case "delete":
		for argNode.Type() == "parenthesized_expression" {
			argNode = firstNamed(argNode)
		}
		switch argNode.Type() {
		case "member_expression", "subscript_expression":
			ref := c.reference(argNode)
			return func(sc *scope) Value {
				r := ref(sc)
				return in.deleteMember(r.object, r.key)
			}
		case "identifier":
			panic(c.errorf(n, "Delete of an unqualified identifier in strict mode."))
		}
		e := c.expr(argNode)
		return func(sc *scope) Value {
			e(sc)
			return true
		}
	}
	e := c.expr(argNode)
	switch op {
	case "!":
		return func(sc *scope) Value { return !truthy(e(sc)) }
	case "-":
		return func(sc *scope) Value { return -in.toNumber(e(sc)) }
	case "+":
		return func(sc *scope) Value { return in.toNumber(e(sc)) }
	case "~":
		return func(sc *scope) Value { return float64(^toInt32(in.toNumber(e(sc)))) }
	case "void":
		return func(sc *scope) Value {
			e(sc)
			return Undefined
		}
	}
	panic(c.errorf(n, "unsupported operator %s", op))
}
