package interp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func newTestInterp(t *testing.T, opts ...Option) (*Interp, *Queue) {
	t.Helper()
	q := NewQueue()
	return New(append([]Option{WithScheduler(q)}, opts...)...), q
}

func evalInspect(t *testing.T, src string) string {
	t.Helper()
	in, q := newTestInterp(t)
	v, err := in.Eval(context.Background(), "test", src)
	require.NoError(t, err, src)
	q.Drain()
	return Inspect(v)
}

func TestEval_Expressions(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"arithmetic", "1 + 2 * 3", "7"},
		{"float", "0.1 + 0.2", "0.30000000000000004"},
		{"negative zero", "-0", "-0"},
		{"string concat", `"a" + 1`, "'a1'"},
		{"template", "`a${1 + 1}b`", "'a2b'"},
		{"typeof undeclared", "typeof undeclared", "'undefined'"},
		{"array map", "[1, 2, 3].map(x => x * 2)", "[2, 4, 6]"},
		{"object literal", "({a: 1, b: [true, null]})", "{a: 1, b: [true, null]}"},
		{"quoted key", `({"a-b": 1})`, "{'a-b': 1}"},
		{"object rest", "const {a, ...rest} = {a: 1, b: 2, c: 3}; rest", "{b: 2, c: 3}"},
		{"array pattern", "let [x, , y = 5] = [1, 2]; x + y", "6"},
		{"spread", "const xs = [1, 2]; [...xs, 3]", "[1, 2, 3]"},
		{"object spread", "const o = {a: 1}; ({...o, b: 2})", "{a: 1, b: 2}"},
		{"class method", "class A { constructor(x) { this.x = x } twice() { return this.x * 2 } }; new A(4).twice()", "8"},
		{"class fields and super", "class A { f = 1 }; class B extends A { constructor() { super(); this.g = this.f + 1 } }; new B()", "B {f: 1, g: 2}"},
		{"static member", "class C { static n = 3 }; C.n", "3"},
		{"optional member", "let a = null; a?.b", "undefined"},
		{"optional call", "let o = {}; o.g?.()", "undefined"},
		{"optional chain continues", "let o = null; o?.a.b.c", "undefined"},
		{"nullish", "null ?? 'x'", "'x'"},
		{"logical assignment", "let v = 0; v ||= 5; v", "5"},
		{"sort", "[3, 1, 2].sort()", "[1, 2, 3]"},
		{"sort comparator", "[3, 1, 2].sort((a, b) => b - a)", "[3, 2, 1]"},
		{"map", "new Map([[1, 'a']])", "Map(1) {1 => 'a'}"},
		{"set size", "new Set([1, 1, 2]).size", "2"},
		{"stringify", "JSON.stringify({a: [1, 'x'], b: undefined})", `'{"a":[1,"x"]}'`},
		{"parse keeps order", `JSON.parse('{"b":1,"a":[true]}')`, "{b: 1, a: [true]}"},
		{"padStart", `"abc".padStart(5, "-")`, "'--abc'"},
		{"toFixed", "(1234.5678).toFixed(2)", "'1234.57'"},
		{"parseInt hex", `parseInt("0x1f")`, "31"},
		{"for in", "let s = ''; for (const k in {a: 1, b: 2}) s += k; s", "'ab'"},
		{"for of", "let t = 0; for (const x of [1, 2, 3]) t += x; t", "6"},
		{"labeled continue", "let n = 0; outer: for (let i = 0; i < 3; i++) { for (;;) { n++; continue outer } } n", "3"},
		{"closures per iteration", "const fs = []; for (let i = 0; i < 3; i++) fs.push(() => i); fs.map(f => f())", "[0, 1, 2]"},
		{"catch type", "let r; try { null.x } catch (e) { r = e instanceof TypeError } r", "true"},
		{"finally", "let r = []; try { r.push(1) } finally { r.push(2) } r", "[1, 2]"},
		{"flat infinity", "[1, [2, [3]]].flat(Infinity)", "[1, 2, 3]"},
		{"entries", "Object.entries({a: 1})", "[['a', 1]]"},
		{"named arrow", "const f = x => x; f", "ƒ f()"},
		{"class value", "class K {}; K", "class K"},
		{"math max", "Math.max(1, 5, 3)", "5"},
		{"date iso", "new Date(0).toISOString()", "'1970-01-01T00:00:00.000Z'"},
		{"arguments", "function f() { return arguments.length } f(1, 2, 3)", "3"},
		{"default params", "function f(a, b = a + 1) { return b } f(1)", "2"},
		{"rest params", "function f(a, ...r) { return r } f(1, 2, 3)", "[2, 3]"},
		{"resolved promise", "Promise.resolve(1)", "Promise {1}"},
		{"circular", "const o = {}; o.self = o; o", "{self: [Circular]}"},
		{"error value", "new RangeError('bad')", "RangeError: bad"},
		{"localeCompare", `"a".localeCompare("b")`, "-1"},
		{"normalize", `"é".normalize() === "é"`, "true"},
		{"normalize composes", `"e\u0301".normalize("NFC").length`, "1"},
		{"normalize decomposes", `"\u00e9".normalize("NFD").length`, "2"},
		{"normalize compat", `"\ufb01".normalize("NFKC")`, "'fi'"},
		{"string index", `"héllo"[1]`, "'é'"},
		{"in operator", "'a' in {a: 1}", "true"},
		{"delete", "const o = {a: 1, b: 2}; delete o.a; o", "{b: 2}"},
		{"switch", "let r; switch (2) { case 1: r = 'one'; break; case 2: r = 'two'; break; default: r = 'other' } r", "'two'"},
		{"exponent", "2 ** 10", "1024"},
		{"bitwise", "(5 & 3) | (1 << 4)", "17"},
		{"structuredClone", "const a = {x: [1]}; const b = structuredClone(a); b.x.push(2); [a.x.length, b.x.length]", "[1, 2]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evalInspect(t, tt.src))
		})
	}
}

func TestEval_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"undefined reference", "undefinedVar", "ReferenceError: undefinedVar is not defined"},
		{"const assignment", "const a = 1; a = 2", "TypeError: Assignment to constant variable."},
		{"read of null", "null.x", "TypeError: Cannot read properties of null (reading 'x')"},
		{"throw primitive", "throw 1", "Uncaught 1"},
		{"not a function", "let f = 1; f()", "TypeError: f is not a function"},
		{"temporal dead zone", "{ x; let x = 1 }", "ReferenceError: Cannot access 'x' before initialization"},
		{"recursion", "function r() { return r() } r()", "RangeError: Maximum call stack size exceeded"},
		{"class without new", "class A {}; A()", "TypeError: Class constructor A cannot be invoked without 'new'"},
		{"custom error", "throw new Error('boom')", "Error: boom"},
		{"frozen", "const o = Object.freeze({a: 1}); o.a = 2", "TypeError: Cannot assign to read only property 'a' of object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, _ := newTestInterp(t)
			_, err := in.Eval(context.Background(), "test", tt.src)
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())

			var exc *Exception
			require.True(t, errors.As(err, &exc))
			assert.Equal(t, "test", exc.Source)
		})
	}
}

func TestEval_ExceptionOffset(t *testing.T) {
	in, _ := newTestInterp(t)
	_, err := in.Eval(context.Background(), "cell", "let a = 1;\nnull.x")
	var exc *Exception
	require.True(t, errors.As(err, &exc))
	assert.Equal(t, 11, exc.Offset)
}

func TestCompile_Unsupported(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"generator", "function* g() {}"},
		{"regex", "/a+/.test('aa')"},
		{"top-level await", "await 1"},
		{"syntax error", "let = ;"},
		{"tagged template", "String.raw`x`"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, _ := newTestInterp(t)
			_, err := in.Eval(context.Background(), "test", tt.src)
			require.Error(t, err)
			assert.True(t, IsCompileError(err), "got %v", err)
		})
	}
}

func TestCompile_FunctionExpression(t *testing.T) {
	in, _ := newTestInterp(t)
	fn, err := in.Compile(context.Background(), "cell", "(a, b) => {\nreturn a + b\n}\n")
	require.NoError(t, err)

	v, err := in.Call(fn, Undefined, 2.0, 3.0)
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)

	_, err = in.Compile(context.Background(), "cell", "1 + 1")
	assert.True(t, IsCompileError(err))
}

func TestAsync_AwaitChain(t *testing.T) {
	in, q := newTestInterp(t)
	v, err := in.Eval(context.Background(), "test", `(async () => {
		const a = await Promise.resolve(1)
		const b = await new Promise(r => setTimeout(() => r(2), 10))
		return a + b
	})()`)
	require.NoError(t, err)
	p, ok := v.(*Promise)
	require.True(t, ok)
	assert.Equal(t, Pending, p.State())

	q.Drain()
	assert.Equal(t, Fulfilled, p.State())
	assert.Equal(t, 3.0, p.Result())
}

func TestAsync_CatchAcrossAwait(t *testing.T) {
	in, q := newTestInterp(t)
	v, err := in.Eval(context.Background(), "test", `(async () => {
		try {
			await Promise.reject(new Error("boom"))
		} catch (e) {
			return e.message
		}
	})()`)
	require.NoError(t, err)
	q.Drain()
	p := v.(*Promise)
	assert.Equal(t, Fulfilled, p.State())
	assert.Equal(t, "boom", p.Result())
}

func TestAsync_Rejection(t *testing.T) {
	in, q := newTestInterp(t)
	v, err := in.Eval(context.Background(), "test", "(async () => { await 0; undefinedThing })()")
	require.NoError(t, err)
	q.Drain()
	p := v.(*Promise)
	require.Equal(t, Rejected, p.State())
	assert.EqualError(t, AsError(p.Result()), "ReferenceError: undefinedThing is not defined")
}

func TestAsync_Ordering(t *testing.T) {
	in, q := newTestInterp(t)
	v, err := in.Eval(context.Background(), "test", `
		const log = []
		setTimeout(() => log.push('b'), 20)
		setTimeout(() => log.push('a'), 10)
		Promise.resolve().then(() => log.push('m'))
		queueMicrotask(() => log.push('q'))
		log`)
	require.NoError(t, err)
	q.Drain()
	assert.Equal(t, "['m', 'q', 'a', 'b']", Inspect(v))
}

func TestAsync_IntervalCleared(t *testing.T) {
	in, q := newTestInterp(t)
	v, err := in.Eval(context.Background(), "test", `
		const ticks = []
		const id = setInterval(() => { ticks.push(ticks.length); if (ticks.length === 3) clearInterval(id) }, 5)
		ticks`)
	require.NoError(t, err)
	q.Drain()
	assert.Equal(t, "[0, 1, 2]", Inspect(v))
}

func TestShutdown_AbandonsSuspended(t *testing.T) {
	in, q := newTestInterp(t)
	v, err := in.Eval(context.Background(), "test", "(async () => { await new Promise(() => {}); return 1 })()")
	require.NoError(t, err)
	q.Drain()
	assert.Len(t, in.live, 1)

	in.Shutdown()
	q.Drain()
	assert.Empty(t, in.live)
	assert.Equal(t, Pending, v.(*Promise).State())
}

func TestInterrupt(t *testing.T) {
	in, _ := newTestInterp(t)
	in.Interrupt()
	_, err := in.Eval(context.Background(), "test", "while (true) {}")
	require.Error(t, err)
	assert.Equal(t, "Error: execution interrupted", err.Error())
}

func TestPromise_GoAPI(t *testing.T) {
	in, q := newTestInterp(t)
	p, resolve, _ := in.NewPromise()
	var got Value
	p.Then(func(v Value) (Value, error) {
		got = v
		return nil, errors.New("handler failed")
	}, nil).Then(nil, func(v Value) (Value, error) {
		return nil, AsError(v)
	})
	resolve(42.0)
	q.Drain()
	assert.Equal(t, 42.0, got)

	all := in.All([]Value{1.0, in.Resolve(2.0)})
	q.Drain()
	assert.Equal(t, "[1, 2]", Inspect(all.Result()))
}

func TestErrorValue_RoundTrip(t *testing.T) {
	in, _ := newTestInterp(t)
	sentinel := errors.New("upstream failed")
	v := in.ErrorValue(sentinel)
	assert.Equal(t, "Error: upstream failed", Inspect(v))
	assert.ErrorIs(t, AsError(v), sentinel)
}

func TestDynamicImport(t *testing.T) {
	in, q := newTestInterp(t, WithModules(map[string]any{
		"config": map[string]any{"port": 8080, "name": "demo"},
	}))
	v, err := in.Eval(context.Background(), "test", `(async () => {
		const {port, name} = await import("config")
		return name + ":" + port
	})()`)
	require.NoError(t, err)
	q.Drain()
	assert.Equal(t, "demo:8080", v.(*Promise).Result())

	v, err = in.Eval(context.Background(), "test", `import("missing")`)
	require.NoError(t, err)
	q.Drain()
	assert.Equal(t, "Error: Cannot find module 'missing'", Inspect(v.(*Promise).Result()))
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	in, _ := newTestInterp(t, WithConsole(&buf))
	_, err := in.Eval(context.Background(), "test", `console.log("hi", {a: 1}, [2])`)
	require.NoError(t, err)
	assert.Equal(t, "hi {a: 1} [2]\n", buf.String())
}

func TestExport(t *testing.T) {
	in, _ := newTestInterp(t)
	v, err := in.Eval(context.Background(), "test", "({b: 1, a: [NaN, 'x', null], m: new Map([['k', 2]])})")
	require.NoError(t, err)

	out := Export(v)
	rec, ok := out.(*Record)
	require.True(t, ok)
	assert.Equal(t, []string{"b", "a", "m"}, rec.Keys)

	data, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"b":1,"a":["NaN","x",null],"m":[["k",2]]}`, string(data))
	assert.Equal(t, `{"b":1,"a":["NaN","x",null],"m":[["k",2]]}`, string(data))
}

func TestRecord_MarshalYAMLKeepsOrder(t *testing.T) {
	rec := &Record{Keys: []string{"z", "a"}, Values: []any{1.0, &Record{Keys: []string{"k"}, Values: []any{"s"}}}}

	data, err := yaml.Marshal(rec)
	require.NoError(t, err)
	assert.Equal(t, "z: 1\na:\n    k: s\n", string(data))
}

func TestFromGo(t *testing.T) {
	in, _ := newTestInterp(t)
	type point struct {
		X int `json:"x"`
		Y int `json:"y"`
	}
	v := in.FromGo(map[string]any{"p": point{1, 2}, "n": int64(3), "list": []string{"a"}})
	assert.Equal(t, "{list: ['a'], n: 3, p: {x: 1, y: 2}}", Inspect(v))
}

func TestGlobals(t *testing.T) {
	in, _ := newTestInterp(t)
	globals := in.Globals()
	for _, name := range []string{"Math", "JSON", "console", "Promise", "setTimeout", "structuredClone", "undefined"} {
		assert.Contains(t, globals, name)
	}
}
