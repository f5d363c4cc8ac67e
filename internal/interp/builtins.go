package interp

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

func (in *Interp) newFunctionObject(name string, length int) *Function {
	f := &Function{name: name}
	f.Object = Object{Class: "Function", proto: in.functionProto}
	f.outer = f
	f.setHidden("name", name)
	f.setHidden("length", float64(length))
	return f
}

func (in *Interp) nativeFunc(name string, length int, fn NativeFunc) *Function {
	f := in.newFunctionObject(name, length)
	f.native = fn
	return f
}

func (in *Interp) method(o *Object, name string, length int, fn NativeFunc) {
	o.setHidden(name, in.nativeFunc(name, length, fn))
}

// constructor installs a global native constructor. A nil ctor makes the
// function callable only.
func (in *Interp) constructor(name string, length int, proto *Object, call NativeFunc, ctor func(in *Interp, args []Value, newTarget *Function) Value) *Function {
	f := in.nativeFunc(name, length, call)
	f.ctor = ctor
	f.construct = ctor != nil
	f.setHidden("prototype", proto)
	proto.setHidden("constructor", f)
	in.defineGlobal(name, f)
	return f
}

func (in *Interp) defineGlobal(name string, v Value) {
	in.global.declare(name, v, true)
	in.globalObj.setHidden(name, v)
}

func requiresNew(name string) NativeFunc {
	return func(in *Interp, _ Value, _ []Value) Value {
		panic(in.typeError("Constructor %s requires 'new'", name))
	}
}

// Globals returns the names of the global bindings, sorted.
func (in *Interp) Globals() []string {
	names := make([]string, 0, len(in.global.vars))
	for name := range in.global.vars {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (in *Interp) installGlobals() {
	in.objectProto = newObject(nil)
	in.functionProto = newObject(in.objectProto)
	in.functionProto.Class = "Function"
	in.globalObj = newObject(in.objectProto)
	in.global = newScope(nil, &frame{this: Undefined, hasThis: true})

	in.global.declare("undefined", Undefined, false)
	in.global.declare("NaN", math.NaN(), false)
	in.global.declare("Infinity", math.Inf(1), false)
	in.defineGlobal("globalThis", in.globalObj)

	in.installObject()
	in.installFunction()
	in.installErrors()
	in.installArray()
	in.installString()
	in.installNumber()
	in.installBoolean()
	in.installMath()
	in.installJSON()
	in.installPromise()
	in.installCollections()
	in.installDate()
	in.installConsole()
	in.installTimers()

	in.defineGlobal("parseInt", in.nativeFunc("parseInt", 2, func(in *Interp, _ Value, args []Value) Value {
		return parseInt(in.toString(arg(args, 0)), int(toInt32(in.toNumber(arg(args, 1)))))
	}))
	in.defineGlobal("parseFloat", in.nativeFunc("parseFloat", 1, func(in *Interp, _ Value, args []Value) Value {
		return parseFloat(in.toString(arg(args, 0)))
	}))
	in.defineGlobal("isNaN", in.nativeFunc("isNaN", 1, func(in *Interp, _ Value, args []Value) Value {
		return math.IsNaN(in.toNumber(arg(args, 0)))
	}))
	in.defineGlobal("isFinite", in.nativeFunc("isFinite", 1, func(in *Interp, _ Value, args []Value) Value {
		f := in.toNumber(arg(args, 0))
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	}))
	in.defineGlobal("structuredClone", in.nativeFunc("structuredClone", 1, func(in *Interp, _ Value, args []Value) Value {
		return in.clone(arg(args, 0), make(map[Value]Value))
	}))
}

func parseInt(s string, radix int) Value {
	s = strings.TrimFunc(s, isJSSpace)
	sign := 1.0
	if s != "" && (s[0] == '-' || s[0] == '+') {
		if s[0] == '-' {
			sign = -1
		}
		s = s[1:]
	}
	switch {
	case radix == 0:
		radix = 10
		if len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
			radix, s = 16, s[2:]
		}
	case radix < 2 || radix > 36:
		return math.NaN()
	case radix == 16:
		if len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
			s = s[2:]
		}
	}
	end := 0
	for end < len(s) {
		d := digitValue(s[end])
		if d < 0 || d >= radix {
			break
		}
		end++
	}
	if end == 0 {
		return math.NaN()
	}
	return sign * parseDigits(s[:end], radix)
}

func parseFloat(s string) Value {
	s = strings.TrimLeftFunc(s, isJSSpace)
	for _, inf := range []string{"Infinity", "+Infinity", "-Infinity"} {
		if strings.HasPrefix(s, inf) {
			if inf[0] == '-' {
				return math.Inf(-1)
			}
			return math.Inf(1)
		}
	}
	end, digits, dot, exp := 0, false, false, false
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	for end < len(s) {
		c := s[end]
		switch {
		case c >= '0' && c <= '9':
			digits = true
		case c == '.' && !dot && !exp:
			dot = true
		case (c == 'e' || c == 'E') && digits && !exp:
			// only take the exponent when digits follow it
			j := end + 1
			if j < len(s) && (s[j] == '+' || s[j] == '-') {
				j++
			}
			if j >= len(s) || s[j] < '0' || s[j] > '9' {
				return parseDecimal(s[:end])
			}
			exp, end = true, j
		default:
			if !digits {
				return math.NaN()
			}
			return parseDecimal(s[:end])
		}
		end++
	}
	if !digits {
		return math.NaN()
	}
	return parseDecimal(s[:end])
}

func (in *Interp) toObjectArg(v Value) {
	if isNullish(v) {
		panic(in.typeError("Cannot convert undefined or null to object"))
	}
}

func (in *Interp) installObject() {
	proto := in.objectProto
	obj := in.constructor("Object", 1, proto,
		func(in *Interp, _ Value, args []Value) Value {
			if v := arg(args, 0); isObject(v) {
				return v
			}
			return in.NewObject()
		},
		func(in *Interp, args []Value, newTarget *Function) Value {
			if v := arg(args, 0); isObject(v) {
				return v
			}
			return newObject(in.protoFrom(newTarget, in.objectProto))
		})
	in.method(&obj.Object, "keys", 1, func(in *Interp, _ Value, args []Value) Value {
		in.toObjectArg(arg(args, 0))
		keys := in.ownEnumerableKeys(arg(args, 0))
		out := make([]Value, len(keys))
		for i, k := range keys {
			out[i] = k
		}
		return in.newArray(out)
	})
	in.method(&obj.Object, "values", 1, func(in *Interp, _ Value, args []Value) Value {
		o := arg(args, 0)
		in.toObjectArg(o)
		var out []Value
		for _, k := range in.ownEnumerableKeys(o) {
			out = append(out, in.getMember(o, k))
		}
		return in.newArray(out)
	})
	in.method(&obj.Object, "entries", 1, func(in *Interp, _ Value, args []Value) Value {
		o := arg(args, 0)
		in.toObjectArg(o)
		var out []Value
		for _, k := range in.ownEnumerableKeys(o) {
			out = append(out, in.newArray([]Value{k, in.getMember(o, k)}))
		}
		return in.newArray(out)
	})
	in.method(&obj.Object, "assign", 2, func(in *Interp, _ Value, args []Value) Value {
		target := arg(args, 0)
		in.toObjectArg(target)
		for _, src := range args[1:] {
			for _, k := range in.ownEnumerableKeys(src) {
				in.setMember(target, k, in.getMember(src, k))
			}
		}
		return target
	})
	in.method(&obj.Object, "freeze", 1, func(in *Interp, _ Value, args []Value) Value {
		if o, ok := arg(args, 0).(objectLike); ok {
			o.base().frozen = true
		}
		return arg(args, 0)
	})
	in.method(&obj.Object, "isFrozen", 1, func(in *Interp, _ Value, args []Value) Value {
		if o, ok := arg(args, 0).(objectLike); ok {
			return o.base().frozen
		}
		return true
	})
	in.method(&obj.Object, "fromEntries", 1, func(in *Interp, _ Value, args []Value) Value {
		out := in.NewObject()
		in.iterate(arg(args, 0), func(e Value) bool {
			out.Set(in.toPropertyKey(in.getMember(e, 0.0)), in.getMember(e, 1.0))
			return true
		})
		return out
	})
	in.method(&obj.Object, "create", 2, func(in *Interp, _ Value, args []Value) Value {
		switch p := arg(args, 0).(type) {
		case nullType:
			return newObject(nil)
		case objectLike:
			return newObject(p.base())
		}
		panic(in.typeError("Object prototype may only be an Object or null: %s", describeShort(arg(args, 0))))
	})
	in.method(&obj.Object, "getPrototypeOf", 1, func(in *Interp, _ Value, args []Value) Value {
		v := arg(args, 0)
		in.toObjectArg(v)
		p := in.protoOf(v)
		if p == nil {
			return Null
		}
		return p.value()
	})
	in.method(&obj.Object, "setPrototypeOf", 2, func(in *Interp, _ Value, args []Value) Value {
		o, ok := arg(args, 0).(objectLike)
		if !ok {
			return arg(args, 0)
		}
		switch p := arg(args, 1).(type) {
		case nullType:
			o.base().proto = nil
		case objectLike:
			o.base().proto = p.base()
		default:
			panic(in.typeError("Object prototype may only be an Object or null: %s", describeShort(p)))
		}
		return o
	})
	in.method(&obj.Object, "defineProperty", 3, func(in *Interp, _ Value, args []Value) Value {
		o, ok := arg(args, 0).(objectLike)
		if !ok {
			panic(in.typeError("Object.defineProperty called on non-object"))
		}
		desc := arg(args, 2)
		if !isObject(desc) {
			panic(in.typeError("Property description must be an object: %s", describeShort(desc)))
		}
		if in.hasProperty(desc, "get") || in.hasProperty(desc, "set") {
			panic(in.typeError("Accessor properties are not supported"))
		}
		k := in.toPropertyKey(arg(args, 1))
		v := in.getMember(desc, "value")
		if a, ok := o.(*Array); ok && isArrayIndex(k) {
			in.setMember(a, k, v)
			return o
		}
		if truthy(in.getMember(desc, "enumerable")) {
			o.base().Set(k, v)
		} else {
			o.base().setHidden(k, v)
		}
		return o
	})
	in.method(&obj.Object, "getOwnPropertyNames", 1, func(in *Interp, _ Value, args []Value) Value {
		var keys []string
		switch o := arg(args, 0).(type) {
		case *Array:
			keys = append(indexKeys(len(o.Elems)), "length")
			keys = append(keys, o.orderedKeys(true)...)
		case objectLike:
			keys = o.base().orderedKeys(true)
		case string:
			keys = append(indexKeys(utf16Len(o)), "length")
		default:
			in.toObjectArg(o)
		}
		out := make([]Value, len(keys))
		for i, k := range keys {
			out[i] = k
		}
		return in.newArray(out)
	})
	in.method(&obj.Object, "hasOwn", 2, func(in *Interp, _ Value, args []Value) Value {
		in.toObjectArg(arg(args, 0))
		return in.hasOwn(arg(args, 0), in.toPropertyKey(arg(args, 1)))
	})
	in.method(&obj.Object, "is", 2, func(in *Interp, _ Value, args []Value) Value {
		return sameValue(arg(args, 0), arg(args, 1))
	})

	in.method(proto, "hasOwnProperty", 1, func(in *Interp, this Value, args []Value) Value {
		return in.hasOwn(this, in.toPropertyKey(arg(args, 0)))
	})
	in.method(proto, "isPrototypeOf", 1, func(in *Interp, this Value, args []Value) Value {
		t, ok := this.(objectLike)
		o, ok2 := arg(args, 0).(objectLike)
		if !ok || !ok2 {
			return false
		}
		for p := o.base().proto; p != nil; p = p.proto {
			if p == t.base() {
				return true
			}
		}
		return false
	})
	in.method(proto, "propertyIsEnumerable", 1, func(in *Interp, this Value, args []Value) Value {
		k := in.toPropertyKey(arg(args, 0))
		if o, ok := this.(objectLike); ok && o.base().hidden[k] {
			return false
		}
		return in.hasOwn(this, k)
	})
	in.method(proto, "toString", 0, func(in *Interp, this Value, _ []Value) Value {
		switch x := this.(type) {
		case undefinedType:
			return "[object Undefined]"
		case nullType:
			return "[object Null]"
		case *Array:
			return "[object Array]"
		case *Function:
			return "[object Function]"
		case *Object:
			if x.Class == "Error" || x.Class == "Date" {
				return "[object " + x.Class + "]"
			}
		case string:
			return "[object String]"
		case float64:
			return "[object Number]"
		case bool:
			return "[object Boolean]"
		}
		return "[object Object]"
	})
	in.method(proto, "toLocaleString", 0, func(in *Interp, this Value, _ []Value) Value {
		return in.toString(this)
	})
	in.method(proto, "valueOf", 0, func(in *Interp, this Value, _ []Value) Value {
		in.toObjectArg(this)
		return this
	})
}

// protoOf returns the prototype property lookups on v start from.
func (in *Interp) protoOf(v Value) *Object {
	switch x := v.(type) {
	case objectLike:
		return x.base().proto
	case string:
		return in.stringProto
	case float64:
		return in.numberProto
	case bool:
		return in.booleanProto
	}
	return nil
}

func (in *Interp) thisFunction(this Value, method string) *Function {
	f, ok := this.(*Function)
	if !ok {
		panic(in.typeError("Function.prototype.%s called on %s", method, describeShort(this)))
	}
	return f
}

func (in *Interp) installFunction() {
	proto := in.functionProto
	fn := in.nativeFunc("Function", 1, func(in *Interp, _ Value, _ []Value) Value {
		panic(in.throwError("EvalError", "Code generation from strings disallowed for this context"))
	})
	fn.setHidden("prototype", proto)
	proto.setHidden("constructor", fn)

	in.method(proto, "call", 1, func(in *Interp, this Value, args []Value) Value {
		f := in.thisFunction(this, "call")
		if len(args) == 0 {
			return in.invoke(f, Undefined, nil)
		}
		return in.invoke(f, args[0], args[1:])
	})
	in.method(proto, "apply", 2, func(in *Interp, this Value, args []Value) Value {
		f := in.thisFunction(this, "apply")
		var list []Value
		if a := arg(args, 1); !isNullish(a) {
			if !isObject(a) {
				panic(in.typeError("CreateListFromArrayLike called on non-object"))
			}
			list = in.arrayLike(a)
		}
		return in.invoke(f, arg(args, 0), list)
	})
	in.method(proto, "bind", 1, func(in *Interp, this Value, args []Value) Value {
		f := in.thisFunction(this, "bind")
		boundThis := arg(args, 0)
		var bound []Value
		if len(args) > 1 {
			bound = slices.Clone(args[1:])
		}
		length := int(math.Max(0, in.toNumber(f.Get("length"))-float64(len(bound))))
		b := in.nativeFunc("bound "+f.name, length, func(in *Interp, _ Value, a []Value) Value {
			return in.invoke(f, boundThis, append(slices.Clone(bound), a...))
		})
		if f.construct {
			b.construct = true
			b.ctor = func(in *Interp, a []Value, _ *Function) Value {
				return in.construct(f, append(slices.Clone(bound), a...), nil)
			}
		}
		return b
	})
	in.method(proto, "toString", 0, func(in *Interp, this Value, _ []Value) Value {
		f := in.thisFunction(this, "toString")
		if f.source != "" {
			return f.source
		}
		return "function " + f.name + "() { [native code] }"
	})
}

// arrayLike reads the elements of an array or an object with a length.
func (in *Interp) arrayLike(v Value) []Value {
	if a, ok := v.(*Array); ok {
		return in.collect(a)
	}
	n := int(toInteger(in.toNumber(in.getMember(v, "length"))))
	out := make([]Value, 0, max(n, 0))
	for i := 0; i < n; i++ {
		out = append(out, in.getMember(v, float64(i)))
	}
	return out
}

func (in *Interp) installBoolean() {
	in.booleanProto = newObject(in.objectProto)
	in.constructor("Boolean", 1, in.booleanProto,
		func(in *Interp, _ Value, args []Value) Value { return truthy(arg(args, 0)) }, nil)
	thisBool := func(in *Interp, this Value) bool {
		b, ok := this.(bool)
		if !ok {
			panic(in.typeError("Boolean.prototype.valueOf requires that 'this' be a Boolean"))
		}
		return b
	}
	in.method(in.booleanProto, "toString", 0, func(in *Interp, this Value, _ []Value) Value {
		return in.toString(thisBool(in, this))
	})
	in.method(in.booleanProto, "valueOf", 0, func(in *Interp, this Value, _ []Value) Value {
		return thisBool(in, this)
	})
}

var errorKinds = []string{"TypeError", "RangeError", "ReferenceError", "SyntaxError", "EvalError"}

func (in *Interp) installErrors() {
	in.errorProto = newObject(in.objectProto)
	in.errorProtos = make(map[string]*Object)
	in.errorProtos["Error"] = in.errorProto
	in.installError("Error", in.errorProto)
	in.method(in.errorProto, "toString", 0, func(in *Interp, this Value, _ []Value) Value {
		o, ok := this.(objectLike)
		if !ok {
			panic(in.typeError("Error.prototype.toString called on non-object"))
		}
		return errorString(o.base())
	})
	for _, kind := range errorKinds {
		proto := newObject(in.errorProto)
		in.errorProtos[kind] = proto
		in.installError(kind, proto)
	}
}

func (in *Interp) installError(kind string, proto *Object) {
	proto.setHidden("name", kind)
	proto.setHidden("message", "")
	build := func(in *Interp, args []Value, newTarget *Function) Value {
		o := newObject(in.protoFrom(newTarget, proto))
		o.Class = "Error"
		if msg := arg(args, 0); msg != Undefined {
			o.setHidden("message", in.toString(msg))
		}
		if opts := arg(args, 1); isObject(opts) && in.hasProperty(opts, "cause") {
			o.setHidden("cause", in.getMember(opts, "cause"))
		}
		return o
	}
	in.constructor(kind, 1, proto,
		func(in *Interp, _ Value, args []Value) Value { return build(in, args, nil) },
		build)
}

func (in *Interp) installConsole() {
	console := in.NewObject()
	write := func(prefix string) NativeFunc {
		return func(in *Interp, _ Value, args []Value) Value {
			parts := make([]string, len(args))
			for i, a := range args {
				if s, ok := a.(string); ok {
					parts[i] = s
				} else {
					parts[i] = Inspect(a)
				}
			}
			fmt.Fprintln(in.console, prefix+strings.Join(parts, " "))
			return Undefined
		}
	}
	for _, name := range []string{"log", "info", "debug"} {
		in.method(console, name, 0, write(""))
	}
	in.method(console, "warn", 0, write("Warning: "))
	in.method(console, "error", 0, write("Error: "))
	in.defineGlobal("console", console)
}

func (in *Interp) installTimers() {
	schedule := func(repeat bool) NativeFunc {
		return func(in *Interp, _ Value, args []Value) Value {
			fn, ok := arg(args, 0).(*Function)
			if !ok {
				panic(in.typeError("The \"callback\" argument must be of type function. Received %s", describeShort(arg(args, 0))))
			}
			delay := in.toNumber(arg(args, 1))
			if math.IsNaN(delay) || delay < 0 {
				delay = 0
			}
			var extra []Value
			if len(args) > 2 {
				extra = slices.Clone(args[2:])
			}
			in.nextTimer++
			id := in.nextTimer
			d := time.Duration(delay * float64(time.Millisecond))
			var arm func()
			arm = func() {
				in.timers[id] = in.sched.SetTimer(d, func() {
					if _, live := in.timers[id]; !live {
						return
					}
					if repeat {
						arm()
					} else {
						delete(in.timers, id)
					}
					in.runDetached("timer", fn, extra)
				})
			}
			arm()
			return float64(id)
		}
	}
	clearTimer := func(in *Interp, _ Value, args []Value) Value {
		id := int(in.toNumber(arg(args, 0)))
		if sid, ok := in.timers[id]; ok {
			in.sched.ClearTimer(sid)
			delete(in.timers, id)
		}
		return Undefined
	}
	in.defineGlobal("setTimeout", in.nativeFunc("setTimeout", 2, schedule(false)))
	in.defineGlobal("setInterval", in.nativeFunc("setInterval", 2, schedule(true)))
	in.defineGlobal("clearTimeout", in.nativeFunc("clearTimeout", 1, clearTimer))
	in.defineGlobal("clearInterval", in.nativeFunc("clearInterval", 1, clearTimer))
	in.defineGlobal("queueMicrotask", in.nativeFunc("queueMicrotask", 1, func(in *Interp, _ Value, args []Value) Value {
		fn, ok := arg(args, 0).(*Function)
		if !ok {
			panic(in.typeError("The \"callback\" argument must be of type function. Received %s", describeShort(arg(args, 0))))
		}
		in.sched.EnqueueMicrotask(func() { in.runDetached("microtask", fn, nil) })
		return Undefined
	}))
}

// clone implements structuredClone for data values.
func (in *Interp) clone(v Value, seen map[Value]Value) Value {
	if c, ok := seen[v]; ok {
		return c
	}
	switch x := v.(type) {
	case *Array:
		out := in.newArray(make([]Value, len(x.Elems)))
		seen[v] = out
		for i, e := range x.Elems {
			out.Elems[i] = in.clone(norm(e), seen)
		}
		return out
	case *Function, *Promise:
		panic(in.throwError("Error", "%s could not be cloned.", describeShort(v)))
	case *Object:
		switch x.Class {
		case "Date":
			d := newObject(in.dateProto)
			d.Class, d.internal = "Date", x.internal
			return d
		case "Error":
			e := in.newError("Error", in.toString(x.Get("message")))
			if kind, ok := x.Get("name").(string); ok {
				if p, ok := in.errorProtos[kind]; ok {
					e.proto = p
				}
			}
			return e
		}
		if c, ok := x.internal.(*collection); ok {
			out := in.newCollection(c.set)
			seen[v] = out
			oc := out.internal.(*collection)
			c.each(func(e *entry) bool {
				oc.put(in.clone(e.key, seen), in.clone(e.value, seen))
				return true
			})
			return out
		}
		out := in.NewObject()
		seen[v] = out
		for _, k := range x.Keys() {
			out.Set(k, in.clone(x.Get(k), seen))
		}
		return out
	}
	return v
}
