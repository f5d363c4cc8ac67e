package interp

import (
	"math"
	"slices"
	"strings"
)

func (in *Interp) thisArray(this Value, method string) *Array {
	a, ok := this.(*Array)
	if !ok {
		panic(in.typeError("Array.prototype.%s called on %s", method, describeShort(this)))
	}
	return a
}

func (in *Interp) mutableArray(this Value, method string) *Array {
	a := in.thisArray(this, method)
	if a.frozen {
		panic(in.typeError("Cannot modify frozen array"))
	}
	return a
}

func (in *Interp) callback(v Value, method string) *Function {
	f, ok := v.(*Function)
	if !ok {
		panic(in.typeError("%s is not a function", describeShort(v)))
	}
	return f
}

// join renders the elements of a for join and toString. Arrays already
// being joined render empty.
func (in *Interp) join(a *Array, sep string) string {
	if in.joining == nil {
		in.joining = make(map[*Array]bool)
	}
	if in.joining[a] {
		return ""
	}
	in.joining[a] = true
	defer delete(in.joining, a)
	parts := make([]string, len(a.Elems))
	for i := 0; i < len(a.Elems); i++ {
		if e := norm(a.Elems[i]); !isNullish(e) {
			parts[i] = in.toString(e)
		}
	}
	return strings.Join(parts, sep)
}

func (in *Interp) sortValues(elems []Value, cmp Value) {
	var compare func(a, b Value) int
	if fn, ok := cmp.(*Function); ok {
		compare = func(a, b Value) int {
			r := in.toNumber(in.invoke(fn, Undefined, []Value{a, b}))
			switch {
			case r < 0:
				return -1
			case r > 0:
				return 1
			}
			return 0
		}
	} else if cmp != Undefined {
		panic(in.typeError("The comparison function must be either a function or undefined"))
	} else {
		compare = func(a, b Value) int { return compareUTF16(in.toString(a), in.toString(b)) }
	}
	slices.SortStableFunc(elems, func(a, b Value) int {
		// undefined sorts last without reaching the comparator
		switch ua, ub := a == Undefined, b == Undefined; {
		case ua && ub:
			return 0
		case ua:
			return 1
		case ub:
			return -1
		}
		return compare(a, b)
	})
}

func (in *Interp) flatten(out []Value, elems []Value, depth float64) []Value {
	for _, e := range elems {
		if a, ok := e.(*Array); ok && depth >= 1 {
			out = in.flatten(out, in.collect(a), depth-1)
			continue
		}
		out = append(out, norm(e))
	}
	return out
}

func (in *Interp) installArray() {
	in.arrayProto = newObject(in.objectProto)
	proto := in.arrayProto
	build := func(in *Interp, args []Value, _ *Function) Value {
		if len(args) == 1 {
			if n, ok := args[0].(float64); ok {
				if n < 0 || n != math.Trunc(n) || n >= math.MaxUint32 {
					panic(in.rangeError("Invalid array length"))
				}
				a := in.newArray(nil)
				in.setLength(a, int(n))
				return a
			}
		}
		return in.newArray(slices.Clone(args))
	}
	arr := in.constructor("Array", 1, proto,
		func(in *Interp, _ Value, args []Value) Value { return build(in, args, nil) }, build)

	in.method(&arr.Object, "isArray", 1, func(in *Interp, _ Value, args []Value) Value {
		_, ok := arg(args, 0).(*Array)
		return ok
	})
	in.method(&arr.Object, "of", 0, func(in *Interp, _ Value, args []Value) Value {
		return in.newArray(slices.Clone(args))
	})
	in.method(&arr.Object, "from", 1, func(in *Interp, _ Value, args []Value) Value {
		src := arg(args, 0)
		var elems []Value
		switch src.(type) {
		case undefinedType, nullType:
			panic(in.typeError("%s is not iterable", describeShort(src)))
		case *Array, string:
			elems = in.collect(src)
		case *Object:
			if _, ok := src.(*Object).internal.(*collection); ok {
				elems = in.collect(src)
			} else {
				elems = in.arrayLike(src)
			}
		default:
			elems = in.arrayLike(src)
		}
		if fn, ok := arg(args, 1).(*Function); ok {
			for i, e := range elems {
				elems[i] = in.invoke(fn, arg(args, 2), []Value{e, float64(i)})
			}
		}
		return in.newArray(elems)
	})

	in.method(proto, "push", 1, func(in *Interp, this Value, args []Value) Value {
		a := in.mutableArray(this, "push")
		a.Elems = append(a.Elems, args...)
		return float64(len(a.Elems))
	})
	in.method(proto, "pop", 0, func(in *Interp, this Value, _ []Value) Value {
		a := in.mutableArray(this, "pop")
		if len(a.Elems) == 0 {
			return Undefined
		}
		v := norm(a.Elems[len(a.Elems)-1])
		in.setLength(a, len(a.Elems)-1)
		return v
	})
	in.method(proto, "shift", 0, func(in *Interp, this Value, _ []Value) Value {
		a := in.mutableArray(this, "shift")
		if len(a.Elems) == 0 {
			return Undefined
		}
		v := norm(a.Elems[0])
		a.Elems = slices.Delete(a.Elems, 0, 1)
		return v
	})
	in.method(proto, "unshift", 1, func(in *Interp, this Value, args []Value) Value {
		a := in.mutableArray(this, "unshift")
		a.Elems = slices.Insert(a.Elems, 0, args...)
		return float64(len(a.Elems))
	})
	in.method(proto, "slice", 2, func(in *Interp, this Value, args []Value) Value {
		a := in.thisArray(this, "slice")
		n := len(a.Elems)
		start, end := in.relativeIndex(arg(args, 0), n, 0), in.relativeIndex(arg(args, 1), n, n)
		if start >= end {
			return in.newArray(nil)
		}
		return in.newArray(slices.Clone(a.Elems[start:end]))
	})
	in.method(proto, "splice", 2, func(in *Interp, this Value, args []Value) Value {
		a := in.mutableArray(this, "splice")
		n := len(a.Elems)
		start := in.relativeIndex(arg(args, 0), n, 0)
		count := n - start
		switch {
		case len(args) == 0:
			count = 0
		case len(args) > 1:
			count = int(math.Min(math.Max(toInteger(in.toNumber(args[1])), 0), float64(n-start)))
		}
		removed := slices.Clone(a.Elems[start : start+count])
		var items []Value
		if len(args) > 2 {
			items = args[2:]
		}
		a.Elems = slices.Replace(a.Elems, start, start+count, items...)
		return in.newArray(removed)
	})
	in.method(proto, "concat", 1, func(in *Interp, this Value, args []Value) Value {
		a := in.thisArray(this, "concat")
		out := slices.Clone(a.Elems)
		for _, v := range args {
			if b, ok := v.(*Array); ok {
				out = append(out, b.Elems...)
			} else {
				out = append(out, v)
			}
		}
		return in.newArray(out)
	})
	in.method(proto, "join", 1, func(in *Interp, this Value, args []Value) Value {
		sep := ","
		if s := arg(args, 0); s != Undefined {
			sep = in.toString(s)
		}
		return in.join(in.thisArray(this, "join"), sep)
	})
	in.method(proto, "toString", 0, func(in *Interp, this Value, _ []Value) Value {
		if a, ok := this.(*Array); ok {
			return in.join(a, ",")
		}
		return "[object Object]"
	})
	in.method(proto, "reverse", 0, func(in *Interp, this Value, _ []Value) Value {
		a := in.mutableArray(this, "reverse")
		slices.Reverse(a.Elems)
		return a
	})
	in.method(proto, "toReversed", 0, func(in *Interp, this Value, _ []Value) Value {
		out := in.collect(in.thisArray(this, "toReversed"))
		slices.Reverse(out)
		return in.newArray(out)
	})
	in.method(proto, "indexOf", 1, func(in *Interp, this Value, args []Value) Value {
		a := in.thisArray(this, "indexOf")
		for i := in.relativeIndex(arg(args, 1), len(a.Elems), 0); i < len(a.Elems); i++ {
			if strictEquals(norm(a.Elems[i]), arg(args, 0)) {
				return float64(i)
			}
		}
		return -1.0
	})
	in.method(proto, "lastIndexOf", 1, func(in *Interp, this Value, args []Value) Value {
		a := in.thisArray(this, "lastIndexOf")
		from := len(a.Elems) - 1
		if len(args) > 1 {
			from = min(in.relativeIndex(args[1], len(a.Elems), 0), len(a.Elems)-1)
		}
		for i := from; i >= 0; i-- {
			if strictEquals(norm(a.Elems[i]), arg(args, 0)) {
				return float64(i)
			}
		}
		return -1.0
	})
	in.method(proto, "includes", 1, func(in *Interp, this Value, args []Value) Value {
		a := in.thisArray(this, "includes")
		for i := in.relativeIndex(arg(args, 1), len(a.Elems), 0); i < len(a.Elems); i++ {
			if sameValueZero(norm(a.Elems[i]), arg(args, 0)) {
				return true
			}
		}
		return false
	})

	// iteration methods share the callback protocol (element, index, array)
	each := func(method string, fn func(in *Interp, a *Array, f *Function, thisArg Value) Value) {
		in.method(proto, method, 1, func(in *Interp, this Value, args []Value) Value {
			a := in.thisArray(this, method)
			return fn(in, a, in.callback(arg(args, 0), method), arg(args, 1))
		})
	}
	visit := func(in *Interp, a *Array, f *Function, thisArg Value, i int) Value {
		return in.invoke(f, thisArg, []Value{norm(a.Elems[i]), float64(i), a})
	}
	each("forEach", func(in *Interp, a *Array, f *Function, t Value) Value {
		for i := 0; i < len(a.Elems); i++ {
			visit(in, a, f, t, i)
		}
		return Undefined
	})
	each("map", func(in *Interp, a *Array, f *Function, t Value) Value {
		out := make([]Value, len(a.Elems))
		for i := 0; i < len(a.Elems) && i < len(out); i++ {
			out[i] = visit(in, a, f, t, i)
		}
		return in.newArray(out)
	})
	each("filter", func(in *Interp, a *Array, f *Function, t Value) Value {
		var out []Value
		for i := 0; i < len(a.Elems); i++ {
			v := norm(a.Elems[i])
			if truthy(visit(in, a, f, t, i)) {
				out = append(out, v)
			}
		}
		return in.newArray(out)
	})
	each("find", func(in *Interp, a *Array, f *Function, t Value) Value {
		for i := 0; i < len(a.Elems); i++ {
			if v := norm(a.Elems[i]); truthy(visit(in, a, f, t, i)) {
				return v
			}
		}
		return Undefined
	})
	each("findIndex", func(in *Interp, a *Array, f *Function, t Value) Value {
		for i := 0; i < len(a.Elems); i++ {
			if truthy(visit(in, a, f, t, i)) {
				return float64(i)
			}
		}
		return -1.0
	})
	each("findLast", func(in *Interp, a *Array, f *Function, t Value) Value {
		for i := len(a.Elems) - 1; i >= 0; i-- {
			if v := norm(a.Elems[i]); truthy(visit(in, a, f, t, i)) {
				return v
			}
		}
		return Undefined
	})
	each("findLastIndex", func(in *Interp, a *Array, f *Function, t Value) Value {
		for i := len(a.Elems) - 1; i >= 0; i-- {
			if truthy(visit(in, a, f, t, i)) {
				return float64(i)
			}
		}
		return -1.0
	})
	each("some", func(in *Interp, a *Array, f *Function, t Value) Value {
		for i := 0; i < len(a.Elems); i++ {
			if truthy(visit(in, a, f, t, i)) {
				return true
			}
		}
		return false
	})
	each("every", func(in *Interp, a *Array, f *Function, t Value) Value {
		for i := 0; i < len(a.Elems); i++ {
			if !truthy(visit(in, a, f, t, i)) {
				return false
			}
		}
		return true
	})
	each("flatMap", func(in *Interp, a *Array, f *Function, t Value) Value {
		var out []Value
		for i := 0; i < len(a.Elems); i++ {
			out = in.flatten(out, []Value{visit(in, a, f, t, i)}, 1)
		}
		return in.newArray(out)
	})

	reduce := func(method string, right bool) {
		in.method(proto, method, 1, func(in *Interp, this Value, args []Value) Value {
			a := in.thisArray(this, method)
			f := in.callback(arg(args, 0), method)
			idx := make([]int, len(a.Elems))
			for i := range idx {
				idx[i] = i
			}
			if right {
				slices.Reverse(idx)
			}
			var acc Value
			if len(args) > 1 {
				acc = args[1]
			} else {
				if len(idx) == 0 {
					panic(in.typeError("Reduce of empty array with no initial value"))
				}
				acc, idx = norm(a.Elems[idx[0]]), idx[1:]
			}
			for _, i := range idx {
				if i >= len(a.Elems) {
					continue
				}
				acc = in.invoke(f, Undefined, []Value{acc, norm(a.Elems[i]), float64(i), a})
			}
			return acc
		})
	}
	reduce("reduce", false)
	reduce("reduceRight", true)

	in.method(proto, "sort", 1, func(in *Interp, this Value, args []Value) Value {
		a := in.mutableArray(this, "sort")
		in.sortValues(a.Elems, arg(args, 0))
		return a
	})
	in.method(proto, "toSorted", 1, func(in *Interp, this Value, args []Value) Value {
		out := in.collect(in.thisArray(this, "toSorted"))
		in.sortValues(out, arg(args, 0))
		return in.newArray(out)
	})
	in.method(proto, "flat", 0, func(in *Interp, this Value, args []Value) Value {
		depth := 1.0
		if d := arg(args, 0); d != Undefined {
			depth = toInteger(in.toNumber(d))
		}
		return in.newArray(in.flatten(nil, in.thisArray(this, "flat").Elems, depth))
	})
	in.method(proto, "fill", 1, func(in *Interp, this Value, args []Value) Value {
		a := in.mutableArray(this, "fill")
		n := len(a.Elems)
		start, end := in.relativeIndex(arg(args, 1), n, 0), in.relativeIndex(arg(args, 2), n, n)
		for i := start; i < end; i++ {
			a.Elems[i] = arg(args, 0)
		}
		return a
	})
	in.method(proto, "at", 1, func(in *Interp, this Value, args []Value) Value {
		a := in.thisArray(this, "at")
		i := int(toInteger(in.toNumber(arg(args, 0))))
		if i < 0 {
			i += len(a.Elems)
		}
		if i < 0 || i >= len(a.Elems) {
			return Undefined
		}
		return norm(a.Elems[i])
	})
	in.method(proto, "keys", 0, func(in *Interp, this Value, _ []Value) Value {
		a := in.thisArray(this, "keys")
		out := make([]Value, len(a.Elems))
		for i := range out {
			out[i] = float64(i)
		}
		return in.newArray(out)
	})
	in.method(proto, "values", 0, func(in *Interp, this Value, _ []Value) Value {
		return in.newArray(in.collect(in.thisArray(this, "values")))
	})
	in.method(proto, "entries", 0, func(in *Interp, this Value, _ []Value) Value {
		a := in.thisArray(this, "entries")
		out := make([]Value, len(a.Elems))
		for i := range out {
			out[i] = in.newArray([]Value{float64(i), norm(a.Elems[i])})
		}
		return in.newArray(out)
	})
}
