package interp

import (
	"math"
	"strconv"
	"unicode/utf16"
)

func (in *Interp) newArray(elems []Value) *Array {
	a := &Array{Elems: elems}
	a.Object = Object{Class: "Array", proto: in.arrayProto}
	a.outer = a
	return a
}

func (in *Interp) getMember(v Value, key Value) Value {
	switch x := v.(type) {
	case undefinedType, nullType:
		panic(in.typeError("Cannot read properties of %s (reading '%s')", in.toString(v), in.toPropertyKey(key)))
	case string:
		if i, ok := arrayIndex(key); ok {
			u := utf16.Encode([]rune(x))
			if i < len(u) {
				return unitsToString(u[i : i+1])
			}
			return Undefined
		}
		k := in.toPropertyKey(key)
		if k == "length" {
			return float64(utf16Len(x))
		}
		return in.stringProto.Get(k)
	case float64:
		return in.numberProto.Get(in.toPropertyKey(key))
	case bool:
		return in.booleanProto.Get(in.toPropertyKey(key))
	case *Array:
		if i, ok := arrayIndex(key); ok {
			if i < len(x.Elems) {
				return norm(x.Elems[i])
			}
			return Undefined
		}
		k := in.toPropertyKey(key)
		if k == "length" {
			return float64(len(x.Elems))
		}
		return x.Get(k)
	case *Object:
		k := in.toPropertyKey(key)
		if k == "size" {
			if c, ok := x.internal.(*collection); ok {
				return float64(c.len())
			}
		}
		return x.Get(k)
	case objectLike:
		return x.base().Get(in.toPropertyKey(key))
	}
	return Undefined
}

func (in *Interp) setMember(v Value, key Value, val Value) {
	switch x := v.(type) {
	case undefinedType, nullType:
		panic(in.typeError("Cannot set properties of %s (setting '%s')", in.toString(v), in.toPropertyKey(key)))
	case *Array:
		if x.frozen {
			panic(in.typeError("Cannot assign to read only property '%s' of object", in.toPropertyKey(key)))
		}
		if i, ok := arrayIndex(key); ok {
			for len(x.Elems) <= i {
				x.Elems = append(x.Elems, Undefined)
			}
			x.Elems[i] = val
			return
		}
		k := in.toPropertyKey(key)
		if k == "length" {
			n := in.toNumber(val)
			if n < 0 || n != math.Trunc(n) || n >= math.MaxUint32 {
				panic(in.rangeError("Invalid array length"))
			}
			in.setLength(x, int(n))
			return
		}
		x.Set(k, val)
	case objectLike:
		o := x.base()
		k := in.toPropertyKey(key)
		if o.frozen {
			panic(in.typeError("Cannot assign to read only property '%s' of object", k))
		}
		o.Set(k, val)
	default:
		panic(in.typeError("Cannot create property '%s' on %s '%s'", in.toPropertyKey(key), typeOf(v), in.toString(v)))
	}
}

func (in *Interp) setLength(a *Array, n int) {
	if n <= len(a.Elems) {
		clear(a.Elems[n:])
		a.Elems = a.Elems[:n]
		return
	}
	for len(a.Elems) < n {
		a.Elems = append(a.Elems, Undefined)
	}
}

func (in *Interp) deleteMember(v Value, key Value) Value {
	switch x := v.(type) {
	case undefinedType, nullType:
		panic(in.typeError("Cannot convert undefined or null to object"))
	case *Array:
		if i, ok := arrayIndex(key); ok {
			if x.frozen {
				panic(in.typeError("Cannot delete property '%d' of [object Array]", i))
			}
			if i < len(x.Elems) {
				x.Elems[i] = Undefined
			}
			return true
		}
		if !x.remove(in.toPropertyKey(key)) {
			panic(in.typeError("Cannot delete property '%s' of [object Array]", in.toPropertyKey(key)))
		}
	case objectLike:
		k := in.toPropertyKey(key)
		if !x.base().remove(k) {
			panic(in.typeError("Cannot delete property '%s' of #<Object>", k))
		}
	}
	return true
}

func (in *Interp) hasProperty(v Value, key string) bool {
	switch x := v.(type) {
	case *Array:
		if i, ok := arrayIndex(key); ok {
			return i < len(x.Elems)
		}
		if key == "length" {
			return true
		}
		_, ok := x.lookup(key)
		return ok
	case objectLike:
		_, ok := x.base().lookup(key)
		return ok
	}
	return false
}

func (in *Interp) hasOwn(v Value, key string) bool {
	switch x := v.(type) {
	case *Array:
		if i, ok := arrayIndex(key); ok {
			return i < len(x.Elems)
		}
		if key == "length" {
			return true
		}
		_, ok := x.own(key)
		return ok
	case objectLike:
		_, ok := x.base().own(key)
		return ok
	case string:
		if i, ok := arrayIndex(key); ok {
			return i < utf16Len(x)
		}
		return key == "length"
	}
	return false
}

func (in *Interp) instanceOf(a, b Value) Value {
	fn, ok := b.(*Function)
	if !ok {
		panic(in.typeError("Right-hand side of 'instanceof' is not callable"))
	}
	o, ok := a.(objectLike)
	if !ok {
		return false
	}
	p, ok := fn.Get("prototype").(objectLike)
	if !ok {
		panic(in.typeError("Function has non-object prototype in instanceof check"))
	}
	target := p.base()
	for c := o.base().proto; c != nil; c = c.proto {
		if c == target {
			return true
		}
	}
	return false
}

func (in *Interp) add(a, b Value) Value {
	pa, pb := in.toPrimitive(a, "default"), in.toPrimitive(b, "default")
	sa, aStr := pa.(string)
	sb, bStr := pb.(string)
	switch {
	case aStr && bStr:
		return sa + sb
	case aStr:
		return sa + in.toString(pb)
	case bStr:
		return in.toString(pa) + sb
	}
	return in.toNumber(pa) + in.toNumber(pb)
}

// less compares a < b. undefined reports a comparison involving NaN.
func (in *Interp) less(a, b Value, leftFirst bool) (lt, undefined bool) {
	var pa, pb Value
	if leftFirst {
		pa = in.toPrimitive(a, "number")
		pb = in.toPrimitive(b, "number")
	} else {
		pb = in.toPrimitive(b, "number")
		pa = in.toPrimitive(a, "number")
	}
	if sa, ok := pa.(string); ok {
		if sb, ok := pb.(string); ok {
			return compareUTF16(sa, sb) < 0, false
		}
	}
	x, y := in.toNumber(pa), in.toNumber(pb)
	if math.IsNaN(x) || math.IsNaN(y) {
		return false, true
	}
	return x < y, false
}

// iterate feeds the elements of an iterable to fn until fn returns false.
func (in *Interp) iterate(v Value, fn func(Value) bool) {
	switch x := v.(type) {
	case *Array:
		for i := 0; i < len(x.Elems); i++ {
			if !fn(norm(x.Elems[i])) {
				return
			}
		}
		return
	case string:
		for _, r := range x {
			if !fn(string(r)) {
				return
			}
		}
		return
	case *Object:
		if c, ok := x.internal.(*collection); ok {
			c.each(func(e *entry) bool {
				if c.set {
					return fn(e.key)
				}
				return fn(in.newArray([]Value{e.key, e.value}))
			})
			return
		}
	}
	panic(in.typeError("%s is not iterable", describeShort(v)))
}

func (in *Interp) collect(v Value) []Value {
	if a, ok := v.(*Array); ok {
		out := make([]Value, len(a.Elems))
		for i, e := range a.Elems {
			out[i] = norm(e)
		}
		return out
	}
	var out []Value
	in.iterate(v, func(x Value) bool {
		out = append(out, x)
		return true
	})
	return out
}

func indexKeys(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = strconv.Itoa(i)
	}
	return out
}

// ownEnumerableKeys lists the own enumerable string keys of v.
func (in *Interp) ownEnumerableKeys(v Value) []string {
	switch x := v.(type) {
	case *Array:
		return append(indexKeys(len(x.Elems)), x.Keys()...)
	case objectLike:
		return x.base().Keys()
	case string:
		return indexKeys(utf16Len(x))
	}
	return nil
}

// enumerableKeys lists the keys for-in visits: own keys, then inherited
// ones not already seen.
func (in *Interp) enumerableKeys(v Value) []string {
	keys := in.ownEnumerableKeys(v)
	o, ok := v.(objectLike)
	if !ok {
		return keys
	}
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		seen[k] = true
	}
	for p := o.base().proto; p != nil; p = p.proto {
		for _, k := range p.Keys() {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

func unitsToString(u []uint16) string {
	return string(utf16.Decode(u))
}

func compareUTF16(a, b string) int {
	ua, ub := utf16.Encode([]rune(a)), utf16.Encode([]rune(b))
	for i := 0; i < len(ua) && i < len(ub); i++ {
		if ua[i] != ub[i] {
			if ua[i] < ub[i] {
				return -1
			}
			return 1
		}
	}
	return len(ua) - len(ub)
}
