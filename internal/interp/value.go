package interp

import (
	"math"
	"slices"
	"sort"
	"strconv"
)

// Value is a JavaScript value. Its dynamic type is one of Undefined, Null,
// bool, float64, string, *Object, *Array, *Function or *Promise.
type Value = any

type undefinedType struct{}

type nullType struct{}

var (
	// Undefined is the JavaScript undefined value.
	Undefined Value = undefinedType{}
	// Null is the JavaScript null value.
	Null Value = nullType{}
)

// Object is an ordinary JavaScript object. Arrays, functions and promises
// embed one for their own properties and prototype link.
type Object struct {
	Class    string
	proto    *Object
	keys     []string
	props    map[string]Value
	hidden   map[string]bool
	frozen   bool
	internal any
	outer    Value // the array, function or promise embedding this object
	origin   *position
}

type objectLike interface {
	base() *Object
}

func (o *Object) base() *Object { return o }

func newObject(proto *Object) *Object {
	return &Object{Class: "Object", proto: proto}
}

// Proto returns the prototype, nil at the end of the chain.
func (o *Object) Proto() *Object { return o.proto }

// value returns the JavaScript value o stands for.
func (o *Object) value() Value {
	if o.outer != nil {
		return o.outer
	}
	return o
}

func (o *Object) own(key string) (Value, bool) {
	v, ok := o.props[key]
	return v, ok
}

func (o *Object) lookup(key string) (Value, bool) {
	for c := o; c != nil; c = c.proto {
		if v, ok := c.props[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// Get reads a property through the prototype chain.
func (o *Object) Get(key string) Value {
	if v, ok := o.lookup(key); ok {
		return v
	}
	return Undefined
}

// Set creates or overwrites an own property. New properties are enumerable.
func (o *Object) Set(key string, v Value) {
	if o.props == nil {
		o.props = make(map[string]Value)
	}
	if _, ok := o.props[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.props[key] = v
}

func (o *Object) setHidden(key string, v Value) {
	o.Set(key, v)
	if o.hidden == nil {
		o.hidden = make(map[string]bool)
	}
	o.hidden[key] = true
}

func (o *Object) remove(key string) bool {
	if _, ok := o.props[key]; !ok {
		return true
	}
	if o.frozen {
		return false
	}
	delete(o.props, key)
	delete(o.hidden, key)
	if i := slices.Index(o.keys, key); i >= 0 {
		o.keys = slices.Delete(o.keys, i, i+1)
	}
	return true
}

// Keys returns the own enumerable keys: array indices ascending, then the
// remaining keys in insertion order.
func (o *Object) Keys() []string {
	return o.orderedKeys(false)
}

func (o *Object) orderedKeys(withHidden bool) []string {
	var idx []string
	rest := make([]string, 0, len(o.keys))
	for _, k := range o.keys {
		if !withHidden && o.hidden[k] {
			continue
		}
		if isArrayIndex(k) {
			idx = append(idx, k)
		} else {
			rest = append(rest, k)
		}
	}
	if len(idx) == 0 {
		return rest
	}
	sort.Slice(idx, func(i, j int) bool {
		a, _ := strconv.ParseUint(idx[i], 10, 32)
		b, _ := strconv.ParseUint(idx[j], 10, 32)
		return a < b
	})
	return append(idx, rest...)
}

func isArrayIndex(k string) bool {
	if k == "" || len(k) > 10 || (len(k) > 1 && k[0] == '0') {
		return false
	}
	for i := 0; i < len(k); i++ {
		if k[i] < '0' || k[i] > '9' {
			return false
		}
	}
	n, err := strconv.ParseUint(k, 10, 64)
	return err == nil && n < math.MaxUint32
}

// Array is a JavaScript array. Holes read as undefined.
type Array struct {
	Object
	Elems []Value
}

// NativeFunc implements a built-in function.
type NativeFunc func(in *Interp, this Value, args []Value) Value

// Function is a JavaScript function, native or compiled.
type Function struct {
	Object
	name   string
	native NativeFunc
	// ctor builds the object for new on native constructors.
	ctor func(in *Interp, args []Value, newTarget *Function) Value
	call func(this Value, args []Value, newTarget *Function) Value

	construct bool
	class     bool
	derived   bool
	async     bool
	arrow     bool
	parent    *Function // superclass of a derived class
	fields    func(this *Object)
	home      *Object
	source    string
}

// Name returns the function's name.
func (f *Function) Name() string { return f.name }

func arg(args []Value, i int) Value {
	if i < len(args) && args[i] != nil {
		return args[i]
	}
	return Undefined
}

func norm(v Value) Value {
	if v == nil {
		return Undefined
	}
	return v
}

func isNullish(v Value) bool {
	return v == Undefined || v == Null
}

func isObject(v Value) bool {
	_, ok := v.(objectLike)
	return ok
}

func truthy(v Value) bool {
	switch x := v.(type) {
	case undefinedType, nullType:
		return false
	case bool:
		return x
	case float64:
		return x != 0 && !math.IsNaN(x)
	case string:
		return x != ""
	}
	return true
}

func typeOf(v Value) string {
	switch v.(type) {
	case undefinedType:
		return "undefined"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case *Function:
		return "function"
	}
	return "object"
}

func boolNumber(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func strictEquals(a, b Value) bool {
	switch x := a.(type) {
	case float64:
		y, ok := b.(float64)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	}
	return a == b
}

func sameValueZero(a, b Value) bool {
	if x, ok := a.(float64); ok {
		if y, ok := b.(float64); ok && math.IsNaN(x) && math.IsNaN(y) {
			return true
		}
	}
	return strictEquals(a, b)
}

func sameValue(a, b Value) bool {
	if x, ok := a.(float64); ok {
		if y, ok := b.(float64); ok {
			if x == 0 && y == 0 {
				return math.Signbit(x) == math.Signbit(y)
			}
			return x == y || (math.IsNaN(x) && math.IsNaN(y))
		}
	}
	return strictEquals(a, b)
}

func (in *Interp) looseEquals(a, b Value) bool {
	if isNullish(a) || isNullish(b) {
		return isNullish(a) && isNullish(b)
	}
	switch x := a.(type) {
	case float64:
		switch y := b.(type) {
		case float64:
			return x == y
		case string:
			return x == stringToNumber(y)
		case bool:
			return x == boolNumber(y)
		}
	case string:
		switch y := b.(type) {
		case string:
			return x == y
		case float64:
			return stringToNumber(x) == y
		case bool:
			return stringToNumber(x) == boolNumber(y)
		}
	case bool:
		return in.looseEquals(boolNumber(x), b)
	}
	if y, ok := b.(bool); ok {
		return in.looseEquals(a, boolNumber(y))
	}
	ao, bo := isObject(a), isObject(b)
	switch {
	case ao && bo:
		return a == b
	case ao:
		return in.looseEquals(in.toPrimitive(a, "default"), b)
	case bo:
		return in.looseEquals(a, in.toPrimitive(b, "default"))
	}
	return false
}

func (in *Interp) toPrimitive(v Value, hint string) Value {
	if !isObject(v) {
		return v
	}
	if o, ok := v.(*Object); ok && o.Class == "Date" && hint == "default" {
		hint = "string"
	}
	order := [2]string{"valueOf", "toString"}
	if hint == "string" {
		order = [2]string{"toString", "valueOf"}
	}
	for _, name := range order {
		if f, ok := in.getMember(v, name).(*Function); ok {
			if r := in.invoke(f, v, nil); !isObject(r) {
				return r
			}
		}
	}
	panic(in.typeError("Cannot convert object to primitive value"))
}

func (in *Interp) toNumber(v Value) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case undefinedType:
		return math.NaN()
	case nullType:
		return 0
	case bool:
		return boolNumber(x)
	case string:
		return stringToNumber(x)
	}
	return in.toNumber(in.toPrimitive(v, "number"))
}

func (in *Interp) toString(v Value) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return numberToString(x)
	case bool:
		return strconv.FormatBool(x)
	case undefinedType:
		return "undefined"
	case nullType:
		return "null"
	}
	return in.toString(in.toPrimitive(v, "string"))
}

func (in *Interp) toPropertyKey(v Value) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return numberToString(x)
	}
	return in.toString(v)
}

// arrayIndex reports whether key addresses an array element.
func arrayIndex(key Value) (int, bool) {
	switch k := key.(type) {
	case float64:
		if k >= 0 && k < math.MaxUint32 && k == math.Trunc(k) {
			return int(k), true
		}
	case string:
		if isArrayIndex(k) {
			n, _ := strconv.Atoi(k)
			return n, true
		}
	}
	return 0, false
}
