package interp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

const inspectDepth = 4

// Inspect renders v as readable text, the way a console shows it.
func Inspect(v Value) string {
	var b strings.Builder
	inspect(&b, v, 0, map[Value]bool{})
	return b.String()
}

func quoteString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\t", `\t`, "\r", `\r`)
	return "'" + r.Replace(s) + "'"
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || r == '$' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}

func inspectKey(k string) string {
	if isIdentifier(k) {
		return k
	}
	return quoteString(k)
}

func formatNumber(f float64) string {
	if f == 0 && math.Signbit(f) {
		return "-0"
	}
	return numberToString(f)
}

func constructorName(o *Object) string {
	if o.proto == nil {
		return ""
	}
	if c, ok := o.proto.Get("constructor").(*Function); ok {
		return c.name
	}
	return ""
}

func inspect(b *strings.Builder, v Value, depth int, seen map[Value]bool) {
	switch x := v.(type) {
	case undefinedType:
		b.WriteString("undefined")
		return
	case nullType:
		b.WriteString("null")
		return
	case bool:
		b.WriteString(strconv.FormatBool(x))
		return
	case float64:
		b.WriteString(formatNumber(x))
		return
	case string:
		b.WriteString(quoteString(x))
		return
	case *Function:
		switch {
		case x.class && x.name != "":
			b.WriteString("class " + x.name)
		case x.class:
			b.WriteString("class (anonymous)")
		default:
			b.WriteString("ƒ " + x.name + "()")
		}
		return
	}
	if seen[v] {
		b.WriteString("[Circular]")
		return
	}
	seen[v] = true
	defer delete(seen, v)

	switch x := v.(type) {
	case *Array:
		if depth >= inspectDepth {
			b.WriteString("[Array]")
			return
		}
		b.WriteByte('[')
		for i, e := range x.Elems {
			if i > 0 {
				b.WriteString(", ")
			}
			inspect(b, norm(e), depth+1, seen)
		}
		b.WriteByte(']')
	case *Promise:
		b.WriteString("Promise {")
		switch x.state {
		case Pending:
			b.WriteString("<pending>")
		case Rejected:
			b.WriteString("<rejected> ")
			inspect(b, x.result, depth+1, seen)
		default:
			inspect(b, x.result, depth+1, seen)
		}
		b.WriteByte('}')
	case *Object:
		inspectObject(b, x, depth, seen)
	default:
		fmt.Fprintf(b, "%v", v)
	}
}

func inspectObject(b *strings.Builder, o *Object, depth int, seen map[Value]bool) {
	switch o.Class {
	case "Error":
		b.WriteString(errorString(o))
		return
	case "Date":
		if ms := dateValue(o); !math.IsNaN(ms) {
			b.WriteString(isoString(ms))
		} else {
			b.WriteString("Invalid Date")
		}
		return
	}
	if c, ok := o.internal.(*collection); ok {
		if depth >= inspectDepth {
			b.WriteString("[" + o.Class + "]")
			return
		}
		fmt.Fprintf(b, "%s(%d) {", o.Class, c.len())
		first := true
		c.each(func(e *entry) bool {
			if !first {
				b.WriteString(", ")
			}
			first = false
			inspect(b, e.key, depth+1, seen)
			if !c.set {
				b.WriteString(" => ")
				inspect(b, e.value, depth+1, seen)
			}
			return true
		})
		b.WriteByte('}')
		return
	}
	prefix := ""
	switch name := constructorName(o); {
	case o.Class == "Module":
		prefix = "[Module] "
	case o.proto == nil:
		prefix = "[Object: null prototype] "
	case name != "" && name != "Object":
		prefix = name + " "
	}
	if depth >= inspectDepth {
		b.WriteString("[Object]")
		return
	}
	keys := o.Keys()
	b.WriteString(prefix)
	if len(keys) == 0 {
		b.WriteString("{}")
		return
	}
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(inspectKey(k))
		b.WriteString(": ")
		inspect(b, o.Get(k), depth+1, seen)
	}
	b.WriteByte('}')
}

// describeShort names a value in an error message.
func describeShort(v Value) string {
	switch x := v.(type) {
	case *Function:
		if x.class {
			return "class " + x.name
		}
		return "function " + x.name
	case *Array:
		return "[object Array]"
	case *Promise:
		return "#<Promise>"
	case *Object:
		if name := constructorName(x); name != "" {
			return "#<" + name + ">"
		}
		return "[object Object]"
	}
	return Inspect(v)
}

// Record is an exported object: keys in property order.
type Record struct {
	Keys   []string
	Values []any
}

// Get returns the value stored under key.
func (r *Record) Get(key string) (any, bool) {
	if i := slices.Index(r.Keys, key); i >= 0 {
		return r.Values[i], true
	}
	return nil, false
}

// MarshalJSON writes the record as a JSON object in key order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(r.Values[i])
		if err != nil {
			return nil, fmt.Errorf("marshal %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML writes the record as a mapping in key order.
func (r *Record) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for i, k := range r.Keys {
		var kn, vn yaml.Node
		if err := kn.Encode(k); err != nil {
			return nil, err
		}
		if err := vn.Encode(r.Values[i]); err != nil {
			return nil, fmt.Errorf("encode %q: %w", k, err)
		}
		node.Content = append(node.Content, &kn, &vn)
	}
	return node, nil
}

// Export converts v to plain Go data: nil, bool, float64, string, []any
// and *Record. Values without a data form (functions, promises, cycles)
// become their Inspect text; non-finite numbers become strings.
func Export(v Value) any {
	return export(v, map[Value]bool{})
}

func export(v Value, seen map[Value]bool) any {
	switch x := v.(type) {
	case undefinedType, nullType, nil:
		return nil
	case bool, string:
		return x
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return numberToString(x)
		}
		return x + 0
	case *Function, *Promise:
		return Inspect(v)
	}
	if seen[v] {
		return "[Circular]"
	}
	seen[v] = true
	defer delete(seen, v)
	switch x := v.(type) {
	case *Array:
		out := make([]any, len(x.Elems))
		for i, e := range x.Elems {
			out[i] = export(norm(e), seen)
		}
		return out
	case *Object:
		switch x.Class {
		case "Error", "Date":
			return Inspect(x)
		}
		if c, ok := x.internal.(*collection); ok {
			out := make([]any, 0, c.len())
			c.each(func(e *entry) bool {
				if c.set {
					out = append(out, export(e.key, seen))
				} else {
					out = append(out, []any{export(e.key, seen), export(e.value, seen)})
				}
				return true
			})
			return out
		}
		keys := x.Keys()
		r := &Record{Keys: keys, Values: make([]any, len(keys))}
		for i, k := range keys {
			r.Values[i] = export(x.Get(k), seen)
		}
		return r
	}
	return fmt.Sprint(v)
}

// FromGo converts Go data into a JavaScript value. Maps become objects
// with sorted keys; structs go through their JSON encoding.
func (in *Interp) FromGo(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null
	case undefinedType, nullType, bool, string, float64, *Object, *Array, *Function, *Promise:
		return x
	case NativeFunc:
		return in.nativeFunc("", 0, x)
	case func(in *Interp, this Value, args []Value) Value:
		return in.nativeFunc("", 0, x)
	case error:
		return in.ErrorValue(x)
	case json.Number:
		return parseDecimal(x.String())
	case *Record:
		o := in.NewObject()
		for i, k := range x.Keys {
			o.Set(k, in.FromGo(x.Values[i]))
		}
		return o
	case []any:
		elems := make([]Value, len(x))
		for i, e := range x {
			elems[i] = in.FromGo(e)
		}
		return in.newArray(elems)
	case map[string]any:
		o := in.NewObject()
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			o.Set(k, in.FromGo(x[k]))
		}
		return o
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return rv.String()
	case reflect.Slice, reflect.Array:
		elems := make([]Value, rv.Len())
		for i := range elems {
			elems[i] = in.FromGo(rv.Index(i).Interface())
		}
		return in.newArray(elems)
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			m := make(map[string]any, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				m[iter.Key().String()] = iter.Value().Interface()
			}
			return in.FromGo(m)
		}
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null
		}
		return in.FromGo(rv.Elem().Interface())
	case reflect.Struct:
		data, err := json.Marshal(v)
		if err != nil {
			return in.ErrorValue(err)
		}
		var generic any
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&generic); err != nil {
			return in.ErrorValue(err)
		}
		return in.FromGo(generic)
	}
	return fmt.Sprint(v)
}
