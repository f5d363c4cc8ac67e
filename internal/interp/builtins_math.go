package interp

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"math/bits"
	"math/rand/v2"
	"strconv"
	"strings"
)

func (in *Interp) installMath() {
	m := in.NewObject()
	m.Class = "Math"
	for name, v := range map[string]float64{
		"PI": math.Pi, "E": math.E, "LN2": math.Ln2, "LN10": math.Ln10,
		"LOG2E": math.Log2E, "LOG10E": math.Log10E, "SQRT2": math.Sqrt2, "SQRT1_2": math.Sqrt2 / 2,
	} {
		m.setHidden(name, v)
	}
	unary := map[string]func(float64) float64{
		"abs": math.Abs, "floor": math.Floor, "ceil": math.Ceil, "round": jsRound,
		"trunc": math.Trunc, "sqrt": math.Sqrt, "cbrt": math.Cbrt, "exp": math.Exp,
		"expm1": math.Expm1, "log": math.Log, "log2": math.Log2, "log10": math.Log10,
		"log1p": math.Log1p, "sin": math.Sin, "cos": math.Cos, "tan": math.Tan,
		"asin": math.Asin, "acos": math.Acos, "atan": math.Atan, "sinh": math.Sinh,
		"cosh": math.Cosh, "tanh": math.Tanh, "asinh": math.Asinh, "acosh": math.Acosh,
		"atanh": math.Atanh,
		"sign": func(x float64) float64 {
			switch {
			case x > 0:
				return 1
			case x < 0:
				return -1
			}
			return x
		},
		"fround": func(x float64) float64 { return float64(float32(x)) },
		"clz32":  func(x float64) float64 { return float64(bits.LeadingZeros32(toUint32(x))) },
	}
	for name, fn := range unary {
		in.method(m, name, 1, func(in *Interp, _ Value, args []Value) Value {
			return fn(in.toNumber(arg(args, 0)))
		})
	}
	in.method(m, "pow", 2, func(in *Interp, _ Value, args []Value) Value {
		return jsPow(in.toNumber(arg(args, 0)), in.toNumber(arg(args, 1)))
	})
	in.method(m, "atan2", 2, func(in *Interp, _ Value, args []Value) Value {
		return math.Atan2(in.toNumber(arg(args, 0)), in.toNumber(arg(args, 1)))
	})
	in.method(m, "imul", 2, func(in *Interp, _ Value, args []Value) Value {
		return float64(toInt32(in.toNumber(arg(args, 0))) * toInt32(in.toNumber(arg(args, 1))))
	})
	in.method(m, "hypot", 2, func(in *Interp, _ Value, args []Value) Value {
		sum := 0.0
		for _, a := range args {
			f := in.toNumber(a)
			if math.IsInf(f, 0) {
				return math.Inf(1)
			}
			sum += f * f
		}
		return math.Sqrt(sum)
	})
	in.method(m, "max", 2, func(in *Interp, _ Value, args []Value) Value {
		r := math.Inf(-1)
		for _, a := range args {
			f := in.toNumber(a)
			if math.IsNaN(f) {
				return math.NaN()
			}
			if f > r || (f == 0 && r == 0 && !math.Signbit(f)) {
				r = f
			}
		}
		return r
	})
	in.method(m, "min", 2, func(in *Interp, _ Value, args []Value) Value {
		r := math.Inf(1)
		for _, a := range args {
			f := in.toNumber(a)
			if math.IsNaN(f) {
				return math.NaN()
			}
			if f < r || (f == 0 && r == 0 && math.Signbit(f)) {
				r = f
			}
		}
		return r
	})
	in.method(m, "random", 0, func(*Interp, Value, []Value) Value {
		return rand.Float64()
	})
	in.defineGlobal("Math", m)
}

func (in *Interp) installJSON() {
	j := in.NewObject()
	j.Class = "JSON"
	in.method(j, "stringify", 3, func(in *Interp, _ Value, args []Value) Value {
		indent := ""
		switch sp := arg(args, 2).(type) {
		case float64:
			indent = strings.Repeat(" ", int(math.Min(math.Max(toInteger(sp), 0), 10)))
		case string:
			indent = sp[:min(len(sp), 10)]
		}
		replacer, _ := arg(args, 1).(*Function)
		w := &jsonWriter{in: in, indent: indent, replacer: replacer, stack: map[Value]bool{}}
		holder := in.NewObject()
		holder.Set("", arg(args, 0))
		s, ok := w.value(holder, "", arg(args, 0), "")
		if !ok {
			return Undefined
		}
		return s
	})
	in.method(j, "parse", 2, func(in *Interp, _ Value, args []Value) Value {
		text := in.toString(arg(args, 0))
		dec := json.NewDecoder(strings.NewReader(text))
		dec.UseNumber()
		v, err := in.decodeJSON(dec)
		if err == nil {
			if _, err2 := dec.Token(); !errors.Is(err2, io.EOF) {
				err = errors.New("Unexpected non-whitespace character after JSON")
			}
		}
		if err != nil {
			panic(in.throwError("SyntaxError", "%s", jsonMessage(err)))
		}
		if reviver, ok := arg(args, 1).(*Function); ok {
			holder := in.NewObject()
			holder.Set("", v)
			return in.revive(holder, "", reviver)
		}
		return v
	})
	in.defineGlobal("JSON", j)
}

func jsonMessage(err error) string {
	var se *json.SyntaxError
	switch {
	case errors.As(err, &se):
		return se.Error() + " in JSON at position " + strconv.FormatInt(se.Offset, 10)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return "Unexpected end of JSON input"
	}
	return err.Error()
}

func (in *Interp) decodeJSON(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := in.NewObject()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				v, err := in.decodeJSON(dec)
				if err != nil {
					return nil, err
				}
				obj.Set(kt.(string), v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			var elems []Value
			for dec.More() {
				v, err := in.decodeJSON(dec)
				if err != nil {
					return nil, err
				}
				elems = append(elems, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return in.newArray(elems), nil
		}
	case json.Number:
		return parseDecimal(t.String()), nil
	case string:
		return t, nil
	case bool:
		return t, nil
	case nil:
		return Null, nil
	}
	return nil, errors.New("Unexpected token in JSON")
}

func (in *Interp) revive(holder Value, key string, reviver *Function) Value {
	v := in.getMember(holder, key)
	if isObject(v) {
		for _, k := range in.ownEnumerableKeys(v) {
			nv := in.revive(v, k, reviver)
			if nv == Undefined {
				in.deleteMember(v, k)
			} else {
				in.setMember(v, k, nv)
			}
		}
	}
	return in.invoke(reviver, holder, []Value{key, v})
}

type jsonWriter struct {
	in       *Interp
	indent   string
	replacer *Function
	stack    map[Value]bool
}

// value serializes v. ok is false when v has no JSON representation.
func (w *jsonWriter) value(holder Value, key string, v Value, prefix string) (string, bool) {
	in := w.in
	if isObject(v) {
		if f, ok := in.getMember(v, "toJSON").(*Function); ok {
			v = in.invoke(f, v, []Value{key})
		}
	}
	if w.replacer != nil {
		v = in.invoke(w.replacer, holder, []Value{key, v})
	}
	switch x := v.(type) {
	case nullType:
		return "null", true
	case bool:
		return strconv.FormatBool(x), true
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return "null", true
		}
		return numberToString(x), true
	case string:
		return quoteJSON(x), true
	case *Function, undefinedType:
		return "", false
	}
	if w.stack[v] {
		panic(in.typeError("Converting circular structure to JSON"))
	}
	w.stack[v] = true
	defer delete(w.stack, v)

	inner := prefix + w.indent
	sep, open, closing := ",", "", ""
	if w.indent != "" {
		sep, open, closing = ",\n"+inner, "\n"+inner, "\n"+prefix
	}
	if a, ok := v.(*Array); ok {
		if len(a.Elems) == 0 {
			return "[]", true
		}
		parts := make([]string, len(a.Elems))
		for i := range a.Elems {
			s, ok := w.value(a, strconv.Itoa(i), norm(a.Elems[i]), inner)
			if !ok {
				s = "null"
			}
			parts[i] = s
		}
		return "[" + open + strings.Join(parts, sep) + closing + "]", true
	}
	var parts []string
	if o, ok := v.(*Object); ok {
		if _, ok := o.internal.(*collection); ok {
			return "{}", true
		}
	}
	colon := ":"
	if w.indent != "" {
		colon = ": "
	}
	for _, k := range in.ownEnumerableKeys(v) {
		s, ok := w.value(v, k, in.getMember(v, k), inner)
		if !ok {
			continue
		}
		parts = append(parts, quoteJSON(k)+colon+s)
	}
	if len(parts) == 0 {
		return "{}", true
	}
	return "{" + open + strings.Join(parts, sep) + closing + "}", true
}

func quoteJSON(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			if r < 0x20 {
				b.WriteString(`\u00`)
				b.WriteByte("0123456789abcdef"[r>>4])
				b.WriteByte("0123456789abcdef"[r&0xf])
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
