package interp

import (
	"math"
	"slices"
	"strings"
	"unicode"
	"unicode/utf16"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	unorm "golang.org/x/text/unicode/norm"
)

func (in *Interp) thisString(this Value, method string) string {
	switch x := this.(type) {
	case string:
		return x
	case undefinedType, nullType:
		panic(in.typeError("String.prototype.%s called on null or undefined", method))
	}
	return in.toString(this)
}

func indexUnits(hay, needle []uint16, from int) int {
	for i := max(from, 0); i+len(needle) <= len(hay); i++ {
		if slices.Equal(hay[i:i+len(needle)], needle) {
			return i
		}
	}
	return -1
}

func lastIndexUnits(hay, needle []uint16, from int) int {
	for i := min(from, len(hay)-len(needle)); i >= 0; i-- {
		if slices.Equal(hay[i:i+len(needle)], needle) {
			return i
		}
	}
	return -1
}

func units(s string) []uint16 {
	return utf16.Encode([]rune(s))
}

// expandReplacement resolves the $ patterns of a replacement string.
func expandReplacement(repl, matched string, pos int, subject []uint16) string {
	if !strings.ContainsRune(repl, '$') {
		return repl
	}
	var b strings.Builder
	for i := 0; i < len(repl); i++ {
		if repl[i] != '$' || i+1 >= len(repl) {
			b.WriteByte(repl[i])
			continue
		}
		switch repl[i+1] {
		case '$':
			b.WriteByte('$')
		case '&':
			b.WriteString(matched)
		case '`':
			b.WriteString(unitsToString(subject[:pos]))
		case '\'':
			b.WriteString(unitsToString(subject[min(pos+len(units(matched)), len(subject)):]))
		default:
			b.WriteByte('$')
			continue
		}
		i++
	}
	return b.String()
}

func (in *Interp) replace(s string, pattern, replacement Value, all bool) string {
	subject := units(s)
	needle := units(in.toString(pattern))
	fn, isFn := replacement.(*Function)
	repl := ""
	if !isFn {
		repl = in.toString(replacement)
	}
	var b strings.Builder
	last, from := 0, 0
	for {
		i := indexUnits(subject, needle, from)
		if i < 0 {
			break
		}
		matched := unitsToString(subject[i : i+len(needle)])
		b.WriteString(unitsToString(subject[last:i]))
		if isFn {
			b.WriteString(in.toString(in.invoke(fn, Undefined, []Value{matched, float64(i), s})))
		} else {
			b.WriteString(expandReplacement(repl, matched, i, subject))
		}
		last = i + len(needle)
		from = last
		if len(needle) == 0 {
			if i < len(subject) {
				b.WriteString(unitsToString(subject[i : i+1]))
			}
			last, from = i+1, i+1
		}
		if !all || from > len(subject) {
			break
		}
	}
	if last <= len(subject) {
		b.WriteString(unitsToString(subject[last:]))
	}
	return b.String()
}

func (in *Interp) installString() {
	in.stringProto = newObject(in.objectProto)
	proto := in.stringProto
	str := in.constructor("String", 1, proto, func(in *Interp, _ Value, args []Value) Value {
		if len(args) == 0 {
			return ""
		}
		if f, ok := args[0].(*Function); ok {
			return "function " + f.name + "() { [native code] }"
		}
		return in.toString(args[0])
	}, nil)
	in.method(&str.Object, "fromCharCode", 1, func(in *Interp, _ Value, args []Value) Value {
		u := make([]uint16, len(args))
		for i, a := range args {
			u[i] = uint16(toUint32(in.toNumber(a)))
		}
		return unitsToString(u)
	})
	in.method(&str.Object, "fromCodePoint", 1, func(in *Interp, _ Value, args []Value) Value {
		rs := make([]rune, len(args))
		for i, a := range args {
			n := in.toNumber(a)
			if n < 0 || n > 0x10ffff || n != math.Trunc(n) {
				panic(in.rangeError("Invalid code point %s", in.toString(a)))
			}
			rs[i] = rune(n)
		}
		return string(rs)
	})

	method := func(name string, length int, fn func(in *Interp, s string, args []Value) Value) {
		in.method(proto, name, length, func(in *Interp, this Value, args []Value) Value {
			return fn(in, in.thisString(this, name), args)
		})
	}
	method("toString", 0, func(_ *Interp, s string, _ []Value) Value { return s })
	method("valueOf", 0, func(_ *Interp, s string, _ []Value) Value { return s })
	method("charAt", 1, func(in *Interp, s string, args []Value) Value {
		u := units(s)
		i := int(toInteger(in.toNumber(arg(args, 0))))
		if i < 0 || i >= len(u) {
			return ""
		}
		return unitsToString(u[i : i+1])
	})
	method("charCodeAt", 1, func(in *Interp, s string, args []Value) Value {
		u := units(s)
		i := int(toInteger(in.toNumber(arg(args, 0))))
		if i < 0 || i >= len(u) {
			return math.NaN()
		}
		return float64(u[i])
	})
	method("codePointAt", 1, func(in *Interp, s string, args []Value) Value {
		u := units(s)
		i := int(toInteger(in.toNumber(arg(args, 0))))
		if i < 0 || i >= len(u) {
			return Undefined
		}
		if utf16.IsSurrogate(rune(u[i])) && i+1 < len(u) {
			if r := utf16.DecodeRune(rune(u[i]), rune(u[i+1])); r != unicode.ReplacementChar {
				return float64(r)
			}
		}
		return float64(u[i])
	})
	method("at", 1, func(in *Interp, s string, args []Value) Value {
		u := units(s)
		i := int(toInteger(in.toNumber(arg(args, 0))))
		if i < 0 {
			i += len(u)
		}
		if i < 0 || i >= len(u) {
			return Undefined
		}
		return unitsToString(u[i : i+1])
	})
	method("indexOf", 1, func(in *Interp, s string, args []Value) Value {
		u := units(s)
		from := min(int(math.Max(toInteger(in.toNumber(arg(args, 1))), 0)), len(u))
		return float64(indexUnits(u, units(in.toString(arg(args, 0))), from))
	})
	method("lastIndexOf", 1, func(in *Interp, s string, args []Value) Value {
		u := units(s)
		from := len(u)
		if n := in.toNumber(arg(args, 1)); !math.IsNaN(n) {
			from = int(math.Max(toInteger(n), 0))
		}
		return float64(lastIndexUnits(u, units(in.toString(arg(args, 0))), from))
	})
	method("includes", 1, func(in *Interp, s string, args []Value) Value {
		u := units(s)
		from := min(int(math.Max(toInteger(in.toNumber(arg(args, 1))), 0)), len(u))
		return indexUnits(u, units(in.toString(arg(args, 0))), from) >= 0
	})
	method("startsWith", 1, func(in *Interp, s string, args []Value) Value {
		u, p := units(s), units(in.toString(arg(args, 0)))
		pos := min(int(math.Max(toInteger(in.toNumber(arg(args, 1))), 0)), len(u))
		return pos+len(p) <= len(u) && slices.Equal(u[pos:pos+len(p)], p)
	})
	method("endsWith", 1, func(in *Interp, s string, args []Value) Value {
		u, p := units(s), units(in.toString(arg(args, 0)))
		end := len(u)
		if e := arg(args, 1); e != Undefined {
			end = min(int(math.Max(toInteger(in.toNumber(e)), 0)), len(u))
		}
		return end-len(p) >= 0 && slices.Equal(u[end-len(p):end], p)
	})
	method("slice", 2, func(in *Interp, s string, args []Value) Value {
		u := units(s)
		start, end := in.relativeIndex(arg(args, 0), len(u), 0), in.relativeIndex(arg(args, 1), len(u), len(u))
		if start >= end {
			return ""
		}
		return unitsToString(u[start:end])
	})
	method("substring", 2, func(in *Interp, s string, args []Value) Value {
		u := units(s)
		clamp := func(v Value, def int) int {
			if v == Undefined {
				return def
			}
			n := in.toNumber(v)
			if math.IsNaN(n) {
				return 0
			}
			return int(math.Min(math.Max(toInteger(n), 0), float64(len(u))))
		}
		start, end := clamp(arg(args, 0), 0), clamp(arg(args, 1), len(u))
		if start > end {
			start, end = end, start
		}
		return unitsToString(u[start:end])
	})
	method("substr", 2, func(in *Interp, s string, args []Value) Value {
		u := units(s)
		start := in.relativeIndex(arg(args, 0), len(u), 0)
		n := len(u) - start
		if l := arg(args, 1); l != Undefined {
			n = int(math.Min(math.Max(toInteger(in.toNumber(l)), 0), float64(n)))
		}
		return unitsToString(u[start : start+n])
	})
	upper, lower := cases.Upper(language.Und), cases.Lower(language.Und)
	method("toUpperCase", 0, func(_ *Interp, s string, _ []Value) Value { return upper.String(s) })
	method("toLowerCase", 0, func(_ *Interp, s string, _ []Value) Value { return lower.String(s) })
	method("toLocaleUpperCase", 0, func(_ *Interp, s string, _ []Value) Value { return upper.String(s) })
	method("toLocaleLowerCase", 0, func(_ *Interp, s string, _ []Value) Value { return lower.String(s) })
	method("trim", 0, func(_ *Interp, s string, _ []Value) Value { return strings.TrimFunc(s, isJSSpace) })
	method("trimStart", 0, func(_ *Interp, s string, _ []Value) Value { return strings.TrimLeftFunc(s, isJSSpace) })
	method("trimEnd", 0, func(_ *Interp, s string, _ []Value) Value { return strings.TrimRightFunc(s, isJSSpace) })
	pad := func(start bool) func(in *Interp, s string, args []Value) Value {
		return func(in *Interp, s string, args []Value) Value {
			target := int(toInteger(in.toNumber(arg(args, 0))))
			filler := " "
			if f := arg(args, 1); f != Undefined {
				filler = in.toString(f)
			}
			u, fu := units(s), units(filler)
			if target <= len(u) || len(fu) == 0 {
				return s
			}
			fill := make([]uint16, 0, target-len(u))
			for len(fill) < target-len(u) {
				fill = append(fill, fu[:min(len(fu), target-len(u)-len(fill))]...)
			}
			if start {
				return unitsToString(fill) + s
			}
			return s + unitsToString(fill)
		}
	}
	method("padStart", 2, pad(true))
	method("padEnd", 2, pad(false))
	method("repeat", 1, func(in *Interp, s string, args []Value) Value {
		n := toInteger(in.toNumber(arg(args, 0)))
		if n < 0 || math.IsInf(n, 0) || float64(len(s))*n > 1<<28 {
			panic(in.rangeError("Invalid count value: %s", in.toString(arg(args, 0))))
		}
		return strings.Repeat(s, int(n))
	})
	method("concat", 1, func(in *Interp, s string, args []Value) Value {
		var b strings.Builder
		b.WriteString(s)
		for _, a := range args {
			b.WriteString(in.toString(a))
		}
		return b.String()
	})
	method("split", 2, func(in *Interp, s string, args []Value) Value {
		limit := math.MaxUint32
		if l := arg(args, 1); l != Undefined {
			limit = int(toUint32(in.toNumber(l)))
		}
		var parts []Value
		switch sep := arg(args, 0); {
		case sep == Undefined:
			parts = []Value{s}
		case in.toString(sep) == "":
			for _, u := range units(s) {
				parts = append(parts, unitsToString([]uint16{u}))
			}
		default:
			for _, p := range strings.Split(s, in.toString(sep)) {
				parts = append(parts, p)
			}
		}
		if len(parts) > limit {
			parts = parts[:limit]
		}
		return in.newArray(parts)
	})
	method("replace", 2, func(in *Interp, s string, args []Value) Value {
		return in.replace(s, arg(args, 0), arg(args, 1), false)
	})
	method("replaceAll", 2, func(in *Interp, s string, args []Value) Value {
		return in.replace(s, arg(args, 0), arg(args, 1), true)
	})
	coll := collate.New(language.Und)
	method("localeCompare", 1, func(in *Interp, s string, args []Value) Value {
		return float64(coll.CompareString(s, in.toString(arg(args, 0))))
	})
	method("normalize", 0, func(in *Interp, s string, args []Value) Value {
		form := "NFC"
		if f := arg(args, 0); f != Undefined {
			form = in.toString(f)
		}
		switch form {
		case "NFC":
			return unorm.NFC.String(s)
		case "NFD":
			return unorm.NFD.String(s)
		case "NFKC":
			return unorm.NFKC.String(s)
		case "NFKD":
			return unorm.NFKD.String(s)
		}
		panic(in.rangeError("The normalization form should be one of NFC, NFD, NFKC, NFKD."))
	})
}

func (in *Interp) thisNumber(this Value, method string) float64 {
	f, ok := this.(float64)
	if !ok {
		panic(in.typeError("Number.prototype.%s requires that 'this' be a Number", method))
	}
	return f
}

func (in *Interp) installNumber() {
	in.numberProto = newObject(in.objectProto)
	proto := in.numberProto
	num := in.constructor("Number", 1, proto, func(in *Interp, _ Value, args []Value) Value {
		if len(args) == 0 {
			return 0.0
		}
		return in.toNumber(args[0])
	}, nil)
	for name, v := range map[string]float64{
		"MAX_SAFE_INTEGER":  1<<53 - 1,
		"MIN_SAFE_INTEGER":  -(1<<53 - 1),
		"EPSILON":           math.Nextafter(1, 2) - 1,
		"MAX_VALUE":         math.MaxFloat64,
		"MIN_VALUE":         math.SmallestNonzeroFloat64,
		"POSITIVE_INFINITY": math.Inf(1),
		"NEGATIVE_INFINITY": math.Inf(-1),
		"NaN":               math.NaN(),
	} {
		num.setHidden(name, v)
	}
	isInt := func(v Value) bool {
		f, ok := v.(float64)
		return ok && !math.IsInf(f, 0) && f == math.Trunc(f)
	}
	in.method(&num.Object, "isInteger", 1, func(_ *Interp, _ Value, args []Value) Value {
		return isInt(arg(args, 0))
	})
	in.method(&num.Object, "isSafeInteger", 1, func(_ *Interp, _ Value, args []Value) Value {
		return isInt(arg(args, 0)) && math.Abs(arg(args, 0).(float64)) <= 1<<53-1
	})
	in.method(&num.Object, "isFinite", 1, func(_ *Interp, _ Value, args []Value) Value {
		f, ok := arg(args, 0).(float64)
		return ok && !math.IsInf(f, 0) && !math.IsNaN(f)
	})
	in.method(&num.Object, "isNaN", 1, func(_ *Interp, _ Value, args []Value) Value {
		f, ok := arg(args, 0).(float64)
		return ok && math.IsNaN(f)
	})
	in.method(&num.Object, "parseFloat", 1, func(in *Interp, _ Value, args []Value) Value {
		return parseFloat(in.toString(arg(args, 0)))
	})
	in.method(&num.Object, "parseInt", 2, func(in *Interp, _ Value, args []Value) Value {
		return parseInt(in.toString(arg(args, 0)), int(toInt32(in.toNumber(arg(args, 1)))))
	})

	in.method(proto, "toString", 1, func(in *Interp, this Value, args []Value) Value {
		f := in.thisNumber(this, "toString")
		radix := 10
		if r := arg(args, 0); r != Undefined {
			radix = int(toInteger(in.toNumber(r)))
		}
		if radix < 2 || radix > 36 {
			panic(in.rangeError("toString() radix must be between 2 and 36"))
		}
		return formatRadix(f, radix)
	})
	in.method(proto, "toFixed", 1, func(in *Interp, this Value, args []Value) Value {
		f := in.thisNumber(this, "toFixed")
		d := toInteger(in.toNumber(arg(args, 0)))
		if d < 0 || d > 100 {
			panic(in.rangeError("toFixed() digits argument must be between 0 and 100"))
		}
		return toFixed(f, int(d))
	})
	in.method(proto, "toPrecision", 1, func(in *Interp, this Value, args []Value) Value {
		f := in.thisNumber(this, "toPrecision")
		if arg(args, 0) == Undefined {
			return numberToString(f)
		}
		p := toInteger(in.toNumber(arg(args, 0)))
		if p < 1 || p > 100 {
			panic(in.rangeError("toPrecision() argument must be between 1 and 100"))
		}
		return toPrecision(f, int(p))
	})
	in.method(proto, "toLocaleString", 0, func(in *Interp, this Value, _ []Value) Value {
		return groupThousands(in.thisNumber(this, "toLocaleString"))
	})
	in.method(proto, "valueOf", 0, func(in *Interp, this Value, _ []Value) Value {
		return in.thisNumber(this, "valueOf")
	})
}
