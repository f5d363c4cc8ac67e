package interp

import (
	"errors"
	"math"
	"math/big"
	"strconv"
	"strings"
	"unicode"
)

const digitChars = "0123456789abcdefghijklmnopqrstuvwxyz"

// numberToString formats f the way Number.prototype.toString does.
func numberToString(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	var b strings.Builder
	if f < 0 {
		b.WriteByte('-')
		f = -f
	}
	mant, exp, _ := strings.Cut(strconv.FormatFloat(f, 'e', -1, 64), "e")
	digits := strings.Replace(mant, ".", "", 1)
	e, _ := strconv.Atoi(exp)
	k, n := len(digits), e+1
	switch {
	case k <= n && n <= 21:
		b.WriteString(digits)
		b.WriteString(strings.Repeat("0", n-k))
	case 0 < n && n <= 21:
		b.WriteString(digits[:n])
		b.WriteByte('.')
		b.WriteString(digits[n:])
	case -6 < n && n <= 0:
		b.WriteString("0.")
		b.WriteString(strings.Repeat("0", -n))
		b.WriteString(digits)
	default:
		b.WriteString(digits[:1])
		if k > 1 {
			b.WriteByte('.')
			b.WriteString(digits[1:])
		}
		b.WriteByte('e')
		if n-1 >= 0 {
			b.WriteByte('+')
		}
		b.WriteString(strconv.Itoa(n - 1))
	}
	return b.String()
}

func isJSSpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\ufeff'
}

// stringToNumber converts a string the way Number(s) does.
func stringToNumber(s string) float64 {
	s = strings.TrimFunc(s, isJSSpace)
	switch s {
	case "":
		return 0
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	if len(s) > 2 && s[0] == '0' {
		if base := radixPrefix(s[1]); base != 0 {
			return parseDigits(s[2:], base)
		}
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r == '.' || r == 'e' || r == 'E' || r == '+' || r == '-') {
			return math.NaN()
		}
	}
	return parseDecimal(s)
}

func radixPrefix(c byte) int {
	switch c {
	case 'x', 'X':
		return 16
	case 'o', 'O':
		return 8
	case 'b', 'B':
		return 2
	}
	return 0
}

func parseDecimal(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		var ne *strconv.NumError
		if errors.As(err, &ne) && errors.Is(ne.Err, strconv.ErrRange) {
			return f
		}
		return math.NaN()
	}
	return f
}

func digitValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'z':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10
	}
	return 99
}

func parseDigits(s string, base int) float64 {
	if s == "" {
		return math.NaN()
	}
	var f float64
	for i := 0; i < len(s); i++ {
		d := digitValue(s[i])
		if d >= base {
			return math.NaN()
		}
		f = f*float64(base) + float64(d)
	}
	return f
}

// parseNumberLiteral parses a numeric literal from source.
func parseNumberLiteral(s string) (float64, bool) {
	s = strings.ReplaceAll(s, "_", "")
	if strings.HasSuffix(s, "n") {
		return 0, false
	}
	if len(s) > 2 && s[0] == '0' {
		if base := radixPrefix(s[1]); base != 0 {
			f := parseDigits(s[2:], base)
			return f, !math.IsNaN(f)
		}
	}
	if len(s) > 1 && s[0] == '0' && strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '7' }) < 0 {
		return parseDigits(s[1:], 8), true
	}
	f := parseDecimal(s)
	return f, !math.IsNaN(f)
}

func toUint32(f float64) uint32 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	t := math.Mod(math.Trunc(f), 4294967296)
	if t < 0 {
		t += 4294967296
	}
	return uint32(t)
}

func toInt32(f float64) int32 {
	return int32(toUint32(f))
}

func toInteger(f float64) float64 {
	if math.IsNaN(f) {
		return 0
	}
	return math.Trunc(f)
}

// relativeIndex resolves a relative start or end argument against length.
func (in *Interp) relativeIndex(v Value, length, def int) int {
	if v == Undefined {
		return def
	}
	n := toInteger(in.toNumber(v))
	if n < 0 {
		return int(math.Max(float64(length)+n, 0))
	}
	return int(math.Min(n, float64(length)))
}

func formatRadix(f float64, radix int) string {
	if radix == 10 || math.IsNaN(f) || math.IsInf(f, 0) {
		return numberToString(f)
	}
	neg := f < 0
	if neg {
		f = -f
	}
	ip, fp := math.Modf(f)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	if ip < 1<<53 {
		b.WriteString(strconv.FormatInt(int64(ip), radix))
	} else {
		bi, _ := new(big.Float).SetFloat64(ip).Int(nil)
		b.WriteString(bi.Text(radix))
	}
	if fp > 0 {
		b.WriteByte('.')
		for i := 0; i < 52 && fp > 0; i++ {
			fp *= float64(radix)
			d := int(fp)
			fp -= float64(d)
			b.WriteByte(digitChars[d])
		}
	}
	return b.String()
}

// toFixed rounds half away from zero on the exact binary value.
func toFixed(x float64, digits int) string {
	if math.IsNaN(x) {
		return "NaN"
	}
	if math.Abs(x) >= 1e21 || math.IsInf(x, 0) {
		return numberToString(x)
	}
	neg := x < 0
	if neg {
		x = -x
	}
	exact := new(big.Float).SetFloat64(x).Text('f', 1100)
	ip, fp, _ := strings.Cut(exact, ".")
	fp += strings.Repeat("0", digits+1)
	all := ip + fp[:digits]
	if fp[digits] >= '5' {
		all = incrementDecimal(all)
	}
	intLen := len(all) - digits
	out := all[:intLen]
	if digits > 0 {
		out += "." + all[intLen:]
	}
	if neg {
		out = "-" + out
	}
	return out
}

func incrementDecimal(s string) string {
	b := []byte(s)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < '9' {
			b[i]++
			return string(b)
		}
		b[i] = '0'
	}
	return "1" + string(b)
}

func toPrecision(x float64, p int) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return numberToString(x)
	}
	if x == 0 {
		return toFixed(0, p-1)
	}
	s := strconv.FormatFloat(x, 'e', p-1, 64)
	mant, exp, _ := strings.Cut(s, "e")
	e, _ := strconv.Atoi(exp)
	if e < -6 || e >= p {
		sign := "+"
		if e < 0 {
			sign = "-"
			e = -e
		}
		return mant + "e" + sign + strconv.Itoa(e)
	}
	return toFixed(x, p-1-e)
}

// groupThousands formats x with comma separators and at most three decimals.
func groupThousands(x float64) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return numberToString(x)
	}
	s := toFixed(x, 3)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	ip, fp, _ := strings.Cut(s, ".")
	fp = strings.TrimRight(fp, "0")
	var b strings.Builder
	if neg && (strings.Trim(ip, "0") != "" || fp != "") {
		b.WriteByte('-')
	}
	for i, c := range ip {
		if i > 0 && (len(ip)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if fp != "" {
		b.WriteByte('.')
		b.WriteString(fp)
	}
	return b.String()
}

func jsPow(x, y float64) float64 {
	if math.IsNaN(y) || (math.Abs(x) == 1 && math.IsInf(y, 0)) {
		return math.NaN()
	}
	return math.Pow(x, y)
}

func jsRound(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) || x == 0 {
		return x
	}
	if x > 0 && x < 0.5 {
		return 0
	}
	if x < 0 && x >= -0.5 {
		return math.Copysign(0, -1)
	}
	r := math.Floor(x)
	if x-r >= 0.5 {
		r++
	}
	return r
}
