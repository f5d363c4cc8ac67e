package analyzer

// DefaultGlobals are names that never count as cell inputs: they resolve to
// the language's own global objects rather than to other cells.
var DefaultGlobals = []string{
	"Array", "ArrayBuffer", "Atomics", "BigInt", "BigInt64Array", "BigUint64Array",
	"Boolean", "DataView", "Date", "Error", "EvalError", "Float32Array",
	"Float64Array", "Function", "Infinity", "Int16Array", "Int32Array", "Int8Array",
	"Intl", "JSON", "Map", "Math", "NaN", "Number", "Object", "Promise", "Proxy",
	"RangeError", "ReferenceError", "Reflect", "RegExp", "Set", "String", "Symbol",
	"SyntaxError", "TypeError", "URIError", "Uint16Array", "Uint32Array", "Uint8Array",
	"Uint8ClampedArray", "WeakMap", "WeakSet", "clearInterval", "clearTimeout",
	"console", "decodeURI", "decodeURIComponent", "encodeURI", "encodeURIComponent",
	"globalThis", "isFinite", "isNaN", "parseFloat", "parseInt", "queueMicrotask",
	"setInterval", "setTimeout", "structuredClone", "undefined",
}

func globalSet(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}
