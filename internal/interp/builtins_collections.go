package interp

import (
	"math"
	"strings"
	"time"
)

type nanKey struct{}

type entry struct {
	key, value Value
	deleted    bool
}

// collection backs Map and Set. Entries keep insertion order; deleted
// entries stay in place until no iteration is running.
type collection struct {
	set       bool
	index     map[Value]*entry
	entries   []*entry
	size      int
	iterating int
}

func collectionKey(v Value) Value {
	if f, ok := v.(float64); ok {
		if math.IsNaN(f) {
			return nanKey{}
		}
		if f == 0 {
			return 0.0
		}
	}
	return v
}

func (c *collection) len() int { return c.size }

func (c *collection) get(k Value) (*entry, bool) {
	e, ok := c.index[collectionKey(k)]
	return e, ok
}

func (c *collection) put(k, v Value) {
	if e, ok := c.get(k); ok {
		e.value = v
		return
	}
	if f, ok := k.(float64); ok && f == 0 {
		k = 0.0
	}
	e := &entry{key: k, value: v}
	c.index[collectionKey(k)] = e
	c.entries = append(c.entries, e)
	c.size++
}

func (c *collection) remove(k Value) bool {
	e, ok := c.get(k)
	if !ok {
		return false
	}
	e.deleted = true
	delete(c.index, collectionKey(k))
	c.size--
	c.compact()
	return true
}

func (c *collection) clear() {
	for _, e := range c.entries {
		e.deleted = true
	}
	clear(c.index)
	c.size = 0
	c.compact()
}

func (c *collection) compact() {
	if c.iterating > 0 {
		return
	}
	live := c.entries[:0]
	for _, e := range c.entries {
		if !e.deleted {
			live = append(live, e)
		}
	}
	clear(c.entries[len(live):])
	c.entries = live
}

// each visits live entries in order, including ones added during the visit.
func (c *collection) each(fn func(e *entry) bool) {
	c.iterating++
	defer func() {
		c.iterating--
		c.compact()
	}()
	for i := 0; i < len(c.entries); i++ {
		if e := c.entries[i]; !e.deleted && !fn(e) {
			return
		}
	}
}

func (in *Interp) newCollection(set bool) *Object {
	proto, class := in.mapProto, "Map"
	if set {
		proto, class = in.setProto, "Set"
	}
	o := newObject(proto)
	o.Class = class
	o.internal = &collection{set: set, index: make(map[Value]*entry)}
	return o
}

func (in *Interp) thisCollection(this Value, set bool, method string) *collection {
	if o, ok := this.(*Object); ok {
		if c, ok := o.internal.(*collection); ok && c.set == set {
			return c
		}
	}
	class := "Map"
	if set {
		class = "Set"
	}
	panic(in.typeError("Method %s.prototype.%s called on incompatible receiver %s", class, method, describeShort(this)))
}

func (in *Interp) installCollections() {
	in.mapProto = newObject(in.objectProto)
	in.setProto = newObject(in.objectProto)
	for _, set := range []bool{false, true} {
		in.installCollection(set)
	}
}

func (in *Interp) installCollection(set bool) {
	name, proto := "Map", in.mapProto
	if set {
		name, proto = "Set", in.setProto
	}
	in.constructor(name, 0, proto, requiresNew(name), func(in *Interp, args []Value, newTarget *Function) Value {
		o := in.newCollection(set)
		o.proto = in.protoFrom(newTarget, proto)
		c := o.internal.(*collection)
		if src := arg(args, 0); !isNullish(src) {
			in.iterate(src, func(v Value) bool {
				if set {
					c.put(v, v)
				} else {
					if !isObject(v) {
						panic(in.typeError("Iterator value %s is not an entry object", describeShort(v)))
					}
					c.put(in.getMember(v, 0.0), in.getMember(v, 1.0))
				}
				return true
			})
		}
		return o
	})
	method := func(m string, length int, fn func(in *Interp, this Value, c *collection, args []Value) Value) {
		in.method(proto, m, length, func(in *Interp, this Value, args []Value) Value {
			return fn(in, this, in.thisCollection(this, set, m), args)
		})
	}
	if set {
		method("add", 1, func(_ *Interp, this Value, c *collection, args []Value) Value {
			c.put(arg(args, 0), arg(args, 0))
			return this
		})
	} else {
		method("get", 1, func(_ *Interp, _ Value, c *collection, args []Value) Value {
			if e, ok := c.get(arg(args, 0)); ok {
				return e.value
			}
			return Undefined
		})
		method("set", 2, func(_ *Interp, this Value, c *collection, args []Value) Value {
			c.put(arg(args, 0), arg(args, 1))
			return this
		})
	}
	method("has", 1, func(_ *Interp, _ Value, c *collection, args []Value) Value {
		_, ok := c.get(arg(args, 0))
		return ok
	})
	method("delete", 1, func(_ *Interp, _ Value, c *collection, args []Value) Value {
		return c.remove(arg(args, 0))
	})
	method("clear", 0, func(_ *Interp, _ Value, c *collection, _ []Value) Value {
		c.clear()
		return Undefined
	})
	method("forEach", 1, func(in *Interp, this Value, c *collection, args []Value) Value {
		f := in.callback(arg(args, 0), "forEach")
		c.each(func(e *entry) bool {
			in.invoke(f, arg(args, 1), []Value{e.value, e.key, this})
			return true
		})
		return Undefined
	})
	listing := func(pick func(e *entry) Value) func(in *Interp, _ Value, c *collection, _ []Value) Value {
		return func(in *Interp, _ Value, c *collection, _ []Value) Value {
			var out []Value
			c.each(func(e *entry) bool {
				out = append(out, pick(e))
				return true
			})
			return in.newArray(out)
		}
	}
	method("keys", 0, listing(func(e *entry) Value { return e.key }))
	method("values", 0, listing(func(e *entry) Value { return e.value }))
	method("entries", 0, listing(func(e *entry) Value { return in.newArray([]Value{e.key, e.value}) }))
}

const msPerDay = 86400000

// dateTime converts a time value to a UTC time.
func dateTime(ms float64) time.Time {
	return time.UnixMilli(int64(ms)).UTC()
}

func timeClip(ms float64) float64 {
	if math.IsNaN(ms) || math.Abs(ms) > 8.64e15 {
		return math.NaN()
	}
	return math.Trunc(ms) + 0
}

// makeDate builds a time value from calendar fields, normalizing overflow
// the way the Date constructor does.
func makeDate(f [7]float64) float64 {
	for _, v := range f {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return math.NaN()
		}
	}
	y, mo := f[0], f[1]
	y += math.Floor(mo / 12)
	mo = math.Mod(mo, 12)
	if mo < 0 {
		mo += 12
	}
	days := float64(time.Date(int(y), time.Month(int(mo)+1), 1, 0, 0, 0, 0, time.UTC).Unix() / 86400)
	days += math.Trunc(f[2]) - 1
	ms := days*msPerDay + math.Trunc(f[3])*3600000 + math.Trunc(f[4])*60000 + math.Trunc(f[5])*1000 + math.Trunc(f[6])
	return timeClip(ms)
}

func dateFields(ms float64) [7]float64 {
	t := dateTime(ms)
	return [7]float64{
		float64(t.Year()), float64(t.Month() - 1), float64(t.Day()),
		float64(t.Hour()), float64(t.Minute()), float64(t.Second()), float64(t.Nanosecond() / 1e6),
	}
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006-01",
	"2006",
	"Mon Jan 02 2006 15:04:05 GMT-0700",
	time.RFC1123,
	"January 2, 2006",
	"Jan 2, 2006",
	"2006/01/02",
}

func parseDate(s string) float64 {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, " ("); i > 0 {
		s = s[:i]
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return float64(t.UnixMilli())
		}
	}
	return math.NaN()
}

func (in *Interp) newDate(ms float64) *Object {
	d := newObject(in.dateProto)
	d.Class = "Date"
	d.internal = timeClip(ms)
	return d
}

func (in *Interp) thisDate(this Value) *Object {
	if o, ok := this.(*Object); ok && o.Class == "Date" {
		return o
	}
	panic(in.typeError("this is not a Date object."))
}

func dateValue(o *Object) float64 {
	f, _ := o.internal.(float64)
	return f
}

func (in *Interp) nowMillis() float64 {
	return float64(in.now().UnixMilli())
}

func isoString(ms float64) string {
	return dateTime(ms).Format("2006-01-02T15:04:05.000Z")
}

func (in *Interp) installDate() {
	in.dateProto = newObject(in.objectProto)
	proto := in.dateProto
	build := func(in *Interp, args []Value, newTarget *Function) Value {
		var ms float64
		switch len(args) {
		case 0:
			ms = in.nowMillis()
		case 1:
			if o, ok := args[0].(*Object); ok && o.Class == "Date" {
				ms = dateValue(o)
				break
			}
			p := in.toPrimitive(args[0], "default")
			if v, ok := p.(string); ok {
				ms = parseDate(v)
			} else {
				ms = in.toNumber(p)
			}
		default:
			f := [7]float64{0, 0, 1, 0, 0, 0, 0}
			for i := 0; i < len(args) && i < 7; i++ {
				f[i] = in.toNumber(args[i])
			}
			if f[0] >= 0 && f[0] <= 99 && f[0] == math.Trunc(f[0]) {
				f[0] += 1900
			}
			ms = makeDate(f)
		}
		d := in.newDate(ms)
		d.proto = in.protoFrom(newTarget, in.dateProto)
		return d
	}
	date := in.constructor("Date", 7, proto, func(in *Interp, _ Value, _ []Value) Value {
		return dateTime(in.nowMillis()).Format("Mon Jan 02 2006 15:04:05 GMT+0000 (Coordinated Universal Time)")
	}, build)
	in.method(&date.Object, "now", 0, func(in *Interp, _ Value, _ []Value) Value {
		return in.nowMillis()
	})
	in.method(&date.Object, "parse", 1, func(in *Interp, _ Value, args []Value) Value {
		return parseDate(in.toString(arg(args, 0)))
	})
	in.method(&date.Object, "UTC", 7, func(in *Interp, _ Value, args []Value) Value {
		f := [7]float64{math.NaN(), 0, 1, 0, 0, 0, 0}
		for i := 0; i < len(args) && i < 7; i++ {
			f[i] = in.toNumber(args[i])
		}
		return makeDate(f)
	})

	getter := func(name string, fn func(t time.Time) float64) {
		get := func(in *Interp, this Value, _ []Value) Value {
			ms := dateValue(in.thisDate(this))
			if math.IsNaN(ms) {
				return math.NaN()
			}
			return fn(dateTime(ms))
		}
		in.method(proto, "get"+name, 0, get)
		in.method(proto, "getUTC"+name, 0, get)
	}
	getter("FullYear", func(t time.Time) float64 { return float64(t.Year()) })
	getter("Month", func(t time.Time) float64 { return float64(t.Month() - 1) })
	getter("Date", func(t time.Time) float64 { return float64(t.Day()) })
	getter("Day", func(t time.Time) float64 { return float64(t.Weekday()) })
	getter("Hours", func(t time.Time) float64 { return float64(t.Hour()) })
	getter("Minutes", func(t time.Time) float64 { return float64(t.Minute()) })
	getter("Seconds", func(t time.Time) float64 { return float64(t.Second()) })
	getter("Milliseconds", func(t time.Time) float64 { return float64(t.Nanosecond() / 1e6) })

	// setters take consecutive fields starting at the named one
	setter := func(name string, field, count int) {
		set := func(in *Interp, this Value, args []Value) Value {
			d := in.thisDate(this)
			ms := dateValue(d)
			if math.IsNaN(ms) {
				if field != 0 {
					return math.NaN()
				}
				ms = 0
			}
			f := dateFields(ms)
			for i := 0; i < count && i < len(args); i++ {
				f[field+i] = in.toNumber(args[i])
			}
			if len(args) == 0 {
				f[field] = math.NaN()
			}
			d.internal = makeDate(f)
			return d.internal
		}
		in.method(proto, "set"+name, count, set)
		in.method(proto, "setUTC"+name, count, set)
	}
	setter("FullYear", 0, 3)
	setter("Month", 1, 2)
	setter("Date", 2, 1)
	setter("Hours", 3, 4)
	setter("Minutes", 4, 3)
	setter("Seconds", 5, 2)
	setter("Milliseconds", 6, 1)
	in.method(proto, "setTime", 1, func(in *Interp, this Value, args []Value) Value {
		d := in.thisDate(this)
		d.internal = timeClip(in.toNumber(arg(args, 0)))
		return d.internal
	})

	value := func(in *Interp, this Value, _ []Value) Value { return dateValue(in.thisDate(this)) }
	in.method(proto, "getTime", 0, value)
	in.method(proto, "valueOf", 0, value)
	in.method(proto, "getTimezoneOffset", 0, func(in *Interp, this Value, _ []Value) Value {
		in.thisDate(this)
		return 0.0
	})
	format := func(name, layout string) {
		in.method(proto, name, 0, func(in *Interp, this Value, _ []Value) Value {
			ms := dateValue(in.thisDate(this))
			if math.IsNaN(ms) {
				return "Invalid Date"
			}
			return dateTime(ms).Format(layout)
		})
	}
	format("toString", "Mon Jan 02 2006 15:04:05 GMT+0000 (Coordinated Universal Time)")
	format("toDateString", "Mon Jan 02 2006")
	format("toTimeString", "15:04:05 GMT+0000 (Coordinated Universal Time)")
	format("toUTCString", "Mon, 02 Jan 2006 15:04:05 GMT")
	format("toLocaleString", "1/2/2006, 3:04:05 PM")
	format("toLocaleDateString", "1/2/2006")
	format("toLocaleTimeString", "3:04:05 PM")
	in.method(proto, "toISOString", 0, func(in *Interp, this Value, _ []Value) Value {
		ms := dateValue(in.thisDate(this))
		if math.IsNaN(ms) {
			panic(in.rangeError("Invalid time value"))
		}
		return isoString(ms)
	})
	in.method(proto, "toJSON", 1, func(in *Interp, this Value, _ []Value) Value {
		ms := dateValue(in.thisDate(this))
		if math.IsNaN(ms) {
			return Null
		}
		return isoString(ms)
	})
}
