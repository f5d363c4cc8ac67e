package interp

func (in *Interp) thisPromise(this Value, method string) *Promise {
	p, ok := this.(*Promise)
	if !ok {
		panic(in.typeError("Method Promise.prototype.%s called on incompatible receiver %s", method, describeShort(this)))
	}
	return p
}

// handler adapts an optional JavaScript callback for then.
func (in *Interp) handler(v Value) func(Value) Value {
	f, ok := v.(*Function)
	if !ok {
		return nil
	}
	return func(x Value) Value { return in.invoke(f, Undefined, []Value{x}) }
}

func (in *Interp) installPromise() {
	in.promiseProto = newObject(in.objectProto)
	proto := in.promiseProto
	build := func(in *Interp, args []Value, newTarget *Function) Value {
		executor, ok := arg(args, 0).(*Function)
		if !ok {
			panic(in.typeError("Promise resolver %s is not a function", describeShort(arg(args, 0))))
		}
		p, resolve, reject := in.NewPromise()
		p.proto = in.protoFrom(newTarget, in.promiseProto)
		fns := []Value{
			in.nativeFunc("", 1, func(_ *Interp, _ Value, a []Value) Value { resolve(arg(a, 0)); return Undefined }),
			in.nativeFunc("", 1, func(_ *Interp, _ Value, a []Value) Value { reject(arg(a, 0)); return Undefined }),
		}
		if _, exc := in.guard(func() Value { return in.invoke(executor, Undefined, fns) }); exc != nil {
			reject(exc.Value)
		}
		return p
	}
	ctor := in.constructor("Promise", 1, proto, requiresNew("Promise"), build)

	in.method(&ctor.Object, "resolve", 1, func(in *Interp, _ Value, args []Value) Value {
		return in.Resolve(arg(args, 0))
	})
	in.method(&ctor.Object, "reject", 1, func(in *Interp, _ Value, args []Value) Value {
		return in.Reject(arg(args, 0))
	})
	in.method(&ctor.Object, "all", 1, func(in *Interp, _ Value, args []Value) Value {
		return in.All(in.collect(arg(args, 0)))
	})
	in.method(&ctor.Object, "allSettled", 1, func(in *Interp, _ Value, args []Value) Value {
		values := in.collect(arg(args, 0))
		out, resolve, _ := in.NewPromise()
		results := make([]Value, len(values))
		remaining := len(values)
		if remaining == 0 {
			resolve(in.newArray(results))
			return out
		}
		record := func(i int, status, key string) func(Value) {
			return func(v Value) {
				o := in.NewObject()
				o.Set("status", status)
				o.Set(key, v)
				results[i] = o
				remaining--
				if remaining == 0 {
					resolve(in.newArray(results))
				}
			}
		}
		for i, v := range values {
			in.Resolve(v).addReaction(reaction{
				fulfilled: record(i, "fulfilled", "value"),
				rejected:  record(i, "rejected", "reason"),
			})
		}
		return out
	})
	in.method(&ctor.Object, "race", 1, func(in *Interp, _ Value, args []Value) Value {
		out, resolve, reject := in.NewPromise()
		for _, v := range in.collect(arg(args, 0)) {
			in.Resolve(v).addReaction(reaction{fulfilled: resolve, rejected: reject})
		}
		return out
	})
	in.method(&ctor.Object, "any", 1, func(in *Interp, _ Value, args []Value) Value {
		values := in.collect(arg(args, 0))
		out, resolve, reject := in.NewPromise()
		errs := make([]Value, len(values))
		remaining := len(values)
		fail := func() {
			e := in.newError("Error", "All promises were rejected")
			e.setHidden("name", "AggregateError")
			e.setHidden("errors", in.newArray(errs))
			reject(e)
		}
		if remaining == 0 {
			fail()
			return out
		}
		for i, v := range values {
			in.Resolve(v).addReaction(reaction{
				fulfilled: resolve,
				rejected: func(r Value) {
					errs[i] = r
					remaining--
					if remaining == 0 {
						fail()
					}
				},
			})
		}
		return out
	})

	in.method(proto, "then", 2, func(in *Interp, this Value, args []Value) Value {
		p := in.thisPromise(this, "then")
		return in.then(p, in.handler(arg(args, 0)), in.handler(arg(args, 1)))
	})
	in.method(proto, "catch", 1, func(in *Interp, this Value, args []Value) Value {
		p := in.thisPromise(this, "catch")
		return in.then(p, nil, in.handler(arg(args, 0)))
	})
	in.method(proto, "finally", 1, func(in *Interp, this Value, args []Value) Value {
		p := in.thisPromise(this, "finally")
		f, ok := arg(args, 0).(*Function)
		if !ok {
			return in.then(p, nil, nil)
		}
		return in.then(p,
			func(v Value) Value {
				r := in.invoke(f, Undefined, nil)
				return in.then(in.Resolve(r), func(Value) Value { return v }, nil)
			},
			func(v Value) Value {
				r := in.invoke(f, Undefined, nil)
				return in.then(in.Resolve(r), func(Value) Value { panic(in.exception(v)) }, nil)
			})
	})
}
