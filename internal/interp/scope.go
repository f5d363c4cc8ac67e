package interp

type binding struct {
	value       Value
	mutable     bool
	initialized bool
}

// scope is one lexical environment. Block scopes share the frame of the
// function they belong to.
type scope struct {
	vars   map[string]*binding
	parent *scope
	fr     *frame
}

func newScope(parent *scope, fr *frame) *scope {
	return &scope{parent: parent, fr: fr}
}

func (s *scope) lookup(name string) *binding {
	for c := s; c != nil; c = c.parent {
		if b, ok := c.vars[name]; ok {
			return b
		}
	}
	return nil
}

func (s *scope) put(name string, b *binding) {
	if s.vars == nil {
		s.vars = make(map[string]*binding, 4)
	}
	s.vars[name] = b
}

func (s *scope) declare(name string, v Value, mutable bool) {
	s.put(name, &binding{value: v, mutable: mutable, initialized: true})
}

func (s *scope) declareUninitialized(name string, mutable bool) {
	s.put(name, &binding{mutable: mutable})
}

func (s *scope) initialize(name string, v Value, mutable bool) {
	if b, ok := s.vars[name]; ok {
		b.value, b.initialized = v, true
		return
	}
	s.declare(name, v, mutable)
}

// copyScope gives a loop iteration fresh copies of the bindings in s.
func copyScope(s *scope) *scope {
	c := newScope(s.parent, s.fr)
	for name, b := range s.vars {
		nb := *b
		c.put(name, &nb)
	}
	return c
}

// frame is one function invocation.
type frame struct {
	this      Value
	hasThis   bool // false in a derived constructor until super() returns
	fn        *Function
	args      []Value
	newTarget *Function
	home      *Object
	co        *coroutine
	parent    *frame // defining frame of an arrow function
}

// thisFrame returns the frame that provides this, super and new.target.
func (f *frame) thisFrame() *frame {
	for f.parent != nil {
		f = f.parent
	}
	return f
}
