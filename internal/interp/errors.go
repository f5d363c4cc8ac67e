package interp

import (
	"errors"
	"fmt"
	"log/slog"
)

// Exception is a JavaScript value that was thrown and not caught.
type Exception struct {
	Value Value
	// Source names the compiled unit the exception was raised in.
	Source string
	// Offset is the byte offset within that unit's source, -1 when unknown.
	Offset int
}

func (e *Exception) Error() string {
	return describeThrown(e.Value)
}

// Unwrap returns the Go error an Error object was created from, if any.
func (e *Exception) Unwrap() error {
	if o, ok := e.Value.(*Object); ok {
		if err, ok := o.internal.(error); ok {
			return err
		}
	}
	return nil
}

// CompileError reports source the interpreter cannot compile.
type CompileError struct {
	Message string
	Offset  int
}

func (e *CompileError) Error() string {
	return "SyntaxError: " + e.Message
}

// IsCompileError reports whether err is a CompileError.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}

// abortSignal unwinds a coroutine abandoned by Shutdown. It is never caught
// by JavaScript code.
type abortSignal struct{}

func rethrowAbort(r any) {
	if _, ok := r.(abortSignal); ok {
		panic(r)
	}
}

type position struct {
	unit string
	off  int
}

func describeThrown(v Value) string {
	if o, ok := v.(*Object); ok && o.Class == "Error" {
		return errorString(o)
	}
	return "Uncaught " + Inspect(v)
}

func errorString(o *Object) string {
	name, _ := o.Get("name").(string)
	msg, _ := o.Get("message").(string)
	switch {
	case name == "":
		return msg
	case msg == "":
		return name
	}
	return name + ": " + msg
}

func (in *Interp) newError(kind, msg string) *Object {
	proto, ok := in.errorProtos[kind]
	if !ok {
		proto = in.errorProto
	}
	o := newObject(proto)
	o.Class = "Error"
	o.setHidden("message", msg)
	return o
}

func (in *Interp) exception(v Value) *Exception {
	exc := &Exception{Value: v, Source: in.pos.unit, Offset: in.pos.off}
	if o, ok := v.(*Object); ok && o.Class == "Error" {
		if o.origin == nil {
			pos := in.pos
			o.origin = &pos
		}
		exc.Source, exc.Offset = o.origin.unit, o.origin.off
	}
	return exc
}

func (in *Interp) throwError(kind, format string, args ...any) *Exception {
	return in.exception(in.newError(kind, fmt.Sprintf(format, args...)))
}

func (in *Interp) typeError(format string, args ...any) *Exception {
	return in.throwError("TypeError", format, args...)
}

func (in *Interp) rangeError(format string, args ...any) *Exception {
	return in.throwError("RangeError", format, args...)
}

func (in *Interp) referenceError(format string, args ...any) *Exception {
	return in.throwError("ReferenceError", format, args...)
}

// recovered turns a recovered panic into an exception. Aborts keep unwinding.
func (in *Interp) recovered(r any) *Exception {
	rethrowAbort(r)
	if exc, ok := r.(*Exception); ok {
		return exc
	}
	in.logger.Error("recovered panic in script", slog.Any("panic", r))
	return in.throwError("Error", "internal error: %v", r)
}

type errorNamer interface {
	ErrorName() string
}

// ErrorValue converts a Go error into a JavaScript value suitable for a
// rejection. Exceptions give back their thrown value; other errors become
// Error objects that remember err.
func (in *Interp) ErrorValue(err error) Value {
	var exc *Exception
	if errors.As(err, &exc) {
		return exc.Value
	}
	o := in.newError("Error", err.Error())
	var named errorNamer
	if errors.As(err, &named) {
		if proto, ok := in.errorProtos[named.ErrorName()]; ok {
			o.proto = proto
		} else {
			o.setHidden("name", named.ErrorName())
		}
	}
	o.internal = err
	return o
}

// AsError converts a thrown or rejected value into a Go error. Error objects
// made by ErrorValue give back the original error.
func AsError(v Value) error {
	if o, ok := v.(*Object); ok {
		if err, ok := o.internal.(error); ok {
			return err
		}
	}
	exc := &Exception{Value: v, Offset: -1}
	if o, ok := v.(*Object); ok && o.origin != nil {
		exc.Source, exc.Offset = o.origin.unit, o.origin.off
	}
	return exc
}
