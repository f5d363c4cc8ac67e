package graph

import (
	"errors"
	"fmt"
)

// RuntimeErrorCode classifies graph resolution failures.
type RuntimeErrorCode string

const (
	// ErrCodeUndefinedReference: an input names no variable and no builtin.
	ErrCodeUndefinedReference RuntimeErrorCode = "UNDEFINED_REFERENCE"

	// ErrCodeDuplicateDefinition: two live variables share a name.
	ErrCodeDuplicateDefinition RuntimeErrorCode = "DUPLICATE_DEFINITION"

	// ErrCodeCircularDefinition: the variable depends on itself.
	ErrCodeCircularDefinition RuntimeErrorCode = "CIRCULAR_DEFINITION"
)

// RuntimeError is the rejection reason of a variable the graph could not
// compute. Name is the input or variable name involved.
type RuntimeError struct {
	Code    RuntimeErrorCode
	Name    string
	Message string
}

// Error returns the message alone, as a notebook shows it.
func (e *RuntimeError) Error() string {
	return e.Message
}

// ErrorName names the error class seen by cell code.
func (e *RuntimeError) ErrorName() string {
	return "RuntimeError"
}

// NewUndefinedReference reports an input with no producer.
func NewUndefinedReference(name string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUndefinedReference,
		Name:    name,
		Message: fmt.Sprintf("%s is not defined", name),
	}
}

// NewDuplicateDefinition reports a name defined by more than one variable.
func NewDuplicateDefinition(name string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeDuplicateDefinition,
		Name:    name,
		Message: fmt.Sprintf("%s is defined more than once", name),
	}
}

// NewCircularDefinition reports a variable on a dependency cycle.
func NewCircularDefinition(name string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeCircularDefinition,
		Name:    name,
		Message: "circular definition",
	}
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Code == code
}

// IsUndefinedReference checks if an error is an undefined reference.
func IsUndefinedReference(err error) bool {
	return hasCode(err, ErrCodeUndefinedReference)
}

// IsDuplicateDefinition checks if an error is a duplicate definition.
func IsDuplicateDefinition(err error) bool {
	return hasCode(err, ErrCodeDuplicateDefinition)
}

// IsCircularDefinition checks if an error is a circular definition.
func IsCircularDefinition(err error) bool {
	return hasCode(err, ErrCodeCircularDefinition)
}
