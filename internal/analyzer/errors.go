package analyzer

import (
	"errors"
	"fmt"
	"strings"
)

// SyntaxError is a per-cell analysis failure.
// Line and Column are 1-based and relative to the analyzed cell code.
type SyntaxError struct {
	Message string
	Offset  int // byte offset in the analyzed code
	Line    int
	Column  int
}

func (e *SyntaxError) Error() string {
	if e.Line == 0 {
		return "SyntaxError: " + e.Message
	}
	return fmt.Sprintf("SyntaxError: %s (%d:%d)", e.Message, e.Line, e.Column)
}

// IsSyntaxError returns true if err is (or wraps) a SyntaxError.
func IsSyntaxError(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
}

// syntaxErrorAt builds a SyntaxError located at offset in code.
func syntaxErrorAt(code string, offset int, format string, args ...any) *SyntaxError {
	if offset < 0 {
		offset = 0
	}
	if offset > len(code) {
		offset = len(code)
	}
	line, col := Position(code, offset)
	return &SyntaxError{
		Message: fmt.Sprintf(format, args...),
		Offset:  offset,
		Line:    line,
		Column:  col,
	}
}

// Position converts a byte offset of code to a 1-based line and column.
func Position(code string, offset int) (line, col int) {
	if offset > len(code) {
		offset = len(code)
	}
	before := code[:offset]
	line = strings.Count(before, "\n") + 1
	col = offset - (strings.LastIndexByte(before, '\n') + 1) + 1
	return line, col
}
