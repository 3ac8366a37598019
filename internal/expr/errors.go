package expr

import (
	"errors"
	"fmt"
	"strings"
)

// Position is a 1-based column within an expression.
type Position struct {
	Column int
}

// EvaluationError is implemented by every error the sandbox produces while
// preparing or evaluating an expression.
type EvaluationError interface {
	error
	evaluationError()
}

// IsEvaluationError reports whether err (or anything it wraps) is a sandbox error.
func IsEvaluationError(err error) bool {
	var ee EvaluationError
	return errors.As(err, &ee)
}

type baseError struct {
	pos Position
	msg string
}

func (e *baseError) Position() Position { return e.pos }
func (e *baseError) Error() string      { return fmt.Sprintf("col %d: %s", e.pos.Column, e.msg) }
func (e *baseError) evaluationError()   {}

// LexError is a tokenization failure.
type LexError struct {
	baseError
}

// NewLexError creates a lexer error at pos.
func NewLexError(pos Position, msg string) *LexError {
	return &LexError{baseError: baseError{pos: pos, msg: msg}}
}

// ParseError is a syntax error.
type ParseError struct {
	baseError
}

// NewParseErrorf creates a formatted parse error at pos.
func NewParseErrorf(pos Position, format string, args ...any) *ParseError {
	return &ParseError{baseError: baseError{pos: pos, msg: fmt.Sprintf(format, args...)}}
}

// UnknownParameterReference is raised when ${NAME} names no computed parameter.
type UnknownParameterReference struct {
	Name string
}

func (e *UnknownParameterReference) Error() string {
	return fmt.Sprintf("unknown computed parameter reference ${%s}", e.Name)
}
func (e *UnknownParameterReference) evaluationError() {}

// CyclicReferenceError is raised when reference substitution does not terminate.
type CyclicReferenceError struct {
	Remaining []string
	Passes    int
}

func (e *CyclicReferenceError) Error() string {
	return fmt.Sprintf("cyclic computed parameter reference: %s still unresolved after %d passes",
		strings.Join(e.Remaining, ", "), e.Passes)
}
func (e *CyclicReferenceError) evaluationError() {}

// UnknownIdentifierError lists every identifier that is neither a column nor allow-listed.
type UnknownIdentifierError struct {
	Tokens []string
}

func (e *UnknownIdentifierError) Error() string {
	return fmt.Sprintf("unknown identifiers: %s", strings.Join(e.Tokens, ", "))
}
func (e *UnknownIdentifierError) evaluationError() {}

// ArgumentError is a call with the wrong number of arguments.
type ArgumentError struct {
	Function string
	Got      int
	Min, Max int
}

func (e *ArgumentError) Error() string {
	if e.Min == e.Max {
		return fmt.Sprintf("%s() takes %d arguments, got %d", e.Function, e.Min, e.Got)
	}
	if e.Max < 0 {
		return fmt.Sprintf("%s() takes at least %d arguments, got %d", e.Function, e.Min, e.Got)
	}
	return fmt.Sprintf("%s() takes %d to %d arguments, got %d", e.Function, e.Min, e.Max, e.Got)
}
func (e *ArgumentError) evaluationError() {}

// ColumnTypeError is raised when a referenced column holds non-numeric data.
type ColumnTypeError struct {
	Column string
}

func (e *ColumnTypeError) Error() string {
	return fmt.Sprintf("column %s is not numeric", e.Column)
}
func (e *ColumnTypeError) evaluationError() {}

// FunctionError wraps a failure raised inside a vector function.
type FunctionError struct {
	Function string
	Err      error
}

func (e *FunctionError) Error() string {
	return fmt.Sprintf("%s(): %v", e.Function, e.Err)
}
func (e *FunctionError) Unwrap() error    { return e.Err }
func (e *FunctionError) evaluationError() {}
