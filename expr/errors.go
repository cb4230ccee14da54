package expr

import (
	"errors"
	"fmt"
)

// ExpressionError reports a structurally invalid condition: wrong operand
// arity, repeated key attributes, a sort-key condition without a partition
// key, or a non-equality operator where equality is required.
type ExpressionError struct {
	Msg string
}

func (e *ExpressionError) Error() string {
	return "invalid expression: " + e.Msg
}

func NewExpressionError(format string, args ...any) *ExpressionError {
	return &ExpressionError{Msg: fmt.Sprintf(format, args...)}
}

// ValidationError reports caller input the engine cannot act on, such as an
// unrecognized lookup strategy or a missing required attribute.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Msg
}

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// EncodingError reports a value that could not be converted to a DynamoDB
// primitive.
type EncodingError struct {
	Attr  string
	Cause error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("failed to encode value for attribute %q: %v", e.Attr, e.Cause)
}

func (e *EncodingError) Unwrap() error { return e.Cause }

// ErrKeyInCondition is returned when an IN comparison is rendered as a key
// condition. The key-condition grammar has no IN form; the dispatcher
// detects this error and reroutes to a batch get or a scan.
var ErrKeyInCondition = errors.New("IN cannot be used in a key condition")
