// Package errors provides structured error handling for unisql.
//
// Every error carries a Kind (the taxonomy callers branch on) and a
// numeric Code (for logs and programmatic handling), plus optional
// context fields and a wrapped cause.
//
// Error codes follow a hierarchical scheme:
//   - 1xxx: Configuration errors
//   - 2xxx: Connection/pool errors
//   - 3xxx: Statement errors (splitting, classification, syntax)
//   - 4xxx: Execution errors
//   - 5xxx: Introspection errors
//   - 6xxx: Pagination errors
//   - 9xxx: Internal/fault errors
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind is the error taxonomy callers are expected to branch on.
type Kind int

const (
	KindInternal Kind = iota
	KindConnection
	KindSyntax
	KindConstraint
	KindPrivilege
	KindTimeout
	KindIntrospection
	KindRange
	KindFault
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindSyntax:
		return "syntax"
	case KindConstraint:
		return "constraint"
	case KindPrivilege:
		return "privilege"
	case KindTimeout:
		return "timeout"
	case KindIntrospection:
		return "introspection"
	case KindRange:
		return "range"
	case KindFault:
		return "fault"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Code is a numeric error code for logs and programmatic handling.
type Code int

const (
	// Configuration errors (1xxx)
	CodeConfigInvalid Code = 1001
	CodeConfigMissing Code = 1002
	CodeConfigParse   Code = 1003

	// Connection/pool errors (2xxx)
	CodeConnectFailed  Code = 2001
	CodeAuthRejected   Code = 2002
	CodePoolExhausted  Code = 2003
	CodePingFailed     Code = 2004
	CodeUnknownBackend Code = 2005

	// Statement errors (3xxx)
	CodeUnterminatedString  Code = 3001
	CodeUnterminatedComment Code = 3002
	CodeSyntax              Code = 3003
	CodeEmptyScript         Code = 3004

	// Execution errors (4xxx)
	CodeExecFailed     Code = 4001
	CodeExecTimeout    Code = 4002
	CodeExecCancelled  Code = 4003
	CodeConstraint     Code = 4004
	CodePrivilege      Code = 4005
	CodeHandleReleased Code = 4006

	// Introspection errors (5xxx)
	CodeCatalogQuery  Code = 5001
	CodeCatalogDenied Code = 5002
	CodeCatalogShape  Code = 5003

	// Pagination errors (6xxx)
	CodePageOutOfRange Code = 6001
	CodePageSize       Code = 6002

	// Internal/fault errors (9xxx)
	CodeInternal      Code = 9001
	CodeDoubleRelease Code = 9002
	CodeMisuse        Code = 9003
)

// String returns the error code as a string.
func (c Code) String() string {
	return fmt.Sprintf("E%04d", c)
}

// Error is a structured error with kind, code, context, and optional cause.
type Error struct {
	Kind    Kind
	Code    Code
	Message string

	// Context
	Fields map[string]interface{}
	Op     string // Operation that failed (e.g., "Pool.Acquire", "Executor.RunBatch")

	// Error chain
	Cause error

	Time time.Time
}

// Error implements the error interface.
func (e *Error) Error() string {
	var buf strings.Builder

	buf.WriteString(e.Code.String())
	buf.WriteString(" [")
	buf.WriteString(e.Kind.String())
	buf.WriteString("]: ")
	buf.WriteString(e.Message)

	if e.Cause != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Cause.Error())
	}

	return buf.String()
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithField adds a context field to the error.
func (e *Error) WithField(key string, value interface{}) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]interface{})
	}
	e.Fields[key] = value
	return e
}

// WithOp sets the operation name.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// New creates a new error with the given kind, code, and message.
func New(kind Kind, code Code, message string) *Error {
	return &Error{
		Kind:    kind,
		Code:    code,
		Message: message,
		Time:    time.Now(),
	}
}

// Newf creates a new error with a formatted message.
func Newf(kind Kind, code Code, format string, args ...interface{}) *Error {
	return New(kind, code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with a kind, code, and message.
func Wrap(cause error, kind Kind, code Code, message string) *Error {
	e := New(kind, code, message)
	e.Cause = cause
	return e
}

// Wrapf wraps an existing error with a formatted message.
func Wrapf(cause error, kind Kind, code Code, format string, args ...interface{}) *Error {
	return Wrap(cause, kind, code, fmt.Sprintf(format, args...))
}

// Extraction helpers

// KindOf extracts the kind from an error, or returns KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf extracts the code from an error, or returns CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsKind checks if an error has a specific kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// FieldsOf extracts context fields from an error.
func FieldsOf(err error) map[string]interface{} {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}

// Standard library compatibility

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join combines multiple errors.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
