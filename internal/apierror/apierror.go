// Package apierror defines the error shape returned to GraphQL callers. Every error
// reaching a response carries a stable machine-readable code under extensions.code.
package apierror

import (
	"errors"
	"fmt"
)

// Code is a stable machine-readable error identifier.
type Code string

const (
	// CodeInvalidQuery marks a query rejected by structural validation.
	CodeInvalidQuery Code = "INVALID_QUERY"
	// CodeInvalidPayload marks a mutation payload rejected by the data layer.
	CodeInvalidPayload Code = "INVALID_PAYLOAD"
	CodeForbidden      Code = "FORBIDDEN"
	CodeNotFound       Code = "ROUTE_NOT_FOUND"
	// CodeValidation marks a document that failed parsing or GraphQL validation.
	CodeValidation Code = "GRAPHQL_VALIDATION"
	// CodeExecution marks an unexpected failure while running an accepted query.
	CodeExecution Code = "GRAPHQL_EXECUTION"
)

// Error is a coded error. It implements graphql-go's ExtendedError so the code is
// copied into the formatted response.
type Error struct {
	Code    Code
	Message string
	Extra   map[string]interface{}
	cause   error
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the wrapped cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.cause
}

// Extensions returns the extensions payload for GraphQL error formatting.
func (e *Error) Extensions() map[string]interface{} {
	ext := make(map[string]interface{}, len(e.Extra)+1)
	for k, v := range e.Extra {
		ext[k] = v
	}
	ext["code"] = string(e.Code)
	return ext
}

// New creates a coded error.
func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a coded error that keeps cause reachable through Unwrap.
func Wrap(code Code, cause error, message string) *Error {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &Error{Code: code, Message: message, cause: cause}
}

// InvalidQuery is shorthand for a structural query rejection.
func InvalidQuery(format string, args ...interface{}) *Error {
	return New(CodeInvalidQuery, format, args...)
}

// WithExtra returns a copy of the error carrying an additional extension entry.
func (e *Error) WithExtra(key string, value interface{}) *Error {
	out := *e
	out.Extra = make(map[string]interface{}, len(e.Extra)+1)
	for k, v := range e.Extra {
		out.Extra[k] = v
	}
	out.Extra[key] = value
	return &out
}

// Normalize reshapes any error for the response envelope. Coded errors pass through
// unchanged; anything else is wrapped as an execution error.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	var coded *Error
	if errors.As(err, &coded) {
		return coded
	}
	return Wrap(CodeExecution, err, err.Error())
}

// CodeOf returns the code for err, or CodeExecution for uncoded errors.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	return Normalize(err).Code
}
