// Package errcode provides layered error codes shared by the admission packages.
//
// A code has the form MMBBBB: MM is the two digit module code, BBBB the business code.
// Two LayeredError values match with errors.Is when their codes are equal, so call sites
// can compare against package-level sentinels even after Wrap or WithData.
package errcode

import (
	"fmt"
	"net/http"
)

// LayeredError is an error with a stable code, a module name and an HTTP status mapping.
type LayeredError struct {
	module     string
	code       int
	msgKey     string
	msg        string
	httpStatus int
	data       map[string]interface{}
	cause      error
}

// New creates a layered error. httpStatus defaults to 500.
func New(moduleCode, businessCode int, module, msgKey, msg string, httpStatus ...int) *LayeredError {
	status := http.StatusInternalServerError
	if len(httpStatus) > 0 {
		status = httpStatus[0]
	}
	return &LayeredError{
		module:     module,
		code:       moduleCode*10000 + businessCode,
		msgKey:     msgKey,
		msg:        msg,
		httpStatus: status,
		data:       make(map[string]interface{}),
	}
}

func (e *LayeredError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

// Code returns the full MMBBBB code.
func (e *LayeredError) Code() int {
	return e.code
}

// Module returns the owning module name.
func (e *LayeredError) Module() string {
	return e.module
}

// MsgKey returns the message key, e.g. "error.admission.invalid_policy".
func (e *LayeredError) MsgKey() string {
	return e.msgKey
}

// Message returns the message without the cause.
func (e *LayeredError) Message() string {
	return e.msg
}

// HTTPStatus returns the status an HTTP layer should answer with.
func (e *LayeredError) HTTPStatus() int {
	return e.httpStatus
}

// Data returns the attached context data.
func (e *LayeredError) Data() map[string]interface{} {
	return e.data
}

// Unwrap exposes the cause to errors.Is / errors.As.
func (e *LayeredError) Unwrap() error {
	return e.cause
}

// WithMsgf returns a copy with a formatted message.
func (e *LayeredError) WithMsgf(format string, args ...interface{}) *LayeredError {
	clone := *e
	clone.msg = fmt.Sprintf(format, args...)
	return &clone
}

// WithData returns a copy with one more context entry.
func (e *LayeredError) WithData(key string, value interface{}) *LayeredError {
	clone := *e
	clone.data = make(map[string]interface{}, len(e.data)+1)
	for k, v := range e.data {
		clone.data[k] = v
	}
	clone.data[key] = value
	return &clone
}

// Wrap returns a copy carrying cause. A nil cause returns e unchanged.
func (e *LayeredError) Wrap(cause error) *LayeredError {
	if cause == nil {
		return e
	}
	clone := *e
	clone.cause = cause
	return &clone
}

// Is reports whether target is a LayeredError with the same code.
func (e *LayeredError) Is(target error) bool {
	t, ok := target.(*LayeredError)
	if !ok {
		return false
	}
	return e.code == t.code
}

// String is a debug representation.
func (e *LayeredError) String() string {
	if e.cause != nil {
		return fmt.Sprintf("LayeredError{code:%d, module:%s, msg:%s, cause:%v}", e.code, e.module, e.msg, e.cause)
	}
	return fmt.Sprintf("LayeredError{code:%d, module:%s, msg:%s}", e.code, e.module, e.msg)
}
