package slidepreview

import (
	"errors"
	"fmt"
)

// Code classifies a failure so callers can react without string matching.
type Code string

const (
	CodePackageUnreadable Code = "PACKAGE_UNREADABLE"
	CodeSlideDecode       Code = "SLIDE_DECODE"
	CodeElementDecode     Code = "ELEMENT_DECODE"
	CodeImageDecode       Code = "IMAGE_DECODE"
	CodeImageUnreachable  Code = "IMAGE_UNREACHABLE"
	CodeInvalidOptions    Code = "INVALID_OPTIONS"
	CodeFontUnresolved    Code = "FONT_UNRESOLVED"
	CodeFontDecode        Code = "FONT_DECODE"
	CodeService           Code = "SERVICE"
	CodeRender            Code = "RENDER"
)

// Sentinels for errors.Is. Any *Error with the same Code matches.
var (
	ErrPackageUnreadable = &Error{Code: CodePackageUnreadable}
	ErrSlideDecode       = &Error{Code: CodeSlideDecode}
	ErrElementDecode     = &Error{Code: CodeElementDecode}
	ErrImageDecode       = &Error{Code: CodeImageDecode}
	ErrImageUnreachable  = &Error{Code: CodeImageUnreachable}
	ErrInvalidOptions    = &Error{Code: CodeInvalidOptions}
	ErrFontUnresolved    = &Error{Code: CodeFontUnresolved}
	ErrFontDecode        = &Error{Code: CodeFontDecode}
	ErrService           = &Error{Code: CodeService}
	ErrRender            = &Error{Code: CodeRender}
)

// Error is a coded failure raised by the decode and render pipeline.
type Error struct {
	Code    Code
	Op      string
	Message string
	Err     error
}

func newError(code Code, op, msg string, err error) *Error {
	return &Error{Code: code, Op: op, Message: msg, Err: err}
}

func errorf(code Code, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// recoverError converts a recovered panic value into a render error.
func recoverError(op string, r any) error {
	if err, ok := r.(error); ok {
		return newError(CodeRender, op, "panic", err)
	}
	return errorf(CodeRender, op, "panic: %v", r)
}
