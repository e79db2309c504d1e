package domain

import (
	"errors"
	"fmt"
)

// Error carries a classification code next to the wrapped cause.
type Error struct {
	orig error
	msg  string
	code error
}

func (e *Error) Error() string {
	if e.orig != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.orig)
	}
	return e.msg
}

func (e *Error) Unwrap() error {
	return e.orig
}

func (e *Error) Code() error {
	return e.code
}

// Is lets errors.Is match an Error against its code.
func (e *Error) Is(target error) bool {
	return e.code == target
}

func WrapErrorf(orig error, code error, format string, a ...any) error {
	return &Error{
		code: code,
		orig: orig,
		msg:  fmt.Sprintf(format, a...),
	}
}

func NewErrorf(code error, format string, a ...any) error {
	return WrapErrorf(nil, code, format, a...)
}

// CodeOf returns the code of the first Error in err's chain, or ErrInternal.
func CodeOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Code()
	}
	return ErrInternal
}

var (
	// ErrInternal marks unexpected storage or runtime failures.
	ErrInternal = errors.New("internal error")
	// ErrNotFound marks a missing order, area or tow truck.
	ErrNotFound = errors.New("not found")
	// ErrBadParamInput marks an invalid request parameter.
	ErrBadParamInput = errors.New("given param is not valid")
)
