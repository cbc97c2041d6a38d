package core

import (
	"errors"
	"fmt"
)

var (
	ErrUnknown        = errors.New("unknown")
	ErrOutOfRange     = errors.New("identifier out of range")
	ErrNotInitialized = errors.New("identifier pool not initialized")
)

// FatalError is the panic value raised when a precondition of the transfer
// layer is violated. It marks a caller bug; it is never retried or recovered
// inside this module.
type FatalError struct {
	Msg string
	Err error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fatal: %s: %v", e.Msg, e.Err)
	}
	return "fatal: " + e.Msg
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatalf logs the formatted diagnostic and panics with a *FatalError.
func Fatalf(format string, args ...interface{}) {
	err := &FatalError{Msg: fmt.Sprintf(format, args...)}
	LogError(err.Error())
	panic(err)
}

// Assert panics with a *FatalError carrying the formatted message when cond is false.
func Assert(cond bool, format string, args ...interface{}) {
	if !cond {
		Fatalf("assertion failed: "+format, args...)
	}
}

// Must turns a backend error into a fatal error with the given context.
func Must(err error, context string) {
	if err == nil {
		return
	}
	fe := &FatalError{Msg: context, Err: err}
	LogError(fe.Error())
	panic(fe)
}
