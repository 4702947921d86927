package function

import (
	"errors"
	"fmt"
)

// Sentinel errors for the executor. Use errors.Is to check.
var (
	ErrUnknownFunction   = errors.New("unknown function")
	ErrDuplicateFunction = errors.New("function already registered")
	ErrTimeout           = errors.New("function execution timeout")
	ErrMissingQuery      = errors.New("missing search query")
)

// ExecError is a handler failure or a recovered handler panic. The panic
// value is kept for logging through Unwrap but never printed by Error.
type ExecError struct {
	Function string
	Err      error
	Panic    bool
}

func (e *ExecError) Error() string {
	if e.Panic {
		return fmt.Sprintf("function %s panicked", e.Function)
	}
	return fmt.Sprintf("function %s: %v", e.Function, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

type panicError struct {
	p any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.p)
}
