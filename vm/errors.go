package vm

import (
	"errors"
	"fmt"
)

// These are the failure kinds an instruction can produce. Match them with
// errors.Is; every error returned by the interpreter wraps exactly one.
var (
	ErrNoSuchField   = errors.New("java.lang.NoSuchFieldError")
	ErrNullPointer   = errors.New("java.lang.NullPointerException")
	ErrClassCast     = errors.New("java.lang.ClassCastException")
	ErrInternalFault = errors.New("internal fault")
)

// Faultf builds an ErrInternalFault. These point at bad input from whoever
// produced the bytecode, never at the running program.
func Faultf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInternalFault, fmt.Sprintf(format, args...))
}

// ExecError records the instruction an error was raised from.
type ExecError struct {
	Method string
	PC     int
	Op     Op
	Err    error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("%s: %s at pc %d (%s)", e.Method, e.Err, e.PC, e.Op)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}
