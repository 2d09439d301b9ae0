// Package errors turns panics in re-plan jobs and HTTP handlers into ordinary errors.
package errors

import (
	"fmt"
	"runtime/debug"
)

// PanicError represents an error recovered from a panic
type PanicError struct {
	Value      interface{} // The panic value
	Stacktrace string      // Full stack trace
}

// Error implements the error interface
func (p *PanicError) Error() string {
	return fmt.Sprintf("panic recovered: %v", p.Value)
}

// NewPanicError wraps a value returned by recover() together with the current stack.
// Call it from the deferred function that called recover.
func NewPanicError(recovered interface{}) *PanicError {
	return &PanicError{
		Value:      recovered,
		Stacktrace: string(debug.Stack()),
	}
}

// SafeCall runs fn and converts a panic inside it into a *PanicError
func SafeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewPanicError(r)
		}
	}()
	return fn()
}

// FormatPanicForLog returns a formatted string suitable for logging
func FormatPanicForLog(panicErr *PanicError) string {
	return fmt.Sprintf("PANIC: %v\n\nStack Trace:\n%s", panicErr.Value, panicErr.Stacktrace)
}
