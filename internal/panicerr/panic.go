// Package panicerr turns a recovered panic into a proper error value,
// adapted from jcorbin/gothird's internal/panicerr for gclox's single
// synchronous entry point rather than a goroutine pool: gclox has no
// background workers to funnel panics through a channel, just one
// recover point in cmd/gclox around Interpret, where an allocation-
// failure panic from the GC's allocation choke point (see bytecode.GC's
// track) is the one panic this interpreter is expected to ever raise.
package panicerr

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// Recover must be called directly in a deferred function. It returns nil
// if no panic occurred, otherwise a *panicError wrapping it, tagged with
// name and the stack at the point of the panic.
func Recover(name string) error {
	e := recover()
	if e == nil {
		return nil
	}
	return &panicError{name: name, e: e, stack: debug.Stack()}
}

type panicError struct {
	name  string
	e     interface{}
	stack []byte
}

func (pe *panicError) Error() string {
	return fmt.Sprint(pe)
}

func (pe *panicError) Format(f fmt.State, c rune) {
	if pe.name == "" {
		fmt.Fprintf(f, "paniced: %v", pe.e)
	} else {
		fmt.Fprintf(f, "%v paniced: %v", pe.name, pe.e)
	}
	if c == 'v' && f.Flag('+') {
		fmt.Fprintf(f, "\nPanic stack: %s", pe.stack)
	}
}

func (pe *panicError) Unwrap() error {
	err, _ := pe.e.(error)
	return err
}

// IsPanic returns true if err indicates a recovered panic.
func IsPanic(err error) bool {
	var pe *panicError
	return errors.As(err, &pe)
}

// PanicStack returns a non-empty stacktrace string if err is a recovered
// panic.
func PanicStack(err error) string {
	var pe *panicError
	if errors.As(err, &pe) {
		return string(pe.stack)
	}
	return ""
}
