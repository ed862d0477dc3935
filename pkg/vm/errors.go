// Package vm - error handling with stack traces
package vm

import (
	"fmt"
	"strings"
)

// StackFrame is one entry in a runtime fault's reported call stack: the
// callee's name and the source line active in that frame when the fault
// was raised - mirroring clox's own runtimeError stack trace, narrowed to
// the two fields gclox's fault format needs ("which function, which
// line"), with no message selectors to report.
type StackFrame struct {
	Name       string
	SourceLine int
}

// RuntimeError is a gclox runtime fault: a message plus the call stack
// active when it was raised, innermost frame first.
type RuntimeError struct {
	Message    string
	StackTrace []StackFrame
}

// Error formats the fault the way gclox's CLI prints it: the message,
// then one "[line N] in name" line per frame, outermost first.
func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)

	for i := len(e.StackTrace) - 1; i >= 0; i-- {
		frame := e.StackTrace[i]
		name := frame.Name
		if name == "" {
			name = "script"
		}
		fmt.Fprintf(&b, "\n[line %d] in %s", frame.SourceLine, name)
	}

	return b.String()
}

func newRuntimeError(message string, stack []StackFrame) *RuntimeError {
	return &RuntimeError{
		Message:    message,
		StackTrace: stack,
	}
}
