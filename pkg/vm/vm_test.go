package vm

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func runAndCapture(t *testing.T, source string) (string, InterpretResult, error) {
	t.Helper()
	machine := New()
	w, err := os.CreateTemp(t.TempDir(), "gclox-out")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer w.Close()
	machine.Out = w

	result, runErr := machine.Interpret(source)

	w.Seek(0, 0)
	var buf bytes.Buffer
	buf.ReadFrom(w)
	return buf.String(), result, runErr
}

func TestInterpret_Arithmetic(t *testing.T) {
	out, result, err := runAndCapture(t, "print (1 + 2) * 3;")
	if result != InterpretOK {
		t.Fatalf("unexpected result %v: %v", result, err)
	}
	if strings.TrimSpace(out) != "9" {
		t.Errorf("got %q, want 9", out)
	}
}

func TestInterpret_NegateRequiresNumber(t *testing.T) {
	_, result, err := runAndCapture(t, `print -"x";`)
	if result != InterpretRuntimeError {
		t.Fatalf("expected runtime error, got %v", result)
	}
	if !strings.Contains(err.Error(), "Operand must be a number") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestInterpret_CompileErrorIsReported(t *testing.T) {
	_, result, err := runAndCapture(t, "print ;")
	if result != InterpretCompileError {
		t.Fatalf("expected compile error, got %v", result)
	}
	if err == nil {
		t.Fatal("expected a non-nil error")
	}
}

func TestInterpret_StackSurvivesAfterRuntimeErrorForREPLReuse(t *testing.T) {
	machine := New()
	w, _ := os.CreateTemp(t.TempDir(), "gclox-out")
	defer w.Close()
	machine.Out = w

	if _, err := machine.Interpret(`print 1/0 == 1/0; print nope;`); err == nil {
		t.Fatal("expected an error")
	}
	// stack must have been reset so a later Interpret on the same VM works
	if _, err := machine.Interpret(`print 1;`); err != nil {
		t.Fatalf("VM unusable after prior error: %v", err)
	}
}

func TestInterpret_ArityMismatchIsRuntimeError(t *testing.T) {
	_, result, err := runAndCapture(t, `
		fun f(a, b) { return a + b; }
		f(1);
	`)
	if result != InterpretRuntimeError {
		t.Fatalf("expected runtime error, got %v", result)
	}
	if !strings.Contains(err.Error(), "Expected 2 arguments") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestInterpret_DeepRecursionIsStackOverflowNotCrash(t *testing.T) {
	_, result, err := runAndCapture(t, `
		fun rec(n) { return rec(n + 1); }
		rec(0);
	`)
	if result != InterpretRuntimeError {
		t.Fatalf("expected runtime error, got %v", result)
	}
	if !strings.Contains(err.Error(), "Stack overflow") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestGC_RunsDuringExecutionWithoutCorruptingState(t *testing.T) {
	machine := New()
	machine.GC().StressGC = true
	w, _ := os.CreateTemp(t.TempDir(), "gclox-out")
	defer w.Close()
	machine.Out = w

	result, err := machine.Interpret(`
		fun greet(name) { return "hello, " + name; }
		print greet("world");
	`)
	if result != InterpretOK {
		t.Fatalf("unexpected result %v: %v", result, err)
	}

	w.Seek(0, 0)
	var buf bytes.Buffer
	buf.ReadFrom(w)
	if strings.TrimSpace(buf.String()) != "hello, world" {
		t.Errorf("got %q", buf.String())
	}
}
