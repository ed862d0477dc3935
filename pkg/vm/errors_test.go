package vm

import (
	"strings"
	"testing"
)

func TestRuntimeError_FormatsStackOutermostFirst(t *testing.T) {
	err := newRuntimeError("boom", []StackFrame{
		{Name: "inner()", SourceLine: 3},
		{Name: "outer()", SourceLine: 1},
	})

	got := err.Error()
	if !strings.HasPrefix(got, "boom") {
		t.Errorf("expected message first, got %q", got)
	}
	outerIdx := strings.Index(got, "outer()")
	innerIdx := strings.Index(got, "inner()")
	if outerIdx == -1 || innerIdx == -1 || outerIdx > innerIdx {
		t.Errorf("expected outer() before inner(), got %q", got)
	}
}

func TestRuntimeError_EmptyFrameNameIsScript(t *testing.T) {
	err := newRuntimeError("boom", []StackFrame{{Name: "", SourceLine: 5}})
	if !strings.Contains(err.Error(), "in script") {
		t.Errorf("expected 'in script', got %q", err.Error())
	}
}
