package bytecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValue_Predicates(t *testing.T) {
	assert.True(t, NilValue.IsNil())
	assert.True(t, BoolValue(true).IsBool())
	assert.True(t, NumberValue(3.5).IsNumber())
	assert.True(t, ObjValue(&ObjString{Chars: "hi"}).IsObj())
}

func TestValue_IsFalsey(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want bool
	}{
		{"nil", NilValue, true},
		{"false", BoolValue(false), true},
		{"true", BoolValue(true), false},
		{"zero", NumberValue(0), false},
		{"empty string", ObjValue(&ObjString{Chars: ""}), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, IsFalsey(c.v))
		})
	}
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, ValuesEqual(NumberValue(1), NumberValue(1)))
	assert.False(t, ValuesEqual(NumberValue(1), NumberValue(2)))
	assert.False(t, ValuesEqual(NumberValue(1), BoolValue(true)))
	assert.True(t, ValuesEqual(NilValue, NilValue))

	a := &ObjString{Chars: "x"}
	b := &ObjString{Chars: "x"}
	assert.True(t, ValuesEqual(ObjValue(a), ObjValue(a)))
	assert.False(t, ValuesEqual(ObjValue(a), ObjValue(b)), "distinct objects are unequal even with equal content, absent interning")
}

func TestValue_String(t *testing.T) {
	assert.Equal(t, "nil", NilValue.String())
	assert.Equal(t, "true", BoolValue(true).String())
	assert.Equal(t, "false", BoolValue(false).String())
	assert.Equal(t, "3", NumberValue(3).String())
	assert.Equal(t, "3.5", NumberValue(3.5).String())
}

func TestValue_AsStringPanicsOnNonString(t *testing.T) {
	assert.Panics(t, func() {
		NumberValue(1).AsString()
	})
}
