package bytecode

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueType tags a Value's active field: a proper sum type in place of
// the interface{} grab-bag a naive translation of clox's tagged union
// would otherwise reach for.
type ValueType int

const (
	ValNil ValueType = iota
	ValBool
	ValNumber
	ValObj
)

// Value is a gclox runtime value: nil, a bool, a 64-bit float, or a
// reference to a heap Obj. Values are small and copied by value - only
// the Obj field is ever a pointer.
type Value struct {
	typ    ValueType
	number float64
	boolean bool
	obj    Obj
}

// NilValue is the singular nil value.
var NilValue = Value{typ: ValNil}

// BoolValue wraps a boolean.
func BoolValue(b bool) Value { return Value{typ: ValBool, boolean: b} }

// NumberValue wraps a float64.
func NumberValue(n float64) Value { return Value{typ: ValNumber, number: n} }

// ObjValue wraps a heap object reference.
func ObjValue(o Obj) Value { return Value{typ: ValObj, obj: o} }

func (v Value) IsNil() bool    { return v.typ == ValNil }
func (v Value) IsBool() bool   { return v.typ == ValBool }
func (v Value) IsNumber() bool { return v.typ == ValNumber }
func (v Value) IsObj() bool    { return v.typ == ValObj }

func (v Value) AsBool() bool     { return v.boolean }
func (v Value) AsNumber() float64 { return v.number }
func (v Value) AsObj() Obj       { return v.obj }

// IsString reports whether v holds an *ObjString.
func (v Value) IsString() bool {
	_, ok := v.obj.(*ObjString)
	return v.typ == ValObj && ok
}

// AsString returns the underlying Go string of a string Value. Panics if
// v is not a string - callers must check IsString first.
func (v Value) AsString() string {
	return v.obj.(*ObjString).Chars
}

// IsFalsey implements gclox's truthiness rule: nil and false are false,
// everything else - including 0 and the empty string - is true.
func IsFalsey(v Value) bool {
	return v.typ == ValNil || (v.typ == ValBool && !v.boolean)
}

// ValuesEqual implements gclox's equality rule: structural for nil/bool/
// number, reference equality for heap objects - except strings, which
// compare equal by content because the intern table guarantees byte-equal
// strings share one object (so reference equality already gives the right
// answer for interned strings).
func ValuesEqual(a, b Value) bool {
	if a.typ != b.typ {
		return false
	}
	switch a.typ {
	case ValNil:
		return true
	case ValBool:
		return a.boolean == b.boolean
	case ValNumber:
		return a.number == b.number
	case ValObj:
		return a.obj == b.obj
	default:
		return false
	}
}

// String renders v the way OP_PRINT and the REPL do: numbers trim
// trailing zeros the way "%g" does, strings print without quotes, and
// functions/closures print a "<fn name>" placeholder.
func (v Value) String() string {
	switch v.typ {
	case ValNil:
		return "nil"
	case ValBool:
		if v.boolean {
			return "true"
		}
		return "false"
	case ValNumber:
		return formatNumber(v.number)
	case ValObj:
		return v.obj.String()
	default:
		return "<invalid value>"
	}
}

func formatNumber(n float64) string {
	s := strconv.FormatFloat(n, 'g', -1, 64)
	// Go renders whole floats like "1" already via 'g', but large exponents
	// use "e+" notation where clox's "%.14g"-ish formatting would not; this
	// is purely cosmetic.
	return s
}

// GoString supports %#v in diagnostics/tests without pulling in reflection
// over the unexported fields.
func (v Value) GoString() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Value(%s)", v.String())
	return b.String()
}
