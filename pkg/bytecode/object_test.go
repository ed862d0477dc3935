package bytecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashString_Deterministic(t *testing.T) {
	assert.Equal(t, hashString("hello"), hashString("hello"))
	assert.NotEqual(t, hashString("hello"), hashString("world"))
}

func TestObjFunction_String(t *testing.T) {
	anon := &ObjFunction{Chunk: NewChunk()}
	assert.Equal(t, "<script>", anon.String())

	named := &ObjFunction{Chunk: NewChunk(), Name: &ObjString{Chars: "add"}}
	assert.Equal(t, "<fn add>", named.String())
}

func TestObjUpvalue_ClosedVsOpen(t *testing.T) {
	uv := &ObjUpvalue{Location: 3}
	assert.False(t, uv.IsClosed)

	uv.IsClosed = true
	uv.Closed = NumberValue(7)
	assert.Equal(t, NumberValue(7), uv.Closed)
}

func TestObjHeader_IsSharedAcrossTypes(t *testing.T) {
	var objs []Obj = []Obj{
		&ObjString{Chars: "x"},
		&ObjFunction{Chunk: NewChunk()},
		&ObjNative{Name: "clock"},
		&ObjUpvalue{},
		&ObjClosure{Function: &ObjFunction{Chunk: NewChunk()}},
	}
	for _, o := range objs {
		o.header().Marked = true
		assert.True(t, o.header().Marked)
	}
}
