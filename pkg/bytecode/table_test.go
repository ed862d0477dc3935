package bytecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func key(s string) *ObjString {
	return &ObjString{Chars: s, Hash: hashString(s)}
}

func TestTable_SetGetDelete(t *testing.T) {
	tbl := NewTable()
	a := key("a")

	isNew := tbl.Set(a, NumberValue(1))
	assert.True(t, isNew)
	assert.Equal(t, 1, tbl.Count())

	v, ok := tbl.Get(a)
	assert.True(t, ok)
	assert.Equal(t, NumberValue(1), v)

	isNew = tbl.Set(a, NumberValue(2))
	assert.False(t, isNew, "overwriting an existing key is not a new key")
	v, _ = tbl.Get(a)
	assert.Equal(t, NumberValue(2), v)

	assert.True(t, tbl.Delete(a))
	_, ok = tbl.Get(a)
	assert.False(t, ok)
}

func TestTable_DeleteThenSetReusesTombstoneWithoutDoubleCounting(t *testing.T) {
	tbl := NewTable()
	a, b := key("a"), key("b")
	tbl.Set(a, NumberValue(1))
	tbl.Set(b, NumberValue(2))
	tbl.Delete(a)

	before := tbl.Count()
	isNew := tbl.Set(a, NumberValue(3))
	assert.True(t, isNew)
	assert.Equal(t, before, tbl.Count(), "reusing a tombstone slot must not grow Count a second time")
}

func TestTable_GrowsAndSurvivesRehash(t *testing.T) {
	tbl := NewTable()
	keys := make([]*ObjString, 0, 64)
	for i := 0; i < 64; i++ {
		k := key(string(rune('a' + (i % 26))))
		k.Chars = k.Chars + string(rune('0'+i/26))
		k.Hash = hashString(k.Chars)
		keys = append(keys, k)
		tbl.Set(k, NumberValue(float64(i)))
	}
	for i, k := range keys {
		v, ok := tbl.Get(k)
		assert.True(t, ok)
		assert.Equal(t, NumberValue(float64(i)), v)
	}
}

func TestTable_FindString(t *testing.T) {
	tbl := NewTable()
	s := key("hello")
	tbl.Set(s, NilValue)

	found := tbl.FindString("hello", hashString("hello"))
	assert.Same(t, s, found)

	assert.Nil(t, tbl.FindString("nope", hashString("nope")))
}

func TestTable_FindStringSkipsTombstonesButNotEmptySlots(t *testing.T) {
	tbl := NewTable()
	a, b := key("a"), key("b")
	tbl.Set(a, NilValue)
	tbl.Set(b, NilValue)
	tbl.Delete(a)

	// b must still be reachable even though a's slot (possibly probed
	// first) is now a tombstone.
	found := tbl.FindString("b", hashString("b"))
	assert.Same(t, b, found)
}

func TestTable_DeleteUnmarkedKeys(t *testing.T) {
	tbl := NewTable()
	live, dead := key("live"), key("dead")
	live.Marked = true
	dead.Marked = false
	tbl.Set(live, NilValue)
	tbl.Set(dead, NilValue)

	tbl.DeleteUnmarkedKeys()

	_, ok := tbl.Get(live)
	assert.True(t, ok)
	_, ok = tbl.Get(dead)
	assert.False(t, ok)
}

func TestTable_KeysAndValues(t *testing.T) {
	tbl := NewTable()
	tbl.Set(key("a"), NumberValue(1))
	tbl.Set(key("b"), NumberValue(2))

	assert.Len(t, tbl.Keys(), 2)
	assert.Len(t, tbl.Values(), 2)
}
