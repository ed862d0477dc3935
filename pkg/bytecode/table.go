package bytecode

// Table is an open-addressing hash table keyed by interned *ObjString
// pointers (pointer identity doubles as content identity, since every
// *ObjString is canonicalized by the GC's intern pool before it reaches a
// Table). It backs both the VM's globals and the GC's intern pool - a
// plain Go map[string]Value can't give us the pointer-keyed "weaken on
// sweep" behavior the intern pool needs without forcing every lookup
// through a string conversion.
type Table struct {
	count    int // live entries + tombstones, for load-factor purposes
	entries  []entry
}

type entry struct {
	key   *ObjString
	value Value
}

const tableMaxLoad = 0.75

// tombstoneValue is the sentinel written into a deleted entry's Value so
// a tombstone (key == nil, value == tombstone) can be told apart from a
// genuinely empty slot (key == nil, value == zero Value, i.e. nil).
var tombstoneValue = BoolValue(true)

// NewTable returns an empty table. Its backing array is allocated lazily
// on first Set; capacity is always a power of two, or zero.
func NewTable() *Table {
	return &Table{}
}

// Count returns the number of live+tombstone slots (not just live ones).
func (t *Table) Count() int { return t.count }

// Get looks up key. ok is false both when the key was never present and
// when it was deleted.
func (t *Table) Get(key *ObjString) (Value, bool) {
	if len(t.entries) == 0 {
		return NilValue, false
	}
	e := t.findEntry(t.entries, key)
	if e.key == nil {
		return NilValue, false
	}
	return e.value, true
}

// Set inserts or overwrites key's value. It reports true if this created a
// brand new key (as opposed to overwriting one already present).
func (t *Table) Set(key *ObjString, value Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*tableMaxLoad {
		t.adjustCapacity(growCapacity(len(t.entries)))
	}

	e := t.findEntry(t.entries, key)
	isNewKey := e.key == nil
	// Only a genuinely empty slot grows Count; inserting into a tombstone
	// leaves Count unchanged because a tombstone already counted toward
	// the load factor when it was created.
	if isNewKey && e.value.IsNil() {
		t.count++
	}
	e.key = key
	e.value = value
	return isNewKey
}

// Delete removes key, leaving a tombstone in its slot so later probes
// that hashed past it still find their target.
func (t *Table) Delete(key *ObjString) bool {
	if len(t.entries) == 0 {
		return false
	}
	e := t.findEntry(t.entries, key)
	if e.key == nil {
		return false
	}
	e.key = nil
	e.value = tombstoneValue
	return true
}

// FindString is the dedicated interning probe: it compares by hash then
// by byte content (rather than by *ObjString identity, which is exactly
// the thing interning hasn't established yet for a brand new literal) and
// returns the canonical *ObjString already in the table, or nil.
func (t *Table) FindString(chars string, hash uint32) *ObjString {
	if len(t.entries) == 0 {
		return nil
	}
	mask := uint32(len(t.entries) - 1)
	index := hash & mask
	for {
		e := &t.entries[index]
		if e.key == nil {
			// Stop only at a genuinely empty slot (not a tombstone) -
			// tombstones must not break the probe sequence.
			if e.value.IsNil() {
				return nil
			}
		} else if e.key.Hash == hash && e.key.Chars == chars {
			return e.key
		}
		index = (index + 1) & mask
	}
}

// findEntry returns the slot key should occupy: either its existing slot,
// or the first tombstone/empty slot encountered while probing, per linear
// probing with tombstone reuse.
func (t *Table) findEntry(entries []entry, key *ObjString) *entry {
	mask := uint32(len(entries) - 1)
	index := key.Hash & mask
	var tombstone *entry
	for {
		e := &entries[index]
		if e.key == nil {
			if e.value.IsNil() {
				// Truly empty: return the tombstone we passed, if any.
				if tombstone != nil {
					return tombstone
				}
				return e
			}
			if tombstone == nil {
				tombstone = e
			}
		} else if e.key == key {
			return e
		}
		index = (index + 1) & mask
	}
}

// adjustCapacity resizes to newCapacity, rehashing every live (non-
// tombstone) entry into a fresh backing array and dropping tombstones,
// recomputing Count as exactly the number of live entries copied over.
// Each destination entry must copy the source entry's own value - copying
// from the wrong slice here is an easy rehash bug to introduce.
func (t *Table) adjustCapacity(newCapacity int) {
	fresh := make([]entry, newCapacity)
	t.count = 0
	for i := range t.entries {
		old := &t.entries[i]
		if old.key == nil {
			continue // drop tombstones on resize
		}
		dst := t.findEntry(fresh, old.key)
		dst.key = old.key
		dst.value = old.value
		t.count++
	}
	t.entries = fresh
}

func growCapacity(capacity int) int {
	if capacity < 8 {
		return 8
	}
	return capacity * 2
}

// Keys returns every live key, used by the GC to mark the globals table's
// keys as roots.
func (t *Table) Keys() []*ObjString {
	keys := make([]*ObjString, 0, t.count)
	for i := range t.entries {
		if t.entries[i].key != nil {
			keys = append(keys, t.entries[i].key)
		}
	}
	return keys
}

// Values returns every live value, used by the GC to mark the globals
// table's values as roots.
func (t *Table) Values() []Value {
	values := make([]Value, 0, t.count)
	for i := range t.entries {
		if t.entries[i].key != nil {
			values = append(values, t.entries[i].value)
		}
	}
	return values
}

// DeleteUnmarkedKeys drops every entry whose key object is unmarked. The
// GC calls this on the intern table after tracing but before sweep, so a
// string that became unreachable doesn't linger as a dangling weak
// reference once sweep frees it (the intern pool's "weak" half).
func (t *Table) DeleteUnmarkedKeys() {
	for i := range t.entries {
		if t.entries[i].key != nil && !t.entries[i].key.Marked {
			t.entries[i].key = nil
			t.entries[i].value = tombstoneValue
		}
	}
}
