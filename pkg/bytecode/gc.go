package bytecode

import (
	"fmt"
	"unsafe"
)

// growFactor is the post-collection threshold multiplier: after a
// collection, the next one doesn't fire until the heap has doubled again.
const growFactor = 2

// initialNextGC is the starting threshold, in bytes, before the first
// threshold-triggered collection can fire: generous enough that normal
// programs don't collect during startup. StressGC ignores it and collects
// on every allocation.
const initialNextGC = 1 << 20

// RootMarker is implemented by anything that owns GC roots: the compiler
// (its in-progress function chain) and the VM (its stack, frames, open
// upvalues, and globals table). Both register with the same GC instance
// without this package ever importing either of theirs.
type RootMarker interface {
	MarkRoots(gc *GC)
}

// GC is gclox's precise mark-sweep collector: allocation accounting, the
// linked list of every live heap object, the string intern pool, and the
// gray worklist used during tracing. One GC is owned by exactly one VM.
type GC struct {
	objects        Obj // head of the intrusive allocated-objects list
	bytesAllocated int64
	nextGC         int64
	strings        *Table // intern pool; NOT a GC root - see Collect
	gray           []Obj  // worklist; plain Go allocation, outside managed memory
	StressGC       bool   // force a collection on every growth, for deterministic tests
	LogGC          bool   // emit collection diagnostics (debug aid, off by default)
	onLog          func(string)

	// MaxHeapBytes, if nonzero, is the hard ceiling gclox enforces on
	// bytesAllocated even after a collection frees what it can. Allocation
	// past this ceiling panics rather than returning an error, since every
	// allocation site in this package (NewFunction, CopyString, ...)
	// returns a bare pointer with no room for an error return - the same
	// constraint C's allocator faces, which is why clox's own realloc
	// wrapper exits the process outright on failure. cmd/gclox recovers
	// this panic at its single top-level entry point and reports it as a
	// fatal, non-zero-exit error instead of exiting from inside the
	// library.
	MaxHeapBytes int64
}

// NewGC returns a GC with an empty object list and a fresh intern pool.
func NewGC() *GC {
	return &GC{
		strings: NewTable(),
		nextGC:  initialNextGC,
	}
}

// SetLogger installs a callback for collection diagnostics (size before/
// after, bytes freed); nil disables logging regardless of LogGC.
func (gc *GC) SetLogger(fn func(string)) { gc.onLog = fn }

func (gc *GC) log(format string, args ...interface{}) {
	if gc.LogGC && gc.onLog != nil {
		gc.onLog(fmt.Sprintf(format, args...))
	}
}

// BytesAllocated is the sum of every outstanding managed allocation.
func (gc *GC) BytesAllocated() int64 { return gc.bytesAllocated }

// Strings exposes the intern table so the VM's GET_GLOBAL-adjacent string
// construction paths (copyString/takeString) can consult it.
func (gc *GC) Strings() *Table { return gc.strings }

// track runs the allocation trigger policy - collect if StressGC is set,
// or if this allocation would push bytesAllocated past nextGC or past a
// nonzero MaxHeapBytes - and only
// then links o onto the objects list and charges its size against
// bytesAllocated. The trigger must run first: o isn't reachable from
// anything yet (no caller has had the chance to root it), so if it were
// already spliced onto the objects list a collection could sweep it
// before it's ever handed back, the same hazard clox avoids by growing
// vm.bytesAllocated and running its collection in reallocate() before the
// new object is linked in by allocateObject().
func (gc *GC) track(o Obj, size int64, roots []RootMarker) {
	if gc.StressGC {
		gc.Collect(roots)
	} else if gc.bytesAllocated+size > gc.nextGC {
		gc.Collect(roots)
	} else if gc.MaxHeapBytes > 0 && gc.bytesAllocated+size > gc.MaxHeapBytes {
		gc.Collect(roots)
	}

	o.header().Next = gc.objects
	gc.objects = o
	gc.bytesAllocated += size

	if gc.MaxHeapBytes > 0 && gc.bytesAllocated > gc.MaxHeapBytes {
		panic(fmt.Sprintf("gclox: out of memory: %d bytes allocated exceeds %d byte limit", gc.bytesAllocated, gc.MaxHeapBytes))
	}
}

// newString allocates an ObjString without consulting or updating the
// intern table - used only by copyString/takeString, which own interning.
// Callers outside this package should call CopyString/TakeString instead.
func (gc *GC) newString(chars string, roots []RootMarker) *ObjString {
	s := &ObjString{Chars: chars, Hash: hashString(chars)}
	gc.track(s, int64(unsafe.Sizeof(*s))+int64(len(chars)), roots)
	return s
}

// CopyString returns the canonical interned *ObjString for chars,
// allocating and interning a new one only if no equal string already
// exists. Unlike clox's copyString, the caller's bytes are never retained
// by reference (chars is a Go string, already immutable), so there is
// nothing to free the way C's copyString frees a scratch buffer.
func (gc *GC) CopyString(chars string, roots []RootMarker) *ObjString {
	hash := hashString(chars)
	if interned := gc.strings.FindString(chars, hash); interned != nil {
		return interned
	}
	s := gc.newString(chars, roots)
	gc.strings.Set(s, NilValue)
	return s
}

// TakeString mirrors clox's takeString but is semantically identical to
// CopyString in Go, since Go strings are already immutable and there is
// no caller-owned buffer to free on the intern hit. It exists as a
// separate entry point so call sites can express "I'm done with this
// string, intern-or-adopt it" the way concatenation does.
func (gc *GC) TakeString(chars string, roots []RootMarker) *ObjString {
	return gc.CopyString(chars, roots)
}

// NewFunction allocates a fresh, empty ObjFunction with its own chunk.
func (gc *GC) NewFunction(roots []RootMarker) *ObjFunction {
	f := &ObjFunction{Chunk: NewChunk()}
	gc.track(f, int64(unsafe.Sizeof(*f)), roots)
	return f
}

// NewNative allocates an ObjNative wrapping fn.
func (gc *GC) NewNative(name string, fn NativeFn, roots []RootMarker) *ObjNative {
	n := &ObjNative{Name: name, Fn: fn}
	gc.track(n, int64(unsafe.Sizeof(*n)), roots)
	return n
}

// NewUpvalue allocates a fresh open upvalue pointing at the given stack
// slot index.
func (gc *GC) NewUpvalue(slot int, roots []RootMarker) *ObjUpvalue {
	u := &ObjUpvalue{Location: slot}
	gc.track(u, int64(unsafe.Sizeof(*u)), roots)
	return u
}

// NewClosure allocates a closure over fn with the given upvalue slice
// (already populated by the VM's OP_CLOSURE handling).
func (gc *GC) NewClosure(fn *ObjFunction, upvalues []*ObjUpvalue, roots []RootMarker) *ObjClosure {
	c := &ObjClosure{Function: fn, Upvalues: upvalues}
	gc.track(c, int64(unsafe.Sizeof(*c)), roots)
	return c
}

// Collect runs one full mark-sweep cycle: clear every mark bit, mark every
// root reachable from roots, trace (blacken) until the gray worklist is
// empty, weaken the intern table against anything that didn't survive
// tracing, sweep every unmarked object off the objects list, and raise
// nextGC to bytesAllocated*growFactor.
func (gc *GC) Collect(roots []RootMarker) {
	before := gc.bytesAllocated
	gc.log("-- gc begin")

	gc.resetMarks()
	for _, r := range roots {
		r.MarkRoots(gc)
	}
	gc.traceReferences()
	gc.strings.DeleteUnmarkedKeys()
	gc.sweep()

	gc.nextGC = gc.bytesAllocated * growFactor
	gc.log("-- gc end, collected %d bytes (%d -> %d), next at %d", before-gc.bytesAllocated, before, gc.bytesAllocated, gc.nextGC)
}

// resetMarks clears the mark bit of every live object: marked is false
// at the start of every collection cycle.
func (gc *GC) resetMarks() {
	for o := gc.objects; o != nil; o = o.header().Next {
		o.header().Marked = false
	}
}

// MarkValue marks v's underlying object, if it has one.
func (gc *GC) MarkValue(v Value) {
	if v.typ == ValObj && v.obj != nil {
		gc.MarkObject(v.obj)
	}
}

// MarkObject marks o and, if this is the first time o was marked this
// cycle, pushes it onto the gray worklist so traceReferences will later
// blacken it (mark its own out-references). The gray worklist is a plain
// Go slice - outside managed memory, so growing it can never itself
// trigger a nested collection.
func (gc *GC) MarkObject(o Obj) {
	if o == nil || o.header().Marked {
		return
	}
	o.header().Marked = true
	gc.gray = append(gc.gray, o)
}

// traceReferences pops gray objects and marks their out-references until
// the worklist is empty - the tri-color worklist's "blacken" phase.
func (gc *GC) traceReferences() {
	for len(gc.gray) > 0 {
		n := len(gc.gray) - 1
		o := gc.gray[n]
		gc.gray = gc.gray[:n]
		gc.blacken(o)
	}
}

// blacken marks o's direct out-references, per each concrete type's own
// traversal rule. Strings and natives have none.
func (gc *GC) blacken(o Obj) {
	switch obj := o.(type) {
	case *ObjClosure:
		gc.MarkObject(obj.Function)
		for _, uv := range obj.Upvalues {
			if uv != nil {
				gc.MarkObject(uv)
			}
		}
	case *ObjFunction:
		if obj.Name != nil {
			gc.MarkObject(obj.Name)
		}
		for _, c := range obj.Chunk.Constants {
			gc.MarkValue(c)
		}
	case *ObjUpvalue:
		if obj.IsClosed {
			gc.MarkValue(obj.Closed)
		}
		// While open, the referent is a VM stack slot, already reached via
		// the VM's stack root - nothing further to mark here.
	case *ObjString, *ObjNative:
		// no out-references
	}
}

// sweep walks the objects list, unlinking and dropping every object whose
// mark bit is still false, and clears the mark bit on every survivor so
// the next cycle starts clean. "Freeing" an object in Go just means
// removing gclox's own reference to it and letting the host GC reclaim
// the memory: this is the only place an object is ever dropped from the
// list, never from inside a per-object destructor, so there is no risk
// of the gray stack (which isn't even reachable from here) being freed
// twice.
func (gc *GC) sweep() {
	var prev Obj
	o := gc.objects
	for o != nil {
		h := o.header()
		if h.Marked {
			h.Marked = false
			prev = o
			o = h.Next
			continue
		}
		unreached := o
		o = h.Next
		if prev != nil {
			prev.header().Next = o
		} else {
			gc.objects = o
		}
		gc.bytesAllocated -= sizeOf(unreached)
	}
}

func sizeOf(o Obj) int64 {
	switch v := o.(type) {
	case *ObjString:
		return int64(unsafe.Sizeof(*v)) + int64(len(v.Chars))
	case *ObjFunction:
		return int64(unsafe.Sizeof(*v))
	case *ObjNative:
		return int64(unsafe.Sizeof(*v))
	case *ObjUpvalue:
		return int64(unsafe.Sizeof(*v))
	case *ObjClosure:
		return int64(unsafe.Sizeof(*v))
	default:
		return 0
	}
}
