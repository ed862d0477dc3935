package bytecode

import "fmt"

// ObjType tags the concrete type behind the Obj interface.
type ObjType int

const (
	ObjTypeString ObjType = iota
	ObjTypeFunction
	ObjTypeNative
	ObjTypeUpvalue
	ObjTypeClosure
)

// Obj is the common interface every heap object implements. Every heap
// object also embeds ObjHeader, which is what the GC actually walks -
// Obj itself only exists so Value can hold any of the concrete types
// behind one field.
type Obj interface {
	Type() ObjType
	String() string
	header() *ObjHeader
}

// ObjHeader is the header every heap object carries: a GC mark bit and an
// intrusive link into the VM-wide list of every allocated object, walked
// by sweep. It is never used directly by callers - it is embedded in
// each concrete Obj type and manipulated only by the GC.
type ObjHeader struct {
	Marked bool
	Next   Obj
}

func (h *ObjHeader) header() *ObjHeader { return h }

// ObjString is an immutable, interned byte sequence. Interning is enforced
// by the VM/GC's string table (table.go), not by ObjString itself -
// CopyString/TakeString are the only legitimate way to obtain one, which
// is why newString lives in gc.go rather than here.
type ObjString struct {
	ObjHeader
	Chars string
	Hash  uint32
}

func (s *ObjString) Type() ObjType  { return ObjTypeString }
func (s *ObjString) String() string { return s.Chars }

// hashString computes the 32-bit FNV-1a hash used for both the intern
// table and regular global lookups.
func hashString(s string) uint32 {
	var hash uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		hash ^= uint32(s[i])
		hash *= 16777619
	}
	return hash
}

// ObjFunction is a compiled function body: its arity, how many upvalues it
// captures, its chunk, and an optional name (nil for the implicit
// top-level script function). Immutable once the compiler finishes with
// it.
type ObjFunction struct {
	ObjHeader
	Arity        int
	UpvalueCount int
	Chunk        *Chunk
	Name         *ObjString // nil for the top-level script
}

func (f *ObjFunction) Type() ObjType { return ObjTypeFunction }
func (f *ObjFunction) String() string {
	if f.Name == nil {
		return "<script>"
	}
	return fmt.Sprintf("<fn %s>", f.Name.Chars)
}

// NativeFn is the contract every native (built-in) function implements:
// given the call's arguments, return a result or an error.
type NativeFn func(args []Value) (Value, error)

// ObjNative wraps a Go function so it can be called like any other gclox
// callable.
type ObjNative struct {
	ObjHeader
	Name string
	Fn   NativeFn
}

func (n *ObjNative) Type() ObjType  { return ObjTypeNative }
func (n *ObjNative) String() string { return fmt.Sprintf("<native fn %s>", n.Name) }

// ObjUpvalue is a reference to a variable that outlives the stack frame
// that declared it. While open, Location indexes into the VM's stack
// array (an index, not a pointer - a raw pointer into a slice that could
// be reallocated would dangle; gclox's stack array never reallocates, but
// the index form is also what lets an *ObjUpvalue be compared/sorted
// without unsafe pointer arithmetic). Once closed, Closed holds the value itself
// and Location is no longer consulted.
type ObjUpvalue struct {
	ObjHeader
	Location int // stack slot index; meaningful only while Closed == false
	Closed   Value
	IsClosed bool
	Next     *ObjUpvalue // intrusive link in the VM's open-upvalue list, sorted by descending Location
}

func (u *ObjUpvalue) Type() ObjType  { return ObjTypeUpvalue }
func (u *ObjUpvalue) String() string { return "upvalue" }

// ObjClosure pairs a compiled function with the upvalues it captured at
// the point it was created. Closures, not bare Functions, are what the VM
// actually calls.
type ObjClosure struct {
	ObjHeader
	Function *ObjFunction
	Upvalues []*ObjUpvalue
}

func (c *ObjClosure) Type() ObjType  { return ObjTypeClosure }
func (c *ObjClosure) String() string { return c.Function.String() }
