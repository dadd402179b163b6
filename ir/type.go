// Package ir defines the typed SSA intermediate representation that sits
// between the (out of scope) front end and the optimizer/backend pipeline.
package ir

import "fmt"

// Kind enumerates the closed set of IR types the core understands. Mx has
// no user-level generics or unions at this layer: by the time a program
// reaches the core, every class has been lowered to a pointer type and
// every array to a pointer to a runtime array object.
type Kind int

const (
	I32 Kind = iota
	I1
	Void
	Ptr
)

// Type is a value type, mirroring the small closed vocabulary LLVM 15
// uses for this subset: i32, i1, void and opaque ptr. Class and array
// types are both represented as Ptr; ClassName disambiguates which
// struct layout a pointer refers to for GEP member-index resolution.
type Type struct {
	Kind      Kind
	ClassName string // non-empty only when Kind == Ptr and the pointee is a known class/array layout
}

var (
	TypeI32  = &Type{Kind: I32}
	TypeI1   = &Type{Kind: I1}
	TypeVoid = &Type{Kind: Void}
	TypePtr  = &Type{Kind: Ptr}
)

// ClassPtr returns the pointer type to the named class/array layout.
func ClassPtr(name string) *Type { return &Type{Kind: Ptr, ClassName: name} }

func (t *Type) String() string {
	switch t.Kind {
	case I32:
		return "i32"
	case I1:
		return "i1"
	case Void:
		return "void"
	case Ptr:
		return "ptr"
	default:
		panic(fmt.Sprintf("ir: unhandled type kind %d", t.Kind))
	}
}

func (t *Type) Equal(u *Type) bool {
	return t.Kind == u.Kind
}
