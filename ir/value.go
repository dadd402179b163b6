package ir

// Value is anything an instruction operand can refer to. As in the
// teacher's ssa package, most Values are also Instructions: the
// instruction that computes a result doubles as the handle other
// instructions reference, so there is no separate "register" type.
type Value interface {
	Type() *Type
	// Name returns the bare SSA name, e.g. "3" or "x.2" after renaming;
	// String adds the "%" or "@" sigil. Constants, null and undef print
	// their literal instead and return "".
	Name() string
	String() string
}

// Const is an immediate integer or boolean value. to_int32/to_imm in the
// original SCCP pass operate directly on this representation's Val field.
type Const struct {
	Typ *Type
	Val int32 // for I1, 0 or 1
}

func (c *Const) Type() *Type  { return c.Typ }
func (c *Const) Name() string { return "" }
func (c *Const) String() string {
	if c.Typ.Kind == I1 {
		if c.Val != 0 {
			return "true"
		}
		return "false"
	}
	return intToString(int64(c.Val))
}

// NewI32 builds a 32-bit integer constant.
func NewI32(v int32) *Const { return &Const{Typ: TypeI32, Val: v} }

// NewBool builds an i1 constant.
func NewBool(v bool) *Const {
	if v {
		return &Const{Typ: TypeI1, Val: 1}
	}
	return &Const{Typ: TypeI1, Val: 0}
}

// Null is the zero pointer constant ("null" in LLVM text, used for the
// default value of an uninitialized class-typed field/variable).
type Null struct{ Typ *Type }

func (n *Null) Type() *Type    { return n.Typ }
func (n *Null) Name() string   { return "" }
func (n *Null) String() string { return "null" }

// Undef is produced when mem2reg proves a load sees no reaching store
// (e.g. a read of a variable before any assignment on every path). It is
// a legal SSA value everywhere a Value is expected; its use in an
// effectful position is a front-end bug, not a core concern.
type Undef struct{ Typ *Type }

func (u *Undef) Type() *Type    { return u.Typ }
func (u *Undef) Name() string   { return "" }
func (u *Undef) String() string { return "undef" }

// Param is one formal parameter of a Function.
type Param struct {
	Typ       *Type
	ParamName string
	Func      *Function
}

func (p *Param) Type() *Type    { return p.Typ }
func (p *Param) Name() string   { return p.ParamName }
func (p *Param) String() string { return "%" + p.ParamName }

// Global is a module-level pointer: either a declared global variable
// (inlined per opt/globalvar) or a string-literal constant.
type Global struct {
	Typ        *Type
	GlobalName string
	IsString   bool
	StrVal     string // only when IsString
	Init       Value  // only for non-string globals: initial word value
}

func (g *Global) Type() *Type    { return g.Typ }
func (g *Global) Name() string   { return g.GlobalName }
func (g *Global) String() string { return "@" + g.GlobalName }
