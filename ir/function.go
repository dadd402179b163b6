package ir

// Function is a whole-program IR function: either a definition (Blocks
// non-empty) or a declaration of an external/builtin symbol.
type Function struct {
	Name       string
	RetType    *Type
	Params     []*Param
	Blocks     []*BasicBlock // entry is Blocks[0]; nil/empty for a declaration
	NoEffect   bool          // asserted by symtab: calling this has no observable side effect
	IsLeaf     bool          // set by whoever builds the function; no pass of the core computes or updates it
	nextID     int
	nextBlock  int
}

func NewFunction(name string, ret *Type) *Function {
	return &Function{Name: name, RetType: ret}
}

func (f *Function) IsDeclare() bool { return len(f.Blocks) == 0 }

// Entry returns the function's entry block.
func (f *Function) Entry() *BasicBlock {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// NewBlock allocates and appends a fresh block named hint, like the
// original's "%then", "%else", "%merge" hints, or "bb" when hint is
// empty. Names are not made unique.
func (f *Function) NewBlock(hint string) *BasicBlock {
	if hint == "" {
		hint = "bb"
	}
	b := NewBlock(hint)
	b.Func = f
	f.Blocks = append(f.Blocks, b)
	f.RenumberBlocks()
	return b
}

// RenumberBlocks refreshes every block's Index to its position in
// Blocks. Every pass that reorders or deletes blocks must call this
// before any pass that relies on Index (dominators, liveness, regalloc).
func (f *Function) RenumberBlocks() {
	for i, b := range f.Blocks {
		b.Index = i
	}
}

// FreshName allocates the next SSA name for the function, mirroring the
// per-function renamer counter the concurrency model requires (§5): each
// Function owns its own counter so passes never share renaming state
// across functions, even though the pipeline runs single-threaded.
func (f *Function) FreshName(hint string) string {
	f.nextID++
	if hint == "" {
		return intToString(int64(f.nextID))
	}
	return hint + "." + intToString(int64(f.nextID))
}

// NewAlloca, NewBinOp, ... are thin constructors that assign a fresh
// name and type and append to a block; they exist so every pass builds
// instructions the same way instead of hand-rolling valueBase setup.

func (f *Function) NewAlloca(b *BasicBlock, elemTyp *Type) *Alloca {
	a := &Alloca{valueBase{instrBase{}, f.FreshName(""), TypePtr}}
	_ = elemTyp
	b.AddInstr(a)
	return a
}

func (f *Function) NewBinOp(b *BasicBlock, op string, lhs, rhs Value) *BinOp {
	v := &BinOp{valueBase{instrBase{}, f.FreshName(""), TypeI32}, op, lhs, rhs}
	b.AddInstr(v)
	return v
}

func (f *Function) NewICmp(b *BasicBlock, pred string, lhs, rhs Value) *ICmp {
	v := &ICmp{valueBase{instrBase{}, f.FreshName(""), TypeI1}, pred, lhs, rhs}
	b.AddInstr(v)
	return v
}

func (f *Function) NewLoad(b *BasicBlock, addr Value, typ *Type) *Load {
	v := &Load{valueBase{instrBase{}, f.FreshName(""), typ}, addr}
	b.AddInstr(v)
	return v
}

func (f *Function) NewStore(b *BasicBlock, addr, src Value) *Store {
	s := &Store{Addr: addr, Src: src}
	b.AddInstr(s)
	return s
}

func (f *Function) NewPhi(b *BasicBlock, typ *Type) *Phi {
	p := &Phi{valueBase: valueBase{instrBase{}, f.FreshName(""), typ}}
	b.AddPhi(p)
	return p
}

func (f *Function) NewCall(b *BasicBlock, callee string, typ *Type, args []Value, noEffect bool) *Call {
	c := &Call{valueBase{instrBase{}, f.FreshName(""), typ}, callee, args, noEffect}
	b.AddInstr(c)
	return c
}
