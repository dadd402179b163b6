package ir

// Instruction is anything that lives in a BasicBlock's command list.
// Value-producing instructions also implement Value; terminators do not.
type Instruction interface {
	Block() *BasicBlock
	SetBlock(*BasicBlock)
	String() string
}

type instrBase struct {
	block   *BasicBlock
	comment string
}

func (b *instrBase) Block() *BasicBlock   { return b.block }
func (b *instrBase) SetBlock(bb *BasicBlock) { b.block = bb }

// valueBase gives a value-producing instruction a stable SSA name and
// type, set once by the builder/renamer.
type valueBase struct {
	instrBase
	id  string
	typ *Type
}

func (v *valueBase) Type() *Type   { return v.typ }
func (v *valueBase) Name() string  { return v.id }
func (v *valueBase) String() string { return "%" + v.id }

// SetName/SetType let a lowering pass (mir, gvnpre) reuse an existing
// SSA name/type when it replaces one instruction with another that
// should be indistinguishable to every remaining use.
func (v *valueBase) SetName(id string)  { v.id = id }
func (v *valueBase) SetType(t *Type)    { v.typ = t }

// BinOp is one of add/sub/mul/sdiv/srem/and/or/xor/shl/ashr (§3.3).
type BinOp struct {
	valueBase
	Op       string
	LHS, RHS Value
}

// ICmp keeps the source-level predicate (eq/ne/slt/sle/sgt/sge) through
// mir, which does not normalize it to slt form: mir only fuses an icmp
// feeding a branch into a mir.FusedBranch, and asmgen expands each
// predicate into its own slt/sltu/xor sequence.
type ICmp struct {
	valueBase
	Pred     string
	LHS, RHS Value
}

// Alloca reserves one stack slot; mem2reg promotes it to SSA registers
// when every use is a plain Load/Store against it.
type Alloca struct {
	valueBase
}

// Load reads the word pointed to by Addr.
type Load struct {
	valueBase
	Addr Value
}

// Store writes Src to the word pointed to by Addr. Stores produce no
// value, so Store is an Instruction but not a Value.
type Store struct {
	instrBase
	Addr, Src Value
}

func (s *Store) String() string { return "store " + s.Src.Type().String() + " " + s.Src.String() + ", ptr " + s.Addr.String() }

// GetElementPtr computes a member or array-element address. ClassName
// names the pointee layout (class or the runtime array object);
// MemberIndex is resolved against that layout when Member != "".
type GetElementPtr struct {
	valueBase
	Ptr         Value
	Index       Value // array index, defaults to i32 0
	Member      string
	MemberIndex int
}

// Call invokes a known function symbol. NoEffect mirrors the original's
// call_no/no_effect classification (asserted by symtab, not inferred):
// a call the DCE pass may drop if its result is unused, because the
// front end has proven it has no observable side effect.
type Call struct {
	valueBase
	Callee   string
	Args     []Value
	NoEffect bool
}

// Malloc is IRMalloc in the original: always `call ptr @malloc(i32 n)`,
// kept as a distinct instruction so DCE and regalloc can special-case it
// without string-matching the callee name.
type Malloc struct {
	valueBase
	Size int32
}

// Phi merges values coming from distinct predecessors. Incoming mirrors
// predecessor order 1:1 with BasicBlock.Preds.
type Phi struct {
	valueBase
	Incoming []Value
}

// --- terminators (not Values) ---

// Jump is an unconditional edge to a single successor.
type Jump struct {
	instrBase
	Target *BasicBlock
}

func (j *Jump) String() string { return "br label %" + j.Target.Name }

// Branch is a two-way conditional edge. TrueTarget/FalseTarget mirror
// BasicBlock.Succs[0]/[1] 1:1.
type Branch struct {
	instrBase
	Cond                   Value
	TrueTarget, FalseTarget *BasicBlock
}

func (b *Branch) String() string {
	return "br i1 " + b.Cond.String() + ", label %" + b.TrueTarget.Name + ", label %" + b.FalseTarget.Name
}

// Return exits the function, optionally with a value (void functions
// carry Value == nil).
type Return struct {
	instrBase
	Typ   *Type
	Value Value
}

func (r *Return) String() string {
	if r.Value == nil {
		return "ret void"
	}
	return "ret " + r.Typ.String() + " " + r.Value.String()
}

// Unreachable marks a block the builder determined can never execute
// (the original's UnreachableBlock sentinel).
type Unreachable struct{ instrBase }

func (u *Unreachable) String() string { return "unreachable" }
