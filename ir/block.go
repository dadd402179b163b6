package ir

// BasicBlock is a maximal straight-line instruction sequence ending in
// exactly one terminator (Jump, Branch, Return or Unreachable).
// Predecessor/successor lists are kept in lockstep with each terminator's
// own target fields and with every Phi's Incoming order (§3.2 invariant:
// phi operand i corresponds to Preds[i]).
type BasicBlock struct {
	Name  string
	Func  *Function
	Phis  []*Phi
	Instrs []Instruction // non-phi, non-terminator instructions, in order
	Term  Instruction    // *Jump, *Branch, *Return or *Unreachable; nil until closed

	Preds []*BasicBlock
	Succs []*BasicBlock

	// Index is the block's position in Func.Blocks, refreshed by
	// RenumberBlocks; used as the dense index for the dominator bitsets
	// and arrays.
	Index int

	Unreachable bool // no pass of the core sets this; dom skips predecessors that carry it
}

func NewBlock(name string) *BasicBlock { return &BasicBlock{Name: name} }

func (b *BasicBlock) AddInstr(instr Instruction) {
	instr.SetBlock(b)
	b.Instrs = append(b.Instrs, instr)
}

func (b *BasicBlock) AddPhi(p *Phi) {
	p.SetBlock(b)
	b.Phis = append(b.Phis, p)
}

// SetJump closes the block with an unconditional branch and wires the
// Preds/Succs edge.
func (b *BasicBlock) SetJump(target *BasicBlock) {
	j := &Jump{Target: target}
	j.SetBlock(b)
	b.Term = j
	b.addSucc(target)
}

// SetBranch closes the block with a two-way conditional branch.
func (b *BasicBlock) SetBranch(cond Value, t, f *BasicBlock) {
	br := &Branch{Cond: cond, TrueTarget: t, FalseTarget: f}
	br.SetBlock(b)
	b.Term = br
	b.addSucc(t)
	b.addSucc(f)
}

// SetReturn closes the block with a function exit.
func (b *BasicBlock) SetReturn(typ *Type, v Value) {
	r := &Return{Typ: typ, Value: v}
	r.SetBlock(b)
	b.Term = r
}

// SetUnreachable marks the block as having no valid exit (dead code the
// front end proved could never run).
func (b *BasicBlock) SetUnreachable() {
	u := &Unreachable{}
	u.SetBlock(b)
	b.Term = u
}

func (b *BasicBlock) addSucc(target *BasicBlock) {
	b.Succs = append(b.Succs, target)
	target.Preds = append(target.Preds, b)
}

// AllInstrs yields phis first, then body instructions, then the
// terminator — the canonical per-block iteration order used by every
// pass that walks a block top to bottom.
func (b *BasicBlock) AllInstrs() []Instruction {
	all := make([]Instruction, 0, len(b.Phis)+len(b.Instrs)+1)
	for _, p := range b.Phis {
		all = append(all, p)
	}
	all = append(all, b.Instrs...)
	if b.Term != nil {
		all = append(all, b.Term)
	}
	return all
}

// PredIndex returns the index of pred within b.Preds, used to find the
// matching Phi.Incoming slot on an edge.
func (b *BasicBlock) PredIndex(pred *BasicBlock) int {
	for i, p := range b.Preds {
		if p == pred {
			return i
		}
	}
	return -1
}

// ReplaceBranchWithJump collapses a two-way Branch terminator into an
// unconditional Jump to kept, after the caller has already proven the
// other target is unreachable. It drops the other target from b.Succs
// only: b stays in the dropped target's predecessor list until the
// caller removes it with RemovePred (as sccp does). Unlike SetJump, it
// does not re-add b to kept's predecessor list — that edge already
// exists from the original Branch and phi operand indices must not shift.
func (b *BasicBlock) ReplaceBranchWithJump(kept *BasicBlock) {
	j := &Jump{Target: kept}
	j.SetBlock(b)
	b.Term = j
	b.Succs = []*BasicBlock{kept}
}

// RemovePred deletes one incoming edge (and the matching phi operand in
// every phi of b), used by cfgsimplify when pruning unreachable preds.
func (b *BasicBlock) RemovePred(pred *BasicBlock) {
	idx := b.PredIndex(pred)
	if idx < 0 {
		return
	}
	b.Preds = append(b.Preds[:idx], b.Preds[idx+1:]...)
	for _, p := range b.Phis {
		p.Incoming = append(p.Incoming[:idx], p.Incoming[idx+1:]...)
	}
}
