// Package cfgsimplify removes unreachable blocks, folds single-source
// phis and trivial "add x, 0"-style copies, and splits critical edges
// (§4.6). Grounded on mxc/middle_end/remove_unreachable.py and
// cfg_transform.py, which the original keeps as two near-duplicate
// passes; here they are one pass with the original's two phases kept
// distinct (reachability, then copy propagation) since later stages
// (parallel-move, phi elimination) depend on copy propagation having
// already run.
package cfgsimplify

import "github.com/mx-lang/mxc/ir"

// Run prunes unreachable blocks, propagates trivial copies, and splits
// critical edges. Returns the number of blocks removed.
func Run(fn *ir.Function) int {
	if fn.IsDeclare() || len(fn.Blocks) == 0 {
		return 0
	}
	removed := removeUnreachable(fn)
	copyPropagation(fn)
	SplitCriticalEdges(fn)
	return removed
}

// removeUnreachable computes reachability forward from the entry block
// (a block kept alive only by a dead predecessor is not reachable)
// intersected with reachability backward from any Return (a block that
// can never reach a return, e.g. trapped in an infinite loop left
// behind by SCCP folding away its only exit, is equally dead per §4.6),
// and deletes every block outside that intersection, fixing up Phi
// operand lists on any surviving successor.
func removeUnreachable(fn *ir.Function) int {
	entry := fn.Entry()
	forward := map[*ir.BasicBlock]bool{entry: true}
	queue := []*ir.BasicBlock{entry}
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		for _, s := range b.Succs {
			if !forward[s] {
				forward[s] = true
				queue = append(queue, s)
			}
		}
	}

	backward := map[*ir.BasicBlock]bool{}
	queue = nil
	for _, b := range fn.Blocks {
		if _, ok := b.Term.(*ir.Return); ok && !backward[b] {
			backward[b] = true
			queue = append(queue, b)
		}
	}
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		for _, p := range b.Preds {
			if !backward[p] {
				backward[p] = true
				queue = append(queue, p)
			}
		}
	}

	reachable := map[*ir.BasicBlock]bool{}
	for b := range forward {
		if backward[b] {
			reachable[b] = true
		}
	}

	var kept []*ir.BasicBlock
	removed := 0
	for _, b := range fn.Blocks {
		if reachable[b] {
			kept = append(kept, b)
			continue
		}
		removed++
		for _, s := range b.Succs {
			if reachable[s] {
				s.RemovePred(b)
			}
		}
	}
	fn.Blocks = kept
	fn.RenumberBlocks()
	return removed
}

// copyPropagation folds every phi with a single distinct incoming value
// (after removeUnreachable, a loop-carried phi with one live predecessor
// degenerates to this) by replacing all its uses with that value and
// deleting it. Also folds "x = add y, 0" / "x = add 0, y" into a direct
// use of y, the one arithmetic identity the original's cfg_transform.py
// explicitly special-cases because mem2reg can introduce it when
// promoting a variable that is only ever re-stored with its own value
// plus a runtime-proven-zero offset.
func copyPropagation(fn *ir.Function) {
	changed := true
	for changed {
		changed = false
		for _, b := range fn.Blocks {
			var keptPhis []*ir.Phi
			for _, p := range b.Phis {
				if same := singleDistinctValue(p); same != nil {
					replaceValue(fn, p, same)
					changed = true
					continue
				}
				keptPhis = append(keptPhis, p)
			}
			b.Phis = keptPhis

			var keptInstrs []ir.Instruction
			for _, instr := range b.Instrs {
				if bop, ok := instr.(*ir.BinOp); ok && bop.Op == "add" {
					if isZero(bop.RHS) {
						replaceValue(fn, bop, bop.LHS)
						changed = true
						continue
					}
					if isZero(bop.LHS) {
						replaceValue(fn, bop, bop.RHS)
						changed = true
						continue
					}
				}
				keptInstrs = append(keptInstrs, instr)
			}
			b.Instrs = keptInstrs
		}
	}
}

func isZero(v ir.Value) bool {
	c, ok := v.(*ir.Const)
	return ok && c.Val == 0
}

// singleDistinctValue returns the common incoming value of p if every
// operand (ignoring a self-reference to p, which a loop phi can contain)
// is the same value, else nil.
func singleDistinctValue(p *ir.Phi) ir.Value {
	var same ir.Value
	for _, v := range p.Incoming {
		if v == ir.Value(p) {
			continue
		}
		if same == nil {
			same = v
		} else if same != v {
			return nil
		}
	}
	return same
}

func replaceValue(fn *ir.Function, old, new_ ir.Value) {
	sub := func(v ir.Value) ir.Value {
		if v == old {
			return new_
		}
		return v
	}
	for _, b := range fn.Blocks {
		for _, p := range b.Phis {
			for i, v := range p.Incoming {
				p.Incoming[i] = sub(v)
			}
		}
		for _, instr := range b.Instrs {
			switch v := instr.(type) {
			case *ir.BinOp:
				v.LHS, v.RHS = sub(v.LHS), sub(v.RHS)
			case *ir.ICmp:
				v.LHS, v.RHS = sub(v.LHS), sub(v.RHS)
			case *ir.Store:
				v.Addr, v.Src = sub(v.Addr), sub(v.Src)
			case *ir.Load:
				v.Addr = sub(v.Addr)
			case *ir.GetElementPtr:
				v.Ptr = sub(v.Ptr)
			case *ir.Call:
				for i, a := range v.Args {
					v.Args[i] = sub(a)
				}
			}
		}
		switch t := b.Term.(type) {
		case *ir.Branch:
			t.Cond = sub(t.Cond)
		case *ir.Return:
			if t.Value != nil {
				t.Value = sub(t.Value)
			}
		}
	}
}

// SplitCriticalEdges inserts a trampoline block on every edge that is
// both a branch with two successors and a join with multiple
// predecessors, so later phi elimination can place parallel-move
// sequences without clobbering a value live on the other edge out of
// the same source block. This invariant is unconditional (§3.6): every
// level, including O0, runs it, since mem2reg's phi insertion always
// runs and asmgen's phi elimination always assumes it has already
// happened (pipeline.Run calls this directly, not gated on opts.Level).
func SplitCriticalEdges(fn *ir.Function) {
	var newBlocks []*ir.BasicBlock
	for _, b := range fn.Blocks {
		if len(b.Succs) < 2 {
			continue
		}
		for i, s := range b.Succs {
			if len(s.Preds) < 2 {
				continue
			}
			trampoline := fn.NewBlock("crit.edge")
			trampoline.SetJump(s)
			// SetJump appended trampoline to s.Preds; it takes b's slot
			// below instead, so drop the appended copy.
			s.Preds = s.Preds[:len(s.Preds)-1]
			idx := s.PredIndex(b)
			s.Preds[idx] = trampoline
			trampoline.Preds = []*ir.BasicBlock{b}
			b.Succs[i] = trampoline
			switch t := b.Term.(type) {
			case *ir.Branch:
				if t.TrueTarget == s {
					t.TrueTarget = trampoline
				}
				if t.FalseTarget == s {
					t.FalseTarget = trampoline
				}
			}
			newBlocks = append(newBlocks, trampoline)
		}
	}
	_ = newBlocks
	fn.RenumberBlocks()
}
