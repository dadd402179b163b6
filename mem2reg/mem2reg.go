// Package mem2reg promotes Allocas with only simple Load/Store uses into
// SSA registers, inserting pruned phi nodes at the iterated dominance
// frontier of each Alloca's defining (storing) blocks (§4.2). This is a
// direct generalization of the teacher's ssa/lift.go: lift.go matches on
// pointer identity of *ssa.Alloc values rather than string variable
// names, and so does this pass — ir.Store.Addr/ir.Load.Addr are compared
// by *ir.Alloca identity, never by name.
package mem2reg

import (
	"github.com/mx-lang/mxc/dom"
	"github.com/mx-lang/mxc/ir"
)

// Run promotes every promotable Alloca in fn. It mutates fn in place and
// returns the number of allocas promoted, mainly for pipeline logging.
func Run(fn *ir.Function) int {
	if fn.IsDeclare() {
		return 0
	}
	tree := dom.Build(fn)
	candidates := collectPromotable(fn)
	for _, alloc := range candidates {
		promote(fn, tree, alloc)
	}
	removeAllocas(fn, candidates)
	return len(candidates)
}

// collectPromotable finds every Alloca whose only uses are Load/Store
// against it directly — no GetElementPtr, Call argument, or any other
// instruction ever sees its address. An address that escapes must keep
// its stack slot, since some other instruction might alias it.
func collectPromotable(fn *ir.Function) []*ir.Alloca {
	var result []*ir.Alloca
	escapes := map[*ir.Alloca]bool{}
	var allocas []*ir.Alloca

	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			if a, ok := instr.(*ir.Alloca); ok {
				allocas = append(allocas, a)
			}
		}
	}

	markEscape := func(v ir.Value) {
		if a, ok := v.(*ir.Alloca); ok {
			escapes[a] = true
		}
	}
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			switch v := instr.(type) {
			case *ir.Store:
				markEscape(v.Src) // stored AS a value elsewhere: its address escapes
			case *ir.GetElementPtr:
				markEscape(v.Ptr)
			case *ir.Call:
				for _, a := range v.Args {
					markEscape(a)
				}
			case *ir.BinOp:
				markEscape(v.LHS)
				markEscape(v.RHS)
			case *ir.ICmp:
				markEscape(v.LHS)
				markEscape(v.RHS)
			case *ir.Load:
				// using the address itself to load from is fine; only
				// flows of the *pointer value* elsewhere count as escape.
			}
		}
		if r, ok := b.Term.(*ir.Return); ok && r.Value != nil {
			markEscape(r.Value)
		}
	}
	for _, a := range allocas {
		if !escapes[a] {
			result = append(result, a)
		}
	}
	return result
}

// promote runs the mem2reg core algorithm for a single alloca: phi
// placement at the iterated dominance frontier of its storing blocks,
// then a dominator-tree-order renaming pass that rewrites every Load to
// the reaching Store/Phi value (undef where no store reaches) and
// removes the Store/Load instructions.
func promote(fn *ir.Function, tree *dom.Tree, alloc *ir.Alloca) {
	defBlocks := definingBlocks(fn, alloc)
	phiBlocks := tree.IteratedFrontier(defBlocks)
	phis := map[*ir.BasicBlock]*ir.Phi{}
	for _, b := range phiBlocks {
		p := fn.NewPhi(b, alloc.Type())
		p.Incoming = make([]ir.Value, len(b.Preds))
		phis[b] = p
	}

	rename(tree.Preorder()[0], tree, alloc, phis, nil)
}

func definingBlocks(fn *ir.Function, alloc *ir.Alloca) []*ir.BasicBlock {
	seen := map[*ir.BasicBlock]bool{}
	var out []*ir.BasicBlock
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			if s, ok := instr.(*ir.Store); ok && s.Addr == alloc {
				if !seen[b] {
					seen[b] = true
					out = append(out, b)
				}
			}
		}
	}
	return out
}

// rename performs the dominator-tree DFS renaming pass of the classic
// algorithm, carrying the current reaching value for alloc down through
// dominator-tree children via recursion (explicit about which block's
// children to visit next, as ssa/lift.go's rename() does, rather than a
// single global stack keyed by name).
func rename(b *ir.BasicBlock, tree *dom.Tree, alloc *ir.Alloca, phis map[*ir.BasicBlock]*ir.Phi, incoming ir.Value) {
	current := incoming
	if p, ok := phis[b]; ok {
		current = p
	}

	var kept []ir.Instruction
	for _, instr := range b.Instrs {
		switch v := instr.(type) {
		case *ir.Load:
			if v.Addr == alloc {
				replaceUses(b.Func, v, currentOrUndef(current, alloc))
				continue // drop the load
			}
		case *ir.Store:
			if v.Addr == alloc {
				current = v.Src
				continue // drop the store
			}
		}
		kept = append(kept, instr)
	}
	b.Instrs = kept

	for _, succ := range b.Succs {
		if p, ok := phis[succ]; ok {
			idx := succ.PredIndex(b)
			if idx >= 0 {
				p.Incoming[idx] = currentOrUndef(current, alloc)
			}
		}
	}

	for _, c := range tree.Children(b) {
		rename(c, tree, alloc, phis, current)
	}
}

func currentOrUndef(v ir.Value, alloc *ir.Alloca) ir.Value {
	if v == nil {
		return &ir.Undef{Typ: alloc.Type()}
	}
	return v
}

// replaceUses substitutes old for new in every remaining use across fn.
// This is a whole-function scan rather than a def-use chain because the
// IR does not maintain one (§5: single-pass, throwaway per function).
func replaceUses(fn *ir.Function, old, new_ ir.Value) {
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
				if v.Index != nil {
					v.Index = sub(v.Index)
				}
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

func removeAllocas(fn *ir.Function, promoted []*ir.Alloca) {
	dead := map[*ir.Alloca]bool{}
	for _, a := range promoted {
		dead[a] = true
	}
	for _, b := range fn.Blocks {
		kept := b.Instrs[:0]
		for _, instr := range b.Instrs {
			if a, ok := instr.(*ir.Alloca); ok && dead[a] {
				continue
			}
			kept = append(kept, instr)
		}
		b.Instrs = kept
	}
}
