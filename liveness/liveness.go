// Package liveness computes per-block live-in/live-out sets and, from
// those, the live-out set at every instruction (§4.9). Grounded on
// mxc/middle_end/liveness_analysis.py: live_out is seeded from
// successors' live_in, then each block is scanned backward, repeating
// over all blocks until no live_in set changes; a phi
// operand is live on the predecessor edge it comes in on, not at the
// phi block's entry.
package liveness

import (
	"github.com/mx-lang/mxc/ir"
	"github.com/mx-lang/mxc/mir"
)

// Result holds the liveness sets for one function. LiveOut maps each
// instruction to the set of values live immediately after it (used by
// regalloc's spill-selection pass).
type Result struct {
	LiveIn  map[*ir.BasicBlock]map[ir.Value]bool
	LiveOut map[*ir.BasicBlock]map[ir.Value]bool
	PerInstrLiveOut map[ir.Instruction]map[ir.Value]bool
}

// Run computes liveness for fn to a backward fixpoint over the CFG.
func Run(fn *ir.Function) *Result {
	r := &Result{
		LiveIn:  map[*ir.BasicBlock]map[ir.Value]bool{},
		LiveOut: map[*ir.BasicBlock]map[ir.Value]bool{},
		PerInstrLiveOut: map[ir.Instruction]map[ir.Value]bool{},
	}
	for _, b := range fn.Blocks {
		r.LiveIn[b] = map[ir.Value]bool{}
		r.LiveOut[b] = map[ir.Value]bool{}
	}

	changed := true
	for changed {
		changed = false
		for i := len(fn.Blocks) - 1; i >= 0; i-- {
			b := fn.Blocks[i]
			out := map[ir.Value]bool{}
			for _, succ := range b.Succs {
				for v := range r.LiveIn[succ] {
					out[v] = true
				}
				// phi operands on this edge are live-out of b even
				// though they are not in LiveIn[succ] as a whole value
				// (the phi itself is; its per-predecessor operand is
				// what's actually live across the edge).
				idx := succ.PredIndex(b)
				if idx >= 0 {
					for _, p := range succ.Phis {
						if instrVal, ok := p.Incoming[idx].(ir.Value); ok {
							out[instrVal] = true
						}
					}
				}
			}
			in := scanBlock(b, out, r.PerInstrLiveOut)
			if !equalSets(in, r.LiveIn[b]) {
				r.LiveIn[b] = in
				changed = true
			}
			r.LiveOut[b] = out
		}
	}
	return r
}

// scanBlock walks b backward from its terminator to its first phi,
// building live-in from live-out by the standard def/use recurrence,
// and records the live-out set immediately after every instruction
// along the way for regalloc's spill heuristics.
func scanBlock(b *ir.BasicBlock, liveOut map[ir.Value]bool, perInstr map[ir.Instruction]map[ir.Value]bool) map[ir.Value]bool {
	live := copySet(liveOut)

	record := func(instr ir.Instruction) {
		perInstr[instr] = copySet(live)
	}

	if b.Term != nil {
		record(b.Term)
		removeDef(live, b.Term)
		for _, u := range uses(b.Term) {
			live[u] = true
		}
	}
	for i := len(b.Instrs) - 1; i >= 0; i-- {
		instr := b.Instrs[i]
		record(instr)
		removeDef(live, instr)
		for _, u := range uses(instr) {
			live[u] = true
		}
	}
	// phi defs are removed from live-in (a phi's def is only live
	// starting at the phi block, never reaching back into a
	// predecessor); phi uses were already folded into predecessor
	// live-out by the caller, not here.
	for _, p := range b.Phis {
		delete(live, ir.Value(p))
	}
	return live
}

func removeDef(live map[ir.Value]bool, instr ir.Instruction) {
	if v, ok := instr.(ir.Value); ok {
		delete(live, v)
	}
}

func uses(instr ir.Instruction) []ir.Value {
	switch v := instr.(type) {
	case *ir.BinOp:
		return []ir.Value{v.LHS, v.RHS}
	case *ir.ICmp:
		return []ir.Value{v.LHS, v.RHS}
	case *ir.Load:
		return []ir.Value{v.Addr}
	case *ir.Store:
		return []ir.Value{v.Addr, v.Src}
	case *ir.GetElementPtr:
		if v.Index != nil {
			return []ir.Value{v.Ptr, v.Index}
		}
		return []ir.Value{v.Ptr}
	case *ir.Call:
		return v.Args
	case *ir.Branch:
		return []ir.Value{v.Cond}
	case *mir.FusedBranch:
		return []ir.Value{v.LHS, v.RHS}
	case *ir.Return:
		if v.Value != nil {
			return []ir.Value{v.Value}
		}
	}
	return nil
}

func copySet(s map[ir.Value]bool) map[ir.Value]bool {
	out := make(map[ir.Value]bool, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

func equalSets(a, b map[ir.Value]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}
