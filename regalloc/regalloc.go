// Package regalloc assigns each SSA value either a physical register or
// a stack slot (§4.10), grounded on mxc/backend/regalloc.py: spill
// selection bounds the live set to K=26 logical registers before
// assignment, then registers are handed out via a dominator-tree DFS
// walk using a vacancy set. Both preference orders start with a0-a7;
// after them leaf functions take the temporaries t2-t6 before the
// callee-saved s0-s11, and non-leaf functions take s0-s11 before t2-t6.
package regalloc

import (
	"sort"

	"github.com/mx-lang/mxc/dom"
	"github.com/mx-lang/mxc/ir"
	"github.com/mx-lang/mxc/liveness"
)

// K is the live-set bound chooseSpills enforces (§4.10). leafOrder and
// nonLeafOrder each hold 25 registers (zero, ra, sp, gp, tp, t0 and t1
// are in neither), so a point with K unspilled live values can reach
// define's stack-slot fallback.
const K = 26

// Kind distinguishes where a value lives after allocation.
type Kind int

const (
	InRegister Kind = iota
	OnStack
)

// Allocation is the result for one SSA value.
type Allocation struct {
	Kind   Kind
	Reg    string // valid when Kind == InRegister
	Offset int32  // valid when Kind == OnStack: byte offset from sp
}

// Result is the whole-function allocation table plus the spill region
// size, mirroring print_allocation_info's "Stack size" line.
type Result struct {
	Alloc     map[ir.Value]*Allocation
	SpillSize int32 // bytes of stack spill slots, 4-byte words
}

// leafOrder and nonLeafOrder are the two register-preference lists from
// the original. Neither contains ra, so ra is never handed to a value,
// in leaf and non-leaf functions alike.
var leafOrder = buildOrder([]string{"a0", "a1", "a2", "a3", "a4", "a5", "a6", "a7"},
	[]string{"t2", "t3", "t4", "t5", "t6"},
	[]string{"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8", "s9", "s10", "s11"})

var nonLeafOrder = buildOrder([]string{"a0", "a1", "a2", "a3", "a4", "a5", "a6", "a7"},
	[]string{"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8", "s9", "s10", "s11"},
	[]string{"t2", "t3", "t4", "t5", "t6"})

func buildOrder(groups ...[]string) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// Run assigns registers/spill slots for every value defined in fn.
func Run(fn *ir.Function, live *liveness.Result) *Result {
	res := &Result{Alloc: map[ir.Value]*Allocation{}}
	if fn.IsDeclare() {
		return res
	}

	spilled := chooseSpills(fn, live)
	var offset int32
	for _, v := range orderedKeys(spilled) {
		res.Alloc[v] = &Allocation{Kind: OnStack, Offset: offset}
		offset += 4
	}
	res.SpillSize = offset

	order := leafOrder
	if !fn.IsLeaf {
		order = nonLeafOrder
	}
	assignParams(fn, spilled, order, res)
	tree := dom.Build(fn)
	assignRegisters(tree.Preorder()[0], tree, fn, live, spilled, order, res)
	return res
}

// assignParams gives every formal parameter a home before the
// dominator-tree walk begins, so a parameter never defined by any
// instruction still gets an Allocation: the builder's prologue moves it
// there out of the calling-convention argument register/stack slot.
func assignParams(fn *ir.Function, spilled map[ir.Value]bool, order []string, res *Result) {
	occupied := map[string]bool{}
	for _, p := range fn.Params {
		v := ir.Value(p)
		if spilled[v] {
			res.Alloc[v] = &Allocation{Kind: OnStack, Offset: res.SpillSize}
			res.SpillSize += 4
			continue
		}
		for _, reg := range order {
			if !occupied[reg] {
				occupied[reg] = true
				res.Alloc[v] = &Allocation{Kind: InRegister, Reg: reg}
				break
			}
		}
	}
}

// chooseSpills repeatedly picks a value to spill (the lowest SSA name
// among the not-yet-spilled values live at the worst point, matching
// choose_spill's deterministic tie-break; live-range length is not
// considered) until every live-out set has at most K registerable
// members.
func chooseSpills(fn *ir.Function, live *liveness.Result) map[ir.Value]bool {
	spilled := map[ir.Value]bool{}
	for {
		worstInstr, worstSet, worstSize := findWorstPoint(fn, live, spilled)
		if worstInstr == nil || worstSize <= K {
			break
		}
		victim := chooseSpillVictim(worstSet, spilled)
		if victim == nil {
			break
		}
		spilled[victim] = true
	}
	return spilled
}

func findWorstPoint(fn *ir.Function, live *liveness.Result, spilled map[ir.Value]bool) (ir.Instruction, map[ir.Value]bool, int) {
	var worstInstr ir.Instruction
	var worstSet map[ir.Value]bool
	worstSize := 0
	for _, b := range fn.Blocks {
		for _, instr := range b.AllInstrs() {
			set := live.PerInstrLiveOut[instr]
			size := 0
			for v := range set {
				if !spilled[v] {
					size++
				}
			}
			if size > worstSize {
				worstSize = size
				worstSet = set
				worstInstr = instr
			}
		}
	}
	return worstInstr, worstSet, worstSize
}

// chooseSpillVictim returns the not-yet-spilled value in set with the
// lexicographically lowest SSA name, the original's documented
// tie-break. Live-range length plays no part: short-lived values are
// not kept in registers in preference to long-lived ones.
func chooseSpillVictim(set map[ir.Value]bool, spilled map[ir.Value]bool) ir.Value {
	var best ir.Value
	for v := range set {
		if spilled[v] {
			continue
		}
		if best == nil || v.Name() < best.Name() {
			best = v
		}
	}
	return best
}

func orderedKeys(m map[ir.Value]bool) []ir.Value {
	out := make([]ir.Value, 0, len(m))
	for v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// assignRegisters walks the dominator tree in preorder, maintaining the
// set of registers currently occupied by a live value, freeing a
// register as soon as its value is no longer live-out of the current
// instruction, and handing the next free register (in leaf/non-leaf
// preference order) to every newly defined, non-spilled value.
func assignRegisters(b *ir.BasicBlock, tree *dom.Tree, fn *ir.Function, live *liveness.Result, spilled map[ir.Value]bool, order []string, res *Result) {
	occupied := map[string]ir.Value{}
	// seed occupied from values live-in to b that already hold a
	// register assignment from an ancestor in the dominator tree.
	for v := range live.LiveIn[b] {
		if a, ok := res.Alloc[v]; ok && a.Kind == InRegister {
			occupied[a.Reg] = v
		}
	}

	define := func(instr ir.Instruction) {
		v, ok := instr.(ir.Value)
		if !ok || spilled[v] {
			return
		}
		if _, already := res.Alloc[v]; already {
			return
		}
		for _, reg := range order {
			if occupied[reg] == nil {
				occupied[reg] = v
				res.Alloc[v] = &Allocation{Kind: InRegister, Reg: reg}
				return
			}
		}
		// every register in this function's preference list is in use
		// (reachable: the list holds one register fewer than K): fall
		// back to an extra spill slot.
		res.Alloc[v] = &Allocation{Kind: OnStack, Offset: res.SpillSize}
		res.SpillSize += 4
	}

	release := func(instr ir.Instruction) {
		liveOut := live.PerInstrLiveOut[instr]
		for reg, v := range occupied {
			if !liveOut[v] {
				delete(occupied, reg)
			}
		}
	}

	for _, instr := range b.AllInstrs() {
		// Free registers not in live_out before assigning the new
		// definition's home (§4.10): an instruction's own def can then
		// reuse a register one of its operands just died in, instead of
		// spuriously spilling when the preference order is otherwise
		// exhausted.
		release(instr)
		define(instr)
	}

	for _, c := range tree.Children(b) {
		assignRegisters(c, tree, fn, live, spilled, order, res)
	}
}
