// Package sccp implements sparse conditional constant propagation
// (§4.5), grounded on mxc/middle_end/sccp.py: a three-point lattice per
// value (Unknown, Constant, NotConstant), a CFG-edge executability
// worklist and an SSA-edge worklist, run to a joint fixpoint.
package sccp

import (
	"math"

	"github.com/mx-lang/mxc/ir"
)

type latticeKind int

const (
	unknown latticeKind = iota
	constant
	notConstant
)

type cell struct {
	kind latticeKind
	val  int32
}

func meet(a, b cell) cell {
	if a.kind == unknown {
		return b
	}
	if b.kind == unknown {
		return a
	}
	if a.kind == constant && b.kind == constant && a.val == b.val {
		return a
	}
	return cell{kind: notConstant}
}

type edge struct{ from, to *ir.BasicBlock }

// Run folds every provably-constant value and removes provably-dead CFG
// edges in fn, returning the number of instructions folded.
func Run(fn *ir.Function) int {
	if fn.IsDeclare() || len(fn.Blocks) == 0 {
		return 0
	}
	s := &solver{
		fn:          fn,
		cells:       map[ir.Value]cell{},
		execBlock:   map[*ir.BasicBlock]bool{},
		execEdge:    map[edge]bool{},
		cfgWorklist: []edge{},
	}
	s.run()
	return s.fold()
}

type solver struct {
	fn          *ir.Function
	cells       map[ir.Value]cell
	execBlock   map[*ir.BasicBlock]bool
	execEdge    map[edge]bool
	cfgWorklist []edge
	ssaWorklist []ir.Value
}

func (s *solver) get(v ir.Value) cell {
	switch c := v.(type) {
	case *ir.Const:
		return cell{kind: constant, val: c.Val}
	}
	if c, ok := s.cells[v]; ok {
		return c
	}
	return cell{kind: unknown}
}

func (s *solver) setCell(v ir.Value, c cell) {
	old := s.get(v)
	merged := meet(old, c)
	if merged != old {
		s.cells[v] = merged
		s.ssaWorklist = append(s.ssaWorklist, v)
	}
}

func (s *solver) run() {
	entry := s.fn.Entry()
	s.execBlock[entry] = true
	s.cfgWorklist = append(s.cfgWorklist, edge{nil, entry})

	for len(s.cfgWorklist) > 0 || len(s.ssaWorklist) > 0 {
		for len(s.cfgWorklist) > 0 {
			e := s.cfgWorklist[0]
			s.cfgWorklist = s.cfgWorklist[1:]
			if s.execEdge[e] {
				continue
			}
			s.execEdge[e] = true
			first := !s.execBlock[e.to]
			s.execBlock[e.to] = true
			s.visitPhis(e.to)
			if first {
				s.visitBlock(e.to)
			}
		}
		for len(s.ssaWorklist) > 0 {
			v := s.ssaWorklist[0]
			s.ssaWorklist = s.ssaWorklist[1:]
			instr, ok := v.(ir.Instruction)
			if !ok {
				continue
			}
			b := instr.Block()
			if b == nil || !s.execBlock[b] {
				continue
			}
			if p, ok := v.(*ir.Phi); ok {
				s.visitPhi(p)
				continue
			}
			s.visitValue(instr)
		}
	}
}

func (s *solver) visitPhis(b *ir.BasicBlock) {
	for _, p := range b.Phis {
		s.visitPhi(p)
	}
}

func (s *solver) visitPhi(p *ir.Phi) {
	result := cell{kind: unknown}
	for i, pred := range p.Block().Preds {
		if !s.execEdge[edge{pred, p.Block()}] {
			continue
		}
		result = meet(result, s.get(p.Incoming[i]))
	}
	s.setCell(p, result)
}

func (s *solver) visitBlock(b *ir.BasicBlock) {
	for _, instr := range b.Instrs {
		s.visitValue(instr)
	}
	switch t := b.Term.(type) {
	case *ir.Jump:
		s.cfgWorklist = append(s.cfgWorklist, edge{b, t.Target})
	case *ir.Branch:
		cond := s.get(t.Cond)
		if cond.kind == constant {
			if cond.val != 0 {
				s.cfgWorklist = append(s.cfgWorklist, edge{b, t.TrueTarget})
			} else {
				s.cfgWorklist = append(s.cfgWorklist, edge{b, t.FalseTarget})
			}
		} else {
			s.cfgWorklist = append(s.cfgWorklist, edge{b, t.TrueTarget}, edge{b, t.FalseTarget})
		}
	}
}

func (s *solver) visitValue(instr ir.Instruction) {
	switch v := instr.(type) {
	case *ir.BinOp:
		lhs, rhs := s.get(v.LHS), s.get(v.RHS)
		s.setCell(v, evalBinOp(v.Op, lhs, rhs))
	case *ir.ICmp:
		lhs, rhs := s.get(v.LHS), s.get(v.RHS)
		s.setCell(v, evalICmp(v.Pred, lhs, rhs))
	default:
		// Loads, calls, GEPs and allocas are never constant-foldable here.
		if val, ok := instr.(ir.Value); ok {
			s.setCell(val, cell{kind: notConstant})
		}
	}
}

// evalBinOp mirrors sccp.py's visit_expr: wraparound 32-bit arithmetic,
// floor-division semantics for sdiv/srem (not the IR's truncating
// division), and a div-by-zero guard that leaves the cell Unknown
// instead of folding to anything (§9 open-question decision).
func evalBinOp(op string, l, r cell) cell {
	if l.kind == notConstant || r.kind == notConstant {
		return cell{kind: notConstant}
	}
	if l.kind == unknown || r.kind == unknown {
		return cell{kind: unknown}
	}
	a, b := int64(l.val), int64(r.val)
	switch op {
	case "add":
		return toI32(a + b)
	case "sub":
		return toI32(a - b)
	case "mul":
		return toI32(a * b)
	case "sdiv":
		if b == 0 {
			return cell{kind: unknown}
		}
		return toI32(floorDiv(a, b))
	case "srem":
		if b == 0 {
			return cell{kind: unknown}
		}
		return toI32(a - floorDiv(a, b)*b)
	case "and":
		return toI32(a & b)
	case "or":
		return toI32(a | b)
	case "xor":
		return toI32(a ^ b)
	case "shl":
		return toI32(a << uint(b&31))
	case "ashr":
		return toI32(a >> uint(b&31))
	}
	return cell{kind: notConstant}
}

func evalICmp(pred string, l, r cell) cell {
	if l.kind == notConstant || r.kind == notConstant {
		return cell{kind: notConstant}
	}
	if l.kind == unknown || r.kind == unknown {
		return cell{kind: unknown}
	}
	a, b := l.val, r.val
	var res bool
	switch pred {
	case "eq":
		res = a == b
	case "ne":
		res = a != b
	case "slt":
		res = a < b
	case "sle":
		res = a <= b
	case "sgt":
		res = a > b
	case "sge":
		res = a >= b
	default:
		return cell{kind: notConstant}
	}
	v := int32(0)
	if res {
		v = 1
	}
	return cell{kind: constant, val: v}
}

// floorDiv implements the source language's floor division, as distinct
// from Go's/LLVM's truncating "sdiv".
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func toI32(v int64) cell {
	v = v & 0xFFFFFFFF
	if v > math.MaxInt32 {
		v -= 1 << 32
	}
	return cell{kind: constant, val: int32(v)}
}

// fold rewrites every instruction/phi proven constant into an ir.Const
// use everywhere, and collapses every Branch whose condition is constant
// into a Jump, deleting the now-unreachable edge (cfgsimplify later
// removes the resulting dead block entirely).
func (s *solver) fold() int {
	folded := 0
	replacements := map[ir.Value]ir.Value{}
	for v, c := range s.cells {
		if c.kind == constant {
			replacements[v] = &ir.Const{Typ: v.Type(), Val: c.val}
			folded++
		}
	}
	for _, b := range s.fn.Blocks {
		for _, p := range b.Phis {
			for i, v := range p.Incoming {
				if r, ok := replacements[v]; ok {
					p.Incoming[i] = r
				}
			}
		}
		for _, instr := range b.Instrs {
			substituteOperands(instr, replacements)
		}
		switch t := b.Term.(type) {
		case *ir.Branch:
			if r, ok := replacements[t.Cond]; ok {
				t.Cond = r
			}
			if c, ok := t.Cond.(*ir.Const); ok {
				kept, dropped := t.TrueTarget, t.FalseTarget
				if c.Val == 0 {
					kept, dropped = t.FalseTarget, t.TrueTarget
				}
				dropped.RemovePred(b)
				b.ReplaceBranchWithJump(kept)
			}
		case *ir.Return:
			if t.Value != nil {
				if r, ok := replacements[t.Value]; ok {
					t.Value = r
				}
			}
		}
	}
	return folded
}

func substituteOperands(instr ir.Instruction, rep map[ir.Value]ir.Value) {
	sub := func(v ir.Value) ir.Value {
		if r, ok := rep[v]; ok {
			return r
		}
		return v
	}
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
