// Package gvnpre implements global value numbering with dominator-path
// redundancy elimination (§4.7), grounded on mxc/middle_end/gvn_pre.py's
// value-number table with commutative-op canonicalization. One
// dominator-tree walk numbers every binop/icmp and removes a
// computation whose value number is already available from a
// dominating block or earlier in the same block. There is no antic_in
// fixpoint and no insertion phase: a computation that is redundant only
// along some of the paths into a join is kept.
package gvnpre

import (
	"github.com/mx-lang/mxc/dom"
	"github.com/mx-lang/mxc/ir"
)

// expr is a value-numbered expression: a canonicalized (op, vn(lhs),
// vn(rhs)) triple. Commutative ops are ordered by value number so "a+b"
// and "b+a" collide, matching BinOpExpression's canonicalization.
type expr struct {
	op       string
	lhs, rhs int // value numbers, rhs == -1 for unary/none
}

var commutative = map[string]bool{"add": true, "mul": true, "and": true, "or": true, "xor": true, "icmp.eq": true, "icmp.ne": true}

// table assigns a dense value number to every distinct expression or
// leaf value seen so far, exactly as ValueTable does.
type table struct {
	vn      map[ir.Value]int
	byExpr  map[expr]int
	leaders map[int]ir.Value // first Value computing each number, used at elimination time
	next    int
}

func newTable() *table {
	return &table{vn: map[ir.Value]int{}, byExpr: map[expr]int{}, leaders: map[int]ir.Value{}}
}

func (t *table) numberLeaf(v ir.Value) int {
	if n, ok := t.vn[v]; ok {
		return n
	}
	n := t.next
	t.next++
	t.vn[v] = n
	t.leaders[n] = v
	return n
}

func (t *table) numberExpr(op string, lhsN, rhsN int, v ir.Value) int {
	if commutative[op] && rhsN >= 0 && lhsN > rhsN {
		lhsN, rhsN = rhsN, lhsN
	}
	e := expr{op, lhsN, rhsN}
	if n, ok := t.byExpr[e]; ok {
		t.vn[v] = n
		return n
	}
	n := t.next
	t.next++
	t.byExpr[e] = n
	t.vn[v] = n
	t.leaders[n] = v
	return n
}

// Run applies value numbering to fn, eliminating every binop/icmp whose
// value is already computed by a dominating instruction. It inserts no
// new computations. Returns the number of instructions eliminated.
func Run(fn *ir.Function) int {
	if fn.IsDeclare() || len(fn.Blocks) == 0 {
		return 0
	}
	tree := dom.Build(fn)
	t := newTable()

	// Phase 1 (dominator-tree order): number every leaf value and
	// redundant-eliminate any binop/icmp whose value number is already
	// available earlier in the same dominating chain.
	eliminated := 0
	availAtBlock := map[*ir.BasicBlock]map[int]ir.Value{}
	var walk func(b *ir.BasicBlock, avail map[int]ir.Value)
	walk = func(b *ir.BasicBlock, avail map[int]ir.Value) {
		local := map[int]ir.Value{}
		for k, v := range avail {
			local[k] = v
		}
		var kept []ir.Instruction
		for _, instr := range b.Instrs {
			switch v := instr.(type) {
			case *ir.BinOp:
				lhsN := numberOperand(t, v.LHS)
				rhsN := numberOperand(t, v.RHS)
				n := t.numberExpr(v.Op, lhsN, rhsN, v)
				if leader, ok := local[n]; ok && leader != ir.Value(v) {
					replaceAll(fn, v, leader)
					eliminated++
					continue
				}
				local[n] = v
			case *ir.ICmp:
				lhsN := numberOperand(t, v.LHS)
				rhsN := numberOperand(t, v.RHS)
				n := t.numberExpr("icmp."+v.Pred, lhsN, rhsN, v)
				if leader, ok := local[n]; ok && leader != ir.Value(v) {
					replaceAll(fn, v, leader)
					eliminated++
					continue
				}
				local[n] = v
			}
			kept = append(kept, instr)
		}
		b.Instrs = kept
		availAtBlock[b] = local
		for _, c := range tree.Children(b) {
			walk(c, local)
		}
	}
	walk(tree.Preorder()[0], map[int]ir.Value{})
	return eliminated
}

func numberOperand(t *table, v ir.Value) int {
	if _, isInstr := v.(ir.Instruction); !isInstr {
		return t.numberLeaf(v)
	}
	if n, ok := t.vn[v]; ok {
		return n
	}
	return t.numberLeaf(v)
}

func replaceAll(fn *ir.Function, old, new_ ir.Value) {
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
