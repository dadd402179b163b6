// Package mir lowers the optimizer's target-independent IR into a
// machine-shaped form: strength-reduced arithmetic, fused icmp+branch,
// GEP turned into explicit shl+add, and self-recursive tail calls
// rewired into a loop back-edge (§4.8). Grounded on
// mxc/middle_end/mir.py.
package mir

import "github.com/mx-lang/mxc/ir"

// FusedBranch replaces a Branch whose condition is an ICmp with a
// single pseudo-instruction carrying the comparison directly, avoiding
// materializing the i1 in a register. asmgen pattern-matches on this
// instead of a separate icmp+branch pair.
type FusedBranch struct {
	Pred         string
	LHS, RHS     ir.Value
	TrueTarget, FalseTarget *ir.BasicBlock
	block        *ir.BasicBlock
}

func (f *FusedBranch) Block() *ir.BasicBlock       { return f.block }
func (f *FusedBranch) SetBlock(b *ir.BasicBlock)   { f.block = b }
func (f *FusedBranch) String() string {
	return "fusedbr " + f.Pred + " " + f.LHS.String() + ", " + f.RHS.String()
}

// Run lowers fn in place: strength reduction, commutative canonicalization
// (constant operand moved to RHS so later instruction selection always
// sees "reg op imm"), icmp/branch fusion, and self-tail-call
// loopification. GEP lowering to explicit address arithmetic is folded
// into the same per-instruction rewrite pass since the shape of the
// replacement never interacts with strength reduction.
func Run(fn *ir.Function) {
	if fn.IsDeclare() {
		return
	}
	for _, b := range fn.Blocks {
		lowerBlock(fn, b)
	}
	fuseBranches(fn)
	loopifySelfTailCalls(fn)
}

func lowerBlock(fn *ir.Function, b *ir.BasicBlock) {
	// strengthReduce and lowerGEP append the helper instructions of a
	// multi-instruction replacement to b.Instrs, which is emptied before
	// each instruction so those helpers land in out ahead of it.
	orig := b.Instrs
	var out []ir.Instruction
	for _, instr := range orig {
		b.Instrs = nil
		switch v := instr.(type) {
		case *ir.BinOp:
			canonicalizeImmediate(v)
			if replaced := strengthReduce(fn, b, v); replaced != nil {
				out = append(out, b.Instrs...)
				out = append(out, replaced...)
				continue
			}
		case *ir.GetElementPtr:
			lowered := lowerGEP(fn, b, v)
			out = append(out, b.Instrs...)
			out = append(out, lowered...)
			continue
		}
		out = append(out, instr)
	}
	b.Instrs = out
}

// canonicalizeImmediate applies mir.py's commutative_law: for a
// commutative op with exactly one constant operand, the constant always
// ends up on the right, so instruction selection has one shape to match
// instead of two.
func canonicalizeImmediate(v *ir.BinOp) {
	if !isCommutative(v.Op) {
		return
	}
	_, lhsConst := v.LHS.(*ir.Const)
	_, rhsConst := v.RHS.(*ir.Const)
	if lhsConst && !rhsConst {
		v.LHS, v.RHS = v.RHS, v.LHS
	}
}

func isCommutative(op string) bool {
	switch op {
	case "add", "mul", "and", "or", "xor":
		return true
	}
	return false
}

// strengthReduce rewrites mul-by-power-of-two into shl, and sdiv by a
// positive power-of-two constant into magicPow2Div's bias-and-shift
// sequence (the power-of-two case of division_by_invariant_integer in
// the original). sdiv by any other constant, and every srem, is not
// reduced. Returns nil when no reduction applies, leaving the caller to
// keep the instruction as-is.
func strengthReduce(fn *ir.Function, b *ir.BasicBlock, v *ir.BinOp) []ir.Instruction {
	rhsConst, ok := v.RHS.(*ir.Const)
	if !ok {
		return nil
	}
	switch v.Op {
	case "mul":
		if shift, ok := powerOfTwoShift(rhsConst.Val); ok {
			shl := &ir.BinOp{Op: "shl", LHS: v.LHS, RHS: ir.NewI32(int32(shift))}
			copyIdentity(v, shl)
			return []ir.Instruction{shl}
		}
	case "sdiv":
		if shift, ok := powerOfTwoShift(rhsConst.Val); ok && rhsConst.Val > 0 {
			return []ir.Instruction{magicPow2Div(fn, b, v, shift)}
		}
	}
	return nil
}

func powerOfTwoShift(v int32) (int, bool) {
	if v <= 0 {
		return 0, false
	}
	if v&(v-1) != 0 {
		return 0, false
	}
	shift := 0
	for (int32(1) << uint(shift)) != v {
		shift++
	}
	return shift, true
}

// magicPow2Div implements the textbook power-of-two signed-division
// idiom (the simple case of division_by_invariant_integer: add a bias
// of (2^k - 1) when the dividend is negative, then arithmetic-shift),
// reusing v's identity for the result of the final shift so existing
// uses keep working.
func magicPow2Div(fn *ir.Function, b *ir.BasicBlock, v *ir.BinOp, shift int) ir.Instruction {
	bias := int32(1<<uint(shift)) - 1
	// sign = ashr(x, 31) (all-ones if negative, else 0); biasTerm = sign & bias, which is bias for a negative dividend and 0 otherwise.
	signShift := &ir.BinOp{Op: "ashr", LHS: v.LHS, RHS: ir.NewI32(31)}
	signShift.SetName(fn.FreshName(""))
	signShift.SetType(ir.TypeI32)
	b.Instrs = append(b.Instrs, signShift)

	andBias := &ir.BinOp{Op: "and", LHS: signShift, RHS: ir.NewI32(bias)}
	andBias.SetName(fn.FreshName(""))
	andBias.SetType(ir.TypeI32)
	b.Instrs = append(b.Instrs, andBias)

	biased := &ir.BinOp{Op: "add", LHS: v.LHS, RHS: andBias}
	biased.SetName(fn.FreshName(""))
	biased.SetType(ir.TypeI32)
	b.Instrs = append(b.Instrs, biased)

	result := &ir.BinOp{Op: "ashr", LHS: biased, RHS: ir.NewI32(int32(shift))}
	copyIdentity(v, result)
	return result
}

func copyIdentity(old *ir.BinOp, new_ *ir.BinOp) {
	new_.SetName(old.Name())
	new_.SetType(old.Type())
}

func lowerGEP(fn *ir.Function, b *ir.BasicBlock, g *ir.GetElementPtr) []ir.Instruction {
	var offset ir.Value = ir.NewI32(int32(g.MemberIndex) * 4)
	if g.Member == "" && g.Index != nil {
		shl := &ir.BinOp{Op: "shl", LHS: g.Index, RHS: ir.NewI32(2)}
		shl.SetName(fn.FreshName(""))
		shl.SetType(ir.TypeI32)
		b.Instrs = append(b.Instrs, shl)
		offset = shl
	}
	add := &ir.BinOp{Op: "add", LHS: g.Ptr, RHS: offset}
	add.SetName(g.Name())
	add.SetType(ir.TypePtr)
	return []ir.Instruction{add}
}

// fuseBranches folds "x = icmp p a, b" immediately followed by "br i1 x"
// into a single FusedBranch when x has no other uses, matching mir.py's
// icmp/branch fusion.
func fuseBranches(fn *ir.Function) {
	for _, b := range fn.Blocks {
		br, ok := b.Term.(*ir.Branch)
		if !ok || len(b.Instrs) == 0 {
			continue
		}
		last := b.Instrs[len(b.Instrs)-1]
		cmp, ok := last.(*ir.ICmp)
		if !ok || ir.Value(cmp) != br.Cond {
			continue
		}
		if usedElsewhere(fn, cmp) {
			continue
		}
		fused := &FusedBranch{Pred: cmp.Pred, LHS: cmp.LHS, RHS: cmp.RHS, TrueTarget: br.TrueTarget, FalseTarget: br.FalseTarget}
		fused.SetBlock(b)
		b.Term = fused
		b.Instrs = b.Instrs[:len(b.Instrs)-1]
	}
}

func usedElsewhere(fn *ir.Function, v ir.Value) bool {
	count := 0
	visit := func(u ir.Value) {
		if u == v {
			count++
		}
	}
	for _, b := range fn.Blocks {
		for _, p := range b.Phis {
			for _, inc := range p.Incoming {
				visit(inc)
			}
		}
		for _, instr := range b.Instrs {
			switch w := instr.(type) {
			case *ir.BinOp:
				visit(w.LHS)
				visit(w.RHS)
			case *ir.Store:
				visit(w.Addr)
				visit(w.Src)
			case *ir.Call:
				for _, a := range w.Args {
					visit(a)
				}
			case *ir.ICmp:
				visit(w.LHS)
				visit(w.RHS)
			}
		}
		switch t := b.Term.(type) {
		case *ir.Branch:
			visit(t.Cond)
		case *ir.Return:
			visit(t.Value)
		case *FusedBranch:
			visit(t.LHS)
			visit(t.RHS)
		}
	}
	// the branch being fused is itself one use
	return count > 1
}

// loopifySelfTailCalls rewrites `ret (call @self args...)` (a
// self-recursive tail call) into a back edge to a rotated loop header:
// entry's original body moves into a new "tailloop" block, entry itself
// becomes a one-instruction preamble jumping into it, each parameter
// becomes a phi merging entry's initial argument with the tail call's
// argument expression, and the call site jumps back to the header
// instead of returning. Any other tail call is left as a plain
// call+ret, which asmgen emits as an ordinary `call` followed by `ret`
// (it never emits the `tail` pseudo-op). Only the first self-tail-call site found
// is loopified: a function with more than one would need per-site loop
// headers merged back together, which this pass does not attempt.
func loopifySelfTailCalls(fn *ir.Function) {
	entry := fn.Entry()
	for _, b := range fn.Blocks {
		if b == entry {
			continue
		}
		ret, ok := b.Term.(*ir.Return)
		if !ok || len(b.Instrs) == 0 {
			continue
		}
		last, ok := b.Instrs[len(b.Instrs)-1].(*ir.Call)
		if !ok || last.Callee != fn.Name {
			continue
		}
		if ret.Value != nil && ir.Value(last) != ret.Value {
			continue
		}

		loopHeader := fn.NewBlock("tailloop")
		rotateEntryInto(entry, loopHeader)

		moveParams := make([]*ir.Phi, len(fn.Params))
		for i, p := range fn.Params {
			moveParams[i] = fn.NewPhi(loopHeader, p.Typ)
		}
		// Every remaining use of a parameter, including inside the
		// argument expressions of the tail call itself, must now read
		// the loop-carried phi instead of the original parameter value.
		replaceParams(fn, fn.Params, moveParams)

		args := append([]ir.Value(nil), last.Args...)
		b.Instrs = b.Instrs[:len(b.Instrs)-1]
		b.Term = nil

		entry.SetJump(loopHeader) // loopHeader.Preds[0] == entry
		b.SetJump(loopHeader)     // loopHeader.Preds[1] == b

		for i, ph := range moveParams {
			ph.Incoming = []ir.Value{ir.Value(fn.Params[i]), args[i]}
		}
		return
	}
}

// rotateEntryInto moves entry's body, terminator and successor edges
// onto header, leaving entry empty so it can become a bare jump into
// header. Every successor's predecessor list is repointed from entry
// to header in place, preserving phi operand order.
func rotateEntryInto(entry, header *ir.BasicBlock) {
	header.Instrs = entry.Instrs
	for _, instr := range header.Instrs {
		instr.SetBlock(header)
	}
	header.Term = entry.Term
	header.Term.SetBlock(header)
	header.Succs = entry.Succs
	for _, s := range header.Succs {
		for i, p := range s.Preds {
			if p == entry {
				s.Preds[i] = header
			}
		}
	}
	entry.Instrs = nil
	entry.Succs = nil
	entry.Term = nil
}

// replaceParams substitutes every use of olds[i] with news[i] across
// every block of fn, the same whole-function scan mem2reg's
// replaceUses uses for the same reason: the IR keeps no def-use chains.
func replaceParams(fn *ir.Function, olds []*ir.Param, news []*ir.Phi) {
	rep := make(map[ir.Value]ir.Value, len(olds))
	for i, p := range olds {
		rep[ir.Value(p)] = ir.Value(news[i])
	}
	sub := func(v ir.Value) ir.Value {
		if r, ok := rep[v]; ok {
			return r
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
		case *FusedBranch:
			t.LHS, t.RHS = sub(t.LHS), sub(t.RHS)
		}
	}
}
