// Package dce implements dead-code elimination via the same
// dependency-graph/reverse-reachability formulation as the original's
// mxc/middle_end/dce.py: start from every instruction with an
// unavoidable side effect, walk backward over operand edges, and delete
// everything never reached (§4.3).
package dce

import "github.com/mx-lang/mxc/ir"

// Run deletes every instruction not reachable backward from an
// effectful root and returns the count removed.
func Run(fn *ir.Function) int {
	if fn.IsDeclare() {
		return 0
	}
	graph, roots := buildGraph(fn)
	live := reverseBFS(roots, graph)
	return prune(fn, live)
}

// node identifies one instruction uniquely across the whole function
// (a bare pointer is already unique, but phis and plain instructions
// share the Instruction interface so no wrapper is needed).
type node = ir.Instruction

func buildGraph(fn *ir.Function) (map[node][]node, []node) {
	graph := map[node][]node{}
	var roots []node

	defOf := map[ir.Value]node{}
	for _, b := range fn.Blocks {
		for _, p := range b.Phis {
			defOf[p] = p
		}
		for _, instr := range b.Instrs {
			if v, ok := instr.(ir.Value); ok {
				defOf[v] = instr
			}
		}
	}

	addEdge := func(from node, v ir.Value) {
		if v == nil {
			return
		}
		if to, ok := defOf[v]; ok {
			graph[from] = append(graph[from], to)
		}
	}

	isEffectful := func(instr ir.Instruction) bool {
		switch v := instr.(type) {
		case *ir.Store:
			return true
		case *ir.Call:
			return !v.NoEffect
		case *ir.Malloc:
			return true
		case *ir.Jump, *ir.Branch, *ir.Return, *ir.Unreachable:
			return true
		}
		return false
	}

	for _, b := range fn.Blocks {
		for _, p := range b.Phis {
			for _, v := range p.Incoming {
				addEdge(p, v)
			}
		}
		for _, instr := range b.Instrs {
			switch v := instr.(type) {
			case *ir.BinOp:
				addEdge(v, v.LHS)
				addEdge(v, v.RHS)
			case *ir.ICmp:
				addEdge(v, v.LHS)
				addEdge(v, v.RHS)
			case *ir.Load:
				addEdge(v, v.Addr)
			case *ir.Store:
				addEdge(v, v.Addr)
				addEdge(v, v.Src)
			case *ir.GetElementPtr:
				addEdge(v, v.Ptr)
				if v.Index != nil {
					addEdge(v, v.Index)
				}
			case *ir.Call:
				for _, a := range v.Args {
					addEdge(v, a)
				}
			case *ir.Malloc:
				// no value operands
			}
			if isEffectful(instr) {
				roots = append(roots, instr)
			}
		}
		switch t := b.Term.(type) {
		case *ir.Branch:
			addEdge(t, t.Cond)
			roots = append(roots, t)
		case *ir.Return:
			if t.Value != nil {
				addEdge(t, t.Value)
			}
			roots = append(roots, t)
		case *ir.Jump:
			roots = append(roots, t)
		case *ir.Unreachable:
			roots = append(roots, t)
		}
	}
	return graph, roots
}

func reverseBFS(roots []node, graph map[node][]node) map[node]bool {
	live := map[node]bool{}
	queue := append([]node(nil), roots...)
	for _, r := range roots {
		live[r] = true
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dep := range graph[cur] {
			if !live[dep] {
				live[dep] = true
				queue = append(queue, dep)
			}
		}
	}
	return live
}

func prune(fn *ir.Function, live map[node]bool) int {
	removed := 0
	for _, b := range fn.Blocks {
		keptPhis := b.Phis[:0]
		for _, p := range b.Phis {
			if live[p] {
				keptPhis = append(keptPhis, p)
			} else {
				removed++
			}
		}
		b.Phis = keptPhis

		keptInstrs := b.Instrs[:0]
		for _, instr := range b.Instrs {
			if live[instr] {
				keptInstrs = append(keptInstrs, instr)
			} else {
				removed++
			}
		}
		b.Instrs = keptInstrs
	}
	return removed
}
