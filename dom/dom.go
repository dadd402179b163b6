// Package dom computes dominator trees and dominance frontiers over an
// ir.Function's control-flow graph (§4.1). Blocks must already have
// dense, current Index values (ir.Function.RenumberBlocks).
package dom

import (
	"math/big"

	"github.com/mx-lang/mxc/ir"
)

// blockSet is a bitset over block indices, exactly the representation
// the teacher's ssa/lift.go uses for its dominance-frontier worklists
// (type blockSet struct{ big.Int }) — reused here rather than a
// map[int]bool because dominance frontiers are set-unioned across many
// blocks during IDF computation, and big.Int's word-at-a-time OR is both
// the teacher's idiom and meaningfully faster than a map for that.
type blockSet struct{ big.Int }

func (s *blockSet) has(i int) bool     { return s.Bit(i) == 1 }
func (s *blockSet) add(i int)          { s.SetBit(&s.Int, i, 1) }
func (s *blockSet) forEach(f func(i int)) {
	for i := 0; i < s.BitLen(); i++ {
		if s.has(i) {
			f(i)
		}
	}
}

// Tree is a dominator tree plus the per-node dominance frontier.
type Tree struct {
	blocks   []*ir.BasicBlock
	idom     []*ir.BasicBlock   // idom[b.Index] == immediate dominator of b, nil for entry
	children [][]*ir.BasicBlock // children[b.Index] == dom-tree children of b
	frontier []*blockSet        // frontier[b.Index] == DF(b), as a bitset over Index
	preorder []*ir.BasicBlock   // dominator-tree DFS preorder, entry first
}

// Build computes the dominator tree and dominance frontiers for a
// function using a reverse-postorder iterative fixpoint (the "simple,
// fast" algorithm of Cooper, Harvey & Kennedy 2001), matching spec §4.1.
func Build(fn *ir.Function) *Tree {
	fn.RenumberBlocks()
	n := len(fn.Blocks)
	t := &Tree{
		blocks:   fn.Blocks,
		idom:     make([]*ir.BasicBlock, n),
		children: make([][]*ir.BasicBlock, n),
		frontier: make([]*blockSet, n),
	}
	if n == 0 {
		return t
	}
	rpo := reversePostorder(fn.Entry())
	rpoIndex := make(map[*ir.BasicBlock]int, len(rpo))
	for i, b := range rpo {
		rpoIndex[b] = i
	}

	entry := fn.Entry()
	t.idom[entry.Index] = entry

	changed := true
	for changed {
		changed = false
		for _, b := range rpo[1:] {
			var newIdom *ir.BasicBlock
			for _, p := range b.Preds {
				if p.Unreachable || t.idom[p.Index] == nil {
					continue
				}
				if newIdom == nil {
					newIdom = p
					continue
				}
				newIdom = intersect(t.idom, rpoIndex, newIdom, p)
			}
			if newIdom != nil && t.idom[b.Index] != newIdom {
				t.idom[b.Index] = newIdom
				changed = true
			}
		}
	}
	t.idom[entry.Index] = nil // entry has no dominator, by convention

	for _, b := range fn.Blocks {
		if b == entry || t.idom[b.Index] == nil {
			continue
		}
		p := t.idom[b.Index]
		t.children[p.Index] = append(t.children[p.Index], b)
	}
	t.preorder = t.dfsPreorder(entry)
	t.buildFrontiers(fn)
	return t
}

func intersect(idom []*ir.BasicBlock, rpoIndex map[*ir.BasicBlock]int, a, b *ir.BasicBlock) *ir.BasicBlock {
	for a != b {
		for rpoIndex[a] > rpoIndex[b] {
			a = idom[a.Index]
		}
		for rpoIndex[b] > rpoIndex[a] {
			b = idom[b.Index]
		}
	}
	return a
}

func reversePostorder(entry *ir.BasicBlock) []*ir.BasicBlock {
	visited := map[*ir.BasicBlock]bool{}
	var post []*ir.BasicBlock
	var visit func(b *ir.BasicBlock)
	visit = func(b *ir.BasicBlock) {
		visited[b] = true
		for _, s := range b.Succs {
			if !visited[s] {
				visit(s)
			}
		}
		post = append(post, b)
	}
	visit(entry)
	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}

func (t *Tree) dfsPreorder(entry *ir.BasicBlock) []*ir.BasicBlock {
	var order []*ir.BasicBlock
	var visit func(b *ir.BasicBlock)
	visit = func(b *ir.BasicBlock) {
		order = append(order, b)
		for _, c := range t.children[b.Index] {
			visit(c)
		}
	}
	visit(entry)
	return order
}

// buildFrontiers computes DF(b) for every b, via the standard
// definition: for each join point j (>=2 preds), walk up from each
// predecessor to (but not including) idom(j), adding j to DF of each
// node visited.
func (t *Tree) buildFrontiers(fn *ir.Function) {
	for i := range t.frontier {
		t.frontier[i] = &blockSet{}
	}
	for _, b := range fn.Blocks {
		if len(b.Preds) < 2 {
			continue
		}
		for _, p := range b.Preds {
			if p.Unreachable {
				continue
			}
			runner := p
			for runner != nil && runner != t.idom[b.Index] {
				t.frontier[runner.Index].add(b.Index)
				runner = t.idom[runner.Index]
			}
		}
	}
}

// IDom returns b's immediate dominator, or nil for the entry block.
func (t *Tree) IDom(b *ir.BasicBlock) *ir.BasicBlock { return t.idom[b.Index] }

// Dominates reports whether a dominates b (reflexively: a dominates a).
func (t *Tree) Dominates(a, b *ir.BasicBlock) bool {
	for b != nil {
		if b == a {
			return true
		}
		b = t.idom[b.Index]
	}
	return false
}

// Frontier returns DF(b) as a slice, in block-index order.
func (t *Tree) Frontier(b *ir.BasicBlock) []*ir.BasicBlock {
	var out []*ir.BasicBlock
	t.frontier[b.Index].forEach(func(i int) { out = append(out, t.blocks[i]) })
	return out
}

// Children returns b's children in the dominator tree.
func (t *Tree) Children(b *ir.BasicBlock) []*ir.BasicBlock { return t.children[b.Index] }

// Preorder returns every block reachable from the entry in dominator-tree
// DFS preorder (parents before children) — the order mem2reg's renamer
// and GVN-PRE's build phase both require.
func (t *Tree) Preorder() []*ir.BasicBlock { return t.preorder }

// IteratedFrontier computes DF+(defs): the set of blocks needing a phi
// for a value defined in the given set of blocks (Cytron et al. 1991).
func (t *Tree) IteratedFrontier(defs []*ir.BasicBlock) []*ir.BasicBlock {
	worklist := append([]*ir.BasicBlock(nil), defs...)
	result := &blockSet{}
	inWorklist := &blockSet{}
	for _, b := range defs {
		inWorklist.add(b.Index)
	}
	for len(worklist) > 0 {
		b := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for _, y := range t.Frontier(b) {
			if !result.has(y.Index) {
				result.add(y.Index)
				if !inWorklist.has(y.Index) {
					inWorklist.add(y.Index)
					worklist = append(worklist, y)
				}
			}
		}
	}
	var out []*ir.BasicBlock
	result.forEach(func(i int) { out = append(out, t.blocks[i]) })
	return out
}

// PostTree computes post-dominators by running Build over the reverse
// CFG with a synthetic end node connected from every return/unreachable
// block, as spec §4.1 directs for the post-dominator variant GVN-PRE's
// Phase 2 needs.
func PostTree(fn *ir.Function) *Tree {
	rev := reverseView(fn)
	return Build(rev)
}

// reverseView builds a throwaway ir.Function whose blocks mirror fn's
// but with Preds/Succs swapped and a synthetic exit block as the new
// "entry", so the same Build() machinery computes post-dominators.
func reverseView(fn *ir.Function) *ir.Function {
	rev := ir.NewFunction(fn.Name+".postdom", ir.TypeVoid)
	mirror := make(map[*ir.BasicBlock]*ir.BasicBlock, len(fn.Blocks))
	for _, b := range fn.Blocks {
		mirror[b] = rev.NewBlock(b.Name)
	}
	exit := rev.NewBlock("synthetic.exit")
	for _, b := range fn.Blocks {
		mb := mirror[b]
		for _, s := range b.Succs {
			mb.Preds = append(mb.Preds, mirror[s])
		}
		for _, p := range b.Preds {
			mb.Succs = append(mb.Succs, mirror[p])
		}
		if len(b.Succs) == 0 {
			mb.Preds = append(mb.Preds, exit)
			exit.Succs = append(exit.Succs, mb)
		}
	}
	// exit becomes the reverse graph's entry; swap it to the front.
	rev.Blocks = append([]*ir.BasicBlock{exit}, rev.Blocks[:len(rev.Blocks)-1]...)
	rev.RenumberBlocks()
	return rev
}
