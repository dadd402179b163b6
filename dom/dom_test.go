package dom

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mx-lang/mxc/ir"
)

// buildDiamond builds entry -> {then, else} -> merge, the textbook case
// where merge's immediate dominator is entry, not either branch.
func buildDiamond() (*ir.Function, *ir.BasicBlock, *ir.BasicBlock, *ir.BasicBlock, *ir.BasicBlock) {
	fn := ir.NewFunction("f", ir.TypeI32)
	entry := fn.NewBlock("entry")
	thenB := fn.NewBlock("then")
	elseB := fn.NewBlock("else")
	merge := fn.NewBlock("merge")
	entry.SetBranch(ir.NewBool(true), thenB, elseB)
	thenB.SetJump(merge)
	elseB.SetJump(merge)
	merge.SetReturn(ir.TypeI32, ir.NewI32(0))
	return fn, entry, thenB, elseB, merge
}

func TestBuildDiamondDominance(t *testing.T) {
	fn, entry, thenB, elseB, merge := buildDiamond()
	tree := Build(fn)

	require.True(t, tree.Dominates(entry, merge))
	require.False(t, tree.Dominates(thenB, merge))
	require.False(t, tree.Dominates(elseB, merge))
	require.Equal(t, entry, tree.IDom(merge))
	require.Equal(t, entry, tree.IDom(thenB))
	require.Equal(t, entry, tree.IDom(elseB))
}

func TestMergeIsOnBothBranchesFrontier(t *testing.T) {
	fn, _, thenB, elseB, merge := buildDiamond()
	_ = fn
	tree := Build(fn)

	requireContains(t, tree.Frontier(thenB), merge)
	requireContains(t, tree.Frontier(elseB), merge)
}

func requireContains(t *testing.T, blocks []*ir.BasicBlock, want *ir.BasicBlock) {
	t.Helper()
	for _, b := range blocks {
		if b == want {
			return
		}
	}
	t.Fatalf("expected %s in frontier, got %v", want.Name, names(blocks))
}

func names(blocks []*ir.BasicBlock) []string {
	out := make([]string, len(blocks))
	for i, b := range blocks {
		out[i] = b.Name
	}
	return out
}
