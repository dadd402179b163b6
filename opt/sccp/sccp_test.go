package sccp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mx-lang/mxc/ir"
)

func TestFoldsConstantArithmeticChain(t *testing.T) {
	fn := ir.NewFunction("f", ir.TypeI32)
	entry := fn.NewBlock("entry")
	a := fn.NewBinOp(entry, "add", ir.NewI32(2), ir.NewI32(3))
	b := fn.NewBinOp(entry, "mul", a, ir.NewI32(4))
	entry.SetReturn(ir.TypeI32, b)

	folded := Run(fn)
	require.GreaterOrEqual(t, folded, 2)

	ret := fn.Blocks[0].Term.(*ir.Return)
	c, ok := ret.Value.(*ir.Const)
	require.True(t, ok, "the return value should be proven constant")
	require.EqualValues(t, 20, c.Val)
}

func TestDivisionByZeroStaysUnknown(t *testing.T) {
	fn := ir.NewFunction("f", ir.TypeI32)
	entry := fn.NewBlock("entry")
	d := fn.NewBinOp(entry, "sdiv", ir.NewI32(10), ir.NewI32(0))
	entry.SetReturn(ir.TypeI32, d)

	Run(fn)

	ret := fn.Blocks[0].Term.(*ir.Return)
	_, folded := ret.Value.(*ir.Const)
	require.False(t, folded, "a division by a proven-zero divisor must not be folded to a constant")
}

func TestConstantBranchCollapsesToJump(t *testing.T) {
	fn := ir.NewFunction("f", ir.TypeI32)
	entry := fn.NewBlock("entry")
	thenB := fn.NewBlock("then")
	elseB := fn.NewBlock("else")

	cmp := fn.NewICmp(entry, "eq", ir.NewI32(1), ir.NewI32(1))
	entry.SetBranch(cmp, thenB, elseB)
	thenB.SetReturn(ir.TypeI32, ir.NewI32(1))
	elseB.SetReturn(ir.TypeI32, ir.NewI32(0))

	Run(fn)

	jump, ok := entry.Term.(*ir.Jump)
	require.True(t, ok, "a branch on a proven-true condition should collapse to a jump")
	require.Equal(t, thenB, jump.Target)
	require.NotContains(t, elseB.Preds, entry, "the dropped edge's predecessor list must be updated")
}
