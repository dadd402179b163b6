package dce

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mx-lang/mxc/ir"
)

// buildDeadAndLive builds one block computing a dead BinOp (never used)
// alongside a live one that feeds the return value.
func buildDeadAndLive() *ir.Function {
	fn := ir.NewFunction("f", ir.TypeI32)
	entry := fn.NewBlock("entry")
	dead := fn.NewBinOp(entry, "add", ir.NewI32(1), ir.NewI32(2))
	_ = dead
	live := fn.NewBinOp(entry, "mul", ir.NewI32(3), ir.NewI32(4))
	entry.SetReturn(ir.TypeI32, live)
	return fn
}

func TestRemovesOnlyDeadInstructions(t *testing.T) {
	fn := buildDeadAndLive()
	removed := Run(fn)
	require.Equal(t, 1, removed)
	require.Len(t, fn.Blocks[0].Instrs, 1, "only the live binop should remain")

	ret := fn.Blocks[0].Term.(*ir.Return)
	require.Equal(t, fn.Blocks[0].Instrs[0], ret.Value)
}

func TestRunningDceTwiceIsIdempotent(t *testing.T) {
	fn := buildDeadAndLive()
	Run(fn)
	before := len(fn.Blocks[0].Instrs)
	second := Run(fn)
	require.Equal(t, 0, second, "a second DCE pass must find nothing left to remove")
	require.Equal(t, before, len(fn.Blocks[0].Instrs))
}

func TestCallWithoutNoEffectSurvives(t *testing.T) {
	fn := ir.NewFunction("g", ir.TypeVoid)
	entry := fn.NewBlock("entry")
	fn.NewCall(entry, "println", ir.TypeVoid, nil, false)
	entry.SetReturn(ir.TypeVoid, nil)

	removed := Run(fn)
	require.Equal(t, 0, removed, "a call without NoEffect must never be pruned even if its result is unused")
	require.Len(t, fn.Blocks[0].Instrs, 1)
}

func TestNoEffectCallWithUnusedResultIsPruned(t *testing.T) {
	fn := ir.NewFunction("h", ir.TypeVoid)
	entry := fn.NewBlock("entry")
	fn.NewCall(entry, "pure_fn", ir.TypeI32, nil, true)
	entry.SetReturn(ir.TypeVoid, nil)

	removed := Run(fn)
	require.Equal(t, 1, removed)
	require.Empty(t, fn.Blocks[0].Instrs)
}
