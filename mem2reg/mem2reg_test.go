package mem2reg

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mx-lang/mxc/ir"
)

// buildIfElseAssign builds:
//
//	entry: %p = alloca; store 0, %p; br cond then else
//	then:  store 1, %p; jump merge
//	else:  store 2, %p; jump merge
//	merge: %v = load %p; ret %v
func buildIfElseAssign() *ir.Function {
	fn := ir.NewFunction("f", ir.TypeI32)
	entry := fn.NewBlock("entry")
	thenB := fn.NewBlock("then")
	elseB := fn.NewBlock("else")
	merge := fn.NewBlock("merge")

	p := fn.NewAlloca(entry, ir.TypeI32)
	fn.NewStore(entry, p, ir.NewI32(0))
	entry.SetBranch(ir.NewBool(true), thenB, elseB)

	fn.NewStore(thenB, p, ir.NewI32(1))
	thenB.SetJump(merge)

	fn.NewStore(elseB, p, ir.NewI32(2))
	elseB.SetJump(merge)

	v := fn.NewLoad(merge, p, ir.TypeI32)
	merge.SetReturn(ir.TypeI32, v)

	return fn
}

func TestPromotesSimpleAllocaToPhi(t *testing.T) {
	fn := buildIfElseAssign()
	promoted := Run(fn)
	require.Equal(t, 1, promoted)

	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			_, isAlloca := instr.(*ir.Alloca)
			_, isLoad := instr.(*ir.Load)
			_, isStore := instr.(*ir.Store)
			require.False(t, isAlloca, "alloca should have been removed")
			require.False(t, isLoad, "load of a promoted pointer should have been removed")
			require.False(t, isStore, "store to a promoted pointer should have been removed")
		}
	}

	merge := fn.Blocks[3]
	require.Len(t, merge.Phis, 1, "merge block should carry exactly one phi for the promoted value")
	require.Len(t, merge.Phis[0].Incoming, 2)

	ret, ok := merge.Term.(*ir.Return)
	require.True(t, ok)
	require.Equal(t, ir.Value(merge.Phis[0]), ret.Value, "the return should read the phi result directly")
}

func TestEscapingAllocaIsNotPromoted(t *testing.T) {
	fn := ir.NewFunction("g", ir.TypeVoid)
	entry := fn.NewBlock("entry")
	p := fn.NewAlloca(entry, ir.TypeI32)
	fn.NewCall(entry, "takes_ptr", ir.TypeVoid, []ir.Value{p}, false)
	entry.SetReturn(ir.TypeVoid, nil)

	promoted := Run(fn)
	require.Equal(t, 0, promoted, "an alloca whose address is passed to a call must not be promoted")

	found := false
	for _, instr := range entry.Instrs {
		if _, ok := instr.(*ir.Alloca); ok {
			found = true
		}
	}
	require.True(t, found, "the escaping alloca must still be present")
}
