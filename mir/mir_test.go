package mir

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mx-lang/mxc/ir"
)

// buildTailRecursiveSum mirrors cmd/mxc's demoModule sum(n, acc): a
// base case returning acc, and a recursive case returning
// sum(n-1, acc+n) as its last instruction before the return.
func buildTailRecursiveSum() *ir.Function {
	fn := ir.NewFunction("sum", ir.TypeI32)
	fn.Params = []*ir.Param{
		{Typ: ir.TypeI32, ParamName: "n", Func: fn},
		{Typ: ir.TypeI32, ParamName: "acc", Func: fn},
	}
	entry := fn.NewBlock("entry")
	n := ir.Value(fn.Params[0])
	acc := ir.Value(fn.Params[1])
	cmp := fn.NewICmp(entry, "eq", n, ir.NewI32(0))
	thenB := fn.NewBlock("base")
	elseB := fn.NewBlock("rec")
	entry.SetBranch(cmp, thenB, elseB)
	thenB.SetReturn(ir.TypeI32, acc)
	nextN := fn.NewBinOp(elseB, "sub", n, ir.NewI32(1))
	nextAcc := fn.NewBinOp(elseB, "add", acc, n)
	rec := fn.NewCall(elseB, "sum", ir.TypeI32, []ir.Value{nextN, nextAcc}, false)
	elseB.SetReturn(ir.TypeI32, ir.Value(rec))
	return fn
}

func TestLoopifyRewritesTailCallIntoBackEdge(t *testing.T) {
	fn := buildTailRecursiveSum()
	Run(fn)

	entry := fn.Entry()
	require.Empty(t, entry.Instrs, "the original entry block's body must have moved into the rotated loop header")
	jump, ok := entry.Term.(*ir.Jump)
	require.True(t, ok, "entry must now just jump into the loop header")
	header := jump.Target
	require.NotEqual(t, entry, header)

	require.Len(t, header.Preds, 2, "the loop header is reached from both the original entry and the back edge")
	require.Contains(t, header.Preds, entry)

	require.Len(t, header.Phis, 2, "one phi per original parameter")
	for _, p := range header.Phis {
		require.Len(t, p.Incoming, 2)
	}
}

func TestLoopifyRecBlockNoLongerCallsItself(t *testing.T) {
	fn := buildTailRecursiveSum()
	Run(fn)

	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			if call, ok := instr.(*ir.Call); ok {
				require.NotEqual(t, "sum", call.Callee, "the self-recursive call must have been consumed by loopification")
			}
		}
	}
}
