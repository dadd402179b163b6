package regalloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mx-lang/mxc/ir"
	"github.com/mx-lang/mxc/liveness"
)

// buildTwoParamFunction builds a minimal non-leaf function with two
// parameters that are read by one add whose result is returned, never
// assigned by any instruction — the shape that exposed the missing-allocation gap,
// since every other SSA value is reachable via b.AllInstrs() but a
// *ir.Param never is.
func buildTwoParamFunction() *ir.Function {
	fn := ir.NewFunction("f", ir.TypeI32)
	fn.Params = []*ir.Param{
		{Typ: ir.TypeI32, ParamName: "x", Func: fn},
		{Typ: ir.TypeI32, ParamName: "y", Func: fn},
	}
	fn.IsLeaf = false
	entry := fn.NewBlock("entry")
	sum := fn.NewBinOp(entry, "add", ir.Value(fn.Params[0]), ir.Value(fn.Params[1]))
	entry.SetReturn(ir.TypeI32, ir.Value(sum))
	return fn
}

func TestRunAllocatesEveryParam(t *testing.T) {
	fn := buildTwoParamFunction()
	live := liveness.Run(fn)
	res := Run(fn, live)

	for _, p := range fn.Params {
		alloc, ok := res.Alloc[ir.Value(p)]
		require.True(t, ok, "parameter %s must receive an allocation", p.ParamName)
		require.NotNil(t, alloc)
	}
}

func TestRunGivesDistinctParamsDistinctHomes(t *testing.T) {
	fn := buildTwoParamFunction()
	live := liveness.Run(fn)
	res := Run(fn, live)

	a := res.Alloc[ir.Value(fn.Params[0])]
	b := res.Alloc[ir.Value(fn.Params[1])]
	require.NotNil(t, a)
	require.NotNil(t, b)
	if a.Kind == InRegister && b.Kind == InRegister {
		require.NotEqual(t, a.Reg, b.Reg, "two live parameters must not alias the same register")
	}
}
