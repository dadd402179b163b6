package parmove

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// simulate executes moves against an initial register file and returns
// the final one, modeling one scratch register the same way the real
// emitted instructions would: every Move is a plain "read From, write
// To", applied strictly in sequence.
func simulate(initial map[string]int, moves []Move) map[string]int {
	file := map[string]int{}
	for k, v := range initial {
		file[k] = v
	}
	for _, m := range moves {
		file[m.To] = file[m.From]
	}
	return file
}

func TestResolveSimpleChain(t *testing.T) {
	pairs := []Pair{{From: "a", To: "b"}, {From: "b", To: "c"}}
	initial := map[string]int{"a": 1, "b": 2, "c": 3}
	moves := Resolve(pairs, "tmp")
	final := simulate(initial, moves)
	require.Equal(t, 2, final["c"], "c must end up with b's original value")
	require.Equal(t, 1, final["b"], "b must end up with a's original value")
}

func TestResolveSwapCycle(t *testing.T) {
	pairs := []Pair{{From: "a", To: "b"}, {From: "b", To: "a"}}
	initial := map[string]int{"a": 1, "b": 2}
	moves := Resolve(pairs, "tmp")
	final := simulate(initial, moves)
	require.Equal(t, 2, final["a"])
	require.Equal(t, 1, final["b"])
}

func TestResolveThreeCycle(t *testing.T) {
	pairs := []Pair{{From: "a", To: "b"}, {From: "b", To: "c"}, {From: "c", To: "a"}}
	initial := map[string]int{"a": 1, "b": 2, "c": 3}
	moves := Resolve(pairs, "tmp")
	final := simulate(initial, moves)
	require.Equal(t, 3, final["a"])
	require.Equal(t, 1, final["b"])
	require.Equal(t, 2, final["c"])
}

func TestResolveDropsSelfMoves(t *testing.T) {
	pairs := []Pair{{From: "a", To: "a"}, {From: "b", To: "c"}}
	moves := Resolve(pairs, "tmp")
	for _, m := range moves {
		require.NotEqual(t, "a", m.To, "a self-move should never be emitted")
	}
}

func TestResolveTreeAndCycleTogether(t *testing.T) {
	// a->b->c is a chain alongside a separate d<->e cycle.
	pairs := []Pair{
		{From: "a", To: "b"},
		{From: "b", To: "c"},
		{From: "d", To: "e"},
		{From: "e", To: "d"},
	}
	initial := map[string]int{"a": 10, "b": 20, "c": 30, "d": 40, "e": 50}
	moves := Resolve(pairs, "tmp")
	final := simulate(initial, moves)
	require.Equal(t, 20, final["c"])
	require.Equal(t, 10, final["b"])
	require.Equal(t, 50, final["d"])
	require.Equal(t, 40, final["e"])
}
