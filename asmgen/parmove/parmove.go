// Package parmove resolves a parallel move (a set of "move src to dst"
// pairs that must all take effect simultaneously) into a sequential
// instruction list, for a single scratch register (§4.11.a). Grounded
// on asm_operand.py's rearrange_operands/find_ring/eliminate_ring/
// eliminate_tree: destinations are distinct by construction (every
// phi/call-argument shuffle writes each physical location at most once),
// so the move graph is an in-forest of simple cycles — "rings" in the
// original's terms — each of which reduces to a rotate through one
// scratch register, with the remaining tree part resolved bottom-up from
// its sinks.
package parmove

// Move is one sequential instruction: write the value currently in From
// into To. Immediate and register/stack sources are both represented as
// opaque location strings; the caller is responsible for mapping a
// location string back to how to load/store it.
type Move struct{ From, To string }

// Pair is one parallel-move edge: To must end up holding what From held
// before any of the parallel moves happened.
type Pair struct{ From, To string }

// Resolve returns the sequential move list implementing pairs as one
// atomic parallel update, using scratch as a spare register for ring
// rotation. Self-moves (From == To) are dropped; Resolve assumes no two
// pairs share a To (true by construction in both call sites: phi
// elimination and call-argument shuffling write each destination once).
func Resolve(pairs []Pair, scratch string) []Move {
	pairs = dropSelfMoves(pairs)
	succ := map[string]string{} // from -> to
	hasIncoming := map[string]bool{}
	var order []string // preserve input order for determinism
	seen := map[string]bool{}
	for _, p := range pairs {
		succ[p.From] = p.To
		hasIncoming[p.To] = true
		for _, n := range []string{p.From, p.To} {
			if !seen[n] {
				seen[n] = true
				order = append(order, n)
			}
		}
	}

	var moves []Move
	removed := map[string]bool{}

	// Phase 1: extract every ring (find_ring/eliminate_ring).
	for _, start := range order {
		if removed[start] {
			continue
		}
		ring := findRing(start, succ, removed)
		if ring == nil {
			continue
		}
		moves = append(moves, eliminateRing(ring, scratch)...)
		for _, n := range ring {
			removed[n] = true
			delete(succ, n)
		}
	}

	// Phase 2: what remains is a forest; resolve each tree from its
	// sinks (nodes with no successor) upward (eliminate_tree).
	for _, start := range order {
		if removed[start] || hasIncoming[start] {
			continue // not a root
		}
		moves = append(moves, eliminateTree(start, succ, removed)...)
	}
	return moves
}

func dropSelfMoves(pairs []Pair) []Pair {
	var out []Pair
	for _, p := range pairs {
		if p.From != p.To {
			out = append(out, p)
		}
	}
	return out
}

// findRing follows succ from start until it either returns to a node
// already on the path (a ring) or reaches a dead end (not a ring).
func findRing(start string, succ map[string]string, removed map[string]bool) []string {
	var path []string
	onPath := map[string]int{}
	n := start
	for {
		if removed[n] {
			return nil
		}
		if idx, ok := onPath[n]; ok {
			return path[idx:]
		}
		onPath[n] = len(path)
		path = append(path, n)
		next, ok := succ[n]
		if !ok {
			return nil
		}
		n = next
	}
}

// eliminateRing rotates a cycle of length >1 through one scratch
// register: tmp <- ring[last]; ring[last] <- ring[last-1]; ...;
// ring[1] <- ring[0]; ring[0] <- tmp. A self-loop (len==1) needs no
// instructions at all.
func eliminateRing(ring []string, scratch string) []Move {
	if len(ring) <= 1 {
		return nil
	}
	last := len(ring) - 1
	var moves []Move
	moves = append(moves, Move{From: ring[last], To: scratch})
	for i := last; i > 0; i-- {
		moves = append(moves, Move{From: ring[i-1], To: ring[i]})
	}
	moves = append(moves, Move{From: scratch, To: ring[0]})
	return moves
}

// eliminateTree emits moves for the chain rooted at start, deepest
// destination first: an edge u->v means "u's old value must end up in
// v", so v is written only after v's own old value has been moved on to
// v's successor. It recurses into v before emitting u->v, mirroring the
// original's post-order recursion (ret.extend(eliminate_tree(v)) before
// appending the move u->v).
func eliminateTree(start string, succ map[string]string, removed map[string]bool) []Move {
	if removed[start] {
		return nil
	}
	removed[start] = true
	var moves []Move
	if next, ok := succ[start]; ok && !removed[next] {
		moves = append(moves, eliminateTree(next, succ, removed)...)
		moves = append(moves, Move{From: start, To: next})
	}
	return moves
}
