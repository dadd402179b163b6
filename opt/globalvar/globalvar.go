// Package globalvar localizes hot global variables inside leaf
// functions: the top-K most-used globals get a local register loaded at
// function entry and stored back before every return, trading one
// load/store pair per call for N loads/stores per use (§4.4). Grounded
// on mxc/middle_end/globalvar.py's get_variables_to_inline/K=8 policy.
package globalvar

import (
	"sort"

	"github.com/mx-lang/mxc/ir"
)

// K bounds how many globals a single leaf function will cache in
// registers, matching the original's hardcoded top-8 cutoff.
const K = 8

// Run inlines the K most-used globals of every leaf function that only
// reads/writes globals directly (never takes their address). Non-leaf
// functions are skipped: a call out of the function could itself mutate
// a cached global through the same symbol, making entry/exit caching
// unsound.
func Run(m *ir.Module) {
	for _, f := range m.Functions {
		if f.IsDeclare() || !f.IsLeaf {
			continue
		}
		inlineGlobals(f)
	}
}

func inlineGlobals(f *ir.Function) {
	counts := map[*ir.Global]int{}
	for _, b := range f.Blocks {
		for _, instr := range b.Instrs {
			switch v := instr.(type) {
			case *ir.Load:
				if g, ok := v.Addr.(*ir.Global); ok && !g.IsString {
					counts[g]++
				}
			case *ir.Store:
				if g, ok := v.Addr.(*ir.Global); ok && !g.IsString {
					counts[g]++
				}
			}
		}
	}
	if len(counts) == 0 {
		return
	}
	chosen := topK(counts, K)
	if len(chosen) == 0 {
		return
	}

	entry := f.Entry()
	cache := map[*ir.Global]*ir.Alloca{}
	// Build the entry prologue apart from the body so it runs first and
	// its own load of the global is not rewritten below.
	body := entry.Instrs
	entry.Instrs = nil
	for _, g := range chosen {
		slot := f.NewAlloca(entry, ir.TypeI32)
		loaded := f.NewLoad(entry, g, ir.TypeI32)
		f.NewStore(entry, slot, loaded)
		cache[g] = slot
	}
	prologue := entry.Instrs
	entry.Instrs = body
	for _, b := range f.Blocks {
		for _, instr := range b.Instrs {
			switch v := instr.(type) {
			case *ir.Load:
				if g, ok := v.Addr.(*ir.Global); ok {
					if slot, ok := cache[g]; ok {
						v.Addr = slot
					}
				}
			case *ir.Store:
				if g, ok := v.Addr.(*ir.Global); ok {
					if slot, ok := cache[g]; ok {
						v.Addr = slot
					}
				}
			}
		}
		if _, ok := b.Term.(*ir.Return); ok {
			for g, slot := range cache {
				v := f.NewLoad(b, slot, ir.TypeI32)
				f.NewStore(b, g, v)
			}
		}
	}
	entry.Instrs = append(prologue, entry.Instrs...)
}

func topK(counts map[*ir.Global]int, k int) []*ir.Global {
	names := make([]*ir.Global, 0, len(counts))
	for g := range counts {
		names = append(names, g)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i].GlobalName < names[j].GlobalName
	})
	if len(names) > k {
		names = names[:k]
	}
	return names
}
