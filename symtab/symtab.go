// Package symtab holds the function-signature and class-layout tables a
// front end hands the core as input. Producing these tables (parsing,
// name resolution, type checking) is an external collaborator's job; the
// core only reads them.
package symtab

import "github.com/mx-lang/mxc/ir"

// FuncSig describes one callable symbol. NoEffect mirrors the original's
// call_no/no_effect attribute: asserted here, not derived (§9 open
// question resolution in SPEC_FULL.md).
type FuncSig struct {
	Name     string
	RetType  *ir.Type
	ParamTypes []*ir.Type
	NoEffect bool
	Builtin  bool
}

// ClassLayout describes one class's member order and size, used by the
// front end to build GEP instructions. The core does not read it: Apply
// copies only function attributes, and ir.Print prints the module's own
// ir.Class layouts.
type ClassLayout struct {
	Name    string
	Members []ir.Member
	Size    int32
}

// Table is the whole-program symbol table passed into the pipeline.
type Table struct {
	Funcs   map[string]*FuncSig
	Classes map[string]*ClassLayout
}

func NewTable() *Table {
	return &Table{Funcs: map[string]*FuncSig{}, Classes: map[string]*ClassLayout{}}
}

func (t *Table) AddFunc(sig *FuncSig)        { t.Funcs[sig.Name] = sig }
func (t *Table) AddClass(c *ClassLayout)     { t.Classes[c.Name] = c }
func (t *Table) Func(name string) *FuncSig   { return t.Funcs[name] }
func (t *Table) Class(name string) *ClassLayout { return t.Classes[name] }

// Apply stamps every ir.Call's NoEffect flag and every ir.Function's own
// NoEffect flag from the table the front end produced, the one place the
// asserted (not inferred) no_effect classification actually enters the
// module. DCE later keys off the ir.Call flag; no pass reads
// ir.Function.NoEffect.
func (t *Table) Apply(m *ir.Module) {
	for _, f := range m.Functions {
		if sig := t.Func(f.Name); sig != nil {
			f.NoEffect = sig.NoEffect
		}
		for _, b := range f.Blocks {
			for _, instr := range b.Instrs {
				if c, ok := instr.(*ir.Call); ok {
					if sig := t.Func(c.Callee); sig != nil {
						c.NoEffect = sig.NoEffect
					}
				}
			}
		}
	}
}
