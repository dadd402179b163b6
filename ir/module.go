package ir

// Member describes one field slot in a class or the runtime array
// layout, in declaration order (its index is the GEP member index).
type Member struct {
	Name string
	Typ  *Type
}

// Class is a struct layout: user classes and the single built-in array
// object layout (§3.4) both use this type.
type Class struct {
	Name    string
	Members []Member
	Size    int32 // total size in bytes, for Malloc
}

func (c *Class) MemberIndex(name string) int {
	for i, m := range c.Members {
		if m.Name == name {
			return i
		}
	}
	return -1
}

// Module is a whole program: every function, class layout, global
// variable and string constant the core operates on.
type Module struct {
	Functions []*Function
	Classes   []*Class
	Globals   []*Global
	Strings   []*Global
}

func NewModule() *Module { return &Module{} }

func (m *Module) AddFunction(f *Function) { m.Functions = append(m.Functions, f) }
func (m *Module) AddClass(c *Class)       { m.Classes = append(m.Classes, c) }
func (m *Module) AddGlobal(g *Global)     { m.Globals = append(m.Globals, g) }
func (m *Module) AddString(s *Global)     { m.Strings = append(m.Strings, s) }

// ForEachDefinition runs fn over every function with a body, skipping
// declarations — the shape every optimizer pass drives its top-level
// loop from (mirrors IRModule.for_each_function_definition).
func (m *Module) ForEachDefinition(fn func(*Function)) {
	for _, f := range m.Functions {
		if !f.IsDeclare() {
			fn(f)
		}
	}
}
