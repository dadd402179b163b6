package ir

import (
	"fmt"
	"strings"
)

// Print renders a whole Module as LLVM-15-flavored text (§6.1). It is a
// write-only dump: the grammar is not required to round-trip through a
// parser, so this is the single place instruction syntax is spelled out,
// mirroring the teacher's dedicated ssa/print.go rather than scattering
// String() methods that double as both debug output and the canonical
// form.
func Print(m *Module) string {
	var sb strings.Builder
	for _, c := range m.Classes {
		printClass(&sb, c)
	}
	for _, g := range m.Globals {
		printGlobal(&sb, g)
	}
	for _, s := range m.Strings {
		printString(&sb, s)
	}
	for _, f := range m.Functions {
		printFunction(&sb, f)
	}
	return sb.String()
}

func printClass(sb *strings.Builder, c *Class) {
	fmt.Fprintf(sb, "%%class.%s = type { ", c.Name)
	names := make([]string, len(c.Members))
	for i, mem := range c.Members {
		names[i] = mem.Typ.String()
	}
	sb.WriteString(strings.Join(names, ", "))
	sb.WriteString(" }\n")
}

func printGlobal(sb *strings.Builder, g *Global) {
	init := "0"
	if g.Init != nil {
		init = g.Init.String()
	}
	fmt.Fprintf(sb, "@%s = global i32 %s\n", g.GlobalName, init)
}

func printString(sb *strings.Builder, s *Global) {
	esc := strings.NewReplacer("\\", "\\5C", "\n", "\\0A", "\"", "\\22", "\x00", "\\00").Replace(s.StrVal + "\x00")
	fmt.Fprintf(sb, "@%s = private unnamed_addr constant [%d x i8] c\"%s\"\n", s.GlobalName, len(s.StrVal)+1, esc)
}

func printFunction(sb *strings.Builder, f *Function) {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		if f.IsDeclare() {
			params[i] = p.Typ.String()
		} else {
			params[i] = p.Typ.String() + " %" + p.Name()
		}
	}
	paramList := strings.Join(params, ", ")
	if f.IsDeclare() {
		fmt.Fprintf(sb, "declare %s @%s(%s)\n", f.RetType.String(), f.Name, paramList)
		return
	}
	fmt.Fprintf(sb, "define %s @%s(%s) {\n", f.RetType.String(), f.Name, paramList)
	for _, b := range f.Blocks {
		printBlock(sb, b)
	}
	sb.WriteString("}\n")
}

func printBlock(sb *strings.Builder, b *BasicBlock) {
	fmt.Fprintf(sb, "%s:\n", b.Name)
	for _, p := range b.Phis {
		printInstr(sb, p)
	}
	for _, instr := range b.Instrs {
		printInstr(sb, instr)
	}
	if b.Term != nil {
		printInstr(sb, b.Term)
	} else {
		sb.WriteString("  unreachable\n")
	}
}

func printInstr(sb *strings.Builder, instr Instruction) {
	sb.WriteString("  ")
	switch v := instr.(type) {
	case *BinOp:
		fmt.Fprintf(sb, "%s = %s %s %s, %s\n", v.String(), v.Op, v.Type().String(), v.LHS.String(), v.RHS.String())
	case *ICmp:
		fmt.Fprintf(sb, "%s = icmp %s i32 %s, %s\n", v.String(), v.Pred, v.LHS.String(), v.RHS.String())
	case *Alloca:
		fmt.Fprintf(sb, "%s = alloca i32\n", v.String())
	case *Load:
		fmt.Fprintf(sb, "%s = load %s, ptr %s\n", v.String(), v.Type().String(), v.Addr.String())
	case *Store:
		sb.WriteString(v.String() + "\n")
	case *GetElementPtr:
		if v.Member != "" {
			fmt.Fprintf(sb, "%s = getelementptr inbounds %%class.%s, ptr %s, i32 %s, i32 %d\n",
				v.String(), v.Ptr.Type().ClassName, v.Ptr.String(), indexOrZero(v.Index), v.MemberIndex)
		} else {
			fmt.Fprintf(sb, "%s = getelementptr inbounds i32, ptr %s, i32 %s\n",
				v.String(), v.Ptr.String(), indexOrZero(v.Index))
		}
	case *Call:
		args := make([]string, len(v.Args))
		for i, a := range v.Args {
			args[i] = a.Type().String() + " " + a.String()
		}
		if v.Type().Kind == Void {
			fmt.Fprintf(sb, "call void @%s(%s)\n", v.Callee, strings.Join(args, ", "))
		} else {
			fmt.Fprintf(sb, "%s = call %s @%s(%s)\n", v.String(), v.Type().String(), v.Callee, strings.Join(args, ", "))
		}
	case *Malloc:
		fmt.Fprintf(sb, "%s = call ptr @malloc(i32 %d)\n", v.String(), v.Size)
	case *Phi:
		parts := make([]string, len(v.Incoming))
		for i, inc := range v.Incoming {
			pred := v.Block().Preds[i]
			parts[i] = fmt.Sprintf("[ %s, %%%s ]", inc.String(), pred.Name)
		}
		fmt.Fprintf(sb, "%s = phi %s %s\n", v.String(), v.Type().String(), strings.Join(parts, ", "))
	case *Jump, *Branch, *Return, *Unreachable:
		sb.WriteString(instr.String() + "\n")
	default:
		panic(fmt.Sprintf("ir.Print: unhandled instruction %T", instr))
	}
}

func indexOrZero(v Value) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
