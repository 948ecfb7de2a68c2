package vm

import (
	"errors"
	"fmt"
	"io"
	"sort"
)

// Op is one decoded instruction record.
type Op struct {
	Code Opcode
	// Const is the ldc operand.
	Const Value
	// Class names the class operand of new, instanceof, checkcast and the
	// owner of a field reference.
	Class string
	// Field names the field of a field reference.
	Field string
	// Index is the local slot for loads and stores, and the immediate for
	// bipush and sipush.
	Index int
}

func (o Op) String() string {
	switch o.Code {
	case LDC:
		switch c := o.Const.(type) {
		case nil:
			return "ldc <nil>"
		case ClassConst:
			return fmt.Sprintf("ldc class %s", string(c))
		default:
			return fmt.Sprintf("ldc %s", c)
		}
	case NEW, CHECKCAST, INSTANCEOF:
		return fmt.Sprintf("%s %s", o.Code, o.Class)
	case GETSTATIC, PUTSTATIC, GETFIELD, PUTFIELD:
		if o.Class == "" {
			return fmt.Sprintf("%s %s", o.Code, o.Field)
		}
		return fmt.Sprintf("%s %s.%s", o.Code, o.Class, o.Field)
	case BIPUSH, SIPUSH, ILOAD, ALOAD, ISTORE, ASTORE:
		return fmt.Sprintf("%s %d", o.Code, o.Index)
	}
	return o.Code.String()
}

// ClassConst is an unresolved class constant. ldc resolves it against the
// registry and pushes a ClassValue.
type ClassConst string

func (ClassConst) isValue()   {}
func (ClassConst) Kind() Kind { return KindRef }
func (c ClassConst) String() string {
	return "class " + string(c)
}

type Method struct {
	Name      string
	MaxLocals int
	// MaxStack bounds the operand stack. Zero means unbounded.
	MaxStack int
	Code     []Op
}

var ErrEndOfCode = errors.New("End of code block")

func (m *Method) GetInstruction(pc int) (Op, error) {
	if pc < 0 || pc >= len(m.Code) {
		return Op{}, ErrEndOfCode
	}
	return m.Code[pc], nil
}

func (m *Method) DebugPrint(w io.Writer) {
	fmt.Fprintf(w, "method %s (locals=%d, stack=%d)\n", m.Name, m.MaxLocals, m.MaxStack)
	for i, op := range m.Code {
		fmt.Fprintf(w, "  %03d: %s\n", i, op)
	}
}

// Program is the output of an assembler: class definitions in declaration
// order plus named method bodies.
type Program struct {
	Classes []ClassDef
	Methods map[string]*Method
}

func (p *Program) Method(name string) (*Method, bool) {
	m, ok := p.Methods[name]
	return m, ok
}

// Install defines every class of the program in reg.
func (p *Program) Install(reg *Registry) error {
	for _, def := range p.Classes {
		if err := reg.Define(def); err != nil {
			return err
		}
	}
	return nil
}

func (p *Program) DebugPrint(w io.Writer) {
	for _, c := range p.Classes {
		if c.Super != "" {
			fmt.Fprintf(w, "class %s extends %s\n", c.Name, c.Super)
		} else {
			fmt.Fprintf(w, "class %s\n", c.Name)
		}
	}
	names := make([]string, 0, len(p.Methods))
	for k := range p.Methods {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, n := range names {
		p.Methods[n].DebugPrint(w)
	}
}
