package interp

import (
	"fmt"
	"strings"

	"github.com/timewinder-dev/jvmcore/vm"
)

// Frame is the activation record of one method invocation.
type Frame struct {
	Method *vm.Method
	Locals []vm.Value
	Stack  []vm.Value
	PC     int
}

// NewFrame builds a frame for m with locals copied into the first slots.
func NewFrame(m *vm.Method, locals []vm.Value) (*Frame, error) {
	if m == nil {
		return nil, vm.Faultf("no method to execute")
	}
	n := m.MaxLocals
	if len(locals) > n {
		if m.MaxLocals != 0 {
			return nil, vm.Faultf("%s takes %d locals, got %d", m.Name, m.MaxLocals, len(locals))
		}
		n = len(locals)
	}
	f := &Frame{
		Method: m,
		Locals: make([]vm.Value, n),
	}
	copy(f.Locals, locals)
	return f, nil
}

func (f *Frame) Pop() (vm.Value, error) {
	if len(f.Stack) == 0 {
		return nil, vm.Faultf("operand stack underflow")
	}
	v := f.Stack[len(f.Stack)-1]
	f.Stack = f.Stack[:len(f.Stack)-1]
	return v, nil
}

func (f *Frame) Push(v vm.Value) error {
	if v == nil {
		return vm.Faultf("push of a nil value")
	}
	if f.Method != nil && f.Method.MaxStack > 0 && len(f.Stack) >= f.Method.MaxStack {
		return vm.Faultf("operand stack overflow (max %d)", f.Method.MaxStack)
	}
	f.Stack = append(f.Stack, v)
	return nil
}

// Peek returns the top of the operand stack without removing it.
func (f *Frame) Peek() (vm.Value, error) {
	if len(f.Stack) == 0 {
		return nil, vm.Faultf("operand stack underflow")
	}
	return f.Stack[len(f.Stack)-1], nil
}

func (f *Frame) GetLocal(index int) (vm.Value, error) {
	if index < 0 || index >= len(f.Locals) {
		return nil, vm.Faultf("local variable index %d out of range (%d slots)", index, len(f.Locals))
	}
	v := f.Locals[index]
	if v == nil {
		return nil, vm.Faultf("read of unset local %d", index)
	}
	return v, nil
}

func (f *Frame) SetLocal(index int, v vm.Value) error {
	if index < 0 || index >= len(f.Locals) {
		return vm.Faultf("local variable index %d out of range (%d slots)", index, len(f.Locals))
	}
	f.Locals[index] = v
	return nil
}

func (f *Frame) PrettyPrint() string {
	var b strings.Builder
	name := "<none>"
	if f.Method != nil {
		name = f.Method.Name
	}
	fmt.Fprintf(&b, "Frame %s pc=%d\n", name, f.PC)
	b.WriteString("  Stack:")
	if len(f.Stack) == 0 {
		b.WriteString(" (empty)")
	}
	for _, v := range f.Stack {
		fmt.Fprintf(&b, " %s", v)
	}
	b.WriteString("\n  Locals:")
	if len(f.Locals) == 0 {
		b.WriteString(" (none)")
	}
	for i, v := range f.Locals {
		if v == nil {
			fmt.Fprintf(&b, " [%d]=-", i)
			continue
		}
		fmt.Fprintf(&b, " [%d]=%s", i, v)
	}
	b.WriteString("\n")
	return b.String()
}
