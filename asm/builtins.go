package asm

import (
	"fmt"
	"math"

	"go.starlark.net/starlark"

	"github.com/timewinder-dev/jvmcore/vm"
)

// opValue carries one instruction through Starlark code.
type opValue struct {
	op vm.Op
}

var _ starlark.Value = (*opValue)(nil)

func (o *opValue) String() string        { return o.op.String() }
func (o *opValue) Type() string          { return "instruction" }
func (o *opValue) Freeze()               {}
func (o *opValue) Truth() starlark.Bool  { return starlark.True }
func (o *opValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: instruction") }

type builtinFn func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error)

// instructionBuiltins maps assembly mnemonics to their constructors.
// return is a Starlark keyword, so the void return is spelled return_.
var instructionBuiltins = map[string]builtinFn{
	"nop":         noOperand(vm.NOP),
	"aconst_null": noOperand(vm.ACONST_NULL),
	"pop":         noOperand(vm.POP),
	"dup":         noOperand(vm.DUP),
	"swap":        noOperand(vm.SWAP),
	"return_":     noOperand(vm.RETURN),
	"ireturn":     noOperand(vm.IRETURN),
	"areturn":     noOperand(vm.ARETURN),
	"bipush":      immediate(vm.BIPUSH, math.MinInt8, math.MaxInt8),
	"sipush":      immediate(vm.SIPUSH, math.MinInt16, math.MaxInt16),
	"iload":       local(vm.ILOAD),
	"aload":       local(vm.ALOAD),
	"istore":      local(vm.ISTORE),
	"astore":      local(vm.ASTORE),
	"ldc":         builtinLdc,
	"ldc_class":   builtinLdcClass,
	"new":         classOperand(vm.NEW),
	"instanceof":  classOperand(vm.INSTANCEOF),
	"checkcast":   classOperand(vm.CHECKCAST),
	"getstatic":   staticOperand(vm.GETSTATIC),
	"putstatic":   staticOperand(vm.PUTSTATIC),
	"getfield":    fieldOperand(vm.GETFIELD),
	"putfield":    fieldOperand(vm.PUTFIELD),
}

func noOperand(code vm.Opcode) builtinFn {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
			return nil, err
		}
		return &opValue{op: vm.Op{Code: code}}, nil
	}
}

func immediate(code vm.Opcode, lo, hi int) builtinFn {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var n int
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &n); err != nil {
			return nil, err
		}
		if n < lo || n > hi {
			return nil, fmt.Errorf("%s: operand %d outside [%d, %d]", b.Name(), n, lo, hi)
		}
		return &opValue{op: vm.Op{Code: code, Index: n}}, nil
	}
}

func local(code vm.Opcode) builtinFn {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var n int
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &n); err != nil {
			return nil, err
		}
		if n < 0 || n > math.MaxUint16 {
			return nil, fmt.Errorf("%s: local index %d out of range", b.Name(), n)
		}
		return &opValue{op: vm.Op{Code: code, Index: n}}, nil
	}
}

func classOperand(code vm.Opcode) builtinFn {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var class string
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &class); err != nil {
			return nil, err
		}
		if class == "" {
			return nil, fmt.Errorf("%s: empty class name", b.Name())
		}
		return &opValue{op: vm.Op{Code: code, Class: class}}, nil
	}
}

func staticOperand(code vm.Opcode) builtinFn {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var class, field string
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &class, &field); err != nil {
			return nil, err
		}
		if class == "" || field == "" {
			return nil, fmt.Errorf("%s: class and field are required", b.Name())
		}
		return &opValue{op: vm.Op{Code: code, Class: class, Field: field}}, nil
	}
}

// fieldOperand takes the field name and optionally the class to resolve it
// through; without one the runtime class of the object is used.
func fieldOperand(code vm.Opcode) builtinFn {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var field, class string
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "field", &field, "cls?", &class); err != nil {
			return nil, err
		}
		if field == "" {
			return nil, fmt.Errorf("%s: empty field name", b.Name())
		}
		return &opValue{op: vm.Op{Code: code, Class: class, Field: field}}, nil
	}
}

func builtinLdc(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var c starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &c); err != nil {
		return nil, err
	}
	i, ok := c.(starlark.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unsupported constant %s (only int constants; use ldc_class for classes)", b.Name(), c.Type())
	}
	n, ok := i.Int64()
	if !ok || n < math.MinInt32 || n > math.MaxInt32 {
		return nil, fmt.Errorf("%s: constant %s does not fit in an int", b.Name(), i)
	}
	return &opValue{op: vm.Op{Code: vm.LDC, Const: vm.IntValue(n)}}, nil
}

func builtinLdcClass(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var class string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &class); err != nil {
		return nil, err
	}
	if class == "" {
		return nil, fmt.Errorf("%s: empty class name", b.Name())
	}
	return &opValue{op: vm.Op{Code: vm.LDC, Const: vm.ClassConst(class)}}, nil
}
