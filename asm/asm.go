// Package asm builds decoded programs from Starlark assembly files.
//
// An assembly file declares classes and method bodies by calling builtins:
//
//	define_class("MyObject", fields = {"instanceVar": "I"})
//	define_class("SubObject", super = "MyObject", statics = {"staticVar": "I"})
//	method("main", max_locals = 2, code = [
//	    ldc(32768),
//	    istore(1),
//	    new("SubObject"),
//	    astore(0),
//	    return_(),
//	])
//
// A static may be given as a (descriptor, constant) pair to start at that
// constant, e.g. statics = {"MAX": ("I", 100)}; None is the null constant.
//
// Everything else Starlark offers (variables, list concatenation, loops,
// helper functions) can be used to build the code lists.
package asm

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/rs/zerolog/log"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/timewinder-dev/jvmcore/vm"
)

type assembler struct {
	prog    *vm.Program
	classes map[string]bool
}

func newAssembler() *assembler {
	return &assembler{
		prog: &vm.Program{
			Methods: make(map[string]*vm.Method),
		},
		classes: make(map[string]bool),
	}
}

func AssemblePath(path string) (*vm.Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Assemble(path, f)
}

func AssembleLiteral(code string) (*vm.Program, error) {
	return Assemble("literal.star", code)
}

// Assemble evaluates src, which may be a string, []byte or io.Reader.
func Assemble(filename string, src any) (*vm.Program, error) {
	if r, ok := src.(io.Reader); ok {
		b, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		src = b
	}
	a := newAssembler()
	thread := &starlark.Thread{
		Name: "asm",
		Print: func(_ *starlark.Thread, msg string) {
			log.Info().Str("file", filename).Msg(msg)
		},
	}
	opts := &syntax.FileOptions{}
	if _, err := starlark.ExecFileOptions(opts, thread, filename, src, a.predeclared()); err != nil {
		if evalErr, ok := err.(*starlark.EvalError); ok {
			return nil, fmt.Errorf("assembling %s: %s", filename, evalErr.Backtrace())
		}
		return nil, fmt.Errorf("assembling %s: %w", filename, err)
	}
	log.Debug().
		Str("file", filename).
		Int("classes", len(a.prog.Classes)).
		Int("methods", len(a.prog.Methods)).
		Msg("asm: assembled program")
	return a.prog, nil
}

func (a *assembler) predeclared() starlark.StringDict {
	env := starlark.StringDict{
		"define_class": starlark.NewBuiltin("define_class", a.defineClass),
		"method":       starlark.NewBuiltin("method", a.method),
	}
	for name, b := range instructionBuiltins {
		env[name] = starlark.NewBuiltin(name, b)
	}
	return env
}

func (a *assembler) defineClass(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		name, super     string
		fields, statics *starlark.Dict
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"name", &name,
		"super?", &super,
		"fields?", &fields,
		"statics?", &statics,
	); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("%s: class name must not be empty", b.Name())
	}
	if a.classes[name] {
		return nil, fmt.Errorf("%s: class %s defined twice", b.Name(), name)
	}
	def := vm.ClassDef{Name: name, Super: super}
	var err error
	if def.Fields, err = fieldDefs(b.Name(), fields, false); err != nil {
		return nil, err
	}
	if def.Statics, err = fieldDefs(b.Name(), statics, true); err != nil {
		return nil, err
	}
	a.classes[name] = true
	a.prog.Classes = append(a.prog.Classes, def)
	return starlark.None, nil
}

// fieldDefs reads a name -> descriptor dict. With withInit, a value may also
// be a (descriptor, constant) pair giving the field's initial value.
func fieldDefs(fn string, d *starlark.Dict, withInit bool) ([]vm.FieldDef, error) {
	if d == nil {
		return nil, nil
	}
	var out []vm.FieldDef
	for _, item := range d.Items() {
		name, ok := starlark.AsString(item[0])
		if !ok {
			return nil, fmt.Errorf("%s: field name %s is not a string", fn, item[0])
		}
		fd := vm.FieldDef{Name: name}
		spec := item[1]
		if t, ok := spec.(starlark.Tuple); ok && withInit {
			if len(t) != 2 {
				return nil, fmt.Errorf("%s: field %s wants (descriptor, constant), got %d items", fn, name, len(t))
			}
			init, err := initialValue(t[1])
			if err != nil {
				return nil, fmt.Errorf("%s: field %s: %w", fn, name, err)
			}
			fd.Init = init
			spec = t[0]
		}
		desc, ok := starlark.AsString(spec)
		if !ok {
			return nil, fmt.Errorf("%s: descriptor of %s is not a string", fn, name)
		}
		if _, err := vm.KindOf(desc); err != nil {
			return nil, fmt.Errorf("%s: field %s: %w", fn, name, err)
		}
		fd.Descriptor = desc
		out = append(out, fd)
	}
	return out, nil
}

func initialValue(v starlark.Value) (vm.Value, error) {
	switch x := v.(type) {
	case starlark.NoneType:
		return vm.Null, nil
	case starlark.Int:
		n, ok := x.Int64()
		if !ok || n < math.MinInt32 || n > math.MaxInt32 {
			return nil, fmt.Errorf("constant %s does not fit in an int", x)
		}
		return vm.IntValue(n), nil
	}
	return nil, fmt.Errorf("unsupported constant %s", v.Type())
}

func (a *assembler) method(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		name                string
		code                *starlark.List
		maxLocals, maxStack int
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"name", &name,
		"code", &code,
		"max_locals?", &maxLocals,
		"max_stack?", &maxStack,
	); err != nil {
		return nil, err
	}
	if _, ok := a.prog.Methods[name]; ok {
		return nil, fmt.Errorf("%s: method %s defined twice", b.Name(), name)
	}
	if maxLocals < 0 || maxStack < 0 {
		return nil, fmt.Errorf("%s: negative limits for %s", b.Name(), name)
	}
	m := &vm.Method{
		Name:      name,
		MaxLocals: maxLocals,
		MaxStack:  maxStack,
	}
	for i := 0; i < code.Len(); i++ {
		op, ok := code.Index(i).(*opValue)
		if !ok {
			return nil, fmt.Errorf("%s: %s code[%d] is a %s, not an instruction", b.Name(), name, i, code.Index(i).Type())
		}
		if maxLocals > 0 && isLocalOp(op.op.Code) && op.op.Index >= maxLocals {
			return nil, fmt.Errorf("%s: %s code[%d] %s uses local %d beyond max_locals %d", b.Name(), name, i, op.op, op.op.Index, maxLocals)
		}
		m.Code = append(m.Code, op.op)
	}
	a.prog.Methods[name] = m
	return starlark.None, nil
}

func isLocalOp(c vm.Opcode) bool {
	switch c {
	case vm.ILOAD, vm.ALOAD, vm.ISTORE, vm.ASTORE:
		return true
	}
	return false
}
