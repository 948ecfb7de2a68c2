package interp

import (
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"github.com/timewinder-dev/jvmcore/vm"
)

type StepResult int

const (
	ContinueStep StepResult = iota
	ReturnStep
	EndStep
)

func (r StepResult) String() string {
	switch r {
	case ContinueStep:
		return "Continue"
	case ReturnStep:
		return "Return"
	case EndStep:
		return "End"
	default:
		return "Unknown"
	}
}

// Step executes the instruction at frame.PC. On ReturnStep the int is the
// number of values left on the stack for the caller (0 or 1).
func Step(reg *vm.Registry, frame *Frame) (StepResult, int, error) {
	inst, err := frame.Method.GetInstruction(frame.PC)
	if err != nil {
		if errors.Is(err, vm.ErrEndOfCode) {
			log.Trace().Int("pc", frame.PC).Msg("Step: end of code")
			return EndStep, 0, nil
		}
		return EndStep, 0, err
	}

	log.Trace().
		Str("method", frame.Method.Name).
		Int("pc", frame.PC).
		Str("op", inst.String()).
		Int("stack_depth", len(frame.Stack)).
		Msg("Step: executing instruction")

	res, n, err := execute(reg, frame, inst)
	if err != nil {
		log.Trace().Int("pc", frame.PC).Str("op", inst.String()).Err(err).Msg("Step: error")
		return res, 0, &vm.ExecError{
			Method: frame.Method.Name,
			PC:     frame.PC,
			Op:     inst,
			Err:    err,
		}
	}
	if res == ContinueStep {
		frame.PC++
	}
	return res, n, nil
}

func execute(reg *vm.Registry, frame *Frame, inst vm.Op) (StepResult, int, error) {
	switch inst.Code {
	case vm.NOP:
	case vm.ACONST_NULL:
		return ContinueStep, 0, frame.Push(vm.Null)
	case vm.BIPUSH:
		if inst.Index < math.MinInt8 || inst.Index > math.MaxInt8 {
			return ContinueStep, 0, vm.Faultf("bipush operand %d out of range", inst.Index)
		}
		return ContinueStep, 0, frame.Push(vm.IntValue(inst.Index))
	case vm.SIPUSH:
		if inst.Index < math.MinInt16 || inst.Index > math.MaxInt16 {
			return ContinueStep, 0, vm.Faultf("sipush operand %d out of range", inst.Index)
		}
		return ContinueStep, 0, frame.Push(vm.IntValue(inst.Index))
	case vm.LDC:
		return ContinueStep, 0, ldc(reg, frame, inst)
	case vm.ILOAD, vm.ALOAD:
		v, err := frame.GetLocal(inst.Index)
		if err != nil {
			return ContinueStep, 0, err
		}
		if err := expectKind(v, loadStoreKind(inst.Code)); err != nil {
			return ContinueStep, 0, err
		}
		return ContinueStep, 0, frame.Push(v)
	case vm.ISTORE, vm.ASTORE:
		v, err := pop(frame, loadStoreKind(inst.Code))
		if err != nil {
			return ContinueStep, 0, err
		}
		return ContinueStep, 0, frame.SetLocal(inst.Index, v)
	case vm.POP:
		_, err := frame.Pop()
		return ContinueStep, 0, err
	case vm.DUP:
		v, err := frame.Peek()
		if err != nil {
			return ContinueStep, 0, err
		}
		return ContinueStep, 0, frame.Push(v)
	case vm.SWAP:
		a, err := frame.Pop()
		if err != nil {
			return ContinueStep, 0, err
		}
		b, err := frame.Pop()
		if err != nil {
			return ContinueStep, 0, err
		}
		if err := frame.Push(a); err != nil {
			return ContinueStep, 0, err
		}
		return ContinueStep, 0, frame.Push(b)
	case vm.RETURN:
		return ReturnStep, 0, nil
	case vm.IRETURN, vm.ARETURN:
		v, err := frame.Peek()
		if err != nil {
			return ReturnStep, 0, err
		}
		want := vm.KindInt
		if inst.Code == vm.ARETURN {
			want = vm.KindRef
		}
		if err := expectKind(v, want); err != nil {
			return ReturnStep, 0, err
		}
		return ReturnStep, 1, nil
	case vm.NEW:
		return ContinueStep, 0, newObject(reg, frame, inst)
	case vm.PUTSTATIC:
		return ContinueStep, 0, putStatic(reg, frame, inst)
	case vm.GETSTATIC:
		return ContinueStep, 0, getStatic(reg, frame, inst)
	case vm.PUTFIELD:
		return ContinueStep, 0, putField(reg, frame, inst)
	case vm.GETFIELD:
		return ContinueStep, 0, getField(reg, frame, inst)
	case vm.INSTANCEOF:
		return ContinueStep, 0, instanceOf(reg, frame, inst)
	case vm.CHECKCAST:
		return ContinueStep, 0, checkCast(reg, frame, inst)
	default:
		return ContinueStep, 0, vm.Faultf("unhandled opcode %s", inst.Code)
	}
	return ContinueStep, 0, nil
}

func loadStoreKind(op vm.Opcode) vm.Kind {
	switch op {
	case vm.ALOAD, vm.ASTORE:
		return vm.KindRef
	}
	return vm.KindInt
}

func expectKind(v vm.Value, k vm.Kind) error {
	if v.Kind() != k {
		return vm.Faultf("expected %s on the operand stack, got %s", k, v.Kind())
	}
	return nil
}

func pop(frame *Frame, k vm.Kind) (vm.Value, error) {
	v, err := frame.Pop()
	if err != nil {
		return nil, err
	}
	if err := expectKind(v, k); err != nil {
		return nil, err
	}
	return v, nil
}

// popObject pops a reference that must be an object reference, possibly null.
func popObject(frame *Frame) (vm.RefValue, error) {
	v, err := pop(frame, vm.KindRef)
	if err != nil {
		return vm.Null, err
	}
	ref, ok := v.(vm.RefValue)
	if !ok {
		return vm.Null, vm.Faultf("expected an object reference, got %s", v)
	}
	return ref, nil
}

func resolveClass(reg *vm.Registry, name string) (*vm.Class, error) {
	if name == "" {
		return nil, vm.Faultf("instruction has no class operand")
	}
	return reg.Load(name)
}

func ldc(reg *vm.Registry, frame *Frame, inst vm.Op) error {
	switch c := inst.Const.(type) {
	case vm.IntValue:
		return frame.Push(c)
	case vm.ClassConst:
		cls, err := resolveClass(reg, string(c))
		if err != nil {
			return err
		}
		return frame.Push(vm.ClassValue{Class: cls})
	case nil:
		return vm.Faultf("ldc without a constant")
	default:
		return vm.Faultf("ldc of unsupported constant %s", c)
	}
}

func newObject(reg *vm.Registry, frame *Frame, inst vm.Op) error {
	cls, err := resolveClass(reg, inst.Class)
	if err != nil {
		return err
	}
	obj, err := reg.NewObject(cls)
	if err != nil {
		return err
	}
	log.Trace().Str("class", cls.Name()).Str("object", obj.String()).Msg("  NEW")
	return frame.Push(vm.Ref(obj))
}

func resolveStatic(reg *vm.Registry, inst vm.Op) (*vm.StaticSlot, error) {
	cls, err := resolveClass(reg, inst.Class)
	if err != nil {
		return nil, err
	}
	decl, slot, err := reg.ResolveStaticField(cls, inst.Field)
	if err != nil {
		return nil, err
	}
	log.Trace().Str("ref", inst.Class).Str("declared_by", decl.Name()).Str("field", inst.Field).Msg("  static resolved")
	return slot, nil
}

func putStatic(reg *vm.Registry, frame *Frame, inst vm.Op) error {
	slot, err := resolveStatic(reg, inst)
	if err != nil {
		return err
	}
	v, err := pop(frame, slot.Field.Kind)
	if err != nil {
		return err
	}
	return slot.Store(v)
}

func getStatic(reg *vm.Registry, frame *Frame, inst vm.Op) error {
	slot, err := resolveStatic(reg, inst)
	if err != nil {
		return err
	}
	return frame.Push(slot.Load())
}

// fieldRef is a getfield/putfield operand. A ref that names a class is
// resolved before any operand is popped; one without a class waits for the
// object so it can use its runtime class.
type fieldRef struct {
	class *vm.Class
	field *vm.Field
}

func resolveFieldRef(reg *vm.Registry, inst vm.Op) (fieldRef, error) {
	if inst.Class == "" {
		return fieldRef{}, nil
	}
	cls, err := resolveClass(reg, inst.Class)
	if err != nil {
		return fieldRef{}, err
	}
	_, f, err := reg.ResolveInstanceField(cls, inst.Field)
	if err != nil {
		return fieldRef{}, err
	}
	return fieldRef{class: cls, field: f}, nil
}

// bind returns the field to access on obj.
func (r fieldRef) bind(reg *vm.Registry, inst vm.Op, obj *vm.Object) (*vm.Field, error) {
	if r.field == nil {
		_, f, err := reg.ResolveInstanceField(obj.Class(), inst.Field)
		return f, err
	}
	if !obj.IsInstanceOf(r.class) {
		return nil, vm.Faultf("%s is not a %s", obj, r.class.Name())
	}
	return r.field, nil
}

func putField(reg *vm.Registry, frame *Frame, inst vm.Op) error {
	ref, err := resolveFieldRef(reg, inst)
	if err != nil {
		return err
	}
	v, err := frame.Pop()
	if err != nil {
		return err
	}
	obj, err := popObject(frame)
	if err != nil {
		return err
	}
	if obj.IsNull() {
		return fmt.Errorf("%w: putfield %s on null", vm.ErrNullPointer, inst.Field)
	}
	f, err := ref.bind(reg, inst, obj.Obj)
	if err != nil {
		return err
	}
	return obj.Obj.SetField(f, v)
}

func getField(reg *vm.Registry, frame *Frame, inst vm.Op) error {
	ref, err := resolveFieldRef(reg, inst)
	if err != nil {
		return err
	}
	obj, err := popObject(frame)
	if err != nil {
		return err
	}
	if obj.IsNull() {
		return fmt.Errorf("%w: getfield %s on null", vm.ErrNullPointer, inst.Field)
	}
	f, err := ref.bind(reg, inst, obj.Obj)
	if err != nil {
		return err
	}
	v, err := obj.Obj.GetField(f)
	if err != nil {
		return err
	}
	return frame.Push(v)
}

// assignable is the instanceof test. Class references are never instances of
// a user class.
func assignable(reg *vm.Registry, v vm.Value, className string) (bool, error) {
	cls, err := resolveClass(reg, className)
	if err != nil {
		return false, err
	}
	ref, ok := v.(vm.RefValue)
	if !ok {
		return false, nil
	}
	return ref.Obj.IsInstanceOf(cls), nil
}

func isNull(v vm.Value) bool {
	ref, ok := v.(vm.RefValue)
	return ok && ref.IsNull()
}

func instanceOf(reg *vm.Registry, frame *Frame, inst vm.Op) error {
	v, err := pop(frame, vm.KindRef)
	if err != nil {
		return err
	}
	if isNull(v) {
		return frame.Push(vm.IntValue(0))
	}
	ok, err := assignable(reg, v, inst.Class)
	if err != nil {
		return err
	}
	if ok {
		return frame.Push(vm.IntValue(1))
	}
	return frame.Push(vm.IntValue(0))
}

func checkCast(reg *vm.Registry, frame *Frame, inst vm.Op) error {
	v, err := pop(frame, vm.KindRef)
	if err != nil {
		return err
	}
	if err := frame.Push(v); err != nil {
		return err
	}
	if isNull(v) {
		return nil
	}
	ok, err := assignable(reg, v, inst.Class)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s cannot be cast to %s", vm.ErrClassCast, v, inst.Class)
	}
	return nil
}
