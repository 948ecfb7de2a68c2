package interp

import (
	"github.com/rs/zerolog/log"
	"github.com/timewinder-dev/jvmcore/vm"
)

// StepObserver is called after every instruction that completes without
// error. pc and op describe the instruction that just ran.
type StepObserver func(pc int, op vm.Op, f *Frame)

// Execute runs m in a fresh frame until it returns. The result is nil for a
// void return or when execution runs off the end of the code.
func Execute(reg *vm.Registry, m *vm.Method, locals []vm.Value) (vm.Value, error) {
	f, err := NewFrame(m, locals)
	if err != nil {
		return nil, err
	}
	return Run(reg, f, nil)
}

// Run drives frame to completion, reporting each step to observer if it is
// not nil.
func Run(reg *vm.Registry, frame *Frame, observer StepObserver) (vm.Value, error) {
	stepCount := 0
	for {
		pc := frame.PC
		op, _ := frame.Method.GetInstruction(pc)
		res, n, err := Step(reg, frame)
		if err != nil {
			return nil, err
		}
		if res != EndStep {
			stepCount++
			if observer != nil {
				observer(pc, op, frame)
			}
		}
		switch res {
		case ContinueStep:
			continue
		case ReturnStep:
			if n == 0 {
				log.Debug().Str("method", frame.Method.Name).Int("steps", stepCount).Msg("Run: void return")
				return nil, nil
			}
			val, err := frame.Pop()
			if err != nil {
				return nil, err
			}
			log.Debug().Str("method", frame.Method.Name).Int("steps", stepCount).Str("value", val.String()).Msg("Run: returned")
			return val, nil
		case EndStep:
			log.Debug().Str("method", frame.Method.Name).Int("steps", stepCount).Msg("Run: end of code")
			return nil, nil
		}
	}
}
