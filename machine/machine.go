package machine

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/timewinder-dev/jvmcore/cas"
	"github.com/timewinder-dev/jvmcore/interp"
	"github.com/timewinder-dev/jvmcore/vm"
)

// A Machine is an assembled program installed in its own class registry,
// ready to run its entry method.
type Machine struct {
	Config   *Config
	Program  *vm.Program
	Registry *vm.Registry
}

type Result struct {
	Method string
	// Value is nil for a void return.
	Value vm.Value
	Steps int
	// Statics maps Class.field to the final value of every loaded static slot.
	Statics map[string]vm.Value
}

type TraceStep struct {
	PC          int
	Op          vm.Op
	FrameHash   cas.Hash
	StaticsHash cas.Hash
}

type TraceResult struct {
	Result
	Trace        []TraceStep
	UniqueFrames int
	Cache        cas.CacheStats
}

func NewMachine(cfg *Config, p *vm.Program) (*Machine, error) {
	reg := vm.NewRegistry()
	if err := p.Install(reg); err != nil {
		return nil, err
	}
	return &Machine{
		Config:   cfg,
		Program:  p,
		Registry: reg,
	}, nil
}

func (m *Machine) entryFrame() (*interp.Frame, error) {
	method, ok := m.Program.Method(m.Config.Program.Entry)
	if !ok {
		return nil, fmt.Errorf("entry method %q not found", m.Config.Program.Entry)
	}
	locals, err := m.Config.EntryLocals()
	if err != nil {
		return nil, err
	}
	return interp.NewFrame(method, locals)
}

func (m *Machine) run(observer interp.StepObserver) (*Result, error) {
	f, err := m.entryFrame()
	if err != nil {
		return nil, err
	}
	steps := 0
	count := func(pc int, op vm.Op, fr *interp.Frame) {
		steps++
		if observer != nil {
			observer(pc, op, fr)
		}
	}
	log.Debug().Str("method", f.Method.Name).Int("locals", len(f.Locals)).Msg("Machine: starting entry method")
	v, err := interp.Run(m.Registry, f, count)
	res := &Result{
		Method:  f.Method.Name,
		Value:   v,
		Steps:   steps,
		Statics: m.statics(),
	}
	return res, err
}

// Run executes the entry method. On failure the partial result is returned
// along with the error.
func (m *Machine) Run() (*Result, error) {
	return m.run(nil)
}

// Trace executes the entry method while storing a frame and statics snapshot
// in store after every instruction.
func (m *Machine) Trace(store cas.CAS, rep Reporter) (*TraceResult, error) {
	if rep == nil {
		rep = &SilentReporter{}
	}
	out := &TraceResult{}
	seen := make(map[cas.Hash]bool)
	var putErr error
	observer := func(pc int, op vm.Op, f *interp.Frame) {
		if putErr != nil {
			return
		}
		fh, err := store.Put(cas.RecordFrame(pc, op, f))
		if err != nil {
			putErr = err
			return
		}
		sh, err := store.Put(cas.RecordStatics(m.Registry))
		if err != nil {
			putErr = err
			return
		}
		if !seen[fh] {
			seen[fh] = true
			out.UniqueFrames++
		}
		out.Trace = append(out.Trace, TraceStep{PC: pc, Op: op, FrameHash: fh, StaticsHash: sh})
		rep.Printf("%03d %-32s frame=%s statics=%s\n", pc, op, fh, sh)
	}
	res, err := m.run(observer)
	if res != nil {
		out.Result = *res
	}
	if lru, ok := store.(*cas.LRUCache); ok {
		out.Cache = lru.Stats()
	}
	if err != nil {
		return out, err
	}
	if putErr != nil {
		return out, fmt.Errorf("recording trace: %w", putErr)
	}
	return out, nil
}

// NewTraceStore builds the store Trace records into, sized by the config.
func (m *Machine) NewTraceStore() *cas.LRUCache {
	return cas.NewLRUCache(cas.NewMemoryCAS(), m.Config.Trace.CacheSize)
}

func (m *Machine) statics() map[string]vm.Value {
	out := make(map[string]vm.Value)
	for _, c := range m.Registry.Loaded() {
		for k, v := range c.Statics() {
			out[c.Name()+"."+k] = v
		}
	}
	return out
}

// StaticNames returns the keys of r.Statics in sorted order.
func (r *Result) StaticNames() []string {
	out := make([]string, 0, len(r.Statics))
	for k := range r.Statics {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
