package vm

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.Define(ClassDef{
		Name:    "MyObject",
		Fields:  []FieldDef{{Name: "instanceVar", Descriptor: "I"}},
		Statics: []FieldDef{{Name: "count", Descriptor: "I"}},
	}))
	require.NoError(t, reg.Define(ClassDef{
		Name:    "SubObject",
		Super:   "MyObject",
		Fields:  []FieldDef{{Name: "peer", Descriptor: "LMyObject;"}},
		Statics: []FieldDef{{Name: "staticVar", Descriptor: "I"}},
	}))
	require.NoError(t, reg.Define(ClassDef{Name: "Unrelated"}))
	return reg
}

func TestLoadIsIdempotent(t *testing.T) {
	reg := sampleRegistry(t)
	a, err := reg.Load("SubObject")
	require.NoError(t, err)
	b, err := reg.Load("SubObject")
	require.NoError(t, err)
	assert.Same(t, a, b)

	// the superclass came along with the first load
	super, ok := reg.Lookup("MyObject")
	require.True(t, ok)
	assert.Same(t, super, a.SuperClass())

	_, ok = reg.Lookup("Unrelated")
	assert.False(t, ok, "Unrelated was never loaded")
	assert.Len(t, reg.Loaded(), 2)
}

func TestLoadZeroesStatics(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Define(ClassDef{
		Name:    "Holder",
		Statics: []FieldDef{{Name: "n", Descriptor: "I"}, {Name: "flag", Descriptor: "Z"}, {Name: "ref", Descriptor: "LHolder;"}, {Name: "arr", Descriptor: "[I"}},
	}))
	c, err := reg.Load("Holder")
	require.NoError(t, err)
	s := c.Statics()
	assert.Equal(t, IntValue(0), s["n"])
	assert.Equal(t, IntValue(0), s["flag"])
	assert.Equal(t, Null, s["ref"])
	assert.Equal(t, Null, s["arr"])
	assert.Equal(t, []string{"arr", "flag", "n", "ref"}, c.StaticNames())
}

func TestLoadFailures(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Define(ClassDef{Name: "Orphan", Super: "Missing"}))
	require.NoError(t, reg.Define(ClassDef{Name: "A", Super: "B"}))
	require.NoError(t, reg.Define(ClassDef{Name: "B", Super: "A"}))

	_, err := reg.Load("Nope")
	assert.ErrorIs(t, err, ErrInternalFault)
	_, err = reg.Load("Orphan")
	assert.ErrorIs(t, err, ErrInternalFault)
	_, err = reg.Load("A")
	assert.ErrorIs(t, err, ErrInternalFault)
	assert.Contains(t, err.Error(), "cyclic")

	// defining the missing superclass later makes the class loadable
	require.NoError(t, reg.Define(ClassDef{Name: "Missing"}))
	c, err := reg.Load("Orphan")
	require.NoError(t, err)
	assert.Equal(t, "Missing", c.SuperClass().Name())
}

func TestDefineValidation(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Define(ClassDef{Name: "A"}))
	tests := []struct {
		name string
		def  ClassDef
	}{
		{"empty name", ClassDef{}},
		{"duplicate class", ClassDef{Name: "A"}},
		{"self super", ClassDef{Name: "Self", Super: "Self"}},
		{"duplicate field", ClassDef{Name: "D", Fields: []FieldDef{{Name: "x", Descriptor: "I"}}, Statics: []FieldDef{{Name: "x", Descriptor: "I"}}}},
		{"unnamed field", ClassDef{Name: "U", Fields: []FieldDef{{Name: "", Descriptor: "I"}}}},
		{"long field", ClassDef{Name: "L", Fields: []FieldDef{{Name: "x", Descriptor: "J"}}}},
		{"bad ref", ClassDef{Name: "R", Fields: []FieldDef{{Name: "x", Descriptor: "LFoo"}}}},
		{"instance initial value", ClassDef{Name: "I1", Fields: []FieldDef{{Name: "x", Descriptor: "I", Init: IntValue(1)}}}},
		{"initial value kind", ClassDef{Name: "I2", Statics: []FieldDef{{Name: "x", Descriptor: "I", Init: Null}}}},
		{"initial class value", ClassDef{Name: "I3", Statics: []FieldDef{{Name: "x", Descriptor: "LA;", Init: ClassConst("A")}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, reg.Define(tt.def))
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		desc string
		want Kind
		ok   bool
	}{
		{"I", KindInt, true},
		{"Z", KindInt, true},
		{"B", KindInt, true},
		{"C", KindInt, true},
		{"S", KindInt, true},
		{"Ljava/lang/Object;", KindRef, true},
		{"[I", KindRef, true},
		{"[[LMyObject;", KindRef, true},
		{"J", 0, false},
		{"D", 0, false},
		{"F", 0, false},
		{"", 0, false},
		{"II", 0, false},
		{"L;", 0, false},
		{"[", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			k, err := KindOf(tt.desc)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, k)
		})
	}
}

func TestResolveStaticFieldUsesDeclaringClass(t *testing.T) {
	reg := sampleRegistry(t)
	sub, err := reg.Load("SubObject")
	require.NoError(t, err)
	super := sub.SuperClass()

	decl, slot, err := reg.ResolveStaticField(sub, "count")
	require.NoError(t, err)
	assert.Same(t, super, decl)

	direct, superSlot, err := reg.ResolveStaticField(super, "count")
	require.NoError(t, err)
	assert.Same(t, super, direct)
	assert.Same(t, superSlot, slot, "a subclass must see the superclass slot, not a copy")

	require.NoError(t, slot.Store(IntValue(5)))
	assert.Equal(t, IntValue(5), superSlot.Load())
	assert.Equal(t, IntValue(5), super.Statics()["count"])
	_, ok := sub.Statics()["count"]
	assert.False(t, ok, "the subclass has no slot of its own")

	decl, _, err = reg.ResolveStaticField(sub, "staticVar")
	require.NoError(t, err)
	assert.Same(t, sub, decl)

	_, _, err = reg.ResolveStaticField(super, "staticVar")
	assert.ErrorIs(t, err, ErrNoSuchField, "statics are never found through a subclass")

	_, _, err = reg.ResolveStaticField(sub, "instanceVar")
	assert.ErrorIs(t, err, ErrNoSuchField)
}

func TestStaticSlotKindCheck(t *testing.T) {
	reg := sampleRegistry(t)
	sub, err := reg.Load("SubObject")
	require.NoError(t, err)
	_, slot, err := reg.ResolveStaticField(sub, "staticVar")
	require.NoError(t, err)
	assert.ErrorIs(t, slot.Store(Null), ErrInternalFault)
	assert.Equal(t, IntValue(0), slot.Load())
}

func TestResolveInstanceField(t *testing.T) {
	reg := sampleRegistry(t)
	sub, err := reg.Load("SubObject")
	require.NoError(t, err)

	decl, f, err := reg.ResolveInstanceField(sub, "instanceVar")
	require.NoError(t, err)
	assert.Equal(t, "MyObject", decl.Name())
	assert.Same(t, decl, f.Class())
	assert.Equal(t, KindInt, f.Kind)
	assert.False(t, f.Static)

	_, _, err = reg.ResolveInstanceField(sub, "staticVar")
	assert.ErrorIs(t, err, ErrNoSuchField)
}

func TestNewObjectDefaults(t *testing.T) {
	reg := sampleRegistry(t)
	sub, err := reg.Load("SubObject")
	require.NoError(t, err)
	o, err := reg.NewObject(sub)
	require.NoError(t, err)

	fields := o.Fields()
	require.Len(t, fields, 2)
	assert.Equal(t, "instanceVar", fields[0].Field.Name)
	assert.Equal(t, "MyObject", fields[0].Field.Class().Name())
	assert.Equal(t, IntValue(0), fields[0].Value)
	assert.Equal(t, "peer", fields[1].Field.Name)
	assert.Equal(t, Null, fields[1].Value)
	v, ok := o.Field("peer")
	require.True(t, ok)
	assert.Equal(t, Null, v)
	assert.Same(t, sub, o.Class())

	other, err := reg.NewObject(sub)
	require.NoError(t, err)
	assert.NotEqual(t, o.ID, other.ID)
}

func TestNewObjectRejectsForeignClass(t *testing.T) {
	a := sampleRegistry(t)
	b := sampleRegistry(t)
	c, err := a.Load("MyObject")
	require.NoError(t, err)
	_, err = b.NewObject(c)
	assert.ErrorIs(t, err, ErrInternalFault)
	_, _, err = b.ResolveStaticField(c, "count")
	assert.ErrorIs(t, err, ErrInternalFault)
}

func TestObjectFieldAccess(t *testing.T) {
	reg := sampleRegistry(t)
	sub, err := reg.Load("SubObject")
	require.NoError(t, err)
	o, err := reg.NewObject(sub)
	require.NoError(t, err)
	_, f, err := reg.ResolveInstanceField(sub, "instanceVar")
	require.NoError(t, err)

	require.NoError(t, o.SetField(f, IntValue(32768)))
	v, err := o.GetField(f)
	require.NoError(t, err)
	assert.Equal(t, IntValue(32768), v)

	err = o.SetField(f, Ref(o))
	assert.ErrorIs(t, err, ErrInternalFault)
}

func TestAssignability(t *testing.T) {
	reg := sampleRegistry(t)
	sub, err := reg.Load("SubObject")
	require.NoError(t, err)
	un, err := reg.Load("Unrelated")
	require.NoError(t, err)
	super := sub.SuperClass()

	assert.True(t, sub.IsSubClassOf(super))
	assert.False(t, super.IsSubClassOf(sub))
	assert.False(t, sub.IsSubClassOf(sub))
	assert.True(t, super.IsAssignableFrom(sub))
	assert.True(t, sub.IsAssignableFrom(sub))
	assert.False(t, sub.IsAssignableFrom(super))
	assert.False(t, un.IsAssignableFrom(sub))

	o, err := reg.NewObject(sub)
	require.NoError(t, err)
	assert.True(t, o.IsInstanceOf(super))
	assert.False(t, o.IsInstanceOf(un))
}

func TestConcurrentLoadInitializesOnce(t *testing.T) {
	reg := sampleRegistry(t)
	const workers = 16
	results := make([]*Class, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = reg.Load("SubObject")
		}(i)
	}
	wg.Wait()
	for i := range results {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}

	// concurrent stores through the subclass all land in one slot
	_, slot, err := reg.ResolveStaticField(results[0], "count")
	require.NoError(t, err)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = slot.Store(IntValue(i))
		}(i)
	}
	wg.Wait()
	v, ok := slot.Load().(IntValue)
	require.True(t, ok)
	assert.True(t, v >= 0 && v < workers)
}

func TestExecErrorUnwraps(t *testing.T) {
	err := &ExecError{Method: "main", PC: 4, Op: Op{Code: CHECKCAST, Class: "MyObject"}, Err: ErrClassCast}
	assert.True(t, errors.Is(err, ErrClassCast))
	assert.Contains(t, err.Error(), "checkcast MyObject")
	assert.Contains(t, err.Error(), "pc 4")

	var ee *ExecError
	require.True(t, errors.As(error(err), &ee))
	assert.Equal(t, 4, ee.PC)
}

func TestHiddenFieldKeepsOwnSlot(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Define(ClassDef{Name: "A", Fields: []FieldDef{{Name: "f", Descriptor: "I"}}}))
	require.NoError(t, reg.Define(ClassDef{Name: "B", Super: "A", Fields: []FieldDef{{Name: "f", Descriptor: "LA;"}}}))
	b, err := reg.Load("B")
	require.NoError(t, err)
	a := b.SuperClass()

	_, af, err := reg.ResolveInstanceField(a, "f")
	require.NoError(t, err)
	_, bf, err := reg.ResolveInstanceField(b, "f")
	require.NoError(t, err)
	require.NotSame(t, af, bf)

	o, err := reg.NewObject(b)
	require.NoError(t, err)
	v, err := o.GetField(af)
	require.NoError(t, err)
	assert.Equal(t, IntValue(0), v)
	v, err = o.GetField(bf)
	require.NoError(t, err)
	assert.Equal(t, Null, v)

	require.NoError(t, o.SetField(af, IntValue(7)))
	v, err = o.GetField(bf)
	require.NoError(t, err)
	assert.Equal(t, Null, v, "writing the hidden field must not touch the subclass field")
	assert.ErrorIs(t, o.SetField(bf, IntValue(7)), ErrInternalFault)

	fields := o.Fields()
	require.Len(t, fields, 2)
	assert.Same(t, af, fields[0].Field)
	assert.Same(t, bf, fields[1].Field)
	named, ok := o.Field("f")
	require.True(t, ok)
	assert.Equal(t, Null, named)

	// an A has no slot for B's field
	plain, err := reg.NewObject(a)
	require.NoError(t, err)
	_, err = plain.GetField(bf)
	assert.ErrorIs(t, err, ErrNoSuchField)
}

func TestStaticInitialValues(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Define(ClassDef{
		Name: "Limits",
		Statics: []FieldDef{
			{Name: "MAX", Descriptor: "I", Init: IntValue(32768)},
			{Name: "FLAG", Descriptor: "Z", Init: IntValue(1)},
			{Name: "NONE", Descriptor: "LLimits;", Init: Null},
			{Name: "plain", Descriptor: "I"},
		},
	}))
	c, err := reg.Load("Limits")
	require.NoError(t, err)
	s := c.Statics()
	assert.Equal(t, IntValue(32768), s["MAX"])
	assert.Equal(t, IntValue(1), s["FLAG"])
	assert.Equal(t, Null, s["NONE"])
	assert.Equal(t, IntValue(0), s["plain"])
}
