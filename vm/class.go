package vm

import (
	"fmt"
	"sort"
	"sync"
)

// FieldDef declares a field by name and JVM type descriptor.
type FieldDef struct {
	Name       string
	Descriptor string
	// Init is the constant a static field starts with instead of its zero
	// value: an IntValue for int-like descriptors, Null for references.
	Init Value
}

// ClassDef is the declarative form of a class, standing in for a parsed
// class file.
type ClassDef struct {
	Name    string
	Super   string
	Fields  []FieldDef
	Statics []FieldDef
}

// KindOf maps a field descriptor to the kind of value it holds. Only the
// int-like and reference descriptors are supported.
func KindOf(descriptor string) (Kind, error) {
	if descriptor == "" {
		return 0, fmt.Errorf("empty field descriptor")
	}
	switch descriptor[0] {
	case 'Z', 'B', 'C', 'S', 'I':
		if len(descriptor) != 1 {
			return 0, fmt.Errorf("malformed field descriptor %q", descriptor)
		}
		return KindInt, nil
	case 'L':
		if len(descriptor) < 3 || descriptor[len(descriptor)-1] != ';' {
			return 0, fmt.Errorf("malformed field descriptor %q", descriptor)
		}
		return KindRef, nil
	case '[':
		if len(descriptor) < 2 {
			return 0, fmt.Errorf("malformed field descriptor %q", descriptor)
		}
		return KindRef, nil
	}
	return 0, fmt.Errorf("unsupported field descriptor %q", descriptor)
}

// checkInit validates the initial constant of a static field of kind k.
func (fd FieldDef) checkInit(k Kind) error {
	switch v := fd.Init.(type) {
	case nil:
		return nil
	case IntValue:
		if k == KindInt {
			return nil
		}
	case RefValue:
		if k == KindRef && v.IsNull() {
			return nil
		}
	}
	return fmt.Errorf("field %s (%s) cannot start as %s", fd.Name, fd.Descriptor, fd.Init)
}

type Field struct {
	Name       string
	Descriptor string
	Kind       Kind
	Static     bool
	class      *Class
}

// Class returns the class that declares f.
func (f *Field) Class() *Class {
	return f.class
}

func (f *Field) check(v Value) error {
	if v == nil {
		return Faultf("nil value for field %s.%s", f.class.name, f.Name)
	}
	if v.Kind() != f.Kind {
		return Faultf("field %s.%s holds %s, got %s", f.class.name, f.Name, f.Kind, v.Kind())
	}
	return nil
}

// StaticSlot is the storage of one static field. It belongs to the declaring
// class and is guarded by that class's lock.
type StaticSlot struct {
	Field *Field
	value Value
}

func (s *StaticSlot) Load() Value {
	c := s.Field.class
	c.mu.RLock()
	defer c.mu.RUnlock()
	return s.value
}

func (s *StaticSlot) Store(v Value) error {
	if err := s.Field.check(v); err != nil {
		return err
	}
	c := s.Field.class
	c.mu.Lock()
	defer c.mu.Unlock()
	s.value = v
	return nil
}

// Class is a loaded class descriptor. The superclass pointer is a link into
// the same registry, never an owning reference.
type Class struct {
	name       string
	superClass *Class
	fields     []*Field
	statics    map[string]*StaticSlot
	registry   *Registry

	mu sync.RWMutex
}

func (c *Class) Name() string {
	return c.name
}

func (c *Class) SuperClass() *Class {
	return c.superClass
}

func (c *Class) String() string {
	return c.name
}

// Fields returns the instance fields declared by c itself.
func (c *Class) Fields() []*Field {
	return c.fields
}

// StaticNames returns the static fields declared by c itself, sorted.
func (c *Class) StaticNames() []string {
	out := make([]string, 0, len(c.statics))
	for k := range c.statics {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Statics returns a copy of the static slot values declared by c.
func (c *Class) Statics() map[string]Value {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Value, len(c.statics))
	for k, s := range c.statics {
		out[k] = s.value
	}
	return out
}

func (c *Class) declaredField(name string) *Field {
	for _, f := range c.fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// IsSubClassOf reports whether other is a proper ancestor of c.
func (c *Class) IsSubClassOf(other *Class) bool {
	for k := c.superClass; k != nil; k = k.superClass {
		if k == other {
			return true
		}
	}
	return false
}

// IsAssignableFrom reports whether a reference to an instance of other may be
// used where c is expected.
func (c *Class) IsAssignableFrom(other *Class) bool {
	return other == c || other.IsSubClassOf(c)
}
