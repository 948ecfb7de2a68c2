package vm

import (
	"fmt"

	"github.com/google/uuid"
)

// Object is a heap-allocated class instance. Every instance field of the
// class and its ancestors gets a slot at allocation. Slots are keyed by the
// declaring field, so a field hidden by a subclass keeps its own storage.
type Object struct {
	ID     uuid.UUID
	class  *Class
	fields map[*Field]Value
}

// FieldValue pairs an instance field with the value an object holds for it.
type FieldValue struct {
	Field *Field
	Value Value
}

func newObject(c *Class) *Object {
	o := &Object{
		ID:     uuid.New(),
		class:  c,
		fields: make(map[*Field]Value),
	}
	for k := c; k != nil; k = k.superClass {
		for _, f := range k.fields {
			o.fields[f] = Zero(f.Kind)
		}
	}
	return o
}

func (o *Object) Class() *Class {
	return o.class
}

func (o *Object) IsInstanceOf(c *Class) bool {
	return c.IsAssignableFrom(o.class)
}

func (o *Object) GetField(f *Field) (Value, error) {
	v, ok := o.fields[f]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no field %s.%s", ErrNoSuchField, o.class.name, f.class.name, f.Name)
	}
	return v, nil
}

func (o *Object) SetField(f *Field, v Value) error {
	if _, ok := o.fields[f]; !ok {
		return fmt.Errorf("%w: %s has no field %s.%s", ErrNoSuchField, o.class.name, f.class.name, f.Name)
	}
	if err := f.check(v); err != nil {
		return err
	}
	o.fields[f] = v
	return nil
}

// Fields lists every field value, root class first and in declaration order
// within a class.
func (o *Object) Fields() []FieldValue {
	var chain []*Class
	for k := o.class; k != nil; k = k.superClass {
		chain = append(chain, k)
	}
	out := make([]FieldValue, 0, len(o.fields))
	for i := len(chain) - 1; i >= 0; i-- {
		for _, f := range chain[i].fields {
			out = append(out, FieldValue{Field: f, Value: o.fields[f]})
		}
	}
	return out
}

// Field returns the value of the most derived field called name.
func (o *Object) Field(name string) (Value, bool) {
	for k := o.class; k != nil; k = k.superClass {
		if f := k.declaredField(name); f != nil {
			return o.fields[f], true
		}
	}
	return nil, false
}

func (o *Object) String() string {
	return fmt.Sprintf("%s@%s", o.class.name, o.ID.String()[:8])
}
