package vm

import "fmt"

// Kind is the category of a Value as far as the verifier is concerned.
type Kind int

const (
	KindInt Kind = iota
	KindRef
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindRef:
		return "reference"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

type Value interface {
	isValue()
	Kind() Kind
	String() string
}

type IntValue int32

func (IntValue) isValue()   {}
func (IntValue) Kind() Kind { return KindInt }
func (i IntValue) String() string {
	return fmt.Sprintf("%d", int32(i))
}

// RefValue points at a heap object. A nil Obj is the null reference.
type RefValue struct {
	Obj *Object
}

var Null = RefValue{}

func Ref(o *Object) RefValue {
	return RefValue{Obj: o}
}

func (RefValue) isValue()   {}
func (RefValue) Kind() Kind { return KindRef }

func (r RefValue) IsNull() bool {
	return r.Obj == nil
}

func (r RefValue) String() string {
	if r.Obj == nil {
		return "null"
	}
	return r.Obj.String()
}

// ClassValue is the reference pushed by ldc of a class constant.
type ClassValue struct {
	Class *Class
}

func (ClassValue) isValue()   {}
func (ClassValue) Kind() Kind { return KindRef }
func (c ClassValue) String() string {
	return fmt.Sprintf("class %s", c.Class.Name())
}

// Zero returns the default value for a slot of the given kind.
func Zero(k Kind) Value {
	if k == KindRef {
		return Null
	}
	return IntValue(0)
}

// SameRef reports whether a and b are both references to the same thing.
func SameRef(a, b Value) bool {
	switch x := a.(type) {
	case RefValue:
		y, ok := b.(RefValue)
		return ok && x.Obj == y.Obj
	case ClassValue:
		y, ok := b.(ClassValue)
		return ok && x.Class == y.Class
	}
	return false
}
