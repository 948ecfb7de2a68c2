package cas

import (
	"io"
	"sort"

	"github.com/shamaton/msgpack/v2"

	"github.com/timewinder-dev/jvmcore/interp"
	"github.com/timewinder-dev/jvmcore/vm"
)

// ValueRecord is the serialized form of a vm.Value. Objects are referred to
// by ID and listed separately in the enclosing record.
type ValueRecord struct {
	Kind   string // int, null, object, class or unset
	Int    int32
	Object string
	Class  string
}

// FieldRecord is one instance field of an object. Class is the declaring
// class, which tells apart a field from the one it hides.
type FieldRecord struct {
	Class string
	Name  string
	Value ValueRecord
}

type ObjectRecord struct {
	ID     string
	Class  string
	Fields []FieldRecord
}

// FrameRecord is a snapshot of a frame right after one instruction ran,
// including every object reachable from its stack and locals.
type FrameRecord struct {
	Method  string
	PC      int
	Op      string
	Stack   []ValueRecord
	Locals  []ValueRecord
	Objects []ObjectRecord
}

func (r *FrameRecord) TypeTag() string { return "FrameRecord" }

func (r *FrameRecord) Serialize(w io.Writer) error {
	return msgpack.MarshalWrite(w, r)
}

func (r *FrameRecord) Deserialize(rd io.Reader) error {
	return msgpack.UnmarshalRead(rd, r)
}

type StaticRecord struct {
	Class string
	Field string
	Value ValueRecord
}

// StaticsRecord is a snapshot of every static slot in a registry.
type StaticsRecord struct {
	Slots   []StaticRecord
	Objects []ObjectRecord
}

func (r *StaticsRecord) TypeTag() string { return "StaticsRecord" }

func (r *StaticsRecord) Serialize(w io.Writer) error {
	return msgpack.MarshalWrite(w, r)
}

func (r *StaticsRecord) Deserialize(rd io.Reader) error {
	return msgpack.UnmarshalRead(rd, r)
}

// objectSet collects the objects reachable from recorded values.
type objectSet struct {
	seen map[*vm.Object]bool
	list []*vm.Object
}

func (s *objectSet) record(v vm.Value) ValueRecord {
	switch x := v.(type) {
	case nil:
		return ValueRecord{Kind: "unset"}
	case vm.IntValue:
		return ValueRecord{Kind: "int", Int: int32(x)}
	case vm.ClassValue:
		return ValueRecord{Kind: "class", Class: x.Class.Name()}
	case vm.RefValue:
		if x.IsNull() {
			return ValueRecord{Kind: "null"}
		}
		s.visit(x.Obj)
		return ValueRecord{Kind: "object", Object: x.Obj.ID.String(), Class: x.Obj.Class().Name()}
	}
	return ValueRecord{Kind: "unset"}
}

func (s *objectSet) visit(o *vm.Object) {
	if s.seen == nil {
		s.seen = make(map[*vm.Object]bool)
	}
	if s.seen[o] {
		return
	}
	s.seen[o] = true
	s.list = append(s.list, o)
}

// records drains the set, following references held in object fields.
func (s *objectSet) records() []ObjectRecord {
	var out []ObjectRecord
	for i := 0; i < len(s.list); i++ {
		o := s.list[i]
		rec := ObjectRecord{ID: o.ID.String(), Class: o.Class().Name()}
		for _, fv := range o.Fields() {
			rec.Fields = append(rec.Fields, FieldRecord{
				Class: fv.Field.Class().Name(),
				Name:  fv.Field.Name,
				Value: s.record(fv.Value),
			})
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

// RecordFrame snapshots f after the instruction op at pc has run.
func RecordFrame(pc int, op vm.Op, f *interp.Frame) *FrameRecord {
	var objs objectSet
	rec := &FrameRecord{
		PC: pc,
		Op: op.String(),
	}
	if f.Method != nil {
		rec.Method = f.Method.Name
	}
	for _, v := range f.Stack {
		rec.Stack = append(rec.Stack, objs.record(v))
	}
	for _, v := range f.Locals {
		rec.Locals = append(rec.Locals, objs.record(v))
	}
	rec.Objects = objs.records()
	return rec
}

// RecordStatics snapshots the static slots of every loaded class.
func RecordStatics(reg *vm.Registry) *StaticsRecord {
	var objs objectSet
	rec := &StaticsRecord{}
	for _, c := range reg.Loaded() {
		values := c.Statics()
		for _, name := range c.StaticNames() {
			rec.Slots = append(rec.Slots, StaticRecord{
				Class: c.Name(),
				Field: name,
				Value: objs.record(values[name]),
			})
		}
	}
	rec.Objects = objs.records()
	return rec
}
