package vm

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Registry holds class definitions and the classes loaded from them. It is
// safe for concurrent use: each class is linked and has its statics zeroed
// exactly once, and static slots are guarded by their declaring class.
type Registry struct {
	mu      sync.Mutex
	defs    map[string]ClassDef
	entries map[string]*classEntry
	loaded  map[string]*Class
}

type classEntry struct {
	once  sync.Once
	class *Class
	err   error
}

func NewRegistry() *Registry {
	return &Registry{
		defs:    make(map[string]ClassDef),
		entries: make(map[string]*classEntry),
		loaded:  make(map[string]*Class),
	}
}

// Define makes a class available for loading. Names may only be defined once.
func (r *Registry) Define(def ClassDef) error {
	if def.Name == "" {
		return fmt.Errorf("class definition without a name")
	}
	if def.Super == def.Name {
		return fmt.Errorf("class %s cannot extend itself", def.Name)
	}
	for _, f := range def.Fields {
		if f.Init != nil {
			return fmt.Errorf("class %s: instance field %s cannot have an initial value", def.Name, f.Name)
		}
	}
	seen := make(map[string]bool)
	for _, group := range [][]FieldDef{def.Fields, def.Statics} {
		for _, f := range group {
			if f.Name == "" {
				return fmt.Errorf("class %s: field without a name", def.Name)
			}
			if seen[f.Name] {
				return fmt.Errorf("class %s: duplicate field %s", def.Name, f.Name)
			}
			seen[f.Name] = true
			k, err := KindOf(f.Descriptor)
			if err != nil {
				return fmt.Errorf("class %s field %s: %w", def.Name, f.Name, err)
			}
			if err := f.checkInit(k); err != nil {
				return fmt.Errorf("class %s: %w", def.Name, err)
			}
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.defs[def.Name]; ok {
		return fmt.Errorf("class %s is already defined", def.Name)
	}
	r.defs[def.Name] = def
	return nil
}

// Load returns the class with the given name, linking it and its ancestors
// on first use. Repeated loads return the same *Class.
func (r *Registry) Load(name string) (*Class, error) {
	if err := r.checkChain(name); err != nil {
		return nil, err
	}
	return r.load(name)
}

// checkChain makes sure the superclass chain of name is complete and acyclic
// before any sync.Once is entered, so a bad chain can neither deadlock nor
// poison an entry.
func (r *Registry) checkChain(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool)
	for n := name; n != ""; {
		if seen[n] {
			return Faultf("class %s has a cyclic superclass chain", name)
		}
		seen[n] = true
		def, ok := r.defs[n]
		if !ok {
			if n == name {
				return Faultf("class %s not found", name)
			}
			return Faultf("superclass %s of %s not found", n, name)
		}
		n = def.Super
	}
	return nil
}

func (r *Registry) load(name string) (*Class, error) {
	r.mu.Lock()
	def := r.defs[name]
	e, ok := r.entries[name]
	if !ok {
		e = &classEntry{}
		r.entries[name] = e
	}
	r.mu.Unlock()

	e.once.Do(func() {
		e.class, e.err = r.link(def)
		if e.err == nil {
			r.mu.Lock()
			r.loaded[name] = e.class
			r.mu.Unlock()
		}
	})
	return e.class, e.err
}

func (r *Registry) link(def ClassDef) (*Class, error) {
	c := &Class{
		name:     def.Name,
		statics:  make(map[string]*StaticSlot),
		registry: r,
	}
	if def.Super != "" {
		super, err := r.load(def.Super)
		if err != nil {
			return nil, err
		}
		c.superClass = super
	}
	for _, fd := range def.Fields {
		k, _ := KindOf(fd.Descriptor)
		c.fields = append(c.fields, &Field{
			Name:       fd.Name,
			Descriptor: fd.Descriptor,
			Kind:       k,
			class:      c,
		})
	}
	for _, fd := range def.Statics {
		k, _ := KindOf(fd.Descriptor)
		f := &Field{
			Name:       fd.Name,
			Descriptor: fd.Descriptor,
			Kind:       k,
			Static:     true,
			class:      c,
		}
		v := fd.Init
		if v == nil {
			v = Zero(k)
		}
		c.statics[fd.Name] = &StaticSlot{Field: f, value: v}
	}
	log.Debug().
		Str("class", def.Name).
		Str("super", def.Super).
		Int("fields", len(c.fields)).
		Int("statics", len(c.statics)).
		Msg("Registry: class loaded")
	return c, nil
}

// Lookup returns a class only if it has already been loaded.
func (r *Registry) Lookup(name string) (*Class, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.loaded[name]
	return c, ok
}

// Loaded returns every loaded class, sorted by name.
func (r *Registry) Loaded() []*Class {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Class, 0, len(r.loaded))
	for _, c := range r.loaded {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].name < out[j].name
	})
	return out
}

// ResolveStaticField finds the class that declares the static field name,
// starting at c and walking towards the root.
func (r *Registry) ResolveStaticField(c *Class, name string) (*Class, *StaticSlot, error) {
	if c.registry != r {
		return nil, nil, Faultf("class %s belongs to another registry", c.name)
	}
	for k := c; k != nil; k = k.superClass {
		if s, ok := k.statics[name]; ok {
			return k, s, nil
		}
	}
	return nil, nil, fmt.Errorf("%w: static %s.%s", ErrNoSuchField, c.name, name)
}

// ResolveInstanceField is ResolveStaticField for instance fields.
func (r *Registry) ResolveInstanceField(c *Class, name string) (*Class, *Field, error) {
	if c.registry != r {
		return nil, nil, Faultf("class %s belongs to another registry", c.name)
	}
	for k := c; k != nil; k = k.superClass {
		if f := k.declaredField(name); f != nil {
			return k, f, nil
		}
	}
	return nil, nil, fmt.Errorf("%w: %s.%s", ErrNoSuchField, c.name, name)
}

// NewObject allocates an instance of c with every field at its zero value.
func (r *Registry) NewObject(c *Class) (*Object, error) {
	if c == nil || c.registry != r {
		return nil, Faultf("allocation of a class not loaded by this registry")
	}
	return newObject(c), nil
}
