// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package classfile

import "sync"

// Registry is the name-interned Klass table of spec.md §2/§5: a single
// writer at a time mutates it (guarded by mu), while readers may consult
// already-LOADED classes freely. It drives the LOADING -> circularity
// check required by spec.md §4.B.
type Registry struct {
	mu      sync.Mutex
	classes map[string]*Klass
	opener  Opener
	tracer  *Tracer
}

// NewRegistry creates an empty registry. opener resolves classpath
// entries to byte streams (grounded on file.go's New(), classpath.go's
// MmapOpener); tracer may be nil, in which case tracing is a no-op.
func NewRegistry(opener Opener, tracer *Tracer) *Registry {
	return &Registry{classes: make(map[string]*Klass), opener: opener, tracer: tracer}
}

// DefinePrimitives seeds the registry with the well-known classes that
// are synthesised rather than loaded from a file (spec.md §3: "arrays
// are synthesised, never loaded from a file" — the same holds for
// primitives and Object, which every class file implicitly references).
func (reg *Registry) DefinePrimitives() {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	prims := []struct {
		name string
		id   ClassID
	}{
		{"void", CIDVoid}, {"boolean", CIDBoolean}, {"byte", CIDByte},
		{"char", CIDChar}, {"short", CIDShort}, {"int", CIDInt},
		{"long", CIDLong}, {"float", CIDFloat}, {"double", CIDDouble},
		{"com/sun/squawk/Address", CIDAddress}, {"com/sun/squawk/UWord", CIDUWord},
		{"com/sun/squawk/Offset", CIDOffset},
	}
	for _, p := range prims {
		reg.classes[p.name] = &Klass{Name: p.name, State: StateLoaded, ClassID: p.id}
	}
	obj := &Klass{Name: "java/lang/Object", State: StateLoaded, ClassID: CIDObject}
	reg.classes["java/lang/Object"] = obj
}

// Lookup returns a previously-defined class, or nil if it has never been
// requested. It does not trigger loading.
func (reg *Registry) Lookup(name string) *Klass {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.classes[name]
}

// Resolve returns the named class, loading it through loader if it has
// not been seen before. A class currently in LOADING state that is
// re-entered here is a circularity (spec.md §4.B).
func (reg *Registry) Resolve(name string, loader *ClassFileLoader) (*Klass, error) {
	reg.mu.Lock()
	k, ok := reg.classes[name]
	if ok {
		if k.State == StateLoading {
			reg.mu.Unlock()
			return nil, newError(ErrClassCircularity, "class %s referenced while still LOADING", name).WithClass(name)
		}
		reg.mu.Unlock()
		return k, nil
	}
	k = &Klass{Name: name, State: StateDefined}
	reg.classes[name] = k
	reg.mu.Unlock()

	if isArrayDescriptor(name) {
		return reg.synthesizeArray(name, loader)
	}

	data, err := reg.open(name)
	if err != nil {
		reg.pin(k)
		return nil, wrapError(ErrNoClassDef, err, "no definition for class %s", name).WithClass(name)
	}
	if err := loader.Load(k, data); err != nil {
		reg.pin(k)
		return nil, err
	}
	return k, nil
}

// pin marks a class permanently ERROR, per spec.md §7: "on any error the
// class transitions to ERROR permanently".
func (reg *Registry) pin(k *Klass) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	k.State = StateError
}

func (reg *Registry) open(name string) ([]byte, error) {
	if reg.opener == nil {
		return nil, newError(ErrNoClassDef, "registry has no classpath opener configured")
	}
	rc, err := reg.opener.Open(name + ".class")
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return readAll(rc)
}

// synthesizeArray builds an array Klass without reading a file, per
// spec.md §3's invariant that arrays are never loaded from a class file.
func (reg *Registry) synthesizeArray(descriptor string, loader *ClassFileLoader) (*Klass, error) {
	elemFt, _, err := ParseFieldDescriptor(descriptor[1:])
	if err != nil {
		return nil, err
	}
	var component *Klass
	if elemFt.category() == CategoryReference && elemFt.ArrayDims == 0 {
		component, err = reg.Resolve(elemFt.ClassName, loader)
		if err != nil {
			return nil, err
		}
	}
	obj, err := reg.Resolve("java/lang/Object", loader)
	if err != nil {
		return nil, err
	}
	reg.mu.Lock()
	k := reg.classes[descriptor]
	k.Super = obj
	k.IsArray = true
	k.ComponentType = component
	k.Modifiers = AccPublic | AccFinal
	k.State = StateLoaded
	reg.mu.Unlock()
	return k, nil
}

func isArrayDescriptor(name string) bool {
	return len(name) > 0 && name[0] == '['
}
