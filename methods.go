// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package classfile

// verifyMethodModifiers enforces spec.md §4.B's method modifier rules:
// `<init>`-named methods must not be STATIC/FINAL/SYNCHRONIZED/NATIVE/
// ABSTRACT; `<clinit>` methods retain only STATIC plus STRICT.
func verifyMethodModifiers(name string, m Modifier) error {
	switch name {
	case "<init>":
		for _, bad := range []Modifier{AccStatic, AccFinal, AccSynchronized, AccNative, AccAbstract} {
			if m.Has(bad) {
				return newError(ErrClassFormat, "<init> must not carry modifier 0x%04x", bad)
			}
		}
	case "<clinit>":
		if m&^(AccStatic|AccStrict) != 0 {
			return newError(ErrClassFormat, "<clinit> carries modifiers other than STATIC/STRICT: 0x%04x", m)
		}
	}
	return nil
}

// readMethod parses one method_info structure (spec.md §4.C step 6).
// Constructors are rewritten to static methods returning owner, marked
// AccConstructor; class initialisers keep only STATIC|STRICT and are
// marked AccClassInitializer. native/abstract methods must not carry a
// Code attribute; all others must.
func (l *ClassFileLoader) readMethod(r *Reader, owner *Klass) (*Method, error) {
	flags, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	m := Modifier(flags)

	nameIdx, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	name, err := l.pool.Utf8(nameIdx)
	if err != nil {
		return nil, err
	}
	if err := verifyMethodModifiers(name, m); err != nil {
		return nil, err
	}

	descIdx, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	desc, err := l.pool.Utf8(descIdx)
	if err != nil {
		return nil, err
	}
	sig, err := ParseMethodDescriptor(desc)
	if err != nil {
		return nil, err
	}

	method := &Method{Name: name, Descriptor: desc, Signature: sig, Owner: owner, Modifiers: m}

	switch name {
	case "<init>":
		method.Modifiers |= AccConstructor | AccStatic
		method.Signature.Return = &FieldType{Category: CategoryReference, ClassName: owner.Name}
	case "<clinit>":
		method.Modifiers = (m & (AccStatic | AccStrict)) | AccClassInitializer
	}

	attrCount, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(attrCount); i++ {
		if err := l.readMethodAttribute(r, method); err != nil {
			return nil, err
		}
	}

	mustHaveCode := !m.Has(AccNative) && !m.Has(AccAbstract)
	if mustHaveCode && method.Code == nil {
		return nil, newError(ErrClassFormat, "method %s%s has no Code attribute", name, desc).WithClass(owner.Name).WithMethod(name)
	}
	if !mustHaveCode && method.Code != nil {
		return nil, newError(ErrClassFormat, "native/abstract method %s%s must not carry a Code attribute", name, desc).WithClass(owner.Name).WithMethod(name)
	}
	return method, nil
}

func (l *ClassFileLoader) readMethodAttribute(r *Reader, m *Method) error {
	nameIdx, err := r.ReadU2()
	if err != nil {
		return err
	}
	attrName, err := l.pool.Utf8(nameIdx)
	if err != nil {
		return err
	}
	length, err := r.ReadU4()
	if err != nil {
		return err
	}
	body, err := r.Sub(int(length))
	if err != nil {
		return err
	}

	switch attrName {
	case "Code":
		cp, err := l.parseCodeAttribute(body, m)
		if err != nil {
			return err
		}
		m.Code = cp
	default:
		// Unrecognized/unsupported method attributes (Exceptions,
		// Signature, annotations, ...) are skipped: not part of
		// spec.md's scope.
	}
	return body.AssertEOF()
}

// checkDuplicateMethods rejects two methods sharing name, parameter
// types, and return type (spec.md §4.C step 6).
func checkDuplicateMethods(methods []*Method) error {
	seen := make(map[string]bool, len(methods))
	for _, m := range methods {
		key := m.Name + m.Descriptor
		if seen[key] {
			return newError(ErrClassFormat, "duplicate method %s%s", m.Name, m.Descriptor).WithClass(m.Owner.Name)
		}
		seen[key] = true
	}
	return nil
}

// synthesizeDefaultConstructor builds a trivial `<init>` calling the
// superclass's no-arg constructor, when none is present and the class is
// neither abstract nor an interface (spec.md §4.C step 6).
func synthesizeDefaultConstructor(owner *Klass) *Method {
	return &Method{
		Name:       "<init>",
		Descriptor: "()V",
		Signature:  &MethodDescriptor{Return: &FieldType{Category: CategoryReference, ClassName: owner.Name}},
		Owner:      owner,
		Modifiers:  AccPublic | AccStatic | AccConstructor,
		Code: &MethodBody{
			MaxStack:       1,
			ParameterCount: 1,
			LocalsCount:    0,
			Bytecode:       []byte{byte(opALoad0), byte(opInvokeSpecial), 0, 0, byte(opReturn)},
		},
	}
}

func hasConstructor(methods []*Method) bool {
	for _, m := range methods {
		if m.Name == "<init>" {
			return true
		}
	}
	return false
}
