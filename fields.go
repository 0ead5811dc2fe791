// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package classfile

import "sort"

// verifyFieldModifiers enforces spec.md §4.B's field modifier rules: a
// field may carry at most one of PRIVATE/PROTECTED/PUBLIC.
func verifyFieldModifiers(m Modifier) error {
	count := 0
	for _, b := range []Modifier{AccPublic, AccPrivate, AccProtected} {
		if m.Has(b) {
			count++
		}
	}
	if count > 1 {
		return newError(ErrClassFormat, "field modifiers 0x%04x: more than one of PUBLIC/PRIVATE/PROTECTED set", m)
	}
	return nil
}

// readField parses one field_info structure (spec.md §4.C step 5).
func (l *ClassFileLoader) readField(r *Reader, owner *Klass) (*Field, error) {
	flags, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	m := Modifier(flags)
	if err := verifyFieldModifiers(m); err != nil {
		return nil, err
	}

	nameIdx, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	name, err := l.pool.Utf8(nameIdx)
	if err != nil {
		return nil, err
	}
	if !IsValidMemberName(name) {
		return nil, newError(ErrClassFormat, "field name %q is not a valid member name", name).WithClass(owner.Name)
	}

	descIdx, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	desc, err := l.pool.Utf8(descIdx)
	if err != nil {
		return nil, err
	}
	ft, consumed, err := ParseFieldDescriptor(desc)
	if err != nil {
		return nil, err
	}
	if consumed != len(desc) {
		return nil, newError(ErrClassFormat, "field %q: trailing bytes in descriptor %q", name, desc)
	}
	if ft.category() == CategoryVoid {
		return nil, newError(ErrClassFormat, "field %q: void descriptor", name)
	}

	f := &Field{Name: name, Descriptor: desc, Type: ft, Modifiers: m, Owner: owner}

	attrCount, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(attrCount); i++ {
		if err := l.readFieldAttribute(r, f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (l *ClassFileLoader) readFieldAttribute(r *Reader, f *Field) error {
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
	case "ConstantValue":
		idx, err := body.ReadU2()
		if err != nil {
			return err
		}
		v, err := l.constantValue(idx, f.Type)
		if err != nil {
			return err
		}
		f.ConstantValue = v
		if f.Modifiers.Has(AccStatic) && f.Modifiers.Has(AccFinal) {
			f.Modifiers |= AccConstant
		}
	default:
		// Unrecognized field attributes are skipped, not fatal — mirrors
		// the teacher's per-directory recover-and-continue idiom in
		// file.go's ParseDataDirectories, generalized to per-attribute.
	}
	return body.AssertEOF()
}

func (l *ClassFileLoader) constantValue(idx uint16, ft *FieldType) (interface{}, error) {
	switch ft.category() {
	case CategoryInt:
		return l.pool.Int(idx)
	case CategoryFloat:
		return l.pool.Float(idx)
	case CategoryLong:
		return l.pool.Long(idx)
	case CategoryDouble:
		return l.pool.Double(idx)
	case CategoryReference:
		if ft.ClassName == "java/lang/String" {
			utf8Idx, err := l.pool.StringUtf8Index(idx)
			if err != nil {
				return nil, err
			}
			return l.pool.Utf8(utf8Idx)
		}
		return nil, newError(ErrClassFormat, "ConstantValue attribute on non-primitive, non-String field type")
	default:
		return nil, newError(ErrClassFormat, "ConstantValue attribute on unsupported field type")
	}
}

// typeSize returns the packing weight used to sort instance fields by
// type size descending (spec.md §4.C step 5).
func typeSize(ft *FieldType) int {
	switch ft.category() {
	case CategoryLong, CategoryDouble:
		return 8
	case CategoryReference:
		return 4
	case CategoryFloat, CategoryInt:
		return 4
	default:
		return 4
	}
}

// sortInstanceFieldsBySize packs wider fields first, the layout
// optimisation spec.md §4.C step 5 requires.
func sortInstanceFieldsBySize(fields []*Field) {
	sort.SliceStable(fields, func(i, j int) bool {
		return typeSize(fields[i].Type) > typeSize(fields[j].Type)
	})
}

// checkDuplicateFields rejects two fields sharing both name and
// descriptor (spec.md §4.C step 5).
func checkDuplicateFields(fields []*Field) error {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		key := f.Name + " " + f.Descriptor
		if seen[key] {
			return newError(ErrClassFormat, "duplicate field %s:%s", f.Name, f.Descriptor).WithClass(f.Owner.Name)
		}
		seen[key] = true
	}
	return nil
}
