// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package classfile

import "strconv"

// SymbolicValueKind tags a SymbolicValue's variant.
type SymbolicValueKind uint8

// The re-architected tagged variant of spec.md §9: the source's deep
// SymbolicValueDescriptor class hierarchy (register/literal/local/
// label/fixup subclasses) collapses to one tagged struct whose
// operations are match statements, not virtual dispatch.
const (
	SymRegister SymbolicValueKind = iota
	SymLiteral32
	SymLiteral64
	SymLocal
	SymLabel
	SymFixup
	SymOther
)

// SymbolicValue is the IR-level operand/result value produced by the
// CodeParser's emitter.
type SymbolicValue struct {
	Kind SymbolicValueKind

	RegisterNum int    // SymRegister
	Literal32   uint32 // SymLiteral32
	Literal64   uint64 // SymLiteral64
	Local       *Local // SymLocal
	Label       int    // SymLabel: bytecode address
	FixupName   string // SymFixup
	Category    TypeCategory
}

// Type returns the value's type category.
func (v *SymbolicValue) Type() TypeCategory { return v.Category }

// Size returns the number of stack/local slots the value occupies.
func (v *SymbolicValue) Size() int {
	if v.Category.IsWide() {
		return 2
	}
	return 1
}

// Print renders v for tracing, matching the teacher's terse String()
// helpers (e.g. ImageDirectoryEntry.String() in file.go).
func (v *SymbolicValue) Print() string {
	switch v.Kind {
	case SymRegister:
		return "r" + strconv.Itoa(v.RegisterNum)
	case SymLiteral32:
		return "#" + strconv.Itoa(int(v.Literal32))
	case SymLiteral64:
		return "#" + strconv.FormatUint(v.Literal64, 10)
	case SymLocal:
		if v.Local != nil {
			return v.Local.String()
		}
		return "local?"
	case SymLabel:
		return "L" + strconv.Itoa(v.Label)
	case SymFixup:
		return "fixup:" + v.FixupName
	default:
		return "?"
	}
}
