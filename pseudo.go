// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package classfile

import "sort"

// PseudoOpcodeKind tags one of the five marker kinds the emitter
// interleaves with real instructions (spec.md §3, "PseudoOpcode"):
// exception-range start/end, a branch target, a catch handler entry,
// and a bytecode-offset/line marker.
type PseudoOpcodeKind uint8

const (
	PseudoTry PseudoOpcodeKind = iota
	PseudoTryEnd
	PseudoTarget
	PseudoCatch
	PseudoPosition
)

// PseudoOpcode is a marker emitted at a specific bytecode address,
// alongside the translated instruction stream, carrying exception-table
// and line/branch-target bookkeeping that the Minfo encoder (minfo.go)
// later packs into the method's trailing tables.
type PseudoOpcode struct {
	Kind PseudoOpcodeKind
	PC   int

	// OriginalIndex is this marker's position in the exception table (for
	// PseudoTry/PseudoTryEnd) or the original emission order (used to
	// break remaining ties); it is never reordered by sortPseudoOpcodes
	// itself, only read by its comparator.
	OriginalIndex int

	CatchType ClassID // PseudoCatch only
	Line      int     // PseudoPosition only
}

// sortPseudoOpcodes orders same-PC pseudo-opcodes per spec.md §3's fixed
// precedence: TRYEND, TRY, TARGET, CATCH, POSITION, with ties among
// several TRYs at one PC broken by descending original index and ties
// among several TRYENDs broken by ascending original index. Real
// instructions are untouched: only entries sharing the same PC are
// reordered, and the sort is stable so unrelated orderings survive.
func sortPseudoOpcodes(ops []*PseudoOpcode) {
	rank := func(k PseudoOpcodeKind) int {
		switch k {
		case PseudoTryEnd:
			return 0
		case PseudoTry:
			return 1
		case PseudoTarget:
			return 2
		case PseudoCatch:
			return 3
		case PseudoPosition:
			return 4
		default:
			return 5
		}
	}
	sort.SliceStable(ops, func(i, j int) bool {
		a, b := ops[i], ops[j]
		if a.PC != b.PC {
			return a.PC < b.PC
		}
		if rank(a.Kind) != rank(b.Kind) {
			return rank(a.Kind) < rank(b.Kind)
		}
		switch a.Kind {
		case PseudoTry:
			return a.OriginalIndex > b.OriginalIndex
		case PseudoTryEnd:
			return a.OriginalIndex < b.OriginalIndex
		default:
			return false
		}
	})
}
