// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package classfile

import "testing"

func TestSortPseudoOpcodes(t *testing.T) {
	ops := []*PseudoOpcode{
		{Kind: PseudoPosition, PC: 10},
		{Kind: PseudoCatch, PC: 10},
		{Kind: PseudoTarget, PC: 10},
		{Kind: PseudoTry, PC: 10, OriginalIndex: 0},
		{Kind: PseudoTry, PC: 10, OriginalIndex: 1},
		{Kind: PseudoTryEnd, PC: 10, OriginalIndex: 1},
		{Kind: PseudoTryEnd, PC: 10, OriginalIndex: 0},
	}
	sortPseudoOpcodes(ops)

	wantKinds := []PseudoOpcodeKind{PseudoTryEnd, PseudoTryEnd, PseudoTry, PseudoTry, PseudoTarget, PseudoCatch, PseudoPosition}
	for i, k := range wantKinds {
		if ops[i].Kind != k {
			t.Fatalf("ops[%d].Kind = %v, want %v", i, ops[i].Kind, k)
		}
	}
	// TRYEND entries: ascending original index.
	if ops[0].OriginalIndex != 0 || ops[1].OriginalIndex != 1 {
		t.Errorf("TRYEND order = [%d,%d], want [0,1]", ops[0].OriginalIndex, ops[1].OriginalIndex)
	}
	// TRY entries: descending original index.
	if ops[2].OriginalIndex != 1 || ops[3].OriginalIndex != 0 {
		t.Errorf("TRY order = [%d,%d], want [1,0]", ops[2].OriginalIndex, ops[3].OriginalIndex)
	}
}

func TestSortPseudoOpcodesAcrossPCs(t *testing.T) {
	ops := []*PseudoOpcode{
		{Kind: PseudoPosition, PC: 20},
		{Kind: PseudoTry, PC: 5},
	}
	sortPseudoOpcodes(ops)
	if ops[0].PC != 5 || ops[1].PC != 20 {
		t.Errorf("sortPseudoOpcodes did not order by PC first: got PCs [%d,%d]", ops[0].PC, ops[1].PC)
	}
}
