// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package classfile

import (
	"reflect"
	"testing"
)

func TestMinfoRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		body *MethodBody
	}{
		{
			"small form, empty tables",
			&MethodBody{MaxStack: 2, ParameterCount: 1, LocalsCount: 0, Bytecode: []byte{byte(opALoad0), byte(opInvokeSpecial), 0, 0, byte(opReturn)}},
		},
		{
			"large form, populated tables",
			&MethodBody{
				MaxStack: 3, ParameterCount: 2, LocalsCount: 1,
				Bytecode:        []byte{byte(opIConst0), byte(opIReturn)},
				ExceptionTable:  []ExceptionTableEntry{{StartPC: 0, EndPC: 2, HandlerPC: 2, CatchType: 0}},
				TypeTable:       []TypeTableEntry{{ClassID: CIDInt, SlotIndex: 0}, {ClassID: CIDObject, SlotIndex: 1}},
				RelocationTable: []int{1},
				Oopmap:          []bool{false, true, false},
			},
		},
		{
			"large form (locals over the small-form bound)",
			&MethodBody{MaxStack: 300, ParameterCount: 0, LocalsCount: 300, Bytecode: []byte{byte(opReturn)}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, bytecodeStart := encodeMinfo(tt.body)
			got, err := decodeMinfo(enc, bytecodeStart)
			if err != nil {
				t.Fatalf("decodeMinfo() failed: %v", err)
			}
			if got.MaxStack() != tt.body.MaxStack || got.ParameterCount() != tt.body.ParameterCount || got.LocalsCount() != tt.body.LocalsCount {
				t.Fatalf("decodeMinfo(): MaxStack/ParameterCount/LocalsCount = %d/%d/%d, want %d/%d/%d",
					got.MaxStack(), got.ParameterCount(), got.LocalsCount(), tt.body.MaxStack, tt.body.ParameterCount, tt.body.LocalsCount)
			}
			if !reflect.DeepEqual(got.Bytecode(), tt.body.Bytecode) {
				t.Errorf("decodeMinfo(): Bytecode = %v, want %v", got.Bytecode(), tt.body.Bytecode)
			}
			if got.ExceptionTableLen() != len(tt.body.ExceptionTable) {
				t.Fatalf("decodeMinfo(): ExceptionTableLen() = %d, want %d", got.ExceptionTableLen(), len(tt.body.ExceptionTable))
			}
			for i, want := range tt.body.ExceptionTable {
				if got := got.ExceptionTableEntry(i); got != want {
					t.Errorf("decodeMinfo(): ExceptionTableEntry(%d) = %+v, want %+v", i, got, want)
				}
			}
			if got.TypeTableLen() != len(tt.body.TypeTable) {
				t.Fatalf("decodeMinfo(): TypeTableLen() = %d, want %d", got.TypeTableLen(), len(tt.body.TypeTable))
			}
			for i, want := range tt.body.TypeTable {
				if got := got.TypeTableEntry(i); got != want {
					t.Errorf("decodeMinfo(): TypeTableEntry(%d) = %+v, want %+v", i, got, want)
				}
			}
			if got.RelocationTableLen() != len(tt.body.RelocationTable) {
				t.Fatalf("decodeMinfo(): RelocationTableLen() = %d, want %d", got.RelocationTableLen(), len(tt.body.RelocationTable))
			}
			for i, want := range tt.body.RelocationTable {
				if got := got.RelocationEntry(i); got != want {
					t.Errorf("decodeMinfo(): RelocationEntry(%d) = %d, want %d", i, got, want)
				}
			}
			for i, want := range tt.body.Oopmap {
				if got.OopmapBit(i) != want {
					t.Errorf("decodeMinfo(): OopmapBit(%d) = %v, want %v", i, got.OopmapBit(i), want)
				}
			}
		})
	}
}

// TestMinfoSmallFormByteLayout verifies the small-form header's exact
// bit-packing against scenarios S1 and S2.
func TestMinfoSmallFormByteLayout(t *testing.T) {
	tests := []struct {
		name string
		body *MethodBody
		want []byte // header bytes immediately preceding the bytecode
	}{
		{
			"S1: empty static method",
			&MethodBody{MaxStack: 0, ParameterCount: 0, LocalsCount: 0, Bytecode: []byte{byte(opReturn)}},
			[]byte{0x00, 0x00},
		},
		{
			"S2: aload_0;areturn, one implicit parameter",
			&MethodBody{MaxStack: 2, ParameterCount: 1, LocalsCount: 0, Bytecode: []byte{byte(opALoad0), byte(opAReturn)}},
			[]byte{0x02, 0x04},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if chooseMinfoForm(tt.body) != minfoSmall {
				t.Fatalf("chooseMinfoForm() = large, want small")
			}
			enc, bytecodeStart := encodeMinfo(tt.body)
			header := enc[bytecodeStart-2 : bytecodeStart]
			if !reflect.DeepEqual(header, tt.want) {
				t.Errorf("small-form header = %#v, want %#v", header, tt.want)
			}
		})
	}
}

// TestChooseMinfoForm exercises spec.md §8 Testable Property 2's exact
// small-vs-large boundary: all of locals, parameters and max_stack must
// fit in 5 bits AND every trailing table must be empty for the small
// form to apply.
func TestChooseMinfoForm(t *testing.T) {
	tests := []struct {
		name string
		body *MethodBody
		want minfoForm
	}{
		{"tiny method", &MethodBody{MaxStack: 1, ParameterCount: 1, LocalsCount: 0, Bytecode: []byte{byte(opReturn)}}, minfoSmall},
		{"locals at the small-form bound", &MethodBody{MaxStack: 1, LocalsCount: 31, Bytecode: []byte{byte(opReturn)}}, minfoSmall},
		{"locals over the small-form bound", &MethodBody{MaxStack: 1, LocalsCount: 32, Bytecode: []byte{byte(opReturn)}}, minfoLarge},
		{"parameters over the small-form bound", &MethodBody{MaxStack: 1, ParameterCount: 32, Bytecode: []byte{byte(opReturn)}}, minfoLarge},
		{"max_stack over the small-form bound", &MethodBody{MaxStack: 32, Bytecode: []byte{byte(opReturn)}}, minfoLarge},
		{
			"small counters but a populated exception table forces large form",
			&MethodBody{MaxStack: 1, ExceptionTable: []ExceptionTableEntry{{StartPC: 0, EndPC: 1, HandlerPC: 1}}, Bytecode: []byte{byte(opReturn)}},
			minfoLarge,
		},
		{
			"small counters but a populated type table forces large form",
			&MethodBody{MaxStack: 1, TypeTable: []TypeTableEntry{{ClassID: CIDLong, SlotIndex: 0}}, Bytecode: []byte{byte(opReturn)}},
			minfoLarge,
		},
		{
			"small counters but a populated relocation table forces large form",
			&MethodBody{MaxStack: 1, RelocationTable: []int{0}, Bytecode: []byte{byte(opReturn)}},
			minfoLarge,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := chooseMinfoForm(tt.body); got != tt.want {
				t.Errorf("chooseMinfoForm() = %v, want %v", got, tt.want)
			}
		})
	}
}
