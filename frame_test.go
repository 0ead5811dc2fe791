// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package classfile

import "testing"

func catOf(vs []*SymbolicValue) []TypeCategory {
	out := make([]TypeCategory, len(vs))
	for i, v := range vs {
		out[i] = v.Category
	}
	return out
}

func sameCats(a, b []TypeCategory) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestApplyDupForms(t *testing.T) {
	tests := []struct {
		name  string
		push  []TypeCategory // pushed bottom-to-top before applying the form
		form  dupForm
		want  []TypeCategory // resulting stack, bottom-to-top
		isErr bool
	}{
		{"dup", []TypeCategory{CategoryInt}, dupPlain, []TypeCategory{CategoryInt, CategoryInt}, false},
		{"dup_x1", []TypeCategory{CategoryInt, CategoryReference}, dupX1Form, []TypeCategory{CategoryReference, CategoryInt, CategoryReference}, false},
		{"dup2 (two category-1 values)", []TypeCategory{CategoryInt, CategoryInt}, dup2Form, []TypeCategory{CategoryInt, CategoryInt, CategoryInt, CategoryInt}, false},
		{"dup2 (one category-2 value)", []TypeCategory{CategoryLong}, dup2Form, []TypeCategory{CategoryLong, CategoryLong}, false},
		{"swap", []TypeCategory{CategoryInt, CategoryReference}, swapForm, []TypeCategory{CategoryReference, CategoryInt}, false},
		{"swap rejects a wide operand", []TypeCategory{CategoryLong, CategoryInt}, swapForm, nil, true},
		{"pop", []TypeCategory{CategoryInt, CategoryInt}, popForm, []TypeCategory{CategoryInt}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &Frame{}
			for _, c := range tt.push {
				f.push(&SymbolicValue{Category: c})
			}
			err := f.applyDup(tt.form)
			if tt.isErr {
				if err == nil {
					t.Fatal("applyDup(): expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("applyDup() failed: %v", err)
			}
			if got := catOf(f.stack); !sameCats(got, tt.want) {
				t.Errorf("applyDup(): stack = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPopCategoryRejectsSquawkPrimitiveAliasing(t *testing.T) {
	f := &Frame{}
	f.push(&SymbolicValue{Category: CategoryAddress})
	if _, err := f.popCategory(CategoryReference); err == nil {
		t.Fatal("popCategory(REFERENCE) on an Address value: expected error, got none")
	}
}

func TestPopCategoryUnderflow(t *testing.T) {
	f := &Frame{}
	if _, err := f.popCategory(CategoryInt); err == nil {
		t.Fatal("popCategory on an empty stack: expected error, got none")
	}
}

func TestLocalDedup(t *testing.T) {
	f := &Frame{allocated: make(map[localKey]*Local)}
	a := f.localFor(CategoryInt, 3)
	b := f.localFor(CategoryInt, 3)
	if a != b {
		t.Error("localFor(INT, 3) called twice returned two different Local handles")
	}
	c := f.spillLocal(CategoryInt, nil)
	d := f.spillLocal(CategoryInt, nil)
	if c.JavacIndex == d.JavacIndex {
		t.Error("two spillLocal calls returned the same JavacIndex")
	}
	if !c.IsSpill() || !d.IsSpill() {
		t.Error("spillLocal()-allocated Local does not report IsSpill()")
	}
}

func TestTargetMerge(t *testing.T) {
	target := newDerivedTarget(10, []TypeCategory{CategoryInt, CategoryVoid}, []TypeCategory{CategoryReference})

	if err := target.merge([]TypeCategory{CategoryInt, CategoryVoid}, []TypeCategory{CategoryReference}); err != nil {
		t.Fatalf("merge() with an identical shape failed: %v", err)
	}
	if err := target.merge([]TypeCategory{CategoryInt}, []TypeCategory{CategoryInt}); err == nil {
		t.Fatal("merge() with a mismatched stack category: expected error, got none")
	}
	if err := target.merge([]TypeCategory{CategoryInt, CategoryVoid}, []TypeCategory{CategoryReference, CategoryInt}); err == nil {
		t.Fatal("merge() with a mismatched stack depth: expected error, got none")
	}
}
