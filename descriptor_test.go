// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package classfile

import "testing"

func TestParseFieldDescriptor(t *testing.T) {
	tests := []struct {
		in       string
		wantCat  TypeCategory
		wantDims int
		wantErr  bool
	}{
		{"I", CategoryInt, 0, false},
		{"Z", CategoryInt, 0, false},
		{"J", CategoryLong, 0, false},
		{"D", CategoryDouble, 0, false},
		{"Ljava/lang/String;", CategoryReference, 0, false},
		{"[I", CategoryReference, 1, false},
		{"[[Ljava/lang/Object;", CategoryReference, 2, false},
		{"", 0, 0, true},
		{"L", 0, 0, true},
		{"Q", 0, 0, true},
		{"[", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			ft, _, err := ParseFieldDescriptor(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseFieldDescriptor(%q): expected error, got none", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFieldDescriptor(%q) failed: %v", tt.in, err)
			}
			if ft.category() != tt.wantCat {
				t.Errorf("ParseFieldDescriptor(%q): category = %v, want %v", tt.in, ft.category(), tt.wantCat)
			}
			if ft.ArrayDims != tt.wantDims {
				t.Errorf("ParseFieldDescriptor(%q): ArrayDims = %d, want %d", tt.in, ft.ArrayDims, tt.wantDims)
			}
		})
	}
}

func TestParseMethodDescriptor(t *testing.T) {
	tests := []struct {
		in         string
		wantParams int
		wantVoid   bool
		wantErr    bool
	}{
		{"()V", 0, true, false},
		{"(I)I", 1, false, false},
		{"(Ljava/lang/String;I[J)Z", 3, false, false},
		{"(V)V", 0, false, true},
		{"(I", 0, false, true},
		{"()", 0, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			md, err := ParseMethodDescriptor(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseMethodDescriptor(%q): expected error, got none", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMethodDescriptor(%q) failed: %v", tt.in, err)
			}
			if len(md.Parameters) != tt.wantParams {
				t.Errorf("ParseMethodDescriptor(%q): %d parameters, want %d", tt.in, len(md.Parameters), tt.wantParams)
			}
			if (md.Return.category() == CategoryVoid) != tt.wantVoid {
				t.Errorf("ParseMethodDescriptor(%q): void return = %v, want %v", tt.in, md.Return.category() == CategoryVoid, tt.wantVoid)
			}
		})
	}
}

func TestIsValidMemberName(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"foo", true},
		{"_bar$2", true},
		{"", false},
		{"2bad", false},
		{"has space", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := IsValidMemberName(tt.in); got != tt.want {
				t.Errorf("IsValidMemberName(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
