// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package classfile

import "testing"

func TestReaderPrimitives(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x00, 0x00, 0x00, 0x04}
	r := NewReader("t", data)

	if v, err := r.ReadU1(); err != nil || v != 0x01 {
		t.Fatalf("ReadU1 = %v, %v, want 0x01, nil", v, err)
	}
	if v, err := r.ReadU2(); err != nil || v != 0x0203 {
		t.Fatalf("ReadU2 = %v, %v, want 0x0203, nil", v, err)
	}
	if v, err := r.ReadU4(); err != nil || v != 0x00000004 {
		t.Fatalf("ReadU4 = %v, %v, want 4, nil", v, err)
	}
	if err := r.AssertEOF(); err != nil {
		t.Fatalf("AssertEOF failed: %v", err)
	}
}

func TestReaderUnderflow(t *testing.T) {
	r := NewReader("t", []byte{0x01})
	if _, err := r.ReadU2(); err == nil {
		t.Fatal("ReadU2 on a 1-byte buffer: expected error, got none")
	}
}

func TestReadUTFModified(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want string
	}{
		{"ascii", []byte{0x00, 0x03, 'f', 'o', 'o'}, "foo"},
		{"embedded nul", []byte{0x00, 0x02, 0xC0, 0x80}, "\x00"},
		{
			"surrogate pair (U+1D11E musical G clef)",
			[]byte{0x00, 0x06, 0xED, 0xA0, 0xB4, 0xED, 0xB4, 0x9E},
			"\U0001D11E",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader("t", tt.raw)
			got, err := r.ReadUTFModified()
			if err != nil {
				t.Fatalf("ReadUTFModified() failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("ReadUTFModified() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReaderSubAndAssertEOF(t *testing.T) {
	r := NewReader("t", []byte{0xAA, 0xBB, 0xCC, 0xDD})
	sub, err := r.Sub(2)
	if err != nil {
		t.Fatalf("Sub(2) failed: %v", err)
	}
	if b, _ := sub.ReadU1(); b != 0xAA {
		t.Fatalf("sub.ReadU1() = %#x, want 0xAA", b)
	}
	if b, _ := sub.ReadU1(); b != 0xBB {
		t.Fatalf("sub.ReadU1() = %#x, want 0xBB", b)
	}
	if err := sub.AssertEOF(); err != nil {
		t.Fatalf("sub.AssertEOF() failed: %v", err)
	}
	if b, err := r.ReadU1(); err != nil || b != 0xCC {
		t.Fatalf("r.ReadU1() after Sub = %#x, %v, want 0xCC, nil", b, err)
	}
}
