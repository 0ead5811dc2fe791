// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package classfile

import "testing"

// buildMinimalClass hand-assembles the bytes of a trivial class file:
//
//	public class Foo extends java.lang.Object {
//	    public int bar() { return 0; }
//	}
//
// used to exercise ClassFileLoader.Load end-to-end without needing an
// on-disk fixture or a Java toolchain.
func buildMinimalClass() []byte {
	var b []byte
	u2 := func(v uint16) { b = append(b, byte(v>>8), byte(v)) }
	u4 := func(v uint32) { b = append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v)) }
	utf8 := func(s string) { u2(uint16(len(s))); b = append(b, s...) }

	u4(MagicNumber)
	u2(0)  // minor
	u2(45) // major

	u2(8) // constant_pool_count (entries 1..7, slot 0 unused)
	// #1 Utf8 "Foo"
	b = append(b, byte(TagUtf8))
	utf8("Foo")
	// #2 Class -> #1
	b = append(b, byte(TagClass))
	u2(1)
	// #3 Utf8 "java/lang/Object"
	b = append(b, byte(TagUtf8))
	utf8("java/lang/Object")
	// #4 Class -> #3
	b = append(b, byte(TagClass))
	u2(3)
	// #5 Utf8 "bar"
	b = append(b, byte(TagUtf8))
	utf8("bar")
	// #6 Utf8 "()I"
	b = append(b, byte(TagUtf8))
	utf8("()I")
	// #7 Utf8 "Code"
	b = append(b, byte(TagUtf8))
	utf8("Code")

	u2(uint16(AccPublic | AccSuper)) // access_flags
	u2(2)                            // this_class
	u2(4)                            // super_class
	u2(0)                            // interfaces_count
	u2(0)                            // fields_count

	u2(1)                  // methods_count
	u2(uint16(AccPublic))  // method access_flags
	u2(5)                  // name_index ("bar")
	u2(6)                  // descriptor_index ("()I")
	u2(1)                  // method attributes_count
	u2(7)                  // attribute_name_index ("Code")
	u4(14)                 // attribute_length
	u2(1)                  // max_stack
	u2(1)                  // max_locals
	u4(2)                  // code_length
	b = append(b, byte(opIConst0), byte(opIReturn))
	u2(0) // exception_table_length
	u2(0) // Code attributes_count

	u2(0) // class attributes_count
	return b
}

func TestLoadMinimalClass(t *testing.T) {
	reg := NewRegistry(nil, nil)
	reg.DefinePrimitives()
	loader := NewClassFileLoader(reg, Options{})

	k, err := loader.Parse("Foo.class", buildMinimalClass())
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if k.Name != "Foo" {
		t.Errorf("Name = %q, want %q", k.Name, "Foo")
	}
	if k.State != StateLoaded {
		t.Errorf("State = %v, want %v", k.State, StateLoaded)
	}
	if k.Super == nil || k.Super.Name != "java/lang/Object" {
		t.Fatalf("Super = %v, want java/lang/Object", k.Super)
	}
	if len(k.VirtualMethods) != 1 || k.VirtualMethods[0].Name != "bar" {
		t.Fatalf("VirtualMethods = %v, want one method named bar", k.VirtualMethods)
	}
	m := k.VirtualMethods[0]
	if m.Code == nil {
		t.Fatal("method bar has no Code body")
	}
	if m.MaxStack != 1 || m.MaxLocals != 1 {
		t.Errorf("MaxStack/MaxLocals = %d/%d, want 1/1", m.MaxStack, m.MaxLocals)
	}
}

func TestLoadRejectsBadMagic(t *testing.T) {
	data := buildMinimalClass()
	data[0] = 0x00 // corrupt the magic number
	reg := NewRegistry(nil, nil)
	reg.DefinePrimitives()
	loader := NewClassFileLoader(reg, Options{})

	if _, err := loader.Parse("Foo.class", data); err == nil {
		t.Fatal("Load() on a corrupted magic number: expected error, got none")
	}
}

func TestClassStateMonotonicAdvance(t *testing.T) {
	k := &Klass{State: StateLoaded}
	if err := k.setState(StateLoading); err == nil {
		t.Fatal("setState(LOADING) from LOADED: expected error, got none")
	}
	if err := k.setState(StateError); err != nil {
		t.Fatalf("setState(ERROR) from LOADED: unexpected error: %v", err)
	}
}
