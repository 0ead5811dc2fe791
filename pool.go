// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package classfile

import "math"

// Tag identifies the kind of a raw constant-pool entry, matching the JVM
// class-file spec's own tag values (grounded on daimatz-gojvm's
// constant-pool reader, _examples/other_examples/2c366834_...go).
type Tag uint8

const (
	TagUtf8               Tag = 1
	TagInteger            Tag = 3
	TagFloat              Tag = 4
	TagLong               Tag = 5
	TagDouble             Tag = 6
	TagClass              Tag = 7
	TagString             Tag = 8
	TagFieldRef           Tag = 9
	TagMethodRef          Tag = 10
	TagInterfaceMethodRef Tag = 11
	TagNameAndType        Tag = 12

	// Trusted-attribute extension tags, spec.md §6.
	TagPublicKey        Tag = 13
	TagDigitalSignature Tag = 14
)

// cpEntry is the raw, unresolved form of one pool slot.
type cpEntry struct {
	tag Tag

	// Utf8
	utf8 string

	// Integer/Float (both 32-bit payloads)
	u4 uint32

	// Long/Double (64-bit payloads, occupy two slots)
	u8 uint64

	// Class/String: single name/value index
	index1 uint16

	// FieldRef/MethodRef/InterfaceMethodRef/NameAndType: two indices
	index2 uint16
}

// resolved memoizes a narrowed, typed resolution of a pool entry so that
// repeated lookups don't re-walk the raw representation (spec.md §3,
// "the pool owns raw encoded values until first resolution").
type resolved struct {
	kind   Tag
	class  *Klass
	field  *ResolvedField
	method *ResolvedMethod
}

// ResolvedField is the typed result of resolving a FieldRef.
type ResolvedField struct {
	Owner      *Klass
	Name       string
	Descriptor string
	Type       *FieldType
	IsStatic   bool
}

// ResolvedMethod is the typed result of resolving a Method/InterfaceMethodRef.
type ResolvedMethod struct {
	Owner       *Klass
	Name        string
	Descriptor  string
	Signature   *MethodDescriptor
	IsStatic    bool
	IsInterface bool
}

// ConstantPool is the indexed, sparse, lazily-resolving table described
// in spec.md §3/§4.B. Index 0, and the second slot of any 64-bit
// constant, are reserved and never populated.
type ConstantPool struct {
	entries  []cpEntry
	resolved []*resolved
	loader   *ClassFileLoader // used to recursively resolve Class entries
}

// newConstantPool allocates a pool sized for `count` entries (the
// constant_pool_count class-file field; slot 0 is always unused).
func newConstantPool(count int, loader *ClassFileLoader) *ConstantPool {
	return &ConstantPool{
		entries:  make([]cpEntry, count),
		resolved: make([]*resolved, count),
		loader:   loader,
	}
}

// Size returns the number of slots, including the unused slot 0 and any
// reserved second half of a 64-bit constant.
func (cp *ConstantPool) Size() int { return len(cp.entries) }

func (cp *ConstantPool) checkIndex(i uint16) error {
	if int(i) <= 0 || int(i) >= len(cp.entries) {
		return newError(ErrClassFormat, "constant pool index %d out of range [1,%d)", i, len(cp.entries))
	}
	if cp.entries[i].tag == 0 {
		return newError(ErrClassFormat, "constant pool index %d refers to an unusable slot", i)
	}
	return nil
}

// Tag returns the tag at index i.
func (cp *ConstantPool) Tag(i uint16) (Tag, error) {
	if err := cp.checkIndex(i); err != nil {
		return 0, err
	}
	return cp.entries[i].tag, nil
}

func (cp *ConstantPool) expect(i uint16, tag Tag) error {
	got, err := cp.Tag(i)
	if err != nil {
		return err
	}
	if got != tag {
		return newError(ErrClassFormat, "constant pool index %d: expected tag %d, got %d", i, tag, got)
	}
	return nil
}

// Utf8 returns the UTF-8 string at index i.
func (cp *ConstantPool) Utf8(i uint16) (string, error) {
	if err := cp.expect(i, TagUtf8); err != nil {
		return "", err
	}
	return cp.entries[i].utf8, nil
}

// Int returns the int constant at index i.
func (cp *ConstantPool) Int(i uint16) (int32, error) {
	if err := cp.expect(i, TagInteger); err != nil {
		return 0, err
	}
	return int32(cp.entries[i].u4), nil
}

// Float returns the float constant at index i. Comparisons against other
// float constants (e.g. for pool de-duplication in an encoder) must use
// the canonical bit pattern, not Go's `==`, per spec.md §9's
// constant-pool fixup note: NaN and -0.0 must be honoured correctly.
func (cp *ConstantPool) Float(i uint16) (float32, error) {
	if err := cp.expect(i, TagFloat); err != nil {
		return 0, err
	}
	return math.Float32frombits(cp.entries[i].u4), nil
}

// FloatBits returns the raw bit pattern backing the float at index i,
// for bit-exact comparisons.
func (cp *ConstantPool) FloatBits(i uint16) (uint32, error) {
	if err := cp.expect(i, TagFloat); err != nil {
		return 0, err
	}
	return cp.entries[i].u4, nil
}

// Long returns the long constant at index i.
func (cp *ConstantPool) Long(i uint16) (int64, error) {
	if err := cp.expect(i, TagLong); err != nil {
		return 0, err
	}
	return int64(cp.entries[i].u8), nil
}

// Double returns the double constant at index i.
func (cp *ConstantPool) Double(i uint16) (float64, error) {
	if err := cp.expect(i, TagDouble); err != nil {
		return 0, err
	}
	return math.Float64frombits(cp.entries[i].u8), nil
}

// DoubleBits returns the raw bit pattern backing the double at index i.
func (cp *ConstantPool) DoubleBits(i uint16) (uint64, error) {
	if err := cp.expect(i, TagDouble); err != nil {
		return 0, err
	}
	return cp.entries[i].u8, nil
}

// StringUtf8Index returns the raw Utf8 index backing a String constant,
// without resolving it to an interned string value (callers that need
// the text call Utf8 on the returned index).
func (cp *ConstantPool) StringUtf8Index(i uint16) (uint16, error) {
	if err := cp.expect(i, TagString); err != nil {
		return 0, err
	}
	return cp.entries[i].index1, nil
}

// ClassNameIndex returns the Utf8 index backing a Class constant's name,
// without triggering class resolution.
func (cp *ConstantPool) ClassNameIndex(i uint16) (uint16, error) {
	if err := cp.expect(i, TagClass); err != nil {
		return 0, err
	}
	return cp.entries[i].index1, nil
}

// ClassName resolves a Class constant's name without loading the class.
func (cp *ConstantPool) ClassName(i uint16) (string, error) {
	nameIdx, err := cp.ClassNameIndex(i)
	if err != nil {
		return "", err
	}
	return cp.Utf8(nameIdx)
}

// ResolvedClass resolves a Class entry to a Klass, triggering recursive
// loading through the registry (spec.md §4.B). Resolution is memoised:
// a resolved index always yields an entry of the same kind afterwards
// (spec.md §3's pool invariant).
func (cp *ConstantPool) ResolvedClass(i uint16) (*Klass, error) {
	if err := cp.expect(i, TagClass); err != nil {
		return nil, err
	}
	if r := cp.resolved[i]; r != nil {
		return r.class, nil
	}
	name, err := cp.ClassName(i)
	if err != nil {
		return nil, err
	}
	if cp.loader == nil || cp.loader.registry == nil {
		return nil, newError(ErrInternal, "constant pool has no loader/registry to resolve class %q", name)
	}
	k, err := cp.loader.registry.Resolve(name, cp.loader)
	if err != nil {
		return nil, err
	}
	cp.resolved[i] = &resolved{kind: TagClass, class: k}
	return k, nil
}

func (cp *ConstantPool) nameAndType(i uint16) (name, descriptor string, err error) {
	if err := cp.expect(i, TagNameAndType); err != nil {
		return "", "", err
	}
	e := cp.entries[i]
	name, err = cp.Utf8(e.index1)
	if err != nil {
		return "", "", err
	}
	descriptor, err = cp.Utf8(e.index2)
	if err != nil {
		return "", "", err
	}
	return name, descriptor, nil
}

// ResolvedField resolves a FieldRef entry.
func (cp *ConstantPool) ResolvedField(i uint16, isStatic bool) (*ResolvedField, error) {
	if err := cp.expect(i, TagFieldRef); err != nil {
		return nil, err
	}
	if r := cp.resolved[i]; r != nil {
		return r.field, nil
	}
	e := cp.entries[i]
	owner, err := cp.ResolvedClass(e.index1)
	if err != nil {
		return nil, err
	}
	name, descriptor, err := cp.nameAndType(e.index2)
	if err != nil {
		return nil, err
	}
	ft, _, err := ParseFieldDescriptor(descriptor)
	if err != nil {
		return nil, err
	}
	rf := &ResolvedField{Owner: owner, Name: name, Descriptor: descriptor, Type: ft, IsStatic: isStatic}
	cp.resolved[i] = &resolved{kind: TagFieldRef, field: rf}
	return rf, nil
}

// ResolvedMethod resolves a MethodRef or InterfaceMethodRef entry.
func (cp *ConstantPool) ResolvedMethod(i uint16, isStatic, isInterface bool) (*ResolvedMethod, error) {
	tag, err := cp.Tag(i)
	if err != nil {
		return nil, err
	}
	if tag != TagMethodRef && tag != TagInterfaceMethodRef {
		return nil, newError(ErrClassFormat, "constant pool index %d: expected a method ref, got tag %d", i, tag)
	}
	if r := cp.resolved[i]; r != nil {
		return r.method, nil
	}
	e := cp.entries[i]
	owner, err := cp.ResolvedClass(e.index1)
	if err != nil {
		return nil, err
	}
	name, descriptor, err := cp.nameAndType(e.index2)
	if err != nil {
		return nil, err
	}
	sig, err := ParseMethodDescriptor(descriptor)
	if err != nil {
		return nil, err
	}
	rm := &ResolvedMethod{
		Owner: owner, Name: name, Descriptor: descriptor, Signature: sig,
		IsStatic: isStatic, IsInterface: isInterface || tag == TagInterfaceMethodRef,
	}
	cp.resolved[i] = &resolved{kind: tag, method: rm}
	return rm, nil
}

// load parses raw entries from r (called once from ClassFileLoader,
// spec.md §4.C step 2).
func (cp *ConstantPool) load(r *Reader) error {
	n := len(cp.entries)
	for i := 1; i < n; i++ {
		tag, err := r.ReadU1()
		if err != nil {
			return err
		}
		e := cpEntry{tag: Tag(tag)}
		switch Tag(tag) {
		case TagUtf8:
			s, err := r.ReadUTFModified()
			if err != nil {
				return err
			}
			e.utf8 = s
		case TagInteger, TagFloat:
			v, err := r.ReadU4()
			if err != nil {
				return err
			}
			e.u4 = v
		case TagLong, TagDouble:
			hi, err := r.ReadU4()
			if err != nil {
				return err
			}
			lo, err := r.ReadU4()
			if err != nil {
				return err
			}
			e.u8 = uint64(hi)<<32 | uint64(lo)
			cp.entries[i] = e
			// A long/double occupies the next slot too (spec.md §3).
			i++
			if i < n {
				cp.entries[i] = cpEntry{}
			}
			continue
		case TagClass, TagString:
			idx, err := r.ReadU2()
			if err != nil {
				return err
			}
			e.index1 = idx
		case TagFieldRef, TagMethodRef, TagInterfaceMethodRef, TagNameAndType:
			i1, err := r.ReadU2()
			if err != nil {
				return err
			}
			i2, err := r.ReadU2()
			if err != nil {
				return err
			}
			e.index1, e.index2 = i1, i2
		case TagPublicKey, TagDigitalSignature:
			length, err := r.ReadU2()
			if err != nil {
				return err
			}
			raw, err := r.ReadFully(int(length))
			if err != nil {
				return err
			}
			e.utf8 = string(raw) // reuses the byte-payload slot; not textual
		default:
			return newError(ErrClassFormat, "unknown constant pool tag %d at index %d", tag, i)
		}
		cp.entries[i] = e
	}
	return nil
}

// TrustedBytes returns the raw byte payload stored for a PublicKey or
// DigitalSignature entry (spec.md §6's Trusted-attribute extension tags).
func (cp *ConstantPool) TrustedBytes(i uint16) ([]byte, error) {
	tag, err := cp.Tag(i)
	if err != nil {
		return nil, err
	}
	if tag != TagPublicKey && tag != TagDigitalSignature {
		return nil, newError(ErrClassFormat, "constant pool index %d: expected PublicKey/DigitalSignature, got tag %d", i, tag)
	}
	return []byte(cp.entries[i].utf8), nil
}
