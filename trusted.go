// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package classfile

import (
	"crypto/sha256"

	"github.com/squawk-vm/translator/signature"
)

// PermitEntry is one row of a sorted permit table (spec.md §6: subclass,
// class-resource-access, or reflective-class-resource-access permits).
type PermitEntry struct {
	DomainKeyIndex uint16 // index into the trusted pool's PublicKey entries
}

// VisibilityOverride records a non-default per-field or per-method
// visibility bit, stored as a sorted delta against the class's ordinary
// modifiers (spec.md §6).
type VisibilityOverride struct {
	MemberIndex int // index into InstanceFields/StaticFields/VirtualMethods/StaticMethods, by declaration order
	Visible     bool
}

// DomainEntry pairs a domain key with the signature over this class
// file computed under that key (spec.md §6).
type DomainEntry struct {
	KeyIndex       uint16
	SignatureIndex uint16
}

// TrustedAttribute is the optional, class-attribute-list-terminal
// extension of spec.md §6: a trusted constant pool carrying PublicKey
// and DigitalSignature entries, an access-flags word, subclass/resource
// access keys, visibility deltas, three permit tables, and a domain
// table of (key, signature) pairs.
type TrustedAttribute struct {
	Pool                   *ConstantPool // the trusted pool, same shape as the main pool plus PublicKey/DigitalSignature
	AccessFlags            Modifier
	SubclassAccessKey      uint16
	ClassResourceAccessKey uint16
	VisibilityOverrides    []VisibilityOverride
	SubclassPermits        []PermitEntry
	ClassResourcePermits   []PermitEntry
	ReflectivePermits      []PermitEntry
	Domain                 []DomainEntry
}

// parseTrustedAttribute reads the Trusted attribute body. r is scoped to
// exactly the attribute's declared length (spec.md §4.A: "an attribute
// length that disagrees with the amount actually consumed" is a format
// error, enforced by AssertEOF at the end of the caller's dispatch).
func parseTrustedAttribute(r *Reader, loader *ClassFileLoader) (*TrustedAttribute, error) {
	poolCount, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	pool := newConstantPool(int(poolCount), loader)
	if err := pool.load(r); err != nil {
		return nil, err
	}

	flags, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	subclassKey, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	resourceKey, err := r.ReadU2()
	if err != nil {
		return nil, err
	}

	ta := &TrustedAttribute{
		Pool:                   pool,
		AccessFlags:            Modifier(flags),
		SubclassAccessKey:      subclassKey,
		ClassResourceAccessKey: resourceKey,
	}

	overrideCount, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(overrideCount); i++ {
		memberIdx, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		flag, err := r.ReadU1()
		if err != nil {
			return nil, err
		}
		ta.VisibilityOverrides = append(ta.VisibilityOverrides, VisibilityOverride{
			MemberIndex: int(memberIdx), Visible: flag != 0,
		})
	}

	for _, dst := range []*[]PermitEntry{&ta.SubclassPermits, &ta.ClassResourcePermits, &ta.ReflectivePermits} {
		count, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		for i := 0; i < int(count); i++ {
			keyIdx, err := r.ReadU2()
			if err != nil {
				return nil, err
			}
			*dst = append(*dst, PermitEntry{DomainKeyIndex: keyIdx})
		}
	}

	domainCount, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(domainCount); i++ {
		keyIdx, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		sigIdx, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		ta.Domain = append(ta.Domain, DomainEntry{KeyIndex: keyIdx, SignatureIndex: sigIdx})
	}

	return ta, nil
}

// canonicalDigestInput reproduces spec.md §6's digest recipe byte for
// byte: the whole class file, with the constant-pool count and the
// class attribute count each decremented by one, and the "Trusted" Utf8
// entry and the Trusted attribute itself excluded.
//
// full is the complete, unmodified class-file image; poolCountOffset and
// attrCountOffset are the byte offsets of the constant_pool_count and
// the class-level attributes_count fields; trustedUtf8Range and
// trustedAttrRange are the [start,end) byte ranges of the "Trusted" Utf8
// constant-pool entry and of the Trusted attribute itself, both of which
// are excised from the digest input.
func canonicalDigestInput(full []byte, poolCountOffset, attrCountOffset int, trustedUtf8Range, trustedAttrRange [2]int) []byte {
	out := make([]byte, 0, len(full))
	out = append(out, full...)

	decrementU2 := func(off int) {
		v := uint16(out[off])<<8 | uint16(out[off+1])
		v--
		out[off] = byte(v >> 8)
		out[off+1] = byte(v)
	}
	decrementU2(poolCountOffset)
	decrementU2(attrCountOffset)

	// Excise the Trusted attribute and its Utf8 name entry, later range
	// first so earlier offsets stay valid.
	ranges := [][2]int{trustedAttrRange, trustedUtf8Range}
	if ranges[0][0] < ranges[1][0] {
		ranges[0], ranges[1] = ranges[1], ranges[0]
	}
	for _, rg := range ranges {
		out = append(out[:rg[0]], out[rg[1]:]...)
	}
	return out
}

// Verify checks ta's domain table against provider: for each domain
// entry, the signature at SignatureIndex must validate, under the key
// at KeyIndex, against the SHA-256 digest of digestInput.
func (ta *TrustedAttribute) Verify(digestInput []byte, provider signature.Provider) error {
	if provider == nil {
		provider = signature.NopProvider{}
	}
	sum := sha256.Sum256(digestInput)
	for _, d := range ta.Domain {
		key, err := ta.Pool.TrustedBytes(d.KeyIndex)
		if err != nil {
			return wrapError(ErrSignature, err, "trusted attribute: bad domain key index %d", d.KeyIndex)
		}
		sig, err := ta.Pool.TrustedBytes(d.SignatureIndex)
		if err != nil {
			return wrapError(ErrSignature, err, "trusted attribute: bad signature index %d", d.SignatureIndex)
		}
		ok, err := provider.Verify(sum[:], sig, key)
		if err != nil {
			return wrapError(ErrSignature, err, "trusted attribute: signature provider failed")
		}
		if !ok {
			return newError(ErrSignature, "trusted attribute: signature did not validate under domain key %d", d.KeyIndex)
		}
	}
	return nil
}
