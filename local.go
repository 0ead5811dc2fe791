// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package classfile

import "strconv"

// localKey deduplicates allocated Local handles by (category, javac
// index), per spec.md §3: "a set of allocated Local handles, deduplicated
// by (category, javac_index) where category collapses byte/short/char/
// bool/int into INT".
type localKey struct {
	category TypeCategory
	index    int
}

// Local is one allocated activation-record slot: either a real javac
// local (non-negative JavacIndex) or a spill slot synthesized by the
// emitter (negative JavacIndex, disjoint from any javac local, per
// spec.md §4.D's spill discipline).
type Local struct {
	Category   TypeCategory
	JavacIndex int
	Producer   *SymbolicValue // set only for spill slots: the value that must be materialised here before use
}

// String renders the local for diagnostics (e.g. the Squawk-primitive
// aliasing error's LVT listing, spec.md §8 property 7).
func (l *Local) String() string {
	if l.JavacIndex < 0 {
		return "spill#" + strconv.Itoa(-l.JavacIndex)
	}
	return "local#" + strconv.Itoa(l.JavacIndex) + ":" + l.Category.String()
}

// IsSpill reports whether this Local is an implementation-internal
// temporary rather than a real javac local.
func (l *Local) IsSpill() bool { return l.JavacIndex < 0 }

// getLocalTypeFor collapses a field type to the TypeCategory the Frame's
// local-slot key uses (spec.md §4.D): sub-word primitives collapse to
// INT, LONG/FLOAT/DOUBLE and the three Squawk primitives keep their own
// identity, and every reference type widens to REFERENCE.
func getLocalTypeFor(ft *FieldType) TypeCategory {
	switch ft.category() {
	case CategoryReference:
		return CategoryReference
	case CategoryLong, CategoryFloat, CategoryDouble,
		CategoryAddress, CategoryUWord, CategoryOffset:
		return ft.category()
	default:
		return CategoryInt
	}
}
