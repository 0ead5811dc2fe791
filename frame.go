// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package classfile

// Frame is the CodeParser's abstract-interpretation state: the operand
// stack and local-variable array the verifier maintains while walking
// one method body (spec.md §3, "Frame"). It never holds actual values,
// only the SymbolicValue IR the emitter produces and the TypeCategory
// each slot currently carries.
type Frame struct {
	m      *Method
	stack  []*SymbolicValue
	locals []*Local

	allocated map[localKey]*Local
	nextSpill int

	thisUninitialized bool // true until the chained constructor call resolves
	maxStackSeen       int
}

// newFrame builds the entry Frame for a method: locals 0..n-1 populated
// from the receiver (unless static) and the parameter list, an empty
// operand stack, and — for an instance `<init>` — thisUninitialized set
// until the chained super/this constructor call promotes it (spec.md
// §3/§9, "uninitialized this").
func newFrame(m *Method) *Frame {
	f := &Frame{m: m, allocated: make(map[localKey]*Local)}
	idx := 0
	if !m.Modifiers.Has(AccStatic) && !m.IsConstructor() {
		f.locals = append(f.locals, f.localFor(CategoryReference, idx))
		idx++
	}
	if m.IsConstructor() {
		f.locals = append(f.locals, f.localFor(CategoryReference, idx))
		f.thisUninitialized = true
		idx++
	}
	for _, p := range m.Signature.Parameters {
		cat := getLocalTypeFor(p)
		f.locals = append(f.locals, f.localFor(cat, idx))
		idx++
		if cat.IsWide() {
			f.locals = append(f.locals, nil) // second half of a wide local occupies a slot but has no handle
			idx++
		}
	}
	return f
}

// localFor returns the deduplicated Local handle for (category, javac
// index), allocating one on first use (spec.md §3's dedup rule).
func (f *Frame) localFor(cat TypeCategory, javacIndex int) *Local {
	key := localKey{category: cat, index: javacIndex}
	if l, ok := f.allocated[key]; ok {
		return l
	}
	l := &Local{Category: cat, JavacIndex: javacIndex}
	f.allocated[key] = l
	return l
}

// spillLocal allocates a fresh implementation-internal temporary,
// disjoint from every javac local, per spec.md §4.D's spill discipline:
// spill slots use negative, monotonically-decreasing indices so they
// can never collide with a real javac local index.
func (f *Frame) spillLocal(cat TypeCategory, producer *SymbolicValue) *Local {
	f.nextSpill--
	l := &Local{Category: cat, JavacIndex: f.nextSpill, Producer: producer}
	f.allocated[localKey{category: cat, index: f.nextSpill}] = l
	return l
}

// push places v on the operand stack, tracking the running high-water
// mark needed for MaxStack (spec.md §6's Minfo header).
func (f *Frame) push(v *SymbolicValue) {
	f.stack = append(f.stack, v)
	depth := f.stackSlots()
	if depth > f.maxStackSeen {
		f.maxStackSeen = depth
	}
}

func (f *Frame) stackSlots() int {
	n := 0
	for _, v := range f.stack {
		n += v.Size()
	}
	return n
}

// pop removes and returns the top operand, failing if the stack is
// empty (an ErrVerify per spec.md §7, never a panic).
func (f *Frame) pop() (*SymbolicValue, error) {
	if len(f.stack) == 0 {
		return nil, newError(ErrVerify, "operand stack underflow")
	}
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v, nil
}

// popCategory pops and asserts the popped value's category, the check
// every simple-effect opcode in opcodeTable performs, and additionally
// rejects any attempt to alias a Squawk primitive with a non-matching
// category (spec.md §3: "Squawk primitives forbidden to alias with
// references or with each other's category").
func (f *Frame) popCategory(want TypeCategory) (*SymbolicValue, error) {
	v, err := f.pop()
	if err != nil {
		return nil, err
	}
	if v.Category != want {
		if v.Category.IsSquawkPrimitive() || want.IsSquawkPrimitive() {
			return nil, newError(ErrVerify, "Squawk primitive %s may not alias with %s", v.Category, want)
		}
		return nil, newError(ErrVerify, "operand stack type mismatch: want %s, have %s", want, v.Category)
	}
	return v, nil
}

// snapshot captures the Frame's current (locals, stack) category shape
// for recording at a Target (target.go).
func (f *Frame) snapshot() (locals, stack []TypeCategory) {
	locals = make([]TypeCategory, len(f.locals))
	for i, l := range f.locals {
		if l == nil {
			locals[i] = CategoryVoid
		} else {
			locals[i] = l.Category
		}
	}
	stack = make([]TypeCategory, len(f.stack))
	for i, v := range f.stack {
		stack[i] = v.Category
	}
	return locals, stack
}

// storeLocal writes v into local slot idx (istore/astore and friends),
// growing f.locals as needed, and enforces the Squawk-primitive aliasing
// invariant of spec.md §3/§8 Testable Property 7: a slot that already
// holds a value may not be overwritten with a different category when
// either the old or the new category is a Squawk primitive, since the VM
// would then have to track two incompatible interpretations of the same
// storage. The error lists every LocalVariableTable entry declared at idx
// so the conflict is diagnosable.
func (f *Frame) storeLocal(idx int, v *SymbolicValue) error {
	width := 1
	if v.Category.IsWide() {
		width = 2
	}
	for len(f.locals) < idx+width {
		f.locals = append(f.locals, nil)
	}

	if existing := f.locals[idx]; existing != nil && existing.Category != v.Category {
		if existing.Category.IsSquawkPrimitive() || v.Category.IsSquawkPrimitive() {
			return newError(ErrVerify, "Squawk primitive aliasing at local %d: %s", idx, f.describeLocalConflict(idx))
		}
	}

	f.locals[idx] = f.localFor(v.Category, idx)
	if width == 2 {
		f.locals[idx+1] = nil
	}
	return nil
}

// describeLocalConflict formats every LocalVariableTable entry declared
// at slot idx, for the diagnostic storeLocal raises on a Squawk-
// primitive aliasing violation.
func (f *Frame) describeLocalConflict(idx int) string {
	if f.m == nil {
		return "no LocalVariableTable available"
	}
	desc := ""
	for _, e := range f.m.LocalVariableTable {
		if e.Index != idx {
			continue
		}
		if desc != "" {
			desc += ", "
		}
		desc += e.Name + " " + e.Signature
	}
	if desc == "" {
		return "no LocalVariableTable entries declared for this slot"
	}
	return "overlapping declarations " + desc
}

// restore replaces the Frame's locals/stack wholesale with the category
// shapes recorded at a StackMap-derived Target (spec.md §4.D: a
// backward-branch or exception-handler target whose shape came from an
// explicit StackMap entry is authoritative and must be installed as-is,
// never merged against whatever the verifier had derived so far).
func (f *Frame) restore(locals, stack []TypeCategory) {
	f.locals = f.locals[:0]
	for _, cat := range locals {
		if cat == CategoryVoid {
			f.locals = append(f.locals, nil)
		} else {
			f.locals = append(f.locals, f.localFor(cat, len(f.locals)))
		}
	}
	f.stack = f.stack[:0]
	for _, cat := range stack {
		f.push(&SymbolicValue{Kind: SymOther, Category: cat})
	}
}

// promoteThis clears thisUninitialized once the chained constructor call
// has run, per spec.md §3/§9's uninitialized-this promotion rule: every
// other use of `this` before this point is a verify error.
func (f *Frame) promoteThis() { f.thisUninitialized = false }

// checkThisInitialized rejects any use of `this` (other than as the
// receiver of the chained constructor call itself) while still
// uninitialized.
func (f *Frame) checkThisInitialized() error {
	if f.thisUninitialized {
		return newError(ErrVerify, "use of uninitialized this before chained constructor call returns")
	}
	return nil
}

// applyDup performs one of the eight JVM §6.5 dup/dup2/swap forms
// in-place on the operand stack. Which concrete sub-form dup_x2, dup2,
// and dup2_x1/dup2_x2 select depends on whether the values involved are
// category 1 or category 2 (opcodes.go's
// dupForm doc comment); that check is made here, dynamically, against
// the actual categories on the stack rather than the static opcode.
func (f *Frame) applyDup(form dupForm) error {
	switch form {
	case dupPlain:
		v, err := f.pop()
		if err != nil {
			return err
		}
		f.push(v)
		f.push(v)
	case dupX1Form:
		v1, err := f.pop()
		if err != nil {
			return err
		}
		v2, err := f.pop()
		if err != nil {
			return err
		}
		f.push(v1)
		f.push(v2)
		f.push(v1)
	case dupX2Form:
		v1, err := f.pop()
		if err != nil {
			return err
		}
		v2, err := f.pop()
		if err != nil {
			return err
		}
		if v2.Category.IsWide() {
			f.push(v1)
			f.push(v2)
			f.push(v1)
		} else {
			v3, err := f.pop()
			if err != nil {
				return err
			}
			f.push(v1)
			f.push(v3)
			f.push(v2)
			f.push(v1)
		}
	case dup2Form:
		v1, err := f.pop()
		if err != nil {
			return err
		}
		if v1.Category.IsWide() {
			f.push(v1)
			f.push(v1)
		} else {
			v2, err := f.pop()
			if err != nil {
				return err
			}
			f.push(v2)
			f.push(v1)
			f.push(v2)
			f.push(v1)
		}
	case dup2X1Form:
		v1, err := f.pop()
		if err != nil {
			return err
		}
		if v1.Category.IsWide() {
			v2, err := f.pop()
			if err != nil {
				return err
			}
			f.push(v1)
			f.push(v2)
			f.push(v1)
		} else {
			v2, err := f.pop()
			if err != nil {
				return err
			}
			v3, err := f.pop()
			if err != nil {
				return err
			}
			f.push(v2)
			f.push(v1)
			f.push(v3)
			f.push(v2)
			f.push(v1)
		}
	case dup2X2Form:
		v1, err := f.pop()
		if err != nil {
			return err
		}
		v2, err := f.pop()
		if err != nil {
			return err
		}
		if v1.Category.IsWide() && v2.Category.IsWide() {
			f.push(v1)
			f.push(v2)
			f.push(v1)
		} else if v1.Category.IsWide() {
			v3, err := f.pop()
			if err != nil {
				return err
			}
			f.push(v1)
			f.push(v3)
			f.push(v2)
			f.push(v1)
		} else if v2.Category.IsWide() {
			return newError(ErrVerify, "dup2_x2: category-1 value above a category-2 value")
		} else {
			v3, err := f.pop()
			if err != nil {
				return err
			}
			if v3.Category.IsWide() { // v1, v2 category 1, v3 category 2: dup2_x2 form 3
				f.push(v2)
				f.push(v1)
				f.push(v3)
				f.push(v2)
				f.push(v1)
				break
			}
			v4, err := f.pop()
			if err != nil {
				return err
			}
			f.push(v2)
			f.push(v1)
			f.push(v4)
			f.push(v3)
			f.push(v2)
			f.push(v1)
		}
	case popForm:
		if _, err := f.pop(); err != nil {
			return err
		}
	case swapForm:
		v1, err := f.pop()
		if err != nil {
			return err
		}
		v2, err := f.pop()
		if err != nil {
			return err
		}
		if v1.Category.IsWide() || v2.Category.IsWide() {
			return newError(ErrVerify, "swap operands must both be category 1")
		}
		f.push(v1)
		f.push(v2)
	default:
		return newError(ErrInternal, "unknown dup form %d", form)
	}
	return nil
}
