// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package classfile

// Target is a verified merge point: a bytecode offset the verifier has
// already visited once, together with the operand-stack and local-
// variable shape recorded for it (spec.md §3, "Target"). A StackMap
// entry, if present at this offset, pins the recorded shape directly;
// otherwise the shape is whatever the first predecessor to reach this
// offset left behind, and every subsequent predecessor must merge
// against it rather than replace it.
type Target struct {
	PC     int
	Locals []TypeCategory // by local-slot index; CategoryVoid marks an empty slot
	Stack  []TypeCategory // bottom-to-top

	FromStackMap bool // true when Locals/Stack came from an explicit StackMap entry rather than being derived
	Visited      bool
}

// newDerivedTarget records the shape flowing out of a fallthrough or
// branch instruction, used the first time a given PC is reached.
func newDerivedTarget(pc int, locals, stack []TypeCategory) *Target {
	return &Target{PC: pc, Locals: append([]TypeCategory(nil), locals...), Stack: append([]TypeCategory(nil), stack...)}
}

// merge reconciles an incoming (locals, stack) shape against the
// Target's recorded shape per spec.md §3: stack depth and per-slot stack
// categories must match exactly on every re-visit (the translator does
// not support category-widening joins). Locals are compared only over
// the shorter of the two arrays, and a local slot that is empty
// (CategoryVoid) on either side matches anything; any other mismatch is
// a verify error.
func (t *Target) merge(locals, stack []TypeCategory) error {
	if len(stack) != len(t.Stack) {
		return newError(ErrVerify, "stack depth mismatch at pc %d: recorded %d, incoming %d", t.PC, len(t.Stack), len(stack))
	}
	for i := range stack {
		if stack[i] != t.Stack[i] {
			return newError(ErrVerify, "stack category mismatch at pc %d slot %d: recorded %s, incoming %s", t.PC, i, t.Stack[i], stack[i])
		}
	}
	n := len(t.Locals)
	if len(locals) < n {
		n = len(locals)
	}
	for i := 0; i < n; i++ {
		if t.Locals[i] != CategoryVoid && locals[i] != CategoryVoid && t.Locals[i] != locals[i] {
			return newError(ErrVerify, "local category mismatch at pc %d slot %d: recorded %s, incoming %s", t.PC, i, t.Locals[i], locals[i])
		}
	}
	t.Visited = true
	return nil
}

// apply installs this Target's recorded shape into f when control
// reaches t.PC, implementing spec.md §4.D's replace-vs-merge split: a
// Target seeded from an explicit StackMap entry (FromStackMap) is
// authoritative and replaces the Frame's derived state outright, the
// way a backward branch or exception handler must re-synchronize to
// the preverifier's declared shape rather than argue with it; any other
// Target was itself derived by simulation and so merges as before.
func (t *Target) apply(f *Frame) error {
	if t.FromStackMap {
		f.restore(t.Locals, t.Stack)
		t.Visited = true
		return nil
	}
	locals, stack := f.snapshot()
	return t.merge(locals, stack)
}
