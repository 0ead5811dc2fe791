// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package classfile

// readClassAttribute parses one top-level class attribute: SourceFile and
// the Trusted attribute are understood; any other attribute is recorded
// as an anomaly on k and its body skipped. A panic while parsing a body
// is recovered, the way the teacher's ParseDataDirectories recovers per
// directory entry (file.go), and noted as an anomaly, but it is also
// returned as an ErrClassFormat error, and Load aborts the whole class on
// any error returned here.
func (l *ClassFileLoader) readClassAttribute(r *Reader, k *Klass) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			k.AddAnomaly("recovered from panic parsing class attribute")
			err = newError(ErrClassFormat, "panic parsing class attribute: %v", rec).WithClass(k.Name)
		}
	}()

	name, body, err := l.readRawAttribute(r)
	if err != nil {
		return err
	}

	switch name {
	case "SourceFile":
		idx, err := body.ReadU2()
		if err != nil {
			return err
		}
		sf, err := l.pool.Utf8(idx)
		if err != nil {
			return err
		}
		k.SourceFile = sf
	case "Trusted":
		ta, err := parseTrustedAttribute(body, l)
		if err != nil {
			return err
		}
		k.Trusted = ta
	default:
		k.AddAnomaly("unrecognized class attribute " + name)
	}
	return body.AssertEOF()
}

// parseLineNumberTable parses a LineNumberTable attribute body into a
// sorted-by-pc list of (startPC, line) pairs.
func parseLineNumberTable(r *Reader) ([]LineNumberEntry, error) {
	count, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	out := make([]LineNumberEntry, count)
	for i := range out {
		pc, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		line, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		out[i] = LineNumberEntry{StartPC: int(pc), Line: int(line)}
	}
	return out, r.AssertEOF()
}

// parseLocalVariableTable parses a LocalVariableTable attribute body.
func parseLocalVariableTable(l *ClassFileLoader, r *Reader) ([]LocalVariableEntry, error) {
	count, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	out := make([]LocalVariableEntry, count)
	for i := range out {
		startPC, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		length, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		nameIdx, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		name, err := l.pool.Utf8(nameIdx)
		if err != nil {
			return nil, err
		}
		descIdx, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		desc, err := l.pool.Utf8(descIdx)
		if err != nil {
			return nil, err
		}
		index, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		out[i] = LocalVariableEntry{
			StartPC: int(startPC), Length: int(length), Name: name, Signature: desc, Index: int(index),
		}
	}
	return out, r.AssertEOF()
}

// StackMapFrameEntry is one parsed entry of a CLDC-preverifier StackMap
// attribute (spec.md §4.D): the recorded locals/stack shape a Target
// pins at a given bytecode offset, rather than one derived by forward
// simulation.
type StackMapFrameEntry struct {
	PC     int
	Locals []TypeCategory
	Stack  []TypeCategory
}

// parseStackMap parses a CLDC StackMap attribute body: offset-delta
// encoded frames, each carrying an explicit locals list and stack list
// (the older, simpler precursor to the JVM's StackMapTable — Squawk's
// preverifier format per spec.md §4.D, not the mainline JDK's
// StackMapTable attribute).
func parseStackMap(l *ClassFileLoader, r *Reader) ([]StackMapFrameEntry, error) {
	count, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	out := make([]StackMapFrameEntry, count)
	for i := range out {
		pc, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		locals, err := parseVerificationTypeList(l, r)
		if err != nil {
			return nil, err
		}
		stack, err := parseVerificationTypeList(l, r)
		if err != nil {
			return nil, err
		}
		out[i] = StackMapFrameEntry{PC: int(pc), Locals: locals, Stack: stack}
	}
	return out, r.AssertEOF()
}

// Verification-type tags, the CLDC StackMap's own tag space (not the
// JDK StackMapTable's; spec.md §4.D).
const (
	vtTop     = 0
	vtInt     = 1
	vtFloat   = 2
	vtDouble  = 3
	vtLong    = 4
	vtNull    = 5
	vtObject  = 7
	vtAddress = 8
	vtUWord   = 9
	vtOffset  = 10
)

func parseVerificationTypeList(l *ClassFileLoader, r *Reader) ([]TypeCategory, error) {
	count, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	out := make([]TypeCategory, 0, count)
	for i := 0; i < int(count); i++ {
		tag, err := r.ReadU1()
		if err != nil {
			return nil, err
		}
		switch tag {
		case vtTop:
			out = append(out, CategoryVoid)
		case vtInt:
			out = append(out, CategoryInt)
		case vtFloat:
			out = append(out, CategoryFloat)
		case vtDouble:
			out = append(out, CategoryDouble)
		case vtLong:
			out = append(out, CategoryLong)
		case vtNull, vtObject:
			if _, err := r.ReadU2(); err != nil { // class-index operand, not re-resolved here
				return nil, err
			}
			out = append(out, CategoryReference)
		case vtAddress:
			out = append(out, CategoryAddress)
		case vtUWord:
			out = append(out, CategoryUWord)
		case vtOffset:
			out = append(out, CategoryOffset)
		default:
			return nil, newError(ErrClassFormat, "StackMap: unrecognized verification type tag %d", tag)
		}
	}
	return out, nil
}
