// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package classfile

// Modifier is the JVM access/property flag bit-set shared by classes,
// fields, and methods. The real JVM flags all fit in the low 16 bits;
// the translator-internal flags below (AccConstructor and friends) use
// the high bits of this wider type so they can ride alongside the real
// ones without a second field on every call site.
type Modifier uint32

// Access/property flags, as laid out in the class-file spec.
const (
	AccPublic       Modifier = 0x0001
	AccPrivate      Modifier = 0x0002
	AccProtected    Modifier = 0x0004
	AccStatic       Modifier = 0x0008
	AccFinal        Modifier = 0x0010
	AccSuper        Modifier = 0x0020
	AccSynchronized Modifier = 0x0020
	AccVolatile     Modifier = 0x0040
	AccBridge       Modifier = 0x0040
	AccTransient    Modifier = 0x0080
	AccVarargs      Modifier = 0x0080
	AccNative       Modifier = 0x0100
	AccInterface    Modifier = 0x0200
	AccAbstract     Modifier = 0x0400
	AccStrict       Modifier = 0x0800
	AccSynthetic    Modifier = 0x1000
	AccAnnotation   Modifier = 0x2000
	AccEnum         Modifier = 0x4000

	// Constructor, CLASSINITIALIZER and CONSTANT are translator-internal
	// flags (spec.md §4.C step 6 and §3's Method/Field data model) with
	// no JVM bit equivalent; they ride in the high bits alongside the
	// real modifiers so the rest of the pipeline can treat them
	// uniformly through a single Modifiers field.
	AccConstructor      Modifier = 0x0001_0000
	AccClassInitializer Modifier = 0x0002_0000
	AccConstant         Modifier = 0x0004_0000
)

func (m Modifier) has(bit Modifier) bool { return m&bit != 0 }

// Has reports whether m carries bit.
func (m Modifier) Has(bit Modifier) bool { return m.has(bit) }

// ClassState is the linear state machine of spec.md §3: a class cannot
// transition backwards except into ERROR, and once LOADED its shape is
// frozen.
type ClassState uint8

const (
	StateDefined ClassState = iota
	StateLoading
	StateLoaded
	StateVerified
	StateError
)

// String names the state, mirroring the teacher's
// ImageDirectoryEntry.String() pattern (file.go).
func (s ClassState) String() string {
	names := [...]string{"DEFINED", "LOADING", "LOADED", "VERIFIED", "ERROR"}
	if int(s) < len(names) {
		return names[s]
	}
	return "?"
}

// CanAdvanceTo reports whether the monotonic-advance invariant of
// spec.md §3 permits the transition from s to next (ERROR is always
// reachable).
func (s ClassState) CanAdvanceTo(next ClassState) bool {
	if next == StateError {
		return true
	}
	return next > s
}

// ClassID is a stable small integer identifying a primitive type or a
// well-known class (spec.md §3, "Klass"). The exact numbering is a
// translator-internal convention; only the well-known primitive IDs
// below are fixed by this module, matching the ones minfo.go's type
// table needs to write (spec.md §6).
type ClassID uint16

const (
	CIDVoid ClassID = iota
	CIDBoolean
	CIDByte
	CIDChar
	CIDShort
	CIDInt
	CIDLong
	CIDFloat
	CIDDouble
	CIDAddress
	CIDUWord
	CIDOffset
	CIDObject
	CIDFirstUserClass
)

// Klass is the named, internable class descriptor of spec.md §3.
// Identity is by interned internal name; once State reaches LOADED the
// shape described here is frozen.
type Klass struct {
	Name       string // slash-separated internal name
	Modifiers  Modifier
	Super      *Klass
	Interfaces []*Klass

	InstanceFields []*Field
	StaticFields   []*Field
	VirtualMethods []*Method
	StaticMethods  []*Method

	State   ClassState
	ClassID ClassID

	IsArray       bool
	ComponentType *Klass

	SourceFile string
	Trusted    *TrustedAttribute
	Anomalies  []string

	pool *ConstantPool
}

// IsInterface reports whether the class is an interface.
func (k *Klass) IsInterface() bool { return k.Modifiers.Has(AccInterface) }

// IsAbstract reports whether the class is abstract.
func (k *Klass) IsAbstract() bool { return k.Modifiers.Has(AccAbstract) }

// setState advances the class's state, enforcing the monotonic-advance
// invariant; callers never need to check CanAdvanceTo themselves.
func (k *Klass) setState(next ClassState) error {
	if !k.State.CanAdvanceTo(next) {
		return newError(ErrInternal, "class %s: illegal state transition %s -> %s", k.Name, k.State, next).WithClass(k.Name)
	}
	k.State = next
	return nil
}

// AddAnomaly records a non-fatal oddity without failing the load,
// mirroring the teacher's File.Anomalies field (file.go) and its
// Ano* string constants (anomaly.go).
func (k *Klass) AddAnomaly(msg string) {
	k.Anomalies = append(k.Anomalies, msg)
}

// Field is spec.md §3's field shape.
type Field struct {
	Name          string
	Descriptor    string
	Type          *FieldType
	Modifiers     Modifier
	Owner         *Klass      `json:"-"`
	ConstantValue interface{} // set, with AccConstant, for a static final with a ConstantValue attribute
}

// Method is spec.md §3's method shape. Constructors are represented as
// static methods whose return type has been rewritten to the defining
// class (spec.md §3's explicit re-architecture decision, discussed
// further in spec.md §9).
type Method struct {
	Name       string
	Descriptor string
	Signature  *MethodDescriptor
	Owner      *Klass `json:"-"`
	Modifiers  Modifier

	Code               *MethodBody
	ExceptionTable     []ExceptionTableEntry
	LineNumberTable    []LineNumberEntry
	LocalVariableTable []LocalVariableEntry

	MaxStack  int
	MaxLocals int
}

// IsConstructor reports whether this method is a rewritten `<init>`.
func (m *Method) IsConstructor() bool { return m.Modifiers.Has(AccConstructor) }

// IsClassInitializer reports whether this method is `<clinit>`.
func (m *Method) IsClassInitializer() bool { return m.Modifiers.Has(AccClassInitializer) }

// ExceptionTableEntry is one row of a method's exception table (also the
// shape written out by the Minfo encoder, spec.md §6).
type ExceptionTableEntry struct {
	StartPC   int
	EndPC     int
	HandlerPC int
	CatchType ClassID // 0 means catch-all (a `finally` handler)
}

// LineNumberEntry maps a bytecode offset to a source line.
type LineNumberEntry struct {
	StartPC int
	Line    int
}

// LocalVariableEntry is one row of a method's local-variable table.
type LocalVariableEntry struct {
	StartPC   int
	Length    int
	Name      string
	Signature string
	Index     int
}
