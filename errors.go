// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package classfile

import "fmt"

// ErrorKind identifies one of the eight translation-failure categories.
// Every failure raised anywhere in the pipeline carries exactly one kind.
type ErrorKind uint8

const (
	// ErrClassFormat covers malformed bytes, a bad magic, an invalid
	// constant-pool index, or a duplicated class member.
	ErrClassFormat ErrorKind = iota

	// ErrNoClassDef is raised when a referenced class is missing from the
	// classpath. Transitively-referenced classes may be retried once the
	// classpath changes; all other kinds are terminal for the class.
	ErrNoClassDef

	// ErrClassCircularity is raised when a class currently LOADING is
	// referenced, transitively, during its own load.
	ErrClassCircularity

	// ErrIncompatibleClassChange is raised for e.g. a non-interface used
	// where an interface was declared.
	ErrIncompatibleClassChange

	// ErrIllegalAccess is raised for a final-field write from outside its
	// defining class, or a private access from another class.
	ErrIllegalAccess

	// ErrVerify is raised by any failure of the abstract-interpretation
	// checks performed by the Frame/CodeParser.
	ErrVerify

	// ErrSignature is raised when the external signature provider rejects
	// a permit or domain on a Trusted attribute.
	ErrSignature

	// ErrInternal marks an assertion failure in the translator itself.
	ErrInternal
)

// String renders the kind the way it is named in diagnostics.
func (k ErrorKind) String() string {
	names := map[ErrorKind]string{
		ErrClassFormat:             "ClassFormat",
		ErrNoClassDef:              "NoClassDef",
		ErrClassCircularity:        "ClassCircularity",
		ErrIncompatibleClassChange: "IncompatibleClassChange",
		ErrIllegalAccess:           "IllegalAccess",
		ErrVerify:                  "Verify",
		ErrSignature:               "Signature",
		ErrInternal:                "Internal",
	}
	return names[k]
}

// TranslationError is the single error type produced by every stage of the
// pipeline. It always carries enough context to produce the one
// diagnostic line required by spec.md §7.
type TranslationError struct {
	Kind   ErrorKind
	Class  string // interned internal class name, if known
	Method string // method name, if the error occurred while parsing one
	Line   int    // source line, -1 if unavailable
	Offset int    // bytecode or byte-stream offset, -1 if unavailable
	Msg    string
	cause  error
}

// Error implements the error interface with the one-line diagnostic
// format spec.md §7 requires.
func (e *TranslationError) Error() string {
	s := fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	if e.Class != "" {
		s += fmt.Sprintf(" (class %s", e.Class)
		if e.Method != "" {
			s += fmt.Sprintf("#%s", e.Method)
		}
		if e.Offset >= 0 {
			s += fmt.Sprintf(" @%d", e.Offset)
		}
		s += ")"
	}
	return s
}

// Unwrap exposes the underlying cause, if any, for errors.Is/As.
func (e *TranslationError) Unwrap() error { return e.cause }

// newError builds a TranslationError with no offset/line context yet
// attached; callers fill in Class/Method/Offset/Line via the With*
// helpers below as the error propagates outward.
func newError(kind ErrorKind, format string, args ...interface{}) *TranslationError {
	return &TranslationError{
		Kind:   kind,
		Line:   -1,
		Offset: -1,
		Msg:    fmt.Sprintf(format, args...),
	}
}

func wrapError(kind ErrorKind, cause error, format string, args ...interface{}) *TranslationError {
	e := newError(kind, format, args...)
	e.cause = cause
	return e
}

// WithClass attaches the owning class name and returns the same error,
// for ergonomic chaining at call sites: `return err.WithClass(name)`.
func (e *TranslationError) WithClass(name string) *TranslationError {
	e.Class = name
	return e
}

// WithMethod attaches the owning method name.
func (e *TranslationError) WithMethod(name string) *TranslationError {
	e.Method = name
	return e
}

// WithOffset attaches a bytecode or byte-stream offset.
func (e *TranslationError) WithOffset(off int) *TranslationError {
	e.Offset = off
	return e
}

// WithLine attaches a source line number.
func (e *TranslationError) WithLine(line int) *TranslationError {
	e.Line = line
	return e
}

// IsRetryable reports whether a fresh classpath scan could resolve this
// error: true for every NoClassDef error, false for every other kind. The
// error does not record whether the missing class was referenced directly
// or transitively, so that distinction is not made here.
func (e *TranslationError) IsRetryable() bool {
	return e.Kind == ErrNoClassDef
}
