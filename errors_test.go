// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package classfile

import (
	"errors"
	"testing"
)

func TestTranslationErrorChaining(t *testing.T) {
	cause := errors.New("boom")
	err := wrapError(ErrNoClassDef, cause, "class %s missing", "Foo").WithClass("Foo").WithOffset(12)

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if err.Kind != ErrNoClassDef {
		t.Errorf("Kind = %v, want ErrNoClassDef", err.Kind)
	}
	if err.Class != "Foo" {
		t.Errorf("Class = %q, want %q", err.Class, "Foo")
	}
	if err.Offset != 12 {
		t.Errorf("Offset = %d, want 12", err.Offset)
	}
	if got := err.Error(); got == "" {
		t.Error("Error() returned empty string")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want bool
	}{
		{ErrNoClassDef, true},
		{ErrClassFormat, false},
		{ErrVerify, false},
		{ErrClassCircularity, false},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			err := newError(tt.kind, "x")
			if got := err.IsRetryable(); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}
