// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package classfile

import "github.com/squawk-vm/translator/log"

// Tracer is the process-wide, read-only-after-init configuration of
// spec.md §9 ("Global tracer and assertion helpers"): a set of named
// boolean feature flags, a filter predicate, a sink, and an asserts
// toggle, generalized from the teacher's per-File Options.Logger
// (file.go) to a single shared instance since spec.md §5 treats the
// tracer sink as a process-wide, best-effort, possibly-dropping
// resource rather than a per-parse one.
type Tracer struct {
	features map[string]bool
	filter   func(string) bool
	sink     *log.Helper
	asserts  bool
}

// NewTracer builds a Tracer. sink may be nil, in which case tracing is
// silently discarded.
func NewTracer(sink *log.Helper) *Tracer {
	if sink == nil {
		sink = log.NewHelper(log.NewNopLogger())
	}
	return &Tracer{features: make(map[string]bool), sink: sink}
}

// SetFeature enables or disables a named feature flag. Intended to be
// called once during initialization; the tracer is read-only thereafter
// from the parser's point of view.
func (t *Tracer) SetFeature(name string, enabled bool) {
	t.features[name] = enabled
}

// Feature reports whether a named feature is enabled.
func (t *Tracer) Feature(name string) bool {
	if t == nil {
		return false
	}
	return t.features[name]
}

// SetFilter installs a predicate used to decide whether a given class or
// method name should be traced.
func (t *Tracer) SetFilter(f func(string) bool) { t.filter = f }

// Filter reports whether name passes the installed filter (everything
// passes if no filter was installed).
func (t *Tracer) Filter(name string) bool {
	if t == nil || t.filter == nil {
		return true
	}
	return t.filter(name)
}

// SetAsserts toggles whether internal consistency assertions run.
func (t *Tracer) SetAsserts(enabled bool) { t.asserts = enabled }

// AssertsEnabled reports whether internal consistency assertions should
// run. Call sites that check this guard expensive double-checks of
// invariants already enforced by construction (e.g. re-walking a Target
// map to confirm address ordering) that are worth paying for only under
// a debug build.
func (t *Tracer) AssertsEnabled() bool {
	return t != nil && t.asserts
}

// Tracef routes a formatted trace line to the sink, if name passes the
// installed filter and the sink is non-nil. Best-effort: a full or
// unavailable sink may drop the line (spec.md §5).
func (t *Tracer) Tracef(name, format string, args ...interface{}) {
	if t == nil || !t.Filter(name) {
		return
	}
	t.sink.Debugf(format, args...)
}
