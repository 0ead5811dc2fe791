// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package log is a small leveled logger, rebuilt from the call-site
// shape of the teacher's own github.com/saferwall/pe/log subpackage
// (visible in file.go: log.NewStdLogger, log.NewFilter, log.FilterLevel,
// log.LevelError, log.NewHelper, and the Debugf/Infof/Warnf/Errorf
// methods on the resulting Helper) — that subpackage's source was not
// included in the retrieval pack, so it is reconstructed here to the
// same API rather than invented from nothing.
package log

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Level is a logging severity.
type Level int

// Severities, ordered from least to most severe.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger is the minimal sink every component in the translator logs
// through.
type Logger interface {
	Log(level Level, msg string)
}

// stdLogger writes timestamped, leveled lines to an io.Writer.
type stdLogger struct {
	w io.Writer
}

// NewStdLogger returns a Logger that writes to w.
func NewStdLogger(w io.Writer) Logger {
	return &stdLogger{w: w}
}

func (s *stdLogger) Log(level Level, msg string) {
	fmt.Fprintf(s.w, "%s %s %s\n", time.Now().Format(time.RFC3339), level, msg)
}

// NewNopLogger returns a Logger that discards everything, used when the
// caller supplies no logger at all.
func NewNopLogger() Logger { return NewStdLogger(io.Discard) }

// filterLogger drops any record below its configured minimum level.
type filterLogger struct {
	next Logger
	min  Level
}

// FilterOption configures a filterLogger.
type FilterOption func(*filterLogger)

// FilterLevel sets the minimum level that passes through the filter.
func FilterLevel(min Level) FilterOption {
	return func(f *filterLogger) { f.min = min }
}

// NewFilter wraps next with a minimum-severity filter.
func NewFilter(next Logger, opts ...FilterOption) Logger {
	f := &filterLogger{next: next, min: LevelDebug}
	for _, o := range opts {
		o(f)
	}
	return f
}

func (f *filterLogger) Log(level Level, msg string) {
	if level < f.min {
		return
	}
	f.next.Log(level, msg)
}

// Helper adds the printf-style convenience methods every call site in
// the translator actually uses.
type Helper struct {
	logger Logger
}

// NewHelper wraps logger in printf-style convenience methods.
func NewHelper(logger Logger) *Helper {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Helper{logger: logger}
}

func (h *Helper) Debugf(format string, args ...interface{}) {
	h.logger.Log(LevelDebug, fmt.Sprintf(format, args...))
}

func (h *Helper) Infof(format string, args ...interface{}) {
	h.logger.Log(LevelInfo, fmt.Sprintf(format, args...))
}

func (h *Helper) Warnf(format string, args ...interface{}) {
	h.logger.Log(LevelWarn, fmt.Sprintf(format, args...))
}

func (h *Helper) Errorf(format string, args ...interface{}) {
	h.logger.Log(LevelError, fmt.Sprintf(format, args...))
}

// Default is a process-wide helper writing to stderr at WARN and above,
// used wherever a component isn't handed an explicit logger.
var Default = NewHelper(NewFilter(NewStdLogger(os.Stderr), FilterLevel(LevelWarn)))
