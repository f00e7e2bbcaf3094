// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package logger

import (
	"io"
	"os"

	"github.com/juju/loggo/v2"
)

// Logger is the diagnostics sink used by the watcher. Each method takes a
// free-form format string and its arguments.
type Logger interface {
	Tracef(string, ...interface{})
	Debugf(string, ...interface{})
	Infof(string, ...interface{})
	Warningf(string, ...interface{})
	Errorf(string, ...interface{})
}

// Module is the name the default sink logs under.
const Module = "casbinwatcher"

// New returns a Logger writing to w at the given level. Each Logger is
// backed by its own loggo context, so no state is shared with the global
// loggo registry or with other Loggers.
func New(w io.Writer, level loggo.Level) Logger {
	ctx := loggo.NewContext(level)
	// A freshly created context has no writers, so this can not collide.
	_ = ctx.AddWriter("default", loggo.NewSimpleWriter(w, loggo.DefaultFormatter))
	return ctx.GetLogger(Module)
}

// Default returns the standard diagnostics sink, writing to the process's
// standard error at DEBUG.
func Default() Logger {
	return New(os.Stderr, loggo.DEBUG)
}
