// Copyright 2020 thinkgos (thinkgo@aliyun.com).  All rights reserved.
// Use of this source code is governed by a version 3 of the GNU General
// Public License, license that can be found in the LICENSE file.

// Package clog is the internal logging facade shared by every protocol
// engine in this module. Callers log through a Clog value; the sink
// (logrus-backed by default) is swapped via SetLogProvider without
// touching call sites.
package clog

import "sync/atomic"

// LogProvider RFC5424 log message levels only Critical Error Warn and Debug.
type LogProvider interface {
	Critical(format string, v ...interface{})
	Error(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Debug(format string, v ...interface{})
}

// Fields is a set of structured attributes (association address, remote
// device, function code, ...) attached to a log line. Providers that
// don't support structured fields are used as-is via LogProvider.
type Fields map[string]interface{}

// FieldLogger is implemented by providers that can attach Fields.
type FieldLogger interface {
	WithFields(f Fields) LogProvider
}

// Clog gates a LogProvider behind an atomic enable flag so call sites pay
// only the cost of building the format string when logging is on.
type Clog struct {
	provider LogProvider
	// is log output enabled,1: enable, 0: disable
	has uint32
}

// NewLogger creates a Clog backed by the default logrus provider, with the
// given component name attached as a "component" field.
func NewLogger(component string) Clog {
	return Clog{
		provider: newLogrusProvider(component),
		has:      1,
	}
}

// LogMode set enable or disable log output when you has set provider
func (sf *Clog) LogMode(enable bool) {
	if enable {
		atomic.StoreUint32(&sf.has, 1)
	} else {
		atomic.StoreUint32(&sf.has, 0)
	}
}

// SetLogProvider set provider provider
func (sf *Clog) SetLogProvider(p LogProvider) {
	if p != nil {
		sf.provider = p
	}
}

// With returns a derived Clog carrying the given structured fields, when
// the current provider implements FieldLogger; otherwise returns sf as-is.
func (sf Clog) With(f Fields) Clog {
	if fl, ok := sf.provider.(FieldLogger); ok {
		return Clog{provider: fl.WithFields(f), has: sf.has}
	}
	return sf
}

// Critical Log CRITICAL level message.
func (sf Clog) Critical(format string, v ...interface{}) {
	if atomic.LoadUint32(&sf.has) == 1 {
		sf.provider.Critical(format, v...)
	}
}

// Error Log ERROR level message.
func (sf Clog) Error(format string, v ...interface{}) {
	if atomic.LoadUint32(&sf.has) == 1 {
		sf.provider.Error(format, v...)
	}
}

// Warn Log WARN level message.
func (sf Clog) Warn(format string, v ...interface{}) {
	if atomic.LoadUint32(&sf.has) == 1 {
		sf.provider.Warn(format, v...)
	}
}

// Debug Log DEBUG level message.
func (sf Clog) Debug(format string, v ...interface{}) {
	if atomic.LoadUint32(&sf.has) == 1 {
		sf.provider.Debug(format, v...)
	}
}
