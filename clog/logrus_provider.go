package clog

import "github.com/sirupsen/logrus"

// logrusProvider is the default LogProvider, backed by a logrus.Entry so
// every line carries a "component" field and, once With is used, whatever
// structured fields the caller attached (association address, remote
// device, function code, ...).
type logrusProvider struct {
	entry *logrus.Entry
}

var _ LogProvider = logrusProvider{}
var _ FieldLogger = logrusProvider{}

func newLogrusProvider(component string) logrusProvider {
	return logrusProvider{entry: logrus.WithField("component", component)}
}

func (p logrusProvider) WithFields(f Fields) LogProvider {
	return logrusProvider{entry: p.entry.WithFields(logrus.Fields(f))}
}

// Critical logs at error level with a distinguishing field; it never
// terminates the process (a protocol engine handling one device's failure
// must not take the rest of the process down with it).
func (p logrusProvider) Critical(format string, v ...interface{}) {
	p.entry.WithField("severity", "critical").Errorf(format, v...)
}

func (p logrusProvider) Error(format string, v ...interface{}) {
	p.entry.Errorf(format, v...)
}

func (p logrusProvider) Warn(format string, v ...interface{}) {
	p.entry.Warnf(format, v...)
}

func (p logrusProvider) Debug(format string, v ...interface{}) {
	p.entry.Debugf(format, v...)
}
