// Package oemlog provides the injected logging capability used across pkg/oem.
//
// The teacher repo (pkg/gnssgo/util.Tracet) exposes trace logging as a
// no-op placeholder called from package-level state. Per the redesign
// notes this is replaced with a small capability interface that every
// stateful component accepts through its constructor, so library code
// never reaches for a process-wide singleton.
package oemlog

import "github.com/sirupsen/logrus"

// Tracer is the logging capability injected into Framer, Decoder,
// Encoder, RangeDecompressor and Parser constructors. It mirrors the
// level argument of the teacher's Tracet(level int, format string,
// args ...interface{}) call sites: 1 error, 2 warn, 3 info, 4 and
// above debug.
type Tracer interface {
	Tracet(level int, format string, args ...interface{})
}

// logrusTracer adapts a *logrus.Logger (or logrus.FieldLogger) to Tracer.
type logrusTracer struct {
	log    logrus.FieldLogger
	fields logrus.Fields
}

// New wraps a logrus.FieldLogger as a Tracer. A nil logger falls back
// to logrus.StandardLogger(), matching the teacher's convention of a
// usable default when no logger is supplied.
func New(log logrus.FieldLogger, fields logrus.Fields) Tracer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &logrusTracer{log: log, fields: fields}
}

func (t *logrusTracer) Tracet(level int, format string, args ...interface{}) {
	entry := t.log.WithFields(t.fields)
	switch {
	case level <= 1:
		entry.Errorf(format, args...)
	case level == 2:
		entry.Warnf(format, args...)
	case level == 3:
		entry.Infof(format, args...)
	default:
		entry.Debugf(format, args...)
	}
}

// Discard is a Tracer that drops every message; it is the zero value
// components fall back to when constructed without a logger at all
// (as opposed to an explicit nil logrus.Logger, which still logs via
// the standard logger through New).
var Discard Tracer = discard{}

type discard struct{}

func (discard) Tracet(int, string, ...interface{}) {}
