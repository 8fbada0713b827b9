package distcp

import "github.com/sirupsen/logrus"

// log is the package-wide structured logger, called as
// Debugf(path, format, args...) / Errorf(path, format, args...) so the
// path under operation becomes a structured field instead of an
// interpolated string.
var log = logrus.New()

// SetLogger replaces the package logger, e.g. to change level or
// formatter from a CLI entry point.
func SetLogger(l *logrus.Logger) { log = l }

// Debugf logs an expected, debug-level branch (skip decisions,
// directory creation) against path.
func Debugf(path Path, format string, args ...interface{}) {
	log.WithField("path", string(path)).Debugf(format, args...)
}

// Errorf logs an unexpected, error-level failure against path.
func Errorf(path Path, format string, args ...interface{}) {
	log.WithField("path", string(path)).Errorf(format, args...)
}

// Infof logs a normal informational event against path.
func Infof(path Path, format string, args ...interface{}) {
	log.WithField("path", string(path)).Infof(format, args...)
}
