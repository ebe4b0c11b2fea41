// Package monitoring holds the replaceable diagnostic logger shared by the
// tracking engine and its adapters.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Warnf reports a recoverable condition, such as a detection whose frame goes
// backwards, through Logf.
func Warnf(format string, v ...interface{}) {
	Logf("WARNING: "+format, v...)
}
