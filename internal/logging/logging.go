// Package logging provides the package-level diagnostic logger shared by the
// screening core. It defaults to the standard logger and may be swapped out
// by the server entrypoint or by tests.
package logging

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but
// may be replaced with SetLogger. Tests redirect or mute it; production code
// may point it at a structured sink.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
