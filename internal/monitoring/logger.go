package monitoring

import "log"

// Logf is the package-level diagnostic logger used throughout the planner.
// It defaults to log.Printf; SetLogger can redirect it (daemon) or mute it
// (tests exercising degraded-input paths).
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
