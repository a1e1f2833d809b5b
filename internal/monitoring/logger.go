package monitoring

import (
	"log"
	"os"
)

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

// Debugf logs only when POTIONFLOW_DEBUG is set in the environment.
func Debugf(format string, v ...interface{}) {
	if os.Getenv("POTIONFLOW_DEBUG") == "" {
		return
	}
	Logf("[debug] "+format, v...)
}
