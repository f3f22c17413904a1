package monitoring

import (
	"log"

	"go.uber.org/zap"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger or UseZap. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// Debugf receives per-level and per-file detail. It is silent until
// SetDebugLogger or UseZap installs a backend.
var Debugf func(format string, v ...interface{}) = func(string, ...interface{}) {}

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetDebugLogger replaces the debug logger. Passing nil silences it.
func SetDebugLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Debugf = func(string, ...interface{}) {}
		return
	}
	Debugf = f
}

// UseZap routes Logf to logger at info level and Debugf at debug level.
// Debug output only appears if logger's level enables it.
func UseZap(logger *zap.Logger) {
	sugar := logger.Sugar()
	SetLogger(sugar.Infof)
	SetDebugLogger(sugar.Debugf)
}

// NewZapLogger builds the command-line logger: the development config with
// debug output when debug is set, the production config otherwise.
func NewZapLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
