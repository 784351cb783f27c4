package core

// Logger is implemented by services/logger; handlers and services log
// through it instead of the std logger so that error reporting (rollbar)
// can be swapped out in tests.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
