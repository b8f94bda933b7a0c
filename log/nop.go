package log

import (
	lognoop "github.com/fclairamb/go-log/noop"
)

// NewNopLogger returns a Logger that discards everything it's given, used
// as the server's default before a concrete logger is wired in and in
// tests that don't care about log output.
func NewNopLogger() Logger {
	return lognoop.NewNoOpLogger()
}
