// Package log provides the logging seam every component of the server
// writes through: acceptor, session, transfer worker, auth store and
// lock table all take a Logger instead of talking to an output directly.
package log

import (
	golog "github.com/fclairamb/go-log"
)

// Logger is the fclairamb/go-log generic logger interface.
type Logger = golog.Logger
