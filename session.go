package ftpserver

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/coreftpd/ftpserver/log"
)

// SessionState is the authentication state machine.
type SessionState int

// Session states.
const (
	StateConnected SessionState = iota
	StateWaitPassword
	StateAuthenticated
	StateClosing
)

// TransferType is the negotiated TYPE for bulk transfers.
type TransferType int

// Supported (and rejected) transfer types.
const (
	TransferTypeASCII TransferType = iota
	TransferTypeBinary
	TransferTypeEBCDIC
)

// DataMode tracks which data-connection setup is active for a session.
type DataMode int

// Data connection modes.
const (
	DataModeNone DataMode = iota
	DataModeActive
	DataModePassive
)

// Session holds all per-connection state for one client.
// It is owned exclusively by its own worker goroutine; fields touched by
// more than one goroutine (the transfer worker in particular) go through mu.
type Session struct {
	id     uint32
	server *Server
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
	logger log.Logger

	mu sync.RWMutex

	state       SessionState
	username    string
	user        *User
	rootDir     string
	cwd         string
	homeDir     string
	lastCommand string

	transferType TransferType

	dataMode DataMode

	restartOffset int64
	renameFrom    string
	shouldQuit    bool

	connectedAt  time.Time
	lastActivity time.Time

	commandsReceived uint64
	bytesUploaded    uint64
	bytesDownloaded  uint64
	filesUploaded    uint64
	filesDownloaded  uint64

	transferWg      sync.WaitGroup
	transferMu      sync.Mutex
	transfer        dataConnHandler
	shouldAbort     bool
	transferRunning bool

	// writeMu serialises control-channel writes: the session goroutine and a
	// transfer worker may both reply (ABOR's 426 vs the worker's terminal 226).
	writeMu sync.Mutex
}

func newSession(server *Server, conn net.Conn, id uint32) *Session {
	return &Session{
		id:           id,
		server:       server,
		conn:         conn,
		reader:       bufio.NewReader(conn),
		writer:       bufio.NewWriter(conn),
		logger:       server.logger.With("sessionId", id),
		state:        StateConnected,
		rootDir:      server.settings.RootDir,
		cwd:          "/",
		connectedAt:  time.Now().UTC(),
		lastActivity: time.Now().UTC(),
	}
}

// run is the session worker entry point: send the greeting, then loop
// reading and dispatching commands until the client disconnects, times
// out, or issues QUIT.
func (s *Session) run() {
	defer s.end()

	s.writeMessage(StatusServiceReady, s.server.settings.Banner)

	for {
		if s.server.settings.IdleTimeout > 0 {
			if err := s.conn.SetDeadline(time.Now().Add(s.server.settings.IdleTimeout)); err != nil {
				s.logger.Error("could not set read deadline", "err", err)
			}
		}

		line, err := s.reader.ReadString('\n')
		if err != nil {
			s.handleStreamError(err)

			return
		}

		s.handleLine(line)

		if s.isQuitting() {
			return
		}
	}
}

func (s *Session) isQuitting() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.shouldQuit
}

func (s *Session) handleStreamError(err error) {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		s.logger.Info("client idle timeout", "err", err)
		s.writeMessage(StatusServiceNotAvailable, "command timeout: closing control connection")

		return
	}

	if err != io.EOF {
		s.logger.Error("read error", "err", err)
	}
}

// handleLine parses and dispatches one control line.
func (s *Session) handleLine(line string) {
	verb, arg, ok := parseCommandLine(line)
	if !ok {
		s.writeMessage(StatusSyntaxErrorNotRecognised, "Syntax error, command unrecognized")

		return
	}

	s.logger.Debug("FTP RECV", "command", verb)

	desc, ok := commandRegistry[verb]
	if !ok {
		s.setLastCommand(verb)
		s.writeMessage(StatusNotImplemented, fmt.Sprintf("Command not implemented: %s", verb))

		return
	}

	if !s.isAuthenticated() && !desc.Open {
		s.writeMessage(StatusNotLoggedIn, "Please login with USER and PASS")

		return
	}

	if !desc.SpecialAction {
		s.transferWg.Wait()
	}

	s.runPreHook(desc.PreHook)
	s.setLastCommand(verb)

	s.mu.Lock()
	s.commandsReceived++
	s.lastActivity = time.Now().UTC()
	s.mu.Unlock()

	if desc.TransferRelated {
		s.setAborted(false)
		s.setTransferRunning(true)
		s.transferWg.Add(1)

		go func() {
			defer s.transferWg.Done()
			defer s.setTransferRunning(false)
			s.executeCommand(desc, arg)
		}()
	} else {
		s.executeCommand(desc, arg)
	}
}

func (s *Session) executeCommand(desc *commandDescription, arg string) {
	defer func() {
		if r := recover(); r != nil {
			s.writeMessage(StatusActionAborted, fmt.Sprintf("Unhandled internal error: %v", r))
			s.logger.Warn("internal command handling error", "err", r)
		}
	}()

	if err := desc.Fn(s, arg); err != nil {
		s.writeMessage(StatusActionAborted, fmt.Sprintf("Error: %v", err))
	}
}

// runPreHook clears stale restart/rename state before the handler runs, so
// that only directly-chained commands (REST; STOR, RNFR; RNTO) see it.
func (s *Session) runPreHook(kind preHookKind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case preHookClearRestart:
		s.restartOffset = 0
	case preHookClearRename:
		s.renameFrom = ""
	case preHookClearAll:
		s.restartOffset = 0
		s.renameFrom = ""
	}
}

func (s *Session) end() {
	s.closeDataConnection()
	s.transferWg.Wait()
	s.conn.Close()
	s.server.clientDeparture()
}

// --- small accessors, mirroring the teacher's paramsMutex pattern ---

func (s *Session) isAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state == StateAuthenticated
}

func (s *Session) setLastCommand(cmd string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastCommand = cmd
}

func (s *Session) currentUser() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.user
}

func (s *Session) currentPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cwd
}

func (s *Session) setPath(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cwd = p
}

func (s *Session) resolve(input string) (virtualPath, realPath string) {
	return resolve(s.rootDir, s.currentPath(), input)
}

func (s *Session) checkAccess(virtualPath string, required Permission) bool {
	s.mu.RLock()
	authenticated := s.state == StateAuthenticated
	user := s.user
	s.mu.RUnlock()

	return checkPathAccess(authenticated, user, virtualPath, required)
}

func (s *Session) setAborted(v bool) {
	s.transferMu.Lock()
	defer s.transferMu.Unlock()

	s.shouldAbort = v
}

func (s *Session) isAborted() bool {
	s.transferMu.Lock()
	defer s.transferMu.Unlock()

	return s.shouldAbort
}

func (s *Session) setTransferRunning(v bool) {
	s.transferMu.Lock()
	defer s.transferMu.Unlock()

	s.transferRunning = v
}

func (s *Session) isTransferRunning() bool {
	s.transferMu.Lock()
	defer s.transferMu.Unlock()

	return s.transferRunning
}

// --- reply writing ---

func (s *Session) writeLine(line string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.writer.WriteString(line); err != nil {
		s.logger.Warn("answer couldn't be sent", "err", err)
	}

	if err := s.writer.Flush(); err != nil {
		s.logger.Warn("couldn't flush line", "err", err)
	}
}

func (s *Session) writeMessage(code int, message string) {
	lines := messageLines(message)
	s.writeLine(formatReplyLines(code, lines))
}

// multilineAnswer writes the opening line of a multi-line reply and
// returns a closer that writes the terminating line, mirroring the
// teacher's helper of the same name.
func (s *Session) multilineAnswer(code int, message string) func() {
	s.writeLine(fmt.Sprintf("%d-%s\r\n", code, message))

	return func() {
		s.writeLine(fmt.Sprintf("%d End\r\n", code))
	}
}

func quoteDoubling(str string) string {
	if !strings.Contains(str, "\"") {
		return str
	}

	return strings.ReplaceAll(str, "\"", `""`)
}
