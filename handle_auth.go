package ftpserver

import "fmt"

// handleUSER implements the CONNECTED -> WAIT_PASSWORD transition.
func (s *Session) handleUSER(arg string) error {
	known := s.server.auth.knownForUSER(arg)
	if !known {
		s.writeMessage(StatusNotLoggedIn, "Unknown user")

		return nil
	}

	s.mu.Lock()
	s.username = arg
	s.state = StateWaitPassword
	s.mu.Unlock()

	s.writeMessage(StatusUserOK, fmt.Sprintf("User %s OK, password required", arg))

	return nil
}

// handlePASS implements the WAIT_PASSWORD -> AUTHENTICATED transition.
func (s *Session) handlePASS(arg string) error {
	s.mu.RLock()
	state := s.state
	username := s.username
	s.mu.RUnlock()

	if state == StateConnected {
		s.writeMessage(StatusBadCommandSequence, "Login with USER first")

		return nil
	}

	user, ok := s.server.auth.authenticate(username, arg)

	s.mu.Lock()
	if !ok {
		s.state = StateConnected
		s.username = ""
		s.mu.Unlock()
		s.writeMessage(StatusNotLoggedIn, "Authentication failed")

		return nil
	}

	home := user.Home
	if home == "" {
		home = "/"
	}

	s.state = StateAuthenticated
	s.user = user
	s.homeDir = user.Home
	s.cwd = home
	s.mu.Unlock()

	s.writeMessage(StatusUserLoggedIn, "Password ok, continue")

	return nil
}

// handleACCT is an open-question stub: the account-modifier concept is
// accepted syntactically but never required by this server's user model.
func (s *Session) handleACCT(_ string) error {
	s.writeMessage(StatusCommandNotImplemented, "Command not implemented, superfluous at this site")

	return nil
}

// handleQUIT implements the AUTHENTICATED -> closing transition; it is also
// legal from any pre-authentication state.
func (s *Session) handleQUIT(_ string) error {
	s.mu.Lock()
	s.shouldQuit = true
	uploaded := s.filesUploaded
	downloaded := s.filesDownloaded
	s.mu.Unlock()

	s.writeMessage(StatusClosingControlConn,
		fmt.Sprintf("Goodbye, %d file(s) uploaded, %d file(s) downloaded", uploaded, downloaded))

	return nil
}

// handleREIN resets authentication and transfer state while preserving
// session statistics, per the session-scoped REIN transition.
func (s *Session) handleREIN(_ string) error {
	s.closeDataConnection()

	s.mu.Lock()
	s.state = StateConnected
	s.username = ""
	s.user = nil
	s.cwd = "/"
	s.homeDir = ""
	s.transferType = TransferTypeASCII
	s.restartOffset = 0
	s.renameFrom = ""
	s.mu.Unlock()

	s.setAborted(false)

	s.writeMessage(StatusServiceReady, "Ready for new user")

	return nil
}
