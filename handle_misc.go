package ftpserver

import (
	"fmt"
	"time"
)

// handleNOOP implements NOOP: do nothing, reply 200.
func (s *Session) handleNOOP(_ string) error {
	s.writeMessage(StatusOK, "OK")

	return nil
}

// handleSYST implements SYST: always reports UNIX Type: L8, matching the
// teacher library's fixed answer (the underlying filesystem may not be
// UNIX at all, but this is what every real-world client expects to parse).
func (s *Session) handleSYST(_ string) error {
	s.writeMessage(StatusSystemType, "UNIX Type: L8")

	return nil
}

// handleFEAT implements FEAT: advertise the extensions this server actually
// implements, per spec.md §4.11's FEAT table.
func (s *Session) handleFEAT(_ string) error {
	end := s.multilineAnswer(StatusSystemStatus, "Extensions supported")
	defer end()

	for _, f := range []string{"SIZE", "MDTM", "REST STREAM"} {
		s.writeLine(" " + f + "\r\n")
	}

	return nil
}

// handleSTAT implements STAT. Without an argument it reports session
// status; spec.md scopes out per-file STAT, so an argument is rejected.
func (s *Session) handleSTAT(arg string) error {
	if arg != "" {
		s.writeMessage(StatusCommandNotImplemented, "Command not implemented, superfluous at this site")

		return nil
	}

	end := s.multilineAnswer(StatusSystemStatus, "Server status")
	defer end()

	s.mu.RLock()
	user := s.username
	cwd := s.cwd
	home := s.homeDir
	last := s.lastCommand
	connected := s.connectedAt
	idle := time.Since(s.lastActivity)
	s.mu.RUnlock()

	s.writeLine(fmt.Sprintf(" Connected to %s\r\n", s.conn.RemoteAddr()))

	if user != "" {
		s.writeLine(fmt.Sprintf(" Logged in as %s, home %s\r\n", user, home))
	} else {
		s.writeLine(" Not logged in\r\n")
	}

	s.writeLine(fmt.Sprintf(" Current directory: %s\r\n", cwd))
	s.writeLine(fmt.Sprintf(" Last command: %s\r\n", last))
	s.writeLine(fmt.Sprintf(" Connected since %s, idle %s\r\n",
		connected.Format(time.RFC3339), idle.Round(time.Second)))

	return nil
}

// handleHELP is an open-question stub: this server has no interactive help
// text to offer, so the command is accepted but reports nothing useful.
func (s *Session) handleHELP(_ string) error {
	s.writeMessage(StatusCommandNotImplemented, "Command not implemented, superfluous at this site")

	return nil
}

// handleSITE is an open-question stub: spec.md defines no SITE subcommands,
// so every SITE invocation is rejected the same way.
func (s *Session) handleSITE(_ string) error {
	s.writeMessage(StatusCommandNotImplemented, "Command not implemented, superfluous at this site")

	return nil
}

// handleSMNT is an open-question stub: structure mounting has no meaning in
// this server's single-root filesystem model.
func (s *Session) handleSMNT(_ string) error {
	s.writeMessage(StatusCommandNotImplemented, "Command not implemented, superfluous at this site")

	return nil
}

// handleALLO is an open-question stub: no preallocation is needed against
// the afero-backed filesystem, so ALLO is accepted but a no-op.
func (s *Session) handleALLO(_ string) error {
	s.writeMessage(StatusCommandNotImplemented, "Command not implemented, superfluous at this site")

	return nil
}

// handleSTOU is an open-question stub: spec.md's module list has no unique
// filename allocation scheme, so STOU is refused outright rather than
// guessing at naming semantics.
func (s *Session) handleSTOU(_ string) error {
	s.writeMessage(StatusNotImplemented, "Command not implemented")

	return nil
}

// handleTYPE implements TYPE: only ASCII (A) and Image/binary (I) are
// accepted; EBCDIC (E) is recognised but refused as unsupported.
func (s *Session) handleTYPE(arg string) error {
	t, ok := parseTYPE(arg)
	if !ok {
		s.writeMessage(StatusSyntaxErrorParameters, "Not understood")

		return nil
	}

	if t == TransferTypeEBCDIC {
		s.writeMessage(StatusNotImplementedParameter, "EBCDIC is not supported")

		return nil
	}

	s.mu.Lock()
	s.transferType = t
	s.mu.Unlock()

	s.writeMessage(StatusOK, "Type set to "+arg)

	return nil
}

// handleMODE implements MODE: only Stream (S) is supported; the other two
// legal RFC 959 letters are recognised but refused.
func (s *Session) handleMODE(arg string) error {
	m, ok := parseMODE(arg)
	if !ok {
		s.writeMessage(StatusSyntaxErrorParameters, "Not understood")

		return nil
	}

	if m != 'S' {
		s.writeMessage(StatusNotImplementedParameter, "Only Stream mode is supported")

		return nil
	}

	s.writeMessage(StatusOK, "Mode set to Stream")

	return nil
}

// handleSTRU implements STRU: only File (F) is supported.
func (s *Session) handleSTRU(arg string) error {
	st, ok := parseSTRU(arg)
	if !ok {
		s.writeMessage(StatusSyntaxErrorParameters, "Not understood")

		return nil
	}

	if st != 'F' {
		s.writeMessage(StatusNotImplementedParameter, "Only File structure is supported")

		return nil
	}

	s.writeMessage(StatusOK, "Structure set to File")

	return nil
}

// handleABOR aborts an in-flight transfer: reply 426 for the transfer
// being torn down, flag the worker to stop, force-close the data
// connection to unblock any pending I/O, and wait for the transfer
// goroutine to exit. That goroutine's own finishTransfer sends the
// terminal 226 reply. With nothing running there's nothing to abort;
// 225 says so.
func (s *Session) handleABOR(_ string) error {
	if !s.isTransferRunning() {
		s.writeMessage(StatusDataConnectionOpen, "No transfer in progress")

		return nil
	}

	s.writeMessage(StatusConnectionClosed, "Connection closed; transfer aborted")
	s.setAborted(true)
	s.closeDataConnection()
	s.transferWg.Wait()

	return nil
}
