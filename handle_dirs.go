package ftpserver

import (
	"fmt"
	"os"
)

// handleCWD implements CWD: resolve the target, verify it exists and is a
// directory, then make it the session's current virtual directory.
func (s *Session) handleCWD(arg string) error {
	virtualPath, realPath := s.resolve(arg)

	if !s.checkAccess(virtualPath, PermRead) {
		s.writeMessage(StatusActionNotTakenNoFile, "Permission denied")

		return nil
	}

	info, err := s.server.fs.Stat(realPath)
	if err != nil || !info.IsDir() {
		s.writeMessage(StatusActionNotTakenNoFile, "Directory not found")

		return nil
	}

	s.setPath(virtualPath)
	s.writeMessage(StatusFileOK, "Directory changed to "+virtualPath)

	return nil
}

// handleCDUP implements CDUP, the RFC 959 shorthand for "CWD ..".
func (s *Session) handleCDUP(_ string) error {
	return s.handleCWD("..")
}

// handlePWD replies with the session's current virtual directory, quoted
// per RFC 959 (embedded quotes doubled).
func (s *Session) handlePWD(_ string) error {
	s.writeMessage(StatusPathCreated, fmt.Sprintf("\"%s\" is current directory", quoteDoubling(s.currentPath())))

	return nil
}

// handleMKD creates a directory and replies with its virtual path quoted,
// per the PWD-shaped 257 reply RFC 959 specifies for MKD too.
func (s *Session) handleMKD(arg string) error {
	virtualPath, realPath := s.resolve(arg)

	if !s.checkAccess(virtualPath, PermMkdir) {
		s.writeMessage(StatusActionNotTakenNoFile, "Permission denied")

		return nil
	}

	if err := s.server.fs.Mkdir(realPath, 0o755); err != nil {
		s.writeMessage(StatusActionNotTakenNoFile, fmt.Sprintf("Could not create directory: %v", err))

		return nil
	}

	s.writeMessage(StatusPathCreated, fmt.Sprintf("\"%s\" directory created", quoteDoubling(virtualPath)))

	return nil
}

// handleRMD removes an empty directory.
func (s *Session) handleRMD(arg string) error {
	virtualPath, realPath := s.resolve(arg)

	if !s.checkAccess(virtualPath, PermRmdir) {
		s.writeMessage(StatusActionNotTakenNoFile, "Permission denied")

		return nil
	}

	if err := s.server.fs.RemoveDir(realPath); err != nil {
		s.writeMessage(StatusActionNotTakenNoFile, fmt.Sprintf("Could not remove directory: %v", err))

		return nil
	}

	s.writeMessage(StatusFileOK, "Directory deleted")

	return nil
}

// listTarget resolves a LIST/NLST argument to the directory that should be
// enumerated and, when the argument names a plain file, the single entry
// name to filter down to (spec.md §4.9: "only that single entry is listed,
// by re-listing the parent and filtering").
func (s *Session) listTarget(arg string) (dirVirtual, dirReal, onlyName string, ok bool) {
	virtualPath, realPath := s.resolve(arg)

	info, err := s.server.fs.Stat(realPath)
	if err != nil {
		return "", "", "", false
	}

	if info.IsDir() {
		return virtualPath, realPath, "", true
	}

	parentVirtual, parentReal := s.resolve(virtualPath + "/..")

	return parentVirtual, parentReal, info.Name(), true
}

// handleLIST implements LIST: validate, then hand off to the transfer
// engine as a SEND_LIST task. The handler never touches the data socket.
func (s *Session) handleLIST(arg string) error {
	dirVirtual, dirReal, onlyName, ok := s.listTarget(arg)
	if !ok {
		s.writeMessage(StatusActionNotTaken, "File or directory not found")

		return nil
	}

	if !s.checkAccess(dirVirtual, PermRead) {
		s.writeMessage(StatusActionNotTaken, "Permission denied")

		return nil
	}

	entries, err := s.server.fs.ReadDir(dirReal)
	if err != nil {
		s.writeMessage(StatusActionNotTaken, fmt.Sprintf("Could not list directory: %v", err))

		return nil
	}

	entries = filterEntries(entries, onlyName)

	if err := s.runListTransfer(formatLISTLines(s.server.fs, dirReal, entries)); err != nil {
		s.logger.Warn("LIST transfer failed", "err", err)
	}

	return nil
}

// handleNLST implements NLST: one bare filename per line.
func (s *Session) handleNLST(arg string) error {
	dirVirtual, dirReal, onlyName, ok := s.listTarget(arg)
	if !ok {
		s.writeMessage(StatusActionNotTaken, "File or directory not found")

		return nil
	}

	if !s.checkAccess(dirVirtual, PermRead) {
		s.writeMessage(StatusActionNotTaken, "Permission denied")

		return nil
	}

	entries, err := s.server.fs.ReadDir(dirReal)
	if err != nil {
		s.writeMessage(StatusActionNotTaken, fmt.Sprintf("Could not list directory: %v", err))

		return nil
	}

	entries = filterEntries(entries, onlyName)

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, e.Name())
	}

	if err := s.runListTransfer(joinCRLF(lines)); err != nil {
		s.logger.Warn("NLST transfer failed", "err", err)
	}

	return nil
}

// filterEntries narrows a directory listing down to a single named entry,
// or returns it unfiltered when onlyName is empty.
func filterEntries(entries []os.FileInfo, onlyName string) []os.FileInfo {
	if onlyName == "" {
		return entries
	}

	for _, e := range entries {
		if e.Name() == onlyName {
			return []os.FileInfo{e}
		}
	}

	return nil
}
