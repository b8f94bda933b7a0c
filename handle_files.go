package ftpserver

import (
	"fmt"
	"io"
	"os"
	"strconv"
)

// takeRestartOffset reads the session's pending REST offset and clears it,
// per spec.md §4.9: "restart offset is read from the session and then
// cleared."
func (s *Session) takeRestartOffset() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	off := s.restartOffset
	s.restartOffset = 0

	return off
}

// isPathBusy is the non-blocking probe spec.md §4.10 describes: true if an
// exclusive holder or any shared holder currently has path locked, letting
// a handler fail fast with 450 instead of blocking the control channel.
func (s *Session) isPathBusy(path string) bool {
	return s.server.locks.IsExclusiveLocked(path) || s.server.locks.SharedLockCount(path) > 0
}

// handleRETR implements RETR: §4.9's SEND_FILE task, with REST support.
func (s *Session) handleRETR(arg string) error {
	virtualPath, realPath := s.resolve(arg)

	if !s.checkAccess(virtualPath, PermRead) {
		s.writeMessage(StatusActionNotTakenNoFile, "Permission denied")

		return nil
	}

	info, err := s.server.fs.Stat(realPath)
	if err != nil || info.IsDir() {
		s.writeMessage(StatusActionNotTakenNoFile, "File not found")

		return nil
	}

	offset := s.takeRestartOffset()
	if offset > info.Size() {
		s.writeMessage(StatusActionNotTakenNoFile, "Restart offset beyond end of file")

		return nil
	}

	s.server.locks.AcquireShared(realPath)

	file, err := s.server.fs.Open(realPath)
	if err != nil {
		s.server.locks.ReleaseShared(realPath)
		s.writeMessage(StatusActionNotTakenNoFile, fmt.Sprintf("Could not open file: %v", err))

		return nil
	}

	if offset > 0 {
		if _, err := file.Seek(offset, io.SeekStart); err != nil {
			file.Close()
			s.server.locks.ReleaseShared(realPath)
			s.writeMessage(StatusActionAborted, fmt.Sprintf("Could not seek: %v", err))

			return nil
		}
	}

	release := func() { s.server.locks.ReleaseShared(realPath) }

	if err := s.runFileTransfer(directionDownload, file, release); err != nil {
		s.logger.Warn("RETR transfer failed", "err", err)
	}

	return nil
}

// handleSTOR implements STOR: §4.9's RECV_FILE task, with REST support.
func (s *Session) handleSTOR(arg string) error {
	return s.handleUpload(arg, false)
}

// handleAPPE implements APPE: RECV_FILE starting at the current end of
// file (or 0 if the file doesn't exist yet).
func (s *Session) handleAPPE(arg string) error {
	return s.handleUpload(arg, true)
}

// handleUpload is the shared STOR/APPE implementation, differing only in
// how the starting offset is derived (spec.md §4.11).
func (s *Session) handleUpload(arg string, appending bool) error {
	virtualPath, realPath := s.resolve(arg)

	if !s.checkAccess(virtualPath, PermWrite) {
		s.writeMessage(StatusActionNotTakenNoFile, "Permission denied")

		return nil
	}

	existing, statErr := s.server.fs.Stat(realPath)

	var offset int64

	switch {
	case appending:
		if statErr == nil {
			offset = existing.Size()
		}
	default:
		offset = s.takeRestartOffset()

		switch {
		case offset > 0:
			if statErr != nil {
				s.writeMessage(StatusActionNotTakenNoFile, "Restart target does not exist")

				return nil
			}

			if offset > existing.Size() {
				s.writeMessage(StatusActionNotTakenNoFile, "Restart offset beyond end of file")

				return nil
			}
		case statErr == nil:
			// Fresh write (no restart): drop any stale content first so the
			// new transfer replaces it instead of merely truncating in place.
			if err := s.server.fs.Remove(realPath); err != nil {
				s.writeMessage(StatusActionNotTakenNoFile, fmt.Sprintf("Could not reset file: %v", err))

				return nil
			}
		}
	}

	s.server.locks.AcquireExclusive(realPath)

	flags := os.O_WRONLY | os.O_CREATE
	if offset == 0 && !appending {
		flags |= os.O_TRUNC
	}

	file, err := s.server.fs.OpenFile(realPath, flags, 0o644)
	if err != nil {
		s.server.locks.ReleaseExclusive(realPath)
		s.writeMessage(StatusActionNotTaken, fmt.Sprintf("Could not open file: %v", err))

		return nil
	}

	if offset > 0 {
		if _, err := file.Seek(offset, io.SeekStart); err != nil {
			file.Close()
			s.server.locks.ReleaseExclusive(realPath)
			s.writeMessage(StatusActionAborted, fmt.Sprintf("Could not seek: %v", err))

			return nil
		}
	}

	release := func() { s.server.locks.ReleaseExclusive(realPath) }

	if err := s.runFileTransfer(directionUpload, file, release); err != nil {
		s.logger.Warn("upload transfer failed", "err", err)
	}

	return nil
}

// handleDELE implements DELE: a fail-fast busy probe, then delete under an
// exclusive lock.
func (s *Session) handleDELE(arg string) error {
	virtualPath, realPath := s.resolve(arg)

	if !s.checkAccess(virtualPath, PermDelete) {
		s.writeMessage(StatusActionNotTakenNoFile, "Permission denied")

		return nil
	}

	if s.isPathBusy(realPath) {
		s.writeMessage(StatusActionNotTaken, "File is busy")

		return nil
	}

	s.server.locks.AcquireExclusive(realPath)
	err := s.server.fs.Remove(realPath)
	s.server.locks.ReleaseExclusive(realPath)

	if err != nil {
		s.writeMessage(StatusActionNotTakenNoFile, fmt.Sprintf("Could not delete file: %v", err))

		return nil
	}

	s.writeMessage(StatusFileOK, "File deleted")

	return nil
}

// handleRNFR implements RNFR: verify the source exists and isn't busy, then
// stash it as the pending rename source.
func (s *Session) handleRNFR(arg string) error {
	virtualPath, realPath := s.resolve(arg)

	if !s.checkAccess(virtualPath, PermRename) {
		s.writeMessage(StatusActionNotTakenNoFile, "Permission denied")

		return nil
	}

	if _, err := s.server.fs.Stat(realPath); err != nil {
		s.writeMessage(StatusActionNotTakenNoFile, "File not found")

		return nil
	}

	if s.isPathBusy(realPath) {
		s.writeMessage(StatusActionNotTaken, "File is busy")

		return nil
	}

	s.mu.Lock()
	s.renameFrom = virtualPath
	s.mu.Unlock()

	s.writeMessage(StatusFileActionPending, "File exists, ready for destination name")

	return nil
}

// handleRNTO implements RNTO: rename the RNFR-pending source to arg under
// an exclusive lock on the source path.
func (s *Session) handleRNTO(arg string) error {
	s.mu.RLock()
	fromVirtual := s.renameFrom
	s.mu.RUnlock()

	if fromVirtual == "" {
		s.writeMessage(StatusBadCommandSequence, "RNFR required first")

		return nil
	}

	toVirtual, toReal := s.resolve(arg)

	if !s.checkAccess(toVirtual, PermRename) {
		s.writeMessage(StatusActionNotTakenNoFile, "Permission denied")

		return nil
	}

	_, fromReal := s.resolve(fromVirtual)

	s.server.locks.AcquireExclusive(fromReal)
	err := s.server.fs.Rename(fromReal, toReal)
	s.server.locks.ReleaseExclusive(fromReal)

	s.mu.Lock()
	s.renameFrom = ""
	s.mu.Unlock()

	if err != nil {
		s.writeMessage(StatusActionNotTakenNoFile, fmt.Sprintf("Could not rename: %v", err))

		return nil
	}

	s.writeMessage(StatusFileOK, "Rename successful")

	return nil
}

// handleSIZE implements SIZE: reply with the decimal byte size of a file.
func (s *Session) handleSIZE(arg string) error {
	virtualPath, realPath := s.resolve(arg)

	if !s.checkAccess(virtualPath, PermRead) {
		s.writeMessage(StatusActionNotTakenNoFile, "Permission denied")

		return nil
	}

	info, err := s.server.fs.Stat(realPath)
	if err != nil || info.IsDir() {
		s.writeMessage(StatusActionNotTakenNoFile, "File not found")

		return nil
	}

	s.writeMessage(StatusFileStatus, strconv.FormatInt(info.Size(), 10))

	return nil
}

// mdtmFormat is the UTC "YYYYMMDDHHMMSS" layout spec.md §6 requires.
const mdtmFormat = "20060102150405"

// handleMDTM implements MDTM: reply with the file's modification time in
// UTC.
func (s *Session) handleMDTM(arg string) error {
	virtualPath, realPath := s.resolve(arg)

	if !s.checkAccess(virtualPath, PermRead) {
		s.writeMessage(StatusActionNotTakenNoFile, "Permission denied")

		return nil
	}

	info, err := s.server.fs.Stat(realPath)
	if err != nil {
		s.writeMessage(StatusActionNotTakenNoFile, "File not found")

		return nil
	}

	s.writeMessage(StatusFileStatus, info.ModTime().UTC().Format(mdtmFormat))

	return nil
}

// handleREST implements REST: stash a restart offset for the next RETR or
// STOR, consumed (and cleared) by that command.
func (s *Session) handleREST(arg string) error {
	offset, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || offset < 0 {
		s.writeMessage(StatusSyntaxErrorParameters, "Invalid restart offset")

		return nil
	}

	s.mu.Lock()
	s.restartOffset = offset
	s.mu.Unlock()

	s.writeMessage(StatusFileActionPending, fmt.Sprintf("Restarting at %d", offset))

	return nil
}
