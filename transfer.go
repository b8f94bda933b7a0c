package ftpserver

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// dataConnHandler abstracts active vs passive data-connection setup, grounded
// on the teacher library's transferHandler interface.
type dataConnHandler interface {
	Open() (net.Conn, error)
	Close() error
}

// closeDataConnection tears down whatever data-connection handler is set,
// clearing dataMode so a later PORT/PASV can replace it.
func (s *Session) closeDataConnection() {
	s.mu.Lock()
	transfer := s.transfer
	s.transfer = nil
	s.dataMode = DataModeNone
	s.mu.Unlock()

	if transfer != nil {
		if err := transfer.Close(); err != nil {
			s.logger.Warn("problem closing data connection", "err", err)
		}
	}
}

func (s *Session) setDataConnHandler(h dataConnHandler, mode DataMode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transfer = h
	s.dataMode = mode
}

func (s *Session) openDataConnection() (net.Conn, error) {
	s.mu.RLock()
	transfer := s.transfer
	s.mu.RUnlock()

	if transfer == nil {
		return nil, newDataConnError("no PORT or PASV issued", nil)
	}

	return transfer.Open()
}

// direction indicates which side of the data connection the server reads
// from and which it writes to.
type direction int

const (
	directionUpload   direction = iota // client -> server (STOR, APPE)
	directionDownload                  // server -> client (RETR, LIST, NLST)
)

// runFileTransfer sends the 150 reply, opens the data connection, copies
// between it and local applying ASCII translation if negotiated, then sends
// the terminal 226/426/451 reply. release (if non-nil) is called once,
// after local and the data connection are both closed, handing back the
// file lock inherited from the initiating handler -- per spec.md §4.9 the
// handler must not release it on the success path itself.
//
// It's called from the TransferRelated handler's own goroutine (spec.md's
// "transfer worker"), so it is free to block and to poll s.isAborted()
// between chunks; the control-reading loop runs independently.
func (s *Session) runFileTransfer(dir direction, local io.ReadWriteCloser, release func()) error {
	if release != nil {
		defer release()
	}
	defer local.Close()

	s.writeMessage(StatusFileStatusOK, "Opening data connection")

	conn, err := s.openDataConnection()
	if err != nil {
		s.writeMessage(StatusCannotOpenDataConnection, fmt.Sprintf("Could not open data connection: %v", err))

		return newDataConnError("could not open data connection", err)
	}
	defer conn.Close()
	defer s.closeDataConnection()

	var src io.Reader
	var dst io.Writer

	s.mu.RLock()
	asciiMode := s.transferType == TransferTypeASCII
	s.mu.RUnlock()

	switch dir {
	case directionUpload:
		src = conn
		dst = local

		if asciiMode {
			src = newASCIIConverter(src, convertModeToLF)
		}
	case directionDownload:
		src = local
		dst = conn

		if asciiMode {
			src = newASCIIConverter(src, convertModeToCRLF)
		}
	}

	n, copyErr := s.copyAbortable(dst, src)

	s.mu.Lock()
	switch dir {
	case directionUpload:
		s.bytesUploaded += uint64(n)
		s.filesUploaded++
	case directionDownload:
		s.bytesDownloaded += uint64(n)
		s.filesDownloaded++
	}
	s.mu.Unlock()

	return s.finishTransfer(copyErr)
}

// runListTransfer sends LIST/NLST output, which is always textual
// regardless of the negotiated TYPE and carries no file lock (spec.md
// §4.9: "LIST/NLST take no file lock").
func (s *Session) runListTransfer(content []byte) error {
	s.writeMessage(StatusFileStatusOK, "Opening data connection")

	conn, err := s.openDataConnection()
	if err != nil {
		s.writeMessage(StatusCannotOpenDataConnection, fmt.Sprintf("Could not open data connection: %v", err))

		return newDataConnError("could not open data connection", err)
	}
	defer conn.Close()
	defer s.closeDataConnection()

	_, copyErr := s.copyAbortable(conn, bytes.NewReader(content))

	return s.finishTransfer(copyErr)
}

// finishTransfer sends the terminal reply for a just-completed transfer,
// matching the ABORTED / connection-error / success outcomes spec.md §4.9
// enumerates for the transfer worker.
func (s *Session) finishTransfer(copyErr error) error {
	if s.isAborted() {
		s.writeMessage(StatusClosingDataConn, "ABOR command successful")

		return nil
	}

	if copyErr != nil {
		if isNetworkError(copyErr) {
			s.writeMessage(StatusConnectionClosed, fmt.Sprintf("Connection closed; transfer aborted: %v", copyErr))

			return newDataConnError("transfer error", copyErr)
		}

		s.writeMessage(StatusActionAborted, fmt.Sprintf("Requested action aborted: %v", copyErr))

		return newFSError("transfer error", copyErr)
	}

	s.writeMessage(StatusClosingDataConn, "Transfer complete")

	return nil
}

// isNetworkError reports whether err originated on the data-connection side
// (spec.md error kind 4, reported 426) rather than the local filesystem
// side (error kind 3, reported 451).
func isNetworkError(err error) bool {
	var ne net.Error

	return errors.As(err, &ne)
}

// transferChunkSize is the fixed copy buffer size for data-connection
// transfers. In ASCII mode the converter reads through its own 4096-byte
// buffer and keeps two bytes of each chunk free for an added line ending.
const transferChunkSize = 64 * 1024

// copyAbortable streams src to dst in transferChunkSize chunks, checking
// s.isAborted() between chunks so ABOR can interrupt a long transfer without
// tearing down the control connection.
func (s *Session) copyAbortable(dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, transferChunkSize)

	var total int64

	for {
		if s.isAborted() {
			return total, nil
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			written, writeErr := dst.Write(buf[:n])
			total += int64(written)

			if writeErr != nil {
				return total, writeErr
			}
		}

		if readErr != nil {
			if readErr == io.EOF {
				return total, nil
			}

			return total, readErr
		}
	}
}

// dataConnDeadline is how long Open() blocks waiting for the other side to
// connect, shared by both active and passive handlers.
func dataConnDeadline() time.Time {
	return time.Now().Add(dataConnDialTimeout)
}
