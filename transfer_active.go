package ftpserver

import (
	"fmt"
	"net"
)

// activeTransferHandler dials back to the client's announced address for
// active-mode (PORT) transfers, grounded on the teacher library's handler of
// the same shape.
type activeTransferHandler struct {
	raddr    *net.TCPAddr
	conn     net.Conn
	settings *Settings
}

func (a *activeTransferHandler) Open() (net.Conn, error) {
	dialer := &net.Dialer{
		Timeout: dataConnDialTimeout,
		Control: Control,
	}

	if !a.settings.ActiveTransferPortNon20 {
		dialer.LocalAddr, _ = net.ResolveTCPAddr("tcp", ":20")
	}

	conn, err := dialer.Dial("tcp", a.raddr.String())
	if err != nil {
		return nil, fmt.Errorf("could not establish active data connection: %w", err)
	}

	a.conn = conn

	return conn, nil
}

func (a *activeTransferHandler) Close() error {
	if a.conn != nil {
		return a.conn.Close()
	}

	return nil
}

// handlePORT implements the PORT command: parse the client's address and
// stash an active-mode handler for the next transfer command to open.
func (s *Session) handlePORT(arg string) error {
	ip, port, err := parsePORT(arg)
	if err != nil {
		s.writeMessage(StatusSyntaxErrorParameters, fmt.Sprintf("Problem parsing PORT: %v", err))

		return nil
	}

	raddr, err := net.ResolveTCPAddr("tcp", fmt.Sprintf("%s:%d", ip, port))
	if err != nil {
		s.writeMessage(StatusSyntaxErrorParameters, fmt.Sprintf("Problem resolving PORT address: %v", err))

		return nil
	}

	s.closeDataConnection()
	s.setDataConnHandler(&activeTransferHandler{raddr: raddr, settings: s.server.settings}, DataModeActive)
	s.writeMessage(StatusOK, "PORT command successful")

	return nil
}
