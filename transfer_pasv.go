package ftpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// passiveTransferHandler listens on a port from the fixed passive range and
// waits for the client to connect in, grounded on the teacher library's
// handler of the same shape.
type passiveTransferHandler struct {
	listener   *net.TCPListener
	connection net.Conn
}

func (p *passiveTransferHandler) Open() (net.Conn, error) {
	if p.connection != nil {
		return p.connection, nil
	}

	if err := p.listener.SetDeadline(dataConnDeadline()); err != nil {
		return nil, fmt.Errorf("failed to set passive accept deadline: %w", err)
	}

	conn, err := p.listener.Accept()
	if err != nil {
		return nil, err
	}

	p.connection = conn

	return conn, nil
}

func (p *passiveTransferHandler) Close() error {
	var firstErr error

	if p.listener != nil {
		if err := p.listener.Close(); err != nil {
			firstErr = err
		}
	}

	if p.connection != nil {
		if err := p.connection.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// ErrNoAvailablePassivePort is returned when no port in the fixed passive
// range could be bound after trying every one of them.
var ErrNoAvailablePassivePort = errors.New("could not find any free passive port")

// passiveListenConfig sets SO_REUSEADDR/SO_REUSEPORT on every candidate
// passive-port listener, the same Control hook control_unix.go/
// control_windows.go give the active-mode dialer, so a just-closed PASV
// port can be rebound immediately under load instead of sitting in
// TIME_WAIT.
var passiveListenConfig = net.ListenConfig{Control: Control} //nolint:gochecknoglobals

// findPassiveListener tries each port in the fixed passive range in order;
// the first one that binds wins.
func findPassiveListener() (*net.TCPListener, error) {
	for port := passivePortRangeStart; port <= passivePortRangeEnd; port++ {
		listener, err := passiveListenConfig.Listen(context.Background(), "tcp", fmt.Sprintf("0.0.0.0:%d", port))
		if err == nil {
			return listener.(*net.TCPListener), nil
		}
	}

	return nil, ErrNoAvailablePassivePort
}

func currentIPOctets(conn net.Conn) []string {
	host := strings.Split(conn.LocalAddr().String(), ":")[0]

	return strings.Split(host, ".")
}

// handlePASV implements the PASV command: bind a listener in the fixed
// passive port range and reply with its address for the client to dial.
func (s *Session) handlePASV(_ string) error {
	s.closeDataConnection()

	listener, err := findPassiveListener()
	if err != nil {
		s.logger.Error("could not listen for passive connection", "err", err)
		s.writeMessage(StatusServiceNotAvailable, fmt.Sprintf("Could not listen for passive connection: %v", err))

		return nil
	}

	port := listener.Addr().(*net.TCPAddr).Port
	octets := currentIPOctets(s.conn)

	s.setDataConnHandler(&passiveTransferHandler{listener: listener}, DataModePassive)
	s.writeMessage(StatusEnteringPASV, formatPASV(strings.Join(octets, "."), port))

	return nil
}
