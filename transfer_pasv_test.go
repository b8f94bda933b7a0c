package ftpserver

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// pasvPort extracts the port number from a "227 Entering Passive Mode
// (h1,h2,h3,h4,p1,p2)" reply.
func pasvPort(t *testing.T, msg string) int {
	t.Helper()

	open := strings.IndexByte(msg, '(')
	closeParen := strings.IndexByte(msg, ')')
	require.True(t, open >= 0 && closeParen > open, "malformed PASV reply: %q", msg)

	fields := strings.Split(msg[open+1:closeParen], ",")
	require.Len(t, fields, 6)

	p1, err := strconv.Atoi(fields[4])
	require.NoError(t, err)

	p2, err := strconv.Atoi(fields[5])
	require.NoError(t, err)

	return p1*256 + p2
}

// TestPASVTwiceClosesPreviousListener covers spec.md §4.8: PASV must
// "close any existing data sockets" before opening the new one. Issuing
// PASV a second time must tear down the first listener instead of leaking
// it. A connection left pending in the first listener's accept queue is
// reset when that listener closes; the freed port is then the first one the
// in-order scan finds again.
func TestPASVTwiceClosesPreviousListener(t *testing.T) {
	s := NewTestServer(t)
	raw := rawConn(t, s)

	first := sendAndCheck(t, raw, "PASV", StatusEnteringPASV)
	firstPort := pasvPort(t, first)

	host, _, err := net.SplitHostPort(s.Addr())
	require.NoError(t, err)

	pending, err := net.Dial("tcp", fmt.Sprintf("%s:%d", host, firstPort))
	require.NoError(t, err)

	defer pending.Close()

	second := sendAndCheck(t, raw, "PASV", StatusEnteringPASV)
	secondPort := pasvPort(t, second)

	require.Equal(t, firstPort, secondPort)

	require.NoError(t, pending.SetReadDeadline(time.Now().Add(5*time.Second)))

	_, err = pending.Read(make([]byte, 1))
	require.Error(t, err, "first PASV listener should have been closed")

	var ne net.Error
	require.False(t, errors.As(err, &ne) && ne.Timeout(), "pending connection was never reset: %v", err)
}
