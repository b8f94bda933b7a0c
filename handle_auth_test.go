package ftpserver

import (
	"net"
	"time"

	"testing"

	"github.com/secsy/goftp"
	"github.com/stretchr/testify/require"
)

func TestLoginSuccess(t *testing.T) {
	s := NewTestServer(t)

	conn, err := net.DialTimeout("tcp", s.Addr(), 5*time.Second)
	require.NoError(t, err)

	defer func() { require.NoError(t, conn.Close()) }()

	buf := make([]byte, 1024)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "220 TEST Server\r\n", string(buf[:n]))

	_, err = conn.Write([]byte("NOOP\r\n"))
	require.NoError(t, err)

	n, err = conn.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "200 OK\r\n", string(buf[:n]))
}

func TestLoginBadPassword(t *testing.T) {
	s := NewTestServer(t)

	// goftp only logs in when the first connection is opened, so the failure
	// surfaces from OpenRawConn rather than from DialConfig.
	c, err := goftp.DialConfig(goftp.Config{User: authUser, Password: "wrong"}, s.Addr())
	require.NoError(t, err)

	defer func() { panicOnError(c.Close()) }()

	_, err = c.OpenRawConn()
	require.Error(t, err)
}

func TestLoginUnknownUser(t *testing.T) {
	s := NewTestServer(t)

	raw := rawConn(t, s)
	sendAndCheck(t, raw, "USER nobody", StatusNotLoggedIn)
}

// TestCommandBeforeLoginRejected covers spec.md §4.7: only USER, PASS,
// QUIT, NOOP, SYST, FEAT and REIN may run before authentication; every
// other command, including ACCT and HELP, must reply 530.
func TestCommandBeforeLoginRejected(t *testing.T) {
	s := NewTestServer(t)

	for _, cmd := range []string{"PWD", "ACCT somebody", "HELP", "LIST", "CWD /"} {
		conn, err := net.DialTimeout("tcp", s.Addr(), 5*time.Second)
		require.NoError(t, err)

		buf := make([]byte, 1024)
		_, err = conn.Read(buf) // greeting
		require.NoError(t, err)

		_, err = conn.Write([]byte(cmd + "\r\n"))
		require.NoError(t, err)

		n, err := conn.Read(buf)
		require.NoError(t, err)
		require.Contains(t, string(buf[:n]), "530", "command %q", cmd)

		require.NoError(t, conn.Close())
	}
}

// TestAnonymousLoginHome covers spec.md's "Anonymous LIST" end-to-end
// scenario: after anonymous login, PWD reports the anonymous home.
func TestAnonymousLoginHome(t *testing.T) {
	s := NewTestServer(t)

	c, err := goftp.DialConfig(goftp.Config{User: "anonymous", Password: "x@y"}, s.Addr())
	require.NoError(t, err)

	defer func() { panicOnError(c.Close()) }()

	raw, err := c.OpenRawConn()
	require.NoError(t, err)

	defer func() { require.NoError(t, raw.Close()) }()

	code, msg, err := raw.SendCommand("PWD")
	require.NoError(t, err)
	require.Equal(t, StatusPathCreated, code)
	require.Contains(t, msg, `"/pub"`)
}

func TestQuitReportsTransferCounters(t *testing.T) {
	s := NewTestServer(t)

	raw := rawConn(t, s)

	code, msg, err := raw.SendCommand("QUIT")
	require.NoError(t, err)
	require.Equal(t, StatusClosingControlConn, code)
	require.Contains(t, msg, "0 file(s) uploaded")
	require.Contains(t, msg, "0 file(s) downloaded")
}

func TestREIN(t *testing.T) {
	s := NewTestServer(t)

	raw := rawConn(t, s)
	sendAndCheck(t, raw, "REIN", StatusServiceReady)
	sendAndCheck(t, raw, "PWD", StatusNotLoggedIn)
}
