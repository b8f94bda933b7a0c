package ftpserver

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSYSTAndNOOP(t *testing.T) {
	s := NewTestServer(t)
	raw := rawConn(t, s)

	msg := sendAndCheck(t, raw, "SYST", StatusSystemType)
	require.Equal(t, "UNIX Type: L8", msg)

	sendAndCheck(t, raw, "NOOP", StatusOK)
}

func TestFEAT(t *testing.T) {
	s := NewTestServer(t)
	raw := rawConn(t, s)

	code, _, err := raw.SendCommand("FEAT")
	require.NoError(t, err)
	require.Equal(t, StatusSystemStatus, code)
}

func TestTYPEModeStru(t *testing.T) {
	s := NewTestServer(t)
	raw := rawConn(t, s)

	sendAndCheck(t, raw, "TYPE I", StatusOK)
	sendAndCheck(t, raw, "TYPE A", StatusOK)
	sendAndCheck(t, raw, "TYPE E", StatusNotImplementedParameter)
	sendAndCheck(t, raw, "TYPE X", StatusSyntaxErrorParameters)

	sendAndCheck(t, raw, "MODE S", StatusOK)
	sendAndCheck(t, raw, "MODE B", StatusNotImplementedParameter)
	sendAndCheck(t, raw, "MODE X", StatusSyntaxErrorParameters)

	sendAndCheck(t, raw, "STRU F", StatusOK)
	sendAndCheck(t, raw, "STRU R", StatusNotImplementedParameter)
	sendAndCheck(t, raw, "STRU X", StatusSyntaxErrorParameters)
}

func TestOpenQuestionStubs(t *testing.T) {
	s := NewTestServer(t)
	raw := rawConn(t, s)

	sendAndCheck(t, raw, "ACCT x", StatusCommandNotImplemented)
	sendAndCheck(t, raw, "HELP", StatusCommandNotImplemented)
	sendAndCheck(t, raw, "SITE CHMOD 600 f", StatusCommandNotImplemented)
	sendAndCheck(t, raw, "SMNT /", StatusCommandNotImplemented)
	sendAndCheck(t, raw, "ALLO 1024", StatusCommandNotImplemented)
	sendAndCheck(t, raw, "STOU", StatusNotImplemented)
}

func TestSTATSession(t *testing.T) {
	s := NewTestServer(t)
	raw := rawConn(t, s)

	code, _, err := raw.SendCommand("STAT")
	require.NoError(t, err)
	require.Equal(t, StatusSystemStatus, code)

	sendAndCheck(t, raw, "STAT somefile", StatusCommandNotImplemented)
}

// TestABORWithNoTransfer covers spec.md's ABOR-with-nothing-running path.
func TestABORWithNoTransfer(t *testing.T) {
	s := NewTestServer(t)
	raw := rawConn(t, s)

	sendAndCheck(t, raw, "ABOR", StatusDataConnectionOpen)
}

// TestABORDuringTransfer covers spec.md's "ABOR termination" property:
// after ABOR, the worker's terminal reply is the last thing sent, and the
// data connection carries no further bytes. It exercises the full
// transfer-worker/control-loop split rather than asserting byte counts,
// since the exact amount copied before the cooperative abort lands is
// inherently racy.
func TestABORDuringTransfer(t *testing.T) {
	s := NewTestServer(t)
	c := dialClient(t, s)

	content := bytes.Repeat([]byte{0x42}, 8*1024*1024)
	require.NoError(t, c.Store("large.bin", bytes.NewReader(content)))

	raw, err := c.OpenRawConn()
	require.NoError(t, err)

	defer func() { require.NoError(t, raw.Close()) }()

	dcGetter, err := raw.PrepareDataConn()
	require.NoError(t, err)

	code, msg, err := raw.SendCommand("RETR large.bin")
	require.NoError(t, err)
	require.Equal(t, StatusFileStatusOK, code, msg)

	dc, err := dcGetter()
	require.NoError(t, err)

	buf := make([]byte, 4096)
	_, err = io.ReadFull(dc, buf)
	require.NoError(t, err)

	require.NoError(t, raw.SendCommandNoWaitResponse("ABOR"))

	_, err = io.Copy(io.Discard, dc)
	require.NoError(t, err)
	require.NoError(t, dc.Close())

	code, _, err = raw.ReadResponse()
	require.NoError(t, err)
	require.Equal(t, StatusConnectionClosed, code)

	code, _, err = raw.ReadResponse()
	require.NoError(t, err)
	require.Equal(t, StatusClosingDataConn, code)
}
