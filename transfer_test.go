package ftpserver

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestASCIITransferTranslatesLineEndings covers spec.md's "line-ending
// round-trip" testable property: CRLF text stored in ASCII mode lands on
// disk with bare LFs (checked by a binary RETR), and an ASCII-mode RETR of
// that file puts CRLF back on the wire.
func TestASCIITransferTranslatesLineEndings(t *testing.T) {
	s := NewTestServer(t)

	raw := rawConn(t, s)

	original := []byte("first line\nsecond line\nthird\n")

	sendAndCheck(t, raw, "TYPE A", StatusOK)

	dcGetter, err := raw.PrepareDataConn()
	require.NoError(t, err)

	code, msg, err := raw.SendCommand("STOR ascii.txt")
	require.NoError(t, err)
	require.Equal(t, StatusFileStatusOK, code, msg)

	dc, err := dcGetter()
	require.NoError(t, err)

	_, err = dc.Write(bytes.ReplaceAll(original, []byte("\n"), []byte("\r\n")))
	require.NoError(t, err)
	require.NoError(t, dc.Close())

	code, msg, err = raw.ReadResponse()
	require.NoError(t, err)
	require.Equal(t, StatusClosingDataConn, code, msg)

	// Retrieve in binary mode: the stored file must contain bare LFs, proving
	// the ASCII upload converter stripped the CRs rather than passing them
	// through untouched.
	sendAndCheck(t, raw, "TYPE I", StatusOK)

	dcGetter, err = raw.PrepareDataConn()
	require.NoError(t, err)

	code, msg, err = raw.SendCommand("RETR ascii.txt")
	require.NoError(t, err)
	require.Equal(t, StatusFileStatusOK, code, msg)

	dc, err = dcGetter()
	require.NoError(t, err)

	var stored bytes.Buffer
	_, err = io.Copy(&stored, dc)
	require.NoError(t, err)
	require.NoError(t, dc.Close())

	_, _, err = raw.ReadResponse()
	require.NoError(t, err)

	require.Equal(t, original, stored.Bytes())

	// Retrieve in ASCII mode: the wire bytes must carry CRLF even though the
	// file on disk has bare LF.
	sendAndCheck(t, raw, "TYPE A", StatusOK)

	dcGetter, err = raw.PrepareDataConn()
	require.NoError(t, err)

	code, msg, err = raw.SendCommand("RETR ascii.txt")
	require.NoError(t, err)
	require.Equal(t, StatusFileStatusOK, code, msg)

	dc, err = dcGetter()
	require.NoError(t, err)

	var wire bytes.Buffer
	_, err = io.Copy(&wire, dc)
	require.NoError(t, err)
	require.NoError(t, dc.Close())

	_, _, err = raw.ReadResponse()
	require.NoError(t, err)

	require.Equal(t, bytes.ReplaceAll(original, []byte("\n"), []byte("\r\n")), wire.Bytes())
}

// TestBinaryTransferLeavesLineEndingsAlone confirms TYPE I never runs
// content through the ASCII converter.
func TestBinaryTransferLeavesLineEndingsAlone(t *testing.T) {
	s := NewTestServer(t)
	c := dialClient(t, s)

	content := []byte("line one\r\nline two\nline three\r\n")
	require.NoError(t, c.Store("raw.bin", bytes.NewReader(content)))

	var out bytes.Buffer
	require.NoError(t, c.Retrieve("raw.bin", &out))
	require.Equal(t, content, out.Bytes())
}

// TestDataConnErrorWithoutPORTOrPASV covers the "no PORT or PASV issued"
// edge case: a transfer command with no prior data-connection setup fails
// cleanly rather than hanging.
func TestDataConnErrorWithoutPORTOrPASV(t *testing.T) {
	s := NewTestServer(t)
	raw := rawConn(t, s)

	code, msg, err := raw.SendCommand("STOR anything")
	require.NoError(t, err)
	require.Equal(t, StatusFileStatusOK, code, msg)

	code, msg, err = raw.ReadResponse()
	require.NoError(t, err)
	require.Equal(t, StatusCannotOpenDataConnection, code, msg)
}
