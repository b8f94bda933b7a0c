package ftpserver

import (
	"testing"

	"github.com/secsy/goftp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/coreftpd/ftpserver/log"
)

const (
	authUser = "alice"
	authPass = "password"
)

func panicOnError(err error) {
	if err != nil {
		panic(err)
	}
}

// NewTestServer builds a Server backed by an in-memory filesystem with one
// regular user (authUser/authPass, home "/home/alice", all permissions)
// plus the default anonymous user (home "/pub", read-only). The session
// root is the in-memory filesystem's own "/". It is already listening and
// serving when returned; t.Cleanup stops it.
func NewTestServer(t *testing.T) *Server {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/home/alice", 0o755))
	require.NoError(t, fs.MkdirAll("/pub", 0o755))

	store := NewAuthStore()
	require.True(t, store.AddUser(User{
		Username:     authUser,
		PasswordHash: hashPassword(authPass),
		Home:         "/home/alice",
		Permissions:  PermAll,
	}))

	srv := NewServer(store, newFSOps(fs),
		WithListenAddr("127.0.0.1:0"),
		WithRootDir("/"),
		WithBanner("TEST Server"),
		WithLogger(log.NewNopLogger()),
		WithActiveTransferPortNon20(true),
	)

	require.NoError(t, srv.Listen())

	go func() { _ = srv.Serve() }()

	t.Cleanup(func() { _ = srv.Stop() })

	return srv
}

func dialClient(t *testing.T, srv *Server) *goftp.Client {
	t.Helper()

	return dialClientAs(t, srv, authUser, authPass)
}

// dialClientAs dials srv as an arbitrary user/password pair, for scenarios
// that need more than one logged-in identity.
func dialClientAs(t *testing.T, srv *Server, user, pass string) *goftp.Client {
	t.Helper()

	conf := goftp.Config{User: user, Password: pass}

	c, err := goftp.DialConfig(conf, srv.Addr())
	require.NoError(t, err, "couldn't connect")

	t.Cleanup(func() { panicOnError(c.Close()) })

	return c
}

func rawConn(t *testing.T, srv *Server) goftp.RawConn {
	t.Helper()

	c := dialClient(t, srv)

	raw, err := c.OpenRawConn()
	require.NoError(t, err, "couldn't open raw connection")

	t.Cleanup(func() { require.NoError(t, raw.Close()) })

	return raw
}

func sendAndCheck(t *testing.T, raw goftp.RawConn, cmd string, expected int) string {
	t.Helper()

	code, msg, err := raw.SendCommand(cmd)
	require.NoError(t, err)
	require.Equal(t, expected, code)

	return msg
}
