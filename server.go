// Package ftpserver implements the core of a multi-user FTP server.
package ftpserver

import (
	"errors"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/coreftpd/ftpserver/log"
)

// ErrNotListening is returned when performing an action that is only valid
// while listening.
var ErrNotListening = errors.New("we aren't listening")

// AddressFamily selects which IP family the acceptor binds to.
type AddressFamily int

// Supported address families.
const (
	AddressFamilyUnspecified AddressFamily = iota
	AddressFamilyIPv4
	AddressFamilyIPv6
)

func (f AddressFamily) network() string {
	switch f {
	case AddressFamilyIPv4:
		return "tcp4"
	case AddressFamilyIPv6:
		return "tcp6"
	default:
		return "tcp"
	}
}

// passivePortRangeStart and passivePortRangeEnd are the fixed PASV port
// bounds. They are not configurable: RFC 959 deployments conventionally fix them.
const (
	passivePortRangeStart = 20000
	passivePortRangeEnd   = 65535
)

// dataConnDialTimeout is the fixed 10-second timeout this server enforces
// for opening a data connection, in either direction.
const dataConnDialTimeout = 10 * time.Second

// Settings configures a Server. Build one with the With* functional
// options, following the teacher library's options pattern.
type Settings struct {
	ListenAddr     string
	AddressFamily  AddressFamily
	RootDir        string
	IdleTimeout    time.Duration
	MaxConnections int // <= 0 means unlimited
	Banner         string
	Logger         log.Logger

	// ActiveTransferPortNon20 skips binding the local end of active-mode
	// data connections to port 20 (RFC 1579); needed when running
	// unprivileged.
	ActiveTransferPortNon20 bool
}

// Option configures a Settings value.
type Option func(*Settings)

// WithListenAddr sets the host:port the acceptor binds to.
func WithListenAddr(addr string) Option {
	return func(s *Settings) { s.ListenAddr = addr }
}

// WithAddressFamily restricts the acceptor to IPv4 or IPv6.
func WithAddressFamily(f AddressFamily) Option {
	return func(s *Settings) { s.AddressFamily = f }
}

// WithRootDir sets the session root every client's virtual "/" maps onto.
func WithRootDir(dir string) Option {
	return func(s *Settings) { s.RootDir = dir }
}

// WithIdleTimeout sets the control-channel inactivity timeout.
func WithIdleTimeout(d time.Duration) Option {
	return func(s *Settings) { s.IdleTimeout = d }
}

// WithMaxConnections bounds concurrent sessions; <= 0 means unlimited.
func WithMaxConnections(n int) Option {
	return func(s *Settings) { s.MaxConnections = n }
}

// WithBanner overrides the 220 greeting text.
func WithBanner(banner string) Option {
	return func(s *Settings) { s.Banner = banner }
}

// WithLogger installs the logger every component of the server uses.
func WithLogger(l log.Logger) Option {
	return func(s *Settings) { s.Logger = l }
}

// WithActiveTransferPortNon20 lets active-mode data connections dial from
// an ephemeral local port instead of port 20.
func WithActiveTransferPortNon20(v bool) Option {
	return func(s *Settings) { s.ActiveTransferPortNon20 = v }
}

func newSettings(opts ...Option) *Settings {
	s := &Settings{
		ListenAddr:  ":21",
		RootDir:     "./ftp_root",
		IdleTimeout: 5 * time.Minute,
		Banner:      "FTP Server Ready",
		Logger:      log.NewNopLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// preHookKind names one of the three pre-hooks.
type preHookKind int

const (
	preHookClearAll preHookKind = iota
	preHookClearRestart
	preHookClearRename
)

// commandDescription is one command registry entry.
type commandDescription struct {
	Open            bool // usable before authentication
	TransferRelated bool // runs on its own goroutine, abortable
	SpecialAction   bool // bypasses the transfer-in-progress wait (ABOR, STAT, QUIT)
	PreHook         preHookKind
	Fn              func(*Session, string) error
}

// Server is the acceptor: it binds, listens, enforces the connection cap,
// and hands each accepted connection to its own Session worker.
type Server struct {
	settings *Settings
	auth     *AuthStore
	fs       *fsOps
	locks    *LockTable
	logger   log.Logger

	mu            sync.Mutex
	listener      net.Listener
	clientCounter uint32
	activeConns   int
}

// NewServer builds a Server around the given auth store and filesystem.
func NewServer(auth *AuthStore, fs *fsOps, opts ...Option) *Server {
	settings := newSettings(opts...)

	return &Server{
		settings: settings,
		auth:     auth,
		fs:       fs,
		locks:    NewLockTable(),
		logger:   settings.Logger,
	}
}

// Listen opens the listening socket. It is not a blocking call.
func (srv *Server) Listen() error {
	listener, err := net.Listen(srv.settings.AddressFamily.network(), srv.settings.ListenAddr)
	if err != nil {
		return newDataConnError("cannot listen on main port", err)
	}

	srv.mu.Lock()
	srv.listener = listener
	srv.mu.Unlock()

	srv.logger.Info("Listening...", "address", listener.Addr())

	return nil
}

func temporaryError(err net.Error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ECONNABORTED || errno == syscall.ECONNRESET
	}

	return false
}

// Serve accepts and dispatches connections until the listener is closed.
func (srv *Server) Serve() error {
	var tempDelay time.Duration

	for {
		conn, err := srv.listener.Accept()
		if err != nil {
			if stop, finalErr := srv.handleAcceptError(err, &tempDelay); stop {
				return finalErr
			}

			continue
		}

		tempDelay = 0

		srv.clientArrival(conn)
	}
}

func (srv *Server) handleAcceptError(err error, tempDelay *time.Duration) (bool, error) {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Err.Error() == "use of closed network connection" {
		srv.mu.Lock()
		srv.listener = nil
		srv.mu.Unlock()

		return true, nil
	}

	var ne net.Error
	if errors.As(err, &ne) && (ne.Timeout() || temporaryError(ne)) {
		if *tempDelay == 0 {
			*tempDelay = 5 * time.Millisecond
		} else {
			*tempDelay *= 2
		}

		if max := time.Second; *tempDelay > max {
			*tempDelay = max
		}

		srv.logger.Warn("accept error", "err", err, "retryDelay", *tempDelay)
		time.Sleep(*tempDelay)

		return false, nil
	}

	srv.logger.Error("listener accept error", "err", err)

	return true, newDataConnError("listener accept error", err)
}

// ListenAndServe chains Listen and Serve.
func (srv *Server) ListenAndServe() error {
	if err := srv.Listen(); err != nil {
		return err
	}

	srv.logger.Info("Starting...")

	return srv.Serve()
}

// Addr returns the listening address, or "" if not listening.
func (srv *Server) Addr() string {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.listener == nil {
		return ""
	}

	return srv.listener.Addr().String()
}

// Stop closes the listener. Running sessions are not force-killed.
func (srv *Server) Stop() error {
	srv.mu.Lock()
	listener := srv.listener
	srv.mu.Unlock()

	if listener == nil {
		return ErrNotListening
	}

	if err := listener.Close(); err != nil {
		return newDataConnError("couldn't close listener", err)
	}

	return nil
}

// clientArrival enforces the connection cap and, if
// accepted, spawns a session worker.
func (srv *Server) clientArrival(conn net.Conn) {
	srv.mu.Lock()

	if srv.settings.MaxConnections > 0 && srv.activeConns >= srv.settings.MaxConnections {
		srv.mu.Unlock()

		writeLine(conn, formatReply(StatusServiceNotAvailable, "Service not available, too many connections"))
		conn.Close()

		return
	}

	srv.activeConns++
	srv.clientCounter++
	id := srv.clientCounter
	srv.mu.Unlock()

	session := newSession(srv, conn, id)

	go session.run()
}

// clientDeparture decrements the connection count when a session worker exits.
func (srv *Server) clientDeparture() {
	srv.mu.Lock()
	srv.activeConns--
	srv.mu.Unlock()
}

func writeLine(conn net.Conn, s string) {
	_, _ = conn.Write([]byte(s))
}
