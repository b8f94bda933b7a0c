// coreftpd runs the FTP server as a standalone process.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/afero"

	ftpserver "github.com/coreftpd/ftpserver"
	"github.com/coreftpd/ftpserver/log/gokit"
)

func main() {
	var (
		port      int
		rootDir   string
		family    string
		logLevel  string
		maxConns  int
		usersFile string
	)

	flag.IntVar(&port, "port", 21, "Port to listen on")
	flag.StringVar(&rootDir, "root", "./ftp_root", "Root directory exposed to clients")
	flag.StringVar(&family, "family", "unspec", "Address family: ipv4, ipv6 or unspec")
	flag.StringVar(&logLevel, "log-level", "INFO", "Log level: DEBUG, INFO, WARN or ERROR")
	flag.IntVar(&maxConns, "max-connections", 0, "Maximum concurrent connections (<=0 means unlimited)")
	flag.StringVar(&usersFile, "users-file", "", "Path to the users file (optional; anonymous-only if unset)")
	flag.Parse()

	if err := run(port, rootDir, family, logLevel, maxConns, usersFile); err != nil {
		fmt.Fprintln(os.Stderr, "coreftpd:", err)
		os.Exit(1)
	}
}

func run(port int, rootDir, family, logLevel string, maxConns int, usersFile string) error {
	addressFamily, err := parseAddressFamily(family)
	if err != nil {
		return err
	}

	logger := gokit.NewGKLoggerLeveled(logLevel)

	store := ftpserver.NewAuthStore()
	if usersFile != "" {
		if err := ftpserver.LoadUsersFilePath(store, usersFile); err != nil {
			return fmt.Errorf("loading users file: %w", err)
		}
	}

	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return fmt.Errorf("creating root directory: %w", err)
	}

	fs := afero.NewBasePathFs(afero.NewOsFs(), rootDir)

	srv := ftpserver.NewServer(store, ftpserver.NewFSOps(fs),
		ftpserver.WithListenAddr(":"+strconv.Itoa(port)),
		ftpserver.WithAddressFamily(addressFamily),
		ftpserver.WithRootDir("/"), // fs is already rooted at rootDir
		ftpserver.WithMaxConnections(maxConns),
		ftpserver.WithLogger(logger),
	)

	if err := srv.Listen(); err != nil {
		return fmt.Errorf("listening: %w", err)
	}

	done := make(chan struct{})
	go signalHandler(srv, done)

	serveErr := srv.Serve()

	close(done)

	if serveErr != nil {
		logger.Error("server stopped with error", "err", serveErr)
	}

	return nil
}

// signalHandler stops the server cleanly on SIGINT/SIGTERM, mirroring the
// teacher binary's shutdown handling.
func signalHandler(srv *ftpserver.Server, done chan struct{}) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(ch)

	select {
	case <-ch:
		_ = srv.Stop()
	case <-done:
	}
}

func parseAddressFamily(s string) (ftpserver.AddressFamily, error) {
	switch s {
	case "ipv4":
		return ftpserver.AddressFamilyIPv4, nil
	case "ipv6":
		return ftpserver.AddressFamilyIPv6, nil
	case "unspec", "":
		return ftpserver.AddressFamilyUnspecified, nil
	default:
		return 0, fmt.Errorf("unknown address family %q", s)
	}
}
