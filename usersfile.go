package ftpserver

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// hashPassword is the opaque one-way function the core never implements itself.
// original_source/auth.h documents a 64-hex-char SHA-256 hash with no
// salt field in the users file; a salted KDF is a migration-time change
// not implemented here.
func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))

	return hex.EncodeToString(sum[:])
}

// LoadUsersFile parses the users-file text format:
//
//	# comments begin with '#'
//	username:<hex hash>:<home>:<perm-decimal>
//
// and populates store. Malformed lines are reported with the line number.
func LoadUsersFile(store *AuthStore, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.SplitN(line, ":", 4)
		if len(fields) != 4 {
			return newProtocolError(fmt.Sprintf("users file line %d: expected 4 fields", lineNo), nil)
		}

		perm, err := strconv.ParseUint(fields[3], 10, 8)
		if err != nil {
			return newProtocolError(fmt.Sprintf("users file line %d: bad permission field", lineNo), err)
		}

		if !store.AddUser(User{
			Username:     fields[0],
			PasswordHash: fields[1],
			Home:         fields[2],
			Permissions:  Permission(perm),
		}) {
			return newProtocolError(fmt.Sprintf("users file line %d: user table full", lineNo), nil)
		}
	}

	return scanner.Err()
}

// LoadUsersFilePath opens path and loads it into store.
func LoadUsersFilePath(store *AuthStore, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return newFSError("opening users file", err)
	}
	defer f.Close()

	return LoadUsersFile(store, f)
}

// SaveUsers writes the current user table back to the same text format it
// was loaded from, so the store round-trips. original_source/auth.h's
// auth_save_users has no equivalent in spec.md's distillation; this
// supplements it.
func SaveUsers(store *AuthStore, w io.Writer) error {
	store.mu.RLock()
	defer store.mu.RUnlock()

	bw := bufio.NewWriter(w)

	for _, u := range store.users {
		if _, err := fmt.Fprintf(bw, "%s:%s:%s:%d\n", u.Username, u.PasswordHash, u.Home, u.Permissions); err != nil {
			return newFSError("writing users file", err)
		}
	}

	return bw.Flush()
}

// SaveUsersPath writes the store to path, overwriting any existing file.
func SaveUsersPath(store *AuthStore, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return newFSError("creating users file", err)
	}
	defer f.Close()

	return SaveUsers(store, f)
}
